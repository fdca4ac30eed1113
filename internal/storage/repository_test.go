package storage

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"budget/internal/core"
	"budget/internal/ports"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "data", "budget.db"))
	if err != nil {
		t.Fatalf("new repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func insertRecord(t *testing.T, repo *SQLiteRepository, r core.NewBudgetRecord) core.BudgetRecord {
	t.Helper()
	var out core.BudgetRecord
	err := repo.WriteTx(context.Background(), func(tx ports.RecordTx) error {
		var err error
		out, err = tx.InsertRecord(context.Background(), r)
		return err
	})
	if err != nil {
		t.Fatalf("insert %+v: %v", r, err)
	}
	return out
}

func TestMigrationsApplied(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "budget.db")
	repo, err := NewSQLiteRepository(path)
	if err != nil {
		t.Fatalf("new repository: %v", err)
	}
	if repo.SchemaVersion() != 2 {
		t.Fatalf("SchemaVersion() = %d, want 2", repo.SchemaVersion())
	}
	repo.Close()

	version, dirty, err := MigrationVersion(DSN(path))
	if err != nil {
		t.Fatalf("migration version: %v", err)
	}
	if version != 2 || dirty {
		t.Fatalf("expected clean version 2, got %d dirty=%v", version, dirty)
	}

	// Reopening an up-to-date database is a no-op
	repo, err = NewSQLiteRepository(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	repo.Close()
}

func TestAuthorRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	created := time.Date(2023, 7, 1, 12, 30, 15, 123456789, time.FixedZone("MSK", 3*3600))

	a, err := repo.CreateAuthor(ctx, "Сергей Королёв", created)
	if err != nil {
		t.Fatalf("create author: %v", err)
	}
	got, found, err := repo.GetAuthor(ctx, a.ID)
	if err != nil || !found {
		t.Fatalf("get author: found=%v err=%v", found, err)
	}
	if got.FullName != "Сергей Королёв" || !got.CreatedAt.Equal(created) {
		t.Fatalf("unexpected author %+v", got)
	}

	_, found, err = repo.GetAuthor(ctx, a.ID+100)
	if err != nil || found {
		t.Fatalf("missing author: found=%v err=%v", found, err)
	}
}

func TestWriteTxRollsBack(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := repo.WriteTx(ctx, func(tx ports.RecordTx) error {
		if _, err := tx.InsertRecord(ctx, core.NewBudgetRecord{Year: 2020, Month: 1, Amount: 1, Type: core.TypeIncome}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	var count int64
	err = repo.ReadTx(ctx, func(r ports.RecordReader) error {
		var err error
		count, err = r.CountRecords(ctx, core.NewRecordFilter())
		return err
	})
	if err != nil || count != 0 {
		t.Fatalf("expected no records after rollback, count=%d err=%v", count, err)
	}
}

func TestSelectCountAndSum(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	anna, _ := repo.CreateAuthor(ctx, "АННА Каренина", time.Now())
	bob, _ := repo.CreateAuthor(ctx, "Bob 100%", time.Now())

	insertRecord(t, repo, core.NewBudgetRecord{Year: 2020, Month: 5, Amount: 50, Type: core.TypeIncome, AuthorID: &anna.ID})
	insertRecord(t, repo, core.NewBudgetRecord{Year: 2020, Month: 5, Amount: 100, Type: core.TypeIncome, AuthorID: &bob.ID})
	insertRecord(t, repo, core.NewBudgetRecord{Year: 2020, Month: 1, Amount: 10, Type: core.TypeExpense})
	insertRecord(t, repo, core.NewBudgetRecord{Year: 2020, Month: 5, Amount: 50, Type: core.TypeCommission, AuthorID: &anna.ID})
	insertRecord(t, repo, core.NewBudgetRecord{Year: 2019, Month: 1, Amount: 999, Type: core.TypeIncome, AuthorID: &anna.ID})

	year := core.YearStatsParams{Year: 2020}
	byName := core.YearStatsParams{Year: 2020, Name: "анна"}
	percent := core.YearStatsParams{Year: 2020, Name: "%"}

	err := repo.ReadTx(ctx, func(r ports.RecordReader) error {
		items, err := r.SelectRecords(ctx, year.ItemsFilter(), core.Page{Limit: 10})
		if err != nil {
			return err
		}
		wantIDs := []int64{3, 2, 1, 4}
		if len(items) != len(wantIDs) {
			t.Fatalf("expected %d items, got %d", len(wantIDs), len(items))
		}
		for i, id := range wantIDs {
			if items[i].ID != id {
				t.Fatalf("position %d: expected id %d, got %d", i, id, items[i].ID)
			}
		}
		if items[0].Author != nil || items[1].Author == nil || items[1].Author.FullName != "Bob 100%" {
			t.Fatalf("authors not joined correctly: %+v / %+v", items[0].Author, items[1].Author)
		}

		page, err := r.SelectRecords(ctx, year.ItemsFilter(), core.Page{Limit: 2, Offset: 1})
		if err != nil {
			return err
		}
		if len(page) != 2 || page[0].ID != 2 || page[1].ID != 1 {
			t.Fatalf("unexpected page %+v", page)
		}

		empty, err := r.SelectRecords(ctx, year.ItemsFilter(), core.Page{Limit: 0})
		if err != nil {
			return err
		}
		if len(empty) != 0 {
			t.Fatalf("limit 0 must return no rows, got %d", len(empty))
		}

		n, err := r.CountRecords(ctx, byName.ItemsFilter())
		if err != nil {
			return err
		}
		if n != 2 {
			t.Fatalf("expected 2 records for анна (case-insensitive), got %d", n)
		}

		n, err = r.CountRecords(ctx, percent.ItemsFilter())
		if err != nil {
			return err
		}
		if n != 1 {
			t.Fatalf("%% must match literally, got %d", n)
		}

		sums, err := r.SumByType(ctx, byName.BreakdownFilter())
		if err != nil {
			return err
		}
		if len(sums) != 3 || sums[core.TypeIncome] != 150 || sums[core.TypeExpense] != 10 || sums[core.TypeCommission] != 50 {
			t.Fatalf("unexpected sums %v", sums)
		}

		none, err := r.SumByType(ctx, core.YearStatsParams{Year: 1990}.BreakdownFilter())
		if err != nil {
			return err
		}
		if len(none) != 0 {
			t.Fatalf("expected no sums for empty year, got %v", none)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("read tx: %v", err)
	}

	rec, found, err := repo.GetRecord(ctx, 1)
	if err != nil || !found || rec.Author == nil || rec.Author.ID != anna.ID {
		t.Fatalf("get record: %+v found=%v err=%v", rec, found, err)
	}
	if _, found, _ := repo.GetRecord(ctx, 100); found {
		t.Fatalf("unexpected record 100")
	}
}

type unknownClause struct{}

func (unknownClause) Matches(core.BudgetRecord) bool { return true }

func TestWhereClauseRejectsUnknownClause(t *testing.T) {
	if _, _, err := whereClause(core.NewRecordFilter().Where(unknownClause{})); err == nil {
		t.Fatal("expected error for unsupported clause")
	}
	where, args, err := whereClause(core.NewRecordFilter())
	if err != nil || where != "" || len(args) != 0 {
		t.Fatalf("empty filter: where=%q args=%v err=%v", where, args, err)
	}
}

func TestWriteTxResolvesAuthor(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	a, err := repo.CreateAuthor(ctx, "Анна", time.Now())
	if err != nil {
		t.Fatalf("create author: %v", err)
	}

	err = repo.WriteTx(ctx, func(tx ports.RecordTx) error {
		got, found, err := tx.GetAuthor(ctx, a.ID)
		if err != nil || !found || got.FullName != "Анна" {
			t.Errorf("GetAuthor in tx: %+v found=%v err=%v", got, found, err)
		}
		if _, found, err := tx.GetAuthor(ctx, a.ID+1); err != nil || found {
			t.Errorf("missing author in tx: found=%v err=%v", found, err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("write tx: %v", err)
	}
}

func TestReadTxDoesNotWaitForWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "budget.db")
	repo, err := NewSQLiteRepository(path)
	if err != nil {
		t.Fatalf("new repository: %v", err)
	}
	defer repo.Close()
	insertRecord(t, repo, core.NewBudgetRecord{Year: 2020, Month: 1, Amount: 5, Type: core.TypeIncome})

	other, err := sql.Open("sqlite", DSN(path))
	if err != nil {
		t.Fatalf("open second handle: %v", err)
	}
	defer other.Close()
	writer, err := other.BeginTx(context.Background(), nil)
	if err != nil {
		t.Fatalf("begin writer: %v", err)
	}
	defer writer.Rollback()

	start := time.Now()
	var count int64
	err = repo.ReadTx(context.Background(), func(r ports.RecordReader) error {
		var err error
		count, err = r.CountRecords(context.Background(), core.NewRecordFilter())
		return err
	})
	if err != nil || count != 1 {
		t.Fatalf("read while writer holds the lock: count=%d err=%v", count, err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("read transaction waited %v for the writer", elapsed)
	}
}

func TestFromClauseJoinsAuthorOnlyForNameFilter(t *testing.T) {
	year := core.NewRecordFilter().Where(core.YearIs{Year: 2020})
	if strings.Contains(fromClause(year), "JOIN") {
		t.Fatalf("year filter should not join author: %q", fromClause(year))
	}
	named := year.Where(core.AuthorNameContains{Pattern: "ан"})
	if !strings.Contains(fromClause(named), "LEFT JOIN author") {
		t.Fatalf("name filter must join author: %q", fromClause(named))
	}
}
