package memory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"budget/internal/core"
	"budget/internal/ports"
)

func insert(t *testing.T, s *Store, r core.NewBudgetRecord) core.BudgetRecord {
	t.Helper()
	var out core.BudgetRecord
	err := s.WriteTx(context.Background(), func(tx ports.RecordTx) error {
		var err error
		out, err = tx.InsertRecord(context.Background(), r)
		return err
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	return out
}

func TestStoreInsertAndSelectOrder(t *testing.T) {
	s := New()
	ctx := context.Background()
	insert(t, s, core.NewBudgetRecord{Year: 2020, Month: 5, Amount: 50, Type: core.TypeIncome})
	insert(t, s, core.NewBudgetRecord{Year: 2020, Month: 5, Amount: 100, Type: core.TypeIncome})
	insert(t, s, core.NewBudgetRecord{Year: 2020, Month: 1, Amount: 10, Type: core.TypeExpense})
	insert(t, s, core.NewBudgetRecord{Year: 2020, Month: 5, Amount: 50, Type: core.TypeExpense})

	var got []core.BudgetRecord
	err := s.ReadTx(ctx, func(r ports.RecordReader) error {
		var err error
		got, err = r.SelectRecords(ctx, core.NewRecordFilter().Where(core.YearIs{Year: 2020}), core.Page{Limit: 10})
		return err
	})
	if err != nil {
		t.Fatalf("select: %v", err)
	}

	wantIDs := []int64{3, 2, 1, 4}
	if len(got) != len(wantIDs) {
		t.Fatalf("expected %d items, got %d", len(wantIDs), len(got))
	}
	for i, id := range wantIDs {
		if got[i].ID != id {
			t.Fatalf("position %d: expected id %d, got %d (%+v)", i, id, got[i].ID, got)
		}
	}
}

func TestStoreWriteTxRollsBackOnError(t *testing.T) {
	s := New()
	ctx := context.Background()
	boom := errors.New("boom")
	err := s.WriteTx(ctx, func(tx ports.RecordTx) error {
		if _, err := tx.InsertRecord(ctx, core.NewBudgetRecord{Year: 2020, Month: 1, Amount: 1, Type: core.TypeIncome}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if _, ok, _ := s.GetRecord(ctx, 1); ok {
		t.Fatalf("record must not be visible after a failed unit of work")
	}
}

func TestStoreJoinsAuthors(t *testing.T) {
	s := New()
	ctx := context.Background()
	a, _ := s.CreateAuthor(ctx, "Анна Иванова", time.Now())
	rec := insert(t, s, core.NewBudgetRecord{Year: 2021, Month: 2, Amount: 7, Type: core.TypeCommission, AuthorID: &a.ID})

	got, ok, err := s.GetRecord(ctx, rec.ID)
	if err != nil || !ok {
		t.Fatalf("get record: ok=%v err=%v", ok, err)
	}
	if got.Author == nil || got.Author.FullName != "Анна Иванова" {
		t.Fatalf("expected joined author, got %+v", got.Author)
	}
}

func TestNewFromFilesSeedsAuthors(t *testing.T) {
	dir := t.TempDir()
	s := NewFromFiles(dir)
	if _, ok, _ := s.GetAuthor(context.Background(), 1); ok {
		t.Fatalf("expected no authors without seed file")
	}

	if err := os.WriteFile(filepath.Join(dir, "seed_authors.txt"), []byte("# header\nAlice\nBob\nAlice\n\n"), 0o644); err != nil {
		t.Fatalf("write seed: %v", err)
	}
	s = NewFromFiles(dir)
	a, ok, _ := s.GetAuthor(context.Background(), 2)
	if !ok || a.FullName != "Bob" {
		t.Fatalf("expected Bob as author 2, got %+v ok=%v", a, ok)
	}
	if _, ok, _ := s.GetAuthor(context.Background(), 3); ok {
		t.Fatalf("duplicates must be dropped")
	}
}
