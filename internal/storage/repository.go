package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"budget/internal/core"
	"budget/internal/ports"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db            *sql.DB
	queries       *Queries
	schemaVersion uint
}

var _ ports.Store = (*SQLiteRepository)(nil)

// DSN returns the driver name for dbPath with the pragmas the repository relies on.
// Write transactions take the write lock at BEGIN; read-only ones do not.
func DSN(dbPath string) string {
	if strings.Contains(dbPath, "?") {
		return dbPath
	}
	return dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_txlock=immediate"
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	if err := registerFuncs(); err != nil {
		return nil, fmt.Errorf("register sql functions: %w", err)
	}

	dsn := DSN(dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	// SQLite allows one writer; a single connection serializes units of work
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	version, dirty, err := MigrationVersion(dsn)
	if err != nil {
		db.Close()
		return nil, err
	}
	if dirty {
		db.Close()
		return nil, fmt.Errorf("database schema version %d is dirty", version)
	}

	return &SQLiteRepository{
		db:            db,
		queries:       New(db),
		schemaVersion: version,
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// SchemaVersion is the migration version applied when the repository opened.
func (r *SQLiteRepository) SchemaVersion() uint {
	return r.schemaVersion
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// CreateAuthor implements ports.AuthorWriter
func (r *SQLiteRepository) CreateAuthor(ctx context.Context, fullName string, createdAt time.Time) (core.Author, error) {
	row, err := r.queries.CreateAuthor(ctx, CreateAuthorParams{
		FullName:  fullName,
		CreatedAt: createdAt.UTC().Format(createdAtLayout),
	})
	if err != nil {
		return core.Author{}, fmt.Errorf("create author: %w", err)
	}

	author, err := row.toCore()
	if err != nil {
		return core.Author{}, err
	}

	slog.InfoContext(ctx, "Author saved to SQLite", "id", author.ID)
	return author, nil
}

// GetAuthor implements ports.AuthorReader
func (r *SQLiteRepository) GetAuthor(ctx context.Context, id int64) (core.Author, bool, error) {
	return lookupAuthor(ctx, r.queries, id)
}

// GetRecord returns a single record with its author joined in.
func (r *SQLiteRepository) GetRecord(ctx context.Context, id int64) (core.BudgetRecord, bool, error) {
	row, err := r.queries.GetBudget(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.BudgetRecord{}, false, nil
	}
	if err != nil {
		return core.BudgetRecord{}, false, fmt.Errorf("get budget record %d: %w", id, err)
	}
	rec, err := row.toCore()
	if err != nil {
		return core.BudgetRecord{}, false, err
	}
	return rec, true, nil
}

// WriteTx implements ports.Store. fn's error rolls the transaction back.
func (r *SQLiteRepository) WriteTx(ctx context.Context, fn func(tx ports.RecordTx) error) error {
	return r.inTx(ctx, func(q *Queries) error {
		return fn(&txView{q: q})
	})
}

// ReadTx implements ports.Store. The transaction is read-only and always
// rolled back.
func (r *SQLiteRepository) ReadTx(ctx context.Context, fn func(rd ports.RecordReader) error) error {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return fmt.Errorf("begin read transaction: %w", err)
	}
	defer tx.Rollback()

	return fn(&txView{q: r.queries.WithTx(tx)})
}

func (r *SQLiteRepository) inTx(ctx context.Context, fn func(q *Queries) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(r.queries.WithTx(tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			slog.ErrorContext(ctx, "Rollback failed", "error", rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// txView exposes the record ports over a transaction-bound Queries.
type txView struct {
	q *Queries
}

func (t *txView) GetAuthor(ctx context.Context, id int64) (core.Author, bool, error) {
	return lookupAuthor(ctx, t.q, id)
}

func (t *txView) InsertRecord(ctx context.Context, in core.NewBudgetRecord) (core.BudgetRecord, error) {
	var authorID sql.NullInt64
	if in.AuthorID != nil {
		authorID = sql.NullInt64{Int64: *in.AuthorID, Valid: true}
	}

	row, err := t.q.CreateBudget(ctx, CreateBudgetParams{
		Year:     int64(in.Year),
		Month:    int64(in.Month),
		Amount:   in.Amount,
		Type:     string(in.Type),
		AuthorID: authorID,
	})
	if err != nil {
		return core.BudgetRecord{}, fmt.Errorf("create budget record: %w", err)
	}

	slog.InfoContext(ctx, "Budget record saved to SQLite",
		"id", row.ID,
		"year", row.Year,
		"month", row.Month,
		"amount", row.Amount,
		"type", row.Type)

	return row.toCore(), nil
}

func (t *txView) CountRecords(ctx context.Context, f core.RecordFilter) (int64, error) {
	n, err := t.q.CountBudgets(ctx, f)
	if err != nil {
		return 0, fmt.Errorf("count budget records: %w", err)
	}
	return n, nil
}

func (t *txView) SelectRecords(ctx context.Context, f core.RecordFilter, page core.Page) ([]core.BudgetRecord, error) {
	rows, err := t.q.ListBudgets(ctx, f, page.Limit, page.Offset)
	if err != nil {
		return nil, fmt.Errorf("list budget records: %w", err)
	}

	records := make([]core.BudgetRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := row.toCore()
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func (t *txView) SumByType(ctx context.Context, f core.RecordFilter) (map[core.BudgetType]int64, error) {
	sums, err := t.q.SumBudgetsByType(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("sum budget records by type: %w", err)
	}

	out := make(map[core.BudgetType]int64, len(sums))
	for _, s := range sums {
		out[core.BudgetType(s.Type)] = s.Total
	}
	return out, nil
}

func lookupAuthor(ctx context.Context, q *Queries, id int64) (core.Author, bool, error) {
	row, err := q.GetAuthor(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Author{}, false, nil
	}
	if err != nil {
		return core.Author{}, false, fmt.Errorf("get author %d: %w", id, err)
	}
	author, err := row.toCore()
	if err != nil {
		return core.Author{}, false, err
	}
	return author, true, nil
}
