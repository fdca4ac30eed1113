package ports

import (
	"context"
	"time"

	"budget/internal/core"
)

// Ports for the record store.
type (
	AuthorWriter interface {
		CreateAuthor(ctx context.Context, fullName string, createdAt time.Time) (core.Author, error)
	}

	// AuthorReader resolves weak author references. A missing author is
	// reported with found=false and a nil error.
	AuthorReader interface {
		GetAuthor(ctx context.Context, id int64) (a core.Author, found bool, err error)
	}

	// RecordReader answers filtered reads over budget records.
	RecordReader interface {
		AuthorReader

		// CountRecords counts records matching f.
		CountRecords(ctx context.Context, f core.RecordFilter) (int64, error)

		// SelectRecords returns records matching f ordered by month ascending,
		// amount descending, then insertion order, windowed by page. Authors
		// are joined in.
		SelectRecords(ctx context.Context, f core.RecordFilter, page core.Page) ([]core.BudgetRecord, error)

		// SumByType sums amounts of records matching f grouped by type.
		SumByType(ctx context.Context, f core.RecordFilter) (map[core.BudgetType]int64, error)
	}

	// RecordTx is the view of the store inside a write unit of work.
	RecordTx interface {
		AuthorReader
		InsertRecord(ctx context.Context, r core.NewBudgetRecord) (core.BudgetRecord, error)
	}

	// Store runs units of work against the record store.
	Store interface {
		AuthorWriter
		WriteTx(ctx context.Context, fn func(tx RecordTx) error) error
		ReadTx(ctx context.Context, fn func(r RecordReader) error) error
	}
)
