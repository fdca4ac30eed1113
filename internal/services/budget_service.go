package services

import (
	"context"
	"fmt"
	"log/slog"

	"budget/internal/core"
	"budget/internal/ports"
)

// RecordPublisher announces stored records to other processes.
type RecordPublisher interface {
	PublishRecordCreated(ctx context.Context, id int64, year int) error
}

// BudgetService implements the record write path and the year report.
type BudgetService struct {
	store     ports.Store
	publisher RecordPublisher
}

// NewBudgetService returns a service over store. publisher may be nil.
func NewBudgetService(store ports.Store, publisher RecordPublisher) *BudgetService {
	return &BudgetService{
		store:     store,
		publisher: publisher,
	}
}

// AddRecord stores a new budget record. An AuthorID that does not resolve
// is dropped and the record is stored without an author.
func (s *BudgetService) AddRecord(ctx context.Context, in core.NewBudgetRecord) (core.BudgetRecord, error) {
	var created core.BudgetRecord

	err := s.store.WriteTx(ctx, func(tx ports.RecordTx) error {
		var author *core.Author
		if in.AuthorID != nil {
			a, found, err := tx.GetAuthor(ctx, *in.AuthorID)
			if err != nil {
				return fmt.Errorf("resolve author: %w", err)
			}
			if found {
				author = &a
			} else {
				slog.WarnContext(ctx, "Author not found, storing record without author",
					"author_id", *in.AuthorID)
				in.AuthorID = nil
			}
		}

		rec, err := tx.InsertRecord(ctx, in)
		if err != nil {
			return err
		}
		rec.Author = author
		created = rec
		return nil
	})
	if err != nil {
		return core.BudgetRecord{}, fmt.Errorf("add budget record: %w", err)
	}

	// The record is committed; a failed announcement is not the caller's problem
	if err := s.publishRecordCreated(ctx, created); err != nil {
		slog.ErrorContext(ctx, "Failed to publish record created message",
			"id", created.ID, "error", err)
	}

	return created, nil
}

// GetYearStats builds the year report for p.
//
// Total and Items honour the name filter; TotalByType covers the whole year.
func (s *BudgetService) GetYearStats(ctx context.Context, p core.YearStatsParams) (core.YearReport, error) {
	report := core.YearReport{
		TotalByType: map[core.BudgetType]int64{},
		Items:       []core.BudgetRecord{},
	}

	itemsFilter := p.ItemsFilter()

	err := s.store.ReadTx(ctx, func(r ports.RecordReader) error {
		total, err := r.CountRecords(ctx, itemsFilter)
		if err != nil {
			return err
		}
		report.Total = total

		items, err := r.SelectRecords(ctx, itemsFilter, p.Page())
		if err != nil {
			return err
		}
		if items != nil {
			report.Items = items
		}

		sums, err := r.SumByType(ctx, p.BreakdownFilter())
		if err != nil {
			return err
		}
		for t, v := range sums {
			report.TotalByType[t] = v
		}
		return nil
	})
	if err != nil {
		return core.YearReport{}, fmt.Errorf("year stats %d: %w", p.Year, err)
	}

	return report, nil
}

func (s *BudgetService) publishRecordCreated(ctx context.Context, rec core.BudgetRecord) error {
	if s.publisher == nil {
		slog.DebugContext(ctx, "AMQP client not available, skipping record created message")
		return nil
	}
	return s.publisher.PublishRecordCreated(ctx, rec.ID, rec.Year)
}
