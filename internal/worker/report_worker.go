package worker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"budget/internal/amqp"
	"budget/internal/core"
	"budget/internal/log"
)

type (
	RecordGetter interface {
		GetRecord(ctx context.Context, id int64) (core.BudgetRecord, bool, error)
	}

	YearReporter interface {
		GetYearStats(ctx context.Context, p core.YearStatsParams) (core.YearReport, error)
	}

	// Consumer delivers record-created events until ctx is cancelled.
	Consumer interface {
		ConsumeRecordCreated(ctx context.Context, handler func(context.Context, *amqp.RecordCreatedMessage) error) error
	}
)

// YearSummary is the last breakdown the worker computed for a year.
type YearSummary struct {
	Year        int
	Records     int64
	Amount      int64
	TotalByType map[core.BudgetType]int64
	UpdatedAt   time.Time
}

// ReportWorker recomputes a year's breakdown whenever a record of that year
// is created and keeps the latest result per year.
type ReportWorker struct {
	records        RecordGetter
	reports        YearReporter
	logger         *log.Logger
	reportInterval time.Duration
	now            func() time.Time

	mu        sync.RWMutex
	summaries map[int]YearSummary
}

func NewReportWorker(records RecordGetter, reports YearReporter, logger *log.Logger, reportInterval time.Duration) *ReportWorker {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &ReportWorker{
		records:        records,
		reports:        reports,
		logger:         logger.WithComponent(log.ComponentWorker),
		reportInterval: reportInterval,
		now:            time.Now,
		summaries:      make(map[int]YearSummary),
	}
}

// HandleRecordCreated processes a single record-created message. A record
// that no longer exists is acknowledged without work; store errors are
// returned so the message is redelivered.
func (w *ReportWorker) HandleRecordCreated(ctx context.Context, msg *amqp.RecordCreatedMessage) error {
	w.logger.DebugContext(ctx, "Processing record created message",
		log.FieldRecordID, msg.ID,
		log.FieldYear, msg.Year)

	rec, found, err := w.records.GetRecord(ctx, msg.ID)
	if err != nil {
		return fmt.Errorf("get record %d: %w", msg.ID, err)
	}
	if !found {
		w.logger.WarnContext(ctx, "Record from message not found, skipping",
			log.FieldRecordID, msg.ID)
		return nil
	}

	year := rec.Year
	if year != msg.Year {
		w.logger.WarnContext(ctx, "Message year does not match stored record",
			log.FieldRecordID, msg.ID,
			"message_year", msg.Year,
			"record_year", rec.Year)
	}

	rep, err := w.reports.GetYearStats(ctx, core.YearStatsParams{Year: year})
	if err != nil {
		return fmt.Errorf("refresh year %d: %w", year, err)
	}

	summary := YearSummary{
		Year:        year,
		Records:     rep.Total,
		Amount:      rep.SumAll(),
		TotalByType: rep.TotalByType,
		UpdatedAt:   w.now(),
	}
	w.mu.Lock()
	w.summaries[year] = summary
	w.mu.Unlock()

	w.logger.InfoContext(ctx, "Year breakdown refreshed",
		append([]any{
			log.FieldRecordID, rec.ID,
			log.FieldYear, year,
			log.FieldTotal, rep.Total,
			log.FieldAmount, summary.Amount,
		}, typeAttrs(rep.TotalByType)...)...)

	return nil
}

// Summary returns the last breakdown computed for year.
func (w *ReportWorker) Summary(year int) (YearSummary, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	s, ok := w.summaries[year]
	return s, ok
}

// Run consumes events and, when a report interval is set, periodically logs
// the known summaries. It returns nil once ctx is cancelled.
func (w *ReportWorker) Run(ctx context.Context, consumer Consumer) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return consumer.ConsumeRecordCreated(gctx, w.HandleRecordCreated)
	})

	if w.reportInterval > 0 {
		g.Go(func() error {
			ticker := time.NewTicker(w.reportInterval)
			defer ticker.Stop()
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-ticker.C:
					w.logSummaries(gctx)
				}
			}
		})
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func (w *ReportWorker) logSummaries(ctx context.Context) {
	w.mu.RLock()
	years := make([]int, 0, len(w.summaries))
	for y := range w.summaries {
		years = append(years, y)
	}
	sort.Ints(years)
	snapshot := make([]YearSummary, 0, len(years))
	for _, y := range years {
		snapshot = append(snapshot, w.summaries[y])
	}
	w.mu.RUnlock()

	for _, s := range snapshot {
		w.logger.InfoContext(ctx, "Year summary",
			append([]any{
				log.FieldYear, s.Year,
				log.FieldTotal, s.Records,
				log.FieldAmount, s.Amount,
				"updated_at", s.UpdatedAt.Format(time.RFC3339),
			}, typeAttrs(s.TotalByType)...)...)
	}
}

func typeAttrs(m map[core.BudgetType]int64) []any {
	attrs := make([]any, 0, len(m)*2)
	for _, t := range core.BudgetTypes() {
		if v, ok := m[t]; ok {
			attrs = append(attrs, "sum_"+t.String(), v)
		}
	}
	return attrs
}
