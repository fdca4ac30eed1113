package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"budget/internal/amqp"
	"budget/internal/core"
	"budget/internal/log"
	"budget/internal/services"
	"budget/internal/storage/memory"
)

func quietLogger() *log.Logger {
	return log.New(log.Config{Level: slog.LevelError, Output: io.Discard})
}

func seededWorker(t *testing.T) (*ReportWorker, *memory.Store) {
	t.Helper()
	store := memory.New()
	svc := services.NewBudgetService(store, nil)
	for _, in := range []core.NewBudgetRecord{
		{Year: 2020, Month: 5, Amount: 100, Type: core.TypeIncome},
		{Year: 2020, Month: 1, Amount: 10, Type: core.TypeExpense},
		{Year: 2020, Month: 5, Amount: 50, Type: core.TypeIncome},
	} {
		if _, err := svc.AddRecord(context.Background(), in); err != nil {
			t.Fatal(err)
		}
	}
	return NewReportWorker(store, svc, quietLogger(), 0), store
}

func TestHandleRecordCreated(t *testing.T) {
	w, _ := seededWorker(t)
	fixed := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return fixed }

	if err := w.HandleRecordCreated(context.Background(), amqp.NewRecordCreatedMessage(3, 2020)); err != nil {
		t.Fatalf("HandleRecordCreated() error = %v", err)
	}

	s, ok := w.Summary(2020)
	if !ok {
		t.Fatal("no summary recorded for 2020")
	}
	if s.Records != 3 || s.Amount != 160 || s.TotalByType[core.TypeIncome] != 150 || s.TotalByType[core.TypeExpense] != 10 {
		t.Fatalf("unexpected summary: %+v", s)
	}
	if !s.UpdatedAt.Equal(fixed) {
		t.Fatalf("UpdatedAt = %v", s.UpdatedAt)
	}
}

func TestHandleRecordCreatedUsesStoredYear(t *testing.T) {
	w, _ := seededWorker(t)
	if err := w.HandleRecordCreated(context.Background(), amqp.NewRecordCreatedMessage(1, 1999)); err != nil {
		t.Fatalf("HandleRecordCreated() error = %v", err)
	}
	if _, ok := w.Summary(1999); ok {
		t.Fatal("summary must follow the stored record's year")
	}
	if _, ok := w.Summary(2020); !ok {
		t.Fatal("expected 2020 summary")
	}
}

func TestHandleRecordCreatedMissingRecord(t *testing.T) {
	w, _ := seededWorker(t)
	if err := w.HandleRecordCreated(context.Background(), amqp.NewRecordCreatedMessage(99, 2020)); err != nil {
		t.Fatalf("missing records are acknowledged, got %v", err)
	}
	if _, ok := w.Summary(2020); ok {
		t.Fatal("no summary expected for a missing record")
	}
}

type failingGetter struct{}

func (failingGetter) GetRecord(context.Context, int64) (core.BudgetRecord, bool, error) {
	return core.BudgetRecord{}, false, errors.New("database is locked")
}

func TestHandleRecordCreatedStoreError(t *testing.T) {
	store := memory.New()
	w := NewReportWorker(failingGetter{}, services.NewBudgetService(store, nil), quietLogger(), 0)
	if err := w.HandleRecordCreated(context.Background(), amqp.NewRecordCreatedMessage(1, 2020)); err == nil {
		t.Fatal("expected store errors to be returned for redelivery")
	}
}

type fakeConsumer struct {
	msgs []*amqp.RecordCreatedMessage
	errs []error
	err  error
}

func (f *fakeConsumer) ConsumeRecordCreated(ctx context.Context, handler func(context.Context, *amqp.RecordCreatedMessage) error) error {
	for _, m := range f.msgs {
		f.errs = append(f.errs, handler(ctx, m))
	}
	if f.err != nil {
		return f.err
	}
	<-ctx.Done()
	return ctx.Err()
}

func TestRunStopsOnCancel(t *testing.T) {
	w, _ := seededWorker(t)
	w.reportInterval = time.Millisecond
	consumer := &fakeConsumer{msgs: []*amqp.RecordCreatedMessage{amqp.NewRecordCreatedMessage(2, 2020)}}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, consumer) }()

	deadline := time.After(2 * time.Second)
	for {
		if _, ok := w.Summary(2020); ok {
			break
		}
		select {
		case <-deadline:
			t.Fatal("message was not processed")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() error = %v, want nil after cancel", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRunReturnsConsumerFailure(t *testing.T) {
	w, _ := seededWorker(t)
	consumer := &fakeConsumer{err: errors.New("message channel closed")}
	if err := w.Run(context.Background(), consumer); err == nil || err.Error() != "message channel closed" {
		t.Fatalf("Run() error = %v", err)
	}
}
