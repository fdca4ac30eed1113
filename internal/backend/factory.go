package backend

import (
	"context"
	"errors"
	"fmt"

	"budget/internal/amqp"
	"budget/internal/log"
	"budget/internal/services"
	"budget/internal/storage"
	"budget/internal/storage/memory"
)

type DefaultFactory struct {
	logger *log.Logger

	// dialEvents is replaced in tests
	dialEvents func(url, exchange, queue string) (*amqp.Client, error)
}

func NewFactory(logger *log.Logger) *DefaultFactory {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &DefaultFactory{
		logger:     logger.WithComponent(log.ComponentBackend),
		dialEvents: amqp.NewClient,
	}
}

// CreateBackend opens the configured store, connects the optional event
// client and wires the services on top.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		store   Store
		cleanup []CleanupFunc
	)
	switch config.Type {
	case SQLiteBackend:
		repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		store = repo
		cleanup = append(cleanup, repo.Close)
		f.logger.InfoContext(ctx, "Initialized SQLite backend", "db_path", config.SQLiteDBPath)
	case MemoryBackend:
		dataDir := config.DataDirectory
		if dataDir == "" {
			dataDir = "data"
		}
		mem := memory.NewFromFiles(dataDir)
		store = mem
		cleanup = append(cleanup, mem.Close)
		f.logger.InfoContext(ctx, "Initialized memory backend", "data_directory", dataDir)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}

	events, err := f.connectEvents(ctx, config)
	if err != nil {
		_ = runCleanup(cleanup)
		return nil, err
	}

	res := &BackendResult{
		Store:   store,
		Authors: services.NewAuthorService(store),
		Events:  events,
	}
	if events != nil {
		// closed before the store so in-flight publishes finish first
		cleanup = append([]CleanupFunc{events.Close}, cleanup...)
		res.Budget = services.NewBudgetService(store, events)
	} else {
		res.Budget = services.NewBudgetService(store, nil)
	}
	res.Cleanup = func() error { return runCleanup(cleanup) }

	return res, nil
}

func (f *DefaultFactory) connectEvents(ctx context.Context, config Config) (*amqp.Client, error) {
	if config.AMQPURL == "" {
		return nil, nil
	}

	client, err := f.dialEvents(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
	if err != nil {
		if config.RequireEvents {
			return nil, fmt.Errorf("failed to initialize AMQP client: %w", err)
		}
		f.logger.WarnContext(ctx, "Failed to initialize AMQP client, continuing without record events",
			log.FieldError, err.Error())
		return nil, nil
	}

	f.logger.InfoContext(ctx, "Initialized AMQP client",
		"exchange", config.AMQPExchange,
		"queue", config.AMQPQueue)
	return client, nil
}

func runCleanup(fns []CleanupFunc) error {
	var errs []error
	for _, fn := range fns {
		if err := fn(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
