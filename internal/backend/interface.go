package backend

import (
	"context"

	"budget/internal/amqp"
	"budget/internal/core"
	"budget/internal/ports"
	"budget/internal/services"
)

// Store is the record store every backend provides
type Store interface {
	ports.Store
	Ping(ctx context.Context) error
	GetRecord(ctx context.Context, id int64) (core.BudgetRecord, bool, error)
}

// CleanupFunc releases resources held by a backend
type CleanupFunc func() error

// BackendResult holds the wired store, its services and the optional event
// client. Events is nil when AMQP is not configured or unreachable.
type BackendResult struct {
	Store   Store
	Budget  *services.BudgetService
	Authors *services.AuthorService
	Events  *amqp.Client
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// Memory specific
	DataDirectory string

	// Optional record events
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// RequireEvents makes an AMQP connection failure fatal
	RequireEvents bool
}

type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

func (bt BackendType) String() string {
	return string(bt)
}

func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
