package backend

import (
	"context"

	"ledger/internal/amqp"
	"ledger/internal/services"
	"ledger/internal/store"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// Result is everything a binary needs to serve a ledger: the store, the
// services built over it and an optional job publisher.
type Result struct {
	Store     store.Store
	Ledger    *services.LedgerService
	Processor *services.RecurringProcessor
	// AMQP is nil when no broker is configured or it was unreachable.
	AMQP      *amqp.Client
	Cleanup   CleanupFunc

	pingers []func(context.Context) error
}

// Ready reports whether the store and broker are reachable.
func (r *Result) Ready(ctx context.Context) error {
	for _, ping := range r.pingers {
		if err := ping(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Factory creates backends based on configuration
type Factory interface {
	// CreateBackend creates a backend instance based on the provided config
	CreateBackend(ctx context.Context, config Config) (*Result, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// Optional broker; an empty URL leaves Result.Publisher nil
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Recurring materialization
	DayPolicy           services.DayPolicy
	MarkerRetryAttempts int
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
