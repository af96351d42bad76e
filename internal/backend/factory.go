package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"ledger/internal/amqp"
	"ledger/internal/services"
	"ledger/internal/storage"
	"ledger/internal/storage/memory"
	"ledger/internal/store"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger,
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	if config.DayPolicy == "" {
		config.DayPolicy = services.PolicyObserved
	}
	engine, err := services.NewRecurrenceEngineForPolicy(config.DayPolicy)
	if err != nil {
		return nil, err
	}

	var result *Result
	switch config.Type {
	case SQLiteBackend:
		result, err = f.createSQLiteBackend(config)
	case MemoryBackend:
		result, err = f.createMemoryBackend()
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
	if err != nil {
		return nil, err
	}

	result.Ledger = services.NewLedgerService(result.Store)
	result.Processor = services.NewRecurringProcessor(result.Store, engine, config.MarkerRetryAttempts)
	f.attachAMQP(result, config)

	f.logger.InfoContext(ctx, "Initialized backend",
		"backend", config.Type.String(),
		"day_policy", string(config.DayPolicy),
		"amqp_enabled", result.AMQP != nil)
	return result, nil
}

func (f *DefaultFactory) createSQLiteBackend(config Config) (*Result, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)
	return &Result{
		Store:   repo,
		Cleanup: repo.Close,
		pingers: []func(context.Context) error{repo.Ping},
	}, nil
}

func (f *DefaultFactory) createMemoryBackend() (*Result, error) {
	st := memory.New()
	f.logger.Warn("Using memory backend, data is lost on restart")
	return &Result{
		Store:   st,
		Cleanup: st.Close,
	}, nil
}

// attachAMQP connects the optional broker. A broker that cannot be reached
// is logged and skipped, so binaries fall back to in-process processing.
func (f *DefaultFactory) attachAMQP(result *Result, config Config) {
	if config.AMQPURL == "" {
		return
	}

	client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
	if err != nil {
		f.logger.Warn("Failed to initialize AMQP client, continuing without queue", "error", err)
		return
	}
	f.logger.Info("Initialized AMQP client",
		"exchange", config.AMQPExchange,
		"queue", config.AMQPQueue)

	result.AMQP = client
	result.pingers = append(result.pingers, func(context.Context) error { return client.Ping() })

	closeStore := result.Cleanup
	result.Cleanup = func() error {
		return errors.Join(client.Close(), closeStore())
	}
}

var (
	_ store.Store = (*storage.SQLiteRepository)(nil)
	_ store.Store = (*memory.Store)(nil)
)
