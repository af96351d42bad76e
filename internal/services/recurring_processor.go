package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"ledger/internal/core"
	"ledger/internal/store"
	"ledger/internal/telemetry"
)

// ErrPartialMaterialization means the transactions of a batch were stored
// but their markers could not be moved. Callers must re-read the recurring
// definitions before computing dues again.
var ErrPartialMaterialization = errors.New("recurring transactions stored but markers not updated")

// RecurringProcessor persists the output of the recurrence engine.
type RecurringProcessor struct {
	store         store.Store
	engine        *RecurrenceEngine
	markerRetries int
	retryDelay    time.Duration
}

// NewRecurringProcessor creates a processor that retries marker updates
// up to markerRetries extra times after the first failure.
func NewRecurringProcessor(st store.Store, engine *RecurrenceEngine, markerRetries int) *RecurringProcessor {
	if engine == nil {
		engine = NewRecurrenceEngine(nil)
	}
	if markerRetries < 0 {
		markerRetries = 0
	}
	return &RecurringProcessor{
		store:         st,
		engine:        engine,
		markerRetries: markerRetries,
		retryDelay:    200 * time.Millisecond,
	}
}

// Engine returns the engine used for due computation.
func (p *RecurringProcessor) Engine() *RecurrenceEngine {
	return p.engine
}

// Preview computes what would materialize for userID on today without writing.
func (p *RecurringProcessor) Preview(ctx context.Context, userID string, today core.Date) (Materialization, error) {
	defs, err := p.store.Recurring().List(ctx, userID)
	if err != nil {
		return NewMaterialization(userID, today), fmt.Errorf("list recurring: %w", err)
	}
	return p.engine.ComputeDue(userID, defs, today), nil
}

// ProcessUser re-reads userID's definitions, computes what is due on today
// and stores it. The returned materialization carries the stored
// transactions with their ids.
func (p *RecurringProcessor) ProcessUser(ctx context.Context, userID string, today core.Date) (Materialization, error) {
	m, err := p.Preview(ctx, userID, today)
	if err != nil {
		telemetry.RecurringRuns.WithLabelValues("error").Inc()
		return m, err
	}
	return p.Apply(ctx, m)
}

// Apply stores a computed materialization. If the batch insert fails no
// marker is touched. If the markers fail after the insert succeeded, the
// marker update alone is retried; a duplicate pending transaction is a
// lesser harm than a skipped one.
func (p *RecurringProcessor) Apply(ctx context.Context, m Materialization) (Materialization, error) {
	if m.Empty() {
		telemetry.RecurringRuns.WithLabelValues("noop").Inc()
		return m, nil
	}

	slog.InfoContext(ctx, "Materializing recurring transactions",
		"user_id", m.UserID,
		"due", len(m.NewTransactions),
		"date", m.Today.String())

	if atomic, ok := p.store.(store.AtomicMaterializer); ok {
		stored, err := atomic.Materialize(ctx, m.UserID, m.NewTransactions, m.MarkerUpdates)
		if err != nil {
			telemetry.RecurringRuns.WithLabelValues("error").Inc()
			return m, fmt.Errorf("materialize recurring: %w", err)
		}
		return p.done(ctx, m, stored), nil
	}

	stored, err := p.store.Transactions().InsertTransactions(ctx, m.UserID, m.NewTransactions)
	if err != nil {
		telemetry.RecurringRuns.WithLabelValues("error").Inc()
		return m, fmt.Errorf("insert recurring transactions: %w", err)
	}

	if err := p.updateMarkers(ctx, m.UserID, m.MarkerUpdates); err != nil {
		telemetry.RecurringPartialFailures.Inc()
		telemetry.RecurringRuns.WithLabelValues("partial").Inc()
		slog.ErrorContext(ctx, "Recurring markers left stale",
			"user_id", m.UserID,
			"inserted", len(stored),
			"error", err)
		m.NewTransactions = stored
		return m, fmt.Errorf("%w: %w", ErrPartialMaterialization, err)
	}

	return p.done(ctx, m, stored), nil
}

func (p *RecurringProcessor) done(ctx context.Context, m Materialization, stored []core.Transaction) Materialization {
	telemetry.RecurringMaterialized.Add(float64(len(stored)))
	telemetry.RecurringRuns.WithLabelValues("ok").Inc()
	slog.InfoContext(ctx, "Recurring materialization complete",
		"user_id", m.UserID,
		"created", len(stored))
	m.NewTransactions = stored
	return m
}

func (p *RecurringProcessor) updateMarkers(ctx context.Context, userID string, updates []core.MarkerUpdate) error {
	var err error
	for attempt := 0; attempt <= p.markerRetries; attempt++ {
		if attempt > 0 {
			slog.WarnContext(ctx, "Retrying recurring marker update",
				"user_id", userID,
				"attempt", attempt,
				"error", err)
			select {
			case <-ctx.Done():
				return errors.Join(err, ctx.Err())
			case <-time.After(p.retryDelay * time.Duration(attempt)):
			}
		}
		if err = p.store.Recurring().UpdateLastGenerated(ctx, userID, updates); err == nil {
			return nil
		}
	}
	return fmt.Errorf("update markers after %d attempts: %w", p.markerRetries+1, err)
}

// ProcessAll materializes dues for every user with an active definition.
// A failing user is logged and skipped; the returned error joins all failures.
func (p *RecurringProcessor) ProcessAll(ctx context.Context, today core.Date) (int, error) {
	users, err := p.store.ActiveRecurringUsers(ctx)
	if err != nil {
		return 0, fmt.Errorf("list recurring users: %w", err)
	}

	slog.InfoContext(ctx, "Processing recurring transactions",
		"users", len(users),
		"processing_date", today.String())

	created := 0
	var errs []error
	for _, userID := range users {
		m, err := p.ProcessUser(ctx, userID, today)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to process recurring transactions",
				"user_id", userID,
				"error", err)
			errs = append(errs, fmt.Errorf("user %s: %w", userID, err))
			if !errors.Is(err, ErrPartialMaterialization) {
				continue
			}
		}
		created += len(m.NewTransactions)
	}

	slog.InfoContext(ctx, "Recurring transaction processing complete",
		"created", created,
		"users", len(users))
	return created, errors.Join(errs...)
}
