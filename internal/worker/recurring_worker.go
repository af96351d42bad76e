// Package worker runs recurring materialization outside the request path:
// a consumer for queued per-user jobs and a scheduler that produces them.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"ledger/internal/amqp"
	"ledger/internal/services"
	"ledger/internal/telemetry"
)

// RecurringWorker materializes recurring transactions for queued jobs.
type RecurringWorker struct {
	processor *services.RecurringProcessor
}

func NewRecurringWorker(processor *services.RecurringProcessor) *RecurringWorker {
	return &RecurringWorker{processor: processor}
}

// HandleJob runs one job. A partial materialization is not redelivered:
// its transactions are already stored, so running it again would create
// them a second time.
func (w *RecurringWorker) HandleJob(ctx context.Context, job *amqp.MaterializeJob) error {
	slog.InfoContext(ctx, "Processing materialization job",
		"message_id", job.MessageID,
		"user_id", job.UserID,
		"date", job.Date.String())

	m, err := w.processor.ProcessUser(ctx, job.UserID, job.Date)
	switch {
	case errors.Is(err, services.ErrPartialMaterialization):
		telemetry.JobsConsumed.WithLabelValues("dropped").Inc()
		return fmt.Errorf("user %s: %w: %w", job.UserID, err, amqp.ErrDropMessage)
	case err != nil:
		telemetry.JobsConsumed.WithLabelValues("requeued").Inc()
		return fmt.Errorf("user %s: %w", job.UserID, err)
	}

	telemetry.JobsConsumed.WithLabelValues("ok").Inc()
	slog.InfoContext(ctx, "Materialization job complete",
		"message_id", job.MessageID,
		"user_id", job.UserID,
		"created", len(m.NewTransactions))
	return nil
}
