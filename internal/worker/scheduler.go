package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"ledger/internal/amqp"
	"ledger/internal/core"
	"ledger/internal/services"
	"ledger/internal/store"
)

// JobPublisher enqueues materialization jobs.
type JobPublisher interface {
	PublishMaterializeJob(ctx context.Context, job *amqp.MaterializeJob) error
}

// Scheduler triggers materialization for every user with active recurring
// definitions on a fixed interval. With a publisher it fans out one job per
// user; without one it processes users in-process.
type Scheduler struct {
	users     store.UserLister
	processor *services.RecurringProcessor
	publisher JobPublisher
	interval  time.Duration
	today     func() core.Date
}

func NewScheduler(users store.UserLister, processor *services.RecurringProcessor, publisher JobPublisher, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Scheduler{
		users:     users,
		processor: processor,
		publisher: publisher,
		interval:  interval,
		today:     core.Today,
	}
}

// Run ticks immediately and then every interval until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	slog.InfoContext(ctx, "Recurring scheduler started",
		"interval", s.interval.String(),
		"queued", s.publisher != nil)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if err := s.Tick(ctx); err != nil {
			slog.ErrorContext(ctx, "Recurring tick failed", "error", err)
		}
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Recurring scheduler stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// Tick runs a single scheduling pass for today.
func (s *Scheduler) Tick(ctx context.Context) error {
	today := s.today()
	if s.publisher == nil {
		_, err := s.processor.ProcessAll(ctx, today)
		return err
	}

	users, err := s.users.ActiveRecurringUsers(ctx)
	if err != nil {
		return fmt.Errorf("list users with recurring definitions: %w", err)
	}

	var errs []error
	for _, userID := range users {
		if err := s.publisher.PublishMaterializeJob(ctx, amqp.NewMaterializeJob(userID, today)); err != nil {
			errs = append(errs, fmt.Errorf("user %s: %w", userID, err))
		}
	}
	slog.InfoContext(ctx, "Materialization jobs published",
		"date", today.String(),
		"users", len(users),
		"failed", len(errs))
	return errors.Join(errs...)
}
