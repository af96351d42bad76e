package main

import (
	"context"
	"time"

	"ledger/internal/cli"
	"ledger/internal/log"
	"ledger/internal/worker"
)

func main() {
	cfg, logger := cli.Bootstrap(log.ComponentRecurring)
	logger.Info("Starting recurring-worker")

	result := cli.MustOpenBackend(context.Background(), cfg, logger)

	// Without a broker the scheduler materializes every user in-process;
	// with one it only publishes jobs for ledger-worker to consume.
	var publisher worker.JobPublisher
	if result.AMQP != nil {
		publisher = result.AMQP
		logger.Info("Publishing materialization jobs", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	} else {
		logger.Info("AMQP disabled - processing recurring transactions in-process")
	}

	scheduler := worker.NewScheduler(result.Store, result.Processor, publisher, cfg.RecurringInterval)
	logger.Info("Recurring processor configured",
		"interval", cfg.RecurringInterval,
		"day_policy", cfg.RecurringDayPolicy,
		"backend", cfg.DataBackend)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	if err := scheduler.Run(ctx); err != nil {
		logger.Error("Scheduler stopped with error", "error", err)
	}

	cli.WaitForShutdown(ctx, done)
	if err := result.Cleanup(); err != nil {
		logger.Error("Backend cleanup error", "error", err)
	}
	logger.Info("Recurring-worker shutdown complete")
}
