package main

import (
	"context"
	"errors"
	"os"
	"time"

	"ledger/internal/cli"
	"ledger/internal/log"
	"ledger/internal/worker"
)

func main() {
	cfg, logger := cli.Bootstrap(log.ComponentWorker)
	logger.Info("Starting ledger-worker")

	if !cfg.AMQPEnabled() {
		logger.Error("AMQP_URL is required for ledger-worker")
		os.Exit(1)
	}

	result := cli.MustOpenBackend(context.Background(), cfg, logger)
	if result.AMQP == nil {
		logger.Error("AMQP broker unreachable", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		_ = result.Cleanup()
		os.Exit(1)
	}

	recurringWorker := worker.NewRecurringWorker(result.Processor)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	err := result.AMQP.ConsumeMaterializeJobs(ctx, recurringWorker.HandleJob)
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", "error", err)
		_ = result.Cleanup()
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	if err := result.Cleanup(); err != nil {
		logger.Error("Backend cleanup error", "error", err)
	}
	logger.Info("Worker shutdown complete")
}
