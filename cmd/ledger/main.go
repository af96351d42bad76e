package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"ledger/internal/cli"
	apphttp "ledger/internal/http"
	"ledger/internal/log"
	"ledger/internal/middleware/ratelimit"
)

func main() {
	cfg, logger := cli.Bootstrap(log.ComponentApp)
	logger.Info("Starting ledger server", "port", cfg.Port, "backend", cfg.DataBackend)

	result := cli.MustOpenBackend(context.Background(), cfg, logger)

	limit := ratelimit.DefaultConfig()
	limit.RequestsPerWindow = cfg.RateLimitPerMinute

	srv := apphttp.NewServer(apphttp.Options{
		Addr:             cfg.Addr(),
		Ledger:           result.Ledger,
		Processor:        result.Processor,
		Logger:           logger.WithComponent(log.ComponentHTTP),
		SessionTTL:       cfg.SessionTTL,
		SessionCacheSize: cfg.SessionCacheSize,
		CashFlowMonths:   cfg.CashFlowMonths,
		RequestTimeout:   cfg.RequestTimeout,
		RateLimit:        limit,
		Ready:            result.Ready,
	})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		if err := result.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", "error", err)
		}
	})

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		_ = result.Cleanup()
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
