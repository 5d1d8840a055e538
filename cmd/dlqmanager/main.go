package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"example.com/smartroutine/internal/config"
	"example.com/smartroutine/internal/logging"
	"example.com/smartroutine/internal/outbox"
	httptransport "example.com/smartroutine/internal/transport/http"
)

func main() {
	cfg := config.Load()
	logger := logging.Must(cfg.Env, cfg.LogLevel).Named("dlq")
	defer func() { _ = logger.Sync() }()

	if !cfg.UsesPostgres() {
		logger.Fatal("POSTGRES_URL is required for the DLQ manager")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		logger.Fatal("connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	metricsSrv := httptransport.NewServer(httptransport.DefaultServerConfig(cfg.MetricsAddress), promhttp.Handler())
	go func() {
		if err := httptransport.Run(ctx, metricsSrv, 0, logger); err != nil {
			logger.Warn("metrics server error", zap.Error(err))
		}
	}()

	manager := outbox.NewDLQManager(pool, cfg.DLQMaxRetries, cfg.DLQBaseDelay, logger)
	logger.Info("dlq manager started",
		zap.Duration("interval", cfg.DLQPollInterval),
		zap.Int("max_retries", cfg.DLQMaxRetries),
		zap.Int("batch_size", cfg.DLQBatchSize))
	manager.Run(ctx, cfg.DLQPollInterval, cfg.DLQBatchSize)
	logger.Info("dlq manager stopped")
}
