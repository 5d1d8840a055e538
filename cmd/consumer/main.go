package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"example.com/smartroutine/internal/config"
	"example.com/smartroutine/internal/consumer"
	"example.com/smartroutine/internal/logging"
	httptransport "example.com/smartroutine/internal/transport/http"
)

func main() {
	cfg := config.Load()
	logger := logging.Must(cfg.Env, cfg.LogLevel).Named("consumer")
	defer func() { _ = logger.Sync() }()

	if !cfg.UsesPostgres() {
		logger.Fatal("POSTGRES_URL is required for the audit consumer")
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

	reader := consumer.NewReader(cfg.KafkaBrokers, cfg.ConsumerGroupID, cfg.ConsumerTopics)
	defer reader.Close()
	proc := consumer.NewProcessor(reader, consumer.NewAuditLogHandler(pool), consumer.WithLogger(logger))

	logger.Info("consumer started",
		zap.Strings("topics", cfg.ConsumerTopics),
		zap.String("group", cfg.ConsumerGroupID))
	if err := proc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("consumer stopped with error", zap.Error(err))
		stop()
		os.Exit(1)
	}
	logger.Info("consumer shutdown complete")
}
