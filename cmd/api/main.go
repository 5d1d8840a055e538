package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"example.com/smartroutine/internal/api"
	"example.com/smartroutine/internal/auth"
	"example.com/smartroutine/internal/blob"
	"example.com/smartroutine/internal/config"
	"example.com/smartroutine/internal/consumer"
	"example.com/smartroutine/internal/domain"
	"example.com/smartroutine/internal/identity"
	"example.com/smartroutine/internal/insights"
	"example.com/smartroutine/internal/live"
	"example.com/smartroutine/internal/logging"
	"example.com/smartroutine/internal/outbox"
	"example.com/smartroutine/internal/persistence/memory"
	"example.com/smartroutine/internal/persistence/migrations"
	"example.com/smartroutine/internal/persistence/postgres"
	"example.com/smartroutine/internal/recorder"
	"example.com/smartroutine/internal/service"
	httptransport "example.com/smartroutine/internal/transport/http"
)

type repositories interface {
	domain.ActivityRepository
	domain.GoalRepository
	domain.UserRepository
	domain.SessionRepository
}

func main() {
	cfg := config.Load()
	logger := logging.Must(cfg.Env, cfg.LogLevel)
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Error("api stopped", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		repos      repositories
		pool       *pgxpool.Pool
		dispatcher *outbox.Dispatcher
	)
	streaming := cfg.UsesPostgres() && cfg.OutboxEnabled && len(cfg.KafkaBrokers) > 0

	if cfg.UsesPostgres() {
		if err := migrations.Up(ctx, cfg.PostgresURL); err != nil {
			return fmt.Errorf("apply migrations: %w", err)
		}
		var err error
		pool, err = pgxpool.New(ctx, cfg.PostgresURL)
		if err != nil {
			return fmt.Errorf("connect to postgres: %w", err)
		}
		defer pool.Close()

		var opts []postgres.Option
		if !streaming {
			opts = append(opts, postgres.WithoutOutbox())
		}
		repos = postgres.NewRepository(pool, opts...)
	} else {
		logger.Warn("POSTGRES_URL is empty, records and tracking sessions are kept in memory; run a single replica")
		repos = memory.NewStore()
	}

	hub := live.NewHub(repos, repos, cfg.LiveResync, logger.Named("live"))

	var uploader domain.BlobStore
	if cfg.Blob.Endpoint != "" {
		store, err := blob.New(ctx, blob.Config(cfg.Blob))
		if err != nil {
			return fmt.Errorf("connect to evidence storage: %w", err)
		}
		uploader = store
	} else {
		logger.Info("BLOB_ENDPOINT is empty, evidence uploads are disabled")
	}

	var generator insights.Generator
	if cfg.GeminiAPIKey != "" {
		gemini, err := insights.NewGeminiGenerator(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return fmt.Errorf("create insight generator: %w", err)
		}
		generator = gemini
	}

	svcOpts := []service.Option{
		service.WithNotifier(hub),
		service.WithInsights(insights.NewBuilder(generator, cfg.InsightHistory, logger.Named("insights"))),
		service.WithLogger(logger.Named("service")),
	}
	if uploader != nil {
		svcOpts = append(svcOpts, service.WithBlobStore(uploader))
	}
	svc := service.New(repos, repos, repos, svcOpts...)

	tokens := auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer, TTL: cfg.JWTTTL}
	ident := identity.NewService(repos, tokens, identity.WithLogger(logger.Named("identity")))

	policy, err := recorder.ParseDurationPolicy(cfg.DurationPolicy)
	if err != nil {
		return err
	}
	recorders := recorder.NewRegistry(svc, repos, uploader,
		recorder.WithDurationPolicy(policy),
		recorder.WithMaxEvidenceBytes(cfg.EvidenceMaxBytes),
		recorder.WithLogger(logger.Named("recorder")))
	defer recorders.Close()

	var background []func()
	if streaming {
		producer := outbox.NewKafkaProducer(cfg.KafkaBrokers)
		defer producer.Close()
		registry := outbox.NewSchemaRegistryClient(cfg.SchemaRegistryURL)
		dispatcher = outbox.NewDispatcher(pool, producer, registry, cfg.OutboxPollInterval, cfg.OutboxBatchSize, logger.Named("outbox"))
		go dispatcher.Start(ctx)
		background = append(background, dispatcher.Wait)

		done := startLiveConsumer(ctx, cfg, hub, logger.Named("live-consumer"))
		background = append(background, func() { <-done })
	}

	handler := api.NewHandler(svc, ident, recorders, hub,
		api.WithLogger(logger.Named("api")),
		api.WithMaxEvidenceBytes(cfg.EvidenceMaxBytes))
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	root := httptransport.Chain(mux,
		httptransport.RequestLogger(logger.Named("http")),
		httptransport.CORS(cfg.CORSOrigin),
		auth.NewMiddleware(tokens).Wrap)

	serverCfg := httptransport.DefaultServerConfig(cfg.HTTPAddress)
	server := httptransport.NewServer(serverCfg, root)
	err = httptransport.Run(ctx, server, serverCfg.ShutdownTimeout, logger)

	stop()
	for _, wait := range background {
		wait()
	}
	return err
}

// startLiveConsumer wakes local stream subscribers for changes written by
// any replica. Each replica needs its own consumer group.
func startLiveConsumer(ctx context.Context, cfg config.Config, hub *live.Hub, logger *zap.Logger) <-chan struct{} {
	groupID := cfg.LiveGroupID
	if groupID == "" {
		host, _ := os.Hostname()
		groupID = "smartroutine-live-" + host
	}
	reader := consumer.NewReader(cfg.KafkaBrokers, groupID, cfg.ConsumerTopics)
	proc := consumer.NewProcessor(reader, consumer.NewLiveNotifyHandler(hub), consumer.WithLogger(logger))

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer reader.Close()
		logger.Info("live consumer started", zap.String("group", groupID), zap.Strings("topics", cfg.ConsumerTopics))
		if err := proc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("live consumer stopped", zap.Error(err))
		}
	}()
	return done
}
