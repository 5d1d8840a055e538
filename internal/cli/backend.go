package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"example.com/smartroutine/internal/auth"
	"example.com/smartroutine/internal/blob"
	"example.com/smartroutine/internal/config"
	"example.com/smartroutine/internal/domain"
	"example.com/smartroutine/internal/identity"
	"example.com/smartroutine/internal/logging"
	"example.com/smartroutine/internal/persistence/postgres"
	"example.com/smartroutine/internal/service"
)

// backend is the set of collaborators a command works against.
type backend struct {
	users    domain.UserRepository
	sessions domain.SessionRepository
	service  *service.Service
	identity *identity.Service
	uploader domain.BlobStore
	logger   *zap.Logger
	close    func()
}

type opener func(ctx context.Context, opts *RootOptions) (*backend, error)

var errNoDatabase = errors.New("a database URL is required (--database or POSTGRES_URL)")

func openBackend(ctx context.Context, opts *RootOptions) (*backend, error) {
	if opts.DatabaseURL == "" {
		return nil, errNoDatabase
	}
	cfg := opts.cfg
	logger := logging.Must(cfg.Env, cfg.LogLevel).Named("smartctl")

	pool, err := pgxpool.New(ctx, opts.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	var repoOpts []postgres.Option
	if !cfg.OutboxEnabled {
		repoOpts = append(repoOpts, postgres.WithoutOutbox())
	}
	repo := postgres.NewRepository(pool, repoOpts...)

	b := &backend{
		users:    repo,
		sessions: repo,
		logger:   logger,
		close: func() {
			_ = logger.Sync()
			pool.Close()
		},
	}
	svcOpts := []service.Option{service.WithLogger(logger)}
	if cfg.Blob.Endpoint != "" {
		store, err := blob.New(ctx, blob.Config(cfg.Blob))
		if err != nil {
			b.close()
			return nil, fmt.Errorf("connect to evidence storage: %w", err)
		}
		b.uploader = store
		svcOpts = append(svcOpts, service.WithBlobStore(store))
	}
	b.service = service.New(repo, repo, repo, svcOpts...)
	b.identity = identity.NewService(repo, tokenConfig(cfg), identity.WithLogger(logger))
	return b, nil
}

func tokenConfig(cfg config.Config) auth.Config {
	return auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer, TTL: cfg.JWTTTL}
}

// signIn resolves the acting user from email and password.
func (b *backend) signIn(ctx context.Context, email, password string) (domain.Actor, error) {
	_, profile, err := b.identity.SignIn(ctx, email, password)
	if err != nil {
		return domain.Actor{}, err
	}
	return domain.Actor{UserID: profile.UID, Role: profile.Role}, nil
}
