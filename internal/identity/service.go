// Package identity registers accounts and signs users in.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"example.com/smartroutine/internal/auth"
	"example.com/smartroutine/internal/domain"
	authlib "example.com/smartroutine/internal/platform/auth"
)

// ErrInvalidCredentials is returned for an unknown email or a wrong password.
var ErrInvalidCredentials = errors.New("invalid credentials")

var validate = validator.New()

// Registration is the sign-up input.
type Registration struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Username string `json:"username" validate:"required,min=3,max=32"`
}

// Service owns user accounts.
type Service struct {
	users      domain.UserRepository
	tokens     authlib.Config
	bcryptCost int
	logger     *zap.Logger
	now        func() time.Time
}

// Option customises a Service.
type Option func(*Service)

// WithBcryptCost overrides bcrypt.DefaultCost.
func WithBcryptCost(cost int) Option {
	return func(s *Service) { s.bcryptCost = cost }
}

// WithLogger attaches a logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock replaces the wall clock used for token issuance.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService constructs a Service signing tokens with cfg.
func NewService(users domain.UserRepository, cfg authlib.Config, opts ...Option) *Service {
	s := &Service{
		users:      users,
		tokens:     cfg,
		bcryptCost: bcrypt.DefaultCost,
		logger:     zap.NewNop(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates an account with the user role.
func (s *Service) Register(ctx context.Context, input Registration) (*domain.UserProfile, error) {
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	input.Username = strings.TrimSpace(input.Username)
	if err := validate.Struct(input); err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrValidation, describe(err))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	profile := domain.UserProfile{
		UID:       uuid.NewString(),
		Username:  input.Username,
		Email:     input.Email,
		Role:      domain.RoleUser,
		CreatedAt: s.now().UTC(),
	}
	if err := s.users.CreateUser(ctx, profile, string(hash)); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: create user: %v", domain.ErrStorage, err)
	}
	s.logger.Info("user registered", zap.String("user_id", profile.UID))
	return &profile, nil
}

// SignIn verifies the password and issues a bearer token.
func (s *Service) SignIn(ctx context.Context, email, password string) (authlib.Token, *domain.UserProfile, error) {
	profile, hash, err := s.users.FindCredentials(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return authlib.Token{}, nil, fmt.Errorf("%w: find credentials: %v", domain.ErrStorage, err)
	}
	if profile == nil {
		return authlib.Token{}, nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return authlib.Token{}, nil, ErrInvalidCredentials
	}

	token, err := authlib.Issue(s.tokens, profile.UID, string(profile.Role), auth.ScopesForRole(profile.Role), s.now())
	if err != nil {
		return authlib.Token{}, nil, err
	}
	return token, profile, nil
}

// Profile returns the account of uid.
func (s *Service) Profile(ctx context.Context, uid string) (*domain.UserProfile, error) {
	profile, err := s.users.GetUser(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("%w: get user: %v", domain.ErrStorage, err)
	}
	if profile == nil {
		return nil, fmt.Errorf("%w: user %s", domain.ErrNotFound, uid)
	}
	return profile, nil
}

// PromoteToAdmin grants the admin role. It is an operator action.
func (s *Service) PromoteToAdmin(ctx context.Context, uid string) error {
	if err := s.users.SetRole(ctx, uid, domain.RoleAdmin); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return err
		}
		return fmt.Errorf("%w: set role: %v", domain.ErrStorage, err)
	}
	s.logger.Info("user promoted", zap.String("user_id", uid))
	return nil
}

func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			parts = append(parts, field+" is required")
		case "email":
			parts = append(parts, field+" must be a valid email address")
		case "min":
			parts = append(parts, fmt.Sprintf("%s must be at least %s characters", field, fe.Param()))
		case "max":
			parts = append(parts, fmt.Sprintf("%s must be at most %s characters", field, fe.Param()))
		default:
			parts = append(parts, field+" is invalid")
		}
	}
	return strings.Join(parts, "; ")
}
