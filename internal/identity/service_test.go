package identity

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"example.com/smartroutine/internal/auth"
	"example.com/smartroutine/internal/domain"
	"example.com/smartroutine/internal/persistence/memory"
	authlib "example.com/smartroutine/internal/platform/auth"
)

var tokenConfig = authlib.Config{Secret: "secret", Issuer: "smartroutine", TTL: time.Hour}

func newService() (*Service, *memory.Store) {
	store := memory.NewStore()
	return NewService(store, tokenConfig, WithBcryptCost(bcrypt.MinCost)), store
}

func TestRegisterAndSignIn(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService()

	profile, err := svc.Register(ctx, Registration{Email: " Sari@Example.com", Password: "rahasia123", Username: "sari"})
	require.NoError(t, err)
	require.Equal(t, domain.RoleUser, profile.Role)
	require.Equal(t, "sari@example.com", profile.Email)

	token, signedIn, err := svc.SignIn(ctx, "sari@example.com", "rahasia123")
	require.NoError(t, err)
	require.Equal(t, profile.UID, signedIn.UID)

	claims, err := authlib.Parse(token.Value, tokenConfig)
	require.NoError(t, err)
	require.Equal(t, profile.UID, claims.Subject)
	require.Equal(t, "user", claims.Role)
	require.True(t, claims.HasScope(auth.ScopeGoalsWrite))
	require.False(t, claims.HasScope(auth.ScopeReviewsWrite))

	got, err := svc.Profile(ctx, profile.UID)
	require.NoError(t, err)
	require.Equal(t, "sari", got.Username)
}

func TestRegisterValidation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService()

	cases := map[string]Registration{
		"bad email":      {Email: "sari", Password: "rahasia123", Username: "sari"},
		"short password": {Email: "sari@example.com", Password: "short", Username: "sari"},
		"short username": {Email: "sari@example.com", Password: "rahasia123", Username: "ab"},
		"blank username": {Email: "sari@example.com", Password: "rahasia123", Username: "   "},
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Register(ctx, input)
			require.ErrorIs(t, err, domain.ErrValidation)
		})
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService()
	_, err := svc.Register(ctx, Registration{Email: "sari@example.com", Password: "rahasia123", Username: "sari"})
	require.NoError(t, err)

	_, err = svc.Register(ctx, Registration{Email: "SARI@example.com", Password: "rahasia456", Username: "sari2"})
	require.ErrorIs(t, err, domain.ErrConflict)
}

func TestSignInFailures(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService()
	_, err := svc.Register(ctx, Registration{Email: "sari@example.com", Password: "rahasia123", Username: "sari"})
	require.NoError(t, err)

	_, _, err = svc.SignIn(ctx, "sari@example.com", "wrong-password")
	require.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = svc.SignIn(ctx, "nobody@example.com", "rahasia123")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestPromoteToAdminGrantsReviewScope(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService()
	profile, err := svc.Register(ctx, Registration{Email: "admin@example.com", Password: "rahasia123", Username: "admin"})
	require.NoError(t, err)

	require.NoError(t, svc.PromoteToAdmin(ctx, profile.UID))
	require.ErrorIs(t, svc.PromoteToAdmin(ctx, "missing"), domain.ErrNotFound)

	token, _, err := svc.SignIn(ctx, "admin@example.com", "rahasia123")
	require.NoError(t, err)
	claims, err := authlib.Parse(token.Value, tokenConfig)
	require.NoError(t, err)
	require.Equal(t, "admin", claims.Role)
	require.True(t, claims.HasScope(auth.ScopeReviewsWrite))
}
