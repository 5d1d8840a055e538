package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

var testConfig = Config{Secret: "test-secret", Issuer: "smartroutine", TTL: time.Hour}

func TestIssueThenParse(t *testing.T) {
	token, err := Issue(testConfig, "user-1", "admin", []string{"goals:write", "activities:read"}, time.Now())
	require.NoError(t, err)
	require.Equal(t, "Bearer", token.Type)

	claims, err := Parse(token.Value, testConfig)
	require.NoError(t, err)
	require.Equal(t, "user-1", claims.Subject)
	require.Equal(t, "admin", claims.Role)
	require.True(t, claims.HasScope("goals:write"))
	require.True(t, claims.HasScope("activities:read"))
	require.False(t, claims.HasScope("reviews:write"))
	require.WithinDuration(t, token.ExpiresAt, claims.ExpiresAt, time.Second)
}

func TestParseChecksExpiryAgainstConfiguredClock(t *testing.T) {
	issuedAt := time.Date(2025, time.March, 12, 9, 0, 0, 0, time.UTC)
	cfg := testConfig
	cfg.Now = func() time.Time { return issuedAt.Add(30 * time.Minute) }

	token, err := Issue(cfg, "user-1", "user", nil, issuedAt)
	require.NoError(t, err)

	claims, err := Parse(token.Value, cfg)
	require.NoError(t, err)
	require.Equal(t, "user-1", claims.Subject)

	_, err = Parse(token.Value, testConfig)
	require.ErrorIs(t, err, ErrInvalidToken, "wall clock is past the fixed expiry")

	cfg.Now = func() time.Time { return issuedAt.Add(2 * time.Hour) }
	_, err = Parse(token.Value, cfg)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsBadTokens(t *testing.T) {
	expired, err := Issue(testConfig, "user-1", "user", nil, time.Now().Add(-2*time.Hour))
	require.NoError(t, err)
	_, err = Parse(expired.Value, testConfig)
	require.ErrorIs(t, err, ErrInvalidToken)

	other, err := Issue(Config{Secret: "other", Issuer: "smartroutine"}, "user-1", "user", nil, time.Now())
	require.NoError(t, err)
	_, err = Parse(other.Value, testConfig)
	require.ErrorIs(t, err, ErrInvalidToken)

	wrongIssuer, err := Issue(Config{Secret: "test-secret", Issuer: "elsewhere"}, "user-1", "user", nil, time.Now())
	require.NoError(t, err)
	_, err = Parse(wrongIssuer.Value, testConfig)
	require.ErrorIs(t, err, ErrInvalidToken)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "user-1", "iss": "smartroutine"}).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	_, err = Parse(noExpiry, testConfig)
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = Parse(" ", testConfig)
	require.ErrorIs(t, err, ErrMissingToken)
}

func TestMiddleware(t *testing.T) {
	var seen *Claims
	handler := NewMiddleware(testConfig, func(r *http.Request) bool { return r.URL.Path == "/healthz" }).Wrap(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen, _ = FromContext(r.Context())
			w.WriteHeader(http.StatusNoContent)
		}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/goals", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Contains(t, rec.Body.String(), `"type":"unauthorized"`)

	token, err := Issue(testConfig, "user-1", "user", nil, time.Now())
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/v1/goals", nil)
	req.Header.Set("Authorization", "Bearer "+token.Value)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "user-1", seen.Subject)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/stream/goals?access_token="+token.Value, nil))
	require.Equal(t, http.StatusNoContent, rec.Code)
}
