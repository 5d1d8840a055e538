package auth

import (
	"net/http"
	"strings"

	authlib "example.com/smartroutine/internal/platform/auth"
)

// Middleware enforces bearer-token authentication on incoming requests.
type Middleware struct {
	inner authlib.Middleware
}

// NewMiddleware constructs Middleware with validation config. Health,
// metrics and the sign-in endpoints are public.
func NewMiddleware(cfg Config) Middleware {
	skipper := func(r *http.Request) bool {
		switch {
		case r.Method == http.MethodOptions:
			return true
		case r.URL.Path == "/healthz", r.URL.Path == "/metrics":
			return true
		case strings.HasPrefix(r.URL.Path, "/v1/auth/"):
			return true
		}
		return false
	}
	return Middleware{inner: authlib.NewMiddleware(cfg, skipper)}
}

// Wrap attaches authentication handling to an http.Handler.
func (m Middleware) Wrap(next http.Handler) http.Handler {
	return m.inner.Wrap(next)
}
