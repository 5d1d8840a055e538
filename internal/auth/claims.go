// Package auth adapts the shared token handling to SmartRoutine roles and scopes.
package auth

import (
	"context"
	"fmt"

	"example.com/smartroutine/internal/domain"
	authlib "example.com/smartroutine/internal/platform/auth"
)

// Claims mirrors the shared auth claims type for service convenience.
type Claims = authlib.Claims

// Config mirrors the shared auth config.
type Config = authlib.Config

// ParseClaims delegates to the shared auth parser.
func ParseClaims(token string, cfg Config) (*Claims, error) {
	return authlib.Parse(token, cfg)
}

// WithClaims stores the claims in the request context.
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return authlib.WithClaims(ctx, claims)
}

// FromContext retrieves claims from context.
func FromContext(ctx context.Context) (*Claims, bool) {
	return authlib.FromContext(ctx)
}

// ActorFromContext resolves the acting user from request claims.
func ActorFromContext(ctx context.Context) (domain.Actor, error) {
	claims, ok := FromContext(ctx)
	if !ok || claims == nil || claims.Subject == "" {
		return domain.Actor{}, fmt.Errorf("%w: missing credentials", domain.ErrForbidden)
	}
	role := domain.Role(claims.Role)
	if role != domain.RoleAdmin {
		role = domain.RoleUser
	}
	return domain.Actor{UserID: claims.Subject, Role: role}, nil
}

// Require fails with domain.ErrForbidden unless the request claims carry scope.
func Require(ctx context.Context, scope string) error {
	claims, ok := FromContext(ctx)
	if !ok || !claims.HasScope(scope) {
		return fmt.Errorf("%w: missing scope %s", domain.ErrForbidden, scope)
	}
	return nil
}
