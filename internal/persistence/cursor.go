// Package persistence contains helpers shared by repository implementations.
package persistence

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"example.com/smartroutine/internal/domain"
)

const (
	// DefaultPageSize applies when a listing does not specify a limit.
	DefaultPageSize = 50
	// MaxPageSize bounds any single listing page.
	MaxPageSize = 200
)

// PageSize normalises a requested limit.
func PageSize(limit int) int {
	switch {
	case limit <= 0:
		return DefaultPageSize
	case limit > MaxPageSize:
		return MaxPageSize
	}
	return limit
}

// EncodeCursor serialises the cursor to a URL-safe token.
func EncodeCursor(c *domain.Cursor) string {
	if c == nil {
		return ""
	}
	raw := fmt.Sprintf("%s|%s", c.CreatedAt.UTC().Format(time.RFC3339Nano), c.ID)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor parses a token produced by EncodeCursor. An empty token
// yields a nil cursor.
func DecodeCursor(token string) (*domain.Cursor, error) {
	if strings.TrimSpace(token) == "" {
		return nil, nil
	}
	decoded, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid cursor encoding", domain.ErrValidation)
	}
	parts := strings.SplitN(string(decoded), "|", 2)
	if len(parts) != 2 || parts[1] == "" {
		return nil, fmt.Errorf("%w: invalid cursor format", domain.ErrValidation)
	}
	ts, err := time.Parse(time.RFC3339Nano, parts[0])
	if err != nil {
		return nil, fmt.Errorf("%w: invalid cursor timestamp", domain.ErrValidation)
	}
	return &domain.Cursor{CreatedAt: ts, ID: parts[1]}, nil
}

// After reports whether (createdAt, id) sorts strictly after c in the
// given direction. Newest-first listings treat "after" as older.
func After(c domain.Cursor, createdAt time.Time, id string, ascending bool) bool {
	if ascending {
		return createdAt.After(c.CreatedAt) || (createdAt.Equal(c.CreatedAt) && id > c.ID)
	}
	return createdAt.Before(c.CreatedAt) || (createdAt.Equal(c.CreatedAt) && id < c.ID)
}
