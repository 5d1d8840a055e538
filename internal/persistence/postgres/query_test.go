package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/smartroutine/internal/domain"
)

func TestBuildActivityQueryDefaultsToNewestFirst(t *testing.T) {
	sql, args := buildActivityQuery(domain.ActivityQuery{UserID: "user-1"}, 50)

	require.Contains(t, sql, "user_id = $1")
	require.Contains(t, sql, "ORDER BY created_at DESC, id DESC LIMIT $2")
	require.Equal(t, []any{"user-1", 51}, args)
}

func TestBuildActivityQueryAscendingCursorAndWindow(t *testing.T) {
	from := time.Date(2025, 10, 20, 0, 0, 0, 0, time.UTC)
	to := from.Add(7 * 24 * time.Hour)
	cursor := &domain.Cursor{CreatedAt: from.Add(time.Hour), ID: "act-9"}

	sql, args := buildActivityQuery(domain.ActivityQuery{
		Status:    domain.ReviewStatusPending,
		From:      from,
		To:        to,
		Cursor:    cursor,
		Ascending: true,
	}, 10)

	require.NotContains(t, sql, "user_id =")
	require.Contains(t, sql, "status = $1")
	require.Contains(t, sql, "created_at >= $2")
	require.Contains(t, sql, "created_at < $3")
	require.Contains(t, sql, "(created_at, id) > ($4, $5)")
	require.Contains(t, sql, "ORDER BY created_at ASC, id ASC LIMIT $6")
	require.Equal(t, []any{"pending", from, to, cursor.CreatedAt, "act-9", 11}, args)
}
