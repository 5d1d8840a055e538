package consumer

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	users []string
}

func (n *recordingNotifier) Notify(userID string) { n.users = append(n.users, userID) }

func TestLiveNotifyHandlerUsesHeaderThenPayload(t *testing.T) {
	notifier := &recordingNotifier{}
	handler := NewLiveNotifyHandler(notifier)
	ctx := context.Background()

	require.NoError(t, handler.Handle(ctx, Message{EventType: "goal.changed", UserID: "user-1", Payload: json.RawMessage(`{}`)}))
	require.NoError(t, handler.Handle(ctx, Message{EventType: "goal.changed", Payload: json.RawMessage(`{"user_id":"user-2"}`)}))
	require.Equal(t, []string{"user-1", "user-2"}, notifier.users)

	require.Error(t, handler.Handle(ctx, Message{EventType: "goal.changed", Payload: json.RawMessage(`{}`)}))
	require.Error(t, handler.Handle(ctx, Message{EventType: "goal.changed", Payload: json.RawMessage(`[1]`)}))
	require.Len(t, notifier.users, 2)
}

type recordingExecer struct {
	sql  string
	args []any
}

func (r *recordingExecer) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	r.sql = sql
	r.args = args
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func TestAuditLogHandlerInsertsIdempotently(t *testing.T) {
	db := &recordingExecer{}
	at := time.Date(2025, 10, 27, 9, 0, 0, 0, time.FixedZone("WIB", 7*3600))
	msg := Message{
		Topic:         "goal_events",
		Partition:     2,
		Offset:        99,
		Timestamp:     at,
		EventType:     "goal.changed",
		UserID:        "user-1",
		SchemaSubject: "smartroutine.goal_changed-value",
		SchemaID:      5,
		Payload:       json.RawMessage(`{"goal_id":"g1","user_id":"user-1"}`),
	}

	require.NoError(t, NewAuditLogHandler(db).Handle(context.Background(), msg))
	require.Contains(t, db.sql, "ON CONFLICT (topic, partition, record_offset) DO NOTHING")
	require.Equal(t, []any{
		"goal.changed", "user-1", 5, "smartroutine.goal_changed-value", "goal_events", 2, int64(99),
		[]byte(msg.Payload), at.UTC(),
	}, db.args)
}
