package outbox

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"example.com/smartroutine/internal/platform/events"
)

// Execer is satisfied by pgx.Tx, *pgx.Conn and *pgxpool.Pool.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Event is a domain event staged for publication.
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	UserID        string
	Payload       any
}

// Enqueue stages evt in the outbox. Pass the transaction that writes the
// aggregate so the event commits or rolls back with it.
func Enqueue(ctx context.Context, db Execer, evt Event) error {
	subject := events.SubjectFor(evt.EventType)
	if subject == "" {
		return fmt.Errorf("outbox: unknown event type %q", evt.EventType)
	}
	payload, err := json.Marshal(evt.Payload)
	if err != nil {
		return fmt.Errorf("outbox: marshal %s: %w", evt.EventType, err)
	}

	const stmt = `INSERT INTO outbox (user_id, aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload)
                   VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`
	_, err = db.Exec(ctx, stmt,
		evt.UserID,
		evt.AggregateType,
		evt.AggregateID,
		evt.EventType,
		events.TopicFor(evt.EventType),
		subject,
		evt.UserID,
		payload,
	)
	if err != nil {
		return fmt.Errorf("outbox: insert %s: %w", evt.EventType, err)
	}
	return nil
}
