package consumer

import (
	"context"

	"github.com/jackc/pgx/v5/pgconn"
)

// Execer is satisfied by *pgxpool.Pool.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// AuditLogHandler appends every consumed event to activity_event_log.
// Redelivered records are ignored.
type AuditLogHandler struct {
	db Execer
}

// NewAuditLogHandler constructs a handler backed by db.
func NewAuditLogHandler(db Execer) *AuditLogHandler {
	return &AuditLogHandler{db: db}
}

// Handle stores the event.
func (h *AuditLogHandler) Handle(ctx context.Context, msg Message) error {
	userID, err := ownerOf(msg)
	if err != nil {
		return err
	}
	receivedAt := msg.Timestamp
	if receivedAt.IsZero() {
		receivedAt = nowUTC()
	}
	_, err = h.db.Exec(ctx,
		`INSERT INTO activity_event_log (event_type, user_id, schema_id, schema_subject, topic, partition, record_offset, payload, received_at)
         VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
         ON CONFLICT (topic, partition, record_offset) DO NOTHING`,
		msg.EventType,
		userID,
		msg.SchemaID,
		msg.SchemaSubject,
		msg.Topic,
		msg.Partition,
		msg.Offset,
		[]byte(msg.Payload),
		receivedAt.UTC(),
	)
	return err
}
