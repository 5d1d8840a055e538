//go:build integration

package outbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
	postgrescontainer "github.com/testcontainers/testcontainers-go/modules/postgres"
	"go.uber.org/zap"

	"example.com/smartroutine/internal/persistence/migrations"
	"example.com/smartroutine/internal/platform/events"
)

func TestDispatcherPublishesMessages(t *testing.T) {
	ctx := context.Background()
	pool, cleanup := setupPostgres(t, ctx)
	defer cleanup()

	userID := uuid.NewString()
	require.NoError(t, seedOutbox(ctx, pool, userID, events.TypeActivityRecorded))

	producer := &stubProducer{}
	registry := &stubRegistry{id: 42}
	dispatcher := NewDispatcher(pool, producer, registry, 10*time.Millisecond, 5, zap.NewNop())

	beforeDelivered := testutil.ToFloat64(eventsCounter.WithLabelValues(events.TopicActivityEvents, outcomeDelivered))
	beforeHistogram := histogramSampleCount(t)

	require.NoError(t, dispatcher.processBatch(ctx))

	require.Len(t, producer.writes, 1)
	require.Equal(t, events.TopicActivityEvents, producer.writes[0].topic)
	require.Len(t, producer.writes[0].messages, 1)
	require.InDelta(t, beforeDelivered+1, testutil.ToFloat64(eventsCounter.WithLabelValues(events.TopicActivityEvents, outcomeDelivered)), 0.0001)
	require.Greater(t, histogramSampleCount(t), beforeHistogram)

	var published int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox WHERE published_at IS NOT NULL`).Scan(&published))
	require.Equal(t, 1, published)

	require.NoError(t, dispatcher.processBatch(ctx))
	require.Len(t, producer.writes, 1, "published events are not redelivered")
}

func TestDispatcherRoutesMessagesToDLQOnFailure(t *testing.T) {
	ctx := context.Background()
	pool, cleanup := setupPostgres(t, ctx)
	defer cleanup()

	userID := uuid.NewString()
	require.NoError(t, seedOutbox(ctx, pool, userID, events.TypeActivityReviewed))

	producer := &stubProducer{err: errors.New("kafka write failed")}
	dispatcher := NewDispatcher(pool, producer, &stubRegistry{id: 7}, 10*time.Millisecond, 5, zap.NewNop())

	beforeFailed := testutil.ToFloat64(eventsCounter.WithLabelValues(events.TopicActivityEvents, outcomeFailed))
	beforeDLQ := testutil.ToFloat64(eventsCounter.WithLabelValues(events.TopicActivityEvents, outcomeDeadLettered))

	require.NoError(t, dispatcher.processBatch(ctx))

	require.InDelta(t, beforeFailed+1, testutil.ToFloat64(eventsCounter.WithLabelValues(events.TopicActivityEvents, outcomeFailed)), 0.0001)
	require.InDelta(t, beforeDLQ+1, testutil.ToFloat64(eventsCounter.WithLabelValues(events.TopicActivityEvents, outcomeDeadLettered)), 0.0001)

	var dlqCount int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox_dlq WHERE user_id = $1`, userID).Scan(&dlqCount))
	require.Equal(t, 1, dlqCount)
}

func TestDLQManagerRequeuesThenQuarantines(t *testing.T) {
	ctx := context.Background()
	pool, cleanup := setupPostgres(t, ctx)
	defer cleanup()

	userID := uuid.NewString()
	require.NoError(t, seedOutbox(ctx, pool, userID, events.TypeGoalChanged))
	failing := NewDispatcher(pool, &stubProducer{err: errors.New("broker unavailable")}, &stubRegistry{}, time.Millisecond, 5, zap.NewNop())
	require.NoError(t, failing.processBatch(ctx))

	manager := NewDLQManager(pool, 1, time.Second, zap.NewNop())
	requeued, err := manager.RunOnce(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, 1, requeued)

	var pending int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox WHERE published_at IS NULL AND user_id = $1`, userID).Scan(&pending))
	require.Equal(t, 1, pending)

	_, err = pool.Exec(ctx,
		`INSERT INTO outbox_dlq (user_id, event_id, event_type, topic, payload, reason, aggregate_type, aggregate_id, schema_subject, partition_key, retry_count, next_retry_at)
         VALUES ($1, 99, $2, $3, '{}', 'exhausted', 'goal', 'g', $4, $1, 1, NOW())`,
		userID, events.TypeGoalChanged, events.TopicGoalEvents, events.SubjectFor(events.TypeGoalChanged))
	require.NoError(t, err)

	requeued, err = manager.RunOnce(ctx, 10)
	require.NoError(t, err)
	require.Zero(t, requeued)

	var quarantined int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox_dlq WHERE quarantined_at IS NOT NULL`).Scan(&quarantined))
	require.Equal(t, 1, quarantined)
}

func setupPostgres(t *testing.T, ctx context.Context) (*pgxpool.Pool, func()) {
	t.Helper()

	pg, err := postgrescontainer.Run(ctx, "postgres:16-alpine",
		postgrescontainer.WithDatabase("smartroutine"),
		postgrescontainer.WithUsername("smartroutine"),
		postgrescontainer.WithPassword("smartroutine"),
		postgrescontainer.BasicWaitStrategies(),
	)
	require.NoError(t, err)

	connStr, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, migrations.Up(ctx, connStr))

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)

	cleanup := func() {
		pool.Close()
		_ = pg.Terminate(ctx)
	}
	return pool, cleanup
}

func histogramSampleCount(t *testing.T) uint64 {
	t.Helper()

	metric := &dto.Metric{}
	require.NoError(t, batchDuration.Write(metric))
	hist := metric.GetHistogram()
	require.NotNil(t, hist)
	return hist.GetSampleCount()
}

func seedOutbox(ctx context.Context, pool *pgxpool.Pool, userID, eventType string) error {
	aggregateID := uuid.NewString()
	return Enqueue(ctx, pool, Event{
		AggregateType: "activity",
		AggregateID:   aggregateID,
		EventType:     eventType,
		UserID:        userID,
		Payload:       map[string]any{"activity_id": aggregateID, "user_id": userID},
	})
}
