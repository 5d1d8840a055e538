package outbox

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"example.com/smartroutine/internal/platform/events"
)

type stubProducer struct {
	mu     sync.Mutex
	err    error
	writes []writtenBatch
}

type writtenBatch struct {
	topic    string
	messages []kafka.Message
}

func (s *stubProducer) WriteMessages(ctx context.Context, topic string, msgs ...kafka.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return s.err
	}
	copied := make([]kafka.Message, len(msgs))
	copy(copied, msgs)
	s.writes = append(s.writes, writtenBatch{topic: topic, messages: copied})
	return nil
}

type stubRegistry struct {
	mu    sync.Mutex
	id    int
	err   error
	calls []schemaCall
}

type schemaCall struct {
	subject string
	schema  string
}

func (s *stubRegistry) EnsureSchema(ctx context.Context, subject string, schema string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, schemaCall{subject: subject, schema: schema})
	if s.err != nil {
		return 0, s.err
	}
	if s.id == 0 {
		s.id = 1
	}
	return s.id, nil
}

func newTestDispatcher(producer messageWriter, registry schemaRegistrar) *Dispatcher {
	return &Dispatcher{
		producer: producer,
		registry: registry,
		logger:   zap.NewNop(),
		now:      func() time.Time { return time.Date(2025, 10, 27, 9, 0, 0, 0, time.UTC) },
	}
}

func outboxMessage(id int64, eventType, userID string) Message {
	return Message{
		EventID:       id,
		UserID:        userID,
		AggregateType: "activity",
		AggregateID:   "act-1",
		EventType:     eventType,
		Topic:         events.TopicFor(eventType),
		SchemaSubject: events.SubjectFor(eventType),
		PartitionKey:  userID,
		Payload:       json.RawMessage(`{"activity_id":"act-1","user_id":"` + userID + `"}`),
	}
}

func header(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func TestDeliverFramesPayloadAndSetsHeaders(t *testing.T) {
	producer := &stubProducer{}
	registry := &stubRegistry{id: 42}
	d := newTestDispatcher(producer, registry)

	msg := outboxMessage(1, events.TypeActivityRecorded, "user-1")
	require.NoError(t, d.deliver(context.Background(), []Message{msg}))

	require.Len(t, producer.writes, 1)
	require.Equal(t, events.TopicActivityEvents, producer.writes[0].topic)
	record := producer.writes[0].messages[0]
	require.Equal(t, []byte("user-1"), record.Key)
	require.Equal(t, byte(0), record.Value[0])
	require.Equal(t, uint32(42), binary.BigEndian.Uint32(record.Value[1:5]))
	require.JSONEq(t, string(msg.Payload), string(record.Value[5:]))

	require.Equal(t, events.TypeActivityRecorded, header(record, HeaderEventType))
	require.Equal(t, "user-1", header(record, HeaderUserID))
	require.Equal(t, "smartroutine.activity_recorded-value", header(record, HeaderSchemaSubject))
}

func TestDeliverGroupsByTopicAndCachesSchemaIDs(t *testing.T) {
	producer := &stubProducer{}
	registry := &stubRegistry{id: 7}
	d := newTestDispatcher(producer, registry)

	batch := []Message{
		outboxMessage(1, events.TypeActivityRecorded, "user-1"),
		outboxMessage(2, events.TypeGoalChanged, "user-1"),
		outboxMessage(3, events.TypeActivityRecorded, "user-2"),
	}
	require.NoError(t, d.deliver(context.Background(), batch))
	require.NoError(t, d.deliver(context.Background(), batch[:1]))

	require.Len(t, producer.writes, 3)
	require.Equal(t, events.TopicActivityEvents, producer.writes[0].topic)
	require.Len(t, producer.writes[0].messages, 2)
	require.Equal(t, events.TopicGoalEvents, producer.writes[1].topic)
	require.Len(t, registry.calls, 2, "one registry lookup per subject")
}

func TestDeliverRejectsUnknownEventType(t *testing.T) {
	producer := &stubProducer{}
	registry := &stubRegistry{}
	d := newTestDispatcher(producer, registry)

	err := d.deliver(context.Background(), []Message{outboxMessage(1, "activity.unknown", "user-1")})
	require.ErrorContains(t, err, "no schema metadata for event_type=activity.unknown")
	require.Empty(t, producer.writes)
	require.Empty(t, registry.calls)
}

func TestDeliverPropagatesFailures(t *testing.T) {
	msg := outboxMessage(1, events.TypeActivityDeleted, "user-1")

	d := newTestDispatcher(&stubProducer{}, &stubRegistry{err: errors.New("registry down")})
	require.ErrorContains(t, d.deliver(context.Background(), []Message{msg}), "registry down")

	d = newTestDispatcher(&stubProducer{err: errors.New("kafka write failed")}, &stubRegistry{})
	require.ErrorContains(t, d.deliver(context.Background(), []Message{msg}), "kafka write failed")
}

func TestEveryEventTypeHasSchema(t *testing.T) {
	for _, eventType := range []string{events.TypeActivityRecorded, events.TypeActivityReviewed, events.TypeActivityDeleted, events.TypeGoalChanged} {
		meta, ok := schemaCatalog[eventType]
		require.True(t, ok, eventType)
		require.True(t, json.Valid([]byte(meta.Schema)), eventType)
		require.NotEmpty(t, events.SubjectFor(eventType), eventType)
	}
}

type recordingExecer struct {
	sql  string
	args []any
	err  error
}

func (r *recordingExecer) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	r.sql = sql
	r.args = args
	return pgconn.NewCommandTag("INSERT 0 1"), r.err
}

func TestEnqueueStagesRoutedEvent(t *testing.T) {
	db := &recordingExecer{}
	err := Enqueue(context.Background(), db, Event{
		AggregateType: "goal",
		AggregateID:   "goal-1",
		EventType:     events.TypeGoalChanged,
		UserID:        "user-1",
		Payload:       events.GoalChanged{GoalID: "goal-1", UserID: "user-1", Change: events.GoalCreated},
	})
	require.NoError(t, err)
	require.Contains(t, db.sql, "INSERT INTO outbox")
	require.Len(t, db.args, 8)
	require.Equal(t, "user-1", db.args[0])
	require.Equal(t, events.TopicGoalEvents, db.args[4])
	require.Equal(t, "smartroutine.goal_changed-value", db.args[5])
	require.Equal(t, "user-1", db.args[6])

	var payload events.GoalChanged
	require.NoError(t, json.Unmarshal(db.args[7].([]byte), &payload))
	require.Equal(t, events.GoalCreated, payload.Change)
}

func TestEnqueueErrors(t *testing.T) {
	err := Enqueue(context.Background(), &recordingExecer{}, Event{EventType: "goal.exploded"})
	require.ErrorContains(t, err, "unknown event type")

	err = Enqueue(context.Background(), &recordingExecer{err: errors.New("tx aborted")}, Event{EventType: events.TypeActivityDeleted, UserID: "u"})
	require.ErrorContains(t, err, "tx aborted")
}

func TestBackoffDelayIsExponentialAndCapped(t *testing.T) {
	m := &DLQManager{baseDelay: time.Minute}
	require.Equal(t, time.Minute, m.backoffDelay(1))
	require.Equal(t, 2*time.Minute, m.backoffDelay(2))
	require.Equal(t, 8*time.Minute, m.backoffDelay(4))
	require.Equal(t, time.Hour, m.backoffDelay(10))
	require.Equal(t, time.Hour, m.backoffDelay(64))
}

func TestSchemaRegistryRegistersMissingSubject(t *testing.T) {
	var registered bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			require.Equal(t, "/subjects/smartroutine.goal_changed-value/versions/latest", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		case http.MethodPost:
			registered = true
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			require.Equal(t, "JSON", body["schemaType"])
			_, _ = w.Write([]byte(`{"id":11}`))
		}
	}))
	defer srv.Close()

	client := NewSchemaRegistryClient(srv.URL + "/")
	id, err := client.EnsureSchema(context.Background(), "smartroutine.goal_changed-value", goalChangedSchema)
	require.NoError(t, err)
	require.Equal(t, 11, id)
	require.True(t, registered)
}

func TestSchemaRegistryCachesResolvedSubjects(t *testing.T) {
	var lookups int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lookups++
		_, _ = w.Write([]byte(`{"id":5,"version":1}`))
	}))
	defer srv.Close()

	client := NewSchemaRegistryClient(srv.URL)
	for range 3 {
		id, err := client.EnsureSchema(context.Background(), "smartroutine.activity_recorded-value", "{}")
		require.NoError(t, err)
		require.Equal(t, 5, id)
	}
	require.Equal(t, 1, lookups)
}

func TestSchemaRegistryDoesNotRegisterOnServerError(t *testing.T) {
	var posts int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			posts++
		}
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewSchemaRegistryClient(srv.URL).EnsureSchema(context.Background(), "s", "{}")
	require.ErrorContains(t, err, "schema registry error")
	require.Zero(t, posts)
}
