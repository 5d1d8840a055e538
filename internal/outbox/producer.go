package outbox

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaProducer publishes outbox records through one shared writer. The
// topic travels on each message; the key hashes a user's events onto one
// partition so they stay ordered.
type KafkaProducer struct {
	writer *kafka.Writer
}

// ProducerOption customises the underlying writer.
type ProducerOption func(*kafka.Writer)

// WithWriteTimeout bounds a single WriteMessages call.
func WithWriteTimeout(d time.Duration) ProducerOption {
	return func(w *kafka.Writer) {
		if d > 0 {
			w.WriteTimeout = d
		}
	}
}

// WithTopicAutoCreation lets the broker create missing topics on first write.
func WithTopicAutoCreation() ProducerOption {
	return func(w *kafka.Writer) { w.AllowAutoTopicCreation = true }
}

// NewKafkaProducer creates a producer for brokers. Writes are synchronous
// and wait for every in-sync replica.
func NewKafkaProducer(brokers []string, opts ...ProducerOption) *KafkaProducer {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Compression:  kafka.Snappy,
		WriteTimeout: 10 * time.Second,
		BatchTimeout: 50 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(w)
	}
	return &KafkaProducer{writer: w}
}

// WriteMessages stamps topic on msgs and writes them as one batch.
func (p *KafkaProducer) WriteMessages(ctx context.Context, topic string, msgs ...kafka.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	for i := range msgs {
		msgs[i].Topic = topic
	}
	return p.writer.WriteMessages(ctx, msgs...)
}

// Close flushes pending writes and releases connections.
func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}
