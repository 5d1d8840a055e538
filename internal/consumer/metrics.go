package consumer

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Record outcomes. Malformed records are committed and skipped; failed ones
// are left for redelivery.
const (
	outcomeHandled   = "handled"
	outcomeFailed    = "failed"
	outcomeMalformed = "malformed"
)

var (
	recordsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "smartroutine",
		Subsystem: "consumer",
		Name:      "records_total",
		Help:      "Kafka records seen by the consumer, by topic and outcome.",
	}, []string{"topic", "outcome"})

	eventDelayHistogram = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "smartroutine",
		Subsystem: "consumer",
		Name:      "event_delay_seconds",
		Help:      "Time between a record's broker timestamp and its successful handling.",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"event_type"})
)

func init() {
	prometheus.MustRegister(recordsCounter, eventDelayHistogram)
}

func recordOutcome(topic, outcome string) {
	recordsCounter.WithLabelValues(topic, outcome).Inc()
}

func recordHandled(msg Message, handledAt time.Time) {
	recordOutcome(msg.Topic, outcomeHandled)
	if !msg.Timestamp.IsZero() {
		eventDelayHistogram.WithLabelValues(msg.EventType).Observe(handledAt.Sub(msg.Timestamp).Seconds())
	}
}
