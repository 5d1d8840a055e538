// Package observability holds the application-level Prometheus metrics.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "smartroutine"

var (
	activityPersistGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "persistence",
		Name:      "last_activity_persisted_timestamp_seconds",
		Help:      "Unix timestamp of the most recent activity persisted.",
	})

	activitiesRecorded = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "activities",
		Name:      "recorded_total",
		Help:      "Number of activities recorded, labeled by activity type.",
	}, []string{"type"})

	reviewsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "activities",
		Name:      "reviews_total",
		Help:      "Number of reviewer decisions, labeled by outcome.",
	}, []string{"outcome"})

	goalEvaluations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "goals",
		Name:      "evaluations_total",
		Help:      "Number of goal progress evaluations, labeled by goal type.",
	}, []string{"goal_type"})

	insightRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "insights",
		Name:      "requests_total",
		Help:      "Number of insight requests, labeled by result status.",
	}, []string{"status"})

	insightLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "insights",
		Name:      "generation_duration_seconds",
		Help:      "Time spent waiting on the text-generation collaborator.",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
	})

	recorderFinishes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "recorder",
		Name:      "finishes_total",
		Help:      "Number of tracking sessions finished, labeled by outcome.",
	}, []string{"outcome"})

	liveSubscribers = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "live",
		Name:      "subscribers",
		Help:      "Current number of live snapshot subscribers per collection.",
	}, []string{"collection"})
)

func init() {
	prometheus.MustRegister(
		activityPersistGauge,
		activitiesRecorded,
		reviewsCounter,
		goalEvaluations,
		insightRequests,
		insightLatency,
		recorderFinishes,
		liveSubscribers,
	)
}

// RecordActivityPersisted counts a stored activity and moves the persistence watermark.
func RecordActivityPersisted(activityType string, ts time.Time) {
	activitiesRecorded.WithLabelValues(activityType).Inc()
	if ts.IsZero() {
		return
	}
	activityPersistGauge.Set(float64(ts.Unix()))
}

// RecordReview counts a reviewer decision.
func RecordReview(outcome string) {
	reviewsCounter.WithLabelValues(outcome).Inc()
}

// RecordGoalEvaluation counts a progress computation.
func RecordGoalEvaluation(goalType string) {
	goalEvaluations.WithLabelValues(goalType).Inc()
}

// RecordInsightRequest counts an insight request by its result status.
func RecordInsightRequest(status string) {
	insightRequests.WithLabelValues(status).Inc()
}

// ObserveInsightLatency records a generation round trip.
func ObserveInsightLatency(d time.Duration) {
	insightLatency.Observe(d.Seconds())
}

// RecordRecorderFinish counts a finish attempt by outcome ("recorded", "upload_failed", ...).
func RecordRecorderFinish(outcome string) {
	recorderFinishes.WithLabelValues(outcome).Inc()
}

// SubscriberJoined increments the live subscriber gauge.
func SubscriberJoined(collection string) {
	liveSubscribers.WithLabelValues(collection).Inc()
}

// SubscriberLeft decrements the live subscriber gauge.
func SubscriberLeft(collection string) {
	liveSubscribers.WithLabelValues(collection).Dec()
}
