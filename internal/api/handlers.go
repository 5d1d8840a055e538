// Package api exposes the SmartRoutine HTTP surface.
package api

import (
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"example.com/smartroutine/internal/identity"
	"example.com/smartroutine/internal/live"
	"example.com/smartroutine/internal/recorder"
	"example.com/smartroutine/internal/service"
)

var validate = newValidator()

// newValidator reports field names by their JSON keys.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Handler coordinates HTTP requests with the domain collaborators.
type Handler struct {
	service   *service.Service
	identity  *identity.Service
	recorders *recorder.Registry
	hub       *live.Hub
	logger    *zap.Logger
	now       func() time.Time

	maxEvidenceBytes int64
	heartbeat        time.Duration
}

// Option customises a Handler.
type Option func(*Handler)

// WithLogger attaches a logger.
func WithLogger(logger *zap.Logger) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithClock replaces the wall clock used for progress and statistics.
func WithClock(now func() time.Time) Option {
	return func(h *Handler) { h.now = now }
}

// WithMaxEvidenceBytes bounds multipart evidence uploads.
func WithMaxEvidenceBytes(limit int64) Option {
	return func(h *Handler) {
		if limit > 0 {
			h.maxEvidenceBytes = limit
		}
	}
}

// WithHeartbeat sets the idle interval after which streams send a comment line.
func WithHeartbeat(d time.Duration) Option {
	return func(h *Handler) {
		if d > 0 {
			h.heartbeat = d
		}
	}
}

// NewHandler builds a Handler.
func NewHandler(svc *service.Service, ident *identity.Service, recorders *recorder.Registry, hub *live.Hub, opts ...Option) *Handler {
	h := &Handler{
		service:          svc,
		identity:         ident,
		recorders:        recorders,
		hub:              hub,
		logger:           zap.NewNop(),
		now:              time.Now,
		maxEvidenceBytes: recorder.DefaultMaxEvidenceBytes,
		heartbeat:        15 * time.Second,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", healthz)

	mux.HandleFunc("POST /v1/auth/register", h.register)
	mux.HandleFunc("POST /v1/auth/sign-in", h.signIn)
	mux.HandleFunc("GET /v1/me", h.me)

	mux.HandleFunc("GET /v1/activities", h.listActivities)
	mux.HandleFunc("DELETE /v1/activities/{id}", h.deleteActivity)
	mux.HandleFunc("POST /v1/activities/{id}/review", h.reviewActivity)
	mux.HandleFunc("GET /v1/reviews/pending", h.pendingReviews)

	mux.HandleFunc("GET /v1/tracking", h.trackingStatus)
	mux.HandleFunc("POST /v1/tracking/start", h.startTracking)
	mux.HandleFunc("PUT /v1/tracking/evidence", h.attachEvidence)
	mux.HandleFunc("POST /v1/tracking/finish", h.finishTracking)

	mux.HandleFunc("GET /v1/goals", h.listGoals)
	mux.HandleFunc("POST /v1/goals", h.createGoal)
	mux.HandleFunc("GET /v1/goals/progress", h.goalProgress)
	mux.HandleFunc("DELETE /v1/goals/{id}", h.deleteGoal)
	mux.HandleFunc("POST /v1/goals/{id}/complete", h.completeGoal)

	mux.HandleFunc("GET /v1/statistics/weekly", h.weeklyStatistics)
	mux.HandleFunc("GET /v1/insights", h.insights)
	mux.HandleFunc("GET /v1/stream/{collection}", h.stream)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
