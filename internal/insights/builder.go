// Package insights turns recent activity history into narrative findings
// produced by an external text-generation model.
package insights

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"example.com/smartroutine/internal/domain"
	"example.com/smartroutine/internal/observability"
)

const (
	// DefaultHistoryLimit caps how many recent activities are summarised.
	DefaultHistoryLimit = 50
	// MinimumHistory is the smallest history worth sending to the model.
	MinimumHistory = 3

	InsufficientDataMessage = "Log a few more activities to unlock your personal AI insights!"
	UnavailableMessage      = "Could not fetch AI insights at this time."
)

// Status classifies a Result.
type Status string

const (
	StatusReady            Status = "ready"
	StatusInsufficientData Status = "insufficient_data"
	StatusUnavailable      Status = "unavailable"
)

// HistoryItem is the reduced view of an activity handed to the model.
type HistoryItem struct {
	ActivityName    string         `json:"activityName"`
	ActivityType    string         `json:"activityType"`
	DurationMinutes int            `json:"durationMinutes"`
	Details         map[string]any `json:"details,omitempty"`
	CreatedAt       string         `json:"createdAt"`
}

// Request is the input of a Generator call.
type Request struct {
	UserID  string
	History []HistoryItem
}

// Insight is a single titled finding.
type Insight struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Findings holds exactly the three categories the model must answer.
type Findings struct {
	Consistency Insight `json:"consistency"`
	Focus       Insight `json:"focus"`
	Rest        Insight `json:"rest"`
}

// Validate rejects output missing any title or description.
func (f Findings) Validate() error {
	for name, item := range map[string]Insight{"consistency": f.Consistency, "focus": f.Focus, "rest": f.Rest} {
		if strings.TrimSpace(item.Title) == "" || strings.TrimSpace(item.Description) == "" {
			return fmt.Errorf("%w: %s insight is incomplete", domain.ErrGeneration, name)
		}
	}
	return nil
}

// Generator produces findings for a history.
type Generator interface {
	Generate(ctx context.Context, req Request) (*Findings, error)
}

// Result is what callers display. Findings is set only when Status is ready.
type Result struct {
	Status   Status    `json:"status"`
	Message  string    `json:"message,omitempty"`
	Insights *Findings `json:"insights,omitempty"`
}

// Builder gates and delegates insight generation.
type Builder struct {
	generator Generator
	limit     int
	logger    *zap.Logger
}

// NewBuilder constructs a Builder. A non-positive limit selects DefaultHistoryLimit.
func NewBuilder(generator Generator, limit int, logger *zap.Logger) *Builder {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{generator: generator, limit: limit, logger: logger}
}

// Limit reports how many recent activities the builder considers.
func (b *Builder) Limit() int {
	return b.limit
}

// Build summarises recent and asks the generator for findings. It never
// returns an error: failures degrade to an unavailable result.
func (b *Builder) Build(ctx context.Context, userID string, recent []domain.Activity) Result {
	history := Summarize(recent, b.limit)
	if len(history) < MinimumHistory {
		observability.RecordInsightRequest(string(StatusInsufficientData))
		return Result{Status: StatusInsufficientData, Message: InsufficientDataMessage}
	}

	findings, err := b.generate(ctx, Request{UserID: userID, History: history})
	if err != nil {
		b.logger.Warn("insight generation failed", zap.String("user_id", userID), zap.Error(err))
		observability.RecordInsightRequest(string(StatusUnavailable))
		return Result{Status: StatusUnavailable, Message: UnavailableMessage}
	}
	observability.RecordInsightRequest(string(StatusReady))
	return Result{Status: StatusReady, Insights: findings}
}

func (b *Builder) generate(ctx context.Context, req Request) (*Findings, error) {
	if b.generator == nil {
		return nil, fmt.Errorf("%w: no generator configured", domain.ErrGeneration)
	}
	start := time.Now()
	findings, err := b.generator.Generate(ctx, req)
	observability.ObserveInsightLatency(time.Since(start))
	if err != nil {
		if errors.Is(err, domain.ErrGeneration) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrGeneration, err)
	}
	if findings == nil {
		return nil, fmt.Errorf("%w: empty response", domain.ErrGeneration)
	}
	if err := findings.Validate(); err != nil {
		return nil, err
	}
	return findings, nil
}

// Summarize reduces activities to at most limit history items, newest first.
func Summarize(activities []domain.Activity, limit int) []HistoryItem {
	sorted := make([]domain.Activity, len(activities))
	copy(sorted, activities)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})
	if limit > 0 && len(sorted) > limit {
		sorted = sorted[:limit]
	}

	history := make([]HistoryItem, 0, len(sorted))
	for _, a := range sorted {
		item := HistoryItem{
			ActivityName:    a.Name,
			ActivityType:    string(a.Type),
			DurationMinutes: a.DurationMinutes,
			CreatedAt:       a.CreatedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		}
		if a.Details != nil {
			item.Details = a.Details.Fields()
		}
		history = append(history, item)
	}
	return history
}
