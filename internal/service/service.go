// Package service orchestrates the SmartRoutine workflows on top of the
// storage, blob and notification collaborators.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"example.com/smartroutine/internal/domain"
	"example.com/smartroutine/internal/insights"
	"example.com/smartroutine/internal/observability"
	"example.com/smartroutine/internal/persistence"
	"example.com/smartroutine/internal/progress"
)

// Service exposes every user-facing operation. Each call names its Actor.
type Service struct {
	activities domain.ActivityRepository
	goals      domain.GoalRepository
	users      domain.UserRepository
	blobs      domain.BlobStore
	notifier   domain.Notifier
	insights   *insights.Builder
	logger     *zap.Logger
	now        func() time.Time
}

// Option customises a Service.
type Option func(*Service)

// WithBlobStore enables evidence release on activity deletion.
func WithBlobStore(blobs domain.BlobStore) Option {
	return func(s *Service) { s.blobs = blobs }
}

// WithNotifier is told about every successful write.
func WithNotifier(n domain.Notifier) Option {
	return func(s *Service) {
		if n != nil {
			s.notifier = n
		}
	}
}

// WithInsights configures the insight builder used by Insights.
func WithInsights(b *insights.Builder) Option {
	return func(s *Service) { s.insights = b }
}

// WithLogger attaches a logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock replaces the wall clock used for creation timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New constructs a Service.
func New(activities domain.ActivityRepository, goals domain.GoalRepository, users domain.UserRepository, opts ...Option) *Service {
	s := &Service{
		activities: activities,
		goals:      goals,
		users:      users,
		notifier:   domain.NoopNotifier{},
		insights:   insights.NewBuilder(nil, 0, nil),
		logger:     zap.NewNop(),
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GoalProgress pairs a goal with its evaluated progress.
type GoalProgress struct {
	Goal     domain.Goal
	Progress progress.Progress
}

// RecordActivity stores a finished session as a pending activity.
func (s *Service) RecordActivity(ctx context.Context, input domain.NewActivity) (*domain.Activity, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	activity := domain.Activity{
		ID:              uuid.NewString(),
		UserID:          input.UserID,
		Name:            strings.TrimSpace(input.Name),
		Type:            input.Type,
		DurationMinutes: input.DurationMinutes,
		Details:         input.Details,
		EvidenceURL:     input.EvidenceURL,
		Status:          domain.ReviewStatusPending,
		CreatedAt:       s.now(),
	}
	if err := s.activities.CreateActivity(ctx, activity); err != nil {
		return nil, storageError("create activity", err)
	}
	observability.RecordActivityPersisted(string(activity.Type), activity.CreatedAt)
	s.notifier.Notify(activity.UserID)
	return &activity, nil
}

// ListActivities returns a page of the actor's own activities, newest first.
func (s *Service) ListActivities(ctx context.Context, actor domain.Actor, query domain.ActivityQuery) ([]domain.Activity, *domain.Cursor, error) {
	if err := requireActor(actor); err != nil {
		return nil, nil, err
	}
	if query.Status != "" && !query.Status.Valid() {
		return nil, nil, fmt.Errorf("%w: unknown status %q", domain.ErrValidation, query.Status)
	}
	if !query.From.IsZero() && !query.To.IsZero() && !query.From.Before(query.To) {
		return nil, nil, fmt.Errorf("%w: from must be before to", domain.ErrValidation)
	}
	query.UserID = actor.UserID
	query.Ascending = false
	query.Limit = persistence.PageSize(query.Limit)

	activities, next, err := s.activities.ListActivities(ctx, query)
	if err != nil {
		return nil, nil, storageError("list activities", err)
	}
	return activities, next, nil
}

// ReviewActivity moves a pending activity to validated or rejected.
func (s *Service) ReviewActivity(ctx context.Context, actor domain.Actor, id string, status domain.ReviewStatus) (*domain.Activity, error) {
	if !actor.IsAdmin() {
		return nil, fmt.Errorf("%w: reviewing activities requires the admin role", domain.ErrForbidden)
	}
	if !status.Terminal() {
		return nil, fmt.Errorf("%w: review status must be validated or rejected", domain.ErrValidation)
	}
	current, err := s.activities.GetActivity(ctx, id)
	if err != nil {
		return nil, storageError("get activity", err)
	}
	if current == nil {
		return nil, fmt.Errorf("%w: activity %s", domain.ErrNotFound, id)
	}
	if current.Status != domain.ReviewStatusPending {
		return nil, fmt.Errorf("%w: activity %s is already %s", domain.ErrInvalidTransition, id, current.Status)
	}

	updated, err := s.activities.UpdateActivityStatus(ctx, id, domain.ReviewStatusPending, status)
	if err != nil {
		return nil, storageError("update activity status", err)
	}
	if updated == nil {
		return nil, fmt.Errorf("%w: activity %s", domain.ErrNotFound, id)
	}
	observability.RecordReview(string(status))
	s.logger.Info("activity reviewed",
		zap.String("activity_id", id),
		zap.String("reviewer_id", actor.UserID),
		zap.String("status", string(status)))
	s.notifier.Notify(updated.UserID)
	return updated, nil
}

// PendingReviews lists pending activities across users, oldest first.
func (s *Service) PendingReviews(ctx context.Context, actor domain.Actor, limit int) ([]domain.PendingReview, error) {
	if !actor.IsAdmin() {
		return nil, fmt.Errorf("%w: the review queue requires the admin role", domain.ErrForbidden)
	}
	activities, _, err := s.activities.ListActivities(ctx, domain.ActivityQuery{
		Status:    domain.ReviewStatusPending,
		Limit:     persistence.PageSize(limit),
		Ascending: true,
	})
	if err != nil {
		return nil, storageError("list pending activities", err)
	}

	ids := make([]string, 0, len(activities))
	seen := make(map[string]struct{}, len(activities))
	for _, a := range activities {
		if _, ok := seen[a.UserID]; !ok {
			seen[a.UserID] = struct{}{}
			ids = append(ids, a.UserID)
		}
	}
	names, err := s.users.UsernamesByID(ctx, ids)
	if err != nil {
		return nil, storageError("resolve usernames", err)
	}

	reviews := make([]domain.PendingReview, 0, len(activities))
	for _, a := range activities {
		name, ok := names[a.UserID]
		if !ok {
			name = "Unknown User"
		}
		reviews = append(reviews, domain.PendingReview{Activity: a, Username: name})
	}
	return reviews, nil
}

// DeleteActivity removes one of the actor's activities and releases its
// evidence. Evidence release failures are logged only.
func (s *Service) DeleteActivity(ctx context.Context, actor domain.Actor, id string) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	activity, err := s.activities.GetActivity(ctx, id)
	if err != nil {
		return storageError("get activity", err)
	}
	if activity == nil {
		return fmt.Errorf("%w: activity %s", domain.ErrNotFound, id)
	}
	if activity.UserID != actor.UserID {
		return fmt.Errorf("%w: activity %s belongs to another user", domain.ErrForbidden, id)
	}
	if err := s.activities.DeleteActivity(ctx, id); err != nil {
		return storageError("delete activity", err)
	}
	if activity.HasEvidence() && s.blobs != nil {
		if err := s.blobs.Delete(ctx, activity.EvidenceURL); err != nil {
			s.logger.Warn("release evidence", zap.String("activity_id", id), zap.String("url", activity.EvidenceURL), zap.Error(err))
		}
	}
	s.notifier.Notify(actor.UserID)
	return nil
}

// CreateGoal validates and stores a new active goal.
func (s *Service) CreateGoal(ctx context.Context, actor domain.Actor, input domain.NewGoal) (*domain.Goal, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if err := input.Validate(); err != nil {
		return nil, err
	}
	category, _ := domain.ParseActivityType(input.ActivityCategory)
	goal := domain.Goal{
		ID:               uuid.NewString(),
		UserID:           actor.UserID,
		Title:            strings.TrimSpace(input.Title),
		Type:             input.Type,
		ActivityCategory: category,
		TargetValue:      input.TargetValue,
		Status:           domain.GoalStatusActive,
		CreatedAt:        s.now(),
	}
	if err := s.goals.CreateGoal(ctx, goal); err != nil {
		return nil, storageError("create goal", err)
	}
	s.notifier.Notify(actor.UserID)
	return &goal, nil
}

// DeleteGoal removes one of the actor's goals.
func (s *Service) DeleteGoal(ctx context.Context, actor domain.Actor, id string) error {
	if _, err := s.ownedGoal(ctx, actor, id); err != nil {
		return err
	}
	if err := s.goals.DeleteGoal(ctx, id); err != nil {
		return storageError("delete goal", err)
	}
	s.notifier.Notify(actor.UserID)
	return nil
}

// CompleteGoal marks an active goal as completed.
func (s *Service) CompleteGoal(ctx context.Context, actor domain.Actor, id string) (*domain.Goal, error) {
	goal, err := s.ownedGoal(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if goal.Status != domain.GoalStatusActive {
		return nil, fmt.Errorf("%w: goal %s is already %s", domain.ErrInvalidTransition, id, goal.Status)
	}
	updated, err := s.goals.UpdateGoalStatus(ctx, id, domain.GoalStatusActive, domain.GoalStatusCompleted)
	if err != nil {
		return nil, storageError("complete goal", err)
	}
	if updated == nil {
		return nil, fmt.Errorf("%w: goal %s", domain.ErrNotFound, id)
	}
	s.notifier.Notify(actor.UserID)
	return updated, nil
}

// ListGoals returns the actor's goals, newest first.
func (s *Service) ListGoals(ctx context.Context, actor domain.Actor) ([]domain.Goal, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	goals, err := s.goals.ListGoals(ctx, actor.UserID)
	if err != nil {
		return nil, storageError("list goals", err)
	}
	return goals, nil
}

// GoalProgress evaluates every goal of the actor as of now.
func (s *Service) GoalProgress(ctx context.Context, actor domain.Actor, now time.Time) ([]GoalProgress, error) {
	goals, err := s.ListGoals(ctx, actor)
	if err != nil {
		return nil, err
	}
	if len(goals) == 0 {
		return []GoalProgress{}, nil
	}

	activities, err := s.collect(ctx, domain.ActivityQuery{
		UserID: actor.UserID,
		Status: domain.ReviewStatusValidated,
		From:   now.Add(-7 * 24 * time.Hour),
	})
	if err != nil {
		return nil, err
	}

	out := make([]GoalProgress, 0, len(goals))
	for _, goal := range goals {
		p, err := progress.Evaluate(goal, activities, now)
		if err != nil {
			return nil, err
		}
		observability.RecordGoalEvaluation(string(goal.Type))
		out = append(out, GoalProgress{Goal: goal, Progress: p})
	}
	return out, nil
}

// WeeklyStatistics summarises the actor's validated activities over the
// seven calendar days ending today.
func (s *Service) WeeklyStatistics(ctx context.Context, actor domain.Actor, now time.Time) (progress.WeeklyStatistics, error) {
	if err := requireActor(actor); err != nil {
		return progress.WeeklyStatistics{}, err
	}
	start := progress.WeekStart(now)
	activities, err := s.collect(ctx, domain.ActivityQuery{
		UserID: actor.UserID,
		Status: domain.ReviewStatusValidated,
		From:   start,
		To:     start.AddDate(0, 0, 7),
	})
	if err != nil {
		return progress.WeeklyStatistics{}, err
	}
	return progress.Summarize(activities, now), nil
}

// RecentHistory returns the actor's n most recent activities of any status.
func (s *Service) RecentHistory(ctx context.Context, actor domain.Actor, n int) ([]domain.Activity, error) {
	activities, _, err := s.ListActivities(ctx, actor, domain.ActivityQuery{Limit: n})
	return activities, err
}

// Insights builds narrative findings from the actor's recent history. It
// never fails: storage and generation errors yield an unavailable result.
func (s *Service) Insights(ctx context.Context, actor domain.Actor) insights.Result {
	recent, err := s.RecentHistory(ctx, actor, s.insights.Limit())
	if err != nil {
		s.logger.Warn("load insight history", zap.String("user_id", actor.UserID), zap.Error(err))
		observability.RecordInsightRequest(string(insights.StatusUnavailable))
		return insights.Result{Status: insights.StatusUnavailable, Message: insights.UnavailableMessage}
	}
	return s.insights.Build(ctx, actor.UserID, recent)
}

func (s *Service) ownedGoal(ctx context.Context, actor domain.Actor, id string) (*domain.Goal, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	goal, err := s.goals.GetGoal(ctx, id)
	if err != nil {
		return nil, storageError("get goal", err)
	}
	if goal == nil {
		return nil, fmt.Errorf("%w: goal %s", domain.ErrNotFound, id)
	}
	if goal.UserID != actor.UserID {
		return nil, fmt.Errorf("%w: goal %s belongs to another user", domain.ErrForbidden, id)
	}
	return goal, nil
}

func (s *Service) collect(ctx context.Context, query domain.ActivityQuery) ([]domain.Activity, error) {
	query.Limit = persistence.MaxPageSize
	var out []domain.Activity
	for {
		page, next, err := s.activities.ListActivities(ctx, query)
		if err != nil {
			return nil, storageError("list activities", err)
		}
		out = append(out, page...)
		if next == nil {
			return out, nil
		}
		query.Cursor = next
	}
}

func requireActor(actor domain.Actor) error {
	if strings.TrimSpace(actor.UserID) == "" {
		return fmt.Errorf("%w: an authenticated user is required", domain.ErrForbidden)
	}
	return nil
}

var passthrough = []error{
	domain.ErrValidation,
	domain.ErrNotFound,
	domain.ErrForbidden,
	domain.ErrInvalidTransition,
	domain.ErrConflict,
	domain.ErrStorage,
	context.Canceled,
	context.DeadlineExceeded,
}

func storageError(op string, err error) error {
	for _, target := range passthrough {
		if errors.Is(err, target) {
			return err
		}
	}
	return fmt.Errorf("%w: %s: %v", domain.ErrStorage, op, err)
}
