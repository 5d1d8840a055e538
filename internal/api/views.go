package api

import (
	"encoding/json"
	"time"

	"example.com/smartroutine/internal/domain"
	"example.com/smartroutine/internal/progress"
	"example.com/smartroutine/internal/recorder"
	"example.com/smartroutine/internal/service"
	authlib "example.com/smartroutine/internal/platform/auth"
)

// ActivityView is the wire form of an activity.
type ActivityView struct {
	ID              string         `json:"id"`
	UserID          string         `json:"user_id"`
	Name            string         `json:"name"`
	ActivityType    string         `json:"activity_type"`
	DurationMinutes int            `json:"duration_minutes"`
	Details         map[string]any `json:"details"`
	EvidenceURL     string         `json:"evidence_url,omitempty"`
	Status          string         `json:"status"`
	CreatedAt       time.Time      `json:"created_at"`
}

func toActivityView(a domain.Activity) ActivityView {
	view := ActivityView{
		ID:              a.ID,
		UserID:          a.UserID,
		Name:            a.Name,
		ActivityType:    string(a.Type),
		DurationMinutes: a.DurationMinutes,
		Details:         map[string]any{},
		EvidenceURL:     a.EvidenceURL,
		Status:          string(a.Status),
		CreatedAt:       a.CreatedAt,
	}
	if a.Details != nil {
		view.Details = a.Details.Fields()
	}
	return view
}

func toActivityViews(activities []domain.Activity) []ActivityView {
	items := make([]ActivityView, 0, len(activities))
	for _, a := range activities {
		items = append(items, toActivityView(a))
	}
	return items
}

// ListActivitiesResponse packages list results.
type ListActivitiesResponse struct {
	Items      []ActivityView `json:"items"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

// PendingReviewView pairs a queued activity with its owner's name.
type PendingReviewView struct {
	Activity ActivityView `json:"activity"`
	Username string       `json:"username"`
}

// ReviewRequest is the payload for POST /v1/activities/{id}/review.
type ReviewRequest struct {
	Status string `json:"status" validate:"required,oneof=validated rejected"`
}

// GoalView is the wire form of a goal.
type GoalView struct {
	ID               string    `json:"id"`
	Title            string    `json:"title"`
	GoalType         string    `json:"goal_type"`
	ActivityCategory string    `json:"activity_category"`
	TargetValue      int       `json:"target_value"`
	Status           string    `json:"status"`
	CreatedAt        time.Time `json:"created_at"`
}

func toGoalView(g domain.Goal) GoalView {
	return GoalView{
		ID:               g.ID,
		Title:            g.Title,
		GoalType:         string(g.Type),
		ActivityCategory: string(g.ActivityCategory),
		TargetValue:      g.TargetValue,
		Status:           string(g.Status),
		CreatedAt:        g.CreatedAt,
	}
}

func toGoalViews(goals []domain.Goal) []GoalView {
	items := make([]GoalView, 0, len(goals))
	for _, g := range goals {
		items = append(items, toGoalView(g))
	}
	return items
}

// CreateGoalRequest is the payload for POST /v1/goals.
type CreateGoalRequest struct {
	Title            string `json:"title" validate:"required,max=120"`
	GoalType         string `json:"goal_type" validate:"required,oneof=daily_duration weekly_frequency"`
	ActivityCategory string `json:"activity_category" validate:"required"`
	TargetValue      int    `json:"target_value" validate:"gt=0"`
}

// GoalProgressView reports the evaluated progress of one goal.
type GoalProgressView struct {
	Goal     GoalView `json:"goal"`
	Percent  float64  `json:"percent"`
	RawValue float64  `json:"raw_value"`
	Complete bool     `json:"complete"`
}

func toGoalProgressViews(items []service.GoalProgress) []GoalProgressView {
	out := make([]GoalProgressView, 0, len(items))
	for _, item := range items {
		out = append(out, GoalProgressView{
			Goal:     toGoalView(item.Goal),
			Percent:  item.Progress.Percent,
			RawValue: item.Progress.RawValue,
			Complete: item.Progress.Complete(),
		})
	}
	return out
}

// DailyTotalView is one bar of the weekly chart.
type DailyTotalView struct {
	Date    string `json:"date"`
	Label   string `json:"label"`
	Minutes int    `json:"minutes"`
}

// WeeklyStatisticsView is the wire form of progress.WeeklyStatistics.
type WeeklyStatisticsView struct {
	Days             []DailyTotalView `json:"days"`
	MinutesByType    map[string]int   `json:"minutes_by_type"`
	TotalMinutes     int              `json:"total_minutes"`
	BestDay          DailyTotalView   `json:"best_day"`
	MostFrequentType string           `json:"most_frequent_type"`
}

func toDailyTotalView(d progress.DailyTotal) DailyTotalView {
	return DailyTotalView{Date: d.Date.Format(time.DateOnly), Label: d.Label, Minutes: d.Minutes}
}

func toWeeklyStatisticsView(stats progress.WeeklyStatistics) WeeklyStatisticsView {
	view := WeeklyStatisticsView{
		Days:             make([]DailyTotalView, 0, len(stats.Days)),
		MinutesByType:    make(map[string]int, len(stats.MinutesByType)),
		TotalMinutes:     stats.TotalMinutes,
		BestDay:          toDailyTotalView(stats.BestDay),
		MostFrequentType: stats.MostFrequentType,
	}
	for _, d := range stats.Days {
		view.Days = append(view.Days, toDailyTotalView(d))
	}
	for t, minutes := range stats.MinutesByType {
		view.MinutesByType[string(t)] = minutes
	}
	return view
}

// StartTrackingRequest is the payload for POST /v1/tracking/start.
type StartTrackingRequest struct {
	Name         string          `json:"name" validate:"required,max=120"`
	ActivityType string          `json:"activity_type" validate:"required,oneof=Study Workout Break"`
	Details      json.RawMessage `json:"details,omitempty"`
}

// TrackingView reports the recorder state.
type TrackingView struct {
	State          string     `json:"state"`
	Name           string     `json:"name,omitempty"`
	ActivityType   string     `json:"activity_type,omitempty"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	ElapsedSeconds int64      `json:"elapsed_seconds"`
	Evidence       string     `json:"evidence,omitempty"`
}

func toTrackingView(s recorder.Status) TrackingView {
	view := TrackingView{
		State:          string(s.State),
		Name:           s.Name,
		ActivityType:   string(s.Type),
		ElapsedSeconds: int64(s.Elapsed / time.Second),
		Evidence:       s.EvidenceName,
	}
	if !s.StartedAt.IsZero() {
		started := s.StartedAt
		view.StartedAt = &started
	}
	return view
}

// RegisterRequest is the payload for POST /v1/auth/register.
type RegisterRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
	Username string `json:"username" validate:"required"`
}

// SignInRequest is the payload for POST /v1/auth/sign-in.
type SignInRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// ProfileView is the wire form of an account.
type ProfileView struct {
	UID       string    `json:"uid"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

func toProfileView(p domain.UserProfile) ProfileView {
	return ProfileView{UID: p.UID, Username: p.Username, Email: p.Email, Role: string(p.Role), CreatedAt: p.CreatedAt}
}

// SignInResponse carries the bearer token and the signed-in account.
type SignInResponse struct {
	AccessToken string      `json:"access_token"`
	TokenType   string      `json:"token_type"`
	ExpiresAt   time.Time   `json:"expires_at"`
	User        ProfileView `json:"user"`
}

func toSignInResponse(token authlib.Token, profile domain.UserProfile) SignInResponse {
	return SignInResponse{
		AccessToken: token.Value,
		TokenType:   token.Type,
		ExpiresAt:   token.ExpiresAt,
		User:        toProfileView(profile),
	}
}

// SnapshotView is one server-sent snapshot.
type SnapshotView struct {
	Collection string          `json:"collection"`
	At         time.Time       `json:"at"`
	Activities []ActivityView `json:"activities,omitempty"`
	Goals      []GoalView      `json:"goals,omitempty"`
}
