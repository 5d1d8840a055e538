// Package domain defines the SmartRoutine data model, error taxonomy and the
// ports implemented by the storage, blob and notification adapters.
package domain

import (
	"context"
	"io"
	"time"
)

// ActivityRepository captures activity persistence. Lookups return nil, nil
// when the record does not exist.
type ActivityRepository interface {
	CreateActivity(ctx context.Context, activity Activity) error
	GetActivity(ctx context.Context, id string) (*Activity, error)
	ListActivities(ctx context.Context, query ActivityQuery) ([]Activity, *Cursor, error)
	// UpdateActivityStatus moves a single activity from one status to another.
	// It returns ErrInvalidTransition when the stored status is not from.
	UpdateActivityStatus(ctx context.Context, id string, from, to ReviewStatus) (*Activity, error)
	DeleteActivity(ctx context.Context, id string) error
}

// GoalRepository captures goal persistence.
type GoalRepository interface {
	CreateGoal(ctx context.Context, goal Goal) error
	GetGoal(ctx context.Context, id string) (*Goal, error)
	ListGoals(ctx context.Context, userID string) ([]Goal, error)
	UpdateGoalStatus(ctx context.Context, id string, from, to GoalStatus) (*Goal, error)
	DeleteGoal(ctx context.Context, id string) error
}

// UserRepository captures account persistence.
type UserRepository interface {
	// CreateUser returns ErrConflict when the email is already registered.
	CreateUser(ctx context.Context, profile UserProfile, passwordHash string) error
	GetUser(ctx context.Context, uid string) (*UserProfile, error)
	FindCredentials(ctx context.Context, email string) (*UserProfile, string, error)
	UsernamesByID(ctx context.Context, uids []string) (map[string]string, error)
	SetRole(ctx context.Context, uid string, role Role) error
}

// SessionRepository stores in-progress tracking sessions so that any API
// process can finish a session another one started.
type SessionRepository interface {
	// CreateSession returns ErrAlreadyTracking when the user has a session.
	CreateSession(ctx context.Context, session TrackingSession) error
	GetSession(ctx context.Context, userID string) (*TrackingSession, error)
	// SetSessionEvidence returns ErrNotTracking when the user has no session
	// or its finish is in progress.
	SetSessionEvidence(ctx context.Context, userID string, evidence Evidence) error
	// ClaimSession marks the session as finishing and returns it. Claims older
	// than staleAfter are taken over. It returns nil, nil when there is no
	// session to claim.
	ClaimSession(ctx context.Context, userID string, now time.Time, staleAfter time.Duration) (*TrackingSession, error)
	// ReleaseSession drops the claim so the finish can be retried.
	ReleaseSession(ctx context.Context, userID string) error
	DeleteSession(ctx context.Context, userID string) error
}

// BlobStore stores evidence artifacts.
type BlobStore interface {
	Upload(ctx context.Context, path, contentType string, body io.Reader, size int64) (string, error)
	// Delete removes a previously uploaded object by the URL Upload returned.
	Delete(ctx context.Context, url string) error
}

// Notifier is told whenever a user's collections changed.
type Notifier interface {
	Notify(userID string)
}

// NoopNotifier discards notifications.
type NoopNotifier struct{}

// Notify performs no action.
func (NoopNotifier) Notify(string) {}
