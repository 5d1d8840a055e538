package domain

import (
	"fmt"
	"strings"
	"time"
)

// ActivityType is the closed set of loggable session categories.
type ActivityType string

const (
	ActivityTypeStudy   ActivityType = "Study"
	ActivityTypeWorkout ActivityType = "Workout"
	ActivityTypeBreak   ActivityType = "Break"
)

// ActivityTypes lists every supported activity type in display order.
var ActivityTypes = []ActivityType{ActivityTypeStudy, ActivityTypeWorkout, ActivityTypeBreak}

// ParseActivityType returns the matching activity type or a validation error.
func ParseActivityType(value string) (ActivityType, error) {
	for _, t := range ActivityTypes {
		if string(t) == strings.TrimSpace(value) {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: unknown activity type %q", ErrValidation, value)
}

// ReviewStatus represents the reviewer decision on an activity.
type ReviewStatus string

const (
	ReviewStatusPending   ReviewStatus = "pending"
	ReviewStatusValidated ReviewStatus = "validated"
	ReviewStatusRejected  ReviewStatus = "rejected"
)

// Valid reports whether the status belongs to the known set.
func (s ReviewStatus) Valid() bool {
	switch s {
	case ReviewStatusPending, ReviewStatusValidated, ReviewStatusRejected:
		return true
	}
	return false
}

// Terminal reports whether no further review transition is allowed.
func (s ReviewStatus) Terminal() bool {
	return s == ReviewStatusValidated || s == ReviewStatusRejected
}

// Activity is a single logged, timed session.
type Activity struct {
	ID              string
	UserID          string
	Name            string
	Type            ActivityType
	DurationMinutes int
	Details         Details
	EvidenceURL     string
	Status          ReviewStatus
	CreatedAt       time.Time
}

// HasEvidence reports whether an uploaded artifact is attached.
func (a Activity) HasEvidence() bool {
	return strings.TrimSpace(a.EvidenceURL) != ""
}

// NewActivity carries the fields a recorder supplies when a session finishes.
type NewActivity struct {
	UserID          string
	Name            string
	Type            ActivityType
	DurationMinutes int
	Details         Details
	EvidenceURL     string
}

// Validate checks the invariants of a freshly recorded activity.
func (n NewActivity) Validate() error {
	if strings.TrimSpace(n.UserID) == "" {
		return fmt.Errorf("%w: user id is required", ErrValidation)
	}
	if strings.TrimSpace(n.Name) == "" {
		return fmt.Errorf("%w: activity name is required", ErrValidation)
	}
	if _, err := ParseActivityType(string(n.Type)); err != nil {
		return err
	}
	if n.DurationMinutes < 0 {
		return fmt.Errorf("%w: duration must not be negative", ErrValidation)
	}
	if n.Details == nil {
		return fmt.Errorf("%w: details are required", ErrValidation)
	}
	if n.Details.ActivityType() != n.Type {
		return fmt.Errorf("%w: %s details cannot describe a %s activity", ErrValidation, n.Details.ActivityType(), n.Type)
	}
	return n.Details.Validate()
}

// GoalType selects the aggregation window used for a goal.
type GoalType string

const (
	GoalTypeDailyDuration   GoalType = "daily_duration"
	GoalTypeWeeklyFrequency GoalType = "weekly_frequency"
)

// GoalStatus tracks whether the owner has closed a goal.
type GoalStatus string

const (
	GoalStatusActive    GoalStatus = "active"
	GoalStatusCompleted GoalStatus = "completed"
)

// Goal is a user-defined target over one activity category.
type Goal struct {
	ID               string
	UserID           string
	Title            string
	Type             GoalType
	ActivityCategory ActivityType
	TargetValue      int
	Status           GoalStatus
	CreatedAt        time.Time
}

// NewGoal is the user input for goal creation.
type NewGoal struct {
	Title            string
	Type             GoalType
	ActivityCategory string
	TargetValue      int
}

// Validate ensures title, type, category and target are usable.
func (n NewGoal) Validate() error {
	if strings.TrimSpace(n.Title) == "" {
		return fmt.Errorf("%w: goal title is required", ErrValidation)
	}
	if n.Type != GoalTypeDailyDuration && n.Type != GoalTypeWeeklyFrequency {
		return fmt.Errorf("%w: unknown goal type %q", ErrValidation, n.Type)
	}
	if _, err := ParseActivityType(n.ActivityCategory); err != nil {
		return fmt.Errorf("%w: activity category must be one of Study, Workout, Break", ErrValidation)
	}
	if n.TargetValue <= 0 {
		return fmt.Errorf("%w: target value must be greater than 0", ErrValidation)
	}
	return nil
}

// Role grants capabilities to a user.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// UserProfile is account metadata owned by the identity service.
type UserProfile struct {
	UID       string
	Username  string
	Email     string
	Role      Role
	CreatedAt time.Time
}

// Actor identifies who performs an operation and with which role.
type Actor struct {
	UserID string
	Role   Role
}

// IsAdmin reports whether the actor may review other users' activities.
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// Cursor models the pagination token for activity listings.
type Cursor struct {
	CreatedAt time.Time
	ID        string
}

// ActivityQuery narrows an activity listing.
type ActivityQuery struct {
	UserID string
	Status ReviewStatus
	From   time.Time
	To     time.Time
	Cursor *Cursor
	Limit  int
	// Ascending flips the default newest-first ordering.
	Ascending bool
}

// PendingReview joins a pending activity with its owner's username.
type PendingReview struct {
	Activity Activity
	Username string
}
