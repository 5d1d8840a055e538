// Package events defines the payloads published through the outbox.
package events

import (
	"encoding/json"
	"time"
)

// Event types.
const (
	TypeActivityRecorded = "activity.recorded"
	TypeActivityReviewed = "activity.reviewed"
	TypeActivityDeleted  = "activity.deleted"
	TypeGoalChanged      = "goal.changed"
)

// Topics.
const (
	TopicActivityEvents = "activity_events"
	TopicGoalEvents     = "goal_events"
)

// SubjectFor returns the Schema Registry subject of an event type.
func SubjectFor(eventType string) string {
	switch eventType {
	case TypeActivityRecorded:
		return "smartroutine.activity_recorded-value"
	case TypeActivityReviewed:
		return "smartroutine.activity_reviewed-value"
	case TypeActivityDeleted:
		return "smartroutine.activity_deleted-value"
	case TypeGoalChanged:
		return "smartroutine.goal_changed-value"
	}
	return ""
}

// TopicFor returns the topic an event type is published to.
func TopicFor(eventType string) string {
	if eventType == TypeGoalChanged {
		return TopicGoalEvents
	}
	return TopicActivityEvents
}

// ActivityRecorded is emitted when a finished session is stored as pending.
type ActivityRecorded struct {
	ActivityID      string          `json:"activity_id"`
	UserID          string          `json:"user_id"`
	Name            string          `json:"name"`
	ActivityType    string          `json:"activity_type"`
	DurationMinutes int             `json:"duration_minutes"`
	Details         json.RawMessage `json:"details"`
	HasEvidence     bool            `json:"has_evidence"`
	CreatedAt       time.Time       `json:"created_at"`
}

// ActivityReviewed is emitted when a reviewer validates or rejects an activity.
type ActivityReviewed struct {
	ActivityID string    `json:"activity_id"`
	UserID     string    `json:"user_id"`
	Status     string    `json:"status"`
	OccurredAt time.Time `json:"occurred_at"`
}

// ActivityDeleted is emitted when an owner deletes an activity.
type ActivityDeleted struct {
	ActivityID string    `json:"activity_id"`
	UserID     string    `json:"user_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// GoalChanged is emitted when a goal is created, completed or deleted.
type GoalChanged struct {
	GoalID     string    `json:"goal_id"`
	UserID     string    `json:"user_id"`
	Change     string    `json:"change"`
	Status     string    `json:"status,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Goal change kinds.
const (
	GoalCreated   = "created"
	GoalCompleted = "completed"
	GoalDeleted   = "deleted"
)

// Owner extracts the user_id field shared by every payload.
func Owner(payload []byte) (string, error) {
	var envelope struct {
		UserID string `json:"user_id"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return "", err
	}
	return envelope.UserID, nil
}
