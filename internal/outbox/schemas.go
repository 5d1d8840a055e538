package outbox

import "example.com/smartroutine/internal/platform/events"

const activityRecordedSchema = `{
  "type": "object",
  "title": "ActivityRecorded",
  "properties": {
    "activity_id": {"type": "string"},
    "user_id": {"type": "string"},
    "name": {"type": "string"},
    "activity_type": {"type": "string", "enum": ["Study", "Workout", "Break"]},
    "duration_minutes": {"type": "integer", "minimum": 0},
    "details": {"type": "object"},
    "has_evidence": {"type": "boolean"},
    "created_at": {"type": "string", "format": "date-time"}
  },
  "required": ["activity_id", "user_id", "name", "activity_type", "duration_minutes", "details", "created_at"],
  "additionalProperties": false
}`

const activityReviewedSchema = `{
  "type": "object",
  "title": "ActivityReviewed",
  "properties": {
    "activity_id": {"type": "string"},
    "user_id": {"type": "string"},
    "status": {"type": "string", "enum": ["validated", "rejected"]},
    "occurred_at": {"type": "string", "format": "date-time"}
  },
  "required": ["activity_id", "user_id", "status", "occurred_at"],
  "additionalProperties": false
}`

const activityDeletedSchema = `{
  "type": "object",
  "title": "ActivityDeleted",
  "properties": {
    "activity_id": {"type": "string"},
    "user_id": {"type": "string"},
    "occurred_at": {"type": "string", "format": "date-time"}
  },
  "required": ["activity_id", "user_id", "occurred_at"],
  "additionalProperties": false
}`

const goalChangedSchema = `{
  "type": "object",
  "title": "GoalChanged",
  "properties": {
    "goal_id": {"type": "string"},
    "user_id": {"type": "string"},
    "change": {"type": "string", "enum": ["created", "completed", "deleted"]},
    "status": {"type": "string"},
    "occurred_at": {"type": "string", "format": "date-time"}
  },
  "required": ["goal_id", "user_id", "change", "occurred_at"],
  "additionalProperties": false
}`

// SchemaCatalogEntry maps event type to schema definition.
type SchemaCatalogEntry struct {
	Schema string
}

var schemaCatalog = map[string]SchemaCatalogEntry{
	events.TypeActivityRecorded: {Schema: activityRecordedSchema},
	events.TypeActivityReviewed: {Schema: activityReviewedSchema},
	events.TypeActivityDeleted:  {Schema: activityDeletedSchema},
	events.TypeGoalChanged:      {Schema: goalChangedSchema},
}
