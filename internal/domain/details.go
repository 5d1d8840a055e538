package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"unicode/utf8"
)

// Details is the type-specific payload attached to an activity. Each activity
// type has exactly one concrete implementation.
type Details interface {
	ActivityType() ActivityType
	Validate() error
	// Fields renders the payload as a flat key/value view for clients and prompts.
	Fields() map[string]any
}

// FocusLevel grades how focused a study session was.
type FocusLevel string

const (
	FocusFull   FocusLevel = "full"
	FocusMedium FocusLevel = "medium"
	FocusLow    FocusLevel = "low"
)

// Priority ranks a study session.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Intensity grades a workout.
type Intensity string

const (
	IntensityLight    Intensity = "light"
	IntensityModerate Intensity = "moderate"
	IntensityVigorous Intensity = "vigorous"
)

const maxStudyNoteLength = 500

// StudyDetails describes a study session.
type StudyDetails struct {
	FocusLevel FocusLevel `json:"focus_level"`
	Priority   Priority   `json:"priority,omitempty"`
	Note       string     `json:"note,omitempty"`
}

func (StudyDetails) ActivityType() ActivityType { return ActivityTypeStudy }

func (d StudyDetails) Validate() error {
	switch d.FocusLevel {
	case FocusFull, FocusMedium, FocusLow:
	default:
		return fmt.Errorf("%w: focus_level must be one of full, medium, low", ErrValidation)
	}
	switch d.Priority {
	case "", PriorityHigh, PriorityMedium, PriorityLow:
	default:
		return fmt.Errorf("%w: priority must be one of high, medium, low", ErrValidation)
	}
	if utf8.RuneCountInString(d.Note) > maxStudyNoteLength {
		return fmt.Errorf("%w: note exceeds %d characters", ErrValidation, maxStudyNoteLength)
	}
	return nil
}

func (d StudyDetails) Fields() map[string]any {
	out := map[string]any{"focus_level": string(d.FocusLevel)}
	if d.Priority != "" {
		out["priority"] = string(d.Priority)
	}
	if d.Note != "" {
		out["note"] = d.Note
	}
	return out
}

// WorkoutDetails describes a workout session.
type WorkoutDetails struct {
	Intensity Intensity `json:"intensity"`
}

func (WorkoutDetails) ActivityType() ActivityType { return ActivityTypeWorkout }

func (d WorkoutDetails) Validate() error {
	switch d.Intensity {
	case IntensityLight, IntensityModerate, IntensityVigorous:
		return nil
	}
	return fmt.Errorf("%w: intensity must be one of light, moderate, vigorous", ErrValidation)
}

func (d WorkoutDetails) Fields() map[string]any {
	return map[string]any{"intensity": string(d.Intensity)}
}

// BreakDetails describes a rest period, rated 1 (poor) to 5 (restful).
type BreakDetails struct {
	Quality int `json:"quality"`
}

func (BreakDetails) ActivityType() ActivityType { return ActivityTypeBreak }

func (d BreakDetails) Validate() error {
	if d.Quality < 1 || d.Quality > 5 {
		return fmt.Errorf("%w: quality must be between 1 and 5", ErrValidation)
	}
	return nil
}

func (d BreakDetails) Fields() map[string]any {
	return map[string]any{"quality": d.Quality}
}

// DefaultDetails returns the payload used when a client omits details.
func DefaultDetails(t ActivityType) (Details, error) {
	switch t {
	case ActivityTypeStudy:
		return StudyDetails{FocusLevel: FocusFull, Priority: PriorityHigh}, nil
	case ActivityTypeWorkout:
		return WorkoutDetails{Intensity: IntensityModerate}, nil
	case ActivityTypeBreak:
		return BreakDetails{Quality: 3}, nil
	}
	return nil, fmt.Errorf("%w: unknown activity type %q", ErrValidation, t)
}

// ParseDetails decodes and validates the payload for the given activity type.
// Unknown keys are rejected. An empty payload yields the type's defaults.
func ParseDetails(t ActivityType, raw []byte) (Details, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return DefaultDetails(t)
	}

	var target Details
	var err error
	switch t {
	case ActivityTypeStudy:
		var d StudyDetails
		err = decodeStrict(trimmed, &d)
		target = d
	case ActivityTypeWorkout:
		var d WorkoutDetails
		err = decodeStrict(trimmed, &d)
		target = d
	case ActivityTypeBreak:
		var d BreakDetails
		err = decodeStrict(trimmed, &d)
		target = d
	default:
		return nil, fmt.Errorf("%w: unknown activity type %q", ErrValidation, t)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: invalid %s details: %v", ErrValidation, t, err)
	}
	if err := target.Validate(); err != nil {
		return nil, err
	}
	return target, nil
}

// MarshalDetails encodes the payload for storage.
func MarshalDetails(d Details) ([]byte, error) {
	if d == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(d)
}

func decodeStrict(raw []byte, dst any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
