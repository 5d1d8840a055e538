package domain

import "errors"

var (
	// ErrValidation marks missing or invalid user input. No state was changed.
	ErrValidation = errors.New("validation failed")
	// ErrStorage wraps failures reported by the storage collaborator.
	ErrStorage = errors.New("storage unavailable")
	// ErrUpload wraps evidence upload failures.
	ErrUpload = errors.New("evidence upload failed")
	// ErrGeneration marks an insight collaborator failure or non-conformant output.
	ErrGeneration = errors.New("insight generation failed")
	// ErrDivision is returned when a goal target would be used as a zero divisor.
	ErrDivision = errors.New("goal target value must be greater than zero")
	// ErrNotFound is returned when a record cannot be located.
	ErrNotFound = errors.New("not found")
	// ErrForbidden is returned when the actor lacks the capability or ownership.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidTransition is returned for review or goal status changes out of order.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrConflict is returned when a unique attribute is already taken.
	ErrConflict = errors.New("conflict")
	// ErrAlreadyTracking is returned by a recorder asked to start twice.
	ErrAlreadyTracking = errors.New("an activity is already being tracked")
	// ErrNotTracking is returned by a recorder that has nothing to finish.
	ErrNotTracking = errors.New("no activity is being tracked")
)
