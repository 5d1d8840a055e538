package domain

import "time"

// Evidence is a file staged with a tracking session and uploaded when the
// session finishes.
type Evidence struct {
	Name        string
	ContentType string
	Data        []byte
}

// TrackingSession is an activity being timed for a user. At most one exists
// per user.
type TrackingSession struct {
	UserID    string
	Name      string
	Type      ActivityType
	Details   Details
	StartedAt time.Time
	Evidence  *Evidence
	// ClaimedAt is set while a finish is uploading and recording the session.
	ClaimedAt *time.Time
}
