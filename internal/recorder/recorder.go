// Package recorder times a single activity session and records it on finish.
// Session state lives in a domain.SessionRepository, so a session started
// through one process can be finished through another.
package recorder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"example.com/smartroutine/internal/domain"
)

// State is the recorder lifecycle position.
type State string

const (
	StateIdle     State = "idle"
	StateTracking State = "tracking"
)

// DurationPolicy converts whole elapsed minutes into the recorded duration.
type DurationPolicy string

const (
	// ClampToOneMinute records at least one minute for any finished session.
	ClampToOneMinute DurationPolicy = "clamp"
	// Floor records the floored elapsed minutes, which may be zero.
	Floor DurationPolicy = "floor"
)

// ParseDurationPolicy maps a configuration value onto a policy.
func ParseDurationPolicy(value string) (DurationPolicy, error) {
	switch DurationPolicy(strings.ToLower(strings.TrimSpace(value))) {
	case "", ClampToOneMinute:
		return ClampToOneMinute, nil
	case Floor:
		return Floor, nil
	}
	return "", fmt.Errorf("%w: unknown duration policy %q", domain.ErrValidation, value)
}

func (p DurationPolicy) apply(elapsed time.Duration) int {
	minutes := int(elapsed.Milliseconds() / 60000)
	if minutes < 0 {
		minutes = 0
	}
	if p != Floor && minutes < 1 {
		return 1
	}
	return minutes
}

// DefaultMaxEvidenceBytes bounds an attached evidence file.
const DefaultMaxEvidenceBytes int64 = 10 << 20

// DefaultClaimTimeout is how long a finish may hold a session before another
// finish takes it over.
const DefaultClaimTimeout = 2 * time.Minute

var allowedEvidenceTypes = map[string]struct{}{
	"image/png":       {},
	"image/jpeg":      {},
	"image/gif":       {},
	"image/webp":      {},
	"application/pdf": {},
	"text/plain":      {},
}

// Evidence is a file staged until the session finishes.
type Evidence = domain.Evidence

// Sink receives finished activities.
type Sink interface {
	RecordActivity(ctx context.Context, activity domain.NewActivity) (*domain.Activity, error)
}

// Clock supplies the current instant.
type Clock func() time.Time

// TickFunc is invoked about once per second with the elapsed session time.
type TickFunc func(elapsed time.Duration)

// Status is a point-in-time view of the recorder.
type Status struct {
	State        State
	Name         string
	Type         domain.ActivityType
	StartedAt    time.Time
	Elapsed      time.Duration
	EvidenceName string
}

// Option customises a Recorder.
type Option func(*Recorder)

// WithClock replaces the wall clock.
func WithClock(clock Clock) Option {
	return func(r *Recorder) { r.clock = clock }
}

// WithDurationPolicy selects how elapsed minutes are rounded.
func WithDurationPolicy(policy DurationPolicy) Option {
	return func(r *Recorder) { r.policy = policy }
}

// WithMaxEvidenceBytes overrides DefaultMaxEvidenceBytes.
func WithMaxEvidenceBytes(limit int64) Option {
	return func(r *Recorder) {
		if limit > 0 {
			r.maxEvidence = limit
		}
	}
}

// WithClaimTimeout overrides DefaultClaimTimeout.
func WithClaimTimeout(d time.Duration) Option {
	return func(r *Recorder) {
		if d > 0 {
			r.claimTimeout = d
		}
	}
}

// WithTick registers a display callback run while this process tracks.
func WithTick(fn TickFunc, interval time.Duration) Option {
	return func(r *Recorder) {
		r.onTick = fn
		if interval > 0 {
			r.tickInterval = interval
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Recorder) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// Recorder is the per-user Idle/Tracking state machine.
type Recorder struct {
	userID       string
	sink         Sink
	sessions     domain.SessionRepository
	uploader     domain.BlobStore
	clock        Clock
	policy       DurationPolicy
	maxEvidence  int64
	claimTimeout time.Duration
	onTick       TickFunc
	tickInterval time.Duration
	logger       *zap.Logger

	// finishing serialises finishes issued through this process; the session
	// claim does the same across processes.
	finishing  sync.Mutex
	mu         sync.Mutex
	stopTicker context.CancelFunc
	tickDone   chan struct{}
}

// New constructs a Recorder for userID. uploader may be nil when evidence
// uploads are not configured.
func New(userID string, sink Sink, sessions domain.SessionRepository, uploader domain.BlobStore, opts ...Option) *Recorder {
	r := &Recorder{
		userID:       userID,
		sink:         sink,
		sessions:     sessions,
		uploader:     uploader,
		clock:        time.Now,
		policy:       ClampToOneMinute,
		maxEvidence:  DefaultMaxEvidenceBytes,
		claimTimeout: DefaultClaimTimeout,
		tickInterval: time.Second,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start begins tracking. Nil details fall back to the type's defaults. The
// tick goroutine, if any, also stops when ctx is cancelled.
func (r *Recorder) Start(ctx context.Context, name string, activityType domain.ActivityType, details domain.Details) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: activity name is required", domain.ErrValidation)
	}
	t, err := domain.ParseActivityType(string(activityType))
	if err != nil {
		return err
	}
	if details == nil {
		if details, err = domain.DefaultDetails(t); err != nil {
			return err
		}
	}
	if details.ActivityType() != t {
		return fmt.Errorf("%w: %s details cannot describe a %s activity", domain.ErrValidation, details.ActivityType(), t)
	}
	if err := details.Validate(); err != nil {
		return err
	}

	session := domain.TrackingSession{
		UserID:    r.userID,
		Name:      name,
		Type:      t,
		Details:   details,
		StartedAt: r.clock(),
	}
	if err := r.sessions.CreateSession(ctx, session); err != nil {
		return storageError("create session", err)
	}
	r.startTicker(ctx, session.StartedAt)
	return nil
}

// AttachEvidence stages a file to upload when the session finishes. A later
// call replaces an earlier attachment. It fails with ErrNotTracking while a
// finish is in progress.
func (r *Recorder) AttachEvidence(ctx context.Context, evidence Evidence) error {
	evidence.Name = path.Base(strings.ReplaceAll(strings.TrimSpace(evidence.Name), "\\", "/"))
	if evidence.Name == "" || evidence.Name == "." || evidence.Name == "/" {
		return fmt.Errorf("%w: evidence file name is required", domain.ErrValidation)
	}
	if len(evidence.Data) == 0 {
		return fmt.Errorf("%w: evidence file is empty", domain.ErrValidation)
	}
	if int64(len(evidence.Data)) > r.maxEvidence {
		return fmt.Errorf("%w: evidence exceeds %d bytes", domain.ErrValidation, r.maxEvidence)
	}
	contentType := strings.ToLower(strings.TrimSpace(strings.SplitN(evidence.ContentType, ";", 2)[0]))
	if _, ok := allowedEvidenceTypes[contentType]; !ok {
		return fmt.Errorf("%w: evidence content type %q is not allowed", domain.ErrValidation, evidence.ContentType)
	}
	evidence.ContentType = contentType

	if err := r.sessions.SetSessionEvidence(ctx, r.userID, evidence); err != nil {
		return storageError("stage evidence", err)
	}
	return nil
}

// Finish uploads staged evidence, records the activity and returns to idle.
// Once begun it ignores cancellation of ctx. On failure the session is
// released and stays in tracking so the caller may retry.
func (r *Recorder) Finish(ctx context.Context) (*domain.Activity, error) {
	r.finishing.Lock()
	defer r.finishing.Unlock()
	ctx = context.WithoutCancel(ctx)

	now := r.clock()
	session, err := r.sessions.ClaimSession(ctx, r.userID, now, r.claimTimeout)
	if err != nil {
		return nil, storageError("claim session", err)
	}
	if session == nil {
		return nil, domain.ErrNotTracking
	}

	activity, err := r.record(ctx, session, now)
	if err != nil {
		if relErr := r.sessions.ReleaseSession(ctx, r.userID); relErr != nil {
			r.logger.Warn("release tracking session", zap.String("user_id", r.userID), zap.Error(relErr))
		}
		return nil, err
	}

	if err := r.sessions.DeleteSession(ctx, r.userID); err != nil {
		// The activity is stored; the claim keeps the session from being
		// finished again until it goes stale.
		r.logger.Error("delete finished session", zap.String("user_id", r.userID), zap.Error(err))
	}
	r.stopTick()
	return activity, nil
}

func (r *Recorder) record(ctx context.Context, session *domain.TrackingSession, now time.Time) (*domain.Activity, error) {
	pending := domain.NewActivity{
		UserID:          r.userID,
		Name:            session.Name,
		Type:            session.Type,
		DurationMinutes: r.policy.apply(now.Sub(session.StartedAt)),
		Details:         session.Details,
	}

	if evidence := session.Evidence; evidence != nil {
		if r.uploader == nil {
			return nil, fmt.Errorf("%w: evidence storage is not configured", domain.ErrUpload)
		}
		objectPath := fmt.Sprintf("uploads/%s/%d_%s", r.userID, now.UnixMilli(), evidence.Name)
		url, err := r.uploader.Upload(ctx, objectPath, evidence.ContentType, bytes.NewReader(evidence.Data), int64(len(evidence.Data)))
		if err != nil {
			r.logger.Warn("evidence upload failed", zap.String("user_id", r.userID), zap.Error(err))
			return nil, fmt.Errorf("%w: %v", domain.ErrUpload, err)
		}
		pending.EvidenceURL = url
	}

	activity, err := r.sink.RecordActivity(ctx, pending)
	if err != nil {
		if pending.EvidenceURL != "" {
			if delErr := r.uploader.Delete(ctx, pending.EvidenceURL); delErr != nil {
				r.logger.Warn("release orphaned evidence", zap.String("url", pending.EvidenceURL), zap.Error(delErr))
			}
		}
		if errors.Is(err, domain.ErrValidation) || errors.Is(err, domain.ErrStorage) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrStorage, err)
	}
	return activity, nil
}

// Status returns a snapshot of the user's session.
func (r *Recorder) Status(ctx context.Context) (Status, error) {
	session, err := r.sessions.GetSession(ctx, r.userID)
	if err != nil {
		return Status{}, storageError("get session", err)
	}
	if session == nil {
		return Status{State: StateIdle}, nil
	}
	status := Status{
		State:     StateTracking,
		Name:      session.Name,
		Type:      session.Type,
		StartedAt: session.StartedAt,
		Elapsed:   r.clock().Sub(session.StartedAt),
	}
	if session.Evidence != nil {
		status.EvidenceName = session.Evidence.Name
	}
	return status, nil
}

// Close stops the tick goroutine without discarding the session.
func (r *Recorder) Close() {
	r.stopTick()
}

func (r *Recorder) stopTick() {
	r.mu.Lock()
	stop, done := r.stopTicker, r.tickDone
	r.stopTicker, r.tickDone = nil, nil
	r.mu.Unlock()
	if stop != nil {
		stop()
		<-done
	}
}

func (r *Recorder) startTicker(ctx context.Context, startedAt time.Time) {
	if r.onTick == nil {
		return
	}
	r.stopTick()
	tickCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	r.mu.Lock()
	r.stopTicker, r.tickDone = cancel, done
	r.mu.Unlock()

	interval, onTick, clock := r.tickInterval, r.onTick, r.clock
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-tickCtx.Done():
				return
			case <-ticker.C:
				onTick(clock().Sub(startedAt))
			}
		}
	}()
}

// storageError passes recorder state errors through and wraps the rest.
func storageError(op string, err error) error {
	switch {
	case errors.Is(err, domain.ErrAlreadyTracking), errors.Is(err, domain.ErrNotTracking),
		errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrStorage):
		return err
	}
	return fmt.Errorf("%w: %s: %v", domain.ErrStorage, op, err)
}
