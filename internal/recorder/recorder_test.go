package recorder

import (
	"context"
	"errors"
	"io"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/smartroutine/internal/domain"
	"example.com/smartroutine/internal/persistence/memory"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, time.October, 27, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type stubSink struct {
	mu       sync.Mutex
	recorded []domain.NewActivity
	err      error
}

func (s *stubSink) RecordActivity(_ context.Context, activity domain.NewActivity) (*domain.Activity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	s.recorded = append(s.recorded, activity)
	return &domain.Activity{
		ID:              "activity-1",
		UserID:          activity.UserID,
		Name:            activity.Name,
		Type:            activity.Type,
		DurationMinutes: activity.DurationMinutes,
		Details:         activity.Details,
		EvidenceURL:     activity.EvidenceURL,
		Status:          domain.ReviewStatusPending,
	}, nil
}

type stubUploader struct {
	paths   []string
	bodies  [][]byte
	deleted []string
	err     error
}

func (u *stubUploader) Upload(_ context.Context, path, _ string, body io.Reader, _ int64) (string, error) {
	if u.err != nil {
		return "", u.err
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	u.paths = append(u.paths, path)
	u.bodies = append(u.bodies, data)
	return "https://blob.local/" + path, nil
}

func (u *stubUploader) Delete(_ context.Context, url string) error {
	u.deleted = append(u.deleted, url)
	return nil
}

func status(t *testing.T, rec *Recorder) Status {
	t.Helper()
	st, err := rec.Status(context.Background())
	require.NoError(t, err)
	return st
}

func pngEvidence() Evidence {
	return Evidence{Name: "notes.png", ContentType: "image/png", Data: []byte{0x89, 'P', 'N', 'G'}}
}

func TestFinishWithoutEvidenceRecordsPendingActivity(t *testing.T) {
	clock := newFakeClock()
	sink := &stubSink{}
	rec := New("user-1", sink, memory.NewStore(), nil, WithClock(clock.Now))

	require.NoError(t, rec.Start(context.Background(), "Read", domain.ActivityTypeStudy, nil))
	clock.Advance(90 * time.Second)

	activity, err := rec.Finish(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, activity.DurationMinutes)
	require.Equal(t, domain.ReviewStatusPending, activity.Status)
	require.Empty(t, activity.EvidenceURL)
	require.Len(t, sink.recorded, 1)
	require.Equal(t, StateIdle, status(t, rec).State)
}

func TestDurationPolicies(t *testing.T) {
	cases := []struct {
		name    string
		policy  DurationPolicy
		elapsed time.Duration
		want    int
	}{
		{name: "clamp short session", policy: ClampToOneMinute, elapsed: 20 * time.Second, want: 1},
		{name: "floor short session", policy: Floor, elapsed: 20 * time.Second, want: 0},
		{name: "clamp floors long session", policy: ClampToOneMinute, elapsed: 5*time.Minute + 59*time.Second, want: 5},
		{name: "floor long session", policy: Floor, elapsed: 125 * time.Second, want: 2},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			clock := newFakeClock()
			sink := &stubSink{}
			rec := New("user-1", sink, memory.NewStore(), nil, WithClock(clock.Now), WithDurationPolicy(tc.policy))

			require.NoError(t, rec.Start(context.Background(), "Run", domain.ActivityTypeWorkout, nil))
			clock.Advance(tc.elapsed)
			activity, err := rec.Finish(context.Background())
			require.NoError(t, err)
			require.Equal(t, tc.want, activity.DurationMinutes)
		})
	}
}

func TestStartValidation(t *testing.T) {
	rec := New("user-1", &stubSink{}, memory.NewStore(), nil)
	ctx := context.Background()

	require.ErrorIs(t, rec.Start(ctx, "   ", domain.ActivityTypeStudy, nil), domain.ErrValidation)
	require.ErrorIs(t, rec.Start(ctx, "Read", "Sleep", nil), domain.ErrValidation)
	require.ErrorIs(t, rec.Start(ctx, "Read", domain.ActivityTypeStudy, domain.WorkoutDetails{Intensity: domain.IntensityLight}), domain.ErrValidation)
	require.ErrorIs(t, rec.Start(ctx, "Nap", domain.ActivityTypeBreak, domain.BreakDetails{Quality: 9}), domain.ErrValidation)
	require.Equal(t, StateIdle, status(t, rec).State)

	require.NoError(t, rec.Start(ctx, "Read", domain.ActivityTypeStudy, domain.StudyDetails{FocusLevel: domain.FocusMedium}))
	require.ErrorIs(t, rec.Start(ctx, "Again", domain.ActivityTypeStudy, nil), domain.ErrAlreadyTracking)
	require.Equal(t, "Read", status(t, rec).Name)
}

func TestFinishWhenIdle(t *testing.T) {
	rec := New("user-1", &stubSink{}, memory.NewStore(), nil)
	_, err := rec.Finish(context.Background())
	require.ErrorIs(t, err, domain.ErrNotTracking)
	require.ErrorIs(t, rec.AttachEvidence(context.Background(), pngEvidence()), domain.ErrNotTracking)
}

func TestUploadFailureKeepsTracking(t *testing.T) {
	clock := newFakeClock()
	sink := &stubSink{}
	uploader := &stubUploader{err: errors.New("bucket offline")}
	rec := New("user-1", sink, memory.NewStore(), uploader, WithClock(clock.Now))

	require.NoError(t, rec.Start(context.Background(), "Lab report", domain.ActivityTypeStudy, nil))
	require.NoError(t, rec.AttachEvidence(context.Background(), pngEvidence()))
	clock.Advance(30 * time.Minute)

	_, err := rec.Finish(context.Background())
	require.ErrorIs(t, err, domain.ErrUpload)
	require.Empty(t, sink.recorded)

	st := status(t, rec)
	require.Equal(t, StateTracking, st.State)
	require.Equal(t, "notes.png", st.EvidenceName)

	uploader.err = nil
	activity, err := rec.Finish(context.Background())
	require.NoError(t, err)
	require.Equal(t, 30, activity.DurationMinutes)
	require.Equal(t, "https://blob.local/uploads/user-1/"+strconv.FormatInt(clock.Now().UnixMilli(), 10)+"_notes.png", activity.EvidenceURL)
}

func TestSinkFailureReleasesUploadedEvidence(t *testing.T) {
	sink := &stubSink{err: errors.New("connection reset")}
	uploader := &stubUploader{}
	rec := New("user-1", sink, memory.NewStore(), uploader)

	require.NoError(t, rec.Start(context.Background(), "Lab report", domain.ActivityTypeStudy, nil))
	require.NoError(t, rec.AttachEvidence(context.Background(), pngEvidence()))

	_, err := rec.Finish(context.Background())
	require.ErrorIs(t, err, domain.ErrStorage)
	require.Len(t, uploader.deleted, 1)
	require.Equal(t, StateTracking, status(t, rec).State)
}

func TestFinishIgnoresCallerCancellation(t *testing.T) {
	sink := &stubSink{}
	rec := New("user-1", sink, memory.NewStore(), &stubUploader{})
	require.NoError(t, rec.Start(context.Background(), "Walk", domain.ActivityTypeBreak, nil))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := rec.Finish(ctx)
	require.NoError(t, err)
	require.Len(t, sink.recorded, 1)
}

func TestAttachEvidenceBounds(t *testing.T) {
	rec := New("user-1", &stubSink{}, memory.NewStore(), nil, WithMaxEvidenceBytes(8))
	require.NoError(t, rec.Start(context.Background(), "Read", domain.ActivityTypeStudy, nil))

	require.ErrorIs(t, rec.AttachEvidence(context.Background(), Evidence{Name: "", ContentType: "image/png", Data: []byte("x")}), domain.ErrValidation)
	require.ErrorIs(t, rec.AttachEvidence(context.Background(), Evidence{Name: "a.png", ContentType: "image/png"}), domain.ErrValidation)
	require.ErrorIs(t, rec.AttachEvidence(context.Background(), Evidence{Name: "a.png", ContentType: "image/png", Data: make([]byte, 9)}), domain.ErrValidation)
	require.ErrorIs(t, rec.AttachEvidence(context.Background(), Evidence{Name: "a.exe", ContentType: "application/octet-stream", Data: []byte("x")}), domain.ErrValidation)

	require.NoError(t, rec.AttachEvidence(context.Background(), Evidence{Name: "../../etc/notes.txt", ContentType: "text/plain; charset=utf-8", Data: []byte("x")}))
	require.Equal(t, "notes.txt", status(t, rec).EvidenceName)
}

func TestTickStopsOnFinish(t *testing.T) {
	ticks := make(chan time.Duration, 100)
	rec := New("user-1", &stubSink{}, memory.NewStore(), nil, WithTick(func(elapsed time.Duration) {
		select {
		case ticks <- elapsed:
		default:
		}
	}, 5*time.Millisecond))

	require.NoError(t, rec.Start(context.Background(), "Read", domain.ActivityTypeStudy, nil))
	select {
	case <-ticks:
	case <-time.After(time.Second):
		t.Fatal("expected a tick while tracking")
	}

	rec.mu.Lock()
	done := rec.tickDone
	rec.mu.Unlock()

	_, err := rec.Finish(context.Background())
	require.NoError(t, err)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("tick goroutine still running after finish")
	}
}

func TestTickStopsWhenStartContextEnds(t *testing.T) {
	rec := New("user-1", &stubSink{}, memory.NewStore(), nil, WithTick(func(time.Duration) {}, 5*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, rec.Start(ctx, "Read", domain.ActivityTypeStudy, nil))

	rec.mu.Lock()
	done := rec.tickDone
	rec.mu.Unlock()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("tick goroutine still running after cancellation")
	}
	require.Equal(t, StateTracking, status(t, rec).State)
}

func TestRegistryReturnsOneRecorderPerUser(t *testing.T) {
	reg := NewRegistry(&stubSink{}, memory.NewStore(), nil)
	defer reg.Close()

	a := reg.For("user-a")
	require.Same(t, a, reg.For("user-a"))
	require.NotSame(t, a, reg.For("user-b"))
}

func TestSessionStartedInOneRegistryFinishesInAnother(t *testing.T) {
	clock := newFakeClock()
	sessions := memory.NewStore()
	sink := &stubSink{}
	first := NewRegistry(sink, sessions, nil, WithClock(clock.Now))
	second := NewRegistry(sink, sessions, nil, WithClock(clock.Now))
	defer first.Close()
	defer second.Close()

	require.NoError(t, first.For("user-1").Start(context.Background(), "Read", domain.ActivityTypeStudy, nil))
	clock.Advance(12 * time.Minute)

	st := status(t, second.For("user-1"))
	require.Equal(t, StateTracking, st.State)
	require.Equal(t, 12*time.Minute, st.Elapsed)

	activity, err := second.For("user-1").Finish(context.Background())
	require.NoError(t, err)
	require.Equal(t, 12, activity.DurationMinutes)
	require.Equal(t, StateIdle, status(t, first.For("user-1")).State)
	require.NoError(t, first.For("user-1").Start(context.Background(), "Write", domain.ActivityTypeStudy, nil))
}

// blockingUploader holds every upload until release is closed.
type blockingUploader struct {
	entered chan struct{}
	release chan struct{}
	stubUploader
}

func (u *blockingUploader) Upload(ctx context.Context, path, contentType string, body io.Reader, size int64) (string, error) {
	close(u.entered)
	<-u.release
	return u.stubUploader.Upload(ctx, path, contentType, body, size)
}

func TestAttachEvidenceRejectedWhileFinishing(t *testing.T) {
	sessions := memory.NewStore()
	uploader := &blockingUploader{entered: make(chan struct{}), release: make(chan struct{})}
	sink := &stubSink{}
	rec := New("user-1", sink, sessions, uploader)
	other := New("user-1", sink, sessions, uploader)

	require.NoError(t, rec.Start(context.Background(), "Lab report", domain.ActivityTypeStudy, nil))
	require.NoError(t, rec.AttachEvidence(context.Background(), pngEvidence()))

	type result struct {
		activity *domain.Activity
		err      error
	}
	finished := make(chan result, 1)
	go func() {
		activity, err := rec.Finish(context.Background())
		finished <- result{activity, err}
	}()
	<-uploader.entered

	late := Evidence{Name: "late.txt", ContentType: "text/plain", Data: []byte("late")}
	require.ErrorIs(t, rec.AttachEvidence(context.Background(), late), domain.ErrNotTracking)
	_, err := other.Finish(context.Background())
	require.ErrorIs(t, err, domain.ErrNotTracking)

	close(uploader.release)
	res := <-finished
	require.NoError(t, res.err)
	require.Contains(t, res.activity.EvidenceURL, "_notes.png")
	require.Len(t, sink.recorded, 1)
}

func TestStaleClaimIsTakenOver(t *testing.T) {
	clock := newFakeClock()
	sessions := memory.NewStore()
	sink := &stubSink{}
	rec := New("user-1", sink, sessions, nil, WithClock(clock.Now), WithClaimTimeout(time.Minute))
	require.NoError(t, rec.Start(context.Background(), "Read", domain.ActivityTypeStudy, nil))

	claimed, err := sessions.ClaimSession(context.Background(), "user-1", clock.Now(), time.Minute)
	require.NoError(t, err)
	require.NotNil(t, claimed)

	_, err = rec.Finish(context.Background())
	require.ErrorIs(t, err, domain.ErrNotTracking)

	clock.Advance(2 * time.Minute)
	_, err = rec.Finish(context.Background())
	require.NoError(t, err)
	require.Len(t, sink.recorded, 1)
}
