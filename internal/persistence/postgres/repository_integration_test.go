//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	postgrescontainer "github.com/testcontainers/testcontainers-go/modules/postgres"

	"example.com/smartroutine/internal/domain"
	"example.com/smartroutine/internal/persistence/migrations"
)

func setupRepository(t *testing.T) (*Repository, *pgxpool.Pool) {
	t.Helper()
	ctx := context.Background()

	pg, err := postgrescontainer.Run(ctx, "postgres:16-alpine",
		postgrescontainer.WithDatabase("smartroutine"),
		postgrescontainer.WithUsername("smartroutine"),
		postgrescontainer.WithPassword("smartroutine"),
		postgrescontainer.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Terminate(ctx) })

	connStr, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, migrations.Up(ctx, connStr))

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return NewRepository(pool), pool
}

func createUser(t *testing.T, repo *Repository, email string) domain.UserProfile {
	t.Helper()
	profile := domain.UserProfile{
		UID:       uuid.NewString(),
		Username:  email[:4],
		Email:     email,
		Role:      domain.RoleUser,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, repo.CreateUser(context.Background(), profile, "hash"))
	return profile
}

func countOutbox(t *testing.T, pool *pgxpool.Pool, eventType string) int {
	t.Helper()
	var n int
	require.NoError(t, pool.QueryRow(context.Background(), `SELECT COUNT(*) FROM outbox WHERE event_type = $1`, eventType).Scan(&n))
	return n
}

func TestActivityLifecycleStagesEvents(t *testing.T) {
	ctx := context.Background()
	repo, pool := setupRepository(t)
	user := createUser(t, repo, "sari@example.com")

	base := time.Date(2025, 10, 27, 9, 0, 0, 0, time.UTC)
	ids := make([]string, 0, 3)
	for i := 0; i < 3; i++ {
		id := uuid.NewString()
		ids = append(ids, id)
		require.NoError(t, repo.CreateActivity(ctx, domain.Activity{
			ID:              id,
			UserID:          user.UID,
			Name:            "Belajar",
			Type:            domain.ActivityTypeStudy,
			DurationMinutes: 30,
			Details:         domain.StudyDetails{FocusLevel: domain.FocusFull, Priority: domain.PriorityHigh},
			Status:          domain.ReviewStatusPending,
			CreatedAt:       base.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.Equal(t, 3, countOutbox(t, pool, "activity.recorded"))

	page, next, err := repo.ListActivities(ctx, domain.ActivityQuery{UserID: user.UID, Limit: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
	require.Equal(t, ids[2], page[0].ID)
	require.NotNil(t, next)

	page, next, err = repo.ListActivities(ctx, domain.ActivityQuery{UserID: user.UID, Limit: 2, Cursor: next})
	require.NoError(t, err)
	require.Len(t, page, 1)
	require.Equal(t, ids[0], page[0].ID)
	require.Nil(t, next)
	require.Equal(t, domain.StudyDetails{FocusLevel: domain.FocusFull, Priority: domain.PriorityHigh}, page[0].Details)

	updated, err := repo.UpdateActivityStatus(ctx, ids[0], domain.ReviewStatusPending, domain.ReviewStatusValidated)
	require.NoError(t, err)
	require.Equal(t, domain.ReviewStatusValidated, updated.Status)
	_, err = repo.UpdateActivityStatus(ctx, ids[0], domain.ReviewStatusPending, domain.ReviewStatusRejected)
	require.ErrorIs(t, err, domain.ErrInvalidTransition)
	missing, err := repo.UpdateActivityStatus(ctx, "missing", domain.ReviewStatusPending, domain.ReviewStatusRejected)
	require.NoError(t, err)
	require.Nil(t, missing)
	require.Equal(t, 1, countOutbox(t, pool, "activity.reviewed"))

	require.NoError(t, repo.DeleteActivity(ctx, ids[1]))
	require.NoError(t, repo.DeleteActivity(ctx, ids[1]))
	got, err := repo.GetActivity(ctx, ids[1])
	require.NoError(t, err)
	require.Nil(t, got)
	require.Equal(t, 1, countOutbox(t, pool, "activity.deleted"))
}

func TestGoalLifecycle(t *testing.T) {
	ctx := context.Background()
	repo, pool := setupRepository(t)
	user := createUser(t, repo, "budi@example.com")

	goal := domain.Goal{
		ID:               uuid.NewString(),
		UserID:           user.UID,
		Title:            "Belajar 2 jam",
		Type:             domain.GoalTypeDailyDuration,
		ActivityCategory: domain.ActivityTypeStudy,
		TargetValue:      120,
		Status:           domain.GoalStatusActive,
		CreatedAt:        time.Now().UTC(),
	}
	require.NoError(t, repo.CreateGoal(ctx, goal))

	goals, err := repo.ListGoals(ctx, user.UID)
	require.NoError(t, err)
	require.Len(t, goals, 1)

	completed, err := repo.UpdateGoalStatus(ctx, goal.ID, domain.GoalStatusActive, domain.GoalStatusCompleted)
	require.NoError(t, err)
	require.Equal(t, domain.GoalStatusCompleted, completed.Status)
	_, err = repo.UpdateGoalStatus(ctx, goal.ID, domain.GoalStatusActive, domain.GoalStatusCompleted)
	require.ErrorIs(t, err, domain.ErrInvalidTransition)

	require.NoError(t, repo.DeleteGoal(ctx, goal.ID))
	got, err := repo.GetGoal(ctx, goal.ID)
	require.NoError(t, err)
	require.Nil(t, got)
	require.Equal(t, 3, countOutbox(t, pool, "goal.changed"))
}

func TestUsers(t *testing.T) {
	ctx := context.Background()
	repo, _ := setupRepository(t)
	user := createUser(t, repo, "Dewi@Example.com")

	err := repo.CreateUser(ctx, domain.UserProfile{UID: uuid.NewString(), Username: "dewi2", Email: "dewi@example.com", Role: domain.RoleUser, CreatedAt: time.Now()}, "hash")
	require.ErrorIs(t, err, domain.ErrConflict)

	profile, hash, err := repo.FindCredentials(ctx, "DEWI@example.com")
	require.NoError(t, err)
	require.Equal(t, user.UID, profile.UID)
	require.Equal(t, "hash", hash)

	require.NoError(t, repo.SetRole(ctx, user.UID, domain.RoleAdmin))
	require.ErrorIs(t, repo.SetRole(ctx, "missing", domain.RoleAdmin), domain.ErrNotFound)
	got, err := repo.GetUser(ctx, user.UID)
	require.NoError(t, err)
	require.Equal(t, domain.RoleAdmin, got.Role)

	names, err := repo.UsernamesByID(ctx, []string{user.UID, "missing"})
	require.NoError(t, err)
	require.Equal(t, map[string]string{user.UID: user.Username}, names)
}

func TestTrackingSessionClaims(t *testing.T) {
	repo, _ := setupRepository(t)
	ctx := context.Background()
	user := createUser(t, repo, "sesi@example.com")
	startedAt := time.Date(2025, time.March, 12, 9, 0, 0, 0, time.UTC)

	session := domain.TrackingSession{
		UserID:    user.UID,
		Name:      "Reading",
		Type:      domain.ActivityTypeStudy,
		Details:   domain.StudyDetails{FocusLevel: domain.FocusMedium},
		StartedAt: startedAt,
	}
	require.NoError(t, repo.CreateSession(ctx, session))
	require.ErrorIs(t, repo.CreateSession(ctx, session), domain.ErrAlreadyTracking)

	require.NoError(t, repo.SetSessionEvidence(ctx, user.UID, domain.Evidence{Name: "notes.txt", ContentType: "text/plain", Data: []byte("ch. 3")}))
	stored, err := repo.GetSession(ctx, user.UID)
	require.NoError(t, err)
	require.Equal(t, "Reading", stored.Name)
	require.Equal(t, startedAt, stored.StartedAt)
	require.Equal(t, domain.StudyDetails{FocusLevel: domain.FocusMedium}, stored.Details)
	require.Equal(t, []byte("ch. 3"), stored.Evidence.Data)

	now := startedAt.Add(30 * time.Minute)
	claimed, err := repo.ClaimSession(ctx, user.UID, now, time.Minute)
	require.NoError(t, err)
	require.NotNil(t, claimed)
	again, err := repo.ClaimSession(ctx, user.UID, now.Add(10*time.Second), time.Minute)
	require.NoError(t, err)
	require.Nil(t, again, "a fresh claim is exclusive")
	require.ErrorIs(t, repo.SetSessionEvidence(ctx, user.UID, domain.Evidence{Name: "late.txt", ContentType: "text/plain", Data: []byte("x")}), domain.ErrNotTracking)

	takeover, err := repo.ClaimSession(ctx, user.UID, now.Add(2*time.Minute), time.Minute)
	require.NoError(t, err)
	require.NotNil(t, takeover, "a stale claim is taken over")

	require.NoError(t, repo.ReleaseSession(ctx, user.UID))
	require.NoError(t, repo.DeleteSession(ctx, user.UID))
	gone, err := repo.GetSession(ctx, user.UID)
	require.NoError(t, err)
	require.Nil(t, gone)
}
