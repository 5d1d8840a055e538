// Package postgres implements the SmartRoutine repositories on PostgreSQL.
// Every mutation stages its domain event in the outbox inside the same
// transaction.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/smartroutine/internal/domain"
	"example.com/smartroutine/internal/outbox"
	"example.com/smartroutine/internal/persistence"
	"example.com/smartroutine/internal/platform/events"
)

const uniqueViolation = "23505"

// Repository provides Postgres-backed persistence for users, activities and goals.
type Repository struct {
	pool   *pgxpool.Pool
	outbox bool
	now    func() time.Time
}

// Option customises a Repository.
type Option func(*Repository)

// WithoutOutbox disables event staging, for deployments without Kafka.
func WithoutOutbox() Option {
	return func(r *Repository) { r.outbox = false }
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool, opts ...Option) *Repository {
	r := &Repository{pool: pool, outbox: true, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var (
	_ domain.ActivityRepository = (*Repository)(nil)
	_ domain.GoalRepository     = (*Repository)(nil)
	_ domain.UserRepository     = (*Repository)(nil)
)

func (r *Repository) inTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *Repository) enqueue(ctx context.Context, tx pgx.Tx, evt outbox.Event) error {
	if !r.outbox {
		return nil
	}
	return outbox.Enqueue(ctx, tx, evt)
}

const activityColumns = `id, user_id, name, activity_type, duration_minutes, details, evidence_url, status, created_at`

// CreateActivity implements domain.ActivityRepository.
func (r *Repository) CreateActivity(ctx context.Context, activity domain.Activity) error {
	details, err := domain.MarshalDetails(activity.Details)
	if err != nil {
		return err
	}
	return r.inTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO activities (`+activityColumns+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
			activity.ID,
			activity.UserID,
			activity.Name,
			string(activity.Type),
			activity.DurationMinutes,
			details,
			activity.EvidenceURL,
			string(activity.Status),
			activity.CreatedAt.UTC(),
		)
		if err != nil {
			return translate(err, "activity "+activity.ID)
		}
		return r.enqueue(ctx, tx, outbox.Event{
			AggregateType: "activity",
			AggregateID:   activity.ID,
			EventType:     events.TypeActivityRecorded,
			UserID:        activity.UserID,
			Payload: events.ActivityRecorded{
				ActivityID:      activity.ID,
				UserID:          activity.UserID,
				Name:            activity.Name,
				ActivityType:    string(activity.Type),
				DurationMinutes: activity.DurationMinutes,
				Details:         details,
				HasEvidence:     activity.HasEvidence(),
				CreatedAt:       activity.CreatedAt.UTC(),
			},
		})
	})
}

// GetActivity implements domain.ActivityRepository.
func (r *Repository) GetActivity(ctx context.Context, id string) (*domain.Activity, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+activityColumns+` FROM activities WHERE id = $1`, id)
	activity, err := scanActivity(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return activity, nil
}

// ListActivities implements domain.ActivityRepository using keyset pagination.
func (r *Repository) ListActivities(ctx context.Context, query domain.ActivityQuery) ([]domain.Activity, *domain.Cursor, error) {
	limit := persistence.PageSize(query.Limit)
	sql, args := buildActivityQuery(query, limit)

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	results := make([]domain.Activity, 0, limit)
	for rows.Next() {
		activity, err := scanActivity(rows)
		if err != nil {
			return nil, nil, err
		}
		results = append(results, *activity)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	if len(results) <= limit {
		return results, nil, nil
	}
	results = results[:limit]
	last := results[len(results)-1]
	return results, &domain.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}, nil
}

func buildActivityQuery(query domain.ActivityQuery, limit int) (string, []any) {
	sql := `SELECT ` + activityColumns + ` FROM activities WHERE TRUE`
	args := make([]any, 0, 7)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if query.UserID != "" {
		sql += ` AND user_id = ` + arg(query.UserID)
	}
	if query.Status != "" {
		sql += ` AND status = ` + arg(string(query.Status))
	}
	if !query.From.IsZero() {
		sql += ` AND created_at >= ` + arg(query.From.UTC())
	}
	if !query.To.IsZero() {
		sql += ` AND created_at < ` + arg(query.To.UTC())
	}

	order := "DESC"
	cmp := "<"
	if query.Ascending {
		order = "ASC"
		cmp = ">"
	}
	if query.Cursor != nil {
		createdAt := arg(query.Cursor.CreatedAt.UTC())
		id := arg(query.Cursor.ID)
		sql += fmt.Sprintf(` AND (created_at, id) %s (%s, %s)`, cmp, createdAt, id)
	}
	sql += fmt.Sprintf(` ORDER BY created_at %s, id %s LIMIT %s`, order, order, arg(limit+1))
	return sql, args
}

// UpdateActivityStatus implements domain.ActivityRepository with a
// conditional update, so concurrent reviews cannot both succeed.
func (r *Repository) UpdateActivityStatus(ctx context.Context, id string, from, to domain.ReviewStatus) (*domain.Activity, error) {
	var updated *domain.Activity
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx,
			`UPDATE activities SET status = $3 WHERE id = $1 AND status = $2 RETURNING `+activityColumns,
			id, string(from), string(to))
		activity, err := scanActivity(row)
		if errors.Is(err, pgx.ErrNoRows) {
			return activityTransitionError(ctx, tx, id)
		}
		if err != nil {
			return err
		}
		updated = activity
		return r.enqueue(ctx, tx, outbox.Event{
			AggregateType: "activity",
			AggregateID:   id,
			EventType:     events.TypeActivityReviewed,
			UserID:        activity.UserID,
			Payload: events.ActivityReviewed{
				ActivityID: id,
				UserID:     activity.UserID,
				Status:     string(to),
				OccurredAt: r.now().UTC(),
			},
		})
	})
	if errors.Is(err, errMissing) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return updated, nil
}

var errMissing = errors.New("row missing")

func activityTransitionError(ctx context.Context, tx pgx.Tx, id string) error {
	var status string
	err := tx.QueryRow(ctx, `SELECT status FROM activities WHERE id = $1`, id).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return errMissing
	}
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: activity %s is %s", domain.ErrInvalidTransition, id, status)
}

// DeleteActivity implements domain.ActivityRepository.
func (r *Repository) DeleteActivity(ctx context.Context, id string) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		var userID string
		err := tx.QueryRow(ctx, `DELETE FROM activities WHERE id = $1 RETURNING user_id`, id).Scan(&userID)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		return r.enqueue(ctx, tx, outbox.Event{
			AggregateType: "activity",
			AggregateID:   id,
			EventType:     events.TypeActivityDeleted,
			UserID:        userID,
			Payload:       events.ActivityDeleted{ActivityID: id, UserID: userID, OccurredAt: r.now().UTC()},
		})
	})
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanActivity(row rowScanner) (*domain.Activity, error) {
	var (
		a       domain.Activity
		kind    string
		status  string
		details []byte
	)
	if err := row.Scan(&a.ID, &a.UserID, &a.Name, &kind, &a.DurationMinutes, &details, &a.EvidenceURL, &status, &a.CreatedAt); err != nil {
		return nil, err
	}
	a.Type = domain.ActivityType(kind)
	a.Status = domain.ReviewStatus(status)
	a.CreatedAt = a.CreatedAt.UTC()
	parsed, err := domain.ParseDetails(a.Type, details)
	if err != nil {
		return nil, fmt.Errorf("activity %s: %w", a.ID, err)
	}
	a.Details = parsed
	return &a, nil
}

func translate(err error, subject string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s already exists", domain.ErrConflict, subject)
	}
	return err
}
