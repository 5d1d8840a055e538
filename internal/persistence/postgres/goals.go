package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"example.com/smartroutine/internal/domain"
	"example.com/smartroutine/internal/outbox"
	"example.com/smartroutine/internal/platform/events"
)

const goalColumns = `id, user_id, title, goal_type, activity_category, target_value, status, created_at`

// CreateGoal implements domain.GoalRepository.
func (r *Repository) CreateGoal(ctx context.Context, goal domain.Goal) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO goals (`+goalColumns+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			goal.ID,
			goal.UserID,
			goal.Title,
			string(goal.Type),
			string(goal.ActivityCategory),
			goal.TargetValue,
			string(goal.Status),
			goal.CreatedAt.UTC(),
		)
		if err != nil {
			return translate(err, "goal "+goal.ID)
		}
		return r.goalChanged(ctx, tx, goal.ID, goal.UserID, events.GoalCreated, goal.Status)
	})
}

// GetGoal implements domain.GoalRepository.
func (r *Repository) GetGoal(ctx context.Context, id string) (*domain.Goal, error) {
	goal, err := scanGoal(r.pool.QueryRow(ctx, `SELECT `+goalColumns+` FROM goals WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return goal, nil
}

// ListGoals implements domain.GoalRepository. Goals are returned newest first.
func (r *Repository) ListGoals(ctx context.Context, userID string) ([]domain.Goal, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+goalColumns+` FROM goals WHERE user_id = $1 ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	goals := make([]domain.Goal, 0)
	for rows.Next() {
		goal, err := scanGoal(rows)
		if err != nil {
			return nil, err
		}
		goals = append(goals, *goal)
	}
	return goals, rows.Err()
}

// UpdateGoalStatus implements domain.GoalRepository.
func (r *Repository) UpdateGoalStatus(ctx context.Context, id string, from, to domain.GoalStatus) (*domain.Goal, error) {
	var updated *domain.Goal
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx,
			`UPDATE goals SET status = $3 WHERE id = $1 AND status = $2 RETURNING `+goalColumns,
			id, string(from), string(to))
		goal, err := scanGoal(row)
		if errors.Is(err, pgx.ErrNoRows) {
			var status string
			switch err := tx.QueryRow(ctx, `SELECT status FROM goals WHERE id = $1`, id).Scan(&status); {
			case errors.Is(err, pgx.ErrNoRows):
				return errMissing
			case err != nil:
				return err
			}
			return fmt.Errorf("%w: goal %s is %s", domain.ErrInvalidTransition, id, status)
		}
		if err != nil {
			return err
		}
		updated = goal
		return r.goalChanged(ctx, tx, id, goal.UserID, events.GoalCompleted, to)
	})
	if errors.Is(err, errMissing) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteGoal implements domain.GoalRepository.
func (r *Repository) DeleteGoal(ctx context.Context, id string) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		var userID string
		err := tx.QueryRow(ctx, `DELETE FROM goals WHERE id = $1 RETURNING user_id`, id).Scan(&userID)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		return r.goalChanged(ctx, tx, id, userID, events.GoalDeleted, "")
	})
}

func (r *Repository) goalChanged(ctx context.Context, tx pgx.Tx, goalID, userID, change string, status domain.GoalStatus) error {
	return r.enqueue(ctx, tx, outbox.Event{
		AggregateType: "goal",
		AggregateID:   goalID,
		EventType:     events.TypeGoalChanged,
		UserID:        userID,
		Payload: events.GoalChanged{
			GoalID:     goalID,
			UserID:     userID,
			Change:     change,
			Status:     string(status),
			OccurredAt: r.now().UTC(),
		},
	})
}

func scanGoal(row rowScanner) (*domain.Goal, error) {
	var (
		g        domain.Goal
		kind     string
		category string
		status   string
	)
	if err := row.Scan(&g.ID, &g.UserID, &g.Title, &kind, &category, &g.TargetValue, &status, &g.CreatedAt); err != nil {
		return nil, err
	}
	g.Type = domain.GoalType(kind)
	g.ActivityCategory = domain.ActivityType(category)
	g.Status = domain.GoalStatus(status)
	g.CreatedAt = g.CreatedAt.UTC()
	return &g, nil
}
