package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"example.com/smartroutine/internal/domain"
)

var _ domain.SessionRepository = (*Repository)(nil)

const sessionColumns = `user_id, name, activity_type, details, started_at, evidence_name, evidence_content_type, evidence_data, claimed_at`

// CreateSession implements domain.SessionRepository.
func (r *Repository) CreateSession(ctx context.Context, session domain.TrackingSession) error {
	details, err := domain.MarshalDetails(session.Details)
	if err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx,
		`INSERT INTO tracking_sessions (user_id, name, activity_type, details, started_at)
		 VALUES ($1,$2,$3,$4,$5)
		 ON CONFLICT (user_id) DO NOTHING`,
		session.UserID, session.Name, string(session.Type), details, session.StartedAt.UTC(),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAlreadyTracking
	}
	return nil
}

// GetSession implements domain.SessionRepository.
func (r *Repository) GetSession(ctx context.Context, userID string) (*domain.TrackingSession, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM tracking_sessions WHERE user_id = $1`, userID)
	session, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return session, err
}

// SetSessionEvidence implements domain.SessionRepository.
func (r *Repository) SetSessionEvidence(ctx context.Context, userID string, evidence domain.Evidence) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE tracking_sessions
		    SET evidence_name = $2, evidence_content_type = $3, evidence_data = $4
		  WHERE user_id = $1 AND claimed_at IS NULL`,
		userID, evidence.Name, evidence.ContentType, evidence.Data,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotTracking
	}
	return nil
}

// ClaimSession implements domain.SessionRepository. The conditional update
// lets exactly one concurrent finish win the claim.
func (r *Repository) ClaimSession(ctx context.Context, userID string, now time.Time, staleAfter time.Duration) (*domain.TrackingSession, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE tracking_sessions
		    SET claimed_at = $2
		  WHERE user_id = $1 AND (claimed_at IS NULL OR claimed_at <= $3)
		  RETURNING `+sessionColumns,
		userID, now.UTC(), now.Add(-staleAfter).UTC(),
	)
	session, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return session, err
}

// ReleaseSession implements domain.SessionRepository.
func (r *Repository) ReleaseSession(ctx context.Context, userID string) error {
	_, err := r.pool.Exec(ctx, `UPDATE tracking_sessions SET claimed_at = NULL WHERE user_id = $1`, userID)
	return err
}

// DeleteSession implements domain.SessionRepository.
func (r *Repository) DeleteSession(ctx context.Context, userID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM tracking_sessions WHERE user_id = $1`, userID)
	return err
}

func scanSession(row rowScanner) (*domain.TrackingSession, error) {
	var (
		s            domain.TrackingSession
		kind         string
		details      []byte
		evidenceName *string
		evidenceType *string
		evidenceData []byte
	)
	if err := row.Scan(&s.UserID, &s.Name, &kind, &details, &s.StartedAt, &evidenceName, &evidenceType, &evidenceData, &s.ClaimedAt); err != nil {
		return nil, err
	}
	s.Type = domain.ActivityType(kind)
	s.StartedAt = s.StartedAt.UTC()
	parsed, err := domain.ParseDetails(s.Type, details)
	if err != nil {
		return nil, fmt.Errorf("session of %s: %w", s.UserID, err)
	}
	s.Details = parsed
	if evidenceName != nil && len(evidenceData) > 0 {
		s.Evidence = &domain.Evidence{Name: *evidenceName, Data: evidenceData}
		if evidenceType != nil {
			s.Evidence.ContentType = *evidenceType
		}
	}
	return &s, nil
}
