package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"example.com/smartroutine/internal/domain"
)

// CreateUser implements domain.UserRepository.
func (r *Repository) CreateUser(ctx context.Context, profile domain.UserProfile, passwordHash string) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO users (uid, username, email, password_hash, role, created_at) VALUES ($1,$2,$3,$4,$5,$6)`,
		profile.UID,
		profile.Username,
		strings.ToLower(strings.TrimSpace(profile.Email)),
		passwordHash,
		string(profile.Role),
		profile.CreatedAt.UTC(),
	)
	return translate(err, "account for "+profile.Email)
}

const userColumns = `uid, username, email, role, created_at`

// GetUser implements domain.UserRepository.
func (r *Repository) GetUser(ctx context.Context, uid string) (*domain.UserProfile, error) {
	var (
		p    domain.UserProfile
		role string
	)
	err := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE uid = $1`, uid).
		Scan(&p.UID, &p.Username, &p.Email, &role, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p.Role = domain.Role(role)
	p.CreatedAt = p.CreatedAt.UTC()
	return &p, nil
}

// FindCredentials implements domain.UserRepository.
func (r *Repository) FindCredentials(ctx context.Context, email string) (*domain.UserProfile, string, error) {
	var (
		p    domain.UserProfile
		role string
		hash string
	)
	err := r.pool.QueryRow(ctx, `SELECT `+userColumns+`, password_hash FROM users WHERE email = $1`,
		strings.ToLower(strings.TrimSpace(email))).
		Scan(&p.UID, &p.Username, &p.Email, &role, &p.CreatedAt, &hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", err
	}
	p.Role = domain.Role(role)
	p.CreatedAt = p.CreatedAt.UTC()
	return &p, hash, nil
}

// UsernamesByID implements domain.UserRepository.
func (r *Repository) UsernamesByID(ctx context.Context, uids []string) (map[string]string, error) {
	names := make(map[string]string, len(uids))
	if len(uids) == 0 {
		return names, nil
	}
	rows, err := r.pool.Query(ctx, `SELECT uid, username FROM users WHERE uid = ANY($1)`, uids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var uid, username string
		if err := rows.Scan(&uid, &username); err != nil {
			return nil, err
		}
		names[uid] = username
	}
	return names, rows.Err()
}

// SetRole implements domain.UserRepository.
func (r *Repository) SetRole(ctx context.Context, uid string, role domain.Role) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET role = $2 WHERE uid = $1`, uid, string(role))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: user %s", domain.ErrNotFound, uid)
	}
	return nil
}
