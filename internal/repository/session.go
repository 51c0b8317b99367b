// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"time"

	"codeberg.org/oliverandrich/studyhub/internal/models"
)

const sessionColumns = `id, user_id, expires_at, created_at`

// CreateSession stores a refresh session.
func (r *Repository) CreateSession(ctx context.Context, s *models.Session) error {
	s.CreatedAt = r.timestamp()
	s.ExpiresAt = s.ExpiresAt.UTC()

	_, err := r.q.ExecContext(ctx,
		`INSERT INTO sessions (`+sessionColumns+`) VALUES (?, ?, ?, ?)`,
		s.ID, s.UserID, s.ExpiresAt, s.CreatedAt)
	return wrapError(err)
}

// GetSession retrieves a session by ID.
func (r *Repository) GetSession(ctx context.Context, id string) (*models.Session, error) {
	var s models.Session
	err := r.q.GetContext(ctx, &s, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	if err != nil {
		return nil, wrapError(err)
	}
	return &s, nil
}

// DeleteSession removes a session.
func (r *Repository) DeleteSession(ctx context.Context, id string) error {
	_, err := r.q.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	return err
}

// DeleteUserSessions removes every session of a user.
func (r *Repository) DeleteUserSessions(ctx context.Context, userID string) (int64, error) {
	res, err := r.q.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = ?`, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteExpiredUserSessions removes a user's sessions that expired before now.
func (r *Repository) DeleteExpiredUserSessions(ctx context.Context, userID string, now time.Time) error {
	_, err := r.q.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = ? AND expires_at < ?`, userID, now.UTC())
	return err
}
