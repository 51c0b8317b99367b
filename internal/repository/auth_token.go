// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"

	"codeberg.org/oliverandrich/studyhub/internal/models"
)

const authTokenColumns = `id, user_id, token_hash, type, expires_at, created_at`

// CreateAuthToken stores a single-use token.
func (r *Repository) CreateAuthToken(ctx context.Context, t *models.AuthToken) error {
	if t.ID == "" {
		t.ID = newID()
	}
	t.CreatedAt = r.timestamp()
	t.ExpiresAt = t.ExpiresAt.UTC()

	_, err := r.q.ExecContext(ctx,
		`INSERT INTO auth_tokens (`+authTokenColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		t.ID, t.UserID, t.TokenHash, t.Type, t.ExpiresAt, t.CreatedAt)
	return wrapError(err)
}

// GetAuthToken retrieves a token by hash and type.
func (r *Repository) GetAuthToken(ctx context.Context, tokenHash, tokenType string) (*models.AuthToken, error) {
	var t models.AuthToken
	err := r.q.GetContext(ctx, &t,
		`SELECT `+authTokenColumns+` FROM auth_tokens WHERE token_hash = ? AND type = ?`, tokenHash, tokenType)
	if err != nil {
		return nil, wrapError(err)
	}
	return &t, nil
}

// DeleteAuthToken deletes a token by ID. Returns ErrNotFound when it is
// already gone.
func (r *Repository) DeleteAuthToken(ctx context.Context, id string) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM auth_tokens WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return affectedOne(res)
}

// DeleteUserAuthTokens deletes all tokens of a type for a user.
func (r *Repository) DeleteUserAuthTokens(ctx context.Context, userID, tokenType string) error {
	_, err := r.q.ExecContext(ctx, `DELETE FROM auth_tokens WHERE user_id = ? AND type = ?`, userID, tokenType)
	return err
}
