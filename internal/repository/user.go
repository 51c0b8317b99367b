// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"strings"

	"codeberg.org/oliverandrich/studyhub/internal/models"
)

const userColumns = `id, email, email_verified, username, display_name, avatar_url, created_at, updated_at`

// CreateUser inserts a user. ID and timestamps are filled in when empty.
func (r *Repository) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = newID()
	}
	now := r.timestamp()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := r.q.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID, user.Email, user.EmailVerified, user.Username, user.DisplayName, user.AvatarURL,
		user.CreatedAt, user.UpdatedAt)
	return wrapError(err)
}

// GetUserByID retrieves a user by their ID
func (r *Repository) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := r.q.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	if err != nil {
		return nil, wrapError(err)
	}
	return &user, nil
}

// GetUserByEmail retrieves a user by their email address
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := r.q.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
	if err != nil {
		return nil, wrapError(err)
	}
	return &user, nil
}

// GetUserByUsername retrieves a user by username, case-insensitively.
func (r *Repository) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	err := r.q.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE username = ?`,
		strings.ToLower(username))
	if err != nil {
		return nil, wrapError(err)
	}
	return &user, nil
}

// EmailExists reports whether a user with the given email exists.
func (r *Repository) EmailExists(ctx context.Context, email string) (bool, error) {
	var n int
	if err := r.q.GetContext(ctx, &n, `SELECT COUNT(*) FROM users WHERE email = ?`, email); err != nil {
		return false, err
	}
	return n > 0, nil
}

// UsernameExists reports whether the username is taken.
func (r *Repository) UsernameExists(ctx context.Context, username string) (bool, error) {
	var n int
	if err := r.q.GetContext(ctx, &n, `SELECT COUNT(*) FROM users WHERE username = ?`,
		strings.ToLower(username)); err != nil {
		return false, err
	}
	return n > 0, nil
}

// UpdateUser saves profile fields of an existing user.
func (r *Repository) UpdateUser(ctx context.Context, user *models.User) error {
	user.UpdatedAt = r.timestamp()
	res, err := r.q.ExecContext(ctx,
		`UPDATE users SET email = ?, username = ?, display_name = ?, avatar_url = ?, updated_at = ? WHERE id = ?`,
		user.Email, user.Username, user.DisplayName, user.AvatarURL, user.UpdatedAt, user.ID)
	if err != nil {
		return wrapError(err)
	}
	return affectedOne(res)
}

// MarkEmailVerified sets the verified flag for a user.
func (r *Repository) MarkEmailVerified(ctx context.Context, id string) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE users SET email_verified = 1, updated_at = ? WHERE id = ?`, r.timestamp(), id)
	if err != nil {
		return err
	}
	return affectedOne(res)
}

// CountUsers returns the total number of users
func (r *Repository) CountUsers(ctx context.Context) (int64, error) {
	var count int64
	if err := r.q.GetContext(ctx, &count, `SELECT COUNT(*) FROM users`); err != nil {
		return 0, err
	}
	return count, nil
}
