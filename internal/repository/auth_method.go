// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"

	"codeberg.org/oliverandrich/studyhub/internal/models"
)

const authMethodColumns = `id, user_id, provider, provider_id, hashed_password, created_at`

// CreateAuthMethod links a provider to a user.
func (r *Repository) CreateAuthMethod(ctx context.Context, m *models.AuthMethod) error {
	if m.ID == "" {
		m.ID = newID()
	}
	m.CreatedAt = r.timestamp()

	_, err := r.q.ExecContext(ctx,
		`INSERT INTO auth_methods (`+authMethodColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		m.ID, m.UserID, m.Provider, m.ProviderID, m.HashedPassword, m.CreatedAt)
	return wrapError(err)
}

// GetAuthMethod returns the user's method for a provider.
func (r *Repository) GetAuthMethod(ctx context.Context, userID, provider string) (*models.AuthMethod, error) {
	var m models.AuthMethod
	err := r.q.GetContext(ctx, &m,
		`SELECT `+authMethodColumns+` FROM auth_methods WHERE user_id = ? AND provider = ?`, userID, provider)
	if err != nil {
		return nil, wrapError(err)
	}
	return &m, nil
}

// GetAuthMethodByProviderID finds a federated identity.
func (r *Repository) GetAuthMethodByProviderID(ctx context.Context, provider, providerID string) (*models.AuthMethod, error) {
	var m models.AuthMethod
	err := r.q.GetContext(ctx, &m,
		`SELECT `+authMethodColumns+` FROM auth_methods WHERE provider = ? AND provider_id = ?`, provider, providerID)
	if err != nil {
		return nil, wrapError(err)
	}
	return &m, nil
}

// ListAuthMethods returns all methods of a user, oldest first.
func (r *Repository) ListAuthMethods(ctx context.Context, userID string) ([]models.AuthMethod, error) {
	var methods []models.AuthMethod
	err := r.q.SelectContext(ctx, &methods,
		`SELECT `+authMethodColumns+` FROM auth_methods WHERE user_id = ? ORDER BY created_at`, userID)
	if err != nil {
		return nil, err
	}
	return methods, nil
}

// SetPasswordHash stores a new hash on the user's email method.
func (r *Repository) SetPasswordHash(ctx context.Context, userID, hash string) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE auth_methods SET hashed_password = ? WHERE user_id = ? AND provider = ?`,
		hash, userID, models.ProviderEmail)
	if err != nil {
		return err
	}
	return affectedOne(res)
}
