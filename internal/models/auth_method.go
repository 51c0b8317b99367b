// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import "time"

// Auth method providers.
const (
	ProviderEmail  = "email"
	ProviderGoogle = "google"
	ProviderGitHub = "github"
	ProviderWeChat = "wechat"
)

// AuthMethod is one way a user can prove their identity.
// Only the email provider carries a password hash.
type AuthMethod struct { //nolint:govet // fieldalignment: readability over optimization
	ID             string    `db:"id" json:"id"`
	UserID         string    `db:"user_id" json:"user_id"`
	Provider       string    `db:"provider" json:"provider"`
	ProviderID     *string   `db:"provider_id" json:"provider_id,omitempty"`
	HashedPassword *string   `db:"hashed_password" json:"-"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// HasPassword reports whether a password hash is stored.
func (m *AuthMethod) HasPassword() bool {
	return m.HashedPassword != nil && *m.HashedPassword != ""
}
