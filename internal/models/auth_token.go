// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import "time"

// TokenTypeMagicLink marks single-use login tokens delivered by email.
const TokenTypeMagicLink = "magic_link"

// AuthToken is a single-use bearer token. Only the SHA256 hash is stored.
type AuthToken struct { //nolint:govet // fieldalignment: readability over optimization
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	TokenHash string    `db:"token_hash" json:"-"`
	Type      string    `db:"type" json:"type"`
	ExpiresAt time.Time `db:"expires_at" json:"expires_at"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Expired reports whether the token is past its expiry at now.
func (t *AuthToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}
