// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import "time"

// User is the root identity record.
type User struct { //nolint:govet // fieldalignment not critical for models
	ID            string    `db:"id" json:"id"`
	Email         *string   `db:"email" json:"email,omitempty"`
	EmailVerified bool      `db:"email_verified" json:"email_verified"`
	Username      *string   `db:"username" json:"username,omitempty"`
	DisplayName   string    `db:"display_name" json:"display_name"`
	AvatarURL     *string   `db:"avatar_url" json:"avatar_url,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// EmailAddress returns the email or an empty string.
func (u *User) EmailAddress() string {
	if u.Email == nil {
		return ""
	}
	return *u.Email
}

// Name returns the best human readable name for the user.
func (u *User) Name() string {
	switch {
	case u.DisplayName != "":
		return u.DisplayName
	case u.Username != nil && *u.Username != "":
		return *u.Username
	default:
		return u.EmailAddress()
	}
}
