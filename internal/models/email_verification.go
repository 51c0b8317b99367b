// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import "time"

// Verification code purposes.
const (
	PurposeRegister = "register"
	PurposeReset    = "reset"
)

// EmailVerification is a short-lived numeric code sent to an address.
type EmailVerification struct { //nolint:govet // fieldalignment: readability over optimization
	ID        string    `db:"id" json:"id"`
	Email     string    `db:"email" json:"email"`
	Code      string    `db:"code" json:"-"`
	Purpose   string    `db:"purpose" json:"purpose"`
	ExpiresAt time.Time `db:"expires_at" json:"expires_at"`
	Used      bool      `db:"used" json:"used"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Expired reports whether the code is past its expiry at now.
func (v *EmailVerification) Expired(now time.Time) bool {
	return !now.Before(v.ExpiresAt)
}
