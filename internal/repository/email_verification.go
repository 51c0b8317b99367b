// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"time"

	"codeberg.org/oliverandrich/studyhub/internal/models"
)

const verificationColumns = `id, email, code, purpose, expires_at, used, created_at`

// CreateVerificationCode stores a new code.
func (r *Repository) CreateVerificationCode(ctx context.Context, v *models.EmailVerification) error {
	if v.ID == "" {
		v.ID = newID()
	}
	v.CreatedAt = r.timestamp()
	v.ExpiresAt = v.ExpiresAt.UTC()

	_, err := r.q.ExecContext(ctx,
		`INSERT INTO email_verification (`+verificationColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		v.ID, v.Email, v.Code, v.Purpose, v.ExpiresAt, v.Used, v.CreatedAt)
	return wrapError(err)
}

// GetVerificationCode returns the newest code row matching email, code and purpose.
func (r *Repository) GetVerificationCode(ctx context.Context, email, code, purpose string) (*models.EmailVerification, error) {
	var v models.EmailVerification
	err := r.q.GetContext(ctx, &v,
		`SELECT `+verificationColumns+` FROM email_verification
		 WHERE email = ? AND code = ? AND purpose = ?
		 ORDER BY created_at DESC LIMIT 1`, email, code, purpose)
	if err != nil {
		return nil, wrapError(err)
	}
	return &v, nil
}

// MarkVerificationCodeUsed flips the used flag. Returns ErrNotFound if the
// code was already used.
func (r *Repository) MarkVerificationCodeUsed(ctx context.Context, id string) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE email_verification SET used = 1 WHERE id = ? AND used = 0`, id)
	if err != nil {
		return err
	}
	return affectedOne(res)
}

// DeleteVerificationCodes removes every code issued for an email.
func (r *Repository) DeleteVerificationCodes(ctx context.Context, email string) error {
	_, err := r.q.ExecContext(ctx, `DELETE FROM email_verification WHERE email = ?`, email)
	return err
}

// DeleteExpiredVerificationCodes deletes codes that expired before now.
func (r *Repository) DeleteExpiredVerificationCodes(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.q.ExecContext(ctx, `DELETE FROM email_verification WHERE expires_at < ?`, now.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
