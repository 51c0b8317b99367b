// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package verification issues and checks the six digit email codes used
// for registration and password reset.
package verification

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net/mail"
	"time"

	"codeberg.org/oliverandrich/studyhub/internal/cooldown"
	"codeberg.org/oliverandrich/studyhub/internal/metrics"
	"codeberg.org/oliverandrich/studyhub/internal/models"
	"codeberg.org/oliverandrich/studyhub/internal/repository"
	"codeberg.org/oliverandrich/studyhub/internal/services/email"
)

var (
	ErrInvalidCode  = errors.New("invalid verification code")
	ErrCodeUsed     = errors.New("verification code already used")
	ErrCodeExpired  = errors.New("verification code expired")
	ErrInvalidEmail = errors.New("invalid email address")
)

// CooldownError reports how long to wait before another code is sent.
type CooldownError struct {
	RetryAfter time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("please wait %s before requesting another code", e.RetryAfter.Round(time.Second))
}

func (e *CooldownError) Unwrap() error { return cooldown.ErrCoolingDown }

// Service issues and checks verification codes.
type Service struct { //nolint:govet // fieldalignment not critical
	repo     *repository.Repository
	mailer   email.Mailer
	limiter  cooldown.Limiter
	ttl      time.Duration
	cooldown time.Duration
	now      func() time.Time
}

// NewService creates a verification service.
func NewService(repo *repository.Repository, mailer email.Mailer, limiter cooldown.Limiter, ttl, cooldownWindow time.Duration) *Service {
	return &Service{
		repo:     repo,
		mailer:   mailer,
		limiter:  limiter,
		ttl:      ttl,
		cooldown: cooldownWindow,
		now:      time.Now,
	}
}

// SetClock replaces the clock used for expiry.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// TTL returns how long an issued code stays valid.
func (s *Service) TTL() time.Duration {
	return s.ttl
}

// Issue replaces every earlier code for email with a fresh one and mails it.
// Codes of any address that lapsed more than one TTL ago are pruned on the
// way; younger ones stay so Check can still report them as expired.
func (s *Service) Issue(ctx context.Context, address, purpose string) error {
	if _, err := mail.ParseAddress(address); err != nil {
		return ErrInvalidEmail
	}

	key := purpose + ":" + address
	if s.cooldown > 0 {
		ok, wait, err := s.limiter.Acquire(ctx, key, s.cooldown)
		if err != nil {
			// a broken limiter must not block sign-up
			slog.WarnContext(ctx, "cooldown_unavailable", "error", err)
		} else if !ok {
			return &CooldownError{RetryAfter: wait}
		}
	}

	code, err := GenerateCode()
	if err != nil {
		return err
	}

	now := s.now()
	var pruned int64
	err = s.repo.WithTx(ctx, func(tx *repository.Repository) error {
		n, err := tx.DeleteExpiredVerificationCodes(ctx, now.Add(-s.ttl))
		if err != nil {
			return err
		}
		pruned = n
		if err := tx.DeleteVerificationCodes(ctx, address); err != nil {
			return err
		}
		return tx.CreateVerificationCode(ctx, &models.EmailVerification{
			Email:     address,
			Code:      code,
			Purpose:   purpose,
			ExpiresAt: now.Add(s.ttl),
		})
	})
	if err != nil {
		_ = s.limiter.Release(ctx, key)
		return fmt.Errorf("failed to store verification code: %w", err)
	}

	if err := s.mailer.SendCode(ctx, address, code, purpose, s.ttl); err != nil {
		_ = s.limiter.Release(ctx, key)
		return fmt.Errorf("failed to send verification code: %w", err)
	}

	metrics.CodesIssued.WithLabelValues(purpose).Inc()
	slog.InfoContext(ctx, "code_sent", "email", address, "purpose", purpose, "pruned", pruned)
	return nil
}

// Check validates a code without consuming it.
func (s *Service) Check(ctx context.Context, address, code, purpose string) error {
	_, err := s.find(ctx, s.repo, address, code, purpose)
	return err
}

// Consume validates a code and marks it used. Run it inside the caller's
// transaction so the code flips together with the change it authorizes.
func (s *Service) Consume(ctx context.Context, tx *repository.Repository, address, code, purpose string) error {
	v, err := s.find(ctx, tx, address, code, purpose)
	if err != nil {
		return err
	}
	if err := tx.MarkVerificationCodeUsed(ctx, v.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrCodeUsed
		}
		return err
	}
	return nil
}

// find applies the checks in order: exists, unused, unexpired.
func (s *Service) find(ctx context.Context, repo *repository.Repository, address, code, purpose string) (*models.EmailVerification, error) {
	if code == "" {
		return nil, ErrInvalidCode
	}

	v, err := repo.GetVerificationCode(ctx, address, code, purpose)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrInvalidCode
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load verification code: %w", err)
	}

	if v.Used {
		return nil, ErrCodeUsed
	}
	if v.Expired(s.now()) {
		return nil, ErrCodeExpired
	}
	return v, nil
}

// GenerateCode returns a uniformly random code between 100000 and 999999.
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", fmt.Errorf("failed to generate code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}
