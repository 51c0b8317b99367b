// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"codeberg.org/oliverandrich/studyhub/internal/metrics"
	"codeberg.org/oliverandrich/studyhub/internal/models"
	"codeberg.org/oliverandrich/studyhub/internal/repository"
	"codeberg.org/oliverandrich/studyhub/internal/services/token"
)

// MagicLoginPath is the endpoint embedded in magic link emails.
const MagicLoginPath = "/api/auth/magic-login"

// SendMagicLink mails a one-time login link, creating an unverified account
// on first use. Delivery failures are logged only, so the response does not
// reveal anything about the address.
func (s *Service) SendMagicLink(ctx context.Context, address, redirect string) error {
	address, err := ValidateEmail(address)
	if err != nil {
		return err
	}
	redirect = SafeRedirect(redirect)

	plaintext, hash, err := token.GenerateOpaque()
	if err != nil {
		return err
	}

	var (
		user    *models.User
		created bool
	)
	err = s.repo.WithTx(ctx, func(tx *repository.Repository) error {
		user, err = tx.GetUserByEmail(ctx, address)
		if errors.Is(err, repository.ErrNotFound) {
			user = &models.User{
				Email:       &address,
				DisplayName: address[:strings.LastIndex(address, "@")],
			}
			if err = tx.CreateUser(ctx, user); err != nil {
				return err
			}
			created = true
		} else if err != nil {
			return err
		}

		if err := tx.DeleteUserAuthTokens(ctx, user.ID, models.TokenTypeMagicLink); err != nil {
			return err
		}
		return tx.CreateAuthToken(ctx, &models.AuthToken{
			UserID:    user.ID,
			TokenHash: hash,
			Type:      models.TokenTypeMagicLink,
			ExpiresAt: s.now().Add(s.magicLinkTTL),
		})
	})
	if err != nil {
		return fmt.Errorf("failed to issue magic link: %w", err)
	}

	if created {
		s.publishRegistered(ctx, user, models.ProviderEmail)
	}

	link := s.baseURL + MagicLoginPath + "?" + url.Values{
		"token":    {plaintext},
		"redirect": {redirect},
	}.Encode()
	if err := s.mailer.SendMagicLink(ctx, address, user.Name(), link, s.magicLinkTTL); err != nil {
		slog.ErrorContext(ctx, "magic_link_send_failed", "email", address, "error", err)
		return nil
	}

	slog.InfoContext(ctx, "magic_link_sent", "user_id", user.ID, "new_user", created)
	return nil
}

// ConsumeMagicLink redeems a login link exactly once and marks the address
// verified.
func (s *Service) ConsumeMagicLink(ctx context.Context, plaintext string) (*models.User, error) {
	if plaintext == "" {
		return nil, ErrInvalidToken
	}

	var (
		user    *models.User
		expired bool
	)
	err := s.repo.WithTx(ctx, func(tx *repository.Repository) error {
		t, err := tx.GetAuthToken(ctx, token.Hash(plaintext), models.TokenTypeMagicLink)
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidToken
		}
		if err != nil {
			return err
		}

		if err := tx.DeleteAuthToken(ctx, t.ID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrInvalidToken
			}
			return err
		}
		if t.Expired(s.now()) {
			// commit the delete, refuse the link
			expired = true
			return nil
		}

		user, err = tx.GetUserByID(ctx, t.UserID)
		if err != nil {
			return err
		}
		if !user.EmailVerified {
			if err := tx.MarkEmailVerified(ctx, user.ID); err != nil {
				return err
			}
			user.EmailVerified = true
		}
		return nil
	})
	if err == nil && expired {
		err = ErrTokenExpired
	}
	if err != nil {
		metrics.Login(MethodMagicLink, false)
		slog.WarnContext(ctx, "magic_link_failed", "error", err)
		return nil, err
	}

	slog.InfoContext(ctx, "magic_link_consumed", "user_id", user.ID)
	metrics.Login(MethodMagicLink, true)
	s.publishLogin(ctx, user, MethodMagicLink)
	return user, nil
}

// SafeRedirect returns target when it is a local absolute path and "/"
// otherwise.
func SafeRedirect(target string) string {
	if target == "" || !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") || strings.HasPrefix(target, "/\\") {
		return "/"
	}
	u, err := url.Parse(target)
	if err != nil || u.IsAbs() || u.Host != "" {
		return "/"
	}
	return target
}
