// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"codeberg.org/oliverandrich/studyhub/internal/metrics"
	"codeberg.org/oliverandrich/studyhub/internal/models"
	"codeberg.org/oliverandrich/studyhub/internal/repository"
	"codeberg.org/oliverandrich/studyhub/internal/services/oauth"
)

// ResolveOAuthUser maps a provider identity to a local user: an existing
// link wins, then an account with the same email gets linked, otherwise a
// new verified account is created. An account already linked to a different
// identity of the same provider is refused with ErrProviderConflict.
func (s *Service) ResolveOAuthUser(ctx context.Context, profile *oauth.Profile) (*models.User, error) {
	if profile == nil || profile.Provider == "" || profile.ProviderID == "" {
		return nil, oauth.ErrProfile
	}
	if profile.Email == "" {
		return nil, oauth.ErrNoEmail
	}

	var (
		user    *models.User
		created bool
	)
	err := s.repo.WithTx(ctx, func(tx *repository.Repository) error {
		method, err := tx.GetAuthMethodByProviderID(ctx, profile.Provider, profile.ProviderID)
		if err == nil {
			user, err = tx.GetUserByID(ctx, method.UserID)
			return err
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return err
		}

		user, err = tx.GetUserByEmail(ctx, profile.Email)
		switch {
		case err == nil:
			_, err := tx.GetAuthMethod(ctx, user.ID, profile.Provider)
			if err == nil {
				return ErrProviderConflict
			}
			if !errors.Is(err, repository.ErrNotFound) {
				return err
			}
			if !user.EmailVerified && profile.EmailVerified {
				if err := tx.MarkEmailVerified(ctx, user.ID); err != nil {
					return err
				}
				user.EmailVerified = true
			}
			if user.AvatarURL == nil && profile.AvatarURL != "" {
				user.AvatarURL = &profile.AvatarURL
				if err := tx.UpdateUser(ctx, user); err != nil {
					return err
				}
			}
		case errors.Is(err, repository.ErrNotFound):
			user = newOAuthUser(profile)
			if err := tx.CreateUser(ctx, user); err != nil {
				return err
			}
			created = true
		default:
			return err
		}

		providerID := profile.ProviderID
		return tx.CreateAuthMethod(ctx, &models.AuthMethod{
			UserID:     user.ID,
			Provider:   profile.Provider,
			ProviderID: &providerID,
		})
	})
	if err != nil {
		metrics.Login(profile.Provider, false)
		if errors.Is(err, ErrProviderConflict) {
			slog.WarnContext(ctx, "oauth_conflict", "provider", profile.Provider, "email", profile.Email)
		}
		return nil, fmt.Errorf("failed to resolve %s user: %w", profile.Provider, err)
	}

	slog.InfoContext(ctx, "oauth_login", "provider", profile.Provider, "user_id", user.ID, "new_user", created)
	metrics.Login(profile.Provider, true)
	if created {
		s.publishRegistered(ctx, user, profile.Provider)
	}
	s.publishLogin(ctx, user, profile.Provider)
	return user, nil
}

func newOAuthUser(profile *oauth.Profile) *models.User {
	address := profile.Email
	name := strings.TrimSpace(profile.Name)
	if name == "" {
		name = address[:max(strings.LastIndex(address, "@"), 0)]
	}

	user := &models.User{
		Email:         &address,
		EmailVerified: profile.EmailVerified,
		DisplayName:   name,
	}
	if profile.AvatarURL != "" {
		avatar := profile.AvatarURL
		user.AvatarURL = &avatar
	}
	return user
}
