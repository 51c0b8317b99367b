// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"codeberg.org/oliverandrich/studyhub/internal/metrics"
	"codeberg.org/oliverandrich/studyhub/internal/models"
	"codeberg.org/oliverandrich/studyhub/internal/repository"
	"codeberg.org/oliverandrich/studyhub/internal/services/token"
)

// Tokens is a freshly issued access token and refresh session.
type Tokens struct {
	Access  string
	Refresh string
}

// IssueSession signs an access token and opens a refresh session for user.
func (s *Service) IssueSession(ctx context.Context, user *models.User) (*Tokens, error) {
	access, err := s.codec.Sign(token.Access, user.ID, s.accessTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to sign access token: %w", err)
	}
	refresh, err := s.sessions.Create(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return &Tokens{Access: access, Refresh: refresh}, nil
}

// AccessToken signs a new access token for user.
func (s *Service) AccessToken(user *models.User) (string, error) {
	return s.codec.Sign(token.Access, user.ID, s.accessTTL)
}

// Refresh exchanges a valid refresh token for a new access token. The
// refresh session keeps its original expiry.
func (s *Service) Refresh(ctx context.Context, refresh string) (*models.User, string, error) {
	if refresh == "" {
		metrics.Refresh(false)
		return nil, "", ErrInvalidSessionToken
	}

	sess, err := s.sessions.Validate(ctx, refresh)
	if err != nil {
		metrics.Refresh(false)
		slog.WarnContext(ctx, "refresh_failed", "error", err)
		return nil, "", fmt.Errorf("%w: %w", ErrInvalidSessionToken, err)
	}

	user, err := s.repo.GetUserByID(ctx, sess.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		metrics.Refresh(false)
		return nil, "", ErrInvalidSessionToken
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to get user: %w", err)
	}

	access, err := s.AccessToken(user)
	if err != nil {
		return nil, "", fmt.Errorf("failed to sign access token: %w", err)
	}

	metrics.Refresh(true)
	return user, access, nil
}

// Logout revokes the refresh session. Missing or unknown tokens are ignored.
func (s *Service) Logout(ctx context.Context, refresh string) error {
	if err := s.sessions.Revoke(ctx, refresh); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	return nil
}

// CurrentUser resolves an access token to its user. Refresh tokens are
// refused with token.ErrInvalidToken; a vanished user is
// repository.ErrNotFound.
func (s *Service) CurrentUser(ctx context.Context, access string) (*models.User, error) {
	claims, err := s.codec.Verify(token.Access, access)
	if err != nil {
		return nil, err
	}
	return s.repo.GetUserByID(ctx, claims.UserID())
}
