// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"codeberg.org/oliverandrich/studyhub/internal/models"
	"codeberg.org/oliverandrich/studyhub/internal/repository"
	"codeberg.org/oliverandrich/studyhub/internal/services/token"
)

var (
	// ErrInvalidSession covers every reason a refresh token is refused.
	ErrInvalidSession = errors.New("invalid refresh session")
	// ErrSessionRevoked is returned when the token verifies but no session
	// row backs it.
	ErrSessionRevoked = fmt.Errorf("%w: revoked", ErrInvalidSession)
	// ErrSessionExpired is returned when the row is past its expiry.
	ErrSessionExpired = fmt.Errorf("%w: expired", ErrInvalidSession)
)

// Store persists refresh sessions. The row id is the SHA256 of the refresh
// token, so a database leak does not hand out usable tokens.
type Store struct {
	repo  *repository.Repository
	codec *token.Codec
	ttl   time.Duration
	now   func() time.Time
}

// NewStore creates a refresh session store.
func NewStore(repo *repository.Repository, codec *token.Codec, ttl time.Duration) *Store {
	return &Store{repo: repo, codec: codec, ttl: ttl, now: time.Now}
}

// SetClock replaces the clock used for expiry checks.
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

// TTL returns the refresh session lifetime.
func (s *Store) TTL() time.Duration {
	return s.ttl
}

// Create signs a refresh token for userID and stores its session. The
// user's expired sessions are pruned in the same transaction.
func (s *Store) Create(ctx context.Context, userID string) (string, error) {
	refresh, err := s.codec.Sign(token.Refresh, userID, s.ttl)
	if err != nil {
		return "", err
	}

	now := s.now()
	err = s.repo.WithTx(ctx, func(tx *repository.Repository) error {
		if err := tx.DeleteExpiredUserSessions(ctx, userID, now); err != nil {
			return err
		}
		return tx.CreateSession(ctx, &models.Session{
			ID:        token.Hash(refresh),
			UserID:    userID,
			ExpiresAt: now.Add(s.ttl),
		})
	})
	if err != nil {
		return "", fmt.Errorf("failed to create session: %w", err)
	}

	return refresh, nil
}

// Validate returns the session behind a refresh token. The token must
// verify as a refresh token, its row must exist and be unexpired, and the row must belong to
// the token's subject.
func (s *Store) Validate(ctx context.Context, refresh string) (*models.Session, error) {
	claims, err := s.codec.Verify(token.Refresh, refresh)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSession, err)
	}

	sess, err := s.repo.GetSession(ctx, token.Hash(refresh))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrSessionRevoked
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	if sess.Expired(s.now()) {
		_ = s.repo.DeleteSession(ctx, sess.ID)
		return nil, ErrSessionExpired
	}
	if sess.UserID != claims.UserID() {
		return nil, ErrInvalidSession
	}

	return sess, nil
}

// Revoke deletes the session behind a refresh token. Unknown tokens are
// ignored.
func (s *Store) Revoke(ctx context.Context, refresh string) error {
	if refresh == "" {
		return nil
	}
	return s.repo.DeleteSession(ctx, token.Hash(refresh))
}

// RevokeAll deletes every session of a user through tx, so callers can
// revoke inside their own transaction. A nil tx uses the store's repository.
func (s *Store) RevokeAll(ctx context.Context, tx *repository.Repository, userID string) (int64, error) {
	if tx == nil {
		tx = s.repo
	}
	n, err := tx.DeleteUserSessions(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to revoke sessions: %w", err)
	}
	return n, nil
}
