// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository_test

import (
	"context"
	"testing"
	"time"

	"codeberg.org/oliverandrich/studyhub/internal/models"
	"codeberg.org/oliverandrich/studyhub/internal/repository"
	"codeberg.org/oliverandrich/studyhub/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAuthToken(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()

	user := testutil.NewTestUser(t, repo, "ml@example.com")
	expiresAt := time.Now().Add(15 * time.Minute)

	tok := &models.AuthToken{
		UserID:    user.ID,
		TokenHash: "abc123hash",
		Type:      models.TokenTypeMagicLink,
		ExpiresAt: expiresAt,
	}
	require.NoError(t, repo.CreateAuthToken(ctx, tok))

	got, err := repo.GetAuthToken(ctx, "abc123hash", models.TokenTypeMagicLink)
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.UserID)
	assert.WithinDuration(t, expiresAt, got.ExpiresAt, time.Second)
}

func TestCreateAuthToken_UniqueHash(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()

	user := testutil.NewTestUser(t, repo, "ml@example.com")
	tok := func() *models.AuthToken {
		return &models.AuthToken{UserID: user.ID, TokenHash: "same", Type: models.TokenTypeMagicLink, ExpiresAt: time.Now()}
	}

	require.NoError(t, repo.CreateAuthToken(ctx, tok()))
	assert.ErrorIs(t, repo.CreateAuthToken(ctx, tok()), repository.ErrDuplicate)
}

func TestGetAuthToken_WrongType(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()

	user := testutil.NewTestUser(t, repo, "ml@example.com")
	require.NoError(t, repo.CreateAuthToken(ctx, &models.AuthToken{
		UserID: user.ID, TokenHash: "h", Type: models.TokenTypeMagicLink, ExpiresAt: time.Now(),
	}))

	_, err := repo.GetAuthToken(ctx, "h", "other")

	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestDeleteAuthToken(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()

	user := testutil.NewTestUser(t, repo, "ml@example.com")
	tok := &models.AuthToken{UserID: user.ID, TokenHash: "h", Type: models.TokenTypeMagicLink, ExpiresAt: time.Now()}
	require.NoError(t, repo.CreateAuthToken(ctx, tok))

	require.NoError(t, repo.DeleteAuthToken(ctx, tok.ID))
	assert.ErrorIs(t, repo.DeleteAuthToken(ctx, tok.ID), repository.ErrNotFound)
}

func TestDeleteUserAuthTokens(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()

	user := testutil.NewTestUser(t, repo, "ml@example.com")
	for _, h := range []string{"h1", "h2"} {
		require.NoError(t, repo.CreateAuthToken(ctx, &models.AuthToken{
			UserID: user.ID, TokenHash: h, Type: models.TokenTypeMagicLink, ExpiresAt: time.Now().Add(time.Hour),
		}))
	}

	require.NoError(t, repo.DeleteUserAuthTokens(ctx, user.ID, models.TokenTypeMagicLink))

	_, err := repo.GetAuthToken(ctx, "h1", models.TokenTypeMagicLink)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = repo.GetAuthToken(ctx, "h2", models.TokenTypeMagicLink)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
