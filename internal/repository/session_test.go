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

func TestCreateSession(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()

	user := testutil.NewTestUser(t, repo, "s@example.com")
	expiresAt := time.Now().Add(7 * 24 * time.Hour)

	require.NoError(t, repo.CreateSession(ctx, &models.Session{ID: "sess-1", UserID: user.ID, ExpiresAt: expiresAt}))

	got, err := repo.GetSession(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.UserID)
	assert.WithinDuration(t, expiresAt, got.ExpiresAt, time.Second)
}

func TestCreateSession_UnknownUser(t *testing.T) {
	_, repo := testutil.NewTestDB(t)

	err := repo.CreateSession(context.Background(), &models.Session{ID: "x", UserID: "missing", ExpiresAt: time.Now()})

	assert.Error(t, err)
}

func TestDeleteSession(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()

	user := testutil.NewTestUser(t, repo, "s@example.com")
	require.NoError(t, repo.CreateSession(ctx, &models.Session{ID: "sess-1", UserID: user.ID, ExpiresAt: time.Now()}))

	require.NoError(t, repo.DeleteSession(ctx, "sess-1"))

	_, err := repo.GetSession(ctx, "sess-1")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestDeleteUserSessions(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()

	user := testutil.NewTestUser(t, repo, "s@example.com")
	other := testutil.NewTestUser(t, repo, "o@example.com")
	require.NoError(t, repo.CreateSession(ctx, &models.Session{ID: "a", UserID: user.ID, ExpiresAt: time.Now()}))
	require.NoError(t, repo.CreateSession(ctx, &models.Session{ID: "b", UserID: user.ID, ExpiresAt: time.Now()}))
	require.NoError(t, repo.CreateSession(ctx, &models.Session{ID: "c", UserID: other.ID, ExpiresAt: time.Now()}))

	n, err := repo.DeleteUserSessions(ctx, user.ID)

	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	_, err = repo.GetSession(ctx, "c")
	assert.NoError(t, err)
}

func TestDeleteExpiredUserSessions(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()

	user := testutil.NewTestUser(t, repo, "s@example.com")
	require.NoError(t, repo.CreateSession(ctx, &models.Session{ID: "old", UserID: user.ID, ExpiresAt: time.Now().Add(-time.Hour)}))
	require.NoError(t, repo.CreateSession(ctx, &models.Session{ID: "new", UserID: user.ID, ExpiresAt: time.Now().Add(time.Hour)}))

	require.NoError(t, repo.DeleteExpiredUserSessions(ctx, user.ID, time.Now()))

	_, err := repo.GetSession(ctx, "old")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = repo.GetSession(ctx, "new")
	assert.NoError(t, err)
}
