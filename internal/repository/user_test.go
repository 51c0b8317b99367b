// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository_test

import (
	"context"
	"testing"

	"codeberg.org/oliverandrich/studyhub/internal/models"
	"codeberg.org/oliverandrich/studyhub/internal/repository"
	"codeberg.org/oliverandrich/studyhub/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateUser(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()

	email := "new@example.com"
	username := "newbie"
	user := &models.User{Email: &email, Username: &username, DisplayName: "Newbie"}

	err := repo.CreateUser(ctx, user)

	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)
	assert.False(t, user.CreatedAt.IsZero())

	got, err := repo.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", got.EmailAddress())
	assert.Equal(t, "Newbie", got.DisplayName)
	assert.False(t, got.EmailVerified)
	assert.Nil(t, got.AvatarURL)
}

func TestCreateUser_DuplicateEmail(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()

	testutil.NewTestUser(t, repo, "dup@example.com")

	email := "dup@example.com"
	err := repo.CreateUser(ctx, &models.User{Email: &email})

	assert.ErrorIs(t, err, repository.ErrDuplicate)
}

func TestCreateUser_EmailIsCaseSensitive(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()

	upper, lower := "Case@example.com", "case@example.com"
	require.NoError(t, repo.CreateUser(ctx, &models.User{Email: &upper, DisplayName: "a"}))
	require.NoError(t, repo.CreateUser(ctx, &models.User{Email: &lower, DisplayName: "b"}))

	got, err := repo.GetUserByEmail(ctx, upper)
	require.NoError(t, err)
	assert.Equal(t, "a", got.DisplayName)
}

func TestCreateUser_NullEmailsDoNotCollide(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()

	require.NoError(t, repo.CreateUser(ctx, &models.User{DisplayName: "a"}))
	require.NoError(t, repo.CreateUser(ctx, &models.User{DisplayName: "b"}))

	count, err := repo.CountUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestGetUserByID_NotFound(t *testing.T) {
	_, repo := testutil.NewTestDB(t)

	_, err := repo.GetUserByID(context.Background(), "missing")

	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestGetUserByEmail(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()

	user := testutil.NewTestUser(t, repo, "find@example.com")

	got, err := repo.GetUserByEmail(ctx, "find@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	_, err = repo.GetUserByEmail(ctx, "other@example.com")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestGetUserByUsername_CaseInsensitive(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()

	user := testutil.NewTestUser(t, repo, "alice@example.com")

	got, err := repo.GetUserByUsername(ctx, "ALICE")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	taken, err := repo.UsernameExists(ctx, "Alice")
	require.NoError(t, err)
	assert.True(t, taken)
}

func TestEmailExists(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()

	testutil.NewTestUser(t, repo, "here@example.com")

	exists, err := repo.EmailExists(ctx, "here@example.com")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.EmailExists(ctx, "gone@example.com")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestUpdateUser(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()

	user := testutil.NewTestUser(t, repo, "update@example.com")
	avatar := "https://example.com/a.png"
	user.DisplayName = "Updated"
	user.AvatarURL = &avatar

	require.NoError(t, repo.UpdateUser(ctx, user))

	got, err := repo.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Updated", got.DisplayName)
	require.NotNil(t, got.AvatarURL)
	assert.Equal(t, avatar, *got.AvatarURL)
}

func TestUpdateUser_NotFound(t *testing.T) {
	_, repo := testutil.NewTestDB(t)

	err := repo.UpdateUser(context.Background(), &models.User{ID: "missing"})

	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestMarkEmailVerified(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()

	email := "unverified@example.com"
	user := &models.User{Email: &email}
	require.NoError(t, repo.CreateUser(ctx, user))

	require.NoError(t, repo.MarkEmailVerified(ctx, user.ID))

	got, err := repo.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, got.EmailVerified)
}
