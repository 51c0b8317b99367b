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

func TestGetAuthMethod(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()

	user := testutil.NewTestPasswordUser(t, repo, "pw@example.com", "stored-hash")

	m, err := repo.GetAuthMethod(ctx, user.ID, models.ProviderEmail)
	require.NoError(t, err)
	assert.True(t, m.HasPassword())
	assert.Equal(t, "stored-hash", *m.HashedPassword)

	_, err = repo.GetAuthMethod(ctx, user.ID, models.ProviderGitHub)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestCreateAuthMethod_OnePerProvider(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()

	user := testutil.NewTestPasswordUser(t, repo, "once@example.com", "hash")
	hash := "second"

	err := repo.CreateAuthMethod(ctx, &models.AuthMethod{
		UserID:         user.ID,
		Provider:       models.ProviderEmail,
		HashedPassword: &hash,
	})

	assert.ErrorIs(t, err, repository.ErrDuplicate)
}

func TestCreateAuthMethod_PasswordOnlyForEmail(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()

	user := testutil.NewTestUser(t, repo, "gh@example.com")
	hash := "hash"
	id := "12345"

	err := repo.CreateAuthMethod(ctx, &models.AuthMethod{
		UserID:         user.ID,
		Provider:       models.ProviderGitHub,
		ProviderID:     &id,
		HashedPassword: &hash,
	})

	assert.Error(t, err)
}

func TestGetAuthMethodByProviderID(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()

	user := testutil.NewTestUser(t, repo, "fed@example.com")
	id := "google-sub-1"
	require.NoError(t, repo.CreateAuthMethod(ctx, &models.AuthMethod{
		UserID:     user.ID,
		Provider:   models.ProviderGoogle,
		ProviderID: &id,
	}))

	m, err := repo.GetAuthMethodByProviderID(ctx, models.ProviderGoogle, id)
	require.NoError(t, err)
	assert.Equal(t, user.ID, m.UserID)

	_, err = repo.GetAuthMethodByProviderID(ctx, models.ProviderGitHub, id)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestListAuthMethods(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()

	user := testutil.NewTestPasswordUser(t, repo, "multi@example.com", "hash")
	id := "gh-1"
	require.NoError(t, repo.CreateAuthMethod(ctx, &models.AuthMethod{
		UserID:     user.ID,
		Provider:   models.ProviderGitHub,
		ProviderID: &id,
	}))

	methods, err := repo.ListAuthMethods(ctx, user.ID)

	require.NoError(t, err)
	assert.Len(t, methods, 2)
}

func TestSetPasswordHash(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()

	user := testutil.NewTestPasswordUser(t, repo, "change@example.com", "old")

	require.NoError(t, repo.SetPasswordHash(ctx, user.ID, "new"))

	m, err := repo.GetAuthMethod(ctx, user.ID, models.ProviderEmail)
	require.NoError(t, err)
	assert.Equal(t, "new", *m.HashedPassword)
}

func TestSetPasswordHash_NoEmailMethod(t *testing.T) {
	_, repo := testutil.NewTestDB(t)

	user := testutil.NewTestUser(t, repo, "nopw@example.com")

	err := repo.SetPasswordHash(context.Background(), user.ID, "new")

	assert.ErrorIs(t, err, repository.ErrNotFound)
}
