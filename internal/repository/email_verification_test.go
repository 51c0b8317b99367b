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

func newCode(email, code, purpose string, ttl time.Duration) *models.EmailVerification {
	return &models.EmailVerification{
		Email:     email,
		Code:      code,
		Purpose:   purpose,
		ExpiresAt: time.Now().Add(ttl),
	}
}

func TestCreateVerificationCode(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()

	v := newCode("a@x.com", "123456", models.PurposeRegister, 10*time.Minute)

	require.NoError(t, repo.CreateVerificationCode(ctx, v))

	got, err := repo.GetVerificationCode(ctx, "a@x.com", "123456", models.PurposeRegister)
	require.NoError(t, err)
	assert.Equal(t, v.ID, got.ID)
	assert.False(t, got.Used)
	assert.WithinDuration(t, v.ExpiresAt, got.ExpiresAt, time.Second)
}

func TestGetVerificationCode_PurposeScoped(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()

	require.NoError(t, repo.CreateVerificationCode(ctx,
		newCode("a@x.com", "123456", models.PurposeReset, 10*time.Minute)))

	_, err := repo.GetVerificationCode(ctx, "a@x.com", "123456", models.PurposeRegister)

	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestMarkVerificationCodeUsed_Once(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()

	v := newCode("a@x.com", "123456", models.PurposeRegister, 10*time.Minute)
	require.NoError(t, repo.CreateVerificationCode(ctx, v))

	require.NoError(t, repo.MarkVerificationCodeUsed(ctx, v.ID))
	assert.ErrorIs(t, repo.MarkVerificationCodeUsed(ctx, v.ID), repository.ErrNotFound)

	got, err := repo.GetVerificationCode(ctx, "a@x.com", "123456", models.PurposeRegister)
	require.NoError(t, err)
	assert.True(t, got.Used)
}

func TestDeleteVerificationCodes(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()

	require.NoError(t, repo.CreateVerificationCode(ctx,
		newCode("a@x.com", "111111", models.PurposeRegister, 10*time.Minute)))
	require.NoError(t, repo.CreateVerificationCode(ctx,
		newCode("a@x.com", "222222", models.PurposeReset, 10*time.Minute)))
	require.NoError(t, repo.CreateVerificationCode(ctx,
		newCode("b@x.com", "333333", models.PurposeRegister, 10*time.Minute)))

	require.NoError(t, repo.DeleteVerificationCodes(ctx, "a@x.com"))

	_, err := repo.GetVerificationCode(ctx, "a@x.com", "111111", models.PurposeRegister)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = repo.GetVerificationCode(ctx, "a@x.com", "222222", models.PurposeReset)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = repo.GetVerificationCode(ctx, "b@x.com", "333333", models.PurposeRegister)
	assert.NoError(t, err)
}

func TestDeleteExpiredVerificationCodes(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()

	require.NoError(t, repo.CreateVerificationCode(ctx,
		newCode("old@x.com", "111111", models.PurposeRegister, -time.Hour)))
	require.NoError(t, repo.CreateVerificationCode(ctx,
		newCode("new@x.com", "222222", models.PurposeRegister, time.Hour)))

	n, err := repo.DeleteExpiredVerificationCodes(ctx, time.Now())

	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	_, err = repo.GetVerificationCode(ctx, "new@x.com", "222222", models.PurposeRegister)
	assert.NoError(t, err)
}
