// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package auth_test

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"testing"
	"time"

	"codeberg.org/oliverandrich/studyhub/internal/services/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func linkToken(t *testing.T, link string) (token, redirect string) {
	t.Helper()
	u, err := url.Parse(link)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080"+auth.MagicLoginPath, u.Scheme+"://"+u.Host+u.Path)
	return u.Query().Get("token"), u.Query().Get("redirect")
}

func TestSendMagicLink_NewUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.SendMagicLink(ctx, "kim@example.com", "/courses/42"))

	user, err := f.repo.GetUserByEmail(ctx, "kim@example.com")
	require.NoError(t, err)
	assert.False(t, user.EmailVerified)
	assert.Equal(t, "kim", user.DisplayName)

	require.Len(t, f.mailer.Links, 1)
	tok, redirect := linkToken(t, f.mailer.LastLink())
	assert.Len(t, tok, 64)
	assert.Equal(t, "/courses/42", redirect)

	got, err := f.svc.ConsumeMagicLink(ctx, tok)
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
	assert.True(t, got.EmailVerified)

	reloaded, err := f.repo.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.EmailVerified)

	_, err = f.svc.ConsumeMagicLink(ctx, tok)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestSendMagicLink_ReplacesPreviousLink(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.SendMagicLink(ctx, "lee@example.com", ""))
	first, _ := linkToken(t, f.mailer.LastLink())
	require.NoError(t, f.svc.SendMagicLink(ctx, "lee@example.com", ""))
	second, redirect := linkToken(t, f.mailer.LastLink())

	assert.Equal(t, "/", redirect)

	_, err := f.svc.ConsumeMagicLink(ctx, first)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
	_, err = f.svc.ConsumeMagicLink(ctx, second)
	assert.NoError(t, err)

	count, err := f.repo.CountUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestSendMagicLink_UnsafeRedirect(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.svc.SendMagicLink(context.Background(), "mo@example.com", "https://evil.example.com"))
	_, redirect := linkToken(t, f.mailer.LastLink())
	assert.Equal(t, "/", redirect)
}

func TestSendMagicLink_MailFailureStillSucceeds(t *testing.T) {
	f := newFixture(t)
	f.mailer.Err = errors.New("smtp down")

	assert.NoError(t, f.svc.SendMagicLink(context.Background(), "ned@example.com", "/"))
}

func TestSendMagicLink_InvalidEmail(t *testing.T) {
	f := newFixture(t)
	assert.ErrorIs(t, f.svc.SendMagicLink(context.Background(), "not-an-email", "/"), auth.ErrInvalidEmail)
}

func TestConsumeMagicLink_Expired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.SendMagicLink(ctx, "ola@example.com", "/"))
	tok, _ := linkToken(t, f.mailer.LastLink())

	f.now = f.now.Add(16 * time.Minute)
	_, err := f.svc.ConsumeMagicLink(ctx, tok)
	assert.ErrorIs(t, err, auth.ErrTokenExpired)

	// expired links are removed on first use
	_, err = f.svc.ConsumeMagicLink(ctx, tok)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestConsumeMagicLink_Unknown(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.ConsumeMagicLink(context.Background(), "")
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
	_, err = f.svc.ConsumeMagicLink(context.Background(), "deadbeef")
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestConsumeMagicLink_Concurrent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.SendMagicLink(ctx, "pat@example.com", "/"))
	tok, _ := linkToken(t, f.mailer.LastLink())

	const attempts = 5
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.svc.ConsumeMagicLink(ctx, tok); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
}

func TestSafeRedirect(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"", "/"},
		{"/", "/"},
		{"/dashboard?tab=2", "/dashboard?tab=2"},
		{"//evil.example.com", "/"},
		{"/\\evil.example.com", "/"},
		{"https://evil.example.com/", "/"},
		{"javascript:alert(1)", "/"},
		{"dashboard", "/"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, auth.SafeRedirect(tt.input))
		})
	}
}
