// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package token_test

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"codeberg.org/oliverandrich/studyhub/internal/services/token"
	"codeberg.org/oliverandrich/studyhub/internal/testutil"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time { return c.t }

func newCodec(t *testing.T, opts ...token.Option) *token.Codec {
	t.Helper()
	c, err := token.NewCodec(testutil.TestSecret, opts...)
	require.NoError(t, err)
	return c
}

func TestNewCodec_Secret(t *testing.T) {
	_, err := token.NewCodec("")
	assert.ErrorIs(t, err, token.ErrMissingSecret)

	_, err = token.NewCodec("short")
	assert.ErrorIs(t, err, token.ErrShortSecret)

	_, err = token.NewCodec(strings.Repeat("k", token.MinSecretLength))
	assert.NoError(t, err)
}

func TestSignVerify(t *testing.T) {
	c := newCodec(t)

	signed, err := c.Sign(token.Access, "user-1", 15*time.Minute)
	require.NoError(t, err)

	claims, err := c.Verify(token.Access, signed)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID())
	assert.NotEmpty(t, claims.ID)
	require.NotNil(t, claims.IssuedAt)
	require.NotNil(t, claims.ExpiresAt)
	assert.Equal(t, 15*time.Minute, claims.ExpiresAt.Sub(claims.IssuedAt.Time))
}

func TestSign_UniqueTokens(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	c := newCodec(t, token.WithClock(clock.Now))

	a, err := c.Sign(token.Access, "user-1", time.Hour)
	require.NoError(t, err)
	b, err := c.Sign(token.Access, "user-1", time.Hour)
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestSign_EmptySubject(t *testing.T) {
	_, err := newCodec(t).Sign(token.Access, "", time.Minute)

	assert.Error(t, err)
}

func TestSign_EmptyKind(t *testing.T) {
	_, err := newCodec(t).Sign("", "user-1", time.Minute)

	assert.Error(t, err)
}

func TestVerify_KindMismatch(t *testing.T) {
	c := newCodec(t)

	tests := []struct {
		name   string
		signed token.Kind
		want   token.Kind
	}{
		{"refresh as access", token.Refresh, token.Access},
		{"access as refresh", token.Access, token.Refresh},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			signed, err := c.Sign(tt.signed, "user-1", time.Hour)
			require.NoError(t, err)

			_, err = c.Verify(tt.want, signed)
			assert.ErrorIs(t, err, token.ErrInvalidToken)

			claims, err := c.Verify(tt.signed, signed)
			require.NoError(t, err)
			assert.Equal(t, jwt.ClaimStrings{string(tt.signed)}, claims.Audience)
		})
	}
}

func TestVerify_MissingKind(t *testing.T) {
	c := newCodec(t)

	noAud, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "user-1",
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}).SignedString([]byte(testutil.TestSecret))
	require.NoError(t, err)

	_, err = c.Verify(token.Access, noAud)
	assert.ErrorIs(t, err, token.ErrInvalidToken)
}

func TestVerify_Expired(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	c := newCodec(t, token.WithClock(clock.Now))

	signed, err := c.Sign(token.Access, "user-1", 15*time.Minute)
	require.NoError(t, err)

	clock.t = clock.t.Add(14 * time.Minute)
	_, err = c.Verify(token.Access, signed)
	require.NoError(t, err)

	clock.t = clock.t.Add(2 * time.Minute)
	_, err = c.Verify(token.Access, signed)
	assert.ErrorIs(t, err, token.ErrInvalidToken)
}

func TestVerify_WrongSecret(t *testing.T) {
	signed, err := newCodec(t).Sign(token.Access, "user-1", time.Minute)
	require.NoError(t, err)

	other, err := token.NewCodec(strings.Repeat("x", token.MinSecretLength))
	require.NoError(t, err)

	_, err = other.Verify(token.Access, signed)
	assert.ErrorIs(t, err, token.ErrInvalidToken)
}

func TestVerify_Malformed(t *testing.T) {
	c := newCodec(t)
	signed, err := c.Sign(token.Access, "user-1", time.Minute)
	require.NoError(t, err)
	parts := strings.Split(signed, ".")

	tampered := base64.RawURLEncoding.EncodeToString([]byte(`{"sub":"admin","exp":9999999999,"iat":1}`))

	for name, input := range map[string]string{
		"empty":            "",
		"garbage":          "not.a.token",
		"two segments":     parts[0] + "." + parts[1],
		"tampered payload": parts[0] + "." + tampered + "." + parts[2],
	} {
		t.Run(name, func(t *testing.T) {
			_, err := c.Verify(token.Access, input)
			assert.ErrorIs(t, err, token.ErrInvalidToken)
		})
	}
}

func TestVerify_RejectsOtherAlgorithms(t *testing.T) {
	c := newCodec(t)

	claims := jwt.RegisteredClaims{
		Subject:   "user-1",
		Audience:  jwt.ClaimStrings{string(token.Access)},
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(testutil.TestSecret))
	require.NoError(t, err)
	_, err = c.Verify(token.Access, hs512)
	assert.ErrorIs(t, err, token.ErrInvalidToken)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = c.Verify(token.Access, none)
	assert.ErrorIs(t, err, token.ErrInvalidToken)
}

func TestVerify_RequiresSubjectAndExpiry(t *testing.T) {
	c := newCodec(t)

	noSub, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Audience:  jwt.ClaimStrings{string(token.Access)},
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}).SignedString([]byte(testutil.TestSecret))
	require.NoError(t, err)
	_, err = c.Verify(token.Access, noSub)
	assert.ErrorIs(t, err, token.ErrInvalidToken)

	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:  "user-1",
		Audience: jwt.ClaimStrings{string(token.Access)},
	}).SignedString([]byte(testutil.TestSecret))
	require.NoError(t, err)
	_, err = c.Verify(token.Access, noExp)
	assert.ErrorIs(t, err, token.ErrInvalidToken)
}
