// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package token signs and verifies HS256 JWTs carrying only a kind, a
// subject, issue time, expiry and unique id.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// MinSecretLength is the shortest accepted signing secret in bytes.
const MinSecretLength = 32

var (
	// ErrInvalidToken is returned for any token that fails verification.
	ErrInvalidToken = errors.New("invalid token")
	// ErrMissingSecret is returned by NewCodec for an empty secret.
	ErrMissingSecret = errors.New("token signing secret is not configured")
	// ErrShortSecret is returned by NewCodec for a secret below MinSecretLength.
	ErrShortSecret = errors.New("token signing secret is too short")
)

// Kind separates access from refresh tokens. It travels as the audience
// claim and Verify only accepts the kind it is asked for.
type Kind string

const (
	Access  Kind = "access"
	Refresh Kind = "refresh"
)

// Claims is the strict token payload. Profile data is never embedded;
// callers load it from storage by subject.
type Claims struct {
	jwt.RegisteredClaims
}

// UserID returns the token subject.
func (c *Claims) UserID() string {
	return c.Subject
}

// Codec signs and verifies tokens with a shared HMAC secret.
type Codec struct {
	secret []byte
	now    func() time.Time
}

// Option configures a Codec.
type Option func(*Codec)

// WithClock replaces time.Now for signing and expiry checks.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) {
		c.now = now
	}
}

// NewCodec creates a codec. A missing or short secret is a configuration
// error.
func NewCodec(secret string, opts ...Option) (*Codec, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("%w: need at least %d bytes", ErrShortSecret, MinSecretLength)
	}

	c := &Codec{secret: []byte(secret), now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Sign issues a token of kind for subject that expires after ttl.
func (c *Codec) Sign(kind Kind, subject string, ttl time.Duration) (string, error) {
	if subject == "" {
		return "", errors.New("token subject is empty")
	}
	if kind == "" {
		return "", errors.New("token kind is empty")
	}

	now := c.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Audience:  jwt.ClaimStrings{string(kind)},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify checks signature, algorithm, kind and expiry and returns the
// claims. Every failure wraps ErrInvalidToken.
func (c *Codec) Verify(kind Kind, tokenString string) (*Claims, error) {
	claims := &Claims{}

	parsed, err := jwt.ParseWithClaims(tokenString, claims,
		func(*jwt.Token) (any, error) { return c.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(c.now),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithAudience(string(kind)),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !parsed.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
