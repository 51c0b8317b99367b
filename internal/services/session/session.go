// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package session moves tokens in and out of cookies and keeps the
// server-side refresh sessions.
package session

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"codeberg.org/oliverandrich/studyhub/internal/config"
	"github.com/gorilla/securecookie"
)

const (
	// RefreshPath scopes the refresh cookie to the auth endpoints.
	RefreshPath = "/api/auth"
	// FlowTTL bounds how long an OAuth round trip may take.
	FlowTTL = 10 * time.Minute

	keyLength = 32
)

// ErrNoFlowState is returned when the OAuth flow cookie is missing,
// tampered with or expired.
var ErrNoFlowState = errors.New("oauth flow state missing or invalid")

// FlowState is what an OAuth redirect needs to remember until the callback.
type FlowState struct {
	State    string
	Verifier string
	Redirect string
}

// Manager builds auth cookies. Access and refresh tokens are signed JWTs
// and go into plain HTTP-only cookies; OAuth flow state is signed (and
// optionally encrypted) with securecookie.
type Manager struct { //nolint:govet // fieldalignment not critical
	flow        *securecookie.SecureCookie
	accessName  string
	refreshName string
	accessTTL   time.Duration
	refreshTTL  time.Duration
	secure      bool
}

// NewManager creates a cookie manager. An empty hash key is replaced with a
// random one, which invalidates in-flight OAuth flows on restart.
func NewManager(auth *config.AuthConfig, cfg *config.SessionConfig, secure bool) (*Manager, error) {
	hashKey, err := decodeKey(cfg.HashKey, "hash")
	if err != nil {
		return nil, err
	}
	if hashKey == nil {
		hashKey = make([]byte, keyLength)
		if _, err := rand.Read(hashKey); err != nil {
			return nil, fmt.Errorf("failed to generate session hash key: %w", err)
		}
		slog.Warn("no session hash key configured, generated a random one",
			"hint", "set --session-hash-key to keep OAuth flows valid across restarts")
	}

	blockKey, err := decodeKey(cfg.BlockKey, "block")
	if err != nil {
		return nil, err
	}

	sc := securecookie.New(hashKey, blockKey)
	sc.MaxAge(int(FlowTTL.Seconds()))

	return &Manager{
		flow:        sc,
		accessName:  auth.AccessCookieName,
		refreshName: auth.RefreshCookieName,
		accessTTL:   auth.AccessTTL,
		refreshTTL:  auth.RefreshTTL,
		secure:      secure,
	}, nil
}

func decodeKey(value, kind string) ([]byte, error) {
	if value == "" {
		return nil, nil
	}
	key, err := hex.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("invalid session %s key: %w", kind, err)
	}
	if len(key) != keyLength {
		return nil, fmt.Errorf("invalid session %s key: must be %d bytes, got %d", kind, keyLength, len(key))
	}
	return key, nil
}

// AccessCookieName returns the name of the access token cookie.
func (m *Manager) AccessCookieName() string { return m.accessName }

// RefreshCookieName returns the name of the refresh token cookie.
func (m *Manager) RefreshCookieName() string { return m.refreshName }

// AccessTTL returns the lifetime of access tokens.
func (m *Manager) AccessTTL() time.Duration { return m.accessTTL }

// AccessCookie wraps an access token.
func (m *Manager) AccessCookie(token string) *http.Cookie {
	return m.cookie(m.accessName, token, "/", m.accessTTL)
}

// RefreshCookie wraps a refresh token.
func (m *Manager) RefreshCookie(token string) *http.Cookie {
	return m.cookie(m.refreshName, token, RefreshPath, m.refreshTTL)
}

// ClearAccess returns a cookie that deletes the access token.
func (m *Manager) ClearAccess() *http.Cookie {
	return m.clear(m.accessName, "/")
}

// ClearRefresh returns a cookie that deletes the refresh token.
func (m *Manager) ClearRefresh() *http.Cookie {
	return m.clear(m.refreshName, RefreshPath)
}

// AccessToken reads the access token from the request, or "".
func (m *Manager) AccessToken(r *http.Request) string {
	return cookieValue(r, m.accessName)
}

// RefreshToken reads the refresh token from the request, or "".
func (m *Manager) RefreshToken(r *http.Request) string {
	return cookieValue(r, m.refreshName)
}

// FlowCookieName returns the cookie name holding a provider's OAuth state.
func FlowCookieName(provider string) string {
	return provider + "_oauth_state"
}

// SetFlowState encodes state for provider into a short-lived cookie.
func (m *Manager) SetFlowState(provider string, st FlowState) (*http.Cookie, error) {
	name := FlowCookieName(provider)
	encoded, err := m.flow.Encode(name, st)
	if err != nil {
		return nil, fmt.Errorf("failed to encode flow state: %w", err)
	}
	return m.cookie(name, encoded, RefreshPath, FlowTTL), nil
}

// ConsumeFlowState decodes the provider's flow cookie. The returned cookie
// clears it and must be set on the response whether or not decoding
// succeeded, so a state value is never accepted twice.
func (m *Manager) ConsumeFlowState(r *http.Request, provider string) (*FlowState, *http.Cookie, error) {
	name := FlowCookieName(provider)
	clear := m.clear(name, RefreshPath)

	c, err := r.Cookie(name)
	if err != nil || c.Value == "" {
		return nil, clear, ErrNoFlowState
	}

	var st FlowState
	if err := m.flow.Decode(name, c.Value, &st); err != nil {
		return nil, clear, fmt.Errorf("%w: %w", ErrNoFlowState, err)
	}
	if st.State == "" {
		return nil, clear, ErrNoFlowState
	}

	return &st, clear, nil
}

func (m *Manager) cookie(name, value, path string, ttl time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		MaxAge:   int(ttl.Seconds()),
		Expires:  time.Now().Add(ttl),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func (m *Manager) clear(name, path string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     path,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func cookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}
