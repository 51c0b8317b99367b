// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package testutil provides test helpers and fixtures.
package testutil

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"codeberg.org/oliverandrich/studyhub/internal/database"
	"codeberg.org/oliverandrich/studyhub/internal/models"
	"codeberg.org/oliverandrich/studyhub/internal/repository"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"github.com/vinovest/sqlx"
)

// TestSecret is a signing secret long enough for the token codec.
const TestSecret = "test-secret-test-secret-test-secret-0123"

// NewTestDB creates a migrated SQLite database in a temp dir for tests.
// Returns both the database connection and the repository for convenience.
func NewTestDB(t *testing.T) (*sqlx.DB, *repository.Repository) {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})
	repo := repository.New(db)
	return db, repo
}

// NewTestUser creates a verified test user with the given email.
// The username is the local part of the email.
func NewTestUser(t *testing.T, repo *repository.Repository, email string) *models.User {
	t.Helper()
	local, _, _ := strings.Cut(email, "@")
	username := strings.ToLower(local)
	user := &models.User{
		Email:         &email,
		EmailVerified: true,
		Username:      &username,
		DisplayName:   local,
	}
	require.NoError(t, repo.CreateUser(context.Background(), user))
	return user
}

// NewTestPasswordUser creates a user with an email credential carrying hash.
func NewTestPasswordUser(t *testing.T, repo *repository.Repository, email, hash string) *models.User {
	t.Helper()
	user := NewTestUser(t, repo, email)
	require.NoError(t, repo.CreateAuthMethod(context.Background(), &models.AuthMethod{
		UserID:         user.ID,
		Provider:       models.ProviderEmail,
		HashedPassword: &hash,
	}))
	return user
}

// NewEchoContext creates an Echo context for handler tests.
func NewEchoContext(e *echo.Echo, method, path string, body io.Reader) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, path, body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	return c, rec
}

// NewEchoContextWithHeaders creates an Echo context with custom headers.
func NewEchoContextWithHeaders(e *echo.Echo, method, path string, body io.Reader, headers map[string]string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, path, body)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	return c, rec
}

// NewRequest creates an HTTP request for testing.
func NewRequest(method, path string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, path, body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

// FindCookie returns the last cookie with name set on a recorded response, or nil.
func FindCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	var found *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			found = c
		}
	}
	return found
}
