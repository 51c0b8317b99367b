// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"codeberg.org/oliverandrich/studyhub/internal/auth"
	"codeberg.org/oliverandrich/studyhub/internal/models"
	"codeberg.org/oliverandrich/studyhub/internal/repository"
	"codeberg.org/oliverandrich/studyhub/internal/services/session"
	"codeberg.org/oliverandrich/studyhub/internal/services/token"
	"github.com/labstack/echo/v4"
)

// UserResolver turns an access token into the user it was issued for.
type UserResolver interface {
	CurrentUser(ctx context.Context, access string) (*models.User, error)
}

// LoadUser resolves the access token cookie to a user and stores it in the
// request context. A missing token leaves the request anonymous; an invalid
// one, or one whose user is gone, is also cleared from the browser.
func LoadUser(sm *session.Manager, users UserResolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			access := sm.AccessToken(req)
			if access == "" {
				return next(c)
			}

			user, err := users.CurrentUser(req.Context(), access)
			if err != nil {
				if errors.Is(err, token.ErrInvalidToken) || errors.Is(err, repository.ErrNotFound) {
					c.SetCookie(sm.ClearAccess())
				} else {
					slog.ErrorContext(req.Context(), "failed to load user", "error", err)
				}
				return next(c)
			}

			c.SetRequest(req.WithContext(auth.SetUser(req.Context(), user)))
			return next(c)
		}
	}
}

// IsAPIPath reports whether path belongs to the JSON API.
func IsAPIPath(path string) bool {
	return path == "/api" || strings.HasPrefix(path, "/api/")
}

// RequireAuth answers 401 on API paths and redirects pages to the login
// form when no user is loaded.
func RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if auth.IsAuthenticated(c.Request().Context()) {
			return next(c)
		}

		if IsAPIPath(c.Request().URL.Path) {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Authentication required"})
		}
		return c.Redirect(http.StatusFound, "/login?redirect="+url.QueryEscape(c.Request().URL.RequestURI()))
	}
}
