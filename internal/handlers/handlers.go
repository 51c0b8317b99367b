// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"net/http"

	"codeberg.org/oliverandrich/studyhub/internal/auth"
	"codeberg.org/oliverandrich/studyhub/internal/repository"
	"github.com/labstack/echo/v4"
)

// Handlers contains the handlers that are not part of the auth flows.
type Handlers struct {
	repo *repository.Repository
}

// New creates a new Handlers instance.
func New(repo *repository.Repository) *Handlers {
	return &Handlers{repo: repo}
}

// Health returns the health status.
func (h *Handlers) Health(c echo.Context) error {
	if h.repo != nil {
		if err := h.repo.DB().PingContext(c.Request().Context()); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		}
	}
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// Profile returns the signed in user together with their login methods.
func (h *Handlers) Profile(c echo.Context) error {
	ctx := c.Request().Context()
	user := auth.GetUser(ctx)
	if user == nil {
		return jsonError(c, http.StatusUnauthorized, "Authentication required")
	}

	methods, err := h.repo.ListAuthMethods(ctx, user.ID)
	if err != nil {
		return internalError(c, "failed to list auth methods", err)
	}

	providers := make([]string, len(methods))
	for i, m := range methods {
		providers[i] = m.Provider
	}

	return c.JSON(http.StatusOK, map[string]any{
		"user":      newUserResponse(user),
		"providers": providers,
	})
}
