// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"codeberg.org/oliverandrich/studyhub/internal/models"
	"codeberg.org/oliverandrich/studyhub/internal/services/auth"
	"codeberg.org/oliverandrich/studyhub/internal/services/password"
	"codeberg.org/oliverandrich/studyhub/internal/services/verification"
	"github.com/labstack/echo/v4"
)

// userResponse is the public view of a user.
type userResponse struct {
	ID            string    `json:"id"`
	Email         string    `json:"email,omitempty"`
	Username      string    `json:"username,omitempty"`
	DisplayName   string    `json:"displayName"`
	AvatarURL     string    `json:"avatarUrl,omitempty"`
	EmailVerified bool      `json:"emailVerified"`
	CreatedAt     time.Time `json:"createdAt"`
}

func newUserResponse(u *models.User) userResponse {
	r := userResponse{
		ID:            u.ID,
		Email:         u.EmailAddress(),
		DisplayName:   u.DisplayName,
		EmailVerified: u.EmailVerified,
		CreatedAt:     u.CreatedAt,
	}
	if u.Username != nil {
		r.Username = *u.Username
	}
	if u.AvatarURL != nil {
		r.AvatarURL = *u.AvatarURL
	}
	return r
}

func jsonError(c echo.Context, status int, message string) error {
	return c.JSON(status, map[string]string{"error": message})
}

// internalError logs err and answers with a message that leaks nothing.
func internalError(c echo.Context, msg string, err error) error {
	slog.ErrorContext(c.Request().Context(), msg, "error", err)
	return jsonError(c, http.StatusInternalServerError, "Internal server error")
}

// serviceError maps service errors to status codes and messages.
func serviceError(c echo.Context, err error) error {
	var pve *password.PasswordValidationError
	var cooldown *verification.CooldownError

	switch {
	case errors.As(err, &pve):
		return c.JSON(http.StatusBadRequest, map[string]any{
			"error":   pve.Error(),
			"details": pve.Messages(),
		})
	case errors.As(err, &cooldown):
		c.Response().Header().Set("Retry-After", strconv.Itoa(int(cooldown.RetryAfter.Seconds()+0.5)))
		return jsonError(c, http.StatusTooManyRequests, cooldown.Error())
	case errors.Is(err, auth.ErrMissingFields):
		return jsonError(c, http.StatusBadRequest, "Required fields are missing")
	case errors.Is(err, auth.ErrInvalidEmail), errors.Is(err, verification.ErrInvalidEmail):
		return jsonError(c, http.StatusBadRequest, "Please enter a valid email address")
	case errors.Is(err, verification.ErrInvalidCode), errors.Is(err, verification.ErrCodeUsed):
		return jsonError(c, http.StatusBadRequest, "Invalid or expired verification code")
	case errors.Is(err, verification.ErrCodeExpired):
		return jsonError(c, http.StatusBadRequest, "Verification code has expired")
	case errors.Is(err, auth.ErrEmailTaken):
		return jsonError(c, http.StatusConflict, "Email is already registered")
	case errors.Is(err, auth.ErrUsernameTaken):
		return jsonError(c, http.StatusConflict, "Display name is already taken")
	case errors.Is(err, auth.ErrInvalidCredentials):
		return jsonError(c, http.StatusUnauthorized, "Invalid email or password")
	case errors.Is(err, auth.ErrSamePassword):
		return jsonError(c, http.StatusBadRequest, "New password must differ from the current one")
	case errors.Is(err, auth.ErrNoPassword):
		return jsonError(c, http.StatusBadRequest, "No password is set for this account")
	case errors.Is(err, auth.ErrUserNotFound):
		return jsonError(c, http.StatusNotFound, "No account found for this email")
	default:
		return internalError(c, "request failed", err)
	}
}
