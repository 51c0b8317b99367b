// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	authctx "codeberg.org/oliverandrich/studyhub/internal/auth"
	"codeberg.org/oliverandrich/studyhub/internal/models"
	"codeberg.org/oliverandrich/studyhub/internal/services/auth"
	"codeberg.org/oliverandrich/studyhub/internal/services/session"
	"github.com/labstack/echo/v4"
)

// AuthHandlers contains handlers for authentication.
type AuthHandlers struct {
	auth     *auth.Service
	sessions *session.Manager
}

// NewAuth creates a new AuthHandlers instance.
func NewAuth(svc *auth.Service, sm *session.Manager) *AuthHandlers {
	return &AuthHandlers{auth: svc, sessions: sm}
}

// EmailRequest is the body of the endpoints that only take an address.
type EmailRequest struct {
	Email string `json:"email"`
}

// CheckEmail reports whether an account exists for the address.
func (h *AuthHandlers) CheckEmail(c echo.Context) error {
	var req EmailRequest
	if err := c.Bind(&req); err != nil {
		return jsonError(c, http.StatusBadRequest, "Invalid request")
	}

	exists, err := h.auth.CheckEmail(c.Request().Context(), req.Email)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"exists": exists})
}

// CheckUserStatus tells the login form whether to ask for a password.
func (h *AuthHandlers) CheckUserStatus(c echo.Context) error {
	var req EmailRequest
	if err := c.Bind(&req); err != nil {
		return jsonError(c, http.StatusBadRequest, "Invalid request")
	}

	status, err := h.auth.CheckUserStatus(c.Request().Context(), req.Email)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, status)
}

// SendCode mails a registration code.
func (h *AuthHandlers) SendCode(c echo.Context) error {
	var req EmailRequest
	if err := c.Bind(&req); err != nil {
		return jsonError(c, http.StatusBadRequest, "Invalid request")
	}

	if err := h.auth.SendRegisterCode(c.Request().Context(), req.Email); err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"success": true, "message": "Verification code sent"})
}

// SendResetCode mails a password reset code to a registered address.
func (h *AuthHandlers) SendResetCode(c echo.Context) error {
	var req EmailRequest
	if err := c.Bind(&req); err != nil {
		return jsonError(c, http.StatusBadRequest, "Invalid request")
	}

	if err := h.auth.SendResetCode(c.Request().Context(), req.Email); err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"success": true, "message": "Reset code sent"})
}

// VerifyCodeRequest is the body of verify-code and verify-reset-code.
type VerifyCodeRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

// VerifyCode checks a registration code without using it up.
func (h *AuthHandlers) VerifyCode(c echo.Context) error {
	return h.verifyCode(c, models.PurposeRegister)
}

// VerifyResetCode checks a reset code without using it up.
func (h *AuthHandlers) VerifyResetCode(c echo.Context) error {
	return h.verifyCode(c, models.PurposeReset)
}

func (h *AuthHandlers) verifyCode(c echo.Context, purpose string) error {
	var req VerifyCodeRequest
	if err := c.Bind(&req); err != nil {
		return jsonError(c, http.StatusBadRequest, "Invalid request")
	}
	if req.Email == "" || req.Code == "" {
		return jsonError(c, http.StatusBadRequest, "Email and code are required")
	}

	if err := h.auth.Codes().Check(c.Request().Context(), req.Email, req.Code, purpose); err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"success": true, "message": "Code is valid"})
}

// RegisterRequest is the request body for registration.
type RegisterRequest struct {
	Email            string `json:"email"`
	Password         string `json:"password"`
	DisplayName      string `json:"displayName"`
	VerificationCode string `json:"verificationCode"`
	Code             string `json:"code"`
}

// Register creates a password account and signs it in.
func (h *AuthHandlers) Register(c echo.Context) error {
	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return jsonError(c, http.StatusBadRequest, "Invalid request")
	}
	code := req.VerificationCode
	if code == "" {
		code = req.Code
	}

	user, err := h.auth.Register(c.Request().Context(), auth.RegisterParams{
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: req.DisplayName,
		Code:        code,
	})
	if err != nil {
		return serviceError(c, err)
	}

	return h.signedIn(c, user)
}

// LoginRequest is the request body for password login. Email may also
// hold a username.
type LoginRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login verifies a password and signs the user in.
func (h *AuthHandlers) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return jsonError(c, http.StatusBadRequest, "Invalid request")
	}
	identifier := req.Email
	if identifier == "" {
		identifier = req.Username
	}

	user, err := h.auth.Login(c.Request().Context(), identifier, req.Password)
	if err != nil {
		return serviceError(c, err)
	}

	return h.signedIn(c, user)
}

// signedIn opens a session for user and answers with the user.
func (h *AuthHandlers) signedIn(c echo.Context, user *models.User) error {
	if err := h.startSession(c, user); err != nil {
		return internalError(c, "failed to start session", err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"success": true,
		"user":    newUserResponse(user),
	})
}

func (h *AuthHandlers) startSession(c echo.Context, user *models.User) error {
	tokens, err := h.auth.IssueSession(c.Request().Context(), user)
	if err != nil {
		return err
	}
	c.SetCookie(h.sessions.AccessCookie(tokens.Access))
	c.SetCookie(h.sessions.RefreshCookie(tokens.Refresh))
	return nil
}

// Refresh issues a new access token for a valid refresh cookie.
func (h *AuthHandlers) Refresh(c echo.Context) error {
	_, access, err := h.auth.Refresh(c.Request().Context(), h.sessions.RefreshToken(c.Request()))
	if err != nil {
		if errors.Is(err, auth.ErrInvalidSessionToken) {
			return jsonError(c, http.StatusUnauthorized, "Invalid refresh token")
		}
		return internalError(c, "refresh failed", err)
	}

	c.SetCookie(h.sessions.AccessCookie(access))
	return c.JSON(http.StatusOK, map[string]any{"success": true, "accessToken": access})
}

// Logout revokes the refresh session and clears both cookies.
func (h *AuthHandlers) Logout(c echo.Context) error {
	if err := h.logout(c); err != nil {
		return internalError(c, "logout failed", err)
	}
	return c.JSON(http.StatusOK, map[string]string{
		"message":  "Logged out successfully",
		"redirect": "/login",
	})
}

// LogoutRedirect is the link friendly variant of Logout.
func (h *AuthHandlers) LogoutRedirect(c echo.Context) error {
	if err := h.logout(c); err != nil {
		return internalError(c, "logout failed", err)
	}
	return c.Redirect(http.StatusFound, "/login?logout=success")
}

func (h *AuthHandlers) logout(c echo.Context) error {
	c.SetCookie(h.sessions.ClearAccess())
	c.SetCookie(h.sessions.ClearRefresh())
	return h.auth.Logout(c.Request().Context(), h.sessions.RefreshToken(c.Request()))
}

// ChangePasswordRequest is the request body for changing a password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// ChangePassword replaces the password of the signed in user.
func (h *AuthHandlers) ChangePassword(c echo.Context) error {
	user := authctx.GetUser(c.Request().Context())
	if user == nil {
		return jsonError(c, http.StatusUnauthorized, "Authentication required")
	}

	var req ChangePasswordRequest
	if err := c.Bind(&req); err != nil {
		return jsonError(c, http.StatusBadRequest, "Invalid request")
	}

	err := h.auth.ChangePassword(c.Request().Context(), user.ID, req.CurrentPassword, req.NewPassword)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		return jsonError(c, http.StatusUnauthorized, "Current password is incorrect")
	}
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"success": true, "message": "Password changed"})
}

// ResetPasswordRequest is the request body for resetting a password.
type ResetPasswordRequest struct {
	Email       string `json:"email"`
	Code        string `json:"code"`
	NewPassword string `json:"newPassword"`
}

// ResetPassword sets a new password with a reset code. Every session of
// the account is revoked.
func (h *AuthHandlers) ResetPassword(c echo.Context) error {
	var req ResetPasswordRequest
	if err := c.Bind(&req); err != nil {
		return jsonError(c, http.StatusBadRequest, "Invalid request")
	}

	if err := h.auth.ResetPassword(c.Request().Context(), req.Email, req.Code, req.NewPassword); err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"success": true})
}

// MagicLinkRequest is the request body for send-magic-link.
type MagicLinkRequest struct {
	Email       string `json:"email"`
	RedirectURL string `json:"redirectUrl"`
}

// SendMagicLink mails a one-time login link.
func (h *AuthHandlers) SendMagicLink(c echo.Context) error {
	var req MagicLinkRequest
	if err := c.Bind(&req); err != nil {
		return jsonError(c, http.StatusBadRequest, "Invalid request")
	}

	if err := h.auth.SendMagicLink(c.Request().Context(), req.Email, req.RedirectURL); err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"success": true, "message": "Login link sent"})
}

// MagicLogin redeems a login link and redirects into the app.
func (h *AuthHandlers) MagicLogin(c echo.Context) error {
	user, err := h.auth.ConsumeMagicLink(c.Request().Context(), c.QueryParam("token"))
	switch {
	case errors.Is(err, auth.ErrInvalidToken):
		return loginRedirect(c, "invalid_link")
	case errors.Is(err, auth.ErrTokenExpired):
		return loginRedirect(c, "expired_link")
	case err != nil:
		return loginError(c, "magic link login failed", err)
	}

	if err := h.startSession(c, user); err != nil {
		return loginError(c, "failed to start session", err)
	}
	return c.Redirect(http.StatusFound, auth.SafeRedirect(c.QueryParam("redirect")))
}

// Me returns the signed in user. Routed behind RequireAuth.
func (h *AuthHandlers) Me(c echo.Context) error {
	user := authctx.GetUser(c.Request().Context())
	if user == nil {
		return jsonError(c, http.StatusUnauthorized, "Authentication required")
	}
	return c.JSON(http.StatusOK, map[string]any{
		"user":          newUserResponse(user),
		"authenticated": true,
	})
}

// User returns the signed in user or an anonymous marker.
func (h *AuthHandlers) User(c echo.Context) error {
	user := authctx.GetUser(c.Request().Context())
	if user == nil {
		return c.JSON(http.StatusOK, map[string]any{"user": nil, "authenticated": false})
	}
	return c.JSON(http.StatusOK, map[string]any{
		"user":          newUserResponse(user),
		"authenticated": true,
	})
}

// loginRedirect sends a browser flow back to the login page with an error code.
func loginRedirect(c echo.Context, code string) error {
	return c.Redirect(http.StatusFound, "/login?"+url.Values{"error": {code}}.Encode())
}

func loginError(c echo.Context, msg string, err error) error {
	slog.ErrorContext(c.Request().Context(), msg, "error", err)
	return loginRedirect(c, "server_error")
}
