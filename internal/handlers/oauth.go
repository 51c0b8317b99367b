// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"

	"codeberg.org/oliverandrich/studyhub/internal/services/auth"
	"codeberg.org/oliverandrich/studyhub/internal/services/oauth"
	"codeberg.org/oliverandrich/studyhub/internal/services/session"
	"github.com/labstack/echo/v4"
)

// OAuthHandlers drives the redirect based provider flows and Google
// Identity Services sign-in.
type OAuthHandlers struct {
	auth      *auth.Service
	sessions  *session.Manager
	providers *oauth.Registry
	idTokens  *oauth.IDTokenVerifier
	signIn    *AuthHandlers
}

// NewOAuth creates the OAuth handlers. idTokens may be nil when Google is
// not configured.
func NewOAuth(svc *auth.Service, sm *session.Manager, providers *oauth.Registry, idTokens *oauth.IDTokenVerifier) *OAuthHandlers {
	return &OAuthHandlers{
		auth:      svc,
		sessions:  sm,
		providers: providers,
		idTokens:  idTokens,
		signIn:    NewAuth(svc, sm),
	}
}

// Start remembers state and PKCE verifier in a signed cookie and sends the
// browser to the provider.
func (h *OAuthHandlers) Start(c echo.Context) error {
	provider, err := h.providers.Get(c.Param("provider"))
	if err != nil {
		return jsonError(c, http.StatusNotFound, "Unknown login provider")
	}

	state, err := oauth.NewState()
	if err != nil {
		return loginError(c, "failed to generate oauth state", err)
	}
	st := session.FlowState{
		State:    state,
		Verifier: oauth.NewVerifier(),
		Redirect: auth.SafeRedirect(c.QueryParam("redirect")),
	}

	cookie, err := h.sessions.SetFlowState(provider.Name(), st)
	if err != nil {
		return loginError(c, "failed to store oauth state", err)
	}
	c.SetCookie(cookie)

	return c.Redirect(http.StatusFound, provider.AuthURL(st.State, st.Verifier))
}

// Callback finishes a provider round trip. The state is compared before
// the code is exchanged, and the flow cookie is cleared either way.
func (h *OAuthHandlers) Callback(c echo.Context) error {
	ctx := c.Request().Context()
	provider, err := h.providers.Get(c.Param("provider"))
	if err != nil {
		return jsonError(c, http.StatusNotFound, "Unknown login provider")
	}

	st, clear, err := h.sessions.ConsumeFlowState(c.Request(), provider.Name())
	c.SetCookie(clear)
	if err != nil {
		slog.WarnContext(ctx, "oauth_failed", "provider", provider.Name(), "reason", "missing_state")
		return loginRedirect(c, "invalid_state")
	}

	state := c.QueryParam("state")
	if state == "" || subtle.ConstantTimeCompare([]byte(state), []byte(st.State)) != 1 {
		slog.WarnContext(ctx, "oauth_failed", "provider", provider.Name(), "reason", "state_mismatch")
		return loginRedirect(c, "invalid_state")
	}

	if e := c.QueryParam("error"); e != "" {
		slog.WarnContext(ctx, "oauth_failed", "provider", provider.Name(), "reason", "provider_error", "error", e)
		return loginRedirect(c, "oauth_error")
	}
	code := c.QueryParam("code")
	if code == "" {
		return loginRedirect(c, "oauth_error")
	}

	profile, err := provider.Exchange(ctx, code, st.Verifier)
	if err != nil {
		slog.WarnContext(ctx, "oauth_failed", "provider", provider.Name(), "error", err)
		if errors.Is(err, oauth.ErrNoEmail) {
			return loginRedirect(c, "no_email")
		}
		return loginRedirect(c, "oauth_error")
	}

	user, err := h.auth.ResolveOAuthUser(ctx, profile)
	if errors.Is(err, auth.ErrProviderConflict) {
		return loginRedirect(c, "account_conflict")
	}
	if err != nil {
		return loginError(c, "failed to resolve oauth user", err)
	}
	if err := h.signIn.startSession(c, user); err != nil {
		return loginError(c, "failed to start session", err)
	}

	return c.Redirect(http.StatusFound, auth.SafeRedirect(st.Redirect))
}

// GoogleIDTokenRequest is the body posted by the Google Identity Services button.
type GoogleIDTokenRequest struct {
	Credential string `json:"credential" form:"credential"`
}

// GoogleIDToken signs in with a Google ID token.
func (h *OAuthHandlers) GoogleIDToken(c echo.Context) error {
	if h.idTokens == nil {
		return jsonError(c, http.StatusNotFound, "Google sign-in is not enabled")
	}

	var req GoogleIDTokenRequest
	if err := c.Bind(&req); err != nil || req.Credential == "" {
		return jsonError(c, http.StatusBadRequest, "Missing credential")
	}

	ctx := c.Request().Context()
	profile, err := h.idTokens.Verify(ctx, req.Credential)
	if err != nil {
		slog.WarnContext(ctx, "oauth_failed", "provider", oauth.ProviderGoogle, "flow", "gis", "error", err)
		return jsonError(c, http.StatusUnauthorized, "Invalid Google token")
	}

	user, err := h.auth.ResolveOAuthUser(ctx, profile)
	if errors.Is(err, auth.ErrProviderConflict) {
		return jsonError(c, http.StatusConflict, "This account is already linked to another Google identity")
	}
	if err != nil {
		return internalError(c, "failed to resolve google user", err)
	}
	return h.signIn.signedIn(c, user)
}
