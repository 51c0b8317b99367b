// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"codeberg.org/oliverandrich/studyhub/internal/handlers"
	appmw "codeberg.org/oliverandrich/studyhub/internal/middleware"
	"codeberg.org/oliverandrich/studyhub/internal/repository"
	"codeberg.org/oliverandrich/studyhub/internal/services/auth"
	"codeberg.org/oliverandrich/studyhub/internal/services/oauth"
	"codeberg.org/oliverandrich/studyhub/internal/services/session"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type routeDeps struct {
	repo      *repository.Repository
	auth      *auth.Service
	sessions  *session.Manager
	providers *oauth.Registry
	idTokens  *oauth.IDTokenVerifier
	registry  *prometheus.Registry // nil disables /metrics
}

func setupRoutes(e *echo.Echo, d routeDeps) {
	h := handlers.New(d.repo)
	ah := handlers.NewAuth(d.auth, d.sessions)
	oh := handlers.NewOAuth(d.auth, d.sessions, d.providers, d.idTokens)

	e.GET("/health", h.Health)
	if d.registry != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(d.registry, promhttp.HandlerOpts{})))
	}

	api := e.Group("/api")
	api.GET("/profile", h.Profile, appmw.RequireAuth)

	a := api.Group("/auth")
	a.POST("/check-email", ah.CheckEmail)
	a.POST("/check-user-status", ah.CheckUserStatus)
	a.POST("/send-code", ah.SendCode)
	a.POST("/verify-code", ah.VerifyCode)
	a.POST("/register", ah.Register)
	a.POST("/login", ah.Login)
	a.POST("/logout", ah.Logout)
	a.GET("/logout", ah.LogoutRedirect)
	a.POST("/refresh", ah.Refresh)
	a.POST("/send-reset-code", ah.SendResetCode)
	a.POST("/verify-reset-code", ah.VerifyResetCode)
	a.POST("/reset-password", ah.ResetPassword)
	a.POST("/change-password", ah.ChangePassword, appmw.RequireAuth)
	a.POST("/send-magic-link", ah.SendMagicLink)
	a.GET("/magic-login", ah.MagicLogin)
	a.GET("/me", ah.Me, appmw.RequireAuth)
	a.GET("/user", ah.User)

	// Google Identity Services posts the credential here.
	a.POST("/google-gis", oh.GoogleIDToken)

	// Static routes above win over the provider parameter.
	a.GET("/:provider", oh.Start)
	a.GET("/:provider/callback", oh.Callback)
}
