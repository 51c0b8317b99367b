// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"fmt"

	"codeberg.org/oliverandrich/studyhub/internal/config"
	"codeberg.org/oliverandrich/studyhub/internal/metrics"
	appmw "codeberg.org/oliverandrich/studyhub/internal/middleware"
	"codeberg.org/oliverandrich/studyhub/internal/services/auth"
	"codeberg.org/oliverandrich/studyhub/internal/services/session"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

func setupMiddleware(e *echo.Echo, cfg *config.Config, sm *session.Manager, svc *auth.Service, withMetrics bool) {
	e.Pre(appmw.StripTrailingSlash())

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(appmw.RequestIDToContext())
	e.Use(appmw.RequestLogger())
	e.Use(middleware.Secure())
	e.Use(middleware.BodyLimit(fmt.Sprintf("%dM", cfg.Server.MaxBodySize)))
	e.Use(appmw.Locale())
	if withMetrics {
		e.Use(metrics.Middleware())
	}
	e.Use(appmw.LoadUser(sm, svc))
}
