// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// StripTrailingSlash redirects requests with trailing slashes to the canonical URL without.
// It must run before routing (echo.Pre).
func StripTrailingSlash() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			r := c.Request()
			path := r.URL.Path
			if path != "/" && strings.HasSuffix(path, "/") {
				// collapse leading slashes so the target stays on this host
				newURL := "/" + strings.Trim(path, "/")
				if r.URL.RawQuery != "" {
					newURL += "?" + r.URL.RawQuery
				}
				status := http.StatusMovedPermanently
				if r.Method != http.MethodGet && r.Method != http.MethodHead {
					status = http.StatusPermanentRedirect
				}
				return c.Redirect(status, newURL)
			}
			return next(c)
		}
	}
}
