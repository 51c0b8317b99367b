// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package auth provides authentication context helpers.
package auth

import (
	"context"

	"codeberg.org/oliverandrich/studyhub/internal/ctxkeys"
	"codeberg.org/oliverandrich/studyhub/internal/models"
)

// GetUser returns the authenticated user from the context, or nil if not authenticated.
func GetUser(ctx context.Context) *models.User {
	if user, ok := ctx.Value(ctxkeys.User{}).(*models.User); ok {
		return user
	}
	return nil
}

// SetUser stores the authenticated user in the context.
func SetUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, ctxkeys.User{}, user)
}

// IsAuthenticated returns true if the context has an authenticated user.
func IsAuthenticated(ctx context.Context) bool {
	return GetUser(ctx) != nil
}

// WithRequestID stores the request id for downstream log records and events.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxkeys.RequestID{}, id)
}

// RequestID returns the request id or an empty string.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(ctxkeys.RequestID{}).(string)
	return id
}
