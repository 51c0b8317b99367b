// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package events publishes domain events about accounts to a message broker.
package events

import (
	"context"
	"time"
)

// Routing keys.
const (
	KeyUserRegistered = "user.registered"
	KeyUserLoggedIn   = "user.logged_in"
)

// Publisher sends an event to exchange under routing key.
type Publisher interface {
	Publish(ctx context.Context, exchange, key string, event any, reqID string) error
	Close() error
}

// UserRegistered is published once per created account.
type UserRegistered struct {
	UserID   string    `json:"user_id"`
	Email    string    `json:"email,omitempty"`
	Name     string    `json:"name"`
	Provider string    `json:"provider"`
	At       time.Time `json:"at"`
}

// UserLoggedIn is published after every successful sign-in.
type UserLoggedIn struct {
	UserID string    `json:"user_id"`
	Email  string    `json:"email,omitempty"`
	Method string    `json:"method"`
	At     time.Time `json:"at"`
}

// Noop discards events. Used when no broker is configured.
type Noop struct{}

var _ Publisher = Noop{}

// NewNoop returns a publisher that drops everything.
func NewNoop() Publisher { return Noop{} }

func (Noop) Publish(context.Context, string, string, any, string) error { return nil }

func (Noop) Close() error { return nil }
