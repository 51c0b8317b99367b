// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package cooldown rate limits repeated actions per key, such as resending
// a verification code to the same address.
package cooldown

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrCoolingDown is returned when an action is attempted again too soon.
var ErrCoolingDown = errors.New("action is cooling down")

// Limiter grants an action for key at most once per window.
type Limiter interface {
	// Acquire reserves key for ttl. When key is already reserved it returns
	// false and the remaining wait.
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, time.Duration, error)
	// Release drops a reservation, e.g. when the guarded action failed.
	Release(ctx context.Context, key string) error
	Close() error
}

// Memory is an in-process Limiter for single instance deployments and tests.
type Memory struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

var _ Limiter = (*Memory)(nil)

// NewMemory creates an in-process limiter.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]time.Time), now: time.Now}
}

// SetClock replaces the clock used to expire reservations.
func (m *Memory) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// Acquire implements Limiter.
func (m *Memory) Acquire(_ context.Context, key string, ttl time.Duration) (bool, time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if until, ok := m.entries[key]; ok && now.Before(until) {
		return false, until.Sub(now), nil
	}

	// expired entries are dropped lazily
	for k, until := range m.entries {
		if !now.Before(until) {
			delete(m.entries, k)
		}
	}

	m.entries[key] = now.Add(ttl)
	return true, 0, nil
}

// Release implements Limiter.
func (m *Memory) Release(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

// Close implements Limiter.
func (m *Memory) Close() error { return nil }
