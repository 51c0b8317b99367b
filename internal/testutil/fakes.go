// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package testutil

import (
	"context"
	"sync"
	"time"
)

// SentCode is one message captured by FakeMailer.SendCode.
type SentCode struct {
	To      string
	Code    string
	Purpose string
}

// SentLink is one message captured by FakeMailer.SendMagicLink.
type SentLink struct {
	To   string
	Name string
	Link string
}

// FakeMailer records outgoing mail. Set Err to make every send fail.
type FakeMailer struct {
	mu    sync.Mutex
	Err   error
	Codes []SentCode
	Links []SentLink
}

func (m *FakeMailer) SendCode(_ context.Context, to, code, purpose string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Codes = append(m.Codes, SentCode{To: to, Code: code, Purpose: purpose})
	return nil
}

func (m *FakeMailer) SendMagicLink(_ context.Context, to, name, link string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Links = append(m.Links, SentLink{To: to, Name: name, Link: link})
	return nil
}

// LastCode returns the most recent code sent, or "".
func (m *FakeMailer) LastCode() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Codes) == 0 {
		return ""
	}
	return m.Codes[len(m.Codes)-1].Code
}

// LastLink returns the most recent magic link sent, or "".
func (m *FakeMailer) LastLink() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Links) == 0 {
		return ""
	}
	return m.Links[len(m.Links)-1].Link
}

// PublishedEvent is one event captured by EventRecorder.
type PublishedEvent struct {
	Exchange string
	Key      string
	Event    any
}

// EventRecorder is an events.Publisher that keeps everything in memory.
type EventRecorder struct {
	mu     sync.Mutex
	Events []PublishedEvent
}

func (r *EventRecorder) Publish(_ context.Context, exchange, key string, event any, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Events = append(r.Events, PublishedEvent{Exchange: exchange, Key: key, Event: event})
	return nil
}

func (r *EventRecorder) Close() error { return nil }

// Keys returns the routing keys published so far.
func (r *EventRecorder) Keys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	keys := make([]string, len(r.Events))
	for i, e := range r.Events {
		keys[i] = e.Key
	}
	return keys
}
