// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package oauth adapts external identity providers to a common Provider
// interface. Adapters only talk to the provider; mapping identities to
// local users happens in the auth service.
package oauth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

var (
	// ErrExchange is returned when the provider rejects the authorization code.
	ErrExchange = errors.New("oauth: code exchange failed")
	// ErrProfile is returned when the identity could not be fetched.
	ErrProfile = errors.New("oauth: failed to fetch profile")
	// ErrNoEmail is returned when the provider has no verified address.
	ErrNoEmail = errors.New("oauth: no verified email address")
	// ErrUnknownProvider is returned by Registry.Get.
	ErrUnknownProvider = errors.New("oauth: unknown provider")
	// ErrInvalidIDToken is returned when a Google ID token does not verify.
	ErrInvalidIDToken = errors.New("oauth: invalid id token")
)

// Profile is the identity returned by a provider.
type Profile struct {
	Provider      string
	ProviderID    string
	Email         string
	EmailVerified bool
	Name          string
	AvatarURL     string
}

// Provider is one external identity provider.
type Provider interface {
	Name() string
	// AuthURL returns the consent page URL. Providers that support PKCE
	// derive an S256 challenge from verifier.
	AuthURL(state, verifier string) string
	// Exchange trades the authorization code for the user's profile.
	Exchange(ctx context.Context, code, verifier string) (*Profile, error)
}

// Registry holds the enabled providers by name.
type Registry struct {
	providers map[string]Provider
}

// NewRegistry indexes providers by name.
func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[string]Provider, len(providers))}
	for _, p := range providers {
		r.providers[p.Name()] = p
	}
	return r
}

// Get returns the provider called name.
func (r *Registry) Get(name string) (Provider, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}
	return p, nil
}

// Names lists the enabled providers.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	return names
}

// NewState returns a random URL safe anti-forgery value.
func NewState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// NewVerifier returns a PKCE code verifier.
func NewVerifier() string {
	return oauth2.GenerateVerifier()
}

// Option configures an adapter.
type Option func(*options)

type options struct {
	httpClient *http.Client
	endpoint   *oauth2.Endpoint
	apiBase    string
}

// WithHTTPClient replaces the default client with a 10 second timeout.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithEndpoint overrides the provider's OAuth endpoints.
func WithEndpoint(e oauth2.Endpoint) Option {
	return func(o *options) { o.endpoint = &e }
}

// WithAPIBase overrides the base URL of the provider's profile API.
func WithAPIBase(base string) Option {
	return func(o *options) { o.apiBase = base }
}

func buildOptions(defaultAPIBase string, opts []Option) options {
	o := options{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		apiBase:    defaultAPIBase,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// getJSON fetches url and decodes a JSON response into dst.
func getJSON(ctx context.Context, client *http.Client, url string, header http.Header, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	for k, v := range header {
		req.Header[k] = v
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, req.URL.Host)
	}

	return json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(dst)
}
