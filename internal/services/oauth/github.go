// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package oauth

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

const (
	ProviderGitHub = "github"

	githubAPIBase = "https://api.github.com"
)

type githubAdapter struct {
	conf       *oauth2.Config
	httpClient *http.Client
	apiBase    string
}

var _ Provider = (*githubAdapter)(nil)

// NewGitHub creates the GitHub adapter.
func NewGitHub(clientID, clientSecret, redirectURL string, opts ...Option) Provider {
	o := buildOptions(githubAPIBase, opts)
	endpoint := endpoints.GitHub
	if o.endpoint != nil {
		endpoint = *o.endpoint
	}

	return &githubAdapter{
		conf: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"read:user", "user:email"},
			Endpoint:     endpoint,
		},
		httpClient: o.httpClient,
		apiBase:    o.apiBase,
	}
}

func (a *githubAdapter) Name() string { return ProviderGitHub }

func (a *githubAdapter) AuthURL(state, verifier string) string {
	return a.conf.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier))
}

type githubUser struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
}

type githubEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

func (a *githubAdapter) Exchange(ctx context.Context, code, verifier string) (*Profile, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, a.httpClient)
	tok, err := a.conf.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExchange, err)
	}

	header := http.Header{
		"Authorization": {"Bearer " + tok.AccessToken},
		"Accept":        {"application/vnd.github+json"},
	}

	var user githubUser
	if err := getJSON(ctx, a.httpClient, a.apiBase+"/user", header, &user); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProfile, err)
	}
	if user.ID == 0 {
		return nil, fmt.Errorf("%w: missing user id", ErrProfile)
	}

	var emails []githubEmail
	if err := getJSON(ctx, a.httpClient, a.apiBase+"/user/emails", header, &emails); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProfile, err)
	}
	email := pickGitHubEmail(emails)
	if email == "" {
		return nil, ErrNoEmail
	}

	name := user.Name
	if name == "" {
		name = user.Login
	}

	return &Profile{
		Provider:      ProviderGitHub,
		ProviderID:    strconv.FormatInt(user.ID, 10),
		Email:         email,
		EmailVerified: true,
		Name:          name,
		AvatarURL:     user.AvatarURL,
	}, nil
}

// pickGitHubEmail prefers the primary verified address, then any verified one.
func pickGitHubEmail(emails []githubEmail) string {
	for _, e := range emails {
		if e.Primary && e.Verified {
			return e.Email
		}
	}
	for _, e := range emails {
		if e.Verified {
			return e.Email
		}
	}
	return ""
}
