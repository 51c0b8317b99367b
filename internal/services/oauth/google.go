// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package oauth

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

const (
	ProviderGoogle = "google"

	googleAPIBase   = "https://openidconnect.googleapis.com"
	googleTokenInfo = "https://oauth2.googleapis.com/tokeninfo"
)

type googleAdapter struct {
	conf       *oauth2.Config
	httpClient *http.Client
	apiBase    string
}

var _ Provider = (*googleAdapter)(nil)

// NewGoogle creates the Google OpenID Connect adapter.
func NewGoogle(clientID, clientSecret, redirectURL string, opts ...Option) Provider {
	o := buildOptions(googleAPIBase, opts)
	endpoint := endpoints.Google
	if o.endpoint != nil {
		endpoint = *o.endpoint
	}

	return &googleAdapter{
		conf: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     endpoint,
		},
		httpClient: o.httpClient,
		apiBase:    o.apiBase,
	}
}

func (a *googleAdapter) Name() string { return ProviderGoogle }

func (a *googleAdapter) AuthURL(state, verifier string) string {
	return a.conf.AuthCodeURL(state,
		oauth2.S256ChallengeOption(verifier),
		oauth2.SetAuthURLParam("prompt", "select_account"),
	)
}

func (a *googleAdapter) Exchange(ctx context.Context, code, verifier string) (*Profile, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, a.httpClient)
	tok, err := a.conf.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExchange, err)
	}

	var info struct {
		Sub           string `json:"sub"`
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
		Name          string `json:"name"`
		Picture       string `json:"picture"`
	}
	header := http.Header{"Authorization": {"Bearer " + tok.AccessToken}}
	if err := getJSON(ctx, a.httpClient, a.apiBase+"/v1/userinfo", header, &info); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProfile, err)
	}
	if info.Sub == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrProfile)
	}
	if info.Email == "" || !info.EmailVerified {
		return nil, ErrNoEmail
	}

	return &Profile{
		Provider:      ProviderGoogle,
		ProviderID:    info.Sub,
		Email:         info.Email,
		EmailVerified: true,
		Name:          info.Name,
		AvatarURL:     info.Picture,
	}, nil
}

// IDTokenVerifier checks Google Identity Services credentials.
type IDTokenVerifier struct {
	clientID     string
	tokenInfoURL string
	httpClient   *http.Client
	now          func() time.Time
}

// NewIDTokenVerifier creates a verifier for ID tokens issued to clientID.
// WithAPIBase replaces the tokeninfo URL.
func NewIDTokenVerifier(clientID string, opts ...Option) *IDTokenVerifier {
	o := buildOptions(googleTokenInfo, opts)
	return &IDTokenVerifier{
		clientID:     clientID,
		tokenInfoURL: o.apiBase,
		httpClient:   o.httpClient,
		now:          time.Now,
	}
}

// Verify asks Google's tokeninfo endpoint to validate credential and checks
// audience, issuer and expiry of the answer.
func (v *IDTokenVerifier) Verify(ctx context.Context, credential string) (*Profile, error) {
	if credential == "" {
		return nil, ErrInvalidIDToken
	}

	var info struct {
		Aud           string `json:"aud"`
		Iss           string `json:"iss"`
		Sub           string `json:"sub"`
		Exp           string `json:"exp"`
		Email         string `json:"email"`
		EmailVerified string `json:"email_verified"`
		Name          string `json:"name"`
		Picture       string `json:"picture"`
	}
	u := v.tokenInfoURL + "?" + url.Values{"id_token": {credential}}.Encode()
	if err := getJSON(ctx, v.httpClient, u, nil, &info); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidIDToken, err)
	}

	if info.Aud != v.clientID {
		return nil, fmt.Errorf("%w: audience mismatch", ErrInvalidIDToken)
	}
	if info.Iss != "accounts.google.com" && info.Iss != "https://accounts.google.com" {
		return nil, fmt.Errorf("%w: unexpected issuer", ErrInvalidIDToken)
	}
	exp, err := strconv.ParseInt(info.Exp, 10, 64)
	if err != nil || !v.now().Before(time.Unix(exp, 0)) {
		return nil, fmt.Errorf("%w: expired", ErrInvalidIDToken)
	}
	if info.Sub == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidIDToken)
	}
	if info.Email == "" || info.EmailVerified != "true" {
		return nil, ErrNoEmail
	}

	return &Profile{
		Provider:      ProviderGoogle,
		ProviderID:    info.Sub,
		Email:         info.Email,
		EmailVerified: true,
		Name:          info.Name,
		AvatarURL:     info.Picture,
	}, nil
}
