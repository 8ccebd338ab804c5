// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Confide Contributors

package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/samber/oops"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// googleUserInfoURL is the OpenID Connect userinfo endpoint.
const googleUserInfoURL = "https://www.googleapis.com/oauth2/v3/userinfo"

// DefaultExchangeTimeout bounds the provider round trip (token exchange
// plus userinfo fetch).
const DefaultExchangeTimeout = 10 * time.Second

// GoogleProvider implements IdentityProvider against Google's OAuth2
// endpoints with the profile and email scopes.
type GoogleProvider struct {
	config  *oauth2.Config
	timeout time.Duration

	// userInfoURL is overridable for tests.
	userInfoURL string
}

// NewGoogleProvider creates a GoogleProvider.
// redirectURL must match the callback address registered with Google.
func NewGoogleProvider(clientID, clientSecret, redirectURL string) (*GoogleProvider, error) {
	if clientID == "" || clientSecret == "" {
		return nil, oops.Code("AUTH_PROVIDER_CONFIG").Errorf("google client ID and secret are required")
	}
	if redirectURL == "" {
		return nil, oops.Code("AUTH_PROVIDER_CONFIG").Errorf("redirect URL is required")
	}
	return &GoogleProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"openid", "profile", "email"},
			Endpoint:     google.Endpoint,
		},
		timeout:     DefaultExchangeTimeout,
		userInfoURL: googleUserInfoURL,
	}, nil
}

// AuthCodeURL returns the Google authorization URL for the given state.
func (p *GoogleProvider) AuthCodeURL(state string) string {
	return p.config.AuthCodeURL(state)
}

// googleUserInfo mirrors the userinfo endpoint response.
// email_verified is a string or bool depending on the endpoint version;
// the v3 endpoint returns a bool.
type googleUserInfo struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
}

// Exchange trades the authorization code for a token and resolves the
// userinfo profile. The whole round trip is bounded by the provider
// timeout; a deadline surfaces as context.DeadlineExceeded so callers
// can report AUTH_PROVIDER_TIMEOUT.
func (p *GoogleProvider) Exchange(ctx context.Context, code string) (*ProviderProfile, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, oops.Code("AUTH_PROVIDER_FAILED").
			With("operation", "token exchange").
			Wrap(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return nil, oops.Code("AUTH_PROVIDER_FAILED").
			With("operation", "build userinfo request").
			Wrap(err)
	}

	resp, err := p.config.Client(ctx, token).Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, oops.Code("AUTH_PROVIDER_FAILED").
			With("operation", "fetch userinfo").
			Wrap(err)
	}
	defer resp.Body.Close() //nolint:errcheck // read-only body

	if resp.StatusCode != http.StatusOK {
		return nil, oops.Code("AUTH_PROVIDER_FAILED").
			With("operation", "fetch userinfo").
			With("status", resp.StatusCode).
			Errorf("userinfo endpoint returned %d", resp.StatusCode)
	}

	var info googleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, oops.Code("AUTH_PROVIDER_FAILED").
			With("operation", "decode userinfo").
			Wrap(err)
	}

	return &ProviderProfile{
		Subject:       info.Sub,
		Email:         info.Email,
		EmailVerified: info.EmailVerified,
		Name:          info.Name,
	}, nil
}
