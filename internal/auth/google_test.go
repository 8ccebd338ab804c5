// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Confide Contributors

package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestNewGoogleProvider_Validation(t *testing.T) {
	tests := []struct {
		name                            string
		clientID, clientSecret, callback string
	}{
		{"missing client ID", "", "secret", "https://app.test/cb"},
		{"missing client secret", "id", "", "https://app.test/cb"},
		{"missing redirect URL", "id", "secret", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewGoogleProvider(tt.clientID, tt.clientSecret, tt.callback)
			require.Error(t, err)
			assert.Nil(t, p)
		})
	}
}

func TestGoogleProvider_AuthCodeURL(t *testing.T) {
	p, err := NewGoogleProvider("client-id", "client-secret", "https://app.test/auth/google/callback")
	require.NoError(t, err)

	url := p.AuthCodeURL("anti-forgery")
	assert.Contains(t, url, "state=anti-forgery")
	assert.Contains(t, url, "client_id=client-id")
	assert.Contains(t, url, "scope=openid+profile+email")
}

// newStubProvider points a GoogleProvider at stub token and userinfo
// endpoints served by httptest.
func newStubProvider(t *testing.T, userinfoStatus int, userinfoBody string) (*GoogleProvider, *httptest.Server) {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"stub-token","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(userinfoStatus)
		_, _ = w.Write([]byte(userinfoBody))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(func() {
		srv.Close()
		// Drop keep-alive connections so the leak detector stays quiet.
		if tr, ok := http.DefaultTransport.(*http.Transport); ok {
			tr.CloseIdleConnections()
		}
	})

	p, err := NewGoogleProvider("client-id", "client-secret", "https://app.test/cb")
	require.NoError(t, err)
	p.config.Endpoint = oauth2.Endpoint{
		AuthURL:  srv.URL + "/authorize",
		TokenURL: srv.URL + "/token",
	}
	p.userInfoURL = srv.URL + "/userinfo"
	return p, srv
}

func TestGoogleProvider_Exchange(t *testing.T) {
	ctx := context.Background()

	t.Run("resolves profile", func(t *testing.T) {
		p, _ := newStubProvider(t, http.StatusOK,
			`{"sub":"12345","email":"user@example.com","email_verified":true,"name":"User"}`)

		profile, err := p.Exchange(ctx, "authcode")
		require.NoError(t, err)
		assert.Equal(t, "12345", profile.Subject)
		assert.Equal(t, "user@example.com", profile.Email)
		assert.True(t, profile.EmailVerified)
	})

	t.Run("userinfo failure is a provider error", func(t *testing.T) {
		p, _ := newStubProvider(t, http.StatusInternalServerError, `{}`)

		_, err := p.Exchange(ctx, "authcode")
		require.Error(t, err)
	})

	t.Run("deadline surfaces as context error", func(t *testing.T) {
		p, _ := newStubProvider(t, http.StatusOK, `{}`)
		p.timeout = time.Nanosecond

		_, err := p.Exchange(ctx, "authcode")
		require.ErrorIs(t, err, context.DeadlineExceeded)
	})
}
