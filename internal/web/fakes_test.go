// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Confide Contributors

package web

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/confide/confide/internal/auth"
)

const testToken = "test-session-token"

func testSession(userID ulid.ULID, email string) *auth.WebSession {
	now := time.Now().UTC()
	return &auth.WebSession{
		ID:         ulid.Make(),
		UserID:     userID,
		Email:      email,
		TokenHash:  auth.HashSessionToken(testToken),
		ExpiresAt:  now.Add(auth.SessionTokenExpiry),
		CreatedAt:  now,
		LastSeenAt: now,
	}
}

type fakeAuthService struct {
	mu sync.Mutex

	session   *auth.WebSession
	loginErr  error
	regErr    error
	logoutErr error
	loggedOut []string
}

func (f *fakeAuthService) Login(_ context.Context, email, password string) (*auth.WebSession, string, error) {
	if f.loginErr != nil {
		return nil, "", f.loginErr
	}
	return f.session, testToken, nil
}

func (f *fakeAuthService) Register(_ context.Context, email, password string) (*auth.WebSession, string, error) {
	if f.regErr != nil {
		return nil, "", f.regErr
	}
	return f.session, testToken, nil
}

func (f *fakeAuthService) Logout(_ context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loggedOut = append(f.loggedOut, token)
	return f.logoutErr
}

func (f *fakeAuthService) ValidateSession(_ context.Context, token string) (*auth.WebSession, error) {
	if f.session == nil || token != testToken {
		return nil, oops.Code("SESSION_INVALID").Errorf("session not found")
	}
	return f.session, nil
}

type fakeFederated struct {
	session     *auth.WebSession
	completeErr error
	gotCode     string
}

func (f *fakeFederated) LoginURL(state string) string {
	return "https://accounts.google.test/authorize?state=" + state
}

func (f *fakeFederated) Complete(_ context.Context, code string) (*auth.WebSession, string, error) {
	f.gotCode = code
	if f.completeErr != nil {
		return nil, "", f.completeErr
	}
	return f.session, testToken, nil
}

type fakeSecretStore struct {
	mu sync.Mutex

	users     map[ulid.ULID]*auth.User
	updateErr error
}

func newFakeSecretStore() *fakeSecretStore {
	return &fakeSecretStore{users: make(map[ulid.ULID]*auth.User)}
}

func (f *fakeSecretStore) GetByID(_ context.Context, id ulid.ULID) (*auth.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[id]
	if !ok {
		return nil, errors.Join(errors.New("user lookup"), auth.ErrNotFound)
	}
	copied := *user
	return &copied, nil
}

func (f *fakeSecretStore) UpdateSecret(_ context.Context, id ulid.ULID, secret string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	user, ok := f.users[id]
	if !ok {
		return errors.Join(errors.New("user lookup"), auth.ErrNotFound)
	}
	user.Secret = &secret
	return nil
}
