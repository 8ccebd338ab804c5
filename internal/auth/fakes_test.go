// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Confide Contributors

package auth_test

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/confide/confide/internal/auth"
)

// fakeUserRepo is an in-memory UserRepository keyed by lowercased email.
// Error fields inject store failures for specific methods.
type fakeUserRepo struct {
	mu      sync.Mutex
	byEmail map[string]*auth.User

	createErr error
	getErr    error

	createCalls int
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{byEmail: make(map[string]*auth.User)}
}

func (f *fakeUserRepo) Create(_ context.Context, user *auth.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	if f.createErr != nil {
		return f.createErr
	}
	key := strings.ToLower(user.Email)
	if _, ok := f.byEmail[key]; ok {
		return auth.ErrAlreadyExists
	}
	stored := *user
	f.byEmail[key] = &stored
	return nil
}

func (f *fakeUserRepo) GetByID(_ context.Context, id ulid.ULID) (*auth.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byEmail {
		if u.ID == id {
			stored := *u
			return &stored, nil
		}
	}
	return nil, auth.ErrNotFound
}

func (f *fakeUserRepo) GetByEmail(_ context.Context, email string) (*auth.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	u, ok := f.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, auth.ErrNotFound
	}
	stored := *u
	return &stored, nil
}

func (f *fakeUserRepo) UpdatePasswordHash(_ context.Context, id ulid.ULID, passwordHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byEmail {
		if u.ID == id {
			u.PasswordHash = passwordHash
			u.UpdatedAt = time.Now()
			return nil
		}
	}
	return auth.ErrNotFound
}

func (f *fakeUserRepo) UpdateSecret(_ context.Context, id ulid.ULID, secret string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byEmail {
		if u.ID == id {
			s := secret
			u.Secret = &s
			u.UpdatedAt = time.Now()
			return nil
		}
	}
	return auth.ErrNotFound
}

func (f *fakeUserRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.byEmail)
}

// fakeSessionRepo is an in-memory WebSessionRepository keyed by token hash.
type fakeSessionRepo struct {
	mu     sync.Mutex
	byHash map[string]*auth.WebSession

	createErr error
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{byHash: make(map[string]*auth.WebSession)}
}

func (f *fakeSessionRepo) Create(_ context.Context, session *auth.WebSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	stored := *session
	f.byHash[session.TokenHash] = &stored
	return nil
}

func (f *fakeSessionRepo) GetByTokenHash(_ context.Context, tokenHash string) (*auth.WebSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.byHash[tokenHash]
	if !ok {
		return nil, auth.ErrNotFound
	}
	stored := *s
	return &stored, nil
}

func (f *fakeSessionRepo) UpdateLastSeen(_ context.Context, id ulid.ULID, lastSeen time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.byHash {
		if s.ID == id {
			s.LastSeenAt = lastSeen
			return nil
		}
	}
	return auth.ErrNotFound
}

func (f *fakeSessionRepo) Delete(_ context.Context, id ulid.ULID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for hash, s := range f.byHash {
		if s.ID == id {
			delete(f.byHash, hash)
			return nil
		}
	}
	return auth.ErrNotFound
}

func (f *fakeSessionRepo) DeleteByTokenHash(_ context.Context, tokenHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byHash[tokenHash]; !ok {
		return auth.ErrNotFound
	}
	delete(f.byHash, tokenHash)
	return nil
}

func (f *fakeSessionRepo) DeleteExpired(_ context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	now := time.Now()
	for hash, s := range f.byHash {
		if now.After(s.ExpiresAt) {
			delete(f.byHash, hash)
			n++
		}
	}
	return n, nil
}

func (f *fakeSessionRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.byHash)
}

// fakeProvider is a canned IdentityProvider.
type fakeProvider struct {
	profile     *auth.ProviderProfile
	exchangeErr error
}

func (f *fakeProvider) AuthCodeURL(state string) string {
	return "https://provider.test/authorize?state=" + state
}

func (f *fakeProvider) Exchange(_ context.Context, _ string) (*auth.ProviderProfile, error) {
	if f.exchangeErr != nil {
		return nil, f.exchangeErr
	}
	return f.profile, nil
}
