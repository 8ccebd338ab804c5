// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Confide Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/samber/oops"
)

// ProviderProfile is the claim set returned by the identity provider
// after a successful code exchange. It exists only for the duration of
// the callback and is never persisted.
type ProviderProfile struct {
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
}

// IdentityProvider drives the redirect/callback handshake with an
// external identity provider.
type IdentityProvider interface {
	// AuthCodeURL returns the provider authorization URL for the given
	// anti-forgery state value.
	AuthCodeURL(state string) string

	// Exchange trades the callback authorization code for a profile.
	// Implementations must bound the round trip with a timeout.
	Exchange(ctx context.Context, code string) (*ProviderProfile, error)
}

// FederatedService completes federated logins: it resolves the provider
// profile and reconciles it against the user store, creating an account
// with the federated sentinel on first login.
type FederatedService struct {
	users    UserRepository
	sessions WebSessionRepository
	provider IdentityProvider
	logger   *slog.Logger
}

// NewFederatedService creates a new FederatedService.
func NewFederatedService(users UserRepository, sessions WebSessionRepository, provider IdentityProvider) (*FederatedService, error) {
	return NewFederatedServiceWithLogger(users, sessions, provider, slog.Default())
}

// NewFederatedServiceWithLogger creates a new FederatedService with an
// explicit logger.
func NewFederatedServiceWithLogger(users UserRepository, sessions WebSessionRepository, provider IdentityProvider, logger *slog.Logger) (*FederatedService, error) {
	if users == nil {
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("users repository is required")
	}
	if sessions == nil {
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("sessions repository is required")
	}
	if provider == nil {
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("identity provider is required")
	}
	if logger == nil {
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("logger is required")
	}
	return &FederatedService{
		users:    users,
		sessions: sessions,
		provider: provider,
		logger:   logger,
	}, nil
}

// LoginURL returns the provider authorization URL for the given state.
func (s *FederatedService) LoginURL(state string) string {
	return s.provider.AuthCodeURL(state)
}

// Complete drives the callback half of a federated login end to end:
// exchange the authorization code, reconcile the profile against the
// user store, and establish a session. No session is ever created on a
// failed exchange.
func (s *FederatedService) Complete(ctx context.Context, code string) (*WebSession, string, error) {
	if code == "" {
		return nil, "", oops.Code("AUTH_PROVIDER_FAILED").Errorf("authorization code is missing")
	}

	profile, err := s.provider.Exchange(ctx, code)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, "", oops.Code("AUTH_PROVIDER_TIMEOUT").
				With("operation", "exchange authorization code").
				Wrap(err)
		}
		return nil, "", oops.Code("AUTH_PROVIDER_FAILED").
			With("operation", "exchange authorization code").
			Wrap(err)
	}

	if profile.Email == "" {
		return nil, "", oops.Code("AUTH_PROVIDER_FAILED").
			With("subject", profile.Subject).
			Errorf("provider profile has no email claim")
	}

	user, err := s.reconcile(ctx, profile)
	if err != nil {
		return nil, "", err
	}

	return createSession(ctx, s.sessions, user)
}

// reconcile maps a provider profile to a user record, creating one with
// the federated sentinel on first login. The store's email uniqueness
// constraint is the tie-breaker for concurrent first logins: the losing
// insert re-queries and proceeds as a lookup.
func (s *FederatedService) reconcile(ctx context.Context, profile *ProviderProfile) (*User, error) {
	user, err := s.users.GetByEmail(ctx, profile.Email)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, oops.Code("AUTH_FEDERATED_FAILED").
			With("operation", "get user by email").
			Wrap(err)
	}

	created, err := NewFederatedUser(profile.Email)
	if err != nil {
		return nil, oops.Code("AUTH_FEDERATED_FAILED").
			With("operation", "create federated user").
			Wrap(err)
	}

	if createErr := s.users.Create(ctx, created); createErr != nil {
		if errors.Is(createErr, ErrAlreadyExists) {
			// Lost the creation race - the other login won, reuse its record
			s.logger.Info("federated account creation raced, reusing existing record",
				"email", profile.Email)
			existing, lookupErr := s.users.GetByEmail(ctx, profile.Email)
			if lookupErr != nil {
				return nil, oops.Code("AUTH_FEDERATED_FAILED").
					With("operation", "re-query after create race").
					Wrap(lookupErr)
			}
			return existing, nil
		}
		return nil, oops.Code("AUTH_FEDERATED_FAILED").
			With("operation", "insert federated user").
			Wrap(createErr)
	}

	return created, nil
}
