// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Confide Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/oops"
)

// Service provides local authentication operations.
type Service struct {
	users    UserRepository
	sessions WebSessionRepository
	hasher   PasswordHasher
	logger   *slog.Logger
}

// NewAuthService creates a new Service.
func NewAuthService(users UserRepository, sessions WebSessionRepository, hasher PasswordHasher) (*Service, error) {
	return NewAuthServiceWithLogger(users, sessions, hasher, slog.Default())
}

// NewAuthServiceWithLogger creates a new Service with an explicit logger.
func NewAuthServiceWithLogger(users UserRepository, sessions WebSessionRepository, hasher PasswordHasher, logger *slog.Logger) (*Service, error) {
	if users == nil {
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("users repository is required")
	}
	if sessions == nil {
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("sessions repository is required")
	}
	if hasher == nil {
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("password hasher is required")
	}
	if logger == nil {
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("logger is required")
	}
	return &Service{
		users:    users,
		sessions: sessions,
		hasher:   hasher,
		logger:   logger,
	}, nil
}

// dummyPasswordHash is used when a user doesn't exist to prevent timing attacks.
// We still run password verification to make response time consistent.
// This is NOT a real credential - it's a fake hash that will never match any password.
//
//nolint:gosec // G101: This is an intentionally fake hash for timing attack prevention, not a credential.
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// Login authenticates a user by email and password and creates a web
// session. Returns the session, plaintext token, and any error.
//
// Unknown email, federated-only account, and wrong password all surface
// the same AUTH_INVALID_CREDENTIALS code; the distinction exists only in
// audit logging so the boundary cannot be used for account enumeration.
func (s *Service) Login(ctx context.Context, email, password string) (*WebSession, string, error) {
	user, lookupErr := s.users.GetByEmail(ctx, email)

	// Determine which hash to verify against (real or dummy for timing attack prevention)
	targetHash := dummyPasswordHash
	userExists := false
	hasLocal := false

	switch {
	case lookupErr == nil:
		userExists = true
		if user.HasLocalCredential() {
			hasLocal = true
			targetHash = user.PasswordHash
		}
	case errors.Is(lookupErr, ErrNotFound):
		// Keep the dummy hash - still perform verification to maintain constant time
	default:
		return nil, "", oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "get user by email").
			Wrap(lookupErr)
	}

	// Always verify the password (constant-time operation for timing attack prevention)
	valid, verifyErr := s.hasher.Verify(password, targetHash)
	if verifyErr != nil && userExists && hasLocal {
		// A malformed stored hash is a verification failure, not a crash
		s.logger.Warn("stored password hash is malformed",
			"user_id", user.ID.String(),
			"error", verifyErr)
		valid = false
	}

	if !userExists || !hasLocal || !valid {
		s.logger.Info("login rejected",
			"reason", loginFailureReason(userExists, hasLocal),
			"email", email)
		return nil, "", oops.Code("AUTH_INVALID_CREDENTIALS").Errorf("invalid email or password")
	}

	// Check if the hash needs upgrade (e.g., from bcrypt to argon2id)
	if s.hasher.NeedsUpgrade(user.PasswordHash) {
		if newHash, hashErr := s.hasher.Hash(password); hashErr == nil {
			// Best effort - login succeeds even if the rehash doesn't stick
			_ = s.users.UpdatePasswordHash(ctx, user.ID, newHash) //nolint:errcheck
		}
	}

	return s.establishSession(ctx, user)
}

// loginFailureReason names the internal failure cause for audit logging.
func loginFailureReason(userExists, hasLocal bool) string {
	switch {
	case !userExists:
		return "identity_not_found"
	case !hasLocal:
		return "no_local_credential"
	default:
		return "incorrect_password"
	}
}

// Register creates a new account and immediately logs it in.
// Returns the session and plaintext token on success.
// A taken email returns AUTH_ALREADY_REGISTERED.
func (s *Service) Register(ctx context.Context, email, password string) (*WebSession, string, error) {
	if err := ValidateEmail(email); err != nil {
		return nil, "", err
	}

	_, err := s.users.GetByEmail(ctx, email)
	if err == nil {
		return nil, "", oops.Code("AUTH_ALREADY_REGISTERED").
			With("email", email).
			Errorf("email is already registered")
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, "", oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "get user by email").
			Wrap(err)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, "", oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	user, err := NewUser(email, hash)
	if err != nil {
		return nil, "", oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "create user").
			Wrap(err)
	}

	if err := s.users.Create(ctx, user); err != nil {
		// The uniqueness constraint is authoritative; a concurrent
		// registration that won the race surfaces as a conflict here.
		if errors.Is(err, ErrAlreadyExists) {
			return nil, "", oops.Code("AUTH_ALREADY_REGISTERED").
				With("email", email).
				Errorf("email is already registered")
		}
		return nil, "", oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "insert user").
			Wrap(err)
	}

	return s.establishSession(ctx, user)
}

// Logout removes the session for the given plaintext token. It is
// idempotent: an unknown or already-cleared token is a successful
// logout, and the session always ends anonymous.
func (s *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	err := s.sessions.DeleteByTokenHash(ctx, HashSessionToken(token))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return oops.Code("AUTH_LOGOUT_FAILED").
			With("operation", "delete session").
			Wrap(err)
	}
	return nil
}

// ValidateSession validates a session token and returns the session if valid.
// Also updates the LastSeenAt timestamp.
func (s *Service) ValidateSession(ctx context.Context, token string) (*WebSession, error) {
	if token == "" {
		return nil, oops.Code("SESSION_TOKEN_EMPTY").Errorf("session token cannot be empty")
	}

	session, err := s.sessions.GetByTokenHash(ctx, HashSessionToken(token))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code("SESSION_INVALID").Errorf("invalid session token")
		}
		return nil, oops.Code("SESSION_VALIDATE_FAILED").
			With("operation", "get session by token hash").
			Wrap(err)
	}

	if session.IsExpired() {
		return nil, oops.Code("SESSION_EXPIRED").Errorf("session has expired")
	}

	// Update last seen timestamp (non-blocking, ignore errors)
	_ = s.sessions.UpdateLastSeen(ctx, session.ID, time.Now()) //nolint:errcheck // Best effort

	return session, nil
}

// establishSession creates and persists a session for the user.
// Shared by local login, registration auto-login, and the federated flow.
func (s *Service) establishSession(ctx context.Context, user *User) (*WebSession, string, error) {
	return createSession(ctx, s.sessions, user)
}

func createSession(ctx context.Context, sessions WebSessionRepository, user *User) (*WebSession, string, error) {
	token, tokenHash, err := GenerateSessionToken()
	if err != nil {
		return nil, "", oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "generate session token").
			Wrap(err)
	}

	session, err := NewWebSession(user.ID, user.Email, tokenHash, time.Now().Add(SessionTokenExpiry))
	if err != nil {
		return nil, "", oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "create web session").
			Wrap(err)
	}

	if err := sessions.Create(ctx, session); err != nil {
		return nil, "", oops.Code("AUTH_SESSION_CREATE_FAILED").
			With("operation", "persist session").
			Wrap(err)
	}

	return session, token, nil
}
