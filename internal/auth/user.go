// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Confide Contributors

package auth

import (
	"context"
	"regexp"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// FederatedSentinel is the password-hash placeholder stored for accounts
// that were created through the identity provider and have no local
// password. It never parses as a valid hash, so a local login against a
// federated-only account can never succeed.
const FederatedSentinel = "!federated"

// Email length bounds. 254 is the SMTP path limit.
const (
	MinEmailLength = 3
	MaxEmailLength = 254
)

// emailRegex is a pragmatic shape check, not full RFC 5322.
var emailRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// User represents a registered account.
type User struct {
	ID           ulid.ULID
	Email        string
	PasswordHash string
	Secret       *string // free-form payload set via /submit, nil until first set
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasLocalCredential returns true if the account has a usable local
// password, as opposed to the federated sentinel.
func (u *User) HasLocalCredential() bool {
	return u.PasswordHash != "" && u.PasswordHash != FederatedSentinel
}

// NewUser creates a validated User with a local password hash.
func NewUser(email, passwordHash string) (*User, error) {
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	if passwordHash == "" {
		return nil, oops.Code("AUTH_INVALID_HASH").Errorf("password hash cannot be empty")
	}

	now := time.Now()
	return &User{
		ID:           ulid.Make(),
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// NewFederatedUser creates a validated User with the federated sentinel
// in place of a password hash.
func NewFederatedUser(email string) (*User, error) {
	return NewUser(email, FederatedSentinel)
}

// ValidateEmail validates an email address against shape and length rules.
func ValidateEmail(email string) error {
	if email == "" {
		return oops.Code("AUTH_INVALID_EMAIL").Errorf("email cannot be empty")
	}
	if len(email) < MinEmailLength {
		return oops.Code("AUTH_INVALID_EMAIL").
			With("min", MinEmailLength).
			Errorf("email must be at least %d characters", MinEmailLength)
	}
	if len(email) > MaxEmailLength {
		return oops.Code("AUTH_INVALID_EMAIL").
			With("max", MaxEmailLength).
			Errorf("email must be at most %d characters", MaxEmailLength)
	}
	if !emailRegex.MatchString(email) {
		return oops.Code("AUTH_INVALID_EMAIL").
			Errorf("email must look like an address")
	}
	return nil
}

// UserRepository manages user persistence.
//
// Create returns ErrAlreadyExists (wrapped) when the email uniqueness
// constraint rejects the insert; that constraint is the only concurrency
// control this subsystem relies on.
type UserRepository interface {
	// Create stores a new user.
	Create(ctx context.Context, user *User) error

	// GetByID retrieves a user by ID.
	GetByID(ctx context.Context, id ulid.ULID) (*User, error)

	// GetByEmail retrieves a user by email (case-insensitive).
	GetByEmail(ctx context.Context, email string) (*User, error)

	// UpdatePasswordHash updates only the password hash for a user.
	UpdatePasswordHash(ctx context.Context, id ulid.ULID, passwordHash string) error

	// UpdateSecret replaces the stored secret payload for a user.
	UpdateSecret(ctx context.Context, id ulid.ULID, secret string) error
}
