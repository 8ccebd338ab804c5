//go:build integration

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Confide Contributors

package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/confide/confide/internal/auth"
	"github.com/confide/confide/internal/auth/postgres"
	"github.com/confide/confide/internal/store"
)

// startPostgresContainer starts a PostgreSQL container for testing.
func startPostgresContainer(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("test"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = container.Terminate(ctx)
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	return connStr
}

func TestRepositories_Integration(t *testing.T) {
	ctx := context.Background()
	connStr := startPostgresContainer(t)

	migrator, err := store.NewMigrator(connStr)
	require.NoError(t, err)
	require.NoError(t, migrator.Up())
	require.NoError(t, migrator.Close())

	pool, err := store.Connect(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	users := postgres.NewUserRepository(pool)
	sessions := postgres.NewWebSessionRepository(pool)

	user, err := auth.NewUser("alice@example.com", "$argon2id$v=19$m=65536,t=1,p=4$c2FsdHNhbHRzYWx0c2FsdA$aGFzaGhhc2hoYXNoaGFzaGhhc2hoYXNoaGFzaGhhc2g")
	require.NoError(t, err)

	t.Run("user create and lookup", func(t *testing.T) {
		require.NoError(t, users.Create(ctx, user))

		got, err := users.GetByID(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, user.Email, got.Email)
		assert.Nil(t, got.Secret)
	})

	t.Run("email lookup is case-insensitive", func(t *testing.T) {
		got, err := users.GetByEmail(ctx, "ALICE@Example.COM")
		require.NoError(t, err)
		assert.Equal(t, user.ID, got.ID)
	})

	t.Run("duplicate email is rejected regardless of case", func(t *testing.T) {
		dup, err := auth.NewUser("Alice@example.com", user.PasswordHash)
		require.NoError(t, err)

		err = users.Create(ctx, dup)
		require.ErrorIs(t, err, auth.ErrAlreadyExists)
	})

	t.Run("secret round-trip", func(t *testing.T) {
		require.NoError(t, users.UpdateSecret(ctx, user.ID, "the cake is a lie"))

		got, err := users.GetByID(ctx, user.ID)
		require.NoError(t, err)
		require.NotNil(t, got.Secret)
		assert.Equal(t, "the cake is a lie", *got.Secret)
	})

	t.Run("password hash update", func(t *testing.T) {
		require.NoError(t, users.UpdatePasswordHash(ctx, user.ID, "$argon2id$new"))

		got, err := users.GetByID(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, "$argon2id$new", got.PasswordHash)
	})

	t.Run("session lifecycle", func(t *testing.T) {
		token, hash, err := auth.GenerateSessionToken()
		require.NoError(t, err)
		require.NotEmpty(t, token)

		session, err := auth.NewWebSession(user.ID, user.Email, hash, time.Now().UTC().Add(auth.SessionTokenExpiry))
		require.NoError(t, err)
		require.NoError(t, sessions.Create(ctx, session))

		got, err := sessions.GetByTokenHash(ctx, hash)
		require.NoError(t, err)
		assert.Equal(t, user.ID, got.UserID)
		assert.Equal(t, user.Email, got.Email)

		require.NoError(t, sessions.UpdateLastSeen(ctx, session.ID, time.Now().UTC().Add(time.Minute)))

		require.NoError(t, sessions.DeleteByTokenHash(ctx, hash))
		_, err = sessions.GetByTokenHash(ctx, hash)
		require.ErrorIs(t, err, auth.ErrNotFound)
	})

	t.Run("expired session sweep", func(t *testing.T) {
		_, hash, err := auth.GenerateSessionToken()
		require.NoError(t, err)

		expired, err := auth.NewWebSession(user.ID, user.Email, hash, time.Now().UTC().Add(time.Minute))
		require.NoError(t, err)
		require.NoError(t, sessions.Create(ctx, expired))

		// Backdate past the expiry window.
		_, execErr := pool.Exec(ctx,
			`UPDATE web_sessions SET expires_at = NOW() - INTERVAL '1 hour' WHERE id = $1`,
			expired.ID.String())
		require.NoError(t, execErr)

		deleted, err := sessions.DeleteExpired(ctx)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, deleted, int64(1))

		_, err = sessions.GetByTokenHash(ctx, hash)
		require.ErrorIs(t, err, auth.ErrNotFound)
	})
}
