// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Confide Contributors

package main

import (
	"context"

	"github.com/confide/confide/internal/auth/postgres"
	"github.com/confide/confide/internal/config"
	"github.com/confide/confide/internal/observability"
	"github.com/confide/confide/internal/store"
	"github.com/confide/confide/internal/web"
	"github.com/spf13/pflag"
)

// Database is the connection handle the serve command needs: query
// access for the repositories plus a close hook. *pgxpool.Pool
// satisfies it.
type Database interface {
	postgres.DB
	Close()
}

// ObservabilityServer abstracts the metrics/health server for testing.
type ObservabilityServer interface {
	Metrics() *observability.Metrics
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
}

// WebServer abstracts the application HTTP server for testing.
type WebServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
}

// ServeDeps holds injectable dependencies for the serve command.
// Nil fields fall back to the production implementations.
type ServeDeps struct {
	ConfigLoader               func(path string, flags *pflag.FlagSet) (config.Config, error)
	DatabaseFactory            func(ctx context.Context, databaseURL string) (Database, error)
	ObservabilityServerFactory func(addr string, readinessChecker observability.ReadinessChecker) ObservabilityServer
	WebServerFactory           func(opts web.Options) (WebServer, error)
}

func (deps *ServeDeps) applyDefaults() {
	if deps.ConfigLoader == nil {
		deps.ConfigLoader = config.Load
	}
	if deps.DatabaseFactory == nil {
		deps.DatabaseFactory = func(ctx context.Context, databaseURL string) (Database, error) {
			return store.Connect(ctx, databaseURL)
		}
	}
	if deps.ObservabilityServerFactory == nil {
		deps.ObservabilityServerFactory = func(addr string, readinessChecker observability.ReadinessChecker) ObservabilityServer {
			return observability.NewServer(addr, readinessChecker)
		}
	}
	if deps.WebServerFactory == nil {
		deps.WebServerFactory = func(opts web.Options) (WebServer, error) {
			return web.NewServer(opts)
		}
	}
}
