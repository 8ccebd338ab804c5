// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Confide Contributors

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/confide/confide/internal/auth"
	"github.com/confide/confide/internal/auth/postgres"
	"github.com/confide/confide/internal/config"
	"github.com/confide/confide/internal/logging"
	"github.com/confide/confide/internal/observability"
	"github.com/confide/confide/internal/web"
)

const sessionSweepInterval = time.Hour

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Confide web server",
		Long: `Start the web server, serving the login, registration, and secret
pages, plus the metrics/health endpoints.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServeWithDeps(cmd.Context(), cmd, nil)
		},
	}

	cmd.Flags().String("http_addr", config.DefaultHTTPAddr, "HTTP listen address")
	cmd.Flags().String("metrics_addr", config.DefaultMetricsAddr, "metrics/health HTTP address (empty = disabled)")
	cmd.Flags().String("base_url", "", "externally visible base URL (default: http://<http_addr>)")
	cmd.Flags().String("database_url", "", "PostgreSQL connection URL (default: DATABASE_URL env)")
	cmd.Flags().String("log_format", config.DefaultLogFormat, "log format (json or text)")

	return cmd
}

// runServeWithDeps starts the server with injectable dependencies.
// If deps is nil, default implementations are used.
func runServeWithDeps(ctx context.Context, cmd *cobra.Command, deps *ServeDeps) error {
	if deps == nil {
		deps = &ServeDeps{}
	}
	deps.applyDefaults()

	cfg, err := deps.ConfigLoader(configFile, cmd.Flags())
	if err != nil {
		return oops.With("operation", "load configuration").Wrap(err)
	}

	logging.SetDefault("confide", version, cfg.LogFormat)

	if cfg.DatabaseURL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("database_url or the DATABASE_URL environment variable is required")
	}

	slog.Info("starting server",
		"http_addr", cfg.HTTPAddr,
		"log_format", cfg.LogFormat,
		"google_enabled", cfg.GoogleEnabled(),
	)

	db, err := deps.DatabaseFactory(ctx, cfg.DatabaseURL)
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
	}
	defer db.Close()

	slog.Info("connected to database")

	users := postgres.NewUserRepository(db)
	sessions := postgres.NewWebSessionRepository(db)

	authSvc, err := auth.NewAuthService(users, sessions, auth.NewArgon2idHasher())
	if err != nil {
		return oops.With("operation", "create auth service").Wrap(err)
	}

	var federated web.FederatedAuth
	if cfg.GoogleEnabled() {
		provider, provErr := auth.NewGoogleProvider(
			cfg.Google.ClientID,
			cfg.Google.ClientSecret,
			cfg.BaseURL+"/auth/google/callback",
		)
		if provErr != nil {
			return oops.With("operation", "create identity provider").Wrap(provErr)
		}

		federatedSvc, fedErr := auth.NewFederatedService(users, sessions, provider)
		if fedErr != nil {
			return oops.With("operation", "create federated service").Wrap(fedErr)
		}
		federated = federatedSvc
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Start observability server if configured
	var obsServer ObservabilityServer
	var metrics *observability.Metrics
	if cfg.MetricsAddr != "" {
		obsServer = deps.ObservabilityServerFactory(cfg.MetricsAddr, func() bool { return true })
		metrics = obsServer.Metrics()

		obsErrChan, obsErr := obsServer.Start()
		if obsErr != nil {
			return oops.With("operation", "start observability server").Wrap(obsErr)
		}
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability")
		slog.Info("observability server started", "addr", obsServer.Addr())
	}

	webServer, err := deps.WebServerFactory(web.Options{
		Addr:      cfg.HTTPAddr,
		BaseURL:   cfg.BaseURL,
		AuthSvc:   authSvc,
		Federated: federated,
		Secrets:   users,
		Metrics:   metrics,
		Logger:    slog.Default(),
	})
	if err != nil {
		return oops.With("operation", "create web server").Wrap(err)
	}

	webErrChan, err := webServer.Start()
	if err != nil {
		stopObservability(obsServer)
		return oops.With("operation", "start web server").Wrap(err)
	}
	go monitorServerErrors(ctx, cancel, webErrChan, "web")

	go sweepExpiredSessions(ctx, sessions, sessionSweepInterval)

	// Handle signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	cmd.Println("Server started on", webServer.Addr())
	slog.Info("server ready", "addr", webServer.Addr())

	select {
	case sig := <-sigChan:
		slog.Info("received shutdown signal", "signal", sig)
	case <-ctx.Done():
		slog.Info("context cancelled, shutting down")
	}

	// Graceful shutdown
	slog.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := webServer.Stop(shutdownCtx); err != nil {
		slog.Warn("error stopping web server", "error", err)
	}
	if obsServer != nil {
		if err := obsServer.Stop(shutdownCtx); err != nil {
			slog.Warn("error stopping observability server", "error", err)
		}
	}

	slog.Info("shutdown complete")
	return nil
}

func stopObservability(obsServer ObservabilityServer) {
	if obsServer == nil {
		return
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := obsServer.Stop(shutdownCtx); err != nil {
		slog.Warn("failed to stop observability server during cleanup", "error", err)
	}
}

// expiredSessionDeleter is the slice of the session repository the
// sweeper needs.
type expiredSessionDeleter interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// sweepExpiredSessions periodically removes expired web sessions so the
// sessions table does not grow without bound.
func sweepExpiredSessions(ctx context.Context, sessions expiredSessionDeleter, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := sessions.DeleteExpired(ctx)
			if err != nil {
				slog.Warn("expired session sweep failed", "error", err)
				continue
			}
			if deleted > 0 {
				slog.Info("expired sessions removed", "count", deleted)
			}
		}
	}
}

// monitorServerErrors monitors a server's error channel and cancels the
// context on error so a failed server brings the whole process down
// cleanly. It exits when an error arrives, the channel closes, or the
// context is cancelled.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			// Channel closed, server stopped gracefully
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
	}
}
