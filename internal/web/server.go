// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Confide Contributors

// Package web serves the Confide HTTP surface: the public pages, the
// login/register/logout flows, the federated callback, and the
// session-gated secret pages.
package web

import (
	"context"
	"embed"
	"html/template"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/confide/confide/internal/auth"
	"github.com/confide/confide/internal/observability"
)

//go:embed templates/*.html
var templatesFS embed.FS

// AuthService is the slice of auth.Service the handlers use.
type AuthService interface {
	Login(ctx context.Context, email, password string) (*auth.WebSession, string, error)
	Register(ctx context.Context, email, password string) (*auth.WebSession, string, error)
	Logout(ctx context.Context, token string) error
	ValidateSession(ctx context.Context, token string) (*auth.WebSession, error)
}

// FederatedAuth is the slice of auth.FederatedService the handlers use.
type FederatedAuth interface {
	LoginURL(state string) string
	Complete(ctx context.Context, code string) (*auth.WebSession, string, error)
}

// SecretStore is the slice of auth.UserRepository the secret pages use.
type SecretStore interface {
	GetByID(ctx context.Context, id ulid.ULID) (*auth.User, error)
	UpdateSecret(ctx context.Context, id ulid.ULID, secret string) error
}

// Server serves the Confide web application.
type Server struct {
	addr          string
	secureCookies bool

	authSvc   AuthService
	federated FederatedAuth // nil disables the /auth/google routes
	secrets   SecretStore
	metrics   *observability.Metrics // nil disables counters
	logger    *slog.Logger
	tmpl      *template.Template

	listener   net.Listener
	httpServer *http.Server
	running    atomic.Bool
}

// Options configures a Server.
type Options struct {
	Addr      string
	BaseURL   string
	AuthSvc   AuthService
	Federated FederatedAuth
	Secrets   SecretStore
	Metrics   *observability.Metrics
	Logger    *slog.Logger
}

// NewServer creates a Server. Federated and Metrics are optional.
func NewServer(opts Options) (*Server, error) {
	if opts.Addr == "" {
		return nil, oops.Code("WEB_SERVER_INVALID").Errorf("listen address is required")
	}
	if opts.AuthSvc == nil {
		return nil, oops.Code("WEB_SERVER_INVALID").Errorf("auth service is required")
	}
	if opts.Secrets == nil {
		return nil, oops.Code("WEB_SERVER_INVALID").Errorf("secret store is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	tmpl, err := template.ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, oops.Code("WEB_SERVER_INVALID").
			With("operation", "parse templates").
			Wrap(err)
	}

	return &Server{
		addr:          opts.Addr,
		secureCookies: strings.HasPrefix(opts.BaseURL, "https://"),
		authSvc:       opts.AuthSvc,
		federated:     opts.Federated,
		secrets:       opts.Secrets,
		metrics:       opts.Metrics,
		logger:        opts.Logger,
		tmpl:          tmpl,
	}, nil
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleHome)
	mux.HandleFunc("GET /login", s.handleLoginPage)
	mux.HandleFunc("POST /login", s.handleLogin)
	mux.HandleFunc("GET /register", s.handleRegisterPage)
	mux.HandleFunc("POST /register", s.handleRegister)
	mux.HandleFunc("GET /logout", s.handleLogout)

	mux.Handle("GET /secrets", s.requireAuth(http.HandlerFunc(s.handleSecrets)))
	mux.Handle("GET /submit", s.requireAuth(http.HandlerFunc(s.handleSubmitPage)))
	mux.Handle("POST /submit", s.requireAuth(http.HandlerFunc(s.handleSubmit)))

	if s.federated != nil {
		mux.HandleFunc("GET /auth/google", s.handleFederatedStart)
		mux.HandleFunc("GET /auth/google/callback", s.handleFederatedCallback)
	}

	return mux
}

// Start begins serving. It returns an error channel that receives any
// serve error; the channel is closed on graceful stop.
func (s *Server) Start() (<-chan error, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, oops.Errorf("web server already running")
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.running.Store(false)
		return nil, oops.With("addr", s.addr).Wrap(err)
	}
	s.listener = listener

	httpSrv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.httpServer = httpSrv

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if serveErr := httpSrv.Serve(listener); serveErr != nil && serveErr != http.ErrServerClosed {
			s.logger.Error("web server error", "error", serveErr)
			errCh <- serveErr
		}
	}()

	s.logger.Info("web server started", "addr", listener.Addr().String())
	return errCh, nil
}

// Stop gracefully shuts down the web server.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.running.Store(true)
			return oops.With("operation", "shutdown_web_server").Wrap(err)
		}
	}

	s.logger.Info("web server stopped")
	return nil
}

// Addr returns the address the server is listening on.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}
