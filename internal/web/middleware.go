// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Confide Contributors

package web

import (
	"context"
	"net/http"

	"github.com/confide/confide/internal/auth"
)

type contextKey string

const principalKey contextKey = "principal"

// PrincipalFromContext returns the authenticated principal attached by
// the session gate, if any.
func PrincipalFromContext(ctx context.Context) (auth.Principal, bool) {
	principal, ok := ctx.Value(principalKey).(auth.Principal)
	return principal, ok
}

// requireAuth gates a handler behind a valid web session. Requests
// without one are redirected to the login page.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, err := s.authSvc.ValidateSession(r.Context(), sessionToken(r))
		if err != nil {
			s.clearSessionCookie(w)
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}

		ctx := context.WithValue(r.Context(), principalKey, session.Principal())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
