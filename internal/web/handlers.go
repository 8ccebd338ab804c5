// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Confide Contributors

package web

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/http"
	"time"

	"github.com/samber/oops"

	"github.com/confide/confide/internal/auth"
	"github.com/confide/confide/pkg/errutil"
)

const (
	sessionCookieName = "confide_session"
	stateCookieName   = "confide_oauth_state"
	stateCookieMaxAge = 10 * time.Minute
)

type pageData struct {
	Email  string
	Secret string
	Error  string
	Google bool
}

func (s *Server) render(w http.ResponseWriter, status int, name string, data pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := s.tmpl.ExecuteTemplate(w, name, data); err != nil {
		s.logger.Error("template render failed", "template", name, "error", err)
	}
}

func (s *Server) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(auth.SessionTokenExpiry / time.Second),
		HttpOnly: true,
		Secure:   s.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func sessionToken(r *http.Request) string {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	if _, err := s.authSvc.ValidateSession(r.Context(), sessionToken(r)); err == nil {
		http.Redirect(w, r, "/secrets", http.StatusSeeOther)
		return
	}
	s.render(w, http.StatusOK, "home.html", pageData{Google: s.federated != nil})
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, http.StatusOK, "login.html", pageData{Google: s.federated != nil})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	email := r.PostFormValue("email")
	password := r.PostFormValue("password")

	_, token, err := s.authSvc.Login(r.Context(), email, password)
	if err != nil {
		s.countLogin("local", "failure")
		s.render(w, http.StatusUnauthorized, "login.html", pageData{
			Email:  email,
			Error:  "Invalid email or password.",
			Google: s.federated != nil,
		})
		return
	}

	s.countLogin("local", "success")
	s.setSessionCookie(w, token)
	http.Redirect(w, r, "/secrets", http.StatusSeeOther)
}

func (s *Server) handleRegisterPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, http.StatusOK, "register.html", pageData{})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	email := r.PostFormValue("email")
	password := r.PostFormValue("password")

	_, token, err := s.authSvc.Register(r.Context(), email, password)
	if err != nil {
		s.countRegistration("failure")
		msg := "Registration failed. Check your email and password."
		if oopsErr, ok := oops.AsOops(err); ok && oopsErr.Code() == "AUTH_ALREADY_REGISTERED" {
			msg = "An account with that email already exists."
		}
		s.render(w, http.StatusUnprocessableEntity, "register.html", pageData{
			Email: email,
			Error: msg,
		})
		return
	}

	s.countRegistration("success")
	s.setSessionCookie(w, token)
	http.Redirect(w, r, "/secrets", http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	token := sessionToken(r)
	if err := s.authSvc.Logout(r.Context(), token); err != nil {
		s.logger.Warn("logout failed", "error", err)
	} else if token != "" && s.metrics != nil {
		s.metrics.SessionsActive.Dec()
	}
	s.clearSessionCookie(w)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleSecrets(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())

	user, err := s.secrets.GetByID(r.Context(), principal.UserID)
	if err != nil {
		errutil.LogError(s.logger.With("user_id", principal.UserID), "secret lookup failed", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	data := pageData{Email: user.Email}
	if user.Secret != nil {
		data.Secret = *user.Secret
	}
	s.render(w, http.StatusOK, "secrets.html", data)
}

func (s *Server) handleSubmitPage(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())
	s.render(w, http.StatusOK, "submit.html", pageData{Email: principal.Email})
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())

	secret := r.PostFormValue("secret")
	if err := s.secrets.UpdateSecret(r.Context(), principal.UserID, secret); err != nil {
		errutil.LogError(s.logger.With("user_id", principal.UserID), "secret update failed", err)
		s.render(w, http.StatusInternalServerError, "submit.html", pageData{
			Email: principal.Email,
			Error: "Could not save your secret. Try again.",
		})
		return
	}

	http.Redirect(w, r, "/secrets", http.StatusSeeOther)
}

func (s *Server) handleFederatedStart(w http.ResponseWriter, r *http.Request) {
	state, err := newStateToken()
	if err != nil {
		s.logger.Error("state token generation failed", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/auth/google",
		MaxAge:   int(stateCookieMaxAge / time.Second),
		HttpOnly: true,
		Secure:   s.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, s.federated.LoginURL(state), http.StatusFound)
}

func (s *Server) handleFederatedCallback(w http.ResponseWriter, r *http.Request) {
	stateCookie, err := r.Cookie(stateCookieName)
	if err != nil || stateCookie.Value == "" || stateCookie.Value != r.URL.Query().Get("state") {
		s.countLogin("google", "failure")
		s.render(w, http.StatusBadRequest, "login.html", pageData{
			Error:  "Sign-in with Google failed. Try again.",
			Google: true,
		})
		return
	}

	// The state cookie is single use.
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    "",
		Path:     "/auth/google",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})

	_, token, err := s.federated.Complete(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		s.countLogin("google", "failure")
		s.logger.Warn("federated login failed", "error", err)
		s.render(w, http.StatusBadGateway, "login.html", pageData{
			Error:  "Sign-in with Google failed. Try again.",
			Google: true,
		})
		return
	}

	s.countLogin("google", "success")
	s.setSessionCookie(w, token)
	http.Redirect(w, r, "/secrets", http.StatusSeeOther)
}

func (s *Server) countLogin(method, outcome string) {
	if s.metrics == nil {
		return
	}
	s.metrics.LoginsTotal.WithLabelValues(method, outcome).Inc()
	if outcome == "success" {
		s.metrics.SessionsActive.Inc()
	}
}

func (s *Server) countRegistration(outcome string) {
	if s.metrics == nil {
		return
	}
	s.metrics.RegistrationsTotal.WithLabelValues(outcome).Inc()
	if outcome == "success" {
		// Registration auto-logs the user in.
		s.metrics.SessionsActive.Inc()
	}
}

func newStateToken() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", errors.Join(errors.New("read random state"), err)
	}
	return hex.EncodeToString(buf), nil
}
