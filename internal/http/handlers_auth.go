package http

import (
	"errors"
	"net/http"
	"strings"
	"sync/atomic"

	"timetracker/internal/auth"
	"timetracker/internal/log"
)

type loginData struct {
	Email string
	Error string
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(auth.CookieName); err == nil {
		if _, err := s.sessions.Parse(c.Value); err == nil {
			http.Redirect(w, r, "/tracker", http.StatusSeeOther)
			return
		}
	}
	s.writeTemplate(w, r, NewHTMXResponse(), "login", loginData{})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}
	ctx := r.Context()
	logger := log.FromContext(ctx).WithComponent(log.ComponentAuth)

	email := strings.ToLower(sanitizeInput(r.PostForm.Get("email")))
	password := r.PostForm.Get("password")
	if email == "" || password == "" {
		s.writeTemplate(w, r, NewHTMXResponse().Status(http.StatusUnprocessableEntity), "login",
			loginData{Email: email, Error: "Enter your email and password."})
		return
	}

	id, err := s.auth.SignIn(ctx, email, password)
	if err != nil {
		atomic.AddInt64(&s.appMetrics.loginFailures, 1)
		status, msg := http.StatusBadGateway, "Sign-in is unavailable right now. Try again later."
		if errors.Is(err, auth.ErrInvalidCredentials) {
			status, msg = http.StatusUnauthorized, "Invalid email or password."
		}
		logger.WarnContext(ctx, "Sign-in failed", "email", email, log.FieldError, err)
		s.writeTemplate(w, r, NewHTMXResponse().Status(status), "login", loginData{Email: email, Error: msg})
		return
	}

	token, expires, err := s.sessions.Issue(id)
	if err != nil {
		logger.ErrorContext(ctx, "Issuing session failed", log.FieldError, err)
		InternalServerError("Could not start a session").Write(w)
		return
	}
	auth.SetCookie(w, r, token, expires)
	logger.InfoContext(ctx, "Signed in", log.FieldUserID, id.UserID)
	http.Redirect(w, r, "/tracker", http.StatusSeeOther)
}

// handleLogout drops the user's snapshot and session cookie.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.tracker.Forget(r.Context())
	auth.ClearCookie(w)
	if isHTMX(r) {
		NewHTMXResponse().Header("HX-Redirect", auth.LoginPath).Write(w)
		return
	}
	http.Redirect(w, r, auth.LoginPath, http.StatusSeeOther)
}
