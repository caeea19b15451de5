package web

import (
	"errors"
	"net/http"

	"github.com/joshdurbin/runtracker/internal/auth"
	"github.com/joshdurbin/runtracker/internal/dashboard"
	"github.com/joshdurbin/runtracker/internal/logging"
)

const (
	msgAuthDenied = "Strava authorization was denied."
	msgAuthFailed = "Could not complete Strava authorization. Please try again."
)

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	authURL, err := s.auth.AuthURL()
	if err != nil {
		logging.Logger.Error().Err(err).Msg("building authorization URL")
		http.Error(w, "Failed to start OAuth flow", http.StatusInternalServerError)
		return
	}
	if err := s.dash.BeginAuth(); err != nil {
		http.Error(w, "Dashboard is shutting down", http.StatusServiceUnavailable)
		return
	}

	logging.Logger.Info().Msg("starting Strava authorization")
	http.Redirect(w, r, authURL, http.StatusTemporaryRedirect)
}

func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	log := logging.Logger
	q := r.URL.Query()

	if e := q.Get("error"); e != "" {
		log.Warn().Str("error", e).Msg("authorization denied")
		s.signInFailed(msgAuthDenied)
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	code, state := q.Get("code"), q.Get("state")
	if code == "" || state == "" {
		log.Warn().Bool("has_code", code != "").Bool("has_state", state != "").Msg("missing OAuth parameters")
		http.Error(w, "Missing code or state parameter", http.StatusBadRequest)
		return
	}

	creds, err := s.auth.Complete(r.Context(), code, state)
	if errors.Is(err, auth.ErrInvalidState) {
		log.Warn().Err(err).Msg("rejected OAuth callback")
		http.Error(w, "Invalid or expired authorization request. Please try again.", http.StatusBadRequest)
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("completing authorization")
		s.signInFailed(msgAuthFailed)
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	if _, err := s.dash.SignedIn(creds.Athlete); err != nil {
		http.Error(w, "Dashboard is shutting down", http.StatusServiceUnavailable)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// signInFailed reports a failure only while an authorization is pending, so
// a stray callback cannot reset a signed-in dashboard.
func (s *Server) signInFailed(message string) {
	if s.dash.Snapshot().Status != dashboard.StatusAuthenticating {
		return
	}
	if err := s.dash.SignInFailed(message); err != nil {
		logging.Logger.Warn().Err(err).Msg("recording failed sign-in")
	}
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.dash.Logout(r.Context()); err != nil {
		logging.Logger.Error().Err(err).Msg("logging out")
		http.Error(w, "Failed to log out", http.StatusInternalServerError)
		return
	}
	logging.Logger.Info().Msg("logged out")
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
