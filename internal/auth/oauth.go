package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/browser"
	"golang.org/x/oauth2"

	"github.com/joshdurbin/runtracker/internal/logging"
	"github.com/joshdurbin/runtracker/internal/strava"
)

const (
	authURL  = "https://www.strava.com/oauth/authorize"
	tokenURL = "https://www.strava.com/oauth/token"

	// Strava takes a comma separated scope list in a single parameter.
	scopes = "read,activity:read_all"

	// expirySkew treats tokens this close to expiry as already expired.
	expirySkew = 5 * time.Minute

	interactiveTimeout = 5 * time.Minute
)

// StravaOAuthConfig returns the OAuth2 config for the Strava app.
func StravaOAuthConfig(clientID, clientSecret, redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint: oauth2.Endpoint{
			AuthURL:   authURL,
			TokenURL:  tokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
		RedirectURL: redirectURL,
		Scopes:      []string{scopes},
	}
}

// Credentials is the persisted authentication state.
type Credentials struct {
	AccessToken  string         `json:"access_token"`
	RefreshToken string         `json:"refresh_token"`
	ExpiresAt    int64          `json:"expires_at"`
	Athlete      strava.Athlete `json:"athlete"`
}

// Expired reports whether the access token needs refreshing.
func (c *Credentials) Expired() bool {
	return IsTokenExpired(c.ExpiresAt)
}

// ExpiresIn returns the time left on the access token.
func (c *Credentials) ExpiresIn() time.Duration {
	return time.Until(time.Unix(c.ExpiresAt, 0))
}

// IsTokenExpired reports whether a token expiring at expiresAt (epoch
// seconds) has less than five minutes left.
func IsTokenExpired(expiresAt int64) bool {
	return time.Now().Add(expirySkew).Unix() > expiresAt
}

// credentialsFromToken converts an oauth2 token. Strava returns the athlete
// alongside the token on the initial exchange only.
func credentialsFromToken(token *oauth2.Token) *Credentials {
	creds := &Credentials{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    token.Expiry.Unix(),
	}
	if token.Expiry.IsZero() {
		if v, ok := token.Extra("expires_at").(float64); ok {
			creds.ExpiresAt = int64(v)
		}
	}
	if raw := token.Extra("athlete"); raw != nil {
		if b, err := json.Marshal(raw); err == nil {
			_ = json.Unmarshal(b, &creds.Athlete)
		}
	}
	return creds
}

func (c *Credentials) oauth2Token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  c.AccessToken,
		RefreshToken: c.RefreshToken,
		Expiry:       time.Unix(c.ExpiresAt, 0),
		TokenType:    "Bearer",
	}
}

// exchange trades an authorization code for credentials.
func exchange(ctx context.Context, cfg *oauth2.Config, code string) (*Credentials, error) {
	token, err := cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("token exchange failed: %w", err)
	}
	return credentialsFromToken(token), nil
}

// refresh obtains a new access token. The athlete carries over from prev.
func refresh(ctx context.Context, cfg *oauth2.Config, prev *Credentials) (*Credentials, error) {
	expired := prev.oauth2Token()
	expired.Expiry = time.Now().Add(-time.Hour)

	token, err := cfg.TokenSource(ctx, expired).Token()
	if err != nil {
		return nil, fmt.Errorf("token refresh failed: %w", err)
	}

	creds := credentialsFromToken(token)
	if creds.RefreshToken == "" {
		creds.RefreshToken = prev.RefreshToken
	}
	if creds.Athlete.ID == 0 {
		creds.Athlete = prev.Athlete
	}
	return creds, nil
}

// Authenticate runs the browser login from a terminal. It serves the
// session's redirect URL locally, opens the authorization page and waits for
// Strava to redirect back. open defaults to the system browser.
func Authenticate(ctx context.Context, s *Session, open func(string) error) (*Credentials, error) {
	log := logging.Logger

	redirect, err := url.Parse(s.cfg.RedirectURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redirect URL: %w", err)
	}
	if open == nil {
		open = browser.OpenURL
	}

	authURL, err := s.AuthURL()
	if err != nil {
		return nil, err
	}

	ln, err := net.Listen("tcp", redirect.Host)
	if err != nil {
		return nil, fmt.Errorf("listening on %s (is runtracker serve already running?): %w", redirect.Host, err)
	}

	type result struct {
		creds *Credentials
		err   error
	}
	done := make(chan result, 1)

	mux := http.NewServeMux()
	mux.HandleFunc(redirect.Path, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if e := q.Get("error"); e != "" {
			http.Error(w, "authorization denied: "+e, http.StatusBadRequest)
			done <- result{err: fmt.Errorf("authorization failed: %s", e)}
			return
		}

		creds, err := s.Complete(r.Context(), q.Get("code"), q.Get("state"))
		if err != nil {
			http.Error(w, "authorization failed", http.StatusBadRequest)
			done <- result{err: err}
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, `<html><body><h1>Connected to Strava</h1><p>You can close this window.</p></body></html>`)
		done <- result{creds: creds}
	})

	server := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			done <- result{err: fmt.Errorf("callback server error: %w", err)}
		}
	}()
	defer server.Shutdown(context.Background())

	fmt.Println("Opening browser for Strava authorization...")
	fmt.Printf("If the browser doesn't open, visit: %s\n\n", authURL)
	if err := open(authURL); err != nil {
		log.Warn().Err(err).Msg("could not open browser")
	}

	timer := time.NewTimer(interactiveTimeout)
	defer timer.Stop()

	select {
	case res := <-done:
		return res.creds, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, fmt.Errorf("authorization timeout after %s", interactiveTimeout)
	}
}
