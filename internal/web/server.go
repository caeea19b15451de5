// Package web serves the dashboard pages, its JSON API, the charts and the
// Strava OAuth endpoints.
package web

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/joshdurbin/runtracker/internal/auth"
	"github.com/joshdurbin/runtracker/internal/dashboard"
	"github.com/joshdurbin/runtracker/internal/logging"
	"github.com/joshdurbin/runtracker/internal/metrics"
	"github.com/joshdurbin/runtracker/internal/strava"
	"github.com/joshdurbin/runtracker/internal/window"
)

//go:embed templates/*.html
var templateFS embed.FS

// Controller is the part of the dashboard controller the handlers drive.
type Controller interface {
	Snapshot() dashboard.State
	Select(period window.Period, offset int) (uint64, error)
	Retry() (uint64, error)
	BeginAuth() error
	SignedIn(athlete strava.Athlete) (uint64, error)
	SignInFailed(message string) error
	Logout(ctx context.Context) error
}

// Authenticator runs the OAuth authorization-code flow.
type Authenticator interface {
	AuthURL() (string, error)
	Complete(ctx context.Context, code, state string) (*auth.Credentials, error)
}

// Option configures a Server.
type Option func(*Server)

// WithMCP mounts an MCP handler at /mcp.
func WithMCP(h http.Handler) Option {
	return func(s *Server) { s.mcp = h }
}

// WithClock replaces time.Now for navigation labels.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// Server holds the handler dependencies.
type Server struct {
	dash      Controller
	auth      Authenticator
	mcp       http.Handler
	now       func() time.Time
	templates *template.Template
}

// New parses the page templates and returns a Server.
func New(dash Controller, authenticator Authenticator, opts ...Option) (*Server, error) {
	tmpl, err := template.New("").Funcs(template.FuncMap{
		"percent": func(v float64) string { return fmt.Sprintf("%.1f%%", v) },
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parsing templates: %w", err)
	}

	s := &Server{
		dash:      dash,
		auth:      authenticator,
		now:       time.Now,
		templates: tmpl,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Handler returns the routed handler with metrics and request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("GET /{$}", metrics.Wrap(metrics.EndpointDashboard, s.handleDashboard))
	mux.Handle("GET /activities", metrics.Wrap(metrics.EndpointActivities, s.handleActivities))

	mux.Handle("GET /api/dashboard", metrics.Wrap(metrics.EndpointAPI, s.handleAPIState))
	mux.Handle("POST /api/selection", metrics.Wrap(metrics.EndpointAPI, s.handleSelection))
	mux.Handle("POST /api/retry", metrics.Wrap(metrics.EndpointAPI, s.handleRetry))

	mux.Handle("GET /charts/weekly", metrics.Wrap(metrics.EndpointCharts, s.handleWeeklyChart))
	mux.Handle("GET /charts/weeks/{key}", metrics.Wrap(metrics.EndpointCharts, s.handleWeekChart))

	mux.Handle("GET /auth/login", metrics.Wrap(metrics.EndpointAuthLogin, s.handleLogin))
	mux.Handle("GET /auth/callback", metrics.Wrap(metrics.EndpointAuthReturn, s.handleCallback))
	mux.Handle("POST /auth/logout", metrics.Wrap(metrics.EndpointAuthLogout, s.handleLogout))

	mux.Handle("GET /healthz", metrics.Wrap(metrics.EndpointHealth, s.handleHealth))
	mux.Handle("GET /metrics", promhttp.Handler())
	if s.mcp != nil {
		mux.Handle("/mcp", metrics.Middleware(metrics.EndpointMCP)(s.mcp))
	}

	return logRequests(mux)
}

// logRequests logs each request at debug level.
func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logging.Logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("elapsed", time.Since(start)).
			Msg("http request")
	})
}

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		logging.Logger.Error().Err(err).Str("template", name).Msg("rendering page")
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	buf.WriteTo(w)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Logger.Error().Err(err).Msg("encoding response")
	}
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
