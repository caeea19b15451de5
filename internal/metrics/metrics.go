// Package metrics holds the Prometheus collectors shared across runtracker.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "runtracker"

// Label values
const (
	// HTTP endpoints
	EndpointDashboard  = "dashboard"
	EndpointActivities = "activities"
	EndpointAPI        = "api"
	EndpointCharts     = "charts"
	EndpointAuthLogin  = "auth_login"
	EndpointAuthReturn = "auth_callback"
	EndpointAuthLogout = "auth_logout"
	EndpointHealth     = "health"
	EndpointMCP        = "mcp"

	// Strava API operations
	OpListActivities = "list_activities"
	OpGetActivity    = "get_activity"
	OpGetAthlete     = "get_athlete"
	OpExchangeCode   = "exchange_code"
	OpRefreshToken   = "refresh_token"

	// Rate limit windows
	RateLimit15Min = "15min"
	RateLimitDaily = "daily"

	// Rate limit buckets
	BucketLimit = "limit"
	BucketUsage = "usage"

	// Load and tool call outcomes
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultStale   = "stale"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"endpoint", "status_code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"endpoint", "status_code"},
	)
)

// Strava API metrics
var (
	StravaAPIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "strava_api_requests_total",
			Help:      "Total number of Strava API requests",
		},
		[]string{"operation", "status_code"},
	)

	StravaAPIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "strava_api_request_duration_seconds",
			Help:      "Strava API request latency in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"operation", "status_code"},
	)

	StravaRateLimit = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "strava_rate_limit",
			Help:      "Most restrictive Strava rate limit and usage seen on the last response",
		},
		[]string{"window", "bucket"},
	)
)

// Loader and dashboard metrics
var (
	UpstreamPagesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_pages_total",
			Help:      "Total number of activity pages fetched by the loader",
		},
	)

	LoadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loads_total",
			Help:      "Dashboard loads by outcome",
		},
		[]string{"result"},
	)

	StaleResponsesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_responses_total",
			Help:      "Load responses discarded because a newer request superseded them",
		},
	)

	LoadDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "load_duration_seconds",
			Help:      "Time to load and aggregate one time window",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		},
	)

	LoadedActivities = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "loaded_activities",
			Help:      "Activities held by the dashboard for the displayed window",
		},
	)

	TokenRefreshesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_refreshes_total",
			Help:      "OAuth token refresh attempts by outcome",
		},
		[]string{"result"},
	)

	MCPToolCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mcp_tool_calls_total",
			Help:      "MCP tool calls by tool and outcome",
		},
		[]string{"tool", "result"},
	)
)
