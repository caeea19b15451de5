package server

import (
	"context"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/joshdurbin/runtracker/internal/dashboard"
	"github.com/joshdurbin/runtracker/internal/logging"
	"github.com/joshdurbin/runtracker/internal/metrics"
	"github.com/joshdurbin/runtracker/internal/strava"
	"github.com/joshdurbin/runtracker/internal/units"
	"github.com/joshdurbin/runtracker/internal/weekly"
	"github.com/joshdurbin/runtracker/internal/window"
)

const (
	serverName    = "runtracker"
	serverVersion = "1.0.0"

	dateLayout = "2006-01-02"
)

// Tool names
const (
	toolWeeklyMileage   = "get_weekly_mileage"
	toolDashboardStatus = "get_dashboard_status"
	toolListActivities  = "list_loaded_activities"
)

// ptr returns a pointer to the given value - useful for optional fields in structs
func ptr[T any](v T) *T {
	return &v
}

// Dashboard is the part of the dashboard controller the tools read from.
type Dashboard interface {
	Snapshot() dashboard.State
	Fetch(ctx context.Context, sel dashboard.Selection) (dashboard.Result, error)
}

// Server wraps the MCP server and the dashboard it reports on
type Server struct {
	mcp  *mcp.Server
	dash Dashboard
}

// MCPServer returns the underlying MCP server (for use with HTTP/SSE transport)
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// New creates a new MCP server with weekly mileage tools
func New(dash Dashboard) *Server {
	logging.Info("MCP server initializing", "name", serverName, "version", serverVersion)

	mcpServer := mcp.NewServer(&mcp.Implementation{
		Name:    serverName,
		Version: serverVersion,
	}, nil)

	s := &Server{
		mcp:  mcpServer,
		dash: dash,
	}

	logging.Debug("Registering MCP tools")
	s.registerTools()

	logging.Debug("Registering MCP resources")
	s.registerResources()

	logging.Debug("Registering MCP prompts")
	s.registerPrompts()

	logging.Info("MCP server initialized", "tools_registered", 3, "resources_registered", 2, "prompts_registered", 2)
	return s
}

// Handler serves the MCP server over HTTP/SSE.
func (s *Server) Handler() http.Handler {
	return mcp.NewSSEHandler(func(r *http.Request) *mcp.Server {
		return s.mcp
	}, nil)
}

// Run starts the MCP server over stdio transport
func (s *Server) Run(ctx context.Context) error {
	logging.Info("MCP server starting")
	defer logging.Info("MCP server stopped")
	return s.mcp.Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) registerTools() {
	logging.Debug("Registering tool", "name", toolWeeklyMileage)
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name: toolWeeklyMileage,
		Description: `Load weekly running mileage from Strava for a time window, Monday-start weeks, newest first.

Use when:
- User asks "How many miles did I run each week?" or "What was my weekly mileage last year?"
- User wants to compare training volume between windows
- User needs a day-by-day split of a week

Parameters:
- period (string): "last month" (28 days), "3 months", "last 6 months", "last year" (364 days) or "all". Default: "last 6 months".
- offset (integer): How many whole periods back to look. 0 is the window ending now. Ignored for "all". Default: 0.

Returns: The resolved window, every week in it (including weeks without runs) with miles, run count and daily miles Monday to Sunday, summary statistics and insights.

Example: {"period": "last month"} or {"period": "3 months", "offset": 1}`,
		Annotations: &mcp.ToolAnnotations{
			Title:           "Get Weekly Mileage",
			ReadOnlyHint:    true,
			IdempotentHint:  true,
			OpenWorldHint:   ptr(true),
			DestructiveHint: ptr(false),
		},
	}, s.getWeeklyMileage)

	logging.Debug("Registering tool", "name", toolDashboardStatus)
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name: toolDashboardStatus,
		Description: `Report what the dashboard is currently showing.

Use when:
- User asks "Am I connected to Strava?" or "What is the dashboard showing?"
- Before other tools, to check that an athlete is signed in

Returns: Status (unauthenticated, authenticating, loading, ready, error), athlete, selected period and offset, window label, summary of the loaded weeks and the error message if any.`,
		Annotations: &mcp.ToolAnnotations{
			Title:           "Get Dashboard Status",
			ReadOnlyHint:    true,
			IdempotentHint:  true,
			OpenWorldHint:   ptr(false),
			DestructiveHint: ptr(false),
		},
	}, s.getDashboardStatus)

	logging.Debug("Registering tool", "name", toolListActivities)
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name: toolListActivities,
		Description: `List the activities loaded for the dashboard's current window, newest first.

Use when:
- User asks "What were my last runs?" about the window on screen

Parameters:
- limit (integer): Number of activities to return. Default: 20, Max: 200.

Returns: Activities with id, name, type, local date, distance, moving time, pace, elevation and heart rate.

Example: {"limit": 5}`,
		Annotations: &mcp.ToolAnnotations{
			Title:           "List Loaded Activities",
			ReadOnlyHint:    true,
			IdempotentHint:  true,
			OpenWorldHint:   ptr(false),
			DestructiveHint: ptr(false),
		},
	}, s.listLoadedActivities)
}

// Tool input/output types

// Default and max limits for activity listings
const (
	defaultActivityLimit = 20
	maxActivityLimit     = strava.MaxPerPage
)

// WeeklyMileageInput selects the window to load
type WeeklyMileageInput struct {
	Period string `json:"period,omitempty" jsonschema:"Time window length. Valid values: 'last month', '3 months', 'last 6 months', 'last year', 'all'. Default: 'last 6 months'."`
	Offset int    `json:"offset,omitempty" jsonschema:"Whole periods back from now. 0 is the current window. Must not be negative. Ignored for 'all'."`
}

// WeeklyMileageOutput is one loaded and aggregated window
type WeeklyMileageOutput struct {
	Window           WindowOutput      `json:"window"`
	Summary          SummaryOutput     `json:"summary"`
	Weeks            []WeekOutput      `json:"weeks"`
	Insights         []Insight         `json:"insights,omitempty"`
	SuggestedActions []SuggestedAction `json:"suggested_actions,omitempty"`
}

// WindowOutput describes a resolved window
type WindowOutput struct {
	Period string `json:"period"`
	Offset int    `json:"offset"`
	Label  string `json:"label"`
	Start  string `json:"start"`
	End    string `json:"end"`
}

// SummaryOutput holds statistics over the window's weeks
type SummaryOutput struct {
	TotalMiles         float64 `json:"total_miles"`
	AverageWeeklyMiles float64 `json:"average_weekly_miles"`
	HighestWeekMiles   float64 `json:"highest_week_miles"`
	MaxDayMiles        float64 `json:"max_day_miles"`
	TotalWeeks         int     `json:"total_weeks"`
	TotalRuns          int     `json:"total_runs"`
	TotalActivities    int     `json:"total_activities"`
	AverageWeeklyRuns  float64 `json:"average_weekly_runs"`
}

// WeekOutput is one Monday-to-Sunday bucket
type WeekOutput struct {
	Week       string    `json:"week"`
	Range      string    `json:"range"`
	Miles      float64   `json:"miles"`
	Runs       int       `json:"runs"`
	Activities int       `json:"activities"`
	DailyMiles []float64 `json:"daily_miles"`
}

// DashboardStatusInput takes no parameters
type DashboardStatusInput struct{}

// DashboardStatusOutput summarizes the dashboard snapshot
type DashboardStatusOutput struct {
	Status           string            `json:"status"`
	Athlete          string            `json:"athlete,omitempty"`
	Period           string            `json:"period"`
	Offset           int               `json:"offset"`
	Window           *WindowOutput     `json:"window,omitempty"`
	Summary          *SummaryOutput    `json:"summary,omitempty"`
	LoadedAt         string            `json:"loaded_at,omitempty"`
	Error            string            `json:"error,omitempty"`
	SuggestedActions []SuggestedAction `json:"suggested_actions,omitempty"`
}

// ListActivitiesInput limits the listing
type ListActivitiesInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"Maximum number of activities to return. Default: 20, Maximum: 200."`
}

// ListActivitiesOutput lists loaded activities
type ListActivitiesOutput struct {
	Window           *WindowOutput     `json:"window,omitempty"`
	Activities       []ActivitySummary `json:"activities"`
	TotalLoaded      int               `json:"total_loaded"`
	SuggestedActions []SuggestedAction `json:"suggested_actions,omitempty"`
}

// ActivitySummary is an activity with display-ready fields
type ActivitySummary struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Type         string `json:"type"`
	Date         string `json:"date"`
	Distance     string `json:"distance"`
	MovingTime   string `json:"moving_time"`
	Pace         string `json:"pace,omitempty"`
	Elevation    string `json:"elevation,omitempty"`
	AvgHeartrate string `json:"avg_heartrate,omitempty"`
}

func (s *Server) getWeeklyMileage(ctx context.Context, req *mcp.CallToolRequest, input WeeklyMileageInput) (*mcp.CallToolResult, WeeklyMileageOutput, error) {
	logging.Info("MCP tool call", "tool", toolWeeklyMileage, "period", input.Period, "offset", input.Offset)

	period := window.DefaultPeriod
	if input.Period != "" {
		p, err := window.ParsePeriod(input.Period)
		if err != nil {
			recordCall(toolWeeklyMileage, err)
			return nil, WeeklyMileageOutput{}, toolError(err)
		}
		period = p
	}

	res, err := s.dash.Fetch(ctx, dashboard.Selection{Period: period, Offset: input.Offset})
	recordCall(toolWeeklyMileage, err)
	if err != nil {
		logging.Error("get_weekly_mileage failed", "period", period, "offset", input.Offset, "error", err)
		return nil, WeeklyMileageOutput{}, toolError(err)
	}

	return nil, WeeklyMileageOutput{
		Window:           windowOutput(res.Window),
		Summary:          summaryOutput(res.Summary),
		Weeks:            weekOutputs(res.Weeks),
		Insights:         weeklyInsights(res.Weeks),
		SuggestedActions: suggestNextActions("weekly_mileage"),
	}, nil
}

func (s *Server) getDashboardStatus(ctx context.Context, req *mcp.CallToolRequest, input DashboardStatusInput) (*mcp.CallToolResult, DashboardStatusOutput, error) {
	logging.Info("MCP tool call", "tool", toolDashboardStatus)
	recordCall(toolDashboardStatus, nil)

	out := statusOutput(s.dash.Snapshot())
	out.SuggestedActions = suggestNextActions("status")
	return nil, out, nil
}

func (s *Server) listLoadedActivities(ctx context.Context, req *mcp.CallToolRequest, input ListActivitiesInput) (*mcp.CallToolResult, ListActivitiesOutput, error) {
	logging.Info("MCP tool call", "tool", toolListActivities, "limit", input.Limit)

	limit := input.Limit
	if limit < 0 {
		err := NewInvalidInputErrorWithDetails("limit must not be negative", "limit")
		recordCall(toolListActivities, err)
		return nil, ListActivitiesOutput{}, err
	}
	if limit == 0 {
		limit = defaultActivityLimit
	}
	limit = min(limit, maxActivityLimit)

	st := s.dash.Snapshot()
	if !st.Authenticated() {
		err := NewUnauthenticatedError()
		recordCall(toolListActivities, err)
		return nil, ListActivitiesOutput{}, err
	}
	recordCall(toolListActivities, nil)

	out := ListActivitiesOutput{
		Activities:       convertActivities(st.Activities[:min(limit, len(st.Activities))]),
		TotalLoaded:      len(st.Activities),
		SuggestedActions: suggestNextActions("activities"),
	}
	if st.HasData() {
		w := windowOutput(st.Window)
		out.Window = &w
	}
	return nil, out, nil
}

func recordCall(tool string, err error) {
	result := metrics.ResultSuccess
	if err != nil {
		result = metrics.ResultFailure
	}
	metrics.MCPToolCallsTotal.WithLabelValues(tool, result).Inc()
}

func statusOutput(st dashboard.State) DashboardStatusOutput {
	out := DashboardStatusOutput{
		Status: st.Status.String(),
		Period: string(st.Selection.Period),
		Offset: st.Selection.Offset,
		Error:  st.ErrorMessage,
	}
	if st.Authenticated() {
		out.Athlete = st.Athlete.DisplayName()
	}
	if st.HasData() {
		w := windowOutput(st.Window)
		sum := summaryOutput(st.Summary())
		out.Window = &w
		out.Summary = &sum
		out.LoadedAt = st.LoadedAt.Format(time.RFC3339)
	}
	return out
}

func windowOutput(w window.Window) WindowOutput {
	return WindowOutput{
		Period: string(w.Period),
		Offset: w.Offset,
		Label:  w.Label(),
		Start:  w.Start.Format(dateLayout),
		End:    w.End.Format(dateLayout),
	}
}

func summaryOutput(sum weekly.Summary) SummaryOutput {
	return SummaryOutput{
		TotalMiles:         units.Round(sum.TotalMiles, 2),
		AverageWeeklyMiles: units.Round(sum.AverageWeeklyMiles, 2),
		HighestWeekMiles:   units.Round(sum.HighestWeekMiles, 2),
		MaxDayMiles:        units.Round(sum.MaxDayMiles, 2),
		TotalWeeks:         sum.TotalWeeks,
		TotalRuns:          sum.TotalRuns,
		TotalActivities:    sum.TotalActivities,
		AverageWeeklyRuns:  units.Round(sum.AverageWeeklyRuns, 1),
	}
}

func weekOutputs(weeks []weekly.Week) []WeekOutput {
	out := make([]WeekOutput, 0, len(weeks))
	for _, w := range weeks {
		days := w.DailyMiles()
		daily := make([]float64, len(days))
		for i, d := range days {
			daily[i] = units.Round(d, 2)
		}
		out = append(out, WeekOutput{
			Week:       w.Key(),
			Range:      units.FormatWeekRange(w.Start, w.End),
			Miles:      units.Round(w.TotalMiles, 2),
			Runs:       w.RunCount,
			Activities: w.ActivityCount,
			DailyMiles: daily,
		})
	}
	return out
}

func convertActivity(a strava.Activity) ActivitySummary {
	summary := ActivitySummary{
		ID:         a.ID,
		Name:       a.Name,
		Type:       a.Type,
		Date:       window.Wall(a.StartDateLocal).Format(dateLayout),
		Distance:   units.FormatDistance(a.Distance),
		MovingTime: units.FormatDuration(a.MovingTime),
	}
	if a.AverageSpeed > 0 {
		summary.Pace = units.FormatPace(a.AverageSpeed)
	}
	if a.TotalElevationGain > 0 {
		summary.Elevation = units.FormatElevation(a.TotalElevationGain)
	}
	if a.HasHeartrate && a.AverageHeartrate > 0 {
		summary.AvgHeartrate = units.FormatHeartrate(a.AverageHeartrate)
	}
	return summary
}

func convertActivities(activities []strava.Activity) []ActivitySummary {
	summaries := make([]ActivitySummary, len(activities))
	for i, a := range activities {
		summaries[i] = convertActivity(a)
	}
	return summaries
}
