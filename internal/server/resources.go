package server

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/joshdurbin/runtracker/internal/logging"
	"github.com/joshdurbin/runtracker/internal/weekly"
)

const (
	uriCurrentWeek = "runtracker://weeks/current"
	uriStatus      = "runtracker://dashboard/status"
)

// registerResources registers all MCP resources for the server
func (s *Server) registerResources() {
	s.mcp.AddResource(&mcp.Resource{
		URI:         uriCurrentWeek,
		Name:        "current_week",
		Description: "This week's mileage, runs and daily split as loaded by the dashboard",
		MIMEType:    "application/json",
	}, s.readCurrentWeek)

	s.mcp.AddResource(&mcp.Resource{
		URI:         uriStatus,
		Name:        "dashboard_status",
		Description: "Dashboard status, selection and summary of the loaded window",
		MIMEType:    "application/json",
	}, s.readStatus)

	logging.Debug("MCP resources registered", "count", 2)
}

// CurrentWeekOutput is the week containing today plus its activities
type CurrentWeekOutput struct {
	WeekOutput
	ActivityList []ActivitySummary `json:"activity_list"`
}

// readCurrentWeek returns the current week from the dashboard snapshot. Only
// a window ending now holds the current week.
func (s *Server) readCurrentWeek(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	logging.Info("MCP resource read", "resource", "current_week")

	st := s.dash.Snapshot()
	if !st.HasData() || st.Window.Offset != 0 || len(st.Weeks) == 0 {
		return jsonResource(uriCurrentWeek, map[string]string{
			"error": "The dashboard has not loaded the current window",
		})
	}

	week := st.Weeks[0]
	out := CurrentWeekOutput{
		WeekOutput:   weekOutputs([]weekly.Week{week})[0],
		ActivityList: convertActivities(week.Activities),
	}
	return jsonResource(uriCurrentWeek, out)
}

func (s *Server) readStatus(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	logging.Info("MCP resource read", "resource", "dashboard_status")

	return jsonResource(uriStatus, statusOutput(s.dash.Snapshot()))
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	jsonData, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, NewInternalErrorWithCause("failed to marshal resource", err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{
			{
				URI:      uri,
				MIMEType: "application/json",
				Text:     string(jsonData),
			},
		},
	}, nil
}
