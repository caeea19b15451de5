package server

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/joshdurbin/runtracker/internal/logging"
	"github.com/joshdurbin/runtracker/internal/window"
)

// registerPrompts registers all MCP prompts for the server
func (s *Server) registerPrompts() {
	s.mcp.AddPrompt(&mcp.Prompt{
		Name:        "weekly_mileage_review",
		Description: "Review weekly running mileage for a period with trends and recommendations",
		Arguments: []*mcp.PromptArgument{
			{
				Name:        "period",
				Description: "Window to review: 'last month', '3 months', 'last 6 months', 'last year' or 'all'",
				Required:    false,
			},
		},
	}, s.weeklyMileageReviewPrompt)

	s.mcp.AddPrompt(&mcp.Prompt{
		Name:        "period_comparison",
		Description: "Compare the current window's mileage with the window before it",
		Arguments: []*mcp.PromptArgument{
			{
				Name:        "period",
				Description: "Window length to compare: 'last month', '3 months', 'last 6 months' or 'last year'",
				Required:    false,
			},
		},
	}, s.periodComparisonPrompt)

	logging.Debug("MCP prompts registered", "count", 2)
}

// promptPeriod reads the period argument, falling back to def when it is
// missing or not a known period.
func promptPeriod(req *mcp.GetPromptRequest, def window.Period) window.Period {
	if req.Params == nil || req.Params.Arguments == nil {
		return def
	}
	p, err := window.ParsePeriod(req.Params.Arguments["period"])
	if err != nil {
		return def
	}
	return p
}

func (s *Server) weeklyMileageReviewPrompt(ctx context.Context, req *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	period := promptPeriod(req, window.DefaultPeriod)

	logging.Info("MCP prompt requested", "prompt", "weekly_mileage_review", "period", period)

	promptText := fmt.Sprintf(`Please review my weekly running mileage for the "%s" window.

Use the following tools to gather data:
1. **get_weekly_mileage** with period="%s" for the weekly breakdown and summary
2. **list_loaded_activities** if you need the individual runs behind a week

Then provide:
- **Summary**: Total miles, average weekly miles, highest week and runs per week
- **Trend**: Is weekly mileage building, steady or dropping off?
- **Gaps**: Weeks without runs and what surrounds them
- **Load Check**: Any jump of more than 10-15%% week over week
- **Recommendations**: Mileage targets for the next few weeks based on the data

Please be specific with numbers and use the actual data from the tools.`, period.DisplayName(), period)

	return &mcp.GetPromptResult{
		Description: "Weekly mileage review prompt",
		Messages: []*mcp.PromptMessage{
			{
				Role:    "user",
				Content: &mcp.TextContent{Text: promptText},
			},
		},
	}, nil
}

func (s *Server) periodComparisonPrompt(ctx context.Context, req *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	period := promptPeriod(req, window.LastMonth)
	if period == window.All {
		period = window.LastMonth
	}

	logging.Info("MCP prompt requested", "prompt", "period_comparison", "period", period)

	promptText := fmt.Sprintf(`Please compare my running in the current "%s" window with the window before it.

Use the following tools to gather data:
1. **get_weekly_mileage** with period="%s" and offset=0 for the current window
2. **get_weekly_mileage** with period="%s" and offset=1 for the previous window

Then provide:
- **Side by Side**: Total miles, average weekly miles, runs per week and highest week for both windows
- **Change**: Percentage change for each figure
- **Consistency**: Weeks without runs in each window
- **Takeaway**: What the difference says about my training

Please be specific with numbers and use the actual data from the tools.`, period.DisplayName(), period, period)

	return &mcp.GetPromptResult{
		Description: "Period comparison prompt",
		Messages: []*mcp.PromptMessage{
			{
				Role:    "user",
				Content: &mcp.TextContent{Text: promptText},
			},
		},
	}, nil
}
