package server

import (
	"fmt"
	"math"

	"github.com/joshdurbin/runtracker/internal/weekly"
)

// Insight represents a single AI-friendly insight about the data
type Insight struct {
	Type    string `json:"type"`    // e.g., "trend", "achievement", "warning", "suggestion"
	Message string `json:"message"` // Human-readable insight
}

// SuggestedAction represents a suggested next tool call
type SuggestedAction struct {
	Tool        string `json:"tool"`        // Tool name to call
	Description string `json:"description"` // Why this action is suggested
	Priority    string `json:"priority"`    // "high", "medium", "low"
}

// weeklyInsights looks at the newest week against the rest of the
// sequence. weeks are newest first, as the aggregation returns them.
func weeklyInsights(weeks []weekly.Week) []Insight {
	insights := make([]Insight, 0)
	if len(weeks) < 2 {
		return insights
	}

	latest, previous := weeks[0], weeks[1]
	rest := weekly.Summarize(weeks[1:])

	insights = append(insights, trainingLoadInsights(latest.TotalMiles, rest.AverageWeeklyMiles, latest.RunCount, rest.AverageWeeklyRuns)...)
	insights = append(insights, changeInsights(latest.TotalMiles, previous.TotalMiles, "weekly mileage")...)
	insights = append(insights, consistencyInsights(weeks)...)
	return insights
}

// changeInsights describes the move from previous to current.
func changeInsights(current, previous float64, metric string) []Insight {
	var insights []Insight
	if previous == 0 {
		return insights
	}

	change := (current - previous) / previous * 100
	abs := math.Abs(change)

	switch {
	case abs < 5:
		insights = append(insights, Insight{
			Type:    "trend",
			Message: fmt.Sprintf("Your %s is stable (%.1f%% change)", metric, change),
		})
	case change > 0:
		intensity := "up"
		if abs > 20 {
			intensity = "sharply up"
		}
		insights = append(insights, Insight{
			Type:    "trend",
			Message: fmt.Sprintf("Your %s is %s %.1f%% on the week before", metric, intensity, abs),
		})
	default:
		intensity := "down"
		if abs > 20 {
			intensity = "sharply down"
		}
		insights = append(insights, Insight{
			Type:    "trend",
			Message: fmt.Sprintf("Your %s is %s %.1f%% on the week before", metric, intensity, abs),
		})
	}
	return insights
}

// trainingLoadInsights compares one week's volume with an average week.
func trainingLoadInsights(weekMiles, avgMiles float64, weekRuns int, avgRuns float64) []Insight {
	var insights []Insight
	if avgMiles == 0 {
		return insights
	}

	ratio := weekMiles / avgMiles
	switch {
	case ratio > 1.3:
		insights = append(insights, Insight{
			Type:    "warning",
			Message: fmt.Sprintf("This week is %.0f%% above your average mileage, consider recovery", (ratio-1)*100),
		})
	case ratio > 1.1:
		insights = append(insights, Insight{
			Type:    "trend",
			Message: fmt.Sprintf("This week is %.0f%% above your average mileage", (ratio-1)*100),
		})
	case ratio < 0.7:
		insights = append(insights, Insight{
			Type:    "suggestion",
			Message: fmt.Sprintf("This week is %.0f%% below your average mileage. Planned recovery or time to ramp up?", (1-ratio)*100),
		})
	case ratio < 0.9:
		insights = append(insights, Insight{
			Type:    "trend",
			Message: fmt.Sprintf("This week is slightly below your average mileage (%.0f%%)", (1-ratio)*100),
		})
	default:
		insights = append(insights, Insight{
			Type:    "trend",
			Message: "This week's mileage is consistent with your average",
		})
	}

	if avgRuns > 0 && float64(weekRuns) > avgRuns*1.5 {
		insights = append(insights, Insight{
			Type:    "trend",
			Message: fmt.Sprintf("Run frequency is high (%d this week vs %.1f avg)", weekRuns, avgRuns),
		})
	}
	return insights
}

// consistencyInsights reports the current streak of weeks with at least one
// run and any weeks without one.
func consistencyInsights(weeks []weekly.Week) []Insight {
	var insights []Insight

	streak := 0
	for _, w := range weeks {
		if w.RunCount == 0 {
			break
		}
		streak++
	}

	empty := 0
	for _, w := range weeks {
		if w.RunCount == 0 {
			empty++
		}
	}

	switch {
	case streak == len(weeks):
		insights = append(insights, Insight{
			Type:    "achievement",
			Message: fmt.Sprintf("You ran every week of the last %d", len(weeks)),
		})
	case streak >= 4:
		insights = append(insights, Insight{
			Type:    "achievement",
			Message: fmt.Sprintf("%d-week running streak", streak),
		})
	}
	if empty > 0 {
		insights = append(insights, Insight{
			Type:    "trend",
			Message: fmt.Sprintf("%d of %d weeks had no runs", empty, len(weeks)),
		})
	}
	return insights
}

// suggestNextActions suggests logical next tool calls based on context
func suggestNextActions(context string) []SuggestedAction {
	suggestions := make([]SuggestedAction, 0)

	switch context {
	case "weekly_mileage":
		suggestions = append(suggestions,
			SuggestedAction{
				Tool:        "get_weekly_mileage",
				Description: "Compare with the previous window using offset + 1",
				Priority:    "high",
			},
			SuggestedAction{
				Tool:        "list_loaded_activities",
				Description: "See the runs behind the dashboard's current window",
				Priority:    "low",
			},
		)
	case "status":
		suggestions = append(suggestions,
			SuggestedAction{
				Tool:        "get_weekly_mileage",
				Description: "Load weekly mileage for any period",
				Priority:    "high",
			},
		)
	case "activities":
		suggestions = append(suggestions,
			SuggestedAction{
				Tool:        "get_weekly_mileage",
				Description: "Roll these activities up into weekly totals",
				Priority:    "medium",
			},
		)
	}

	return suggestions
}
