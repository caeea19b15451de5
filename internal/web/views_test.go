package web

import (
	"testing"
	"time"

	"github.com/joshdurbin/runtracker/internal/dashboard"
	"github.com/joshdurbin/runtracker/internal/strava"
	"github.com/joshdurbin/runtracker/internal/weekly"
	"github.com/joshdurbin/runtracker/internal/window"
)

func TestWeekViewPreview(t *testing.T) {
	t.Parallel()

	monday := time.Date(2024, 8, 12, 0, 0, 0, 0, time.UTC)
	week := weekly.Week{Start: monday, End: weekly.WeekEnd(monday), TotalMiles: 10}
	for i := 0; i < 5; i++ {
		week.Activities = append(week.Activities, strava.Activity{
			ID:             int64(i),
			Type:           "Run",
			Distance:       3218.688, // 2 mi
			StartDateLocal: monday.AddDate(0, 0, i).Add(7 * time.Hour),
		})
	}

	v := newWeekView(week, weekly.Summary{HighestWeekMiles: 20, MaxDayMiles: 4})

	if len(v.Preview) != previewSize || v.More != 2 {
		t.Errorf("preview = %d, more = %d", len(v.Preview), v.More)
	}
	if v.BarPercent != 50 {
		t.Errorf("BarPercent = %v, want 50", v.BarPercent)
	}
	if len(v.Days) != 7 || v.Days[0].Name != "Mon" || v.Days[6].Name != "Sun" {
		t.Fatalf("days = %+v", v.Days)
	}
	if v.Days[0].Percent != 50 || v.Days[5].Percent != 0 {
		t.Errorf("day percents = %v / %v", v.Days[0].Percent, v.Days[5].Percent)
	}
	if v.Days[0].Miles != "2.0 mi" {
		t.Errorf("Mon miles = %q", v.Days[0].Miles)
	}
}

func TestActivityViewOptionalFields(t *testing.T) {
	t.Parallel()

	v := newActivityView(strava.Activity{Name: "Treadmill", Distance: 5000, AverageSpeed: 0})
	if v.Elevation != "" || v.Heartrate != "" || v.HasRoute {
		t.Errorf("optional fields should be empty: %+v", v)
	}
	if v.Pace != "-" {
		t.Errorf("Pace = %q, want -", v.Pace)
	}
}

func TestPageViewNavigation(t *testing.T) {
	t.Parallel()

	state := dashboard.State{
		Status:    dashboard.StatusReady,
		Selection: dashboard.Selection{Period: window.SixMonths, Offset: 2},
	}
	v := newPageView(state, testNow)

	if v.Label != "12 months ago" {
		t.Errorf("Label = %q", v.Label)
	}
	if !v.CanGoBack || !v.CanGoForward {
		t.Error("both directions should be available at offset 2")
	}
	if v.OlderOffset != 3 || v.NewerOffset != 1 {
		t.Errorf("offsets = %d/%d", v.OlderOffset, v.NewerOffset)
	}
	if v.PeriodSlug != "last-6-months" {
		t.Errorf("PeriodSlug = %q", v.PeriodSlug)
	}

	state.Selection = dashboard.Selection{Period: window.All}
	v = newPageView(state, testNow)
	if v.Label != "All Time" || v.CanGoBack || v.CanGoForward {
		t.Errorf("all: label=%q back=%v forward=%v", v.Label, v.CanGoBack, v.CanGoForward)
	}
}
