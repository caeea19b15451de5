package web

import (
	"strconv"
	"time"

	"github.com/joshdurbin/runtracker/internal/dashboard"
	"github.com/joshdurbin/runtracker/internal/strava"
	"github.com/joshdurbin/runtracker/internal/units"
	"github.com/joshdurbin/runtracker/internal/weekly"
	"github.com/joshdurbin/runtracker/internal/window"
)

// previewSize is how many activities a week row lists before "+N more".
const previewSize = 3

var dayNames = [7]string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

type pageView struct {
	Athlete     string
	Status      string
	Loading     bool
	LoadingMore bool
	Error       string

	Periods      []periodOption
	PeriodSlug   string
	Offset       int
	OlderOffset  int
	NewerOffset  int
	Label        string
	CanGoBack    bool
	CanGoForward bool

	HasData    bool
	Summary    summaryView
	Weeks      []weekView
	Activities []activityView
	ChartURL   string
}

type periodOption struct {
	Slug     string
	Name     string
	Selected bool
}

type summaryView struct {
	TotalMiles         string
	AverageWeeklyMiles string
	HighestWeekMiles   string
	TotalWeeks         int
	TotalRuns          int
	AverageWeeklyRuns  string
}

type weekView struct {
	Key        string
	Range      string
	Miles      string
	Runs       int
	Activities int
	BarPercent float64
	Days       []dayView
	Preview    []activityView
	More       int
}

type dayView struct {
	Name    string
	Miles   string
	Percent float64
}

type activityView struct {
	ID         int64
	Name       string
	Date       string
	Type       string
	Distance   string
	MovingTime string
	Pace       string
	Elevation  string
	Heartrate  string
	HasRoute   bool
}

func newPageView(s dashboard.State, now time.Time) pageView {
	v := pageView{
		Athlete:     s.Athlete.DisplayName(),
		Status:      s.Status.String(),
		Loading:     s.Status == dashboard.StatusLoading,
		LoadingMore: s.LoadingMore,
		Error:       s.ErrorMessage,
		PeriodSlug:  s.Selection.Period.Slug(),
		Offset:      s.Selection.Offset,
		OlderOffset: s.Selection.Offset + 1,
		NewerOffset: max(s.Selection.Offset-1, 0),
		HasData:     s.HasData(),
		ChartURL:    "/charts/weekly",
	}

	for _, p := range window.Periods {
		v.Periods = append(v.Periods, periodOption{
			Slug:     p.Slug(),
			Name:     p.DisplayName(),
			Selected: p == s.Selection.Period,
		})
	}

	// Navigation follows the pending selection so the label moves as soon
	// as the user clicks.
	if w, err := window.Resolve(s.Selection.Period, s.Selection.Offset, now); err == nil {
		v.Label = w.Label()
		v.CanGoBack = w.CanGoBack()
		v.CanGoForward = w.CanGoForward()
	}

	if !v.HasData {
		return v
	}

	sum := s.Summary()
	v.Summary = summaryView{
		TotalMiles:         units.FormatMiles(sum.TotalMiles),
		AverageWeeklyMiles: units.FormatMiles(sum.AverageWeeklyMiles),
		HighestWeekMiles:   units.FormatMiles(sum.HighestWeekMiles),
		TotalWeeks:         sum.TotalWeeks,
		TotalRuns:          sum.TotalRuns,
		AverageWeeklyRuns:  formatOneDecimal(sum.AverageWeeklyRuns),
	}
	for _, w := range s.Weeks {
		v.Weeks = append(v.Weeks, newWeekView(w, sum))
	}
	return v
}

func newWeekView(w weekly.Week, sum weekly.Summary) weekView {
	v := weekView{
		Key:        w.Key(),
		Range:      units.FormatWeekRange(w.Start, w.End),
		Miles:      units.FormatMiles(w.TotalMiles),
		Runs:       w.RunCount,
		Activities: w.ActivityCount,
		BarPercent: w.BarPercent(sum.HighestWeekMiles),
	}

	for i, miles := range w.DailyMiles() {
		d := dayView{Name: dayNames[i], Miles: units.FormatMiles(miles)}
		if sum.MaxDayMiles > 0 {
			d.Percent = miles / sum.MaxDayMiles * 100
		}
		v.Days = append(v.Days, d)
	}

	preview, more := w.Preview(previewSize)
	for _, a := range preview {
		v.Preview = append(v.Preview, newActivityView(a))
	}
	v.More = more
	return v
}

func newActivityView(a strava.Activity) activityView {
	v := activityView{
		ID:         a.ID,
		Name:       a.Name,
		Date:       window.Wall(a.StartDateLocal).Format("Mon Jan 2, 2006"),
		Type:       a.Type,
		Distance:   units.FormatDistance(a.Distance),
		MovingTime: units.FormatDuration(a.MovingTime),
		Pace:       units.FormatPace(a.AverageSpeed),
		HasRoute:   a.HasRoute(),
	}
	if a.TotalElevationGain > 0 {
		v.Elevation = units.FormatElevation(a.TotalElevationGain)
	}
	if a.HasHeartrate && a.AverageHeartrate > 0 {
		v.Heartrate = units.FormatHeartrate(a.AverageHeartrate)
	}
	return v
}

// apiState is the JSON form of the dashboard state.
type apiState struct {
	Status       string              `json:"status"`
	Athlete      *strava.Athlete     `json:"athlete,omitempty"`
	Selection    dashboard.Selection `json:"selection"`
	Window       *apiWindow          `json:"window,omitempty"`
	LoadingMore  bool                `json:"loading_more"`
	Error        string              `json:"error,omitempty"`
	RequestID    uint64              `json:"request_id"`
	LoadedAt     *time.Time          `json:"loaded_at,omitempty"`
	Summary      *apiSummary         `json:"summary,omitempty"`
	Weeks        []apiWeek           `json:"weeks,omitempty"`
	CanGoBack    bool                `json:"can_go_back"`
	CanGoForward bool                `json:"can_go_forward"`
}

type apiWindow struct {
	Period string    `json:"period"`
	Offset int       `json:"offset"`
	Label  string    `json:"label"`
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
}

type apiSummary struct {
	TotalMiles         float64 `json:"total_miles"`
	AverageWeeklyMiles float64 `json:"average_weekly_miles"`
	HighestWeekMiles   float64 `json:"highest_week_miles"`
	MaxDayMiles        float64 `json:"max_day_miles"`
	TotalWeeks         int     `json:"total_weeks"`
	TotalRuns          int     `json:"total_runs"`
	TotalActivities    int     `json:"total_activities"`
	AverageWeeklyRuns  float64 `json:"average_weekly_runs"`
}

type apiWeek struct {
	Key         string     `json:"key"`
	Start       time.Time  `json:"start"`
	End         time.Time  `json:"end"`
	Miles       float64    `json:"miles"`
	Meters      float64    `json:"meters"`
	Runs        int        `json:"runs"`
	Activities  int        `json:"activities"`
	DailyMiles  [7]float64 `json:"daily_miles"`
	ActivityIDs []int64    `json:"activity_ids"`
}

func newAPIState(s dashboard.State, now time.Time) apiState {
	v := apiState{
		Status:      s.Status.String(),
		Selection:   s.Selection,
		LoadingMore: s.LoadingMore,
		Error:       s.ErrorMessage,
		RequestID:   s.RequestID,
	}
	if s.Authenticated() {
		athlete := s.Athlete
		v.Athlete = &athlete
	}
	if w, err := window.Resolve(s.Selection.Period, s.Selection.Offset, now); err == nil {
		v.CanGoBack = w.CanGoBack()
		v.CanGoForward = w.CanGoForward()
	}
	if !s.HasData() {
		return v
	}

	loadedAt := s.LoadedAt
	v.LoadedAt = &loadedAt
	v.Window = &apiWindow{
		Period: s.Window.Period.Slug(),
		Offset: s.Window.Offset,
		Label:  s.Window.Label(),
		Start:  s.Window.Start,
		End:    s.Window.End,
	}
	sum := s.Summary()
	v.Summary = &apiSummary{
		TotalMiles:         sum.TotalMiles,
		AverageWeeklyMiles: sum.AverageWeeklyMiles,
		HighestWeekMiles:   sum.HighestWeekMiles,
		MaxDayMiles:        sum.MaxDayMiles,
		TotalWeeks:         sum.TotalWeeks,
		TotalRuns:          sum.TotalRuns,
		TotalActivities:    sum.TotalActivities,
		AverageWeeklyRuns:  sum.AverageWeeklyRuns,
	}
	v.Weeks = make([]apiWeek, 0, len(s.Weeks))
	for _, w := range s.Weeks {
		ids := make([]int64, 0, len(w.Activities))
		for _, a := range w.Activities {
			ids = append(ids, a.ID)
		}
		v.Weeks = append(v.Weeks, apiWeek{
			Key:         w.Key(),
			Start:       w.Start,
			End:         w.End,
			Miles:       w.TotalMiles,
			Meters:      w.TotalDistanceMeters,
			Runs:        w.RunCount,
			Activities:  w.ActivityCount,
			DailyMiles:  w.DailyMiles(),
			ActivityIDs: ids,
		})
	}
	return v
}

func formatOneDecimal(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}
