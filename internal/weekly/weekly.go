// Package weekly groups activities into Monday-start week buckets and
// derives the dashboard's summary statistics from them.
//
// Every function here is a pure computation over floating wall-clock times
// (see window.Wall). Nothing is cached; callers recompute from the buckets
// whenever they need a value.
package weekly

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/joshdurbin/runtracker/internal/strava"
	"github.com/joshdurbin/runtracker/internal/units"
	"github.com/joshdurbin/runtracker/internal/window"
)

// KeyLayout formats a week's key from its Monday.
const KeyLayout = "2006-01-02"

// allFallbackYears bounds the gap fill of an empty "all" window.
const allFallbackYears = 2

// ErrMissingStartTime is returned for an activity with no local start time.
var ErrMissingStartTime = errors.New("activity has no local start time")

// Week is one Monday-to-Sunday bucket.
type Week struct {
	Start               time.Time
	End                 time.Time
	TotalDistanceMeters float64
	TotalMiles          float64
	ActivityCount       int
	RunCount            int
	Activities          []strava.Activity
}

// Key identifies the week by its Monday, e.g. "2024-01-01".
func (w Week) Key() string {
	return w.Start.Format(KeyLayout)
}

// DailyMiles splits the week's mileage by day, Monday first.
func (w Week) DailyMiles() [7]float64 {
	var days [7]float64
	for _, a := range w.Activities {
		days[DayIndex(window.Wall(a.StartDateLocal))] += units.MetersToMiles(a.Distance)
	}
	return days
}

// BarPercent is the week's mileage as a percentage of highest, for sizing
// bars against the biggest week on screen.
func (w Week) BarPercent(highest float64) float64 {
	if highest <= 0 {
		return 0
	}
	return w.TotalMiles / highest * 100
}

// Preview returns up to n activities and the number left out.
func (w Week) Preview(n int) ([]strava.Activity, int) {
	if n < 0 {
		n = 0
	}
	if len(w.Activities) <= n {
		return w.Activities, 0
	}
	return w.Activities[:n], len(w.Activities) - n
}

// DayIndex maps a weekday to a Monday-first index: Monday 0, Sunday 6.
func DayIndex(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// WeekStart returns midnight on the Monday of t's week.
func WeekStart(t time.Time) time.Time {
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return midnight.AddDate(0, 0, -DayIndex(t))
}

// WeekEnd returns the last millisecond of the Sunday of the week starting at
// start.
func WeekEnd(start time.Time) time.Time {
	sunday := start.AddDate(0, 0, 6)
	return time.Date(sunday.Year(), sunday.Month(), sunday.Day(), 23, 59, 59, int(999*time.Millisecond), sunday.Location())
}

// Aggregate buckets records by week and fills every week the window covers,
// returning the buckets newest first. Records are expected to be filtered
// to w already; their mileage is summed at full precision.
//
// For the "all" window the first week is the earliest bucket, or two years
// before now when there are no records.
func Aggregate(records []strava.Activity, w window.Window, now time.Time) ([]Week, error) {
	buckets := make(map[string]*Week)

	for i, a := range records {
		if a.StartDateLocal.IsZero() {
			return nil, fmt.Errorf("record %d (id %d): %w", i, a.ID, ErrMissingStartTime)
		}
		start := WeekStart(window.Wall(a.StartDateLocal))
		key := start.Format(KeyLayout)

		b, ok := buckets[key]
		if !ok {
			b = &Week{Start: start, End: WeekEnd(start)}
			buckets[key] = b
		}
		b.TotalDistanceMeters += a.Distance
		b.TotalMiles += units.MetersToMiles(a.Distance)
		b.ActivityCount++
		if a.IsType(strava.TypeRun) {
			b.RunCount++
		}
		b.Activities = append(b.Activities, a)
	}

	first, last := gapFillRange(buckets, w, now)
	for monday := first; !monday.After(last); monday = monday.AddDate(0, 0, 7) {
		key := monday.Format(KeyLayout)
		if _, ok := buckets[key]; !ok {
			buckets[key] = &Week{Start: monday, End: WeekEnd(monday)}
		}
	}

	weeks := make([]Week, 0, len(buckets))
	for _, b := range buckets {
		if b.Activities == nil {
			b.Activities = []strava.Activity{}
		}
		weeks = append(weeks, *b)
	}
	sort.Slice(weeks, func(i, j int) bool {
		return weeks[i].Start.After(weeks[j].Start)
	})
	return weeks, nil
}

func gapFillRange(buckets map[string]*Week, w window.Window, now time.Time) (time.Time, time.Time) {
	last := WeekStart(w.End)
	if w.Period != window.All {
		return WeekStart(w.Start), last
	}

	if len(buckets) == 0 {
		return WeekStart(window.Wall(now).AddDate(-allFallbackYears, 0, 0)), last
	}
	var earliest time.Time
	for _, b := range buckets {
		if earliest.IsZero() || b.Start.Before(earliest) {
			earliest = b.Start
		}
	}
	return earliest, last
}

// Summary holds statistics over a bucket sequence.
type Summary struct {
	TotalMiles         float64
	AverageWeeklyMiles float64
	HighestWeekMiles   float64
	MaxDayMiles        float64
	TotalWeeks         int
	TotalRuns          int
	TotalActivities    int
	AverageWeeklyRuns  float64
}

// Summarize reduces weeks to their summary. Averages are zero for an empty
// sequence.
func Summarize(weeks []Week) Summary {
	s := Summary{TotalWeeks: len(weeks)}
	for _, w := range weeks {
		s.TotalMiles += w.TotalMiles
		s.TotalRuns += w.RunCount
		s.TotalActivities += w.ActivityCount
		s.HighestWeekMiles = max(s.HighestWeekMiles, w.TotalMiles)
		for _, d := range w.DailyMiles() {
			s.MaxDayMiles = max(s.MaxDayMiles, d)
		}
	}
	if len(weeks) > 0 {
		s.AverageWeeklyMiles = s.TotalMiles / float64(len(weeks))
		s.AverageWeeklyRuns = float64(s.TotalRuns) / float64(len(weeks))
	}
	return s
}

// Timeline returns week keys and mileage oldest first, the order charts
// plot them in.
func Timeline(weeks []Week) ([]string, []float64) {
	keys := make([]string, len(weeks))
	miles := make([]float64, len(weeks))
	for i, w := range weeks {
		j := len(weeks) - 1 - i
		keys[j] = w.Key()
		miles[j] = w.TotalMiles
	}
	return keys, miles
}
