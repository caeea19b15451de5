package weekly

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshdurbin/runtracker/internal/strava"
	"github.com/joshdurbin/runtracker/internal/window"
)

// Wednesday
var now = time.Date(2024, time.August, 14, 12, 0, 0, 0, time.UTC)

func at(y int, m time.Month, d, h int) time.Time {
	return time.Date(y, m, d, h, 0, 0, 0, time.UTC)
}

func activity(id int64, meters float64, start time.Time) strava.Activity {
	return strava.Activity{ID: id, Type: strava.TypeRun, Distance: meters, StartDateLocal: start}
}

func resolve(t *testing.T, p window.Period, offset int) window.Window {
	t.Helper()
	w, err := window.Resolve(p, offset, now)
	require.NoError(t, err)
	return w
}

func mondaysBetween(a, b time.Time) int {
	n := 0
	for m := WeekStart(a); !m.After(WeekStart(b)); m = m.AddDate(0, 0, 7) {
		n++
	}
	return n
}

func TestWeekStart(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   time.Time
		want time.Time
	}{
		{"monday midnight", at(2024, 8, 12, 0), at(2024, 8, 12, 0)},
		{"wednesday", at(2024, 8, 14, 15), at(2024, 8, 12, 0)},
		{"sunday", at(2024, 8, 18, 23), at(2024, 8, 12, 0)},
		{"across month", at(2024, 9, 1, 8), at(2024, 8, 26, 0)},
		{"across year", at(2025, 1, 1, 8), at(2024, 12, 30, 0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := WeekStart(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, time.Monday, got.Weekday())
		})
	}
}

func TestWeekEnd(t *testing.T) {
	t.Parallel()

	end := WeekEnd(at(2024, 8, 12, 0))
	assert.Equal(t, time.Date(2024, 8, 18, 23, 59, 59, 999_000_000, time.UTC), end)
	assert.Equal(t, time.Sunday, end.Weekday())
}

func TestBoundaryMembership(t *testing.T) {
	t.Parallel()

	monday := at(2024, 8, 5, 0)
	sundayEnd := WeekEnd(monday)
	records := []strava.Activity{
		activity(1, 1000, monday),
		activity(2, 1000, sundayEnd),
		activity(3, 1000, monday.Add(-time.Millisecond)),
	}

	weeks, err := Aggregate(records, resolve(t, window.LastMonth, 0), now)
	require.NoError(t, err)

	byKey := map[string]Week{}
	for _, w := range weeks {
		byKey[w.Key()] = w
	}
	assert.Equal(t, 2, byKey["2024-08-05"].ActivityCount, "Monday 00:00 and Sunday 23:59:59.999 belong to the same week")
	assert.Equal(t, 1, byKey["2024-07-29"].ActivityCount, "a millisecond earlier belongs to the prior week")
}

func TestAggregateEmptyLastMonth(t *testing.T) {
	t.Parallel()

	w := resolve(t, window.LastMonth, 0)
	weeks, err := Aggregate(nil, w, now)
	require.NoError(t, err)

	assert.Len(t, weeks, 5)
	for _, wk := range weeks {
		assert.Zero(t, wk.TotalMiles)
		assert.Zero(t, wk.ActivityCount)
		assert.NotNil(t, wk.Activities)
	}

	s := Summarize(weeks)
	assert.Zero(t, s.TotalMiles)
	assert.Zero(t, s.AverageWeeklyMiles)
	assert.Equal(t, 5, s.TotalWeeks)
}

func TestAggregateSingleWednesdayRun(t *testing.T) {
	t.Parallel()

	wed := at(2024, 8, 7, 7)
	weeks, err := Aggregate([]strava.Activity{activity(1, 5000, wed)}, resolve(t, window.LastMonth, 0), now)
	require.NoError(t, err)

	var nonZero []Week
	for _, w := range weeks {
		if w.TotalMiles > 0 {
			nonZero = append(nonZero, w)
		}
	}
	require.Len(t, nonZero, 1)

	wk := nonZero[0]
	assert.InDelta(t, 3.107, wk.TotalMiles, 0.001)
	assert.Equal(t, 1, wk.RunCount)
	assert.Equal(t, 5000.0, wk.TotalDistanceMeters)

	days := wk.DailyMiles()
	for i, d := range days {
		if i == 2 {
			assert.InDelta(t, 3.107, d, 0.001)
		} else {
			assert.Zero(t, d, "day %d", i)
		}
	}
}

func TestAggregateProperties(t *testing.T) {
	t.Parallel()

	for _, p := range []window.Period{window.LastMonth, window.ThreeMonths, window.SixMonths, window.LastYear} {
		for offset := 0; offset < 3; offset++ {
			w := resolve(t, p, offset)

			// One record every 3 days plus a few doubled-up days across the window.
			var records []strava.Activity
			var wantMeters float64
			id := int64(0)
			for d := w.End; !d.Before(w.Start); d = d.Add(-71 * time.Hour) {
				id++
				meters := float64(3000 + id*37%5000)
				records = append(records, activity(id, meters, d))
				wantMeters += meters
			}

			weeks, err := Aggregate(records, w, now)
			require.NoError(t, err)

			// Gap free: one bucket per Monday.
			assert.Len(t, weeks, mondaysBetween(w.Start, w.End), "%s offset %d", p, offset)

			var total float64
			for i, wk := range weeks {
				total += wk.TotalMiles
				if i > 0 {
					assert.Equal(t, weeks[i-1].Start.AddDate(0, 0, -7), wk.Start, "descending, consecutive")
				}
				var daySum float64
				for _, d := range wk.DailyMiles() {
					daySum += d
				}
				assert.InDelta(t, wk.TotalMiles, daySum, 1e-9)
			}
			assert.InDelta(t, wantMeters/1609.344, total, 1e-9)

			again, err := Aggregate(records, w, now)
			require.NoError(t, err)
			assert.Equal(t, weeks, again, "idempotent")
		}
	}
}

func TestAggregateAllUsesEarliestBucket(t *testing.T) {
	t.Parallel()

	w := resolve(t, window.All, 0)
	records := []strava.Activity{
		activity(1, 1000, at(2024, 8, 13, 6)),
		activity(2, 1000, at(2024, 6, 4, 6)), // Tuesday, week of Jun 3
	}

	weeks, err := Aggregate(records, w, now)
	require.NoError(t, err)

	assert.Equal(t, "2024-08-12", weeks[0].Key())
	assert.Equal(t, "2024-06-03", weeks[len(weeks)-1].Key())
	assert.Len(t, weeks, 11)
}

func TestAggregateAllEmptyFallsBackTwoYears(t *testing.T) {
	t.Parallel()

	weeks, err := Aggregate(nil, resolve(t, window.All, 0), now)
	require.NoError(t, err)

	assert.Equal(t, mondaysBetween(now.AddDate(-2, 0, 0), now), len(weeks))
	assert.Equal(t, WeekStart(now.AddDate(-2, 0, 0)), weeks[len(weeks)-1].Start)
}

func TestAggregateCountsRunsCaseInsensitively(t *testing.T) {
	t.Parallel()

	day := at(2024, 8, 13, 6)
	records := []strava.Activity{
		{ID: 1, Type: "run", Distance: 1000, StartDateLocal: day},
		{ID: 2, Type: "Ride", Distance: 10000, StartDateLocal: day},
		{ID: 3, Type: "RUN", Distance: 1000, StartDateLocal: day},
	}

	weeks, err := Aggregate(records, resolve(t, window.LastMonth, 0), now)
	require.NoError(t, err)

	assert.Equal(t, 3, weeks[0].ActivityCount)
	assert.Equal(t, 2, weeks[0].RunCount)
	assert.Equal(t, []int64{1, 2, 3}, []int64{weeks[0].Activities[0].ID, weeks[0].Activities[1].ID, weeks[0].Activities[2].ID}, "source order kept")
}

func TestAggregateRejectsMissingStart(t *testing.T) {
	t.Parallel()

	_, err := Aggregate([]strava.Activity{{ID: 9, Distance: 100}}, resolve(t, window.LastMonth, 0), now)
	assert.ErrorIs(t, err, ErrMissingStartTime)
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	mile := 1609.344
	weeks, err := Aggregate([]strava.Activity{
		activity(1, 3*mile, at(2024, 8, 13, 6)),
		activity(2, 5*mile, at(2024, 8, 13, 18)),
		activity(3, 4*mile, at(2024, 8, 6, 6)),
	}, resolve(t, window.LastMonth, 0), now)
	require.NoError(t, err)

	s := Summarize(weeks)
	assert.InDelta(t, 12, s.TotalMiles, 1e-9)
	assert.InDelta(t, 8, s.HighestWeekMiles, 1e-9)
	assert.InDelta(t, 8, s.MaxDayMiles, 1e-9)
	assert.InDelta(t, 12.0/5, s.AverageWeeklyMiles, 1e-9)
	assert.Equal(t, 3, s.TotalRuns)
	assert.InDelta(t, 3.0/5, s.AverageWeeklyRuns, 1e-9)

	empty := Summarize(nil)
	assert.Zero(t, empty.AverageWeeklyMiles)
	assert.Zero(t, empty.HighestWeekMiles)
	assert.False(t, math.IsNaN(empty.AverageWeeklyRuns))
}

func TestWeekHelpers(t *testing.T) {
	t.Parallel()

	wk := Week{TotalMiles: 5}
	assert.InDelta(t, 50, wk.BarPercent(10), 1e-9)
	assert.Zero(t, wk.BarPercent(0))

	for i := 0; i < 5; i++ {
		wk.Activities = append(wk.Activities, strava.Activity{ID: int64(i)})
	}
	shown, rest := wk.Preview(3)
	assert.Len(t, shown, 3)
	assert.Equal(t, 2, rest)

	shown, rest = wk.Preview(10)
	assert.Len(t, shown, 5)
	assert.Zero(t, rest)
}

func TestTimeline(t *testing.T) {
	t.Parallel()

	weeks, err := Aggregate([]strava.Activity{activity(1, 1609.344, at(2024, 8, 13, 6))}, resolve(t, window.LastMonth, 0), now)
	require.NoError(t, err)

	keys, miles := Timeline(weeks)
	require.Len(t, keys, len(weeks))
	assert.Equal(t, weeks[len(weeks)-1].Key(), keys[0], "oldest first")
	assert.Equal(t, "2024-08-12", keys[len(keys)-1])
	assert.InDelta(t, 1, miles[len(miles)-1], 1e-9)
}
