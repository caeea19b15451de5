package web

import (
	"bytes"
	"math"
	"net/http"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/joshdurbin/runtracker/internal/logging"
	"github.com/joshdurbin/runtracker/internal/units"
	"github.com/joshdurbin/runtracker/internal/weekly"
	"github.com/joshdurbin/runtracker/internal/window"
)

const chartTheme = "macarons"

// weeklyChart plots weekly mileage oldest to newest.
func weeklyChart(weeks []weekly.Week, w window.Window) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Theme: chartTheme}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Weekly Mileage",
			Subtitle: w.Period.DisplayName() + " · " + w.Label(),
		}),
		charts.WithXAxisOpts(opts.XAxis{
			AxisLabel: &opts.AxisLabel{
				Rotate: 45,
			},
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Name:         "Miles",
			NameLocation: "middle",
			NameGap:      50,
		}),
		charts.WithTooltipOpts(opts.Tooltip{
			Show:    opts.Bool(true),
			Trigger: "axis",
			AxisPointer: &opts.AxisPointer{
				Type: "shadow",
			},
		}),
	)

	keys, miles := weekly.Timeline(weeks)
	bar.SetXAxis(keys)
	bar.AddSeries("Miles", barItems(miles))
	return bar
}

// dayChart plots one week's mileage by day. The y axis is shared across
// weeks so the bars compare between charts.
func dayChart(week weekly.Week, maxDayMiles float64) *charts.Bar {
	yAxis := opts.YAxis{
		Name:         "Miles",
		NameLocation: "middle",
		NameGap:      40,
	}
	if maxDayMiles > 0 {
		yAxis.Max = math.Ceil(maxDayMiles)
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Theme: chartTheme}),
		charts.WithTitleOpts(opts.Title{
			Title:    units.FormatWeekRange(week.Start, week.End),
			Subtitle: units.FormatMiles(week.TotalMiles),
		}),
		charts.WithYAxisOpts(yAxis),
		charts.WithTooltipOpts(opts.Tooltip{
			Show:    opts.Bool(true),
			Trigger: "axis",
		}),
	)

	days := week.DailyMiles()
	bar.SetXAxis(dayNames[:])
	bar.AddSeries("Miles", barItems(days[:]))
	return bar
}

func barItems(values []float64) []opts.BarData {
	items := make([]opts.BarData, 0, len(values))
	for _, v := range values {
		items = append(items, opts.BarData{Value: units.Round(v, 2)})
	}
	return items
}

func (s *Server) handleWeeklyChart(w http.ResponseWriter, r *http.Request) {
	state := s.dash.Snapshot()
	if !state.HasData() {
		http.Error(w, "No activities loaded", http.StatusNotFound)
		return
	}
	renderChart(w, weeklyChart(state.Weeks, state.Window))
}

func (s *Server) handleWeekChart(w http.ResponseWriter, r *http.Request) {
	state := s.dash.Snapshot()
	key := r.PathValue("key")
	for _, week := range state.Weeks {
		if week.Key() == key {
			renderChart(w, dayChart(week, state.Summary().MaxDayMiles))
			return
		}
	}
	http.Error(w, "Week not loaded", http.StatusNotFound)
}

func renderChart(w http.ResponseWriter, bar *charts.Bar) {
	var buf bytes.Buffer
	if err := bar.Render(&buf); err != nil {
		logging.Logger.Error().Err(err).Msg("rendering chart")
		http.Error(w, "Failed to render chart", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	buf.WriteTo(w)
}
