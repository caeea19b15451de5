package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/joshdurbin/runtracker/internal/auth"
	"github.com/joshdurbin/runtracker/internal/dashboard"
	"github.com/joshdurbin/runtracker/internal/logging"
	"github.com/joshdurbin/runtracker/internal/units"
	"github.com/joshdurbin/runtracker/internal/weekly"
	"github.com/joshdurbin/runtracker/internal/window"
)

var (
	weeklyPeriod string
	weeklyOffset int
)

var weeklyCmd = &cobra.Command{
	Use:   "weekly",
	Short: "Print weekly mileage for a time window",
	Example: `  runtracker weekly
  runtracker weekly --period "last month" --offset 1
  runtracker weekly --period all`,
	RunE: func(cmd *cobra.Command, args []string) error {
		period, err := window.ParsePeriod(weeklyPeriod)
		if err != nil {
			return err
		}

		cfg, err := loadConfig(cmd, true)
		if err != nil {
			return err
		}

		ctx, cancel := signalContext()
		defer cancel()

		a, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.dash.Fetch(ctx, dashboard.Selection{Period: period, Offset: weeklyOffset})
		if errors.Is(err, auth.ErrNoCredentials) || errors.Is(err, auth.ErrReauthRequired) {
			return fmt.Errorf("not connected to Strava, run \"runtracker login\" first")
		}
		if err != nil {
			return err
		}

		rl := a.client.RateLimit()
		logging.Logger.Debug().
			Str("15min_usage", fmt.Sprintf("%d/%d", rl.Usage15Min, rl.Limit15Min)).
			Str("daily_usage", fmt.Sprintf("%d/%d", rl.UsageDaily, rl.LimitDaily)).
			Msg("rate limit after load")

		return printWeekly(os.Stdout, res)
	},
}

func init() {
	weeklyCmd.Flags().StringVar(&weeklyPeriod, "period", string(window.DefaultPeriod), `time window: "last month", "3 months", "last 6 months", "last year" or "all"`)
	weeklyCmd.Flags().IntVar(&weeklyOffset, "offset", 0, "whole periods back from now (ignored for all)")
}

func printWeekly(out io.Writer, res dashboard.Result) error {
	w := res.Window
	fmt.Fprintf(out, "%s (%s): %s to %s\n\n",
		w.Period.DisplayName(), w.Label(), w.Start.Format("Jan 2, 2006"), w.End.Format("Jan 2, 2006"))

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "WEEK\tRUNS\tMILES\tMON\tTUE\tWED\tTHU\tFRI\tSAT\tSUN\t")

	highest := res.Summary.HighestWeekMiles
	for _, wk := range res.Weeks {
		var row strings.Builder
		fmt.Fprintf(&row, "%s\t%d\t%.1f\t", units.FormatWeekRange(wk.Start, wk.End), wk.RunCount, wk.TotalMiles)
		for _, d := range wk.DailyMiles() {
			if d == 0 {
				row.WriteString("-\t")
				continue
			}
			fmt.Fprintf(&row, "%.1f\t", d)
		}
		fmt.Fprintf(tw, "%s %s\n", row.String(), bar(wk, highest))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	s := res.Summary
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Total:          %s over %d runs\n", units.FormatMiles(s.TotalMiles), s.TotalRuns)
	fmt.Fprintf(out, "Weekly average: %s, %.1f runs\n", units.FormatMiles(s.AverageWeeklyMiles), s.AverageWeeklyRuns)
	fmt.Fprintf(out, "Highest week:   %s\n", units.FormatMiles(s.HighestWeekMiles))
	fmt.Fprintf(out, "Longest day:    %s\n", units.FormatMiles(s.MaxDayMiles))
	return nil
}

// bar draws the week's share of the highest week in 20 cells.
func bar(wk weekly.Week, highest float64) string {
	n := int(wk.BarPercent(highest)/5 + 0.5)
	return strings.Repeat("#", n)
}
