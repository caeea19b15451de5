// Package window turns a (period, offset) selection into the absolute date
// range the dashboard loads and aggregates.
//
// All times handled here are floating wall-clock times: calendar fields
// labeled UTC, with no zone arithmetic. Strava's start_date_local decodes
// that way, and Wall converts "now" to match.
package window

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Period is a named window length.
type Period string

const (
	LastMonth   Period = "last month"
	ThreeMonths Period = "3 months"
	SixMonths   Period = "last 6 months"
	LastYear    Period = "last year"
	All         Period = "all"
)

// DefaultPeriod is selected on first load.
const DefaultPeriod = SixMonths

// Periods lists every period in display order.
var Periods = []Period{LastMonth, ThreeMonths, SixMonths, LastYear, All}

var (
	// ErrUnknownPeriod is returned for names that do not map to a Period.
	ErrUnknownPeriod = errors.New("unknown period")
	// ErrNegativeOffset is returned for offsets below zero.
	ErrNegativeOffset = errors.New("offset must not be negative")
	// ErrOffsetTooLarge is returned when the window would start before Floor.
	ErrOffsetTooLarge = errors.New("offset reaches before the earliest window")
)

// Floor is the start of the "all" window.
var Floor = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)

// maxOffset bounds offsets before any date arithmetic so AddDate cannot
// overflow. The Floor check in Resolve is the real limit.
const maxOffset = 10000

var maxPages = map[Period]int{
	LastMonth:   1,
	ThreeMonths: 2,
	SixMonths:   5,
	LastYear:    10,
	All:         20,
}

var displayNames = map[Period]string{
	LastMonth:   "Last Month",
	ThreeMonths: "3 Months",
	SixMonths:   "Last 6 Months",
	LastYear:    "Last Year",
	All:         "All Time",
}

// ParsePeriod accepts a period's canonical name, case-insensitively, with
// hyphens or underscores in place of spaces ("last-6-months"), and the
// short form "6 months".
func ParsePeriod(s string) (Period, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer("-", " ", "_", " ").Replace(norm)
	norm = strings.Join(strings.Fields(norm), " ")

	if norm == "6 months" {
		return SixMonths, nil
	}
	if _, ok := maxPages[Period(norm)]; ok {
		return Period(norm), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPeriod, s)
}

// Slug is the URL form of the period, e.g. "last-6-months".
func (p Period) Slug() string {
	return strings.ReplaceAll(string(p), " ", "-")
}

// DisplayName is the selector label, e.g. "Last 6 Months".
func (p Period) DisplayName() string {
	if n, ok := displayNames[p]; ok {
		return n
	}
	return string(p)
}

// MaxPages is the loader's page budget for the period.
func (p Period) MaxPages() int {
	return maxPages[p]
}

// back shifts t back n period lengths. Month lengths use calendar months
// with Go's normalization, so Aug 31 minus 6 months lands on Mar 3.
func (p Period) back(t time.Time, n int) time.Time {
	switch p {
	case LastMonth:
		return t.AddDate(0, 0, -28*n)
	case ThreeMonths:
		return t.AddDate(0, -3*n, 0)
	case SixMonths:
		return t.AddDate(0, -6*n, 0)
	case LastYear:
		return t.AddDate(0, 0, -364*n)
	default:
		return t
	}
}

// Window is a resolved selection.
type Window struct {
	Period   Period
	Offset   int
	Start    time.Time
	End      time.Time
	MaxPages int
}

// Resolve computes the window for period and offset relative to now. The
// offset shifts both bounds back by whole period lengths, so successive
// offsets tile the past without overlap. "all" has a single window and
// ignores the offset. Windows starting before Floor are rejected with
// ErrOffsetTooLarge.
func Resolve(period Period, offset int, now time.Time) (Window, error) {
	if _, ok := maxPages[period]; !ok {
		return Window{}, fmt.Errorf("%w: %q", ErrUnknownPeriod, string(period))
	}
	if offset < 0 {
		return Window{}, fmt.Errorf("%w: %d", ErrNegativeOffset, offset)
	}

	ref := Wall(now)
	w := Window{Period: period, Offset: offset, MaxPages: maxPages[period]}

	if period == All {
		w.Offset = 0
		w.Start = Floor
		w.End = ref
		return w, nil
	}

	if offset > maxOffset {
		return Window{}, fmt.Errorf("%w: %d", ErrOffsetTooLarge, offset)
	}
	w.End = period.back(ref, offset)
	w.Start = period.back(ref, offset+1)
	if w.Start.Before(Floor) {
		return Window{}, fmt.Errorf("%w: %d", ErrOffsetTooLarge, offset)
	}
	return w, nil
}

// Contains reports whether t falls inside the window, bounds included.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// Label names the window for navigation: "Current", "2 months ago",
// "12 months ago", "1 year ago" or "All Time".
func (w Window) Label() string {
	if w.Period == All {
		return "All Time"
	}
	if w.Offset == 0 {
		return "Current"
	}
	n := w.Offset
	switch w.Period {
	case LastMonth:
		return plural(n, "month") + " ago"
	case ThreeMonths:
		return plural(n*3, "month") + " ago"
	case SixMonths:
		return plural(n*6, "month") + " ago"
	case LastYear:
		return plural(n, "year") + " ago"
	}
	return plural(n, "period") + " ago"
}

// CanGoForward reports whether a more recent window exists.
func (w Window) CanGoForward() bool {
	return w.Period != All && w.Offset > 0
}

// CanGoBack reports whether an older window exists.
func (w Window) CanGoBack() bool {
	return w.Period != All && !w.Period.back(w.Start, 1).Before(Floor)
}

// Wall re-labels t's wall-clock fields in its own location as UTC.
func Wall(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
