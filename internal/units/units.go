// Package units converts Strava's metric fields to statute miles and renders
// them for display. Rounding happens here and nowhere else.
package units

import (
	"fmt"
	"math"
	"time"
)

// MetersPerMile is the international statute mile.
const MetersPerMile = 1609.344

// MetersToMiles converts meters to statute miles at full precision.
func MetersToMiles(meters float64) float64 {
	return meters / MetersPerMile
}

// FormatDistance renders meters as miles with two decimals, e.g. "3.11 mi".
func FormatDistance(meters float64) string {
	return fmt.Sprintf("%.2f mi", MetersToMiles(meters))
}

// FormatMiles renders an already-converted mileage with one decimal.
func FormatMiles(miles float64) string {
	return fmt.Sprintf("%.1f mi", miles)
}

// Round rounds v to the given number of decimals, for chart values.
func Round(v float64, decimals int) float64 {
	scale := math.Pow(10, float64(decimals))
	return math.Round(v*scale) / scale
}

// FormatDuration renders seconds as h:mm:ss, or m:ss under an hour.
func FormatDuration(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	hours := seconds / 3600
	minutes := (seconds % 3600) / 60
	secs := seconds % 60
	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, secs)
	}
	return fmt.Sprintf("%d:%02d", minutes, secs)
}

// FormatPace renders a speed in meters per second as minutes per mile,
// e.g. "8:03 /mi". A stationary or missing speed renders as "-".
func FormatPace(mps float64) string {
	if mps <= 0 || math.IsNaN(mps) || math.IsInf(mps, 0) {
		return "-"
	}
	total := int(math.Round(MetersPerMile / mps))
	return fmt.Sprintf("%d:%02d /mi", total/60, total%60)
}

// PaceSecondsPerMile returns the pace for a speed, or 0 when it is undefined.
func PaceSecondsPerMile(mps float64) float64 {
	if mps <= 0 {
		return 0
	}
	return MetersPerMile / mps
}

// FormatElevation renders meters of climbing, e.g. "123m".
func FormatElevation(meters float64) string {
	return fmt.Sprintf("%.0fm", math.Round(meters))
}

// FormatHeartrate renders an average heart rate, e.g. "145 bpm".
func FormatHeartrate(bpm float64) string {
	return fmt.Sprintf("%.0f bpm", math.Round(bpm))
}

// FormatWeekRange renders a week's span, e.g. "Jan 2 - Jan 8, 2024". The
// year is taken from the end of the range.
func FormatWeekRange(start, end time.Time) string {
	return fmt.Sprintf("%s - %s", start.Format("Jan 2"), end.Format("Jan 2, 2006"))
}
