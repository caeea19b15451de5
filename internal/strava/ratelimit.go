package strava

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Requests held back from each limit so a dashboard reload never spends the
// last few calls of a window.
const rateLimitBuffer = 5

// RateLimitInfo is the most restrictive limit and usage seen on a response.
type RateLimitInfo struct {
	Limit15Min    int
	Usage15Min    int
	LimitDaily    int
	UsageDaily    int
	IsRateLimited bool

	TimeUntil15MinReset time.Duration
	TimeUntilDailyReset time.Duration
	RecommendedWait     time.Duration
}

// IsApproaching15MinLimit reports whether usage is within the buffer of the
// 15-minute limit.
func (info RateLimitInfo) IsApproaching15MinLimit() bool {
	return info.Limit15Min > 0 && info.Usage15Min >= info.Limit15Min-rateLimitBuffer
}

// IsApproachingDailyLimit reports whether usage is within the buffer of the
// daily limit.
func (info RateLimitInfo) IsApproachingDailyLimit() bool {
	return info.LimitDaily > 0 && info.UsageDaily >= info.LimitDaily-rateLimitBuffer
}

// withResets fills in the reset durations and the recommended wait as of now.
func (info RateLimitInfo) withResets(now time.Time) RateLimitInfo {
	info.TimeUntil15MinReset = timeUntilNext15MinWindow(now)
	info.TimeUntilDailyReset = timeUntilMidnightUTC(now)
	info.RecommendedWait = 0

	switch {
	case info.Limit15Min > 0 && info.Usage15Min >= info.Limit15Min:
		info.IsRateLimited = true
		info.RecommendedWait = info.TimeUntil15MinReset
	case info.LimitDaily > 0 && info.UsageDaily >= info.LimitDaily:
		info.IsRateLimited = true
		info.RecommendedWait = info.TimeUntilDailyReset
	case info.IsApproaching15MinLimit():
		info.RecommendedWait = info.TimeUntil15MinReset
	case info.IsApproachingDailyLimit():
		info.RecommendedWait = info.TimeUntilDailyReset
	}
	return info
}

// Strava's limits reset at :00, :15, :30 and :45 past the hour.
func timeUntilNext15MinWindow(now time.Time) time.Duration {
	next := now.Truncate(15 * time.Minute).Add(15 * time.Minute)
	return next.Sub(now) + 2*time.Second
}

// Daily limits reset at midnight UTC.
func timeUntilMidnightUTC(now time.Time) time.Duration {
	u := now.UTC()
	midnight := time.Date(u.Year(), u.Month(), u.Day()+1, 0, 0, 0, 0, time.UTC)
	return midnight.Sub(u) + 2*time.Second
}

// parseRateLimitHeaders reads both header families. X-RateLimit-* is the
// overall limit and X-ReadRateLimit-* the tighter read limit; each value is
// "fifteen_minute,daily". The smaller limit and the larger usage win.
func parseRateLimitHeaders(h http.Header, now time.Time) RateLimitInfo {
	overallLimit15, overallLimitDaily := parsePair(h.Get("X-RateLimit-Limit"))
	overallUsage15, overallUsageDaily := parsePair(h.Get("X-RateLimit-Usage"))
	readLimit15, readLimitDaily := parsePair(h.Get("X-ReadRateLimit-Limit"))
	readUsage15, readUsageDaily := parsePair(h.Get("X-ReadRateLimit-Usage"))

	info := RateLimitInfo{
		Limit15Min: minPositive(overallLimit15, readLimit15),
		LimitDaily: minPositive(overallLimitDaily, readLimitDaily),
		Usage15Min: max(overallUsage15, readUsage15),
		UsageDaily: max(overallUsageDaily, readUsageDaily),
	}
	return info.withResets(now)
}

func parsePair(v string) (int, int) {
	if v == "" {
		return 0, 0
	}
	first, rest, _ := strings.Cut(v, ",")
	a, _ := strconv.Atoi(strings.TrimSpace(first))
	b, _ := strconv.Atoi(strings.TrimSpace(rest))
	return a, b
}

// minPositive returns the smaller of a and b, ignoring unset (<= 0) values.
func minPositive(a, b int) int {
	switch {
	case a <= 0:
		return b
	case b <= 0:
		return a
	default:
		return min(a, b)
	}
}
