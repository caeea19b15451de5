package strava

import (
	"net/http"
	"testing"
	"time"
)

func TestTimeUntilNext15MinWindow(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		time    time.Time
		minWait time.Duration
		maxWait time.Duration
	}{
		{"on the hour", time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC), 14 * time.Minute, 16 * time.Minute},
		{"minute 14", time.Date(2024, 1, 15, 10, 14, 0, 0, time.UTC), 30 * time.Second, 2 * time.Minute},
		{"minute 30", time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC), 14 * time.Minute, 16 * time.Minute},
		{"minute 59", time.Date(2024, 1, 15, 10, 59, 0, 0, time.UTC), 30 * time.Second, 2 * time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wait := timeUntilNext15MinWindow(tt.time)
			if wait < tt.minWait || wait > tt.maxWait {
				t.Errorf("timeUntilNext15MinWindow(%s) = %v, want between %v and %v",
					tt.time.Format("15:04:05"), wait, tt.minWait, tt.maxWait)
			}
		})
	}
}

func TestTimeUntilMidnightUTC(t *testing.T) {
	t.Parallel()

	noon := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	if got := timeUntilMidnightUTC(noon); got != 12*time.Hour+2*time.Second {
		t.Errorf("timeUntilMidnightUTC(noon) = %v", got)
	}
}

func TestParseRateLimitHeaders(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 1, 15, 10, 5, 0, 0, time.UTC)

	t.Run("no headers", func(t *testing.T) {
		info := parseRateLimitHeaders(http.Header{}, now)
		if info.Limit15Min != 0 || info.IsRateLimited || info.RecommendedWait != 0 {
			t.Errorf("unexpected info %+v", info)
		}
	})

	t.Run("exhausted 15 minute window", func(t *testing.T) {
		h := http.Header{}
		h.Set("X-RateLimit-Limit", "100,1000")
		h.Set("X-RateLimit-Usage", "100,400")
		info := parseRateLimitHeaders(h, now)
		if !info.IsRateLimited {
			t.Error("expected IsRateLimited")
		}
		if info.RecommendedWait != info.TimeUntil15MinReset {
			t.Errorf("expected wait until 15 minute reset, got %v", info.RecommendedWait)
		}
	})

	t.Run("approaching daily", func(t *testing.T) {
		h := http.Header{}
		h.Set("X-ReadRateLimit-Limit", "100,1000")
		h.Set("X-ReadRateLimit-Usage", "10,996")
		info := parseRateLimitHeaders(h, now)
		if info.IsRateLimited {
			t.Error("should not be rate limited yet")
		}
		if info.RecommendedWait != info.TimeUntilDailyReset {
			t.Errorf("expected wait until daily reset, got %v", info.RecommendedWait)
		}
	})
}

func TestRateLimitBuffer(t *testing.T) {
	t.Parallel()

	tests := []struct {
		usage int
		want  bool
	}{
		{96, true},
		{95, true},
		{94, false},
		{50, false},
	}
	for _, tt := range tests {
		info := RateLimitInfo{Limit15Min: 100, Usage15Min: tt.usage}
		if got := info.IsApproaching15MinLimit(); got != tt.want {
			t.Errorf("IsApproaching15MinLimit at %d/100 = %v, want %v", tt.usage, got, tt.want)
		}
	}
	if (RateLimitInfo{Usage15Min: 100}).IsApproaching15MinLimit() {
		t.Error("unset limit should never be approaching")
	}
}

func TestMinPositive(t *testing.T) {
	t.Parallel()

	tests := []struct{ a, b, want int }{
		{0, 5, 5},
		{5, 0, 5},
		{3, 5, 3},
		{0, 0, 0},
	}
	for _, tt := range tests {
		if got := minPositive(tt.a, tt.b); got != tt.want {
			t.Errorf("minPositive(%d, %d) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}
