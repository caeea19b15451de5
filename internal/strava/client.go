// Package strava is a small client for the parts of the Strava v3 API the
// dashboard reads: the athlete, their activity list and single activities.
package strava

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/joshdurbin/runtracker/internal/logging"
	"github.com/joshdurbin/runtracker/internal/metrics"
)

const (
	// DefaultBaseURL is the production API root.
	DefaultBaseURL = "https://www.strava.com/api/v3"

	// MaxPerPage is the largest page size the activities endpoint accepts.
	MaxPerPage = 200

	requestTimeout = 30 * time.Second
)

const (
	defaultMaxRetries = 4
	defaultMinWait    = 1 * time.Second
	defaultMaxWait    = 2 * time.Minute
)

// Client calls the Strava API with retry and rate-limit tracking. The access
// token is passed per call because it changes on every refresh.
type Client struct {
	httpClient *retryablehttp.Client
	baseURL    string

	rateMu    sync.RWMutex
	rateLimit RateLimitInfo
}

// NewClient returns a client for the production API.
func NewClient() *Client {
	return NewClientWithBaseURL(DefaultBaseURL)
}

// NewClientWithBaseURL returns a client rooted at baseURL (used by tests).
func NewClientWithBaseURL(baseURL string) *Client {
	log := logging.Logger

	hc := retryablehttp.NewClient()
	hc.RetryMax = defaultMaxRetries
	hc.RetryWaitMin = defaultMinWait
	hc.RetryWaitMax = defaultMaxWait
	hc.HTTPClient.Timeout = requestTimeout
	hc.Logger = &logging.LeveledLogger{}
	// Hand back the last response so 429s that outlast the retries map to
	// ErrRateLimited instead of a generic "giving up" error.
	hc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	hc.CheckRetry = func(ctx context.Context, resp *http.Response, err error) (bool, error) {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		if err != nil {
			return true, nil
		}
		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			return true, nil
		case resp.StatusCode >= 500:
			return true, nil
		default:
			return false, nil
		}
	}

	hc.Backoff = func(minWait, maxWait time.Duration, attempt int, resp *http.Response) time.Duration {
		if resp != nil && resp.StatusCode == http.StatusTooManyRequests {
			if s := resp.Header.Get("Retry-After"); s != "" {
				if secs, err := strconv.Atoi(s); err == nil {
					wait := time.Duration(secs) * time.Second
					log.Info().Dur("wait", wait).Int("attempt", attempt).Msg("rate limited, honoring Retry-After")
					return wait
				}
			}
			wait := timeUntilNext15MinWindow(time.Now())
			log.Info().Dur("wait", wait).Int("attempt", attempt).Msg("rate limited, waiting for next 15-minute window")
			return wait
		}

		wait := minWait * time.Duration(1<<uint(attempt))
		if wait > maxWait || wait <= 0 {
			wait = maxWait
		}
		log.Debug().Dur("wait", wait).Int("attempt", attempt).Msg("backing off before retry")
		return wait
	}

	hc.RequestLogHook = func(_ retryablehttp.Logger, req *http.Request, retry int) {
		if retry > 0 {
			log.Info().Str("path", req.URL.Path).Int("attempt", retry+1).Msg("retrying request")
		}
		if logging.IsTraceEnabled() {
			log.Debug().
				Str("method", req.Method).
				Str("url", req.URL.String()).
				Str("headers", formatHeaders(req.Header)).
				Msg("request headers")
		}
	}

	hc.ResponseLogHook = func(_ retryablehttp.Logger, resp *http.Response) {
		if logging.IsTraceEnabled() {
			log.Debug().
				Int("status", resp.StatusCode).
				Str("path", resp.Request.URL.Path).
				Str("headers", formatHeaders(resp.Header)).
				Msg("response headers")
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			info := parseRateLimitHeaders(resp.Header, time.Now())
			log.Warn().
				Str("path", resp.Request.URL.Path).
				Str("15min_usage", fmt.Sprintf("%d/%d", info.Usage15Min, info.Limit15Min)).
				Str("daily_usage", fmt.Sprintf("%d/%d", info.UsageDaily, info.LimitDaily)).
				Msg("rate limited by API")
		}
	}

	return &Client{httpClient: hc, baseURL: strings.TrimRight(baseURL, "/")}
}

// WithRetryConfig overrides the retry budget and backoff bounds.
func (c *Client) WithRetryConfig(maxRetries int, minWait, maxWait time.Duration) *Client {
	c.httpClient.RetryMax = maxRetries
	c.httpClient.RetryWaitMin = minWait
	c.httpClient.RetryWaitMax = maxWait
	return c
}

// RateLimit returns the last observed rate limit with reset times
// recalculated for the current instant.
func (c *Client) RateLimit() RateLimitInfo {
	c.rateMu.RLock()
	info := c.rateLimit
	c.rateMu.RUnlock()
	return info.withResets(time.Now())
}

// FetchActivityPage returns one page of the athlete's activities, newest
// first. When typeFilter is set only activities of that type (compared
// case-insensitively) are returned; Strava has no server-side type filter, so
// a page can come back filtered to empty while later pages still hold data.
// A page past the end of the history is empty with a nil error.
func (c *Client) FetchActivityPage(ctx context.Context, accessToken string, page, perPage int, typeFilter string) ([]Activity, error) {
	if page < 1 {
		return nil, fmt.Errorf("page must be >= 1, got %d", page)
	}
	if perPage < 1 || perPage > MaxPerPage {
		return nil, fmt.Errorf("per_page must be between 1 and %d, got %d", MaxPerPage, perPage)
	}

	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("per_page", strconv.Itoa(perPage))

	var activities []Activity
	if err := c.get(ctx, metrics.OpListActivities, accessToken, "/athlete/activities?"+q.Encode(), &activities); err != nil {
		return nil, err
	}
	if activities == nil {
		activities = []Activity{}
	}
	if typeFilter == "" {
		return activities, nil
	}

	filtered := activities[:0]
	for _, a := range activities {
		if a.IsType(typeFilter) {
			filtered = append(filtered, a)
		}
	}
	return filtered, nil
}

// GetAthlete returns the authenticated athlete.
func (c *Client) GetAthlete(ctx context.Context, accessToken string) (Athlete, error) {
	var athlete Athlete
	err := c.get(ctx, metrics.OpGetAthlete, accessToken, "/athlete", &athlete)
	return athlete, err
}

// GetActivity returns a single activity by id.
func (c *Client) GetActivity(ctx context.Context, accessToken string, id int64) (Activity, error) {
	var activity Activity
	err := c.get(ctx, metrics.OpGetActivity, accessToken, fmt.Sprintf("/activities/%d", id), &activity)
	return activity, err
}

func (c *Client) get(ctx context.Context, op, accessToken, path string, out any) error {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.ObserveStravaCall(op, 0, time.Since(start))
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &UpstreamError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	metrics.ObserveStravaCall(op, resp.StatusCode, time.Since(start))
	c.updateRateLimit(resp)

	if resp.StatusCode != http.StatusOK {
		return statusError(op, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &UpstreamError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("decoding response: %w", err)}
	}
	return nil
}

func (c *Client) updateRateLimit(resp *http.Response) {
	info := parseRateLimitHeaders(resp.Header, time.Now())
	if info.Limit15Min == 0 && info.LimitDaily == 0 {
		return
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		info.IsRateLimited = true
	}
	c.rateMu.Lock()
	c.rateLimit = info
	c.rateMu.Unlock()
	metrics.SetRateLimit(info.Limit15Min, info.Usage15Min, info.LimitDaily, info.UsageDaily)
}

// formatHeaders renders headers for trace logging with credentials redacted.
func formatHeaders(headers http.Header) string {
	if len(headers) == 0 {
		return "{}"
	}

	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		value := strings.Join(headers[k], ", ")
		switch strings.ToLower(k) {
		case "authorization", "cookie", "set-cookie":
			value = "[REDACTED]"
		}
		parts = append(parts, fmt.Sprintf("%s: %q", k, value))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
