package metrics

import (
	"net/http"
	"strconv"
	"time"
)

// statusRecorder captures the status code written by the wrapped handler.
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (rw *statusRecorder) WriteHeader(code int) {
	if !rw.written {
		rw.statusCode = code
		rw.written = true
		rw.ResponseWriter.WriteHeader(code)
	}
}

func (rw *statusRecorder) Write(b []byte) (int, error) {
	if !rw.written {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}

// Flush keeps streaming responses (the MCP SSE transport) working through
// the wrapper.
func (rw *statusRecorder) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Middleware records request counts and latency under the endpoint label.
func Middleware(endpoint string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rec, r)

			status := strconv.Itoa(rec.statusCode)
			HTTPRequestsTotal.WithLabelValues(endpoint, status).Inc()
			HTTPRequestDuration.WithLabelValues(endpoint, status).Observe(time.Since(start).Seconds())
		})
	}
}

// Wrap is Middleware applied to a HandlerFunc.
func Wrap(endpoint string, h http.HandlerFunc) http.Handler {
	return Middleware(endpoint)(h)
}

// ObserveStravaCall records one upstream request.
func ObserveStravaCall(op string, statusCode int, elapsed time.Duration) {
	status := strconv.Itoa(statusCode)
	StravaAPIRequestsTotal.WithLabelValues(op, status).Inc()
	StravaAPIRequestDuration.WithLabelValues(op, status).Observe(elapsed.Seconds())
}

// SetRateLimit publishes the latest rate limit reading.
func SetRateLimit(limit15, usage15, limitDaily, usageDaily int) {
	StravaRateLimit.WithLabelValues(RateLimit15Min, BucketLimit).Set(float64(limit15))
	StravaRateLimit.WithLabelValues(RateLimit15Min, BucketUsage).Set(float64(usage15))
	StravaRateLimit.WithLabelValues(RateLimitDaily, BucketLimit).Set(float64(limitDaily))
	StravaRateLimit.WithLabelValues(RateLimitDaily, BucketUsage).Set(float64(usageDaily))
}
