package strava

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrRateLimited is returned when 429 responses outlast the retry budget.
	ErrRateLimited = errors.New("rate limited")
	// ErrUnauthorized is returned for 401 and 403 responses.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNotFound is returned for 404 responses.
	ErrNotFound = errors.New("not found")
)

// UpstreamError describes a failed Strava API call. StatusCode is zero when
// no response was received.
type UpstreamError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("strava %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("strava %s: status %d: %v", e.Op, e.StatusCode, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

func statusError(op string, code int) *UpstreamError {
	var err error
	switch code {
	case http.StatusUnauthorized, http.StatusForbidden:
		err = ErrUnauthorized
	case http.StatusNotFound:
		err = ErrNotFound
	case http.StatusTooManyRequests:
		err = ErrRateLimited
	default:
		err = fmt.Errorf("unexpected status code: %d", code)
	}
	return &UpstreamError{Op: op, StatusCode: code, Err: err}
}
