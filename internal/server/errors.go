package server

import (
	"errors"
	"fmt"

	"github.com/joshdurbin/runtracker/internal/auth"
	"github.com/joshdurbin/runtracker/internal/dashboard"
	"github.com/joshdurbin/runtracker/internal/strava"
	"github.com/joshdurbin/runtracker/internal/window"
)

// ErrorCode classifies MCP tool errors for structured error handling
type ErrorCode string

const (
	// ErrInvalidInput indicates invalid or malformed input parameters
	ErrInvalidInput ErrorCode = "INVALID_INPUT"
	// ErrUnauthenticated indicates nobody is signed in to Strava
	ErrUnauthenticated ErrorCode = "UNAUTHENTICATED"
	// ErrUpstream indicates the Strava API call failed
	ErrUpstream ErrorCode = "UPSTREAM_ERROR"
	// ErrInternalError indicates an unexpected internal error
	ErrInternalError ErrorCode = "INTERNAL_ERROR"
)

// ToolError represents a structured tool error with code, message, and optional details
type ToolError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`
}

// Error implements the error interface
func (e *ToolError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewInvalidInputError creates an error for invalid input parameters
func NewInvalidInputError(msg string) *ToolError {
	return &ToolError{Code: ErrInvalidInput, Message: msg}
}

// NewInvalidInputErrorWithDetails creates an error for invalid input with additional details
func NewInvalidInputErrorWithDetails(msg, details string) *ToolError {
	return &ToolError{Code: ErrInvalidInput, Message: msg, Details: details}
}

// NewUnauthenticatedError tells the caller to connect Strava in the browser first.
func NewUnauthenticatedError() *ToolError {
	return &ToolError{
		Code:    ErrUnauthenticated,
		Message: "Not connected to Strava",
		Details: "open the dashboard and connect with Strava",
	}
}

// NewUpstreamError creates an error for a failed Strava API call
func NewUpstreamError(err error) *ToolError {
	return &ToolError{
		Code:    ErrUpstream,
		Message: "Strava request failed",
		Details: err.Error(),
	}
}

// NewInternalErrorWithCause creates an internal error wrapping another error
func NewInternalErrorWithCause(msg string, err error) *ToolError {
	return &ToolError{
		Code:    ErrInternalError,
		Message: msg,
		Details: err.Error(),
	}
}

// toolError maps errors from the dashboard packages onto tool error codes.
func toolError(err error) *ToolError {
	var upstream *strava.UpstreamError
	switch {
	case errors.Is(err, window.ErrUnknownPeriod),
		errors.Is(err, window.ErrNegativeOffset),
		errors.Is(err, window.ErrOffsetTooLarge):
		return NewInvalidInputErrorWithDetails("invalid selection", err.Error())
	case errors.Is(err, auth.ErrNoCredentials),
		errors.Is(err, auth.ErrReauthRequired),
		errors.Is(err, dashboard.ErrNotAuthenticated),
		errors.Is(err, strava.ErrUnauthorized):
		return NewUnauthenticatedError()
	case errors.As(err, &upstream):
		return NewUpstreamError(err)
	default:
		return NewInternalErrorWithCause("loading weekly mileage failed", err)
	}
}
