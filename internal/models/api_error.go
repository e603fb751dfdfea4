package models

import (
	"fmt"
	"net/http"
)

// ErrorCode is a string type for consistent error codes.
type ErrorCode string

// Predefined error codes for API errors.
const (
	// Generic
	ErrorCodeInternalServerError ErrorCode = "internal_server_error"
	ErrorCodeMethodNotAllowed    ErrorCode = "method_not_allowed"
	ErrorCodeUnauthorized        ErrorCode = "unauthorized"
	ErrorCodeInvalidToken        ErrorCode = "invalid_token"

	// Validation
	ErrorCodeMissingParameter ErrorCode = "missing_parameter"
	ErrorCodeInvalidFormat    ErrorCode = "invalid_format"

	// Resource specific
	ErrorCodeResourceNotFound ErrorCode = "resource_not_found"

	// Feed
	ErrorCodeUpstreamUnavailable ErrorCode = "upstream_unavailable"
	ErrorCodeInvalidFeed         ErrorCode = "invalid_feed"
	ErrorCodeSnapshotUnavailable ErrorCode = "snapshot_unavailable"
	ErrorCodeRefreshInProgress   ErrorCode = "refresh_in_progress"
)

type APIError struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`           // Human-readable error message
	Details    any       `json:"details,omitempty"` // Optional: Additional details
	StatusCode int       `json:"-"`
}

// Error makes APIError implement the error interface.
func (e APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// NewAPIError is a constructor for APIError.
func NewAPIError(code ErrorCode, message string, details any, statusCode int) APIError {
	return APIError{
		Code:       code,
		Message:    message,
		Details:    details,
		StatusCode: statusCode,
	}
}

// APIErrorFromLoad maps a failed pipeline run to the error returned to HTTP
// clients. The category is exposed in Details so callers can decide whether
// retrying on the next tick makes sense.
func APIErrorFromLoad(err error) APIError {
	category := Category(err)
	details := map[string]string{"category": category}
	switch category {
	case CategoryFetch:
		return NewAPIError(ErrorCodeUpstreamUnavailable, "Feed is unavailable", details, http.StatusBadGateway)
	case CategoryParse, CategoryFormat, CategoryValue:
		return NewAPIError(ErrorCodeInvalidFeed, fmt.Sprintf("Feed is invalid: %v", err), details, http.StatusBadGateway)
	default:
		return NewAPIError(ErrorCodeInternalServerError, "Error loading measurement data", details, http.StatusInternalServerError)
	}
}
