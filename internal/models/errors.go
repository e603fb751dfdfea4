package models

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across the pipeline.
var (
	// ErrLoadFailed wraps every failure returned by a pipeline run.
	ErrLoadFailed = errors.New("error loading measurement data")

	// ErrMisalignedView is returned when render channels differ in length.
	ErrMisalignedView = errors.New("render view channels are not aligned")

	// ErrInvalidTarget is returned for a non-positive downsampling target.
	ErrInvalidTarget = errors.New("downsampling target must be positive")
)

// Failure categories reported to notifiers and mapped to API error codes.
const (
	CategoryFetch   = "fetch"
	CategoryParse   = "parse"
	CategoryFormat  = "format"
	CategoryValue   = "value"
	CategoryUnknown = "unknown"
)

// FetchError reports a transport failure or a non-success response from the
// feed source.
type FetchError struct {
	Source     string
	StatusCode int // 0 when no response was received
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: unexpected status %d", e.Source, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.Source, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ParseError reports a feed document that does not match the expected shape.
// Path names the offending field, e.g. "power.values[3].time".
type ParseError struct {
	Path   string
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	msg := "parse feed"
	if e.Path != "" {
		msg += " at " + e.Path
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ParseError) Unwrap() error { return e.Err }

// FormatError reports a time string that is not a valid "HH:MM:SS".
type FormatError struct {
	Input  string
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("invalid time %q: %s", e.Input, e.Reason)
}

// MalformedValueError reports a numeric field that cannot be read as a finite
// float, even after decimal-comma normalization.
type MalformedValueError struct {
	Raw any
	Err error
}

func (e *MalformedValueError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed value %v: %v", e.Raw, e.Err)
	}
	return fmt.Sprintf("malformed value %v", e.Raw)
}

func (e *MalformedValueError) Unwrap() error { return e.Err }

// Category classifies an error chain into one of the Category* constants.
func Category(err error) string {
	var (
		fetchErr  *FetchError
		parseErr  *ParseError
		formatErr *FormatError
		valueErr  *MalformedValueError
	)
	switch {
	case errors.As(err, &fetchErr):
		return CategoryFetch
	case errors.As(err, &parseErr):
		return CategoryParse
	case errors.As(err, &formatErr):
		return CategoryFormat
	case errors.As(err, &valueErr):
		return CategoryValue
	default:
		return CategoryUnknown
	}
}
