package util

import (
	"errors"
	"fmt"
	"strings"
)

// Common error types for usagemetrics
var (
	// ErrInvalidConfig indicates a configuration error
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrDiscoveryFailed indicates the community discovery call failed
	ErrDiscoveryFailed = errors.New("community discovery failed")

	// ErrNoEndpoint indicates no base endpoint is configured for a datacenter/environment pair
	ErrNoEndpoint = errors.New("no endpoint configured")

	// ErrCancelled indicates an operation was cancelled
	ErrCancelled = errors.New("operation cancelled")

	// ErrShutdown indicates the system is shutting down
	ErrShutdown = errors.New("system shutting down")
)

// ErrorKind classifies a per-request failure
type ErrorKind string

const (
	KindNetwork    ErrorKind = "network"
	KindHTTPStatus ErrorKind = "http_status"
	KindDecode     ErrorKind = "decode"
	KindDiscovery  ErrorKind = "discovery"
	KindUnknown    ErrorKind = "unknown"
)

// NetworkError is a connection-level failure talking to URL
type NetworkError struct {
	URL string
	Err error
}

// Error implements the error interface
func (e *NetworkError) Error() string {
	return fmt.Sprintf("request %s failed: %v", e.URL, e.Err)
}

// Unwrap returns the wrapped error for errors.Is/As compatibility
func (e *NetworkError) Unwrap() error {
	return e.Err
}

// HTTPStatusError is returned for any response whose status is not 200
type HTTPStatusError struct {
	URL        string
	StatusCode int
}

// Error implements the error interface
func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("http request %s returned with the status code of: %d", e.URL, e.StatusCode)
}

// DecodeError means the response body was not valid JSON
type DecodeError struct {
	URL string
	Err error
}

// Error implements the error interface
func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode response from %s: %v", e.URL, e.Err)
}

// Unwrap returns the wrapped error
func (e *DecodeError) Unwrap() error {
	return e.Err
}

// DiscoveryError wraps any failure of the discovery call. It is the only
// error that aborts a whole batch.
type DiscoveryError struct {
	URL string
	Err error
}

// Error implements the error interface
func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("%v (%s): %v", ErrDiscoveryFailed, e.URL, e.Err)
}

// Unwrap returns both the sentinel and the cause so errors.Is matches either
func (e *DiscoveryError) Unwrap() []error {
	return []error{ErrDiscoveryFailed, e.Err}
}

// Kind classifies err by the first typed error found in its chain
func Kind(err error) ErrorKind {
	var (
		discErr   *DiscoveryError
		statusErr *HTTPStatusError
		decodeErr *DecodeError
		netErr    *NetworkError
	)

	switch {
	case err == nil:
		return ""
	case errors.As(err, &discErr):
		return KindDiscovery
	case errors.As(err, &statusErr):
		return KindHTTPStatus
	case errors.As(err, &decodeErr):
		return KindDecode
	case errors.As(err, &netErr):
		return KindNetwork
	default:
		return KindUnknown
	}
}

// StatusCode returns the HTTP status carried by err, or 0
func StatusCode(err error) int {
	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode
	}
	return 0
}

// CommunityError wraps an error with community context
type CommunityError struct {
	Community string
	Metric    string
	Err       error
}

// Error implements the error interface
func (e *CommunityError) Error() string {
	if e.Metric != "" {
		return fmt.Sprintf("community %q metric %q: %v", e.Community, e.Metric, e.Err)
	}
	return fmt.Sprintf("community %q: %v", e.Community, e.Err)
}

// Unwrap returns the wrapped error for errors.Is/As compatibility
func (e *CommunityError) Unwrap() error {
	return e.Err
}

// WrapCommunityError wraps an error with community (and optional metric) context
func WrapCommunityError(community, metric string, err error) error {
	if err == nil {
		return nil
	}

	return &CommunityError{
		Community: community,
		Metric:    metric,
		Err:       err,
	}
}

// MultiError aggregates multiple errors
type MultiError struct {
	Errors []error
}

// Error implements the error interface
func (m *MultiError) Error() string {
	if len(m.Errors) == 0 {
		return "no errors"
	}

	if len(m.Errors) == 1 {
		return m.Errors[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d errors occurred:", len(m.Errors)))
	for i, err := range m.Errors {
		if i < 10 {
			sb.WriteString(fmt.Sprintf("\n  %d. %v", i+1, err))
		} else if i == 10 {
			sb.WriteString(fmt.Sprintf("\n  ... and %d more errors", len(m.Errors)-10))
			break
		}
	}

	return sb.String()
}

// Unwrap returns the errors for errors.Is/As compatibility
func (m *MultiError) Unwrap() []error {
	return m.Errors
}

// Add adds an error to the multi-error
func (m *MultiError) Add(err error) {
	if err != nil {
		m.Errors = append(m.Errors, err)
	}
}

// ErrorOrNil returns nil if no errors were added, otherwise returns the MultiError
func (m *MultiError) ErrorOrNil() error {
	if len(m.Errors) == 0 {
		return nil
	}
	return m
}

// ValidationError represents a validation failure
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

// Error implements the error interface
func (v *ValidationError) Error() string {
	if v.Value != nil {
		return fmt.Sprintf("validation failed for field %q (value: %v): %s", v.Field, v.Value, v.Message)
	}
	return fmt.Sprintf("validation failed for field %q: %s", v.Field, v.Message)
}

// Unwrap ties every validation failure to ErrInvalidConfig
func (v *ValidationError) Unwrap() error {
	return ErrInvalidConfig
}

// NewValidationError creates a new validation error
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// IsDiscoveryFailure reports whether err aborted a batch at discovery
func IsDiscoveryFailure(err error) bool {
	return errors.Is(err, ErrDiscoveryFailed)
}

// IsCancelled checks if an error is a cancellation error
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled)
}

// FriendlyError converts technical errors to user-friendly messages
func FriendlyError(err error) string {
	if err == nil {
		return ""
	}

	switch {
	case IsDiscoveryFailure(err):
		return fmt.Sprintf("Could not discover communities, nothing was fetched: %v", err)
	case IsCancelled(err):
		return "Operation was cancelled."
	case errors.Is(err, ErrInvalidConfig):
		return fmt.Sprintf("Invalid configuration. Please check your config file and command-line flags: %v", err)
	case errors.Is(err, ErrNoEndpoint):
		return fmt.Sprintf("No analytics endpoint configured: %v", err)
	default:
		return err.Error()
	}
}

// WrapErrorf wraps an error with a formatted message
func WrapErrorf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}
