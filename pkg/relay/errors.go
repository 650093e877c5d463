// Package relay defines the canonical error model shared by the relay
// server's handlers and middleware.
package relay

import (
	"fmt"
)

// Error represents a relay API error.
type Error struct {
	Type      ErrorType `json:"type"`
	Message   string    `json:"message"`
	Param     string    `json:"param,omitempty"`
	RequestID string    `json:"request_id,omitempty"`

	// Status carries the vendor's HTTP status for upstream errors so
	// handlers can propagate it unchanged. Zero means "use the default
	// status for this error type".
	Status int `json:"-"`

	// Allow lists the supported methods for method_not_allowed errors.
	Allow []string `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Param != "" {
		return fmt.Sprintf("%s: %s (param: %s)", e.Type, e.Message, e.Param)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// ErrorType categorizes errors for operators and callers.
type ErrorType string

const (
	// ErrConfiguration means a server-held key/region/endpoint is missing.
	// Fatal for the request; not retryable without operator action.
	ErrConfiguration ErrorType = "configuration_error"
	// ErrInvalidRequest means the caller must correct and resubmit.
	ErrInvalidRequest ErrorType = "invalid_request_error"
	// ErrUpstream is a non-2xx vendor response, propagated with the
	// vendor's status where meaningful.
	ErrUpstream ErrorType = "upstream_error"
	// ErrAPI is an unexpected internal failure, reported generically.
	ErrAPI              ErrorType = "api_error"
	ErrNotFound         ErrorType = "not_found_error"
	ErrMethodNotAllowed ErrorType = "method_not_allowed"
)

// NewConfigurationError creates a configuration error.
func NewConfigurationError(message string) *Error {
	return &Error{
		Type:    ErrConfiguration,
		Message: message,
	}
}

// NewInvalidRequestError creates an invalid request error.
func NewInvalidRequestError(message string) *Error {
	return &Error{
		Type:    ErrInvalidRequest,
		Message: message,
	}
}

// NewInvalidRequestErrorWithParam creates an invalid request error with a parameter.
func NewInvalidRequestErrorWithParam(message, param string) *Error {
	return &Error{
		Type:    ErrInvalidRequest,
		Message: message,
		Param:   param,
	}
}

// NewUpstreamError creates an upstream error carrying the vendor status.
func NewUpstreamError(message string, status int) *Error {
	return &Error{
		Type:    ErrUpstream,
		Message: message,
		Status:  status,
	}
}

// NewAPIError creates a generic internal API error.
func NewAPIError(message string) *Error {
	return &Error{
		Type:    ErrAPI,
		Message: message,
	}
}

// NewMethodNotAllowedError creates a 405 error listing the supported methods.
func NewMethodNotAllowedError(allow ...string) *Error {
	return &Error{
		Type:    ErrMethodNotAllowed,
		Message: "method not allowed",
		Allow:   allow,
	}
}
