// Package apierror maps errors to HTTP responses.
package apierror

import (
	"context"
	"errors"
	"net/http"

	"github.com/classbot-dev/classbot/pkg/llm"
	"github.com/classbot-dev/classbot/pkg/relay"
	"github.com/classbot-dev/classbot/pkg/speech"
)

type Envelope struct {
	Error *relay.Error `json:"error"`
}

// FromError converts any error into the canonical envelope error and the
// HTTP status to report it with. Unknown errors are reported as a generic
// internal error so upstream keys and stack detail never reach the caller.
func FromError(err error, requestID string) (*relay.Error, int) {
	if err == nil {
		return nil, http.StatusOK
	}

	// Context timeouts/cancellation (vendor call exceeded the configured
	// upstream timeout, or the client went away).
	if errors.Is(err, context.DeadlineExceeded) {
		return &relay.Error{
			Type:      relay.ErrUpstream,
			Message:   "upstream request timeout",
			RequestID: requestID,
		}, http.StatusGatewayTimeout
	}
	if errors.Is(err, context.Canceled) {
		return &relay.Error{
			Type:      relay.ErrAPI,
			Message:   "request cancelled",
			RequestID: requestID,
		}, http.StatusRequestTimeout
	}

	// Already canonical.
	var relayErr *relay.Error
	if errors.As(err, &relayErr) && relayErr != nil {
		out := *relayErr
		out.RequestID = requestID
		return &out, StatusFor(&out)
	}

	// Vendor errors: propagate the vendor's status and surface its message.
	var llmErr *llm.Error
	if errors.As(err, &llmErr) && llmErr != nil {
		return &relay.Error{
			Type:      relay.ErrUpstream,
			Message:   llmErr.Message,
			RequestID: requestID,
			Status:    llmErr.Status,
		}, llmErr.Status
	}

	var speechErr *speech.Error
	if errors.As(err, &speechErr) && speechErr != nil {
		return &relay.Error{
			Type:      relay.ErrUpstream,
			Message:   speechErr.Message,
			RequestID: requestID,
			Status:    speechErr.Status,
		}, speechErr.Status
	}

	// A 2xx vendor reply with no usable text is reported as a server error.
	if errors.Is(err, llm.ErrNoResponse) {
		return &relay.Error{
			Type:      relay.ErrAPI,
			Message:   "no response from model",
			RequestID: requestID,
		}, http.StatusInternalServerError
	}

	// Unknown errors: treat as internal (do not leak details).
	return &relay.Error{
		Type:      relay.ErrAPI,
		Message:   "internal server error",
		RequestID: requestID,
	}, http.StatusInternalServerError
}

// StatusFor returns the HTTP status an error should be reported with.
// Upstream errors carry the vendor status through unchanged when present.
func StatusFor(e *relay.Error) int {
	if e == nil {
		return http.StatusOK
	}
	if e.Type == relay.ErrUpstream && e.Status > 0 {
		return e.Status
	}
	return statusFromType(e.Type)
}

func statusFromType(t relay.ErrorType) int {
	switch t {
	case relay.ErrInvalidRequest:
		return http.StatusBadRequest
	case relay.ErrNotFound:
		return http.StatusNotFound
	case relay.ErrMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case relay.ErrUpstream:
		return http.StatusBadGateway
	case relay.ErrConfiguration, relay.ErrAPI:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
