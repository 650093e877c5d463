package apierror

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/classbot-dev/classbot/pkg/llm"
	"github.com/classbot-dev/classbot/pkg/relay"
	"github.com/classbot-dev/classbot/pkg/speech"
)

func TestFromError_DeadlineIsGatewayTimeout(t *testing.T) {
	t.Parallel()

	e, status := FromError(fmt.Errorf("complete: %w", context.DeadlineExceeded), "req_1")
	if status != http.StatusGatewayTimeout {
		t.Fatalf("status=%d, want 504", status)
	}
	if e.Type != relay.ErrUpstream || e.Message != "upstream request timeout" {
		t.Fatalf("error=%+v", e)
	}
	if e.RequestID != "req_1" {
		t.Fatalf("request_id=%q", e.RequestID)
	}
}

func TestFromError_CanceledIsRequestTimeout(t *testing.T) {
	t.Parallel()

	_, status := FromError(context.Canceled, "req_1")
	if status != http.StatusRequestTimeout {
		t.Fatalf("status=%d, want 408", status)
	}
}

func TestFromError_RelayErrorKeepsTypeAndStampsRequestID(t *testing.T) {
	t.Parallel()

	orig := relay.NewInvalidRequestErrorWithParam("name is required", "name")
	e, status := FromError(orig, "req_2")
	if status != http.StatusBadRequest {
		t.Fatalf("status=%d", status)
	}
	if e.Param != "name" || e.RequestID != "req_2" {
		t.Fatalf("error=%+v", e)
	}
	if orig.RequestID != "" {
		t.Fatalf("original error mutated: %+v", orig)
	}
}

func TestFromError_VendorStatusPassthrough(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		err  error
		want int
	}{
		{"llm 429", &llm.Error{Status: 429, Message: "rate limited"}, 429},
		{"llm 401", fmt.Errorf("complete: %w", &llm.Error{Status: 401, Message: "bad key"}), 401},
		{"speech 403", &speech.Error{Status: 403, Message: "forbidden"}, 403},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e, status := FromError(tc.err, "req_3")
			if status != tc.want {
				t.Fatalf("status=%d, want %d", status, tc.want)
			}
			if e.Type != relay.ErrUpstream {
				t.Fatalf("type=%s", e.Type)
			}
		})
	}
}

func TestFromError_NoResponse(t *testing.T) {
	t.Parallel()

	e, status := FromError(llm.ErrNoResponse, "req_4")
	if status != http.StatusInternalServerError {
		t.Fatalf("status=%d", status)
	}
	if e.Message != "no response from model" {
		t.Fatalf("message=%q", e.Message)
	}
}

func TestFromError_UnknownErrorDoesNotLeak(t *testing.T) {
	t.Parallel()

	e, status := FromError(errors.New("pq: connection reset by peer"), "req_5")
	if status != http.StatusInternalServerError {
		t.Fatalf("status=%d", status)
	}
	if e.Message != "internal server error" {
		t.Fatalf("message=%q, internal detail must not leak", e.Message)
	}
}

func TestStatusFor(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		err  *relay.Error
		want int
	}{
		{"configuration", relay.NewConfigurationError("x"), http.StatusInternalServerError},
		{"invalid request", relay.NewInvalidRequestError("x"), http.StatusBadRequest},
		{"upstream with status", relay.NewUpstreamError("x", 503), 503},
		{"upstream without status", &relay.Error{Type: relay.ErrUpstream}, http.StatusBadGateway},
		{"not found", &relay.Error{Type: relay.ErrNotFound}, http.StatusNotFound},
		{"method not allowed", relay.NewMethodNotAllowedError("GET"), http.StatusMethodNotAllowed},
		{"api", relay.NewAPIError("x"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := StatusFor(tc.err); got != tc.want {
				t.Fatalf("StatusFor=%d, want %d", got, tc.want)
			}
		})
	}
}
