package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/classbot-dev/classbot/pkg/llm"
	"github.com/classbot-dev/classbot/pkg/relay"
	"github.com/classbot-dev/classbot/pkg/relay/apierror"
	"github.com/classbot-dev/classbot/pkg/relay/metrics"
	"github.com/classbot-dev/classbot/pkg/speech"
)

// recordUpstreamError counts a vendor call failure, labeled with the
// vendor's HTTP status when the error carries one. Status 0 marks
// transport-level failures that never produced a response.
func recordUpstreamError(m *metrics.Metrics, vendor string, err error) {
	if m == nil {
		return
	}
	status := 0
	var llmErr *llm.Error
	var speechErr *speech.Error
	switch {
	case errors.As(err, &llmErr):
		status = llmErr.Status
	case errors.As(err, &speechErr):
		status = speechErr.Status
	}
	m.RecordUpstreamError(vendor, status)
}

func writeError(w http.ResponseWriter, reqID string, err error) {
	relayErr, status := apierror.FromError(err, reqID)
	writeErrorJSON(w, reqID, relayErr, status)
}

func writeErrorJSON(w http.ResponseWriter, reqID string, relayErr *relay.Error, status int) {
	if relayErr != nil && relayErr.RequestID == "" {
		relayErr.RequestID = reqID
	}
	if relayErr != nil && len(relayErr.Allow) > 0 {
		w.Header().Set("Allow", strings.Join(relayErr.Allow, ", "))
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(apierror.Envelope{Error: relayErr})
}

func writeMethodNotAllowed(w http.ResponseWriter, reqID string, allow ...string) {
	writeErrorJSON(w, reqID, relay.NewMethodNotAllowedError(allow...), http.StatusMethodNotAllowed)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
