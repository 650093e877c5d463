package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/classbot-dev/classbot/pkg/relay"
	"github.com/classbot-dev/classbot/pkg/relay/config"
	"github.com/classbot-dev/classbot/pkg/relay/metrics"
	"github.com/classbot-dev/classbot/pkg/relay/mw"
)

// TokenIssuer is the speech vendor capability the token relay depends on.
type TokenIssuer interface {
	IssueToken(ctx context.Context) (string, error)
}

type speechTokenResponse struct {
	Token  string `json:"token"`
	Region string `json:"region"`
}

// SpeechTokenHandler exchanges the server-held subscription key for a
// short-lived vendor token so the client never sees the raw secret.
type SpeechTokenHandler struct {
	Config  config.Config
	Tokens  TokenIssuer
	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

func (h SpeechTokenHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	reqID, _ := mw.RequestIDFrom(r.Context())

	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w, reqID, http.MethodGet)
		return
	}

	if !h.Config.SpeechConfigured() || h.Tokens == nil {
		if h.Logger != nil {
			h.Logger.Error("speech token requested without SPEECH_KEY and SPEECH_REGION/SPEECH_ENDPOINT set")
		}
		writeErrorJSON(w, reqID, relay.NewConfigurationError("speech vendor not configured"), http.StatusInternalServerError)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.Config.UpstreamTimeout)
	defer cancel()

	token, err := h.Tokens.IssueToken(ctx)
	if err != nil {
		if h.Logger != nil {
			h.Logger.Error("token issuance failed", "request_id", reqID, "error", err)
		}
		recordUpstreamError(h.Metrics, "speech", err)
		writeError(w, reqID, err)
		return
	}

	writeJSON(w, http.StatusOK, speechTokenResponse{Token: token, Region: h.Config.SpeechRegion})
}
