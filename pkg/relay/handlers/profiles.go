package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/classbot-dev/classbot/pkg/relay"
	"github.com/classbot-dev/classbot/pkg/relay/config"
	"github.com/classbot-dev/classbot/pkg/relay/metrics"
	"github.com/classbot-dev/classbot/pkg/relay/mw"
	"github.com/classbot-dev/classbot/pkg/speech"
)

// ProfileStore is the speaker-recognition vendor capability the enrollment
// relay depends on.
type ProfileStore interface {
	CreateProfile(ctx context.Context, locale string) (string, error)
	CreateEnrollment(ctx context.Context, profileID string, audio io.Reader) (*speech.EnrollmentResult, error)
}

type createProfileRequest struct {
	Name string `json:"name"`
}

type createProfileResponse struct {
	ProfileID string `json:"profileId"`
}

// ProfilesHandler creates speaker profiles (POST) and enrolls voice audio
// for an existing profile (PUT). It keeps no profile state of its own; the
// vendor id is held only for the duration of one exchange.
type ProfilesHandler struct {
	Config   config.Config
	Profiles ProfileStore
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
}

func (h ProfilesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	reqID, _ := mw.RequestIDFrom(r.Context())

	switch r.Method {
	case http.MethodPost:
		h.createProfile(w, r, reqID)
	case http.MethodPut:
		h.createEnrollment(w, r, reqID)
	default:
		writeMethodNotAllowed(w, reqID, http.MethodPost, http.MethodPut)
	}
}

func (h ProfilesHandler) createProfile(w http.ResponseWriter, r *http.Request, reqID string) {
	r.Body = http.MaxBytesReader(w, r.Body, h.Config.MaxBodyBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeErrorJSON(w, reqID, relay.NewInvalidRequestError("failed to read request body"), http.StatusBadRequest)
		return
	}

	var req createProfileRequest
	if len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			writeErrorJSON(w, reqID, relay.NewInvalidRequestError("malformed JSON body"), http.StatusBadRequest)
			return
		}
	}
	if strings.TrimSpace(req.Name) == "" {
		writeErrorJSON(w, reqID,
			relay.NewInvalidRequestErrorWithParam("name is required in request body", "name"),
			http.StatusBadRequest)
		return
	}

	if !h.Config.SpeechConfigured() || h.Profiles == nil {
		writeErrorJSON(w, reqID, relay.NewConfigurationError("speech vendor not configured"), http.StatusInternalServerError)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.Config.UpstreamTimeout)
	defer cancel()

	profileID, err := h.Profiles.CreateProfile(ctx, h.Config.Locale)
	if err != nil {
		if h.Logger != nil {
			h.Logger.Error("profile creation failed", "request_id", reqID, "name", req.Name, "error", err)
		}
		recordUpstreamError(h.Metrics, "speech", err)
		h.writeVendorError(w, reqID, "failed to create profile", err)
		return
	}

	if h.Logger != nil {
		h.Logger.Info("speaker profile created", "request_id", reqID, "name", req.Name)
	}
	writeJSON(w, http.StatusCreated, createProfileResponse{ProfileID: profileID})
}

func (h ProfilesHandler) createEnrollment(w http.ResponseWriter, r *http.Request, reqID string) {
	// The profile id comes from a header only; body-supplied ids are not
	// accepted because the body is the raw audio stream.
	profileID := strings.TrimSpace(r.Header.Get("X-Profile-Id"))
	if profileID == "" {
		writeErrorJSON(w, reqID,
			relay.NewInvalidRequestErrorWithParam("profile ID is required in X-Profile-Id header", "X-Profile-Id"),
			http.StatusBadRequest)
		return
	}

	if !h.Config.SpeechConfigured() || h.Profiles == nil {
		writeErrorJSON(w, reqID, relay.NewConfigurationError("speech vendor not configured"), http.StatusInternalServerError)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.Config.UpstreamTimeout)
	defer cancel()

	result, err := h.Profiles.CreateEnrollment(ctx, profileID, http.MaxBytesReader(w, r.Body, h.Config.MaxBodyBytes))
	if err != nil {
		if h.Logger != nil {
			h.Logger.Error("voice enrollment failed", "request_id", reqID, "error", err)
		}
		recordUpstreamError(h.Metrics, "speech", err)
		h.writeVendorError(w, reqID, "failed to enroll voice", err)
		return
	}

	// Vendor response passthrough: 200, or 202 when enrollment is accepted
	// asynchronously.
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(result.Status)
	_, _ = w.Write(result.Body)
}

// writeVendorError reports any vendor-facing failure on the profiles
// endpoint as 500, with a message derived from the vendor's structured
// error when available.
func (h ProfilesHandler) writeVendorError(w http.ResponseWriter, reqID, prefix string, err error) {
	var vendorErr *speech.Error
	if errors.As(err, &vendorErr) && vendorErr != nil {
		writeErrorJSON(w, reqID, relay.NewAPIError(prefix+": "+vendorErr.Message), http.StatusInternalServerError)
		return
	}
	writeError(w, reqID, err)
}
