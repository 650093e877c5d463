package handlers

import (
	"net/http"

	"github.com/classbot-dev/classbot/pkg/relay/config"
)

type HealthHandler struct{}

func (h HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

type ReadyHandler struct {
	Config config.Config
}

func (h ReadyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	type readyResp struct {
		OK               bool     `json:"ok"`
		ModelConfigured  bool     `json:"model_configured"`
		SpeechConfigured bool     `json:"speech_configured"`
		Issues           []string `json:"issues,omitempty"`
	}

	issues := make([]string, 0, 4)

	if h.Config.MaxBodyBytes <= 0 {
		issues = append(issues, "max_body_bytes must be > 0")
	}
	if h.Config.UpstreamTimeout <= 0 {
		issues = append(issues, "upstream timeout must be > 0")
	}
	if h.Config.ReadHeaderTimeout <= 0 || h.Config.ReadTimeout <= 0 {
		issues = append(issues, "timeouts must be > 0")
	}
	if h.Config.Model == "" {
		issues = append(issues, "model id must not be empty")
	}
	if h.Config.Locale == "" {
		issues = append(issues, "locale must not be empty")
	}

	ok := len(issues) == 0
	status := http.StatusOK
	if !ok {
		status = http.StatusInternalServerError
	}

	writeJSON(w, status, readyResp{
		OK:               ok,
		ModelConfigured:  h.Config.OpenAIAPIKey != "",
		SpeechConfigured: h.Config.SpeechConfigured(),
		Issues:           issues,
	})
}
