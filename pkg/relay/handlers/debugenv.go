package handlers

import (
	"net/http"

	"github.com/classbot-dev/classbot/pkg/relay/config"
	"github.com/classbot-dev/classbot/pkg/relay/mw"
)

// DebugEnvHandler lets an operator verify which vendor configuration the
// process actually sees. Keys are reported as presence booleans plus a
// redacted hint; the full key is never returned.
type DebugEnvHandler struct {
	Config config.Config
}

func (h DebugEnvHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	reqID, _ := mw.RequestIDFrom(r.Context())

	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w, reqID, http.MethodGet)
		return
	}

	type debugResp struct {
		ModelKeySet    bool   `json:"model_key_set"`
		SpeechKeySet   bool   `json:"speech_key_set"`
		SpeechKeyHint  string `json:"speech_key_hint"`
		SpeechRegion   string `json:"speech_region"`
		SpeechEndpoint string `json:"speech_endpoint"`
	}

	writeJSON(w, http.StatusOK, debugResp{
		ModelKeySet:    h.Config.OpenAIAPIKey != "",
		SpeechKeySet:   h.Config.SpeechKey != "",
		SpeechKeyHint:  redactKey(h.Config.SpeechKey),
		SpeechRegion:   h.Config.SpeechRegion,
		SpeechEndpoint: h.Config.SpeechEndpoint,
	})
}

// redactKey keeps the first and last four characters of a key so an
// operator can tell which key is loaded without exposing it.
func redactKey(key string) string {
	if key == "" {
		return "not set"
	}
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
