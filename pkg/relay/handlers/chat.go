package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/classbot-dev/classbot/pkg/chat"
	"github.com/classbot-dev/classbot/pkg/llm"
	"github.com/classbot-dev/classbot/pkg/persona"
	"github.com/classbot-dev/classbot/pkg/relay"
	"github.com/classbot-dev/classbot/pkg/relay/config"
	"github.com/classbot-dev/classbot/pkg/relay/metrics"
	"github.com/classbot-dev/classbot/pkg/relay/mw"
)

// Completer is the completion vendor capability the chat relay depends on.
type Completer interface {
	Complete(ctx context.Context, messages []llm.Message) (string, error)
}

type chatRequest struct {
	ConversationHistory []chat.Turn `json:"conversationHistory"`
}

type chatResponse struct {
	Message string `json:"message"`
}

// ChatHandler relays an ordered conversation history to the completion
// vendor, always prepending the server-held persona instruction.
type ChatHandler struct {
	Config      config.Config
	Persona     persona.Persona
	Completions Completer
	Logger      *slog.Logger
	Metrics     *metrics.Metrics
}

func (h ChatHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	reqID, _ := mw.RequestIDFrom(r.Context())

	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, reqID, http.MethodPost)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.Config.MaxBodyBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeErrorJSON(w, reqID, relay.NewInvalidRequestError("failed to read request body"), http.StatusBadRequest)
		return
	}

	var req chatRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeErrorJSON(w, reqID, relay.NewInvalidRequestError("malformed JSON body"), http.StatusBadRequest)
		return
	}
	if len(req.ConversationHistory) == 0 {
		writeErrorJSON(w, reqID,
			relay.NewInvalidRequestErrorWithParam("conversation history is required", "conversationHistory"),
			http.StatusBadRequest)
		return
	}

	if h.Config.OpenAIAPIKey == "" || h.Completions == nil {
		writeErrorJSON(w, reqID, relay.NewConfigurationError("model API key not configured"), http.StatusInternalServerError)
		return
	}

	// The persona instruction is never supplied by the caller: it is
	// injected here, always first, and the caller's history follows in its
	// original order.
	messages := make([]llm.Message, 0, len(req.ConversationHistory)+1)
	messages = append(messages, llm.Message{
		Role:    string(chat.RoleSystem),
		Content: h.Persona.Instruction,
	})
	for _, t := range req.ConversationHistory {
		messages = append(messages, llm.Message{Role: string(t.Role), Content: t.Content})
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.Config.UpstreamTimeout)
	defer cancel()

	reply, err := h.Completions.Complete(ctx, messages)
	if err != nil {
		if h.Logger != nil {
			h.Logger.Error("completion relay failed", "request_id", reqID, "error", err)
		}
		recordUpstreamError(h.Metrics, "openai", err)
		writeError(w, reqID, err)
		return
	}

	writeJSON(w, http.StatusOK, chatResponse{Message: reply})
}
