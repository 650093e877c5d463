package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// RelayCompleter calls the relay server's completion endpoint.
type RelayCompleter struct {
	baseURL    string
	httpClient *http.Client
}

// NewRelayCompleter creates a completer for the relay at baseURL. The
// timeout bounds each completion call; zero means no client-side bound.
func NewRelayCompleter(baseURL string, timeout time.Duration) *RelayCompleter {
	return &RelayCompleter{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

type relayRequest struct {
	ConversationHistory []Turn `json:"conversationHistory"`
}

type relayResponse struct {
	Message string `json:"message"`
}

type relayErrorEnvelope struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Complete posts the full history to the relay and returns the assistant
// reply text.
func (c *RelayCompleter) Complete(ctx context.Context, history []Turn) (string, error) {
	body, err := json.Marshal(relayRequest{ConversationHistory: history})
	if err != nil {
		return "", fmt.Errorf("marshal history: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("completion relay: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read relay response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var envelope relayErrorEnvelope
		if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Error.Message != "" {
			return "", fmt.Errorf("relay status %d: %s", resp.StatusCode, envelope.Error.Message)
		}
		return "", fmt.Errorf("relay status %d", resp.StatusCode)
	}

	var relayResp relayResponse
	if err := json.Unmarshal(raw, &relayResp); err != nil {
		return "", fmt.Errorf("decode relay response: %w", err)
	}
	if relayResp.Message == "" {
		return "", fmt.Errorf("relay returned an empty reply")
	}
	return relayResp.Message, nil
}
