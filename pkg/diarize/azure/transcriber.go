// Package azure adapts the speech vendor's streaming conversation
// transcription endpoint to the diarize.Transcriber interface.
package azure

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/classbot-dev/classbot/pkg/diarize"
)

// TokenSource supplies a short-lived vendor token plus region, typically
// from the relay's speech-token endpoint.
type TokenSource interface {
	SpeechToken(ctx context.Context) (token, region string, err error)
}

// RelayTokenSource fetches tokens from the relay server.
type RelayTokenSource struct {
	BaseURL    string
	HTTPClient *http.Client
}

type tokenResponse struct {
	Token  string `json:"token"`
	Region string `json:"region"`
}

// SpeechToken calls the relay's token endpoint.
func (ts *RelayTokenSource) SpeechToken(ctx context.Context) (string, string, error) {
	httpClient := ts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.BaseURL+"/api/speech-token", nil)
	if err != nil {
		return "", "", fmt.Errorf("create request: %w", err)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("fetch speech token: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return "", "", fmt.Errorf("speech token status %d: %s", resp.StatusCode, string(body))
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", "", fmt.Errorf("decode speech token: %w", err)
	}
	if tr.Token == "" {
		return "", "", fmt.Errorf("speech token response missing token")
	}
	return tr.Token, tr.Region, nil
}

// Transcriber dials the vendor's conversation transcription websocket and
// exposes it as a diarize engine.
type Transcriber struct {
	Tokens   TokenSource
	Language string

	// EndpointOverride replaces the region-derived websocket URL, for
	// operators fronting the vendor with a private endpoint and for tests.
	EndpointOverride string

	// HandshakeTimeout bounds the websocket dial. Zero means 10s.
	HandshakeTimeout time.Duration
}

// Start fetches a token, dials the vendor and begins delivering events to
// the callbacks until the engine is stopped or the vendor ends the session.
func (t *Transcriber) Start(ctx context.Context, cb diarize.Callbacks) (diarize.Engine, error) {
	if t.Tokens == nil {
		return nil, fmt.Errorf("azure: TokenSource is required")
	}

	token, region, err := t.Tokens.SpeechToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("authorize: %w", err)
	}

	wsURL, err := t.endpointURL(region)
	if err != nil {
		return nil, err
	}

	handshake := t.HandshakeTimeout
	if handshake <= 0 {
		handshake = 10 * time.Second
	}
	dialer := websocket.Dialer{HandshakeTimeout: handshake}

	headers := http.Header{}
	headers.Set("Authorization", "Bearer "+token)

	conn, resp, err := dialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		if resp != nil {
			defer func() { _ = resp.Body.Close() }()
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
			if len(body) > 0 {
				return nil, fmt.Errorf("websocket connect (status %d): %s", resp.StatusCode, string(body))
			}
			return nil, fmt.Errorf("websocket connect: status %d: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("websocket connect: %w", err)
	}

	e := &engine{
		conn: conn,
		cb:   cb,
		done: make(chan struct{}),
	}
	go e.readLoop()
	return e, nil
}

func (t *Transcriber) endpointURL(region string) (string, error) {
	if t.EndpointOverride != "" {
		return t.EndpointOverride, nil
	}
	if region == "" {
		return "", fmt.Errorf("azure: no region in token response and no endpoint override")
	}

	language := t.Language
	if language == "" {
		language = "ja-JP"
	}

	u := url.URL{
		Scheme: "wss",
		Host:   fmt.Sprintf("%s.stt.speech.microsoft.com", region),
		Path:   "/speech/universal/v2",
	}
	q := u.Query()
	q.Set("language", language)
	q.Set("setfeature", "multichannel2")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// transcriptionEvent is the vendor's per-utterance wire message.
type transcriptionEvent struct {
	Type      string `json:"type"` // "transcribed", "session_stopped", "canceled", "error"
	SpeakerID string `json:"speakerId"`
	Text      string `json:"text"`
	Reason    string `json:"reason"`
}

// engine is one live websocket transcription session.
type engine struct {
	conn       *websocket.Conn
	cb         diarize.Callbacks
	done       chan struct{}
	finishOnce sync.Once
	closed     atomic.Bool
	writeMu    sync.Mutex
}

// finish marks the session as ended. It must run before any terminal
// callback fires: callbacks may re-enter Stop from the read goroutine
// itself, and Stop must not wait on a goroutine that is blocked inside the
// callback.
func (e *engine) finish() {
	e.finishOnce.Do(func() { close(e.done) })
}

func (e *engine) readLoop() {
	defer e.finish()

	for {
		_, data, err := e.conn.ReadMessage()
		if err != nil {
			if !e.closed.Load() && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				e.finish()
				if e.cb.OnCanceled != nil {
					e.cb.OnCanceled(err.Error())
				}
			}
			return
		}

		var ev transcriptionEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			continue
		}

		switch ev.Type {
		case "transcribed":
			if ev.Text == "" {
				continue
			}
			if e.cb.OnUtterance != nil {
				e.cb.OnUtterance(diarize.SpeakerID(ev.SpeakerID), ev.Text)
			}

		case "session_stopped":
			e.finish()
			if e.cb.OnStopped != nil {
				e.cb.OnStopped()
			}
			return

		case "canceled", "error":
			e.finish()
			if e.cb.OnCanceled != nil {
				e.cb.OnCanceled(ev.Reason)
			}
			return
		}
	}
}

// SendAudio streams one audio frame to the vendor.
func (e *engine) SendAudio(data []byte) error {
	if e.closed.Load() {
		return fmt.Errorf("azure: engine closed")
	}
	e.writeMu.Lock()
	defer e.writeMu.Unlock()
	return e.conn.WriteMessage(websocket.BinaryMessage, data)
}

// Stop requests graceful shutdown and waits for the vendor to end the
// session or the context to expire.
func (e *engine) Stop(ctx context.Context) error {
	if e.closed.Load() {
		return nil
	}
	select {
	case <-e.done:
		return nil
	default:
	}

	e.writeMu.Lock()
	err := e.conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"stop"}`))
	e.writeMu.Unlock()
	if err != nil {
		return fmt.Errorf("send stop: %w", err)
	}

	select {
	case <-e.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close tears the connection down. Safe to call repeatedly and after a
// failed Stop.
func (e *engine) Close() error {
	if e.closed.Swap(true) {
		return nil
	}

	e.writeMu.Lock()
	_ = e.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	e.writeMu.Unlock()

	return e.conn.Close()
}
