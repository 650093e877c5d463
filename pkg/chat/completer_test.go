package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRelayCompleter_SendsHistoryAndDecodesReply(t *testing.T) {
	t.Parallel()

	var gotBody struct {
		ConversationHistory []Turn `json:"conversationHistory"`
	}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/chat", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "なるほど！"})
	}))
	defer ts.Close()

	c := NewRelayCompleter(ts.URL, 5*time.Second)
	reply, err := c.Complete(context.Background(), []Turn{
		{Role: RoleAssistant, Content: "こんにちは！"},
		{Role: RoleUser, Content: "hi"},
	})
	require.NoError(t, err)
	assert.Equal(t, "なるほど！", reply)
	require.Len(t, gotBody.ConversationHistory, 2)
	assert.Equal(t, RoleUser, gotBody.ConversationHistory[1].Role)
}

func TestRelayCompleter_SurfacesEnvelopeError(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"type":"upstream_error","message":"rate limited"}}`))
	}))
	defer ts.Close()

	c := NewRelayCompleter(ts.URL, 5*time.Second)
	_, err := c.Complete(context.Background(), []Turn{{Role: RoleUser, Content: "hi"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")
}

func TestRelayCompleter_EmptyMessageIsError(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"message":""}`))
	}))
	defer ts.Close()

	c := NewRelayCompleter(ts.URL, 5*time.Second)
	_, err := c.Complete(context.Background(), []Turn{{Role: RoleUser, Content: "hi"}})
	require.Error(t, err)
}
