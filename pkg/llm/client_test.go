package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestComplete_SendsMessagesAndReturnsTrimmedReply(t *testing.T) {
	t.Parallel()

	var gotAuth string
	var gotReq chatRequest
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path=%s", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": "  素晴らしい質問ですね。  "}},
			},
		})
	}))
	defer ts.Close()

	c := NewClient(ts.URL, "sk-test", "gpt-4o")
	reply, err := c.Complete(context.Background(), []Message{
		{Role: "system", Content: "persona"},
		{Role: "user", Content: "hi"},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if reply != "素晴らしい質問ですね。" {
		t.Fatalf("reply=%q, want whitespace trimmed", reply)
	}
	if gotAuth != "Bearer sk-test" {
		t.Fatalf("Authorization=%q", gotAuth)
	}
	if gotReq.Model != "gpt-4o" || len(gotReq.Messages) != 2 {
		t.Fatalf("request=%+v", gotReq)
	}
}

func TestComplete_NoChoicesIsErrNoResponse(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		body string
	}{
		{"empty choices", `{"choices":[]}`},
		{"blank content", `{"choices":[{"message":{"role":"assistant","content":"   "}}]}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tc.body))
			}))
			defer ts.Close()

			c := NewClient(ts.URL, "sk-test", "gpt-4o")
			_, err := c.Complete(context.Background(), []Message{{Role: "user", Content: "hi"}})
			if !errors.Is(err, ErrNoResponse) {
				t.Fatalf("err=%v, want ErrNoResponse", err)
			}
		})
	}
}

func TestComplete_UpstreamErrorCarriesStatusAndMessage(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"Rate limit reached"}}`))
	}))
	defer ts.Close()

	c := NewClient(ts.URL, "sk-test", "gpt-4o")
	_, err := c.Complete(context.Background(), []Message{{Role: "user", Content: "hi"}})

	var upstreamErr *Error
	if !errors.As(err, &upstreamErr) {
		t.Fatalf("err=%v, want *Error", err)
	}
	if upstreamErr.Status != http.StatusTooManyRequests {
		t.Fatalf("Status=%d", upstreamErr.Status)
	}
	if upstreamErr.Message != "Rate limit reached" {
		t.Fatalf("Message=%q", upstreamErr.Message)
	}
}

func TestComplete_UpstreamErrorWithoutBodyUsesStatusText(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()

	c := NewClient(ts.URL, "sk-test", "gpt-4o")
	_, err := c.Complete(context.Background(), []Message{{Role: "user", Content: "hi"}})

	var upstreamErr *Error
	if !errors.As(err, &upstreamErr) {
		t.Fatalf("err=%v, want *Error", err)
	}
	if upstreamErr.Message != "Bad Gateway" {
		t.Fatalf("Message=%q", upstreamErr.Message)
	}
}

func TestComplete_ContextCancellation(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewClient(ts.URL, "sk-test", "gpt-4o")
	_, err := c.Complete(ctx, []Message{{Role: "user", Content: "hi"}})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v, want context.Canceled", err)
	}
}
