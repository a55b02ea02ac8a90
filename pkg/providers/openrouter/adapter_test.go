package openrouter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/voxnav/voxnav/pkg/errorsx"
	"github.com/voxnav/voxnav/pkg/llm"
)

func TestGenerateRoundTrip(t *testing.T) {
	var gotAuth string
	var gotReq chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotReq)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"{\"intent\":\"HELP\"}"},"finish_reason":"stop"}],"usage":{"prompt_tokens":10,"completion_tokens":5,"total_tokens":15}}`))
	}))
	defer srv.Close()

	a := NewAdapter("key-123", "meta-llama/llama-3.1-8b-instruct")
	a.BaseURL = srv.URL

	resp, err := a.Generate(context.Background(), llm.Context{
		Messages:    []llm.Message{{Role: "user", Content: "help"}},
		Temperature: 0.1,
		MaxTokens:   64,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Text != `{"intent":"HELP"}` {
		t.Fatalf("text = %q", resp.Text)
	}
	if resp.Usage.TotalTokens != 15 {
		t.Fatalf("usage = %+v", resp.Usage)
	}
	if gotAuth != "Bearer key-123" {
		t.Fatalf("auth = %q", gotAuth)
	}
	if gotReq.Model != "meta-llama/llama-3.1-8b-instruct" || len(gotReq.Messages) != 1 {
		t.Fatalf("request = %+v", gotReq)
	}
}

func TestGenerateRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	a := NewAdapter("k", "m")
	a.BaseURL = srv.URL

	_, err := a.Generate(context.Background(), llm.Context{Messages: []llm.Message{{Role: "user", Content: "hi"}}})
	if errorsx.Reason(err) != errorsx.ReasonLLMRateLimit {
		t.Fatalf("expected rate limit reason, got %v", err)
	}
}

func TestGenerateServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	a := NewAdapter("k", "m")
	a.BaseURL = srv.URL

	_, err := a.Generate(context.Background(), llm.Context{Messages: []llm.Message{{Role: "user", Content: "hi"}}})
	if errorsx.Reason(err) != errorsx.ReasonLLMGenerate {
		t.Fatalf("expected generate reason, got %v", err)
	}
}
