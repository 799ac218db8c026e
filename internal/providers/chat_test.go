package providers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func chatCompletionResponse(content string) map[string]any {
	return map[string]any{
		"id":    "test-id",
		"model": "test-model",
		"choices": []map[string]any{
			{
				"message": map[string]any{
					"role":    "assistant",
					"content": content,
				},
				"finish_reason": "stop",
			},
		},
		"usage": map[string]int{
			"prompt_tokens":     10,
			"completion_tokens": 8,
			"total_tokens":      18,
		},
	}
}

func TestChatClient_Chat(t *testing.T) {
	t.Run("successful chat", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/chat/completions" {
				t.Errorf("unexpected path: %s", r.URL.Path)
			}
			if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
				t.Errorf("unexpected authorization: %s", auth)
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(chatCompletionResponse("Naomi went back."))
		}))
		defer server.Close()

		client := NewChatClient(ChatConfig{
			APIKey:  "test-key",
			BaseURL: server.URL,
		})

		result, err := client.Chat(context.Background(), &ChatRequest{
			Messages: []Message{{Role: "user", Content: "modernize"}},
		})
		if err != nil {
			t.Fatalf("Chat() error = %v", err)
		}
		if !result.Success {
			t.Error("expected Success = true")
		}
		if result.Content != "Naomi went back." {
			t.Errorf("Content = %q", result.Content)
		}
		if result.TotalTokens != 18 {
			t.Errorf("TotalTokens = %d, want 18", result.TotalTokens)
		}
	})

	t.Run("structured output parsed", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var req chatAPIRequest
			json.NewDecoder(r.Body).Decode(&req)
			if req.ResponseFormat == nil || req.ResponseFormat.Type != "json_schema" {
				t.Error("response_format not forwarded")
			}
			json.NewEncoder(w).Encode(chatCompletionResponse(`{"pass": false, "reason": "added meaning"}`))
		}))
		defer server.Close()

		client := NewChatClient(ChatConfig{APIKey: "k", BaseURL: server.URL})
		result, err := client.Chat(context.Background(), &ChatRequest{
			Messages:       []Message{{Role: "user", Content: "audit"}},
			ResponseFormat: &ResponseFormat{Type: "json_schema"},
		})
		if err != nil {
			t.Fatalf("Chat() error = %v", err)
		}
		if result.ParsedJSON == nil {
			t.Fatal("ParsedJSON not set")
		}
		var verdict struct {
			Pass   bool   `json:"pass"`
			Reason string `json:"reason"`
		}
		if err := json.Unmarshal(result.ParsedJSON, &verdict); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if verdict.Pass || verdict.Reason != "added meaning" {
			t.Errorf("verdict = %+v", verdict)
		}
	})

	t.Run("malformed structured output flagged", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(chatCompletionResponse("not json at all"))
		}))
		defer server.Close()

		client := NewChatClient(ChatConfig{APIKey: "k", BaseURL: server.URL})
		result, err := client.Chat(context.Background(), &ChatRequest{
			Messages:       []Message{{Role: "user", Content: "audit"}},
			ResponseFormat: &ResponseFormat{Type: "json_schema"},
		})
		if err != nil {
			t.Fatalf("Chat() error = %v", err)
		}
		if result.Success {
			t.Error("expected Success = false for unparseable structured output")
		}
		if result.ErrorType != "json_parse" {
			t.Errorf("ErrorType = %q", result.ErrorType)
		}
	})

	t.Run("retries on 500 then succeeds", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) == 1 {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			json.NewEncoder(w).Encode(chatCompletionResponse("ok"))
		}))
		defer server.Close()

		client := NewChatClient(ChatConfig{
			APIKey:     "k",
			BaseURL:    server.URL,
			RetryDelay: time.Millisecond,
		})
		result, err := client.Chat(context.Background(), &ChatRequest{
			Messages: []Message{{Role: "user", Content: "x"}},
		})
		if err != nil {
			t.Fatalf("Chat() error = %v", err)
		}
		if result.Content != "ok" {
			t.Errorf("Content = %q", result.Content)
		}
		if calls.Load() != 2 {
			t.Errorf("calls = %d, want 2", calls.Load())
		}
	})

	t.Run("non-retryable status fails", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer server.Close()

		client := NewChatClient(ChatConfig{APIKey: "bad", BaseURL: server.URL, RetryDelay: time.Millisecond})
		_, err := client.Chat(context.Background(), &ChatRequest{
			Messages: []Message{{Role: "user", Content: "x"}},
		})
		if err == nil {
			t.Fatal("expected error for 401")
		}
		var perr *ProviderError
		if !errors.As(err, &perr) {
			t.Errorf("expected ProviderError, got %T", err)
		}
	})
}

func TestRateLimiter(t *testing.T) {
	t.Run("consume up to limit", func(t *testing.T) {
		r := NewRateLimiter(10)
		for i := 0; i < 10; i++ {
			if !r.TryConsume() {
				t.Fatalf("token %d unavailable", i)
			}
		}
		if r.TryConsume() {
			t.Error("11th token should not be available immediately")
		}
	})

	t.Run("wait respects cancellation", func(t *testing.T) {
		r := NewRateLimiter(1)
		if !r.TryConsume() {
			t.Fatal("first token unavailable")
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		if err := r.Wait(ctx); err == nil {
			t.Error("expected context error while waiting for refill")
		}
	})

	t.Run("429 drains tokens", func(t *testing.T) {
		r := NewRateLimiter(10)
		r.Record429(time.Second)
		if r.TryConsume() {
			t.Error("tokens should be drained after 429")
		}
	})
}
