package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOpenAIClient_Chat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("expected bearer auth header, got %q", r.Header.Get("Authorization"))
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{
					"message":       map[string]interface{}{"content": "hi there"},
					"finish_reason": "stop",
				},
			},
			"usage": map[string]int{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
		})
	}))
	defer srv.Close()

	client := NewOpenAIClient("openai", "test-key", srv.URL, "gpt-4o")
	resp, err := client.Chat(context.Background(), ChatRequest{
		Messages: []Message{{Role: "user", Content: "hello"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "hi there" {
		t.Fatalf("unexpected content %q", resp.Content)
	}
	if resp.Usage == nil || resp.Usage.TotalTokens != 15 {
		t.Fatalf("unexpected usage %+v", resp.Usage)
	}
}

func TestOpenAIClient_ResolveModelFallsBackForUnprefixedOpenRouterModel(t *testing.T) {
	client := NewOpenAIClient("openrouter", "key", "", "anthropic/claude-sonnet-4-5")
	if got := client.resolveModel("gpt-4o"); got != "anthropic/claude-sonnet-4-5" {
		t.Fatalf("expected fallback to default model, got %q", got)
	}
	if got := client.resolveModel("openai/gpt-4o"); got != "openai/gpt-4o" {
		t.Fatalf("expected prefixed model preserved, got %q", got)
	}
}
