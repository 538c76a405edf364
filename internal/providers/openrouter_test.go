package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func chatResponse(content string) string {
	b, _ := json.Marshal(map[string]any{
		"id":    "gen-1",
		"model": "test-model",
		"choices": []map[string]any{
			{"message": map[string]any{"content": content}},
		},
		"usage": map[string]any{
			"prompt_tokens":     10,
			"completion_tokens": 5,
			"total_tokens":      15,
		},
	})
	return string(b)
}

func TestOpenRouterChat(t *testing.T) {
	var gotAuth string
	var gotReq openRouterRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&gotReq)
		fmt.Fprint(w, chatResponse(`{"sections": {}}`))
	}))
	defer srv.Close()

	client := NewOpenRouterClient(OpenRouterConfig{
		APIKey:  "test-key",
		Model:   "default-model",
		BaseURL: srv.URL,
	})

	result, err := client.Chat(context.Background(), &ChatRequest{
		Messages: []Message{{Role: "user", Content: "hello"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("auth header = %q", gotAuth)
	}
	if gotReq.Model != "default-model" {
		t.Errorf("model = %q, want client default", gotReq.Model)
	}
	if result.Content != `{"sections": {}}` {
		t.Errorf("content = %q", result.Content)
	}
	if result.TotalTokens != 15 {
		t.Errorf("total_tokens = %d", result.TotalTokens)
	}
	if result.Provider != OpenRouterName {
		t.Errorf("provider = %q", result.Provider)
	}
}

func TestOpenRouterStructuredOutput(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, chatResponse("```json\n{\"a\": 1}\n```"))
	}))
	defer srv.Close()

	client := NewOpenRouterClient(OpenRouterConfig{APIKey: "k", Model: "m", BaseURL: srv.URL})
	result, err := client.Chat(context.Background(), &ChatRequest{
		Messages:       []Message{{Role: "user", Content: "x"}},
		ResponseFormat: &ResponseFormat{Type: "json_schema"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if result.ParsedJSON == nil {
		t.Fatal("fenced JSON should have been recovered")
	}
	var v map[string]any
	if err := json.Unmarshal(result.ParsedJSON, &v); err != nil {
		t.Fatal(err)
	}

	t.Run("unparseable content is not fatal", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, chatResponse("sorry, no JSON today"))
		}))
		defer srv.Close()

		client := NewOpenRouterClient(OpenRouterConfig{APIKey: "k", Model: "m", BaseURL: srv.URL})
		result, err := client.Chat(context.Background(), &ChatRequest{
			Messages:       []Message{{Role: "user", Content: "x"}},
			ResponseFormat: &ResponseFormat{Type: "json_schema"},
		})
		if err != nil {
			t.Fatal(err)
		}
		if result.ParsedJSON != nil {
			t.Error("prose must not parse")
		}
		if result.Content != "sorry, no JSON today" {
			t.Errorf("raw content lost: %q", result.Content)
		}
	})
}

func TestOpenRouterRetries(t *testing.T) {
	t.Run("retries 5xx then succeeds", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) < 3 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			fmt.Fprint(w, chatResponse("ok"))
		}))
		defer srv.Close()

		client := NewOpenRouterClient(OpenRouterConfig{APIKey: "k", Model: "m", BaseURL: srv.URL, MaxRetries: 5})
		result, err := client.Chat(context.Background(), &ChatRequest{
			Messages: []Message{{Role: "user", Content: "x"}},
		})
		if err != nil {
			t.Fatal(err)
		}
		if result.Content != "ok" {
			t.Errorf("content = %q", result.Content)
		}
		if calls.Load() != 3 {
			t.Errorf("calls = %d, want 3", calls.Load())
		}
	})

	t.Run("4xx not retried", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer srv.Close()

		client := NewOpenRouterClient(OpenRouterConfig{APIKey: "k", Model: "m", BaseURL: srv.URL, MaxRetries: 5})
		_, err := client.Chat(context.Background(), &ChatRequest{
			Messages: []Message{{Role: "user", Content: "x"}},
		})
		if err == nil {
			t.Fatal("expected error")
		}
		if calls.Load() != 1 {
			t.Errorf("calls = %d, want 1 (no retry on 401)", calls.Load())
		}
	})

	t.Run("api error body not retried", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			fmt.Fprint(w, `{"error": {"code": "invalid_request", "message": "bad schema"}}`)
		}))
		defer srv.Close()

		client := NewOpenRouterClient(OpenRouterConfig{APIKey: "k", Model: "m", BaseURL: srv.URL, MaxRetries: 5})
		_, err := client.Chat(context.Background(), &ChatRequest{
			Messages: []Message{{Role: "user", Content: "x"}},
		})
		if err == nil {
			t.Fatal("expected error")
		}
		if calls.Load() != 1 {
			t.Errorf("calls = %d, want 1", calls.Load())
		}
	})
}

func TestMockLLMClient(t *testing.T) {
	mock := NewMockLLMClient(`{"first": true}`, `{"second": true}`)

	r1, err := mock.Chat(context.Background(), &ChatRequest{RequestID: "a"})
	if err != nil {
		t.Fatal(err)
	}
	r2, _ := mock.Chat(context.Background(), &ChatRequest{RequestID: "b"})
	r3, _ := mock.Chat(context.Background(), &ChatRequest{RequestID: "c"})

	if r1.Content != `{"first": true}` || r2.Content != `{"second": true}` {
		t.Errorf("responses out of order: %q, %q", r1.Content, r2.Content)
	}
	if r3.Content != r2.Content {
		t.Error("exhausted mock should repeat the last response")
	}
	if len(mock.Calls()) != 3 {
		t.Errorf("calls = %d", len(mock.Calls()))
	}

	t.Run("error mode", func(t *testing.T) {
		mock.SetError(fmt.Errorf("backend down"))
		if _, err := mock.Chat(context.Background(), &ChatRequest{}); err == nil {
			t.Error("expected configured error")
		}
	})
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	mock := NewMockLLMClient("{}")
	reg.Register("mock", mock)

	got, err := reg.Get("mock")
	if err != nil {
		t.Fatal(err)
	}
	if got != LLMClient(mock) {
		t.Error("registry returned a different client")
	}
	if _, err := reg.Get("absent"); err == nil {
		t.Error("expected error for unknown provider")
	}

	t.Run("load from config", func(t *testing.T) {
		err := reg.LoadFromConfig(RegistryConfig{LLMProviders: map[string]LLMProviderConfig{
			"router": {Type: "openrouter", Model: "m", APIKey: "k", Enabled: true},
			"off":    {Type: "openrouter", Model: "m", APIKey: "k", Enabled: false},
		}})
		if err != nil {
			t.Fatal(err)
		}
		if _, err := reg.Get("router"); err != nil {
			t.Errorf("enabled provider missing: %v", err)
		}
		if _, err := reg.Get("off"); err == nil {
			t.Error("disabled provider should not be registered")
		}
	})
}
