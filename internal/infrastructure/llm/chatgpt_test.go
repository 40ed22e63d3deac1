package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"AssignmentPilot/internal/config"
)

func TestGenerateReturnsCompletionText(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer key" {
			t.Errorf("missing auth header, got %q", got)
		}

		var payload struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if payload.Model != "gpt-4" {
			t.Errorf("unexpected model: %q", payload.Model)
		}
		if len(payload.Messages) != 2 || payload.Messages[1].Content != "solve this" {
			t.Errorf("unexpected messages: %+v", payload.Messages)
		}

		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"the answer"}}]}`))
	}))
	t.Cleanup(server.Close)

	client := NewChatGPTClient(config.ChatGPTConfig{
		Endpoint: server.URL,
		Model:    "gpt-4",
		APIKey:   "key",
	})

	got, err := client.Generate(context.Background(), "solve this")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if got != "the answer" {
		t.Fatalf("unexpected completion: %q", got)
	}
}

func TestGenerateServiceErrorSurfaces(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"rate limit"}`, http.StatusTooManyRequests)
	}))
	t.Cleanup(server.Close)

	client := NewChatGPTClient(config.ChatGPTConfig{
		Endpoint: server.URL,
		Model:    "gpt-4",
		APIKey:   "key",
	})

	if _, err := client.Generate(context.Background(), "solve this"); err == nil {
		t.Fatal("expected error on 429 response")
	}
}

func TestGenerateEmptyChoices(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	t.Cleanup(server.Close)

	client := NewChatGPTClient(config.ChatGPTConfig{
		Endpoint: server.URL,
		Model:    "gpt-4",
		APIKey:   "key",
	})

	if _, err := client.Generate(context.Background(), "solve this"); err == nil {
		t.Fatal("expected error when no choices returned")
	}
}

func TestGenerateMisconfiguredClient(t *testing.T) {
	t.Parallel()

	client := NewChatGPTClient(config.ChatGPTConfig{Endpoint: "https://api.example.org", Model: "gpt-4"})
	if _, err := client.Generate(context.Background(), "solve this"); err == nil {
		t.Fatal("expected error without api key")
	}
}
