package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/navbuddy/navbuddy/llm"
)

func TestChat(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("path = %s, want /api/chat", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"message":           map[string]string{"role": "assistant", "content": `{"kind":"list"}`},
			"done":              true,
			"eval_count":        12,
			"prompt_eval_count": 34,
		})
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})
	res, err := c.Chat(context.Background(), llm.Request{
		Model:     "llama3.2",
		ForceJSON: true,
		Messages: []llm.Message{
			{Role: "system", Content: "translate"},
			{Role: "user", Content: "list my files"},
		},
		Options: map[string]any{"temperature": 0},
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if res.Text != `{"kind":"list"}` {
		t.Fatalf("text = %q", res.Text)
	}
	if res.Usage.TotalTokens != 46 {
		t.Fatalf("total tokens = %d, want 46", res.Usage.TotalTokens)
	}

	if gotBody["model"] != "llama3.2" {
		t.Fatalf("request model = %v", gotBody["model"])
	}
	if gotBody["format"] != "json" {
		t.Fatalf("request format = %v, want json", gotBody["format"])
	}
	if gotBody["stream"] != false {
		t.Fatalf("request stream = %v, want false", gotBody["stream"])
	}
}

func TestChatServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `model not found`, http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})
	_, err := c.Chat(context.Background(), llm.Request{Model: "missing"})
	if err == nil || !strings.Contains(err.Error(), "404") {
		t.Fatalf("error = %v, want status 404", err)
	}
}

func TestChatInlineError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"error": "model is loading"})
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})
	_, err := c.Chat(context.Background(), llm.Request{Model: "llama3.2"})
	if err == nil || !strings.Contains(err.Error(), "model is loading") {
		t.Fatalf("error = %v, want inline error", err)
	}
}

func TestChatRequiresModel(t *testing.T) {
	c := New(Config{})
	if _, err := c.Chat(context.Background(), llm.Request{}); err == nil {
		t.Fatal("expected error for missing model")
	}
}

func TestListModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			t.Errorf("path = %s, want /api/tags", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"models": []map[string]any{
				{"name": "llama3.2", "size": 2019393189},
				{"name": "qwen2.5-coder", "size": 4683087332},
			},
		})
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})
	models, err := c.ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels: %v", err)
	}
	if len(models) != 2 || models[0].Name != "llama3.2" {
		t.Fatalf("models = %+v", models)
	}

	if err := c.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}

func TestPingUnreachable(t *testing.T) {
	c := New(Config{BaseURL: "http://127.0.0.1:1"})
	if err := c.Ping(context.Background()); err == nil {
		t.Fatal("expected error for unreachable server")
	}
}
