// Package ollama talks to a locally running Ollama server over its
// HTTP API. It is the one component expected to block for non-trivial
// wall-clock time, so every call is bounded and cancellable.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/navbuddy/navbuddy/llm"
)

const DefaultBaseURL = "http://localhost:11434"

type Config struct {
	BaseURL string
	Timeout time.Duration
}

type Client struct {
	http    *http.Client
	baseURL string
}

var (
	_ llm.Client      = (*Client)(nil)
	_ llm.ModelLister = (*Client)(nil)
)

func New(cfg Config) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Client{
		http:    &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// Chat sends a non-streaming chat request. When req.ForceJSON is set
// the server is asked for a JSON-formatted reply so the response can
// be parsed deterministically.
func (c *Client) Chat(ctx context.Context, req llm.Request) (llm.Result, error) {
	model := strings.TrimSpace(req.Model)
	if model == "" {
		return llm.Result{}, fmt.Errorf("ollama: model is required")
	}

	payload := chatRequest{
		Model:    model,
		Stream:   false,
		Messages: make([]chatMessage, 0, len(req.Messages)),
	}
	if req.ForceJSON {
		payload.Format = "json"
	}
	if len(req.Options) > 0 {
		payload.Options = req.Options
	}
	for _, m := range req.Messages {
		role := strings.TrimSpace(m.Role)
		if role == "" {
			role = "user"
		}
		payload.Messages = append(payload.Messages, chatMessage{Role: role, Content: m.Content})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return llm.Result{}, fmt.Errorf("ollama: marshal request: %w", err)
	}

	start := time.Now()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return llm.Result{}, fmt.Errorf("ollama: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return llm.Result{}, fmt.Errorf("ollama: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
		return llm.Result{}, fmt.Errorf("ollama: status %d: %s", resp.StatusCode, strings.TrimSpace(string(excerpt)))
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return llm.Result{}, fmt.Errorf("ollama: decode response: %w", err)
	}
	if out.Error != "" {
		return llm.Result{}, fmt.Errorf("ollama: %s", out.Error)
	}

	res := llm.Result{Duration: time.Since(start)}
	if out.Message != nil {
		res.Text = out.Message.Content
	}
	res.Usage = llm.Usage{
		InputTokens:  out.PromptEvalCount,
		OutputTokens: out.EvalCount,
		TotalTokens:  out.PromptEvalCount + out.EvalCount,
	}
	return res, nil
}

// ListModels fetches the installed models from /api/tags.
func (c *Client) ListModels(ctx context.Context) ([]llm.Model, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("ollama: %w", err)
	}
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("ollama: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
		return nil, fmt.Errorf("ollama: status %d: %s", resp.StatusCode, strings.TrimSpace(string(excerpt)))
	}

	var out tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("ollama: decode tags: %w", err)
	}
	models := make([]llm.Model, 0, len(out.Models))
	for _, m := range out.Models {
		models = append(models, llm.Model{Name: m.Name, Size: m.Size, ModifiedAt: m.ModifiedAt})
	}
	return models, nil
}

// Ping probes server availability with a short deadline.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	_, err := c.ListModels(ctx)
	return err
}

type chatRequest struct {
	Model    string         `json:"model"`
	Messages []chatMessage  `json:"messages"`
	Stream   bool           `json:"stream"`
	Format   string         `json:"format,omitempty"`
	Options  map[string]any `json:"options,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Message         *chatMessage `json:"message"`
	Done            bool         `json:"done"`
	Error           string       `json:"error"`
	EvalCount       int          `json:"eval_count"`
	PromptEvalCount int          `json:"prompt_eval_count"`
}

type tagsResponse struct {
	Models []tagModel `json:"models"`
}

type tagModel struct {
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	ModifiedAt time.Time `json:"modified_at"`
}
