// Package llm defines the provider-neutral contract to the language
// model oracle. Transport and endpoint live in the provider packages.
package llm

import (
	"context"
	"time"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

type Result struct {
	Text     string
	Usage    Usage
	Duration time.Duration
}

type Request struct {
	Model     string
	Messages  []Message
	ForceJSON bool
	Options   map[string]any
}

type Client interface {
	Chat(ctx context.Context, req Request) (Result, error)
}

// Model describes an installed model, as reported by the oracle.
type Model struct {
	Name       string
	Size       int64
	ModifiedAt time.Time
}

type ModelLister interface {
	ListModels(ctx context.Context) ([]Model, error)
}
