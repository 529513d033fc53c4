package intent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/navbuddy/navbuddy/internal/jsonutil"
	"github.com/navbuddy/navbuddy/llm"
)

var (
	// ErrOracleUnavailable: the oracle could not be reached or timed out.
	ErrOracleUnavailable = errors.New("oracle unavailable")
	// ErrUnparsableResponse: the reply does not map to a known operation
	// kind or leaves mandatory fields unset. Never guess.
	ErrUnparsableResponse = errors.New("unparsable oracle response")
	// ErrAmbiguousIntent: multiple materially different operations are
	// plausible; asking again is cheaper than a wrong destructive pick.
	ErrAmbiguousIntent = errors.New("ambiguous intent")
)

const DefaultMinConfidence = 0.75

// Translator maps natural-language requests to ActionProposals via the
// oracle. It performs no filesystem access and holds no filesystem
// trust.
type Translator struct {
	Client        llm.Client
	Model         string
	Timeout       time.Duration
	MinConfidence float64
}

const systemPrompt = `You translate a user's file-navigation request into exactly one operation.
Operations and their required fields:
- read: sources (file paths to read)
- list: sources (directory paths to list)
- search: query (text to find), sources (paths to search under)
- move: sources, destination
- copy: sources, destination
- delete: sources
- execute: command (shell command), sources (single working directory)
Return ONLY JSON with keys: kind (string, one of the operations above),
sources (array of strings), destination (string), query (string),
pattern (string), command (string), recursive (boolean),
summary (string, one sentence), confidence (number 0..1),
ask (boolean), reason (string).
Set ask=true with a reason instead of guessing when the request could
mean materially different operations (for example delete vs. move) or
when required fields cannot be determined from the request and context.
Be conservative with confidence; destructive requests deserve extra
scrutiny. Do not invent paths that are not implied by the request or
the context.`

// oracleReply is the fixed response schema. Unknown kinds and missing
// mandatory fields fail translation rather than degrade.
type oracleReply struct {
	Kind        string   `json:"kind"`
	Sources     []string `json:"sources"`
	Destination string   `json:"destination"`
	Query       string   `json:"query"`
	Pattern     string   `json:"pattern"`
	Command     string   `json:"command"`
	Recursive   bool     `json:"recursive"`
	Summary     string   `json:"summary"`
	Confidence  float64  `json:"confidence"`
	Ask         bool     `json:"ask"`
	Reason      string   `json:"reason"`
}

// Translate sends userText plus the bounded context snapshot to the
// oracle and parses the reply into a typed proposal.
func (t *Translator) Translate(ctx context.Context, userText string, snap Snapshot) (ActionProposal, error) {
	if t == nil || t.Client == nil {
		return ActionProposal{}, fmt.Errorf("%w: no client configured", ErrOracleUnavailable)
	}
	userText = strings.TrimSpace(userText)
	if userText == "" {
		return ActionProposal{}, fmt.Errorf("%w: empty request", ErrUnparsableResponse)
	}

	if t.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.Timeout)
		defer cancel()
	}

	payload := map[string]any{
		"request": userText,
		"context": snap.bounded(),
	}
	b, _ := json.Marshal(payload)

	res, err := t.Client.Chat(ctx, llm.Request{
		Model:     t.Model,
		ForceJSON: true,
		Messages: []llm.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: string(b)},
		},
		Options: map[string]any{
			"temperature": 0,
			"top_p":       0.9,
			"num_predict": 400,
		},
	})
	if err != nil {
		return ActionProposal{}, fmt.Errorf("%w: %v", ErrOracleUnavailable, err)
	}

	raw := strings.TrimSpace(res.Text)
	if raw == "" {
		return ActionProposal{}, fmt.Errorf("%w: empty reply", ErrUnparsableResponse)
	}

	var reply oracleReply
	if err := jsonutil.DecodeWithFallback(raw, &reply); err != nil {
		return ActionProposal{}, fmt.Errorf("%w: %v", ErrUnparsableResponse, err)
	}

	if reply.Ask {
		reason := strings.TrimSpace(reply.Reason)
		if reason == "" {
			reason = "oracle requested clarification"
		}
		return ActionProposal{}, fmt.Errorf("%w: %s", ErrAmbiguousIntent, reason)
	}

	kind, err := ParseOpKind(reply.Kind)
	if err != nil {
		return ActionProposal{}, fmt.Errorf("%w: %v", ErrUnparsableResponse, err)
	}

	p := ActionProposal{
		Kind:        kind,
		Sources:     reply.Sources,
		Destination: strings.TrimSpace(reply.Destination),
		Query:       strings.TrimSpace(reply.Query),
		Pattern:     strings.TrimSpace(reply.Pattern),
		Command:     strings.TrimSpace(reply.Command),
		Recursive:   reply.Recursive,
		Summary:     strings.TrimSpace(reply.Summary),
		Confidence:  reply.Confidence,
	}
	if err := p.Validate(); err != nil {
		return ActionProposal{}, fmt.Errorf("%w: %v", ErrUnparsableResponse, err)
	}

	// A low-confidence destructive or system proposal is treated as
	// ambiguous: the cost of a wrong silent choice is data loss.
	min := t.MinConfidence
	if min <= 0 {
		min = DefaultMinConfidence
	}
	if kind.AlwaysConfirm() && p.Confidence < min {
		return ActionProposal{}, fmt.Errorf("%w: confidence %.2f below %.2f for %s", ErrAmbiguousIntent, p.Confidence, min, kind)
	}

	return p, nil
}
