package intent

import (
	"fmt"
	"strings"
)

// ActionProposal is the structured output of the translator: one
// operation kind plus its typed arguments. Proposals are immutable once
// returned and are never built by hand from raw user text.
type ActionProposal struct {
	Kind        OpKind   `json:"kind"`
	Sources     []string `json:"sources,omitempty"`
	Destination string   `json:"destination,omitempty"`
	Query       string   `json:"query,omitempty"`
	Pattern     string   `json:"pattern,omitempty"`
	Command     string   `json:"command,omitempty"`
	Recursive   bool     `json:"recursive,omitempty"`

	Summary    string  `json:"summary,omitempty"`
	Confidence float64 `json:"confidence"`
}

// Validate enforces the per-kind mandatory fields. A proposal that does
// not validate must be treated as an unparsable oracle response.
func (p ActionProposal) Validate() error {
	if _, err := ParseOpKind(string(p.Kind)); err != nil {
		return err
	}
	switch p.Kind {
	case OpRead, OpList, OpDelete:
		if len(p.cleanSources()) == 0 {
			return fmt.Errorf("%s proposal missing sources", p.Kind)
		}
	case OpMove, OpCopy:
		if len(p.cleanSources()) == 0 {
			return fmt.Errorf("%s proposal missing sources", p.Kind)
		}
		if strings.TrimSpace(p.Destination) == "" {
			return fmt.Errorf("%s proposal missing destination", p.Kind)
		}
	case OpSearch:
		if strings.TrimSpace(p.Query) == "" {
			return fmt.Errorf("search proposal missing query")
		}
		if len(p.cleanSources()) == 0 {
			return fmt.Errorf("search proposal missing sources")
		}
	case OpExecute:
		if strings.TrimSpace(p.Command) == "" {
			return fmt.Errorf("execute proposal missing command")
		}
		if len(p.cleanSources()) == 0 {
			return fmt.Errorf("execute proposal missing working directory")
		}
	}
	return nil
}

// PathArguments returns every raw path the proposal references, sources
// first, destination last. The gatekeeper resolves all of them in a
// single validation pass.
func (p ActionProposal) PathArguments() []string {
	out := p.cleanSources()
	if d := strings.TrimSpace(p.Destination); d != "" {
		out = append(out, d)
	}
	return out
}

func (p ActionProposal) cleanSources() []string {
	out := make([]string, 0, len(p.Sources))
	for _, s := range p.Sources {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
