package gate

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/navbuddy/navbuddy/intent"
	"github.com/navbuddy/navbuddy/paths"
	"github.com/navbuddy/navbuddy/policy"
)

// ValidatedAction is a proposal whose every path passed canonicalization
// and policy checks in one validation pass. Execution uses only the
// canonical paths captured here and never re-resolves from raw text, so
// the checked path and the touched path are always the same.
type ValidatedAction struct {
	Proposal intent.ActionProposal

	Sources     []paths.Canonical
	Destination paths.Canonical

	// ItemDests aligns with Sources for move/copy into a directory:
	// the per-item destination, resolved and policy-checked like any
	// other path.
	ItemDests []paths.Canonical
}

// lockPaths returns every canonical path the action may touch.
func (va ValidatedAction) lockPaths() []paths.Canonical {
	out := make([]paths.Canonical, 0, len(va.Sources)+len(va.ItemDests)+1)
	out = append(out, va.Sources...)
	out = append(out, va.ItemDests...)
	if va.Destination != "" {
		out = append(out, va.Destination)
	}
	return out
}

// validateProposal runs the single validation pass that turns a
// proposal into a ValidatedAction. Any failure means the operation is
// never attempted.
func validateProposal(p intent.ActionProposal, pol *policy.Policy) (ValidatedAction, error) {
	if err := p.Validate(); err != nil {
		return ValidatedAction{}, err
	}

	va := ValidatedAction{Proposal: p}

	canon, err := paths.ResolveAll(p.PathArguments(), pol)
	if err != nil {
		return ValidatedAction{}, err
	}
	va.Sources = canon

	if strings.TrimSpace(p.Destination) != "" {
		va.Destination = canon[len(canon)-1]
		va.Sources = canon[:len(canon)-1]

		// Moving or copying into an existing directory keeps the source
		// basename; those derived paths go through the same resolver so
		// exclusion and depth rules apply to what will actually be
		// written.
		if fi, statErr := os.Stat(va.Destination.String()); statErr == nil && fi.IsDir() {
			for _, src := range va.Sources {
				derived := filepath.Join(va.Destination.String(), filepath.Base(src.String()))
				dc, err := paths.Resolve(derived, pol)
				if err != nil {
					return ValidatedAction{}, err
				}
				va.ItemDests = append(va.ItemDests, dc)
			}
		} else if len(va.Sources) > 1 {
			return ValidatedAction{}, fmt.Errorf("%s with %d sources requires an existing destination directory", p.Kind, len(va.Sources))
		}
	}

	return va, nil
}
