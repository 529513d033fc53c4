package intent

import (
	"fmt"
	"strings"
)

// OpKind is the closed set of operations the oracle may propose. The
// translator classifies into this set; it never invents new kinds.
type OpKind string

const (
	OpRead    OpKind = "read"
	OpList    OpKind = "list"
	OpSearch  OpKind = "search"
	OpMove    OpKind = "move"
	OpCopy    OpKind = "copy"
	OpDelete  OpKind = "delete"
	OpExecute OpKind = "execute"
)

var allKinds = []OpKind{OpRead, OpList, OpSearch, OpMove, OpCopy, OpDelete, OpExecute}

func Kinds() []OpKind {
	out := make([]OpKind, len(allKinds))
	copy(out, allKinds)
	return out
}

func ParseOpKind(s string) (OpKind, error) {
	k := OpKind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range allKinds {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown operation kind: %q", s)
}

// RiskTier buckets operation kinds by blast radius.
type RiskTier string

const (
	TierReadOnly    RiskTier = "read_only"
	TierMutating    RiskTier = "mutating"
	TierDestructive RiskTier = "destructive"
	TierSystem      RiskTier = "system"
)

func (k OpKind) Tier() RiskTier {
	switch k {
	case OpRead, OpList, OpSearch:
		return TierReadOnly
	case OpMove, OpCopy:
		return TierMutating
	case OpDelete:
		return TierDestructive
	case OpExecute:
		return TierSystem
	default:
		// Unknown kinds never reach execution; treat as the worst tier.
		return TierSystem
	}
}

// Mutating reports whether the kind can change filesystem state.
func (k OpKind) Mutating() bool {
	switch k.Tier() {
	case TierMutating, TierDestructive, TierSystem:
		return true
	}
	return false
}

// AlwaysConfirm reports whether confirmation is mandatory for the kind
// regardless of policy. Delete and execute cannot be opted out.
func (k OpKind) AlwaysConfirm() bool {
	t := k.Tier()
	return t == TierDestructive || t == TierSystem
}
