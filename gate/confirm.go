package gate

import (
	"context"
	"time"

	"github.com/navbuddy/navbuddy/intent"
)

type Decision string

const (
	DecisionApproved Decision = "approved"
	DecisionDenied   Decision = "denied"
	DecisionTimedOut Decision = "timed_out"
)

// ConfirmRequest carries everything an approver needs to judge the
// operation: what it is, what it touches, and the words that asked
// for it.
type ConfirmRequest struct {
	RequestID string
	Kind      intent.OpKind
	Tier      intent.RiskTier
	Summary   string
	UserText  string
	Paths     []string
	Timeout   time.Duration
}

// ConfirmOutcome is the resolution of a confirmation request.
type ConfirmOutcome struct {
	Decision       Decision
	ConfirmationID string
	Actor          string
	Comment        string
}

// Confirmer suspends a request until an explicit approval signal
// arrives or the timeout elapses. Timing out is a denial: confirmation
// is opt-in, never assumed.
type Confirmer interface {
	Confirm(ctx context.Context, req ConfirmRequest) (ConfirmOutcome, error)
}

// AutoDenyConfirmer denies everything. It is the fallback when a
// confirmation-required operation arrives and no confirmer is wired.
type AutoDenyConfirmer struct{}

func (AutoDenyConfirmer) Confirm(_ context.Context, _ ConfirmRequest) (ConfirmOutcome, error) {
	return ConfirmOutcome{Decision: DecisionDenied, Comment: "no confirmer configured"}, nil
}
