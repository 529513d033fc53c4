package gate

import (
	"fmt"
	"time"

	"github.com/navbuddy/navbuddy/intent"
)

// State is the per-request lifecycle position, logged on every
// transition. Terminal is always StateRecorded.
type State string

const (
	StateReceived             State = "received"
	StateValidating           State = "validating"
	StateAwaitingConfirmation State = "awaiting_confirmation"
	StateExecuting            State = "executing"
	StateRecorded             State = "recorded"
)

type Status string

const (
	StatusSuccess Status = "success"
	StatusDenied  Status = "denied"
	StatusFailed  Status = "failed"
)

// ItemResult is the per-item outcome of a multi-path operation. Batches
// run best-effort: each item succeeds or fails on its own.
type ItemResult struct {
	Path        string `json:"path"`
	Destination string `json:"destination,omitempty"`
	OK          bool   `json:"ok"`
	Error       string `json:"error,omitempty"`
}

// ExecutionResult is the terminal record returned to the caller and
// fed to the audit log.
type ExecutionResult struct {
	RequestID string        `json:"request_id"`
	Status    Status        `json:"status"`
	Kind      intent.OpKind `json:"kind,omitempty"`

	// AffectedPaths lists only paths an operation actually touched.
	AffectedPaths []string     `json:"affected_paths,omitempty"`
	Items         []ItemResult `json:"items,omitempty"`

	// DenialRule names the policy rule or gate condition behind a
	// denial (for example excluded_by_pattern, confirmation_timeout).
	DenialRule string `json:"denial_rule,omitempty"`
	Err        string `json:"error,omitempty"`

	// Output carries read/list/search payloads, bounded by ExecConfig.
	Output string `json:"output,omitempty"`

	Confirmed      bool   `json:"confirmed,omitempty"`
	ConfirmationID string `json:"confirmation_id,omitempty"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// ConflictError reports a concurrent conflicting operation on the same
// canonical path. The second operation fails; it never silently
// proceeds.
type ConflictError struct {
	Path string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflicting operation in progress on %q", e.Path)
}
