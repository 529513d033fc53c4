package gate

import (
	"context"
	"time"

	"github.com/navbuddy/navbuddy/intent"
)

type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalDenied   ApprovalStatus = "denied"
	ApprovalExpired  ApprovalStatus = "expired"
)

// ApprovalRecord is a persisted pending confirmation: created when a
// confirmation-required request suspends, resolved by an operator via
// the approvals CLI, or expired by the clock.
type ApprovalRecord struct {
	ID         string
	RequestID  string
	CreatedAt  time.Time
	ExpiresAt  time.Time
	ResolvedAt *time.Time

	Status  ApprovalStatus
	Actor   string
	Comment string

	Kind     intent.OpKind
	Paths    []string
	Summary  string
	UserText string
}

type ApprovalStore interface {
	Create(ctx context.Context, rec ApprovalRecord) (string, error)
	Get(ctx context.Context, id string) (ApprovalRecord, bool, error)
	Resolve(ctx context.Context, id string, status ApprovalStatus, actor string, comment string) error
	ListPending(ctx context.Context) ([]ApprovalRecord, error)
}
