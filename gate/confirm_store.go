package gate

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// StoreConfirmer suspends the request on a persisted approval record
// and polls until an operator resolves it or it expires. Waiting is a
// suspension with a deadline, not an unbounded block.
type StoreConfirmer struct {
	Store ApprovalStore
	Poll  time.Duration
	Log   *slog.Logger
}

func (c *StoreConfirmer) Confirm(ctx context.Context, req ConfirmRequest) (ConfirmOutcome, error) {
	if c == nil || c.Store == nil {
		return ConfirmOutcome{}, fmt.Errorf("store confirmer requires an approval store")
	}
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	poll := c.Poll
	if poll <= 0 {
		poll = 2 * time.Second
	}

	now := time.Now().UTC()
	expiresAt := now.Add(timeout)
	id, err := c.Store.Create(ctx, ApprovalRecord{
		RequestID: req.RequestID,
		CreatedAt: now,
		ExpiresAt: expiresAt,
		Kind:      req.Kind,
		Paths:     req.Paths,
		Summary:   req.Summary,
		UserText:  req.UserText,
	})
	if err != nil {
		return ConfirmOutcome{}, err
	}
	if c.Log != nil {
		c.Log.Info("approval_pending", "approval_id", id, "request_id", req.RequestID, "kind", string(req.Kind), "expires_at", expiresAt.Format(time.RFC3339))
	}

	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ConfirmOutcome{Decision: DecisionTimedOut, ConfirmationID: id}, nil
		case <-ticker.C:
		}

		rec, ok, err := c.Store.Get(ctx, id)
		if err != nil {
			return ConfirmOutcome{ConfirmationID: id}, err
		}
		if !ok {
			return ConfirmOutcome{ConfirmationID: id}, fmt.Errorf("approval %s disappeared", id)
		}
		switch rec.Status {
		case ApprovalApproved:
			return ConfirmOutcome{Decision: DecisionApproved, ConfirmationID: id, Actor: rec.Actor, Comment: rec.Comment}, nil
		case ApprovalDenied:
			return ConfirmOutcome{Decision: DecisionDenied, ConfirmationID: id, Actor: rec.Actor, Comment: rec.Comment}, nil
		case ApprovalExpired:
			return ConfirmOutcome{Decision: DecisionTimedOut, ConfirmationID: id}, nil
		}
		if time.Now().UTC().After(expiresAt) {
			// Best-effort: mark the record so it stops showing up as
			// actionable.
			_ = c.Store.Resolve(ctx, id, ApprovalExpired, "", "confirmation window elapsed")
			return ConfirmOutcome{Decision: DecisionTimedOut, ConfirmationID: id}, nil
		}
	}
}
