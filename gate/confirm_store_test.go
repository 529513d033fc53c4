package gate

import (
	"context"
	"testing"
	"time"

	"github.com/navbuddy/navbuddy/intent"
)

func TestStoreConfirmerApproved(t *testing.T) {
	store := testStore(t)
	c := &StoreConfirmer{Store: store, Poll: 10 * time.Millisecond}

	go func() {
		// Resolve the pending record once it shows up, as an operator
		// running `navbuddy approvals resolve` would.
		deadline := time.Now().Add(3 * time.Second)
		for time.Now().Before(deadline) {
			pending, err := store.ListPending(context.Background())
			if err == nil && len(pending) == 1 {
				_ = store.Resolve(context.Background(), pending[0].ID, ApprovalApproved, "operator", "go ahead")
				return
			}
			time.Sleep(10 * time.Millisecond)
		}
	}()

	out, err := c.Confirm(context.Background(), ConfirmRequest{
		RequestID: "req-1",
		Kind:      intent.OpDelete,
		Timeout:   3 * time.Second,
	})
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if out.Decision != DecisionApproved {
		t.Fatalf("decision = %s, want approved", out.Decision)
	}
	if out.ConfirmationID == "" || out.Actor != "operator" {
		t.Fatalf("outcome = %+v", out)
	}
}

func TestStoreConfirmerDenied(t *testing.T) {
	store := testStore(t)
	c := &StoreConfirmer{Store: store, Poll: 10 * time.Millisecond}

	go func() {
		deadline := time.Now().Add(3 * time.Second)
		for time.Now().Before(deadline) {
			pending, err := store.ListPending(context.Background())
			if err == nil && len(pending) == 1 {
				_ = store.Resolve(context.Background(), pending[0].ID, ApprovalDenied, "operator", "not now")
				return
			}
			time.Sleep(10 * time.Millisecond)
		}
	}()

	out, err := c.Confirm(context.Background(), ConfirmRequest{
		RequestID: "req-2",
		Kind:      intent.OpDelete,
		Timeout:   3 * time.Second,
	})
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if out.Decision != DecisionDenied || out.Comment != "not now" {
		t.Fatalf("outcome = %+v", out)
	}
}

func TestStoreConfirmerExpires(t *testing.T) {
	store := testStore(t)
	c := &StoreConfirmer{Store: store, Poll: 10 * time.Millisecond}

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	out, err := c.Confirm(ctx, ConfirmRequest{
		RequestID: "req-3",
		Kind:      intent.OpDelete,
		Timeout:   10 * time.Second,
	})
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if out.Decision != DecisionTimedOut {
		t.Fatalf("decision = %s, want timed_out", out.Decision)
	}
}

func TestStoreConfirmerRequiresStore(t *testing.T) {
	c := &StoreConfirmer{}
	if _, err := c.Confirm(context.Background(), ConfirmRequest{}); err == nil {
		t.Fatal("expected error without a store")
	}
}
