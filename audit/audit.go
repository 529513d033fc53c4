// Package audit records every execution attempt as an immutable,
// append-only entry. Entries are never edited or deleted by the core.
package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Entry is written at the moment a request reaches a terminal state.
type Entry struct {
	EventID   string    `json:"event_id"`
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"ts"`

	UserText string   `json:"user_text"`
	Kind     string   `json:"kind,omitempty"`
	Paths    []string `json:"paths,omitempty"`

	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`

	Confirmed      bool   `json:"confirmed,omitempty"`
	ConfirmationID string `json:"confirmation_id,omitempty"`

	DurationMs int64 `json:"duration_ms,omitempty"`
}

type Sink interface {
	Emit(ctx context.Context, e Entry) error
	Close() error
}

// NewEventID derives a stable event ID from the request identity and
// the record time.
func NewEventID(requestID string, ts time.Time) string {
	seed := fmt.Sprintf("%s|%s", requestID, ts.UTC().Format(time.RFC3339Nano))
	sum := sha256.Sum256([]byte(seed))
	return "evt_" + hex.EncodeToString(sum[:8])
}

// NopSink discards entries; used when auditing is not configured.
type NopSink struct{}

func (NopSink) Emit(context.Context, Entry) error { return nil }
func (NopSink) Close() error                      { return nil }
