// Package gate is the execution gatekeeper: it validates every path of
// a proposal in one pass, classifies risk, collects confirmation when
// policy requires it, executes from canonical paths only, and records
// an audit entry for every terminal state.
package gate

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/navbuddy/navbuddy/audit"
	"github.com/navbuddy/navbuddy/intent"
	"github.com/navbuddy/navbuddy/paths"
	"github.com/navbuddy/navbuddy/policy"
)

type Gatekeeper struct {
	Policies   *policy.Store
	Translator *intent.Translator
	Confirmer  Confirmer
	Audit      audit.Sink
	Exec       ExecConfig
	Log        *slog.Logger

	locks *PathLocks
}

func New(policies *policy.Store, translator *intent.Translator, confirmer Confirmer, sink audit.Sink, execCfg ExecConfig, log *slog.Logger) *Gatekeeper {
	if confirmer == nil {
		confirmer = AutoDenyConfirmer{}
	}
	if sink == nil {
		sink = audit.NopSink{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Gatekeeper{
		Policies:   policies,
		Translator: translator,
		Confirmer:  confirmer,
		Audit:      sink,
		Exec:       execCfg,
		Log:        log,
		locks:      NewPathLocks(),
	}
}

// Submit is the single entry point for callers: user text in, terminal
// ExecutionResult out. Translator-stage failures (oracle down,
// unparsable reply, ambiguous intent) return an error without entering
// the Recorded state; nothing is executed and nothing is audited.
func (g *Gatekeeper) Submit(ctx context.Context, userText string) (ExecutionResult, error) {
	return g.SubmitWithSnapshot(ctx, userText, g.defaultSnapshot())
}

func (g *Gatekeeper) SubmitWithSnapshot(ctx context.Context, userText string, snap intent.Snapshot) (ExecutionResult, error) {
	if g.Translator == nil {
		return ExecutionResult{}, errors.New("gatekeeper has no translator")
	}
	proposal, err := g.Translator.Translate(ctx, userText, snap)
	if err != nil {
		g.Log.Warn("translate_failed", "error", err.Error())
		return ExecutionResult{}, err
	}
	return g.Process(ctx, userText, proposal)
}

// Process runs a proposal through the request state machine:
// Received → Validating → (AwaitingConfirmation) → Executing → Recorded.
func (g *Gatekeeper) Process(ctx context.Context, userText string, proposal intent.ActionProposal) (ExecutionResult, error) {
	requestID := uuid.NewString()
	pol := g.Policies.Current()

	res := ExecutionResult{
		RequestID: requestID,
		Kind:      proposal.Kind,
		StartedAt: time.Now().UTC(),
	}
	g.transition(requestID, StateReceived)

	g.transition(requestID, StateValidating)
	va, verr := validateProposal(proposal, pol)
	if verr != nil {
		var rerr *paths.ResolutionError
		if errors.As(verr, &rerr) {
			return g.record(ctx, userText, res, nil, StatusDenied, string(rerr.Rule), rerr.Error()), nil
		}
		return g.record(ctx, userText, res, nil, StatusDenied, "invalid_proposal", verr.Error()), nil
	}

	release, lerr := g.locks.Acquire(requestID, va.lockPaths())
	if lerr != nil {
		var cerr *ConflictError
		if errors.As(lerr, &cerr) {
			return g.record(ctx, userText, res, &va, StatusDenied, "conflict", cerr.Error()), nil
		}
		return g.record(ctx, userText, res, &va, StatusDenied, "conflict", lerr.Error()), nil
	}
	defer release()

	confirmed := false
	confirmationID := ""
	if pol.RequiresConfirmation(proposal.Kind) {
		g.transition(requestID, StateAwaitingConfirmation)
		cctx, cancel := context.WithTimeout(ctx, pol.ConfirmTimeout())
		outcome, cerr := g.Confirmer.Confirm(cctx, ConfirmRequest{
			RequestID: requestID,
			Kind:      proposal.Kind,
			Tier:      proposal.Kind.Tier(),
			Summary:   proposal.Summary,
			UserText:  userText,
			Paths:     canonicalStrings(va.lockPaths()),
			Timeout:   pol.ConfirmTimeout(),
		})
		cancel()
		confirmationID = outcome.ConfirmationID
		res.ConfirmationID = confirmationID
		if cerr != nil {
			return g.record(ctx, userText, res, &va, StatusDenied, "confirmation_error", cerr.Error()), nil
		}
		switch outcome.Decision {
		case DecisionApproved:
			confirmed = true
		case DecisionTimedOut:
			return g.record(ctx, userText, res, &va, StatusDenied, "confirmation_timeout", "no confirmation before timeout"), nil
		default:
			reason := strings.TrimSpace(outcome.Comment)
			if reason == "" {
				reason = "confirmation denied"
			}
			return g.record(ctx, userText, res, &va, StatusDenied, "confirmation_denied", reason), nil
		}
	}

	g.transition(requestID, StateExecuting)
	out := execute(ctx, va, g.Exec, pol)

	res.AffectedPaths = out.affected
	res.Items = out.items
	res.Output = out.output
	res.Confirmed = confirmed
	res.ConfirmationID = confirmationID

	if out.failed {
		return g.record(ctx, userText, res, &va, StatusFailed, "", out.errMsg), nil
	}
	return g.record(ctx, userText, res, &va, StatusSuccess, "", ""), nil
}

// ListModelsHint exposes the configured translator model for display.
func (g *Gatekeeper) ListModelsHint() string {
	if g.Translator == nil {
		return ""
	}
	return g.Translator.Model
}

func (g *Gatekeeper) defaultSnapshot() intent.Snapshot {
	pol := g.Policies.Current()
	snap := intent.Snapshot{}
	if roots := pol.AllowedRoots(); len(roots) > 0 {
		snap.WorkingDir = roots[0]
	}
	return snap
}

func (g *Gatekeeper) transition(requestID string, s State) {
	g.Log.Debug("gate_state", "request_id", requestID, "state", string(s))
}

// record finalizes the request: Recorded(status), one audit entry,
// result back to the caller. Audit failures are logged, never fatal to
// the request.
func (g *Gatekeeper) record(ctx context.Context, userText string, res ExecutionResult, va *ValidatedAction, status Status, rule string, errMsg string) ExecutionResult {
	res.Status = status
	res.DenialRule = rule
	res.Err = errMsg
	res.FinishedAt = time.Now().UTC()
	g.transition(res.RequestID, StateRecorded)

	entry := audit.Entry{
		RequestID:      res.RequestID,
		Timestamp:      res.FinishedAt,
		UserText:       userText,
		Kind:           string(res.Kind),
		Status:         string(status),
		Reason:         firstNonEmpty(rule, errMsg),
		Confirmed:      res.Confirmed,
		ConfirmationID: res.ConfirmationID,
		DurationMs:     res.FinishedAt.Sub(res.StartedAt).Milliseconds(),
	}
	if va != nil {
		entry.Paths = canonicalStrings(va.lockPaths())
	}
	if err := g.Audit.Emit(ctx, entry); err != nil {
		g.Log.Warn("audit_emit_error", "request_id", res.RequestID, "error", err.Error())
	}

	switch status {
	case StatusSuccess:
		g.Log.Info("gate_success", "request_id", res.RequestID, "kind", string(res.Kind), "paths", len(res.AffectedPaths))
	case StatusDenied:
		g.Log.Info("gate_denied", "request_id", res.RequestID, "kind", string(res.Kind), "rule", rule, "reason", errMsg)
	default:
		g.Log.Warn("gate_failed", "request_id", res.RequestID, "kind", string(res.Kind), "error", errMsg)
	}
	return res
}

func canonicalStrings(cps []paths.Canonical) []string {
	out := make([]string, 0, len(cps))
	seen := map[string]bool{}
	for _, c := range cps {
		s := c.String()
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
