package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/navbuddy/navbuddy/gate"
	"github.com/navbuddy/navbuddy/internal/clifmt"
)

// PromptConfirmer asks the operator at the terminal. Anything but an
// explicit yes is a denial; the context deadline carries the policy's
// confirmation timeout.
//
// A single reader goroutine owns stdin for the confirmer's lifetime:
// a prompt that times out leaves no goroutine blocked on a read, and
// the answer that arrives too late is drained before the next prompt
// instead of being consumed as its reply.
type PromptConfirmer struct {
	In  io.Reader
	Out io.Writer

	once  sync.Once
	lines chan string
}

func (c *PromptConfirmer) startReader() {
	c.once.Do(func() {
		c.lines = make(chan string, 1)
		go func() {
			r := bufio.NewReader(c.In)
			for {
				line, err := r.ReadString('\n')
				s := strings.ToLower(strings.TrimSpace(line))
				if err == nil || s != "" {
					// A bare enter is still an answer (a denial).
					c.lines <- s
				}
				if err != nil {
					close(c.lines)
					return
				}
			}
		}()
	})
}

func (c *PromptConfirmer) Confirm(ctx context.Context, req gate.ConfirmRequest) (gate.ConfirmOutcome, error) {
	c.startReader()
	id := "tty_" + uuid.NewString()[:8]

	// Drop a stale answer left over from a prompt that timed out.
	select {
	case <-c.lines:
	default:
	}

	fmt.Fprintln(c.Out, clifmt.Danger(fmt.Sprintf("confirmation required: %s (%s)", req.Kind, req.Tier)))
	if strings.TrimSpace(req.Summary) != "" {
		fmt.Fprintln(c.Out, "  "+req.Summary)
	}
	for _, p := range req.Paths {
		fmt.Fprintln(c.Out, "  "+clifmt.Dim(p))
	}
	fmt.Fprintf(c.Out, "%s ", clifmt.Warn(fmt.Sprintf("proceed? [y/N] (times out in %s)", req.Timeout)))

	select {
	case <-ctx.Done():
		fmt.Fprintln(c.Out)
		return gate.ConfirmOutcome{Decision: gate.DecisionTimedOut, ConfirmationID: id}, nil
	case a := <-c.lines:
		if a == "y" || a == "yes" {
			return gate.ConfirmOutcome{Decision: gate.DecisionApproved, ConfirmationID: id, Actor: "terminal"}, nil
		}
		return gate.ConfirmOutcome{Decision: gate.DecisionDenied, ConfirmationID: id, Actor: "terminal"}, nil
	}
}
