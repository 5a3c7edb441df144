package harness

import (
	"context"
	"fmt"

	"github.com/roach88/chaincore/internal/action"
)

// check evaluates one assertion against the current state.
// Returns an empty string when the assertion holds.
func (h *Harness) check(ctx context.Context, a Assertion) string {
	s := h.c.State()
	want := a.Present == nil || *a.Present

	switch a.Type {
	case AssertPending:
		key := action.PendingKey{
			Address:  h.entries[a.Entry].Address(),
			Workflow: action.ValidatingWorkflow(a.Workflow),
		}
		p, ok := s.Nucleus().Pending(key)
		if ok != want {
			return fmt.Sprintf("%s present=%t, want %t", a.Entry, ok, want)
		}
		if ok && a.Attempts != nil && p.Attempts != *a.Attempts {
			return fmt.Sprintf("%s attempts=%d, want %d", a.Entry, p.Attempts, *a.Attempts)
		}

	case AssertHeld:
		if got := s.DHT().Holds(h.entries[a.Entry].Address()); got != want {
			return fmt.Sprintf("%s held=%t, want %t", a.Entry, got, want)
		}

	case AssertChainLength:
		if got := s.Agent().ChainLength(); got != a.Count {
			return fmt.Sprintf("chain length %d, want %d", got, a.Count)
		}

	case AssertPendingCount:
		if got := s.Nucleus().PendingCount(); got != a.Count {
			return fmt.Sprintf("pending count %d, want %d", got, a.Count)
		}

	case AssertPublicToken:
		token, err := h.c.GetPublicToken(ctx)
		if (err == nil) != want {
			return fmt.Sprintf("public token present=%t, want %t (%v)", err == nil, want, err)
		}
		if err == nil && a.Entry != "" && token != h.entries[a.Entry].Address() {
			return fmt.Sprintf("public token %s, want %s", token.Short(), a.Entry)
		}

	default:
		return fmt.Sprintf("unknown assertion type %q", a.Type)
	}
	return ""
}
