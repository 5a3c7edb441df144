package workflow

import (
	"fmt"

	"github.com/roach88/chaincore/internal/action"
	"github.com/roach88/chaincore/internal/instance"
	"github.com/roach88/chaincore/internal/ir"
	"github.com/roach88/chaincore/internal/state"
)

// AwaitFlow starts tracking a network flow and blocks until the network
// side resolves it with a ResolveFlow action. The flow is cleared from
// state before AwaitFlow returns.
func AwaitFlow(c *instance.Context, kind action.FlowKind, id string, target ir.Address) (string, error) {
	if _, err := c.Dispatch(action.StartFlow{Kind: kind, ID: id, Target: target}); err != nil {
		return "", fmt.Errorf("%s flow %s: %w", kind, id, err)
	}

	st := instance.WaitFor(c, func(s *state.State) (state.FlowStatus, bool) {
		f, ok := s.Network().Flow(kind, id)
		return f, ok && f.Done
	})

	if _, err := c.Dispatch(action.ClearFlow{Kind: kind, ID: id}); err != nil {
		c.Logger().Warn("clear flow failed", "kind", string(kind), "id", id, "error", err)
	}

	if st.Err != "" {
		return "", &FlowError{Kind: kind, ID: id, Reason: st.Err}
	}
	return st.Result, nil
}

// Query asks target for content and waits for the answer.
func Query(c *instance.Context, id string, target ir.Address) (string, error) {
	return AwaitFlow(c, action.FlowQuery, id, target)
}

// FetchValidationPackage asks the author of target for the data needed to
// validate it.
func FetchValidationPackage(c *instance.Context, id string, target ir.Address) (string, error) {
	return AwaitFlow(c, action.FlowValidationPackage, id, target)
}

// SendDirectMessage sends a message to the agent at target and waits for
// the reply.
func SendDirectMessage(c *instance.Context, id string, target ir.Address) (string, error) {
	return AwaitFlow(c, action.FlowDirectMessage, id, target)
}

// ResolveFlow is called by the network side to complete a flow.
func ResolveFlow(c *instance.Context, kind action.FlowKind, id, result string, flowErr error) error {
	a := action.ResolveFlow{Kind: kind, ID: id, Result: result}
	if flowErr != nil {
		a.Err = flowErr.Error()
	}
	_, err := c.Dispatch(a)
	return err
}
