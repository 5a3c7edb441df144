package scheduled

import (
	"context"
	"fmt"

	"github.com/roach88/chaincore/internal/action"
	"github.com/roach88/chaincore/internal/instance"
	"github.com/roach88/chaincore/internal/metrics"
	"github.com/roach88/chaincore/internal/state"
	"github.com/roach88/chaincore/internal/workflow"
)

// PassResult counts the outcomes of one pending validation pass.
type PassResult struct {
	Resolved  int
	Pending   int
	Abandoned int
	Failed    int
}

// RunPendingValidations re-runs every pending validation once.
//
// maxAttempts <= 0 retries forever. Otherwise a validation that is still
// blocked after maxAttempts retries is removed from the queue.
//
// The pass waits for each removal or retry to be applied, so the next
// pass sees its outcome.
func RunPendingValidations(ctx context.Context, c *instance.Context, maxAttempts int) (PassResult, error) {
	var res PassResult
	s := c.State()
	if s == nil {
		return res, instance.ErrStateUninitialized
	}

	log := c.Logger()
	for _, p := range s.Nucleus().PendingValidations() {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		err := workflow.RunPendingValidation(ctx, c, p)
		var outcome string
		switch {
		case err == nil:
			outcome = metrics.OutcomeResolved
			res.Resolved++
			log.Debug("pending validation resolved", "workflow", string(p.Workflow), "address", p.Address.Short())

		case maxAttempts > 0 && p.Attempts+1 >= maxAttempts:
			outcome = metrics.OutcomeAbandoned
			res.Abandoned++
			log.Warn("pending validation abandoned",
				"workflow", string(p.Workflow),
				"address", p.Address.Short(),
				"attempts", p.Attempts+1,
				"error", err,
			)

		case workflow.IsDependenciesMissing(err):
			outcome = metrics.OutcomePending
			res.Pending++

		default:
			outcome = metrics.OutcomeFailed
			res.Failed++
			log.Error("pending validation failed",
				"workflow", string(p.Workflow),
				"address", p.Address.Short(),
				"error", err,
			)
		}
		c.Metrics().IncPendingOutcome(outcome)

		if err := settle(c, p, outcome); err != nil {
			return res, err
		}
	}
	return res, nil
}

// settle records outcome for p and waits until the loop has applied it.
func settle(c *instance.Context, p action.PendingValidation, outcome string) error {
	key := p.Key()
	switch outcome {
	case metrics.OutcomeResolved, metrics.OutcomeAbandoned:
		if _, err := c.Dispatch(action.RemovePendingValidation{Key: key}); err != nil {
			return fmt.Errorf("remove pending %s: %w", p.Address.Short(), err)
		}
		instance.WaitFor(c, func(s *state.State) (struct{}, bool) {
			_, ok := s.Nucleus().Pending(key)
			return struct{}{}, !ok
		})

	default:
		if _, err := c.Dispatch(action.PendingValidationRetried{Key: key}); err != nil {
			return fmt.Errorf("retry pending %s: %w", p.Address.Short(), err)
		}
		instance.WaitFor(c, func(s *state.State) (struct{}, bool) {
			cur, ok := s.Nucleus().Pending(key)
			return struct{}{}, !ok || cur.Attempts > p.Attempts
		})
	}
	return nil
}
