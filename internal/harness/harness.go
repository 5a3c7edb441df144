package harness

import (
	"context"
	"fmt"

	"github.com/roach88/chaincore/internal/dna"
	"github.com/roach88/chaincore/internal/instance"
	"github.com/roach88/chaincore/internal/ir"
	"github.com/roach88/chaincore/internal/scheduled"
	"github.com/roach88/chaincore/internal/storage"
	"github.com/roach88/chaincore/internal/testutil"
	"github.com/roach88/chaincore/internal/workflow"
)

// Harness executes one scenario against one instance.
type Harness struct {
	inst     *instance.Instance
	c        *instance.Context
	scenario *Scenario
	entries  map[string]ir.Entry
	headers  map[string]ir.ChainHeader
}

// Run executes a scenario and returns the result.
//
// Each scenario runs on a fresh in-memory instance. A returned error
// means the scenario could not be executed; failed expectations are
// reported in the Result instead.
func Run(s *Scenario) (result *Result, err error) {
	entries, err := buildEntries(s.Entries)
	if err != nil {
		return nil, err
	}

	inst := instance.New(testutil.Options(s.Name))
	ctx, cancel := context.WithCancel(context.Background())
	inst.Start(ctx)
	defer func() {
		cancel()
		<-inst.Done()
	}()

	// A workflow parked on an instance that died aborts.
	defer func() {
		if r := recover(); r != nil {
			fe, ok := instance.AsFatal(r)
			if !ok {
				panic(r)
			}
			result, err = nil, fe
		}
	}()

	h := &Harness{
		inst:     inst,
		c:        inst.Context(),
		scenario: s,
		entries:  entries,
		headers:  map[string]ir.ChainHeader{},
	}

	result = NewResult()
	for i, step := range s.Steps {
		got, err := h.execute(ctx, step)
		if err != nil {
			return nil, fmt.Errorf("steps[%d] %s: %w", i, step.Op, err)
		}
		result.addTrace(i, step.Op, step.Entry, got)
		if step.Expect != "" && step.Expect != got {
			result.AddError(fmt.Sprintf("steps[%d] %s %s: expected %s, got %s", i, step.Op, step.Entry, step.Expect, got))
		}
	}

	for i, a := range s.Assertions {
		if msg := h.check(ctx, a); msg != "" {
			result.AddError(fmt.Sprintf("assertions[%d] %s: %s", i, a.Type, msg))
		}
	}
	return result, nil
}

// execute runs one step and returns its outcome. Errors are reserved for
// failures of the harness itself.
func (h *Harness) execute(ctx context.Context, step Step) (string, error) {
	c := h.c
	entry := h.entries[step.Entry]

	switch step.Op {
	case OpGenesis:
		d, err := dna.Load(h.scenario.DNA)
		if err != nil {
			return "", err
		}
		_, err = workflow.Genesis(c, d)
		return outcome(err), nil

	case OpCommit:
		_, err := workflow.Commit(c, entry)
		if err == nil {
			top, _ := c.State().Agent().TopChainHeader()
			h.headers[step.Entry] = top
		}
		return outcome(err), nil

	case OpInject:
		if err := storage.AddEntry(ctx, c.DHTStorage(), entry); err != nil {
			return "", err
		}
		return OutcomeOK, nil

	case OpTick:
		n := max(step.Count, 1)
		var total scheduled.PassResult
		for range n {
			res, err := scheduled.RunPendingValidations(ctx, c, h.scenario.MaxPendingAttempts)
			if err != nil {
				return "", err
			}
			total.Resolved += res.Resolved
			total.Pending += res.Pending
			total.Abandoned += res.Abandoned
			total.Failed += res.Failed
		}
		return fmt.Sprintf("resolved=%d pending=%d abandoned=%d failed=%d",
			total.Resolved, total.Pending, total.Abandoned, total.Failed), nil
	}

	var header *ir.ChainHeader
	if hd, ok := h.headers[step.Entry]; ok {
		header = &hd
	}
	run := map[string]func(context.Context, *instance.Context, ir.Entry, *ir.ChainHeader) error{
		OpHoldEntry:   workflow.HoldEntry,
		OpHoldLink:    workflow.HoldLink,
		OpRemoveLink:  workflow.RemoveLink,
		OpUpdateEntry: workflow.UpdateEntry,
		OpRemoveEntry: workflow.RemoveEntry,
	}[step.Op]
	if run == nil {
		return "", fmt.Errorf("unknown op %q", step.Op)
	}
	return outcome(run(ctx, c, entry, header)), nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case workflow.IsDependenciesMissing(err):
		return OutcomePending
	default:
		return OutcomeError
	}
}
