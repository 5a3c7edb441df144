package workflow

import (
	"context"
	"fmt"
	"slices"

	"github.com/roach88/chaincore/internal/action"
	"github.com/roach88/chaincore/internal/instance"
	"github.com/roach88/chaincore/internal/ir"
	"github.com/roach88/chaincore/internal/state"
)

// HoldEntry validates entry and holds it in the local DHT shard.
// header is the authoring header when known, and may be nil.
func HoldEntry(ctx context.Context, c *instance.Context, entry ir.Entry, header *ir.ChainHeader) error {
	return run(ctx, c, action.WorkflowHoldEntry, entry, header, true)
}

// HoldLink holds a link entry once its base and target are held.
func HoldLink(ctx context.Context, c *instance.Context, entry ir.Entry, header *ir.ChainHeader) error {
	return run(ctx, c, action.WorkflowHoldLink, entry, header, true)
}

// RemoveLink holds a link removal once its base and target are held.
func RemoveLink(ctx context.Context, c *instance.Context, entry ir.Entry, header *ir.ChainHeader) error {
	return run(ctx, c, action.WorkflowRemoveLink, entry, header, true)
}

// UpdateEntry holds an updating entry once the entry it replaces is held.
func UpdateEntry(ctx context.Context, c *instance.Context, entry ir.Entry, header *ir.ChainHeader) error {
	return run(ctx, c, action.WorkflowUpdateEntry, entry, header, true)
}

// RemoveEntry holds a deletion once the deleted entry is held.
func RemoveEntry(ctx context.Context, c *instance.Context, entry ir.Entry, header *ir.ChainHeader) error {
	return run(ctx, c, action.WorkflowRemoveEntry, entry, header, true)
}

// RunPendingValidation re-runs the workflow p was queued under.
// It never queues p again: a still-missing dependency is reported as
// *DependenciesMissingError and the caller decides what to do.
func RunPendingValidation(ctx context.Context, c *instance.Context, p action.PendingValidation) error {
	return run(ctx, c, p.Workflow, p.Entry, p.Header, false)
}

func run(ctx context.Context, c *instance.Context, wf action.ValidatingWorkflow, entry ir.Entry, header *ir.ChainHeader, queue bool) error {
	if err := accepts(wf, entry); err != nil {
		return err
	}
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("%s: %w", wf, err)
	}
	// Actions end up in published snapshots, which must not alias
	// anything the caller can still write to.
	entry = entry.Clone()
	if header != nil {
		h := header.Clone()
		header = &h
	}

	addr := entry.Address()
	deps := entry.Dependencies()
	missing, err := missingDependencies(ctx, c, deps)
	if err != nil {
		return fmt.Errorf("%s %s: %w", wf, addr.Short(), err)
	}

	if len(missing) > 0 {
		if queue {
			p := action.PendingValidation{
				Address:      addr,
				Workflow:     wf,
				Entry:        entry,
				Header:       header,
				Dependencies: slices.Clone(deps),
			}
			if _, err := c.Dispatch(action.AddPendingValidation{Pending: p}); err != nil {
				return fmt.Errorf("%s %s: %w", wf, addr.Short(), err)
			}
			instance.WaitFor(c, func(s *state.State) (struct{}, bool) {
				_, ok := s.Nucleus().Pending(p.Key())
				return struct{}{}, ok
			})
			c.Logger().Debug("validation deferred",
				"workflow", string(wf),
				"address", addr.Short(),
				"missing", len(missing),
			)
		}
		return &DependenciesMissingError{Address: addr, Workflow: wf, Missing: missing}
	}

	w, err := c.Dispatch(action.Hold{Entry: entry, Header: header})
	if err != nil {
		return fmt.Errorf("%s %s: %w", wf, addr.Short(), err)
	}
	reason := instance.WaitFor(c, func(s *state.State) (string, bool) {
		if reason, failed := s.DHT().HoldFailure(w.ID); failed {
			return reason, true
		}
		return "", s.DHT().Holds(addr)
	})
	if reason == "" {
		return nil
	}

	if _, err := c.Dispatch(action.ClearActionResponse{ID: w.ID}); err != nil {
		c.Logger().Warn("clear hold failure failed", "id", w.ID, "error", err)
	}
	return &HoldError{Address: addr, Workflow: wf, Reason: reason}
}

// accepts checks that wf can validate entries of entry's type.
func accepts(wf action.ValidatingWorkflow, entry ir.Entry) error {
	var ok bool
	switch wf {
	case action.WorkflowHoldEntry:
		ok = true
	case action.WorkflowHoldLink:
		ok = entry.Type == ir.EntryTypeLinkAdd
	case action.WorkflowRemoveLink:
		ok = entry.Type == ir.EntryTypeLinkRemove
	case action.WorkflowUpdateEntry:
		ok = entry.Type == ir.EntryTypeApp && entry.App != nil && entry.App.Replaces != ""
	case action.WorkflowRemoveEntry:
		ok = entry.Type == ir.EntryTypeDeletion
	default:
		return fmt.Errorf("unknown validating workflow %q", wf)
	}
	if !ok {
		return fmt.Errorf("%s: %w: %s", wf, ErrWrongEntryType, entry.Type)
	}
	return nil
}

func missingDependencies(ctx context.Context, c *instance.Context, deps []ir.Address) ([]ir.Address, error) {
	var missing []ir.Address
	for _, d := range deps {
		ok, err := c.DHTStorage().Contains(ctx, d)
		if err != nil {
			return nil, fmt.Errorf("check dependency %s: %w", d.Short(), err)
		}
		if !ok {
			missing = append(missing, d)
		}
	}
	return missing, nil
}
