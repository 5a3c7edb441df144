package state

import (
	"cmp"
	"maps"
	"slices"

	"github.com/roach88/chaincore/internal/action"
	"github.com/roach88/chaincore/internal/ir"
)

// NucleusState tracks the loaded application and in-flight work.
type NucleusState struct {
	dna          *ir.DNA
	runningCalls map[string]struct{}
	pending      map[action.PendingKey]action.PendingValidation
}

func newNucleusState() *NucleusState {
	return &NucleusState{
		runningCalls: map[string]struct{}{},
		pending:      map[action.PendingKey]action.PendingValidation{},
	}
}

// DNA returns the application definition, or false until it is loaded.
func (n *NucleusState) DNA() (ir.DNA, bool) {
	if n.dna == nil {
		return ir.DNA{}, false
	}
	return *n.dna, true
}

// RunningCalls returns in-flight call ids, sorted.
func (n *NucleusState) RunningCalls() []string {
	calls := slices.Collect(maps.Keys(n.runningCalls))
	slices.Sort(calls)
	return calls
}

// PendingValidations returns the queue ordered by address then workflow.
func (n *NucleusState) PendingValidations() []action.PendingValidation {
	out := slices.Collect(maps.Values(n.pending))
	slices.SortFunc(out, func(a, b action.PendingValidation) int {
		if c := cmp.Compare(a.Address, b.Address); c != 0 {
			return c
		}
		return cmp.Compare(a.Workflow, b.Workflow)
	})
	return out
}

// Pending looks up one queued validation.
func (n *NucleusState) Pending(key action.PendingKey) (action.PendingValidation, bool) {
	p, ok := n.pending[key]
	return p, ok
}

// PendingCount is the number of queued validations.
func (n *NucleusState) PendingCount() int { return len(n.pending) }

func (n *NucleusState) initializeDNA(dna ir.DNA) *NucleusState {
	next := *n
	next.dna = &dna
	return &next
}

func (n *NucleusState) startCall(id string) (*NucleusState, bool) {
	if _, ok := n.runningCalls[id]; ok {
		return n, false
	}
	next := *n
	next.runningCalls = maps.Clone(n.runningCalls)
	next.runningCalls[id] = struct{}{}
	return &next, true
}

func (n *NucleusState) finishCall(id string) (*NucleusState, bool) {
	if _, ok := n.runningCalls[id]; !ok {
		return n, false
	}
	next := *n
	next.runningCalls = maps.Clone(n.runningCalls)
	delete(next.runningCalls, id)
	return &next, true
}

// addPending queues p. Re-queueing an existing key keeps the original
// record so its attempt count survives.
func (n *NucleusState) addPending(p action.PendingValidation) (*NucleusState, bool) {
	if _, ok := n.pending[p.Key()]; ok {
		return n, false
	}
	next := *n
	next.pending = maps.Clone(n.pending)
	next.pending[p.Key()] = p
	return &next, true
}

func (n *NucleusState) removePending(key action.PendingKey) (*NucleusState, bool) {
	if _, ok := n.pending[key]; !ok {
		return n, false
	}
	next := *n
	next.pending = maps.Clone(n.pending)
	delete(next.pending, key)
	return &next, true
}

func (n *NucleusState) retried(key action.PendingKey) (*NucleusState, bool) {
	p, ok := n.pending[key]
	if !ok {
		return n, false
	}
	p.Attempts++
	next := *n
	next.pending = maps.Clone(n.pending)
	next.pending[key] = p
	return &next, true
}
