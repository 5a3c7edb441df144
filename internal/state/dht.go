package state

import (
	"maps"
	"slices"

	"github.com/roach88/chaincore/internal/ir"
)

// DHTState is the set of addresses held by this instance, plus the
// failures of holds whose content could not be stored, keyed by the
// Hold's wrapper id.
type DHTState struct {
	held     map[ir.Address]struct{}
	failures map[string]string
}

func newDHTState() *DHTState {
	return &DHTState{held: map[ir.Address]struct{}{}, failures: map[string]string{}}
}

// HoldFailure returns why the Hold with wrapper id was not applied.
func (d *DHTState) HoldFailure(id string) (string, bool) {
	reason, ok := d.failures[id]
	return reason, ok
}

// Holds reports whether addr is held.
func (d *DHTState) Holds(addr ir.Address) bool {
	_, ok := d.held[addr]
	return ok
}

// Held returns every held address, sorted.
func (d *DHTState) Held() []ir.Address {
	out := slices.Collect(maps.Keys(d.held))
	slices.Sort(out)
	return out
}

// HeldCount is the number of held addresses.
func (d *DHTState) HeldCount() int { return len(d.held) }

func (d *DHTState) hold(addr ir.Address) (*DHTState, bool) {
	if d.Holds(addr) {
		return d, false
	}
	held := maps.Clone(d.held)
	held[addr] = struct{}{}
	return &DHTState{held: held, failures: d.failures}, true
}

func (d *DHTState) remove(addr ir.Address) (*DHTState, bool) {
	if !d.Holds(addr) {
		return d, false
	}
	held := maps.Clone(d.held)
	delete(held, addr)
	return &DHTState{held: held, failures: d.failures}, true
}

func (d *DHTState) holdFailed(id, reason string) *DHTState {
	failures := maps.Clone(d.failures)
	failures[id] = reason
	return &DHTState{held: d.held, failures: failures}
}

func (d *DHTState) clearFailure(id string) (*DHTState, bool) {
	if _, ok := d.failures[id]; !ok {
		return d, false
	}
	failures := maps.Clone(d.failures)
	delete(failures, id)
	return &DHTState{held: d.held, failures: failures}, true
}
