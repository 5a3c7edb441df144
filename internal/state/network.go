package state

import (
	"maps"
	"slices"

	"github.com/roach88/chaincore/internal/action"
	"github.com/roach88/chaincore/internal/ir"
)

// FlowStatus is the bookkeeping record of one network flow.
type FlowStatus struct {
	Target ir.Address
	Done   bool
	Result string
	Err    string
}

// NetworkState tracks in-flight query, validation-package and direct
// message flows keyed by correlation id.
type NetworkState struct {
	flows map[action.FlowKind]map[string]FlowStatus
}

func newNetworkState() *NetworkState {
	return &NetworkState{flows: map[action.FlowKind]map[string]FlowStatus{
		action.FlowQuery:             {},
		action.FlowValidationPackage: {},
		action.FlowDirectMessage:     {},
	}}
}

// Flow returns the status of one flow.
func (n *NetworkState) Flow(kind action.FlowKind, id string) (FlowStatus, bool) {
	f, ok := n.flows[kind][id]
	return f, ok
}

// Flows returns a copy of every flow of kind.
func (n *NetworkState) Flows(kind action.FlowKind) map[string]FlowStatus {
	return maps.Clone(n.flows[kind])
}

// FlowIDs returns the ids of every flow of kind, sorted.
func (n *NetworkState) FlowIDs(kind action.FlowKind) []string {
	ids := slices.Collect(maps.Keys(n.flows[kind]))
	slices.Sort(ids)
	return ids
}

// withFlows clones the outer map and the inner map of kind only.
func (n *NetworkState) withFlows(kind action.FlowKind, edit func(map[string]FlowStatus)) *NetworkState {
	outer := maps.Clone(n.flows)
	inner := maps.Clone(n.flows[kind])
	if inner == nil {
		inner = map[string]FlowStatus{}
	}
	edit(inner)
	outer[kind] = inner
	return &NetworkState{flows: outer}
}

func (n *NetworkState) start(a action.StartFlow) *NetworkState {
	return n.withFlows(a.Kind, func(m map[string]FlowStatus) {
		m[a.ID] = FlowStatus{Target: a.Target}
	})
}

// resolve ignores flows that were never started or already cleared; a
// late answer has nobody waiting for it.
func (n *NetworkState) resolve(a action.ResolveFlow) (*NetworkState, bool) {
	f, ok := n.flows[a.Kind][a.ID]
	if !ok {
		return n, false
	}
	f.Done = true
	f.Result = a.Result
	f.Err = a.Err
	return n.withFlows(a.Kind, func(m map[string]FlowStatus) { m[a.ID] = f }), true
}

func (n *NetworkState) clear(kind action.FlowKind, id string) (*NetworkState, bool) {
	if _, ok := n.flows[kind][id]; !ok {
		return n, false
	}
	return n.withFlows(kind, func(m map[string]FlowStatus) { delete(m, id) }), true
}
