package state

import (
	"maps"

	"github.com/roach88/chaincore/internal/ir"
)

// CommitResult is the reducer's answer to a Commit, keyed by wrapper id.
type CommitResult struct {
	Entry         ir.Entry
	EntryAddress  ir.Address
	HeaderAddress ir.Address
	Err           string
}

// AgentState tracks the head of the source chain.
type AgentState struct {
	agent       ir.AgentID
	top         *ir.ChainHeader
	topByType   map[ir.EntryType]ir.Address
	chainLength int
	responses   map[string]CommitResult
}

func newAgentState(agent ir.AgentID) *AgentState {
	return &AgentState{
		agent:     agent,
		topByType: map[ir.EntryType]ir.Address{},
		responses: map[string]CommitResult{},
	}
}

// AgentID returns the identity of the chain owner.
func (a *AgentState) AgentID() ir.AgentID { return a.agent }

// TopChainHeader returns the latest header, or false on an empty chain.
func (a *AgentState) TopChainHeader() (ir.ChainHeader, bool) {
	if a.top == nil {
		return ir.ChainHeader{}, false
	}
	return *a.top, true
}

// TopHeaderOfType returns the address of the latest header of entry type t.
func (a *AgentState) TopHeaderOfType(t ir.EntryType) (ir.Address, bool) {
	addr, ok := a.topByType[t]
	return addr, ok
}

// ChainLength is the number of committed entries.
func (a *AgentState) ChainLength() int { return a.chainLength }

// CommitResponse returns the result recorded for a Commit wrapper id.
func (a *AgentState) CommitResponse(id string) (CommitResult, bool) {
	r, ok := a.responses[id]
	return r, ok
}

// ResponseCount is the number of recorded, uncleared commit responses.
func (a *AgentState) ResponseCount() int { return len(a.responses) }

func (a *AgentState) commit(id string, entry ir.Entry, timestamp int64) *AgentState {
	n := *a
	n.responses = maps.Clone(a.responses)

	if err := entry.Validate(); err != nil {
		n.responses[id] = CommitResult{Entry: entry, Err: err.Error()}
		return &n
	}

	var link ir.Address
	if a.top != nil {
		link = a.top.Address()
	}
	header := ir.NewChainHeader(entry, a.agent.Address(), link, a.topByType[entry.Type], timestamp)
	headerAddr := header.Address()

	n.top = &header
	n.topByType = maps.Clone(a.topByType)
	n.topByType[entry.Type] = headerAddr
	n.chainLength++
	n.responses[id] = CommitResult{
		Entry:         entry,
		EntryAddress:  header.EntryAddress,
		HeaderAddress: headerAddr,
	}
	return &n
}

// commitFailed records reason as the response to id without moving the
// chain head.
func (a *AgentState) commitFailed(id string, entry ir.Entry, reason string) *AgentState {
	n := *a
	n.responses = maps.Clone(a.responses)
	n.responses[id] = CommitResult{Entry: entry, Err: reason}
	return &n
}

func (a *AgentState) clearResponse(id string) (*AgentState, bool) {
	if _, ok := a.responses[id]; !ok {
		return a, false
	}
	n := *a
	n.responses = maps.Clone(a.responses)
	delete(n.responses, id)
	return &n, true
}
