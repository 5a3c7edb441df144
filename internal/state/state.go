package state

import (
	"github.com/roach88/chaincore/internal/ir"
)

// State is one immutable snapshot of an instance.
type State struct {
	seq     int64
	agent   *AgentState
	nucleus *NucleusState
	network *NetworkState
	dht     *DHTState
}

// New returns the initial snapshot for agent.
func New(agent ir.AgentID) *State {
	return &State{
		agent:   newAgentState(agent),
		nucleus: newNucleusState(),
		network: newNetworkState(),
		dht:     newDHTState(),
	}
}

// Seq is the number of state-changing actions applied so far.
func (s *State) Seq() int64 { return s.seq }

// Agent returns the source chain sub-state.
func (s *State) Agent() *AgentState { return s.agent }

// Nucleus returns the execution sub-state.
func (s *State) Nucleus() *NucleusState { return s.nucleus }

// Network returns the network-flow bookkeeping sub-state.
func (s *State) Network() *NetworkState { return s.network }

// DHT returns the held-content sub-state.
func (s *State) DHT() *DHTState { return s.dht }

// next copies the snapshot header so one sub-state can be swapped.
func (s *State) next() *State {
	n := *s
	n.seq++
	return &n
}

func (s *State) withAgent(a *AgentState) *State {
	n := s.next()
	n.agent = a
	return n
}

func (s *State) withNucleus(nu *NucleusState) *State {
	n := s.next()
	n.nucleus = nu
	return n
}

func (s *State) withNetwork(nw *NetworkState) *State {
	n := s.next()
	n.network = nw
	return n
}

func (s *State) withDHT(d *DHTState) *State {
	n := s.next()
	n.dht = d
	return n
}
