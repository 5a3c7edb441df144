package state

import (
	"github.com/roach88/chaincore/internal/action"
)

// Reduce applies one wrapped action to s and returns the next snapshot.
//
// Reduce is pure. It never mutates s, and it returns s itself when the
// action changes nothing (Ping, unknown ids, duplicate holds). Callers
// compare pointers to detect a no-op.
func Reduce(s *State, w action.Wrapper) *State {
	switch a := w.Action.(type) {
	case action.Commit:
		return s.withAgent(s.agent.commit(w.ID, a.Entry, a.Timestamp))

	case action.ClearActionResponse:
		ag, clearedResponse := s.agent.clearResponse(a.ID)
		d, clearedFailure := s.dht.clearFailure(a.ID)
		if clearedResponse || clearedFailure {
			n := s.next()
			n.agent, n.dht = ag, d
			return n
		}

	case action.CommitFailed:
		return s.withAgent(s.agent.commitFailed(w.ID, a.Entry, a.Reason))

	case action.InitializeDNA:
		return s.withNucleus(s.nucleus.initializeDNA(a.DNA))

	case action.ZomeCallStarted:
		if nu, ok := s.nucleus.startCall(a.CallID); ok {
			return s.withNucleus(nu)
		}

	case action.ZomeCallFinished:
		if nu, ok := s.nucleus.finishCall(a.CallID); ok {
			return s.withNucleus(nu)
		}

	case action.AddPendingValidation:
		if nu, ok := s.nucleus.addPending(a.Pending); ok {
			return s.withNucleus(nu)
		}

	case action.RemovePendingValidation:
		if nu, ok := s.nucleus.removePending(a.Key); ok {
			return s.withNucleus(nu)
		}

	case action.PendingValidationRetried:
		if nu, ok := s.nucleus.retried(a.Key); ok {
			return s.withNucleus(nu)
		}

	case action.Hold:
		if d, ok := s.dht.hold(a.Entry.Address()); ok {
			return s.withDHT(d)
		}

	case action.HoldFailed:
		return s.withDHT(s.dht.holdFailed(w.ID, a.Reason))

	case action.RemoveHeld:
		if d, ok := s.dht.remove(a.Address); ok {
			return s.withDHT(d)
		}

	case action.StartFlow:
		return s.withNetwork(s.network.start(a))

	case action.ResolveFlow:
		if nw, ok := s.network.resolve(a); ok {
			return s.withNetwork(nw)
		}

	case action.ClearFlow:
		if nw, ok := s.network.clear(a.Kind, a.ID); ok {
			return s.withNetwork(nw)
		}
	}
	return s
}

// Fold applies every wrapper in order starting from s.
func Fold(s *State, ws []action.Wrapper) *State {
	for _, w := range ws {
		s = Reduce(s, w)
	}
	return s
}
