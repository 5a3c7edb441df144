package workflow

import (
	"fmt"

	"github.com/roach88/chaincore/internal/action"
	"github.com/roach88/chaincore/internal/instance"
	"github.com/roach88/chaincore/internal/ir"
	"github.com/roach88/chaincore/internal/state"
)

// Commit appends entry to the source chain and returns its address.
//
// It waits for the reducer's response, then clears it from state. By the
// time Commit returns the entry and its header are in chain storage.
func Commit(c *instance.Context, entry ir.Entry) (ir.Address, error) {
	w, err := c.Dispatch(action.Commit{Entry: entry.Clone(), Timestamp: c.Now()})
	if err != nil {
		return "", fmt.Errorf("commit %s: %w", entry.Type, err)
	}

	res := instance.WaitFor(c, func(s *state.State) (state.CommitResult, bool) {
		return s.Agent().CommitResponse(w.ID)
	})

	if _, err := c.Dispatch(action.ClearActionResponse{ID: w.ID}); err != nil {
		c.Logger().Warn("clear commit response failed", "id", w.ID, "error", err)
	}

	if res.Err != "" {
		return "", &CommitError{EntryType: entry.Type, Reason: res.Err}
	}
	return res.EntryAddress, nil
}

// GrantCapability commits grant and returns the address of the grant
// entry, which is the token callers present.
func GrantCapability(c *instance.Context, grant ir.CapTokenGrant) (ir.Address, error) {
	return Commit(c, ir.NewGrantEntry(grant))
}

// Genesis loads dna and writes the first entries of a fresh chain: the
// DNA record, the agent identity, and the public grant covering every
// public function of dna. Returns the public token.
func Genesis(c *instance.Context, dna ir.DNA) (ir.Address, error) {
	if _, err := c.Dispatch(action.InitializeDNA{DNA: dna}); err != nil {
		return "", fmt.Errorf("genesis: %w", err)
	}
	if _, err := c.GetDNA(); err != nil {
		return "", fmt.Errorf("genesis: %w", err)
	}

	if _, err := Commit(c, ir.NewDNAEntry(dna)); err != nil {
		return "", fmt.Errorf("genesis: %w", err)
	}
	if _, err := Commit(c, ir.NewAgentEntry(c.Agent())); err != nil {
		return "", fmt.Errorf("genesis: %w", err)
	}
	token, err := GrantCapability(c, ir.NewPublicGrant(dna.PublicFunctions()))
	if err != nil {
		return "", fmt.Errorf("genesis: %w", err)
	}

	c.Logger().Info("genesis complete",
		"dna", dna.Name,
		"public_token", token.Short(),
	)
	return token, nil
}
