package workflow

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/chaincore/internal/action"
	"github.com/roach88/chaincore/internal/ir"
)

// DependenciesMissingError reports that a validating workflow could not
// complete yet because content it depends on is not held locally.
// It is the "not yet satisfied" outcome, not a failure.
type DependenciesMissingError struct {
	Address  ir.Address
	Workflow action.ValidatingWorkflow
	Missing  []ir.Address
}

// Error implements the error interface.
func (e *DependenciesMissingError) Error() string {
	short := make([]string, len(e.Missing))
	for i, m := range e.Missing {
		short[i] = m.Short()
	}
	return fmt.Sprintf("%s %s: dependencies missing: %s",
		e.Workflow, e.Address.Short(), strings.Join(short, ", "))
}

// IsDependenciesMissing returns true if err reports missing dependencies.
// Uses errors.As to handle wrapped errors.
func IsDependenciesMissing(err error) bool {
	var dm *DependenciesMissingError
	return errors.As(err, &dm)
}

// CommitError is returned when a commit was rejected or its entry could
// not be stored. The chain head did not move.
type CommitError struct {
	EntryType ir.EntryType
	Reason    string
}

// Error implements the error interface.
func (e *CommitError) Error() string {
	return fmt.Sprintf("commit %s rejected: %s", e.EntryType, e.Reason)
}

// HoldError is returned when validated content could not be stored in
// the DHT shard. The address is not held.
type HoldError struct {
	Address  ir.Address
	Workflow action.ValidatingWorkflow
	Reason   string
}

// Error implements the error interface.
func (e *HoldError) Error() string {
	return fmt.Sprintf("%s %s: hold failed: %s", e.Workflow, e.Address.Short(), e.Reason)
}

// ErrWrongEntryType is returned when a validating workflow receives an
// entry it cannot validate.
var ErrWrongEntryType = errors.New("entry type not accepted by workflow")

// FlowError carries the failure a remote side reported for a network flow.
type FlowError struct {
	Kind   action.FlowKind
	ID     string
	Reason string
}

// Error implements the error interface.
func (e *FlowError) Error() string {
	return fmt.Sprintf("%s flow %s failed: %s", e.Kind, e.ID, e.Reason)
}
