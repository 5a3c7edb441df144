package action

import (
	"github.com/roach88/chaincore/internal/ir"
)

// Action is a sealed sum type. Only the variants in this file implement it.
type Action interface {
	// Type returns a stable name for logging and metrics labels.
	Type() string
	action()
}

// FlowKind selects which network bookkeeping map a flow belongs to.
type FlowKind string

const (
	FlowQuery             FlowKind = "query"
	FlowValidationPackage FlowKind = "validation_package"
	FlowDirectMessage     FlowKind = "direct_message"
)

// ValidatingWorkflow names the validation path a pending entry is queued under.
type ValidatingWorkflow string

const (
	WorkflowHoldEntry   ValidatingWorkflow = "hold_entry"
	WorkflowHoldLink    ValidatingWorkflow = "hold_link"
	WorkflowRemoveLink  ValidatingWorkflow = "remove_link"
	WorkflowUpdateEntry ValidatingWorkflow = "update_entry"
	WorkflowRemoveEntry ValidatingWorkflow = "remove_entry"
)

// PendingKey identifies a pending validation.
type PendingKey struct {
	Address  ir.Address
	Workflow ValidatingWorkflow
}

// PendingValidation is work queued because a dependency is not yet held.
type PendingValidation struct {
	Address      ir.Address
	Workflow     ValidatingWorkflow
	Entry        ir.Entry
	Header       *ir.ChainHeader
	Dependencies []ir.Address
	Attempts     int
}

// Key returns the identity of p in the pending queue.
func (p PendingValidation) Key() PendingKey {
	return PendingKey{Address: p.Address, Workflow: p.Workflow}
}

// Commit appends Entry to the source chain. Timestamp is supplied by the
// caller so the reducer stays a pure function.
type Commit struct {
	Entry     ir.Entry
	Timestamp int64
}

// ClearActionResponse drops the recorded response of a prior action:
// a commit response or a hold failure.
type ClearActionResponse struct {
	ID string
}

// InitializeDNA loads the application definition.
type InitializeDNA struct {
	DNA ir.DNA
}

// ZomeCallStarted records an in-flight call.
type ZomeCallStarted struct {
	CallID string
}

// ZomeCallFinished removes an in-flight call.
type ZomeCallFinished struct {
	CallID string
}

// AddPendingValidation queues work whose dependencies are missing.
type AddPendingValidation struct {
	Pending PendingValidation
}

// RemovePendingValidation removes a resolved or abandoned entry.
type RemovePendingValidation struct {
	Key PendingKey
}

// PendingValidationRetried records one more failed retry.
type PendingValidationRetried struct {
	Key PendingKey
}

// Hold marks Entry as held in the local DHT shard. The dispatch loop
// writes Entry (and Header, when present) to DHT storage before the new
// state is published.
type Hold struct {
	Entry  ir.Entry
	Header *ir.ChainHeader
}

// CommitFailed is recorded by the dispatch loop, under the wrapper id of
// a Commit whose entry or header could not be stored. The chain head does
// not move.
type CommitFailed struct {
	Entry  ir.Entry
	Reason string
}

// HoldFailed is recorded by the dispatch loop, under the wrapper id of a
// Hold whose content could not be stored. The address is not held.
type HoldFailed struct {
	Address ir.Address
	Reason  string
}

// RemoveHeld marks content as no longer held.
type RemoveHeld struct {
	Address ir.Address
}

// StartFlow begins tracking a network flow.
type StartFlow struct {
	Kind   FlowKind
	ID     string
	Target ir.Address
}

// ResolveFlow records the outcome of a network flow.
type ResolveFlow struct {
	Kind   FlowKind
	ID     string
	Result string
	Err    string
}

// ClearFlow stops tracking a finished network flow.
type ClearFlow struct {
	Kind FlowKind
	ID   string
}

// Ping is a heartbeat. The reducer leaves state untouched.
type Ping struct{}

func (Commit) Type() string                   { return "commit" }
func (ClearActionResponse) Type() string      { return "clear_action_response" }
func (InitializeDNA) Type() string            { return "initialize_dna" }
func (ZomeCallStarted) Type() string          { return "zome_call_started" }
func (ZomeCallFinished) Type() string         { return "zome_call_finished" }
func (AddPendingValidation) Type() string     { return "add_pending_validation" }
func (RemovePendingValidation) Type() string  { return "remove_pending_validation" }
func (PendingValidationRetried) Type() string { return "pending_validation_retried" }
func (Hold) Type() string                     { return "hold" }
func (CommitFailed) Type() string             { return "commit_failed" }
func (HoldFailed) Type() string               { return "hold_failed" }
func (RemoveHeld) Type() string               { return "remove_held" }
func (StartFlow) Type() string                { return "start_flow" }
func (ResolveFlow) Type() string              { return "resolve_flow" }
func (ClearFlow) Type() string                { return "clear_flow" }
func (Ping) Type() string                     { return "ping" }

func (Commit) action()                   {}
func (ClearActionResponse) action()      {}
func (InitializeDNA) action()            {}
func (ZomeCallStarted) action()          {}
func (ZomeCallFinished) action()         {}
func (AddPendingValidation) action()     {}
func (RemovePendingValidation) action()  {}
func (PendingValidationRetried) action() {}
func (Hold) action()                     {}
func (CommitFailed) action()             {}
func (HoldFailed) action()               {}
func (RemoveHeld) action()               {}
func (StartFlow) action()                {}
func (ResolveFlow) action()              {}
func (ClearFlow) action()                {}
func (Ping) action()                     {}
