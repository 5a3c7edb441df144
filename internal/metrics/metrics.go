// Package metrics records runtime counters for the dispatch loop, the
// observer registry and the maintenance scheduler.
package metrics

import "time"

// Metrics is implemented by PrometheusMetrics and NopMetrics.
type Metrics interface {
	// Dispatch loop
	IncActionsApplied(actionType string)
	IncActionsRejected(reason string)
	ObserveReduceDuration(d time.Duration)
	SetStateSeq(seq int64)
	SetChainLength(n int)
	SetHeldEntries(n int)

	// Observers
	SetObservers(n int)
	AddTicks(n int)

	// Scheduler
	SetPendingValidations(n int)
	IncPendingOutcome(outcome string)
	ObserveSchedulerTick(d time.Duration)
}

// Pending validation outcomes.
const (
	OutcomeResolved  = "resolved"
	OutcomePending   = "pending"
	OutcomeAbandoned = "abandoned"
	OutcomeFailed    = "failed"
)
