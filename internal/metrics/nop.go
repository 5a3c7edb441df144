package metrics

import "time"

// NopMetrics is a no-op implementation of the Metrics interface.
// Use this when metrics collection is disabled.
type NopMetrics struct{}

// NewNopMetrics creates a new NopMetrics instance.
func NewNopMetrics() *NopMetrics {
	return &NopMetrics{}
}

func (m *NopMetrics) IncActionsApplied(actionType string)   {}
func (m *NopMetrics) IncActionsRejected(reason string)      {}
func (m *NopMetrics) ObserveReduceDuration(d time.Duration) {}
func (m *NopMetrics) SetStateSeq(seq int64)                 {}
func (m *NopMetrics) SetChainLength(n int)                  {}
func (m *NopMetrics) SetHeldEntries(n int)                  {}
func (m *NopMetrics) SetObservers(n int)                    {}
func (m *NopMetrics) AddTicks(n int)                        {}
func (m *NopMetrics) SetPendingValidations(n int)           {}
func (m *NopMetrics) IncPendingOutcome(outcome string)      {}
func (m *NopMetrics) ObserveSchedulerTick(d time.Duration)  {}

var _ Metrics = (*NopMetrics)(nil)
