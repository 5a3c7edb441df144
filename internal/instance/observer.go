package instance

import (
	"slices"
	"sync"
	"time"
)

// Observer receives one tick per action applied after it was registered.
//
// Ticks carry no payload. They are counted rather than buffered in a
// channel, so the dispatch loop never blocks on a slow observer and no
// tick is lost: a reader that falls behind sees the backlog on its next
// Next or Drain.
type Observer struct {
	mu      sync.Mutex
	pending int
	closed  bool
	signal  chan struct{} // buffered, size 1
}

func newObserver() *Observer {
	return &Observer{signal: make(chan struct{}, 1)}
}

// tick records one tick. Returns false once the observer is closed.
func (o *Observer) tick() bool {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return false
	}
	o.pending++
	o.mu.Unlock()

	select {
	case o.signal <- struct{}{}:
	default:
	}
	return true
}

func (o *Observer) take() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.pending == 0 {
		return false
	}
	o.pending--
	return true
}

// Next consumes one tick, waiting up to timeout for it to arrive.
// Returns false on timeout.
func (o *Observer) Next(timeout time.Duration) bool {
	if o.take() {
		return true
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case <-o.signal:
			if o.take() {
				return true
			}
		case <-timer.C:
			return o.take()
		}
	}
}

// Drain consumes and returns every pending tick.
func (o *Observer) Drain() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	n := o.pending
	o.pending = 0
	return n
}

// Pending returns the number of unconsumed ticks.
func (o *Observer) Pending() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.pending
}

// C signals that ticks may be pending. Use with select, then Drain.
func (o *Observer) C() <-chan struct{} {
	return o.signal
}

// Close deregisters the observer. The registry drops it on the next tick.
func (o *Observer) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closed = true
}

// observerRegistry is the set of live observers. Register and broadcast
// share a mutex so an observer registered before an action is applied is
// guaranteed to receive that action's tick.
type observerRegistry struct {
	mu        sync.Mutex
	observers []*Observer
}

func (r *observerRegistry) register() *Observer {
	o := newObserver()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observers = append(r.observers, o)
	return o
}

// broadcast ticks every observer, dropping closed ones. Returns the
// number of observers ticked.
func (r *observerRegistry) broadcast() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observers = slices.DeleteFunc(r.observers, func(o *Observer) bool {
		return !o.tick()
	})
	return len(r.observers)
}

func (r *observerRegistry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.observers)
}
