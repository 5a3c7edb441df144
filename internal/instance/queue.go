package instance

import (
	"sync"

	"github.com/roach88/chaincore/internal/action"
)

// actionQueue is the thread-safe FIFO the dispatch loop drains.
//
// The queue is unbounded so Dispatch never blocks. It uses a channel for
// signaling so the loop can wait on it alongside context cancellation.
type actionQueue struct {
	mu      sync.Mutex
	actions []action.Wrapper
	closed  bool
	signal  chan struct{} // buffered, size 1
}

func newActionQueue() *actionQueue {
	return &actionQueue{
		actions: make([]action.Wrapper, 0, 64),
		signal:  make(chan struct{}, 1),
	}
}

// Enqueue adds w to the back of the queue.
// Returns false if the queue is closed.
func (q *actionQueue) Enqueue(w action.Wrapper) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.actions = append(q.actions, w)

	// Buffer of 1 coalesces multiple signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// TryDequeue removes the front wrapper without blocking.
func (q *actionQueue) TryDequeue() (action.Wrapper, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.actions) == 0 {
		return action.Wrapper{}, false
	}

	w := q.actions[0]
	// Nil out the slot so the backing array does not retain the action.
	q.actions[0] = action.Wrapper{}
	if len(q.actions) == 1 {
		q.actions = q.actions[:0]
	} else {
		q.actions = q.actions[1:]
	}
	return w, true
}

// Wait returns a channel that signals when actions may be available.
// It is closed when the queue closes.
func (q *actionQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *actionQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.actions)
}

// IsOpen reports whether Enqueue would accept an action.
func (q *actionQueue) IsOpen() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return !q.closed
}

// Close stops accepting actions and wakes the loop.
func (q *actionQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}
