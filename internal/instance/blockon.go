package instance

import (
	"time"

	"github.com/roach88/chaincore/internal/state"
)

// blockOnTimeout bounds each wait between polls, so a future re-polls
// even when no action is applied.
const blockOnTimeout = 10 * time.Millisecond

// Future is a computation that can be polled until it is ready.
// Poll must not block.
type Future[T any] interface {
	Poll() (T, bool)
}

// FutureFunc adapts a function to Future.
type FutureFunc[T any] func() (T, bool)

// Poll implements Future.
func (f FutureFunc[T]) Poll() (T, bool) { return f() }

// BlockOn drives f to completion from a blocking call site.
//
// There is no scheduler behind it. f makes progress only when state
// changes: BlockOn registers an observer before the first poll, then
// alternates polling f and waiting for the next tick (or blockOnTimeout).
//
// BlockOn never returns an error. If the instance is torn down or its
// dispatch loop stops while f is pending, it calls Abort, because a caller
// parked here has no safe way to unwind.
func BlockOn[T any](c *Context, f Future[T]) T {
	obs, err := c.CreateObserver()
	if err != nil {
		Abort(c.name, "block_on: "+err.Error())
	}
	defer obs.Close()

	for {
		if v, ok := f.Poll(); ok {
			return v
		}
		obs.Next(blockOnTimeout)

		if !c.IsAlive() {
			Abort(c.name, "block_on waiting for future but instance is not alive anymore")
		}
		if err := c.actionChannelError("block_on"); err != nil {
			Abort(c.name, "block_on waiting for future but dispatch loop stopped: "+err.Error())
		}
	}
}

// WaitFor blocks until cond, evaluated against the current snapshot,
// reports ready.
func WaitFor[T any](c *Context, cond func(*state.State) (T, bool)) T {
	return BlockOn[T](c, FutureFunc[T](func() (T, bool) {
		s := c.State()
		if s == nil {
			var zero T
			return zero, false
		}
		return cond(s)
	}))
}
