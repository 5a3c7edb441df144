package instance

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/roach88/chaincore/internal/action"
	"github.com/roach88/chaincore/internal/ir"
	"github.com/roach88/chaincore/internal/state"
	"github.com/roach88/chaincore/internal/storage"
)

// Instance owns the dispatch loop: the only writer of application state.
//
// The loop drains the action queue in FIFO order. For each action it
// reduces the current snapshot, persists what the action created, publishes
// the new snapshot, and then ticks every observer.
//
// Thread-safety model:
//   - Context(): safe from any goroutine
//   - Run(): must be called from exactly one goroutine, once
//   - Stop(): safe from any goroutine, idempotent
type Instance struct {
	ctx     *Context
	started atomic.Bool
	done    chan struct{}
	err     error
}

// New creates an Instance with its Context wired to a fresh queue and
// observer registry, and publishes the initial state for opts.Agent.
func New(opts Options) *Instance {
	c := NewContext(opts)
	c.queue = newActionQueue()
	c.observers = &observerRegistry{}
	c.current.Store(state.New(opts.Agent))

	return &Instance{
		ctx:  c,
		done: make(chan struct{}),
	}
}

// Context returns the runtime handle.
func (i *Instance) Context() *Context {
	return i.ctx
}

// Start runs the loop on a new goroutine.
func (i *Instance) Start(ctx context.Context) {
	go func() {
		_ = i.Run(ctx)
	}()
}

// Done is closed when Run returns.
func (i *Instance) Done() <-chan struct{} {
	return i.done
}

// Err returns the error Run returned. Valid after Done is closed.
func (i *Instance) Err() error {
	<-i.done
	return i.err
}

// Stop tears the instance down: the liveness flag goes false and the
// queue closes, so Run returns and later dispatches fail fast.
func (i *Instance) Stop() {
	i.ctx.alive.Store(false)
	i.ctx.queue.Close()
}

// Run is the single-writer dispatch loop.
// Blocks until ctx is cancelled, Stop is called, or the reducer panics.
//
// A reducer panic is recovered and stops the instance, so goroutines
// blocked in BlockOn observe a dead loop and abort instead of hanging.
func (i *Instance) Run(ctx context.Context) error {
	if !i.started.CompareAndSwap(false, true) {
		return errors.New("instance already running")
	}
	defer close(i.done)

	c := i.ctx
	log := c.Logger()
	log.Info("instance starting", "agent", c.agent.Nick, "network", c.network.Name)

	for {
		w, ok := c.queue.TryDequeue()
		if ok {
			if err := i.apply(ctx, w); err != nil {
				log.Error("dispatch loop stopped", "error", err)
				i.Stop()
				i.err = err
				return err
			}
			continue
		}

		select {
		case <-ctx.Done():
			log.Info("instance stopping: context cancelled")
			i.Stop()
			i.err = ctx.Err()
			return i.err

		case <-c.queue.Wait():
			// The signal channel is closed with the queue, so this case
			// keeps firing until the backlog is drained.
			if !c.queue.IsOpen() && c.queue.Len() == 0 {
				log.Info("instance stopping: queue closed")
				return nil
			}
		}
	}
}

// apply runs one dispatch cycle.
// CRITICAL: Called only from Run() goroutine - single-writer guarantee.
func (i *Instance) apply(ctx context.Context, w action.Wrapper) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("reduce %s %s: panic: %v", actionType(w), w.ID, r)
		}
	}()

	c := i.ctx
	start := time.Now()

	cur := c.current.Load()
	next := state.Reduce(cur, w)
	if next != cur {
		// Effects must land before the snapshot that references them is
		// visible. They outlive ctx cancellation so a published header is
		// never missing from storage.
		if err := i.persist(context.WithoutCancel(ctx), next, w); err != nil {
			c.Logger().Error("persist failed",
				"action", actionType(w),
				"id", w.ID,
				"error", err,
			)
			// next references content that is not stored. Publish cur
			// with the failure recorded for the waiting workflow instead.
			next = state.Reduce(cur, persistFailure(w, err))
		}
	}
	c.current.Store(next)

	ticked := c.observers.broadcast()

	m := c.metrics
	m.ObserveReduceDuration(time.Since(start))
	m.IncActionsApplied(actionType(w))
	m.SetStateSeq(next.Seq())
	m.SetChainLength(next.Agent().ChainLength())
	m.SetHeldEntries(next.DHT().HeldCount())
	m.SetPendingValidations(next.Nucleus().PendingCount())
	m.SetObservers(ticked)
	m.AddTicks(ticked)

	c.Logger().Debug("action applied",
		"action", actionType(w),
		"id", w.ID,
		"seq", next.Seq(),
	)
	return nil
}

// persist writes the content an applied action created.
func (i *Instance) persist(ctx context.Context, next *state.State, w action.Wrapper) error {
	c := i.ctx
	switch a := w.Action.(type) {
	case action.Commit:
		r, ok := next.Agent().CommitResponse(w.ID)
		if !ok || r.Err != "" {
			return nil
		}
		top, _ := next.Agent().TopChainHeader()
		if err := storage.AddEntry(ctx, c.ChainStorage(), a.Entry); err != nil {
			return fmt.Errorf("commit entry: %w", err)
		}
		if err := storage.AddHeader(ctx, c.ChainStorage(), top); err != nil {
			return fmt.Errorf("commit header: %w", err)
		}

	case action.Hold:
		if err := storage.AddEntry(ctx, c.DHTStorage(), a.Entry); err != nil {
			return fmt.Errorf("hold entry: %w", err)
		}
		if a.Header != nil {
			if err := storage.AddHeader(ctx, c.DHTStorage(), *a.Header); err != nil {
				return fmt.Errorf("hold header: %w", err)
			}
		}
		if err := i.index(ctx, a.Entry); err != nil {
			return fmt.Errorf("hold index: %w", err)
		}
	}
	return nil
}

// persistFailure is the action recording that w's effects were not stored.
// Only Commit and Hold have effects.
func persistFailure(w action.Wrapper, err error) action.Wrapper {
	switch a := w.Action.(type) {
	case action.Commit:
		return action.Wrapper{ID: w.ID, Action: action.CommitFailed{Entry: a.Entry, Reason: err.Error()}}
	case action.Hold:
		return action.Wrapper{ID: w.ID, Action: action.HoldFailed{Address: a.Entry.Address(), Reason: err.Error()}}
	}
	return action.Wrapper{ID: w.ID, Action: action.Ping{}}
}

// index records the relations a held entry introduces.
func (i *Instance) index(ctx context.Context, e ir.Entry) error {
	var rel storage.EAVI
	switch {
	case e.Type == ir.EntryTypeLinkAdd && e.Link != nil:
		rel = storage.EAVI{Entity: e.Link.Base, Attribute: storage.LinkAttribute(e.Link.LinkType), Value: e.Link.Target}
	case e.Type == ir.EntryTypeLinkRemove && e.Link != nil:
		rel = storage.EAVI{Entity: e.Link.Base, Attribute: storage.RemovedLinkAttribute(e.Link.LinkType), Value: e.Link.Target}
	case e.Type == ir.EntryTypeDeletion && e.Deletion != nil:
		rel = storage.EAVI{Entity: e.Deletion.Deleted, Attribute: storage.AttrCRUDLink, Value: e.Address()}
	case e.Type == ir.EntryTypeApp && e.App != nil && e.App.Replaces != "":
		rel = storage.EAVI{Entity: e.App.Replaces, Attribute: storage.AttrCRUDLink, Value: e.Address()}
	default:
		return nil
	}
	_, err := i.ctx.EAVStorage().AddEAVI(ctx, rel)
	return err
}

func actionType(w action.Wrapper) string {
	if w.Action == nil {
		return "nil"
	}
	return w.Action.Type()
}
