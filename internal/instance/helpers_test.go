package instance

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/chaincore/internal/action"
	"github.com/roach88/chaincore/internal/ir"
	"github.com/roach88/chaincore/internal/logging"
)

// stepClock returns 1, 2, 3, ...
type stepClock struct{ n atomic.Int64 }

func (c *stepClock) Now() int64 { return c.n.Add(1) }

func testOptions() Options {
	return Options{
		Name:   "test",
		Agent:  ir.FakeAgentID("alice"),
		Logger: logging.Nop(),
		IDs:    action.NewFixedGenerator("act"),
		Clock:  &stepClock{},
	}
}

// startInstance runs a fresh instance until the test ends.
func startInstance(t *testing.T) *Instance {
	t.Helper()
	inst := New(testOptions())
	ctx, cancel := context.WithCancel(context.Background())
	inst.Start(ctx)
	t.Cleanup(func() {
		cancel()
		<-inst.Done()
	})
	return inst
}

// dispatchAndWait dispatches a and blocks until the loop has applied it.
func dispatchAndWait(t *testing.T, c *Context, a action.Action) action.Wrapper {
	t.Helper()
	obs, err := c.CreateObserver()
	require.NoError(t, err)
	defer obs.Close()

	w, err := c.Dispatch(a)
	require.NoError(t, err)
	require.True(t, obs.Next(time.Second), "action %s was not applied", a.Type())
	return w
}

// commit dispatches a Commit and returns the committed entry address.
func commit(t *testing.T, c *Context, e ir.Entry) ir.Address {
	t.Helper()
	w := dispatchAndWait(t, c, action.Commit{Entry: e, Timestamp: c.Now()})
	r, ok := c.State().Agent().CommitResponse(w.ID)
	require.True(t, ok)
	require.Empty(t, r.Err)
	return r.EntryAddress
}
