package scheduled

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/chaincore/internal/action"
	"github.com/roach88/chaincore/internal/instance"
	"github.com/roach88/chaincore/internal/ir"
	"github.com/roach88/chaincore/internal/storage"
	"github.com/roach88/chaincore/internal/testutil"
	"github.com/roach88/chaincore/internal/workflow"
)

func pendingKey(e ir.Entry, wf action.ValidatingWorkflow) action.PendingKey {
	return action.PendingKey{Address: e.Address(), Workflow: wf}
}

// queue runs a validating workflow that is expected to be deferred and
// waits until the pending entry is visible.
func queue(t *testing.T, c *instance.Context, run func() error, key action.PendingKey) {
	t.Helper()
	require.True(t, workflow.IsDependenciesMissing(run()))
	waitFor(t, func() bool {
		_, ok := c.State().Nucleus().Pending(key)
		return ok
	})
}

func TestRunPendingValidations_Convergence(t *testing.T) {
	for _, k := range []int{0, 1, 3} {
		c := testutil.StartInstance(t, testutil.Options("converge")).Context()
		ctx := context.Background()
		sched := NewScheduler(c, Options{})

		dep := ir.NewAppEntry("post", "dep")
		link := ir.NewLinkAdd(dep.Address(), dep.Address(), "self", "")
		key := pendingKey(link, action.WorkflowHoldLink)
		queue(t, c, func() error { return workflow.HoldLink(ctx, c, link, nil) }, key)

		for tick := 1; tick <= k; tick++ {
			require.NoError(t, sched.Tick(ctx))
			p, ok := c.State().Nucleus().Pending(key)
			require.True(t, ok, "k=%d: resolved early on tick %d", k, tick)
			assert.Equal(t, tick, p.Attempts)
			assert.False(t, c.State().DHT().Holds(link.Address()))
		}

		require.NoError(t, storage.AddEntry(ctx, c.DHTStorage(), dep))
		require.NoError(t, sched.Tick(ctx))

		_, ok := c.State().Nucleus().Pending(key)
		assert.False(t, ok, "k=%d: still pending after tick %d", k, k+1)
		assert.True(t, c.State().DHT().Holds(link.Address()))
	}
}

func TestRunPendingValidations_CommitThenHoldEndToEnd(t *testing.T) {
	c := testutil.StartInstance(t, testutil.Options("e2e")).Context()
	ctx := context.Background()
	sched := NewScheduler(c, Options{})

	dep := ir.NewAppEntry("post", "v1")
	entryA := ir.NewUpdateEntry("post", "v2", dep.Address())

	addr, err := workflow.Commit(c, entryA)
	require.NoError(t, err)
	require.Equal(t, entryA.Address(), addr)
	top, _ := c.State().Agent().TopChainHeader()

	key := pendingKey(entryA, action.WorkflowHoldEntry)
	queue(t, c, func() error { return workflow.HoldEntry(ctx, c, entryA, &top) }, key)

	for range 3 {
		require.NoError(t, sched.Tick(ctx))
		_, ok := c.State().Nucleus().Pending(key)
		require.True(t, ok, "entry must stay queued while its dependency is absent")
	}

	require.NoError(t, storage.AddEntry(ctx, c.DHTStorage(), dep))
	require.NoError(t, sched.Tick(ctx))

	_, ok := c.State().Nucleus().Pending(key)
	assert.False(t, ok)
	assert.True(t, c.State().DHT().Holds(entryA.Address()))

	h, err := storage.FetchHeader(ctx, c.DHTStorage(), top.Address())
	require.NoError(t, err)
	assert.Equal(t, entryA.Address(), h.EntryAddress)
}

func TestRunPendingValidations_Abandons(t *testing.T) {
	c := testutil.StartInstance(t, testutil.Options("abandon")).Context()
	ctx := context.Background()

	del := ir.NewDeletion(ir.NewAppEntry("post", "never").Address())
	key := pendingKey(del, action.WorkflowRemoveEntry)
	queue(t, c, func() error { return workflow.RemoveEntry(ctx, c, del, nil) }, key)

	res, err := RunPendingValidations(ctx, c, 2)
	require.NoError(t, err)
	assert.Equal(t, PassResult{Pending: 1}, res)

	res, err = RunPendingValidations(ctx, c, 2)
	require.NoError(t, err)
	assert.Equal(t, PassResult{Abandoned: 1}, res)

	assert.Equal(t, 0, c.State().Nucleus().PendingCount())
	assert.False(t, c.State().DHT().Holds(del.Address()))
}

func TestRunPendingValidations_Empty(t *testing.T) {
	c := testutil.StartInstance(t, testutil.Options("empty")).Context()

	res, err := RunPendingValidations(context.Background(), c, 0)
	require.NoError(t, err)
	assert.Equal(t, PassResult{}, res)
}

func TestRunPendingValidations_Uninitialized(t *testing.T) {
	c := instance.NewContext(testutil.Options("bare"))
	_, err := RunPendingValidations(context.Background(), c, 0)
	assert.ErrorIs(t, err, instance.ErrStateUninitialized)
}
