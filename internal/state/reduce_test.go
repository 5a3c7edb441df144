package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/chaincore/internal/action"
	"github.com/roach88/chaincore/internal/ir"
)

func wrap(id string, a action.Action) action.Wrapper {
	return action.Wrapper{ID: id, Action: a}
}

func newTestState() *State {
	return New(ir.FakeAgentID("alice"))
}

func TestReduce_PingReturnsSameSnapshot(t *testing.T) {
	s := newTestState()
	assert.Same(t, s, Reduce(s, wrap("p", action.Ping{})))
	assert.Equal(t, int64(0), s.Seq())
}

func TestReduce_NilActionReturnsSameSnapshot(t *testing.T) {
	s := newTestState()
	assert.Same(t, s, Reduce(s, action.Wrapper{ID: "x"}))
}

func TestReduce_CommitLinksHeaders(t *testing.T) {
	s0 := newTestState()
	post := ir.NewAppEntry("post", "hello")
	grant := ir.NewGrantEntry(ir.NewPublicGrant(nil))
	post2 := ir.NewAppEntry("post", "again")

	s1 := Reduce(s0, wrap("c1", action.Commit{Entry: post, Timestamp: 1}))
	s2 := Reduce(s1, wrap("c2", action.Commit{Entry: grant, Timestamp: 2}))
	s3 := Reduce(s2, wrap("c3", action.Commit{Entry: post2, Timestamp: 3}))

	assert.Equal(t, int64(3), s3.Seq())
	assert.Equal(t, 3, s3.Agent().ChainLength())

	r1, ok := s3.Agent().CommitResponse("c1")
	require.True(t, ok)
	r2, _ := s3.Agent().CommitResponse("c2")
	r3, _ := s3.Agent().CommitResponse("c3")
	assert.Empty(t, r1.Err)
	assert.Equal(t, post.Address(), r1.EntryAddress)

	top, ok := s3.Agent().TopChainHeader()
	require.True(t, ok)
	assert.Equal(t, r3.HeaderAddress, top.Address())
	assert.Equal(t, r2.HeaderAddress, top.Link)
	assert.Equal(t, r1.HeaderAddress, top.LinkSameType)

	grantTop, ok := s3.Agent().TopHeaderOfType(ir.EntryTypeCapTokenGrant)
	require.True(t, ok)
	assert.Equal(t, r2.HeaderAddress, grantTop)
}

func TestReduce_CommitInvalidEntryRecordsError(t *testing.T) {
	s0 := newTestState()
	s1 := Reduce(s0, wrap("bad", action.Commit{Entry: ir.Entry{Type: ir.EntryTypeApp}}))

	r, ok := s1.Agent().CommitResponse("bad")
	require.True(t, ok)
	assert.NotEmpty(t, r.Err)
	assert.Equal(t, 0, s1.Agent().ChainLength())
	_, ok = s1.Agent().TopChainHeader()
	assert.False(t, ok)
}

func TestReduce_DoesNotMutatePriorSnapshot(t *testing.T) {
	s0 := newTestState()
	s1 := Reduce(s0, wrap("c1", action.Commit{Entry: ir.NewAppEntry("post", "a"), Timestamp: 1}))
	held := ir.NewAppEntry("post", "held")
	s2 := Reduce(s1, wrap("h", action.Hold{Entry: held}))
	s3 := Reduce(s2, wrap("z", action.ZomeCallStarted{CallID: "call-1"}))

	assert.Equal(t, 0, s0.Agent().ChainLength())
	assert.Equal(t, 0, s0.Agent().ResponseCount())
	assert.False(t, s1.DHT().Holds(held.Address()))
	assert.True(t, s2.DHT().Holds(held.Address()))
	assert.Empty(t, s2.Nucleus().RunningCalls())
	assert.Equal(t, []string{"call-1"}, s3.Nucleus().RunningCalls())

	// Untouched sub-states are shared.
	assert.Same(t, s1.Agent(), s2.Agent())
	assert.Same(t, s2.DHT(), s3.DHT())
}

func TestReduce_ClearActionResponse(t *testing.T) {
	s1 := Reduce(newTestState(), wrap("c1", action.Commit{Entry: ir.NewAppEntry("post", "a")}))
	s2 := Reduce(s1, wrap("x", action.ClearActionResponse{ID: "c1"}))

	_, ok := s2.Agent().CommitResponse("c1")
	assert.False(t, ok)
	assert.Equal(t, 1, s2.Agent().ChainLength())

	assert.Same(t, s2, Reduce(s2, wrap("y", action.ClearActionResponse{ID: "c1"})))
}

func TestReduce_InitializeDNA(t *testing.T) {
	s0 := newTestState()
	_, ok := s0.Nucleus().DNA()
	assert.False(t, ok)

	dna := ir.DNA{Name: "blog", Version: "1"}
	s1 := Reduce(s0, wrap("d", action.InitializeDNA{DNA: dna}))
	got, ok := s1.Nucleus().DNA()
	require.True(t, ok)
	assert.Equal(t, "blog", got.Name)
}

func TestReduce_ZomeCalls(t *testing.T) {
	s := newTestState()
	s = Reduce(s, wrap("1", action.ZomeCallStarted{CallID: "b"}))
	s = Reduce(s, wrap("2", action.ZomeCallStarted{CallID: "a"}))
	assert.Equal(t, []string{"a", "b"}, s.Nucleus().RunningCalls())

	assert.Same(t, s, Reduce(s, wrap("3", action.ZomeCallStarted{CallID: "a"})))

	s = Reduce(s, wrap("4", action.ZomeCallFinished{CallID: "a"}))
	assert.Equal(t, []string{"b"}, s.Nucleus().RunningCalls())
	assert.Same(t, s, Reduce(s, wrap("5", action.ZomeCallFinished{CallID: "a"})))
}

func TestReduce_PendingValidationLifecycle(t *testing.T) {
	p := action.PendingValidation{Address: "entry-a", Workflow: action.WorkflowHoldEntry}
	s := Reduce(newTestState(), wrap("1", action.AddPendingValidation{Pending: p}))
	require.Equal(t, 1, s.Nucleus().PendingCount())

	s = Reduce(s, wrap("2", action.PendingValidationRetried{Key: p.Key()}))
	s = Reduce(s, wrap("3", action.PendingValidationRetried{Key: p.Key()}))
	got, ok := s.Nucleus().Pending(p.Key())
	require.True(t, ok)
	assert.Equal(t, 2, got.Attempts)

	// Re-queueing keeps the attempt count.
	assert.Same(t, s, Reduce(s, wrap("4", action.AddPendingValidation{Pending: p})))

	s = Reduce(s, wrap("5", action.RemovePendingValidation{Key: p.Key()}))
	assert.Equal(t, 0, s.Nucleus().PendingCount())
	assert.Same(t, s, Reduce(s, wrap("6", action.RemovePendingValidation{Key: p.Key()})))
	assert.Same(t, s, Reduce(s, wrap("7", action.PendingValidationRetried{Key: p.Key()})))
}

func TestReduce_PendingValidationsOrdered(t *testing.T) {
	s := newTestState()
	for i, p := range []action.PendingValidation{
		{Address: "b", Workflow: action.WorkflowHoldEntry},
		{Address: "a", Workflow: action.WorkflowHoldLink},
		{Address: "a", Workflow: action.WorkflowHoldEntry},
	} {
		s = Reduce(s, wrap(string(rune('0'+i)), action.AddPendingValidation{Pending: p}))
	}

	var keys []action.PendingKey
	for _, p := range s.Nucleus().PendingValidations() {
		keys = append(keys, p.Key())
	}
	assert.Equal(t, []action.PendingKey{
		{Address: "a", Workflow: action.WorkflowHoldEntry},
		{Address: "a", Workflow: action.WorkflowHoldLink},
		{Address: "b", Workflow: action.WorkflowHoldEntry},
	}, keys)
}

func TestReduce_HoldAndRemove(t *testing.T) {
	x := ir.NewAppEntry("post", "x")
	y := ir.NewAppEntry("post", "y")

	s := Reduce(newTestState(), wrap("1", action.Hold{Entry: x}))
	s = Reduce(s, wrap("2", action.Hold{Entry: y}))
	assert.ElementsMatch(t, []ir.Address{x.Address(), y.Address()}, s.DHT().Held())
	assert.Same(t, s, Reduce(s, wrap("3", action.Hold{Entry: x})))

	s = Reduce(s, wrap("4", action.RemoveHeld{Address: x.Address()}))
	assert.Equal(t, []ir.Address{y.Address()}, s.DHT().Held())
	assert.Same(t, s, Reduce(s, wrap("5", action.RemoveHeld{Address: x.Address()})))
}

func TestReduce_FlowLifecycle(t *testing.T) {
	s0 := newTestState()
	s1 := Reduce(s0, wrap("1", action.StartFlow{Kind: action.FlowQuery, ID: "q1", Target: "addr"}))

	f, ok := s1.Network().Flow(action.FlowQuery, "q1")
	require.True(t, ok)
	assert.False(t, f.Done)
	assert.Equal(t, ir.Address("addr"), f.Target)
	assert.Empty(t, s1.Network().FlowIDs(action.FlowDirectMessage))

	s2 := Reduce(s1, wrap("2", action.ResolveFlow{Kind: action.FlowQuery, ID: "q1", Result: "found"}))
	f, _ = s2.Network().Flow(action.FlowQuery, "q1")
	assert.True(t, f.Done)
	assert.Equal(t, "found", f.Result)

	// s1 still sees the unresolved flow.
	f, _ = s1.Network().Flow(action.FlowQuery, "q1")
	assert.False(t, f.Done)

	assert.Same(t, s2, Reduce(s2, wrap("3", action.ResolveFlow{Kind: action.FlowQuery, ID: "nope"})))

	s3 := Reduce(s2, wrap("4", action.ClearFlow{Kind: action.FlowQuery, ID: "q1"}))
	_, ok = s3.Network().Flow(action.FlowQuery, "q1")
	assert.False(t, ok)
	assert.Same(t, s3, Reduce(s3, wrap("5", action.ClearFlow{Kind: action.FlowQuery, ID: "q1"})))
}

func TestFold_Deterministic(t *testing.T) {
	ws := []action.Wrapper{
		wrap("1", action.Commit{Entry: ir.NewAppEntry("post", "a"), Timestamp: 10}),
		wrap("2", action.Hold{Entry: ir.NewAppEntry("post", "h")}),
		wrap("3", action.Ping{}),
		wrap("4", action.StartFlow{Kind: action.FlowDirectMessage, ID: "m"}),
		wrap("5", action.Commit{Entry: ir.NewAppEntry("post", "b"), Timestamp: 11}),
	}

	a := Fold(newTestState(), ws)
	b := Fold(newTestState(), ws)

	assert.Equal(t, a, b)
	assert.Equal(t, int64(4), a.Seq())
}

func TestReduce_CommitFailedKeepsChainHead(t *testing.T) {
	s1 := Reduce(newTestState(), wrap("c1", action.Commit{Entry: ir.NewAppEntry("post", "a")}))
	top, _ := s1.Agent().TopChainHeader()

	entry := ir.NewAppEntry("post", "b")
	s2 := Reduce(s1, wrap("c2", action.CommitFailed{Entry: entry, Reason: "disk full"}))

	r, ok := s2.Agent().CommitResponse("c2")
	require.True(t, ok)
	assert.Equal(t, "disk full", r.Err)
	assert.Empty(t, r.HeaderAddress)
	assert.Equal(t, 1, s2.Agent().ChainLength())
	got, _ := s2.Agent().TopChainHeader()
	assert.Equal(t, top, got)

	s3 := Reduce(s2, wrap("x", action.ClearActionResponse{ID: "c2"}))
	_, ok = s3.Agent().CommitResponse("c2")
	assert.False(t, ok)
}

func TestReduce_HoldFailedIsRecordedAndCleared(t *testing.T) {
	x := ir.NewAppEntry("post", "x")

	s1 := Reduce(newTestState(), wrap("h1", action.HoldFailed{Address: x.Address(), Reason: "disk full"}))
	reason, ok := s1.DHT().HoldFailure("h1")
	require.True(t, ok)
	assert.Equal(t, "disk full", reason)
	assert.False(t, s1.DHT().Holds(x.Address()))

	s2 := Reduce(s1, wrap("x", action.ClearActionResponse{ID: "h1"}))
	_, ok = s2.DHT().HoldFailure("h1")
	assert.False(t, ok)
	assert.Equal(t, s1.Seq()+1, s2.Seq())

	_, ok = s1.DHT().HoldFailure("h1")
	assert.True(t, ok, "earlier snapshot is unchanged")
}
