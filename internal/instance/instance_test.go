package instance

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/chaincore/internal/action"
	"github.com/roach88/chaincore/internal/ir"
	"github.com/roach88/chaincore/internal/state"
	"github.com/roach88/chaincore/internal/storage"
)

func TestInstance_New(t *testing.T) {
	inst := New(testOptions())
	c := inst.Context()

	require.NotNil(t, c.State())
	assert.Equal(t, int64(0), c.State().Seq())
	assert.True(t, c.IsAlive())
	assert.True(t, c.IsActionChannelOpen())
	assert.Equal(t, "alice", c.Agent().Nick)
	assert.NotEmpty(t, c.Network().Name)
}

func TestInstance_DeterministicSingleProducer(t *testing.T) {
	inst := startInstance(t)
	c := inst.Context()

	var ws []action.Wrapper
	for i := range 20 {
		var a action.Action
		switch i % 4 {
		case 0:
			a = action.Commit{Entry: ir.NewAppEntry("post", fmt.Sprint(i)), Timestamp: int64(i)}
		case 1:
			a = action.Hold{Entry: ir.NewAppEntry("post", fmt.Sprint(i))}
		case 2:
			a = action.Ping{}
		case 3:
			a = action.StartFlow{Kind: action.FlowQuery, ID: fmt.Sprint(i)}
		}
		ws = append(ws, action.Wrapper{ID: fmt.Sprintf("w-%d", i), Action: a})
	}

	obs, err := c.CreateObserver()
	require.NoError(t, err)
	for _, w := range ws {
		require.NoError(t, c.DispatchWrapper(w))
	}
	require.Eventually(t, func() bool { return obs.Pending() >= len(ws) }, time.Second, time.Millisecond)

	want := state.Fold(state.New(c.Agent()), ws)
	assert.Equal(t, want, c.State())
}

func TestInstance_DeterministicConcurrentProducers(t *testing.T) {
	inst := startInstance(t)
	c := inst.Context()

	const producers, perProducer = 4, 25
	byID := map[string]action.Wrapper{}
	var mu sync.Mutex

	obs, err := c.CreateObserver()
	require.NoError(t, err)

	var wg sync.WaitGroup
	for p := range producers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range perProducer {
				w := action.Wrapper{
					ID:     fmt.Sprintf("p%d-%d", p, i),
					Action: action.Commit{Entry: ir.NewAppEntry("post", fmt.Sprintf("%d/%d", p, i)), Timestamp: int64(i)},
				}
				mu.Lock()
				byID[w.ID] = w
				mu.Unlock()
				assert.NoError(t, c.DispatchWrapper(w))
			}
		}()
	}
	wg.Wait()
	total := producers * perProducer
	require.Eventually(t, func() bool { return obs.Pending() >= total }, 2*time.Second, time.Millisecond)

	// Recover the applied order from the chain, then fold it directly.
	live := c.State()
	headerToWrapper := map[ir.Address]action.Wrapper{}
	for id, w := range byID {
		r, ok := live.Agent().CommitResponse(id)
		require.True(t, ok)
		headerToWrapper[r.HeaderAddress] = w
	}
	top, ok := live.Agent().TopChainHeader()
	require.True(t, ok)
	headers, err := c.Chain().Headers(context.Background(), top.Address())
	require.NoError(t, err)
	require.Len(t, headers, total)

	var ordered []action.Wrapper
	for _, h := range slices.Backward(headers) {
		ordered = append(ordered, headerToWrapper[h.Address()])
	}
	assert.Equal(t, state.Fold(state.New(c.Agent()), ordered), live)
}

func TestInstance_SnapshotAtomicity(t *testing.T) {
	inst := startInstance(t)
	c := inst.Context()

	const n = 200
	stop := make(chan struct{})
	var (
		mu         sync.Mutex
		violations []string
		readers    sync.WaitGroup
	)
	for range 3 {
		readers.Add(1)
		go func() {
			defer readers.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				s := c.State()
				// Every Commit adds one chain entry and one response together.
				if s.Agent().ChainLength() != s.Agent().ResponseCount() || int64(s.Agent().ChainLength()) != s.Seq() {
					mu.Lock()
					violations = append(violations, fmt.Sprintf("seq=%d len=%d responses=%d",
						s.Seq(), s.Agent().ChainLength(), s.Agent().ResponseCount()))
					mu.Unlock()
				}
			}
		}()
	}

	obs, err := c.CreateObserver()
	require.NoError(t, err)
	for i := range n {
		_, err := c.Dispatch(action.Commit{Entry: ir.NewAppEntry("post", fmt.Sprint(i)), Timestamp: int64(i)})
		require.NoError(t, err)
	}
	require.Eventually(t, func() bool { return obs.Pending() >= n }, 2*time.Second, time.Millisecond)
	close(stop)
	readers.Wait()

	assert.Empty(t, violations)
	assert.Equal(t, int64(n), c.State().Seq())
}

func TestInstance_TickLiveness(t *testing.T) {
	inst := startInstance(t)
	c := inst.Context()

	a, err := c.CreateObserver()
	require.NoError(t, err)
	b, err := c.CreateObserver()
	require.NoError(t, err)

	const n = 50
	for range n {
		_, err := c.Dispatch(action.Ping{})
		require.NoError(t, err)
	}

	require.Eventually(t, func() bool { return a.Pending() >= n }, time.Second, time.Millisecond)
	require.Eventually(t, func() bool { return b.Pending() >= n }, time.Second, time.Millisecond)
	assert.Equal(t, int64(0), c.State().Seq(), "pings never change state")
}

func TestInstance_ObserverRegisteredLateMissesEarlierTicks(t *testing.T) {
	inst := startInstance(t)
	c := inst.Context()

	dispatchAndWait(t, c, action.Ping{})

	late, err := c.CreateObserver()
	require.NoError(t, err)
	assert.Equal(t, 0, late.Pending())

	dispatchAndWait(t, c, action.Ping{})
	assert.Equal(t, 1, late.Pending())
}

func TestInstance_ClosedObserverDropped(t *testing.T) {
	inst := startInstance(t)
	c := inst.Context()

	obs, err := c.CreateObserver()
	require.NoError(t, err)
	obs.Close()
	keep, err := c.CreateObserver()
	require.NoError(t, err)

	_, err = c.Dispatch(action.Ping{})
	require.NoError(t, err)
	require.True(t, keep.Next(time.Second))

	assert.Equal(t, 0, obs.Pending())
	assert.Equal(t, 1, c.observers.len())
}

func TestInstance_DispatchAfterStop(t *testing.T) {
	inst := startInstance(t)
	c := inst.Context()

	inst.Stop()
	select {
	case <-inst.Done():
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Stop")
	}
	require.NoError(t, inst.Err())

	_, err := c.Dispatch(action.Ping{})
	require.Error(t, err)
	assert.True(t, IsLifecycleError(err))
	assert.False(t, c.IsAlive())
	assert.False(t, c.IsActionChannelOpen())
}

func TestInstance_ContextCancelStops(t *testing.T) {
	inst := New(testOptions())
	ctx, cancel := context.WithCancel(context.Background())
	inst.Start(ctx)
	cancel()

	select {
	case <-inst.Done():
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.ErrorIs(t, inst.Err(), context.Canceled)
	assert.False(t, inst.Context().IsAlive())
}

func TestInstance_RunTwice(t *testing.T) {
	inst := startInstance(t)
	require.Eventually(t, func() bool { return inst.started.Load() }, time.Second, time.Millisecond)
	assert.Error(t, inst.Run(context.Background()))
}

func TestInstance_CommitPersistsToChainStorage(t *testing.T) {
	inst := startInstance(t)
	c := inst.Context()
	ctx := context.Background()

	entry := ir.NewAppEntry("post", "persisted")
	addr := commit(t, c, entry)

	ok, err := c.ChainStorage().Contains(ctx, addr)
	require.NoError(t, err)
	assert.True(t, ok)

	top, _ := c.State().Agent().TopChainHeader()
	got, err := storage.FetchHeader(ctx, c.ChainStorage(), top.Address())
	require.NoError(t, err)
	assert.Equal(t, addr, got.EntryAddress)
}

func TestInstance_InvalidCommitPersistsNothing(t *testing.T) {
	inst := startInstance(t)
	c := inst.Context()

	w := dispatchAndWait(t, c, action.Commit{Entry: ir.Entry{Type: ir.EntryTypeApp}})
	r, ok := c.State().Agent().CommitResponse(w.ID)
	require.True(t, ok)
	assert.NotEmpty(t, r.Err)
	assert.Equal(t, 0, c.State().Agent().ChainLength())
}

func TestInstance_HoldPersistsAndIndexes(t *testing.T) {
	inst := startInstance(t)
	c := inst.Context()
	ctx := context.Background()

	base := ir.NewAppEntry("post", "base")
	target := ir.NewAppEntry("comment", "target")
	link := ir.NewLinkAdd(base.Address(), target.Address(), "comments", "")
	update := ir.NewUpdateEntry("post", "base v2", base.Address())

	for _, e := range []ir.Entry{base, target, link, update} {
		dispatchAndWait(t, c, action.Hold{Entry: e})
		ok, err := c.DHTStorage().Contains(ctx, e.Address())
		require.NoError(t, err)
		assert.True(t, ok)
		assert.True(t, c.State().DHT().Holds(e.Address()))
	}

	links, err := c.EAVStorage().FetchEAVI(ctx, storage.EAVIQuery{Entity: base.Address(), Attribute: storage.LinkAttribute("comments")})
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, target.Address(), links[0].Value)

	crud, err := c.EAVStorage().FetchEAVI(ctx, storage.EAVIQuery{Entity: base.Address(), Attribute: storage.AttrCRUDLink})
	require.NoError(t, err)
	require.Len(t, crud, 1)
	assert.Equal(t, update.Address(), crud[0].Value)
}

// panicCAS panics on Add, standing in for a broken storage backend.
type panicCAS struct {
	storage.ContentAddressableStorage
}

func (panicCAS) Add(context.Context, ir.Content) error { panic("disk on fire") }

func TestInstance_PanicDuringApplyStopsLoop(t *testing.T) {
	opts := testOptions()
	opts.Storage = &storage.Set{
		Chain: panicCAS{storage.NewMemoryCAS()},
		DHT:   storage.NewMemoryCAS(),
		EAV:   storage.NewMemoryEAV(),
	}
	inst := New(opts)
	c := inst.Context()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	inst.Start(ctx)

	aborted := make(chan *FatalError, 1)
	go func() {
		defer func() {
			fe, _ := AsFatal(recover())
			aborted <- fe
		}()
		WaitFor(c, func(s *state.State) (struct{}, bool) {
			return struct{}{}, s.Agent().ChainLength() > 0
		})
	}()

	_, err := c.Dispatch(action.Commit{Entry: ir.NewAppEntry("post", "x"), Timestamp: 1})
	require.NoError(t, err)

	select {
	case <-inst.Done():
	case <-time.After(time.Second):
		t.Fatal("Run did not return after panic")
	}
	require.Error(t, inst.Err())
	assert.Contains(t, inst.Err().Error(), "disk on fire")
	assert.False(t, c.IsAlive())
	assert.Equal(t, int64(0), c.State().Seq(), "snapshot must not be published")

	select {
	case fe := <-aborted:
		require.NotNil(t, fe)
		assert.Equal(t, "test", fe.Instance)
	case <-time.After(time.Second):
		t.Fatal("waiter did not abort")
	}
}

// failingCAS rejects every write.
type failingCAS struct {
	storage.ContentAddressableStorage
}

func (failingCAS) Add(context.Context, ir.Content) error { return errors.New("disk full") }

func TestInstance_PersistFailureIsNotPublished(t *testing.T) {
	opts := testOptions()
	opts.Storage = &storage.Set{
		Chain: failingCAS{storage.NewMemoryCAS()},
		DHT:   failingCAS{storage.NewMemoryCAS()},
		EAV:   storage.NewMemoryEAV(),
	}
	inst := New(opts)
	ctx, cancel := context.WithCancel(context.Background())
	inst.Start(ctx)
	t.Cleanup(func() {
		cancel()
		<-inst.Done()
	})
	c := inst.Context()

	entry := ir.NewAppEntry("post", "x")
	w := dispatchAndWait(t, c, action.Commit{Entry: entry, Timestamp: 1})
	r, ok := c.State().Agent().CommitResponse(w.ID)
	require.True(t, ok)
	assert.Contains(t, r.Err, "disk full")
	assert.Equal(t, 0, c.State().Agent().ChainLength())
	_, err := c.GetPublicToken(context.Background())
	assert.ErrorIs(t, err, ErrNoTopHeader)

	w = dispatchAndWait(t, c, action.Hold{Entry: entry})
	reason, failed := c.State().DHT().HoldFailure(w.ID)
	require.True(t, failed)
	assert.Contains(t, reason, "disk full")
	assert.False(t, c.State().DHT().Holds(entry.Address()))

	assert.True(t, c.IsAlive(), "a storage failure does not stop the loop")
}
