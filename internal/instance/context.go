package instance

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/roach88/chaincore/internal/action"
	"github.com/roach88/chaincore/internal/chain"
	"github.com/roach88/chaincore/internal/config"
	"github.com/roach88/chaincore/internal/ir"
	"github.com/roach88/chaincore/internal/logging"
	"github.com/roach88/chaincore/internal/metrics"
	"github.com/roach88/chaincore/internal/state"
	"github.com/roach88/chaincore/internal/storage"
)

// DNA lookups poll state dnaRetries times, dnaRetryInterval apart, for
// InitializeDNA to be applied.
const (
	dnaRetries       = 10
	dnaRetryInterval = 10 * time.Millisecond
)

// Options configures a Context.
type Options struct {
	Name             string
	Agent            ir.AgentID
	Storage          *storage.Set
	Network          config.NetworkConfig
	StateDumpLogging bool
	Logger           *slog.Logger
	Metrics          metrics.Metrics
	IDs              action.IDGenerator
	Clock            Clock
}

// Context is the runtime handle shared by everything that reads state or
// submits actions. There is exactly one per running instance.
//
// Thread-safety model:
//   - State(), Dispatch(), CreateObserver(): safe from any goroutine
//   - the state slot is written only by the owning Instance's Run loop
type Context struct {
	name    string
	agent   ir.AgentID
	alive   atomic.Bool
	stores  *storage.Set
	chain   *chain.Store
	network config.NetworkConfig

	stateDumpLogging bool
	logger           *slog.Logger
	metrics          metrics.Metrics
	ids              action.IDGenerator
	clock            Clock

	// Wired by Instance. A Context built with NewContext alone has neither
	// and reports InitializationFailed on use.
	queue     *actionQueue
	observers *observerRegistry

	current atomic.Pointer[state.State]
}

// NewContext builds a Context with no dispatch loop attached. Missing
// options get in-memory storage, the default slog logger, no-op metrics,
// UUIDv7 ids and the system clock.
func NewContext(opts Options) *Context {
	if opts.Storage == nil {
		opts.Storage = storage.NewMemorySet()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewNopMetrics()
	}
	if opts.IDs == nil {
		opts.IDs = action.UUIDv7Generator{}
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock{}
	}
	if opts.Network.Backend == "" {
		opts.Network.Backend = config.NetworkBackendMemory
	}
	if opts.Network.Name == "" {
		opts.Network.Name = config.UniqueNetworkName()
	}

	c := &Context{
		name:             opts.Name,
		agent:            opts.Agent,
		stores:           opts.Storage,
		chain:            chain.New(opts.Storage.Chain),
		network:          opts.Network,
		stateDumpLogging: opts.StateDumpLogging,
		logger:           opts.Logger.With(logging.Instance(opts.Name)),
		metrics:          opts.Metrics,
		ids:              opts.IDs,
		clock:            opts.Clock,
	}
	c.alive.Store(true)
	return c
}

// Name returns the instance name.
func (c *Context) Name() string { return c.name }

// Agent returns the identity running the instance.
func (c *Context) Agent() ir.AgentID { return c.agent }

// Logger returns a logger tagged with the instance name.
func (c *Context) Logger() *slog.Logger { return c.logger }

// Metrics returns the metrics sink.
func (c *Context) Metrics() metrics.Metrics { return c.metrics }

// Network returns the opaque network configuration.
func (c *Context) Network() config.NetworkConfig { return c.network }

// ChainStorage returns the source chain CAS.
func (c *Context) ChainStorage() storage.ContentAddressableStorage { return c.stores.Chain }

// DHTStorage returns the DHT shard CAS.
func (c *Context) DHTStorage() storage.ContentAddressableStorage { return c.stores.DHT }

// EAVStorage returns the attribute-value index.
func (c *Context) EAVStorage() storage.EntityAttributeValueStorage { return c.stores.EAV }

// Chain returns the chain walker over ChainStorage.
func (c *Context) Chain() *chain.Store { return c.chain }

// StateDumpLogging reports whether maintenance ticks log a state dump.
func (c *Context) StateDumpLogging() bool { return c.stateDumpLogging }

// Now returns a timestamp for a new commit.
func (c *Context) Now() int64 { return c.clock.Now() }

// IsAlive reports whether the instance has not been torn down.
func (c *Context) IsAlive() bool { return c.alive.Load() }

// State returns the current snapshot, or nil before the instance starts.
func (c *Context) State() *state.State { return c.current.Load() }

// Dispatch wraps a and enqueues it. Never blocks.
func (c *Context) Dispatch(a action.Action) (action.Wrapper, error) {
	w := action.Wrap(c.ids, a)
	return w, c.DispatchWrapper(w)
}

// DispatchWrapper enqueues a prepared wrapper. Never blocks.
func (c *Context) DispatchWrapper(w action.Wrapper) error {
	if w.Action == nil {
		return fmt.Errorf("dispatch %s: nil action", w.ID)
	}
	if c.queue == nil {
		c.metrics.IncActionsRejected("uninitialized")
		return c.actionChannelError("dispatch " + w.Action.Type())
	}
	if !c.queue.Enqueue(w) {
		c.metrics.IncActionsRejected("closed")
		return c.actionChannelError("dispatch " + w.Action.Type())
	}
	return nil
}

// IsActionChannelOpen reports whether Dispatch would currently succeed.
//
// It checks the queue without enqueuing a Ping. The queue is
// unbounded, so an open queue always accepts, and a real Ping would tick
// every observer and wake every waiting BlockOn once more per call.
func (c *Context) IsActionChannelOpen() bool {
	return c.queue != nil && c.queue.IsOpen()
}

// actionChannelError returns nil while the channel accepts actions, an
// InitializationFailed error when it was never wired, and a Lifecycle
// error once it has been closed.
func (c *Context) actionChannelError(msg string) error {
	switch {
	case c.queue == nil:
		return &RuntimeError{Code: ErrCodeInitializationFailed, Message: msg + ": action channel not initialized", Instance: c.name}
	case !c.queue.IsOpen():
		return &RuntimeError{Code: ErrCodeLifecycle, Message: msg + ": action channel closed", Instance: c.name}
	}
	return nil
}

// CreateObserver registers an observer that receives one tick for every
// action applied from now on. Close it when done.
func (c *Context) CreateObserver() (*Observer, error) {
	if c.observers == nil {
		return nil, &RuntimeError{Code: ErrCodeInitializationFailed, Message: "observer channel not initialized", Instance: c.name}
	}
	o := c.observers.register()
	c.metrics.SetObservers(c.observers.len())
	return o, nil
}

// GetDNA returns the loaded application definition.
//
// A workflow started right after InitializeDNA is dispatched can run
// before the loop applies it, so GetDNA polls briefly before giving up
// with ErrDNANotLoaded.
func (c *Context) GetDNA() (ir.DNA, error) {
	return pollDNA(func() (ir.DNA, bool) {
		if s := c.State(); s != nil {
			return s.Nucleus().DNA()
		}
		return ir.DNA{}, false
	}, time.Sleep)
}

// pollDNA calls lookup up to dnaRetries times, sleeping between calls.
func pollDNA(lookup func() (ir.DNA, bool), sleep func(time.Duration)) (ir.DNA, error) {
	for try := 1; ; try++ {
		if dna, ok := lookup(); ok {
			return dna, nil
		}
		if try >= dnaRetries {
			return ir.DNA{}, ErrDNANotLoaded
		}
		sleep(dnaRetryInterval)
	}
}

// GetWasm returns the code of zome. Zomes without code count as absent.
func (c *Context) GetWasm(zome string) ([]byte, error) {
	dna, err := c.GetDNA()
	if err != nil {
		return nil, err
	}
	code, ok := dna.Wasm(zome)
	if !ok {
		return nil, fmt.Errorf("zome %q has no code", zome)
	}
	return code, nil
}

// GetDNAAndAgent returns the DNA address and the agent's public signing
// key, as the network layer needs them to join.
func (c *Context) GetDNAAndAgent() (ir.Address, string, error) {
	s := c.State()
	if s == nil {
		return "", "", ErrStateUninitialized
	}
	dna, ok := s.Nucleus().DNA()
	if !ok {
		return "", "", ErrDNANotLoaded
	}
	return dna.Address(), s.Agent().AgentID().PubSignKey, nil
}

// GetPublicToken walks the chain backward from the top header over
// capability grant entries and returns the entry address of the first
// public grant carrying the reserved public id.
func (c *Context) GetPublicToken(ctx context.Context) (ir.Address, error) {
	s := c.State()
	if s == nil {
		return "", ErrStateUninitialized
	}
	top, ok := s.Agent().TopChainHeader()
	if !ok {
		return "", ErrNoTopHeader
	}

	for h, err := range c.chain.IterType(ctx, top.Address(), ir.EntryTypeCapTokenGrant) {
		if err != nil {
			return "", fmt.Errorf("get public token: %w", err)
		}
		entry, err := c.chain.Entry(ctx, h)
		if err != nil {
			return "", fmt.Errorf("get public token: %w", err)
		}
		if entry.Grant != nil && entry.Grant.IsReservedPublic() {
			return h.EntryAddress, nil
		}
	}
	return "", ErrNoPublicToken
}
