// Package testutil provides shared fixtures for tests that drive a running
// instance from outside the instance package.
package testutil

import (
	"context"
	"testing"

	"github.com/roach88/chaincore/internal/action"
	"github.com/roach88/chaincore/internal/instance"
	"github.com/roach88/chaincore/internal/ir"
	"github.com/roach88/chaincore/internal/logging"
)

// Options returns deterministic instance options: agent "alice", fixed
// action ids, a DeterministicClock, in-memory storage and a silent logger.
func Options(name string) instance.Options {
	return instance.Options{
		Name:   name,
		Agent:  ir.FakeAgentID("alice"),
		Logger: logging.Nop(),
		IDs:    action.NewFixedGenerator(name),
		Clock:  NewDeterministicClock(),
	}
}

// StartInstance runs an instance built from opts until the test ends and
// returns it.
func StartInstance(t testing.TB, opts instance.Options) *instance.Instance {
	t.Helper()
	inst := instance.New(opts)
	ctx, cancel := context.WithCancel(context.Background())
	inst.Start(ctx)
	t.Cleanup(func() {
		cancel()
		<-inst.Done()
	})
	return inst
}
