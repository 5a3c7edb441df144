package workflow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/chaincore/internal/action"
	"github.com/roach88/chaincore/internal/ir"
)

func TestCallZome_TracksRunningCall(t *testing.T) {
	c := startInstance(t)
	_, err := c.Dispatch(action.InitializeDNA{DNA: ir.DNA{Name: "blog", Zomes: map[string]ir.Zome{
		"posts": {Code: []byte("wasm"), Functions: []string{"create"}},
	}}})
	require.NoError(t, err)

	err = CallZome(c, "call-1", "posts", func(code []byte) error {
		assert.Equal(t, []byte("wasm"), code)
		assert.Eventually(t, func() bool {
			return len(c.State().Nucleus().RunningCalls()) == 1
		}, time.Second, time.Millisecond)
		return nil
	})
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return len(c.State().Nucleus().RunningCalls()) == 0
	}, time.Second, time.Millisecond)
}

func TestCallZome_UnknownZome(t *testing.T) {
	c := startInstance(t)
	_, err := c.Dispatch(action.InitializeDNA{DNA: ir.DNA{Name: "blog"}})
	require.NoError(t, err)

	called := false
	err = CallZome(c, "call-1", "missing", func([]byte) error {
		called = true
		return nil
	})
	assert.Error(t, err)
	assert.False(t, called)
}
