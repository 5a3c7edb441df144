package workflow

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/chaincore/internal/instance"
	"github.com/roach88/chaincore/internal/ir"
	"github.com/roach88/chaincore/internal/testutil"
)

func startInstance(t *testing.T) *instance.Context {
	t.Helper()
	return testutil.StartInstance(t, testutil.Options("wf")).Context()
}

func mustTop(t *testing.T, c *instance.Context) ir.Address {
	t.Helper()
	top, ok := c.State().Agent().TopChainHeader()
	require.True(t, ok, "chain is empty")
	return top.Address()
}
