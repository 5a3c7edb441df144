package chain

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/chaincore/internal/ir"
	"github.com/roach88/chaincore/internal/storage"
)

// buildChain writes entries as a linked chain and returns header addresses
// oldest first.
func buildChain(t *testing.T, cas storage.ContentAddressableStorage, entries ...ir.Entry) []ir.Address {
	t.Helper()
	ctx := context.Background()
	agent := ir.FakeAgentID("alice").Address()

	var (
		addrs    []ir.Address
		prev     ir.Address
		lastType = map[ir.EntryType]ir.Address{}
	)
	for i, e := range entries {
		h := ir.NewChainHeader(e, agent, prev, lastType[e.Type], int64(i))
		require.NoError(t, storage.AddEntry(ctx, cas, e))
		require.NoError(t, storage.AddHeader(ctx, cas, h))
		prev = h.Address()
		lastType[e.Type] = prev
		addrs = append(addrs, prev)
	}
	return addrs
}

func TestStore_IterWalksBackward(t *testing.T) {
	cas := storage.NewMemoryCAS()
	addrs := buildChain(t, cas,
		ir.NewAppEntry("post", "1"),
		ir.NewAppEntry("post", "2"),
		ir.NewAppEntry("post", "3"),
	)

	headers, err := New(cas).Headers(context.Background(), addrs[2])
	require.NoError(t, err)
	require.Len(t, headers, 3)
	assert.Equal(t, addrs[2], headers[0].Address())
	assert.Equal(t, addrs[0], headers[2].Address())
}

func TestStore_IterEmptyStart(t *testing.T) {
	headers, err := New(storage.NewMemoryCAS()).Headers(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, headers)
}

func TestStore_IterTypeFilters(t *testing.T) {
	cas := storage.NewMemoryCAS()
	addrs := buildChain(t, cas,
		ir.NewGrantEntry(ir.CapTokenGrant{ID: "g1", CapType: ir.CapabilityAssigned}),
		ir.NewAppEntry("post", "a"),
		ir.NewGrantEntry(ir.NewPublicGrant(nil)),
		ir.NewAppEntry("post", "b"),
	)

	var got []ir.Address
	for h, err := range New(cas).IterType(context.Background(), addrs[3], ir.EntryTypeCapTokenGrant) {
		require.NoError(t, err)
		got = append(got, h.Address())
	}
	assert.Equal(t, []ir.Address{addrs[2], addrs[0]}, got)
}

func TestStore_IterMissingHeader(t *testing.T) {
	var lastErr error
	for _, err := range New(storage.NewMemoryCAS()).Iter(context.Background(), "missing") {
		lastErr = err
	}
	assert.ErrorIs(t, lastErr, storage.ErrNotFound)
}

func TestStore_Entry(t *testing.T) {
	cas := storage.NewMemoryCAS()
	entry := ir.NewAppEntry("post", "x")
	addrs := buildChain(t, cas, entry)

	s := New(cas)
	h, err := s.Header(context.Background(), addrs[0])
	require.NoError(t, err)
	got, err := s.Entry(context.Background(), h)
	require.NoError(t, err)
	assert.Equal(t, entry.Address(), got.Address())
}
