package storage

import (
	"context"
	"slices"
	"sync"

	"github.com/roach88/chaincore/internal/ir"
)

// MemoryCAS is an in-memory ContentAddressableStorage.
type MemoryCAS struct {
	mu      sync.RWMutex
	content map[ir.Address]ir.Content
}

// NewMemoryCAS returns an empty store.
func NewMemoryCAS() *MemoryCAS {
	return &MemoryCAS{content: make(map[ir.Address]ir.Content)}
}

// Add implements ContentAddressableStorage.
func (m *MemoryCAS) Add(_ context.Context, c ir.Content) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.content[c.Address]; ok {
		return nil
	}
	c.Data = slices.Clone(c.Data)
	m.content[c.Address] = c
	return nil
}

// Fetch implements ContentAddressableStorage.
func (m *MemoryCAS) Fetch(_ context.Context, addr ir.Address) (ir.Content, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.content[addr]
	if !ok {
		return ir.Content{}, false, nil
	}
	c.Data = slices.Clone(c.Data)
	return c, true, nil
}

// Contains implements ContentAddressableStorage.
func (m *MemoryCAS) Contains(_ context.Context, addr ir.Address) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.content[addr]
	return ok, nil
}

// Len returns the number of stored items.
func (m *MemoryCAS) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.content)
}

type eavKey struct {
	entity    ir.Address
	attribute string
	value     ir.Address
}

// MemoryEAV is an in-memory EntityAttributeValueStorage.
type MemoryEAV struct {
	mu      sync.RWMutex
	next    int64
	triples []EAVI
	index   map[eavKey]int
}

// NewMemoryEAV returns an empty store.
func NewMemoryEAV() *MemoryEAV {
	return &MemoryEAV{index: make(map[eavKey]int)}
}

// AddEAVI implements EntityAttributeValueStorage.
func (m *MemoryEAV) AddEAVI(_ context.Context, e EAVI) (EAVI, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := eavKey{e.Entity, e.Attribute, e.Value}
	if i, ok := m.index[k]; ok {
		return m.triples[i], nil
	}
	m.next++
	e.Index = m.next
	m.index[k] = len(m.triples)
	m.triples = append(m.triples, e)
	return e, nil
}

// FetchEAVI implements EntityAttributeValueStorage. Triples are appended
// in index order, so a linear scan keeps the ordering.
func (m *MemoryEAV) FetchEAVI(_ context.Context, q EAVIQuery) ([]EAVI, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []EAVI
	for _, e := range m.triples {
		if q.Matches(e) {
			out = append(out, e)
		}
	}
	return out, nil
}
