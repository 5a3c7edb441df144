package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/chaincore/internal/ir"
)

// ErrNotFound is returned by the typed fetch helpers when an address is absent.
var ErrNotFound = errors.New("content not found")

// ContentAddressableStorage stores immutable content keyed by its address.
type ContentAddressableStorage interface {
	// Add stores c. Adding content that is already present is a no-op.
	Add(ctx context.Context, c ir.Content) error
	// Fetch returns the content at addr. The bool is false when absent.
	Fetch(ctx context.Context, addr ir.Address) (ir.Content, bool, error)
	// Contains reports whether addr is stored.
	Contains(ctx context.Context, addr ir.Address) (bool, error)
}

// EAVI is one (entity, attribute, value) relation with its insertion index.
type EAVI struct {
	Entity    ir.Address
	Attribute string
	Value     ir.Address
	Index     int64
}

// EAVIQuery filters triples. Empty fields match anything.
type EAVIQuery struct {
	Entity    ir.Address
	Attribute string
	Value     ir.Address
}

// Matches reports whether e satisfies q.
func (q EAVIQuery) Matches(e EAVI) bool {
	return (q.Entity == "" || q.Entity == e.Entity) &&
		(q.Attribute == "" || q.Attribute == e.Attribute) &&
		(q.Value == "" || q.Value == e.Value)
}

// EntityAttributeValueStorage stores relations used to index entries.
type EntityAttributeValueStorage interface {
	// AddEAVI stores the triple. Index is assigned by the store and the
	// stored value is returned. Re-adding an existing triple returns the
	// original record.
	AddEAVI(ctx context.Context, e EAVI) (EAVI, error)
	// FetchEAVI returns matching triples ordered by index.
	FetchEAVI(ctx context.Context, q EAVIQuery) ([]EAVI, error)
}

// Namespaces separating chain and DHT content within one backend.
const (
	NamespaceChain = "chain"
	NamespaceDHT   = "dht"
)

// Backend names accepted by Open.
const (
	BackendMemory  = "memory"
	BackendSQLite  = "sqlite"
	BackendLevelDB = "leveldb"
)

// Set bundles the stores one instance needs.
type Set struct {
	Chain ContentAddressableStorage
	DHT   ContentAddressableStorage
	EAV   EntityAttributeValueStorage

	closer func() error
}

// Close releases the underlying backend.
func (s *Set) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer()
}

// NewMemorySet returns a Set backed by fresh in-memory stores.
func NewMemorySet() *Set {
	return &Set{
		Chain: NewMemoryCAS(),
		DHT:   NewMemoryCAS(),
		EAV:   NewMemoryEAV(),
	}
}

// Open builds a Set for the named backend. path is ignored for memory.
func Open(backend, path string) (*Set, error) {
	switch backend {
	case "", BackendMemory:
		return NewMemorySet(), nil

	case BackendSQLite:
		db, err := OpenSQLite(path)
		if err != nil {
			return nil, err
		}
		return &Set{
			Chain:  db.CAS(NamespaceChain),
			DHT:    db.CAS(NamespaceDHT),
			EAV:    db.EAV(),
			closer: db.Close,
		}, nil

	case BackendLevelDB:
		db, err := OpenLevelDB(path)
		if err != nil {
			return nil, err
		}
		return &Set{
			Chain:  db.CAS(NamespaceChain),
			DHT:    db.CAS(NamespaceDHT),
			EAV:    db.EAV(),
			closer: db.Close,
		}, nil

	default:
		return nil, fmt.Errorf("unknown storage backend %q", backend)
	}
}

// AddEntry stores entry's content.
func AddEntry(ctx context.Context, cas ContentAddressableStorage, entry ir.Entry) error {
	c, err := entry.Content()
	if err != nil {
		return fmt.Errorf("encode entry: %w", err)
	}
	return cas.Add(ctx, c)
}

// AddHeader stores header's content.
func AddHeader(ctx context.Context, cas ContentAddressableStorage, header ir.ChainHeader) error {
	c, err := header.Content()
	if err != nil {
		return fmt.Errorf("encode header: %w", err)
	}
	return cas.Add(ctx, c)
}

// FetchEntry fetches and decodes the entry at addr.
// Returns ErrNotFound when addr is absent.
func FetchEntry(ctx context.Context, cas ContentAddressableStorage, addr ir.Address) (ir.Entry, error) {
	c, ok, err := cas.Fetch(ctx, addr)
	if err != nil {
		return ir.Entry{}, fmt.Errorf("fetch entry %s: %w", addr.Short(), err)
	}
	if !ok {
		return ir.Entry{}, fmt.Errorf("entry %s: %w", addr.Short(), ErrNotFound)
	}
	return ir.DecodeEntry(c)
}

// FetchHeader fetches and decodes the chain header at addr.
// Returns ErrNotFound when addr is absent.
func FetchHeader(ctx context.Context, cas ContentAddressableStorage, addr ir.Address) (ir.ChainHeader, error) {
	c, ok, err := cas.Fetch(ctx, addr)
	if err != nil {
		return ir.ChainHeader{}, fmt.Errorf("fetch header %s: %w", addr.Short(), err)
	}
	if !ok {
		return ir.ChainHeader{}, fmt.Errorf("header %s: %w", addr.Short(), ErrNotFound)
	}
	return ir.DecodeHeader(c)
}

// EAV attributes written when content is held.
const (
	// AttrCRUDLink points from an updated or deleted entry to the entry
	// that replaced or deleted it.
	AttrCRUDLink = "crud_link"
)

// LinkAttribute is the attribute under which links of linkType are indexed
// on their base.
func LinkAttribute(linkType string) string {
	return "link__" + linkType
}

// RemovedLinkAttribute indexes link removals of linkType on their base.
func RemovedLinkAttribute(linkType string) string {
	return "removed_link__" + linkType
}
