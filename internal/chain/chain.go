// Package chain reads the source chain out of content-addressable storage.
//
// Headers are written by the dispatch loop; this package only walks them.
// A walk starts at a header address (normally the top header from state)
// and follows Link backward to the first header of the chain.
package chain

import (
	"context"
	"fmt"
	"iter"

	"github.com/roach88/chaincore/internal/ir"
	"github.com/roach88/chaincore/internal/storage"
)

// Store is a read accessor over the chain storage.
type Store struct {
	cas storage.ContentAddressableStorage
}

// New returns a Store reading from cas.
func New(cas storage.ContentAddressableStorage) *Store {
	return &Store{cas: cas}
}

// Header fetches one header.
func (s *Store) Header(ctx context.Context, addr ir.Address) (ir.ChainHeader, error) {
	return storage.FetchHeader(ctx, s.cas, addr)
}

// Entry fetches the entry a header points at.
func (s *Store) Entry(ctx context.Context, h ir.ChainHeader) (ir.Entry, error) {
	return storage.FetchEntry(ctx, s.cas, h.EntryAddress)
}

// Iter yields headers from start back to the first header of the chain.
// An empty start yields nothing. Iteration stops after the first error.
func (s *Store) Iter(ctx context.Context, start ir.Address) iter.Seq2[ir.ChainHeader, error] {
	return s.walk(ctx, start, func(h ir.ChainHeader) ir.Address { return h.Link })
}

// IterType yields only headers whose entry type is t, newest first.
//
// It walks Link until it meets a header of type t and from there follows
// LinkSameType, so headers of other types are skipped without being fetched.
func (s *Store) IterType(ctx context.Context, start ir.Address, t ir.EntryType) iter.Seq2[ir.ChainHeader, error] {
	return func(yield func(ir.ChainHeader, error) bool) {
		sameType := false
		next := func(h ir.ChainHeader) ir.Address {
			if h.EntryType == t {
				sameType = true
				return h.LinkSameType
			}
			return h.Link
		}
		for h, err := range s.walk(ctx, start, next) {
			if err != nil {
				yield(ir.ChainHeader{}, err)
				return
			}
			if h.EntryType != t {
				if sameType {
					yield(ir.ChainHeader{}, fmt.Errorf("header %s: same-type link reached %s entry", h.Address().Short(), h.EntryType))
					return
				}
				continue
			}
			if !yield(h, nil) {
				return
			}
		}
	}
}

// Headers collects Iter into a slice, newest first.
func (s *Store) Headers(ctx context.Context, start ir.Address) ([]ir.ChainHeader, error) {
	var out []ir.ChainHeader
	for h, err := range s.Iter(ctx, start) {
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, nil
}

func (s *Store) walk(ctx context.Context, start ir.Address, next func(ir.ChainHeader) ir.Address) iter.Seq2[ir.ChainHeader, error] {
	return func(yield func(ir.ChainHeader, error) bool) {
		for addr := start; addr != ""; {
			if err := ctx.Err(); err != nil {
				yield(ir.ChainHeader{}, err)
				return
			}
			h, err := s.Header(ctx, addr)
			if err != nil {
				yield(ir.ChainHeader{}, fmt.Errorf("walk chain: %w", err))
				return
			}
			if !yield(h, nil) {
				return
			}
			addr = next(h)
		}
	}
}
