package ir

import (
	"encoding/json"
	"fmt"
	"slices"
)

// Provenance records who authored a header.
// Signing is done by the keystore collaborator; Signature is opaque here.
type Provenance struct {
	Source    Address `json:"source"`
	Signature string  `json:"signature"`
}

// ChainHeader links an entry into the source chain.
//
// Link points at the previous header of the chain, LinkSameType at the
// previous header carrying the same entry type. Both are empty for the
// first header of their kind.
type ChainHeader struct {
	EntryType    EntryType    `json:"entry_type"`
	EntryAddress Address      `json:"entry_address"`
	Provenances  []Provenance `json:"provenances"`
	Link         Address      `json:"link,omitempty"`
	LinkSameType Address      `json:"link_same_type,omitempty"`
	Timestamp    int64        `json:"timestamp"`
}

// NewChainHeader builds the header for entry authored by source.
func NewChainHeader(entry Entry, source Address, link, linkSameType Address, timestamp int64) ChainHeader {
	return ChainHeader{
		EntryType:    entry.Type,
		EntryAddress: entry.Address(),
		Provenances:  []Provenance{{Source: source}},
		Link:         link,
		LinkSameType: linkSameType,
		Timestamp:    timestamp,
	}
}

// Clone returns a copy of h that shares no memory with it.
func (h ChainHeader) Clone() ChainHeader {
	h.Provenances = slices.Clone(h.Provenances)
	return h
}

func (h ChainHeader) canonical() map[string]any {
	provs := make([]any, len(h.Provenances))
	for i, p := range h.Provenances {
		provs[i] = map[string]any{"source": p.Source, "signature": p.Signature}
	}
	obj := map[string]any{
		"entry_type":    string(h.EntryType),
		"entry_address": h.EntryAddress,
		"provenances":   provs,
		"timestamp":     h.Timestamp,
	}
	if h.Link != "" {
		obj["link"] = h.Link
	}
	if h.LinkSameType != "" {
		obj["link_same_type"] = h.LinkSameType
	}
	return obj
}

// Address returns the content address of the header.
func (h ChainHeader) Address() Address {
	return mustAddress(DomainHeader, h.canonical())
}

// Content returns the storable form of the header.
func (h ChainHeader) Content() (Content, error) {
	data, err := json.Marshal(h)
	if err != nil {
		return Content{}, fmt.Errorf("marshal header: %w", err)
	}
	return Content{Address: h.Address(), Type: ContentTypeHeader, Data: data}, nil
}

// DecodeHeader parses stored content back into a ChainHeader.
func DecodeHeader(c Content) (ChainHeader, error) {
	if c.Type != ContentTypeHeader {
		return ChainHeader{}, fmt.Errorf("content %s has type %q, not a header", c.Address.Short(), c.Type)
	}
	var h ChainHeader
	if err := json.Unmarshal(c.Data, &h); err != nil {
		return ChainHeader{}, fmt.Errorf("decode header %s: %w", c.Address.Short(), err)
	}
	return h, nil
}
