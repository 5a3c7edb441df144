package ir

import (
	"encoding/json"
	"fmt"
	"slices"
)

// EntryType tags the variant carried by an Entry.
type EntryType string

const (
	EntryTypeApp           EntryType = "app"
	EntryTypeLinkAdd       EntryType = "link_add"
	EntryTypeLinkRemove    EntryType = "link_remove"
	EntryTypeDeletion      EntryType = "deletion"
	EntryTypeCapTokenGrant EntryType = "cap_token_grant"
	EntryTypeAgentID       EntryType = "agent_id"
	EntryTypeDNA           EntryType = "dna"
)

// ContentTypeHeader is the storage content type of chain headers.
// Entries are stored under their EntryType.
const ContentTypeHeader = "header"

// Entry is a tagged union. Exactly one payload pointer matching Type is set.
type Entry struct {
	Type     EntryType      `json:"type"`
	App      *AppEntry      `json:"app,omitempty"`
	Link     *LinkData      `json:"link,omitempty"`
	Deletion *Deletion      `json:"deletion,omitempty"`
	Grant    *CapTokenGrant `json:"grant,omitempty"`
	Agent    *AgentID       `json:"agent,omitempty"`
	DNA      *DNAEntry      `json:"dna,omitempty"`
}

// AppEntry is application-defined content. Value is opaque to the runtime.
type AppEntry struct {
	AppType string `json:"app_type"`
	Value   string `json:"value"`

	// Replaces is set when this entry updates an earlier one.
	Replaces Address `json:"replaces,omitempty"`
}

// LinkData relates a base entry to a target entry.
type LinkData struct {
	Base     Address `json:"base"`
	Target   Address `json:"target"`
	LinkType string  `json:"link_type"`
	Tag      string  `json:"tag"`
}

// Deletion marks an earlier entry as deleted.
type Deletion struct {
	Deleted Address `json:"deleted"`
}

// DNAEntry is the chain record of the application definition.
type DNAEntry struct {
	Name    string  `json:"name"`
	Version string  `json:"version"`
	Hash    Address `json:"hash"`
}

// NewAppEntry creates an application entry.
func NewAppEntry(appType, value string) Entry {
	return Entry{Type: EntryTypeApp, App: &AppEntry{AppType: appType, Value: value}}
}

// NewUpdateEntry creates an application entry replacing an earlier one.
func NewUpdateEntry(appType, value string, replaces Address) Entry {
	return Entry{Type: EntryTypeApp, App: &AppEntry{AppType: appType, Value: value, Replaces: replaces}}
}

// NewLinkAdd creates a link entry from base to target.
func NewLinkAdd(base, target Address, linkType, tag string) Entry {
	return Entry{Type: EntryTypeLinkAdd, Link: &LinkData{Base: base, Target: target, LinkType: linkType, Tag: tag}}
}

// NewLinkRemove creates a link removal entry.
func NewLinkRemove(base, target Address, linkType, tag string) Entry {
	return Entry{Type: EntryTypeLinkRemove, Link: &LinkData{Base: base, Target: target, LinkType: linkType, Tag: tag}}
}

// NewDeletion creates a deletion entry for deleted.
func NewDeletion(deleted Address) Entry {
	return Entry{Type: EntryTypeDeletion, Deletion: &Deletion{Deleted: deleted}}
}

// NewGrantEntry wraps a capability grant.
func NewGrantEntry(grant CapTokenGrant) Entry {
	return Entry{Type: EntryTypeCapTokenGrant, Grant: &grant}
}

// NewAgentEntry wraps an agent identity.
func NewAgentEntry(agent AgentID) Entry {
	return Entry{Type: EntryTypeAgentID, Agent: &agent}
}

// NewDNAEntry records dna on the chain.
func NewDNAEntry(dna DNA) Entry {
	return Entry{Type: EntryTypeDNA, DNA: &DNAEntry{Name: dna.Name, Version: dna.Version, Hash: dna.Address()}}
}

// Validate checks that exactly one payload is set and that it matches
// the type tag.
func (e Entry) Validate() error {
	if n := e.payloadCount(); n > 1 {
		return fmt.Errorf("entry of type %q carries %d payloads", e.Type, n)
	}
	var ok bool
	switch e.Type {
	case EntryTypeApp:
		ok = e.App != nil && e.App.AppType != ""
	case EntryTypeLinkAdd, EntryTypeLinkRemove:
		ok = e.Link != nil && e.Link.Base != "" && e.Link.Target != ""
	case EntryTypeDeletion:
		ok = e.Deletion != nil && e.Deletion.Deleted != ""
	case EntryTypeCapTokenGrant:
		ok = e.Grant != nil && e.Grant.ID != ""
	case EntryTypeAgentID:
		ok = e.Agent != nil && e.Agent.PubSignKey != ""
	case EntryTypeDNA:
		ok = e.DNA != nil && e.DNA.Name != ""
	default:
		return fmt.Errorf("unknown entry type %q", e.Type)
	}
	if !ok {
		return fmt.Errorf("entry of type %q has missing or malformed payload", e.Type)
	}
	return nil
}

// Dependencies returns the addresses that must be locally available before
// this entry can be held. Order is stable.
func (e Entry) Dependencies() []Address {
	switch e.Type {
	case EntryTypeLinkAdd, EntryTypeLinkRemove:
		if e.Link != nil {
			return []Address{e.Link.Base, e.Link.Target}
		}
	case EntryTypeDeletion:
		if e.Deletion != nil {
			return []Address{e.Deletion.Deleted}
		}
	case EntryTypeApp:
		if e.App != nil && e.App.Replaces != "" {
			return []Address{e.App.Replaces}
		}
	}
	return nil
}

func (e Entry) payloadCount() int {
	n := 0
	for _, set := range []bool{e.App != nil, e.Link != nil, e.Deletion != nil, e.Grant != nil, e.Agent != nil, e.DNA != nil} {
		if set {
			n++
		}
	}
	return n
}

// canonical hashes the payload selected by Type. Payloads of other types
// are ignored here and rejected by Validate.
func (e Entry) canonical() map[string]any {
	obj := map[string]any{"type": string(e.Type)}
	switch e.Type {
	case EntryTypeApp:
		if e.App != nil {
			app := map[string]any{"app_type": e.App.AppType, "value": e.App.Value}
			if e.App.Replaces != "" {
				app["replaces"] = e.App.Replaces
			}
			obj["app"] = app
		}
	case EntryTypeLinkAdd, EntryTypeLinkRemove:
		if e.Link != nil {
			obj["link"] = map[string]any{
				"base":      e.Link.Base,
				"target":    e.Link.Target,
				"link_type": e.Link.LinkType,
				"tag":       e.Link.Tag,
			}
		}
	case EntryTypeDeletion:
		if e.Deletion != nil {
			obj["deletion"] = map[string]any{"deleted": e.Deletion.Deleted}
		}
	case EntryTypeCapTokenGrant:
		if e.Grant != nil {
			obj["grant"] = e.Grant.canonical()
		}
	case EntryTypeAgentID:
		if e.Agent != nil {
			obj["agent"] = map[string]any{"nick": e.Agent.Nick, "pub_sign_key": e.Agent.PubSignKey}
		}
	case EntryTypeDNA:
		if e.DNA != nil {
			obj["dna"] = map[string]any{"name": e.DNA.Name, "version": e.DNA.Version, "hash": e.DNA.Hash}
		}
	}
	return obj
}

// Clone returns a deep copy of e.
func (e Entry) Clone() Entry {
	if e.App != nil {
		app := *e.App
		e.App = &app
	}
	if e.Link != nil {
		link := *e.Link
		e.Link = &link
	}
	if e.Deletion != nil {
		del := *e.Deletion
		e.Deletion = &del
	}
	if e.Grant != nil {
		grant := *e.Grant
		grant.Assignees = slices.Clone(grant.Assignees)
		grant.Functions = slices.Clone(grant.Functions)
		e.Grant = &grant
	}
	if e.Agent != nil {
		agent := *e.Agent
		e.Agent = &agent
	}
	if e.DNA != nil {
		dna := *e.DNA
		e.DNA = &dna
	}
	return e
}

// Address returns the content address of the entry.
func (e Entry) Address() Address {
	return mustAddress(DomainEntry, e.canonical())
}

// Content returns the storable form of the entry.
func (e Entry) Content() (Content, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return Content{}, fmt.Errorf("marshal entry: %w", err)
	}
	return Content{Address: e.Address(), Type: string(e.Type), Data: data}, nil
}

// DecodeEntry parses stored content back into an Entry.
func DecodeEntry(c Content) (Entry, error) {
	if c.Type == ContentTypeHeader {
		return Entry{}, fmt.Errorf("content %s is a header, not an entry", c.Address.Short())
	}
	var e Entry
	if err := json.Unmarshal(c.Data, &e); err != nil {
		return Entry{}, fmt.Errorf("decode entry %s: %w", c.Address.Short(), err)
	}
	return e, nil
}

// mustAddress is addressOf for inputs built only from canonical-safe
// values. A failure there is a programming error.
func mustAddress(domain string, obj map[string]any) Address {
	addr, err := addressOf(domain, obj)
	if err != nil {
		panic(err)
	}
	return addr
}
