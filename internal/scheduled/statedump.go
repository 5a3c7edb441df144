package scheduled

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/chaincore/internal/action"
	"github.com/roach88/chaincore/internal/instance"
	"github.com/roach88/chaincore/internal/ir"
	"github.com/roach88/chaincore/internal/state"
	"github.com/roach88/chaincore/internal/storage"
)

// missingContent stands in for content that is referenced by state but
// absent from storage.
const missingContent = "<missing>"

// ChainItem is one source chain header with its entry content.
type ChainItem struct {
	Header        ir.ChainHeader
	HeaderAddress ir.Address
	Type          string
	Content       string
}

// PendingItem is one queued validation.
type PendingItem struct {
	Address      ir.Address
	Workflow     action.ValidatingWorkflow
	Attempts     int
	Dependencies []ir.Address
	Type         string
	Content      string
}

// FlowItem is one tracked network flow.
type FlowItem struct {
	ID string
	state.FlowStatus
}

// HeldItem is one entry held in the local DHT shard.
type HeldItem struct {
	Address ir.Address
	Type    string
	Content string
}

// StateDump is a diagnostic snapshot of an instance with addresses
// resolved to their stored content.
type StateDump struct {
	Seq                    int64
	SourceChain            []ChainItem // newest first
	RunningCalls           []string
	PendingValidations     []PendingItem
	QueryFlows             []FlowItem
	ValidationPackageFlows []FlowItem
	DirectMessageFlows     []FlowItem
	Held                   []HeldItem
}

// NewStateDump builds a dump of the current state of c.
func NewStateDump(ctx context.Context, c *instance.Context) (*StateDump, error) {
	s := c.State()
	if s == nil {
		return nil, instance.ErrStateUninitialized
	}
	d := &StateDump{Seq: s.Seq()}

	if top, ok := s.Agent().TopChainHeader(); ok {
		for h, err := range c.Chain().Iter(ctx, top.Address()) {
			if err != nil {
				return nil, fmt.Errorf("state dump: %w", err)
			}
			content, typ, err := resolve(ctx, c.ChainStorage(), h.EntryAddress)
			if err != nil {
				return nil, fmt.Errorf("state dump: %w", err)
			}
			d.SourceChain = append(d.SourceChain, ChainItem{
				Header:        h,
				HeaderAddress: h.Address(),
				Type:          typ,
				Content:       content,
			})
		}
	}

	d.RunningCalls = s.Nucleus().RunningCalls()

	for _, p := range s.Nucleus().PendingValidations() {
		item := PendingItem{
			Address:      p.Address,
			Workflow:     p.Workflow,
			Attempts:     p.Attempts,
			Dependencies: p.Dependencies,
			Type:         string(p.Entry.Type),
			Content:      missingContent,
		}
		if ct, err := p.Entry.Content(); err == nil {
			item.Content = string(ct.Data)
		}
		d.PendingValidations = append(d.PendingValidations, item)
	}

	d.QueryFlows = flows(s.Network(), action.FlowQuery)
	d.ValidationPackageFlows = flows(s.Network(), action.FlowValidationPackage)
	d.DirectMessageFlows = flows(s.Network(), action.FlowDirectMessage)

	for _, addr := range s.DHT().Held() {
		content, typ, err := resolve(ctx, c.DHTStorage(), addr)
		if err != nil {
			return nil, fmt.Errorf("state dump: %w", err)
		}
		d.Held = append(d.Held, HeldItem{Address: addr, Type: typ, Content: content})
	}
	return d, nil
}

// AddressToContentAndType fetches addr from cas and returns its content
// as a string together with its content type.
// Returns an error wrapping storage.ErrNotFound if addr is absent.
func AddressToContentAndType(ctx context.Context, cas storage.ContentAddressableStorage, addr ir.Address) (string, string, error) {
	c, ok, err := cas.Fetch(ctx, addr)
	if err != nil {
		return "", "", fmt.Errorf("fetch %s: %w", addr.Short(), err)
	}
	if !ok {
		return "", "", fmt.Errorf("fetch %s: %w", addr.Short(), storage.ErrNotFound)
	}
	return string(c.Data), c.Type, nil
}

// resolve is AddressToContentAndType with absent content rendered as a
// placeholder.
func resolve(ctx context.Context, cas storage.ContentAddressableStorage, addr ir.Address) (string, string, error) {
	content, typ, err := AddressToContentAndType(ctx, cas, addr)
	if errors.Is(err, storage.ErrNotFound) {
		return missingContent, missingContent, nil
	}
	return content, typ, err
}

func flows(n *state.NetworkState, kind action.FlowKind) []FlowItem {
	all := n.Flows(kind)
	var out []FlowItem
	for _, id := range n.FlowIDs(kind) {
		out = append(out, FlowItem{ID: id, FlowStatus: all[id]})
	}
	return out
}

// String renders the dump as indented text for log output.
func (d *StateDump) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "state seq=%d\n", d.Seq)

	fmt.Fprintf(&b, "source chain (%d):\n", len(d.SourceChain))
	for _, it := range d.SourceChain {
		fmt.Fprintf(&b, "  %s %s -> %s t=%d %s\n",
			it.Header.EntryType, it.HeaderAddress.Short(), it.Header.EntryAddress.Short(),
			it.Header.Timestamp, it.Content)
	}

	fmt.Fprintf(&b, "running calls (%d):\n", len(d.RunningCalls))
	for _, id := range d.RunningCalls {
		fmt.Fprintf(&b, "  %s\n", id)
	}

	fmt.Fprintf(&b, "pending validations (%d):\n", len(d.PendingValidations))
	for _, p := range d.PendingValidations {
		deps := make([]string, len(p.Dependencies))
		for i, dep := range p.Dependencies {
			deps[i] = dep.Short()
		}
		fmt.Fprintf(&b, "  %s %s attempts=%d deps=[%s] %s %s\n",
			p.Workflow, p.Address.Short(), p.Attempts, strings.Join(deps, " "), p.Type, p.Content)
	}

	writeFlows(&b, "query flows", d.QueryFlows)
	writeFlows(&b, "validation package flows", d.ValidationPackageFlows)
	writeFlows(&b, "direct message flows", d.DirectMessageFlows)

	fmt.Fprintf(&b, "held (%d):\n", len(d.Held))
	for _, h := range d.Held {
		fmt.Fprintf(&b, "  %s %s %s\n", h.Address.Short(), h.Type, h.Content)
	}
	return b.String()
}

func writeFlows(b *strings.Builder, title string, items []FlowItem) {
	fmt.Fprintf(b, "%s (%d):\n", title, len(items))
	for _, f := range items {
		status := "running"
		switch {
		case f.Done && f.Err != "":
			status = "failed: " + f.Err
		case f.Done:
			status = "done: " + f.Result
		}
		fmt.Fprintf(b, "  %s target=%s %s\n", f.ID, f.Target.Short(), status)
	}
}
