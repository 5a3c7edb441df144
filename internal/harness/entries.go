package harness

import (
	"fmt"

	"github.com/roach88/chaincore/internal/ir"
)

// buildEntries turns the declared entries into ir entries, resolving
// name references to addresses.
func buildEntries(specs []EntrySpec) (map[string]ir.Entry, error) {
	entries := make(map[string]ir.Entry, len(specs))
	ref := func(name string) (ir.Address, error) {
		if name == "" {
			return "", nil
		}
		e, ok := entries[name]
		if !ok {
			return "", fmt.Errorf("reference to undeclared entry %q", name)
		}
		return e.Address(), nil
	}

	for _, s := range specs {
		e, err := buildEntry(s, ref)
		if err != nil {
			return nil, fmt.Errorf("entry %s: %w", s.Name, err)
		}
		entries[s.Name] = e
	}
	return entries, nil
}

func buildEntry(s EntrySpec, ref func(string) (ir.Address, error)) (ir.Entry, error) {
	switch ir.EntryType(s.Type) {
	case ir.EntryTypeApp:
		replaces, err := ref(s.Replaces)
		if err != nil {
			return ir.Entry{}, err
		}
		if replaces != "" {
			return ir.NewUpdateEntry(s.AppType, s.Value, replaces), nil
		}
		return ir.NewAppEntry(s.AppType, s.Value), nil

	case ir.EntryTypeLinkAdd, ir.EntryTypeLinkRemove:
		base, err := ref(s.Base)
		if err != nil {
			return ir.Entry{}, err
		}
		target, err := ref(s.Target)
		if err != nil {
			return ir.Entry{}, err
		}
		if ir.EntryType(s.Type) == ir.EntryTypeLinkRemove {
			return ir.NewLinkRemove(base, target, s.LinkType, s.Tag), nil
		}
		return ir.NewLinkAdd(base, target, s.LinkType, s.Tag), nil

	case ir.EntryTypeDeletion:
		deleted, err := ref(s.Deleted)
		if err != nil {
			return ir.Entry{}, err
		}
		return ir.NewDeletion(deleted), nil

	case ir.EntryTypeCapTokenGrant:
		public := ir.CapabilityType(s.CapType) == ir.CapabilityPublic
		if public && (s.GrantID == "" || s.GrantID == ir.ReservedPublicCapabilityID) {
			return ir.NewGrantEntry(ir.NewPublicGrant(s.Functions)), nil
		}
		return ir.NewGrantEntry(ir.CapTokenGrant{
			ID:        s.GrantID,
			CapType:   ir.CapabilityType(s.CapType),
			Functions: s.Functions,
		}), nil
	}
	return ir.Entry{}, fmt.Errorf("unsupported entry type %q", s.Type)
}
