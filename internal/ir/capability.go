package ir

// CapabilityType is the kind of a capability grant.
type CapabilityType string

const (
	// CapabilityPublic grants are usable by anyone.
	CapabilityPublic CapabilityType = "public"
	// CapabilityTransferable grants are usable by whoever holds the token.
	CapabilityTransferable CapabilityType = "transferable"
	// CapabilityAssigned grants are usable by the listed assignees only.
	CapabilityAssigned CapabilityType = "assigned"
)

// ReservedPublicCapabilityID is the grant id of the instance's public grant.
const ReservedPublicCapabilityID = "hc_public"

// CapTokenGrant authorizes callers to invoke the listed functions.
type CapTokenGrant struct {
	ID        string         `json:"id"`
	CapType   CapabilityType `json:"cap_type"`
	Assignees []Address      `json:"assignees,omitempty"`
	Functions []string       `json:"functions"`
}

// NewPublicGrant creates the reserved public grant for functions.
func NewPublicGrant(functions []string) CapTokenGrant {
	return CapTokenGrant{
		ID:        ReservedPublicCapabilityID,
		CapType:   CapabilityPublic,
		Functions: functions,
	}
}

// IsReservedPublic reports whether g is the instance's public grant.
func (g CapTokenGrant) IsReservedPublic() bool {
	return g.CapType == CapabilityPublic && g.ID == ReservedPublicCapabilityID
}

func (g CapTokenGrant) canonical() map[string]any {
	assignees := make([]any, len(g.Assignees))
	for i, a := range g.Assignees {
		assignees[i] = a
	}
	fns := g.Functions
	if fns == nil {
		fns = []string{}
	}
	return map[string]any{
		"id":        g.ID,
		"cap_type":  string(g.CapType),
		"assignees": assignees,
		"functions": fns,
	}
}
