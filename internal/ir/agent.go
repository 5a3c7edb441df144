package ir

// AgentID is the public identity of the agent running an instance.
// Key material lives in the keystore; only the public signing key is here.
type AgentID struct {
	Nick       string `json:"nick"`
	PubSignKey string `json:"pub_sign_key"`
}

// Address returns the agent's address, used as header provenance source.
func (a AgentID) Address() Address {
	return mustAddress(DomainAgent, map[string]any{"nick": a.Nick, "pub_sign_key": a.PubSignKey})
}

// FakeAgentID returns a deterministic identity for tests and local runs.
func FakeAgentID(nick string) AgentID {
	return AgentID{Nick: nick, PubSignKey: "fake-" + nick}
}
