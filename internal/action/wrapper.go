package action

// Wrapper is the envelope transported on the dispatch queue.
type Wrapper struct {
	ID     string
	Action Action
}

// Wrap pairs a with an id from gen.
func Wrap(gen IDGenerator, a Action) Wrapper {
	return Wrapper{ID: gen.Generate(), Action: a}
}
