package ir

// Content is the unit persisted by content-addressable storage.
type Content struct {
	Address Address `json:"address"`
	Type    string  `json:"type"`
	Data    []byte  `json:"data"`
}
