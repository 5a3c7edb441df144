package ir

// Version constants for stored content and the runtime.
const (
	// ContentVersion is the version of the hashed content layout.
	ContentVersion = "1"

	// RuntimeVersion is the chaincore runtime version.
	RuntimeVersion = "0.1.0"
)
