package instance

import (
	"errors"
	"fmt"
)

// RuntimeError is a recoverable error raised by the runtime plumbing.
//
// Runtime errors include:
//   - Initialization failed: a channel was never wired before first use
//   - Lifecycle: the dispatch loop has stopped and can take no more actions
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// Instance names the instance that raised the error.
	Instance string
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeInitializationFailed indicates a required endpoint was never wired.
	ErrCodeInitializationFailed RuntimeErrorCode = "INITIALIZATION_FAILED"

	// ErrCodeLifecycle indicates an operation after the dispatch loop stopped.
	ErrCodeLifecycle RuntimeErrorCode = "LIFECYCLE"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	if e.Instance != "" {
		return fmt.Sprintf("%s: %s (instance=%s)", e.Code, e.Message, e.Instance)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsInitializationFailed returns true if err is an initialization error.
// Uses errors.As to handle wrapped errors.
func IsInitializationFailed(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeInitializationFailed
	}
	return false
}

// IsLifecycleError returns true if err reports a stopped dispatch loop.
// Uses errors.As to handle wrapped errors.
func IsLifecycleError(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeLifecycle
	}
	return false
}

// Lookup errors.
var (
	ErrDNANotLoaded       = errors.New("dna not loaded")
	ErrNoPublicToken      = errors.New("no public capability grant on chain")
	ErrNoTopHeader        = errors.New("source chain is empty")
	ErrStateUninitialized = errors.New("state not initialized")
)

// FatalError is raised, never returned. It means the caller was blocked
// on a runtime that can no longer make progress and there is no way to
// unwind safely.
type FatalError struct {
	Instance string
	Reason   string
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("fatal: %s (instance=%s)", e.Reason, e.Instance)
}

// Abort panics with a *FatalError. Recover it with AsFatal.
func Abort(instance, reason string) {
	panic(&FatalError{Instance: instance, Reason: reason})
}

// AsFatal reports whether a recovered value is a *FatalError.
func AsFatal(r any) (*FatalError, bool) {
	fe, ok := r.(*FatalError)
	return fe, ok
}
