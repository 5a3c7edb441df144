// Package state holds the application state snapshot and the reducer.
//
// A *State is immutable once returned. Reduce never mutates its input; it
// returns a new snapshot that shares every untouched sub-state with the
// previous one. Maps inside sub-states are cloned before writing, so any
// reader holding an older snapshot keeps seeing exactly that snapshot.
//
// Reduce is pure: no I/O, no blocking, no clocks. Anything time-dependent
// (commit timestamps) travels inside the action.
package state
