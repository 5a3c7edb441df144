// Package action defines the closed set of commands that mutate instance
// state, and the envelope they travel in.
//
// An Action is constructed by whichever component wants a state change and
// is opaque until the dispatch loop hands it to the reducer. No component
// applies an Action to state directly; that is the single-writer rule.
//
// Wrapper IDs exist for tracing and for correlating responses recorded in
// state. They are never used to deduplicate actions.
package action
