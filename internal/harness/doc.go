// Package harness runs YAML scenarios against a live instance.
//
// A scenario names a set of entries, drives an instance through a list of
// steps (commits, validating workflows, storage injection and scheduler
// ticks) and then asserts on the resulting state. Each step appends one
// event to a trace; traces are compared against golden files so any
// behavioural change in the runtime shows up as a diff.
//
// Scenarios run on a fresh in-memory instance with a deterministic clock
// and fixed action ids, so the same scenario always yields the same trace.
package harness
