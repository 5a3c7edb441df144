// Package workflow holds the blocking operations built on top of the
// dispatch loop.
//
// A workflow dispatches actions and then parks in instance.WaitFor until
// the published state reflects them. Workflows run on caller goroutines,
// never on the loop, so they may block freely. They must not be called
// after the instance is stopped: a parked workflow aborts with
// *instance.FatalError in that case.
//
// Validating workflows (HoldEntry, HoldLink, RemoveLink, UpdateEntry,
// RemoveEntry) check that every dependency of an entry is available in
// DHT storage before holding it. When one is missing the entry is queued
// as a pending validation and a *DependenciesMissingError is returned;
// the scheduled maintenance job re-runs it via RunPendingValidation.
package workflow
