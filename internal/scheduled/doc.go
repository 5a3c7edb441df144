// Package scheduled is the periodic maintenance job of an instance.
//
// Each tick optionally logs a StateDump and then runs one pending
// validation pass: every queued validation is re-run, resolved ones are
// removed, still-blocked ones have their attempt count bumped, and ones
// past the configured attempt limit are abandoned.
package scheduled
