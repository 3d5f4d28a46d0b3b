// Package protocol defines the protocol contract and the sequential
// runner.
//
// A Protocol contributes a default deck layout, a consumable
// requirement table, a setup hook that builds its resource trackers,
// and an ordered list of named steps. The runner executes the steps
// in order against an instrument controller, recording outcomes
// through a RunRecorder. The first failing step aborts the run; there
// is no rollback, physical liquid movements cannot be undone.
package protocol
