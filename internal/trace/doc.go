// Package trace records the deterministic event log a simulated run
// produces and defines the canonical serialization used for hashing
// and golden-file comparison.
//
// Every controller call is stamped with a monotonic seq number from
// Clock.Next(). Ordering NEVER uses wall-clock timestamps, so a
// simulated run replays byte-identically regardless of machine or
// time of day.
//
// Canonical JSON here means: object keys sorted, strings NFC
// normalized, floats rendered with shortest round-trip formatting, no
// HTML escaping. Snapshot hashes are SHA-256 with a domain prefix so a
// layout digest can never collide with a trace digest.
package trace
