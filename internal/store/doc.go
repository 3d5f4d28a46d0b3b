// Package store provides SQLite-backed durable storage for the run
// log.
//
// The store keeps three tables:
//   - runs: one row per protocol run, opened by BeginRun and closed
//     by FinishRun
//   - step_events: append-only step outcomes keyed by execution order
//   - consumption: final per-reagent, per-container withdrawal tallies
//
// Writes are idempotent: run rows and step events insert with
// ON CONFLICT DO NOTHING, consumption tallies upsert. Ordering of
// step events uses the seq column (execution order), never
// timestamps.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
