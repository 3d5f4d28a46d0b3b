// Package resources implements consumable bookkeeping for a protocol
// run: which wells hold which reagent, which plate comes off a stack
// next, and how many disposable tip columns are left in each rack.
//
// All trackers are plain in-memory cursor state constructed once at
// deck setup and mutated by whichever step currently holds protocol
// control. There is exactly one logical thread of control per run, so
// no tracker is safe for concurrent use and none tries to be.
//
// The trackers are logical. A reset tells the tracker the operator has
// restocked or that previously fetched items left the deck; it cannot
// verify the physical deck. Checked resets consult the occupancy
// ledger and refuse when items are still marked in use, which is as
// close to a physical cross-check as this layer can get.
//
// Error taxonomy:
//   - ResourceExhaustedError: a pool or tip tracker was asked for one
//     more unit than its registered capacity allows.
//   - deck.ConfigurationError: a usage error detected before any
//     device interaction (bad well index, overlapping reagent claim,
//     volume over tip capacity).
package resources
