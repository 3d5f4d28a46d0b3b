// Package consumables computes and records reagent volume
// consumption.
//
// Requirements are pure arithmetic over protocol parameters (per-sample
// volume x sample count x repeats x excess factor) used for pre-run
// sizing. The Ledger accumulates actual withdrawals as tracked
// aspirates execute. Neither is consulted for runtime abort decisions;
// the validate command surfaces shortfalls as warnings and leaves the
// go/no-go call to the operator.
package consumables
