// Package harness provides conformance testing for protocols.
//
// The harness executes a protocol against the in-memory instrument
// and validates the resulting device trace and volume ledger against
// declarative YAML scenarios.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	protocol: lsk109
//	run_token: scenario-lsk109-24
//	params:
//	  samples: 24
//	offline_hhs_nodes: [2, 4]
//	assertions:
//	  - type: trace_contains
//	    op: odtc_execute
//	    args: { method: LSK109_EndPrep }
//	  - type: trace_order
//	    ops: [initialize, odtc_execute, odtc_open_door]
//	  - type: trace_count
//	    op: hhs_start_shaker
//	    count: 3
//	  - type: withdrawn
//	    reagent: AMPureBeads
//	    volume_ul: 2400
//	  - type: step_status
//	    step: adapter_ligation
//	    status: ok
//
// # Assertion Types
//
// The following assertion types are supported:
//
//   - trace_contains: Verifies an op appears in the trace with matching args
//   - trace_order: Verifies ops appear in specified order
//   - trace_count: Verifies an op appears exactly N times
//   - withdrawn: Verifies a reagent's total (or per-container) withdrawal
//   - step_status: Verifies a step's recorded outcome
//
// # Deterministic Testing
//
// Scenarios always run with device simulation on and a fixed run
// token, so a given protocol, params and scenario produce an
// identical trace across runs. That makes the trace comparable
// against golden snapshot files (see RunWithGolden).
package harness
