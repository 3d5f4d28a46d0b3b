// Package instrument defines the boundary to the automation layer:
// the pipetting, transport and device-control primitives a protocol
// step issues, and the simulated controller used for dry runs and
// conformance tests.
//
// The Controller interface mirrors the vendor command surface. The
// only implementation in this repository is the Simulator, which
// executes no hardware I/O; it validates arguments the same way a
// live run would (tip capacity, position counts), consumes tips and
// reagents through the trackers, and records every call as a
// deterministic trace event.
//
// Execution is strictly sequential: every call blocks until complete,
// and timed waits either sleep against wall-clock time or skip
// entirely under device simulation. Nothing here suspends
// cooperatively or runs in parallel with anything else.
package instrument
