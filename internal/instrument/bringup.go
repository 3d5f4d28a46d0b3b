package instrument

import (
	"context"
	"fmt"
	"strings"
)

// BringUpResult is the outcome of one device's initialization.
type BringUpResult struct {
	Device string // "hhs", "cpac", "odtc"
	Node   int    // node or controller id
	Err    error  // nil on success
}

// Ok reports whether the device came up.
func (r BringUpResult) Ok() bool {
	return r.Err == nil
}

func (r BringUpResult) String() string {
	if r.Err == nil {
		return fmt.Sprintf("%s node %d: ok", r.Device, r.Node)
	}
	return fmt.Sprintf("%s node %d: %v", r.Device, r.Node, r.Err)
}

// BringUpReport collects per-device initialization results so the
// caller decides whether partial device availability is acceptable,
// instead of errors being caught and discarded inline.
type BringUpReport struct {
	Results []BringUpResult
}

// Add appends one device result.
func (b *BringUpReport) Add(device string, node int, err error) {
	b.Results = append(b.Results, BringUpResult{Device: device, Node: node, Err: err})
}

// Failed returns the results for devices that did not come up.
func (b *BringUpReport) Failed() []BringUpResult {
	var out []BringUpResult
	for _, r := range b.Results {
		if r.Err != nil {
			out = append(out, r)
		}
	}
	return out
}

// AllOk reports whether every device came up.
func (b *BringUpReport) AllOk() bool {
	return len(b.Failed()) == 0
}

func (b *BringUpReport) String() string {
	lines := make([]string, len(b.Results))
	for i, r := range b.Results {
		lines[i] = r.String()
	}
	return strings.Join(lines, "\n")
}

// BringUpHeaterShakers initializes the given heater-shaker nodes,
// collecting each outcome. A failed node is recorded, not fatal;
// heater-shaker availability is a per-protocol policy call.
func BringUpHeaterShakers(ctx context.Context, ctrl Controller, nodes []int) *BringUpReport {
	report := &BringUpReport{}
	for _, node := range nodes {
		report.Add("hhs", node, ctrl.HHSCreateDevice(ctx, node))
	}
	return report
}
