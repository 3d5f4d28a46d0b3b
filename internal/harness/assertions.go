package harness

import (
	"fmt"
	"math"
	"strings"

	"prepdeck/internal/consumables"
	"prepdeck/internal/trace"
)

// volumeTolerance absorbs float accumulation error in ledger sums.
const volumeTolerance = 1e-6

// AssertionError is returned when an assertion fails. It includes the
// trace so the failure report shows what the run actually did.
type AssertionError struct {
	Type     string        // Assertion type for categorization
	Expected string        // Human-readable expected outcome
	Actual   string        // Human-readable actual outcome
	Events   []trace.Event // Full trace for debugging context
}

func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Events) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, ev := range e.Events {
			fmt.Fprintf(&buf, "  [%d] %s %s %v\n", ev.Seq, ev.Op, ev.Target, ev.Args)
		}
	}

	return buf.String()
}

// assertTraceContains checks that an op appears in the trace with
// the given args (subset match).
func assertTraceContains(events []trace.Event, a Assertion) error {
	for _, ev := range events {
		if ev.Op == a.Op && matchArgs(ev.Args, a.Args) {
			return nil
		}
	}

	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("op %s with args %v", a.Op, a.Args),
		Actual:   "not found in trace",
		Events:   events,
	}
}

// assertTraceOrder checks that ops first appear in the given order.
// Ops don't need to be consecutive; intervening ops are allowed.
func assertTraceOrder(events []trace.Event, a Assertion) error {
	positions := make(map[string]int)
	for i, ev := range events {
		for _, op := range a.Ops {
			if ev.Op == op && positions[op] == 0 {
				positions[op] = i + 1 // 1-indexed so 0 means absent
			}
		}
	}

	for _, op := range a.Ops {
		if positions[op] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all ops present: %v", a.Ops),
				Actual:   fmt.Sprintf("missing op: %s", op),
				Events:   events,
			}
		}
	}

	for i := 1; i < len(a.Ops); i++ {
		prev, curr := a.Ops[i-1], a.Ops[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("ops in order: %v", a.Ops),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Events: events,
			}
		}
	}

	return nil
}

// assertTraceCount checks that an op appears exactly N times.
func assertTraceCount(events []trace.Event, a Assertion) error {
	count := 0
	for _, ev := range events {
		if ev.Op == a.Op {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("op %s exactly %d time(s)", a.Op, a.Count),
			Actual:   fmt.Sprintf("found %d time(s)", count),
			Events:   events,
		}
	}
	return nil
}

// assertWithdrawn checks a reagent's withdrawal against the ledger,
// either deck-wide or for one container.
func assertWithdrawn(ledger *consumables.Ledger, a Assertion) error {
	var actual float64
	var scope string
	if a.Container != "" {
		actual = ledger.WithdrawnUL(a.Container, a.Reagent)
		scope = fmt.Sprintf("%s from %s", a.Reagent, a.Container)
	} else {
		actual = ledger.TotalWithdrawnUL(a.Reagent)
		scope = a.Reagent
	}

	if math.Abs(actual-a.VolumeUL) > volumeTolerance {
		return &AssertionError{
			Type:     AssertWithdrawn,
			Expected: fmt.Sprintf("%.3f uL of %s", a.VolumeUL, scope),
			Actual:   fmt.Sprintf("%.3f uL", actual),
		}
	}
	return nil
}

// assertStepStatus checks the recorded outcome of one step.
func assertStepStatus(steps []StepOutcome, a Assertion) error {
	for _, step := range steps {
		if step.StepID == a.Step {
			if step.Status != a.Status {
				return &AssertionError{
					Type:     AssertStepStatus,
					Expected: fmt.Sprintf("step %s with status %s", a.Step, a.Status),
					Actual:   fmt.Sprintf("status %s (%s)", step.Status, step.Detail),
				}
			}
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertStepStatus,
		Expected: fmt.Sprintf("step %s recorded", a.Step),
		Actual:   "step not found in run log",
	}
}

// matchArgs compares expected args against actual with subset
// semantics. Values are compared by their printed form: YAML decodes
// numbers differently than the simulator records them (int vs
// float64), and the printed form is what both sides mean.
func matchArgs(actual map[string]any, expected map[string]interface{}) bool {
	for key, want := range expected {
		got, ok := actual[key]
		if !ok {
			return false
		}
		if fmt.Sprint(got) != fmt.Sprint(want) {
			return false
		}
	}
	return true
}
