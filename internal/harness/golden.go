package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"prepdeck/internal/trace"
)

// RunWithGolden executes a scenario and compares the trace against a
// golden file stored in testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Golden files pin the exact device choreography; an unintended
// change to pipetting order, transport grips or device calls shows up
// as a golden diff.
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}

	return AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares an already-executed result's trace against a
// golden file.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	data, err := MarshalResultTrace(result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)

	return nil
}

// MarshalResultTrace serializes a result's trace as the canonical
// snapshot JSON used for golden comparison.
func MarshalResultTrace(result *Result) ([]byte, error) {
	snapshot := &trace.Snapshot{
		Protocol: result.Protocol,
		RunToken: result.Token,
		Events:   result.Events,
	}
	return trace.MarshalSnapshot(snapshot)
}
