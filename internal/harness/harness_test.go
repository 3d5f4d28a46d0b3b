package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	// Register the protocols the scenarios exercise.
	_ "prepdeck/internal/protocols/lsk109"
	_ "prepdeck/internal/protocols/qiaseq"
)

func TestScenarioSuite(t *testing.T) {
	RunScenarioDir(t, "testdata/scenarios")
}

func TestRunProducesArtifacts(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/lsk109_quarter_plate.yaml")
	require.NoError(t, err)

	result, err := Run(s)
	require.NoError(t, err)
	require.NoError(t, result.RunErr)

	assert.Equal(t, "lsk109", result.Protocol)
	assert.Equal(t, "scenario-lsk109-24", result.Token)
	assert.NotEmpty(t, result.Events)
	assert.NotEmpty(t, result.Steps)
	for _, step := range result.Steps {
		assert.Equal(t, "ok", step.Status)
	}
}

func TestRunIsDeterministic(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/lsk109_quarter_plate.yaml")
	require.NoError(t, err)

	first, err := Run(s)
	require.NoError(t, err)
	second, err := Run(s)
	require.NoError(t, err)

	a, err := MarshalResultTrace(first)
	require.NoError(t, err)
	b, err := MarshalResultTrace(second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestRunUnknownProtocol(t *testing.T) {
	_, err := Run(&Scenario{
		Name:        "bogus",
		Description: "nonexistent protocol",
		Protocol:    "nope",
		Assertions:  []Assertion{{Type: AssertTraceCount, Op: "initialize", Count: 1}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown protocol")
}

func TestVerifyReportsFailures(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/lsk109_quarter_plate.yaml")
	require.NoError(t, err)

	result, err := Run(s)
	require.NoError(t, err)

	bad := &Scenario{
		Name:        "wrong_volumes",
		Description: "deliberately wrong expectations",
		Protocol:    "lsk109",
		Assertions: []Assertion{
			{Type: AssertWithdrawn, Reagent: "EndPrepMix", VolumeUL: 1},
			{Type: AssertTraceCount, Op: "odtc_execute", Count: 7},
			{Type: AssertStepStatus, Step: "initialize", Status: "ok"},
		},
	}

	errs := Verify(result, bad)
	require.Len(t, errs, 2)
	assert.Contains(t, errs[0].Error(), "Assertion failed: withdrawn")
	assert.Contains(t, errs[1].Error(), "Assertion failed: trace_count")
}

func TestDefaultRunToken(t *testing.T) {
	result, err := Run(&Scenario{
		Name:        "token_default",
		Description: "no pinned token",
		Protocol:    "lsk109",
		Params:      ScenarioParams{Samples: 8},
		Assertions:  []Assertion{{Type: AssertTraceCount, Op: "odtc_execute", Count: 1}},
	})
	require.NoError(t, err)
	assert.Equal(t, DefaultRunToken, result.Token)
}
