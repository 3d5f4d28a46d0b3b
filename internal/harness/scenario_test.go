package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeScenario drops YAML into a temp file and returns its path.
func writeScenario(t *testing.T, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	return path
}

func TestLoadScenario(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/lsk109_quarter_plate.yaml")
	require.NoError(t, err)

	assert.Equal(t, "lsk109_quarter_plate", s.Name)
	assert.Equal(t, "lsk109", s.Protocol)
	assert.Equal(t, "scenario-lsk109-24", s.RunToken)
	assert.Equal(t, 24, s.Params.Samples)
	assert.NotEmpty(t, s.Assertions)
}

func TestLoadScenarioOfflineNodes(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/qiaseq_degraded_shakers.yaml")
	require.NoError(t, err)
	assert.Equal(t, []int{2, 4}, s.OfflineHHSNodes)
}

func TestLoadScenarioRejectsUnknownField(t *testing.T) {
	path := writeScenario(t, `
name: typo
description: "unknown top-level key"
protocol: lsk109
assertion:
  - type: trace_count
    op: initialize
    count: 1
`)
	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "assertion")
}

func TestLoadScenarioRequiresProtocol(t *testing.T) {
	path := writeScenario(t, `
name: no_protocol
description: "missing protocol"
assertions:
  - type: trace_count
    op: initialize
    count: 1
`)
	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "protocol is required")
}

func TestLoadScenarioRejectsBadAssertionType(t *testing.T) {
	path := writeScenario(t, `
name: bad_assertion
description: "unknown assertion type"
protocol: lsk109
assertions:
  - type: telepathy
`)
	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown assertion type")
}

func TestLoadScenarioRejectsBadStepStatus(t *testing.T) {
	path := writeScenario(t, `
name: bad_status
description: "step_status with invalid status"
protocol: lsk109
assertions:
  - type: step_status
    step: initialize
    status: wonderful
`)
	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status must be")
}

func TestLoadScenarioRejectsBadNode(t *testing.T) {
	path := writeScenario(t, `
name: bad_node
description: "offline node zero"
protocol: lsk109
offline_hhs_nodes: [0]
assertions:
  - type: trace_count
    op: initialize
    count: 1
`)
	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a valid node")
}

func TestLoadScenarioMissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}
