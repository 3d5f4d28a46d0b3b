package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// doRun executes the run command against a temp database and returns
// the decoded result plus the database path.
func doRun(t *testing.T, extra ...string) (runResult, string) {
	t.Helper()
	db := filepath.Join(t.TempDir(), "runs.db")
	args := append([]string{"--format", "json", "run", "lsk109", "--db", db, "--samples", "8"}, extra...)
	out, _, err := executeCommand(t, args...)
	require.NoError(t, err)

	var resp struct {
		Status string    `json:"status"`
		Data   runResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Equal(t, "ok", resp.Status)
	return resp.Data, db
}

func TestRunRecordsRun(t *testing.T) {
	result, db := doRun(t)

	assert.Equal(t, "lsk109", result.Protocol)
	assert.Equal(t, "ok", result.Status)
	assert.Equal(t, 8, result.Samples)
	assert.NotEmpty(t, result.Token)
	assert.Len(t, result.LayoutHash, 64)
	assert.Greater(t, result.Events, 0)

	// The run log is queryable through the report command.
	out, _, err := executeCommand(t, "report", "--db", db, result.Token)
	require.NoError(t, err)
	assert.Contains(t, out, result.Token)
	assert.Contains(t, out, "status:   ok")
	assert.Contains(t, out, "Consumption:")
}

func TestRunWritesTrace(t *testing.T) {
	traceFile := filepath.Join(t.TempDir(), "run.trace.json")
	result, _ := doRun(t, "--trace", traceFile)

	data, err := os.ReadFile(traceFile)
	require.NoError(t, err)

	var snap struct {
		Protocol string           `json:"protocol"`
		RunToken string           `json:"run_token"`
		Events   []map[string]any `json:"events"`
	}
	require.NoError(t, json.Unmarshal(data, &snap))
	assert.Equal(t, "lsk109", snap.Protocol)
	assert.Equal(t, result.Token, snap.RunToken)
	assert.Len(t, snap.Events, result.Events)
}

func TestRunRequiresDatabase(t *testing.T) {
	_, _, err := executeCommand(t, "run", "lsk109")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db")
}

func TestRunUnknownProtocol(t *testing.T) {
	db := filepath.Join(t.TempDir(), "runs.db")
	_, _, err := executeCommand(t, "run", "nope", "--db", db)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
