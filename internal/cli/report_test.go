package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prepdeck/internal/store"
)

func TestReportListsRuns(t *testing.T) {
	result, db := doRun(t)

	out, _, err := executeCommand(t, "report", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, result.Token)
	assert.Contains(t, out, "lsk109")
}

func TestReportListJSON(t *testing.T) {
	result, db := doRun(t)

	out, _, err := executeCommand(t, "--format", "json", "report", "--db", db)
	require.NoError(t, err)

	var resp struct {
		Status string            `json:"status"`
		Data   []store.RunRecord `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, result.Token, resp.Data[0].Token)
	assert.Equal(t, "ok", resp.Data[0].Status)
}

func TestReportRunJSON(t *testing.T) {
	result, db := doRun(t)

	out, _, err := executeCommand(t, "--format", "json", "report", "--db", db, result.Token)
	require.NoError(t, err)

	var resp struct {
		Status string    `json:"status"`
		Data   runReport `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, result.Token, resp.Data.Run.Token)
	assert.NotEmpty(t, resp.Data.Steps)
	for _, s := range resp.Data.Steps {
		assert.Equal(t, "ok", s.Status)
	}

	// The run command folds requirement totals into the withdrawal
	// rows, so both sides are populated.
	require.NotEmpty(t, resp.Data.Consumption)
	var sized bool
	for _, c := range resp.Data.Consumption {
		if c.RequiredUL > 0 && c.WithdrawnUL > 0 {
			sized = true
		}
	}
	assert.True(t, sized, "consumption rows should carry requirement and withdrawal")
}

func TestReportUnknownToken(t *testing.T) {
	_, db := doRun(t)

	_, _, err := executeCommand(t, "report", "--db", db, "no-such-token")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "not found")
}

func TestReportMissingDatabase(t *testing.T) {
	db := filepath.Join(t.TempDir(), "absent.db")
	_, _, err := executeCommand(t, "report", "--db", db)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
