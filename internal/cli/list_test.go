package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListText(t *testing.T) {
	out, _, err := executeCommand(t, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "lsk109")
	assert.Contains(t, out, "steps")
}

func TestListJSON(t *testing.T) {
	out, _, err := executeCommand(t, "--format", "json", "list")
	require.NoError(t, err)

	var resp struct {
		Status string         `json:"status"`
		Data   []protocolInfo `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)

	var found bool
	for _, info := range resp.Data {
		if info.Name == "lsk109" {
			found = true
			assert.NotEmpty(t, info.Description)
			assert.Greater(t, info.Steps, 0)
		}
	}
	assert.True(t, found, "lsk109 should be listed")
}

func TestListRejectsArgs(t *testing.T) {
	_, _, err := executeCommand(t, "list", "extra")
	require.Error(t, err)
}
