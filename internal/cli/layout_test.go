package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLayoutDefault(t *testing.T) {
	out, _, err := executeCommand(t, "layout", "lsk109")
	require.NoError(t, err)
	assert.Contains(t, out, "LSK109_v0.9.2")
	assert.Contains(t, out, "Hash: ")
	assert.Contains(t, out, "CAR_VIALS_SMALL")
	assert.Contains(t, out, "eppi_carrier32")
}

func TestLayoutJSON(t *testing.T) {
	out, _, err := executeCommand(t, "--format", "json", "layout", "lsk109")
	require.NoError(t, err)

	var resp struct {
		Status string       `json:"status"`
		Data   layoutReport `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "LSK109_v0.9.2", resp.Data.Name)
	assert.Len(t, resp.Data.Hash, 64)
	assert.NotEmpty(t, resp.Data.Slots)
}

func TestLayoutUnknownProtocol(t *testing.T) {
	_, _, err := executeCommand(t, "layout", "nope")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestLayoutFromDirectory(t *testing.T) {
	dir := t.TempDir()
	src := `layout: {
	name: "bench_test"
	slots: {
		HSP_Pipette: kind: "plate96"
		RGT_01:      kind: "reservoir60"
	}
}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "deck.cue"), []byte(src), 0o644))

	out, _, err := executeCommand(t, "layout", "lsk109", "--dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "bench_test")
	assert.Contains(t, out, "RGT_01")
}

func TestLayoutFromDirectoryCollectsErrors(t *testing.T) {
	dir := t.TempDir()
	src := `layout: {
	name: "broken"
	slots: {
		A: kind: "plate96"
		B: kind: "warp_core"
		C: kind: "also_bad"
	}
}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "deck.cue"), []byte(src), 0o644))

	out, _, err := executeCommand(t, "layout", "lsk109", "--dir", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	// Both bad slots reported, not just the first.
	assert.Contains(t, out, "2 problem(s)")
}
