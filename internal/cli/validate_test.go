package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prepdeck/internal/consumables"
	"prepdeck/internal/deck"
	"prepdeck/internal/resources"
)

func TestValidateText(t *testing.T) {
	out, _, err := executeCommand(t, "validate", "lsk109", "--samples", "8")
	require.NoError(t, err)
	assert.Contains(t, out, "Reagent requirements:")
	assert.Contains(t, out, "AMPureBeads")
	assert.NotContains(t, out, "SHORTFALL")
}

func TestValidateJSON(t *testing.T) {
	out, _, err := executeCommand(t, "--format", "json", "validate", "lsk109", "--samples", "24")
	require.NoError(t, err)

	var resp struct {
		Status string         `json:"status"`
		Data   validateReport `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "lsk109", resp.Data.Protocol)
	assert.Equal(t, 24, resp.Data.Samples)
	assert.Len(t, resp.Data.LayoutHash, 64)
	assert.Empty(t, resp.Data.Shortfalls)

	// The dry run actually withdraws, so withdrawn volumes are
	// populated for reagents the steps touch.
	var withdrawn bool
	for _, row := range resp.Data.Reagents {
		if row.WithdrawnUL > 0 {
			withdrawn = true
		}
	}
	assert.True(t, withdrawn, "dry run should report withdrawals")
}

func TestValidateUnknownProtocol(t *testing.T) {
	_, _, err := executeCommand(t, "validate", "nope")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestValidateBadSamples(t *testing.T) {
	_, _, err := executeCommand(t, "validate", "lsk109", "--samples", "200")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestFindShortfalls(t *testing.T) {
	layout, err := deck.NewLayout("bench", map[string]deck.Kind{
		"CAR_VIALS_SMALL": deck.KindEppiCarrier32,
	})
	require.NoError(t, err)
	carrier, err := layout.Item("CAR_VIALS_SMALL", deck.KindEppiCarrier32)
	require.NoError(t, err)

	vial := resources.NewReagentTracked(carrier)
	_, err = vial.AssignReagentMap("Big_Mix", []int{0})
	require.NoError(t, err)

	art := &runArtifacts{Vessels: []*resources.ReagentTracked{vial}}
	rows := []consumables.ReagentSummary{
		// 5 mL in a single 1.5 mL vial position.
		{Reagent: "Big_Mix", Container: "CAR_VIALS_SMALL", Wells: 1, RequiredUL: 5000},
		// Required but never claimed by any vessel.
		{Reagent: "Ghost", RequiredUL: 10},
		// Fits.
		{Reagent: "Small_Mix", Container: "CAR_VIALS_SMALL", Wells: 1, RequiredUL: 100},
	}

	shortfalls := findShortfalls(art, rows)
	require.Len(t, shortfalls, 2)
	assert.Equal(t, "Big_Mix", shortfalls[0].Reagent)
	assert.Equal(t, 1500.0, shortfalls[0].CapacityUL)
	assert.Equal(t, "Ghost", shortfalls[1].Reagent)
	assert.Contains(t, shortfalls[1].Reason, "no vessel")
}
