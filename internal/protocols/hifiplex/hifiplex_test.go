package hifiplex

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prepdeck/internal/consumables"
	"prepdeck/internal/instrument"
	"prepdeck/internal/protocol"
	"prepdeck/internal/trace"
)

func runProtocol(t *testing.T, samples int) (*Protocol, *instrument.Simulator, *consumables.Ledger) {
	t.Helper()
	p := New()
	layout, err := p.DefaultLayout()
	require.NoError(t, err)

	ledger := consumables.NewLedger()
	sim := instrument.NewSimulator(trace.NewRecorder(), ledger)
	params := protocol.Params{Samples: samples, DeviceSimulation: true}
	require.NoError(t, params.Normalize())

	r := protocol.NewRun("run-hifiplex", layout, sim, ledger, params, nil)
	rn := protocol.NewRunner(nil)
	require.NoError(t, rn.Execute(context.Background(), p, r))
	return p, sim, ledger
}

func TestFullRun(t *testing.T) {
	p, sim, ledger := runProtocol(t, 96)

	assert.InDelta(t, 5.5*96, ledger.TotalWithdrawnUL("ER_Mix"), 1e-9)
	assert.InDelta(t, 10.5*96, ledger.TotalWithdrawnUL("RGT_LigMix"), 1e-9)
	assert.InDelta(t, 5.0*96, ledger.TotalWithdrawnUL("EDTA"), 1e-9)
	assert.InDelta(t, 50.0*96, ledger.TotalWithdrawnUL("MagBeads"), 1e-9)
	assert.InDelta(t, 200.0*96, ledger.TotalWithdrawnUL("Ethanol"), 1e-9)
	assert.InDelta(t, 25.5*96, ledger.TotalWithdrawnUL("ElutionBuffer"), 1e-9)

	assert.Equal(t, 4, p.hspStack.Remaining())

	// The bead resuspension and the pool both happened.
	var sawMix, sawPool bool
	for _, e := range sim.Recorder().Events() {
		switch e.Op {
		case "pip_mix":
			sawMix = true
		case "pip_pool":
			sawPool = true
		}
	}
	assert.True(t, sawMix)
	assert.True(t, sawPool)
}

func TestTipResetMidProtocol(t *testing.T) {
	p, _, _ := runProtocol(t, 96)

	// The 300 uL inventory was reset during the cleanup, so the
	// tracker cannot have consumed its full eight racks.
	assert.Greater(t, p.tips300.ColumnsRemaining(), 0)
}

func TestHeaterShakerSequence(t *testing.T) {
	_, sim, _ := runProtocol(t, 24)

	var temps []float64
	for _, e := range sim.Recorder().Events() {
		if e.Op == "hhs_start_temp_ctrl" {
			temps = append(temps, e.Args["temp"].(float64))
		}
	}
	assert.Equal(t, []float64{37, 65}, temps)
}
