package tenxgex

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

	r := protocol.NewRun("run-tenxgex", layout, sim, ledger, params, nil)
	rn := protocol.NewRunner(nil)
	require.NoError(t, rn.Execute(context.Background(), p, r))
	return p, sim, ledger
}

func TestFullRun(t *testing.T) {
	p, sim, ledger := runProtocol(t, 24)

	// Per-sample draws across the whole run.
	assert.InDelta(t, 118.0*24, ledger.TotalWithdrawnUL("BufferEB"), 1e-9)
	assert.InDelta(t, 5.0*24, ledger.TotalWithdrawnUL("FragmentationBuffer"), 1e-9)
	assert.InDelta(t, 10.0*24, ledger.TotalWithdrawnUL("FragmentationEnzyme"), 1e-9)
	assert.InDelta(t, 191.0*24, ledger.TotalWithdrawnUL("SPRIselect"), 1e-9)
	assert.InDelta(t, 50.0*24, ledger.TotalWithdrawnUL("LibraryAmpMix"), 1e-9)
	assert.InDelta(t, 1010.0*24, ledger.TotalWithdrawnUL("Ethanol80"), 1e-9)

	// Five PCR plates over the run, the last holding the libraries.
	assert.Equal(t, 0, p.hspStack.Remaining())
	// The MIDI stack was reset mid-run and serves two more plates.
	assert.Equal(t, 1, p.midiStack.Remaining())
	// Every lid fetched came back.
	assert.Equal(t, 0, p.lidStack.Outstanding())

	var methods []string
	for _, e := range sim.Recorder().Events() {
		if e.Op == "odtc_execute" {
			methods = append(methods, e.Args["method"].(string))
		}
	}
	assert.Equal(t, []string{
		"10x_fragmentation",
		"10x_adapter_ligation",
		"10x_sample_index_pcr",
	}, methods)
}

func TestMasterMixScaledByExcess(t *testing.T) {
	// int(24 * 1.1) = 26 reactions worth of mix.
	_, _, ledger := runProtocol(t, 24)

	assert.InDelta(t, 40.0*26, ledger.TotalWithdrawnUL("LigationMix"), 1e-9)
	assert.InDelta(t, 10.0*26, ledger.TotalWithdrawnUL("DNALigase"), 1e-9)
	assert.InDelta(t, 50.0*24, ledger.TotalWithdrawnUL("LigationMasterMix"), 1e-9)
}

func TestBeadStagingOverlapsCycler(t *testing.T) {
	_, sim, _ := runProtocol(t, 8)

	events := sim.Recorder().Events()
	firstExecute, firstWait := -1, -1
	for i, e := range events {
		switch e.Op {
		case "odtc_execute":
			if firstExecute < 0 {
				firstExecute = i
			}
		case "odtc_wait_for_idle":
			if firstWait < 0 {
				firstWait = i
			}
		}
	}
	require.GreaterOrEqual(t, firstExecute, 0)
	require.Greater(t, firstWait, firstExecute)

	// The bead aliquot goes out while the fragmentation program is
	// still running.
	staged := false
	for _, e := range events[firstExecute:firstWait] {
		if e.Op == "multi_dispense" {
			staged = true
		}
	}
	assert.True(t, staged)
}

func TestPCRCyclesResolution(t *testing.T) {
	assert.Equal(t, 12, pcrCycles(protocol.Params{PCRCycles: 12}))
	assert.Equal(t, 11, pcrCycles(protocol.Params{InputMassNG: 300}))
	assert.Equal(t, 15, pcrCycles(protocol.Params{}))
}

func TestThermalPrograms(t *testing.T) {
	frag, err := fragmentationMethod()
	require.NoError(t, err)
	assert.Equal(t, 3, frag.StepCount())
	assert.Equal(t, 2700, frag.Duration())

	lig, err := ligationMethod()
	require.NoError(t, err)
	assert.Equal(t, 2, lig.StepCount())

	pcr, err := sampleIndexMethod(12)
	require.NoError(t, err)
	// Denaturation + 12 cycles of 3 + final extension + hold.
	assert.Equal(t, 39, pcr.StepCount())
}

func TestStepIDsStable(t *testing.T) {
	var ids []string
	for _, s := range New().Steps() {
		ids = append(ids, s.ID)
	}
	assert.Equal(t, []string{
		"initialize",
		"fragmentation_end_repair_atailing",
		"post_fragmentation_spriselect",
		"adapter_ligation",
		"post_ligation_cleanup",
		"sample_index_pcr",
		"final_size_selection",
	}, ids)
}
