package hyperplus

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

	r := protocol.NewRun("run-hyperplus", layout, sim, ledger, params, nil)
	rn := protocol.NewRunner(nil)
	require.NoError(t, rn.Execute(context.Background(), p, r))
	return p, sim, ledger
}

func TestFullRun(t *testing.T) {
	p, sim, ledger := runProtocol(t, 96)

	assert.InDelta(t, 10.0*96, ledger.TotalWithdrawnUL("FragmentationMasterMix"), 1e-9)
	assert.InDelta(t, 10.0*96, ledger.TotalWithdrawnUL("EndRepairMasterMix"), 1e-9)
	assert.InDelta(t, 20.0*96, ledger.TotalWithdrawnUL("LigationMasterMix"), 1e-9)
	assert.InDelta(t, 2.5*96, ledger.TotalWithdrawnUL("KAPA_Adapters"), 1e-9)
	assert.InDelta(t, 47.0*96, ledger.TotalWithdrawnUL("NucleaseFreeWater"), 1e-9)
	assert.InDelta(t, 25.0*96, ledger.TotalWithdrawnUL("KAPA_HiFi_Mix"), 1e-9)
	assert.InDelta(t, 95.0*96, ledger.TotalWithdrawnUL("KAPA_Pure_Beads"), 1e-9)
	assert.InDelta(t, 800.0*96, ledger.TotalWithdrawnUL("Ethanol80"), 1e-9)

	// Every lid fetched for a cycler run came back.
	assert.Equal(t, 0, p.lidStack.Outstanding())

	var methods []string
	for _, e := range sim.Recorder().Events() {
		if e.Op == "odtc_execute" {
			methods = append(methods, e.Args["method"].(string))
		}
	}
	assert.Equal(t, []string{
		"KAPA_Enzymatic_Fragmentation",
		"KAPA_End_Repair_A_Tailing",
		"KAPA_Library_Amplification",
	}, methods)
}

func TestTipResetsCoverFullPlate(t *testing.T) {
	p, _, _ := runProtocol(t, 96)

	// Both inventories were reset mid-run, so neither ran dry.
	assert.Greater(t, p.tips50.ColumnsRemaining(), 0)
	assert.Greater(t, p.tips300.ColumnsRemaining(), 0)
}

func TestFragmentationTimeSetsPlateau(t *testing.T) {
	m, err := fragmentationMethod(15)
	require.NoError(t, err)
	assert.Equal(t, 15*60+600, m.Duration())

	m, err = fragmentationMethod(30)
	require.NoError(t, err)
	assert.Equal(t, 30*60+600, m.Duration())
}

func TestAmplificationCycles(t *testing.T) {
	m, err := amplificationMethod(8)
	require.NoError(t, err)
	// Denaturation + 8 cycles of 3 + final extension + hold.
	assert.Equal(t, 27, m.StepCount())

	assert.Equal(t, 8, pcrCycles(protocol.Params{PCRCycles: 8}))
	assert.Equal(t, 13, pcrCycles(protocol.Params{InputMassNG: 100}))
}

func TestStepIDsStable(t *testing.T) {
	var ids []string
	for _, s := range New().Steps() {
		ids = append(ids, s.ID)
	}
	assert.Equal(t, []string{
		"initialize",
		"enzymatic_fragmentation",
		"end_repair_a_tailing",
		"adapter_ligation",
		"post_ligation_cleanup",
		"library_amplification",
		"final_cleanup_size_selection",
	}, ids)
}
