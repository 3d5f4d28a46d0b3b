package qiaseq

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

	r := protocol.NewRun("run-qiaseq", layout, sim, ledger, params, nil)
	rn := protocol.NewRunner(nil)
	require.NoError(t, rn.Execute(context.Background(), p, r))
	return p, sim, ledger
}

func TestFullRun(t *testing.T) {
	p, sim, ledger := runProtocol(t, 24)

	assert.InDelta(t, 5.0*24, ledger.TotalWithdrawnUL("FastSelect"), 1e-9)
	assert.InDelta(t, 5.0*24, ledger.TotalWithdrawnUL("RP_Primer_II"), 1e-9)
	assert.InDelta(t, 20.0*24, ledger.TotalWithdrawnUL("First_Strand_Mix"), 1e-9)
	assert.InDelta(t, 20.0*24, ledger.TotalWithdrawnUL("Second_Strand_Mix"), 1e-9)
	assert.InDelta(t, 20.0*24, ledger.TotalWithdrawnUL("ERAT_Mix"), 1e-9)
	assert.InDelta(t, 20.0*24, ledger.TotalWithdrawnUL("Ligation_Mix"), 1e-9)
	assert.InDelta(t, 20.0*24, ledger.TotalWithdrawnUL("SPE_MasterMix"), 1e-9)
	assert.InDelta(t, 25.0*24, ledger.TotalWithdrawnUL("UniversalPCR"), 1e-9)
	// Three bead aliquots, two elution pairs, six ethanol washes.
	assert.InDelta(t, 150.0*24, ledger.TotalWithdrawnUL("QIAseq_Beads"), 1e-9)
	assert.InDelta(t, 111.0*24, ledger.TotalWithdrawnUL("Nuclease_Free_Water"), 1e-9)
	assert.InDelta(t, 1200.0*24, ledger.TotalWithdrawnUL("Ethanol80"), 1e-9)

	// Two PCR plates drawn for the cleanup eluates, every lid back.
	assert.Equal(t, 2, p.hspStack.Remaining())
	assert.Equal(t, 0, p.lidStack.Outstanding())

	var methods []string
	for _, e := range sim.Recorder().Events() {
		if e.Op == "odtc_execute" {
			methods = append(methods, e.Args["method"].(string))
		}
	}
	assert.Equal(t, []string{
		"QIAseq_First_Strand_Synthesis",
		"QIAseq_Second_Strand_Synthesis",
		"QIAseq_End_Repair_A_Tailing",
		"QIAseq_Adapter_Ligation",
		"QIAseq_SPE_Target_Enrichment",
		"QIAseq_Universal_PCR",
	}, methods)
}

func TestMidiStackResetBeforeSecondCleanup(t *testing.T) {
	p, _, _ := runProtocol(t, 24)

	// The second cleanup restocks and resets the MIDI stack, then
	// draws exactly one plate from it.
	assert.Equal(t, 3, p.midiStack.Remaining())
	assert.Greater(t, p.tips300.ColumnsRemaining(), 0)
	assert.Greater(t, p.tips50.ColumnsRemaining(), 0)
}

func TestShakerChoreography(t *testing.T) {
	_, sim, _ := runProtocol(t, 24)

	starts := map[int]int{}
	stops := 0
	for _, e := range sim.Recorder().Events() {
		switch e.Op {
		case "hhs_start_shaker":
			starts[e.Args["node"].(int)]++
		case "hhs_stop_shaker":
			stops++
		}
	}
	// Binding mixes on node 3, elution resuspension on node 5.
	assert.Equal(t, map[int]int{3: 4, 5: 2}, starts)
	assert.Equal(t, 6, stops)
}

func TestOfflineShakerNodesTolerated(t *testing.T) {
	p := New()
	layout, err := p.DefaultLayout()
	require.NoError(t, err)

	ledger := consumables.NewLedger()
	sim := instrument.NewSimulator(trace.NewRecorder(), ledger)
	sim.FailHHSNode(2)
	sim.FailHHSNode(4)
	params := protocol.Params{Samples: 24, DeviceSimulation: true}
	require.NoError(t, params.Normalize())

	r := protocol.NewRun("run-qiaseq-offline", layout, sim, ledger, params, nil)
	require.NoError(t, protocol.NewRunner(nil).Execute(context.Background(), p, r))
}

func TestThermalPrograms(t *testing.T) {
	m, err := firstStrandMethod()
	require.NoError(t, err)
	assert.Equal(t, 5, m.StepCount())
	assert.Equal(t, 4080, m.Duration())

	m, err = speMethod()
	require.NoError(t, err)
	// Denaturation + 6 fixed cycles of 3 + hold.
	assert.Equal(t, 20, m.StepCount())

	m, err = universalPCRMethod(10)
	require.NoError(t, err)
	assert.Equal(t, 33, m.StepCount())
	assert.Equal(t, 3450, m.Duration())

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
		"first_strand_dna_synthesis",
		"second_strand_dna_synthesis",
		"end_repair_a_tailing",
		"adapter_ligation",
		"sample_cleanup_1",
		"spe_target_enrichment",
		"sample_cleanup_2",
		"universal_pcr",
	}, ids)
}
