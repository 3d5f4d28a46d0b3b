package consumables

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prepdeck/internal/deck"
	"prepdeck/internal/resources"
)

func TestRequirement_EndPrepMixScenario(t *testing.T) {
	// 96 samples x 7.5 uL x 1.1 excess - the End Prep Mix sizing.
	req := Requirement{Reagent: "EndPrepMix", PerSampleUL: 7.5, Samples: 96, ExcessFactor: 1.1}
	assert.Equal(t, 792.0, req.TotalUL(), "must be exact, no rounding loss")
}

func TestRequirement_RepeatsAndDefaults(t *testing.T) {
	// Magnetic beads: 50 uL per sample, 3 cleanups, default excess.
	req := Requirement{Reagent: "AMPureBeads", PerSampleUL: 50, Samples: 96, Repeats: 3}
	assert.InDelta(t, 50*96*3*1.1, req.TotalUL(), 1e-9)

	// Zero repeats means one use.
	one := Requirement{Reagent: "ElutionBuffer", PerSampleUL: 15, Samples: 8, ExcessFactor: 1}
	assert.Equal(t, 120.0, one.TotalUL())
}

func testVessel(t *testing.T) *resources.ReagentTracked {
	t.Helper()
	l, err := deck.NewLayout("consumables_test", map[string]deck.Kind{
		"RGT_01": deck.KindReservoir60,
	})
	require.NoError(t, err)
	c, err := l.Item("RGT_01", deck.KindReservoir60)
	require.NoError(t, err)
	return resources.NewReagentTracked(c)
}

func TestLedger_AccumulatesByReagent(t *testing.T) {
	vessel := testVessel(t)
	positions, err := vessel.AssignReagentMap("AMPureBeads", []int{0, 1, 2, 3})
	require.NoError(t, err)

	ledger := NewLedger()
	ledger.TrackedAspirate(vessel, positions, []float64{50, 50, 50, 50})
	ledger.TrackedAspirate(vessel, positions[:2], []float64{25, 25})

	assert.Equal(t, 250.0, ledger.WithdrawnUL("RGT_01", "AMPureBeads"))
	assert.Equal(t, 250.0, ledger.TotalWithdrawnUL("AMPureBeads"))
}

func TestLedger_EntriesDeterministicOrder(t *testing.T) {
	vessel := testVessel(t)
	water, err := vessel.AssignReagentMap("Water", []int{4, 5})
	require.NoError(t, err)
	beads, err := vessel.AssignReagentMap("Beads", []int{0, 1})
	require.NoError(t, err)

	ledger := NewLedger()
	ledger.TrackedAspirate(vessel, water, []float64{10, 10})
	ledger.TrackedAspirate(vessel, beads, []float64{20, 20})

	entries := ledger.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "Beads", entries[0].Reagent)
	assert.Equal(t, "Water", entries[1].Reagent)
}

func TestSummarize_MapsRequirementsToVessels(t *testing.T) {
	vessel := testVessel(t)
	_, err := vessel.AssignReagentMap("EndPrepMix", []int{0})
	require.NoError(t, err)
	_, err = vessel.AssignReagentMap("ElutionBuffer", []int{1})
	require.NoError(t, err)

	rows := Summarize(
		[]*resources.ReagentTracked{vessel},
		[]Requirement{{Reagent: "EndPrepMix", PerSampleUL: 7.5, Samples: 96, ExcessFactor: 1.1}},
		nil,
	)
	require.Len(t, rows, 2)

	assert.Equal(t, "EndPrepMix", rows[0].Reagent)
	assert.Equal(t, "RGT_01", rows[0].Container)
	assert.Equal(t, 792.0, rows[0].RequiredUL)
	assert.Equal(t, 1, rows[0].Wells)

	// Assigned-but-unsized reagent still appears, with zero required.
	assert.Equal(t, "ElutionBuffer", rows[1].Reagent)
	assert.Equal(t, 0.0, rows[1].RequiredUL)
}

func TestFormatSummary_MarksUnassignedReagents(t *testing.T) {
	rows := Summarize(nil, []Requirement{{Reagent: "Ghost", PerSampleUL: 5, Samples: 8}}, nil)
	text := FormatSummary(rows)
	if !strings.Contains(text, "Ghost") || !strings.Contains(text, "(unassigned)") {
		t.Errorf("summary missing unassigned marker:\n%s", text)
	}
}
