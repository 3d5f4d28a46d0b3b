package instrument

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prepdeck/internal/consumables"
	"prepdeck/internal/deck"
	"prepdeck/internal/resources"
	"prepdeck/internal/trace"
)

type simFixture struct {
	sim     *Simulator
	ledger  *consumables.Ledger
	layout  *deck.Layout
	tips    *resources.TrackedTips
	support *resources.TipSupportTracker
}

func newSimFixture(t *testing.T) *simFixture {
	t.Helper()
	l, err := deck.NewLayout("instrument_test", map[string]deck.Kind{
		"CAR_VIALS_SMALL":   deck.KindEppiCarrier32,
		"RGT_Trough":        deck.KindTrough8,
		"Sample_Plate":      deck.KindPlate96,
		"Dest_Plate":        deck.KindPlate96,
		"MPE_Waste":         deck.KindWaste96,
		"TIP_300ulF_L_0001": deck.KindTip96,
		"TIP_300ulF_L_0002": deck.KindTip96,
		"TipSupport_0001":   deck.KindTip96,
	})
	require.NoError(t, err)

	tips, err := resources.TipsFromPrefix("TIP_300ulF_L", "TIP_300ulF_L", 300, 2, l)
	require.NoError(t, err)
	support, err := l.Item("TipSupport_0001", deck.KindTip96)
	require.NoError(t, err)

	ledger := consumables.NewLedger()
	return &simFixture{
		sim:     NewSimulator(trace.NewRecorder(), ledger),
		ledger:  ledger,
		layout:  l,
		tips:    tips,
		support: resources.NewTipSupportTracker(support),
	}
}

func (f *simFixture) container(t *testing.T, name string, kind deck.Kind) *deck.Container {
	t.Helper()
	c, err := f.layout.Item(name, kind)
	require.NoError(t, err)
	return c
}

func TestPipTransfer_ConsumesOneColumnPerEightChannels(t *testing.T) {
	f := newSimFixture(t)
	src := f.container(t, "RGT_Trough", deck.KindTrough8)
	dst := f.container(t, "Dest_Plate", deck.KindPlate96)

	before := f.tips.ColumnsRemaining()
	err := f.sim.PipTransfer(context.Background(), f.tips,
		deck.Range(src, 8), deck.Range(dst, 20), fill(20, 25), PipetteParams{})
	require.NoError(t, err)

	// 20 dispenses is three 8-channel batches.
	assert.Equal(t, before-3, f.tips.ColumnsRemaining())
}

func TestPipTransfer_OverCapacityFailsBeforeConsuming(t *testing.T) {
	f := newSimFixture(t)
	src := f.container(t, "RGT_Trough", deck.KindTrough8)
	dst := f.container(t, "Dest_Plate", deck.KindPlate96)

	before := f.tips.ColumnsRemaining()
	err := f.sim.PipTransfer(context.Background(), f.tips,
		deck.Range(src, 8), deck.Range(dst, 8), fill(8, 1000), PipetteParams{})
	require.Error(t, err)
	assert.True(t, deck.IsConfiguration(err))
	assert.Equal(t, before, f.tips.ColumnsRemaining())
	assert.Zero(t, f.ledger.TotalWithdrawnUL("Beads"))
}

func TestPipTransfer_AttributesAspiratesToRegisteredVessel(t *testing.T) {
	f := newSimFixture(t)
	trough := f.container(t, "RGT_Trough", deck.KindTrough8)
	dst := f.container(t, "Dest_Plate", deck.KindPlate96)

	vessel := resources.NewReagentTracked(trough)
	_, err := vessel.AssignReagentMap("MasterMix", []int{0, 1, 2, 3, 4, 5, 6, 7})
	require.NoError(t, err)
	f.sim.RegisterVessel(vessel)

	err = f.sim.PipTransfer(context.Background(), f.tips,
		deck.Range(trough, 8), deck.Range(dst, 16), fill(16, 7.5), PipetteParams{})
	require.NoError(t, err)

	assert.InDelta(t, 120.0, f.ledger.TotalWithdrawnUL("MasterMix"), 1e-9)
	assert.InDelta(t, 120.0, f.ledger.WithdrawnUL("RGT_Trough", "MasterMix"), 1e-9)
}

func TestPipTransfer_VolumeCountMismatch(t *testing.T) {
	f := newSimFixture(t)
	src := f.container(t, "RGT_Trough", deck.KindTrough8)
	dst := f.container(t, "Dest_Plate", deck.KindPlate96)

	err := f.sim.PipTransfer(context.Background(), f.tips,
		deck.Range(src, 8), deck.Range(dst, 8), fill(4, 25), PipetteParams{})
	require.Error(t, err)
	assert.True(t, deck.IsConfiguration(err))
}

func TestTransfer96_ReusesParkedRack(t *testing.T) {
	f := newSimFixture(t)
	src := f.container(t, "Sample_Plate", deck.KindPlate96)
	dst := f.container(t, "Dest_Plate", deck.KindPlate96)

	err := f.sim.Transfer96(context.Background(), f.tips, f.support, 96, src, dst, 50, PipetteParams{})
	require.NoError(t, err)
	require.NotNil(t, f.support.SourceRack())
	after := f.tips.ColumnsRemaining()

	// Second stamp reuses the rack on the support instead of drawing
	// a fresh one.
	err = f.sim.MixPlate(context.Background(), f.tips, f.support, 96, dst, 40, 5, PipetteParams{})
	require.NoError(t, err)
	assert.Equal(t, after, f.tips.ColumnsRemaining())
}

func TestTransfer96_DrawsWholeRack(t *testing.T) {
	f := newSimFixture(t)
	src := f.container(t, "Sample_Plate", deck.KindPlate96)
	dst := f.container(t, "Dest_Plate", deck.KindPlate96)

	err := f.sim.Transfer96(context.Background(), f.tips, f.support, 96, src, dst, 50, PipetteParams{})
	require.NoError(t, err)
	assert.Equal(t, resources.ColumnsPerRack, f.tips.ColumnsRemaining())
}

func TestTimer_RecordsInsteadOfSleeping(t *testing.T) {
	f := newSimFixture(t)

	start := time.Now()
	timer := f.sim.StartTimer(5 * time.Minute)
	timer.Wait(false)
	assert.Less(t, time.Since(start), time.Second)

	events := f.sim.Recorder().Events()
	require.Len(t, events, 1)
	assert.Equal(t, "timer_wait", events[0].Op)
	assert.Equal(t, 300, events[0].Args["seconds"])
}

func TestCPACTemperature_ReportsTarget(t *testing.T) {
	f := newSimFixture(t)
	ctx := context.Background()

	require.NoError(t, f.sim.CPACInitialize(ctx, 1))
	require.NoError(t, f.sim.CPACSetTargetTemp(ctx, 1, 1, 4.0))
	require.NoError(t, f.sim.CPACStartTempControl(ctx, 1, 1))

	temp, err := f.sim.CPACTemperature(ctx, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, 4.0, temp)
}

func TestBringUpHeaterShakers_CollectsPartialFailures(t *testing.T) {
	f := newSimFixture(t)
	f.sim.FailHHSNode(3)

	report := BringUpHeaterShakers(context.Background(), f.sim, []int{1, 2, 3, 4, 5})
	assert.False(t, report.AllOk())

	failed := report.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, 3, failed[0].Node)

	// The remaining nodes came up despite the failure.
	var ok int
	for _, r := range report.Results {
		if r.Ok() {
			ok++
		}
	}
	assert.Equal(t, 4, ok)
}

func TestBringUpHeaterShakers_AllHealthy(t *testing.T) {
	f := newSimFixture(t)

	report := BringUpHeaterShakers(context.Background(), f.sim, []int{1, 2})
	assert.True(t, report.AllOk())
	assert.Empty(t, report.Failed())
}
