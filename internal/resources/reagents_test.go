package resources

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prepdeck/internal/deck"
)

func newTestLayout(t *testing.T) *deck.Layout {
	t.Helper()
	l, err := deck.NewLayout("resources_test", map[string]deck.Kind{
		"CAR_VIALS_SMALL":             deck.KindEppiCarrier32,
		"RGT_01":                      deck.KindReservoir60,
		"RGT_Trough":                  deck.KindTrough8,
		"BioRadHardshell_Stack1_0001": deck.KindPlate96,
		"BioRadHardshell_Stack1_0002": deck.KindPlate96,
		"BioRadHardshell_Stack1_0003": deck.KindPlate96,
		"BioRadHardshell_Stack1_0004": deck.KindPlate96,
		"TIP_50ulF_L_0001":            deck.KindTip96,
		"TIP_50ulF_L_0002":            deck.KindTip96,
		"TipSupport_0001":             deck.KindTip96,
	})
	require.NoError(t, err)
	return l
}

func TestAssignReagentMap_ReturnsClaimedIndicesInOrder(t *testing.T) {
	l := newTestLayout(t)
	c, err := l.Item("CAR_VIALS_SMALL", deck.KindEppiCarrier32)
	require.NoError(t, err)
	rt := NewReagentTracked(c)

	positions, err := rt.AssignReagentMap("AdapterMix", []int{5, 2, 9})
	require.NoError(t, err)
	require.Len(t, positions, 3)
	assert.Equal(t, 5, positions[0].Index)
	assert.Equal(t, 2, positions[1].Index)
	assert.Equal(t, 9, positions[2].Index)
	for _, p := range positions {
		assert.Same(t, c, p.Container)
	}
}

func TestAssignReagentMap_DisjointReagentsCoexist(t *testing.T) {
	l := newTestLayout(t)
	c, err := l.Item("RGT_01", deck.KindReservoir60)
	require.NoError(t, err)
	rt := NewReagentTracked(c)

	beads, err := rt.AssignReagentMap("AMPureBeads", []int{0, 1, 2, 3})
	require.NoError(t, err)
	water, err := rt.AssignReagentMap("NucleaseFreeWater", []int{4, 5, 6, 7})
	require.NoError(t, err)

	assert.Len(t, beads, 4)
	assert.Len(t, water, 4)

	name, ok := rt.ReagentAt(2)
	require.True(t, ok)
	assert.Equal(t, "AMPureBeads", name)
}

func TestAssignReagentMap_OverlapRejected(t *testing.T) {
	l := newTestLayout(t)
	c, err := l.Item("RGT_01", deck.KindReservoir60)
	require.NoError(t, err)
	rt := NewReagentTracked(c)

	_, err = rt.AssignReagentMap("QIAseqBeads", []int{0, 1, 2, 3, 4, 5, 6, 7})
	require.NoError(t, err)

	_, err = rt.AssignReagentMap("NucleaseFreeWater", []int{0, 1, 2, 3, 4, 5, 6, 7})
	require.Error(t, err)
	assert.True(t, deck.IsConfiguration(err))
	// The failed claim must not have recorded anything.
	assert.Nil(t, rt.Positions("NucleaseFreeWater"))
}

func TestAssignReagentMap_IndexOutOfRange(t *testing.T) {
	l := newTestLayout(t)
	c, err := l.Item("RGT_Trough", deck.KindTrough8)
	require.NoError(t, err)
	rt := NewReagentTracked(c)

	_, err = rt.AssignReagentMap("Ethanol", []int{7, 8})
	require.Error(t, err)
	assert.True(t, deck.IsConfiguration(err))
}

func TestAssignReagentMap_EmptyIndicesRejected(t *testing.T) {
	l := newTestLayout(t)
	c, err := l.Item("RGT_Trough", deck.KindTrough8)
	require.NoError(t, err)
	rt := NewReagentTracked(c)

	_, err = rt.AssignReagentMap("Ethanol", nil)
	require.Error(t, err)
	assert.True(t, deck.IsConfiguration(err))
}
