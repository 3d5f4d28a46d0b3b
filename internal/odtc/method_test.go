package odtc

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prepdeck/internal/deck"
)

func TestCyclesForInput(t *testing.T) {
	cases := []struct {
		massNG float64
		want   int
	}{
		{0.25, 15},
		{50, 15},
		{50.1, 13},
		{250, 13},
		{600, 11},
		{1100, 9},
		{1500, 7},
		{2000, 5},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, CyclesForInput(tc.massNG), "mass %.2f ng", tc.massNG)
	}
}

func TestMethod_FragmentationProgram(t *testing.T) {
	m := NewMethod("fragmentation", "tenx_gex", 50)
	require.NoError(t, m.SetPreMethod(4, 65))
	require.NoError(t, m.AddStep(32, 300, 65))
	require.NoError(t, m.AddStep(65, 1800, 65))
	require.NoError(t, m.AddStep(4, 600, 65))

	assert.Equal(t, 3, m.StepCount())
	assert.Equal(t, 300+1800+600, m.Duration())
}

func TestMethod_PCRCycleExpansion(t *testing.T) {
	m := NewMethod("sample_index_pcr", "tenx_gex", 100)
	require.NoError(t, m.SetPreLid(105))
	require.NoError(t, m.AddStep(98, 45, 105))
	require.NoError(t, m.AddPCRCycle(98, 20, 54, 30, 72, 20, 12))
	require.NoError(t, m.AddFinalExtension(72, 60))
	require.NoError(t, m.AddStep(4, 600, 105))

	assert.Equal(t, 1+12*3+1+1, m.StepCount())
	assert.Equal(t, 45+12*(20+30+20)+60+600, m.Duration())
}

func TestMethod_TempOutOfRange(t *testing.T) {
	m := NewMethod("bad", "test", 50)

	err := m.AddStep(120, 60, 105)
	require.Error(t, err)
	assert.True(t, deck.IsConfiguration(err))

	err = m.SetPreMethod(2, 65)
	require.Error(t, err)
	assert.True(t, deck.IsConfiguration(err))
}

func TestMethod_BadCycleCount(t *testing.T) {
	m := NewMethod("bad", "test", 50)
	err := m.AddPCRCycle(98, 20, 54, 30, 72, 20, 0)
	require.Error(t, err)
	assert.True(t, deck.IsConfiguration(err))
}

func TestMethod_XML(t *testing.T) {
	m := NewMethod("ligation", "tenx_gex", 100)
	require.NoError(t, m.SetPreMethod(20, 30))
	require.NoError(t, m.AddStep(20, 900, 30))
	require.NoError(t, m.AddStep(4, 600, 30))

	out, err := m.XML()
	require.NoError(t, err)
	doc := string(out)

	assert.Contains(t, doc, `<Method name="ligation" creator="tenx_gex" fluidQuantity="100">`)
	assert.Contains(t, doc, `<PreMethod blockTemperature="20" lidTemperature="30">`)
	assert.Contains(t, doc, `plateauTime="900"`)
	assert.Equal(t, 2, strings.Count(doc, "<Step"))
}

func TestMethod_XMLEmptyIsConfigError(t *testing.T) {
	m := NewMethod("empty", "test", 50)
	_, err := m.XML()
	require.Error(t, err)
	assert.True(t, deck.IsConfiguration(err))
}
