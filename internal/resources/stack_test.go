package resources

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prepdeck/internal/deck"
)

func newTestStack(t *testing.T) *StackedResources {
	t.Helper()
	l := newTestLayout(t)
	s, err := FromPrefix("BioRadHardshell_Stack1", "BioRadHardshell_Stack1", 4, deck.KindPlate96, l)
	require.NoError(t, err)
	return s
}

func TestFetchNext_ExactlyNDistinctThenExhausted(t *testing.T) {
	s := newTestStack(t)

	seen := make(map[string]bool)
	for i := 0; i < 4; i++ {
		c, err := s.FetchNext()
		require.NoError(t, err, "fetch %d", i)
		assert.False(t, seen[c.Name], "resource %s returned twice", c.Name)
		seen[c.Name] = true
	}

	_, err := s.FetchNext()
	require.Error(t, err)
	assert.True(t, IsExhausted(err))
}

func TestFetchNext_StackOrder(t *testing.T) {
	s := newTestStack(t)

	first, err := s.FetchNext()
	require.NoError(t, err)
	assert.Equal(t, "BioRadHardshell_Stack1_0001", first.Name)

	second, err := s.FetchNext()
	require.NoError(t, err)
	assert.Equal(t, "BioRadHardshell_Stack1_0002", second.Name)
}

func TestPutBack_ReturnRegionDisjointFromFetched(t *testing.T) {
	s := newTestStack(t)

	a, err := s.FetchNext()
	require.NoError(t, err)
	b, err := s.FetchNext()
	require.NoError(t, err)

	park, err := s.PutBack()
	require.NoError(t, err)
	assert.NotEqual(t, a.Name, park.Name)
	assert.NotEqual(t, b.Name, park.Name)
	assert.Equal(t, "BioRadHardshell_Stack1_0004", park.Name)
}

func TestPutBack_ExhaustedWhenReturnRegionFull(t *testing.T) {
	s := newTestStack(t)

	for i := 0; i < 4; i++ {
		_, err := s.FetchNext()
		require.NoError(t, err)
		_, err = s.PutBack()
		require.NoError(t, err)
	}
	_, err := s.PutBack()
	require.Error(t, err)
	assert.True(t, IsExhausted(err))
}

func TestReset_RestoresInitialFetchBehavior(t *testing.T) {
	s := newTestStack(t)

	first, err := s.FetchNext()
	require.NoError(t, err)
	s.Discard() // plate went to waste

	require.NoError(t, s.Reset())

	again, err := s.FetchNext()
	require.NoError(t, err)
	assert.Same(t, first, again, "first fetch after reset must return the pool's very first resource")
}

func TestReset_RefusesWithOutstandingFetches(t *testing.T) {
	s := newTestStack(t)

	_, err := s.FetchNext()
	require.NoError(t, err)

	err = s.Reset()
	require.Error(t, err)
	assert.True(t, deck.IsConfiguration(err))

	// ResetAll is the unconditional escape hatch.
	s.ResetAll()
	assert.Equal(t, 4, s.Remaining())
	assert.Equal(t, 0, s.Outstanding())
}

func TestFetchNextUnoccupied_ReturnsFreedSlot(t *testing.T) {
	s := newTestStack(t)

	fetched, err := s.FetchNext()
	require.NoError(t, err)

	slot, err := s.FetchNextUnoccupied()
	require.NoError(t, err)
	assert.Same(t, fetched, slot, "the freed slot is the one just fetched")

	// All slots occupied again: nothing unoccupied left.
	_, err = s.FetchNextUnoccupied()
	require.Error(t, err)
	assert.True(t, IsExhausted(err))
}

func TestFromPrefix_CountMismatchIsConfigError(t *testing.T) {
	l := newTestLayout(t)
	_, err := FromPrefix("BioRadHardshell_Stack1", "BioRadHardshell_Stack1", 6, deck.KindPlate96, l)
	require.Error(t, err)
	assert.True(t, deck.IsConfiguration(err))
}

// Exercises spec scenario: trough reagent map, 4-count pool exhaustion,
// reset, and first-resource identity in one flow.
func TestEndToEnd_TroughMapAndPoolLifecycle(t *testing.T) {
	l := newTestLayout(t)

	trough, err := l.Item("RGT_Trough", deck.KindTrough8)
	require.NoError(t, err)
	rt := NewReagentTracked(trough)
	positions, err := rt.AssignReagentMap("WashBuffer", []int{0, 1, 2, 3, 4, 5, 6, 7})
	require.NoError(t, err)
	require.Len(t, positions, 8)

	pool, err := FromPrefix("HSP_Stack", "BioRadHardshell_Stack1", 4, deck.KindPlate96, l)
	require.NoError(t, err)

	var first *deck.Container
	for i := 0; i < 4; i++ {
		c, err := pool.FetchNext()
		require.NoError(t, err)
		if i == 0 {
			first = c
		}
		pool.Discard()
	}

	_, err = pool.FetchNext()
	require.Error(t, err)
	assert.True(t, IsExhausted(err))

	require.NoError(t, pool.Reset())
	again, err := pool.FetchNext()
	require.NoError(t, err)
	assert.Same(t, first, again)
}
