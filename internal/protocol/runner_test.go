package protocol

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prepdeck/internal/consumables"
	"prepdeck/internal/deck"
	"prepdeck/internal/instrument"
	"prepdeck/internal/trace"
)

type recordedStep struct {
	seq    int
	stepID string
	status string
}

type memRecorder struct {
	began    bool
	finished bool
	status   string
	steps    []recordedStep
}

func (m *memRecorder) BeginRun(token, protocol, layoutHash string, samples int, startedAt time.Time) error {
	m.began = true
	return nil
}

func (m *memRecorder) RecordStep(token string, seq int, stepID, status, detail string) error {
	m.steps = append(m.steps, recordedStep{seq: seq, stepID: stepID, status: status})
	return nil
}

func (m *memRecorder) FinishRun(token, status, errDetail string, finishedAt time.Time) error {
	m.finished = true
	m.status = status
	return nil
}

func (m *memRecorder) RecordConsumption(token, reagent, container string, requiredUL, withdrawnUL float64) error {
	return nil
}

type fakeProtocol struct {
	steps    []Step
	setupErr error
}

func (f *fakeProtocol) Name() string        { return "fake" }
func (f *fakeProtocol) Description() string { return "test protocol" }
func (f *fakeProtocol) DefaultLayout() (*deck.Layout, error) {
	return deck.NewLayout("fake", map[string]deck.Kind{"P1": deck.KindPlate96})
}
func (f *fakeProtocol) Requirements(Params) []consumables.Requirement { return nil }
func (f *fakeProtocol) Setup(*Run) error                              { return f.setupErr }
func (f *fakeProtocol) Steps() []Step                                 { return f.steps }

func newFakeRun(t *testing.T) *Run {
	t.Helper()
	layout, err := deck.NewLayout("fake", map[string]deck.Kind{"P1": deck.KindPlate96})
	require.NoError(t, err)
	ledger := consumables.NewLedger()
	sim := instrument.NewSimulator(trace.NewRecorder(), ledger)
	params := Params{}
	require.NoError(t, params.Normalize())
	return NewRun("run-1", layout, sim, ledger, params, nil)
}

func stepOK(id string) Step {
	return Step{ID: id, Title: id, Run: func(context.Context, *Run) error { return nil }}
}

func stepFail(id string, err error) Step {
	return Step{ID: id, Title: id, Run: func(context.Context, *Run) error { return err }}
}

func TestExecute_AllStepsSucceed(t *testing.T) {
	rec := &memRecorder{}
	rn := NewRunner(rec)
	p := &fakeProtocol{steps: []Step{stepOK("a"), stepOK("b"), stepOK("c")}}

	err := rn.Execute(context.Background(), p, newFakeRun(t))
	require.NoError(t, err)

	assert.True(t, rec.began)
	assert.True(t, rec.finished)
	assert.Equal(t, StatusOK, rec.status)
	require.Len(t, rec.steps, 3)
	for i, s := range rec.steps {
		assert.Equal(t, i, s.seq)
		assert.Equal(t, StatusOK, s.status)
	}
}

func TestExecute_FirstFailureAbortsAndSkipsRest(t *testing.T) {
	rec := &memRecorder{}
	rn := NewRunner(rec)
	boom := errors.New("tip pickup failed")
	p := &fakeProtocol{steps: []Step{stepOK("a"), stepFail("b", boom), stepOK("c")}}

	err := rn.Execute(context.Background(), p, newFakeRun(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	require.Len(t, rec.steps, 3)
	assert.Equal(t, StatusOK, rec.steps[0].status)
	assert.Equal(t, StatusError, rec.steps[1].status)
	assert.Equal(t, StatusSkipped, rec.steps[2].status)
	assert.Equal(t, StatusError, rec.status)
}

func TestExecute_SetupFailureRunsNoSteps(t *testing.T) {
	rec := &memRecorder{}
	rn := NewRunner(rec)
	p := &fakeProtocol{
		steps:    []Step{stepOK("a")},
		setupErr: errors.New("slot missing"),
	}

	err := rn.Execute(context.Background(), p, newFakeRun(t))
	require.Error(t, err)
	assert.Empty(t, rec.steps)
	assert.Equal(t, StatusError, rec.status)
}

func TestExecute_ContextCancellation(t *testing.T) {
	rec := &memRecorder{}
	rn := NewRunner(rec)
	ctx, cancel := context.WithCancel(context.Background())

	p := &fakeProtocol{steps: []Step{
		{ID: "a", Title: "a", Run: func(context.Context, *Run) error {
			cancel()
			return nil
		}},
		stepOK("b"),
	}}

	err := rn.Execute(ctx, p, newFakeRun(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, rec.steps, 2)
	assert.Equal(t, StatusOK, rec.steps[0].status)
	assert.Equal(t, StatusError, rec.steps[1].status)
}

func TestRegistry_RegisterGetNames(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&fakeProtocol{})

	p, err := reg.Get("fake")
	require.NoError(t, err)
	assert.Equal(t, "fake", p.Name())

	_, err = reg.Get("nope")
	require.Error(t, err)

	assert.Equal(t, []string{"fake"}, reg.Names())
}

func TestRegistry_DuplicatePanics(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&fakeProtocol{})
	assert.Panics(t, func() { reg.Register(&fakeProtocol{}) })
}

func TestFixedGenerator_SequenceThenPanic(t *testing.T) {
	gen := NewFixedGenerator("run-1", "run-2")
	assert.Equal(t, "run-1", gen.Generate())
	assert.Equal(t, "run-2", gen.Generate())
	assert.Panics(t, func() { gen.Generate() })
}

func TestUUIDv7Generator_Unique(t *testing.T) {
	gen := UUIDv7Generator{}
	a, b := gen.Generate(), gen.Generate()
	assert.NotEqual(t, a, b)
	assert.Len(t, a, 36)
}
