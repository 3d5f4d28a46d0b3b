package harness

import (
	"context"
	"fmt"
	"log/slog"

	"prepdeck/internal/consumables"
	"prepdeck/internal/instrument"
	"prepdeck/internal/protocol"
	"prepdeck/internal/trace"
)

// DefaultRunToken is used when a scenario does not pin one. Fixed so
// traces stay byte-identical across runs.
const DefaultRunToken = "scenario-default"

// Run executes a scenario's protocol on the simulator and returns the
// execution artifacts. The returned error covers harness problems
// (unknown protocol, bad layout); a protocol step failure lands in
// Result.RunErr so assertions can inspect the partial run.
func Run(s *Scenario) (*Result, error) {
	p, err := protocol.Default.Get(s.Protocol)
	if err != nil {
		return nil, fmt.Errorf("scenario %q: %w", s.Name, err)
	}
	layout, err := p.DefaultLayout()
	if err != nil {
		return nil, fmt.Errorf("scenario %q: layout: %w", s.Name, err)
	}

	params := protocol.Params{
		Samples:          s.Params.Samples,
		SampleVolumeUL:   s.Params.SampleVolumeUL,
		InputMassNG:      s.Params.InputMassNG,
		PCRCycles:        s.Params.PCRCycles,
		DeviceSimulation: true,
	}
	if err := params.Normalize(); err != nil {
		return nil, fmt.Errorf("scenario %q: params: %w", s.Name, err)
	}

	token := s.RunToken
	if token == "" {
		token = DefaultRunToken
	}

	ledger := consumables.NewLedger()
	recorder := trace.NewRecorder()
	sim := instrument.NewSimulator(recorder, ledger)
	for _, node := range s.OfflineHHSNodes {
		sim.FailHHSNode(node)
	}

	log := slog.New(slog.DiscardHandler)
	run := protocol.NewRun(token, layout, sim, ledger, params, log)
	steps := &stepLog{}
	runErr := protocol.NewRunner(steps).Execute(context.Background(), p, run)

	return &Result{
		Protocol: p.Name(),
		Token:    token,
		Events:   recorder.Events(),
		Ledger:   ledger,
		Steps:    steps.steps,
		RunErr:   runErr,
	}, nil
}

// Verify runs every assertion against the result and collects the
// failures. An empty slice means the scenario passed.
func Verify(result *Result, s *Scenario) []error {
	var errs []error
	for _, assertion := range s.Assertions {
		if err := check(result, assertion); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// RunAndVerify executes a scenario and checks its assertions. The
// common entry point for scenario-driven tests.
func RunAndVerify(s *Scenario) (*Result, []error) {
	result, err := Run(s)
	if err != nil {
		return nil, []error{err}
	}
	return result, Verify(result, s)
}

func check(result *Result, a Assertion) error {
	switch a.Type {
	case AssertTraceContains:
		return assertTraceContains(result.Events, a)
	case AssertTraceOrder:
		return assertTraceOrder(result.Events, a)
	case AssertTraceCount:
		return assertTraceCount(result.Events, a)
	case AssertWithdrawn:
		return assertWithdrawn(result.Ledger, a)
	case AssertStepStatus:
		return assertStepStatus(result.Steps, a)
	default:
		// Unreachable for loaded scenarios; LoadScenario validates
		// types up front.
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}
