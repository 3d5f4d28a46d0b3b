package cli

import (
	"context"
	"log/slog"

	"prepdeck/internal/consumables"
	"prepdeck/internal/deck"
	"prepdeck/internal/instrument"
	"prepdeck/internal/protocol"
	"prepdeck/internal/resources"
	"prepdeck/internal/trace"
)

// runArtifacts is everything one simulated execution leaves behind:
// the trace, the volume ledger, the vessels the protocol registered
// and the step error if a step failed. Bookkeeping (run log rows,
// ledger totals) is complete even when RunErr is set.
type runArtifacts struct {
	Protocol protocol.Protocol
	Layout   *deck.Layout
	Params   protocol.Params
	Token    string
	Ledger   *consumables.Ledger
	Recorder *trace.Recorder
	Vessels  []*resources.ReagentTracked
	RunErr   error
}

// vesselCollector wraps the simulator so the CLI can see which
// vessels a protocol's Setup registered. The summary report needs the
// reagent-to-container mapping and the controller interface does not
// expose it back.
type vesselCollector struct {
	*instrument.Simulator
	vessels []*resources.ReagentTracked
}

func (c *vesselCollector) RegisterVessel(v *resources.ReagentTracked) {
	c.vessels = append(c.vessels, v)
	c.Simulator.RegisterVessel(v)
}

// resolveLayout picks the deck definition for a run: the protocol's
// built-in layout, or a CUE layout directory when one is given.
func resolveLayout(p protocol.Protocol, dir string) (*deck.Layout, error) {
	if dir == "" {
		return p.DefaultLayout()
	}
	result, errs := deck.Load(dir, deck.LoadModeFailFast)
	if len(errs) > 0 {
		return nil, errs[0]
	}
	return result.Layout, nil
}

// resolveParams merges the params file with command-line overrides
// and normalizes the result. A samples flag of 0 means "no override".
func resolveParams(paramsPath string, samples int, simulate bool) (protocol.Params, error) {
	var params protocol.Params
	if paramsPath != "" {
		loaded, err := protocol.LoadParams(paramsPath)
		if err != nil {
			return protocol.Params{}, err
		}
		params = loaded
	}
	if samples > 0 {
		params.Samples = samples
	}
	if simulate {
		params.DeviceSimulation = true
	}
	if err := params.Normalize(); err != nil {
		return protocol.Params{}, err
	}
	return params, nil
}

// executeProtocol runs one protocol end to end on the simulator and
// returns the artifacts. A setup or step failure comes back in
// RunErr rather than as the function error so callers can still
// report the partial trace and ledger.
func executeProtocol(ctx context.Context, p protocol.Protocol, layout *deck.Layout, params protocol.Params, token string, rec protocol.RunRecorder, log *slog.Logger) *runArtifacts {
	ledger := consumables.NewLedger()
	recorder := trace.NewRecorder()
	ctrl := &vesselCollector{Simulator: instrument.NewSimulator(recorder, ledger)}

	run := protocol.NewRun(token, layout, ctrl, ledger, params, log)
	err := protocol.NewRunner(rec).Execute(ctx, p, run)

	return &runArtifacts{
		Protocol: p,
		Layout:   layout,
		Params:   params,
		Token:    token,
		Ledger:   ledger,
		Recorder: recorder,
		Vessels:  ctrl.vessels,
		RunErr:   err,
	}
}
