package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"prepdeck/internal/consumables"
	"prepdeck/internal/deck"
	"prepdeck/internal/protocol"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	ParamsFile string
	Samples    int
	LayoutDir  string
}

// workingVolumeUL is the usable volume per position for each
// container kind. Below the nominal capacity: tubes and troughs need
// dead volume the channels cannot reach.
var workingVolumeUL = map[deck.Kind]float64{
	deck.KindEppiCarrier32:   1500,
	deck.KindFalconCarrier24: 45000,
	deck.KindReservoir60:     7000,
	deck.KindTrough8:         30000,
	deck.KindBulkReservoir:   240000,
	deck.KindPlate96:         150,
}

// fillShortfall flags a reagent whose requirement cannot fit in the
// wells its vessel claims.
type fillShortfall struct {
	Reagent    string  `json:"reagent"`
	Container  string  `json:"container,omitempty"`
	RequiredUL float64 `json:"required_ul"`
	CapacityUL float64 `json:"capacity_ul"`
	Reason     string  `json:"reason"`
}

// validateReport is the JSON payload for the validate command.
type validateReport struct {
	Protocol   string                       `json:"protocol"`
	Layout     string                       `json:"layout"`
	LayoutHash string                       `json:"layout_hash"`
	Samples    int                          `json:"samples"`
	Reagents   []consumables.ReagentSummary `json:"reagents"`
	Shortfalls []fillShortfall              `json:"shortfalls,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <protocol>",
		Short: "Pre-flight a protocol's consumables",
		Long: `Dry-run a protocol on the simulator and check its consumables.

The protocol executes against the in-memory instrument, so the
reported withdrawals are the volumes the real run would take. Each
reagent's requirement is then checked against the working volume of
the wells its vessel claims; a shortfall means the deck as declared
cannot feed the run.

Exit code is 1 when the dry run fails or any reagent falls short.

Example:
  prepdeck validate lsk109 --samples 24
  prepdeck validate qiaseq --params ./params.cue --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.ParamsFile, "params", "", "CUE params file")
	cmd.Flags().IntVar(&opts.Samples, "samples", 0, "sample count override (1-96)")
	cmd.Flags().StringVar(&opts.LayoutDir, "layout-dir", "", "CUE layout directory (overrides the built-in layout)")

	return cmd
}

func runValidate(opts *ValidateOptions, name string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	p, err := protocol.Default.Get(name)
	if err != nil {
		return WrapExitError(ExitCommandError, "unknown protocol", err)
	}
	layout, err := resolveLayout(p, opts.LayoutDir)
	if err != nil {
		return WrapExitError(ExitCommandError, "resolve layout", err)
	}
	params, err := resolveParams(opts.ParamsFile, opts.Samples, true)
	if err != nil {
		return WrapExitError(ExitCommandError, "resolve params", err)
	}
	hash, err := layout.Hash()
	if err != nil {
		return WrapExitError(ExitCommandError, "hash layout", err)
	}

	formatter.VerboseLog("dry-running %s on layout %s with %d samples", p.Name(), layout.Name(), params.Samples)
	art := executeProtocol(cmd.Context(), p, layout, params, "validate", protocol.NopRecorder{}, discardLogger())

	rows := consumables.Summarize(art.Vessels, p.Requirements(params), art.Ledger)
	report := validateReport{
		Protocol:   p.Name(),
		Layout:     layout.Name(),
		LayoutHash: hash,
		Samples:    params.Samples,
		Reagents:   rows,
		Shortfalls: findShortfalls(art, rows),
	}

	if opts.Format == "json" {
		if err := formatter.Success(report); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(formatter.Writer, "Protocol %s, layout %s, %d samples\n", report.Protocol, report.Layout, report.Samples)
		fmt.Fprint(formatter.Writer, consumables.FormatSummary(rows))
		for _, s := range report.Shortfalls {
			fmt.Fprintf(formatter.Writer, "SHORTFALL %s: %s (need %.1f uL, capacity %.1f uL)\n",
				s.Reagent, s.Reason, s.RequiredUL, s.CapacityUL)
		}
	}

	if art.RunErr != nil {
		return WrapExitError(ExitFailure, "dry run failed", art.RunErr)
	}
	if len(report.Shortfalls) > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d reagent(s) short", len(report.Shortfalls)))
	}
	return nil
}

// findShortfalls checks each summary row against the working volume
// of its claimed wells. Rows with a requirement but no vessel are
// shortfalls too: nothing on deck carries that reagent.
func findShortfalls(art *runArtifacts, rows []consumables.ReagentSummary) []fillShortfall {
	kindFor := make(map[string]deck.Kind)
	for _, v := range art.Vessels {
		kindFor[v.Container().Name] = v.Container().Kind
	}

	var out []fillShortfall
	for _, row := range rows {
		if row.RequiredUL == 0 {
			continue
		}
		if row.Container == "" {
			out = append(out, fillShortfall{
				Reagent:    row.Reagent,
				RequiredUL: row.RequiredUL,
				Reason:     "no vessel claims this reagent",
			})
			continue
		}
		capacity := workingVolumeUL[kindFor[row.Container]] * float64(row.Wells)
		if capacity < row.RequiredUL {
			out = append(out, fillShortfall{
				Reagent:    row.Reagent,
				Container:  row.Container,
				RequiredUL: row.RequiredUL,
				CapacityUL: capacity,
				Reason:     fmt.Sprintf("%d well(s) on %s hold too little", row.Wells, row.Container),
			})
		}
	}
	return out
}

// discardLogger silences protocol step logging so command output
// stays parseable. Verbose runs use the run command, which wires
// slog to stderr.
func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
