package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"prepdeck/internal/consumables"
	"prepdeck/internal/protocol"
	"prepdeck/internal/store"
	"prepdeck/internal/trace"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database   string
	ParamsFile string
	Samples    int
	LayoutDir  string
	TraceFile  string
	Live       bool

	// TokenGenerator allows overriding the run token generator (for
	// testing). If nil, defaults to UUIDv7Generator.
	TokenGenerator protocol.TokenGenerator
}

// runResult is the JSON payload for the run command.
type runResult struct {
	Token      string                       `json:"token"`
	Protocol   string                       `json:"protocol"`
	Layout     string                       `json:"layout"`
	LayoutHash string                       `json:"layout_hash"`
	Samples    int                          `json:"samples"`
	Status     string                       `json:"status"`
	Events     int                          `json:"events"`
	Reagents   []consumables.ReagentSummary `json:"reagents"`
	Error      string                       `json:"error,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <protocol>",
		Short: "Execute a protocol on the simulator",
		Long: `Execute a protocol end to end on the in-memory instrument.

Every step outcome and reagent withdrawal is written to the run log
database under a fresh run token. Pass --trace to also write the
canonical device trace, which is byte-stable for a given protocol,
layout and params.

Device waits are skipped by default; pass --live to honor incubation
and shaker timers in wall-clock time.

Example:
  prepdeck run lsk109 --db ./runs.db --samples 24
  prepdeck run qiaseq --db ./runs.db --params ./params.cue --trace ./qiaseq.trace.json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProtocol(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite run log (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.ParamsFile, "params", "", "CUE params file")
	cmd.Flags().IntVar(&opts.Samples, "samples", 0, "sample count override (1-96)")
	cmd.Flags().StringVar(&opts.LayoutDir, "layout-dir", "", "CUE layout directory (overrides the built-in layout)")
	cmd.Flags().StringVar(&opts.TraceFile, "trace", "", "write the canonical trace snapshot to this file")
	cmd.Flags().BoolVar(&opts.Live, "live", false, "honor device timers in wall-clock time")

	return cmd
}

func runProtocol(opts *RunOptions, name string, cmd *cobra.Command) error {
	// Configure logging based on verbose flag
	logLevel := slog.LevelInfo
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: logLevel,
	}))

	p, err := protocol.Default.Get(name)
	if err != nil {
		return WrapExitError(ExitCommandError, "unknown protocol", err)
	}
	layout, err := resolveLayout(p, opts.LayoutDir)
	if err != nil {
		return WrapExitError(ExitCommandError, "resolve layout", err)
	}
	params, err := resolveParams(opts.ParamsFile, opts.Samples, !opts.Live)
	if err != nil {
		return WrapExitError(ExitCommandError, "resolve params", err)
	}
	hash, err := layout.Hash()
	if err != nil {
		return WrapExitError(ExitCommandError, "hash layout", err)
	}

	log.Info("opening run log", "path", opts.Database)
	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()

	tokenGen := opts.TokenGenerator
	if tokenGen == nil {
		tokenGen = protocol.UUIDv7Generator{}
	}
	token := tokenGen.Generate()

	log.Info("run starting", "protocol", p.Name(), "token", token, "samples", params.Samples)
	art := executeProtocol(cmd.Context(), p, layout, params, token, st, log)

	// The runner records withdrawals with required_ul 0; fold the
	// requirement totals into the same rows so a report shows both
	// sides without recomputing them.
	rows := consumables.Summarize(art.Vessels, p.Requirements(params), art.Ledger)
	for _, row := range rows {
		if row.Container == "" {
			continue
		}
		if err := st.RecordConsumption(token, row.Reagent, row.Container, row.RequiredUL, row.WithdrawnUL); err != nil {
			return WrapExitError(ExitCommandError, "record consumption", err)
		}
	}

	if opts.TraceFile != "" {
		snap := &trace.Snapshot{
			Protocol: p.Name(),
			RunToken: token,
			Events:   art.Recorder.Events(),
		}
		data, err := trace.MarshalSnapshot(snap)
		if err != nil {
			return WrapExitError(ExitCommandError, "marshal trace", err)
		}
		if err := os.WriteFile(opts.TraceFile, data, 0o644); err != nil {
			return WrapExitError(ExitCommandError, "write trace", err)
		}
		log.Info("trace written", "path", opts.TraceFile, "events", art.Recorder.Len())
	}

	result := runResult{
		Token:      token,
		Protocol:   p.Name(),
		Layout:     layout.Name(),
		LayoutHash: hash,
		Samples:    params.Samples,
		Status:     protocol.StatusOK,
		Events:     art.Recorder.Len(),
		Reagents:   rows,
	}
	if art.RunErr != nil {
		result.Status = protocol.StatusError
		result.Error = art.RunErr.Error()
	}

	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
	if opts.Format == "json" {
		if err := formatter.Success(result); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(formatter.Writer, "Run %s: %s (%s, %d samples, %d device ops)\n",
			result.Token, result.Status, result.Protocol, result.Samples, result.Events)
		fmt.Fprint(formatter.Writer, consumables.FormatSummary(rows))
	}

	if art.RunErr != nil {
		return WrapExitError(ExitFailure, "run failed", art.RunErr)
	}
	return nil
}
