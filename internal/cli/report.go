package cli

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"prepdeck/internal/store"
)

// ReportOptions holds flags for the report command.
type ReportOptions struct {
	*RootOptions
	Database string
	Limit    int
}

// runReport is the JSON payload for a single-run report.
type runReport struct {
	Run         store.RunRecord        `json:"run"`
	Steps       []store.StepEvent      `json:"steps"`
	Consumption []store.ConsumptionRow `json:"consumption"`
}

// NewReportCommand creates the report command.
func NewReportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "report [token]",
		Short: "Inspect recorded runs",
		Long: `Inspect the run log database.

Without a token, lists recorded runs newest first. With a token,
shows that run's step outcomes and its per-reagent consumption
against requirement.

Example:
  prepdeck report --db ./runs.db
  prepdeck report --db ./runs.db 01920b5e-...`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			token := ""
			if len(args) == 1 {
				token = args[0]
			}
			return runReportCmd(opts, token, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite run log (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "max runs to list (0 = all)")

	return cmd
}

func runReportCmd(opts *ReportOptions, token string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	if _, err := os.Stat(opts.Database); err != nil {
		return WrapExitError(ExitCommandError, "database not found", err)
	}
	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	ctx := cmd.Context()
	if token == "" {
		runs, err := st.ListRuns(ctx, opts.Limit)
		if err != nil {
			return WrapExitError(ExitCommandError, "list runs", err)
		}
		if opts.Format == "json" {
			return formatter.Success(runs)
		}
		if len(runs) == 0 {
			fmt.Fprintln(formatter.Writer, "No runs recorded.")
			return nil
		}
		for _, r := range runs {
			fmt.Fprintf(formatter.Writer, "%s  %-10s %-7s %2d samples  %s\n",
				r.Token, r.Protocol, r.Status, r.Samples, r.StartedAt.Format(time.RFC3339))
		}
		return nil
	}

	run, err := st.ReadRun(ctx, token)
	if err != nil {
		if errors.Is(err, store.ErrRunNotFound) {
			return WrapExitError(ExitCommandError, "run not found", err)
		}
		return WrapExitError(ExitCommandError, "read run", err)
	}
	steps, err := st.ReadSteps(ctx, token)
	if err != nil {
		return WrapExitError(ExitCommandError, "read steps", err)
	}
	consumption, err := st.ReadConsumption(ctx, token)
	if err != nil {
		return WrapExitError(ExitCommandError, "read consumption", err)
	}

	if opts.Format == "json" {
		return formatter.Success(runReport{Run: run, Steps: steps, Consumption: consumption})
	}

	fmt.Fprintf(formatter.Writer, "Run %s\n", run.Token)
	fmt.Fprintf(formatter.Writer, "  protocol: %s\n", run.Protocol)
	fmt.Fprintf(formatter.Writer, "  layout:   %s\n", run.LayoutHash)
	fmt.Fprintf(formatter.Writer, "  samples:  %d\n", run.Samples)
	fmt.Fprintf(formatter.Writer, "  status:   %s\n", run.Status)
	fmt.Fprintf(formatter.Writer, "  started:  %s\n", run.StartedAt.Format(time.RFC3339))
	if !run.FinishedAt.IsZero() {
		fmt.Fprintf(formatter.Writer, "  finished: %s (%s)\n",
			run.FinishedAt.Format(time.RFC3339), run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond))
	}
	if run.Error != "" {
		fmt.Fprintf(formatter.Writer, "  error:    %s\n", run.Error)
	}

	fmt.Fprintln(formatter.Writer, "Steps:")
	for _, s := range steps {
		fmt.Fprintf(formatter.Writer, "  %2d %-28s %s", s.Seq, s.StepID, s.Status)
		if s.Detail != "" {
			fmt.Fprintf(formatter.Writer, "  %s", s.Detail)
		}
		fmt.Fprintln(formatter.Writer)
	}

	if len(consumption) > 0 {
		fmt.Fprintln(formatter.Writer, "Consumption:")
		for _, c := range consumption {
			fmt.Fprintf(formatter.Writer, "  %-24s %-24s required %10.1f uL  withdrawn %10.1f uL\n",
				c.Reagent, c.Container, c.RequiredUL, c.WithdrawnUL)
		}
	}
	return nil
}
