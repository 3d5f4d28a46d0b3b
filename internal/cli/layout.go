package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"prepdeck/internal/deck"
	"prepdeck/internal/protocol"
)

// LayoutOptions holds flags for the layout command.
type LayoutOptions struct {
	*RootOptions
	Dir string
}

// slotInfo is one deck position in the layout output.
type slotInfo struct {
	Slot      string `json:"slot"`
	Kind      string `json:"kind"`
	Positions int    `json:"positions"`
}

// layoutReport is the JSON payload for the layout command.
type layoutReport struct {
	Name  string     `json:"name"`
	Hash  string     `json:"hash"`
	Slots []slotInfo `json:"slots"`
}

// NewLayoutCommand creates the layout command.
func NewLayoutCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LayoutOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "layout <protocol>",
		Short: "Show a protocol's deck layout",
		Long: `Show the deck layout a protocol runs against.

By default this prints the protocol's built-in layout. With --dir it
loads a CUE layout directory instead, reporting every problem in the
directory rather than stopping at the first, so an operator can fix a
deck definition in one pass.

Example:
  prepdeck layout lsk109
  prepdeck layout qiaseq --dir ./decks/qiaseq`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLayout(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Dir, "dir", "", "CUE layout directory (overrides the built-in layout)")

	return cmd
}

func runLayout(opts *LayoutOptions, name string, cmd *cobra.Command) error {
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

	var layout *deck.Layout
	if opts.Dir != "" {
		result, errs := deck.Load(opts.Dir, deck.LoadModeCollectAll)
		if len(errs) > 0 {
			details := make([]string, len(errs))
			for i, e := range errs {
				details[i] = e.Error()
			}
			_ = formatter.Error("E201", fmt.Sprintf("layout directory has %d problem(s)", len(errs)), details)
			return NewExitError(ExitFailure, "layout directory invalid")
		}
		formatter.VerboseLog("loaded %d CUE file(s) from %s", result.FileCount, opts.Dir)
		layout = result.Layout
	} else {
		layout, err = p.DefaultLayout()
		if err != nil {
			return WrapExitError(ExitCommandError, "build default layout", err)
		}
	}

	hash, err := layout.Hash()
	if err != nil {
		return WrapExitError(ExitCommandError, "hash layout", err)
	}

	report := layoutReport{Name: layout.Name(), Hash: hash}
	for _, slot := range layout.Slots() {
		c, _ := layout.Slot(slot)
		report.Slots = append(report.Slots, slotInfo{
			Slot:      c.Name,
			Kind:      string(c.Kind),
			Positions: c.Positions(),
		})
	}

	if opts.Format == "json" {
		return formatter.Success(report)
	}

	fmt.Fprintf(formatter.Writer, "Layout %s (%d slots)\n", report.Name, len(report.Slots))
	fmt.Fprintf(formatter.Writer, "Hash: %s\n", report.Hash)
	for _, s := range report.Slots {
		fmt.Fprintf(formatter.Writer, "  %-32s %-16s %3d positions\n", s.Slot, s.Kind, s.Positions)
	}
	return nil
}
