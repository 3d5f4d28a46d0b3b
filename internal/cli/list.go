package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"prepdeck/internal/protocol"
)

// ListOptions holds flags for the list command.
type ListOptions struct {
	*RootOptions
}

// protocolInfo is one row of the list output.
type protocolInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Steps       int    `json:"steps"`
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered protocols",
		Long: `List the protocols built into this binary.

Each protocol carries its own default deck layout, consumable
requirement table and step list; the name shown here is what the
run, validate and layout commands accept.

Example:
  prepdeck list
  prepdeck list --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(opts, cmd)
		},
	}

	return cmd
}

func runList(opts *ListOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	var infos []protocolInfo
	for _, name := range protocol.Default.Names() {
		p, err := protocol.Default.Get(name)
		if err != nil {
			return WrapExitError(ExitCommandError, "resolve protocol", err)
		}
		infos = append(infos, protocolInfo{
			Name:        p.Name(),
			Description: p.Description(),
			Steps:       len(p.Steps()),
		})
	}

	if opts.Format == "json" {
		return formatter.Success(infos)
	}

	if len(infos) == 0 {
		fmt.Fprintln(formatter.Writer, "No protocols registered.")
		return nil
	}
	for _, info := range infos {
		fmt.Fprintf(formatter.Writer, "%-12s %2d steps  %s\n", info.Name, info.Steps, info.Description)
	}
	return nil
}
