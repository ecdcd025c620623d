package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// ScenarioInfo describes one catalog entry.
type ScenarioInfo struct {
	Name        string `json:"name"`
	File        string `json:"file"`
	Description string `json:"description,omitempty"`
	Roots       int    `json:"roots"`
}

// NewScenariosCommand creates the scenarios command.
func NewScenariosCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "scenarios",
		Short: "List the scenarios in the scenarios directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			catalog, err := loadCatalog(cmd.Context(), rootOpts.Config.ScenariosDir)
			if err != nil {
				return fail(f, ExitCommandError, err)
			}

			sel, _ := catalog.Select(nil)
			infos := make([]ScenarioInfo, len(sel))
			for i, s := range sel {
				infos[i] = ScenarioInfo{Name: s.Name(), File: s.Path, Description: s.Spec.Description, Roots: len(s.Spec.Graph)}
			}
			if f.JSON() {
				return f.Success(infos)
			}

			tw := tabwriter.NewWriter(f.Writer, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tROOTS\tFILE\tDESCRIPTION")
			for _, in := range infos {
				fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", in.Name, in.Roots, in.File, in.Description)
			}
			return tw.Flush()
		},
	}
}
