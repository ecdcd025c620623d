package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/seedgraph/internal/ir"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Limit int
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded runs, most recent first",
		Long: `List the runs recorded in the seedgraph_runs journal table.

Use --verbose to print the key allocated for every node path.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}
	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 20, "maximum number of runs (0 for all)")
	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	cfg := opts.Config
	cfg.BootstrapDDL = ""

	ctx, cancel := withTimeout(cmd.Context(), cfg)
	defer cancel()

	st, err := openStore(ctx, cfg)
	if err != nil {
		return fail(f, ExitCommandError, err)
	}
	defer st.Close()

	runs, err := st.ListRuns(ctx, opts.Limit)
	if err != nil {
		return fail(f, ExitCommandError, &LoadError{Code: ErrCodeDatabase, Message: err.Error()})
	}
	if f.JSON() {
		return f.Success(runs)
	}
	if len(runs) == 0 {
		fmt.Fprintln(f.Writer, "No runs recorded")
		return nil
	}

	tw := tabwriter.NewWriter(f.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "APPLIED\tSCENARIO\tINSERTED\tRUN")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", r.AppliedAt.Local().Format(time.DateTime), r.Scenario, r.Inserted, r.ID)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if opts.Verbose {
		for _, r := range runs {
			fmt.Fprintf(f.Writer, "\n%s %s\n", r.Scenario, r.ID)
			res := ir.CommitResult{Keys: r.Keys}
			for _, p := range res.SortedPaths() {
				fmt.Fprintf(f.Writer, "    %s = %s\n", p, ir.Format(r.Keys[p]))
			}
		}
	}
	return nil
}
