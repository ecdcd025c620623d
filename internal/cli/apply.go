package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/seedgraph/internal/ir"
	"github.com/roach88/seedgraph/internal/scenario"
)

// ApplyReport is the outcome of one scenario in `apply` output.
type ApplyReport struct {
	Scenario  string                `json:"scenario"`
	RunID     string                `json:"run_id,omitempty"`
	Inserted  int                   `json:"inserted"`
	Connected int                   `json:"connected"`
	Fallbacks int                   `json:"fallbacks"`
	Keys      map[string]ir.IRValue `json:"keys,omitempty"`
	Error     string                `json:"error,omitempty"`
}

// NewApplyCommand creates the apply command.
func NewApplyCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "apply [scenario...]",
		Short: "Apply scenarios to the database",
		Long: `Apply scenarios in order, each in its own transaction.

Without arguments the scenarios listed in the config file are applied, or
every scenario in name order when the config lists none. Applying stops
at the first failure; scenarios applied before it stay committed.`,
		Example: `  seedgraph apply genders order-with-delivery
  seedgraph apply --driver pgx --dsn postgres://seed@localhost/seed`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApply(rootOpts, cmd, args)
		},
	}
}

func runApply(opts *RootOptions, cmd *cobra.Command, args []string) error {
	f := opts.formatter(cmd)
	cfg := opts.Config
	logger := opts.Logger

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := withTimeout(ctx, cfg)
	defer cancel()

	schema, err := loadSchema(cfg.SchemaDir)
	if err != nil {
		return fail(f, exitForLoad(err), err)
	}
	catalog, err := loadCatalog(ctx, cfg.ScenariosDir)
	if err != nil {
		return fail(f, ExitCommandError, err)
	}
	names := args
	if len(names) == 0 {
		names = cfg.Scenarios
	}
	selected, err := selectScenarios(catalog, names)
	if err != nil {
		return fail(f, ExitCommandError, err)
	}

	logger.Info("opening database", "driver", cfg.Database.Driver)
	st, err := openStore(ctx, cfg)
	if err != nil {
		return fail(f, ExitCommandError, err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Error("error closing database", "error", err)
		}
	}()

	eng, err := newEngine(opts, schema, st)
	if err != nil {
		return fail(f, ExitFailure, err)
	}

	outcomes, runErr := scenario.NewRunner(eng, logger).Run(ctx, selected)
	reports := make([]ApplyReport, len(outcomes))
	for i, o := range outcomes {
		reports[i] = report(o)
	}

	if runErr != nil {
		if !f.JSON() {
			printReports(f, reports)
		}
		if err := f.EngineError(runErr, reports); err != nil {
			logger.Error("error writing apply failure", "error", err)
		}
		return WrapExitError(ExitFailure, "apply failed", runErr)
	}
	if f.JSON() {
		return f.Success(reports)
	}
	printReports(f, reports)
	return nil
}

func report(o scenario.Outcome) ApplyReport {
	r := ApplyReport{Scenario: o.Scenario}
	if o.Err != nil {
		r.Error = o.Err.Error()
		return r
	}
	r.RunID = o.Result.RunID
	r.Inserted = o.Result.Inserted
	r.Connected = o.Result.Connected
	r.Fallbacks = o.Result.Fallbacks
	r.Keys = o.Result.Keys
	return r
}

func printReports(f *OutputFormatter, reports []ApplyReport) {
	for _, r := range reports {
		if r.Error != "" {
			fmt.Fprintf(f.Writer, "✗ %s\n", r.Scenario)
			continue
		}
		fmt.Fprintf(f.Writer, "✓ %s: %d inserted, %d connected, %d created on miss\n",
			r.Scenario, r.Inserted, r.Connected, r.Fallbacks)
		if f.Verbose {
			res := ir.CommitResult{Keys: r.Keys}
			for _, p := range res.SortedPaths() {
				fmt.Fprintf(f.Writer, "    %s = %s\n", p, ir.Format(r.Keys[p]))
			}
		}
	}
}
