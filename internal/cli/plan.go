package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/seedgraph/internal/api"
	"github.com/roach88/seedgraph/internal/scenario"
)

// NewPlanCommand creates the plan command.
func NewPlanCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "plan <scenario|file>",
		Short: "Print the execution plan of a scenario",
		Long: `Parse, order and classify one scenario and print the resulting steps.
Nothing is written.

The argument is a scenario name from the scenarios directory or the path
of a scenario file.`,
		Example: `  seedgraph plan order-with-delivery
  seedgraph plan ./scenarios/order.yml --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(rootOpts, cmd, args[0])
		},
	}
}

func runPlan(opts *RootOptions, cmd *cobra.Command, arg string) error {
	f := opts.formatter(cmd)

	schema, err := loadSchema(opts.Config.SchemaDir)
	if err != nil {
		return fail(f, exitForLoad(err), err)
	}
	s, err := resolveScenario(cmd.Context(), opts.Config.ScenariosDir, arg)
	if err != nil {
		return fail(f, ExitCommandError, err)
	}
	eng, err := newEngine(opts, schema, nil)
	if err != nil {
		return fail(f, ExitFailure, err)
	}

	plan, err := eng.Plan(s.Spec)
	if err != nil {
		_ = f.EngineError(err, nil)
		return WrapExitError(ExitFailure, "plan failed", err)
	}

	if f.JSON() {
		return f.Success(api.NewPlanView(plan))
	}
	fmt.Fprintf(f.Writer, "%s (%s)\n", plan.Scenario, plan.SpecHash[:12])
	fmt.Fprint(f.Writer, plan.Describe())
	return nil
}

// resolveScenario loads arg as a file when it names one, otherwise looks it
// up in the scenarios directory.
func resolveScenario(ctx context.Context, dir, arg string) (*scenario.Scenario, error) {
	if scenario.IsScenarioFile(arg) {
		if _, err := os.Stat(arg); err == nil {
			s, err := scenario.Load(arg)
			if err != nil {
				return nil, &LoadError{Code: ErrCodeScenarioLoad, Message: err.Error()}
			}
			return s, nil
		}
	}
	catalog, err := loadCatalog(ctx, dir)
	if err != nil {
		return nil, err
	}
	sel, err := selectScenarios(catalog, []string{arg})
	if err != nil {
		return nil, err
	}
	return sel[0], nil
}
