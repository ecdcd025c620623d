package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/seedgraph/internal/compiler"
	"github.com/roach88/seedgraph/internal/ir"
	"github.com/roach88/seedgraph/internal/transform"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid     bool                       `json:"valid"`
	Entities  int                        `json:"entities"`
	Errors    []compiler.ValidationError `json:"errors,omitempty"`
	Cycles    []compiler.CycleWarning    `json:"cycles,omitempty"`
	Scenarios []ScenarioCheck            `json:"scenarios,omitempty"`
}

// ScenarioCheck is the planning outcome of one scenario.
type ScenarioCheck struct {
	Name  string `json:"name"`
	Steps int    `json:"steps,omitempty"`
	Code  string `json:"code,omitempty"`
	Path  string `json:"path,omitempty"`
	Error string `json:"error,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the registry and plan every scenario",
		Long: `Compile the registry, run the schema checks and the static cycle
analysis, then plan every scenario in the scenarios directory without
touching the database.

Cycles made only of required relations are errors; other cycles are
reported as warnings.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, cmd)
		},
	}
}

func runValidate(opts *RootOptions, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	cfg := opts.Config

	schema, err := loadSchema(cfg.SchemaDir)
	if err != nil {
		return fail(f, exitForLoad(err), err)
	}
	f.VerboseLog("Compiled %d entities from %s", len(schema.Entities), cfg.SchemaDir)

	transforms := transform.NewRegistry()
	result := ValidationResult{
		Entities: len(schema.Entities),
		Errors:   compiler.Validate(schema, transforms.Has),
		Cycles:   compiler.AnalyzeCycles(schema),
	}
	valid := len(result.Errors) == 0
	for _, c := range result.Cycles {
		if c.Level == "error" {
			valid = false
		}
	}

	if valid {
		checks, err := planScenarios(opts, cmd, schema)
		if err != nil {
			return fail(f, ExitCommandError, err)
		}
		result.Scenarios = checks
		for _, c := range checks {
			if c.Error != "" {
				valid = false
			}
		}
	}
	result.Valid = valid

	if f.JSON() {
		if valid {
			return f.Success(result)
		}
		_ = f.write(&CLIError{Code: firstCode(result), Message: "validation failed"}, result)
		return NewExitError(ExitFailure, "validation failed")
	}
	printValidation(f, result)
	if !valid {
		return NewExitError(ExitFailure, "validation failed")
	}
	return nil
}

// planScenarios plans every scenario found in the scenarios directory. A
// missing directory yields no checks.
func planScenarios(opts *RootOptions, cmd *cobra.Command, schema *ir.Schema) ([]ScenarioCheck, error) {
	dir := opts.Config.ScenariosDir
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		opts.Logger.Debug("no scenarios directory", "dir", dir)
		return nil, nil
	}
	catalog, err := loadCatalog(cmd.Context(), dir)
	if err != nil {
		return nil, err
	}
	eng, err := newEngine(opts, schema, nil)
	if err != nil {
		return nil, err
	}

	sel, _ := catalog.Select(nil)
	checks := make([]ScenarioCheck, 0, len(sel))
	for _, s := range sel {
		check := ScenarioCheck{Name: s.Name()}
		plan, err := eng.Plan(s.Spec)
		if err != nil {
			check.Error = err.Error()
			check.Path = ir.PathOf(err)
			if cause := ir.Cause(err); cause != nil {
				check.Code = string(cause.Code)
			}
		} else {
			check.Steps = len(plan.Steps)
		}
		checks = append(checks, check)
	}
	return checks, nil
}

func exitForLoad(err error) int {
	var le *LoadError
	if errors.As(err, &le) && (le.Code == ErrCodeNotFound || le.Code == ErrCodeNoFiles) {
		return ExitCommandError
	}
	return ExitFailure
}

func firstCode(r ValidationResult) string {
	if len(r.Errors) > 0 {
		return r.Errors[0].Code
	}
	for _, c := range r.Cycles {
		if c.Level == "error" {
			return string(ir.ErrCodeCycle)
		}
	}
	for _, c := range r.Scenarios {
		if c.Code != "" {
			return c.Code
		}
	}
	return ErrCodeGeneric
}

func printValidation(f *OutputFormatter, r ValidationResult) {
	w := f.Writer
	for _, c := range r.Cycles {
		mark := "!"
		if c.Level == "error" {
			mark = "✗"
		}
		fmt.Fprintf(w, "%s %s: %s\n", mark, strings.Join(c.Path, " -> "), c.Message)
	}

	if !r.Valid {
		fmt.Fprintln(w, "✗ Validation failed")
		fmt.Fprintln(w)
		for _, e := range r.Errors {
			fmt.Fprintf(w, "  %s: %s: %s\n", e.Code, e.Field, e.Message)
		}
		for _, c := range r.Scenarios {
			if c.Error != "" {
				fmt.Fprintf(w, "  scenario %s: %s\n", c.Name, c.Error)
			}
		}
		return
	}

	for _, c := range r.Scenarios {
		fmt.Fprintf(w, "✓ scenario %s (%d steps)\n", c.Name, c.Steps)
	}
	fmt.Fprintf(w, "✓ Registry valid (%d entities)\n", r.Entities)
}
