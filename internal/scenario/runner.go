package scenario

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/seedgraph/internal/ir"
)

// Applier applies one seed document in one transaction.
// *engine.Engine implements it.
type Applier interface {
	ApplyGraph(ctx context.Context, spec ir.GraphSpec) (*ir.CommitResult, error)
}

// Outcome is the result of one applied scenario.
type Outcome struct {
	Scenario string
	Result   *ir.CommitResult
	Err      error
}

// Runner applies scenarios in order.
type Runner struct {
	applier Applier
	logger  *slog.Logger
}

// NewRunner creates a Runner. A nil logger means slog.Default().
func NewRunner(a Applier, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{applier: a, logger: logger}
}

// Run applies each scenario in its own transaction and stops at the first
// failure. Outcomes of every attempted scenario are returned, including the
// failing one; earlier scenarios stay committed.
func (r *Runner) Run(ctx context.Context, scenarios []*Scenario) ([]Outcome, error) {
	outcomes := make([]Outcome, 0, len(scenarios))
	for _, s := range scenarios {
		res, err := r.applier.ApplyGraph(ctx, s.Spec)
		outcomes = append(outcomes, Outcome{Scenario: s.Name(), Result: res, Err: err})
		if err != nil {
			r.logger.Error("scenario failed", "scenario", s.Name(), "path", ir.PathOf(err), "error", err)
			return outcomes, fmt.Errorf("scenario %s: %w", s.Name(), err)
		}
		r.logger.Info("scenario applied", "scenario", s.Name(), "inserted", res.Inserted, "run", res.RunID)
	}
	return outcomes, nil
}
