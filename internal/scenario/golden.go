package scenario

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/seedgraph/internal/graph"
	"github.com/roach88/seedgraph/internal/ir"
)

// Planner builds plans without touching storage. *engine.Engine implements it.
type Planner interface {
	Plan(spec ir.GraphSpec) (*graph.Plan, error)
}

func newGoldie(t *testing.T) *goldie.Goldie {
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

// AssertPlanGolden compares the described plan of s against
// testdata/golden/<name>.plan.golden.
//
// To regenerate golden files, run:
//
//	go test ./... -update
func AssertPlanGolden(t *testing.T, p Planner, s *Scenario) error {
	t.Helper()
	plan, err := p.Plan(s.Spec)
	if err != nil {
		return err
	}
	newGoldie(t).Assert(t, s.Name()+".plan", []byte(plan.Describe()))
	return nil
}

// AssertResultGolden compares the key mapping of res, as canonical JSON,
// against testdata/golden/<name>.keys.golden. Keys are only stable with
// deterministic key generators and a fresh database.
func AssertResultGolden(t *testing.T, name string, res *ir.CommitResult) error {
	t.Helper()
	keys := make(map[string]any, len(res.Keys))
	for path, k := range res.Keys {
		keys[path] = k
	}
	data, err := ir.MarshalCanonical(map[string]any{
		"scenario": res.Scenario,
		"inserted": res.Inserted,
		"keys":     keys,
	})
	if err != nil {
		return err
	}
	newGoldie(t).Assert(t, name+".keys", data)
	return nil
}
