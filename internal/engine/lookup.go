package engine

import (
	"context"
	"fmt"

	"github.com/roach88/seedgraph/internal/graph"
	"github.com/roach88/seedgraph/internal/ir"
)

// resolveUnique runs the step's unique predicate. found is false when no row
// matches; more than one match is a CONSTRAINT_VIOLATION because the
// predicate was declared unique.
func resolveUnique(ctx context.Context, tx Tx, step *graph.Step) (key ir.IRValue, found bool, err error) {
	n := step.Node
	keys, err := tx.FindUnique(ctx, n.Entity, step.Op.Predicate)
	if err != nil {
		return nil, false, atPath(err, n)
	}
	switch len(keys) {
	case 0:
		return nil, false, nil
	case 1:
		return keys[0], true, nil
	default:
		return nil, false, ir.NewConstraintViolationError(n.Path, n.Entity.Name,
			fmt.Sprintf("predicate %s on %s matched more than one row", ir.Format(step.Op.Predicate), step.Op.Constraint), nil)
	}
}

// atPath attaches the node path to classified backend errors, which do not
// know it. Other errors are returned unchanged; the abort carries the path.
func atPath(err error, n *graph.Node) error {
	if e := ir.Cause(err); e != nil {
		if e.Path == "" {
			e.Path = n.Path
		}
		if e.Entity == "" {
			e.Entity = n.Entity.Name
		}
	}
	return err
}
