package engine

import (
	"context"
	"fmt"
	"strconv"

	"github.com/roach88/seedgraph/internal/graph"
	"github.com/roach88/seedgraph/internal/ir"
)

// Apply executes a classified plan inside one transaction.
//
// Steps run in plan order; the context is checked before each one. The first
// failure rolls the transaction back and is returned as a TRANSACTION_ABORT
// error wrapping the cause, with the failing node's path. Nothing the plan
// wrote survives a failed call.
//
// Apply writes keys into the plan's nodes. Keys from an earlier call are
// cleared first, so a plan can be applied again.
func (e *Engine) Apply(ctx context.Context, plan *graph.Plan) (*ir.CommitResult, error) {
	plan.Reset()
	res := &ir.CommitResult{
		RunID:    e.runIDs.Generate(),
		Scenario: plan.Scenario,
		SpecHash: plan.SpecHash,
		Keys:     make(map[string]ir.IRValue, len(plan.Steps)),
	}
	log := e.logger.With("run", res.RunID, "scenario", plan.Scenario)

	if err := ctx.Err(); err != nil {
		return nil, ir.NewTransactionAbortError(err)
	}
	tx, err := e.backend.Begin(ctx)
	if err != nil {
		return nil, ir.NewTransactionAbortError(fmt.Errorf("begin: %w", err))
	}
	log.Debug("transaction opened", "steps", len(plan.Steps))

	for i, step := range plan.Steps {
		if err := ctx.Err(); err != nil {
			return nil, e.abort(ctx, tx, step, fmt.Errorf("step %d: %w", i+1, err))
		}
		if err := e.execute(ctx, tx, step, res); err != nil {
			return nil, e.abort(ctx, tx, step, err)
		}
		log.Debug("step applied",
			"step", i+1,
			"kind", step.Op.Kind,
			"path", step.Node.Path,
			"key", ir.Format(step.Node.Key),
		)
	}

	if e.journal {
		if j, ok := tx.(Journal); ok {
			rec := ir.RunRecord{
				ID:         res.RunID,
				Scenario:   res.Scenario,
				SpecHash:   res.SpecHash,
				SchemaHash: e.schemaHash,
				Inserted:   res.Inserted,
				AppliedAt:  e.now().UTC(),
				Keys:       res.Keys,
			}
			if err := j.RecordRun(ctx, rec); err != nil {
				return nil, e.abort(ctx, tx, nil, fmt.Errorf("record run: %w", err))
			}
		}
	}

	if err := tx.Commit(); err != nil {
		log.Error("commit failed", "error", err)
		return nil, ir.NewTransactionAbortError(fmt.Errorf("commit: %w", err))
	}
	log.Info("graph applied",
		"inserted", res.Inserted,
		"connected", res.Connected,
		"fallbacks", res.Fallbacks,
	)
	return res, nil
}

// abort rolls back and wraps cause. A rollback failure is logged; the
// original cause is what the caller needs.
func (e *Engine) abort(ctx context.Context, tx Tx, step *graph.Step, cause error) error {
	if err := tx.Rollback(); err != nil {
		e.logger.ErrorContext(ctx, "rollback failed", "error", err)
	}
	abortErr := ir.NewTransactionAbortError(cause)
	if step != nil {
		if abortErr.Path == "" {
			abortErr.Path = step.Node.Path
		}
		abortErr.Entity = step.Node.Entity.Name
	}
	e.logger.ErrorContext(ctx, "transaction rolled back", "path", abortErr.Path, "error", cause)
	return abortErr
}

func (e *Engine) execute(ctx context.Context, tx Tx, step *graph.Step, res *ir.CommitResult) error {
	n := step.Node
	switch step.Op.Kind {
	case graph.KindInsert:
		key, err := e.insert(ctx, tx, step)
		if err != nil {
			return err
		}
		backfill(n, key)
		res.Inserted++

	case graph.KindLookup:
		key, found, err := resolveUnique(ctx, tx, step)
		if err != nil {
			return err
		}
		if !found {
			return ir.NewUniqueNotFoundError(n.Path, n.Entity.Name, step.Op.Predicate)
		}
		backfill(n, key)
		res.Connected++

	case graph.KindLookupOrInsert:
		key, found, err := resolveUnique(ctx, tx, step)
		if err != nil {
			return err
		}
		if found {
			res.Connected++
		} else {
			if key, err = e.insert(ctx, tx, step); err != nil {
				return err
			}
			res.Fallbacks++
			res.Inserted++
		}
		backfill(n, key)

	case graph.KindBatchInsert:
		keys, err := e.insertMany(ctx, tx, step)
		if err != nil {
			return err
		}
		n.Keys = keys
		for i, k := range keys {
			res.Keys[n.Path+"["+strconv.Itoa(i)+"]"] = k
		}
		res.Inserted += len(keys)
		return nil

	default:
		return ir.NewPlanOrderingError(n.Path, n.Entity.Name, nil)
	}

	res.Keys[n.Path] = n.Key
	return nil
}

func (e *Engine) insert(ctx context.Context, tx Tx, step *graph.Step) (ir.IRValue, error) {
	n := step.Node
	values := step.Op.Values.Clone()
	if values == nil {
		values = ir.IRObject{}
	}
	if err := slotValues(n, values); err != nil {
		return nil, err
	}
	e.allocateKey(n.Entity, values)

	key, err := tx.Insert(ctx, n.Entity, values)
	if err != nil {
		return nil, atPath(err, n)
	}
	return key, nil
}

func (e *Engine) insertMany(ctx context.Context, tx Tx, step *graph.Step) ([]ir.IRValue, error) {
	n := step.Node
	rows := make([]ir.IRObject, len(step.Op.Rows))
	for i, row := range step.Op.Rows {
		values := row.Clone()
		if values == nil {
			values = ir.IRObject{}
		}
		if err := slotValues(n, values); err != nil {
			return nil, err
		}
		e.allocateKey(n.Entity, values)
		rows[i] = values
	}

	keys, err := tx.InsertMany(ctx, n.Entity, rows)
	if err != nil {
		return nil, atPath(err, n)
	}
	if len(keys) != len(rows) {
		return nil, fmt.Errorf("insert %s: backend returned %d keys for %d rows", n.Entity.Name, len(keys), len(rows))
	}
	return keys, nil
}
