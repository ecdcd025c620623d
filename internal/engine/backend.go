package engine

import (
	"context"

	"github.com/roach88/seedgraph/internal/ir"
)

// Backend opens transactions on the target database.
type Backend interface {
	Begin(ctx context.Context) (Tx, error)
}

// Tx is one storage transaction. It is used by a single goroutine.
type Tx interface {
	// Insert writes one row and returns its primary key. For autoincrement
	// entities the key is generated by the database; otherwise values
	// already carry it.
	Insert(ctx context.Context, et *ir.EntityType, values ir.IRObject) (ir.IRValue, error)

	// InsertMany writes rows in order and returns one key per row.
	InsertMany(ctx context.Context, et *ir.EntityType, rows []ir.IRObject) ([]ir.IRValue, error)

	// FindUnique returns the keys of at most two rows matching the
	// predicate exactly. Two results mean the predicate is not unique in
	// the data.
	FindUnique(ctx context.Context, et *ir.EntityType, predicate ir.IRObject) ([]ir.IRValue, error)

	Commit() error
	Rollback() error
}

// Journal is implemented by transactions that can record a run inside the
// same transaction as its writes.
type Journal interface {
	RecordRun(ctx context.Context, rec ir.RunRecord) error
}
