package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"github.com/roach88/seedgraph/internal/engine"
	"github.com/roach88/seedgraph/internal/ir"
	"github.com/roach88/seedgraph/internal/queryir"
)

// Tx is one graph application. It implements engine.Tx and engine.Journal.
type Tx struct {
	tx    *sql.Tx
	store *Store
}

var (
	_ engine.Tx      = (*Tx)(nil)
	_ engine.Journal = (*Tx)(nil)
)

// Insert writes one row and returns its key.
func (t *Tx) Insert(ctx context.Context, et *ir.EntityType, values ir.IRObject) (ir.IRValue, error) {
	keys, err := t.exec(ctx, et, queryir.NewInsert(et.Table, values, t.returning(et)), 1)
	if err != nil {
		return nil, err
	}
	if keys != nil {
		return keys[0], nil
	}
	return values[et.PrimaryKey], nil
}

// InsertMany writes rows in order. Rows sharing a column set go out as one
// multi-row INSERT, except for autoincrement keys on dialects without
// RETURNING, where each row is inserted alone to read its last insert id.
// Rows with no columns at all are also inserted one by one, since DEFAULT
// VALUES takes a single row.
func (t *Tx) InsertMany(ctx context.Context, et *ir.EntityType, rows []ir.IRObject) ([]ir.IRValue, error) {
	out := make([]ir.IRValue, 0, len(rows))
	if et.KeyStrategy == ir.KeyAutoincrement && !t.store.dialect.SupportsReturning() {
		for _, row := range rows {
			key, err := t.Insert(ctx, et, row)
			if err != nil {
				return nil, err
			}
			out = append(out, key)
		}
		return out, nil
	}

	next := 0
	for _, ins := range queryir.InsertRows(et.Table, rows, t.returning(et)) {
		if len(ins.Columns) == 0 {
			for i := range ins.Rows {
				key, err := t.Insert(ctx, et, rows[next+i])
				if err != nil {
					return nil, err
				}
				out = append(out, key)
			}
			next += len(ins.Rows)
			continue
		}
		keys, err := t.exec(ctx, et, ins, len(ins.Rows))
		if err != nil {
			return nil, err
		}
		if keys == nil {
			for i := range ins.Rows {
				keys = append(keys, rows[next+i][et.PrimaryKey])
			}
		}
		out = append(out, keys...)
		next += len(ins.Rows)
	}
	return out, nil
}

// returning names the key column to read back, for autoincrement keys.
func (t *Tx) returning(et *ir.EntityType) string {
	if et.KeyStrategy == ir.KeyAutoincrement {
		return et.PrimaryKey
	}
	return ""
}

// exec runs an insert. It returns generated keys for autoincrement entities
// and nil otherwise.
func (t *Tx) exec(ctx context.Context, et *ir.EntityType, ins queryir.Insert, rows int) ([]ir.IRValue, error) {
	query, args, err := t.store.compiler.Compile(ins)
	if err != nil {
		return nil, fmt.Errorf("insert %s: %w", et.Name, err)
	}

	if ins.Returning != "" && t.store.dialect.SupportsReturning() {
		rs, err := t.tx.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, classify(et.Name, err)
		}
		defer rs.Close()
		keys := make([]ir.IRValue, 0, rows)
		for rs.Next() {
			var raw any
			if err := rs.Scan(&raw); err != nil {
				return nil, fmt.Errorf("insert %s: scan key: %w", et.Name, err)
			}
			key, err := keyValue(et, raw)
			if err != nil {
				return nil, err
			}
			keys = append(keys, key)
		}
		if err := rs.Err(); err != nil {
			return nil, classify(et.Name, err)
		}
		if len(keys) != rows {
			return nil, fmt.Errorf("insert %s: got %d keys for %d rows", et.Name, len(keys), rows)
		}
		return keys, nil
	}

	res, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, classify(et.Name, err)
	}
	if ins.Returning == "" {
		return nil, nil
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("insert %s: last insert id: %w", et.Name, err)
	}
	return []ir.IRValue{ir.IRInt(id)}, nil
}

// FindUnique returns the keys of up to two rows matching predicate.
func (t *Tx) FindUnique(ctx context.Context, et *ir.EntityType, predicate ir.IRObject) ([]ir.IRValue, error) {
	query, args, err := t.store.compiler.Compile(queryir.Select{
		From:    et.Table,
		Columns: []string{et.PrimaryKey},
		Filter:  queryir.Match(predicate),
		Limit:   2,
	})
	if err != nil {
		return nil, fmt.Errorf("lookup %s: %w", et.Name, err)
	}

	rs, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("lookup %s: %w", et.Name, err)
	}
	defer rs.Close()

	var keys []ir.IRValue
	for rs.Next() {
		var raw any
		if err := rs.Scan(&raw); err != nil {
			return nil, fmt.Errorf("lookup %s: %w", et.Name, err)
		}
		key, err := keyValue(et, raw)
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	if err := rs.Err(); err != nil {
		return nil, fmt.Errorf("lookup %s: %w", et.Name, err)
	}
	return keys, nil
}

// Commit commits the transaction.
func (t *Tx) Commit() error {
	return t.tx.Commit()
}

// Rollback aborts the transaction.
func (t *Tx) Rollback() error {
	return t.tx.Rollback()
}

// keyValue converts a scanned key to the IR type of the entity's key field.
// Drivers disagree on the Go type (MySQL hands back []byte for text).
func keyValue(et *ir.EntityType, raw any) (ir.IRValue, error) {
	f, _ := et.Field(et.PrimaryKey)
	v, err := ir.FromAny(raw)
	if err != nil {
		return nil, fmt.Errorf("%s key: %w", et.Name, err)
	}
	switch key := v.(type) {
	case ir.IRString:
		if f.Type == ir.FieldInt {
			n, err := strconv.ParseInt(string(key), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("%s key %q is not an integer", et.Name, key)
			}
			return ir.IRInt(n), nil
		}
	case ir.IRInt:
		if f.Type == ir.FieldString {
			return ir.IRString(strconv.FormatInt(int64(key), 10)), nil
		}
	}
	return v, nil
}
