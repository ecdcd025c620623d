package engine

import (
	"context"
	"errors"
	"sync"

	"github.com/roach88/seedgraph/internal/ir"
)

// memBackend is an in-memory Backend. Writes are staged per transaction and
// become visible on Commit.
type memBackend struct {
	mu     sync.Mutex
	tables map[string][]ir.IRObject
	seq    map[string]int64

	beginErr   error
	commitErr  error
	journalErr error
	insertErr  map[string]error
	onInsert   func(entity string)
	noJournal  bool

	begins, commits, rollbacks int
	journal                    []ir.RunRecord
}

func newMemBackend() *memBackend {
	return &memBackend{
		tables:    make(map[string][]ir.IRObject),
		seq:       make(map[string]int64),
		insertErr: make(map[string]error),
	}
}

// seed stores rows as if committed earlier.
func (b *memBackend) seed(entity string, rows ...ir.IRObject) {
	b.tables[entity] = append(b.tables[entity], rows...)
}

func (b *memBackend) count(entity string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.tables[entity])
}

func (b *memBackend) Begin(ctx context.Context) (Tx, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.begins++
	if b.beginErr != nil {
		return nil, b.beginErr
	}
	tx := &memTx{b: b, staged: make(map[string][]ir.IRObject)}
	if b.noJournal {
		return plainTx{tx}, nil
	}
	return tx, nil
}

// plainTx hides RecordRun.
type plainTx struct{ Tx }

type memTx struct {
	b       *memBackend
	staged  map[string][]ir.IRObject
	journal []ir.RunRecord
	done    bool
}

func (t *memTx) Insert(ctx context.Context, et *ir.EntityType, values ir.IRObject) (ir.IRValue, error) {
	if t.b.onInsert != nil {
		t.b.onInsert(et.Name)
	}
	if err := t.b.insertErr[et.Name]; err != nil {
		return nil, err
	}
	row := values.Clone()
	if et.KeyStrategy == ir.KeyAutoincrement {
		t.b.mu.Lock()
		t.b.seq[et.Name]++
		row[et.PrimaryKey] = ir.IRInt(t.b.seq[et.Name])
		t.b.mu.Unlock()
	}
	for _, r := range t.rows(et.Name) {
		if ir.Equal(r[et.PrimaryKey], row[et.PrimaryKey]) {
			return nil, ir.NewConstraintViolationError("", et.Name, "duplicate key "+ir.Format(row[et.PrimaryKey]), nil)
		}
	}
	t.staged[et.Name] = append(t.staged[et.Name], row)
	return row[et.PrimaryKey], nil
}

func (t *memTx) InsertMany(ctx context.Context, et *ir.EntityType, rows []ir.IRObject) ([]ir.IRValue, error) {
	keys := make([]ir.IRValue, 0, len(rows))
	for _, r := range rows {
		k, err := t.Insert(ctx, et, r)
		if err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, nil
}

func (t *memTx) FindUnique(ctx context.Context, et *ir.EntityType, predicate ir.IRObject) ([]ir.IRValue, error) {
	var keys []ir.IRValue
	for _, r := range t.rows(et.Name) {
		match := true
		for k, v := range predicate {
			if !ir.Equal(r[k], v) {
				match = false
				break
			}
		}
		if match {
			keys = append(keys, r[et.PrimaryKey])
			if len(keys) == 2 {
				break
			}
		}
	}
	return keys, nil
}

func (t *memTx) RecordRun(ctx context.Context, rec ir.RunRecord) error {
	if t.b.journalErr != nil {
		return t.b.journalErr
	}
	t.journal = append(t.journal, rec)
	return nil
}

func (t *memTx) rows(entity string) []ir.IRObject {
	t.b.mu.Lock()
	defer t.b.mu.Unlock()
	out := append([]ir.IRObject(nil), t.b.tables[entity]...)
	return append(out, t.staged[entity]...)
}

func (t *memTx) Commit() error {
	if t.done {
		return errors.New("transaction already finished")
	}
	t.done = true
	t.b.mu.Lock()
	defer t.b.mu.Unlock()
	if t.b.commitErr != nil {
		return t.b.commitErr
	}
	for name, rows := range t.staged {
		t.b.tables[name] = append(t.b.tables[name], rows...)
	}
	t.b.journal = append(t.b.journal, t.journal...)
	t.b.commits++
	return nil
}

func (t *memTx) Rollback() error {
	if t.done {
		return errors.New("transaction already finished")
	}
	t.done = true
	t.b.mu.Lock()
	defer t.b.mu.Unlock()
	t.b.rollbacks++
	return nil
}
