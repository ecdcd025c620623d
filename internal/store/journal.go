package store

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/roach88/seedgraph/internal/ir"
)

const journalTable = "seedgraph_runs"

// appliedAtLayout is fixed-width so applied_at sorts chronologically as text.
const appliedAtLayout = "2006-01-02T15:04:05.000000000Z"

var journalColumns = []string{"id", "scenario", "spec_hash", "schema_hash", "inserted", "applied_at", "key_map"}

// RecordRun writes a journal entry inside the transaction.
func (t *Tx) RecordRun(ctx context.Context, rec ir.RunRecord) error {
	blob, err := encodeKeys(rec.Keys)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}

	d := t.store.dialect
	cols := make([]string, len(journalColumns))
	marks := make([]string, len(journalColumns))
	for i, c := range journalColumns {
		cols[i] = d.Quote(c)
		marks[i] = d.Placeholder(i + 1)
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		d.Quote(journalTable), strings.Join(cols, ", "), strings.Join(marks, ", "))

	_, err = t.tx.ExecContext(ctx, query,
		rec.ID,
		rec.Scenario,
		rec.SpecHash,
		rec.SchemaHash,
		rec.Inserted,
		rec.AppliedAt.UTC().Format(appliedAtLayout),
		blob,
	)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

// ListRuns returns journal entries, most recent first. limit <= 0 returns
// all of them.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]ir.RunRecord, error) {
	d := s.dialect
	cols := make([]string, len(journalColumns))
	for i, c := range journalColumns {
		cols[i] = d.Quote(c)
	}
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY %s DESC, %s DESC",
		strings.Join(cols, ", "), d.Quote(journalTable), d.Quote("applied_at"), d.Quote("id"))
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []ir.RunRecord
	for rows.Next() {
		var (
			rec       ir.RunRecord
			appliedAt string
			blob      []byte
		)
		if err := rows.Scan(&rec.ID, &rec.Scenario, &rec.SpecHash, &rec.SchemaHash, &rec.Inserted, &appliedAt, &blob); err != nil {
			return nil, fmt.Errorf("list runs: %w", err)
		}
		if rec.AppliedAt, err = time.Parse(appliedAtLayout, appliedAt); err != nil {
			return nil, fmt.Errorf("run %s: applied_at: %w", rec.ID, err)
		}
		if rec.Keys, err = decodeKeys(blob); err != nil {
			return nil, fmt.Errorf("run %s: %w", rec.ID, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return out, nil
}

// encodeKeys packs the path → key mapping with msgpack. Map keys are sorted
// so identical runs produce identical blobs.
func encodeKeys(keys map[string]ir.IRValue) ([]byte, error) {
	plain := make(map[string]any, len(keys))
	for path, k := range keys {
		plain[path] = ir.ToAny(k)
	}
	enc := msgpack.GetEncoder()
	defer msgpack.PutEncoder(enc)

	var buf bytes.Buffer
	enc.Reset(&buf)
	enc.SetSortMapKeys(true)
	if err := enc.Encode(plain); err != nil {
		return nil, fmt.Errorf("encode keys: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeKeys(blob []byte) (map[string]ir.IRValue, error) {
	var plain map[string]any
	if err := msgpack.Unmarshal(blob, &plain); err != nil {
		return nil, fmt.Errorf("decode keys: %w", err)
	}
	keys := make(map[string]ir.IRValue, len(plain))
	for path, raw := range plain {
		v, err := ir.FromAny(raw)
		if err != nil {
			return nil, fmt.Errorf("key %s: %w", path, err)
		}
		keys[path] = v
	}
	return keys, nil
}
