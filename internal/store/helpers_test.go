package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/seedgraph/internal/ir"
	"github.com/roach88/seedgraph/internal/testutil"
)

// createTestStore opens a bootstrapped delivery database in a temp dir.
func createTestStore(t *testing.T, driver string) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(driver, path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	ctx := context.Background()
	require.NoError(t, s.Bootstrap(ctx, testutil.DeliveryDDLSQLite))
	require.NoError(t, s.EnsureJournal(ctx))
	return s
}

func entity(t *testing.T, name string) *ir.EntityType {
	t.Helper()
	et, ok := testutil.DeliverySchema(t).Entity(name)
	require.True(t, ok, name)
	return et
}

func begin(t *testing.T, s *Store) *Tx {
	t.Helper()
	tx, err := s.Begin(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = tx.Rollback() })
	return tx.(*Tx)
}

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	require.NoError(t, err)
	return ts
}
