package graph

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/seedgraph/internal/ir"
	"github.com/roach88/seedgraph/internal/testutil"
	"github.com/roach88/seedgraph/internal/transform"
)

func parseDoc(t *testing.T, doc string) (*Graph, error) {
	t.Helper()
	return Parse(testutil.DeliverySchema(t), testutil.DecodeSpec(t, doc),
		WithTransforms(transform.NewRegistry(transform.WithBcryptCost(4))))
}

func mustParse(t *testing.T, doc string) *Graph {
	t.Helper()
	g, err := parseDoc(t, doc)
	require.NoError(t, err)
	return g
}

func buildDoc(t *testing.T, doc string) (*Plan, error) {
	t.Helper()
	return Build(testutil.DeliverySchema(t), testutil.DecodeSpec(t, doc),
		WithTransforms(transform.NewRegistry(transform.WithBcryptCost(4))))
}

// requireCode asserts err is an *ir.Error with the given code and path.
func requireCode(t *testing.T, err error, code ir.ErrorCode, path string) *ir.Error {
	t.Helper()
	require.Error(t, err)
	require.True(t, ir.HasCode(err, code), "want %s, got %v", code, err)
	e := ir.Cause(err)
	require.NotNil(t, e)
	require.Equal(t, path, e.Path, "error: %v", err)
	return e
}
