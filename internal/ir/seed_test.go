package ir

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const orderYAML = `
name: order-with-delivery
graph:
  - entityType: order
    operation: create
    fields: {status: paid}
    relations:
      payment:
        operation: create
        relations:
          payment_method: {operation: create, fields: {name: PIX}}
      items:
        operation: createMany
        data: [{quantity: 1}, {quantity: 2}]
      deliveryman:
        operation: create
        relations:
          gender: {operation: connect, where: {id: 2}}
`

func TestGraphSpecUnmarshalYAML(t *testing.T) {
	var spec GraphSpec
	require.NoError(t, yaml.Unmarshal([]byte(orderYAML), &spec))

	require.Len(t, spec.Graph, 1)
	root := spec.Graph[0]
	assert.Equal(t, "order", root.EntityType)
	assert.Equal(t, OpCreate, root.Operation)
	assert.Equal(t, IRString("paid"), root.Fields["status"])

	names := make([]string, len(root.Relations))
	for i, nr := range root.Relations {
		names[i] = nr.Name
	}
	assert.Equal(t, []string{"payment", "items", "deliveryman"}, names, "relations keep document order")

	items, ok := root.Relations.Get("items")
	require.True(t, ok)
	assert.False(t, items.IsList)
	require.NotNil(t, items.Single)
	assert.Equal(t, OpCreateMany, items.Single.Operation)
	assert.Len(t, items.Single.Data, 2)

	dm, ok := root.Relations.Get("deliveryman")
	require.True(t, ok)
	gender, ok := dm.Single.Relations.Get("gender")
	require.True(t, ok)
	assert.Equal(t, IRObject{"id": IRInt(2)}, gender.Single.Where)
}

func TestRelationsRejectDuplicates(t *testing.T) {
	doc := `
relations:
  payment: {operation: create}
  payment: {operation: create}
`
	var n SeedNode
	err := yaml.Unmarshal([]byte(doc), &n)
	require.Error(t, err)
}

func TestRelationValueListYAML(t *testing.T) {
	doc := `
operation: create
relations:
  items:
    - {operation: create, fields: {quantity: 1}}
    - {operation: create, fields: {quantity: 2}}
`
	var n SeedNode
	require.NoError(t, yaml.Unmarshal([]byte(doc), &n))

	items, ok := n.Relations.Get("items")
	require.True(t, ok)
	assert.True(t, items.IsList)
	assert.Len(t, items.List, 2)
}

func TestRelationValueRejectsScalar(t *testing.T) {
	var n SeedNode
	err := yaml.Unmarshal([]byte("operation: create\nrelations:\n  gender: 2\n"), &n)
	require.Error(t, err)
}

func TestGraphSpecJSONKeepsRelationOrder(t *testing.T) {
	doc := `{"name":"x","graph":[{"entityType":"order","operation":"create",
		"relations":{"zeta":{"operation":"create"},"alpha":[{"operation":"create"}]}}]}`

	var spec GraphSpec
	require.NoError(t, json.Unmarshal([]byte(doc), &spec))

	rels := spec.Graph[0].Relations
	require.Len(t, rels, 2)
	assert.Equal(t, "zeta", rels[0].Name)
	assert.Equal(t, "alpha", rels[1].Name)
	assert.True(t, rels[1].Value.IsList)
}

func TestGraphSpecJSONRoundTripPreservesOrder(t *testing.T) {
	var spec GraphSpec
	require.NoError(t, yaml.Unmarshal([]byte(orderYAML), &spec))

	data, err := json.Marshal(spec)
	require.NoError(t, err)

	var back GraphSpec
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, "payment", back.Graph[0].Relations[0].Name)
	assert.Equal(t, "deliveryman", back.Graph[0].Relations[2].Name)
}

func TestOperationIsLookup(t *testing.T) {
	assert.True(t, OpConnect.IsLookup())
	assert.True(t, OpConnectOrCreate.IsLookup())
	assert.False(t, OpCreate.IsLookup())
	assert.False(t, OpCreateMany.IsLookup())
}

func TestRelationValueConstructors(t *testing.T) {
	one := OneNode(SeedNode{Operation: OpConnect, Where: IRObject{"id": IRInt(2)}})
	assert.False(t, one.IsList)
	require.NotNil(t, one.Single)
	assert.Equal(t, OpConnect, one.Single.Operation)

	many := List(SeedNode{Operation: OpCreate}, SeedNode{Operation: OpCreate})
	assert.True(t, many.IsList)
	assert.Nil(t, many.Single)
	assert.Len(t, many.List, 2)

	assert.Equal(t, Cardinality("one"), One)
}
