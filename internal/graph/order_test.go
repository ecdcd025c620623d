package graph

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/seedgraph/internal/compiler"
	"github.com/roach88/seedgraph/internal/ir"
	"github.com/roach88/seedgraph/internal/testutil"
	"github.com/roach88/seedgraph/internal/transform"
)

func TestOrder_EndToEndScenario(t *testing.T) {
	plan, err := Order(mustParse(t, testutil.OrderScenarioYAML))
	require.NoError(t, err)
	assert.Equal(t, testutil.OrderPlanEntities, plan.Entities())
	assert.Equal(t, []string{
		"order.payment.payment_method",
		"order.payment",
		"order.deliveryman.veicule_deliveryman.veicule",
		"order.deliveryman.veicule_deliveryman",
		"order.deliveryman.gender",
		"order.deliveryman",
		"order",
	}, plan.Paths())
}

func TestOrder_ChildOwnedRunsParentFirst(t *testing.T) {
	plan, err := Order(mustParse(t, `
name: catalog
graph:
  - entityType: marketer
    operation: create
    fields: {name: Acme}
    relations:
      products:
        operation: createMany
        data:
          - {name: Soap, price: 2.5}
          - {name: Brush, price: 4}
`))
	require.NoError(t, err)
	assert.Equal(t, []string{"marketer", "product"}, plan.Entities())
}

func TestOrder_Deterministic(t *testing.T) {
	g1 := mustParse(t, testutil.OrderScenarioYAML)
	g2 := mustParse(t, testutil.OrderScenarioYAML)
	p1, err := Order(g1)
	require.NoError(t, err)
	p2, err := Order(g2)
	require.NoError(t, err)
	assert.Equal(t, p1.Paths(), p2.Paths())
}

// TestOrder_DependencyBeforeDependent checks the ordering property over
// randomly shaped acyclic documents.
func TestOrder_DependencyBeforeDependent(t *testing.T) {
	reg := testutil.DeliverySchema(t)
	transforms := transform.NewRegistry()
	rng := rand.New(rand.NewPCG(7, 42))

	for i := 0; i < 200; i++ {
		spec := randomSpec(rng)
		g, err := Parse(reg, spec, WithTransforms(transforms))
		require.NoError(t, err, "spec %d", i)

		plan, err := Order(g)
		require.NoError(t, err, "spec %d", i)
		require.Len(t, plan.Steps, len(g.Nodes))

		position := make(map[*Node]int, len(plan.Steps))
		for pos, s := range plan.Steps {
			position[s.Node] = pos
		}
		for _, s := range plan.Steps {
			for _, slot := range s.Node.Slots {
				assert.Less(t, position[slot.From], position[s.Node],
					"spec %d: %s must follow %s", i, s.Node.Path, slot.From.Path)
			}
		}
	}
}

func TestOrder_CycleThroughReferences(t *testing.T) {
	reg, err := compiler.CompileString(`
entity: author: {
	fields: name: "string"
	relations: favorite_book: "book"
}
entity: book: {
	fields: title: "string"
	relations: author: "author"
}
`)
	require.NoError(t, err)

	g, err := Parse(reg, testutil.DecodeSpec(t, `
name: loop
graph:
  - entityType: author
    operation: create
    as: au
    fields: {name: Ana}
    relations:
      favorite_book:
        operation: create
        fields: {title: Loops}
        relations:
          author: {ref: au}
`))
	require.NoError(t, err)

	_, err = Order(g)
	e := requireCode(t, err, ir.ErrCodeCycle, "author")
	assert.True(t, ir.IsCycleError(err))
	assert.Equal(t, []string{"author", "book", "author"}, e.Cycle)
	assert.Contains(t, err.Error(), "author -> book -> author")
}

func TestOrder_SelfReferenceCycle(t *testing.T) {
	reg, err := compiler.CompileString(`
entity: employee: {
	fields: name: "string"
	relations: manager: "employee"
}
`)
	require.NoError(t, err)

	g, err := Parse(reg, testutil.DecodeSpec(t, `
name: loop
graph:
  - {entityType: employee, operation: create, as: a, relations: {manager: {ref: b}}}
  - {entityType: employee, operation: create, as: b, relations: {manager: {ref: a}}}
  - {entityType: employee, operation: create, fields: {name: outside}}
`))
	require.NoError(t, err)

	_, err = Order(g)
	e := requireCode(t, err, ir.ErrCodeCycle, "employee")
	assert.Equal(t, []string{"employee", "employee", "employee"}, e.Cycle)
}

// randomSpec builds an acyclic document over the delivery registry.
func randomSpec(rng *rand.Rand) ir.GraphSpec {
	spec := ir.GraphSpec{Name: "random"}
	roots := 1 + rng.IntN(4)
	for i := 0; i < roots; i++ {
		switch rng.IntN(3) {
		case 0:
			spec.Graph = append(spec.Graph, randomOrder(rng, i))
		case 1:
			spec.Graph = append(spec.Graph, randomCustomer(rng, i))
		default:
			spec.Graph = append(spec.Graph, randomMarketer(rng, i))
		}
	}
	return spec
}

func randomOrder(rng *rand.Rand, i int) ir.SeedNode {
	method := ir.SeedNode{Operation: ir.OpCreate, Fields: ir.IRObject{"name": ir.IRString(fmt.Sprintf("m%d", i))}}
	if rng.IntN(2) == 0 {
		method = ir.SeedNode{
			Operation: ir.OpConnectOrCreate,
			Where:     ir.IRObject{"name": ir.IRString("PIX")},
			Fields:    ir.IRObject{"name": ir.IRString("PIX")},
		}
	}
	order := ir.SeedNode{
		EntityType: "order",
		Operation:  ir.OpCreate,
		Relations: ir.Relations{{Name: "payment", Value: ir.OneNode(ir.SeedNode{
			Operation: ir.OpCreate,
			Relations: ir.Relations{{Name: "payment_method", Value: ir.OneNode(method)}},
		})}},
	}
	if rng.IntN(2) == 0 {
		dm := ir.SeedNode{Operation: ir.OpCreate}
		if rng.IntN(2) == 0 {
			dm.Relations = append(dm.Relations, ir.NamedRelation{Name: "gender", Value: ir.OneNode(ir.SeedNode{
				Operation: ir.OpConnect, Where: ir.IRObject{"id": ir.IRInt(1)},
			})})
		}
		dm.Relations = append(dm.Relations, ir.NamedRelation{Name: "veicule_deliveryman", Value: ir.OneNode(ir.SeedNode{
			Operation: ir.OpCreate,
			Relations: ir.Relations{{Name: "veicule", Value: ir.OneNode(ir.SeedNode{
				Operation: ir.OpCreate, Fields: ir.IRObject{"name": ir.IRString("moto")},
			})}},
		})})
		order.Relations = append(order.Relations, ir.NamedRelation{Name: "deliveryman", Value: ir.OneNode(dm)})
	}
	if rng.IntN(2) == 0 {
		order.Relations = append(order.Relations, ir.NamedRelation{Name: "customer", Value: ir.OneNode(randomCustomer(rng, i))})
	}
	var items []ir.SeedNode
	for j := rng.IntN(3); j > 0; j-- {
		items = append(items, ir.SeedNode{
			Operation: ir.OpCreate,
			Fields:    ir.IRObject{"quantity": ir.IRInt(j)},
			Relations: ir.Relations{{Name: "product", Value: ir.OneNode(ir.SeedNode{
				Operation: ir.OpCreate,
				Fields:    ir.IRObject{"name": ir.IRString("p"), "price": ir.IRFloat(1.5)},
			})}},
		})
	}
	if items != nil {
		order.Relations = append(order.Relations, ir.NamedRelation{Name: "items", Value: ir.List(items...)})
	}
	return order
}

func randomCustomer(rng *rand.Rand, i int) ir.SeedNode {
	c := ir.SeedNode{
		EntityType: "customer",
		Operation:  ir.OpCreate,
		Fields: ir.IRObject{
			"name":  ir.IRString("c"),
			"email": ir.IRString(fmt.Sprintf("c%d-%d@example.com", i, rng.IntN(1000))),
		},
	}
	var addrs []ir.SeedNode
	for j := rng.IntN(3); j > 0; j-- {
		addrs = append(addrs, ir.SeedNode{
			Operation: ir.OpCreate,
			Fields:    ir.IRObject{"street": ir.IRString("s"), "city": ir.IRString("c")},
		})
	}
	if addrs != nil {
		c.Relations = ir.Relations{{Name: "addresses", Value: ir.List(addrs...)}}
	}
	return c
}

func randomMarketer(rng *rand.Rand, i int) ir.SeedNode {
	rows := make([]ir.IRObject, 1+rng.IntN(4))
	for j := range rows {
		rows[j] = ir.IRObject{"name": ir.IRString(fmt.Sprintf("p%d", j)), "price": ir.IRFloat(1)}
	}
	return ir.SeedNode{
		EntityType: "marketer",
		Operation:  ir.OpCreate,
		Fields:     ir.IRObject{"name": ir.IRString(fmt.Sprintf("mk%d", i))},
		Relations: ir.Relations{{Name: "products", Value: ir.OneNode(ir.SeedNode{
			Operation: ir.OpCreateMany, Data: rows,
		})}},
	}
}
