package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/roach88/seedgraph/internal/ir"
)

// OrderScenarioYAML is the end-to-end order: a payment with its method, and
// a deliveryman connected to an existing gender and riding a new vehicle.
const OrderScenarioYAML = `
name: order-with-delivery
description: order paid by PIX, delivered by a deliveryman on a motorbike
graph:
  - entityType: order
    operation: create
    relations:
      payment:
        operation: create
        relations:
          payment_method:
            operation: create
            fields: {name: PIX}
      deliveryman:
        operation: create
        relations:
          gender:
            operation: connect
            where: {id: 2}
          veicule_deliveryman:
            operation: create
            relations:
              veicule:
                operation: create
                fields: {name: moto}
`

// GendersScenarioYAML seeds the lookup table the order scenario connects to.
const GendersScenarioYAML = `
name: genders
graph:
  - entityType: gender
    operation: createMany
    data:
      - {id: 1, name: Female}
      - {id: 2, name: Male}
`

// OrderScenario decodes OrderScenarioYAML.
func OrderScenario(t testing.TB) ir.GraphSpec {
	t.Helper()
	return DecodeSpec(t, OrderScenarioYAML)
}

// GendersScenario decodes GendersScenarioYAML.
func GendersScenario(t testing.TB) ir.GraphSpec {
	t.Helper()
	return DecodeSpec(t, GendersScenarioYAML)
}

// DecodeSpec decodes a YAML seed document.
func DecodeSpec(t testing.TB, doc string) ir.GraphSpec {
	t.Helper()
	var spec ir.GraphSpec
	require.NoError(t, yaml.Unmarshal([]byte(doc), &spec))
	return spec
}

// OrderPlanEntities is the expected plan order of OrderScenarioYAML.
var OrderPlanEntities = []string{
	"payment_method", "payment", "veicule", "veicule_deliveryman", "gender", "deliveryman", "order",
}
