// Package testutil holds fixtures shared by package tests: the delivery
// registry, its DDL, the end-to-end order scenario, deterministic key
// generators and a bootstrapped temporary store.
package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/seedgraph/internal/compiler"
	"github.com/roach88/seedgraph/internal/ir"
)

// DeliverySchemaCUE is the registry of the delivery domain: orders paid with
// a payment method, delivered by a deliveryman riding a vehicle, placed by
// customers buying marketers' products.
const DeliverySchemaCUE = `
entity: payment_method: {
	fields: name: {type: "string", required: true}
	unique: payment_methods_name_key: ["name"]
}

entity: payment: {
	fields: {
		amount: {type: "float", default: 0}
		status: {type: "string", default: "pending"}
	}
	relations: payment_method: {target: "payment_method", required: true, on_delete: "restrict"}
}

entity: gender: {
	key: {field: "id", strategy: "supplied"}
	fields: {
		id:   {type: "int", required: true}
		name: {type: "string", required: true}
	}
	unique: genders_name_key: ["name"]
}

entity: veicule: {
	fields: {
		name:  {type: "string", required: true}
		plate: "string"
	}
	unique: veicules_plate_key: ["plate"]
}

entity: veicule_deliveryman: {
	table: "veicule_deliverymen"
	relations: veicule: {target: "veicule", required: true}
}

entity: deliveryman: {
	table: "deliverymen"
	key:   "uuid"
	fields: {
		name:     "string"
		email:    {type: "string", transform: "lower"}
		password: {type: "string", transform: "bcrypt"}
	}
	relations: {
		gender:              "gender"
		veicule_deliveryman: "veicule_deliveryman"
	}
	unique: deliverymen_email_key: ["email"]
}

entity: customer: {
	fields: {
		name:     {type: "string", required: true}
		email:    {type: "string", required: true, transform: "lower"}
		password: {type: "string", transform: "bcrypt"}
	}
	relations: addresses: {target: "address", cardinality: "many", on_delete: "cascade"}
	unique: customers_email_key: ["email"]
}

entity: address: {
	table: "addresses"
	fields: {
		street: {type: "string", required: true}
		city:   {type: "string", required: true}
	}
}

entity: marketer: {
	key: "ulid"
	fields: name: {type: "string", required: true}
	relations: products: {target: "product", cardinality: "many"}
}

entity: product: {
	fields: {
		name:  {type: "string", required: true}
		price: {type: "float", required: true}
		sku:   "string"
	}
	unique: products_sku_key: ["sku"]
}

entity: order: {
	fields: status: {type: "string", default: "pending"}
	relations: {
		payment:     {target: "payment", required: true}
		deliveryman: "deliveryman"
		customer:    "customer"
		items:       {target: "order_item", cardinality: "many", on_delete: "cascade"}
	}
}

entity: order_item: {
	fields: quantity: {type: "int", required: true}
	relations: product: "product"
}
`

// DeliverySchema compiles DeliverySchemaCUE.
func DeliverySchema(t testing.TB) *ir.Schema {
	t.Helper()
	s, err := compiler.CompileString(DeliverySchemaCUE)
	require.NoError(t, err)
	require.Empty(t, compiler.Validate(s, nil))
	return s
}

// DeliveryTables lists the delivery tables in dependency order.
var DeliveryTables = []string{
	"payment_methods", "payments", "genders", "veicules", "veicule_deliverymen",
	"deliverymen", "customers", "addresses", "marketers", "products", "orders", "order_items",
}

// DeliveryDDLSQLite creates the delivery tables on SQLite.
const DeliveryDDLSQLite = `
CREATE TABLE payment_methods (
    id   INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL UNIQUE
);
CREATE TABLE payments (
    id                INTEGER PRIMARY KEY AUTOINCREMENT,
    amount            REAL NOT NULL DEFAULT 0,
    status            TEXT NOT NULL DEFAULT 'pending',
    payment_method_id INTEGER NOT NULL REFERENCES payment_methods(id)
);
CREATE TABLE genders (
    id   INTEGER PRIMARY KEY,
    name TEXT NOT NULL UNIQUE
);
CREATE TABLE veicules (
    id    INTEGER PRIMARY KEY AUTOINCREMENT,
    name  TEXT NOT NULL,
    plate TEXT UNIQUE
);
CREATE TABLE veicule_deliverymen (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    veicule_id INTEGER NOT NULL REFERENCES veicules(id)
);
CREATE TABLE deliverymen (
    id                     TEXT PRIMARY KEY,
    name                   TEXT,
    email                  TEXT UNIQUE,
    password               TEXT,
    gender_id              INTEGER REFERENCES genders(id),
    veicule_deliveryman_id INTEGER REFERENCES veicule_deliverymen(id)
);
CREATE TABLE customers (
    id       INTEGER PRIMARY KEY AUTOINCREMENT,
    name     TEXT NOT NULL,
    email    TEXT NOT NULL UNIQUE,
    password TEXT
);
CREATE TABLE addresses (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    street      TEXT NOT NULL,
    city        TEXT NOT NULL,
    customer_id INTEGER REFERENCES customers(id)
);
CREATE TABLE marketers (
    id   TEXT PRIMARY KEY,
    name TEXT NOT NULL
);
CREATE TABLE products (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    name        TEXT NOT NULL,
    price       REAL NOT NULL,
    sku         TEXT UNIQUE,
    marketer_id TEXT REFERENCES marketers(id)
);
CREATE TABLE orders (
    id             INTEGER PRIMARY KEY AUTOINCREMENT,
    status         TEXT NOT NULL DEFAULT 'pending',
    payment_id     INTEGER NOT NULL REFERENCES payments(id),
    deliveryman_id TEXT REFERENCES deliverymen(id),
    customer_id    INTEGER REFERENCES customers(id)
);
CREATE TABLE order_items (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    quantity   INTEGER NOT NULL,
    order_id   INTEGER REFERENCES orders(id),
    product_id INTEGER REFERENCES products(id)
);
`

// DeliveryDDLPostgres creates the delivery tables on PostgreSQL.
const DeliveryDDLPostgres = `
CREATE TABLE payment_methods (
    id   BIGSERIAL PRIMARY KEY,
    name TEXT NOT NULL UNIQUE
);
CREATE TABLE payments (
    id                BIGSERIAL PRIMARY KEY,
    amount            DOUBLE PRECISION NOT NULL DEFAULT 0,
    status            TEXT NOT NULL DEFAULT 'pending',
    payment_method_id BIGINT NOT NULL REFERENCES payment_methods(id)
);
CREATE TABLE genders (
    id   BIGINT PRIMARY KEY,
    name TEXT NOT NULL UNIQUE
);
CREATE TABLE veicules (
    id    BIGSERIAL PRIMARY KEY,
    name  TEXT NOT NULL,
    plate TEXT UNIQUE
);
CREATE TABLE veicule_deliverymen (
    id         BIGSERIAL PRIMARY KEY,
    veicule_id BIGINT NOT NULL REFERENCES veicules(id)
);
CREATE TABLE deliverymen (
    id                     TEXT PRIMARY KEY,
    name                   TEXT,
    email                  TEXT UNIQUE,
    password               TEXT,
    gender_id              BIGINT REFERENCES genders(id),
    veicule_deliveryman_id BIGINT REFERENCES veicule_deliverymen(id)
);
CREATE TABLE customers (
    id       BIGSERIAL PRIMARY KEY,
    name     TEXT NOT NULL,
    email    TEXT NOT NULL UNIQUE,
    password TEXT
);
CREATE TABLE addresses (
    id          BIGSERIAL PRIMARY KEY,
    street      TEXT NOT NULL,
    city        TEXT NOT NULL,
    customer_id BIGINT REFERENCES customers(id)
);
CREATE TABLE marketers (
    id   TEXT PRIMARY KEY,
    name TEXT NOT NULL
);
CREATE TABLE products (
    id          BIGSERIAL PRIMARY KEY,
    name        TEXT NOT NULL,
    price       DOUBLE PRECISION NOT NULL,
    sku         TEXT UNIQUE,
    marketer_id TEXT REFERENCES marketers(id)
);
CREATE TABLE orders (
    id             BIGSERIAL PRIMARY KEY,
    status         TEXT NOT NULL DEFAULT 'pending',
    payment_id     BIGINT NOT NULL REFERENCES payments(id),
    deliveryman_id TEXT REFERENCES deliverymen(id),
    customer_id    BIGINT REFERENCES customers(id)
);
CREATE TABLE order_items (
    id         BIGSERIAL PRIMARY KEY,
    quantity   BIGINT NOT NULL,
    order_id   BIGINT REFERENCES orders(id),
    product_id BIGINT REFERENCES products(id)
);
`
