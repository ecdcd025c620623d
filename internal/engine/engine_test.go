package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/seedgraph/internal/compiler"
	"github.com/roach88/seedgraph/internal/ir"
	"github.com/roach88/seedgraph/internal/testutil"
	"github.com/roach88/seedgraph/internal/transform"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestEngine wires deterministic keys over the delivery registry.
func newTestEngine(t *testing.T, b *memBackend, opts ...Option) *Engine {
	t.Helper()
	base := []Option{
		WithLogger(quietLogger()),
		WithTransforms(transform.NewRegistry(transform.WithBcryptCost(4))),
		WithKeyGenerators(testutil.NewSequenceGenerator("uuid"), testutil.NewSequenceGenerator("ulid")),
		WithRunIDs(testutil.NewSequenceGenerator("run")),
	}
	return New(testutil.DeliverySchema(t), b, append(base, opts...)...)
}

func withGenders(b *memBackend) *memBackend {
	b.seed("gender",
		ir.IRObject{"id": ir.IRInt(1), "name": ir.IRString("Female")},
		ir.IRObject{"id": ir.IRInt(2), "name": ir.IRString("Male")},
	)
	return b
}

func TestApplyGraph_Order(t *testing.T) {
	b := withGenders(newMemBackend())
	e := newTestEngine(t, b)

	res, err := e.ApplyGraph(context.Background(), testutil.OrderScenario(t))
	require.NoError(t, err)

	assert.Equal(t, "run-0001", res.RunID)
	assert.Equal(t, "order-with-delivery", res.Scenario)
	assert.Len(t, res.SpecHash, 64)
	assert.Equal(t, 6, res.Inserted)
	assert.Equal(t, 1, res.Connected)
	assert.Zero(t, res.Fallbacks)

	assert.Equal(t, map[string]ir.IRValue{
		"order":                                         ir.IRInt(1),
		"order.payment":                                 ir.IRInt(1),
		"order.payment.payment_method":                  ir.IRInt(1),
		"order.deliveryman":                             ir.IRString("uuid-0001"),
		"order.deliveryman.gender":                      ir.IRInt(2),
		"order.deliveryman.veicule_deliveryman":         ir.IRInt(1),
		"order.deliveryman.veicule_deliveryman.veicule": ir.IRInt(1),
	}, res.Keys)

	order := b.tables["order"][0]
	assert.Equal(t, ir.IRInt(1), order["payment_id"])
	assert.Equal(t, ir.IRString("uuid-0001"), order["deliveryman_id"])
	assert.Equal(t, ir.IRString("pending"), order["status"])

	dm := b.tables["deliveryman"][0]
	assert.Equal(t, ir.IRInt(2), dm["gender_id"])
	assert.Equal(t, ir.IRInt(1), dm["veicule_deliveryman_id"])

	assert.Equal(t, ir.IRInt(1), b.tables["payment"][0]["payment_method_id"])
	assert.Equal(t, 1, b.commits)
	assert.Zero(t, b.rollbacks)
}

func TestApplyGraph_MissingConnectTargetRollsBack(t *testing.T) {
	b := newMemBackend()
	e := newTestEngine(t, b)

	res, err := e.ApplyGraph(context.Background(), testutil.OrderScenario(t))
	require.Error(t, err)
	assert.Nil(t, res)

	assert.True(t, ir.IsTransactionAbort(err))
	assert.True(t, ir.IsUniqueNotFound(err))
	assert.Equal(t, "order.deliveryman.gender", ir.PathOf(err))

	var abort *ir.Error
	require.ErrorAs(t, err, &abort)
	assert.Equal(t, ir.ErrCodeTransactionAbort, abort.Code)
	assert.Equal(t, "order.deliveryman.gender", abort.Path)
	assert.Equal(t, "gender", abort.Entity)

	assert.Equal(t, 1, b.rollbacks)
	assert.Zero(t, b.commits)
	for _, name := range []string{"payment_method", "payment", "veicule", "veicule_deliveryman", "deliveryman", "order"} {
		assert.Zero(t, b.count(name), name)
	}
}

func TestApplyGraph_CreateTwiceGivesDistinctKeys(t *testing.T) {
	b := withGenders(newMemBackend())
	e := newTestEngine(t, b)
	ctx := context.Background()

	first, err := e.ApplyGraph(ctx, testutil.OrderScenario(t))
	require.NoError(t, err)
	second, err := e.ApplyGraph(ctx, testutil.OrderScenario(t))
	require.NoError(t, err)

	assert.Equal(t, first.SpecHash, second.SpecHash)
	assert.NotEqual(t, first.RunID, second.RunID)
	assert.Equal(t, ir.IRInt(2), second.Keys["order"])
	assert.Equal(t, ir.IRString("uuid-0002"), second.Keys["order.deliveryman"])
	assert.Equal(t, first.Keys["order.deliveryman.gender"], second.Keys["order.deliveryman.gender"])
	assert.Equal(t, 2, b.count("order"))
	assert.Equal(t, 2, b.count("gender"))
}

const connectOrCreateDoc = `
name: coc
graph:
  - entityType: deliveryman
    operation: create
    fields: {name: Ana, email: ANA@Example.com}
    relations:
      gender:
        operation: connectOrCreate
        where: {id: 3}
        fields: {id: 3, name: Other}
`

func TestApplyGraph_ConnectOrCreate(t *testing.T) {
	b := newMemBackend()
	e := newTestEngine(t, b)
	ctx := context.Background()

	res, err := e.ApplyGraph(ctx, testutil.DecodeSpec(t, connectOrCreateDoc))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Fallbacks)
	assert.Equal(t, 2, res.Inserted)
	assert.Zero(t, res.Connected)
	assert.Equal(t, ir.IRInt(3), res.Keys["deliveryman.gender"])

	dm := b.tables["deliveryman"][0]
	assert.Equal(t, ir.IRInt(3), dm["gender_id"])
	assert.Equal(t, ir.IRString("ana@example.com"), dm["email"])

	// The row now exists: the lookup hits and nothing new is created.
	doc := testutil.DecodeSpec(t, connectOrCreateDoc)
	doc.Graph[0].Fields["email"] = ir.IRString("ana2@example.com")
	res, err = e.ApplyGraph(ctx, doc)
	require.NoError(t, err)
	assert.Zero(t, res.Fallbacks)
	assert.Equal(t, 1, res.Connected)
	assert.Equal(t, 1, res.Inserted)
	assert.Equal(t, 1, b.count("gender"))
	assert.Equal(t, ir.IRInt(3), b.tables["deliveryman"][1]["gender_id"])
}

func TestApplyGraph_CreateManySharesParentKey(t *testing.T) {
	b := newMemBackend()
	e := newTestEngine(t, b)

	res, err := e.ApplyGraph(context.Background(), testutil.DecodeSpec(t, `
name: catalog
graph:
  - entityType: marketer
    operation: create
    fields: {name: Acme}
    relations:
      products:
        operation: createMany
        data:
          - {name: a, price: 1}
          - {name: b, price: 2.5}
          - {name: c, price: 3, sku: C-1}
`))
	require.NoError(t, err)

	assert.Equal(t, 4, res.Inserted)
	assert.Equal(t, ir.IRString("ulid-0001"), res.Keys["marketer"])
	assert.Equal(t, ir.IRInt(1), res.Keys["marketer.products[0]"])
	assert.Equal(t, ir.IRInt(2), res.Keys["marketer.products[1]"])
	assert.Equal(t, ir.IRInt(3), res.Keys["marketer.products[2]"])
	assert.NotContains(t, res.Keys, "marketer.products")

	for _, p := range b.tables["product"] {
		assert.Equal(t, ir.IRString("ulid-0001"), p["marketer_id"])
	}
}

func TestApplyGraph_SeedGenders(t *testing.T) {
	b := newMemBackend()
	e := newTestEngine(t, b)

	res, err := e.ApplyGraph(context.Background(), testutil.GendersScenario(t))
	require.NoError(t, err)
	assert.Equal(t, []string{"gender[0]", "gender[1]"}, res.SortedPaths())
	assert.Equal(t, ir.IRInt(2), res.Keys["gender[1]"])
	assert.Equal(t, 2, b.count("gender"))
}

func TestApplyGraph_PlanningErrorsOpenNoTransaction(t *testing.T) {
	cycleReg, err := compiler.CompileString(`
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

	tests := []struct {
		name string
		reg  *ir.Schema
		doc  string
		code ir.ErrorCode
		path string
	}{
		{
			name: "malformed",
			doc:  "name: x\ngraph:\n  - {entityType: spaceship, operation: create}\n",
			code: ir.ErrCodeMalformedSpec,
			path: "spaceship",
		},
		{
			name: "validation",
			doc:  "name: x\ngraph:\n  - {entityType: gender, operation: connect, where: {name: Male}, fields: {id: 1}}\n",
			code: ir.ErrCodeValidation,
			path: "gender",
		},
		{
			name: "cycle",
			reg:  cycleReg,
			doc: `
name: loop
graph:
  - entityType: author
    operation: create
    as: au
    relations:
      favorite_book:
        operation: create
        relations:
          author: {ref: au}
`,
			code: ir.ErrCodeCycle,
			path: "author",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newMemBackend()
			reg := testutil.DeliverySchema(t)
			if tt.reg != nil {
				reg = tt.reg
			}
			e := New(reg, b, WithLogger(quietLogger()))

			_, err := e.ApplyGraph(context.Background(), testutil.DecodeSpec(t, tt.doc))
			require.Error(t, err)
			assert.True(t, ir.HasCode(err, tt.code), "%v", err)
			assert.False(t, ir.IsTransactionAbort(err))
			assert.Equal(t, tt.path, ir.PathOf(err))
			assert.Zero(t, b.begins)
		})
	}
}

func TestApplyGraph_MaxNodes(t *testing.T) {
	b := withGenders(newMemBackend())
	e := newTestEngine(t, b, WithMaxNodes(3))

	_, err := e.ApplyGraph(context.Background(), testutil.OrderScenario(t))
	require.Error(t, err)
	assert.True(t, ir.IsMalformedSpec(err))
	assert.Zero(t, b.begins)

	e = newTestEngine(t, b, WithMaxNodes(0))
	_, err = e.ApplyGraph(context.Background(), testutil.OrderScenario(t))
	require.NoError(t, err)
}

func TestApply_OutOfOrderPlanIsPlanOrderingError(t *testing.T) {
	b := withGenders(newMemBackend())
	e := newTestEngine(t, b)

	plan, err := e.Plan(testutil.OrderScenario(t))
	require.NoError(t, err)
	slices.Reverse(plan.Steps)

	_, err = e.Apply(context.Background(), plan)
	require.Error(t, err)
	assert.True(t, ir.IsTransactionAbort(err))
	assert.True(t, ir.IsPlanOrderingError(err))
	assert.Equal(t, "order", ir.PathOf(err))
	assert.Equal(t, 1, b.rollbacks)
}

func TestApply_ReappliedPlanStartsClean(t *testing.T) {
	b := withGenders(newMemBackend())
	e := newTestEngine(t, b)

	plan, err := e.Plan(testutil.OrderScenario(t))
	require.NoError(t, err)

	first, err := e.Apply(context.Background(), plan)
	require.NoError(t, err)
	second, err := e.Apply(context.Background(), plan)
	require.NoError(t, err)
	assert.NotEqual(t, first.Keys["order.deliveryman"], second.Keys["order.deliveryman"])
	assert.Equal(t, 2, b.count("order"))

	// Keys left by the runs above must not hide an ordering fault.
	slices.Reverse(plan.Steps)
	_, err = e.Apply(context.Background(), plan)
	require.Error(t, err)
	assert.True(t, ir.IsPlanOrderingError(err))
	assert.Equal(t, 2, b.count("order"))
}

func TestApply_ContextCancelled(t *testing.T) {
	t.Run("before begin", func(t *testing.T) {
		b := withGenders(newMemBackend())
		e := newTestEngine(t, b)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := e.ApplyGraph(ctx, testutil.OrderScenario(t))
		require.Error(t, err)
		assert.True(t, ir.IsTransactionAbort(err))
		assert.ErrorIs(t, err, context.Canceled)
		assert.Zero(t, b.begins)
	})

	t.Run("between steps", func(t *testing.T) {
		b := withGenders(newMemBackend())
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		b.onInsert = func(entity string) {
			if entity == "payment" {
				cancel()
			}
		}
		e := newTestEngine(t, b)

		_, err := e.ApplyGraph(ctx, testutil.OrderScenario(t))
		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, "order.deliveryman.veicule_deliveryman.veicule", ir.PathOf(err))
		assert.Equal(t, 1, b.rollbacks)
		assert.Zero(t, b.count("payment"))
	})
}

func TestApply_BackendFailures(t *testing.T) {
	boom := errors.New("boom")

	t.Run("begin", func(t *testing.T) {
		b := withGenders(newMemBackend())
		b.beginErr = boom
		_, err := newTestEngine(t, b).ApplyGraph(context.Background(), testutil.OrderScenario(t))
		assert.True(t, ir.IsTransactionAbort(err))
		assert.ErrorIs(t, err, boom)
	})

	t.Run("insert keeps the driver error", func(t *testing.T) {
		b := withGenders(newMemBackend())
		b.insertErr["veicule"] = boom
		_, err := newTestEngine(t, b).ApplyGraph(context.Background(), testutil.OrderScenario(t))
		assert.True(t, ir.IsTransactionAbort(err))
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, "order.deliveryman.veicule_deliveryman.veicule", ir.PathOf(err))
		assert.Equal(t, 1, b.rollbacks)
	})

	t.Run("constraint violation gets the node path", func(t *testing.T) {
		b := withGenders(newMemBackend())
		b.insertErr["payment_method"] = ir.NewConstraintViolationError("", "payment_method", "duplicate name", nil)
		_, err := newTestEngine(t, b).ApplyGraph(context.Background(), testutil.OrderScenario(t))
		assert.True(t, ir.IsConstraintViolation(err))
		assert.Equal(t, "order.payment.payment_method", ir.PathOf(err))
	})

	t.Run("commit", func(t *testing.T) {
		b := withGenders(newMemBackend())
		b.commitErr = boom
		_, err := newTestEngine(t, b).ApplyGraph(context.Background(), testutil.OrderScenario(t))
		assert.True(t, ir.IsTransactionAbort(err))
		assert.ErrorIs(t, err, boom)
		assert.Zero(t, b.count("order"))
	})
}

func TestApply_AmbiguousLookup(t *testing.T) {
	b := newMemBackend()
	b.seed("gender",
		ir.IRObject{"id": ir.IRInt(2), "name": ir.IRString("Male")},
		ir.IRObject{"id": ir.IRInt(2), "name": ir.IRString("Male (dup)")},
	)
	_, err := newTestEngine(t, b).ApplyGraph(context.Background(), testutil.OrderScenario(t))
	require.Error(t, err)
	assert.True(t, ir.IsConstraintViolation(err))
	assert.Equal(t, "order.deliveryman.gender", ir.PathOf(err))
	assert.Contains(t, err.Error(), "matched more than one row")
}

func TestApply_Journal(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("recorded with the commit", func(t *testing.T) {
		b := withGenders(newMemBackend())
		e := newTestEngine(t, b, WithJournal("schema-h"), WithClock(func() time.Time { return at }))

		res, err := e.ApplyGraph(context.Background(), testutil.OrderScenario(t))
		require.NoError(t, err)
		require.Len(t, b.journal, 1)

		rec := b.journal[0]
		assert.Equal(t, res.RunID, rec.ID)
		assert.Equal(t, "order-with-delivery", rec.Scenario)
		assert.Equal(t, res.SpecHash, rec.SpecHash)
		assert.Equal(t, "schema-h", rec.SchemaHash)
		assert.Equal(t, 6, rec.Inserted)
		assert.Equal(t, at, rec.AppliedAt)
		assert.Equal(t, res.Keys, rec.Keys)
	})

	t.Run("off by default", func(t *testing.T) {
		b := withGenders(newMemBackend())
		_, err := newTestEngine(t, b).ApplyGraph(context.Background(), testutil.OrderScenario(t))
		require.NoError(t, err)
		assert.Empty(t, b.journal)
	})

	t.Run("skipped when the transaction cannot journal", func(t *testing.T) {
		b := withGenders(newMemBackend())
		b.noJournal = true
		_, err := newTestEngine(t, b, WithJournal("")).ApplyGraph(context.Background(), testutil.OrderScenario(t))
		require.NoError(t, err)
		assert.Equal(t, 1, b.commits)
	})

	t.Run("failure aborts", func(t *testing.T) {
		b := withGenders(newMemBackend())
		b.journalErr = errors.New("disk full")
		_, err := newTestEngine(t, b, WithJournal("")).ApplyGraph(context.Background(), testutil.OrderScenario(t))
		require.Error(t, err)
		assert.True(t, ir.IsTransactionAbort(err))
		assert.Equal(t, 1, b.rollbacks)
		assert.Zero(t, b.count("order"))
	})
}

func TestKeyGenerators(t *testing.T) {
	id, err := uuid.Parse(UUIDv7Generator{}.Generate())
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), id.Version())

	g := NewULIDGenerator()
	prev := g.Generate()
	assert.Len(t, prev, 26)
	for i := 0; i < 1000; i++ {
		next := g.Generate()
		require.Less(t, prev, next)
		prev = next
	}
}

func TestAllocateKey(t *testing.T) {
	reg := testutil.DeliverySchema(t)
	e := New(reg, newMemBackend(),
		WithKeyGenerators(testutil.NewSequenceGenerator("u"), testutil.NewSequenceGenerator("l")))

	dm, _ := reg.Entity("deliveryman")
	values := ir.IRObject{}
	e.allocateKey(dm, values)
	assert.Equal(t, ir.IRString("u-0001"), values["id"])

	values = ir.IRObject{"id": ir.IRString("given")}
	e.allocateKey(dm, values)
	assert.Equal(t, ir.IRString("given"), values["id"])

	mk, _ := reg.Entity("marketer")
	values = ir.IRObject{}
	e.allocateKey(mk, values)
	assert.Equal(t, ir.IRString("l-0001"), values["id"])

	pm, _ := reg.Entity("payment_method")
	values = ir.IRObject{}
	e.allocateKey(pm, values)
	assert.NotContains(t, values, "id")
}
