package engine

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/roach88/seedgraph/internal/graph"
	"github.com/roach88/seedgraph/internal/ir"
)

// IDGenerator produces string keys and run IDs.
// Implemented by UUIDv7Generator, ULIDGenerator and, in tests,
// testutil.SequenceGenerator.
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 strings.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate returns a hyphenated UUIDv7.
// Panics if the random source fails.
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// ULIDGenerator generates monotonic ULIDs: keys allocated within the same
// millisecond still sort in allocation order.
//
// Thread-safety: safe for concurrent use via internal mutex.
type ULIDGenerator struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// NewULIDGenerator creates a generator seeded from crypto/rand.
func NewULIDGenerator() *ULIDGenerator {
	return &ULIDGenerator{entropy: ulid.Monotonic(rand.Reader, 0)}
}

// Generate returns the next ULID.
func (g *ULIDGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy).String()
}

// allocateKey fills the primary key of values for strategies decided before
// the write. Autoincrement keys come back from the backend; supplied keys
// are already present.
func (e *Engine) allocateKey(et *ir.EntityType, values ir.IRObject) {
	if _, set := values[et.PrimaryKey]; set && !ir.IsNull(values[et.PrimaryKey]) {
		return
	}
	switch et.KeyStrategy {
	case ir.KeyUUID:
		values[et.PrimaryKey] = ir.IRString(e.uuids.Generate())
	case ir.KeyULID:
		values[et.PrimaryKey] = ir.IRString(e.ulids.Generate())
	}
}

// slotValues merges the node's back-filled foreign keys into values. A slot
// without a value means the plan ran a node before its dependency.
func slotValues(n *graph.Node, values ir.IRObject) error {
	if missing := n.Unfilled(); len(missing) > 0 {
		return ir.NewPlanOrderingError(n.Path, n.Entity.Name, missing)
	}
	for _, s := range n.Slots {
		values[s.Column] = s.Value
	}
	return nil
}

// backfill records a resolved key on the node and hands it to every slot
// waiting on it.
func backfill(n *graph.Node, key ir.IRValue) {
	n.Key = key
	for _, s := range n.Dependents {
		s.Value = key
	}
}
