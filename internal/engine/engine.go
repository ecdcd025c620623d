package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/roach88/seedgraph/internal/graph"
	"github.com/roach88/seedgraph/internal/ir"
	"github.com/roach88/seedgraph/internal/transform"
)

// DefaultMaxNodes bounds the size of one document.
const DefaultMaxNodes = 10000

// Engine applies seed documents against one registry and one backend.
//
// The backend handle is passed in; there is no process-wide connection.
type Engine struct {
	registry   graph.Registry
	backend    Backend
	transforms *transform.Registry
	logger     *slog.Logger

	uuids  IDGenerator
	ulids  IDGenerator
	runIDs IDGenerator

	journal    bool
	schemaHash string
	maxNodes   int
	now        func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithTransforms sets the field-transform hooks. Default: the built-in
// registry (bcrypt, nfc, lower, trim).
func WithTransforms(r *transform.Registry) Option {
	return func(e *Engine) { e.transforms = r }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithKeyGenerators replaces the uuid and ulid key generators.
// Tests pass deterministic generators here.
func WithKeyGenerators(uuids, ulids IDGenerator) Option {
	return func(e *Engine) {
		e.uuids = uuids
		e.ulids = ulids
	}
}

// WithRunIDs replaces the run ID generator (UUIDv7 by default).
func WithRunIDs(g IDGenerator) Option {
	return func(e *Engine) { e.runIDs = g }
}

// WithJournal records every committed run through the transaction's
// Journal, when it implements one. schemaHash is stored with each record.
func WithJournal(schemaHash string) Option {
	return func(e *Engine) {
		e.journal = true
		e.schemaHash = schemaHash
	}
}

// WithMaxNodes bounds the number of nodes in one document.
//
// Default: 10000 (DefaultMaxNodes). Zero disables the limit.
func WithMaxNodes(n int) Option {
	return func(e *Engine) { e.maxNodes = n }
}

// WithClock sets the time source for journal records.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates an Engine.
func New(reg graph.Registry, backend Backend, opts ...Option) *Engine {
	e := &Engine{
		registry:   reg,
		backend:    backend,
		transforms: transform.NewRegistry(),
		logger:     slog.Default(),
		uuids:      UUIDv7Generator{},
		ulids:      NewULIDGenerator(),
		runIDs:     UUIDv7Generator{},
		maxNodes:   DefaultMaxNodes,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Plan parses, orders and classifies spec without touching storage.
func (e *Engine) Plan(spec ir.GraphSpec) (*graph.Plan, error) {
	plan, err := graph.Build(e.registry, spec,
		graph.WithTransforms(e.transforms),
		graph.WithMaxNodes(e.maxNodes),
	)
	if err != nil {
		e.logger.Debug("plan rejected", "scenario", spec.Name, "error", err)
		return nil, err
	}
	e.logger.Debug("plan built", "scenario", spec.Name, "steps", len(plan.Steps))
	return plan, nil
}

// ApplyGraph plans spec and applies it in one transaction. Planning errors
// (MALFORMED_SPEC, CYCLE, VALIDATION) are returned before any transaction
// opens; everything later is a TRANSACTION_ABORT.
func (e *Engine) ApplyGraph(ctx context.Context, spec ir.GraphSpec) (*ir.CommitResult, error) {
	plan, err := e.Plan(spec)
	if err != nil {
		return nil, err
	}
	return e.Apply(ctx, plan)
}
