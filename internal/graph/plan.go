package graph

import (
	"fmt"
	"strings"

	"github.com/roach88/seedgraph/internal/ir"
)

// Plan is the ordered sequence of steps for one graph.
type Plan struct {
	Graph *Graph
	Steps []*Step

	// Scenario and SpecHash identify the document; set by Build.
	Scenario string
	SpecHash string
}

// Step is one node in execution order with its resolved operation.
// Op is zero until Classify runs.
type Step struct {
	Node *Node
	Op   ResolvedOperation
}

// Classify resolves every step. It stops at the first invalid node, in plan
// order, so the reported path is the earliest failure a run would hit.
func (p *Plan) Classify() error {
	for _, s := range p.Steps {
		op, err := Classify(s.Node)
		if err != nil {
			return err
		}
		s.Op = op
	}
	return nil
}

// Build runs Parse, Order and Classify.
func Build(reg Registry, spec ir.GraphSpec, opts ...ParseOption) (*Plan, error) {
	g, err := Parse(reg, spec, opts...)
	if err != nil {
		return nil, err
	}
	plan, err := Order(g)
	if err != nil {
		return nil, err
	}
	if err := plan.Classify(); err != nil {
		return nil, err
	}
	plan.Scenario = spec.Name
	if plan.SpecHash, err = ir.SpecHash(spec); err != nil {
		return nil, fmt.Errorf("hash spec: %w", err)
	}
	return plan, nil
}

// Reset clears the keys and slot values left by an earlier execution.
func (p *Plan) Reset() {
	for _, s := range p.Steps {
		s.Node.Key = nil
		s.Node.Keys = nil
		for _, slot := range s.Node.Slots {
			slot.Value = nil
		}
	}
}

// Entities returns the entity type of each step, in order.
func (p *Plan) Entities() []string {
	out := make([]string, len(p.Steps))
	for i, s := range p.Steps {
		out[i] = s.Node.Entity.Name
	}
	return out
}

// Paths returns the node path of each step, in order.
func (p *Plan) Paths() []string {
	out := make([]string, len(p.Steps))
	for i, s := range p.Steps {
		out[i] = s.Node.Path
	}
	return out
}

// Describe renders the plan one line per step:
//
//	3. insert veicule  order.deliveryman.veicule_deliveryman.veicule  {name=moto}
//	5. lookup gender  order.deliveryman.gender  where {id=2}
//
// Slots filled at run time are listed as "<- column from path".
func (p *Plan) Describe() string {
	var b strings.Builder
	for i, s := range p.Steps {
		n := s.Node
		kind := s.Op.Kind
		if kind == "" {
			kind = Kind(n.Op)
		}
		fmt.Fprintf(&b, "%d. %s %s  %s", i+1, kind, n.Entity.Name, n.Path)

		switch s.Op.Kind {
		case KindLookup:
			fmt.Fprintf(&b, "  where %s", ir.Format(s.Op.Predicate))
		case KindLookupOrInsert:
			fmt.Fprintf(&b, "  where %s else %s", ir.Format(s.Op.Predicate), ir.Format(s.Op.Values))
		case KindInsert:
			if len(s.Op.Values) > 0 {
				fmt.Fprintf(&b, "  %s", ir.Format(s.Op.Values))
			}
		case KindBatchInsert:
			fmt.Fprintf(&b, "  %d rows", len(s.Op.Rows))
		}
		for _, slot := range n.Slots {
			fmt.Fprintf(&b, "  <- %s from %s", slot.Column, slot.From.Path)
		}
		b.WriteByte('\n')
	}
	return b.String()
}
