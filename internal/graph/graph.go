// Package graph turns a nested seed document into an ordered, classified
// execution plan.
//
// The pipeline is pure and touches no storage:
//
//	Parse    document → Graph (nodes, owning edges, reference edges, FK slots)
//	Order    Graph → Plan (Kahn's algorithm, declaration-order tie-break)
//	Classify each plan step → ResolvedOperation (insert, lookup, ...)
//
// The engine writes allocated keys into a Graph while executing, so it must
// never be shared between concurrent runs. Plan.Reset clears those keys.
package graph

import (
	"github.com/roach88/seedgraph/internal/ir"
)

// Registry is the read-only schema registry consumed by the parser.
// *ir.Schema implements it.
type Registry interface {
	Entity(name string) (*ir.EntityType, bool)
}

// Graph is the node/edge structure built from one seed document.
type Graph struct {
	// Roots are the top-level nodes in document order.
	Roots []*Node

	// Nodes lists every node in declaration (pre-order) order;
	// Nodes[i].Index == i.
	Nodes []*Node

	aliases map[string]*Node
}

// Alias returns the node declared with `as: name`.
func (g *Graph) Alias(name string) (*Node, bool) {
	n, ok := g.aliases[name]
	return n, ok
}

// Node is one entity write or lookup.
type Node struct {
	Index  int
	Path   string
	Entity *ir.EntityType
	Op     ir.Operation
	Alias  string

	// Fields are the literal column values after field transforms.
	Fields ir.IRObject
	// Where is the unique predicate of connect and connectOrCreate.
	Where ir.IRObject
	// Rows are the literal rows of a createMany node.
	Rows []ir.IRObject

	// Edges are the relations declared on this node, owned and referenced,
	// in document order.
	Edges []*Edge
	// Parent is the owning edge; nil for roots.
	Parent *Edge

	// Slots are the FK columns this node stores whose value comes from
	// another node's key.
	Slots []*Slot
	// Dependents are the slots on other nodes waiting for this node's key.
	Dependents []*Slot

	// Key is set once the node is written or resolved.
	Key ir.IRValue
	// Keys holds one key per row of a createMany node.
	Keys []ir.IRValue
}

// Resolved reports whether the node's key is known.
func (n *Node) Resolved() bool {
	if n.Op == ir.OpCreateMany {
		return n.Keys != nil
	}
	return n.Key != nil
}

// Unfilled returns the FK columns still waiting for a key.
func (n *Node) Unfilled() []string {
	var out []string
	for _, s := range n.Slots {
		if !s.Filled() {
			out = append(out, s.Column)
		}
	}
	return out
}

// SlotColumn reports whether column is filled from a dependency.
func (n *Node) SlotColumn(column string) bool {
	for _, s := range n.Slots {
		if s.Column == column {
			return true
		}
	}
	return false
}

// dependencies returns the distinct nodes this node must follow.
func (n *Node) dependencies() []*Node {
	var deps []*Node
	seen := make(map[*Node]bool, len(n.Slots))
	for _, s := range n.Slots {
		if !seen[s.From] {
			seen[s.From] = true
			deps = append(deps, s.From)
		}
	}
	return deps
}

// Edge links a declaring node to a related node through a relation.
type Edge struct {
	From     *Node // node declaring the relation
	To       *Node // related node
	Relation ir.Relation
	// Ref marks a reference edge: To is owned elsewhere and only its key
	// is consumed here.
	Ref bool
}

// Holder returns the node that stores the foreign-key column.
func (e *Edge) Holder() *Node {
	if e.Relation.Owner == ir.OwnerChild {
		return e.To
	}
	return e.From
}

// Dependency returns the node whose key fills the foreign-key column.
func (e *Edge) Dependency() *Node {
	if e.Relation.Owner == ir.OwnerChild {
		return e.From
	}
	return e.To
}

// Slot is a pending foreign-key column on a node.
type Slot struct {
	Column string
	Holder *Node
	From   *Node
	Value  ir.IRValue
}

// Filled reports whether the slot has received its key.
func (s *Slot) Filled() bool {
	return s.Value != nil
}
