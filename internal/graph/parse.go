package graph

import (
	"fmt"

	"github.com/roach88/seedgraph/internal/ir"
	"github.com/roach88/seedgraph/internal/transform"
)

// ParseOption configures Parse.
type ParseOption func(*parser)

// WithTransforms sets the hooks used for fields whose registry entry names
// a transform. Without it such fields are rejected.
func WithTransforms(r *transform.Registry) ParseOption {
	return func(p *parser) { p.transforms = r }
}

// WithMaxNodes rejects documents with more than n nodes. Zero means no
// limit.
func WithMaxNodes(n int) ParseOption {
	return func(p *parser) { p.maxNodes = n }
}

type parser struct {
	reg        Registry
	transforms *transform.Registry
	maxNodes   int
	g          *Graph
	refs       []pendingRef
	rootCount  map[string]int
	referenced map[string]bool
}

type pendingRef struct {
	from  *Node
	rel   ir.Relation
	alias string
	path  string
}

// Parse converts a seed document into a Graph. It fails with a
// MALFORMED_SPEC error carrying the node path on any structural problem:
// unknown entity type, relation or field, missing or unknown operation,
// a shape that does not match the relation cardinality, or a bad alias.
// Field-level consistency with the operation is left to Classify.
func Parse(reg Registry, spec ir.GraphSpec, opts ...ParseOption) (*Graph, error) {
	p := &parser{
		reg:        reg,
		g:          &Graph{aliases: make(map[string]*Node)},
		rootCount:  make(map[string]int),
		referenced: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(p)
	}

	if len(spec.Graph) == 0 {
		return nil, ir.NewMalformedSpecError("", "graph has no nodes")
	}

	for i, sn := range spec.Graph {
		if err := p.root(i, sn); err != nil {
			return nil, err
		}
	}
	if err := p.resolveRefs(); err != nil {
		return nil, err
	}
	return p.g, nil
}

func (p *parser) root(i int, sn ir.SeedNode) error {
	if sn.EntityType == "" {
		return ir.NewMalformedSpecError(fmt.Sprintf("graph[%d]", i), "entityType is required on root nodes")
	}
	path := sn.EntityType
	if c := p.rootCount[sn.EntityType]; c > 0 {
		path = fmt.Sprintf("%s[%d]", sn.EntityType, c)
	}
	p.rootCount[sn.EntityType]++

	if sn.Ref != "" {
		return ir.NewMalformedSpecError(path, "a root node cannot be a ref")
	}
	et, ok := p.reg.Entity(sn.EntityType)
	if !ok {
		return ir.NewMalformedSpecError(path, "unknown entity type %q", sn.EntityType)
	}

	n, err := p.node(sn, path, et)
	if err != nil {
		return err
	}
	p.g.Roots = append(p.g.Roots, n)
	return nil
}

func (p *parser) node(sn ir.SeedNode, path string, et *ir.EntityType) (*Node, error) {
	if sn.Operation == "" {
		return nil, ir.NewMalformedSpecError(path, "operation is required")
	}
	if !ir.ValidOperations[sn.Operation] {
		return nil, ir.NewMalformedSpecError(path, "unknown operation %q", sn.Operation)
	}

	if p.maxNodes > 0 && len(p.g.Nodes) >= p.maxNodes {
		return nil, ir.NewMalformedSpecError(path, "graph exceeds the limit of %d nodes", p.maxNodes)
	}

	n := &Node{
		Index:  len(p.g.Nodes),
		Path:   path,
		Entity: et,
		Op:     sn.Operation,
		Alias:  sn.Alias,
		Where:  sn.Where,
	}
	p.g.Nodes = append(p.g.Nodes, n)

	if sn.Alias != "" {
		if sn.Operation == ir.OpCreateMany {
			return nil, ir.NewMalformedSpecError(path, "a createMany node cannot be aliased")
		}
		if _, dup := p.g.aliases[sn.Alias]; dup {
			return nil, ir.NewMalformedSpecError(path, "alias %q declared twice", sn.Alias)
		}
		p.g.aliases[sn.Alias] = n
	}

	var err error
	if n.Fields, err = p.literals(path, et, sn.Fields); err != nil {
		return nil, err
	}
	for i, row := range sn.Data {
		lit, err := p.literals(fmt.Sprintf("%s[%d]", path, i), et, row)
		if err != nil {
			return nil, err
		}
		if lit == nil {
			lit = ir.IRObject{}
		}
		n.Rows = append(n.Rows, lit)
	}

	for _, nr := range sn.Relations {
		if err := p.relation(n, nr); err != nil {
			return nil, err
		}
	}
	return n, nil
}

// literals checks field names and scalar values and applies transforms.
func (p *parser) literals(path string, et *ir.EntityType, in ir.IRObject) (ir.IRObject, error) {
	if in == nil {
		return nil, nil
	}
	out := make(ir.IRObject, len(in))
	for _, name := range in.SortedKeys() {
		v := in[name]
		f, ok := et.Field(name)
		if !ok {
			return nil, ir.NewMalformedSpecError(path, "unknown field %q on %s", name, et.Name)
		}
		if v == nil {
			v = ir.IRNull{}
		}
		if !ir.IsScalar(v) {
			return nil, ir.NewMalformedSpecError(path, "field %q must be a scalar literal", name)
		}
		if f.Transform != "" {
			if !p.transforms.Has(f.Transform) {
				return nil, ir.NewMalformedSpecError(path, "field %q needs transform %q, which is not registered", name, f.Transform)
			}
			tv, err := p.transforms.Apply(f.Transform, v)
			if err != nil {
				return nil, ir.NewMalformedSpecError(path, "field %q: %v", name, err)
			}
			v = tv
		}
		out[name] = v
	}
	return out, nil
}

func (p *parser) relation(n *Node, nr ir.NamedRelation) error {
	rel, ok := n.Entity.Relation(nr.Name)
	if !ok {
		return ir.NewMalformedSpecError(n.Path, "unknown relation %q on %s", nr.Name, n.Entity.Name)
	}
	path := n.Path + "." + nr.Name
	rv := nr.Value

	if rv.IsList {
		if rel.Cardinality != ir.Many {
			return ir.NewMalformedSpecError(path, "to-one relation %q takes a single node, not a list", nr.Name)
		}
		for i, item := range rv.List {
			itemPath := fmt.Sprintf("%s[%d]", path, i)
			if item.Operation == ir.OpCreateMany {
				return ir.NewMalformedSpecError(itemPath, "createMany must be the relation value, not a list item")
			}
			if err := p.child(n, rel, item, itemPath); err != nil {
				return err
			}
		}
		return nil
	}

	if rv.Single == nil {
		return ir.NewMalformedSpecError(path, "relation %q has no value", nr.Name)
	}
	switch {
	case rv.Single.Operation == ir.OpCreateMany && rel.Cardinality != ir.Many:
		return ir.NewMalformedSpecError(path, "createMany requires a to-many relation, %q is to-one", nr.Name)
	case rv.Single.Operation != ir.OpCreateMany && rv.Single.Ref == "" && rel.Cardinality == ir.Many:
		return ir.NewMalformedSpecError(path, "to-many relation %q takes a list or a createMany node", nr.Name)
	}
	return p.child(n, rel, *rv.Single, path)
}

func (p *parser) child(parent *Node, rel ir.Relation, sn ir.SeedNode, path string) error {
	if sn.Ref != "" {
		if sn.Operation != "" || sn.EntityType != "" || sn.Alias != "" ||
			sn.Fields != nil || sn.Where != nil || sn.Data != nil || len(sn.Relations) > 0 {
			return ir.NewMalformedSpecError(path, "a ref entry carries nothing but the alias")
		}
		p.refs = append(p.refs, pendingRef{from: parent, rel: rel, alias: sn.Ref, path: path})
		return nil
	}

	if sn.EntityType != "" && sn.EntityType != rel.Target {
		return ir.NewMalformedSpecError(path, "entityType %q does not match relation target %q", sn.EntityType, rel.Target)
	}
	et, ok := p.reg.Entity(rel.Target)
	if !ok {
		return ir.NewMalformedSpecError(path, "unknown entity type %q", rel.Target)
	}

	edge := &Edge{From: parent, Relation: rel}
	child, err := p.node(sn, path, et)
	if err != nil {
		return err
	}
	edge.To = child
	child.Parent = edge
	parent.Edges = append(parent.Edges, edge)
	return p.link(edge, path)
}

func (p *parser) resolveRefs() error {
	for _, r := range p.refs {
		target, ok := p.g.aliases[r.alias]
		if !ok {
			return ir.NewMalformedSpecError(r.path, "unknown alias %q", r.alias)
		}
		if target.Entity.Name != r.rel.Target {
			return ir.NewMalformedSpecError(r.path, "alias %q is a %s, relation %q needs a %s",
				r.alias, target.Entity.Name, r.rel.Name, r.rel.Target)
		}
		if p.referenced[r.alias] {
			return ir.NewMalformedSpecError(r.path, "alias %q is referenced more than once", r.alias)
		}
		p.referenced[r.alias] = true

		edge := &Edge{From: r.from, To: target, Relation: r.rel, Ref: true}
		r.from.Edges = append(r.from.Edges, edge)
		if err := p.link(edge, r.path); err != nil {
			return err
		}
	}
	return nil
}

// link registers the FK slot an edge creates on its holder.
func (p *parser) link(e *Edge, path string) error {
	holder, dep := e.Holder(), e.Dependency()
	if holder.SlotColumn(e.Relation.ForeignKey) {
		return ir.NewMalformedSpecError(path, "column %s.%s is filled by two relations", holder.Entity.Name, e.Relation.ForeignKey)
	}
	s := &Slot{Column: e.Relation.ForeignKey, Holder: holder, From: dep}
	holder.Slots = append(holder.Slots, s)
	dep.Dependents = append(dep.Dependents, s)
	return nil
}
