package graph

import (
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/roach88/seedgraph/internal/ir"
)

// Kind is the storage action a node resolves to.
type Kind string

const (
	KindInsert         Kind = "insert"
	KindLookup         Kind = "lookup"
	KindLookupOrInsert Kind = "lookupOrInsert"
	KindBatchInsert    Kind = "batchInsert"
)

// ResolvedOperation is the classified form of a node.
type ResolvedOperation struct {
	Kind Kind

	// Predicate is the unique lookup predicate (lookup kinds).
	Predicate ir.IRObject
	// Constraint names the unique constraint the predicate covers.
	Constraint string

	// Values are the insert columns with registry defaults applied; FK slots
	// are added at execution time.
	Values ir.IRObject
	// Rows are the batch rows with defaults applied.
	Rows []ir.IRObject
}

// Classify validates a node against its operation and the registry and
// returns the storage action it resolves to. Failures are VALIDATION errors
// carrying the node path.
func Classify(n *Node) (ResolvedOperation, error) {
	switch n.Op {
	case ir.OpCreate:
		if err := forbid(n, presence{"where", n.Where != nil}, presence{"data", n.Rows != nil}); err != nil {
			return ResolvedOperation{}, err
		}
		values, err := createValues(n, n.Path, n.Fields)
		if err != nil {
			return ResolvedOperation{}, err
		}
		return ResolvedOperation{Kind: KindInsert, Values: values}, nil

	case ir.OpConnect:
		if err := forbid(n, presence{"fields", n.Fields != nil}, presence{"data", n.Rows != nil}); err != nil {
			return ResolvedOperation{}, err
		}
		if err := lookupShape(n); err != nil {
			return ResolvedOperation{}, err
		}
		constraint, err := coveredConstraint(n)
		if err != nil {
			return ResolvedOperation{}, err
		}
		return ResolvedOperation{Kind: KindLookup, Predicate: n.Where, Constraint: constraint}, nil

	case ir.OpConnectOrCreate:
		if err := forbid(n, presence{"data", n.Rows != nil}); err != nil {
			return ResolvedOperation{}, err
		}
		if len(n.Fields) == 0 {
			return ResolvedOperation{}, ir.NewValidationError(n.Path, n.Entity.Name,
				"connectOrCreate needs explicit creation fields besides the where predicate")
		}
		if err := lookupShape(n); err != nil {
			return ResolvedOperation{}, err
		}
		constraint, err := coveredConstraint(n)
		if err != nil {
			return ResolvedOperation{}, err
		}
		values, err := createValues(n, n.Path, n.Fields)
		if err != nil {
			return ResolvedOperation{}, err
		}
		return ResolvedOperation{Kind: KindLookupOrInsert, Predicate: n.Where, Constraint: constraint, Values: values}, nil

	case ir.OpCreateMany:
		if err := forbid(n, presence{"fields", n.Fields != nil}, presence{"where", n.Where != nil}); err != nil {
			return ResolvedOperation{}, err
		}
		if len(n.Edges) > 0 {
			return ResolvedOperation{}, ir.NewValidationError(n.Path, n.Entity.Name, "createMany rows cannot have nested relations")
		}
		if len(n.Rows) == 0 {
			return ResolvedOperation{}, ir.NewValidationError(n.Path, n.Entity.Name, "createMany needs at least one data row")
		}
		rows := make([]ir.IRObject, len(n.Rows))
		for i, row := range n.Rows {
			values, err := createValues(n, n.Path+"["+strconv.Itoa(i)+"]", row)
			if err != nil {
				return ResolvedOperation{}, err
			}
			rows[i] = values
		}
		return ResolvedOperation{Kind: KindBatchInsert, Rows: rows}, nil
	}

	return ResolvedOperation{}, ir.NewValidationError(n.Path, n.Entity.Name, "unknown operation %q", n.Op)
}

type presence struct {
	name string
	set  bool
}

// forbid rejects the first block that is present.
func forbid(n *Node, blocks ...presence) error {
	for _, b := range blocks {
		if b.set {
			return ir.NewValidationError(n.Path, n.Entity.Name, "%s does not take %s", n.Op, b.name)
		}
	}
	return nil
}

// lookupShape holds the rules shared by connect and connectOrCreate.
func lookupShape(n *Node) error {
	if len(n.Where) == 0 {
		return ir.NewValidationError(n.Path, n.Entity.Name, "%s requires a non-empty where predicate", n.Op)
	}
	if len(n.Edges) > 0 {
		return ir.NewValidationError(n.Path, n.Entity.Name, "%s cannot declare nested relations", n.Op)
	}
	if len(n.Slots) > 0 {
		return ir.NewValidationError(n.Path, n.Entity.Name,
			"%s cannot store foreign key %s: a lookup performs no write, so the relation must be owned by the parent",
			n.Op, n.Slots[0].Column)
	}
	for _, name := range n.Where.SortedKeys() {
		if _, ok := n.Entity.Field(name); !ok {
			return ir.NewValidationError(n.Path, n.Entity.Name, "unknown predicate field %q", name)
		}
		if ir.IsNull(n.Where[name]) {
			return ir.NewValidationError(n.Path, n.Entity.Name, "predicate field %q is null", name)
		}
	}
	return nil
}

// coveredConstraint returns the first unique constraint (primary key first)
// whose fields are all present in the predicate.
func coveredConstraint(n *Node) (string, error) {
	for _, uc := range n.Entity.KeyConstraints() {
		covered := len(uc.Fields) > 0
		for _, f := range uc.Fields {
			if _, ok := n.Where[f]; !ok {
				covered = false
				break
			}
		}
		if covered {
			return uc.Name, nil
		}
	}

	var options []string
	for _, uc := range n.Entity.KeyConstraints() {
		options = append(options, "("+strings.Join(uc.Fields, ", ")+")")
	}
	return "", ir.NewValidationError(n.Path, n.Entity.Name,
		"predicate %s does not cover a unique constraint of %s; expected one of %s",
		ir.Format(n.Where), n.Entity.Name, strings.Join(options, ", "))
}

// createValues checks one row against the create rules and applies
// registry defaults.
func createValues(n *Node, path string, fields ir.IRObject) (ir.IRObject, error) {
	et := n.Entity
	values := make(ir.IRObject, len(et.Fields)+1)

	for _, name := range fields.SortedKeys() {
		v := fields[name]
		if n.SlotColumn(name) {
			return nil, ir.NewValidationError(path, et.Name, "field %q is set both literally and by a relation", name)
		}
		f, _ := et.Field(name)
		if !typeMatches(f.Type, v) {
			return nil, ir.NewValidationError(path, et.Name, "field %q expects %s, got %s", name, f.Type, ir.Format(v))
		}
		values[name] = v
	}

	if et.KeyStrategy == ir.KeySupplied && ir.IsNull(values[et.PrimaryKey]) {
		return nil, ir.NewValidationError(path, et.Name, "%s keys are supplied; field %q is required", et.Name, et.PrimaryKey)
	}

	for _, r := range et.Relations {
		if !r.Required || r.Owner != ir.OwnerParent {
			continue
		}
		if n.SlotColumn(r.ForeignKey) || !ir.IsNull(values[r.ForeignKey]) {
			continue
		}
		return nil, ir.NewValidationError(path, et.Name, "required relation %q is neither nested nor supplied as %s", r.Name, r.ForeignKey)
	}

	for _, f := range et.Fields {
		if _, set := values[f.Name]; set || n.SlotColumn(f.Name) {
			continue
		}
		if f.HasDefault() {
			values[f.Name] = f.Default
			continue
		}
		if f.Required {
			return nil, ir.NewValidationError(path, et.Name, "missing required field %q", f.Name)
		}
	}
	for _, name := range slices.Sorted(maps.Keys(values)) {
		f, _ := et.Field(name)
		if f.Required && ir.IsNull(values[name]) {
			return nil, ir.NewValidationError(path, et.Name, "required field %q is null", name)
		}
	}
	return values, nil
}

func typeMatches(typ string, v ir.IRValue) bool {
	switch v.(type) {
	case ir.IRNull:
		return true
	case ir.IRString:
		return typ == ir.FieldString
	case ir.IRInt:
		return typ == ir.FieldInt || typ == ir.FieldFloat
	case ir.IRFloat:
		return typ == ir.FieldFloat
	case ir.IRBool:
		return typ == ir.FieldBool
	}
	return false
}
