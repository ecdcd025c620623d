package compiler

import (
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"github.com/go-openapi/inflect"

	"github.com/roach88/seedgraph/internal/ir"
)

// CompileEntity parses a CUE value into an EntityType.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The CUE value should be the entity struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`entity: order: { fields: status: "string" }`)
//	et, err := CompileEntity(v.LookupPath(cue.ParsePath("entity.order")))
//
// Defaults applied here: table is the pluralised snake-case name, the
// primary key is "id" with the autoincrement strategy, relations are to-one
// and parent-owned unless stated. Foreign-key column defaults need the whole
// registry and are filled by CompileSchema.
func CompileEntity(v cue.Value) (*ir.EntityType, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	et := &ir.EntityType{
		PrimaryKey:  "id",
		KeyStrategy: ir.KeyAutoincrement,
	}

	labels := v.Path().Selectors()
	if len(labels) > 0 {
		et.Name = labels[len(labels)-1].Unquoted()
	}
	if et.Name == "" {
		return nil, &CompileError{Field: "entity", Message: "entity name is required", Pos: v.Pos()}
	}

	var err error
	if et.Table, err = optionalString(v, "table"); err != nil {
		return nil, err
	}
	if et.Table == "" {
		et.Table = DefaultTableName(et.Name)
	}

	if err := parseKey(v, et); err != nil {
		return nil, err
	}

	if et.Fields, err = parseFields(v); err != nil {
		return nil, err
	}
	if et.Relations, err = parseRelations(v); err != nil {
		return nil, err
	}
	if et.Uniques, err = parseUniques(v, et.Table); err != nil {
		return nil, err
	}

	return et, nil
}

// DefaultTableName derives a table name from an entity name:
// "PaymentMethod" and "payment_method" both become "payment_methods".
func DefaultTableName(entity string) string {
	return inflect.Pluralize(inflect.Underscore(entity))
}

// DefaultForeignKey derives the FK column for a relation. A parent-owned
// relation stores "<relation>_id" on the declaring entity; a child-owned one
// stores "<singular declaring entity>_id" on the target.
func DefaultForeignKey(declaring string, r ir.Relation) string {
	if r.Owner == ir.OwnerChild {
		return inflect.Singularize(inflect.Underscore(declaring)) + "_id"
	}
	return inflect.Underscore(r.Name) + "_id"
}

// parseKey reads the optional key block: key: {field: "id", strategy: "uuid"}.
// A bare string is shorthand for the strategy.
func parseKey(v cue.Value, et *ir.EntityType) error {
	keyVal := v.LookupPath(cue.ParsePath("key"))
	if !keyVal.Exists() {
		return nil
	}

	if keyVal.Kind() == cue.StringKind {
		s, err := keyVal.String()
		if err != nil {
			return formatCUEError(err)
		}
		et.KeyStrategy = ir.KeyStrategy(s)
		return nil
	}

	field, err := optionalString(keyVal, "field")
	if err != nil {
		return err
	}
	if field != "" {
		et.PrimaryKey = field
	}
	strategy, err := optionalString(keyVal, "strategy")
	if err != nil {
		return err
	}
	if strategy != "" {
		et.KeyStrategy = ir.KeyStrategy(strategy)
	}
	return nil
}

// parseFields extracts the ordered field list. A field is either a type
// string (status: "string") or a struct with type, required, default and
// transform.
func parseFields(v cue.Value) ([]ir.Field, error) {
	fieldsVal := v.LookupPath(cue.ParsePath("fields"))
	if !fieldsVal.Exists() {
		return nil, nil
	}

	iter, err := fieldsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var fields []ir.Field
	for iter.Next() {
		name := iter.Selector().Unquoted()
		fv := iter.Value()

		if fv.Kind() == cue.StringKind {
			typ, err := fv.String()
			if err != nil {
				return nil, formatCUEError(err)
			}
			fields = append(fields, ir.Field{Name: name, Type: typ})
			continue
		}

		f := ir.Field{Name: name}
		if f.Type, err = optionalString(fv, "type"); err != nil {
			return nil, err
		}
		if f.Type == "" {
			return nil, &CompileError{
				Field:   "fields." + name + ".type",
				Message: "field type is required",
				Pos:     fv.Pos(),
			}
		}
		if f.Required, err = optionalBool(fv, "required"); err != nil {
			return nil, err
		}
		if f.Transform, err = optionalString(fv, "transform"); err != nil {
			return nil, err
		}
		if dv := fv.LookupPath(cue.ParsePath("default")); dv.Exists() {
			if f.Default, err = scalarValue(dv); err != nil {
				return nil, err
			}
		}
		fields = append(fields, f)
	}
	return fields, nil
}

// parseRelations extracts the ordered relation list. A relation is either a
// target entity name (gender: "gender") or a struct.
func parseRelations(v cue.Value) ([]ir.Relation, error) {
	relVal := v.LookupPath(cue.ParsePath("relations"))
	if !relVal.Exists() {
		return nil, nil
	}

	iter, err := relVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var relations []ir.Relation
	for iter.Next() {
		name := iter.Selector().Unquoted()
		rv := iter.Value()

		r := ir.Relation{Name: name, Cardinality: ir.One}
		if rv.Kind() == cue.StringKind {
			if r.Target, err = rv.String(); err != nil {
				return nil, formatCUEError(err)
			}
			r.Owner = ir.OwnerParent
			relations = append(relations, r)
			continue
		}

		if r.Target, err = optionalString(rv, "target"); err != nil {
			return nil, err
		}
		if r.Target == "" {
			r.Target = name
		}

		card, err := optionalString(rv, "cardinality")
		if err != nil {
			return nil, err
		}
		if card != "" {
			r.Cardinality = ir.Cardinality(card)
		}

		owner, err := optionalString(rv, "owner")
		if err != nil {
			return nil, err
		}
		switch {
		case owner != "":
			r.Owner = ir.FKOwner(owner)
		case r.Cardinality == ir.Many:
			r.Owner = ir.OwnerChild
		default:
			r.Owner = ir.OwnerParent
		}

		if r.ForeignKey, err = optionalString(rv, "foreign_key"); err != nil {
			return nil, err
		}
		if r.Required, err = optionalBool(rv, "required"); err != nil {
			return nil, err
		}
		if r.OnDelete, err = optionalString(rv, "on_delete"); err != nil {
			return nil, err
		}
		relations = append(relations, r)
	}
	return relations, nil
}

// parseUniques reads unique: {name: ["field", ...]}. An empty name falls
// back to "<table>_<fields>_key".
func parseUniques(v cue.Value, table string) ([]ir.UniqueConstraint, error) {
	uVal := v.LookupPath(cue.ParsePath("unique"))
	if !uVal.Exists() {
		return nil, nil
	}

	iter, err := uVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var uniques []ir.UniqueConstraint
	for iter.Next() {
		uc := ir.UniqueConstraint{Name: iter.Selector().Unquoted()}
		list, err := iter.Value().List()
		if err != nil {
			return nil, &CompileError{
				Field:   "unique." + uc.Name,
				Message: "unique constraint must be a list of field names",
				Pos:     iter.Value().Pos(),
			}
		}
		for list.Next() {
			s, err := list.Value().String()
			if err != nil {
				return nil, formatCUEError(err)
			}
			uc.Fields = append(uc.Fields, s)
		}
		if uc.Name == "" {
			uc.Name = table + "_" + strings.Join(uc.Fields, "_") + "_key"
		}
		uniques = append(uniques, uc)
	}
	return uniques, nil
}

// scalarValue converts a concrete CUE scalar into an IRValue.
func scalarValue(v cue.Value) (ir.IRValue, error) {
	switch v.Kind() {
	case cue.NullKind:
		return ir.IRNull{}, nil
	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.IRString(s), nil
	case cue.IntKind:
		n, err := v.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.IRInt(n), nil
	case cue.FloatKind:
		f, err := v.Float64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.IRFloat(f), nil
	case cue.BoolKind:
		b, err := v.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.IRBool(b), nil
	default:
		return nil, &CompileError{
			Field:   "default",
			Message: fmt.Sprintf("default must be a concrete scalar, got %v", v.IncompleteKind()),
			Pos:     v.Pos(),
		}
	}
}

func optionalString(v cue.Value, path string) (string, error) {
	f := v.LookupPath(cue.ParsePath(path))
	if !f.Exists() {
		return "", nil
	}
	s, err := f.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func optionalBool(v cue.Value, path string) (bool, error) {
	f := v.LookupPath(cue.ParsePath(path))
	if !f.Exists() {
		return false, nil
	}
	b, err := f.Bool()
	if err != nil {
		return false, formatCUEError(err)
	}
	return b, nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	positions := errors.Positions(first)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
