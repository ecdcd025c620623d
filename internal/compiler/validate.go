package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/seedgraph/internal/ir"
)

// Validation error codes (E100-E199)
const (
	ErrMissingPrimaryKey   = "E100" // primary key column is empty
	ErrEntityNoTable       = "E101" // table name is empty
	ErrInvalidKeyStrategy  = "E102" // key strategy not recognised
	ErrInvalidFieldType    = "E103" // field type not recognised
	ErrDuplicateName       = "E104" // duplicate entity/field/relation/unique name
	ErrUnknownTarget       = "E105" // relation target entity not registered
	ErrInvalidRelation     = "E106" // bad cardinality, owner or on_delete
	ErrUnknownUniqueField  = "E107" // unique constraint names an unknown field
	ErrRequiredChildOwned  = "E108" // required is only meaningful on parent-owned relations
	ErrUnknownTransform    = "E109" // transform hook not registered
	ErrDefaultTypeMismatch = "E110" // default literal does not match the field type
	ErrFKTypeConflict      = "E111" // declared FK column type disagrees with the referenced key
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks a compiled registry. Returns all errors found (does not
// fail-fast). knownTransform reports whether a field-transform hook name is
// registered; nil skips that check.
func Validate(s *ir.Schema, knownTransform func(string) bool) []ValidationError {
	var errs []ValidationError

	entityNames := make(map[string]bool, len(s.Entities))
	for i, e := range s.Entities {
		path := fmt.Sprintf("entity.%s", e.Name)
		if entityNames[e.Name] {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("entities[%d].name", i),
				Message: fmt.Sprintf("duplicate entity name: %q", e.Name),
				Code:    ErrDuplicateName,
			})
		}
		entityNames[e.Name] = true

		errs = append(errs, validateEntity(s, path, e, knownTransform)...)
	}
	return errs
}

func validateEntity(s *ir.Schema, path string, e ir.EntityType, knownTransform func(string) bool) []ValidationError {
	var errs []ValidationError

	if strings.TrimSpace(e.Table) == "" {
		errs = append(errs, ValidationError{Field: path + ".table", Message: "table is required", Code: ErrEntityNoTable})
	}
	if strings.TrimSpace(e.PrimaryKey) == "" {
		errs = append(errs, ValidationError{Field: path + ".key.field", Message: "primary key column is required", Code: ErrMissingPrimaryKey})
	}
	if !ir.ValidKeyStrategies[e.KeyStrategy] {
		errs = append(errs, ValidationError{
			Field:   path + ".key.strategy",
			Message: fmt.Sprintf("invalid key strategy %q, must be autoincrement, uuid, ulid or supplied", e.KeyStrategy),
			Code:    ErrInvalidKeyStrategy,
		})
	}

	fieldNames := make(map[string]bool, len(e.Fields))
	for _, f := range e.Fields {
		fpath := path + ".fields." + f.Name
		if fieldNames[f.Name] {
			errs = append(errs, ValidationError{Field: fpath, Message: fmt.Sprintf("duplicate field name: %q", f.Name), Code: ErrDuplicateName})
		}
		fieldNames[f.Name] = true

		if !ir.ValidFieldTypes[f.Type] {
			errs = append(errs, ValidationError{
				Field:   fpath + ".type",
				Message: fmt.Sprintf("invalid type %q for field %q", f.Type, f.Name),
				Code:    ErrInvalidFieldType,
			})
		} else if f.HasDefault() && !defaultMatches(f.Type, f.Default) {
			errs = append(errs, ValidationError{
				Field:   fpath + ".default",
				Message: fmt.Sprintf("default %s is not a %s", ir.Format(f.Default), f.Type),
				Code:    ErrDefaultTypeMismatch,
			})
		}

		if f.Transform != "" && knownTransform != nil && !knownTransform(f.Transform) {
			errs = append(errs, ValidationError{
				Field:   fpath + ".transform",
				Message: fmt.Sprintf("unknown transform %q", f.Transform),
				Code:    ErrUnknownTransform,
			})
		}
	}

	relNames := make(map[string]bool, len(e.Relations))
	for _, r := range e.Relations {
		rpath := path + ".relations." + r.Name
		if relNames[r.Name] {
			errs = append(errs, ValidationError{Field: rpath, Message: fmt.Sprintf("duplicate relation name: %q", r.Name), Code: ErrDuplicateName})
		}
		relNames[r.Name] = true
		if fieldNames[r.Name] {
			errs = append(errs, ValidationError{Field: rpath, Message: fmt.Sprintf("relation %q shadows a field", r.Name), Code: ErrDuplicateName})
		}

		target, ok := s.Entity(r.Target)
		if !ok {
			errs = append(errs, ValidationError{
				Field:   rpath + ".target",
				Message: fmt.Sprintf("unknown target entity %q", r.Target),
				Code:    ErrUnknownTarget,
			})
		}
		if r.Cardinality != ir.One && r.Cardinality != ir.Many {
			errs = append(errs, ValidationError{
				Field:   rpath + ".cardinality",
				Message: fmt.Sprintf("invalid cardinality %q, must be \"one\" or \"many\"", r.Cardinality),
				Code:    ErrInvalidRelation,
			})
		}
		if r.Owner != ir.OwnerParent && r.Owner != ir.OwnerChild {
			errs = append(errs, ValidationError{
				Field:   rpath + ".owner",
				Message: fmt.Sprintf("invalid owner %q, must be \"parent\" or \"child\"", r.Owner),
				Code:    ErrInvalidRelation,
			})
		}
		if r.Cardinality == ir.Many && r.Owner == ir.OwnerParent {
			errs = append(errs, ValidationError{
				Field:   rpath + ".owner",
				Message: "a to-many relation cannot store its foreign key on the parent",
				Code:    ErrInvalidRelation,
			})
		}
		switch r.OnDelete {
		case "", ir.OnDeleteRestrict, ir.OnDeleteCascade, ir.OnDeleteSetNull:
		default:
			errs = append(errs, ValidationError{
				Field:   rpath + ".on_delete",
				Message: fmt.Sprintf("invalid on_delete %q", r.OnDelete),
				Code:    ErrInvalidRelation,
			})
		}
		if r.Required && r.Owner == ir.OwnerChild {
			errs = append(errs, ValidationError{
				Field:   rpath + ".required",
				Message: "required applies only to parent-owned relations",
				Code:    ErrRequiredChildOwned,
			})
		}

		if ok {
			errs = append(errs, validateForeignKeyType(rpath, e, *target, r)...)
		}
	}

	for _, uc := range e.Uniques {
		upath := path + ".unique." + uc.Name
		if len(uc.Fields) == 0 {
			errs = append(errs, ValidationError{Field: upath, Message: "unique constraint has no fields", Code: ErrUnknownUniqueField})
		}
		for _, name := range uc.Fields {
			if _, ok := e.Field(name); !ok {
				errs = append(errs, ValidationError{
					Field:   upath,
					Message: fmt.Sprintf("unknown field %q", name),
					Code:    ErrUnknownUniqueField,
				})
			}
		}
	}

	return errs
}

// validateForeignKeyType checks that an explicitly declared FK column has the
// type of the key it references.
func validateForeignKeyType(rpath string, declaring, target ir.EntityType, r ir.Relation) []ValidationError {
	holder, referenced := declaring, target
	if r.Owner == ir.OwnerChild {
		holder, referenced = target, declaring
	}
	col, ok := holder.Field(r.ForeignKey)
	if !ok {
		return nil
	}
	pk, _ := referenced.Field(referenced.PrimaryKey)
	if col.Type != pk.Type {
		return []ValidationError{{
			Field:   rpath + ".foreign_key",
			Message: fmt.Sprintf("column %s.%s is %s but %s keys are %s", holder.Name, r.ForeignKey, col.Type, referenced.Name, pk.Type),
			Code:    ErrFKTypeConflict,
		}}
	}
	return nil
}

func defaultMatches(typ string, v ir.IRValue) bool {
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
