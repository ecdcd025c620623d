package queryir

import (
	"fmt"

	"github.com/roach88/seedgraph/internal/ir"
)

// ValidationResult lists the problems found in a statement.
type ValidationResult struct {
	Valid    bool
	Problems []string
}

// Validate checks that a statement can be compiled into well-formed SQL.
//
// Rules:
//  1. Every statement names a table
//  2. Insert rows have exactly one value per column, and at least one row
//  3. Select names at least one column
//  4. Equals never compares against null (it would never match)
//
// Validate is a pure function with no side effects.
func Validate(s Statement) ValidationResult {
	v := &validator{}
	v.validateStatement(s)
	return ValidationResult{Valid: len(v.problems) == 0, Problems: v.problems}
}

type validator struct {
	problems []string
}

func (v *validator) addProblem(format string, args ...any) {
	v.problems = append(v.problems, fmt.Sprintf(format, args...))
}

func (v *validator) validateStatement(s Statement) {
	switch st := s.(type) {
	case nil:
		v.addProblem("nil statement")
	case Insert:
		v.validateInsert(st)
	case *Insert:
		v.validateInsert(*st)
	case Select:
		v.validateSelect(st)
	case *Select:
		v.validateSelect(*st)
	case Count:
		if st.From == "" {
			v.addProblem("count without table")
		}
	case *Count:
		v.validateStatement(*st)
	default:
		v.addProblem("unknown statement type %T", s)
	}
}

func (v *validator) validateInsert(ins Insert) {
	if ins.Table == "" {
		v.addProblem("insert without table")
	}
	if len(ins.Rows) == 0 {
		v.addProblem("insert into %s has no rows", ins.Table)
	}
	for i, row := range ins.Rows {
		if len(row) != len(ins.Columns) {
			v.addProblem("insert into %s: row %d has %d values for %d columns", ins.Table, i, len(row), len(ins.Columns))
		}
	}
}

func (v *validator) validateSelect(sel Select) {
	if sel.From == "" {
		v.addProblem("select without table")
	}
	if len(sel.Columns) == 0 {
		v.addProblem("select from %s names no columns", sel.From)
	}
	if sel.Limit < 0 {
		v.addProblem("negative limit %d", sel.Limit)
	}
	v.validatePredicate(sel.Filter)
}

func (v *validator) validatePredicate(p Predicate) {
	switch pred := p.(type) {
	case nil:
	case Equals:
		v.validateEquals(pred)
	case *Equals:
		v.validateEquals(*pred)
	case And:
		for _, sub := range pred.Predicates {
			v.validatePredicate(sub)
		}
	case *And:
		v.validatePredicate(*pred)
	default:
		v.addProblem("unknown predicate type %T", p)
	}
}

func (v *validator) validateEquals(eq Equals) {
	if eq.Field == "" {
		v.addProblem("equality without field")
	}
	if ir.IsNull(eq.Value) {
		v.addProblem("field %q compared to NULL never matches", eq.Field)
	}
}
