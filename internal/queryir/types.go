package queryir

import (
	"slices"

	"github.com/roach88/seedgraph/internal/ir"
)

// Statement is a sealed interface implemented by Insert, Select and Count.
type Statement interface {
	statementNode()
}

// Predicate is a sealed interface implemented by Equals and And.
type Predicate interface {
	predicateNode()
}

// Insert writes Rows into Table. Every row has one value per column, in
// Columns order.
//
// Returning names the key column the database should hand back. Compilers
// for dialects without RETURNING ignore it; the caller then reads the
// driver's last insert id.
type Insert struct {
	Table     string
	Columns   []string
	Rows      [][]ir.IRValue
	Returning string
}

func (Insert) statementNode() {}

// Select reads Columns from From.
//
//	SELECT <columns> FROM <from> WHERE <filter> ORDER BY <order> LIMIT <limit>
//
// Limit 0 means no limit. OrderBy defaults to the first column so results
// are deterministic.
type Select struct {
	From    string
	Columns []string
	Filter  Predicate
	OrderBy []string
	Limit   int
}

func (Select) statementNode() {}

// Count counts the rows of From.
type Count struct {
	From string
}

func (Count) statementNode() {}

// Equals is `field = value`. A null value never matches anything.
type Equals struct {
	Field string
	Value ir.IRValue
}

func (Equals) predicateNode() {}

// And holds when all predicates hold. Empty means always true.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// Match builds the conjunction of equalities for a unique predicate, with
// fields in sorted order.
func Match(predicate ir.IRObject) Predicate {
	and := And{Predicates: make([]Predicate, 0, len(predicate))}
	for _, k := range predicate.SortedKeys() {
		and.Predicates = append(and.Predicates, Equals{Field: k, Value: predicate[k]})
	}
	return and
}

// NewInsert builds a single-row insert with columns in sorted order.
func NewInsert(table string, values ir.IRObject, returning string) Insert {
	cols := values.SortedKeys()
	row := make([]ir.IRValue, len(cols))
	for i, c := range cols {
		row[i] = values[c]
	}
	return Insert{Table: table, Columns: cols, Rows: [][]ir.IRValue{row}, Returning: returning}
}

// InsertRows groups consecutive rows with the same column set into
// multi-row inserts. Row order is preserved across the returned statements.
func InsertRows(table string, rows []ir.IRObject, returning string) []Insert {
	var out []Insert
	for _, values := range rows {
		cols := values.SortedKeys()
		row := make([]ir.IRValue, len(cols))
		for i, c := range cols {
			row[i] = values[c]
		}
		if len(out) > 0 && slices.Equal(out[len(out)-1].Columns, cols) {
			out[len(out)-1].Rows = append(out[len(out)-1].Rows, row)
			continue
		}
		out = append(out, Insert{Table: table, Columns: cols, Rows: [][]ir.IRValue{row}, Returning: returning})
	}
	return out
}
