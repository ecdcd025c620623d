// Package querysql renders queryir statements as parameterized SQL for one
// dialect.
package querysql

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/seedgraph/internal/ir"
	"github.com/roach88/seedgraph/internal/queryir"
)

// Dialect selects quoting, placeholder and RETURNING rules.
type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
	MySQL    Dialect = "mysql"
)

// ParseDialect maps a dialect name to a Dialect.
func ParseDialect(name string) (Dialect, error) {
	switch d := Dialect(name); d {
	case SQLite, Postgres, MySQL:
		return d, nil
	}
	return "", fmt.Errorf("unknown dialect %q", name)
}

// Quote quotes an identifier.
func (d Dialect) Quote(ident string) string {
	if d == MySQL {
		return "`" + strings.ReplaceAll(ident, "`", "``") + "`"
	}
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

// Placeholder returns the n-th (1-based) bind parameter.
func (d Dialect) Placeholder(n int) string {
	if d == Postgres {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

// SupportsReturning reports whether Insert.Returning is rendered.
// SQLite and MySQL keys come from the driver's last insert id instead.
func (d Dialect) SupportsReturning() bool {
	return d == Postgres
}

// SQLCompiler compiles queryir statements for a dialect.
//
// Every Select carries an ORDER BY so multi-row results are deterministic.
// Values are never interpolated.
type SQLCompiler struct {
	Dialect Dialect
}

// NewSQLCompiler creates a compiler for d.
func NewSQLCompiler(d Dialect) *SQLCompiler {
	return &SQLCompiler{Dialect: d}
}

// Compile converts a statement to SQL and its bind parameters.
func (c *SQLCompiler) Compile(s queryir.Statement) (string, []any, error) {
	if s == nil {
		return "", nil, fmt.Errorf("cannot compile nil statement")
	}
	if res := queryir.Validate(s); !res.Valid {
		return "", nil, fmt.Errorf("invalid statement: %s", strings.Join(res.Problems, "; "))
	}

	switch st := s.(type) {
	case queryir.Insert:
		return c.compileInsert(st)
	case *queryir.Insert:
		return c.compileInsert(*st)
	case queryir.Select:
		return c.compileSelect(st)
	case *queryir.Select:
		return c.compileSelect(*st)
	case queryir.Count:
		return "SELECT COUNT(*) FROM " + c.Dialect.Quote(st.From), nil, nil
	case *queryir.Count:
		return c.Compile(*st)
	default:
		return "", nil, fmt.Errorf("unsupported statement type: %T", s)
	}
}

func (c *SQLCompiler) compileInsert(ins queryir.Insert) (string, []any, error) {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(c.Dialect.Quote(ins.Table))

	if len(ins.Columns) == 0 {
		if len(ins.Rows) != 1 {
			return "", nil, fmt.Errorf("insert into %s: %d rows without columns", ins.Table, len(ins.Rows))
		}
		if c.Dialect == MySQL {
			b.WriteString(" () VALUES ()")
		} else {
			b.WriteString(" DEFAULT VALUES")
		}
		c.returning(&b, ins.Returning)
		return b.String(), nil, nil
	}

	cols := make([]string, len(ins.Columns))
	for i, col := range ins.Columns {
		cols[i] = c.Dialect.Quote(col)
	}
	b.WriteString(" (")
	b.WriteString(strings.Join(cols, ", "))
	b.WriteString(") VALUES ")

	params := make([]any, 0, len(ins.Rows)*len(ins.Columns))
	for r, row := range ins.Rows {
		if r > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for i, v := range row {
			if i > 0 {
				b.WriteString(", ")
			}
			p, err := irValueToParam(v)
			if err != nil {
				return "", nil, fmt.Errorf("insert into %s column %s: %w", ins.Table, ins.Columns[i], err)
			}
			params = append(params, p)
			b.WriteString(c.Dialect.Placeholder(len(params)))
		}
		b.WriteByte(')')
	}
	c.returning(&b, ins.Returning)
	return b.String(), params, nil
}

func (c *SQLCompiler) returning(b *strings.Builder, col string) {
	if col != "" && c.Dialect.SupportsReturning() {
		b.WriteString(" RETURNING ")
		b.WriteString(c.Dialect.Quote(col))
	}
}

func (c *SQLCompiler) compileSelect(sel queryir.Select) (string, []any, error) {
	cols := make([]string, len(sel.Columns))
	for i, col := range sel.Columns {
		cols[i] = c.Dialect.Quote(col)
	}

	var params []any
	sql := fmt.Sprintf("SELECT %s FROM %s", strings.Join(cols, ", "), c.Dialect.Quote(sel.From))
	if sel.Filter != nil {
		where, err := c.compilePredicate(sel.Filter, &params)
		if err != nil {
			return "", nil, fmt.Errorf("compile filter: %w", err)
		}
		if where != "" {
			sql += " WHERE " + where
		}
	}

	order := sel.OrderBy
	if len(order) == 0 {
		order = sel.Columns[:1]
	}
	quoted := make([]string, len(order))
	for i, col := range order {
		quoted[i] = c.Dialect.Quote(col)
	}
	sql += " ORDER BY " + strings.Join(quoted, ", ")

	if sel.Limit > 0 {
		sql += " LIMIT " + strconv.Itoa(sel.Limit)
	}
	return sql, params, nil
}

// compilePredicate appends bind values to params. An empty conjunction
// compiles to "".
func (c *SQLCompiler) compilePredicate(p queryir.Predicate, params *[]any) (string, error) {
	switch pred := p.(type) {
	case queryir.Equals:
		v, err := irValueToParam(pred.Value)
		if err != nil {
			return "", fmt.Errorf("field %s: %w", pred.Field, err)
		}
		*params = append(*params, v)
		return c.Dialect.Quote(pred.Field) + " = " + c.Dialect.Placeholder(len(*params)), nil
	case *queryir.Equals:
		return c.compilePredicate(*pred, params)
	case queryir.And:
		parts := make([]string, 0, len(pred.Predicates))
		for _, sub := range pred.Predicates {
			s, err := c.compilePredicate(sub, params)
			if err != nil {
				return "", err
			}
			if s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, " AND "), nil
	case *queryir.And:
		return c.compilePredicate(*pred, params)
	default:
		return "", fmt.Errorf("unsupported predicate type: %T", p)
	}
}

// irValueToParam converts a scalar to a driver value.
func irValueToParam(v ir.IRValue) (any, error) {
	switch val := v.(type) {
	case nil, ir.IRNull:
		return nil, nil
	case ir.IRString:
		return string(val), nil
	case ir.IRInt:
		return int64(val), nil
	case ir.IRFloat:
		return float64(val), nil
	case ir.IRBool:
		return bool(val), nil
	case ir.IRObject:
		return nil, fmt.Errorf("IRObject cannot be used as SQL parameter")
	default:
		return nil, fmt.Errorf("unsupported IRValue type for SQL parameter: %T", v)
	}
}
