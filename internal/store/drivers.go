package store

import (
	"fmt"
	"sort"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"

	"github.com/roach88/seedgraph/internal/querysql"
)

// DefaultDriver is used when no driver is configured.
const DefaultDriver = "sqlite3"

// drivers maps database/sql driver names to their dialect.
var drivers = map[string]querysql.Dialect{
	"sqlite3":  querysql.SQLite,
	"sqlite":   querysql.SQLite,
	"pgx":      querysql.Postgres,
	"postgres": querysql.Postgres,
	"mysql":    querysql.MySQL,
}

// DialectOf returns the dialect for a driver name.
func DialectOf(driver string) (querysql.Dialect, error) {
	d, ok := drivers[driver]
	if !ok {
		return "", fmt.Errorf("unsupported driver %q (supported: %v)", driver, Drivers())
	}
	return d, nil
}

// Drivers lists the supported driver names, sorted.
func Drivers() []string {
	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
