package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"strings"

	"github.com/roach88/seedgraph/internal/engine"
	"github.com/roach88/seedgraph/internal/queryir"
	"github.com/roach88/seedgraph/internal/querysql"
)

//go:embed sql/*.sql
var journalDDL embed.FS

// Store is the engine backend over one database.
type Store struct {
	db       *sql.DB
	driver   string
	dialect  querysql.Dialect
	compiler *querysql.SQLCompiler
}

var _ engine.Backend = (*Store)(nil)

// Open connects to dsn with the named driver ("" means sqlite3).
//
// SQLite databases get the pragmas listed in the package doc and a single
// connection, since SQLite supports one writer at a time.
func Open(driver, dsn string) (*Store, error) {
	if driver == "" {
		driver = DefaultDriver
	}
	dialect, err := DialectOf(driver)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if dialect == querysql.SQLite {
		db.SetMaxOpenConns(1) // Single writer to avoid SQLITE_BUSY errors
		db.SetMaxIdleConns(1)
		if err := applyPragmas(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply pragmas: %w", err)
		}
	}

	return New(db, driver, dialect), nil
}

// New wraps an open database. Tests pass sqlmock handles here.
func New(db *sql.DB, driver string, dialect querysql.Dialect) *Store {
	return &Store{
		db:       db,
		driver:   driver,
		dialect:  dialect,
		compiler: querysql.NewSQLCompiler(dialect),
	}
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying sql.DB for direct queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Driver returns the driver name the store was opened with.
func (s *Store) Driver() string {
	return s.driver
}

// Dialect returns the SQL dialect.
func (s *Store) Dialect() querysql.Dialect {
	return s.dialect
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// Bootstrap executes a DDL script verbatim. MySQL gets one statement per
// Exec because its driver rejects multi-statement strings by default.
func (s *Store) Bootstrap(ctx context.Context, ddl string) error {
	stmts := []string{ddl}
	if s.dialect == querysql.MySQL {
		stmts = splitStatements(ddl)
	}
	for _, stmt := range stmts {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("bootstrap: %w", err)
		}
	}
	return nil
}

// EnsureJournal creates the seedgraph_runs table if it does not exist.
func (s *Store) EnsureJournal(ctx context.Context) error {
	ddl, err := journalDDL.ReadFile("sql/journal_" + string(s.dialect) + ".sql")
	if err != nil {
		return fmt.Errorf("journal ddl: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, string(ddl)); err != nil {
		return fmt.Errorf("create journal: %w", err)
	}
	return nil
}

// CountRows returns the number of rows in table.
func (s *Store) CountRows(ctx context.Context, table string) (int, error) {
	query, args, err := s.compiler.Compile(queryir.Count{From: table})
	if err != nil {
		return 0, err
	}
	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}

// Begin opens a transaction for one graph application.
func (s *Store) Begin(ctx context.Context) (engine.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return &Tx{tx: tx, store: s}, nil
}

// splitStatements splits a script on semicolons that end a line.
func splitStatements(script string) []string {
	var out []string
	var cur strings.Builder
	for _, line := range strings.SplitAfter(script, "\n") {
		cur.WriteString(line)
		if strings.HasSuffix(strings.TrimSpace(line), ";") {
			out = append(out, strings.TrimSpace(cur.String()))
			cur.Reset()
		}
	}
	if rest := strings.TrimSpace(cur.String()); rest != "" {
		out = append(out, rest)
	}
	return out
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
