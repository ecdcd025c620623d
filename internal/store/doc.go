// Package store is the database/sql storage backend of the engine.
//
// One Store wraps one *sql.DB and one SQL dialect. Supported drivers:
//
//	sqlite3   github.com/mattn/go-sqlite3 (default)
//	sqlite    modernc.org/sqlite
//	pgx       github.com/jackc/pgx/v5/stdlib
//	postgres  github.com/lib/pq
//	mysql     github.com/go-sql-driver/mysql
//
// Statements are built as queryir values and rendered by querysql, so every
// value is a bound parameter. Driver errors for unique, foreign-key and
// not-null violations are classified as CONSTRAINT_VIOLATION.
//
// # SQLite configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// # Run journal
//
// The optional seedgraph_runs table records every committed run: scenario,
// spec hash, row count and the path → key mapping, msgpack-encoded. The
// record is written in the same transaction as the run.
//
// The store never migrates application tables. Bootstrap executes a DDL
// script verbatim, nothing more.
package store
