// Package queryir is the statement IR between the storage backend and the
// per-dialect SQL compiler.
//
// The engine only ever needs three shapes of SQL, so the IR is small:
//
//	Insert   one or more rows sharing a column set, optional RETURNING key
//	Select   key columns filtered by a conjunction of equalities
//	Count    row count of a table
//
// The store builds statements from resolved operations; querysql renders
// them for sqlite, postgres or mysql. Values are always bound parameters.
//
// Statement and Predicate are sealed with marker methods so compilers can
// switch exhaustively.
package queryir
