// Package engine applies classified execution plans to a storage backend.
//
// One call, one transaction:
//
//	Plan        spec → classified graph.Plan (no storage access)
//	Apply       plan → CommitResult, inside a single backend transaction
//	ApplyGraph  Plan + Apply
//
// Execution is strictly sequential in plan order. Each node's key is either
// allocated before the write (uuid, ulid, supplied), returned by the backend
// (autoincrement) or resolved by a unique lookup, and is then back-filled
// into every foreign-key slot waiting on it.
//
// Any failure after the transaction opens rolls it back and surfaces as a
// TRANSACTION_ABORT error wrapping the cause, so a failed call leaves the
// database exactly as it found it.
//
// An Engine holds no per-call state and is safe for concurrent use; each
// call parses a fresh graph.
package engine
