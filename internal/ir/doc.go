// Package ir provides the intermediate representation shared by every
// seedgraph package: literal values, schema registry types, the nested seed
// document, the error taxonomy and canonical JSON hashing.
//
// This package contains type definitions and pure helpers only. All other
// internal packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Literal values are scalars (IRValue); lists and maps never reach a column
//   - Relation blocks keep document order, which the planner uses as tie-break
//   - Hashes use canonical JSON with domain separation
package ir
