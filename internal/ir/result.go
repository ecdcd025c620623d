package ir

import (
	"slices"
	"time"
)

// CommitResult is returned by a successful graph application.
type CommitResult struct {
	// RunID identifies this application (UUIDv7).
	RunID string `json:"run_id"`

	// Scenario is the graph spec name.
	Scenario string `json:"scenario"`

	// SpecHash is the content hash of the applied spec.
	SpecHash string `json:"spec_hash"`

	// Keys maps every node path to its allocated or resolved key.
	// CreateMany rows appear as "path[i]".
	Keys map[string]IRValue `json:"keys"`

	// Inserted counts rows written.
	Inserted int `json:"inserted"`

	// Connected counts connect lookups that resolved an existing row.
	Connected int `json:"connected"`

	// Fallbacks counts connectOrCreate lookups that missed and created.
	Fallbacks int `json:"fallbacks"`
}

// SortedPaths returns the result paths in lexical order.
func (r *CommitResult) SortedPaths() []string {
	paths := make([]string, 0, len(r.Keys))
	for p := range r.Keys {
		paths = append(paths, p)
	}
	slices.Sort(paths)
	return paths
}

// RunRecord is one entry of the run journal.
type RunRecord struct {
	ID         string             `json:"id"`
	Scenario   string             `json:"scenario"`
	SpecHash   string             `json:"spec_hash"`
	SchemaHash string             `json:"schema_hash,omitempty"`
	Inserted   int                `json:"inserted"`
	AppliedAt  time.Time          `json:"applied_at"`
	Keys       map[string]IRValue `json:"keys"`
}
