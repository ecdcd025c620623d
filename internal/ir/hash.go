package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content hashes.
// Version suffix enables future algorithm migration.
const (
	DomainGraphSpec = "seedgraph/graph-spec/v1"
	DomainSchema    = "seedgraph/schema/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// SpecHash computes the content hash of a graph spec. Two documents that
// differ only in key order or YAML formatting hash the same; the name and
// description are excluded so a renamed scenario keeps its hash.
func SpecHash(spec GraphSpec) (string, error) {
	roots := make([]any, len(spec.Graph))
	for i, n := range spec.Graph {
		roots[i] = n.canonicalMap()
	}

	canonical, err := MarshalCanonical(roots)
	if err != nil {
		return "", fmt.Errorf("SpecHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainGraphSpec, canonical), nil
}

// SchemaHash computes the content hash of a compiled registry. It is recorded
// with every journal run so a run can be matched to the registry it used.
func SchemaHash(s *Schema) (string, error) {
	entities := make([]any, len(s.Entities))
	for i, e := range s.Entities {
		fields := make([]any, len(e.Fields))
		for j, f := range e.Fields {
			fm := map[string]any{"name": f.Name, "type": f.Type, "required": f.Required}
			if f.Default != nil {
				fm["default"] = f.Default
			}
			if f.Transform != "" {
				fm["transform"] = f.Transform
			}
			fields[j] = fm
		}
		relations := make([]any, len(e.Relations))
		for j, r := range e.Relations {
			relations[j] = map[string]any{
				"name":        r.Name,
				"target":      r.Target,
				"cardinality": string(r.Cardinality),
				"owner":       string(r.Owner),
				"foreign_key": r.ForeignKey,
				"required":    r.Required,
			}
		}
		uniques := make([]any, len(e.Uniques))
		for j, u := range e.Uniques {
			uniques[j] = map[string]any{"name": u.Name, "fields": u.Fields}
		}
		entities[i] = map[string]any{
			"name":         e.Name,
			"table":        e.Table,
			"primary_key":  e.PrimaryKey,
			"key_strategy": string(e.KeyStrategy),
			"fields":       fields,
			"relations":    relations,
			"uniques":      uniques,
		}
	}

	canonical, err := MarshalCanonical(entities)
	if err != nil {
		return "", fmt.Errorf("SchemaHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainSchema, canonical), nil
}
