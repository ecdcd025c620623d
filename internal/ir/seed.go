package ir

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Operation is the write requested for a seed node.
type Operation string

const (
	OpCreate          Operation = "create"
	OpConnect         Operation = "connect"
	OpConnectOrCreate Operation = "connectOrCreate"
	OpCreateMany      Operation = "createMany"
)

// ValidOperations lists the accepted operations.
var ValidOperations = map[Operation]bool{
	OpCreate:          true,
	OpConnect:         true,
	OpConnectOrCreate: true,
	OpCreateMany:      true,
}

// IsLookup reports whether the operation starts by resolving an existing row.
func (op Operation) IsLookup() bool {
	return op == OpConnect || op == OpConnectOrCreate
}

// GraphSpec is one nested-write document: a named list of root nodes applied
// together in a single transaction.
type GraphSpec struct {
	Name        string     `yaml:"name" json:"name"`
	Description string     `yaml:"description,omitempty" json:"description,omitempty"`
	Graph       []SeedNode `yaml:"graph" json:"graph"`
}

// SeedNode is one entry of the nested document.
type SeedNode struct {
	// EntityType is required on roots and inferred from the relation target
	// on children.
	EntityType string    `yaml:"entityType,omitempty" json:"entityType,omitempty"`
	Operation  Operation `yaml:"operation" json:"operation"`

	// Alias names this node so a reference edge elsewhere can consume its key.
	Alias string `yaml:"as,omitempty" json:"as,omitempty"`

	// Ref makes this entry a reference edge to the node aliased Ref. A ref
	// entry carries nothing else.
	Ref string `yaml:"ref,omitempty" json:"ref,omitempty"`

	Fields    IRObject   `yaml:"fields,omitempty" json:"fields,omitempty"`
	Where     IRObject   `yaml:"where,omitempty" json:"where,omitempty"`
	Data      []IRObject `yaml:"data,omitempty" json:"data,omitempty"`
	Relations Relations  `yaml:"relations,omitempty" json:"relations,omitempty"`
}

// NamedRelation is one entry of a node's relations block.
type NamedRelation struct {
	Name  string
	Value RelationValue
}

// Relations keeps relation entries in document order. Declaration order is
// the tie-break of the execution plan, so a plain map would make plans
// nondeterministic.
type Relations []NamedRelation

// Get returns the value declared under name.
func (r Relations) Get(name string) (RelationValue, bool) {
	for _, nr := range r {
		if nr.Name == name {
			return nr.Value, true
		}
	}
	return RelationValue{}, false
}

// UnmarshalYAML decodes a mapping, keeping key order.
func (r *Relations) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: relations must be a mapping", node.Line)
	}
	out := make(Relations, 0, len(node.Content)/2)
	seen := make(map[string]bool, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		name := node.Content[i].Value
		if seen[name] {
			return fmt.Errorf("line %d: relation %q declared twice", node.Content[i].Line, name)
		}
		seen[name] = true

		var rv RelationValue
		if err := node.Content[i+1].Decode(&rv); err != nil {
			return fmt.Errorf("relation %q: %w", name, err)
		}
		out = append(out, NamedRelation{Name: name, Value: rv})
	}
	*r = out
	return nil
}

// UnmarshalJSON decodes an object, keeping key order.
func (r *Relations) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("relations must be an object")
	}

	out := Relations{}
	seen := make(map[string]bool)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := tok.(string)
		if !ok {
			return fmt.Errorf("relations: expected a relation name, got %v", tok)
		}
		if seen[name] {
			return fmt.Errorf("relation %q declared twice", name)
		}
		seen[name] = true

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("relation %q: %w", name, err)
		}
		var rv RelationValue
		if err := rv.UnmarshalJSON(raw); err != nil {
			return fmt.Errorf("relation %q: %w", name, err)
		}
		out = append(out, NamedRelation{Name: name, Value: rv})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*r = out
	return nil
}

// MarshalJSON writes the relations as an object in declaration order.
func (r Relations) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, nr := range r {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(nr.Name)
		if err != nil {
			return nil, err
		}
		val, err := nr.Value.MarshalJSON()
		if err != nil {
			return nil, fmt.Errorf("relation %q: %w", nr.Name, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalYAML writes the relations as a mapping in declaration order.
func (r Relations) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, nr := range r {
		var val yaml.Node
		v, err := nr.Value.MarshalYAML()
		if err != nil {
			return nil, err
		}
		if err := val.Encode(v); err != nil {
			return nil, fmt.Errorf("relation %q: %w", nr.Name, err)
		}
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: nr.Name},
			&val,
		)
	}
	return node, nil
}

// RelationValue is either a single node (to-one, or a createMany node under a
// to-many relation) or a list of nodes (to-many).
type RelationValue struct {
	Single *SeedNode
	List   []SeedNode
	IsList bool
}

// OneNode wraps a single node as a relation value.
func OneNode(n SeedNode) RelationValue {
	return RelationValue{Single: &n}
}

// List wraps nodes as a to-many relation value.
func List(nodes ...SeedNode) RelationValue {
	return RelationValue{List: nodes, IsList: true}
}

// UnmarshalYAML accepts a mapping or a sequence.
func (rv *RelationValue) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.SequenceNode:
		var list []SeedNode
		if err := node.Decode(&list); err != nil {
			return err
		}
		*rv = RelationValue{List: list, IsList: true}
	case yaml.MappingNode:
		var n SeedNode
		if err := node.Decode(&n); err != nil {
			return err
		}
		*rv = RelationValue{Single: &n}
	default:
		return fmt.Errorf("line %d: relation value must be a mapping or a list", node.Line)
	}
	return nil
}

// UnmarshalJSON accepts an object or an array.
func (rv *RelationValue) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return fmt.Errorf("empty relation value")
	}
	switch trimmed[0] {
	case '[':
		var list []SeedNode
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return err
		}
		*rv = RelationValue{List: list, IsList: true}
	case '{':
		var n SeedNode
		if err := json.Unmarshal(trimmed, &n); err != nil {
			return err
		}
		*rv = RelationValue{Single: &n}
	default:
		return fmt.Errorf("relation value must be an object or an array")
	}
	return nil
}

// MarshalJSON writes the single node or the list.
func (rv RelationValue) MarshalJSON() ([]byte, error) {
	if rv.IsList {
		if rv.List == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(rv.List)
	}
	return json.Marshal(rv.Single)
}

// MarshalYAML writes the single node or the list.
func (rv RelationValue) MarshalYAML() (any, error) {
	if rv.IsList {
		return rv.List, nil
	}
	return rv.Single, nil
}

// canonicalMap converts a node to plain maps for canonical hashing.
func (n SeedNode) canonicalMap() map[string]any {
	m := map[string]any{"operation": string(n.Operation)}
	if n.EntityType != "" {
		m["entityType"] = n.EntityType
	}
	if n.Alias != "" {
		m["as"] = n.Alias
	}
	if n.Ref != "" {
		m["ref"] = n.Ref
	}
	if n.Fields != nil {
		m["fields"] = n.Fields
	}
	if n.Where != nil {
		m["where"] = n.Where
	}
	if n.Data != nil {
		rows := make([]any, len(n.Data))
		for i, row := range n.Data {
			rows[i] = row
		}
		m["data"] = rows
	}
	if len(n.Relations) > 0 {
		rels := make(map[string]any, len(n.Relations))
		for _, nr := range n.Relations {
			name, rv := nr.Name, nr.Value
			if rv.IsList {
				items := make([]any, len(rv.List))
				for i, child := range rv.List {
					items[i] = child.canonicalMap()
				}
				rels[name] = items
			} else if rv.Single != nil {
				rels[name] = rv.Single.canonicalMap()
			}
		}
		m["relations"] = rels
	}
	return m
}
