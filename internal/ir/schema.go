package ir

import "fmt"

// KeyStrategy controls how an entity's primary key is produced.
type KeyStrategy string

const (
	// KeyAutoincrement lets the database assign the key on insert.
	KeyAutoincrement KeyStrategy = "autoincrement"
	// KeyUUID allocates a UUIDv7 string before insert.
	KeyUUID KeyStrategy = "uuid"
	// KeyULID allocates a monotonic ULID string before insert.
	KeyULID KeyStrategy = "ulid"
	// KeySupplied requires the seed document to provide the key literally.
	KeySupplied KeyStrategy = "supplied"
)

// ValidKeyStrategies lists the accepted key strategies.
var ValidKeyStrategies = map[KeyStrategy]bool{
	KeyAutoincrement: true,
	KeyUUID:          true,
	KeyULID:          true,
	KeySupplied:      true,
}

// Field types accepted in the registry.
const (
	FieldString = "string"
	FieldInt    = "int"
	FieldFloat  = "float"
	FieldBool   = "bool"
)

// ValidFieldTypes lists the accepted scalar field types.
var ValidFieldTypes = map[string]bool{
	FieldString: true,
	FieldInt:    true,
	FieldFloat:  true,
	FieldBool:   true,
}

// Cardinality of a relation as seen from the declaring entity.
type Cardinality string

const (
	One  Cardinality = "one"
	Many Cardinality = "many"
)

// FKOwner names the side of a relation that stores the foreign-key column.
type FKOwner string

const (
	// OwnerParent: the declaring entity holds a column referencing the target.
	OwnerParent FKOwner = "parent"
	// OwnerChild: the target holds a column referencing the declaring entity.
	OwnerChild FKOwner = "child"
)

// Cascading rules. They are carried as metadata for tooling; the engine
// never deletes rows.
const (
	OnDeleteRestrict = "restrict"
	OnDeleteCascade  = "cascade"
	OnDeleteSetNull  = "set_null"
)

// Field describes one column of an entity.
type Field struct {
	Name      string  `json:"name"`
	Type      string  `json:"type"`
	Required  bool    `json:"required,omitempty"`
	Default   IRValue `json:"default,omitempty"`
	Transform string  `json:"transform,omitempty"` // field-transform hook name, e.g. "bcrypt"
}

// HasDefault reports whether the registry supplies a value when the seed omits one.
func (f Field) HasDefault() bool {
	return f.Default != nil
}

// Relation describes a named link from the declaring entity to Target.
type Relation struct {
	Name        string      `json:"name"`
	Target      string      `json:"target"`
	Cardinality Cardinality `json:"cardinality"`
	Owner       FKOwner     `json:"owner"`
	ForeignKey  string      `json:"foreign_key"`
	Required    bool        `json:"required,omitempty"`
	OnDelete    string      `json:"on_delete,omitempty"`
}

// UniqueConstraint is a set of fields whose combined values identify one row.
type UniqueConstraint struct {
	Name   string   `json:"name"`
	Fields []string `json:"fields"`
}

// EntityType is the registry entry for one table.
type EntityType struct {
	Name        string             `json:"name"`
	Table       string             `json:"table"`
	PrimaryKey  string             `json:"primary_key"`
	KeyStrategy KeyStrategy        `json:"key_strategy"`
	Fields      []Field            `json:"fields"`
	Relations   []Relation         `json:"relations,omitempty"`
	Uniques     []UniqueConstraint `json:"uniques,omitempty"`
}

// Field returns the named field. The primary key and foreign-key columns
// owned by this entity are reported as fields too, so callers can treat
// every writable column uniformly.
func (e *EntityType) Field(name string) (Field, bool) {
	for _, f := range e.Fields {
		if f.Name == name {
			return f, true
		}
	}
	if name == e.PrimaryKey {
		typ := FieldInt
		if e.KeyStrategy != KeyAutoincrement {
			typ = FieldString
		}
		return Field{Name: name, Type: typ, Required: e.KeyStrategy == KeySupplied}, true
	}
	return Field{}, false
}

// Relation returns the named relation.
func (e *EntityType) Relation(name string) (Relation, bool) {
	for _, r := range e.Relations {
		if r.Name == name {
			return r, true
		}
	}
	return Relation{}, false
}

// KeyConstraints returns the unique constraints including the implicit
// primary-key constraint, which always comes first.
func (e *EntityType) KeyConstraints() []UniqueConstraint {
	out := make([]UniqueConstraint, 0, len(e.Uniques)+1)
	out = append(out, UniqueConstraint{Name: e.Table + "_pkey", Fields: []string{e.PrimaryKey}})
	return append(out, e.Uniques...)
}

// Schema is a compiled schema registry.
// Entities keep declaration order; lookups go through an index.
type Schema struct {
	Entities []EntityType `json:"entities"`

	// foreignKeys maps entity name to columns it holds because a relation
	// declared on either side places the FK on it.
	foreignKeys map[string]map[string]bool
	index       map[string]int
}

// NewSchema indexes entities for lookup. Entity names must be unique;
// the compiler guarantees that before calling.
func NewSchema(entities []EntityType) *Schema {
	s := &Schema{
		Entities:    entities,
		index:       make(map[string]int, len(entities)),
		foreignKeys: make(map[string]map[string]bool),
	}
	for i, e := range entities {
		s.index[e.Name] = i
	}
	for _, e := range entities {
		for _, r := range e.Relations {
			holder := e.Name
			if r.Owner == OwnerChild {
				holder = r.Target
			}
			if s.foreignKeys[holder] == nil {
				s.foreignKeys[holder] = make(map[string]bool)
			}
			s.foreignKeys[holder][r.ForeignKey] = true
		}
	}
	return s
}

// Entity returns the entity type registered under name.
func (s *Schema) Entity(name string) (*EntityType, bool) {
	i, ok := s.index[name]
	if !ok {
		return nil, false
	}
	return &s.Entities[i], true
}

// FieldsOf returns the declared fields of an entity type.
func (s *Schema) FieldsOf(entity string) ([]Field, error) {
	e, ok := s.Entity(entity)
	if !ok {
		return nil, fmt.Errorf("unknown entity type %q", entity)
	}
	return e.Fields, nil
}

// RelationsOf returns the relations declared on an entity type.
func (s *Schema) RelationsOf(entity string) ([]Relation, error) {
	e, ok := s.Entity(entity)
	if !ok {
		return nil, fmt.Errorf("unknown entity type %q", entity)
	}
	return e.Relations, nil
}

// UniqueConstraintsOf returns all unique constraints including the primary key.
func (s *Schema) UniqueConstraintsOf(entity string) ([]UniqueConstraint, error) {
	e, ok := s.Entity(entity)
	if !ok {
		return nil, fmt.Errorf("unknown entity type %q", entity)
	}
	return e.KeyConstraints(), nil
}

// IsForeignKey reports whether column is a foreign key held by entity,
// whichever side declared the relation.
func (s *Schema) IsForeignKey(entity, column string) bool {
	return s.foreignKeys[entity][column]
}
