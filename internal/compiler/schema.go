package compiler

import (
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"

	"github.com/roach88/seedgraph/internal/ir"
)

// CompileSchema compiles every entity under the top-level "entity" struct
// and completes the registry: default foreign-key columns are derived and
// every FK column is appended to the fields of the entity that stores it.
//
// The result is not validated; run Validate before handing it to the engine.
func CompileSchema(v cue.Value) (*ir.Schema, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	entVal := v.LookupPath(cue.ParsePath("entity"))
	if !entVal.Exists() {
		return nil, &CompileError{Field: "entity", Message: "no entities defined", Pos: v.Pos()}
	}

	iter, err := entVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var entities []ir.EntityType
	for iter.Next() {
		et, err := CompileEntity(iter.Value())
		if err != nil {
			return nil, fmt.Errorf("entity %s: %w", iter.Selector().Unquoted(), err)
		}
		entities = append(entities, *et)
	}

	return BuildSchema(entities), nil
}

// BuildSchema fills derived registry data and indexes the entities.
// Entities written by hand (tests, fixtures) go through here as well so they
// get the same foreign-key defaults as compiled ones.
func BuildSchema(entities []ir.EntityType) *ir.Schema {
	byName := make(map[string]int, len(entities))
	for i, e := range entities {
		byName[e.Name] = i
	}

	for i := range entities {
		e := &entities[i]
		for j := range e.Relations {
			r := &e.Relations[j]
			if r.ForeignKey == "" {
				r.ForeignKey = DefaultForeignKey(e.Name, *r)
			}
		}
	}

	// FK columns are added after defaults are settled so child-owned
	// relations declared later still land on their target.
	for i := range entities {
		e := entities[i]
		for _, r := range e.Relations {
			holder, referenced := e.Name, r.Target
			if r.Owner == ir.OwnerChild {
				holder, referenced = r.Target, e.Name
			}
			hi, ok := byName[holder]
			if !ok {
				continue // unknown target, reported by Validate
			}
			if _, exists := entities[hi].Field(r.ForeignKey); exists {
				continue
			}
			typ := ir.FieldInt
			if ri, ok := byName[referenced]; ok {
				pk, _ := entities[ri].Field(entities[ri].PrimaryKey)
				typ = pk.Type
			}
			entities[hi].Fields = append(entities[hi].Fields, ir.Field{
				Name:     r.ForeignKey,
				Type:     typ,
				Required: r.Owner == ir.OwnerParent && r.Required,
			})
		}
	}

	return ir.NewSchema(entities)
}

// LoadDir loads every .cue file in dir as one CUE instance and compiles the
// registry it declares.
func LoadDir(dir string) (*ir.Schema, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("schema directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("schema directory: not a directory: %s", dir)
	}

	files, err := filepath.Glob(filepath.Join(dir, "*.cue"))
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", dir, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no CUE files found in %s", dir)
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, fmt.Errorf("no CUE instances loaded from %s", dir)
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, fmt.Errorf("loading CUE files: %w", inst.Err)
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	return CompileSchema(value)
}

// CompileString compiles registry source held in memory.
func CompileString(src string) (*ir.Schema, error) {
	ctx := cuecontext.New()
	return CompileSchema(ctx.CompileString(src))
}
