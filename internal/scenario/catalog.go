package scenario

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"
)

// Catalog is a set of scenarios addressed by name.
type Catalog struct {
	byName map[string]*Scenario
}

// NewCatalog indexes scenarios by name. Duplicate names are an error that
// names both files.
func NewCatalog(scenarios ...*Scenario) (*Catalog, error) {
	c := &Catalog{byName: make(map[string]*Scenario, len(scenarios))}
	for _, s := range scenarios {
		if prev, dup := c.byName[s.Name()]; dup {
			return nil, fmt.Errorf("scenario %q defined twice: %s and %s", s.Name(), prev.Path, s.Path)
		}
		c.byName[s.Name()] = s
	}
	return c, nil
}

// LoadDir loads every scenario file directly under dir. Files are parsed
// concurrently; the first error cancels the rest.
func LoadDir(ctx context.Context, dir string) (*Catalog, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenarios directory: %w", err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") || !IsScenarioFile(e.Name()) {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}

	loaded := make([]*Scenario, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			s, err := Load(path)
			if err != nil {
				return err
			}
			loaded[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return NewCatalog(loaded...)
}

// Len returns the number of scenarios.
func (c *Catalog) Len() int {
	return len(c.byName)
}

// Names returns the scenario names in lexical order.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.byName))
	for n := range c.byName {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// Get returns the named scenario.
func (c *Catalog) Get(name string) (*Scenario, bool) {
	s, ok := c.byName[name]
	return s, ok
}

// Select returns the named scenarios in the given order. With no names it
// returns every scenario in lexical order. All unknown names are reported
// together.
func (c *Catalog) Select(names []string) ([]*Scenario, error) {
	if len(names) == 0 {
		names = c.Names()
	}
	out := make([]*Scenario, 0, len(names))
	var missing []string
	for _, n := range names {
		s, ok := c.byName[n]
		if !ok {
			missing = append(missing, n)
			continue
		}
		out = append(out, s)
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("unknown scenarios: %s (available: %s)",
			strings.Join(missing, ", "), strings.Join(c.Names(), ", "))
	}
	return out, nil
}
