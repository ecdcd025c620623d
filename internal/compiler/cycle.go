package compiler

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/seedgraph/internal/ir"
)

// CycleWarning represents a cycle of foreign-key dependencies between
// entity types.
//
// Cycles are warnings, not errors: a registry may legitimately contain them
// (self-referencing trees, optional back-references). Only a cycle made of
// required parent-owned relations is unseedable, because no row on the
// cycle can be inserted first; those are reported at Level "error".
type CycleWarning struct {
	Path    []string `json:"path"`    // Cycle path: ["account", "profile", "account"]
	Message string   `json:"message"` // Human-readable description
	Level   string   `json:"level"`   // "warning" or "error"
}

// AnalyzeCycles performs static cycle analysis on a registry.
//
// The algorithm:
//  1. Build entity → entity edges: the FK holder depends on the entity it references
//  2. Use Tarjan's algorithm to find strongly connected components
//  3. Report each SCC with size > 1 or a self-loop
//
// A cycle whose every edge is a required relation gets Level "error".
// A DAG returns an empty list. Output order follows registry declaration
// order so repeated runs print identical reports.
func AnalyzeCycles(s *ir.Schema) []CycleWarning {
	graph, required := buildDependencyGraph(s)

	order := make([]string, len(s.Entities))
	for i, e := range s.Entities {
		order[i] = e.Name
	}

	warnings := []CycleWarning{}
	for _, scc := range tarjanSCC(order, graph) {
		if len(scc) == 1 && !slices.Contains(graph[scc[0]], scc[0]) {
			continue
		}
		warnings = append(warnings, cycleToWarning(scc, graph, required))
	}
	return warnings
}

// dependencyGraph maps entity → entities it needs a key from.
type dependencyGraph map[string][]string

// buildDependencyGraph returns the FK dependency graph and the set of
// edges ("from\x00to") that come from required relations.
func buildDependencyGraph(s *ir.Schema) (dependencyGraph, map[string]bool) {
	graph := make(dependencyGraph, len(s.Entities))
	required := make(map[string]bool)

	for _, e := range s.Entities {
		if graph[e.Name] == nil {
			graph[e.Name] = []string{}
		}
		for _, r := range e.Relations {
			if _, ok := s.Entity(r.Target); !ok {
				continue
			}
			from, to := e.Name, r.Target
			if r.Owner == ir.OwnerChild {
				from, to = r.Target, e.Name
			}
			if !slices.Contains(graph[from], to) {
				graph[from] = append(graph[from], to)
			}
			if r.Required && r.Owner == ir.OwnerParent {
				required[from+"\x00"+to] = true
			}
		}
	}
	return graph, required
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm,
// visiting roots in the given order.
func tarjanSCC(order []string, graph dependencyGraph) [][]string {
	var (
		index   int
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range graph[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			// Stack order is reverse discovery order.
			slices.Reverse(scc)
			sccs = append(sccs, scc)
		}
	}

	for _, node := range order {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}
	return sccs
}

func cycleToWarning(scc []string, graph dependencyGraph, required map[string]bool) CycleWarning {
	path := reconstructCyclePath(scc, graph)

	level := "error"
	for i := 0; i+1 < len(path); i++ {
		if !required[path[i]+"\x00"+path[i+1]] {
			level = "warning"
			break
		}
	}

	msg := fmt.Sprintf("foreign-key cycle: %s", strings.Join(path, " -> "))
	if level == "error" {
		msg += " (every relation is required; no row can be inserted first)"
	}
	return CycleWarning{Path: path, Message: msg, Level: level}
}

// reconstructCyclePath walks SCC members from the first one until it
// returns to the start. A self-loop yields [x, x].
func reconstructCyclePath(scc []string, graph dependencyGraph) []string {
	if len(scc) == 0 {
		return []string{}
	}

	members := make(map[string]bool, len(scc))
	for _, n := range scc {
		members[n] = true
	}

	start := scc[0]
	path := []string{start}
	visited := map[string]bool{start: true}
	current := start
	for {
		next := ""
		for _, w := range graph[current] {
			if w == start && len(path) == len(scc) {
				next = w
				break
			}
			if members[w] && !visited[w] {
				next = w
				break
			}
		}
		if next == "" {
			// Fall back to closing the loop directly.
			if slices.Contains(graph[current], start) {
				path = append(path, start)
			}
			return path
		}
		path = append(path, next)
		if next == start {
			return path
		}
		visited[next] = true
		current = next
	}
}
