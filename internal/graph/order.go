package graph

import (
	"slices"

	"github.com/roach88/seedgraph/internal/ir"
)

// Order computes the execution plan with Kahn's algorithm over the
// foreign-key dependency edges: a node follows every node whose key fills
// one of its slots.
//
// Tie-break among ready nodes: declaration order, except that lookups
// (connect, connectOrCreate) are taken only when no write is ready. Lookups
// therefore run as late as possible, right before the node consuming their
// key, and the plan is deterministic for a fixed document. Declaration order
// is kept among ready writes and among ready lookups separately; a write
// declared after a lookup can therefore run before it.
//
// When nodes remain but none is ready, Order fails with a CYCLE error naming
// the entity types of one strongly connected component.
func Order(g *Graph) (*Plan, error) {
	indegree := make([]int, len(g.Nodes))
	for _, n := range g.Nodes {
		indegree[n.Index] = len(n.dependencies())
	}

	var writes, lookups []int
	push := func(n *Node) {
		q := &writes
		if n.Op.IsLookup() {
			q = &lookups
		}
		i, _ := slices.BinarySearch(*q, n.Index)
		*q = slices.Insert(*q, i, n.Index)
	}
	for _, n := range g.Nodes {
		if indegree[n.Index] == 0 {
			push(n)
		}
	}

	plan := &Plan{Graph: g}
	for len(writes) > 0 || len(lookups) > 0 {
		var idx int
		if len(writes) > 0 {
			idx, writes = writes[0], writes[1:]
		} else {
			idx, lookups = lookups[0], lookups[1:]
		}
		n := g.Nodes[idx]
		plan.Steps = append(plan.Steps, &Step{Node: n})

		released := make(map[*Node]bool)
		for _, s := range n.Dependents {
			if released[s.Holder] {
				continue
			}
			released[s.Holder] = true
			indegree[s.Holder.Index]--
			if indegree[s.Holder.Index] == 0 {
				push(s.Holder)
			}
		}
	}

	if len(plan.Steps) < len(g.Nodes) {
		return nil, cycleError(g, plan)
	}
	return plan, nil
}

// cycleError reports the first cycle, in declaration order, among the nodes
// Kahn's algorithm could not emit.
func cycleError(g *Graph, plan *Plan) error {
	emitted := make(map[*Node]bool, len(plan.Steps))
	for _, s := range plan.Steps {
		emitted[s.Node] = true
	}

	var remaining []*Node
	for _, n := range g.Nodes {
		if !emitted[n] {
			remaining = append(remaining, n)
		}
	}

	for _, scc := range stronglyConnected(remaining) {
		if len(scc) == 1 && !slices.Contains(scc[0].dependencies(), scc[0]) {
			continue
		}
		path := cyclePath(scc)
		names := make([]string, len(path))
		for i, n := range path {
			names[i] = n.Entity.Name
		}
		return ir.NewCycleError(path[0].Path, names)
	}

	// Unreachable for a well-formed graph: a stall always contains a cycle.
	return ir.NewCycleError(remaining[0].Path, []string{remaining[0].Entity.Name})
}

// stronglyConnected runs Tarjan's algorithm over the dependency edges of the
// given nodes, visiting roots in declaration order.
func stronglyConnected(nodes []*Node) [][]*Node {
	in := make(map[*Node]bool, len(nodes))
	for _, n := range nodes {
		in[n] = true
	}

	var (
		index   int
		stack   []*Node
		indices = make(map[*Node]int)
		lowlink = make(map[*Node]int)
		onStack = make(map[*Node]bool)
		sccs    [][]*Node
	)

	var visit func(*Node)
	visit = func(v *Node) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range v.dependencies() {
			if !in[w] {
				continue
			}
			if _, seen := indices[w]; !seen {
				visit(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] == indices[v] {
			var scc []*Node
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			slices.SortFunc(scc, func(a, b *Node) int { return a.Index - b.Index })
			sccs = append(sccs, scc)
		}
	}

	for _, n := range nodes {
		if _, seen := indices[n]; !seen {
			visit(n)
		}
	}
	slices.SortFunc(sccs, func(a, b []*Node) int { return a[0].Index - b[0].Index })
	return sccs
}

// cyclePath walks dependency edges inside an SCC from its first node back
// to itself: [a, b, a].
func cyclePath(scc []*Node) []*Node {
	members := make(map[*Node]bool, len(scc))
	for _, n := range scc {
		members[n] = true
	}

	start := scc[0]
	path := []*Node{start}
	visited := map[*Node]bool{start: true}
	for cur := start; ; {
		var next *Node
		for _, d := range cur.dependencies() {
			if d == start {
				next = d
				break
			}
			if members[d] && !visited[d] && next == nil {
				next = d
			}
		}
		if next == nil {
			return append(path, start)
		}
		path = append(path, next)
		if next == start {
			return path
		}
		visited[next] = true
		cur = next
	}
}
