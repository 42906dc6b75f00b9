package kajiya

import (
	"fmt"
	"sort"
)

// depGraph is the directed acyclic dependency graph between requested
// recipes. An edge prerequisite -> dependent means the dependent's
// recipe may not start before the prerequisite's prefix is complete.
type depGraph struct {
	nodes map[Variant]bool
	deps  map[Variant][]Variant // dependent -> prerequisites within the graph
}

func newDepGraph() *depGraph {
	return &depGraph{
		nodes: make(map[Variant]bool),
		deps:  make(map[Variant][]Variant),
	}
}

func (g *depGraph) addNode(v Variant) {
	g.nodes[v] = true
}

// addEdge records that `to` depends on `from`. Both nodes must exist;
// edges to variants outside the requested set are the caller's concern
// (they are satisfied by prefixes from prior runs).
func (g *depGraph) addEdge(from, to Variant) error {
	if from == to {
		return fmt.Errorf("self-referential dependency not allowed: %s", from)
	}
	if !g.nodes[from] {
		return fmt.Errorf("dependency source not in graph: %s", from)
	}
	if !g.nodes[to] {
		return fmt.Errorf("dependency target not in graph: %s", to)
	}
	g.deps[to] = append(g.deps[to], from)
	return nil
}

// topoSort returns the variants in an order where every prerequisite
// precedes its dependents. Ties are broken by the fixed build order so
// runs are reproducible. Returns an error if a cycle is found.
func (g *depGraph) topoSort() ([]Variant, error) {
	// Classic depth-first search with two marker sets:
	// permanent: fully visited, known cycle-free.
	// temporary: on the current recursion stack.
	permanent := make(map[Variant]bool)
	temporary := make(map[Variant]bool)
	var order []Variant

	var visit func(v Variant) error
	visit = func(v Variant) error {
		if permanent[v] {
			return nil
		}
		if temporary[v] {
			return fmt.Errorf("dependency cycle detected involving %s", v)
		}
		temporary[v] = true
		prereqs := append([]Variant(nil), g.deps[v]...)
		sort.Slice(prereqs, func(i, j int) bool {
			return orderIndex(prereqs[i]) < orderIndex(prereqs[j])
		})
		for _, dep := range prereqs {
			if err := visit(dep); err != nil {
				return err
			}
		}
		delete(temporary, v)
		permanent[v] = true
		order = append(order, v)
		return nil
	}

	roots := make([]Variant, 0, len(g.nodes))
	for v := range g.nodes {
		roots = append(roots, v)
	}
	sort.Slice(roots, func(i, j int) bool {
		return orderIndex(roots[i]) < orderIndex(roots[j])
	})
	for _, v := range roots {
		if err := visit(v); err != nil {
			return nil, err
		}
	}
	return order, nil
}

func orderIndex(v Variant) int {
	for i, o := range buildOrder {
		if o == v {
			return i
		}
	}
	return len(buildOrder)
}
