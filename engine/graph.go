package engine

import (
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// DependencyGraph tracks which cells read which. The forward map holds
// cell -> cells it reads; the reverse map is always the exact transpose.
// Both are rebuilt atomically on every formula edit (remove-then-insert),
// never partially updated.
type DependencyGraph struct {
	forward map[CellAddress]AddressSet // cell -> cells it reads
	reverse map[CellAddress]AddressSet // cell -> cells that read it
}

// NewDependencyGraph creates an empty dependency graph.
func NewDependencyGraph() *DependencyGraph {
	return &DependencyGraph{
		forward: make(map[CellAddress]AddressSet),
		reverse: make(map[CellAddress]AddressSet),
	}
}

// AddDependency records that from reads to.
func (dg *DependencyGraph) AddDependency(from, to CellAddress) {
	if dg.forward[from] == nil {
		dg.forward[from] = make(AddressSet)
	}
	dg.forward[from][to] = struct{}{}

	if dg.reverse[to] == nil {
		dg.reverse[to] = make(AddressSet)
	}
	dg.reverse[to][from] = struct{}{}
}

// SetDependencies replaces the full forward edge set for a cell in one
// remove-then-insert step.
func (dg *DependencyGraph) SetDependencies(cell CellAddress, deps AddressSet) {
	dg.RemoveDependenciesFor(cell)
	for dep := range deps {
		dg.AddDependency(cell, dep)
	}
}

// RemoveDependenciesFor clears the forward edges of a cell and prunes
// the now-empty reverse entries.
func (dg *DependencyGraph) RemoveDependenciesFor(cell CellAddress) {
	for dep := range dg.forward[cell] {
		if readers, exists := dg.reverse[dep]; exists {
			delete(readers, cell)
			if len(readers) == 0 {
				delete(dg.reverse, dep)
			}
		}
	}
	delete(dg.forward, cell)
}

// GetDependencies returns the cells a cell reads. Missing cells yield
// an empty set, never a panic.
func (dg *DependencyGraph) GetDependencies(cell CellAddress) AddressSet {
	deps := make(AddressSet, len(dg.forward[cell]))
	for dep := range dg.forward[cell] {
		deps[dep] = struct{}{}
	}
	return deps
}

// GetDependents returns the cells that read a cell.
func (dg *DependencyGraph) GetDependents(cell CellAddress) AddressSet {
	readers := make(AddressSet, len(dg.reverse[cell]))
	for reader := range dg.reverse[cell] {
		readers[reader] = struct{}{}
	}
	return readers
}

// WouldCreateCycle reports whether adding the edge from -> to would
// close a cycle: true when a forward path to ->* from already exists,
// or trivially when from == to. This is an eager, advisory check at
// edit time; the evaluation stack remains the authoritative guard.
func (dg *DependencyGraph) WouldCreateCycle(from, to CellAddress) bool {
	if from == to {
		return true
	}

	visited := make(AddressSet)
	var dfs func(addr CellAddress) bool
	dfs = func(addr CellAddress) bool {
		if addr == from {
			return true
		}
		if _, seen := visited[addr]; seen {
			return false
		}
		visited[addr] = struct{}{}
		for next := range dg.forward[addr] {
			if dfs(next) {
				return true
			}
		}
		return false
	}
	return dfs(to)
}

// GetAffectedCells returns the transitive dependent closure of the
// changed set, topologically sorted so a cell appears only after every
// same-closure cell it depends on. Callers can recalculate the result
// in a single pass.
func (dg *DependencyGraph) GetAffectedCells(changed AddressSet) []CellAddress {
	// BFS over reverse edges to collect the closure
	closure := make(AddressSet)
	queue := make([]CellAddress, 0, len(changed))
	for addr := range changed {
		queue = append(queue, addr)
	}
	for len(queue) > 0 {
		addr := queue[0]
		queue = queue[1:]
		for reader := range dg.reverse[addr] {
			if _, seen := closure[reader]; !seen {
				closure[reader] = struct{}{}
				queue = append(queue, reader)
			}
		}
	}

	// DFS-based topological sort restricted to the closure. three
	// states: unvisited (not in map), visiting (false), visited (true)
	state := make(map[CellAddress]bool)
	var order []CellAddress

	var visit func(addr CellAddress)
	visit = func(addr CellAddress) {
		if _, exists := state[addr]; exists {
			// visiting or visited; either way stop. cycles are handled
			// at evaluation time, not here
			return
		}
		state[addr] = false
		for dep := range dg.forward[addr] {
			if _, inClosure := closure[dep]; inClosure {
				visit(dep)
			}
		}
		state[addr] = true
		order = append(order, addr)
	}

	// deterministic entry order keeps the output stable for callers
	// and tests
	entries := maps.Keys(closure)
	slices.SortFunc(entries, func(a, b CellAddress) int {
		if a.Less(b) {
			return -1
		}
		if b.Less(a) {
			return 1
		}
		return 0
	})
	for _, addr := range entries {
		visit(addr)
	}

	return order
}

// HasDependents reports whether any cell reads the given cell.
func (dg *DependencyGraph) HasDependents(cell CellAddress) bool {
	return len(dg.reverse[cell]) > 0
}

// EdgeCount returns the number of forward edges, mostly for tests and
// diagnostics.
func (dg *DependencyGraph) EdgeCount() int {
	total := 0
	for _, deps := range dg.forward {
		total += len(deps)
	}
	return total
}

// Clear removes every edge from the graph.
func (dg *DependencyGraph) Clear() {
	dg.forward = make(map[CellAddress]AddressSet)
	dg.reverse = make(map[CellAddress]AddressSet)
}
