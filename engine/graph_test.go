package engine

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func addr(t *testing.T, name string) CellAddress {
	t.Helper()
	a, _, _, err := ParseAddress(name)
	if err != nil {
		t.Fatalf("ParseAddress(%s): %v", name, err)
	}
	return a
}

func set(t *testing.T, names ...string) AddressSet {
	t.Helper()
	out := make(AddressSet, len(names))
	for _, name := range names {
		out[addr(t, name)] = struct{}{}
	}
	return out
}

func TestGraphForwardAndReverse(t *testing.T) {
	g := NewDependencyGraph()
	g.AddDependency(addr(t, "B1"), addr(t, "A1"))
	g.AddDependency(addr(t, "B1"), addr(t, "A2"))
	g.AddDependency(addr(t, "C1"), addr(t, "A1"))

	if diff := cmp.Diff(set(t, "A1", "A2"), g.GetDependencies(addr(t, "B1"))); diff != "" {
		t.Errorf("dependencies mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(set(t, "B1", "C1"), g.GetDependents(addr(t, "A1"))); diff != "" {
		t.Errorf("dependents mismatch (-want +got):\n%s", diff)
	}
	if g.EdgeCount() != 3 {
		t.Errorf("EdgeCount() = %d, want 3", g.EdgeCount())
	}
}

func TestGraphSetDependenciesReplaces(t *testing.T) {
	g := NewDependencyGraph()
	g.SetDependencies(addr(t, "B1"), set(t, "A1", "A2"))
	g.SetDependencies(addr(t, "B1"), set(t, "A3"))

	if diff := cmp.Diff(set(t, "A3"), g.GetDependencies(addr(t, "B1"))); diff != "" {
		t.Errorf("dependencies mismatch (-want +got):\n%s", diff)
	}
	// the old reverse edges must be gone
	if g.HasDependents(addr(t, "A1")) {
		t.Error("A1 should have no dependents after replacement")
	}
}

func TestGraphRemoveDependenciesFor(t *testing.T) {
	g := NewDependencyGraph()
	g.SetDependencies(addr(t, "B1"), set(t, "A1"))
	g.RemoveDependenciesFor(addr(t, "B1"))

	if len(g.GetDependencies(addr(t, "B1"))) != 0 {
		t.Error("expected no dependencies")
	}
	if g.HasDependents(addr(t, "A1")) {
		t.Error("expected no dependents")
	}
	if g.EdgeCount() != 0 {
		t.Errorf("EdgeCount() = %d, want 0", g.EdgeCount())
	}
}

func TestWouldCreateCycle(t *testing.T) {
	g := NewDependencyGraph()
	// B1 -> A1, C1 -> B1
	g.AddDependency(addr(t, "B1"), addr(t, "A1"))
	g.AddDependency(addr(t, "C1"), addr(t, "B1"))

	cases := []struct {
		from, to string
		want     bool
	}{
		{"A1", "A1", true},  // self reference
		{"A1", "B1", true},  // closes B1 -> A1
		{"A1", "C1", true},  // closes C1 -> B1 -> A1
		{"B1", "C1", true},  // closes C1 -> B1
		{"A1", "D1", false}, // no path back
		{"D1", "A1", false},
		{"C1", "A1", false}, // already reachable, adding is a no-op
	}

	for _, tc := range cases {
		if got := g.WouldCreateCycle(addr(t, tc.from), addr(t, tc.to)); got != tc.want {
			t.Errorf("WouldCreateCycle(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestGetAffectedCellsTopological(t *testing.T) {
	g := NewDependencyGraph()
	// diamond: B1 and C1 read A1; D1 reads B1 and C1
	g.AddDependency(addr(t, "B1"), addr(t, "A1"))
	g.AddDependency(addr(t, "C1"), addr(t, "A1"))
	g.AddDependency(addr(t, "D1"), addr(t, "B1"))
	g.AddDependency(addr(t, "D1"), addr(t, "C1"))

	order := g.GetAffectedCells(set(t, "A1"))

	pos := make(map[CellAddress]int, len(order))
	for i, a := range order {
		pos[a] = i
	}

	if diff := cmp.Diff(set(t, "B1", "C1", "D1"), set(t, order[0].String(), order[1].String(), order[2].String())); diff != "" {
		t.Fatalf("affected set mismatch (-want +got):\n%s", diff)
	}
	if pos[addr(t, "D1")] < pos[addr(t, "B1")] || pos[addr(t, "D1")] < pos[addr(t, "C1")] {
		t.Errorf("D1 must come after B1 and C1: %v", order)
	}
}

func TestGetAffectedCellsExcludesChanged(t *testing.T) {
	g := NewDependencyGraph()
	g.AddDependency(addr(t, "B1"), addr(t, "A1"))

	order := g.GetAffectedCells(set(t, "A1"))
	if len(order) != 1 || order[0] != addr(t, "B1") {
		t.Errorf("order = %v, want [B1]", order)
	}
}

func TestGetAffectedCellsDeterministic(t *testing.T) {
	g := NewDependencyGraph()
	for _, name := range []string{"B1", "B2", "B3", "B4"} {
		g.AddDependency(addr(t, name), addr(t, "A1"))
	}

	first := g.GetAffectedCells(set(t, "A1"))
	for i := 0; i < 10; i++ {
		if diff := cmp.Diff(first, g.GetAffectedCells(set(t, "A1"))); diff != "" {
			t.Fatalf("order changed between runs (-first +now):\n%s", diff)
		}
	}
}

func TestGraphClear(t *testing.T) {
	g := NewDependencyGraph()
	g.AddDependency(addr(t, "B1"), addr(t, "A1"))
	g.Clear()

	if g.EdgeCount() != 0 {
		t.Errorf("EdgeCount() = %d after Clear", g.EdgeCount())
	}
	if g.WouldCreateCycle(addr(t, "A1"), addr(t, "B1")) {
		t.Error("no cycle possible in an empty graph")
	}
}
