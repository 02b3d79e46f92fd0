package engine

// AddressSet is a set of cell addresses.
type AddressSet map[CellAddress]struct{}

// ExtractDependencies collects every address an expression reads:
// each plain reference plus every cell enumerated by a range.
func ExtractDependencies(expr Expr) AddressSet {
	deps := make(AddressSet)
	walkRefs(expr, func(addr CellAddress) bool {
		deps[addr] = struct{}{}
		return true
	})
	return deps
}

// ReferencesCell reports whether the expression reads the given cell,
// without materializing the full dependency set.
func ReferencesCell(expr Expr, addr CellAddress) bool {
	found := false
	walkRefs(expr, func(dep CellAddress) bool {
		if dep == addr {
			found = true
			return false
		}
		return true
	})
	return found
}

// ReferencesRange reports whether the expression reads any cell inside
// the given range. Used to test paste/move impact cheaply.
func ReferencesRange(expr Expr, r CellRange) bool {
	found := false
	walkRefs(expr, func(dep CellAddress) bool {
		if r.Contains(dep) {
			found = true
			return false
		}
		return true
	})
	return found
}

// CountDependencies returns the number of distinct cells read.
func CountDependencies(expr Expr) int {
	return len(ExtractDependencies(expr))
}

// HasDependencies reports whether the expression reads any cell at all.
func HasDependencies(expr Expr) bool {
	found := false
	walkRefs(expr, func(CellAddress) bool {
		found = true
		return false
	})
	return found
}

// walkRefs visits every referenced address in the tree. The visitor
// returns false to stop the walk early. Literals contribute nothing;
// ranges enumerate their cartesian product.
func walkRefs(expr Expr, visit func(CellAddress) bool) bool {
	switch n := expr.(type) {
	case *RefNode:
		return visit(n.Addr)
	case *RangeNode:
		for addr := range n.Range.Cells() {
			if !visit(addr) {
				return false
			}
		}
	case *UnaryNode:
		return walkRefs(n.Operand, visit)
	case *BinaryNode:
		if !walkRefs(n.Left, visit) {
			return false
		}
		return walkRefs(n.Right, visit)
	case *CallNode:
		for _, arg := range n.Args {
			if !walkRefs(arg, visit) {
				return false
			}
		}
	}
	return true
}
