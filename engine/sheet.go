package engine

import (
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Cell is one stored cell: the text as typed, the parsed formula when
// the text started with '=', and the last computed value. Err holds the
// error code recorded when the text failed to parse; the edit is kept
// so the user can fix it in place.
type Cell struct {
	Raw      string
	Value    CellValue // literal value for non-formula cells
	Formula  Expr      // nil for plain cells
	Computed CellValue
	Err      string
	dirty    bool
}

// IsFormula reports whether the cell holds a formula, including one
// that failed to parse.
func (c *Cell) IsFormula() bool {
	return strings.HasPrefix(c.Raw, "=")
}

// FormulaText returns the formula body without the leading '=', or ""
// for plain cells.
func (c *Cell) FormulaText() string {
	if !c.IsFormula() {
		return ""
	}
	return c.Raw[1:]
}

// Sheet is the engine facade: sparse cell storage, the dependency
// graph, and the evaluator behind a single edit/read surface. It
// implements EvaluationContext, so reading a dirty formula cell during
// evaluation recurses into it with the push/pop cycle guard active.
//
// A Sheet is not safe for concurrent use; callers serialize access.
type Sheet struct {
	cfg        Config
	log        *zap.Logger
	cells      map[CellAddress]*Cell
	graph      *DependencyGraph
	eval       *Evaluator
	adjuster   *Adjuster
	fillEngine *FillEngine
	evaluating AddressSet
}

// NewSheet creates an empty sheet with default config and a no-op
// logger.
func NewSheet() *Sheet {
	return NewSheetWithConfig(DefaultConfig(), zap.NewNop())
}

// NewSheetWithConfig creates an empty sheet with explicit policies.
func NewSheetWithConfig(cfg Config, log *zap.Logger) *Sheet {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Sheet{
		cfg:        cfg,
		log:        log,
		cells:      make(map[CellAddress]*Cell),
		graph:      NewDependencyGraph(),
		adjuster:   NewAdjuster(),
		evaluating: make(AddressSet),
	}
	s.eval = NewEvaluatorWithRegistry(s, DefaultFunctions(), cfg.MaxEvalDepth)
	s.fillEngine = NewFillEngine(s.adjuster, cfg.CopyVerbatim)
	return s
}

// SetCell stores user input at an address. Text starting with '=' is
// parsed as a formula; parse failures are recorded on the cell as an
// error value and the edit is still accepted. Empty text clears the
// cell. The cell and its transitive dependents are recalculated before
// returning.
func (s *Sheet) SetCell(addr CellAddress, text string) error {
	if err := s.checkBounds(addr); err != nil {
		return err
	}

	if text == "" {
		s.clearCell(addr)
		return nil
	}

	cell := &Cell{Raw: text, dirty: true}

	if strings.HasPrefix(text, "=") {
		expr, err := ParseFormula(text[1:])
		if err != nil {
			code := errorCodeFor(err)
			s.log.Warn("formula rejected",
				zap.String("cell", addr.String()),
				zap.String("code", code),
				zap.Error(err))
			cell.Err = code
			cell.Computed = ErrorValue(code)
			cell.dirty = false
			s.graph.RemoveDependenciesFor(addr)
		} else {
			cell.Formula = expr
			s.graph.SetDependencies(addr, ExtractDependencies(expr))
		}
	} else {
		cell.Value = parseLiteral(text)
		cell.Computed = cell.Value
		cell.dirty = false
		s.graph.RemoveDependenciesFor(addr)
	}

	s.cells[addr] = cell
	s.log.Debug("cell set",
		zap.String("cell", addr.String()),
		zap.Bool("formula", cell.Formula != nil))

	s.recalcFrom(AddressSet{addr: {}})
	return nil
}

func (s *Sheet) clearCell(addr CellAddress) {
	if _, exists := s.cells[addr]; !exists {
		return
	}
	s.graph.RemoveDependenciesFor(addr)
	delete(s.cells, addr)
	s.recalcFrom(AddressSet{addr: {}})
}

// GetCell returns the stored cell, or nil for an empty address.
func (s *Sheet) GetCell(addr CellAddress) *Cell {
	return s.cells[addr]
}

// Value returns the display value of a cell; empty addresses yield the
// empty value.
func (s *Sheet) Value(addr CellAddress) CellValue {
	val, _ := s.GetCellValue(addr)
	return val
}

// GetCellValue implements EvaluationContext. Reading a dirty formula
// cell evaluates it in place, so a recalculation pass can visit cells
// in any order and still compute each one exactly once.
func (s *Sheet) GetCellValue(addr CellAddress) (CellValue, error) {
	cell, exists := s.cells[addr]
	if !exists {
		return EmptyValue(), nil
	}
	if cell.Err != "" {
		return ErrorValue(cell.Err), nil
	}
	if cell.Formula == nil {
		return cell.Value, nil
	}
	if !cell.dirty {
		return cell.Computed, nil
	}
	return s.evaluateCell(addr, cell), nil
}

func (s *Sheet) evaluateCell(addr CellAddress, cell *Cell) CellValue {
	s.PushEvaluation(addr)
	defer s.PopEvaluation(addr)

	val, err := s.eval.Evaluate(cell.Formula)
	if err != nil {
		val = ErrorValue(errorCodeFor(err))
	}
	cell.Computed = val
	cell.dirty = false
	return val
}

// CheckCircular implements EvaluationContext: true while the address is
// somewhere on the active evaluation stack.
func (s *Sheet) CheckCircular(addr CellAddress) bool {
	_, active := s.evaluating[addr]
	return active
}

// PushEvaluation implements EvaluationContext.
func (s *Sheet) PushEvaluation(addr CellAddress) {
	s.evaluating[addr] = struct{}{}
}

// PopEvaluation implements EvaluationContext.
func (s *Sheet) PopEvaluation(addr CellAddress) {
	delete(s.evaluating, addr)
}

// recalcFrom marks the dependent closure of the changed set dirty and
// re-evaluates it in topological order.
func (s *Sheet) recalcFrom(changed AddressSet) {
	affected := s.graph.GetAffectedCells(changed)
	for _, addr := range affected {
		if cell, exists := s.cells[addr]; exists && cell.Formula != nil {
			cell.dirty = true
		}
	}
	for addr := range changed {
		if cell, exists := s.cells[addr]; exists && cell.Formula != nil && cell.dirty {
			s.evaluateCell(addr, cell)
		}
	}
	for _, addr := range affected {
		s.GetCellValue(addr)
	}
}

// Recalculate re-evaluates every formula cell on the sheet. Dirty
// tracking makes the pass order-insensitive: reading a dirty dependency
// evaluates it on the spot, and later visits hit the cache.
func (s *Sheet) Recalculate() {
	for _, cell := range s.cells {
		if cell.Formula != nil {
			cell.dirty = true
		}
	}
	for addr, cell := range s.cells {
		if cell.Formula != nil && cell.dirty {
			s.evaluateCell(addr, cell)
		}
	}
}

// EvaluateFormula parses and evaluates formula text (without the
// leading '=') against the sheet without storing it anywhere.
func (s *Sheet) EvaluateFormula(text string) (CellValue, error) {
	expr, err := ParseFormula(text)
	if err != nil {
		return EmptyValue(), err
	}
	return s.eval.Evaluate(expr)
}

// Dependents returns the cells whose formulas read the given cell.
func (s *Sheet) Dependents(addr CellAddress) AddressSet {
	return s.graph.GetDependents(addr)
}

// Dependencies returns the cells the given cell's formula reads.
func (s *Sheet) Dependencies(addr CellAddress) AddressSet {
	return s.graph.GetDependencies(addr)
}

// AffectedBy returns the transitive dependents of a cell in
// recalculation order.
func (s *Sheet) AffectedBy(addr CellAddress) []CellAddress {
	return s.graph.GetAffectedCells(AddressSet{addr: {}})
}

// WouldCreateCycle reports whether a formula at from reading to would
// close a dependency cycle. Advisory: the edit is still accepted and
// evaluation degrades to #CIRC!.
func (s *Sheet) WouldCreateCycle(from, to CellAddress) bool {
	return s.graph.WouldCreateCycle(from, to)
}

// CellCount returns the number of non-empty cells.
func (s *Sheet) CellCount() int {
	return len(s.cells)
}

// Addresses returns every non-empty address in row-major order.
func (s *Sheet) Addresses() []CellAddress {
	addrs := maps.Keys(s.cells)
	slices.SortFunc(addrs, func(a, b CellAddress) int {
		if a.Less(b) {
			return -1
		}
		if b.Less(a) {
			return 1
		}
		return 0
	})
	return addrs
}

// InsertRows shifts every cell at or below beforeRow down by count and
// rewrites all formulas for the new geometry.
func (s *Sheet) InsertRows(beforeRow, count uint32) error {
	return s.restructure(func(addr CellAddress) (CellAddress, bool, bool) {
		if addr.Row >= beforeRow {
			addr.Row += count
		}
		return addr, addr.Row < s.cfg.MaxRows, false
	}, func(formula string) (string, bool) {
		return s.adjuster.AdjustForInsertRows(formula, beforeRow, count), false
	}, "insert rows", beforeRow, count)
}

// InsertColumns shifts every cell at or right of beforeCol by count.
func (s *Sheet) InsertColumns(beforeCol, count uint32) error {
	return s.restructure(func(addr CellAddress) (CellAddress, bool, bool) {
		if addr.Col >= beforeCol {
			addr.Col += count
		}
		return addr, addr.Col < s.cfg.MaxColumns, false
	}, func(formula string) (string, bool) {
		return s.adjuster.AdjustForInsertColumns(formula, beforeCol, count), false
	}, "insert columns", beforeCol, count)
}

// DeleteRows removes count rows starting at startRow. Cells inside the
// band are discarded; formulas that referenced them get the #REF!
// error.
func (s *Sheet) DeleteRows(startRow, count uint32) error {
	return s.restructure(func(addr CellAddress) (CellAddress, bool, bool) {
		if addr.Row >= startRow && addr.Row < startRow+count {
			return addr, false, true
		}
		if addr.Row >= startRow+count {
			addr.Row -= count
		}
		return addr, true, false
	}, func(formula string) (string, bool) {
		return s.adjuster.AdjustForDeleteRows(formula, startRow, count)
	}, "delete rows", startRow, count)
}

// DeleteColumns removes count columns starting at startCol.
func (s *Sheet) DeleteColumns(startCol, count uint32) error {
	return s.restructure(func(addr CellAddress) (CellAddress, bool, bool) {
		if addr.Col >= startCol && addr.Col < startCol+count {
			return addr, false, true
		}
		if addr.Col >= startCol+count {
			addr.Col -= count
		}
		return addr, true, false
	}, func(formula string) (string, bool) {
		return s.adjuster.AdjustForDeleteColumns(formula, startCol, count)
	}, "delete columns", startCol, count)
}

// restructure applies one structural edit: rekey every cell through
// remap (new address, fits on grid, deleted), rewrite every formula
// through rewrite (new text, reference broken), then rebuild the graph
// and recalculate from scratch.
func (s *Sheet) restructure(
	remap func(CellAddress) (CellAddress, bool, bool),
	rewrite func(string) (string, bool),
	opName string, at, count uint32,
) error {
	// dry run: a structural edit either applies fully or not at all
	for addr := range s.cells {
		if newAddr, fits, deleted := remap(addr); !deleted && !fits {
			return NewRefError(fmt.Sprintf("%s would push %s past the grid edge (%s)",
				opName, addr, newAddr))
		}
	}

	newCells := make(map[CellAddress]*Cell, len(s.cells))
	for addr, cell := range s.cells {
		newAddr, _, deleted := remap(addr)
		if deleted {
			continue
		}
		if cell.IsFormula() {
			s.rewriteFormulaCell(cell, rewrite)
		}
		newCells[newAddr] = cell
	}
	s.cells = newCells

	s.rebuildGraph()
	s.Recalculate()

	s.log.Info("sheet restructured",
		zap.String("op", opName),
		zap.Uint32("at", at),
		zap.Uint32("count", count),
		zap.Int("cells", len(s.cells)))
	return nil
}

// rewriteFormulaCell adjusts one formula's text for a structural edit.
// A broken reference leaves the #REF! placeholder in the raw text and
// records the error on the cell; the formula no longer evaluates.
func (s *Sheet) rewriteFormulaCell(cell *Cell, rewrite func(string) (string, bool)) {
	newText, broken := rewrite(cell.FormulaText())
	cell.Raw = "=" + newText

	if broken {
		cell.Formula = nil
		cell.Err = ErrRef
		cell.Computed = ErrorValue(ErrRef)
		cell.dirty = false
		return
	}
	if cell.Err != "" {
		// previously broken cells stay broken; only a fresh edit heals them
		return
	}

	expr, err := ParseFormula(newText)
	if err != nil {
		code := errorCodeFor(err)
		cell.Formula = nil
		cell.Err = code
		cell.Computed = ErrorValue(code)
		cell.dirty = false
		return
	}
	cell.Formula = expr
	cell.dirty = true
}

// rebuildGraph recomputes the full dependency graph from the stored
// formulas.
func (s *Sheet) rebuildGraph() {
	s.graph.Clear()
	for addr, cell := range s.cells {
		if cell.Formula != nil {
			s.graph.SetDependencies(addr, ExtractDependencies(cell.Formula))
		}
	}
}

// Fill runs a fill operation and applies its updates to the sheet.
// Source values are sampled in one evaluator pass over the range.
func (s *Sheet) Fill(op FillOperation) (FillResult, error) {
	src := op.Source.Normalized()
	samples := make(map[CellAddress]CellValue, src.Size())
	flat := s.eval.EvaluateRange(src)
	i := 0
	for addr := range src.Cells() {
		samples[addr] = flat[i]
		i++
	}

	result, err := s.fillEngine.Fill(op, func(addr CellAddress) (CellValue, string) {
		cell := s.cells[addr]
		if cell == nil {
			return EmptyValue(), ""
		}
		return samples[addr], cell.FormulaText()
	})
	if err != nil {
		return FillResult{}, err
	}

	for _, update := range result.Updates {
		if err := s.SetCell(update.Addr, update.Text); err != nil {
			return result, err
		}
	}

	s.log.Debug("fill applied",
		zap.String("source", op.Source.String()),
		zap.String("target", op.Target.String()),
		zap.String("direction", op.Direction.String()),
		zap.Int("cells", len(result.Updates)))
	return result, nil
}

// DetectPattern exposes series detection over a run of values, used by
// hosts that preview a fill before committing it.
func (s *Sheet) DetectPattern(values []CellValue) Pattern {
	return s.fillEngine.DetectPattern(values)
}

func (s *Sheet) checkBounds(addr CellAddress) error {
	if addr.Col >= s.cfg.MaxColumns {
		return NewRefError(fmt.Sprintf("column %s out of configured bounds", NumberToColumn(addr.Col)))
	}
	if addr.Row >= s.cfg.MaxRows {
		return NewRefError(fmt.Sprintf("row %d out of configured bounds", addr.Row+1))
	}
	return nil
}

// parseLiteral interprets plain (non-formula) cell text: numbers and
// booleans coerce, a leading apostrophe forces text, everything else
// stays text.
func parseLiteral(text string) CellValue {
	if strings.HasPrefix(text, "'") {
		return StringValue(text[1:])
	}
	if num, err := strconv.ParseFloat(strings.TrimSpace(text), 64); err == nil {
		return NumberValue(num)
	}
	switch strings.ToUpper(strings.TrimSpace(text)) {
	case "TRUE":
		return BoolValue(true)
	case "FALSE":
		return BoolValue(false)
	}
	return StringValue(text)
}
