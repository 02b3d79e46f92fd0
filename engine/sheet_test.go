package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setCells(t *testing.T, s *Sheet, cells map[string]string) {
	t.Helper()
	for name, text := range cells {
		require.NoError(t, s.SetCell(mustAddr(t, name), text))
	}
}

func cellValue(t *testing.T, s *Sheet, name string) CellValue {
	t.Helper()
	return s.Value(mustAddr(t, name))
}

func TestSheetEndToEnd(t *testing.T) {
	s := NewSheet()
	setCells(t, s, map[string]string{
		"A1": "10",
		"A2": "20",
		"A3": "30",
		"B1": "=SUM(A1:A3)",
	})

	assert.Equal(t, NumberValue(60), cellValue(t, s, "B1"))

	// editing an input recalculates dependents
	require.NoError(t, s.SetCell(mustAddr(t, "A2"), "25"))
	assert.Equal(t, NumberValue(65), cellValue(t, s, "B1"))
}

func TestSheetDependencyChain(t *testing.T) {
	s := NewSheet()
	setCells(t, s, map[string]string{
		"A1": "2",
		"B1": "=A1*10",
		"C1": "=B1+1",
		"D1": "=C1&\"!\"",
	})

	assert.Equal(t, NumberValue(20), cellValue(t, s, "B1"))
	assert.Equal(t, NumberValue(21), cellValue(t, s, "C1"))
	assert.Equal(t, StringValue("21!"), cellValue(t, s, "D1"))

	require.NoError(t, s.SetCell(mustAddr(t, "A1"), "3"))
	assert.Equal(t, StringValue("31!"), cellValue(t, s, "D1"))
}

func TestSheetLiteralCoercion(t *testing.T) {
	s := NewSheet()
	setCells(t, s, map[string]string{
		"A1": "42",
		"A2": "hello",
		"A3": "TRUE",
		"A4": "'123", // forced text
	})

	assert.Equal(t, NumberValue(42), cellValue(t, s, "A1"))
	assert.Equal(t, StringValue("hello"), cellValue(t, s, "A2"))
	assert.Equal(t, BoolValue(true), cellValue(t, s, "A3"))
	assert.Equal(t, StringValue("123"), cellValue(t, s, "A4"))
}

func TestSheetParseErrorRecordedOnCell(t *testing.T) {
	s := NewSheet()
	require.NoError(t, s.SetCell(mustAddr(t, "A1"), "=1+"))

	cell := s.GetCell(mustAddr(t, "A1"))
	require.NotNil(t, cell)
	assert.Equal(t, "=1+", cell.Raw) // the edit is kept
	assert.Equal(t, ErrValue, cell.Err)
	assert.Equal(t, ErrorValue(ErrValue), cellValue(t, s, "A1"))

	// fixing the formula heals the cell
	require.NoError(t, s.SetCell(mustAddr(t, "A1"), "=1+1"))
	assert.Equal(t, NumberValue(2), cellValue(t, s, "A1"))
}

func TestSheetOutOfBoundsFormula(t *testing.T) {
	s := NewSheet()
	require.NoError(t, s.SetCell(mustAddr(t, "A1"), "=XFE1"))
	assert.Equal(t, ErrorValue(ErrRef), cellValue(t, s, "A1"))
}

func TestSheetSelfReferenceIsCircular(t *testing.T) {
	s := NewSheet()
	require.NoError(t, s.SetCell(mustAddr(t, "A1"), "=A1+1"))
	assert.Equal(t, ErrorValue(ErrCirc), cellValue(t, s, "A1"))
}

func TestSheetTwoCellCycle(t *testing.T) {
	s := NewSheet()
	setCells(t, s, map[string]string{
		"A1": "=B1",
		"B1": "=A1",
	})

	assert.Equal(t, ErrCirc, cellValue(t, s, "A1").Code)
	assert.Equal(t, ErrCirc, cellValue(t, s, "B1").Code)

	// breaking the cycle recovers both cells
	require.NoError(t, s.SetCell(mustAddr(t, "B1"), "7"))
	assert.Equal(t, NumberValue(7), cellValue(t, s, "A1"))
}

func TestSheetWouldCreateCycle(t *testing.T) {
	s := NewSheet()
	setCells(t, s, map[string]string{
		"B1": "=A1",
		"C1": "=B1",
	})

	assert.True(t, s.WouldCreateCycle(mustAddr(t, "A1"), mustAddr(t, "C1")))
	assert.True(t, s.WouldCreateCycle(mustAddr(t, "A1"), mustAddr(t, "A1")))
	assert.False(t, s.WouldCreateCycle(mustAddr(t, "A1"), mustAddr(t, "D1")))
}

func TestSheetDependencyQueries(t *testing.T) {
	s := NewSheet()
	setCells(t, s, map[string]string{
		"B1": "=A1*2",
		"C1": "=B1+A1",
	})

	assert.Equal(t, set(t, "A1"), s.Dependencies(mustAddr(t, "B1")))
	assert.Equal(t, set(t, "B1", "C1"), s.Dependents(mustAddr(t, "A1")))

	affected := s.AffectedBy(mustAddr(t, "A1"))
	assert.Equal(t, []CellAddress{mustAddr(t, "B1"), mustAddr(t, "C1")}, affected)
}

func TestSheetClearCell(t *testing.T) {
	s := NewSheet()
	setCells(t, s, map[string]string{
		"A1": "5",
		"B1": "=A1*2",
	})
	assert.Equal(t, NumberValue(10), cellValue(t, s, "B1"))

	require.NoError(t, s.SetCell(mustAddr(t, "A1"), ""))
	assert.Equal(t, 1, s.CellCount())
	// cleared cell reads as empty, so the product collapses to zero
	assert.Equal(t, NumberValue(0), cellValue(t, s, "B1"))
}

func TestSheetEvaluateFormula(t *testing.T) {
	s := NewSheet()
	setCells(t, s, map[string]string{"A1": "6", "A2": "7"})

	val, err := s.EvaluateFormula("A1*A2")
	require.NoError(t, err)
	assert.Equal(t, NumberValue(42), val)

	_, err = s.EvaluateFormula("1+")
	assert.Error(t, err)
}

func TestSheetDeleteRows(t *testing.T) {
	s := NewSheet()
	setCells(t, s, map[string]string{
		"A1": "10",
		"A2": "20",
		"A3": "30",
		"B1": "=SUM(A1:A3)",
	})

	// delete row 2 (index 1)
	require.NoError(t, s.DeleteRows(1, 1))

	cell := s.GetCell(mustAddr(t, "B1"))
	require.NotNil(t, cell)
	assert.Equal(t, "=SUM(A1:A2)", cell.Raw)
	assert.Equal(t, NumberValue(40), cellValue(t, s, "B1"))

	// the old A3 moved up
	assert.Equal(t, NumberValue(30), cellValue(t, s, "A2"))
	assert.Equal(t, 3, s.CellCount())
}

func TestSheetDeleteRowShrinksSum(t *testing.T) {
	s := NewSheet()
	setCells(t, s, map[string]string{
		"A1": "10",
		"A2": "20",
		"A3": "30",
		"B1": "=SUM(A1:A3)",
	})
	require.Equal(t, NumberValue(60), cellValue(t, s, "B1"))

	// delete the row holding the 30 (index 2); the summed range shrinks
	// onto the surviving rows
	require.NoError(t, s.DeleteRows(2, 1))

	cell := s.GetCell(mustAddr(t, "B1"))
	require.NotNil(t, cell)
	assert.Equal(t, "=SUM(A1:A2)", cell.Raw)
	assert.Equal(t, NumberValue(30), cellValue(t, s, "B1"))
}

func TestSheetDeleteRowsBreaksReference(t *testing.T) {
	s := NewSheet()
	setCells(t, s, map[string]string{
		"A2": "5",
		"B1": "=A2*2",
	})

	require.NoError(t, s.DeleteRows(1, 1))

	cell := s.GetCell(mustAddr(t, "B1"))
	require.NotNil(t, cell)
	assert.Equal(t, "=#REF!*2", cell.Raw)
	assert.Equal(t, ErrRef, cell.Err)
	assert.Equal(t, ErrorValue(ErrRef), cellValue(t, s, "B1"))
}

func TestSheetInsertRows(t *testing.T) {
	s := NewSheet()
	setCells(t, s, map[string]string{
		"A1": "1",
		"A2": "2",
		"B1": "=A2*10",
	})

	// insert two rows above row 2 (index 1)
	require.NoError(t, s.InsertRows(1, 2))

	// the value cell moved down and the formula followed it
	assert.Equal(t, NumberValue(2), cellValue(t, s, "A4"))
	cell := s.GetCell(mustAddr(t, "B1"))
	require.NotNil(t, cell)
	assert.Equal(t, "=A4*10", cell.Raw)
	assert.Equal(t, NumberValue(20), cellValue(t, s, "B1"))
}

func TestSheetInsertDeleteColumns(t *testing.T) {
	s := NewSheet()
	setCells(t, s, map[string]string{
		"A1": "1",
		"B1": "2",
		"C1": "=A1+B1",
	})

	require.NoError(t, s.InsertColumns(1, 1))
	assert.Equal(t, NumberValue(3), cellValue(t, s, "D1"))
	assert.Equal(t, "=A1+C1", s.GetCell(mustAddr(t, "D1")).Raw)

	require.NoError(t, s.DeleteColumns(1, 1))
	assert.Equal(t, NumberValue(3), cellValue(t, s, "C1"))
	assert.Equal(t, "=A1+B1", s.GetCell(mustAddr(t, "C1")).Raw)
}

func TestSheetInsertRowsPastEdgeRejected(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxRows = 10
	s := NewSheetWithConfig(cfg, nil)

	require.NoError(t, s.SetCell(mustAddr(t, "A10"), "1"))
	err := s.InsertRows(0, 1)
	assert.Error(t, err)
	// nothing moved
	assert.Equal(t, NumberValue(1), cellValue(t, s, "A10"))
}

func TestSheetFillAppliesUpdates(t *testing.T) {
	s := NewSheet()
	setCells(t, s, map[string]string{
		"A1": "1",
		"A2": "2",
		"B1": "=A1*10",
	})

	result, err := s.Fill(FillOperation{
		Source:    mustRange(t, "A1:A2"),
		Target:    mustRange(t, "A3:A5"),
		Direction: FillDown,
	})
	require.NoError(t, err)
	assert.Len(t, result.AffectedCells, 3)

	assert.Equal(t, NumberValue(3), cellValue(t, s, "A3"))
	assert.Equal(t, NumberValue(5), cellValue(t, s, "A5"))

	// replicate the formula column; references follow the row
	_, err = s.Fill(FillOperation{
		Source:    mustRange(t, "B1:B1"),
		Target:    mustRange(t, "B2:B5"),
		Direction: FillDown,
	})
	require.NoError(t, err)
	assert.Equal(t, NumberValue(50), cellValue(t, s, "B5"))
}

func TestSheetRecalculate(t *testing.T) {
	s := NewSheet()
	setCells(t, s, map[string]string{
		"A1": "1",
		"B1": "=A1+1",
		"C1": "=B1+1",
	})

	s.Recalculate()
	assert.Equal(t, NumberValue(3), cellValue(t, s, "C1"))
}

func TestSheetBoundsCheckedOnEdit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxRows = 100
	cfg.MaxColumns = 26
	s := NewSheetWithConfig(cfg, nil)

	err := s.SetCell(CellAddress{Col: 26, Row: 0}, "1")
	assert.Error(t, err)
	err = s.SetCell(CellAddress{Col: 0, Row: 100}, "1")
	assert.Error(t, err)
	assert.NoError(t, s.SetCell(CellAddress{Col: 25, Row: 99}, "1"))
}
