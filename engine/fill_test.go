package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fillFixture backs the fill engine with a plain map of cell contents.
type fillFixture struct {
	values   map[CellAddress]CellValue
	formulas map[CellAddress]string
}

func newFillFixture() *fillFixture {
	return &fillFixture{
		values:   make(map[CellAddress]CellValue),
		formulas: make(map[CellAddress]string),
	}
}

func (f *fillFixture) setValue(t *testing.T, name string, v CellValue) {
	t.Helper()
	f.values[mustAddr(t, name)] = v
}

func (f *fillFixture) setFormula(t *testing.T, name, formula string) {
	t.Helper()
	f.formulas[mustAddr(t, name)] = formula
}

func (f *fillFixture) read(addr CellAddress) (CellValue, string) {
	return f.values[addr], f.formulas[addr]
}

func mustAddr(t *testing.T, name string) CellAddress {
	t.Helper()
	a, _, _, err := ParseAddress(name)
	require.NoError(t, err)
	return a
}

func mustRange(t *testing.T, text string) CellRange {
	t.Helper()
	var startText, endText string
	for i := 0; i < len(text); i++ {
		if text[i] == ':' {
			startText, endText = text[:i], text[i+1:]
		}
	}
	if startText == "" {
		startText, endText = text, text
	}
	return CellRange{Start: mustAddr(t, startText), End: mustAddr(t, endText)}
}

func runFillDown(t *testing.T, f *fillFixture, source, target string) FillResult {
	t.Helper()
	fe := NewFillEngine(NewAdjuster(), false)
	result, err := fe.Fill(FillOperation{
		Source:    mustRange(t, source),
		Target:    mustRange(t, target),
		Direction: FillDown,
	}, f.read)
	require.NoError(t, err)
	return result
}

func updateTexts(result FillResult) []string {
	texts := make([]string, len(result.Updates))
	for i, u := range result.Updates {
		texts[i] = u.Text
	}
	return texts
}

func TestFillLinearSeries(t *testing.T) {
	f := newFillFixture()
	f.setValue(t, "A1", NumberValue(1))
	f.setValue(t, "A2", NumberValue(2))
	f.setValue(t, "A3", NumberValue(3))
	f.setValue(t, "A4", NumberValue(4))

	result := runFillDown(t, f, "A1:A4", "A5:A8")
	assert.Equal(t, []string{"5", "6", "7", "8"}, updateTexts(result))
	assert.Empty(t, result.FormulasAdjusted)
}

func TestFillLinearNonUnitStep(t *testing.T) {
	f := newFillFixture()
	f.setValue(t, "A1", NumberValue(10))
	f.setValue(t, "A2", NumberValue(7))

	result := runFillDown(t, f, "A1:A2", "A3:A5")
	assert.Equal(t, []string{"4", "1", "-2"}, updateTexts(result))
}

func TestFillExponentialSeries(t *testing.T) {
	f := newFillFixture()
	f.setValue(t, "A1", NumberValue(1))
	f.setValue(t, "A2", NumberValue(2))
	f.setValue(t, "A3", NumberValue(4))
	f.setValue(t, "A4", NumberValue(8))

	result := runFillDown(t, f, "A1:A4", "A5:A7")
	assert.Equal(t, []string{"16", "32", "64"}, updateTexts(result))
}

func TestFillTextCounterSeries(t *testing.T) {
	f := newFillFixture()
	f.setValue(t, "A1", StringValue("Item 1"))
	f.setValue(t, "A2", StringValue("Item 2"))

	result := runFillDown(t, f, "A1:A2", "A3:A5")
	assert.Equal(t, []string{"Item 3", "Item 4", "Item 5"}, updateTexts(result))
}

func TestFillDateSeries(t *testing.T) {
	f := newFillFixture()
	f.setValue(t, "A1", StringValue("2024-01-30"))
	f.setValue(t, "A2", StringValue("2024-01-31"))

	result := runFillDown(t, f, "A1:A2", "A3:A4")
	assert.Equal(t, []string{"2024-02-01", "2024-02-02"}, updateTexts(result))
}

func TestFillCopyFallback(t *testing.T) {
	f := newFillFixture()
	f.setValue(t, "A1", StringValue("red"))
	f.setValue(t, "A2", StringValue("blue"))

	result := runFillDown(t, f, "A1:A2", "A3:A7")
	assert.Equal(t, []string{"red", "blue", "red", "blue", "red"}, updateTexts(result))
}

func TestFillTextCounterPreservesZeroPadding(t *testing.T) {
	f := newFillFixture()
	f.setValue(t, "A1", StringValue("Item 01"))
	f.setValue(t, "A2", StringValue("Item 02"))

	result := runFillDown(t, f, "A1:A2", "A3:A4")
	assert.Equal(t, []string{"Item 03", "Item 04"}, updateTexts(result))
}

func TestFillTextNonUnitStepRepeatsCyclically(t *testing.T) {
	f := newFillFixture()
	f.setValue(t, "A1", StringValue("Item 1"))
	f.setValue(t, "A2", StringValue("Item 3"))

	// a counter jumping by two is not a series; the block repeats
	result := runFillDown(t, f, "A1:A2", "A3:A6")
	assert.Equal(t, []string{"Item 1", "Item 3", "Item 1", "Item 3"}, updateTexts(result))
}

func TestFillMixedTextFallsBackToCopy(t *testing.T) {
	f := newFillFixture()
	f.setValue(t, "A1", StringValue("Item 1"))
	f.setValue(t, "A2", StringValue("Other 5"))

	result := runFillDown(t, f, "A1:A2", "A3:A4")
	assert.Equal(t, []string{"Item 1", "Other 5"}, updateTexts(result))
}

func TestFillFormulaAdjustsReferences(t *testing.T) {
	f := newFillFixture()
	f.setFormula(t, "B1", "A1*2")

	result := runFillDown(t, f, "B1:B1", "B2:B3")
	assert.Equal(t, []string{"=A2*2", "=A3*2"}, updateTexts(result))
	assert.Len(t, result.FormulasAdjusted, 2)
	assert.Empty(t, result.AffectedCells)
}

func TestFillFormulaAnchorsHold(t *testing.T) {
	f := newFillFixture()
	f.setFormula(t, "B1", "$A$1+A1")

	result := runFillDown(t, f, "B1:B1", "B2:B2")
	assert.Equal(t, []string{"=$A$1+A2"}, updateTexts(result))
}

func TestFillCopyVerbatim(t *testing.T) {
	f := newFillFixture()
	f.setFormula(t, "B1", "A1*2")

	fe := NewFillEngine(NewAdjuster(), true)
	result, err := fe.Fill(FillOperation{
		Source:    mustRange(t, "B1:B1"),
		Target:    mustRange(t, "B2:B2"),
		Direction: FillDown,
	}, f.read)
	require.NoError(t, err)

	assert.Equal(t, []string{"=A1*2"}, updateTexts(result))
	assert.Empty(t, result.FormulasAdjusted)
}

func TestFillExplicitPattern(t *testing.T) {
	f := newFillFixture()
	f.setValue(t, "A1", NumberValue(5))

	fe := NewFillEngine(NewAdjuster(), false)
	result, err := fe.Fill(FillOperation{
		Source:    mustRange(t, "A1:A1"),
		Target:    mustRange(t, "A2:A3"),
		Direction: FillDown,
		Pattern:   &Pattern{Type: PatternLinear, Step: 10},
	}, f.read)
	require.NoError(t, err)

	assert.Equal(t, []string{"15", "25"}, updateTexts(result))
}

func TestFillRight(t *testing.T) {
	f := newFillFixture()
	f.setValue(t, "A1", NumberValue(2))
	f.setValue(t, "B1", NumberValue(4))

	fe := NewFillEngine(NewAdjuster(), false)
	result, err := fe.Fill(FillOperation{
		Source:    mustRange(t, "A1:B1"),
		Target:    mustRange(t, "C1:E1"),
		Direction: FillRight,
	}, f.read)
	require.NoError(t, err)

	assert.Equal(t, []string{"6", "8", "10"}, updateTexts(result))
}

func TestFillUpExtendsBackwards(t *testing.T) {
	f := newFillFixture()
	f.setValue(t, "A5", NumberValue(10))
	f.setValue(t, "A6", NumberValue(20))

	fe := NewFillEngine(NewAdjuster(), false)
	result, err := fe.Fill(FillOperation{
		Source:    mustRange(t, "A5:A6"),
		Target:    mustRange(t, "A3:A4"),
		Direction: FillUp,
	}, f.read)
	require.NoError(t, err)

	// up fills walk bottom to top, so the series continues in reverse
	assert.Equal(t, []string{"0", "-10"}, updateTexts(result))
	assert.Equal(t, []CellAddress{mustAddr(t, "A4"), mustAddr(t, "A3")}, result.AffectedCells)
}

func TestFillMultiColumnTracksAreIndependent(t *testing.T) {
	f := newFillFixture()
	f.setValue(t, "A1", NumberValue(1))
	f.setValue(t, "A2", NumberValue(2))
	f.setValue(t, "B1", StringValue("x"))
	f.setValue(t, "B2", StringValue("y"))

	result := runFillDown(t, f, "A1:B2", "A3:B4")

	texts := make(map[string]string, len(result.Updates))
	for _, u := range result.Updates {
		texts[u.Addr.String()] = u.Text
	}
	assert.Equal(t, "3", texts["A3"])
	assert.Equal(t, "4", texts["A4"])
	assert.Equal(t, "x", texts["B3"])
	assert.Equal(t, "y", texts["B4"])
}

func TestFillRejectsBadGeometry(t *testing.T) {
	f := newFillFixture()
	fe := NewFillEngine(NewAdjuster(), false)

	// overlap
	_, err := fe.Fill(FillOperation{
		Source:    mustRange(t, "A1:A3"),
		Target:    mustRange(t, "A3:A5"),
		Direction: FillDown,
	}, f.read)
	assert.Error(t, err)

	// target on the wrong side
	_, err = fe.Fill(FillOperation{
		Source:    mustRange(t, "A5:A6"),
		Target:    mustRange(t, "A8:A9"),
		Direction: FillUp,
	}, f.read)
	assert.Error(t, err)

	// cross-axis mismatch
	_, err = fe.Fill(FillOperation{
		Source:    mustRange(t, "A1:A2"),
		Target:    mustRange(t, "B3:B4"),
		Direction: FillDown,
	}, f.read)
	assert.Error(t, err)
}

func TestDetectPatternDirect(t *testing.T) {
	fe := NewFillEngine(NewAdjuster(), false)

	cases := []struct {
		name   string
		values []CellValue
		want   Pattern
	}{
		{"linear", []CellValue{NumberValue(1), NumberValue(3), NumberValue(5)}, Pattern{PatternLinear, 2}},
		{"constant is linear", []CellValue{NumberValue(7), NumberValue(7)}, Pattern{PatternLinear, 0}},
		{"exponential", []CellValue{NumberValue(3), NumberValue(9), NumberValue(27)}, Pattern{PatternExponential, 3}},
		{"text counter", []CellValue{StringValue("Q1"), StringValue("Q2")}, Pattern{PatternText, 1}},
		{"stepped counter copies", []CellValue{StringValue("Q1"), StringValue("Q3")}, Pattern{PatternCopy, 0}},
		{"single value copies", []CellValue{NumberValue(5)}, Pattern{PatternCopy, 0}},
		{"irregular copies", []CellValue{NumberValue(1), NumberValue(2), NumberValue(10)}, Pattern{PatternCopy, 0}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, fe.DetectPattern(tc.values))
		})
	}
}
