package engine

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// FillDirection says which way a fill extends from its source block.
type FillDirection uint8

const (
	FillDown FillDirection = iota
	FillUp
	FillRight
	FillLeft
)

func (d FillDirection) String() string {
	switch d {
	case FillDown:
		return "down"
	case FillUp:
		return "up"
	case FillRight:
		return "right"
	case FillLeft:
		return "left"
	default:
		return "unknown"
	}
}

// PatternType names the series shape a fill extrapolates.
type PatternType uint8

const (
	PatternCopy PatternType = iota
	PatternLinear
	PatternExponential
	PatternDate
	PatternText
)

func (p PatternType) String() string {
	switch p {
	case PatternCopy:
		return "copy"
	case PatternLinear:
		return "linear"
	case PatternExponential:
		return "exponential"
	case PatternDate:
		return "date"
	case PatternText:
		return "text"
	default:
		return "unknown"
	}
}

// Pattern is a detected or caller-supplied series rule. Step is the
// linear slope, the exponential ratio, the date increment in days, or
// the text counter step, depending on Type.
type Pattern struct {
	Type PatternType
	Step float64
}

// PatternDetector recognizes one series shape in a run of source
// values. Detectors are tried in descending Priority order; the first
// one whose CanHandle accepts the run wins.
type PatternDetector interface {
	Priority() int
	CanHandle(values []CellValue) bool
	Detect(values []CellValue) Pattern
}

// FillOperation describes one fill: replicate the source block into the
// target block in the given direction. A non-nil Pattern skips
// detection and applies the rule as given.
type FillOperation struct {
	Source    CellRange
	Target    CellRange
	Direction FillDirection
	Pattern   *Pattern
}

// CellUpdate is one generated cell write, expressed as the raw text a
// user would have typed.
type CellUpdate struct {
	Addr CellAddress
	Text string
}

// FillResult reports what a fill produced. AffectedCells and
// FormulasAdjusted partition the written cells: a cell appears in
// FormulasAdjusted only when its formula text was rewritten for the
// new position.
type FillResult struct {
	Updates          []CellUpdate
	AffectedCells    []CellAddress
	FormulasAdjusted []CellAddress
}

// sourceCell is the fill engine's snapshot of one source cell. Formula
// holds the text after the leading '=', empty for plain values.
type sourceCell struct {
	addr    CellAddress
	value   CellValue
	formula string
}

// CellReader hands the fill engine the current contents of a cell:
// its computed value and, for formula cells, the formula text without
// the leading '='.
type CellReader func(addr CellAddress) (CellValue, string)

// FillEngine extends a block of cells along one axis, detecting series
// in the source values and replicating formulas through the adjuster.
type FillEngine struct {
	adjuster     *Adjuster
	detectors    []PatternDetector
	copyVerbatim bool
}

// NewFillEngine creates a fill engine with the standard detector set.
// copyVerbatim disables reference adjustment when replicating formulas.
func NewFillEngine(adjuster *Adjuster, copyVerbatim bool) *FillEngine {
	fe := &FillEngine{adjuster: adjuster, copyVerbatim: copyVerbatim}
	fe.detectors = []PatternDetector{
		linearDetector{},
		exponentialDetector{},
		dateDetector{},
		textDetector{},
		copyDetector{},
	}
	// highest priority first
	for i := 1; i < len(fe.detectors); i++ {
		for j := i; j > 0 && fe.detectors[j].Priority() > fe.detectors[j-1].Priority(); j-- {
			fe.detectors[j], fe.detectors[j-1] = fe.detectors[j-1], fe.detectors[j]
		}
	}
	return fe
}

// RegisterDetector adds a custom detector, keeping priority order.
func (fe *FillEngine) RegisterDetector(d PatternDetector) {
	fe.detectors = append(fe.detectors, d)
	for j := len(fe.detectors) - 1; j > 0 && fe.detectors[j].Priority() > fe.detectors[j-1].Priority(); j-- {
		fe.detectors[j], fe.detectors[j-1] = fe.detectors[j-1], fe.detectors[j]
	}
}

// DetectPattern runs the detector chain over a value series.
func (fe *FillEngine) DetectPattern(values []CellValue) Pattern {
	for _, d := range fe.detectors {
		if d.CanHandle(values) {
			return d.Detect(values)
		}
	}
	return Pattern{Type: PatternCopy}
}

// Fill computes the cell writes for one fill operation. The source and
// target must not overlap, and the target must sit on the direction
// side of the source with matching cross-axis extent. Nothing is
// written here; callers apply the returned updates.
func (fe *FillEngine) Fill(op FillOperation, read CellReader) (FillResult, error) {
	src := op.Source.Normalized()
	tgt := op.Target.Normalized()

	if rangesOverlap(src, tgt) {
		return FillResult{}, NewRefError("fill source and target ranges overlap")
	}
	if err := checkFillGeometry(src, tgt, op.Direction); err != nil {
		return FillResult{}, err
	}

	var result FillResult
	vertical := op.Direction == FillDown || op.Direction == FillUp

	if vertical {
		for col := src.Start.Col; col <= src.End.Col; col++ {
			fe.fillTrack(&result, op, read, columnTrack(src, col, op.Direction), columnTrack(tgt, col, op.Direction))
		}
	} else {
		for row := src.Start.Row; row <= src.End.Row; row++ {
			fe.fillTrack(&result, op, read, rowTrack(src, row, op.Direction), rowTrack(tgt, row, op.Direction))
		}
	}

	return result, nil
}

// fillTrack generates the updates for one row or column lane of the
// fill, cycling through the source cells and extrapolating any
// detected series.
func (fe *FillEngine) fillTrack(result *FillResult, op FillOperation, read CellReader, srcAddrs, tgtAddrs []CellAddress) {
	cells := make([]sourceCell, len(srcAddrs))
	hasFormula := false
	values := make([]CellValue, len(srcAddrs))
	for i, addr := range srcAddrs {
		value, formula := read(addr)
		cells[i] = sourceCell{addr: addr, value: value, formula: formula}
		values[i] = value
		if formula != "" {
			hasFormula = true
		}
	}

	pattern := Pattern{Type: PatternCopy}
	if op.Pattern != nil {
		pattern = *op.Pattern
	} else if !hasFormula {
		// formulas replicate positionally; series detection only
		// applies to plain-value lanes
		pattern = fe.DetectPattern(values)
	}

	for n, tgtAddr := range tgtAddrs {
		srcIdx := n % len(cells)
		src := cells[srcIdx]

		if src.formula != "" {
			if fe.copyVerbatim {
				result.add(CellUpdate{Addr: tgtAddr, Text: "=" + src.formula}, false)
				continue
			}
			adjusted, _ := fe.adjuster.AdjustFormula(src.formula, src.addr, tgtAddr)
			result.add(CellUpdate{Addr: tgtAddr, Text: "=" + adjusted}, true)
			continue
		}

		text := extrapolate(pattern, cells, srcIdx, n)
		result.add(CellUpdate{Addr: tgtAddr, Text: text}, false)
	}
}

func (r *FillResult) add(u CellUpdate, formulaAdjusted bool) {
	r.Updates = append(r.Updates, u)
	if formulaAdjusted {
		r.FormulasAdjusted = append(r.FormulasAdjusted, u.Addr)
	} else {
		r.AffectedCells = append(r.AffectedCells, u.Addr)
	}
}

// extrapolate produces the raw text for the nth generated cell (n is
// zero-based distance past the source block).
func extrapolate(p Pattern, cells []sourceCell, srcIdx, n int) string {
	last := cells[len(cells)-1].value

	switch p.Type {
	case PatternLinear:
		base, _ := toNumber(last)
		return formatNumber(base + p.Step*float64(n+1))

	case PatternExponential:
		base, _ := toNumber(last)
		return formatNumber(base * math.Pow(p.Step, float64(n+1)))

	case PatternDate:
		days := int(p.Step) * (n + 1)
		if last.Kind == KindNumber {
			// date serial
			return formatNumber(last.Num + p.Step*float64(n+1))
		}
		if t, layout, ok := parseDateText(toText(last)); ok {
			return t.AddDate(0, 0, days).Format(layout)
		}
		return valueText(cells[srcIdx].value)

	case PatternText:
		prefix, num, width, suffix, ok := splitCounterText(toText(last))
		if !ok {
			return valueText(cells[srcIdx].value)
		}
		// keep the source counter's zero padding
		return fmt.Sprintf("%s%0*d%s", prefix, width, num+int64(p.Step)*int64(n+1), suffix)

	default:
		return valueText(cells[srcIdx].value)
	}
}

// valueText renders a value back to the text a user would type to
// reproduce it.
func valueText(v CellValue) string {
	switch v.Kind {
	case KindNumber:
		return formatNumber(v.Num)
	case KindError:
		// errors do not replicate as errors; the cell text does
		return v.Code
	default:
		return v.String()
	}
}

func rangesOverlap(a, b CellRange) bool {
	return a.Start.Col <= b.End.Col && b.Start.Col <= a.End.Col &&
		a.Start.Row <= b.End.Row && b.Start.Row <= a.End.Row
}

func checkFillGeometry(src, tgt CellRange, dir FillDirection) error {
	switch dir {
	case FillDown:
		if tgt.Start.Col != src.Start.Col || tgt.End.Col != src.End.Col {
			return NewRefError("fill target columns must match the source")
		}
		if tgt.Start.Row <= src.End.Row {
			return NewRefError("fill down target must be below the source")
		}
	case FillUp:
		if tgt.Start.Col != src.Start.Col || tgt.End.Col != src.End.Col {
			return NewRefError("fill target columns must match the source")
		}
		if tgt.End.Row >= src.Start.Row {
			return NewRefError("fill up target must be above the source")
		}
	case FillRight:
		if tgt.Start.Row != src.Start.Row || tgt.End.Row != src.End.Row {
			return NewRefError("fill target rows must match the source")
		}
		if tgt.Start.Col <= src.End.Col {
			return NewRefError("fill right target must be right of the source")
		}
	case FillLeft:
		if tgt.Start.Row != src.Start.Row || tgt.End.Row != src.End.Row {
			return NewRefError("fill target rows must match the source")
		}
		if tgt.End.Col >= src.Start.Col {
			return NewRefError("fill left target must be left of the source")
		}
	default:
		return NewRefError("unknown fill direction")
	}
	return nil
}

// columnTrack lists the addresses of one column lane in fill order.
// Up fills run bottom to top so series extend away from the source.
func columnTrack(r CellRange, col uint32, dir FillDirection) []CellAddress {
	addrs := make([]CellAddress, 0, r.End.Row-r.Start.Row+1)
	if dir == FillUp {
		for row := r.End.Row; ; row-- {
			addrs = append(addrs, CellAddress{Col: col, Row: row})
			if row == r.Start.Row {
				break
			}
		}
		return addrs
	}
	for row := r.Start.Row; row <= r.End.Row; row++ {
		addrs = append(addrs, CellAddress{Col: col, Row: row})
	}
	return addrs
}

func rowTrack(r CellRange, row uint32, dir FillDirection) []CellAddress {
	addrs := make([]CellAddress, 0, r.End.Col-r.Start.Col+1)
	if dir == FillLeft {
		for col := r.End.Col; ; col-- {
			addrs = append(addrs, CellAddress{Col: col, Row: row})
			if col == r.Start.Col {
				break
			}
		}
		return addrs
	}
	for col := r.Start.Col; col <= r.End.Col; col++ {
		addrs = append(addrs, CellAddress{Col: col, Row: row})
	}
	return addrs
}

const seriesTolerance = 1e-10

// linearDetector matches numeric runs with a constant difference,
// including constant runs (slope zero).
type linearDetector struct{}

func (linearDetector) Priority() int { return 80 }

func (linearDetector) CanHandle(values []CellValue) bool {
	nums, ok := numericSeries(values)
	if !ok || len(nums) < 2 {
		return false
	}
	diff := nums[1] - nums[0]
	for i := 2; i < len(nums); i++ {
		if math.Abs((nums[i]-nums[i-1])-diff) > seriesTolerance {
			return false
		}
	}
	return true
}

func (linearDetector) Detect(values []CellValue) Pattern {
	nums, _ := numericSeries(values)
	return Pattern{Type: PatternLinear, Step: nums[1] - nums[0]}
}

// exponentialDetector matches non-zero numeric runs with a constant
// ratio. Linear runs with ratio 1 never reach it.
type exponentialDetector struct{}

func (exponentialDetector) Priority() int { return 70 }

func (exponentialDetector) CanHandle(values []CellValue) bool {
	nums, ok := numericSeries(values)
	if !ok || len(nums) < 2 {
		return false
	}
	for _, n := range nums {
		if n == 0 {
			return false
		}
	}
	ratio := nums[1] / nums[0]
	for i := 2; i < len(nums); i++ {
		r := nums[i] / nums[i-1]
		if math.Abs(r-ratio) > seriesTolerance*math.Abs(ratio) {
			return false
		}
	}
	return true
}

func (exponentialDetector) Detect(values []CellValue) Pattern {
	nums, _ := numericSeries(values)
	return Pattern{Type: PatternExponential, Step: nums[1] / nums[0]}
}

// dateFormats are tried in order when recognizing date text.
var dateFormats = []string{
	"2006-01-02",
	"01/02/2006",
	"Jan 2, 2006",
	"2 Jan 2006",
}

// dateDetector matches runs of date text in a shared layout with a
// constant day step. A single date extends by one day, the common
// drag-fill behavior.
type dateDetector struct{}

func (dateDetector) Priority() int { return 60 }

func (dateDetector) CanHandle(values []CellValue) bool {
	_, _, ok := dateSeries(values)
	return ok
}

func (dateDetector) Detect(values []CellValue) Pattern {
	_, step, _ := dateSeries(values)
	return Pattern{Type: PatternDate, Step: float64(step)}
}

// textDetector matches text runs sharing a prefix and suffix around a
// counter advancing by exactly one, like Item 1 / Item 2. Any other
// step falls through to the copy fallback.
type textDetector struct{}

func (textDetector) Priority() int { return 50 }

func (textDetector) CanHandle(values []CellValue) bool {
	_, ok := counterSeries(values)
	return ok
}

func (textDetector) Detect(values []CellValue) Pattern {
	step, _ := counterSeries(values)
	return Pattern{Type: PatternText, Step: float64(step)}
}

// copyDetector accepts anything; the universal fallback.
type copyDetector struct{}

func (copyDetector) Priority() int { return 10 }

func (copyDetector) CanHandle(values []CellValue) bool { return len(values) > 0 }

func (copyDetector) Detect(values []CellValue) Pattern {
	return Pattern{Type: PatternCopy}
}

func numericSeries(values []CellValue) ([]float64, bool) {
	if len(values) == 0 {
		return nil, false
	}
	nums := make([]float64, len(values))
	for i, v := range values {
		if v.Kind != KindNumber {
			return nil, false
		}
		nums[i] = v.Num
	}
	return nums, true
}

func dateSeries(values []CellValue) (layout string, step int, ok bool) {
	if len(values) == 0 {
		return "", 0, false
	}
	times := make([]time.Time, len(values))
	for i, v := range values {
		if v.Kind != KindString {
			return "", 0, false
		}
		t, l, parsed := parseDateText(v.Text)
		if !parsed {
			return "", 0, false
		}
		if i == 0 {
			layout = l
		} else if l != layout {
			return "", 0, false
		}
		times[i] = t
	}

	if len(times) == 1 {
		return layout, 1, true
	}
	step = daysBetween(times[0], times[1])
	for i := 2; i < len(times); i++ {
		if daysBetween(times[i-1], times[i]) != step {
			return "", 0, false
		}
	}
	return layout, step, true
}

func parseDateText(s string) (time.Time, string, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t, layout, true
		}
	}
	return time.Time{}, "", false
}

func daysBetween(a, b time.Time) int {
	return int(b.Sub(a).Hours() / 24)
}

var counterTextRe = regexp.MustCompile(`^(.*?)(\d+)(\D*)$`)

func splitCounterText(s string) (prefix string, num int64, width int, suffix string, ok bool) {
	m := counterTextRe.FindStringSubmatch(s)
	if m == nil {
		return "", 0, 0, "", false
	}
	n, err := strconv.ParseInt(m[2], 10, 64)
	if err != nil {
		return "", 0, 0, "", false
	}
	return m[1], n, len(m[2]), m[3], true
}

func counterSeries(values []CellValue) (step int64, ok bool) {
	if len(values) < 2 {
		return 0, false
	}
	var prefix, suffix string
	nums := make([]int64, len(values))
	for i, v := range values {
		if v.Kind != KindString {
			return 0, false
		}
		p, n, _, s, parsed := splitCounterText(v.Text)
		if !parsed {
			return 0, false
		}
		if i == 0 {
			prefix, suffix = p, s
		} else if p != prefix || s != suffix {
			return 0, false
		}
		nums[i] = n
	}

	// only a counter advancing by one is a text series; anything else
	// repeats cyclically
	for i := 1; i < len(nums); i++ {
		if nums[i]-nums[i-1] != 1 {
			return 0, false
		}
	}
	return 1, true
}
