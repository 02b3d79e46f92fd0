package engine

import (
	"regexp"
	"strings"
)

// refTokenRe matches a cell reference or range with optional $ anchors.
// The optional group is greedy, so a full range is matched in one token
// and its endpoints can be rewritten as a pair.
var refTokenRe = regexp.MustCompile(`(\$?[A-Za-z]+\$?[0-9]+)(:(\$?[A-Za-z]+\$?[0-9]+))?`)

// refToken is one parsed reference with its anchors preserved.
type refToken struct {
	addr   CellAddress
	absCol bool
	absRow bool
}

func (t refToken) text() string {
	return refText(t.addr, t.absCol, t.absRow)
}

// refRewriter transforms reference tokens. single handles a standalone
// reference; pair handles the two endpoints of a range together so
// deletions can shrink or break the range as a whole. broken means the
// reference lost its target and was replaced with #REF!.
type refRewriter interface {
	single(ref refToken) (string, bool)
	pair(start, end refToken) (string, bool)
}

// Adjuster rewrites cell references inside formula text. Non-reference
// text passes through unchanged; references inside string literals and
// function names are left alone.
type Adjuster struct{}

// NewAdjuster creates a formula adjuster.
func NewAdjuster() *Adjuster {
	return &Adjuster{}
}

// AdjustFormula shifts every relative reference axis in the formula by
// the per-axis delta between from and to. Absolute ($-anchored) axes
// are invariant under the shift regardless of from/to; shifted indices
// clamp at zero. The original $ markers are preserved.
func (a *Adjuster) AdjustFormula(formula string, from, to CellAddress) (string, error) {
	rw := &shiftRewriter{
		deltaCol: int64(to.Col) - int64(from.Col),
		deltaRow: int64(to.Row) - int64(from.Row),
	}
	result, _ := a.rewrite(formula, rw)
	return result, nil
}

// AdjustForInsertRows shifts references at or below the insertion point
// down by count. Structural shifts apply to anchored axes too: a $
// anchor freezes an axis during copy and fill, not when the grid
// itself moves.
func (a *Adjuster) AdjustForInsertRows(formula string, beforeRow, count uint32) string {
	result, _ := a.rewrite(formula, &insertRewriter{rows: true, before: beforeRow, count: count})
	return result
}

// AdjustForInsertColumns shifts references at or right of the insertion
// point by count.
func (a *Adjuster) AdjustForInsertColumns(formula string, beforeCol, count uint32) string {
	result, _ := a.rewrite(formula, &insertRewriter{rows: false, before: beforeCol, count: count})
	return result
}

// AdjustForDeleteRows rewrites references after deleting count rows
// starting at startRow. A single reference into the deleted band
// breaks; a range endpoint inside the band shrinks onto the surviving
// edge; a range wholly inside the band breaks. broken reports whether
// any reference lost its target, in which case the returned text
// contains a #REF! placeholder and no longer parses as a formula.
func (a *Adjuster) AdjustForDeleteRows(formula string, startRow, count uint32) (string, bool) {
	return a.rewrite(formula, &deleteRewriter{rows: true, start: startRow, count: count})
}

// AdjustForDeleteColumns mirrors AdjustForDeleteRows on the column axis.
func (a *Adjuster) AdjustForDeleteColumns(formula string, startCol, count uint32) (string, bool) {
	return a.rewrite(formula, &deleteRewriter{rows: false, start: startCol, count: count})
}

// shiftRewriter implements the copy/fill shift: relative axes move by
// the delta, anchored axes stay put.
type shiftRewriter struct {
	deltaCol int64
	deltaRow int64
}

func (rw *shiftRewriter) single(ref refToken) (string, bool) {
	if !ref.absCol {
		ref.addr.Col = uint32(clampIndex(int64(ref.addr.Col)+rw.deltaCol, MaxColumns-1))
	}
	if !ref.absRow {
		ref.addr.Row = uint32(clampIndex(int64(ref.addr.Row)+rw.deltaRow, MaxRows-1))
	}
	return ref.text(), false
}

func (rw *shiftRewriter) pair(start, end refToken) (string, bool) {
	startText, _ := rw.single(start)
	endText, _ := rw.single(end)
	return startText + ":" + endText, false
}

// insertRewriter shifts references past an inserted row/column band.
type insertRewriter struct {
	rows   bool // row axis when true, column axis otherwise
	before uint32
	count  uint32
}

func (rw *insertRewriter) single(ref refToken) (string, bool) {
	if rw.rows {
		if ref.addr.Row >= rw.before {
			ref.addr.Row += rw.count
		}
	} else {
		if ref.addr.Col >= rw.before {
			ref.addr.Col += rw.count
		}
	}
	return ref.text(), false
}

func (rw *insertRewriter) pair(start, end refToken) (string, bool) {
	startText, _ := rw.single(start)
	endText, _ := rw.single(end)
	return startText + ":" + endText, false
}

// deleteRewriter rewrites references after a row/column band deletion.
type deleteRewriter struct {
	rows  bool
	start uint32
	count uint32
}

func (rw *deleteRewriter) axis(ref refToken) uint32 {
	if rw.rows {
		return ref.addr.Row
	}
	return ref.addr.Col
}

func (rw *deleteRewriter) withAxis(ref refToken, v uint32) refToken {
	if rw.rows {
		ref.addr.Row = v
	} else {
		ref.addr.Col = v
	}
	return ref
}

func (rw *deleteRewriter) single(ref refToken) (string, bool) {
	v := rw.axis(ref)
	switch {
	case v < rw.start:
		return ref.text(), false
	case v < rw.start+rw.count:
		// target deleted outright
		return ErrRef, true
	default:
		return rw.withAxis(ref, v-rw.count).text(), false
	}
}

func (rw *deleteRewriter) pair(start, end refToken) (string, bool) {
	bandEnd := rw.start + rw.count // exclusive
	lo, hi := rw.axis(start), rw.axis(end)
	swapped := false
	if lo > hi {
		// endpoints as written are not guaranteed ordered
		start, end = end, start
		lo, hi = hi, lo
		swapped = true
	}

	if lo >= rw.start && hi < bandEnd {
		// whole range deleted
		return ErrRef, true
	}

	switch {
	case lo < rw.start:
		// low endpoint survives untouched
	case lo < bandEnd:
		// low edge slides to the first surviving index
		start = rw.withAxis(start, rw.start)
	default:
		start = rw.withAxis(start, lo-rw.count)
	}

	switch {
	case hi < rw.start:
	case hi < bandEnd:
		// high edge shrinks onto the last surviving index below the band
		end = rw.withAxis(end, rw.start-1)
	default:
		end = rw.withAxis(end, hi-rw.count)
	}

	if swapped {
		start, end = end, start
	}
	return start.text() + ":" + end.text(), false
}

// rewrite applies the rewriter to every reference token in the formula,
// splicing replacements back into the surrounding text.
func (a *Adjuster) rewrite(formula string, rw refRewriter) (string, bool) {
	quoted := quotedRegions(formula)
	matches := refTokenRe.FindAllStringSubmatchIndex(formula, -1)

	var b strings.Builder
	broken := false
	last := 0

	for _, m := range matches {
		start, end := m[0], m[1]
		if start < last {
			continue
		}
		if quoted[start] || isIdentifierContext(formula, start, end) {
			continue
		}

		startRef, ok := parseRefToken(formula[m[2]:m[3]])
		if !ok {
			continue
		}

		var replacement string
		var refBroken bool
		if m[6] == -1 {
			replacement, refBroken = rw.single(startRef)
		} else {
			endRef, ok := parseRefToken(formula[m[6]:m[7]])
			if !ok {
				continue
			}
			replacement, refBroken = rw.pair(startRef, endRef)
		}

		b.WriteString(formula[last:start])
		b.WriteString(replacement)
		last = end
		broken = broken || refBroken
	}

	b.WriteString(formula[last:])
	return b.String(), broken
}

func parseRefToken(token string) (refToken, bool) {
	addr, absCol, absRow, err := ParseAddress(token)
	if err != nil {
		return refToken{}, false
	}
	return refToken{addr: addr, absCol: absCol, absRow: absRow}, true
}

// quotedRegions marks every byte inside a double-quoted string literal.
func quotedRegions(s string) []bool {
	quoted := make([]bool, len(s)+1)
	inString := false
	for i := 0; i < len(s); i++ {
		if s[i] == '"' {
			inString = !inString
			quoted[i] = true
			continue
		}
		quoted[i] = inString
	}
	return quoted
}

// isIdentifierContext reports whether the match is actually part of a
// longer identifier or a function name like LOG10(.
func isIdentifierContext(s string, start, end int) bool {
	if start > 0 && isIdentChar(s[start-1]) {
		return true
	}
	for i := end; i < len(s); i++ {
		switch {
		case s[i] == ' ' || s[i] == '\t':
			continue
		case s[i] == '(':
			return true
		case isIdentChar(s[i]):
			return true
		default:
			return false
		}
	}
	return false
}

func isIdentChar(ch byte) bool {
	return ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || (ch >= '0' && ch <= '9')
}

func clampIndex(v, max int64) int64 {
	if v < 0 {
		return 0
	}
	if v > max {
		return max
	}
	return v
}
