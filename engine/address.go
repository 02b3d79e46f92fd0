package engine

import (
	"fmt"
	"iter"
	"strconv"
	"strings"
)

// Grid bounds. Addresses outside these limits are rejected with a
// RefError at construction time, which is how the parser distinguishes
// a malformed reference from ordinary syntax errors.
const (
	MaxColumns = 16384   // XFD
	MaxRows    = 1048576 // matches the conventional grid limit
)

// CellAddress identifies a cell by zero-based column and row.
type CellAddress struct {
	Col uint32
	Row uint32
}

// NewCellAddress constructs a bounds-checked address.
func NewCellAddress(col, row uint32) (CellAddress, error) {
	if col >= MaxColumns {
		return CellAddress{}, NewRefError(fmt.Sprintf("column %d out of bounds", col))
	}
	if row >= MaxRows {
		return CellAddress{}, NewRefError(fmt.Sprintf("row %d out of bounds", row))
	}
	return CellAddress{Col: col, Row: row}, nil
}

// Less orders addresses row-major so map-backed sets can be iterated
// deterministically.
func (a CellAddress) Less(b CellAddress) bool {
	if a.Row != b.Row {
		return a.Row < b.Row
	}
	return a.Col < b.Col
}

// String renders the address in A1 notation.
func (a CellAddress) String() string {
	return NumberToColumn(a.Col) + strconv.FormatUint(uint64(a.Row)+1, 10)
}

// NumberToColumn converts a zero-based column index to its letter form
// (0 -> A, 25 -> Z, 26 -> AA). The conversion treats letters as a
// base-26 number with a 1-indexed digit alphabet, so it inverts
// ColumnToNumber exactly.
func NumberToColumn(col uint32) string {
	n := int64(col) + 1 // shift to 1-indexed digits
	var letters []byte
	for n > 0 {
		n-- // A=1..Z=26, so borrow before dividing
		letters = append(letters, byte('A'+n%26))
		n /= 26
	}
	// reverse
	for i, j := 0, len(letters)-1; i < j; i, j = i+1, j-1 {
		letters[i], letters[j] = letters[j], letters[i]
	}
	return string(letters)
}

// ColumnToNumber converts column letters to a zero-based index. Letters
// are case-insensitive; anything else is a RefError.
func ColumnToNumber(letters string) (uint32, error) {
	if letters == "" {
		return 0, NewRefError("empty column letters")
	}
	var n uint64
	for _, ch := range strings.ToUpper(letters) {
		if ch < 'A' || ch > 'Z' {
			return 0, NewRefError(fmt.Sprintf("invalid column letters: %s", letters))
		}
		n = n*26 + uint64(ch-'A'+1)
		if n > MaxColumns {
			return 0, NewRefError(fmt.Sprintf("column out of bounds: %s", letters))
		}
	}
	return uint32(n - 1), nil
}

// ParseAddress parses an A1-form address with optional $ anchors,
// returning the address and the absolute flags for each axis.
func ParseAddress(text string) (addr CellAddress, absCol, absRow bool, err error) {
	rest := text
	if strings.HasPrefix(rest, "$") {
		absCol = true
		rest = rest[1:]
	}

	letterEnd := 0
	for letterEnd < len(rest) && isColumnLetter(rest[letterEnd]) {
		letterEnd++
	}
	if letterEnd == 0 {
		return CellAddress{}, false, false, NewRefError(fmt.Sprintf("invalid cell reference: %s", text))
	}
	col, err := ColumnToNumber(rest[:letterEnd])
	if err != nil {
		return CellAddress{}, false, false, err
	}

	rest = rest[letterEnd:]
	if strings.HasPrefix(rest, "$") {
		absRow = true
		rest = rest[1:]
	}
	if rest == "" {
		return CellAddress{}, false, false, NewRefError(fmt.Sprintf("invalid cell reference: %s", text))
	}

	rowNum, perr := strconv.ParseUint(rest, 10, 32)
	if perr != nil || rowNum < 1 {
		return CellAddress{}, false, false, NewRefError(fmt.Sprintf("invalid row number: %s", text))
	}

	addr, err = NewCellAddress(col, uint32(rowNum-1))
	if err != nil {
		return CellAddress{}, false, false, err
	}
	return addr, absCol, absRow, nil
}

func isColumnLetter(ch byte) bool {
	return (ch >= 'A' && ch <= 'Z') || (ch >= 'a' && ch <= 'z')
}

// CellRange is a rectangle of cells. Start and end are as written in the
// formula and are not guaranteed ordered; consumers normalize per axis
// before iterating.
type CellRange struct {
	Start CellAddress
	End   CellAddress
}

// Normalized returns the range with start <= end on both axes.
func (r CellRange) Normalized() CellRange {
	out := r
	if out.Start.Col > out.End.Col {
		out.Start.Col, out.End.Col = out.End.Col, out.Start.Col
	}
	if out.Start.Row > out.End.Row {
		out.Start.Row, out.End.Row = out.End.Row, out.Start.Row
	}
	return out
}

// Contains reports whether the address falls inside the range.
func (r CellRange) Contains(addr CellAddress) bool {
	n := r.Normalized()
	return addr.Col >= n.Start.Col && addr.Col <= n.End.Col &&
		addr.Row >= n.Start.Row && addr.Row <= n.End.Row
}

// Size returns the cell count of the range.
func (r CellRange) Size() int {
	n := r.Normalized()
	return int(n.End.Col-n.Start.Col+1) * int(n.End.Row-n.Start.Row+1)
}

// Cells iterates every address in the range in row-major order.
func (r CellRange) Cells() iter.Seq[CellAddress] {
	n := r.Normalized()
	return func(yield func(CellAddress) bool) {
		for row := n.Start.Row; row <= n.End.Row; row++ {
			for col := n.Start.Col; col <= n.End.Col; col++ {
				if !yield(CellAddress{Col: col, Row: row}) {
					return
				}
			}
		}
	}
}

// String renders the range in A1:B2 notation.
func (r CellRange) String() string {
	return r.Start.String() + ":" + r.End.String()
}
