package engine

import (
	"fmt"
	"strconv"
	"strings"
)

// ValueKind discriminates the variants of a CellValue.
type ValueKind uint8

const (
	KindEmpty   ValueKind = 0
	KindNumber  ValueKind = 1
	KindString  ValueKind = 2
	KindBoolean ValueKind = 3
	KindError   ValueKind = 4
	KindArray   ValueKind = 5
)

// Error codes following Excel conventions. Errors travel through
// evaluation as ordinary values so a failing operand degrades the
// expression around it instead of aborting the whole pass.
const (
	ErrDiv0  = "#DIV/0!" // division by zero
	ErrRef   = "#REF!"   // invalid or deleted cell reference
	ErrName  = "#NAME?"  // unrecognized function name
	ErrValue = "#VALUE!" // wrong type of argument or operand
	ErrCirc  = "#CIRC!"  // circular reference
	ErrNum   = "#NUM!"   // number out of range / depth exceeded
)

// CellValue is the tagged union of everything a cell can hold or an
// expression can produce. Arrays arise only from range expansion inside
// function calls.
type CellValue struct {
	Kind  ValueKind
	Num   float64
	Text  string
	Bool  bool
	Code  string // error code when Kind == KindError
	Items []CellValue
}

func EmptyValue() CellValue {
	return CellValue{Kind: KindEmpty}
}

func NumberValue(n float64) CellValue {
	return CellValue{Kind: KindNumber, Num: n}
}

func StringValue(s string) CellValue {
	return CellValue{Kind: KindString, Text: s}
}

func BoolValue(b bool) CellValue {
	return CellValue{Kind: KindBoolean, Bool: b}
}

func ErrorValue(code string) CellValue {
	return CellValue{Kind: KindError, Code: code}
}

func ArrayValue(items []CellValue) CellValue {
	return CellValue{Kind: KindArray, Items: items}
}

// IsError reports whether the value is an error value.
func (v CellValue) IsError() bool {
	return v.Kind == KindError
}

// IsEmpty reports whether the value is the empty cell value.
func (v CellValue) IsEmpty() bool {
	return v.Kind == KindEmpty
}

// String renders the value the way it would display in a cell.
func (v CellValue) String() string {
	switch v.Kind {
	case KindEmpty:
		return ""
	case KindNumber:
		return strconv.FormatFloat(v.Num, 'g', -1, 64)
	case KindString:
		return v.Text
	case KindBoolean:
		if v.Bool {
			return "TRUE"
		}
		return "FALSE"
	case KindError:
		return v.Code
	case KindArray:
		parts := make([]string, len(v.Items))
		for i, item := range v.Items {
			parts[i] = item.String()
		}
		return "{" + strings.Join(parts, ";") + "}"
	default:
		return ""
	}
}

// toNumber converts a value to a number, returning ok=false if the
// conversion fails. Empty cells coerce to 0, booleans to 0/1, and
// numeric-looking strings parse.
func toNumber(v CellValue) (float64, bool) {
	switch v.Kind {
	case KindNumber:
		return v.Num, true
	case KindBoolean:
		if v.Bool {
			return 1, true
		}
		return 0, true
	case KindString:
		num, err := strconv.ParseFloat(strings.TrimSpace(v.Text), 64)
		if err != nil {
			return 0, false
		}
		return num, true
	case KindEmpty:
		return 0, true
	default:
		return 0, false
	}
}

// toText converts a value to its text form for concatenation.
func toText(v CellValue) string {
	if v.Kind == KindEmpty {
		return ""
	}
	return v.String()
}

// isTruthy checks if a value is truthy for IF/AND/OR semantics.
func isTruthy(v CellValue) bool {
	switch v.Kind {
	case KindBoolean:
		return v.Bool
	case KindNumber:
		return v.Num != 0
	case KindString:
		if b, err := strconv.ParseBool(strings.ToLower(v.Text)); err == nil {
			return b
		}
		return v.Text != ""
	case KindEmpty:
		return false
	default:
		return true
	}
}

// compareValues compares two values. returns -1 if left < right, 0 if
// equal, 1 if left > right, -2 if not comparable. Arrays never compare,
// and a boolean has no ordering against non-numeric text; equality
// against an incomparable pair is simply false.
func compareValues(left, right CellValue) int {
	if left.Kind == KindArray || right.Kind == KindArray {
		return -2
	}
	if left.Kind == KindEmpty && right.Kind == KindEmpty {
		return 0
	}

	// numeric comparison first
	leftNum, leftIsNum := toNumber(left)
	rightNum, rightIsNum := toNumber(right)
	if leftIsNum && rightIsNum {
		switch {
		case leftNum < rightNum:
			return -1
		case leftNum > rightNum:
			return 1
		default:
			return 0
		}
	}

	if left.Kind == KindBoolean && right.Kind == KindBoolean {
		if left.Bool == right.Bool {
			return 0
		}
		if !left.Bool {
			return -1
		}
		return 1
	}
	if left.Kind == KindBoolean || right.Kind == KindBoolean {
		return -2
	}

	// case-insensitive text comparison, Excel style
	leftStr := strings.ToUpper(toText(left))
	rightStr := strings.ToUpper(toText(right))
	switch {
	case leftStr < rightStr:
		return -1
	case leftStr > rightStr:
		return 1
	default:
		return 0
	}
}

// formatNumber renders a number without unnecessary decimals, used when
// reconstructing formula text from an AST.
func formatNumber(n float64) string {
	if n == float64(int64(n)) {
		return fmt.Sprintf("%d", int64(n))
	}
	return fmt.Sprintf("%g", n)
}
