package engine

import (
	"fmt"
	"strings"
)

type NodePosition struct {
	Start int
	End   int
}

// Expr is the parsed form of a formula. The tree enables dependency
// extraction, reference rewriting, and evaluation through traversal
// rather than string manipulation.
type Expr interface {
	Eval(ev *Evaluator) (CellValue, error)
	GetPosition() NodePosition
	String() string
}

// LiteralNode represents a literal number, string, or boolean.
type LiteralNode struct {
	Value    CellValue
	Position NodePosition
}

func (n *LiteralNode) Eval(ev *Evaluator) (CellValue, error) {
	return n.Value, nil
}

func (n *LiteralNode) GetPosition() NodePosition {
	return n.Position
}

func (n *LiteralNode) String() string {
	switch n.Value.Kind {
	case KindString:
		escaped := strings.ReplaceAll(n.Value.Text, "\"", "\"\"")
		return "\"" + escaped + "\""
	case KindNumber:
		return formatNumber(n.Value.Num)
	default:
		return n.Value.String()
	}
}

// RefNode represents a single cell reference with per-axis anchors.
type RefNode struct {
	Addr     CellAddress
	AbsCol   bool
	AbsRow   bool
	Position NodePosition
}

func (n *RefNode) Eval(ev *Evaluator) (CellValue, error) {
	return ev.valueAt(n.Addr), nil
}

func (n *RefNode) GetPosition() NodePosition {
	return n.Position
}

func (n *RefNode) String() string {
	return refText(n.Addr, n.AbsCol, n.AbsRow)
}

// refText renders an address with its $ anchors preserved.
func refText(addr CellAddress, absCol, absRow bool) string {
	var b strings.Builder
	if absCol {
		b.WriteByte('$')
	}
	b.WriteString(NumberToColumn(addr.Col))
	if absRow {
		b.WriteByte('$')
	}
	fmt.Fprintf(&b, "%d", addr.Row+1)
	return b.String()
}

// RangeNode represents a rectangular range reference. Ranges are legal
// only as function arguments; evaluating one bare is an error.
type RangeNode struct {
	Range       CellRange
	AbsStartCol bool
	AbsStartRow bool
	AbsEndCol   bool
	AbsEndRow   bool
	Position    NodePosition
}

func (n *RangeNode) Eval(ev *Evaluator) (CellValue, error) {
	return EmptyValue(), fmt.Errorf("range %s is only valid as a function argument", n.Range)
}

func (n *RangeNode) GetPosition() NodePosition {
	return n.Position
}

func (n *RangeNode) String() string {
	return refText(n.Range.Start, n.AbsStartCol, n.AbsStartRow) + ":" +
		refText(n.Range.End, n.AbsEndCol, n.AbsEndRow)
}

// UnaryNode represents a prefix or postfix unary operation.
type UnaryNode struct {
	Op       UnaryOperator
	Operand  Expr
	Position NodePosition
}

func (n *UnaryNode) Eval(ev *Evaluator) (CellValue, error) {
	val, err := n.Operand.Eval(ev)
	if err != nil {
		return EmptyValue(), err
	}
	if val.IsError() {
		return val, nil
	}

	num, ok := toNumber(val)
	if !ok {
		return ErrorValue(ErrValue), nil
	}

	switch n.Op {
	case OpPlus:
		return NumberValue(num), nil
	case OpMinus:
		return NumberValue(-num), nil
	case OpPercent:
		return NumberValue(num / 100.0), nil
	default:
		return ErrorValue(ErrValue), nil
	}
}

func (n *UnaryNode) GetPosition() NodePosition {
	return n.Position
}

func (n *UnaryNode) String() string {
	switch n.Op {
	case OpPlus:
		return "+" + n.Operand.String()
	case OpMinus:
		return "-" + n.Operand.String()
	case OpPercent:
		return n.Operand.String() + "%"
	}
	return n.Operand.String()
}

// BinaryNode represents a binary operation.
type BinaryNode struct {
	Op       BinaryOperator
	Left     Expr
	Right    Expr
	Position NodePosition
}

func (n *BinaryNode) Eval(ev *Evaluator) (CellValue, error) {
	leftVal, err := n.Left.Eval(ev)
	if err != nil {
		return EmptyValue(), err
	}
	rightVal, err := n.Right.Eval(ev)
	if err != nil {
		return EmptyValue(), err
	}

	// error operands propagate, left first
	if leftVal.IsError() {
		return leftVal, nil
	}
	if rightVal.IsError() {
		return rightVal, nil
	}

	return applyBinary(n.Op, leftVal, rightVal), nil
}

func (n *BinaryNode) GetPosition() NodePosition {
	return n.Position
}

func (n *BinaryNode) String() string {
	return "(" + n.Left.String() + n.Op.String() + n.Right.String() + ")"
}

// CallNode represents a function call.
type CallNode struct {
	Name     string
	Args     []Expr
	Position NodePosition
}

func (n *CallNode) Eval(ev *Evaluator) (CellValue, error) {
	args := make([]CellValue, len(n.Args))
	for i, argNode := range n.Args {
		// a range argument expands into an array, one slot per cell;
		// a cell mid-evaluation contributes #CIRC! into its slot
		// instead of aborting the call
		if rangeNode, ok := argNode.(*RangeNode); ok {
			items := make([]CellValue, 0, rangeNode.Range.Size())
			for addr := range rangeNode.Range.Cells() {
				items = append(items, ev.valueAt(addr))
			}
			args[i] = ArrayValue(items)
			continue
		}

		argVal, err := argNode.Eval(ev)
		if err != nil {
			// functions decide how to handle error values
			argVal = ErrorValue(ErrValue)
		}
		args[i] = argVal
	}

	return ev.funcs.Call(n.Name, args), nil
}

func (n *CallNode) GetPosition() NodePosition {
	return n.Position
}

func (n *CallNode) String() string {
	args := make([]string, len(n.Args))
	for i, arg := range n.Args {
		args[i] = arg.String()
	}
	return n.Name + "(" + strings.Join(args, ",") + ")"
}
