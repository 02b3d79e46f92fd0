package engine

import "math"

// EvaluationContext is the narrow storage contract the evaluator needs.
// Any backend satisfying it (in-memory map, locked map, remote) is
// pluggable without engine changes. The push/pop pair is the
// authoritative cycle guard: PushEvaluation on entering a cell's
// evaluation, PopEvaluation unconditionally on exit.
type EvaluationContext interface {
	GetCellValue(addr CellAddress) (CellValue, error)
	CheckCircular(addr CellAddress) bool
	PushEvaluation(addr CellAddress)
	PopEvaluation(addr CellAddress)
}

// Evaluator computes values from expression trees against a context.
type Evaluator struct {
	ctx      EvaluationContext
	funcs    *FunctionRegistry
	maxDepth int // 0 means unbounded
	depth    int
}

// NewEvaluator creates an evaluator over the given context using the
// default function registry.
func NewEvaluator(ctx EvaluationContext) *Evaluator {
	return &Evaluator{ctx: ctx, funcs: DefaultFunctions()}
}

// NewEvaluatorWithRegistry creates an evaluator with a caller-provided
// function registry and reference-chain depth limit.
func NewEvaluatorWithRegistry(ctx EvaluationContext, funcs *FunctionRegistry, maxDepth int) *Evaluator {
	return &Evaluator{ctx: ctx, funcs: funcs, maxDepth: maxDepth}
}

// Evaluate computes the value of an expression. Spreadsheet-visible
// faults come back as error values; a non-nil error is reserved for
// infrastructure problems in the storage adapter.
func (ev *Evaluator) Evaluate(expr Expr) (CellValue, error) {
	if expr == nil {
		return EmptyValue(), nil
	}
	return expr.Eval(ev)
}

// EvaluateRange flattens a range to its per-cell values in row-major
// order, substituting #CIRC! for any cell that is mid-evaluation.
func (ev *Evaluator) EvaluateRange(r CellRange) []CellValue {
	values := make([]CellValue, 0, r.Size())
	for addr := range r.Cells() {
		values = append(values, ev.valueAt(addr))
	}
	return values
}

// valueAt resolves a single referenced cell, translating circularity
// into the #CIRC! error value rather than an aborting error.
func (ev *Evaluator) valueAt(addr CellAddress) CellValue {
	if ev.ctx.CheckCircular(addr) {
		return ErrorValue(ErrCirc)
	}

	if ev.maxDepth > 0 && ev.depth >= ev.maxDepth {
		return ErrorValue(ErrNum)
	}
	ev.depth++
	val, err := ev.ctx.GetCellValue(addr)
	ev.depth--

	if err != nil {
		if _, ok := err.(*CircularDependencyError); ok {
			return ErrorValue(ErrCirc)
		}
		return ErrorValue(ErrValue)
	}
	return val
}

// applyBinary applies binary operator semantics to two non-error
// operands. Numeric faults surface as error values, not errors.
func applyBinary(op BinaryOperator, left, right CellValue) CellValue {
	switch op {
	case OpAdd, OpSubtract, OpMultiply, OpDivide, OpPower:
		leftNum, leftOk := toNumber(left)
		rightNum, rightOk := toNumber(right)
		if !leftOk || !rightOk {
			return ErrorValue(ErrValue)
		}

		switch op {
		case OpAdd:
			return NumberValue(leftNum + rightNum)
		case OpSubtract:
			return NumberValue(leftNum - rightNum)
		case OpMultiply:
			return NumberValue(leftNum * rightNum)
		case OpDivide:
			if rightNum == 0 {
				return ErrorValue(ErrDiv0)
			}
			return NumberValue(leftNum / rightNum)
		case OpPower:
			result := math.Pow(leftNum, rightNum)
			if math.IsNaN(result) || math.IsInf(result, 0) {
				return ErrorValue(ErrNum)
			}
			return NumberValue(result)
		}

	case OpConcat:
		return StringValue(toText(left) + toText(right))

	case OpEqual:
		return BoolValue(compareValues(left, right) == 0)
	case OpNotEqual:
		return BoolValue(compareValues(left, right) != 0)
	case OpLess, OpLessEqual, OpGreater, OpGreaterEqual:
		cmp := compareValues(left, right)
		if cmp == -2 {
			return ErrorValue(ErrValue)
		}
		switch op {
		case OpLess:
			return BoolValue(cmp < 0)
		case OpLessEqual:
			return BoolValue(cmp <= 0)
		case OpGreater:
			return BoolValue(cmp > 0)
		case OpGreaterEqual:
			return BoolValue(cmp >= 0)
		}
	}

	return ErrorValue(ErrValue)
}
