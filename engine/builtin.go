package engine

import (
	"math"
	"sort"
	"strings"
)

// Function is a spreadsheet function implementation. Arguments arrive
// pre-evaluated; range arguments arrive as arrays. Implementations
// report faults as error values.
type Function func(args []CellValue) CellValue

// FunctionRegistry dispatches function calls by case-insensitive name.
type FunctionRegistry struct {
	funcs map[string]Function
}

// NewFunctionRegistry creates an empty registry.
func NewFunctionRegistry() *FunctionRegistry {
	return &FunctionRegistry{funcs: make(map[string]Function)}
}

// Register adds or replaces a function under the given name.
func (fr *FunctionRegistry) Register(name string, fn Function) {
	fr.funcs[strings.ToUpper(name)] = fn
}

// Call invokes a registered function. An unknown name surfaces as the
// #NAME? error value.
func (fr *FunctionRegistry) Call(name string, args []CellValue) CellValue {
	fn, exists := fr.funcs[strings.ToUpper(name)]
	if !exists {
		return ErrorValue(ErrName)
	}
	return fn(args)
}

// Has reports whether a function name is registered.
func (fr *FunctionRegistry) Has(name string) bool {
	_, exists := fr.funcs[strings.ToUpper(name)]
	return exists
}

// DefaultFunctions returns a registry with the built-in function set.
func DefaultFunctions() *FunctionRegistry {
	fr := NewFunctionRegistry()
	fr.Register("SUM", fnSum)
	fr.Register("AVERAGE", fnAverage)
	fr.Register("COUNT", fnCount)
	fr.Register("COUNTA", fnCountA)
	fr.Register("MAX", fnMax)
	fr.Register("MIN", fnMin)
	fr.Register("MEDIAN", fnMedian)
	fr.Register("IF", fnIf)
	fr.Register("AND", fnAnd)
	fr.Register("OR", fnOr)
	fr.Register("NOT", fnNot)
	fr.Register("CONCATENATE", fnConcatenate)
	fr.Register("LEN", fnLen)
	fr.Register("UPPER", fnUpper)
	fr.Register("LOWER", fnLower)
	fr.Register("TRIM", fnTrim)
	fr.Register("ABS", fnAbs)
	fr.Register("ROUND", fnRound)
	fr.Register("FLOOR", fnFloor)
	fr.Register("CEILING", fnCeiling)
	fr.Register("SQRT", fnSqrt)
	fr.Register("POWER", fnPower)
	fr.Register("MOD", fnMod)
	fr.Register("PI", fnPi)
	return fr
}

// forEachScalar walks arguments, flattening arrays one level (arrays
// only arise from range expansion and do not nest). The walk stops at
// the first callback error value, which is returned.
func forEachScalar(args []CellValue, fn func(v CellValue, fromArray bool) *CellValue) *CellValue {
	for _, arg := range args {
		if arg.Kind == KindArray {
			for _, item := range arg.Items {
				if errVal := fn(item, true); errVal != nil {
					return errVal
				}
			}
			continue
		}
		if errVal := fn(arg, false); errVal != nil {
			return errVal
		}
	}
	return nil
}

func fnSum(args []CellValue) CellValue {
	sum := 0.0
	if errVal := forEachScalar(args, func(v CellValue, _ bool) *CellValue {
		if v.IsError() {
			return &v
		}
		if num, ok := toNumber(v); ok && !math.IsNaN(num) {
			sum += num
		}
		return nil
	}); errVal != nil {
		return *errVal
	}
	return NumberValue(sum)
}

func fnAverage(args []CellValue) CellValue {
	sum := 0.0
	count := 0
	if errVal := forEachScalar(args, func(v CellValue, _ bool) *CellValue {
		if v.IsError() {
			return &v
		}
		if v.IsEmpty() {
			return nil
		}
		if num, ok := toNumber(v); ok && !math.IsNaN(num) {
			sum += num
			count++
		}
		return nil
	}); errVal != nil {
		return *errVal
	}

	if count == 0 {
		return ErrorValue(ErrDiv0)
	}
	return NumberValue(sum / float64(count))
}

func fnCount(args []CellValue) CellValue {
	count := 0
	forEachScalar(args, func(v CellValue, _ bool) *CellValue {
		// COUNT only counts numbers; errors in ranges are skipped,
		// not propagated
		if v.Kind == KindNumber {
			count++
		}
		return nil
	})
	return NumberValue(float64(count))
}

func fnCountA(args []CellValue) CellValue {
	count := 0
	forEachScalar(args, func(v CellValue, _ bool) *CellValue {
		// COUNTA counts everything non-empty, errors included
		if !v.IsEmpty() {
			count++
		}
		return nil
	})
	return NumberValue(float64(count))
}

func fnMax(args []CellValue) CellValue {
	best := math.Inf(-1)
	hasValues := false
	if errVal := forEachScalar(args, func(v CellValue, _ bool) *CellValue {
		if v.IsError() {
			return &v
		}
		if v.Kind == KindNumber {
			if v.Num > best {
				best = v.Num
			}
			hasValues = true
		}
		return nil
	}); errVal != nil {
		return *errVal
	}

	if !hasValues {
		return NumberValue(0)
	}
	return NumberValue(best)
}

func fnMin(args []CellValue) CellValue {
	best := math.Inf(1)
	hasValues := false
	if errVal := forEachScalar(args, func(v CellValue, _ bool) *CellValue {
		if v.IsError() {
			return &v
		}
		if v.Kind == KindNumber {
			if v.Num < best {
				best = v.Num
			}
			hasValues = true
		}
		return nil
	}); errVal != nil {
		return *errVal
	}

	if !hasValues {
		return NumberValue(0)
	}
	return NumberValue(best)
}

func fnMedian(args []CellValue) CellValue {
	var values []float64
	if errVal := forEachScalar(args, func(v CellValue, _ bool) *CellValue {
		if v.IsError() {
			return &v
		}
		if num, ok := toNumber(v); ok && !v.IsEmpty() && !math.IsNaN(num) {
			values = append(values, num)
		}
		return nil
	}); errVal != nil {
		return *errVal
	}

	if len(values) == 0 {
		return ErrorValue(ErrNum)
	}

	sort.Float64s(values)
	mid := len(values) / 2
	if len(values)%2 == 0 {
		// even count: average of two middle values
		return NumberValue((values[mid-1] + values[mid]) / 2)
	}
	return NumberValue(values[mid])
}

func fnIf(args []CellValue) CellValue {
	if len(args) < 2 || len(args) > 3 {
		return ErrorValue(ErrValue)
	}
	if args[0].IsError() {
		return args[0]
	}

	if isTruthy(args[0]) {
		return args[1]
	}
	if len(args) == 3 {
		return args[2]
	}
	return BoolValue(false)
}

func fnAnd(args []CellValue) CellValue {
	if len(args) == 0 {
		return ErrorValue(ErrValue)
	}
	result := true
	if errVal := forEachScalar(args, func(v CellValue, _ bool) *CellValue {
		if v.IsError() {
			return &v
		}
		if !isTruthy(v) {
			result = false
		}
		return nil
	}); errVal != nil {
		return *errVal
	}
	return BoolValue(result)
}

func fnOr(args []CellValue) CellValue {
	if len(args) == 0 {
		return ErrorValue(ErrValue)
	}
	result := false
	if errVal := forEachScalar(args, func(v CellValue, _ bool) *CellValue {
		if v.IsError() {
			return &v
		}
		if isTruthy(v) {
			result = true
		}
		return nil
	}); errVal != nil {
		return *errVal
	}
	return BoolValue(result)
}

func fnNot(args []CellValue) CellValue {
	if len(args) != 1 {
		return ErrorValue(ErrValue)
	}
	if args[0].IsError() {
		return args[0]
	}
	return BoolValue(!isTruthy(args[0]))
}

func fnConcatenate(args []CellValue) CellValue {
	var result strings.Builder
	if errVal := forEachScalar(args, func(v CellValue, _ bool) *CellValue {
		if v.IsError() {
			return &v
		}
		result.WriteString(toText(v))
		return nil
	}); errVal != nil {
		return *errVal
	}
	return StringValue(result.String())
}

func fnLen(args []CellValue) CellValue {
	if len(args) != 1 {
		return ErrorValue(ErrValue)
	}
	if args[0].IsError() {
		return args[0]
	}
	return NumberValue(float64(len([]rune(toText(args[0])))))
}

func fnUpper(args []CellValue) CellValue {
	if len(args) != 1 {
		return ErrorValue(ErrValue)
	}
	if args[0].IsError() {
		return args[0]
	}
	return StringValue(strings.ToUpper(toText(args[0])))
}

func fnLower(args []CellValue) CellValue {
	if len(args) != 1 {
		return ErrorValue(ErrValue)
	}
	if args[0].IsError() {
		return args[0]
	}
	return StringValue(strings.ToLower(toText(args[0])))
}

func fnTrim(args []CellValue) CellValue {
	if len(args) != 1 {
		return ErrorValue(ErrValue)
	}
	if args[0].IsError() {
		return args[0]
	}
	return StringValue(strings.TrimSpace(toText(args[0])))
}

func fnAbs(args []CellValue) CellValue {
	num, errVal := singleNumber(args)
	if errVal != nil {
		return *errVal
	}
	return NumberValue(math.Abs(num))
}

func fnRound(args []CellValue) CellValue {
	if len(args) < 1 || len(args) > 2 {
		return ErrorValue(ErrValue)
	}
	for _, arg := range args {
		if arg.IsError() {
			return arg
		}
	}

	num, ok := toNumber(args[0])
	if !ok {
		return ErrorValue(ErrValue)
	}

	places := 0.0
	if len(args) == 2 {
		places, ok = toNumber(args[1])
		if !ok {
			return ErrorValue(ErrValue)
		}
	}

	multiplier := math.Pow(10, places)
	return NumberValue(math.Round(num*multiplier) / multiplier)
}

func fnFloor(args []CellValue) CellValue {
	num, errVal := singleNumber(args)
	if errVal != nil {
		return *errVal
	}
	return NumberValue(math.Floor(num))
}

func fnCeiling(args []CellValue) CellValue {
	num, errVal := singleNumber(args)
	if errVal != nil {
		return *errVal
	}
	return NumberValue(math.Ceil(num))
}

func fnSqrt(args []CellValue) CellValue {
	num, errVal := singleNumber(args)
	if errVal != nil {
		return *errVal
	}
	if num < 0 {
		return ErrorValue(ErrNum)
	}
	return NumberValue(math.Sqrt(num))
}

func fnPower(args []CellValue) CellValue {
	if len(args) != 2 {
		return ErrorValue(ErrValue)
	}
	for _, arg := range args {
		if arg.IsError() {
			return arg
		}
	}
	base, ok1 := toNumber(args[0])
	exp, ok2 := toNumber(args[1])
	if !ok1 || !ok2 {
		return ErrorValue(ErrValue)
	}
	result := math.Pow(base, exp)
	if math.IsNaN(result) || math.IsInf(result, 0) {
		return ErrorValue(ErrNum)
	}
	return NumberValue(result)
}

func fnMod(args []CellValue) CellValue {
	if len(args) != 2 {
		return ErrorValue(ErrValue)
	}
	for _, arg := range args {
		if arg.IsError() {
			return arg
		}
	}
	dividend, ok1 := toNumber(args[0])
	divisor, ok2 := toNumber(args[1])
	if !ok1 || !ok2 {
		return ErrorValue(ErrValue)
	}
	if divisor == 0 {
		return ErrorValue(ErrDiv0)
	}
	return NumberValue(math.Mod(dividend, divisor))
}

func fnPi(args []CellValue) CellValue {
	if len(args) != 0 {
		return ErrorValue(ErrValue)
	}
	return NumberValue(math.Pi)
}

// singleNumber validates a one-numeric-argument call shape.
func singleNumber(args []CellValue) (float64, *CellValue) {
	if len(args) != 1 {
		errVal := ErrorValue(ErrValue)
		return 0, &errVal
	}
	if args[0].IsError() {
		return 0, &args[0]
	}
	num, ok := toNumber(args[0])
	if !ok {
		errVal := ErrorValue(ErrValue)
		return 0, &errVal
	}
	return num, nil
}
