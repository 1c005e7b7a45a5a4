package formula

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Evaluator evaluates calculated-field formulas against a map of current
// field values. It is stateless and safe for concurrent use.
//
// Missing identifiers resolve to nil, which behaves as NaN in arithmetic and
// false in boolean positions. That mirrors the legacy runtime the metadata
// contract was written against; aggregate functions are the exception and
// treat missing operands as 0.
type Evaluator struct{}

// New constructs a formula evaluator.
func New() *Evaluator { return &Evaluator{} }

// Evaluate parses and evaluates formula in one call. Callers that evaluate
// the same formula repeatedly should Parse once and reuse the Expr.
func (e *Evaluator) Evaluate(formula string, values map[string]any) (any, error) {
	expr, err := Parse(formula)
	if err != nil {
		return nil, err
	}
	return expr.Eval(values)
}

// Eval evaluates the compiled expression against the supplied values.
func (x *Expr) Eval(values map[string]any) (any, error) {
	if x == nil || x.root == nil {
		return nil, nil
	}
	return x.root.eval(values)
}

// Function names recognised inside formulas.
const (
	FuncIf    = "IF"
	FuncSum   = "SUM"
	FuncAvg   = "AVG"
	FuncMin   = "MIN"
	FuncMax   = "MAX"
	FuncRound = "ROUND"
	FuncAbs   = "ABS"
)

func isFunction(upper string) bool {
	switch upper {
	case FuncIf, FuncSum, FuncAvg, FuncMin, FuncMax, FuncRound, FuncAbs:
		return true
	}
	return false
}

func callFunction(name string, args []node, values map[string]any) (any, error) {
	switch name {
	case FuncIf:
		if len(args) != 3 {
			return nil, fmt.Errorf("formula: IF expects 3 arguments, got %d", len(args))
		}
		cond, err := args[0].eval(values)
		if err != nil {
			return nil, err
		}
		if truthy(cond) {
			return args[1].eval(values)
		}
		return args[2].eval(values)
	case FuncSum, FuncAvg, FuncMin, FuncMax:
		nums, err := aggregateOperands(args, values)
		if err != nil {
			return nil, err
		}
		return aggregate(name, nums)
	case FuncRound:
		if len(args) != 1 && len(args) != 2 {
			return nil, fmt.Errorf("formula: ROUND expects 1 or 2 arguments, got %d", len(args))
		}
		value, err := args[0].eval(values)
		if err != nil {
			return nil, err
		}
		digits := 0.0
		if len(args) == 2 {
			raw, err := args[1].eval(values)
			if err != nil {
				return nil, err
			}
			digits = numericOperand(raw)
		}
		factor := math.Pow(10, math.Trunc(digits))
		num := numericOperand(value)
		if math.IsNaN(num) {
			return num, nil
		}
		return math.Round(num*factor) / factor, nil
	case FuncAbs:
		if len(args) != 1 {
			return nil, fmt.Errorf("formula: ABS expects 1 argument, got %d", len(args))
		}
		value, err := args[0].eval(values)
		if err != nil {
			return nil, err
		}
		return math.Abs(numericOperand(value)), nil
	}
	return nil, fmt.Errorf("formula: unknown function %q", name)
}

// aggregateOperands evaluates arguments for SUM/AVG/MIN/MAX. Missing or
// empty operands count as 0 so a half-filled form still produces totals.
func aggregateOperands(args []node, values map[string]any) ([]float64, error) {
	nums := make([]float64, 0, len(args))
	for _, arg := range args {
		value, err := arg.eval(values)
		if err != nil {
			return nil, err
		}
		num, ok := coerceNumber(value)
		if !ok {
			num = 0
		}
		nums = append(nums, num)
	}
	return nums, nil
}

func aggregate(name string, nums []float64) (any, error) {
	if len(nums) == 0 {
		return nil, fmt.Errorf("formula: %s expects at least 1 argument", name)
	}
	switch name {
	case FuncSum, FuncAvg:
		total := 0.0
		for _, n := range nums {
			total += n
		}
		if name == FuncAvg {
			return total / float64(len(nums)), nil
		}
		return total, nil
	case FuncMin:
		min := nums[0]
		for _, n := range nums[1:] {
			if n < min {
				min = n
			}
		}
		return min, nil
	case FuncMax:
		max := nums[0]
		for _, n := range nums[1:] {
			if n > max {
				max = n
			}
		}
		return max, nil
	}
	return nil, fmt.Errorf("formula: unknown aggregate %q", name)
}

// addValues keeps string concatenation for '+' when either side is a
// non-numeric string; everything else is numeric addition.
func addValues(left, right any) any {
	lnum, lok := coerceNumber(left)
	rnum, rok := coerceNumber(right)
	if lok && rok {
		return lnum + rnum
	}
	if isStringy(left) || isStringy(right) {
		return coerceString(left) + coerceString(right)
	}
	return numericOperand(left) + numericOperand(right)
}

func isStringy(value any) bool {
	s, ok := value.(string)
	if !ok {
		return false
	}
	_, numeric := coerceNumber(s)
	return !numeric
}

func arithmetic(op tokenKind, left, right any) float64 {
	lnum := numericOperand(left)
	rnum := numericOperand(right)
	switch op {
	case tokenMinus:
		return lnum - rnum
	case tokenStar:
		return lnum * rnum
	case tokenSlash:
		if rnum == 0 {
			return math.NaN()
		}
		return lnum / rnum
	case tokenPercent:
		if rnum == 0 {
			return math.NaN()
		}
		return math.Mod(lnum, rnum)
	}
	return math.NaN()
}

func looseEqual(left, right any) bool {
	if left == nil && right == nil {
		return true
	}
	lnum, lok := coerceNumber(left)
	rnum, rok := coerceNumber(right)
	if lok && rok {
		return lnum == rnum
	}
	if lb, ok := left.(bool); ok {
		return lb == truthy(right)
	}
	if rb, ok := right.(bool); ok {
		return rb == truthy(left)
	}
	return coerceString(left) == coerceString(right)
}

func compareOrdered(op tokenKind, left, right any) bool {
	lnum, lok := coerceNumber(left)
	rnum, rok := coerceNumber(right)
	if lok && rok {
		switch op {
		case tokenLt:
			return lnum < rnum
		case tokenLte:
			return lnum <= rnum
		case tokenGt:
			return lnum > rnum
		case tokenGte:
			return lnum >= rnum
		}
		return false
	}

	ls := coerceString(left)
	rs := coerceString(right)
	switch op {
	case tokenLt:
		return ls < rs
	case tokenLte:
		return ls <= rs
	case tokenGt:
		return ls > rs
	case tokenGte:
		return ls >= rs
	}
	return false
}

// numericOperand coerces a value for arithmetic. Unlike coerceNumber it does
// not report failure: nil and unparsable strings become NaN so errors
// propagate through calculations instead of silently becoming zero.
func numericOperand(value any) float64 {
	if value == nil {
		return math.NaN()
	}
	if num, ok := coerceNumber(value); ok {
		return num
	}
	if b, ok := value.(bool); ok {
		if b {
			return 1
		}
		return 0
	}
	return math.NaN()
}

// Truthy reports whether a formula result counts as true: false for nil,
// empty strings, zero numbers, NaN, and empty collections.
func Truthy(value any) bool { return truthy(value) }

func truthy(value any) bool {
	if value == nil {
		return false
	}
	switch v := value.(type) {
	case bool:
		return v
	case string:
		return strings.TrimSpace(v) != ""
	case int:
		return v != 0
	case int64:
		return v != 0
	case float64:
		return v != 0 && !math.IsNaN(v)
	case float32:
		return v != 0
	case []any:
		return len(v) > 0
	case map[string]any:
		return len(v) > 0
	default:
		return true
	}
}

func coerceNumber(value any) (float64, bool) {
	if value == nil {
		return 0, false
	}
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case int32:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint64:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func coerceString(value any) string {
	if value == nil {
		return ""
	}
	switch v := value.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(value)
	}
}
