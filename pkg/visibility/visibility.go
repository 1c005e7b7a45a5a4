// Package visibility evaluates the boolean condition trees that control
// whether a field is shown. Evaluation is fail-open: an unrecognized
// operator counts as true and is logged, never surfaced as an error.
package visibility

import (
	"fmt"
	"log/slog"
	"reflect"
	"strconv"
	"strings"

	"github.com/goliatone/go-formflow/pkg/metadata"
)

// Option customises the evaluator.
type Option func(*Evaluator)

// WithLogger injects the logger used for fail-open warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Evaluator) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// Evaluator evaluates visibility rules against current field values.
type Evaluator struct {
	logger *slog.Logger
}

// New constructs an evaluator applying any provided options.
func New(options ...Option) *Evaluator {
	e := &Evaluator{logger: slog.Default()}
	for _, opt := range options {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// IsVisible reports whether a field governed by rule should be shown. A nil
// rule or a rule without conditions means always visible. AND requires every
// condition true; anything else behaves as OR.
func (e *Evaluator) IsVisible(rule *metadata.VisibilityRule, values map[string]any) bool {
	if rule == nil || len(rule.Conditions) == 0 {
		return true
	}

	and := strings.EqualFold(strings.TrimSpace(rule.Operator), metadata.CombinatorAnd)
	for _, cond := range rule.Conditions {
		ok := e.evalCondition(cond, values)
		if and && !ok {
			return false
		}
		if !and && ok {
			return true
		}
	}
	return and
}

func (e *Evaluator) evalCondition(cond metadata.Condition, values map[string]any) bool {
	var current any
	if values != nil {
		current = values[cond.Field]
	}

	switch cond.Operator {
	case metadata.OpEquals:
		return looseEqual(current, cond.Value)
	case metadata.OpNotEquals:
		return !looseEqual(current, cond.Value)
	case metadata.OpContains:
		return strings.Contains(asString(current), asString(cond.Value))
	case metadata.OpNotContains:
		return !strings.Contains(asString(current), asString(cond.Value))
	case metadata.OpIn:
		return inList(current, cond.Value)
	case metadata.OpNotIn:
		return !inList(current, cond.Value)
	case metadata.OpGreaterThan:
		return asNumber(current) > asNumber(cond.Value)
	case metadata.OpLessThan:
		return asNumber(current) < asNumber(cond.Value)
	case metadata.OpGreaterOrEqual:
		return asNumber(current) >= asNumber(cond.Value)
	case metadata.OpLessOrEqual:
		return asNumber(current) <= asNumber(cond.Value)
	case metadata.OpIsEmpty:
		return isEmpty(current)
	case metadata.OpIsNotEmpty:
		return !isEmpty(current)
	}

	e.logger.Warn("visibility: unknown operator, treating condition as true",
		slog.String("field", cond.Field),
		slog.String("operator", cond.Operator))
	return true
}

// looseEqual accepts exact value equality first, then falls back to
// case-insensitive string comparison so "Approved" matches "approved".
// Direct comparison only runs for comparable dynamic types; slices and maps
// go through the string fallback instead of panicking.
func looseEqual(left, right any) bool {
	if left == nil || right == nil {
		if left == right {
			return true
		}
	} else if reflect.TypeOf(left).Comparable() && reflect.TypeOf(right).Comparable() {
		if left == right {
			return true
		}
	}
	lnum, lok := parseNumber(left)
	rnum, rok := parseNumber(right)
	if lok && rok {
		return lnum == rnum
	}
	return strings.EqualFold(asString(left), asString(right))
}

func inList(current, list any) bool {
	entries, ok := list.([]any)
	if !ok {
		if strs, sok := list.([]string); sok {
			for _, entry := range strs {
				if looseEqual(current, entry) {
					return true
				}
			}
		}
		return false
	}
	for _, entry := range entries {
		if looseEqual(current, entry) {
			return true
		}
	}
	return false
}

func isEmpty(value any) bool {
	if value == nil {
		return true
	}
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v) == ""
	case []any:
		return len(v) == 0
	case map[string]any:
		return len(v) == 0
	default:
		return false
	}
}

func asNumber(value any) float64 {
	num, _ := parseNumber(value)
	return num
}

func parseNumber(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

func asString(value any) string {
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
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprint(value)
	}
}
