package visibility

import (
	"io"
	"log/slog"
	"testing"

	"github.com/goliatone/go-formflow/pkg/metadata"
)

func quiet() *Evaluator {
	return New(WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
}

func TestNilRuleIsVisible(t *testing.T) {
	t.Parallel()

	if !quiet().IsVisible(nil, nil) {
		t.Fatalf("field without rules must be visible")
	}
	if !quiet().IsVisible(&metadata.VisibilityRule{Operator: metadata.CombinatorAnd}, nil) {
		t.Fatalf("rule without conditions must be visible")
	}
}

func TestAndCombinator(t *testing.T) {
	t.Parallel()

	rule := &metadata.VisibilityRule{
		Operator: metadata.CombinatorAnd,
		Conditions: []metadata.Condition{
			{Field: "status", Operator: metadata.OpEquals, Value: "approved"},
			{Field: "amount", Operator: metadata.OpGreaterThan, Value: 100},
		},
	}

	eval := quiet()

	if eval.IsVisible(rule, map[string]any{"status": "pending", "amount": 200.0}) {
		t.Fatalf("AND with one false condition must hide")
	}
	if eval.IsVisible(rule, map[string]any{"status": "approved", "amount": 50.0}) {
		t.Fatalf("AND with one false condition must hide")
	}
	if !eval.IsVisible(rule, map[string]any{"status": "approved", "amount": 200.0}) {
		t.Fatalf("AND with all conditions true must show")
	}
}

func TestOrCombinator(t *testing.T) {
	t.Parallel()

	rule := &metadata.VisibilityRule{
		Operator: metadata.CombinatorOr,
		Conditions: []metadata.Condition{
			{Field: "status", Operator: metadata.OpEquals, Value: "approved"},
			{Field: "override", Operator: metadata.OpEquals, Value: true},
		},
	}

	eval := quiet()

	if !eval.IsVisible(rule, map[string]any{"status": "pending", "override": true}) {
		t.Fatalf("OR with one true condition must show")
	}
	if eval.IsVisible(rule, map[string]any{"status": "pending", "override": false}) {
		t.Fatalf("OR with no true conditions must hide")
	}
}

func TestConditionOperators(t *testing.T) {
	t.Parallel()

	eval := quiet()

	cases := []struct {
		name   string
		cond   metadata.Condition
		values map[string]any
		want   bool
	}{
		{"equals case-insensitive", metadata.Condition{Field: "s", Operator: metadata.OpEquals, Value: "Approved"}, map[string]any{"s": "approved"}, true},
		{"equals numeric string", metadata.Condition{Field: "n", Operator: metadata.OpEquals, Value: 5}, map[string]any{"n": "5"}, true},
		{"not_equals", metadata.Condition{Field: "s", Operator: metadata.OpNotEquals, Value: "x"}, map[string]any{"s": "y"}, true},
		{"contains", metadata.Condition{Field: "s", Operator: metadata.OpContains, Value: "bar"}, map[string]any{"s": "foobarbaz"}, true},
		{"not_contains", metadata.Condition{Field: "s", Operator: metadata.OpNotContains, Value: "zap"}, map[string]any{"s": "foobar"}, true},
		{"in", metadata.Condition{Field: "s", Operator: metadata.OpIn, Value: []any{"a", "b"}}, map[string]any{"s": "b"}, true},
		{"not_in", metadata.Condition{Field: "s", Operator: metadata.OpNotIn, Value: []any{"a", "b"}}, map[string]any{"s": "c"}, true},
		{"greater_than string coerce", metadata.Condition{Field: "n", Operator: metadata.OpGreaterThan, Value: "10"}, map[string]any{"n": 11.0}, true},
		{"less_than", metadata.Condition{Field: "n", Operator: metadata.OpLessThan, Value: 10}, map[string]any{"n": 9.0}, true},
		{"greater_or_equal", metadata.Condition{Field: "n", Operator: metadata.OpGreaterOrEqual, Value: 10}, map[string]any{"n": 10.0}, true},
		{"less_or_equal", metadata.Condition{Field: "n", Operator: metadata.OpLessOrEqual, Value: 10}, map[string]any{"n": 10.0}, true},
		{"is_empty nil", metadata.Condition{Field: "s", Operator: metadata.OpIsEmpty}, map[string]any{}, true},
		{"is_empty blank", metadata.Condition{Field: "s", Operator: metadata.OpIsEmpty}, map[string]any{"s": "  "}, true},
		{"is_not_empty", metadata.Condition{Field: "s", Operator: metadata.OpIsNotEmpty}, map[string]any{"s": "x"}, true},
	}

	for _, tc := range cases {
		rule := &metadata.VisibilityRule{Operator: metadata.CombinatorAnd, Conditions: []metadata.Condition{tc.cond}}
		if got := eval.IsVisible(rule, tc.values); got != tc.want {
			t.Fatalf("%s: IsVisible = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestEqualsNonComparableValues(t *testing.T) {
	t.Parallel()

	eval := quiet()
	rule := func(value any) *metadata.VisibilityRule {
		return &metadata.VisibilityRule{
			Operator: metadata.CombinatorAnd,
			Conditions: []metadata.Condition{
				{Field: "tags", Operator: metadata.OpEquals, Value: value},
			},
		}
	}

	if !eval.IsVisible(rule([]any{"a"}), map[string]any{"tags": []any{"a"}}) {
		t.Fatalf("matching slice values must compare equal")
	}
	if eval.IsVisible(rule([]any{"b"}), map[string]any{"tags": []any{"a"}}) {
		t.Fatalf("mismatched slice values must compare unequal")
	}
	if eval.IsVisible(rule(map[string]any{"k": 1}), map[string]any{"tags": []any{"a"}}) {
		t.Fatalf("slice against map must compare unequal")
	}
}

func TestUnknownOperatorFailsOpen(t *testing.T) {
	t.Parallel()

	rule := &metadata.VisibilityRule{
		Operator: metadata.CombinatorAnd,
		Conditions: []metadata.Condition{
			{Field: "s", Operator: "resembles", Value: "x"},
		},
	}
	if !quiet().IsVisible(rule, map[string]any{"s": "anything"}) {
		t.Fatalf("unknown operator must evaluate to true")
	}
}
