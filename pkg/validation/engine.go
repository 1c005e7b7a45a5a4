// Package validation runs a field's built-in checks followed by its
// declarative rule list. Rules short-circuit on the first failure so a field
// ever shows one message; a rule that errors while evaluating passes
// (fail-open) and is logged.
package validation

import (
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/goliatone/go-formflow/pkg/formula"
	"github.com/goliatone/go-formflow/pkg/metadata"
)

// Result is the outcome of validating a single field.
type Result struct {
	Valid   bool
	Message string
}

var valid = Result{Valid: true}

func invalid(message string) Result {
	return Result{Valid: false, Message: message}
}

// Option customises the engine.
type Option func(*Engine)

// WithLogger injects the logger used for fail-open rule errors.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// Engine validates field values against their metadata configuration.
type Engine struct {
	logger  *slog.Logger
	formula *formula.Evaluator
}

// New constructs a validation engine applying any provided options.
func New(options ...Option) *Engine {
	e := &Engine{
		logger:  slog.Default(),
		formula: formula.New(),
	}
	for _, opt := range options {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// ValidateField checks value against cfg. values carries every field's
// current value for custom expression rules. Built-in checks (required,
// numeric type) run first; declarative rules follow in array order and stop
// at the first failure.
func (e *Engine) ValidateField(cfg metadata.FieldConfig, value any, values map[string]any) Result {
	empty := isBlank(value)

	if cfg.Required && empty {
		return invalid(fmt.Sprintf("%s is required", fieldLabel(cfg)))
	}

	if cfg.Type == metadata.FieldTypeNumber && !empty {
		if _, ok := toNumber(value); !ok {
			return invalid(fmt.Sprintf("%s must be a number", fieldLabel(cfg)))
		}
	}

	for _, rule := range cfg.ValidationRules {
		// Presence is the required flag's job; value-shape rules skip
		// empties so optional fields stay optional. Custom expressions see
		// the empty value and decide for themselves.
		if empty && rule.Type != metadata.RuleCustom {
			continue
		}
		pass, err := e.evalRule(cfg, rule, value, values)
		if err != nil {
			e.logger.Warn("validation: rule evaluation failed, treating as pass",
				slog.String("field", cfg.Name),
				slog.String("rule", rule.Type),
				slog.Any("error", err))
			continue
		}
		if !pass {
			return invalid(ruleMessage(cfg, rule))
		}
	}

	return valid
}

func (e *Engine) evalRule(cfg metadata.FieldConfig, rule metadata.ValidationRule, value any, values map[string]any) (bool, error) {
	switch rule.Type {
	case metadata.RuleRegex:
		re, err := regexp.Compile(rule.Pattern)
		if err != nil {
			return false, fmt.Errorf("validation: invalid pattern %q: %w", rule.Pattern, err)
		}
		return re.MatchString(toString(value)), nil
	case metadata.RuleMinLength:
		limit, err := intParam(rule.Value)
		if err != nil {
			return false, err
		}
		return len([]rune(toString(value))) >= limit, nil
	case metadata.RuleMaxLength:
		limit, err := intParam(rule.Value)
		if err != nil {
			return false, err
		}
		return len([]rune(toString(value))) <= limit, nil
	case metadata.RuleMinValue:
		bound, err := floatParam(rule.Value)
		if err != nil {
			return false, err
		}
		num, ok := toNumber(value)
		if !ok {
			return false, fmt.Errorf("validation: %q is not numeric", cfg.Name)
		}
		return num >= bound, nil
	case metadata.RuleMaxValue:
		bound, err := floatParam(rule.Value)
		if err != nil {
			return false, err
		}
		num, ok := toNumber(value)
		if !ok {
			return false, fmt.Errorf("validation: %q is not numeric", cfg.Name)
		}
		return num <= bound, nil
	case metadata.RuleEmail:
		return emailPattern.MatchString(toString(value)), nil
	case metadata.RuleURL:
		return urlPattern.MatchString(toString(value)), nil
	case metadata.RulePhone:
		return phonePattern.MatchString(toString(value)), nil
	case metadata.RuleCustom:
		return e.evalCustom(cfg, rule, value, values)
	}
	return false, fmt.Errorf("validation: unknown rule type %q", rule.Type)
}

// evalCustom runs a boolean expression with the field's own value bound to
// "value" plus every other field under its own name.
func (e *Engine) evalCustom(cfg metadata.FieldConfig, rule metadata.ValidationRule, value any, values map[string]any) (bool, error) {
	if strings.TrimSpace(rule.Expression) == "" {
		return false, fmt.Errorf("validation: custom rule on %q has no expression", cfg.Name)
	}

	scope := make(map[string]any, len(values)+1)
	for name, v := range values {
		scope[name] = v
	}
	scope["value"] = value

	out, err := e.formula.Evaluate(rule.Expression, scope)
	if err != nil {
		return false, err
	}
	return formula.Truthy(out), nil
}

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	urlPattern   = regexp.MustCompile(`^https?://[^\s]+$`)
	phonePattern = regexp.MustCompile(`^\+?[\d\s\-().]{7,}$`)
)

func ruleMessage(cfg metadata.FieldConfig, rule metadata.ValidationRule) string {
	if strings.TrimSpace(rule.Message) != "" {
		return rule.Message
	}
	label := fieldLabel(cfg)
	switch rule.Type {
	case metadata.RuleRegex:
		return fmt.Sprintf("%s has an invalid format", label)
	case metadata.RuleMinLength:
		return fmt.Sprintf("%s is too short", label)
	case metadata.RuleMaxLength:
		return fmt.Sprintf("%s is too long", label)
	case metadata.RuleMinValue:
		return fmt.Sprintf("%s is too small", label)
	case metadata.RuleMaxValue:
		return fmt.Sprintf("%s is too large", label)
	case metadata.RuleEmail:
		return fmt.Sprintf("%s must be a valid email address", label)
	case metadata.RuleURL:
		return fmt.Sprintf("%s must be a valid URL", label)
	case metadata.RulePhone:
		return fmt.Sprintf("%s must be a valid phone number", label)
	default:
		return fmt.Sprintf("%s is invalid", label)
	}
}

func fieldLabel(cfg metadata.FieldConfig) string {
	if strings.TrimSpace(cfg.Label) != "" {
		return cfg.Label
	}
	return cfg.Name
}

func isBlank(value any) bool {
	if value == nil {
		return true
	}
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v) == ""
	case []any:
		return len(v) == 0
	default:
		return false
	}
}

func toString(value any) string {
	if value == nil {
		return ""
	}
	switch v := value.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(value)
	}
}

func toNumber(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func intParam(value any) (int, error) {
	num, ok := toNumber(value)
	if !ok {
		return 0, fmt.Errorf("validation: rule value %v is not numeric", value)
	}
	return int(num), nil
}

func floatParam(value any) (float64, error) {
	num, ok := toNumber(value)
	if !ok {
		return 0, fmt.Errorf("validation: rule value %v is not numeric", value)
	}
	return num, nil
}
