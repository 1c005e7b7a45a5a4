package cascade

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/goliatone/go-formflow/pkg/formula"
	"github.com/goliatone/go-formflow/pkg/metadata"
)

// ErrNoStrategy is returned when a dependent field declares no usable option
// source for cascade resolution.
var ErrNoStrategy = errors.New("cascade: field has no option source")

// Option customises the loader.
type Option func(*Loader)

// WithFetcher injects the remote fetcher used by the reference and endpoint
// strategies. Without one, only the static strategy is available.
func WithFetcher(fetcher Fetcher) Option {
	return func(l *Loader) { l.fetcher = fetcher }
}

// WithLogger injects the logger used for filter-expression fail-open paths.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// Loader resolves a dependent field's option list from the parent's current
// value. It owns strategy selection and mapping; widget state transitions
// (clear, disable, restore) belong to the form session driving it.
type Loader struct {
	fetcher   Fetcher
	logger    *slog.Logger
	formula   *formula.Evaluator
	sanitizer *bluemonday.Policy
}

// New constructs a loader applying any provided options.
func New(options ...Option) *Loader {
	l := &Loader{
		logger:    slog.Default(),
		formula:   formula.New(),
		sanitizer: bluemonday.StrictPolicy(),
	}
	for _, opt := range options {
		if opt != nil {
			opt(l)
		}
	}
	return l
}

// Resolve returns the new option list for the dependent field given the
// parent's value. Strategy priority: reference entity, options endpoint,
// filtered static list.
func (l *Loader) Resolve(ctx context.Context, cfg metadata.FieldConfig, parentValue any) ([]metadata.Option, error) {
	switch {
	case cfg.ReferenceEntityID != "":
		return l.resolveReference(ctx, cfg, parentValue)
	case cfg.OptionsEndpoint != "":
		return l.resolveEndpoint(ctx, cfg, parentValue)
	case len(cfg.AllowedValues) > 0:
		return l.resolveStatic(cfg, parentValue), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrNoStrategy, cfg.Name)
}

func (l *Loader) resolveReference(ctx context.Context, cfg metadata.FieldConfig, parentValue any) ([]metadata.Option, error) {
	if l.fetcher == nil {
		return nil, errors.New("cascade: fetcher is not configured")
	}

	filterField := cfg.ReferenceField
	if filterField == "" {
		filterField = cfg.DependsOnField
	}
	filters := map[string]any{}
	if filterField != "" && parentValue != nil {
		filters[filterField] = parentValue
	}

	records, err := l.fetcher.FetchReferenceRecords(ctx, cfg.ReferenceEntityID, filters)
	if err != nil {
		return nil, err
	}

	options := make([]metadata.Option, 0, len(records))
	for _, record := range records {
		option := l.mapRecord(cfg, record)
		if option.Value == "" {
			continue
		}
		options = append(options, option)
	}
	return options, nil
}

// mapRecord turns a raw record into a value/label pair. The value comes from
// the record id; the label from display_template ({field} placeholders),
// display_field, or the usual name-ish keys.
func (l *Loader) mapRecord(cfg metadata.FieldConfig, record map[string]any) metadata.Option {
	value := stringValue(firstOf(record, "id", "value"))

	var label string
	switch {
	case cfg.DisplayTemplate != "":
		label = expandTemplate(cfg.DisplayTemplate, record)
	case cfg.DisplayField != "":
		label = stringValue(record[cfg.DisplayField])
	default:
		label = stringValue(firstOf(record, "name", "label", "title"))
	}
	if label == "" {
		label = value
	}
	return metadata.Option{Value: value, Label: l.sanitizer.Sanitize(label)}
}

func (l *Loader) resolveEndpoint(ctx context.Context, cfg metadata.FieldConfig, parentValue any) ([]metadata.Option, error) {
	if l.fetcher == nil {
		return nil, errors.New("cascade: fetcher is not configured")
	}

	params := map[string]any{}
	if cfg.DependsOnField != "" && parentValue != nil {
		params[cfg.DependsOnField] = parentValue
	}
	return l.fetcher.FetchOptions(ctx, cfg.OptionsEndpoint, params)
}

// resolveStatic filters allowed_values through filter_expression, binding
// each candidate's value and label plus the parent value. A broken or
// erroring expression keeps the candidate (fail-open).
func (l *Loader) resolveStatic(cfg metadata.FieldConfig, parentValue any) []metadata.Option {
	if strings.TrimSpace(cfg.FilterExpression) == "" {
		return append([]metadata.Option(nil), cfg.AllowedValues...)
	}

	expr, err := formula.Parse(cfg.FilterExpression)
	if err != nil {
		l.logger.Warn("cascade: invalid filter expression, keeping all options",
			slog.String("field", cfg.Name),
			slog.Any("error", err))
		return append([]metadata.Option(nil), cfg.AllowedValues...)
	}

	var out []metadata.Option
	for _, option := range cfg.AllowedValues {
		scope := map[string]any{
			"value":  option.Value,
			"label":  option.Label,
			"parent": parentValue,
		}
		result, err := expr.Eval(scope)
		if err != nil {
			l.logger.Warn("cascade: filter expression failed, keeping option",
				slog.String("field", cfg.Name),
				slog.String("option", option.Value),
				slog.Any("error", err))
			out = append(out, option)
			continue
		}
		if formula.Truthy(result) {
			out = append(out, option)
		}
	}
	return out
}

// Contains reports whether value still exists in options. Sessions use this
// to decide whether a dependent's previous value survives a reload.
func Contains(options []metadata.Option, value any) bool {
	if value == nil {
		return false
	}
	needle := stringValue(value)
	if needle == "" {
		return false
	}
	for _, option := range options {
		if option.Value == needle {
			return true
		}
	}
	return false
}

func expandTemplate(template string, record map[string]any) string {
	var out strings.Builder
	rest := template
	for {
		start := strings.Index(rest, "{")
		if start < 0 {
			out.WriteString(rest)
			return out.String()
		}
		end := strings.Index(rest[start:], "}")
		if end < 0 {
			out.WriteString(rest)
			return out.String()
		}
		out.WriteString(rest[:start])
		out.WriteString(stringValue(record[rest[start+1:start+end]]))
		rest = rest[start+end+1:]
	}
}
