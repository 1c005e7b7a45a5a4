// Package session owns the runtime state of one rendered form: a FieldState
// per declared field, the dependency graph derived from metadata, and the
// propagation loop that keeps calculated values, visibility, option lists,
// and validation in sync as values change.
//
// A session is a self-contained value; two sessions over the same document
// never share state. Mutation is single-writer: hosts change values only
// through SetValue, and asynchronous cascade completions re-enter through
// the session mutex.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/goliatone/go-formflow/pkg/cascade"
	"github.com/goliatone/go-formflow/pkg/depgraph"
	"github.com/goliatone/go-formflow/pkg/formula"
	"github.com/goliatone/go-formflow/pkg/metadata"
	"github.com/goliatone/go-formflow/pkg/validation"
	"github.com/goliatone/go-formflow/pkg/visibility"
	"github.com/goliatone/go-formflow/pkg/widgets"
)

// ErrUnknownField is returned when a host names a field the document does
// not declare.
var ErrUnknownField = errors.New("session: unknown field")

// FailedOptionsMessage is the field-local error shown when a cascade fetch
// fails. The widget stays enabled and empty so the user can retry.
const FailedOptionsMessage = "Failed to load options"

// fieldState is the runtime record for one field. All access goes through
// the session mutex.
type fieldState struct {
	cfg metadata.FieldConfig

	value   any
	dirty   bool
	errMsg  string
	visible bool

	// blank remembers that the raw input was empty before type coercion.
	// Number fields coerce empty input to 0 for formulas and Values; the
	// validator must still see the emptiness or required can never fail.
	blank bool

	// required is the live flag; wasRequired preserves it while the field
	// is hidden so a later reveal restores the original obligation.
	required    bool
	wasRequired bool

	options []metadata.Option
	widget  widgets.Widget
}

// Session drives a single form instance built from a metadata document and
// an optional initial record.
type Session struct {
	mu sync.Mutex

	doc    metadata.Document
	graph  *depgraph.Graph
	states map[string]*fieldState
	order  []string

	visibility *visibility.Evaluator
	validator  *validation.Engine
	cascader   *cascade.Loader
	fetcher    cascade.Fetcher
	formula    *formula.Evaluator
	registry   *widgets.Registry
	sequencer  *cascade.Sequencer
	logger     *slog.Logger

	container widgets.Container
	inflight  sync.WaitGroup
	destroyed bool
}

// New validates the document, builds the dependency graph, and seeds field
// state from record values (falling back to each field's default). A
// document with a calculated-formula cycle is rejected here rather than
// allowed to loop at runtime.
func New(doc metadata.Document, record map[string]any, options ...Option) (*Session, error) {
	if err := metadata.Validate(doc); err != nil {
		return nil, err
	}

	graph := depgraph.Build(doc)
	if cycle := graph.CalculatedCycle(); cycle != nil {
		return nil, fmt.Errorf("session: calculated field cycle: %s", strings.Join(cycle, " -> "))
	}

	s := &Session{
		doc:       doc,
		graph:     graph,
		states:    make(map[string]*fieldState, len(doc.Form.Fields)),
		formula:   formula.New(),
		sequencer: cascade.NewSequencer(),
		logger:    slog.Default(),
	}
	for _, opt := range options {
		if opt != nil {
			opt(s)
		}
	}
	s.applyDefaults()

	for _, cfg := range doc.Form.Fields {
		initial := cfg.DefaultValue
		if record != nil {
			if v, ok := record[cfg.Name]; ok {
				initial = v
			}
		}
		s.states[cfg.Name] = &fieldState{
			cfg:      cfg,
			value:    typedValue(cfg, initial),
			blank:    blankRaw(cfg, initial),
			visible:  true,
			required: cfg.Required,
			options:  append([]metadata.Option(nil), cfg.AllowedValues...),
		}
		s.order = append(s.order, cfg.Name)
	}

	return s, nil
}

func (s *Session) applyDefaults() {
	if s.visibility == nil {
		s.visibility = visibility.New(visibility.WithLogger(s.logger))
	}
	if s.validator == nil {
		s.validator = validation.New(validation.WithLogger(s.logger))
	}
	if s.cascader == nil {
		s.cascader = cascade.New(cascade.WithFetcher(s.fetcher), cascade.WithLogger(s.logger))
	}
	if s.registry == nil {
		s.registry = widgets.NewRegistry()
	}
}

// Registry exposes the widget registry so hosts can register custom
// factories before rendering.
func (s *Session) Registry() *widgets.Registry { return s.registry }

// Render mounts the form into container: one widget per field in document
// order, followed by an initial calculated pass, a visibility pass, and
// proactive cascade resolution for dependents whose parent already has a
// value.
func (s *Session) Render(ctx context.Context, container widgets.Container) error {
	if container == nil {
		return errors.New("session: container is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.destroyed {
		return errors.New("session: destroyed")
	}

	s.container = container
	for _, name := range s.order {
		st := s.states[name]
		widget, err := container.CreateWidget(st.cfg)
		if err != nil {
			return fmt.Errorf("session: create widget for %q: %w", name, err)
		}
		st.widget = widget
		widget.SetValue(st.value)
		if len(st.options) > 0 {
			widget.SetOptions(st.options)
		}
		if st.cfg.ReadOnly {
			widget.Disable()
		}
	}

	for _, name := range s.order {
		st := s.states[name]
		if st.cfg.IsCalculated && st.cfg.CalculationFormula != "" {
			s.recalculateLocked(st)
		}
	}
	for _, name := range s.order {
		s.applyVisibilityLocked(s.states[name])
	}
	for _, name := range s.order {
		st := s.states[name]
		if st.cfg.DependsOnField == "" {
			continue
		}
		if parent, ok := s.states[st.cfg.DependsOnField]; ok && !isEmptyValue(parent.value) {
			s.startCascadeLocked(ctx, st, parent.value)
		}
	}

	return nil
}

// SetValue records a user edit and propagates it: calculated dependents
// first, then visibility, then cascades, then validation of the edited
// field. Errors inside propagation never surface; they are logged and the
// affected field keeps its previous derived state.
func (s *Session) SetValue(ctx context.Context, name string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.states[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownField, name)
	}

	st.value = typedValue(st.cfg, value)
	st.blank = blankRaw(st.cfg, value)
	st.dirty = true
	if st.widget != nil {
		st.widget.SetValue(st.value)
	}

	visited := map[string]struct{}{}
	s.propagateLocked(ctx, name, visited)
	s.validateFieldLocked(st)
	return nil
}

// propagateLocked walks the dependency edges of trigger in deterministic
// order. visited guards against reprocessing a field twice within one
// synchronous trigger event.
func (s *Session) propagateLocked(ctx context.Context, trigger string, visited map[string]struct{}) {
	for _, edge := range s.graph.AffectedBy(trigger) {
		st, ok := s.states[edge.Field]
		if !ok {
			continue
		}
		key := edge.Kind.String() + ":" + edge.Field
		if _, seen := visited[key]; seen {
			continue
		}
		visited[key] = struct{}{}

		switch edge.Kind {
		case depgraph.KindCalculated:
			if s.recalculateLocked(st) {
				s.propagateLocked(ctx, edge.Field, visited)
			}
		case depgraph.KindVisibility:
			s.applyVisibilityLocked(st)
		case depgraph.KindCascade:
			parent := s.states[trigger]
			if parent != nil {
				s.startCascadeLocked(ctx, st, parent.value)
				s.propagateLocked(ctx, edge.Field, visited)
			}
		}
	}
}

// propagateDerivedLocked refreshes only the calculated and visibility
// dependents of trigger. Used after an asynchronous cascade restores a value,
// where restarting child cascades is not safe.
func (s *Session) propagateDerivedLocked(trigger string, visited map[string]struct{}) {
	for _, edge := range s.graph.AffectedBy(trigger) {
		st, ok := s.states[edge.Field]
		if !ok || edge.Kind == depgraph.KindCascade {
			continue
		}
		key := edge.Kind.String() + ":" + edge.Field
		if _, seen := visited[key]; seen {
			continue
		}
		visited[key] = struct{}{}

		switch edge.Kind {
		case depgraph.KindCalculated:
			if s.recalculateLocked(st) {
				s.propagateDerivedLocked(edge.Field, visited)
			}
		case depgraph.KindVisibility:
			s.applyVisibilityLocked(st)
		}
	}
}

// recalculateLocked re-evaluates a calculated field's formula. On error the
// previous value is retained and the failure logged. Returns whether the
// value changed.
func (s *Session) recalculateLocked(st *fieldState) bool {
	result, err := s.formula.Evaluate(st.cfg.CalculationFormula, s.valuesLocked())
	if err != nil {
		s.logger.Warn("session: formula evaluation failed, keeping previous value",
			slog.String("field", st.cfg.Name),
			slog.Any("error", err))
		return false
	}

	next := typedValue(st.cfg, result)
	st.blank = blankRaw(st.cfg, result)
	if scalarEqual(next, st.value) {
		return false
	}
	st.value = next
	if st.widget != nil {
		st.widget.SetValue(next)
	}
	return true
}

// applyVisibilityLocked evaluates the field's visibility rule and applies
// the required-suspension contract: hiding saves and clears the required
// flag, revealing restores it. Hidden fields drop any pending error.
func (s *Session) applyVisibilityLocked(st *fieldState) {
	next := s.visibility.IsVisible(st.cfg.VisibilityRules, s.valuesLocked())
	if next == st.visible {
		return
	}
	st.visible = next

	if next {
		st.required = st.wasRequired
		if st.widget != nil {
			st.widget.Show()
		}
		return
	}

	st.wasRequired = st.required
	st.required = false
	st.errMsg = ""
	if st.widget != nil {
		st.widget.ClearError()
		st.widget.Hide()
	}
}

// startCascadeLocked clears and disables the dependent, then resolves its
// new option list asynchronously. Only the latest resolution per field may
// apply; stale completions are discarded. The previous value is restored
// only when it survives into the new option set, in which case the field's
// calculated and visibility dependents are refreshed as well.
func (s *Session) startCascadeLocked(ctx context.Context, st *fieldState, parentValue any) {
	if ctx == nil {
		ctx = context.Background()
	}

	previous := st.value
	previousBlank := st.blank
	st.value = nil
	st.blank = true
	st.errMsg = ""
	if st.widget != nil {
		st.widget.SetValue(nil)
		st.widget.ClearError()
		st.widget.Disable()
	}

	name := st.cfg.Name
	cfg := st.cfg
	fetchCtx, seq := s.sequencer.Begin(ctx, name)

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()

		options, err := s.cascader.Resolve(fetchCtx, cfg, parentValue)
		s.sequencer.Finish(name, seq)

		s.mu.Lock()
		defer s.mu.Unlock()

		if s.destroyed || !s.sequencer.Latest(name, seq) {
			return
		}

		current, ok := s.states[name]
		if !ok {
			return
		}

		if err != nil {
			s.logger.Warn("session: cascade resolution failed",
				slog.String("field", name),
				slog.Any("error", err))
			current.options = nil
			current.errMsg = FailedOptionsMessage
			if current.widget != nil {
				current.widget.SetOptions(nil)
				current.widget.SetError(FailedOptionsMessage)
				current.widget.Enable()
			}
			return
		}

		current.options = options
		if current.widget != nil {
			current.widget.SetOptions(options)
		}
		restored := false
		if cascade.Contains(options, previous) {
			current.value = previous
			current.blank = previousBlank
			restored = true
			if current.widget != nil {
				current.widget.SetValue(previous)
			}
		}
		if current.widget != nil {
			current.widget.Enable()
		}
		if restored {
			// Dependents recomputed against nil when the field was cleared;
			// the restored value has to flow through them again. Cascade
			// edges are skipped so mutually dependent fields cannot
			// clear/restore each other forever.
			s.propagateDerivedLocked(name, map[string]struct{}{})
		}
	}()
}

// Wait blocks until every in-flight cascade resolution has completed.
func (s *Session) Wait() { s.inflight.Wait() }

// Values returns the typed current value of every field: checkbox fields as
// bool, number fields as float64 (0 when empty), everything else as its
// raw or string form.
func (s *Session) Values() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.valuesLocked()
}

func (s *Session) valuesLocked() map[string]any {
	out := make(map[string]any, len(s.states))
	for name, st := range s.states {
		out[name] = st.value
	}
	return out
}

// Field reports a field's runtime state for hosts and tests.
func (s *Session) Field(name string) (FieldSnapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.states[name]
	if !ok {
		return FieldSnapshot{}, false
	}
	return FieldSnapshot{
		Name:     name,
		Value:    st.value,
		Dirty:    st.dirty,
		Error:    st.errMsg,
		Visible:  st.visible,
		Required: st.required,
		Options:  append([]metadata.Option(nil), st.options...),
	}, true
}

// FieldSnapshot is a read-only copy of one field's runtime state.
type FieldSnapshot struct {
	Name     string
	Value    any
	Dirty    bool
	Error    string
	Visible  bool
	Required bool
	Options  []metadata.Option
}

// Validate runs every visible field through the validation engine and
// reports overall validity. Hidden fields never block submission. Errors
// are surfaced on widgets through SetError/ClearError.
func (s *Session) Validate() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	ok := true
	values := s.valuesLocked()
	for _, name := range s.order {
		st := s.states[name]
		if !st.visible {
			continue
		}
		if !s.validateWithValuesLocked(st, values) {
			ok = false
		}
	}
	return ok
}

func (s *Session) validateFieldLocked(st *fieldState) bool {
	if !st.visible {
		return true
	}
	return s.validateWithValuesLocked(st, s.valuesLocked())
}

func (s *Session) validateWithValuesLocked(st *fieldState, values map[string]any) bool {
	cfg := st.cfg
	cfg.Required = st.required
	value := st.value
	if st.blank {
		value = nil
	}
	result := s.validator.ValidateField(cfg, value, values)

	if result.Valid {
		st.errMsg = ""
		if st.widget != nil {
			st.widget.ClearError()
		}
		return true
	}

	st.errMsg = result.Message
	if st.widget != nil {
		st.widget.SetError(result.Message)
	}
	return false
}

// Destroy cancels in-flight cascade work and releases widgets. Safe to call
// more than once.
func (s *Session) Destroy() {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return
	}
	s.destroyed = true
	container := s.container
	s.container = nil
	for _, st := range s.states {
		st.widget = nil
	}
	s.mu.Unlock()

	s.sequencer.CancelAll()
	s.inflight.Wait()
	if container != nil {
		container.Destroy()
	}
}

// typedValue normalises a raw value to the field's wire type: checkbox to
// bool, number to float64 (empty becomes 0), select/reference/text to
// string. Calculated non-string results pass through for number fields.
func typedValue(cfg metadata.FieldConfig, raw any) any {
	switch cfg.Type {
	case metadata.FieldTypeCheckbox:
		return toBool(raw)
	case metadata.FieldTypeNumber:
		if raw == nil {
			return float64(0)
		}
		if s, ok := raw.(string); ok && strings.TrimSpace(s) == "" {
			return float64(0)
		}
		if num, ok := toFloat(raw); ok {
			return num
		}
		return raw
	default:
		if raw == nil {
			return nil
		}
		if s, ok := raw.(string); ok {
			return s
		}
		return raw
	}
}

func toBool(raw any) bool {
	switch v := raw.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return strings.TrimSpace(v) != ""
		}
		return parsed
	case float64:
		return v != 0
	case int:
		return v != 0
	default:
		return false
	}
}

func toFloat(raw any) (float64, bool) {
	switch v := raw.(type) {
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

// scalarEqual compares values without panicking on non-comparable kinds.
func scalarEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if !reflect.TypeOf(a).Comparable() || !reflect.TypeOf(b).Comparable() {
		return false
	}
	return a == b
}

// blankRaw reports whether the raw, pre-coercion input counts as empty for
// validation. Checkbox fields always have a defined bool state and are never
// blank.
func blankRaw(cfg metadata.FieldConfig, raw any) bool {
	if cfg.Type == metadata.FieldTypeCheckbox {
		return false
	}
	return isEmptyValue(raw)
}

func isEmptyValue(value any) bool {
	if value == nil {
		return true
	}
	if s, ok := value.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return false
}
