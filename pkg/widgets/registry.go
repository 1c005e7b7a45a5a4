package widgets

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-formflow/pkg/metadata"
)

// Built-in factory names registered by NewRegistry.
const (
	WidgetText     = "text"
	WidgetNumber   = "number"
	WidgetToggle   = "toggle"
	WidgetSelect   = "select"
	WidgetTextarea = "textarea"
)

// Registry resolves (type, input_type) pairs to widget factories. An exact
// (type, input_type) registration wins over a type-only registration, which
// wins over the fallback. Registration replaces any previous factory for the
// same key.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]entry
	fallback  string
}

type entry struct {
	name    string
	factory Factory
}

// NewRegistry constructs a registry with the built-in memory-backed
// factories registered and text as the fallback.
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]entry), fallback: WidgetText}
	r.registerBuiltins()
	return r
}

// Register binds a factory to a field type, optionally narrowed by
// input_type. Pass an empty inputType to cover every input_type of the field
// type that lacks a narrower registration.
func (r *Registry) Register(fieldType metadata.FieldType, inputType, name string, factory Factory) {
	if r == nil || factory == nil {
		return
	}
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[key(fieldType, inputType)] = entry{name: trimmed, factory: factory}
}

// Resolve picks the factory for a field configuration, returning its name
// and the factory. Resolution order: (type, input_type), (type, ""), then
// the fallback registration.
func (r *Registry) Resolve(cfg metadata.FieldConfig) (string, Factory, error) {
	if r == nil {
		return "", nil, fmt.Errorf("widgets: registry is nil")
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	if cfg.InputType != "" {
		if found, ok := r.factories[key(cfg.Type, cfg.InputType)]; ok {
			return found.name, found.factory, nil
		}
	}
	if found, ok := r.factories[key(cfg.Type, "")]; ok {
		return found.name, found.factory, nil
	}
	if found, ok := r.factories[key(metadata.FieldType(r.fallback), "")]; ok {
		return found.name, found.factory, nil
	}
	return "", nil, fmt.Errorf("widgets: no factory for field %q (type %q)", cfg.Name, cfg.Type)
}

// Create resolves and invokes the factory for cfg.
func (r *Registry) Create(cfg metadata.FieldConfig) (Widget, error) {
	_, factory, err := r.Resolve(cfg)
	if err != nil {
		return nil, err
	}
	return factory(cfg), nil
}

// List returns the sorted registration keys, mostly for diagnostics.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.factories))
	for k := range r.factories {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func key(fieldType metadata.FieldType, inputType string) string {
	t := strings.ToLower(strings.TrimSpace(string(fieldType)))
	in := strings.ToLower(strings.TrimSpace(inputType))
	if in == "" {
		return t
	}
	return t + ":" + in
}

func (r *Registry) registerBuiltins() {
	memory := func(cfg metadata.FieldConfig) Widget { return NewMemoryWidget(cfg) }

	r.Register(metadata.FieldTypeText, "", WidgetText, memory)
	r.Register(metadata.FieldTypeNumber, "", WidgetNumber, memory)
	r.Register(metadata.FieldTypeCheckbox, "", WidgetToggle, memory)
	r.Register(metadata.FieldTypeSelect, "", WidgetSelect, memory)
	r.Register(metadata.FieldTypeTextarea, "", WidgetTextarea, memory)
	r.Register(metadata.FieldTypeDate, "", WidgetText, memory)
	r.Register(metadata.FieldTypeReference, "", WidgetSelect, memory)
}
