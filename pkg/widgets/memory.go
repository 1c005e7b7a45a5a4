package widgets

import (
	"sync"

	"github.com/goliatone/go-formflow/pkg/metadata"
)

// MemoryWidget is a state-only Widget used by tests and headless drivers
// such as the CLI. It records exactly what a visual widget would display.
type MemoryWidget struct {
	mu       sync.Mutex
	cfg      metadata.FieldConfig
	value    any
	options  []metadata.Option
	errMsg   string
	disabled bool
	hidden   bool
}

// NewMemoryWidget creates a widget seeded with the field's static options.
func NewMemoryWidget(cfg metadata.FieldConfig) *MemoryWidget {
	return &MemoryWidget{
		cfg:     cfg,
		options: append([]metadata.Option(nil), cfg.AllowedValues...),
	}
}

// Config returns the field configuration the widget was created from.
func (w *MemoryWidget) Config() metadata.FieldConfig {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cfg
}

func (w *MemoryWidget) SetValue(value any) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.value = value
}

func (w *MemoryWidget) Value() any {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.value
}

func (w *MemoryWidget) SetOptions(options []metadata.Option) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.options = append([]metadata.Option(nil), options...)
}

func (w *MemoryWidget) Options() []metadata.Option {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]metadata.Option(nil), w.options...)
}

func (w *MemoryWidget) SetError(message string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.errMsg = message
}

func (w *MemoryWidget) ClearError() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.errMsg = ""
}

func (w *MemoryWidget) Error() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.errMsg
}

func (w *MemoryWidget) Enable() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.disabled = false
}

func (w *MemoryWidget) Disable() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.disabled = true
}

func (w *MemoryWidget) Enabled() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return !w.disabled
}

func (w *MemoryWidget) Show() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.hidden = false
}

func (w *MemoryWidget) Hide() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.hidden = true
}

func (w *MemoryWidget) Visible() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return !w.hidden
}

// MemoryContainer creates MemoryWidgets through a registry. The zero value
// is not usable; construct with NewMemoryContainer.
type MemoryContainer struct {
	registry *Registry

	mu      sync.Mutex
	created map[string]Widget
}

// NewMemoryContainer builds a container over registry, defaulting to the
// built-in registry when nil.
func NewMemoryContainer(registry *Registry) *MemoryContainer {
	if registry == nil {
		registry = NewRegistry()
	}
	return &MemoryContainer{registry: registry, created: make(map[string]Widget)}
}

// CreateWidget implements Container.
func (c *MemoryContainer) CreateWidget(cfg metadata.FieldConfig) (Widget, error) {
	widget, err := c.registry.Create(cfg)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.created[cfg.Name] = widget
	c.mu.Unlock()
	return widget, nil
}

// Widget returns a previously created widget by field name.
func (c *MemoryContainer) Widget(name string) (Widget, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	w, ok := c.created[name]
	return w, ok
}

// Destroy implements Container.
func (c *MemoryContainer) Destroy() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.created = make(map[string]Widget)
}
