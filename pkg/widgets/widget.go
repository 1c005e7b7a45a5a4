// Package widgets defines the contract between a form session and the host's
// visual toolkit, plus a factory registry keyed by field type and input_type
// so new field kinds are additive registrations rather than edits to a
// central dispatcher.
package widgets

import "github.com/goliatone/go-formflow/pkg/metadata"

// Widget is the session-facing handle for a rendered control. The concrete
// rendering (DOM, TUI, test double) is the host's concern; the session only
// drives state through this interface.
type Widget interface {
	SetValue(value any)
	Value() any

	SetOptions(options []metadata.Option)
	Options() []metadata.Option

	SetError(message string)
	ClearError()
	Error() string

	Enable()
	Disable()
	Enabled() bool

	Show()
	Hide()
	Visible() bool
}

// Container creates widgets for a form session and releases them when the
// session is destroyed.
type Container interface {
	CreateWidget(cfg metadata.FieldConfig) (Widget, error)
	Destroy()
}

// Factory builds a widget for a field configuration.
type Factory func(cfg metadata.FieldConfig) Widget
