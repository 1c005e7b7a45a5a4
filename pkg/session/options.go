package session

import (
	"log/slog"

	"github.com/goliatone/go-formflow/pkg/cascade"
	"github.com/goliatone/go-formflow/pkg/validation"
	"github.com/goliatone/go-formflow/pkg/visibility"
	"github.com/goliatone/go-formflow/pkg/widgets"
)

// Option customises a form session.
type Option func(*Session)

// WithLogger injects the logger shared by the session and the engines it
// constructs by default.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithFetcher injects the remote fetcher used for cascade resolution.
func WithFetcher(fetcher cascade.Fetcher) Option {
	return func(s *Session) { s.fetcher = fetcher }
}

// WithCascadeLoader replaces the default cascade loader entirely.
func WithCascadeLoader(loader *cascade.Loader) Option {
	return func(s *Session) {
		if loader != nil {
			s.cascader = loader
		}
	}
}

// WithVisibilityEvaluator replaces the default visibility evaluator.
func WithVisibilityEvaluator(eval *visibility.Evaluator) Option {
	return func(s *Session) {
		if eval != nil {
			s.visibility = eval
		}
	}
}

// WithValidationEngine replaces the default validation engine.
func WithValidationEngine(engine *validation.Engine) Option {
	return func(s *Session) {
		if engine != nil {
			s.validator = engine
		}
	}
}

// WithWidgetRegistry sets the registry used when the host renders through a
// registry-backed container.
func WithWidgetRegistry(registry *widgets.Registry) Option {
	return func(s *Session) {
		if registry != nil {
			s.registry = registry
		}
	}
}
