package optionserve

import (
	"net/http"

	"github.com/goliatone/go-formflow/pkg/metadata"
)

type EmptySearchMode string

const (
	EmptySearchNone EmptySearchMode = "none"
	EmptySearchTop  EmptySearchMode = "top"
)

type GuardFunc func(r *http.Request) error

// Catalog holds the option lists the handler can serve. ByFilter keys are
// parent values; Default is served when the request carries no filter or the
// filter has no dedicated list.
type Catalog struct {
	Default  []metadata.Option
	ByFilter map[string][]metadata.Option
}

// Select returns the list matching filter, falling back to Default.
func (c Catalog) Select(filter string) []metadata.Option {
	if filter != "" {
		if list, ok := c.ByFilter[filter]; ok {
			return list
		}
	}
	return c.Default
}

type Options struct {
	RoutePath   string
	SearchParam string
	LimitParam  string

	// FilterParam is the query parameter carrying the parent value. Sessions
	// send it under the parent field's name, so set this to match the
	// depends_on_field of the consuming field.
	FilterParam string

	DefaultLimit    int
	MaxLimit        int
	EmptySearchMode EmptySearchMode
	Guard           GuardFunc

	Catalog Catalog
}

type OptionFn func(*Options)

func DefaultOptions() Options {
	return Options{
		RoutePath:       "/api/options",
		SearchParam:     "q",
		LimitParam:      "limit",
		FilterParam:     "parent",
		DefaultLimit:    50,
		MaxLimit:        200,
		EmptySearchMode: EmptySearchTop,
	}
}

func NewOptions(fns ...OptionFn) Options {
	opts := DefaultOptions()
	for _, fn := range fns {
		if fn == nil {
			continue
		}
		fn(&opts)
	}
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = 50
	}
	if opts.MaxLimit <= 0 {
		opts.MaxLimit = 200
	}
	if opts.EmptySearchMode == "" {
		opts.EmptySearchMode = EmptySearchTop
	}
	if opts.RoutePath == "" {
		opts.RoutePath = "/api/options"
	}
	if opts.SearchParam == "" {
		opts.SearchParam = "q"
	}
	if opts.LimitParam == "" {
		opts.LimitParam = "limit"
	}
	if opts.FilterParam == "" {
		opts.FilterParam = "parent"
	}
	return opts
}

func WithRoutePath(path string) OptionFn {
	return func(o *Options) {
		if o == nil {
			return
		}
		o.RoutePath = path
	}
}

func WithSearchParam(name string) OptionFn {
	return func(o *Options) {
		if o == nil {
			return
		}
		o.SearchParam = name
	}
}

func WithLimitParam(name string) OptionFn {
	return func(o *Options) {
		if o == nil {
			return
		}
		o.LimitParam = name
	}
}

func WithFilterParam(name string) OptionFn {
	return func(o *Options) {
		if o == nil {
			return
		}
		o.FilterParam = name
	}
}

func WithDefaultLimit(limit int) OptionFn {
	return func(o *Options) {
		if o == nil {
			return
		}
		o.DefaultLimit = limit
	}
}

func WithMaxLimit(limit int) OptionFn {
	return func(o *Options) {
		if o == nil {
			return
		}
		o.MaxLimit = limit
	}
}

func WithEmptySearchMode(mode EmptySearchMode) OptionFn {
	return func(o *Options) {
		if o == nil {
			return
		}
		o.EmptySearchMode = mode
	}
}

func WithGuard(guard GuardFunc) OptionFn {
	return func(o *Options) {
		if o == nil {
			return
		}
		o.Guard = guard
	}
}

// WithOptions serves one flat list regardless of filter value.
func WithOptions(options []metadata.Option) OptionFn {
	return func(o *Options) {
		if o == nil {
			return
		}
		o.Catalog.Default = append([]metadata.Option(nil), options...)
	}
}

// WithCatalog serves per-filter lists keyed by parent value.
func WithCatalog(catalog Catalog) OptionFn {
	return func(o *Options) {
		if o == nil {
			return
		}
		o.Catalog = catalog
	}
}

func clampLimit(limit int, opts Options) int {
	if limit < 0 {
		return 0
	}
	if limit == 0 {
		limit = opts.DefaultLimit
	}
	if opts.MaxLimit > 0 && limit > opts.MaxLimit {
		return opts.MaxLimit
	}
	return limit
}
