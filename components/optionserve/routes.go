package optionserve

import (
	"errors"
	"net/http"
	"path"
	"strings"
)

// RegisterRoutes mounts the option handler on mux under basePath and returns
// the registered pattern. The route path comes from the options (default
// "/api/options"); basePath may be empty to mount at the root.
func RegisterRoutes(mux *http.ServeMux, basePath string, fns ...OptionFn) (string, error) {
	if mux == nil {
		return "", errors.New("optionserve: mux is required")
	}
	opts := NewOptions(fns...)
	pattern := routePattern(basePath, opts.RoutePath)
	mux.Handle(pattern, HandlerWithOptions(opts))
	return pattern, nil
}

// routePattern joins basePath and routePath into a clean absolute pattern.
func routePattern(basePath, routePath string) string {
	return path.Join("/", strings.TrimSpace(basePath), strings.TrimSpace(routePath))
}
