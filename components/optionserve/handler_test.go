package optionserve

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formflow/pkg/cascade"
	"github.com/goliatone/go-formflow/pkg/metadata"
)

func statesCatalog() Catalog {
	return Catalog{
		ByFilter: map[string][]metadata.Option{
			"US": {
				{Value: "CA", Label: "California"},
				{Value: "NY", Label: "New York"},
				{Value: "WA", Label: "Washington"},
			},
			"CA": {
				{Value: "BC", Label: "British Columbia"},
				{Value: "ON", Label: "Ontario"},
			},
		},
	}
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) []metadata.Option {
	t.Helper()
	var body struct {
		Data []metadata.Option `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return body.Data
}

func TestHandlerFiltersByParent(t *testing.T) {
	t.Parallel()

	handler := Handler(WithCatalog(statesCatalog()), WithFilterParam("country"))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/options?country=CA", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	want := []metadata.Option{
		{Value: "BC", Label: "British Columbia"},
		{Value: "ON", Label: "Ontario"},
	}
	if diff := cmp.Diff(want, decode(t, rec)); diff != "" {
		t.Fatalf("options mismatch (-want +got):\n%s", diff)
	}
}

func TestHandlerUnknownFilterServesDefault(t *testing.T) {
	t.Parallel()

	catalog := statesCatalog()
	catalog.Default = []metadata.Option{{Value: "other", Label: "Other"}}
	handler := Handler(WithCatalog(catalog), WithFilterParam("country"))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/options?country=ZZ", nil))

	got := decode(t, rec)
	if len(got) != 1 || got[0].Value != "other" {
		t.Fatalf("expected fallback list, got %v", got)
	}
}

func TestHandlerSearchPrefersPrefix(t *testing.T) {
	t.Parallel()

	handler := Handler(WithOptions([]metadata.Option{
		{Value: "WA", Label: "Washington"},
		{Value: "NY", Label: "New York"},
		{Value: "NC", Label: "North Carolina"},
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/options?q=n", nil))

	got := decode(t, rec)
	if len(got) != 3 {
		t.Fatalf("expected all matches for 'n', got %v", got)
	}
	// Prefix matches first, alphabetical within the tier.
	if got[0].Label != "New York" || got[1].Label != "North Carolina" {
		t.Fatalf("prefix matches must rank first: %v", got)
	}
}

func TestHandlerLimitClamped(t *testing.T) {
	t.Parallel()

	var many []metadata.Option
	for i := 0; i < 10; i++ {
		many = append(many, metadata.Option{Value: string(rune('a' + i)), Label: string(rune('a' + i))})
	}
	handler := Handler(WithOptions(many), WithMaxLimit(3))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/options?limit=100", nil))

	if got := decode(t, rec); len(got) != 3 {
		t.Fatalf("limit must clamp to max, got %d results", len(got))
	}
}

func TestHandlerMethodNotAllowed(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/options", nil))

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("unexpected status %d", rec.Code)
	}
}

func TestHandlerGuard(t *testing.T) {
	t.Parallel()

	handler := Handler(WithGuard(func(*http.Request) error {
		return StatusError{Code: http.StatusUnauthorized}
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/options", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("guard status must pass through, got %d", rec.Code)
	}
}

func TestRegisterRoutes(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	pattern, err := RegisterRoutes(mux, "/forms", WithRoutePath("/states"))
	if err != nil {
		t.Fatalf("RegisterRoutes returned error: %v", err)
	}
	if pattern != "/forms/states" {
		t.Fatalf("unexpected mount path %q", pattern)
	}

	pattern, err = RegisterRoutes(http.NewServeMux(), "")
	if err != nil {
		t.Fatalf("RegisterRoutes returned error: %v", err)
	}
	if pattern != "/api/options" {
		t.Fatalf("root mount must use the default route path, got %q", pattern)
	}

	if _, err := RegisterRoutes(nil, "/forms"); err == nil {
		t.Fatalf("nil mux must be rejected")
	}
}

// The handler's envelope must round-trip through the cascade fetcher that
// dependent fields use at runtime.
func TestHandlerServesCascadeFetcher(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(Handler(WithCatalog(statesCatalog()), WithFilterParam("country")))
	defer server.Close()

	loader := cascade.New(cascade.WithFetcher(cascade.NewHTTPFetcher()))
	cfg := metadata.FieldConfig{
		Name:            "state",
		DependsOnField:  "country",
		OptionsEndpoint: server.URL,
	}

	got, err := loader.Resolve(context.Background(), cfg, "US")
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if len(got) != 3 || got[0].Value != "CA" {
		t.Fatalf("unexpected options %v", got)
	}
}
