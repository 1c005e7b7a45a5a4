package cascade

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formflow/pkg/metadata"
)

func quietLoader(options ...Option) *Loader {
	options = append(options, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	return New(options...)
}

func TestResolveStaticFilter(t *testing.T) {
	t.Parallel()

	cfg := metadata.FieldConfig{
		Name:             "state",
		DependsOnField:   "country",
		FilterExpression: `label != "" && parent == "US"`,
		AllowedValues: []metadata.Option{
			{Value: "CA", Label: "California"},
			{Value: "NY", Label: "New York"},
		},
	}

	got, err := quietLoader().Resolve(context.Background(), cfg, "US")
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected both options for US, got %v", got)
	}

	got, err = quietLoader().Resolve(context.Background(), cfg, "CA")
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no options for CA, got %v", got)
	}
}

func TestResolveStaticWithoutExpression(t *testing.T) {
	t.Parallel()

	cfg := metadata.FieldConfig{
		Name:          "state",
		AllowedValues: []metadata.Option{{Value: "CA", Label: "California"}},
	}

	got, err := quietLoader().Resolve(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if diff := cmp.Diff(cfg.AllowedValues, got); diff != "" {
		t.Fatalf("options mismatch (-want +got):\n%s", diff)
	}
}

func TestResolveEndpointEnvelopes(t *testing.T) {
	t.Parallel()

	for _, payload := range []string{
		`{"items": [{"value": "CA", "label": "California"}]}`,
		`{"data": [{"value": "CA", "label": "California"}]}`,
		`{"records": [{"value": "CA", "label": "California"}]}`,
		`[{"value": "CA", "label": "California"}]`,
	} {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if got := r.URL.Query().Get("country"); got != "US" {
				t.Errorf("expected country=US param, got %q", got)
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(payload))
		}))

		loader := quietLoader(WithFetcher(NewHTTPFetcher()))
		cfg := metadata.FieldConfig{
			Name:            "state",
			DependsOnField:  "country",
			OptionsEndpoint: server.URL,
		}

		got, err := loader.Resolve(context.Background(), cfg, "US")
		server.Close()
		if err != nil {
			t.Fatalf("Resolve returned error for %s: %v", payload, err)
		}
		want := []metadata.Option{{Value: "CA", Label: "California"}}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("options mismatch (-want +got):\n%s", diff)
		}
	}
}

func TestResolveReferenceMapsRecords(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/states/records" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("country_code"); got != "US" {
			t.Errorf("expected country_code=US filter, got %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"records": [
			{"id": "CA", "name": "California", "country_code": "US"},
			{"id": "NY", "name": "<b>New York</b>", "country_code": "US"}
		]}`))
	}))
	defer server.Close()

	loader := quietLoader(WithFetcher(NewHTTPFetcher(WithBaseURL(server.URL))))
	cfg := metadata.FieldConfig{
		Name:              "state",
		DependsOnField:    "country",
		ReferenceEntityID: "states",
		ReferenceField:    "country_code",
		DisplayField:      "name",
	}

	got, err := loader.Resolve(context.Background(), cfg, "US")
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	want := []metadata.Option{
		{Value: "CA", Label: "California"},
		{Value: "NY", Label: "New York"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("options mismatch (-want +got):\n%s", diff)
	}
}

func TestResolveReferenceDisplayTemplate(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id": "1", "first": "Ada", "last": "Lovelace"}]`))
	}))
	defer server.Close()

	loader := quietLoader(WithFetcher(NewHTTPFetcher(WithBaseURL(server.URL))))
	cfg := metadata.FieldConfig{
		Name:              "owner",
		ReferenceEntityID: "users",
		DisplayTemplate:   "{first} {last}",
	}

	got, err := loader.Resolve(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if len(got) != 1 || got[0].Label != "Ada Lovelace" {
		t.Fatalf("expected templated label, got %v", got)
	}
}

func TestResolveFetchFailure(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	loader := quietLoader(WithFetcher(NewHTTPFetcher()))
	cfg := metadata.FieldConfig{Name: "state", OptionsEndpoint: server.URL}

	if _, err := loader.Resolve(context.Background(), cfg, "US"); err == nil {
		t.Fatalf("expected error for 500 response")
	}
}

func TestResolveNoStrategy(t *testing.T) {
	t.Parallel()

	_, err := quietLoader().Resolve(context.Background(), metadata.FieldConfig{Name: "bare"}, nil)
	if err == nil {
		t.Fatalf("expected ErrNoStrategy")
	}
}

func TestContains(t *testing.T) {
	t.Parallel()

	options := []metadata.Option{{Value: "CA"}, {Value: "NY"}}
	if !Contains(options, "CA") {
		t.Fatalf("expected CA to be retained")
	}
	if Contains(options, "TX") {
		t.Fatalf("TX is not in the list")
	}
	if Contains(options, nil) {
		t.Fatalf("nil value never matches")
	}
}

func TestSequencerDiscardsStale(t *testing.T) {
	t.Parallel()

	seq := NewSequencer()

	ctx1, first := seq.Begin(context.Background(), "state")
	ctx2, second := seq.Begin(context.Background(), "state")

	if first == second {
		t.Fatalf("sequence numbers must increase")
	}
	if ctx1.Err() == nil {
		t.Fatalf("starting a new resolution must cancel the prior context")
	}
	if ctx2.Err() != nil {
		t.Fatalf("latest context must stay live")
	}
	if seq.Latest("state", first) {
		t.Fatalf("first resolution is stale")
	}
	if !seq.Latest("state", second) {
		t.Fatalf("second resolution is the latest")
	}

	// Independent fields do not interfere.
	_, other := seq.Begin(context.Background(), "city")
	if !seq.Latest("city", other) || !seq.Latest("state", second) {
		t.Fatalf("fields must sequence independently")
	}
}
