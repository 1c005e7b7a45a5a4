package loader

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
)

const jsonDoc = `{"form": {"fields": [{"name": "title", "type": "text"}]}}`

const yamlDoc = `form:
  fields:
    - name: title
      type: text
`

func TestLoadFromFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "form.json")
	if err := os.WriteFile(path, []byte(jsonDoc), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	doc, err := New().Load(context.Background(), SourceFromFile(path))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if len(doc.Form.Fields) != 1 || doc.Form.Fields[0].Name != "title" {
		t.Fatalf("unexpected document: %+v", doc)
	}
}

func TestLoadFromFS(t *testing.T) {
	t.Parallel()

	files := fstest.MapFS{"forms/article.yaml": &fstest.MapFile{Data: []byte(yamlDoc)}}

	doc, err := New(WithFileSystem(files)).Load(context.Background(), SourceFromFS("forms/article.yaml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if len(doc.Form.Fields) != 1 {
		t.Fatalf("unexpected document: %+v", doc)
	}
}

func TestLoadFromBytes(t *testing.T) {
	t.Parallel()

	doc, err := New().Load(context.Background(), SourceFromBytes("inline", []byte(yamlDoc)))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if doc.Form.Fields[0].Type != "text" {
		t.Fatalf("unexpected document: %+v", doc)
	}
}

func TestLoadFromURL(t *testing.T) {
	t.Parallel()

	var accept string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		accept = r.Header.Get("Accept")
		_, _ = w.Write([]byte(jsonDoc))
	}))
	defer server.Close()

	loader := New(WithHTTPClient(server.Client()))
	doc, err := loader.Load(context.Background(), SourceFromURL(server.URL))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if len(doc.Form.Fields) != 1 {
		t.Fatalf("unexpected document: %+v", doc)
	}
	if !strings.Contains(accept, "application/json") || !strings.Contains(accept, "yaml") {
		t.Fatalf("request must advertise supported encodings, got %q", accept)
	}
}

func TestLoadRejectsOversizedDocument(t *testing.T) {
	t.Parallel()

	huge := make([]byte, maxDocumentSize+1)
	if _, err := New().Load(context.Background(), SourceFromBytes("inline", huge)); err == nil {
		t.Fatalf("expected error for oversized payload")
	}
}

func TestLoadURLWithoutClient(t *testing.T) {
	t.Parallel()

	if _, err := New().Load(context.Background(), SourceFromURL("http://example.test/form")); err == nil {
		t.Fatalf("expected error when http support is not configured")
	}
}

func TestLoadRejectsInvalidDocument(t *testing.T) {
	t.Parallel()

	broken := []byte(`{"form": {"fields": [{"name": "calc", "type": "number", "is_calculated": true}]}}`)
	if _, err := New().Load(context.Background(), SourceFromBytes("inline", broken)); err == nil {
		t.Fatalf("calculated field without formula must be rejected")
	}
}

func TestLoadNilSource(t *testing.T) {
	t.Parallel()

	if _, err := New().Load(context.Background(), nil); err == nil {
		t.Fatalf("expected error for nil source")
	}
}
