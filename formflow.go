// Package formflow turns declarative field metadata into live form sessions:
// calculated fields, conditional visibility, cascading option lists, and
// validation, driven by a dependency graph derived from the metadata.
//
// The root package re-exports the common entry points; the pkg/ packages
// hold the full surface.
package formflow

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/go-formflow/internal/loader"
	"github.com/goliatone/go-formflow/pkg/metadata"
	"github.com/goliatone/go-formflow/pkg/openapi"
	"github.com/goliatone/go-formflow/pkg/session"
)

// Document is the top-level metadata payload consumed by a form session.
type Document = metadata.Document

// FieldConfig declares a single form field.
type FieldConfig = metadata.FieldConfig

// Session drives a single form instance.
type Session = session.Session

// SessionOption customises a form session.
type SessionOption = session.Option

// NewSession validates the document and builds a session seeded from record
// values. See session.New for the full contract.
func NewSession(doc Document, record map[string]any, options ...SessionOption) (*Session, error) {
	return session.New(doc, record, options...)
}

// LoadDocument reads a metadata document from a file path or HTTP(S) URL,
// accepting JSON or YAML payloads.
func LoadDocument(ctx context.Context, source string) (Document, error) {
	l := loader.New(loader.WithHTTPClient(&http.Client{Timeout: 30 * time.Second}))
	return l.Load(ctx, parseSource(source))
}

// ParseDocument parses an in-memory JSON or YAML payload.
func ParseDocument(raw []byte) (Document, error) {
	doc, err := metadata.Parse(raw)
	if err != nil {
		return Document{}, err
	}
	if err := metadata.Validate(doc); err != nil {
		return Document{}, err
	}
	return doc, nil
}

// FromOpenAPI converts the request schema of an OpenAPI operation into a
// metadata document. Dynamic behaviour is read from x-formula,
// x-visible-when, x-depends-on, x-options-endpoint, and x-reference
// extensions.
func FromOpenAPI(ctx context.Context, raw []byte, operationID string) (Document, error) {
	return openapi.New().Convert(ctx, raw, operationID)
}

func parseSource(raw string) loader.Source {
	path := strings.TrimSpace(raw)
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return loader.SourceFromURL(path)
	}
	return loader.SourceFromFile(path)
}
