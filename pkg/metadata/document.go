package metadata

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

var errEmptyDocument = errors.New("metadata: document payload is empty")

// Parse decodes a metadata document from JSON or YAML bytes. JSON is tried
// first since most documents come from the admin API; YAML covers
// hand-authored fixtures.
func Parse(raw []byte) (Document, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" {
		return Document{}, errEmptyDocument
	}

	var doc Document
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		if err := json.Unmarshal(raw, &doc); err != nil {
			return Document{}, fmt.Errorf("metadata: decode json: %w", err)
		}
		return doc, nil
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return Document{}, fmt.Errorf("metadata: decode yaml: %w", err)
	}
	return doc, nil
}

// MustParse is a test/fixture helper that panics on malformed payloads.
func MustParse(raw []byte) Document {
	doc, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return doc
}
