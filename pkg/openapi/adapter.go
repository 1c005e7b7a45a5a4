// Package openapi converts an OpenAPI operation's request schema into a form
// metadata document. It gives services that already publish an OpenAPI
// contract a way to drive form sessions without hand-writing metadata.
//
// Dynamic behaviour that OpenAPI cannot express natively is read from vendor
// extensions on property schemas:
//
//	x-formula         calculation formula; marks the field calculated
//	x-visible-when    visibility rule object (operator + conditions)
//	x-depends-on      parent field name for cascading options
//	x-options-endpoint URL template for remote option lists
//	x-reference       object with entity, field, display keys
package openapi

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/goliatone/go-formflow/pkg/metadata"
)

// Extension keys recognised on property schemas.
const (
	extFormula         = "x-formula"
	extVisibleWhen     = "x-visible-when"
	extDependsOn       = "x-depends-on"
	extOptionsEndpoint = "x-options-endpoint"
	extReference       = "x-reference"
	extInputType       = "x-input-type"
)

// ErrOperationNotFound is returned when the document declares no operation
// with the requested id.
var ErrOperationNotFound = errors.New("openapi: operation not found")

// Option customises an Adapter.
type Option func(*Adapter)

// WithExternalRefs allows the underlying loader to resolve external $ref
// targets. Off by default.
func WithExternalRefs() Option {
	return func(a *Adapter) { a.externalRefs = true }
}

// Adapter parses OpenAPI documents and extracts form metadata from operation
// request bodies.
type Adapter struct {
	externalRefs bool
}

// New constructs an Adapter applying any provided options.
func New(options ...Option) *Adapter {
	a := &Adapter{}
	for _, opt := range options {
		if opt != nil {
			opt(a)
		}
	}
	return a
}

// Convert loads the OpenAPI payload and converts the request schema of the
// operation identified by operationID into a metadata document. Properties
// become fields ordered by name, with properties named in the schema's
// required list listed first.
func (a *Adapter) Convert(ctx context.Context, raw []byte, operationID string) (metadata.Document, error) {
	if len(raw) == 0 {
		return metadata.Document{}, errors.New("openapi: document payload is empty")
	}

	loader := &openapi3.Loader{
		Context:               ctx,
		IsExternalRefsAllowed: a.externalRefs,
	}
	spec, err := loader.LoadFromData(raw)
	if err != nil {
		return metadata.Document{}, fmt.Errorf("openapi: load document: %w", err)
	}

	schema := findRequestSchema(spec, operationID)
	if schema == nil {
		return metadata.Document{}, fmt.Errorf("%w: %q", ErrOperationNotFound, operationID)
	}

	return convertSchema(schema), nil
}

func findRequestSchema(spec *openapi3.T, operationID string) *openapi3.Schema {
	if spec.Paths == nil {
		return nil
	}
	for _, item := range spec.Paths.Map() {
		if item == nil {
			continue
		}
		for _, op := range []*openapi3.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Patch,
		} {
			if op == nil || op.OperationID != operationID {
				continue
			}
			return requestSchema(op.RequestBody)
		}
	}
	return nil
}

func requestSchema(body *openapi3.RequestBodyRef) *openapi3.Schema {
	if body == nil || body.Value == nil {
		return nil
	}
	content := body.Value.Content
	for _, mediaType := range []string{"application/json", "application/x-www-form-urlencoded", "multipart/form-data"} {
		if mt, ok := content[mediaType]; ok && mt.Schema != nil {
			return mt.Schema.Value
		}
	}
	for _, mt := range content {
		if mt.Schema != nil {
			return mt.Schema.Value
		}
	}
	return nil
}

func convertSchema(schema *openapi3.Schema) metadata.Document {
	required := make(map[string]bool, len(schema.Required))
	for _, name := range schema.Required {
		required[name] = true
	}

	names := make([]string, 0, len(schema.Properties))
	for name := range schema.Properties {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if required[names[i]] != required[names[j]] {
			return required[names[i]]
		}
		return names[i] < names[j]
	})

	doc := metadata.Document{}
	for _, name := range names {
		ref := schema.Properties[name]
		if ref == nil || ref.Value == nil {
			continue
		}
		doc.Form.Fields = append(doc.Form.Fields, convertProperty(name, ref.Value, required[name]))
	}
	return doc
}

func convertProperty(name string, src *openapi3.Schema, required bool) metadata.FieldConfig {
	cfg := metadata.FieldConfig{
		Name:         name,
		Type:         fieldType(src),
		Label:        src.Title,
		Required:     required,
		ReadOnly:     src.ReadOnly,
		DefaultValue: src.Default,
	}

	if len(src.Enum) > 0 {
		cfg.Type = metadata.FieldTypeSelect
		for _, value := range src.Enum {
			s := fmt.Sprint(value)
			cfg.AllowedValues = append(cfg.AllowedValues, metadata.Option{Value: s, Label: s})
		}
	}

	cfg.ValidationRules = validationRules(src)
	applyExtensions(&cfg, src.Extensions)
	return cfg
}

func fieldType(src *openapi3.Schema) metadata.FieldType {
	switch schemaType(src) {
	case "integer", "number":
		return metadata.FieldTypeNumber
	case "boolean":
		return metadata.FieldTypeCheckbox
	case "string":
		switch src.Format {
		case "date", "date-time":
			return metadata.FieldTypeDate
		}
		if src.MaxLength != nil && *src.MaxLength > 255 {
			return metadata.FieldTypeTextarea
		}
		return metadata.FieldTypeText
	default:
		return metadata.FieldTypeText
	}
}

func schemaType(src *openapi3.Schema) string {
	if src.Type == nil {
		return ""
	}
	values := src.Type.Slice()
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

func validationRules(src *openapi3.Schema) []metadata.ValidationRule {
	var rules []metadata.ValidationRule

	if src.Pattern != "" {
		rules = append(rules, metadata.ValidationRule{Type: metadata.RuleRegex, Pattern: src.Pattern})
	}
	if src.MinLength != 0 {
		rules = append(rules, metadata.ValidationRule{Type: metadata.RuleMinLength, Value: float64(src.MinLength)})
	}
	if src.MaxLength != nil {
		rules = append(rules, metadata.ValidationRule{Type: metadata.RuleMaxLength, Value: float64(*src.MaxLength)})
	}
	if src.Min != nil {
		rules = append(rules, metadata.ValidationRule{Type: metadata.RuleMinValue, Value: *src.Min})
	}
	if src.Max != nil {
		rules = append(rules, metadata.ValidationRule{Type: metadata.RuleMaxValue, Value: *src.Max})
	}
	switch src.Format {
	case "email":
		rules = append(rules, metadata.ValidationRule{Type: metadata.RuleEmail})
	case "uri", "url":
		rules = append(rules, metadata.ValidationRule{Type: metadata.RuleURL})
	}
	return rules
}

func applyExtensions(cfg *metadata.FieldConfig, extensions map[string]any) {
	if len(extensions) == 0 {
		return
	}

	if formula, ok := extensions[extFormula].(string); ok && formula != "" {
		cfg.IsCalculated = true
		cfg.CalculationFormula = formula
		cfg.ReadOnly = true
	}
	if input, ok := extensions[extInputType].(string); ok {
		cfg.InputType = input
	}
	if parent, ok := extensions[extDependsOn].(string); ok {
		cfg.DependsOnField = parent
	}
	if endpoint, ok := extensions[extOptionsEndpoint].(string); ok {
		cfg.OptionsEndpoint = endpoint
	}
	if rule := visibilityRule(extensions[extVisibleWhen]); rule != nil {
		cfg.VisibilityRules = rule
	}
	if ref, ok := extensions[extReference].(map[string]any); ok {
		cfg.Type = metadata.FieldTypeReference
		if entity, ok := ref["entity"].(string); ok {
			cfg.ReferenceEntityID = entity
		}
		if field, ok := ref["field"].(string); ok {
			cfg.ReferenceField = field
		}
		if display, ok := ref["display"].(string); ok {
			cfg.DisplayField = display
		}
		if template, ok := ref["template"].(string); ok {
			cfg.DisplayTemplate = template
		}
	}
}

// visibilityRule decodes an x-visible-when object. Malformed rules are
// ignored; the field stays always visible.
func visibilityRule(raw any) *metadata.VisibilityRule {
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil
	}

	rule := &metadata.VisibilityRule{Operator: metadata.CombinatorAnd}
	if op, ok := obj["operator"].(string); ok && op != "" {
		rule.Operator = op
	}

	conditions, ok := obj["conditions"].([]any)
	if !ok {
		return nil
	}
	for _, entry := range conditions {
		cond, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		field, _ := cond["field"].(string)
		operator, _ := cond["operator"].(string)
		if field == "" || operator == "" {
			continue
		}
		rule.Conditions = append(rule.Conditions, metadata.Condition{
			Field:    field,
			Operator: operator,
			Value:    cond["value"],
		})
	}
	if len(rule.Conditions) == 0 {
		return nil
	}
	return rule
}
