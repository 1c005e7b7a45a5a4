package metadata

// FieldType is the simplified enum for form-friendly field kinds.
type FieldType string

const (
	FieldTypeText      FieldType = "text"
	FieldTypeNumber    FieldType = "number"
	FieldTypeCheckbox  FieldType = "checkbox"
	FieldTypeSelect    FieldType = "select"
	FieldTypeTextarea  FieldType = "textarea"
	FieldTypeDate      FieldType = "date"
	FieldTypeReference FieldType = "reference"
)

// Combinators accepted by VisibilityRule.Operator.
const (
	CombinatorAnd = "AND"
	CombinatorOr  = "OR"
)

// Condition operators understood by the visibility evaluator.
const (
	OpEquals         = "equals"
	OpNotEquals      = "not_equals"
	OpContains       = "contains"
	OpNotContains    = "not_contains"
	OpIn             = "in"
	OpNotIn          = "not_in"
	OpGreaterThan    = "greater_than"
	OpLessThan       = "less_than"
	OpGreaterOrEqual = "greater_or_equal"
	OpLessOrEqual    = "less_or_equal"
	OpIsEmpty        = "is_empty"
	OpIsNotEmpty     = "is_not_empty"
)

// Validation rule types accepted by ValidationRule.Type.
const (
	RuleRegex     = "regex"
	RuleMinLength = "min_length"
	RuleMaxLength = "max_length"
	RuleMinValue  = "min_value"
	RuleMaxValue  = "max_value"
	RuleEmail     = "email"
	RuleURL       = "url"
	RulePhone     = "phone"
	RuleCustom    = "custom"
)

// Option is a single selectable entry in a choice widget.
type Option struct {
	Value string `json:"value" yaml:"value"`
	Label string `json:"label" yaml:"label"`
}

// Condition is one leaf of a visibility rule tree: compare the named field's
// current value against Value using Operator.
type Condition struct {
	Field    string `json:"field" yaml:"field"`
	Operator string `json:"operator" yaml:"operator"`
	Value    any    `json:"value,omitempty" yaml:"value,omitempty"`
}

// VisibilityRule combines conditions with AND/OR semantics. A field without a
// rule is always visible.
type VisibilityRule struct {
	Operator   string      `json:"operator" yaml:"operator"`
	Conditions []Condition `json:"conditions" yaml:"conditions"`
}

// ValidationRule is a declarative constraint applied after built-in checks.
// Exactly one of Pattern, Value, or Expression is meaningful depending on
// Type; Message overrides the default error text when present.
type ValidationRule struct {
	Type       string `json:"type" yaml:"type"`
	Pattern    string `json:"pattern,omitempty" yaml:"pattern,omitempty"`
	Value      any    `json:"value,omitempty" yaml:"value,omitempty"`
	Expression string `json:"expression,omitempty" yaml:"expression,omitempty"`
	Message    string `json:"message,omitempty" yaml:"message,omitempty"`
}

// FieldConfig declares a single form field. Name is the unique key inside a
// document; everything else describes how the field renders, derives, and
// validates.
type FieldConfig struct {
	Name      string    `json:"name" yaml:"name"`
	Type      FieldType `json:"type" yaml:"type"`
	InputType string    `json:"input_type,omitempty" yaml:"input_type,omitempty"`
	Label     string    `json:"label,omitempty" yaml:"label,omitempty"`
	Required  bool      `json:"required,omitempty" yaml:"required,omitempty"`
	ReadOnly  bool      `json:"readonly,omitempty" yaml:"readonly,omitempty"`

	DefaultValue any `json:"default_value,omitempty" yaml:"default_value,omitempty"`

	IsCalculated       bool   `json:"is_calculated,omitempty" yaml:"is_calculated,omitempty"`
	CalculationFormula string `json:"calculation_formula,omitempty" yaml:"calculation_formula,omitempty"`

	VisibilityRules *VisibilityRule `json:"visibility_rules,omitempty" yaml:"visibility_rules,omitempty"`

	DependsOnField   string `json:"depends_on_field,omitempty" yaml:"depends_on_field,omitempty"`
	FilterExpression string `json:"filter_expression,omitempty" yaml:"filter_expression,omitempty"`

	ValidationRules []ValidationRule `json:"validation_rules,omitempty" yaml:"validation_rules,omitempty"`

	AllowedValues []Option `json:"allowed_values,omitempty" yaml:"allowed_values,omitempty"`

	ReferenceEntityID string `json:"reference_entity_id,omitempty" yaml:"reference_entity_id,omitempty"`
	ReferenceField    string `json:"reference_field,omitempty" yaml:"reference_field,omitempty"`
	DisplayField      string `json:"display_field,omitempty" yaml:"display_field,omitempty"`
	DisplayTemplate   string `json:"display_template,omitempty" yaml:"display_template,omitempty"`

	OptionsEndpoint string `json:"options_endpoint,omitempty" yaml:"options_endpoint,omitempty"`
}

// GroupConfig is a rendering grouping of fields. Groups never influence
// evaluation order.
type GroupConfig struct {
	ID          string   `json:"id" yaml:"id"`
	Label       string   `json:"label,omitempty" yaml:"label,omitempty"`
	Fields      []string `json:"fields" yaml:"fields"`
	Collapsible bool     `json:"collapsible,omitempty" yaml:"collapsible,omitempty"`
	Collapsed   bool     `json:"collapsed,omitempty" yaml:"collapsed,omitempty"`
}

// Form holds the field and group declarations of a metadata document.
type Form struct {
	Fields []FieldConfig `json:"fields" yaml:"fields"`
	Groups []GroupConfig `json:"groups,omitempty" yaml:"groups,omitempty"`
}

// Document is the top-level metadata payload consumed by a form session.
type Document struct {
	Form Form `json:"form" yaml:"form"`
}

// Field returns the configuration for name, or nil when absent.
func (d Document) Field(name string) *FieldConfig {
	for i := range d.Form.Fields {
		if d.Form.Fields[i].Name == name {
			return &d.Form.Fields[i]
		}
	}
	return nil
}

// FieldNames returns the declared field names in document order.
func (d Document) FieldNames() []string {
	names := make([]string, 0, len(d.Form.Fields))
	for _, field := range d.Form.Fields {
		names = append(names, field.Name)
	}
	return names
}

// Dependents returns fields whose depends_on_field names parent, in document
// order.
func (d Document) Dependents(parent string) []FieldConfig {
	var out []FieldConfig
	for _, field := range d.Form.Fields {
		if field.DependsOnField == parent {
			out = append(out, field)
		}
	}
	return out
}
