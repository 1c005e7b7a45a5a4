package metadata

import (
	"errors"
	"fmt"
)

var errNoFields = errors.New("metadata: document declares no fields")

// Validate checks the structural invariants a form session relies on:
// field names are unique, depends_on_field links resolve inside the document,
// calculated fields carry a formula, and group members exist. Formula cycle
// detection happens in depgraph, which owns the edge derivation.
func Validate(doc Document) error {
	if len(doc.Form.Fields) == 0 {
		return errNoFields
	}

	seen := make(map[string]struct{}, len(doc.Form.Fields))
	for _, field := range doc.Form.Fields {
		if field.Name == "" {
			return errors.New("metadata: field with empty name")
		}
		if _, dup := seen[field.Name]; dup {
			return fmt.Errorf("metadata: duplicate field name %q", field.Name)
		}
		seen[field.Name] = struct{}{}

		if field.IsCalculated && field.CalculationFormula == "" {
			return fmt.Errorf("metadata: calculated field %q has no formula", field.Name)
		}
	}

	for _, field := range doc.Form.Fields {
		if field.DependsOnField == "" {
			continue
		}
		if field.DependsOnField == field.Name {
			return fmt.Errorf("metadata: field %q depends on itself", field.Name)
		}
		if _, ok := seen[field.DependsOnField]; !ok {
			return fmt.Errorf("metadata: field %q depends on unknown field %q", field.Name, field.DependsOnField)
		}
	}

	for _, group := range doc.Form.Groups {
		for _, member := range group.Fields {
			if _, ok := seen[member]; !ok {
				return fmt.Errorf("metadata: group %q references unknown field %q", group.ID, member)
			}
		}
	}

	return nil
}
