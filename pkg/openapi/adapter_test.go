package openapi

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formflow/pkg/metadata"
)

const orderSpec = `{
  "openapi": "3.0.3",
  "info": {"title": "orders", "version": "1.0.0"},
  "paths": {
    "/orders": {
      "post": {
        "operationId": "createOrder",
        "requestBody": {
          "content": {
            "application/json": {
              "schema": {
                "type": "object",
                "required": ["email", "quantity"],
                "properties": {
                  "email": {
                    "type": "string",
                    "format": "email",
                    "title": "Email"
                  },
                  "quantity": {
                    "type": "integer",
                    "minimum": 1,
                    "maximum": 100
                  },
                  "price": {"type": "number"},
                  "total": {
                    "type": "number",
                    "x-formula": "price * quantity"
                  },
                  "gift": {"type": "boolean"},
                  "gift_message": {
                    "type": "string",
                    "maxLength": 500,
                    "x-visible-when": {
                      "operator": "AND",
                      "conditions": [
                        {"field": "gift", "operator": "equals", "value": true}
                      ]
                    }
                  },
                  "country": {
                    "type": "string",
                    "enum": ["US", "CA"]
                  },
                  "state": {
                    "type": "string",
                    "x-depends-on": "country",
                    "x-options-endpoint": "https://example.test/states"
                  },
                  "assignee": {
                    "type": "string",
                    "x-reference": {
                      "entity": "users",
                      "field": "team_id",
                      "display": "full_name"
                    }
                  }
                }
              }
            }
          }
        },
        "responses": {"201": {"description": "created"}}
      }
    }
  }
}`

func convertOrder(t *testing.T) metadata.Document {
	t.Helper()
	doc, err := New().Convert(context.Background(), []byte(orderSpec), "createOrder")
	if err != nil {
		t.Fatalf("Convert returned error: %v", err)
	}
	return doc
}

func TestConvertFieldOrder(t *testing.T) {
	t.Parallel()

	doc := convertOrder(t)
	want := []string{"email", "quantity", "assignee", "country", "gift", "gift_message", "price", "state", "total"}
	if diff := cmp.Diff(want, doc.FieldNames()); diff != "" {
		t.Fatalf("required-first ordering mismatch (-want +got):\n%s", diff)
	}
}

func TestConvertTypesAndValidation(t *testing.T) {
	t.Parallel()

	doc := convertOrder(t)

	email := doc.Field("email")
	if email.Type != metadata.FieldTypeText || !email.Required || email.Label != "Email" {
		t.Fatalf("unexpected email config: %+v", email)
	}
	if len(email.ValidationRules) != 1 || email.ValidationRules[0].Type != metadata.RuleEmail {
		t.Fatalf("email format must map to an email rule: %+v", email.ValidationRules)
	}

	quantity := doc.Field("quantity")
	if quantity.Type != metadata.FieldTypeNumber {
		t.Fatalf("integer must map to number, got %q", quantity.Type)
	}
	wantRules := []metadata.ValidationRule{
		{Type: metadata.RuleMinValue, Value: 1.0},
		{Type: metadata.RuleMaxValue, Value: 100.0},
	}
	if diff := cmp.Diff(wantRules, quantity.ValidationRules); diff != "" {
		t.Fatalf("bounds mismatch (-want +got):\n%s", diff)
	}

	if doc.Field("gift").Type != metadata.FieldTypeCheckbox {
		t.Fatalf("boolean must map to checkbox")
	}
	if doc.Field("gift_message").Type != metadata.FieldTypeTextarea {
		t.Fatalf("long string must map to textarea")
	}
}

func TestConvertEnumBecomesSelect(t *testing.T) {
	t.Parallel()

	country := convertOrder(t).Field("country")
	if country.Type != metadata.FieldTypeSelect {
		t.Fatalf("enum must map to select, got %q", country.Type)
	}
	want := []metadata.Option{{Value: "US", Label: "US"}, {Value: "CA", Label: "CA"}}
	if diff := cmp.Diff(want, country.AllowedValues); diff != "" {
		t.Fatalf("options mismatch (-want +got):\n%s", diff)
	}
}

func TestConvertExtensions(t *testing.T) {
	t.Parallel()

	doc := convertOrder(t)

	total := doc.Field("total")
	if !total.IsCalculated || total.CalculationFormula != "price * quantity" || !total.ReadOnly {
		t.Fatalf("x-formula must mark the field calculated: %+v", total)
	}

	message := doc.Field("gift_message")
	if message.VisibilityRules == nil || len(message.VisibilityRules.Conditions) != 1 {
		t.Fatalf("x-visible-when must decode into a rule: %+v", message.VisibilityRules)
	}
	cond := message.VisibilityRules.Conditions[0]
	if cond.Field != "gift" || cond.Operator != metadata.OpEquals || cond.Value != true {
		t.Fatalf("unexpected condition %+v", cond)
	}

	state := doc.Field("state")
	if state.DependsOnField != "country" || state.OptionsEndpoint != "https://example.test/states" {
		t.Fatalf("cascade extensions not applied: %+v", state)
	}

	assignee := doc.Field("assignee")
	if assignee.Type != metadata.FieldTypeReference ||
		assignee.ReferenceEntityID != "users" ||
		assignee.ReferenceField != "team_id" ||
		assignee.DisplayField != "full_name" {
		t.Fatalf("x-reference not applied: %+v", assignee)
	}
}

func TestConvertUnknownOperation(t *testing.T) {
	t.Parallel()

	_, err := New().Convert(context.Background(), []byte(orderSpec), "missing")
	if !errors.Is(err, ErrOperationNotFound) {
		t.Fatalf("expected ErrOperationNotFound, got %v", err)
	}
}

func TestConvertEmptyPayload(t *testing.T) {
	t.Parallel()

	if _, err := New().Convert(context.Background(), nil, "createOrder"); err == nil {
		t.Fatalf("expected error for empty payload")
	}
}

func TestConvertedDocumentValidates(t *testing.T) {
	t.Parallel()

	if err := metadata.Validate(convertOrder(t)); err != nil {
		t.Fatalf("converted document must validate: %v", err)
	}
}
