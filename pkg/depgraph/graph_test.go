package depgraph

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formflow/pkg/metadata"
)

func invoiceDocument() metadata.Document {
	return metadata.Document{Form: metadata.Form{Fields: []metadata.FieldConfig{
		{Name: "price", Type: metadata.FieldTypeNumber},
		{Name: "quantity", Type: metadata.FieldTypeNumber},
		{Name: "total", Type: metadata.FieldTypeNumber, IsCalculated: true, CalculationFormula: "price * quantity"},
		{Name: "discount_note", Type: metadata.FieldTypeText, VisibilityRules: &metadata.VisibilityRule{
			Operator: metadata.CombinatorAnd,
			Conditions: []metadata.Condition{
				{Field: "total", Operator: metadata.OpGreaterThan, Value: 100},
			},
		}},
		{Name: "country", Type: metadata.FieldTypeSelect},
		{Name: "state", Type: metadata.FieldTypeSelect, DependsOnField: "country"},
		{Name: "notes", Type: metadata.FieldTypeTextarea},
	}}}
}

func TestBuildOrdersEdgesByKind(t *testing.T) {
	t.Parallel()

	graph := Build(invoiceDocument())

	got := graph.AffectedBy("price")
	want := []Edge{{Field: "total", Kind: KindCalculated}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("AffectedBy(price) mismatch (-want +got):\n%s", diff)
	}

	got = graph.AffectedBy("total")
	want = []Edge{{Field: "discount_note", Kind: KindVisibility}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("AffectedBy(total) mismatch (-want +got):\n%s", diff)
	}

	got = graph.AffectedBy("country")
	want = []Edge{{Field: "state", Kind: KindCascade}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("AffectedBy(country) mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildCalculatedBeforeVisibilityBeforeCascade(t *testing.T) {
	t.Parallel()

	doc := metadata.Document{Form: metadata.Form{Fields: []metadata.FieldConfig{
		{Name: "base", Type: metadata.FieldTypeNumber},
		{Name: "derived", Type: metadata.FieldTypeNumber, IsCalculated: true, CalculationFormula: "base * 2"},
		{Name: "child", Type: metadata.FieldTypeSelect, DependsOnField: "base"},
		{Name: "hint", Type: metadata.FieldTypeText, VisibilityRules: &metadata.VisibilityRule{
			Operator:   metadata.CombinatorOr,
			Conditions: []metadata.Condition{{Field: "base", Operator: metadata.OpIsNotEmpty}},
		}},
	}}}

	got := Build(doc).AffectedBy("base")
	want := []Edge{
		{Field: "derived", Kind: KindCalculated},
		{Field: "hint", Kind: KindVisibility},
		{Field: "child", Kind: KindCascade},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("edge ordering mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildSkipsUnknownFormulaReferences(t *testing.T) {
	t.Parallel()

	doc := metadata.Document{Form: metadata.Form{Fields: []metadata.FieldConfig{
		{Name: "a", Type: metadata.FieldTypeNumber},
		{Name: "calc", Type: metadata.FieldTypeNumber, IsCalculated: true, CalculationFormula: "a + phantom"},
	}}}

	graph := Build(doc)
	if got := graph.AffectedBy("phantom"); got != nil {
		t.Fatalf("expected no edges for unknown reference, got %v", got)
	}
	if got := graph.AffectedBy("a"); len(got) != 1 || got[0].Field != "calc" {
		t.Fatalf("expected edge a -> calc, got %v", got)
	}
}

func TestLocality(t *testing.T) {
	t.Parallel()

	graph := Build(invoiceDocument())
	if graph.HasDependents("notes") {
		t.Fatalf("field outside all rules must trigger nothing")
	}
	if got := graph.AffectedBy("notes"); got != nil {
		t.Fatalf("expected nil edges, got %v", got)
	}
}

func TestCalculatedCycle(t *testing.T) {
	t.Parallel()

	doc := metadata.Document{Form: metadata.Form{Fields: []metadata.FieldConfig{
		{Name: "a", Type: metadata.FieldTypeNumber, IsCalculated: true, CalculationFormula: "b + 1"},
		{Name: "b", Type: metadata.FieldTypeNumber, IsCalculated: true, CalculationFormula: "a + 1"},
	}}}

	cycle := Build(doc).CalculatedCycle()
	if len(cycle) == 0 {
		t.Fatalf("expected a cycle")
	}
	if cycle[0] != cycle[len(cycle)-1] {
		t.Fatalf("cycle path should close on itself, got %v", cycle)
	}

	if got := Build(invoiceDocument()).CalculatedCycle(); got != nil {
		t.Fatalf("expected no cycle, got %v", got)
	}
}

func TestSelfReferenceIsACycle(t *testing.T) {
	t.Parallel()

	doc := metadata.Document{Form: metadata.Form{Fields: []metadata.FieldConfig{
		{Name: "total", Type: metadata.FieldTypeNumber, IsCalculated: true, CalculationFormula: "total + 1"},
	}}}

	if cycle := Build(doc).CalculatedCycle(); len(cycle) == 0 {
		t.Fatalf("expected self-reference to be detected")
	}
}
