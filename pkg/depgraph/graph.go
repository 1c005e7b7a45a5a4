// Package depgraph derives the trigger→dependent edges a form session uses
// to decide what to recompute when a field changes. Edges come from three
// declarations: calculated-field formulas, visibility conditions, and
// depends_on_field links. The graph is built once per metadata document.
package depgraph

import (
	"github.com/goliatone/go-formflow/pkg/formula"
	"github.com/goliatone/go-formflow/pkg/metadata"
)

// Kind classifies why a dependent must react to its trigger.
type Kind int

const (
	// KindCalculated re-runs the dependent's formula.
	KindCalculated Kind = iota
	// KindVisibility re-evaluates the dependent's visibility rule.
	KindVisibility
	// KindCascade reloads the dependent's option list.
	KindCascade
)

func (k Kind) String() string {
	switch k {
	case KindCalculated:
		return "calculated"
	case KindVisibility:
		return "visibility"
	case KindCascade:
		return "cascade"
	}
	return "unknown"
}

// Edge names a dependent field and the reason it reacts.
type Edge struct {
	Field string
	Kind  Kind
}

// Graph maps trigger field names to their dependents, partitioned by kind so
// AffectedBy can hand back calculated dependents before visibility before
// cascade. Calculated values must be fresh before anything reads them.
type Graph struct {
	calculated map[string][]string
	visibility map[string][]string
	cascade    map[string][]string

	// formulaRefs keeps, per calculated field, the known fields its formula
	// reads. Used for cycle detection.
	formulaRefs map[string][]string
}

// Build scans the document and registers every edge. Formula identifiers
// that do not name a declared field are silently skipped: the contract
// defines them as non-edges, not errors.
func Build(doc metadata.Document) *Graph {
	g := &Graph{
		calculated:  make(map[string][]string),
		visibility:  make(map[string][]string),
		cascade:     make(map[string][]string),
		formulaRefs: make(map[string][]string),
	}

	known := make(map[string]struct{}, len(doc.Form.Fields))
	for _, field := range doc.Form.Fields {
		known[field.Name] = struct{}{}
	}

	for _, field := range doc.Form.Fields {
		if field.IsCalculated && field.CalculationFormula != "" {
			for _, ref := range formula.References(field.CalculationFormula) {
				if _, ok := known[ref]; !ok {
					continue
				}
				g.calculated[ref] = append(g.calculated[ref], field.Name)
				g.formulaRefs[field.Name] = append(g.formulaRefs[field.Name], ref)
			}
		}

		if field.VisibilityRules != nil {
			seen := make(map[string]struct{})
			for _, cond := range field.VisibilityRules.Conditions {
				if cond.Field == "" {
					continue
				}
				if _, dup := seen[cond.Field]; dup {
					continue
				}
				seen[cond.Field] = struct{}{}
				g.visibility[cond.Field] = append(g.visibility[cond.Field], field.Name)
			}
		}

		if field.DependsOnField != "" {
			g.cascade[field.DependsOnField] = append(g.cascade[field.DependsOnField], field.Name)
		}
	}

	return g
}

// AffectedBy returns the dependents of trigger in processing order:
// calculated first, then visibility, then cascade, each in registration
// order. The same field can appear under more than one kind.
func (g *Graph) AffectedBy(trigger string) []Edge {
	if g == nil {
		return nil
	}
	var out []Edge
	for _, name := range g.calculated[trigger] {
		out = append(out, Edge{Field: name, Kind: KindCalculated})
	}
	for _, name := range g.visibility[trigger] {
		out = append(out, Edge{Field: name, Kind: KindVisibility})
	}
	for _, name := range g.cascade[trigger] {
		out = append(out, Edge{Field: name, Kind: KindCascade})
	}
	return out
}

// HasDependents reports whether any edge originates at trigger.
func (g *Graph) HasDependents(trigger string) bool {
	if g == nil {
		return false
	}
	return len(g.calculated[trigger])+len(g.visibility[trigger])+len(g.cascade[trigger]) > 0
}

// CalculatedCycle walks formula references between calculated fields and
// returns one cycle path when present, nil otherwise. Sessions reject
// documents with cycles at load time instead of looping at runtime.
func (g *Graph) CalculatedCycle() []string {
	if g == nil || len(g.formulaRefs) == 0 {
		return nil
	}

	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(g.formulaRefs))
	var stack []string

	var visit func(name string) []string
	visit = func(name string) []string {
		color[name] = gray
		stack = append(stack, name)
		for _, ref := range g.formulaRefs[name] {
			if _, calculated := g.formulaRefs[ref]; !calculated {
				continue
			}
			switch color[ref] {
			case gray:
				// Close the loop for a readable error message.
				start := 0
				for idx, entry := range stack {
					if entry == ref {
						start = idx
						break
					}
				}
				return append(append([]string(nil), stack[start:]...), ref)
			case white:
				if cycle := visit(ref); cycle != nil {
					return cycle
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[name] = black
		return nil
	}

	for name := range g.formulaRefs {
		if color[name] != white {
			continue
		}
		if cycle := visit(name); cycle != nil {
			return cycle
		}
	}
	return nil
}
