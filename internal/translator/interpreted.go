package translator

import (
	"fmt"

	"github.com/kpumuk/langforge/internal/diagnostic"
	"github.com/kpumuk/langforge/internal/langgrammar"
)

// Interpreted is the interpreted-backend translator: validation only, no
// artifacts (spec.md §4.5 — "translate() is a no-op"). It exists as a type
// (rather than a bare function) to mirror Compiled's shape and to give
// cmd/langc a uniform `translator.Interpreted{}.Validate(g)` /
// `translator.Compiled{}.Translate(g, outDir)` call surface.
type Interpreted struct{}

// Validate reports, per grammar feature, whether the interpreted backend
// (internal/backend/interpreted) can run the grammar exactly, partially, or
// not at all. Errors mean "use the compiled backend"; warnings mean "the
// interpreted backend runs this, with reduced fidelity."
//
// internal/langgrammar's grammar surface does not yet model external
// context trackers, conflict sets, precedence-marker annotations, external
// tokens, or local token groups as distinct AST nodes (those are constructs
// the compiled backend's own grammar dialect supports natively but this
// project's .glang surface has no syntax for) — so the checks below cover
// the subset of spec.md §4.5's feature list that is actually representable
// today: dynamic precedence (modeled directly on langgrammar.Rule) as an
// error, and infix-rule-derived precedence as a warning. When .glang grows
// syntax for the remaining constructs, their checks belong here too.
func (Interpreted) Validate(g *langgrammar.Grammar) []diagnostic.Diagnostic {
	var diags []diagnostic.Diagnostic

	for _, r := range g.Rules {
		if r.DynamicPrecedence != 0 {
			diags = append(diags, diagnostic.FromTranslation(
				fmt.Sprintf("rule %q declares @dynamicPrecedence(%d): dynamic precedence requires the compiled backend", r.Name, r.DynamicPrecedence),
				diagnostic.SeverityError,
			))
		}
		if hasUnorderedGroup(r.Alternatives) {
			diags = append(diags, diagnostic.FromTranslation(
				fmt.Sprintf("rule %q uses an unordered group: the interpreted backend tries alternatives in declaration order instead of permutation order", r.Name),
				diagnostic.SeverityWarning,
			))
		}
	}

	for _, inf := range g.InfixRules {
		diags = append(diags, diagnostic.FromTranslation(
			fmt.Sprintf("infix rule %q: the interpreted backend's recursive-descent parser enforces associativity by recursion shape only, not by a declared precedence table", inf.Name),
			diagnostic.SeverityWarning,
		))
	}

	return diags
}

func hasUnorderedGroup(alts []*langgrammar.Alternative) bool {
	for _, alt := range alts {
		for _, el := range alt.Elements {
			if groupHasUnordered(el) {
				return true
			}
		}
	}
	return false
}

func groupHasUnordered(el langgrammar.Element) bool {
	switch v := el.(type) {
	case *langgrammar.Group:
		if v.Unordered {
			return true
		}
		if hasUnorderedGroup(v.Alternatives) {
			return true
		}
	case *langgrammar.Assignment:
		return groupHasUnordered(v.Target)
	}
	return false
}
