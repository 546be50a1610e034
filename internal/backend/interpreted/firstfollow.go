package interpreted

import "github.com/kpumuk/langforge/internal/langgrammar"

// ruleEntry is the per-rule FIRST/FOLLOW accumulator, mirroring
// nihei9-vartan/grammar/first.go's firstEntry but keyed by rule name
// instead of symbol.Symbol, since the interpreted backend has no numbered
// grammar symbols of its own (it defers to gr.Index only for the ST's
// SymbolIDs, not for parsing decisions).
type ruleEntry struct {
	syms    map[symRef]bool
	nullable bool
}

func newRuleEntry() *ruleEntry {
	return &ruleEntry{syms: map[symRef]bool{}}
}

func (e *ruleEntry) add(s symRef) bool {
	if e.syms[s] {
		return false
	}
	e.syms[s] = true
	return true
}

func (e *ruleEntry) addAll(o *ruleEntry) bool {
	changed := false
	for s := range o.syms {
		if e.add(s) {
			changed = true
		}
	}
	return changed
}

func (e *ruleEntry) markNullable() bool {
	if e.nullable {
		return false
	}
	e.nullable = true
	return true
}

// analysis holds the FIRST and FOLLOW sets computed for one grammar,
// together with the identifier terminal convention (symbol.go) used to
// treat cross-reference elements as terminals during prediction.
type analysis struct {
	grammar    *langgrammar.Grammar
	identTerm  string
	first      map[string]*ruleEntry // by rule name
	follow     map[string]*ruleEntry // by rule name
}

func newAnalysis(g *langgrammar.Grammar) *analysis {
	a := &analysis{
		grammar:   g,
		identTerm: identifierTerminal(g),
		first:     map[string]*ruleEntry{},
		follow:    map[string]*ruleEntry{},
	}
	for _, r := range g.Rules {
		a.first[r.Name] = newRuleEntry()
		a.follow[r.Name] = newRuleEntry()
		if r.IsTerminal {
			a.first[r.Name].add(symRef{Kind: symTerminal, Name: r.Name})
		}
	}
	a.computeFirst()
	a.computeFollow()
	return a
}

func (a *analysis) computeFirst() {
	for {
		changed := false
		for _, r := range a.grammar.Rules {
			if r.IsTerminal {
				continue
			}
			dst := a.first[r.Name]
			for _, alt := range r.Alternatives {
				syms, nullable := a.firstOfAlternative(alt)
				if dst.addAll(syms) {
					changed = true
				}
				if nullable && dst.markNullable() {
					changed = true
				}
			}
		}
		if !changed {
			return
		}
	}
}

// firstOfAlternative returns the alternative's leaf prediction set and
// whether the whole alternative can match zero tokens.
func (a *analysis) firstOfAlternative(alt *langgrammar.Alternative) (*ruleEntry, bool) {
	acc := newRuleEntry()
	for _, el := range alt.Elements {
		syms, nullable := a.firstOfElement(el)
		acc.addAll(syms)
		if !nullable {
			return acc, false
		}
	}
	return acc, true
}

func (a *analysis) firstOfElement(el langgrammar.Element) (*ruleEntry, bool) {
	cardNullable := cardinalityAllowsEmpty(el.Card())
	switch v := el.(type) {
	case *langgrammar.Keyword:
		e := newRuleEntry()
		e.add(symRef{Kind: symKeyword, Value: v.Value})
		return e, cardNullable
	case *langgrammar.RuleCall:
		src := a.first[v.RuleName]
		if src == nil {
			return newRuleEntry(), cardNullable
		}
		return src, cardNullable || src.nullable
	case *langgrammar.CrossReference:
		e := newRuleEntry()
		e.add(symRef{Kind: symTerminal, Name: a.identTerm})
		return e, cardNullable
	case *langgrammar.Group:
		acc := newRuleEntry()
		anyNullable := false
		for _, alt := range v.Alternatives {
			syms, nullable := a.firstOfAlternative(alt)
			acc.addAll(syms)
			if nullable {
				anyNullable = true
			}
		}
		return acc, cardNullable || anyNullable
	case *langgrammar.Assignment:
		return a.firstOfElement(v.Target)
	default:
		return newRuleEntry(), true
	}
}

func cardinalityAllowsEmpty(c langgrammar.Cardinality) bool {
	return c == langgrammar.Optional || c == langgrammar.Star
}

// computeFollow is a standard fixed-point FOLLOW computation: for every
// RuleCall (bare or as an Assignment target, including inside groups) in
// some alternative, whatever can come after it in that alternative (plus,
// if the rest of the alternative is nullable, the containing rule's own
// FOLLOW set) contributes to the called rule's FOLLOW set.
// Cross-references contribute nothing here.
func (a *analysis) computeFollow() {
	for {
		changed := false
		for _, r := range a.grammar.Rules {
			if r.IsTerminal {
				continue
			}
			for _, alt := range r.Alternatives {
				if a.propagateFollow(r.Name, alt.Elements) {
					changed = true
				}
			}
		}
		if !changed {
			return
		}
	}
}

func (a *analysis) propagateFollow(containingRule string, elements []langgrammar.Element) bool {
	changed := false
	for i, el := range elements {
		ruleName := calledRuleName(el)
		if ruleName == "" {
			if g, ok := el.(*langgrammar.Group); ok {
				for _, alt := range g.Alternatives {
					if a.propagateFollow(containingRule, alt.Elements) {
						changed = true
					}
				}
			}
			continue
		}
		dst := a.follow[ruleName]
		if dst == nil {
			continue
		}
		rest := elements[i+1:]
		restFirst, restNullable := a.firstOfSequence(rest)
		if dst.addAll(restFirst) {
			changed = true
		}
		if restNullable {
			if dst.addAll(a.follow[containingRule]) {
				changed = true
			}
			if a.follow[containingRule].nullable && dst.markNullable() {
				changed = true
			}
		}
	}
	return changed
}

func (a *analysis) firstOfSequence(elements []langgrammar.Element) (*ruleEntry, bool) {
	acc := newRuleEntry()
	for _, el := range elements {
		syms, nullable := a.firstOfElement(el)
		acc.addAll(syms)
		if !nullable {
			return acc, false
		}
	}
	return acc, true
}

// calledRuleName returns the rule name a RuleCall calls, directly or as an
// Assignment target, or "" for every other element (keywords,
// cross-references, and groups, which the caller handles separately).
func calledRuleName(el langgrammar.Element) string {
	switch v := el.(type) {
	case *langgrammar.RuleCall:
		return v.RuleName
	case *langgrammar.Assignment:
		return calledRuleName(v.Target)
	default:
		return ""
	}
}

// First returns the prediction set for ruleName: the set of leaf symbols
// that can begin a match of that rule, and whether the rule can match the
// empty string.
func (a *analysis) First(ruleName string) (map[symRef]bool, bool) {
	e := a.first[ruleName]
	if e == nil {
		return nil, false
	}
	return e.syms, e.nullable
}

// Follow returns the set of leaf symbols that can legally appear
// immediately after a match of ruleName — used both for error recovery
// (resynchronize on a FOLLOW token) and for epsilon-alternative prediction.
func (a *analysis) Follow(ruleName string) map[symRef]bool {
	e := a.follow[ruleName]
	if e == nil {
		return nil
	}
	return e.syms
}
