package gr

import (
	"fmt"

	"github.com/kpumuk/langforge/internal/langgrammar"
)

var primitiveReturnTypes = map[string]bool{
	"string": true, "number": true, "boolean": true, "date": true, "bigint": true,
}

// Build walks a parsed Grammar once and produces an immutable Index.
//
// Assignments are recorded in encounter order; for a given (rule, property)
// pair the first occurrence wins (spec.md §4.2). Data-type classification
// follows the grammar: a rule whose declared return type is primitive, or
// whose body never introduces an assignment and only ever calls other
// data-type rules or keywords, is a data-type rule; everything else
// produces an AST node.
func Build(g *langgrammar.Grammar) (*Index, error) {
	if g == nil {
		return nil, fmt.Errorf("nil grammar")
	}

	idx := &Index{
		grammarName:       g.Name,
		entryRule:         g.EntryRule,
		rules:             make(map[string]*Rule, len(g.Rules)),
		assignmentsByRule: make(map[string][]AssignmentInfo, len(g.Rules)),
		firstAssignment:   make(map[ruleProp]AssignmentInfo),
		slotCount:         make(map[string]int, len(g.Rules)),
		keywordsByValue:   make(map[string][]KeywordElement),
		delegateTargets:   make(map[string]map[string]bool),
		symbolName:        []string{""}, // index 0 is NoSymbol
	}

	for _, src := range g.Rules {
		if _, dup := idx.rules[src.Name]; dup {
			return nil, fmt.Errorf("duplicate rule declaration: %s", src.Name)
		}
		sym := SymbolID(len(idx.symbolName))
		idx.symbolName = append(idx.symbolName, src.Name)
		r := &Rule{
			Name:            src.Name,
			Symbol:          sym,
			IsFragment:      src.IsFragment,
			IsTerminal:      src.IsTerminal,
			IsHidden:        src.IsHidden,
			TerminalPattern: src.TerminalPattern,
			Source:          src,
		}
		idx.rules[src.Name] = r
		idx.ruleOrder = append(idx.ruleOrder, r)
	}

	for _, src := range g.Rules {
		if src.IsTerminal {
			continue
		}
		slots := map[string]PropertySlot{}
		for _, alt := range src.Alternatives {
			walkAlternativeAssignments(idx, src.Name, alt, slots)
		}
		idx.slotCount[src.Name] = len(slots)
	}

	for _, src := range g.Rules {
		if src.IsTerminal {
			continue
		}
		walkAlternativeKeywords(idx, src.Name, src.Alternatives)
	}

	for _, src := range g.Rules {
		if src.IsTerminal {
			continue
		}
		recordDelegateTargets(idx, src.Name, src.Alternatives)
	}

	classifyDataTypeRules(idx, g)

	return idx, nil
}

// walkAlternativeAssignments records assignment infos for alternatives
// belonging directly to ruleName (does not descend into nested RuleCall
// targets, which belong to their own rule's scope), but does descend into
// Group elements, matching grammar "grouping does not start a new scope".
// slotMap accumulates one PropertySlot per distinct property name across
// every alternative of the rule, in first-occurrence order.
func walkAlternativeAssignments(idx *Index, ruleName string, alt *langgrammar.Alternative, slotMap map[string]PropertySlot) {
	for _, el := range alt.Elements {
		recordElementAssignments(idx, ruleName, el, slotMap)
	}
}

func recordElementAssignments(idx *Index, ruleName string, el langgrammar.Element, slotMap map[string]PropertySlot) {
	switch v := el.(type) {
	case *langgrammar.Assignment:
		info := AssignmentInfo{
			Property:         v.Property,
			Operator:         v.Operator,
			TerminalRuleName: v.TerminalRuleName,
			IsCrossReference: v.IsCrossReference,
			CrossRefRuleName: v.CrossRefRuleName,
			IsMultiReference: v.IsCrossReference && v.Operator == langgrammar.OpAppend,
		}
		slot, seen := slotMap[v.Property]
		if !seen {
			slot = PropertySlot(len(slotMap))
			slotMap[v.Property] = slot
		}
		info.Slot = slot
		idx.assignmentsByRule[ruleName] = append(idx.assignmentsByRule[ruleName], info)
		key := ruleProp{ruleName, v.Property}
		if _, exists := idx.firstAssignment[key]; !exists {
			idx.firstAssignment[key] = info
		}
	case *langgrammar.Group:
		for _, alt := range v.Alternatives {
			for _, child := range alt.Elements {
				recordElementAssignments(idx, ruleName, child, slotMap)
			}
		}
	default:
		// Keyword / RuleCall / CrossReference carry no assignment of their
		// own when they appear unassigned.
	}
}

func walkAlternativeKeywords(idx *Index, ruleName string, alts []*langgrammar.Alternative) {
	for _, alt := range alts {
		for _, el := range alt.Elements {
			recordElementKeywords(idx, ruleName, el)
		}
	}
}

func recordElementKeywords(idx *Index, ruleName string, el langgrammar.Element) {
	switch v := el.(type) {
	case *langgrammar.Keyword:
		idx.keywordsByValue[v.Value] = append(idx.keywordsByValue[v.Value], KeywordElement{Value: v.Value, RuleName: ruleName})
	case *langgrammar.Group:
		for _, alt := range v.Alternatives {
			for _, child := range alt.Elements {
				recordElementKeywords(idx, ruleName, child)
			}
		}
	case *langgrammar.Assignment:
		recordElementKeywords(idx, ruleName, v.Target)
	}
}

// recordDelegateTargets finds, for each alternative of ruleName that
// consists of exactly one bare RuleCall element, the called rule as a
// delegate target: the AST builder inlines such a child directly into the
// parent instead of nesting it (spec.md §4.6 step 4).
func recordDelegateTargets(idx *Index, ruleName string, alts []*langgrammar.Alternative) {
	for _, alt := range alts {
		if len(alt.Elements) != 1 {
			continue
		}
		call, ok := alt.Elements[0].(*langgrammar.RuleCall)
		if !ok {
			continue
		}
		if idx.delegateTargets[ruleName] == nil {
			idx.delegateTargets[ruleName] = map[string]bool{}
		}
		idx.delegateTargets[ruleName][call.RuleName] = true
	}
}

// classifyDataTypeRules computes, for every non-terminal rule, whether it
// produces a flat string (data-type rule) rather than an AST node. A rule
// with any assignment always produces an AST node. Otherwise the rule is a
// data-type rule iff every alternative consists only of keywords, terminal
// rule calls, or calls to other data-type rules — resolved with a
// depth-limited recursive walk (grammars in practice are shallow; a rule
// that cannot be resolved within the recursion budget is conservatively
// treated as AST-producing).
func classifyDataTypeRules(idx *Index, g *langgrammar.Grammar) {
	const maxDepth = 64
	memo := map[string]bool{}
	var resolve func(name string, depth int) bool
	resolve = func(name string, depth int) bool {
		if v, ok := memo[name]; ok {
			return v
		}
		r, ok := idx.rules[name]
		if !ok {
			return false
		}
		if r.IsTerminal {
			memo[name] = true
			return true
		}
		if r.Source != nil && primitiveReturnTypes[r.Source.ReturnsPrimitive] {
			memo[name] = true
			return true
		}
		if len(idx.assignmentsByRule[name]) > 0 {
			memo[name] = false
			return false
		}
		if depth >= maxDepth {
			memo[name] = false
			return false
		}
		// Avoid infinite recursion on mutually-recursive data-type rules by
		// provisionally marking "true" before descending.
		memo[name] = true
		for _, alt := range r.Alternatives {
			if !alternativeIsDataType(idx, alt, resolve, depth+1) {
				memo[name] = false
				return false
			}
		}
		return true
	}

	for _, r := range idx.ruleOrder {
		if r.IsTerminal {
			r.IsDataTypeRule = true
			continue
		}
		r.IsDataTypeRule = resolve(r.Name, 0)
	}
}

func alternativeIsDataType(idx *Index, alt *langgrammar.Alternative, resolve func(string, int) bool, depth int) bool {
	for _, el := range alt.Elements {
		if !elementIsDataType(idx, el, resolve, depth) {
			return false
		}
	}
	return true
}

func elementIsDataType(idx *Index, el langgrammar.Element, resolve func(string, int) bool, depth int) bool {
	switch v := el.(type) {
	case *langgrammar.Keyword:
		return true
	case *langgrammar.RuleCall:
		return resolve(v.RuleName, depth)
	case *langgrammar.CrossReference:
		return false
	case *langgrammar.Group:
		for _, a := range v.Alternatives {
			if !alternativeIsDataType(idx, a, resolve, depth) {
				return false
			}
		}
		return true
	case *langgrammar.Assignment:
		return false
	default:
		return false
	}
}
