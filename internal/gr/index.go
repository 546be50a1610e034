// Package gr builds the grammar index (GR): constant-time lookups into a
// parsed grammar that every other component (ST, AST builder, both parser
// backends) consults. Built once at service startup; immutable thereafter.
//
// Modeled on the compact symbol-table bookkeeping in
// nihei9-vartan/grammar/symbol.go and production.go, generalized from
// LALR-table construction to general-purpose rule/assignment indexing.
package gr

import (
	"github.com/kpumuk/langforge/internal/langgrammar"
)

// SymbolID is a dense, declaration-ordered identifier for a rule (parser or
// terminal). It plays the role tree-sitter's numeric "kind id" plays in the
// teacher's internal/syntax package, but is grammar-defined rather than
// backend-defined, so either backend can map its own node kinds onto it.
type SymbolID uint16

// NoSymbol is the sentinel for "no symbol" (e.g. a hidden/anonymous node).
const NoSymbol SymbolID = 0

// PropertySlot is a small dense integer assigned to each (ruleName,
// propertyName) pair seen while walking the grammar. ast.Node property
// storage is indexed by PropertySlot instead of a dynamic dictionary
// (spec.md §9, "Dynamic property bags on AST nodes").
type PropertySlot int

// AssignmentInfo describes one grammar assignment within a rule, in
// grammar-declaration order.
type AssignmentInfo struct {
	Property         string
	Operator         langgrammar.AssignOp
	TerminalRuleName string // set when the target resolves to a single rule call
	IsCrossReference bool
	IsMultiReference bool // true for "+=" assignments onto a cross-reference
	CrossRefRuleName string
	Slot             PropertySlot
}

// Rule is the grammar-index record for one parser or terminal rule.
type Rule struct {
	Name             string
	Symbol           SymbolID
	IsFragment       bool
	IsTerminal       bool
	IsHidden         bool
	IsDataTypeRule   bool
	TerminalPattern  string
	Source           *langgrammar.Rule
}

// KeywordElement is one occurrence of a fixed-lexeme keyword in some rule.
type KeywordElement struct {
	Value    string
	RuleName string
}

// Index is the built, immutable grammar index.
type Index struct {
	grammarName string
	entryRule   string

	rules      map[string]*Rule
	ruleOrder  []*Rule
	symbolName []string // SymbolID -> name, index 0 unused

	assignmentsByRule map[string][]AssignmentInfo
	firstAssignment   map[ruleProp]AssignmentInfo
	slotCount         map[string]int

	keywordsByValue map[string][]KeywordElement

	// delegateTargets[parent][child] is set when some alternative of parent
	// consists solely of a bare call to child, with no assignment wrapping
	// it (spec.md §4.6 step 4, "unassigned composite children" / type
	// override, e.g. `Element: Person | Greeting;`).
	delegateTargets map[string]map[string]bool
}

type ruleProp struct {
	rule, prop string
}

// GrammarName returns the name declared by the grammar's "grammar" header.
func (idx *Index) GrammarName() string { return idx.grammarName }

// EntryRule returns the grammar's designated (or inferred) entry rule name.
func (idx *Index) EntryRule() string { return idx.entryRule }

// Rules returns every rule in declaration order (including terminals and
// rules synthesized from infix-rule expansion).
func (idx *Index) Rules() []*Rule {
	out := make([]*Rule, len(idx.ruleOrder))
	copy(out, idx.ruleOrder)
	return out
}

// RuleByName returns the rule record for name, or (nil, false) on miss.
// Accessors never panic or raise, per spec.md §4.2.
func (idx *Index) RuleByName(name string) (*Rule, bool) {
	if idx == nil {
		return nil, false
	}
	r, ok := idx.rules[name]
	return r, ok
}

// SymbolName resolves a SymbolID back to its declared rule name.
func (idx *Index) SymbolName(id SymbolID) string {
	if idx == nil || int(id) >= len(idx.symbolName) {
		return ""
	}
	return idx.symbolName[id]
}

// Assignments returns the ordered assignment list for rule, or nil on miss.
func (idx *Index) Assignments(ruleName string) []AssignmentInfo {
	if idx == nil {
		return nil
	}
	return idx.assignmentsByRule[ruleName]
}

// AssignmentByProperty returns the first assignment of property within
// rule, per spec.md §4.2's "first occurrence wins" rule.
func (idx *Index) AssignmentByProperty(ruleName, property string) (AssignmentInfo, bool) {
	if idx == nil {
		return AssignmentInfo{}, false
	}
	a, ok := idx.firstAssignment[ruleProp{ruleName, property}]
	return a, ok
}

// SlotCount returns how many distinct properties a rule's AST node needs
// preallocated slots for.
func (idx *Index) SlotCount(ruleName string) int {
	if idx == nil {
		return 0
	}
	return idx.slotCount[ruleName]
}

// IsDataTypeRule reports whether rule produces a flat string value instead
// of an AST node.
func (idx *Index) IsDataTypeRule(ruleName string) bool {
	if idx == nil {
		return false
	}
	r, ok := idx.rules[ruleName]
	return ok && r.IsDataTypeRule
}

// IsKeyword reports whether value is used as a keyword lexeme anywhere in
// the grammar.
func (idx *Index) IsKeyword(value string) bool {
	if idx == nil {
		return false
	}
	_, ok := idx.keywordsByValue[value]
	return ok
}

// KeywordElements returns every keyword element carrying value, or nil.
func (idx *Index) KeywordElements(value string) []KeywordElement {
	if idx == nil {
		return nil
	}
	return idx.keywordsByValue[value]
}

// IsDelegateTarget reports whether child appears as a bare, unassigned
// alternative of parent (spec.md §4.6 step 4).
func (idx *Index) IsDelegateTarget(parent, child string) bool {
	if idx == nil {
		return false
	}
	return idx.delegateTargets[parent][child]
}
