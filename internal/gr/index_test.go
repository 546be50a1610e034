package gr_test

import (
	"testing"

	"github.com/kpumuk/langforge/internal/gr"
	"github.com/kpumuk/langforge/internal/langgrammar"
)

const sampleGlang = `
grammar sample

hidden terminal WS: /\s+/;
terminal IDENT: /[A-Za-z_][A-Za-z0-9_]*/;
terminal NUMBER: /[0-9]+/;

entry document:
    "model" name=IDENT "{" fields=field* "}"
    ;

field:
    name=IDENT ":" type=typeName ";"
    ;

typeName:
    IDENT
    ;

thing:
    value=IDENT
  | value=[document]
    ;

aliasRef:
    [document]
    ;

numberLiteral returns number:
    value=NUMBER
    ;
`

func buildSampleIndex(t *testing.T) *gr.Index {
	t.Helper()
	g, err := langgrammar.Parse("sample.glang", []byte(sampleGlang))
	if err != nil {
		t.Fatalf("langgrammar.Parse: %v", err)
	}
	idx, err := gr.Build(g)
	if err != nil {
		t.Fatalf("gr.Build: %v", err)
	}
	return idx
}

func TestBuildEntryAndRuleLookup(t *testing.T) {
	idx := buildSampleIndex(t)

	if got := idx.EntryRule(); got != "document" {
		t.Errorf("EntryRule() = %q, want %q", got, "document")
	}
	if got := idx.GrammarName(); got != "sample" {
		t.Errorf("GrammarName() = %q, want %q", got, "sample")
	}

	rule, ok := idx.RuleByName("document")
	if !ok {
		t.Fatalf("RuleByName(%q) missing", "document")
	}
	if rule.Symbol == gr.NoSymbol {
		t.Errorf("document rule has NoSymbol, want a real SymbolID")
	}
	if got := idx.SymbolName(rule.Symbol); got != "document" {
		t.Errorf("SymbolName(%d) = %q, want %q", rule.Symbol, got, "document")
	}

	if _, ok := idx.RuleByName("nope"); ok {
		t.Errorf("RuleByName(%q) should miss", "nope")
	}
}

func TestBuildAssignmentSlotsFirstOccurrenceWins(t *testing.T) {
	idx := buildSampleIndex(t)

	assignments := idx.Assignments("thing")
	if len(assignments) != 2 {
		t.Fatalf("Assignments(thing) = %d entries, want 2", len(assignments))
	}
	if assignments[0].Slot != assignments[1].Slot {
		t.Errorf("both assignments to %q should share a slot, got %d and %d", "value", assignments[0].Slot, assignments[1].Slot)
	}
	if got := idx.SlotCount("thing"); got != 1 {
		t.Errorf("SlotCount(thing) = %d, want 1", got)
	}

	first, ok := idx.AssignmentByProperty("thing", "value")
	if !ok {
		t.Fatalf("AssignmentByProperty(thing, value) missing")
	}
	if first.TerminalRuleName != "IDENT" {
		t.Errorf("AssignmentByProperty(thing, value) resolved to %q, want the first occurrence %q", first.TerminalRuleName, "IDENT")
	}
	if first.IsCrossReference {
		t.Errorf("first occurrence of %q should not be a cross-reference", "value")
	}

	if got := idx.SlotCount("document"); got != 2 {
		t.Errorf("SlotCount(document) = %d, want 2 (name, fields)", got)
	}
}

func TestBuildKeywordTracking(t *testing.T) {
	idx := buildSampleIndex(t)

	if !idx.IsKeyword("model") {
		t.Errorf("IsKeyword(model) = false, want true")
	}
	elems := idx.KeywordElements("model")
	if len(elems) != 1 || elems[0].RuleName != "document" {
		t.Errorf("KeywordElements(model) = %+v, want one element owned by document", elems)
	}
	if idx.IsKeyword("missing") {
		t.Errorf("IsKeyword(missing) = true, want false")
	}
}

func TestBuildDelegateTargets(t *testing.T) {
	idx := buildSampleIndex(t)

	if !idx.IsDelegateTarget("typeName", "IDENT") {
		t.Errorf("typeName should delegate to IDENT (bare, unassigned rule call)")
	}
	if idx.IsDelegateTarget("document", "field") {
		t.Errorf("document should not delegate to field, fields is assigned")
	}
	if idx.IsDelegateTarget("aliasRef", "document") {
		t.Errorf("aliasRef should not register as a delegate target: its element is a cross-reference, not a rule call")
	}
}

func TestBuildDataTypeClassification(t *testing.T) {
	idx := buildSampleIndex(t)

	if !idx.IsDataTypeRule("typeName") {
		t.Errorf("typeName should classify as a data-type rule: it only ever calls the terminal rule IDENT")
	}
	if idx.IsDataTypeRule("document") {
		t.Errorf("document should not classify as a data-type rule: it has assignments")
	}
	if idx.IsDataTypeRule("field") {
		t.Errorf("field should not classify as a data-type rule: it has assignments")
	}
	if idx.IsDataTypeRule("aliasRef") {
		t.Errorf("aliasRef should not classify as a data-type rule: its element is a cross-reference")
	}
	if !idx.IsDataTypeRule("numberLiteral") {
		t.Errorf("numberLiteral should classify as a data-type rule: it declares returns number, overriding its assignment")
	}

	ident, ok := idx.RuleByName("IDENT")
	if !ok {
		t.Fatalf("RuleByName(IDENT) missing")
	}
	if !ident.IsDataTypeRule {
		t.Errorf("terminal rules are always data-type rules")
	}
}

func TestBuildNilGrammar(t *testing.T) {
	if _, err := gr.Build(nil); err == nil {
		t.Errorf("Build(nil) should error")
	}
}

func TestBuildDuplicateRuleRejected(t *testing.T) {
	const src = `
grammar dup

terminal IDENT: /[A-Za-z]+/;

entry top:
    IDENT
    ;

top:
    IDENT
    ;
`
	g, err := langgrammar.Parse("dup.glang", []byte(src))
	if err != nil {
		t.Fatalf("langgrammar.Parse: %v", err)
	}
	if _, err := gr.Build(g); err == nil {
		t.Errorf("Build should reject a grammar with a duplicate rule declaration")
	}
}
