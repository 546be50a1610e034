package astbuilder_test

import (
	"fmt"
	"strconv"
	"testing"

	"github.com/kpumuk/langforge/internal/astbuilder"
	"github.com/kpumuk/langforge/internal/gr"
	"github.com/kpumuk/langforge/internal/langgrammar"
	"github.com/kpumuk/langforge/internal/stree"
	"github.com/kpumuk/langforge/internal/text"
)

const docGlang = `
grammar doc

hidden terminal WS: /\s+/;
terminal IDENT: /[A-Za-z_][A-Za-z0-9_]*/;
terminal NUMBER: /[0-9]+/;

entry document:
    name=IDENT "{" fields=field* "}" flagged?="final" ref=[document] refs+=[document]*
    ;

field:
    name=IDENT ":" type=typeName "=" value=NUMBER ";"
    ;

typeName:
    IDENT
    ;

element:
    person
  | greeting
    ;

person:
    name=IDENT
    ;

greeting:
    "hi" name=IDENT
    ;

qualifiedName:
    IDENT IDENT
    ;
`

func buildDocIndex(t *testing.T) *gr.Index {
	t.Helper()
	g, err := langgrammar.Parse("doc.glang", []byte(docGlang))
	if err != nil {
		t.Fatalf("langgrammar.Parse: %v", err)
	}
	idx, err := gr.Build(g)
	if err != nil {
		t.Fatalf("gr.Build: %v", err)
	}
	return idx
}

func mustSym(t *testing.T, idx *gr.Index, name string) gr.SymbolID {
	t.Helper()
	r, ok := idx.RuleByName(name)
	if !ok {
		t.Fatalf("RuleByName(%q) missing", name)
	}
	return r.Symbol
}

func mustSlot(t *testing.T, idx *gr.Index, rule, property string) int {
	t.Helper()
	a, ok := idx.AssignmentByProperty(rule, property)
	if !ok {
		t.Fatalf("AssignmentByProperty(%q, %q) missing", rule, property)
	}
	return int(a.Slot)
}

// tokenSpans concatenates tokens with no separator and returns the full text
// plus each token's span, computed by a running cursor — avoids hand-counted
// byte offsets drifting out of sync with the token list.
func tokenSpans(tokens ...string) (string, []text.Span) {
	var full string
	spans := make([]text.Span, len(tokens))
	cursor := 0
	for i, tok := range tokens {
		full += tok
		spans[i] = text.Span{Start: text.ByteOffset(cursor), End: text.ByteOffset(cursor + len(tok))}
		cursor += len(tok)
	}
	return full, spans
}

func leaf(kind gr.SymbolID, sp text.Span, field string) *stree.RawNode {
	return &stree.RawNode{Kind: kind, Span: sp, HasTokenType: true, TokenType: kind, Field: field}
}

func keyword(sp text.Span) *stree.RawNode {
	return &stree.RawNode{Kind: gr.NoSymbol, Span: sp, IsKeyword: true}
}

func TestBuildFieldDataTypeAndConverter(t *testing.T) {
	idx := buildDocIndex(t)
	ident, num, typeNameSym, fieldSym := mustSym(t, idx, "IDENT"), mustSym(t, idx, "NUMBER"), mustSym(t, idx, "typeName"), mustSym(t, idx, "field")

	fullText, sp := tokenSpans("n", ":", "s", "=", "5", ";")
	typeComposite := &stree.RawNode{
		Kind:     typeNameSym,
		Span:     sp[2],
		Field:    "type",
		Children: []*stree.RawNode{leaf(ident, sp[2], "")},
	}
	root := &stree.RawNode{
		Kind: fieldSym,
		Span: text.Span{Start: 0, End: text.ByteOffset(len(fullText))},
		Children: []*stree.RawNode{
			leaf(ident, sp[0], "name"),
			keyword(sp[1]),
			typeComposite,
			keyword(sp[3]),
			leaf(num, sp[4], "value"),
			keyword(sp[5]),
		},
	}

	reg := astbuilder.NewValueConverterRegistry(map[string]astbuilder.ValueConverter{
		"NUMBER": func(text string) (astbuilder.Value, error) {
			n, err := strconv.Atoi(text)
			if err != nil {
				return nil, err
			}
			return n, nil
		},
	})
	b := astbuilder.New(idx, astbuilder.WithValueConverters(reg))
	result := b.Build(stree.WrapRoot(root, []byte(fullText), nil, idx))

	node, ok := result.Value.(*astbuilder.Node)
	if !ok {
		t.Fatalf("result.Value = %T, want *astbuilder.Node", result.Value)
	}
	if node.TypeName != "field" {
		t.Errorf("node.TypeName = %q, want %q", node.TypeName, "field")
	}
	if got := node.Get(mustSlot(t, idx, "field", "name")); got != "n" {
		t.Errorf("name slot = %v, want %q", got, "n")
	}
	if got := node.Get(mustSlot(t, idx, "field", "type")); got != "s" {
		t.Errorf("type slot = %v, want %q (its single-child typeName wrapper unwraps to the bare IDENT leaf, which has no registered converter)", got, "s")
	}
	if got := node.Get(mustSlot(t, idx, "field", "value")); got != 5 {
		t.Errorf("value slot = %v (%T), want int 5", got, got)
	}
	if len(result.Diagnostics) != 0 {
		t.Errorf("Diagnostics = %v, want none", result.Diagnostics)
	}
}

func TestBuildConverterErrorAppendsDiagnosticAndKeepsText(t *testing.T) {
	idx := buildDocIndex(t)
	ident, num, typeNameSym, fieldSym := mustSym(t, idx, "IDENT"), mustSym(t, idx, "NUMBER"), mustSym(t, idx, "typeName"), mustSym(t, idx, "field")

	fullText, sp := tokenSpans("n", ":", "s", "=", "abc", ";")
	typeComposite := &stree.RawNode{Kind: typeNameSym, Span: sp[2], Field: "type", Children: []*stree.RawNode{leaf(ident, sp[2], "")}}
	root := &stree.RawNode{
		Kind: fieldSym,
		Span: text.Span{Start: 0, End: text.ByteOffset(len(fullText))},
		Children: []*stree.RawNode{
			leaf(ident, sp[0], "name"),
			keyword(sp[1]),
			typeComposite,
			keyword(sp[3]),
			leaf(num, sp[4], "value"),
			keyword(sp[5]),
		},
	}

	reg := astbuilder.NewValueConverterRegistry(map[string]astbuilder.ValueConverter{
		"NUMBER": func(text string) (astbuilder.Value, error) {
			return nil, fmt.Errorf("not a number: %s", text)
		},
	})
	result := astbuilder.New(idx, astbuilder.WithValueConverters(reg)).Build(stree.WrapRoot(root, []byte(fullText), nil, idx))

	node := result.Value.(*astbuilder.Node)
	if got := node.Get(mustSlot(t, idx, "field", "value")); got != "abc" {
		t.Errorf("value slot on converter error = %v, want the raw text %q", got, "abc")
	}
	if len(result.Diagnostics) != 1 {
		t.Fatalf("Diagnostics = %d entries, want 1", len(result.Diagnostics))
	}
}

func TestBuildListCrossReferenceAndExistsFlag(t *testing.T) {
	idx := buildDocIndex(t)
	ident, num, documentSym, fieldSym := mustSym(t, idx, "IDENT"), mustSym(t, idx, "NUMBER"), mustSym(t, idx, "document"), mustSym(t, idx, "field")

	fullText, sp := tokenSpans(
		"doc", "{",
		"a", ":", "ta", "=", "1", ";", // field 1 — multiple non-hidden children, so it is
		"b", ":", "tb", "=", "2", ";", // NOT collapsed by unwrapFieldWrapper's single-child rule
		"}", "final", "r0", "r1", "r2",
	)
	// indices: 0 doc, 1 {, 2 a, 3 :, 4 ta, 5 =, 6 1, 7 ;, 8 b, 9 :, 10 tb, 11 =, 12 2, 13 ;,
	//          14 }, 15 final, 16 r0, 17 r1, 18 r2
	buildField := func(nameIdx, typeIdx, valueIdx int) *stree.RawNode {
		return &stree.RawNode{
			Kind:  fieldSym,
			Span:  text.Span{Start: sp[nameIdx].Start, End: sp[valueIdx].End},
			Field: "fields",
			Children: []*stree.RawNode{
				leaf(ident, sp[nameIdx], "name"),
				leaf(ident, sp[typeIdx], "type"), // bare, unwrapped target: typeName's own ST node is elided here for brevity
				leaf(num, sp[valueIdx], "value"),
			},
		}
	}
	field1 := buildField(2, 4, 6)
	field2 := buildField(8, 10, 12)

	root := &stree.RawNode{
		Kind: documentSym,
		Span: text.Span{Start: 0, End: text.ByteOffset(len(fullText))},
		Children: []*stree.RawNode{
			leaf(ident, sp[0], "name"),
			keyword(sp[1]),
			field1,
			field2,
			keyword(sp[14]),
			keyword(sp[15]), // "final" — present, satisfies the flagged ?= assignment
			leaf(ident, sp[16], "ref"),
			leaf(ident, sp[17], "refs"),
			leaf(ident, sp[18], "refs"),
		},
	}

	result := astbuilder.New(idx).Build(stree.WrapRoot(root, []byte(fullText), nil, idx))
	node := result.Value.(*astbuilder.Node)

	fieldsSlot := mustSlot(t, idx, "document", "fields")
	fields, ok := node.Get(fieldsSlot).([]astbuilder.Value)
	if !ok || len(fields) != 2 {
		t.Fatalf("fields slot = %v, want a 2-element list", node.Get(fieldsSlot))
	}
	if f0, ok := fields[0].(*astbuilder.Node); !ok || f0.Get(mustSlot(t, idx, "field", "name")) != "a" {
		t.Errorf("fields[0] = %v, want field node named \"a\"", fields[0])
	}

	flaggedSlot := mustSlot(t, idx, "document", "flagged")
	if got := node.Get(flaggedSlot); got != true {
		t.Errorf("flagged slot = %v, want true", got)
	}

	refSlot := mustSlot(t, idx, "document", "ref")
	ref, ok := node.Get(refSlot).(*astbuilder.Reference)
	if !ok {
		t.Fatalf("ref slot = %T, want *astbuilder.Reference", node.Get(refSlot))
	}
	if ref.RefText != "r0" || ref.Resolved != nil {
		t.Errorf("ref = %+v, want RefText \"r0\" and an unresolved reference (deferred linker)", ref)
	}

	refsSlot := mustSlot(t, idx, "document", "refs")
	multi, ok := node.Get(refsSlot).(*astbuilder.MultiReference)
	if !ok || len(multi.Items) != 2 {
		t.Fatalf("refs slot = %v, want a 2-item MultiReference", node.Get(refsSlot))
	}
	if multi.Items[0].RefText != "r1" || multi.Items[1].RefText != "r2" {
		t.Errorf("refs texts = %q, %q, want \"r1\", \"r2\"", multi.Items[0].RefText, multi.Items[1].RefText)
	}

	// Container back-links (spec.md §4.6 step 7).
	f0 := fields[0].(*astbuilder.Node)
	if f0.Container != node || f0.ContainerProperty != "fields" || !f0.HasContainerIndex || f0.ContainerIndex != 0 {
		t.Errorf("fields[0] container link = %+v, want container=node property=fields index=0", f0)
	}
	f1 := fields[1].(*astbuilder.Node)
	if f1.ContainerIndex != 1 {
		t.Errorf("fields[1].ContainerIndex = %d, want 1", f1.ContainerIndex)
	}
	if node.Container != nil {
		t.Errorf("root node should have a nil Container")
	}
}

func TestBuildExistsFlagAbsentWhenChildMissing(t *testing.T) {
	idx := buildDocIndex(t)
	ident, documentSym := mustSym(t, idx, "IDENT"), mustSym(t, idx, "document")

	fullText, sp := tokenSpans("doc", "{", "}")
	root := &stree.RawNode{
		Kind: documentSym,
		Span: text.Span{Start: 0, End: text.ByteOffset(len(fullText))},
		Children: []*stree.RawNode{
			leaf(ident, sp[0], "name"),
			keyword(sp[1]),
			keyword(sp[2]),
			// no "final" keyword, no fields, no ref/refs children
		},
	}

	result := astbuilder.New(idx).Build(stree.WrapRoot(root, []byte(fullText), nil, idx))
	node := result.Value.(*astbuilder.Node)

	if got := node.Get(mustSlot(t, idx, "document", "flagged")); got != false {
		t.Errorf("flagged slot = %v, want false", got)
	}
	fieldsSlot := mustSlot(t, idx, "document", "fields")
	fields, ok := node.Get(fieldsSlot).([]astbuilder.Value)
	if !ok || len(fields) != 0 {
		t.Errorf("fields slot = %v, want a non-nil empty list (spec.md mandatory default)", node.Get(fieldsSlot))
	}
	refsSlot := mustSlot(t, idx, "document", "refs")
	multi, ok := node.Get(refsSlot).(*astbuilder.MultiReference)
	if !ok {
		t.Fatalf("refs slot = %T, want *astbuilder.MultiReference even with no matches", node.Get(refsSlot))
	}
	if len(multi.Items) != 0 {
		t.Errorf("refs Items = %d, want 0", len(multi.Items))
	}
}

func TestBuildDelegateTypeOverride(t *testing.T) {
	idx := buildDocIndex(t)
	ident, elementSym, personSym := mustSym(t, idx, "IDENT"), mustSym(t, idx, "element"), mustSym(t, idx, "person")

	fullText, sp := tokenSpans("alice")
	personNode := &stree.RawNode{
		Kind:     personSym,
		Span:     sp[0],
		Children: []*stree.RawNode{leaf(ident, sp[0], "name")},
	}
	elementNode := &stree.RawNode{
		Kind:     elementSym,
		Span:     sp[0],
		Children: []*stree.RawNode{personNode}, // bare, unassigned — a delegate-target child
	}

	result := astbuilder.New(idx).Build(stree.WrapRoot(elementNode, []byte(fullText), nil, idx))
	node := result.Value.(*astbuilder.Node)

	if node.TypeName != "person" {
		t.Errorf("node.TypeName = %q, want %q (type override via delegate target)", node.TypeName, "person")
	}
	if got := node.Get(mustSlot(t, idx, "person", "name")); got != "alice" {
		t.Errorf("name slot = %v, want %q", got, "alice")
	}
}

func TestBuildDataTypeRootProducesFlatString(t *testing.T) {
	idx := buildDocIndex(t)
	ident, qualifiedSym, wsSym := mustSym(t, idx, "IDENT"), mustSym(t, idx, "qualifiedName"), mustSym(t, idx, "WS")

	fullText, sp := tokenSpans("pkg", ".", "Name")
	root := &stree.RawNode{
		Kind: qualifiedSym,
		Span: text.Span{Start: 0, End: text.ByteOffset(len(fullText))},
		Children: []*stree.RawNode{
			leaf(ident, sp[0], ""),
			{Kind: wsSym, Span: sp[1], IsHidden: true, HasTokenType: true, TokenType: wsSym},
			leaf(ident, sp[2], ""),
		},
	}

	result := astbuilder.New(idx).Build(stree.WrapRoot(root, []byte(fullText), nil, idx))
	if got, ok := result.Value.(string); !ok || got != "pkgName" {
		t.Errorf("result.Value = %v (%T), want the concatenated, hidden-trivia-skipping string %q", result.Value, result.Value, "pkgName")
	}
}

func TestFindASTNodeClimbsToNearestAncestor(t *testing.T) {
	idx := buildDocIndex(t)
	ident, documentSym, wsSym := mustSym(t, idx, "IDENT"), mustSym(t, idx, "document"), mustSym(t, idx, "WS")

	fullText, sp := tokenSpans("doc", " ", "{", "}")
	hiddenWS := &stree.RawNode{Kind: wsSym, Span: sp[1], IsHidden: true, HasTokenType: true, TokenType: wsSym}
	root := &stree.RawNode{
		Kind: documentSym,
		Span: text.Span{Start: 0, End: text.ByteOffset(len(fullText))},
		Children: []*stree.RawNode{
			leaf(ident, sp[0], "name"),
			hiddenWS,
			keyword(sp[2]),
			keyword(sp[3]),
		},
	}

	wrapped := stree.WrapRoot(root, []byte(fullText), nil, idx)
	result := astbuilder.New(idx).Build(wrapped)

	wsNode := wrapped.Children()[1]
	found := result.FindASTNode(wsNode)
	if found == nil || found.TypeName != "document" {
		t.Errorf("FindASTNode(hidden WS leaf) = %v, want the document AST node", found)
	}
}
