package stree_test

import (
	"testing"

	"github.com/kpumuk/langforge/internal/diagnostic"
	"github.com/kpumuk/langforge/internal/gr"
	"github.com/kpumuk/langforge/internal/langgrammar"
	"github.com/kpumuk/langforge/internal/stree"
	"github.com/kpumuk/langforge/internal/text"
)

const stmtGlang = `
grammar stmt

hidden terminal WS: /\s+/;
terminal IDENT: /[A-Za-z_][A-Za-z0-9_]*/;
terminal NUMBER: /[0-9]+/;

entry statement:
    "let" name=IDENT "=" value=NUMBER ";"
    ;
`

func buildStmtIndex(t *testing.T) *gr.Index {
	t.Helper()
	g, err := langgrammar.Parse("stmt.glang", []byte(stmtGlang))
	if err != nil {
		t.Fatalf("langgrammar.Parse: %v", err)
	}
	idx, err := gr.Build(g)
	if err != nil {
		t.Fatalf("gr.Build: %v", err)
	}
	return idx
}

func span(start, end int) text.Span {
	return text.Span{Start: text.ByteOffset(start), End: text.ByteOffset(end)}
}

// buildStmtTree builds the RawNode tree for "let x = 42;" — a root statement
// node with keyword, hidden-whitespace, and field-assigned leaves as direct
// children, the shape either backend hands to WrapRoot.
func buildStmtTree(t *testing.T) (*stree.RawNode, []byte, *gr.Index) {
	t.Helper()
	idx := buildStmtIndex(t)
	fullText := []byte("let x = 42;")

	statementSym := mustSymbol(t, idx, "statement")
	identSym := mustSymbol(t, idx, "IDENT")
	numberSym := mustSymbol(t, idx, "NUMBER")
	wsSym := mustSymbol(t, idx, "WS")

	root := &stree.RawNode{
		Kind: statementSym,
		Span: span(0, 11),
		Children: []*stree.RawNode{
			{Kind: gr.NoSymbol, Span: span(0, 3), IsKeyword: true},
			{Kind: wsSym, Span: span(3, 4), IsHidden: true, HasTokenType: true, TokenType: wsSym},
			{Kind: identSym, Span: span(4, 5), HasTokenType: true, TokenType: identSym, Field: "name"},
			{Kind: wsSym, Span: span(5, 6), IsHidden: true, HasTokenType: true, TokenType: wsSym},
			{Kind: gr.NoSymbol, Span: span(6, 7), IsKeyword: true},
			{Kind: wsSym, Span: span(7, 8), IsHidden: true, HasTokenType: true, TokenType: wsSym},
			{Kind: numberSym, Span: span(8, 10), HasTokenType: true, TokenType: numberSym, Field: "value"},
			{Kind: gr.NoSymbol, Span: span(10, 11), IsKeyword: true},
		},
	}
	return root, fullText, idx
}

func mustSymbol(t *testing.T, idx *gr.Index, name string) gr.SymbolID {
	t.Helper()
	r, ok := idx.RuleByName(name)
	if !ok {
		t.Fatalf("RuleByName(%q) missing", name)
	}
	return r.Symbol
}

func TestWrapRootBasics(t *testing.T) {
	raw, fullText, idx := buildStmtTree(t)
	root := stree.WrapRoot(raw, fullText, nil, idx)

	if got := root.KindName(); got != "statement" {
		t.Errorf("root.KindName() = %q, want %q", got, "statement")
	}
	if root.Offset() != 0 || root.End() != 11 || root.Length() != 11 {
		t.Errorf("root span = [%d,%d) len %d, want [0,11) len 11", root.Offset(), root.End(), root.Length())
	}
	if string(root.Text()) != "let x = 42;" {
		t.Errorf("root.Text() = %q, want %q", root.Text(), "let x = 42;")
	}
	if root.Parent() != nil {
		t.Errorf("root.Parent() should be nil")
	}
	if root.IsLeaf() {
		t.Errorf("root should not be a leaf")
	}
	if root.FullText() == nil || string(root.FullText()) != string(fullText) {
		t.Errorf("root.FullText() mismatch")
	}
	if root.Index() != idx {
		t.Errorf("root.Index() should return the index it was built with")
	}
}

func TestWrapRootWrapperIdentity(t *testing.T) {
	raw, fullText, idx := buildStmtTree(t)
	root := stree.WrapRoot(raw, fullText, nil, idx)

	a := root.Children()[2]
	b := root.Children()[2]
	if a != b {
		t.Errorf("repeated wraps of the same RawNode should return the identical Node (spec.md wrapper identity)")
	}
}

func TestNodeFieldsAndChildLookup(t *testing.T) {
	raw, fullText, idx := buildStmtTree(t)
	root := stree.WrapRoot(raw, fullText, nil, idx)

	name, ok := root.ChildForField("name")
	if !ok {
		t.Fatalf("ChildForField(name) missing")
	}
	if string(name.Text()) != "x" {
		t.Errorf("name leaf text = %q, want %q", name.Text(), "x")
	}
	if name.FieldName() != "name" {
		t.Errorf("name.FieldName() = %q, want %q", name.FieldName(), "name")
	}
	if !name.IsLeaf() {
		t.Errorf("name leaf should be a leaf")
	}
	if name.Parent() != root {
		t.Errorf("name.Parent() should be root")
	}
	if name.Root() != root {
		t.Errorf("name.Root() should return the same Root")
	}

	names := root.ChildrenForField("name")
	if len(names) != 1 {
		t.Fatalf("ChildrenForField(name) = %d, want 1", len(names))
	}

	if _, ok := root.ChildForField("missing"); ok {
		t.Errorf("ChildForField(missing) should miss")
	}

	letKw := root.Children()[0]
	if letKw.FieldName() != "" {
		t.Errorf("unassigned keyword FieldName() = %q, want empty", letKw.FieldName())
	}
	if !letKw.IsKeyword() {
		t.Errorf("let should be a keyword")
	}
	if string(letKw.Text()) != "let" {
		t.Errorf("let keyword text = %q, want %q", letKw.Text(), "let")
	}
}

func TestSiblingNavigationSkipsHidden(t *testing.T) {
	raw, fullText, idx := buildStmtTree(t)
	root := stree.WrapRoot(raw, fullText, nil, idx)

	name, _ := root.ChildForField("name")

	prevVisible := stree.PreviousSibling(name, false)
	if prevVisible == nil || string(prevVisible.Text()) != "let" {
		t.Errorf("PreviousSibling(name, false) = %v, want the 'let' keyword", prevVisible)
	}
	prevAny := stree.PreviousSibling(name, true)
	if prevAny == nil || !prevAny.IsHidden() {
		t.Errorf("PreviousSibling(name, true) should return the hidden whitespace node")
	}

	nextVisible := stree.NextSibling(name, false)
	if nextVisible == nil || string(nextVisible.Text()) != "=" {
		t.Errorf("NextSibling(name, false) = %v, want the '=' keyword", nextVisible)
	}
}

func TestNodesBetween(t *testing.T) {
	raw, fullText, idx := buildStmtTree(t)
	root := stree.WrapRoot(raw, fullText, nil, idx)

	kids := root.Children()
	between := stree.NodesBetween(kids[0], kids[4])
	if len(between) != 3 {
		t.Fatalf("NodesBetween(let, '=') = %d nodes, want 3 (ws, name, ws)", len(between))
	}

	if got := stree.NodesBetween(kids[0], kids[1]); got != nil {
		t.Errorf("adjacent siblings should have nothing between them, got %v", got)
	}
}

func TestDescendantsAndLeaves(t *testing.T) {
	raw, fullText, idx := buildStmtTree(t)
	root := stree.WrapRoot(raw, fullText, nil, idx)

	all := stree.Descendants(root)
	if len(all) != 1+len(raw.Children) {
		t.Errorf("Descendants() = %d nodes, want %d (root + children)", len(all), 1+len(raw.Children))
	}

	leaves := stree.Leaves(root)
	if len(leaves) != len(raw.Children) {
		t.Errorf("Leaves() = %d, want %d", len(leaves), len(raw.Children))
	}
}

func TestFindLeafAtOffsetAndLeafBefore(t *testing.T) {
	raw, fullText, idx := buildStmtTree(t)
	root := stree.WrapRoot(raw, fullText, nil, idx)

	leaf := stree.FindLeafAtOffset(root, 4)
	if leaf == nil || string(leaf.Text()) != "x" {
		t.Errorf("FindLeafAtOffset(4) = %v, want the name leaf", leaf)
	}

	// Boundary shared by two tokens: the later token wins.
	boundary := stree.FindLeafAtOffset(root, 5)
	if boundary == nil || !boundary.IsHidden() {
		t.Errorf("FindLeafAtOffset(5) should land on the following hidden whitespace token")
	}

	before := stree.LeafBefore(root, 5)
	if before == nil || string(before.Text()) != "x" {
		t.Errorf("LeafBefore(5) = %v, want the name leaf ending at 5", before)
	}
}

func TestFindLeafAtOffsetSkipsEmptyErrorLeaves(t *testing.T) {
	idx := buildStmtIndex(t)
	fullText := []byte("x")
	errLeaf := &stree.RawNode{Kind: gr.NoSymbol, Span: span(1, 1), IsError: true}
	nameLeaf := &stree.RawNode{Kind: mustSymbol(t, idx, "IDENT"), Span: span(0, 1), HasTokenType: true}
	root := &stree.RawNode{Kind: gr.NoSymbol, Span: span(0, 1), Children: []*stree.RawNode{nameLeaf, errLeaf}}

	wrapped := stree.WrapRoot(root, fullText, nil, idx)
	found := stree.FindLeafAtOffset(wrapped, 1)
	if found == nil || found.IsError() {
		t.Errorf("FindLeafAtOffset should skip the empty error leaf at the document end, got %v", found)
	}
}

func TestDeclarationOffset(t *testing.T) {
	raw, fullText, idx := buildStmtTree(t)
	root := stree.WrapRoot(raw, fullText, nil, idx)

	isNameByte := func(b byte) bool {
		return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
	}

	// Offset 5 sits right after "x" (a space); DeclarationOffset should back
	// up to 4 so an end-of-identifier query still lands on "x".
	if got := stree.DeclarationOffset(root, 5, isNameByte); got != 4 {
		t.Errorf("DeclarationOffset(5) = %d, want 4", got)
	}
	// Offset 4 is "x" itself: no adjustment needed.
	if got := stree.DeclarationOffset(root, 4, isNameByte); got != 4 {
		t.Errorf("DeclarationOffset(4) = %d, want 4", got)
	}
}

func TestFindComment(t *testing.T) {
	idx := buildStmtIndex(t)
	commentSym := mustSymbol(t, idx, "WS") // stand-in terminal used only as the "comment kind" under test
	fullText := []byte("# x")
	commentLeaf := &stree.RawNode{Kind: commentSym, Span: span(0, 1), IsHidden: true, HasTokenType: true, TokenType: commentSym}
	nameLeaf := &stree.RawNode{Kind: mustSymbol(t, idx, "IDENT"), Span: span(2, 3), HasTokenType: true, TokenType: mustSymbol(t, idx, "IDENT")}
	root := &stree.RawNode{Kind: gr.NoSymbol, Span: span(0, 3), Children: []*stree.RawNode{commentLeaf, nameLeaf}}

	wrapped := stree.WrapRoot(root, fullText, nil, idx)
	name := wrapped.Children()[1]

	commentKinds := map[gr.SymbolID]bool{commentSym: true}
	comment := stree.FindComment(name, commentKinds)
	if comment == nil || string(comment.Text()) != "#" {
		t.Errorf("FindComment = %v, want the preceding comment leaf", comment)
	}

	if stree.FindComment(wrapped.Children()[0], commentKinds) != nil {
		t.Errorf("the first child has no preceding sibling, FindComment should return nil")
	}
}

func TestRootDiagnostics(t *testing.T) {
	raw, fullText, idx := buildStmtTree(t)
	diags := []diagnostic.Diagnostic{{Message: "example", Severity: diagnostic.SeverityWarning}}
	root := stree.WrapRoot(raw, fullText, diags, idx)

	if len(root.Diagnostics()) != 1 || root.Diagnostics()[0].Message != "example" {
		t.Errorf("root.Diagnostics() = %+v, want the diagnostics passed to WrapRoot", root.Diagnostics())
	}
}
