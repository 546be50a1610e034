package compiled

import (
	"testing"

	"github.com/kpumuk/langforge/internal/gr"
	"github.com/kpumuk/langforge/internal/parseradapter"
	"github.com/kpumuk/langforge/internal/stree"
	"github.com/kpumuk/langforge/internal/text"
)

// The compiled backend's Parse/ParseIncremental/GetExpectedTokens all drive
// a live tree-sitter wasm module through wazero (internal/backend/compiled/
// treesitter), which this environment has no compiled grammar artifact to
// exercise (see DESIGN.md's note on the still-missing thrift.wasm). This
// file instead exercises the package's pure, artifact-independent helpers:
// the incremental-state verification cadence, the full-parse-vs-incremental
// tree comparison, and the TextChange-to-InputEdit conversion.

func rawLeaf(kind gr.SymbolID, start, end int) *stree.RawNode {
	return &stree.RawNode{
		Kind:         kind,
		Span:         text.Span{Start: text.ByteOffset(start), End: text.ByteOffset(end)},
		HasTokenType: true,
		TokenType:    kind,
	}
}

func TestShouldVerifyWithFullParse(t *testing.T) {
	fullParseVerificationEvery = 4
	defer func() { fullParseVerificationEvery = 256 }()

	cases := []struct {
		state *incrementalState
		want  bool
	}{
		{nil, false},
		{&incrementalState{reparseCount: 0}, false},
		{&incrementalState{reparseCount: 1}, false},
		{&incrementalState{reparseCount: 3}, false},
		{&incrementalState{reparseCount: 4}, true},
		{&incrementalState{reparseCount: 8}, true},
	}
	for _, c := range cases {
		if got := shouldVerifyWithFullParse(c.state); got != c.want {
			t.Errorf("shouldVerifyWithFullParse(%+v) = %v, want %v", c.state, got, c.want)
		}
	}
}

func TestNodesEquivalentIdenticalTrees(t *testing.T) {
	build := func() *stree.RawNode {
		return &stree.RawNode{
			Kind: 1,
			Span: text.Span{Start: 0, End: 10},
			Children: []*stree.RawNode{
				rawLeaf(2, 0, 3),
				rawLeaf(3, 3, 10),
			},
		}
	}
	a := stree.WrapRoot(build(), make([]byte, 10), nil, nil)
	b := stree.WrapRoot(build(), make([]byte, 10), nil, nil)
	if !rootsEquivalent(a, b) {
		t.Errorf("rootsEquivalent = false for two structurally identical trees")
	}
}

func TestNodesEquivalentDetectsKindDivergence(t *testing.T) {
	a := stree.WrapRoot(&stree.RawNode{Kind: 1, Span: text.Span{Start: 0, End: 3}}, make([]byte, 3), nil, nil)
	b := stree.WrapRoot(&stree.RawNode{Kind: 2, Span: text.Span{Start: 0, End: 3}}, make([]byte, 3), nil, nil)
	if rootsEquivalent(a, b) {
		t.Errorf("rootsEquivalent = true for trees with different root kinds")
	}
}

func TestNodesEquivalentDetectsChildCountDivergence(t *testing.T) {
	a := stree.WrapRoot(&stree.RawNode{
		Kind: 1, Span: text.Span{Start: 0, End: 6},
		Children: []*stree.RawNode{rawLeaf(2, 0, 3), rawLeaf(2, 3, 6)},
	}, make([]byte, 6), nil, nil)
	b := stree.WrapRoot(&stree.RawNode{
		Kind: 1, Span: text.Span{Start: 0, End: 6},
		Children: []*stree.RawNode{rawLeaf(2, 0, 6)},
	}, make([]byte, 6), nil, nil)
	if rootsEquivalent(a, b) {
		t.Errorf("rootsEquivalent = true for trees with a different number of children")
	}
}

func TestNodesEquivalentDetectsErrorFlagDivergence(t *testing.T) {
	a := stree.WrapRoot(&stree.RawNode{Kind: 1, Span: text.Span{Start: 0, End: 3}, IsError: false}, make([]byte, 3), nil, nil)
	b := stree.WrapRoot(&stree.RawNode{Kind: 1, Span: text.Span{Start: 0, End: 3}, IsError: true}, make([]byte, 3), nil, nil)
	if rootsEquivalent(a, b) {
		t.Errorf("rootsEquivalent = true when one tree's root is an error node and the other's isn't")
	}
}

func TestRootsEquivalentNilHandling(t *testing.T) {
	if !rootsEquivalent(nil, nil) {
		t.Errorf("rootsEquivalent(nil, nil) = false, want true")
	}
	a := stree.WrapRoot(&stree.RawNode{Kind: 1}, nil, nil, nil)
	if rootsEquivalent(a, nil) || rootsEquivalent(nil, a) {
		t.Errorf("rootsEquivalent should treat one nil and one non-nil root as non-equivalent")
	}
}

func TestInputEditFromChangeInsertion(t *testing.T) {
	old := []byte("let x = 1;\nlet y = 2;\n")
	oldLines := text.NewLineIndex(old)

	// Insert "10" in place of "1" on the first line.
	change := parseradapter.TextChange{RangeOffset: 8, RangeLength: 1, Text: "10"}
	edit, err := inputEditFromChange(oldLines, old, change)
	if err != nil {
		t.Fatalf("inputEditFromChange: %v", err)
	}
	if edit.StartByte != 8 {
		t.Errorf("StartByte = %d, want 8", edit.StartByte)
	}
	if edit.OldEndByte != 9 {
		t.Errorf("OldEndByte = %d, want 9", edit.OldEndByte)
	}
	if edit.NewEndByte != 10 {
		t.Errorf("NewEndByte = %d, want 10", edit.NewEndByte)
	}
	if edit.StartPoint.Row != 0 || edit.StartPoint.Column != 8 {
		t.Errorf("StartPoint = %+v, want row 0 col 8", edit.StartPoint)
	}
}

func TestInputEditFromChangeAcrossLines(t *testing.T) {
	old := []byte("one\ntwo\nthree\n")
	oldLines := text.NewLineIndex(old)

	// Replace "two\nthree" with "TWO".
	start := 4
	length := len("two\nthree")
	change := parseradapter.TextChange{RangeOffset: text.ByteOffset(start), RangeLength: length, Text: "TWO"}
	edit, err := inputEditFromChange(oldLines, old, change)
	if err != nil {
		t.Fatalf("inputEditFromChange: %v", err)
	}
	if edit.StartPoint.Row != 1 {
		t.Errorf("StartPoint.Row = %d, want 1", edit.StartPoint.Row)
	}
	if edit.OldEndPoint.Row != 2 {
		t.Errorf("OldEndPoint.Row = %d, want 2 (the old end falls on the 'three' line)", edit.OldEndPoint.Row)
	}
	if edit.NewEndPoint.Row != 1 {
		t.Errorf("NewEndPoint.Row = %d, want 1 ('TWO' has no newline, so the edit's new end stays on the same line it started)", edit.NewEndPoint.Row)
	}
}

func TestInputEditFromChangeOutOfRangeOffset(t *testing.T) {
	old := []byte("short")
	oldLines := text.NewLineIndex(old)
	change := parseradapter.TextChange{RangeOffset: 100, RangeLength: 0, Text: "x"}
	if _, err := inputEditFromChange(oldLines, old, change); err == nil {
		t.Errorf("inputEditFromChange with an out-of-range RangeOffset should error")
	}
}
