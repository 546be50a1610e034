// Package compiled implements the compiled LR parser backend (C4b,
// spec.md §4.4b): a tree-sitter grammar compiled to wasm, run in-process
// via wazero, with incremental reparse and periodic full-parse
// verification. Generalized from the teacher's internal/syntax +
// internal/syntax/treesitter, which linked exactly one embedded Thrift
// wasm blob: this package takes a LanguageArtifact (wasm bytes, checksum,
// field map) the translator produces for any grammar instead.
package compiled

import (
	"context"
	"fmt"

	"github.com/kpumuk/langforge/internal/backend/compiled/treesitter"
	"github.com/kpumuk/langforge/internal/gr"
	"github.com/kpumuk/langforge/internal/langgrammar"
	"github.com/kpumuk/langforge/internal/parseradapter"
	"github.com/kpumuk/langforge/internal/stree"
	"github.com/kpumuk/langforge/internal/text"
)

// Adapter implements parseradapter.IncrementalAdapter for the compiled
// backend. SupportsIncremental is always true (spec.md §4.4b).
type Adapter struct {
	artifact LanguageArtifact
	idx      *gr.Index
	config   parseradapter.Config
}

var _ parseradapter.IncrementalAdapter = (*Adapter)(nil)

// New constructs an adapter for the given compiled-grammar artifact.
func New(artifact LanguageArtifact) *Adapter {
	return &Adapter{artifact: artifact}
}

func (a *Adapter) Configure(ctx context.Context, grammar *langgrammar.Grammar, config parseradapter.Config) error {
	idx, err := gr.Build(grammar)
	if err != nil {
		return fmt.Errorf("compiled backend: build grammar index: %w", err)
	}
	a.idx = idx
	a.config = config
	return nil
}

// Index exposes the grammar index this adapter built at Configure time.
func (a *Adapter) Index() *gr.Index { return a.idx }

func (a *Adapter) newParser() (*treesitter.Parser, error) {
	return treesitter.NewParser(treesitter.Artifact{
		WASM:     a.artifact.WASM,
		Checksum: a.artifact.Checksum,
		Symbol:   a.artifact.Symbol,
	})
}

func (a *Adapter) Parse(ctx context.Context, source []byte, entryRule string) (parseradapter.ParseResult, error) {
	if len(a.artifact.WASM) == 0 && a.artifact.Tables != nil {
		return a.parseFallback(source)
	}

	p, err := a.newParser()
	if err != nil {
		return parseradapter.ParseResult{}, fmt.Errorf("compiled backend: create parser: %w", err)
	}

	rawTree, err := p.Parse(ctx, source, nil)
	if err != nil {
		p.Close()
		return parseradapter.ParseResult{}, fmt.Errorf("compiled backend: parse: %w", err)
	}

	result, err := a.buildParseResult(ctx, p, rawTree, source)
	if err != nil {
		rawTree.Close()
		p.Close()
		return parseradapter.ParseResult{}, err
	}
	result.IncrementalState = &incrementalState{parser: p, tree: rawTree, source: append([]byte(nil), source...)}
	return result, nil
}

func (a *Adapter) buildParseResult(ctx context.Context, p *treesitter.Parser, rawTree *treesitter.Tree, source []byte) (parseradapter.ParseResult, error) {
	flat, err := rawTree.Flatten(ctx)
	if err != nil {
		return parseradapter.ParseResult{}, fmt.Errorf("compiled backend: flatten tree: %w", err)
	}
	root, diags := a.buildRawTree(p, flat, source)
	return parseradapter.ParseResult{Root: stree.WrapRoot(root, source, diags, a.idx)}, nil
}

// parseFallback runs the no-WASM path: lex source, drive tableparser.Run
// against the artifact's pre-built LALR table, and wrap the result the same
// way buildParseResult wraps a live tree-sitter tree. It never returns
// IncrementalState — tableparser.Run has no subtree-reuse facility of its
// own (it's a from-scratch shift-reduce interpreter, see
// internal/backend/compiled/tableparser's package doc), so
// ParseIncremental on a fallback-only artifact always re-parses in full.
func (a *Adapter) parseFallback(source []byte) (parseradapter.ParseResult, error) {
	root, diags, err := parseWithTables(a.idx, a.artifact.FieldMap, a.artifact.Tables, a.artifact.KeywordSymbols, source)
	if err != nil {
		return parseradapter.ParseResult{}, fmt.Errorf("compiled backend: no-WASM fallback: %w", err)
	}
	return parseradapter.ParseResult{Root: stree.WrapRoot(root, source, diags, a.idx)}, nil
}

func (a *Adapter) ParseIncremental(ctx context.Context, source []byte, previousState any, changes []parseradapter.TextChange) (parseradapter.ParseResult, error) {
	if len(a.artifact.WASM) == 0 && a.artifact.Tables != nil {
		return a.parseFallback(source)
	}

	state, ok := previousState.(*incrementalState)
	if !ok || state == nil || state.parser == nil || state.tree == nil {
		return a.Parse(ctx, source, a.config.EntryRule)
	}

	oldLines := text.NewLineIndex(state.source)
	for _, c := range changes {
		edit, err := inputEditFromChange(oldLines, state.source, c)
		if err != nil {
			state.tree.Close()
			state.parser.Close()
			return a.Parse(ctx, source, a.config.EntryRule)
		}
		if err := state.tree.ApplyEdit(ctx, edit); err != nil {
			state.tree.Close()
			state.parser.Close()
			return a.Parse(ctx, source, a.config.EntryRule)
		}
	}

	newTree, err := state.parser.Parse(ctx, source, state.tree)
	if err != nil {
		state.tree.Close()
		state.parser.Close()
		return a.Parse(ctx, source, a.config.EntryRule)
	}
	state.tree.Close()

	result, err := a.buildParseResult(ctx, state.parser, newTree, source)
	if err != nil {
		newTree.Close()
		state.parser.Close()
		return parseradapter.ParseResult{}, err
	}

	nextState := &incrementalState{
		parser:       state.parser,
		tree:         newTree,
		source:       append([]byte(nil), source...),
		reparseCount: state.reparseCount + 1,
	}
	result.IncrementalState = nextState

	// Periodic full-parse verification (spec.md §4.4b's primary correctness
	// property): parseIncremental and parse must produce structurally
	// identical trees. A mismatch here means subtree reuse drifted; fall
	// back to the from-scratch tree rather than serve a diverged one.
	if shouldVerifyWithFullParse(nextState) {
		verifyTree, verifyErr := state.parser.Parse(ctx, source, nil)
		if verifyErr == nil {
			verifyResult, buildErr := a.buildParseResult(ctx, state.parser, verifyTree, source)
			if buildErr == nil && !rootsEquivalent(result.Root, verifyResult.Root) {
				verifyTree.Close()
				return a.Parse(ctx, source, a.config.EntryRule)
			}
			verifyTree.Close()
		}
	}

	return result, nil
}

func rootsEquivalent(a, b stree.Root) bool {
	if a == nil || b == nil {
		return a == b
	}
	return nodesEquivalent(a, b)
}

func nodesEquivalent(a, b stree.Node) bool {
	if a.Kind() != b.Kind() || a.Range() != b.Range() || a.IsError() != b.IsError() || a.IsHidden() != b.IsHidden() {
		return false
	}
	ac, bc := a.Children(), b.Children()
	if len(ac) != len(bc) {
		return false
	}
	for i := range ac {
		if !nodesEquivalent(ac[i], bc[i]) {
			return false
		}
	}
	return true
}

func inputEditFromChange(oldLines *text.LineIndex, oldSource []byte, c parseradapter.TextChange) (treesitter.InputEdit, error) {
	start := c.RangeOffset
	oldEnd := start + text.ByteOffset(c.RangeLength)
	newEnd := start + text.ByteOffset(len(c.Text))

	startPt, err := oldLines.OffsetToPoint(start)
	if err != nil {
		return treesitter.InputEdit{}, err
	}
	oldEndPt, err := oldLines.OffsetToPoint(oldEnd)
	if err != nil {
		return treesitter.InputEdit{}, err
	}

	newSource := append(append(append([]byte(nil), oldSource[:start]...), []byte(c.Text)...), oldSource[oldEnd:]...)
	newLines := text.NewLineIndex(newSource)
	newEndPt, err := newLines.OffsetToPoint(newEnd)
	if err != nil {
		return treesitter.InputEdit{}, err
	}

	return treesitter.InputEdit{
		StartByte:   int(start),
		OldEndByte:  int(oldEnd),
		NewEndByte:  int(newEnd),
		StartPoint:  treesitter.Point{Row: startPt.Line, Column: startPt.Column},
		OldEndPoint: treesitter.Point{Row: oldEndPt.Line, Column: oldEndPt.Column},
		NewEndPoint: treesitter.Point{Row: newEndPt.Line, Column: newEndPt.Column},
	}, nil
}

// GetExpectedTokens truncates the source at offset and reparses, then
// reads off tree-sitter's own MISSING-node recovery: when the grammar's LR
// table has exactly one admissible next symbol, tree-sitter's error
// recovery inserts a MISSING node naming it. The custom wasm ABI (see
// internal/backend/compiled/treesitter) has no exported "parser state at
// offset" query, so this is a heuristic approximation of "walk the
// parse-table state" (spec.md §4.4b) rather than an exhaustive FIRST-set
// enumeration like the interpreted backend's — acceptable per spec.md's
// "heuristic enough to be acceptable" note, since completion scope
// filtering happens above this layer anyway.
func (a *Adapter) GetExpectedTokens(ctx context.Context, source []byte, offset text.ByteOffset) ([]parseradapter.ExpectedToken, error) {
	if int(offset) < 0 || int(offset) > len(source) {
		return nil, fmt.Errorf("offset %d out of range for %d-byte source", offset, len(source))
	}
	if len(a.artifact.WASM) == 0 && a.artifact.Tables != nil {
		// tableparser.Run has no partial-parse/expected-symbol query (unlike
		// tree-sitter's MISSING-node recovery this method reads off below);
		// adding one means exposing ACTION-table lookahead from run.go, which
		// no SPEC_FULL.md component currently needs. Left unsupported rather
		// than faked.
		return nil, fmt.Errorf("compiled backend: no-WASM fallback does not support GetExpectedTokens")
	}
	truncated := source[:offset]

	p, err := a.newParser()
	if err != nil {
		return nil, fmt.Errorf("compiled backend: create parser: %w", err)
	}
	defer p.Close()

	rawTree, err := p.Parse(ctx, truncated, nil)
	if err != nil {
		return nil, fmt.Errorf("compiled backend: parse: %w", err)
	}
	defer rawTree.Close()

	flat, err := rawTree.Flatten(ctx)
	if err != nil {
		return nil, fmt.Errorf("compiled backend: flatten tree: %w", err)
	}

	seen := map[string]bool{}
	var out []parseradapter.ExpectedToken
	for _, f := range flat {
		if !f.IsMissing {
			continue
		}
		kindName := p.NodeKindForID(f.KindID)
		if kindName == "" || seen[kindName] {
			continue
		}
		seen[kindName] = true
		if rule, ok := a.idx.RuleByName(kindName); ok {
			out = append(out, parseradapter.ExpectedToken{Name: rule.Name, Pattern: rule.TerminalPattern})
			continue
		}
		if a.idx.IsKeyword(kindName) {
			out = append(out, parseradapter.ExpectedToken{Name: kindName, IsKeyword: true})
		}
	}
	return out, nil
}

// SupportsIncremental always reports true. On the wasm path ParseIncremental
// reuses unaffected subtrees (spec.md §4.4b); an artifact with no WASM
// re-parses in full on every call (see parseFallback).
func (a *Adapter) SupportsIncremental() bool { return true }

// Dispose is a no-op; per-parse resources are released by the parse/
// reparse paths themselves as trees are replaced.
func (a *Adapter) Dispose() {}
