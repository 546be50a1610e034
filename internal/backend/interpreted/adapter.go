package interpreted

import (
	"context"
	"fmt"

	"github.com/kpumuk/langforge/internal/gr"
	"github.com/kpumuk/langforge/internal/langgrammar"
	"github.com/kpumuk/langforge/internal/parseradapter"
	"github.com/kpumuk/langforge/internal/stree"
	"github.com/kpumuk/langforge/internal/text"
)

// Adapter implements parseradapter.Adapter for the interpreted backend.
// SupportsIncremental is always false (spec.md §4.3): every Parse call
// retokenizes and reparses the document from scratch.
type Adapter struct {
	grammar *langgrammar.Grammar
	idx     *gr.Index
	an      *analysis
	lexer   *runtimeLexer
	config  parseradapter.Config
}

var _ parseradapter.Adapter = (*Adapter)(nil)

// New constructs an unconfigured interpreted-backend adapter.
func New() *Adapter {
	return &Adapter{}
}

func (a *Adapter) Configure(ctx context.Context, grammar *langgrammar.Grammar, config parseradapter.Config) error {
	idx, err := gr.Build(grammar)
	if err != nil {
		return fmt.Errorf("interpreted backend: build grammar index: %w", err)
	}
	lx, err := newRuntimeLexer(grammar)
	if err != nil {
		return fmt.Errorf("interpreted backend: build lexer: %w", err)
	}
	a.grammar = grammar
	a.idx = idx
	a.an = newAnalysis(grammar)
	a.lexer = lx
	a.config = config
	return nil
}

// Index exposes the grammar index this adapter built at Configure time, for
// callers (the AST builder, the language service) that need it but did not
// build it themselves.
func (a *Adapter) Index() *gr.Index { return a.idx }

func (a *Adapter) Parse(ctx context.Context, source []byte, entryRule string) (parseradapter.ParseResult, error) {
	if entryRule == "" {
		entryRule = a.grammar.EntryRule
	}
	toks := a.lexer.Tokenize(source)
	p := newParser(a.grammar, a.idx, a.an, toks)
	raw, diags := p.parseDocument(entryRule)
	root := stree.WrapRoot(raw, source, diags, a.idx)
	return parseradapter.ParseResult{Root: root}, nil
}

func (a *Adapter) GetExpectedTokens(ctx context.Context, source []byte, offset text.ByteOffset) ([]parseradapter.ExpectedToken, error) {
	if int(offset) < 0 || int(offset) > len(source) {
		return nil, fmt.Errorf("offset %d out of range for %d-byte source", offset, len(source))
	}
	truncated := source[:offset]
	toks := a.lexer.Tokenize(truncated)
	p := newParser(a.grammar, a.idx, a.an, toks)
	p.collectExpected = true
	p.parseDocument(a.grammar.EntryRule)

	out := make([]parseradapter.ExpectedToken, 0, len(p.expectedAtEOF))
	for sym := range p.expectedAtEOF {
		switch sym.Kind {
		case symKeyword:
			out = append(out, parseradapter.ExpectedToken{Name: sym.Value, IsKeyword: true})
		case symTerminal:
			pattern := ""
			if r := a.grammar.RuleByName(sym.Name); r != nil {
				pattern = r.TerminalPattern
			}
			out = append(out, parseradapter.ExpectedToken{Name: sym.Name, Pattern: pattern})
		}
	}
	return out, nil
}

// SupportsIncremental always reports false: the interpreted backend never
// advertises incremental capability it does not have (spec.md §4.3).
func (a *Adapter) SupportsIncremental() bool { return false }

// Dispose is a no-op; the interpreted backend holds no external resources.
func (a *Adapter) Dispose() {}
