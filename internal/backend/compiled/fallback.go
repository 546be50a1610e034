package compiled

import (
	"fmt"
	"regexp"

	"github.com/kpumuk/langforge/internal/backend/compiled/tableparser"
	"github.com/kpumuk/langforge/internal/diagnostic"
	"github.com/kpumuk/langforge/internal/gr"
	"github.com/kpumuk/langforge/internal/stree"
	"github.com/kpumuk/langforge/internal/text"
)

// fallbackLexer tokenizes source for the no-WASM table-interpreter path
// (SPEC_FULL.md §6.5, used when a LanguageArtifact carries Tables but no
// compiled WASM module). Grounded on internal/backend/interpreted's
// runtimeLexer longest-match technique, but numbering shifted tokens the
// way tableparser.Run expects instead of handing back a *langgrammar.Rule:
// a keyword literal gets the synthetic symbol ID the translator recorded in
// KeywordSymbols; any other terminal gets its own gr.SymbolID widened to
// int32, the numbering desugar.go built the tables against for real rules
// (see desugarer.ruleSymbol). The two numbering spaces never collide by
// construction, but they're also not comparable by casting back down — see
// leafSpan below for how converting a parsed node back to a kind avoids
// doing that.
type fallbackLexer struct {
	rules          []fallbackTerminal
	keywordSymbols map[string]int32
}

type fallbackTerminal struct {
	rule *gr.Rule
	re   *regexp.Regexp
}

func newFallbackLexer(idx *gr.Index, keywordSymbols map[string]int32) (*fallbackLexer, error) {
	lx := &fallbackLexer{keywordSymbols: keywordSymbols}
	for _, r := range idx.Rules() {
		if !r.IsTerminal || r.IsFragment {
			continue
		}
		re, err := regexp.Compile(`\A(?:` + r.TerminalPattern + `)`)
		if err != nil {
			return nil, fmt.Errorf("terminal %s: invalid pattern %q: %w", r.Name, r.TerminalPattern, err)
		}
		lx.rules = append(lx.rules, fallbackTerminal{rule: r, re: re})
	}
	return lx, nil
}

type fallbackToken struct {
	tableparser.Token
	rule   *gr.Rule // nil for a keyword token
	hidden bool
	bad    bool
}

// tokenize scans src end to end the same way runtimeLexer.Tokenize does:
// every byte belongs to exactly one token, longest match wins, and an
// unmatched run becomes a single bad token so the caller reports one
// diagnostic instead of one per byte.
func (lx *fallbackLexer) tokenize(src []byte, idx *gr.Index) []fallbackToken {
	var out []fallbackToken
	pos := 0
	badStart := -1
	flushBad := func(end int) {
		if badStart < 0 {
			return
		}
		out = append(out, fallbackToken{
			Token: tableparser.Token{Start: badStart, End: end},
			bad:   true,
		})
		badStart = -1
	}
	for pos < len(src) {
		rule, match := lx.match(src[pos:])
		if rule == nil {
			if badStart < 0 {
				badStart = pos
			}
			pos++
			continue
		}
		flushBad(pos)
		end := pos + len(match)
		tok := fallbackToken{
			Token:  tableparser.Token{Start: pos, End: end},
			rule:   rule,
			hidden: rule.IsHidden,
		}
		if idx.IsKeyword(match) {
			if sym, ok := lx.keywordSymbols[match]; ok {
				tok.Symbol = sym
				tok.rule = nil
			}
		} else {
			tok.Symbol = int32(rule.Symbol)
		}
		out = append(out, tok)
		if len(match) == 0 {
			pos++
			continue
		}
		pos = end
	}
	flushBad(pos)
	return out
}

// match tries every terminal rule in declaration order and returns the
// longest prefix match, first declared wins length ties — the same
// disambiguation runtimeLexer.match uses.
func (lx *fallbackLexer) match(src []byte) (*gr.Rule, string) {
	var best *gr.Rule
	var bestMatch string
	for _, ft := range lx.rules {
		loc := ft.re.FindIndex(src)
		if loc == nil || loc[0] != 0 {
			continue
		}
		m := string(src[loc[0]:loc[1]])
		if best == nil || len(m) > len(bestMatch) {
			best = ft.rule
			bestMatch = m
		}
	}
	return best, bestMatch
}

// leafSpan identifies a lexed token by its byte range. Token spans never
// overlap, so this is a stable key from tokenize's output to the leaves
// tableparser.Node hands back (Run never changes a shifted token's Start/End).
type leafSpan struct{ start, end int }

// parseWithTables runs the no-WASM fallback end to end: lex src, drive
// tableparser.Run, and convert the resulting tableparser.Node tree into a
// stree.RawNode tree using the same field-map-driven resolution
// buildRawTree uses for the live wasm path, so both paths produce ST trees
// an astbuilder.Builder (and the cross-backend conformance checks) can
// treat identically.
func parseWithTables(idx *gr.Index, fieldMap *gr.FieldMap, tables *tableparser.Tables, keywordSymbols map[string]int32, src []byte) (*stree.RawNode, []diagnostic.Diagnostic, error) {
	lx, err := newFallbackLexer(idx, keywordSymbols)
	if err != nil {
		return nil, nil, err
	}

	// Hidden (whitespace/comment) tokens never appear in any production the
	// LALR table was built from, so — unlike buildRawTree's tree-sitter path,
	// which gets them back as "extra" nodes the live parser already
	// positioned — the fallback tree has no slot to place them in and drops
	// them entirely. This only matters for property 2 (range integrity) on a
	// fallback-parsed tree; it can't affect property 4 (cross-backend leaf
	// equivalence), which is scoped to *non-hidden* leaves and fullText, both
	// unaffected by omitting hidden nodes from the tree structure.
	all := lx.tokenize(src, idx)
	var diags []diagnostic.Diagnostic
	toks := make([]tableparser.Token, 0, len(all))
	// leaves maps each shifted token's span back to the lexer's own
	// classification of it (which terminal rule matched, or keyword), since
	// a token's tableparser.Symbol alone can't tell a real grammar rule
	// apart from a synthetic desugar-helper symbol: both are plain int32s
	// drawn from unrelated numbering spaces (gr.SymbolID via gr.Build vs.
	// desugarer.newSynthSymbol's counter, see desugar.go's syntheticSymbolBase
	// comment), so narrowing one to a gr.SymbolID to look it up by identity
	// is not safe.
	leaves := make(map[leafSpan]fallbackToken, len(all))
	for _, tok := range all {
		if tok.bad {
			diags = append(diags, diagnostic.FromParseError("unrecognized input", text.ByteOffset(tok.Start), max(tok.End-tok.Start, 1)))
			continue
		}
		if tok.hidden {
			continue
		}
		toks = append(toks, tok.Token)
		leaves[leafSpan{tok.Start, tok.End}] = tok
	}

	node, err := tableparser.Run(tables, toks)
	if err != nil {
		diags = append(diags, diagnostic.FromParseError(fmt.Sprintf("no-WASM fallback parse: %v", err), 0, max(len(src), 1)))
		return &stree.RawNode{Span: text.Span{Start: 0, End: text.ByteOffset(len(src))}, IsError: true}, diags, nil
	}

	root := convertTableNode(node, "", idx, fieldMap, leaves, src)
	return root, diags, nil
}

// convertTableNode mirrors buildRawTree's field/kind resolution: a leaf
// token's Kind and IsKeyword come straight from the fallbackToken the lexer
// already classified it as (rule vs. keyword), looked up by span in leaves
// — not re-derived from the tableparser.Node's Symbol, which for a keyword
// or any other desugar-synthesized symbol carries no relation to a
// gr.SymbolID. Synthetic desugar helpers (field wrappers, list/optional
// helpers) intentionally leave Kind unresolved — Field below is what
// carries their identity instead, exactly as the live wasm path does.
func convertTableNode(n *tableparser.Node, parentRuleName string, idx *gr.Index, fieldMap *gr.FieldMap, leaves map[leafSpan]fallbackToken, src []byte) *stree.RawNode {
	span := text.Span{Start: text.ByteOffset(n.Start), End: text.ByteOffset(n.End)}
	raw := &stree.RawNode{Span: span}

	kindName := n.RuleName
	if len(n.Children) == 0 {
		raw.HasTokenType = true
		tok, ok := leaves[leafSpan{n.Start, n.End}]
		switch {
		case ok && tok.rule != nil:
			kindName = tok.rule.Name
			raw.TokenType = tok.rule.Symbol
		case ok:
			raw.IsKeyword = true
			value := string(src[n.Start:n.End])
			if els := idx.KeywordElements(value); len(els) > 0 {
				if rule, ok := idx.RuleByName(els[0].RuleName); ok {
					raw.TokenType = rule.Symbol
				}
			}
		}
	}
	if rule, ok := idx.RuleByName(kindName); ok {
		raw.Kind = rule.Symbol
	}

	if parentRuleName != "" {
		if field, ok := fieldMap.PropertyFor(parentRuleName, kindName); ok {
			raw.Field = field
		}
	}

	for _, c := range n.Children {
		raw.Children = append(raw.Children, convertTableNode(c, n.RuleName, idx, fieldMap, leaves, src))
	}
	return raw
}
