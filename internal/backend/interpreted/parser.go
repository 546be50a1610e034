package interpreted

import (
	"fmt"

	"github.com/kpumuk/langforge/internal/diagnostic"
	"github.com/kpumuk/langforge/internal/gr"
	"github.com/kpumuk/langforge/internal/langgrammar"
	"github.com/kpumuk/langforge/internal/stree"
	"github.com/kpumuk/langforge/internal/text"
)

// parser is a predictive (FIRST/FOLLOW-driven) recursive-descent parser
// over one langgrammar.Grammar. It is built fresh for every Parse call —
// unlike the compiled backend, there is no persistent incremental state.
type parser struct {
	toks []token
	pos  int

	g   *langgrammar.Grammar
	idx *gr.Index
	an  *analysis

	diags []diagnostic.Diagnostic

	// collectExpected, when true, accumulates every symbol the parser
	// tried to match against a premature end of input — used by
	// GetExpectedTokens, which truncates the source at the query offset
	// so "ran out of tokens" always happens exactly at the cursor.
	collectExpected bool
	expectedAtEOF   map[symRef]bool
}

func newParser(g *langgrammar.Grammar, idx *gr.Index, an *analysis, toks []token) *parser {
	return &parser{g: g, idx: idx, an: an, toks: toks, expectedAtEOF: map[symRef]bool{}}
}

// parseDocument parses the whole token stream starting at entryRule and
// returns the root RawNode together with any diagnostics.
func (p *parser) parseDocument(entryRule string) (*stree.RawNode, []diagnostic.Diagnostic) {
	root := &stree.RawNode{}
	node := p.parseRule(root, entryRule)
	// Trailing trivia (e.g. a final comment) belongs under the document
	// root; any tokens left over are appended there as leaves, and one
	// diagnostic at the first of them reports the trailing input.
	p.consumeTrivia(node)
	if p.pos < len(p.toks) {
		start := p.toks[p.pos].Span.Start
		for p.pos < len(p.toks) {
			t := &p.toks[p.pos]
			node.Children = append(node.Children, p.leafNode(t, false))
			p.pos++
		}
		p.diags = append(p.diags, diagnostic.FromParseError("unexpected trailing input", start, 1))
	}
	return node, p.diags
}

// peek returns the next non-trivia token without consuming it, flushing any
// hidden or lexer-error tokens encountered along the way into parent.
func (p *parser) peek(parent *stree.RawNode) *token {
	p.consumeTrivia(parent)
	if p.pos >= len(p.toks) {
		return nil
	}
	return &p.toks[p.pos]
}

func (p *parser) advance(parent *stree.RawNode) *token {
	tok := p.peek(parent)
	if tok != nil {
		p.pos++
	}
	return tok
}

func (p *parser) consumeTrivia(parent *stree.RawNode) {
	for p.pos < len(p.toks) {
		t := &p.toks[p.pos]
		if !t.Hidden && t.Rule != nil {
			break
		}
		parent.Children = append(parent.Children, p.leafNode(t, false))
		if t.Rule == nil {
			p.diags = append(p.diags, diagnostic.FromLexError(
				fmt.Sprintf("unrecognized input %q", t.Value), t.Span.Start, int(t.Span.Len())))
		}
		p.pos++
	}
}

func (p *parser) leafNode(t *token, isKeyword bool) *stree.RawNode {
	n := &stree.RawNode{Span: t.Span, IsHidden: t.Hidden, IsKeyword: isKeyword}
	if t.Rule == nil {
		n.IsError = true
		return n
	}
	if r, ok := p.idx.RuleByName(t.Rule.Name); ok {
		n.HasTokenType = true
		n.TokenType = r.Symbol
		if !isKeyword {
			n.Kind = r.Symbol
		}
	}
	return n
}

func (p *parser) matches(tok *token, sym symRef) bool {
	if tok == nil || tok.Rule == nil {
		return false
	}
	if p.idx.IsKeyword(tok.Value) {
		return sym.Kind == symKeyword && sym.Value == tok.Value
	}
	return sym.Kind == symTerminal && sym.Name == tok.Rule.Name
}

func (p *parser) matchesAny(tok *token, set map[symRef]bool) bool {
	if tok == nil {
		return false
	}
	for sym := range set {
		if p.matches(tok, sym) {
			return true
		}
	}
	return false
}

func (p *parser) noteExpected(set map[symRef]bool) {
	if !p.collectExpected {
		return
	}
	for sym := range set {
		p.expectedAtEOF[sym] = true
	}
}

// parseRule parses one occurrence of ruleName and returns its RawNode;
// parent is only used to receive trivia flushed while choosing which
// alternative to take.
func (p *parser) parseRule(parent *stree.RawNode, ruleName string) *stree.RawNode {
	rule := p.g.RuleByName(ruleName)
	if rule == nil {
		return &stree.RawNode{IsError: true}
	}
	node := &stree.RawNode{}
	if r, ok := p.idx.RuleByName(ruleName); ok {
		node.Kind = r.Symbol
	}

	if rule.IsTerminal {
		// Trivia preceding this token belongs to the caller's node — this
		// rule collapses to a single leaf and must stay childless.
		tok := p.advance(parent)
		if tok == nil {
			p.noteExpected(map[symRef]bool{{Kind: symTerminal, Name: ruleName}: true})
			node.IsError = true
			return node
		}
		node.Span = tok.Span
		node.HasTokenType = true
		if r, ok := p.idx.RuleByName(ruleName); ok {
			node.TokenType = r.Symbol
		}
		return node
	}

	tok := p.peek(node)
	alt := p.selectAlternative(rule.Alternatives, tok, ruleName)
	if alt == nil {
		start := eofAwareOffset(tok, p.toks)
		if tok == nil {
			first, _ := p.an.First(ruleName)
			p.noteExpected(first)
		} else {
			p.diags = append(p.diags, diagnostic.FromParseError(
				fmt.Sprintf("unexpected token while parsing %s", ruleName), tok.Span.Start, int(tok.Span.Len())))
		}
		p.recover(node, ruleName)
		node.IsError = true
		node.Span = text.Span{Start: start, End: start}
		return node
	}

	for _, el := range alt.Elements {
		p.parseElement(node, el)
	}
	node.Span = spanFromChildren(node.Children, eofAwareOffset(p.peek(node), p.toks))
	return node
}

// selectAlternative predicts which alternative of rule applies, given the
// current lookahead token. A nullable alternative is only chosen when no
// non-empty alternative's FIRST set matches and tok is either absent (EOF)
// or in FOLLOW(ruleName) — the standard LL(1) "else take the empty
// production" rule.
func (p *parser) selectAlternative(alts []*langgrammar.Alternative, tok *token, ruleName string) *langgrammar.Alternative {
	var nullableAlt *langgrammar.Alternative
	for _, alt := range alts {
		syms, nullable := p.an.firstOfAlternative(alt)
		if p.matchesAny(tok, syms.syms) {
			return alt
		}
		if nullable && nullableAlt == nil {
			nullableAlt = alt
		}
	}
	if nullableAlt == nil {
		return nil
	}
	follow := p.an.Follow(ruleName)
	if tok == nil || p.matchesAny(tok, follow) {
		return nullableAlt
	}
	return nil
}

func (p *parser) parseElement(parent *stree.RawNode, el langgrammar.Element) {
	switch el.Card() {
	case langgrammar.Optional:
		if p.elementCanStart(parent, el) {
			p.parseElementOnce(parent, el)
		}
	case langgrammar.Star:
		for p.elementCanStart(parent, el) {
			p.parseElementOnce(parent, el)
		}
	case langgrammar.Plus:
		p.parseElementOnce(parent, el)
		for p.elementCanStart(parent, el) {
			p.parseElementOnce(parent, el)
		}
	default:
		p.parseElementOnce(parent, el)
	}
}

func (p *parser) elementCanStart(parent *stree.RawNode, el langgrammar.Element) bool {
	syms, _ := p.an.firstOfElement(el)
	return p.matchesAny(p.peek(parent), syms.syms)
}

func (p *parser) parseElementOnce(parent *stree.RawNode, el langgrammar.Element) {
	switch v := el.(type) {
	case *langgrammar.Keyword:
		want := symRef{Kind: symKeyword, Value: v.Value}
		tok := p.peek(parent)
		if !p.matches(tok, want) {
			p.reportMismatch(tok, want)
			return
		}
		tok = p.advance(parent)
		parent.Children = append(parent.Children, p.leafNode(tok, true))
	case *langgrammar.RuleCall:
		parent.Children = append(parent.Children, p.parseRule(parent, v.RuleName))
	case *langgrammar.CrossReference:
		want := symRef{Kind: symTerminal, Name: p.an.identTerm}
		tok := p.peek(parent)
		if !p.matches(tok, want) {
			p.reportMismatch(tok, want)
			return
		}
		tok = p.advance(parent)
		parent.Children = append(parent.Children, p.leafNode(tok, false))
	case *langgrammar.Group:
		p.parseGroup(parent, v)
	case *langgrammar.Assignment:
		p.parseAssignment(parent, v)
	}
}

func (p *parser) reportMismatch(tok *token, want symRef) {
	if tok == nil {
		p.noteExpected(map[symRef]bool{want: true})
		return
	}
	p.diags = append(p.diags, diagnostic.FromParseError(
		fmt.Sprintf("unexpected token %q", tok.Value), tok.Span.Start, int(tok.Span.Len())))
}

// parseAssignment parses the assignment's target, honoring the target's own
// cardinality: "items+=ID*" runs one assignment occurrence per repetition
// rather than wrapping every match into one value (spec.md §4.6 step 2).
// Each occurrence stamps the resulting child (or, for a Group target that
// produced more than one child in that occurrence, a synthetic wrapper
// node) with the assigned property name — the Field tag the AST builder's
// unwrapFieldWrapper / ChildForField rely on (spec.md §4.4b, §4.6 step 3).
func (p *parser) parseAssignment(parent *stree.RawNode, a *langgrammar.Assignment) {
	switch a.Target.Card() {
	case langgrammar.Optional:
		if p.elementCanStart(parent, a.Target) {
			p.parseAssignmentOnce(parent, a)
		}
	case langgrammar.Star:
		for p.elementCanStart(parent, a.Target) {
			p.parseAssignmentOnce(parent, a)
		}
	case langgrammar.Plus:
		p.parseAssignmentOnce(parent, a)
		for p.elementCanStart(parent, a.Target) {
			p.parseAssignmentOnce(parent, a)
		}
	default:
		p.parseAssignmentOnce(parent, a)
	}
}

func (p *parser) parseAssignmentOnce(parent *stree.RawNode, a *langgrammar.Assignment) {
	before := len(parent.Children)
	p.parseElementOnce(parent, a.Target)
	added := parent.Children[before:]
	switch len(added) {
	case 0:
		return
	case 1:
		added[0].Field = a.Property
	default:
		wrapper := &stree.RawNode{Field: a.Property, Children: append([]*stree.RawNode{}, added...)}
		wrapper.Span = spanFromChildren(wrapper.Children, 0)
		parent.Children = append(parent.Children[:before], wrapper)
	}
}

func (p *parser) parseGroup(parent *stree.RawNode, g *langgrammar.Group) {
	if g.Unordered {
		p.parseUnorderedGroup(parent, g)
		return
	}
	tok := p.peek(parent)
	var chosen *langgrammar.Alternative
	var nullableAlt *langgrammar.Alternative
	for _, alt := range g.Alternatives {
		syms, nullable := p.an.firstOfAlternative(alt)
		if p.matchesAny(tok, syms.syms) {
			chosen = alt
			break
		}
		if nullable && nullableAlt == nil {
			nullableAlt = alt
		}
	}
	if chosen == nil {
		chosen = nullableAlt
	}
	if chosen == nil {
		if tok == nil {
			for _, alt := range g.Alternatives {
				syms, _ := p.an.firstOfAlternative(alt)
				p.noteExpected(syms.syms)
			}
		} else {
			p.diags = append(p.diags, diagnostic.FromParseError(
				fmt.Sprintf("unexpected token %q", tok.Value), tok.Span.Start, int(tok.Span.Len())))
		}
		return
	}
	for _, el := range chosen.Elements {
		p.parseElement(parent, el)
	}
}

// parseUnorderedGroup parses each member of an "&(...)" unordered group as
// it becomes predictable, in whatever order the input presents them, until
// none of the remaining members can start at the current lookahead (spec.md
// §4.5). A member the input never supplies is not flagged as a missing
// mandatory element; callers rely on the AST builder's mandatory-property
// defaults (spec.md §4.6 step 5) for that case instead.
func (p *parser) parseUnorderedGroup(parent *stree.RawNode, g *langgrammar.Group) {
	remaining := append([]*langgrammar.Alternative(nil), g.Alternatives...)
	for len(remaining) > 0 {
		tok := p.peek(parent)
		match := -1
		for i, alt := range remaining {
			syms, _ := p.an.firstOfAlternative(alt)
			if p.matchesAny(tok, syms.syms) {
				match = i
				break
			}
		}
		if match < 0 {
			return
		}
		alt := remaining[match]
		remaining = append(remaining[:match], remaining[match+1:]...)
		for _, el := range alt.Elements {
			p.parseElement(parent, el)
		}
	}
}

// recover skips tokens until one that could legally begin or follow
// ruleName, so a syntax error does not cascade through the rest of the
// document (spec.md §4.3's "error recovery").
func (p *parser) recover(parent *stree.RawNode, ruleName string) {
	first, _ := p.an.First(ruleName)
	follow := p.an.Follow(ruleName)
	for {
		tok := p.peek(parent)
		if tok == nil {
			return
		}
		if p.matchesAny(tok, first) || p.matchesAny(tok, follow) {
			return
		}
		tok = p.advance(parent)
		parent.Children = append(parent.Children, p.errorLeaf(tok))
	}
}

func (p *parser) errorLeaf(t *token) *stree.RawNode {
	return &stree.RawNode{Span: t.Span, IsError: true}
}

func spanFromChildren(children []*stree.RawNode, fallback text.ByteOffset) text.Span {
	if len(children) == 0 {
		return text.Span{Start: fallback, End: fallback}
	}
	return text.Span{Start: children[0].Span.Start, End: children[len(children)-1].Span.End}
}

func eofAwareOffset(tok *token, all []token) text.ByteOffset {
	if tok != nil {
		return tok.Span.Start
	}
	if len(all) == 0 {
		return 0
	}
	return all[len(all)-1].Span.End
}
