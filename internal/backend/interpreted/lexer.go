package interpreted

import (
	"fmt"
	"regexp"

	"github.com/kpumuk/langforge/internal/langgrammar"
	"github.com/kpumuk/langforge/internal/text"
)

// token is one lexed unit: either a matched terminal, or a lexer error
// (Rule == nil) covering the run of input the lexer could not classify.
type token struct {
	Rule   *langgrammar.Rule // nil on lex error
	Value  string
	Span   text.Span
	Hidden bool
}

// runtimeLexer tokenizes source against every non-fragment terminal rule
// declared in the grammar. Its rule set is built at Configure time from
// whatever terminals the user's grammar declares (spec.md §4.3's
// "interpreted backend" constraint: no code generation, no precompiled
// tables), so it cannot reuse participle's lexer.Simple — that needs a
// fixed Go-level rule table built before compile time. Longest-match
// disambiguation (rather than participle.Simple's first-alternative-wins
// ordering) mirrors internal/lexer's hand-written token scanning.
type runtimeLexer struct {
	rules []compiledTerminal
}

type compiledTerminal struct {
	rule *langgrammar.Rule
	re   *regexp.Regexp
}

func newRuntimeLexer(g *langgrammar.Grammar) (*runtimeLexer, error) {
	lx := &runtimeLexer{}
	for _, r := range g.Rules {
		if !r.IsTerminal || r.IsFragment {
			continue
		}
		re, err := regexp.Compile(`\A(?:` + r.TerminalPattern + `)`)
		if err != nil {
			return nil, fmt.Errorf("terminal %s: invalid pattern %q: %w", r.Name, r.TerminalPattern, err)
		}
		lx.rules = append(lx.rules, compiledTerminal{rule: r, re: re})
	}
	return lx, nil
}

// Tokenize scans src end to end. Every byte belongs to exactly one token;
// a maximal unmatched run is reported as a single token with Rule == nil,
// so the parser can convert it into one lexer diagnostic plus an error
// leaf rather than one diagnostic per byte.
func (lx *runtimeLexer) Tokenize(src []byte) []token {
	var out []token
	pos := 0
	var badStart = -1
	flushBad := func(end int) {
		if badStart < 0 {
			return
		}
		out = append(out, token{
			Value: string(src[badStart:end]),
			Span:  text.Span{Start: text.ByteOffset(badStart), End: text.ByteOffset(end)},
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
		out = append(out, token{
			Rule:   rule,
			Value:  match,
			Span:   text.Span{Start: text.ByteOffset(pos), End: text.ByteOffset(end)},
			Hidden: rule.IsHidden,
		})
		if len(match) == 0 {
			// A terminal whose pattern can match the empty string would
			// otherwise loop forever; treat it as consuming nothing and
			// advance past one byte to guarantee progress.
			pos++
			continue
		}
		pos = end
	}
	flushBad(pos)
	return out
}

// match tries every terminal rule in declaration order and returns the
// longest match among those that match at the very start of src (longest
// match wins ties; first declared wins ties on length, matching how most
// hand-written lexers disambiguate overlapping terminals).
func (lx *runtimeLexer) match(src []byte) (*langgrammar.Rule, string) {
	var best *langgrammar.Rule
	var bestMatch string
	for _, ct := range lx.rules {
		loc := ct.re.FindIndex(src)
		if loc == nil || loc[0] != 0 {
			continue
		}
		m := string(src[loc[0]:loc[1]])
		if best == nil || len(m) > len(bestMatch) {
			best = ct.rule
			bestMatch = m
		}
	}
	return best, bestMatch
}
