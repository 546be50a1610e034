// Package interpreted implements the interpreted LL parser backend (C4a,
// spec.md §4.3): a runtime lexer built from the grammar's own terminal
// rules, plus a predictive recursive-descent parser that walks the grammar
// directly (no generated tables, no incremental reparse —
// SupportsIncremental is always false). Grounded on internal/lexer's
// teacher lexer for tokenization conventions and on
// nihei9-vartan/grammar's first.go/follow.go for the FIRST/FOLLOW
// fixed-point algorithm, adapted here to operate over langgrammar's
// grammar model instead of an LALR item automaton.
package interpreted

import (
	"strings"

	"github.com/kpumuk/langforge/internal/langgrammar"
)

// symKind distinguishes the two kinds of leaf symbol a prediction set can
// contain.
type symKind uint8

const (
	symTerminal symKind = iota
	symKeyword
)

// symRef is one atomic lookahead symbol: either a terminal rule (matched by
// its regex) or a fixed keyword lexeme.
type symRef struct {
	Kind  symKind
	Name  string // terminal rule name, for symTerminal
	Value string // keyword lexeme, for symKeyword
}

// identifierTerminal returns the terminal rule used to match a
// cross-reference's identifier text. The grammar description language has
// no `[Type:Terminal]` form (spec.md's cross-reference syntax is just
// `[Type]`), so by convention the identifier terminal is whichever terminal
// rule is named "ID" (case-insensitively), or else the first terminal rule
// declared in the grammar.
func identifierTerminal(g *langgrammar.Grammar) string {
	var fallback string
	for _, r := range g.Rules {
		if !r.IsTerminal {
			continue
		}
		if fallback == "" {
			fallback = r.Name
		}
		if strings.EqualFold(r.Name, "id") {
			return r.Name
		}
	}
	return fallback
}
