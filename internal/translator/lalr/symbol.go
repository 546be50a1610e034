// Package lalr builds an SLR(1) parsing table over a desugared grammar,
// adapted from nihei9-vartan/grammar's item/kernel/closure/automaton
// machinery (lr0_item.go, lr0.go, slr1.go) onto gr.Index symbol numbering
// instead of vartan's own bit-packed symbol type. Full LALR(1) lookahead
// propagation (vartan's lalr1.go) is not ported: SLR(1)'s FOLLOW-set
// lookahead is a strict subset of LALR(1)'s per-state lookahead and is
// sufficient for the grammars spec.md's translator needs to accept (see
// DESIGN.md, component C5).
package lalr

import "github.com/kpumuk/langforge/internal/gr"

// Symbol is a grammar symbol used while building the parsing table. Real
// grammar symbols reuse their gr.SymbolID numbering directly; the augmented
// start symbol and EOF are out-of-band sentinels vartan represents with bit
// flags (symbolStart, symbolEOF) — here they're just reserved negative
// values, since Symbol is a plain int32 instead of a packed uint16.
type Symbol int32

const (
	// symbolNil marks "no dotted symbol" (the item's dot is at the end).
	symbolNil Symbol = Symbol(gr.NoSymbol)
	// SymbolEOF is the end-of-input terminal every grammar gets implicitly.
	SymbolEOF Symbol = -1
	// SymbolStart is the augmented start symbol: the table builder adds one
	// production SymbolStart -> EntryRule so the initial item set is
	// unambiguous and "accept" has a single dedicated reduction to detect.
	SymbolStart Symbol = -2
)

// FromRule converts a gr.SymbolID into its Symbol.
func FromRule(id gr.SymbolID) Symbol { return Symbol(id) }

func (s Symbol) isNil() bool { return s == symbolNil }
