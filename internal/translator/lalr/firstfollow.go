package lalr

// firstSet and followSet are fixpoint-computed exactly as
// nihei9-vartan/grammar's first.go/follow.go: FIRST merges a symbol's own
// terminal into the set directly, a non-terminal's FIRST set otherwise,
// and records whether the symbol can derive empty; FOLLOW seeds the start
// symbol with EOF and propagates across every RHS occurrence of each
// non-terminal.
type firstSet struct {
	set map[Symbol]map[Symbol]bool
	eps map[Symbol]bool
}

func newFirstSet(ps *ProductionSet) *firstSet {
	fs := &firstSet{set: map[Symbol]map[Symbol]bool{}, eps: map[Symbol]bool{}}
	for _, p := range ps.All() {
		if _, ok := fs.set[p.LHS]; !ok {
			fs.set[p.LHS] = map[Symbol]bool{}
		}
	}
	return fs
}

// firstOfSeq computes FIRST(RHS[head:]) against the symbols already settled
// in fs (used both during the fixpoint loop and afterward for lookahead
// computation).
func (fs *firstSet) firstOfSeq(seq []Symbol) (map[Symbol]bool, bool) {
	out := map[Symbol]bool{}
	for _, sym := range seq {
		if isTerminalSymbol(sym, fs) {
			out[sym] = true
			return out, false
		}
		for t := range fs.set[sym] {
			out[t] = true
		}
		if !fs.eps[sym] {
			return out, false
		}
	}
	return out, true
}

// isTerminalSymbol reports whether sym never appears as a production LHS
// (i.e. it is a terminal or keyword, not a parser rule).
func isTerminalSymbol(sym Symbol, fs *firstSet) bool {
	_, isNonTerminal := fs.set[sym]
	return !isNonTerminal
}

func genFirstSet(ps *ProductionSet) *firstSet {
	fs := newFirstSet(ps)
	for {
		changed := false
		for _, p := range ps.All() {
			acc := fs.set[p.LHS]
			if p.isEmpty() {
				if !fs.eps[p.LHS] {
					fs.eps[p.LHS] = true
					changed = true
				}
				continue
			}
			for _, sym := range p.RHS {
				if isTerminalSymbol(sym, fs) {
					if !acc[sym] {
						acc[sym] = true
						changed = true
					}
					break
				}
				for t := range fs.set[sym] {
					if !acc[t] {
						acc[t] = true
						changed = true
					}
				}
				if !fs.eps[sym] {
					break
				}
				// this symbol can derive empty; fall through to the next
				if sym == p.RHS[len(p.RHS)-1] {
					if !fs.eps[p.LHS] {
						fs.eps[p.LHS] = true
						changed = true
					}
				}
			}
		}
		if !changed {
			break
		}
	}
	return fs
}

type followSet struct {
	set map[Symbol]map[Symbol]bool
}

func genFollowSet(ps *ProductionSet, fs *firstSet, start Symbol) *followSet {
	flw := &followSet{set: map[Symbol]map[Symbol]bool{}}
	for _, p := range ps.All() {
		if _, ok := flw.set[p.LHS]; !ok {
			flw.set[p.LHS] = map[Symbol]bool{}
		}
	}
	flw.set[start][SymbolEOF] = true

	for {
		changed := false
		for _, p := range ps.All() {
			for i, sym := range p.RHS {
				if isTerminalSymbol(sym, fs) {
					continue
				}
				rest := p.RHS[i+1:]
				firstRest, nullable := fs.firstOfSeq(rest)
				acc := flw.set[sym]
				for t := range firstRest {
					if !acc[t] {
						acc[t] = true
						changed = true
					}
				}
				if nullable {
					for t := range flw.set[p.LHS] {
						if !acc[t] {
							acc[t] = true
							changed = true
						}
					}
				}
			}
		}
		if !changed {
			break
		}
	}
	return flw
}
