package lalr

import "sort"

// state is one node of the LR(0) automaton: a kernel, its full closure, the
// goto edges to neighbouring kernels keyed by transition symbol, and the
// set of productions reducible at this state. Ported from vartan's
// lrState (lr0_item.go / item.go), minus the lookahead bookkeeping that
// lives in slr.go instead.
type state struct {
	num       int
	kernel    *kernel
	closure   []item
	next      map[Symbol]string // symbol -> neighbour kernel key
	reducible []item            // items with dot at end, across the closure
}

// automaton is the LR(0) automaton: one state per distinct kernel,
// reachable from the augmented start state by repeatedly computing
// CLOSURE and GOTO. Ported from vartan's genLR0Automaton (lr0.go).
type automaton struct {
	initialKey string
	states     map[string]*state
	order      []string
}

func buildAutomaton(ps *ProductionSet, start Symbol) *automaton {
	startProds := ps.ByLHS(start)
	initialItem := item{prod: startProds[0].ID, dot: 0}
	initialKernel := newKernel([]item{initialItem})

	a := &automaton{initialKey: initialKernel.key, states: map[string]*state{}}
	known := map[string]bool{initialKernel.key: true}
	frontier := []*kernel{initialKernel}
	num := 0

	for len(frontier) > 0 {
		var nextFrontier []*kernel
		for _, k := range frontier {
			st, neighbours := buildState(k, ps)
			st.num = num
			num++
			a.states[k.key] = st
			a.order = append(a.order, k.key)
			for _, nk := range neighbours {
				if known[nk.key] {
					continue
				}
				known[nk.key] = true
				nextFrontier = append(nextFrontier, nk)
			}
		}
		frontier = nextFrontier
	}
	return a
}

func buildState(k *kernel, ps *ProductionSet) (*state, []*kernel) {
	items := closure(k, ps)

	byTransition := map[Symbol][]item{}
	for _, it := range items {
		sym := it.dottedSymbol(ps)
		if sym.isNil() {
			continue
		}
		byTransition[sym] = append(byTransition[sym], it.advance())
	}

	var syms []Symbol
	for sym := range byTransition {
		syms = append(syms, sym)
	}
	sort.Slice(syms, func(i, j int) bool { return syms[i] < syms[j] })

	next := map[Symbol]string{}
	var neighbours []*kernel
	for _, sym := range syms {
		nk := newKernel(byTransition[sym])
		next[sym] = nk.key
		neighbours = append(neighbours, nk)
	}

	var reducible []item
	for _, it := range items {
		if it.reducible(ps) {
			reducible = append(reducible, it)
		}
	}

	return &state{kernel: k, closure: items, next: next, reducible: reducible}, neighbours
}
