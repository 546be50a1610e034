package lalr

import (
	"fmt"
	"sort"

	"github.com/kpumuk/langforge/internal/diagnostic"
)

// ActionKind is the kind of ACTION table entry.
type ActionKind uint8

const (
	ActionError ActionKind = iota
	ActionShift
	ActionReduce
	ActionAccept
)

// Action is one ACTION table cell.
type Action struct {
	Kind    ActionKind
	State   int          // target state, for ActionShift
	Prod    ProductionID // reduced production, for ActionReduce
}

// Tables is the finished SLR(1) parsing table: one ACTION entry per
// (state, terminal) and one GOTO entry per (state, non-terminal). States
// are numbered in automaton construction order, state 0 is always the
// initial state.
type Tables struct {
	StateCount int
	Action     map[int]map[Symbol]Action
	Goto       map[int]map[Symbol]int
	// Productions exposes the desugared production set so the compiled
	// backend's table interpreter (internal/backend/compiled/tableparser)
	// can recover a RuleName and RHS length on every reduce.
	Productions []*Production
}

// Build runs the full LR(0) automaton construction plus SLR(1) lookahead
// assignment and ACTION/GOTO table population over ps, with start as the
// (unaugmented) entry symbol. Conflicts are resolved per spec.md §4.5
// ("shift wins over reduce; earliest-declared production wins over a
// later one") and reported as translator warnings rather than failing the
// build — mirrors vartan's tolerant-but-reported conflict handling
// (semantic_error.go's conflict diagnostics), though vartan's resolution
// order additionally consults declared precedence/associativity, which
// this builder does not model (see DESIGN.md).
func Build(ps *ProductionSet, start Symbol) (*Tables, []diagnostic.Diagnostic) {
	augStart := ps.add(SymbolStart, []Symbol{start}, "<start>")
	_ = augStart

	a := buildAutomaton(ps, SymbolStart)
	fs := genFirstSet(ps)
	flw := genFollowSet(ps, fs, SymbolStart)

	t := &Tables{
		StateCount:  len(a.states),
		Action:      map[int]map[Symbol]Action{},
		Goto:        map[int]map[Symbol]int{},
		Productions: ps.All(),
	}

	var diags []diagnostic.Diagnostic
	keyToState := map[string]*state{}
	for key, st := range a.states {
		keyToState[key] = st
	}

	for _, key := range a.order {
		st := keyToState[key]
		t.Action[st.num] = map[Symbol]Action{}
		t.Goto[st.num] = map[Symbol]int{}

		for sym, nextKey := range st.next {
			target := keyToState[nextKey].num
			if isNonTerminalSymbol(ps, sym) {
				t.Goto[st.num][sym] = target
			} else {
				setAction(t, st.num, sym, Action{Kind: ActionShift, State: target}, ps, &diags)
			}
		}

		for _, it := range st.reducible {
			p := ps.byID(it.prod)
			if p.LHS == SymbolStart {
				setAction(t, st.num, SymbolEOF, Action{Kind: ActionAccept}, ps, &diags)
				continue
			}
			for sym := range flw.set[p.LHS] {
				setAction(t, st.num, sym, Action{Kind: ActionReduce, Prod: p.ID}, ps, &diags)
			}
		}
	}

	return t, diags
}

func isNonTerminalSymbol(ps *ProductionSet, sym Symbol) bool {
	return len(ps.ByLHS(sym)) > 0
}

// setAction installs action at (state, sym), resolving a collision per
// spec.md §4.5: shift beats reduce, and between two reduces the
// earlier-declared production wins. Every resolution is reported as a
// translator warning (never an error — spec.md's Compiled.Translate state
// machine only hard-fails on the validation errors Interpreted.Validate
// already reports).
func setAction(t *Tables, stateNum int, sym Symbol, action Action, ps *ProductionSet, diags *[]diagnostic.Diagnostic) {
	existing, ok := t.Action[stateNum][sym]
	if !ok {
		t.Action[stateNum][sym] = action
		return
	}
	if existing == action {
		return
	}

	winner := action
	switch {
	case existing.Kind == ActionShift && action.Kind == ActionReduce:
		winner = existing
	case existing.Kind == ActionReduce && action.Kind == ActionShift:
		winner = action
	case existing.Kind == ActionReduce && action.Kind == ActionReduce:
		if existing.Prod < action.Prod {
			winner = existing
		} else {
			winner = action
		}
	}
	t.Action[stateNum][sym] = winner

	*diags = append(*diags, diagnostic.FromTranslation(
		fmt.Sprintf("conflict in state %d on symbol %d: resolved %s vs %s in favor of %s",
			stateNum, sym, describeAction(existing, ps), describeAction(action, ps), describeAction(winner, ps)),
		diagnostic.SeverityWarning,
	))
}

func describeAction(a Action, ps *ProductionSet) string {
	switch a.Kind {
	case ActionShift:
		return fmt.Sprintf("shift(%d)", a.State)
	case ActionReduce:
		return fmt.Sprintf("reduce(%s)", ps.byID(a.Prod).RuleName)
	case ActionAccept:
		return "accept"
	default:
		return "error"
	}
}

// SortedStates returns state numbers in ascending order, for deterministic
// table emission (internal/translator.Compiled.Translate writes these
// tables to a generated Go source file, so emission order must be stable).
func (t *Tables) SortedStates() []int {
	out := make([]int, 0, len(t.Action))
	for s := range t.Action {
		out = append(out, s)
	}
	sort.Ints(out)
	return out
}
