package lalr

// ProductionID is a dense index into a ProductionSet, assigned in
// declaration order. Vartan content-addresses productions with a sha256 of
// LHS+RHS (production.go); this table builder instead runs once per
// translation and never persists IDs across runs, so a plain counter
// suffices.
type ProductionID int

// Production is one grammar rule alternative, already desugared to a flat
// symbol sequence (cardinality, groups, and unordered-group permutation
// have all been expanded away by the caller before productions reach this
// package — see internal/translator's desugaring pass).
type Production struct {
	ID   ProductionID
	LHS  Symbol
	RHS  []Symbol
	// RuleName names the gr.Index rule (or synthesized helper rule) this
	// production belongs to, for attaching diagnostics and for the compiled
	// backend's table interpreter to recover a node kind on reduce.
	RuleName string
}

func (p *Production) isEmpty() bool { return len(p.RHS) == 0 }

// ProductionSet indexes productions by their LHS symbol.
type ProductionSet struct {
	all   []*Production
	byLHS map[Symbol][]*Production
}

// NewProductionSet starts an empty production set. Callers outside this
// package (internal/translator's desugaring pass) populate it with Add
// before handing it to Build.
func NewProductionSet() *ProductionSet {
	return &ProductionSet{byLHS: map[Symbol][]*Production{}}
}

func (ps *ProductionSet) add(lhs Symbol, rhs []Symbol, ruleName string) *Production {
	p := &Production{ID: ProductionID(len(ps.all)), LHS: lhs, RHS: rhs, RuleName: ruleName}
	ps.all = append(ps.all, p)
	ps.byLHS[lhs] = append(ps.byLHS[lhs], p)
	return p
}

// Add registers a production lhs -> rhs, attributed to ruleName.
func (ps *ProductionSet) Add(lhs Symbol, rhs []Symbol, ruleName string) *Production {
	return ps.add(lhs, rhs, ruleName)
}

// ByLHS returns every production with the given LHS symbol.
func (ps *ProductionSet) ByLHS(lhs Symbol) []*Production { return ps.byLHS[lhs] }

// All returns every production in declaration order.
func (ps *ProductionSet) All() []*Production { return ps.all }

func (ps *ProductionSet) byID(id ProductionID) *Production { return ps.all[id] }
