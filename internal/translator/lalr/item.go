package lalr

import (
	"fmt"
	"sort"
	"strings"
)

// item is an LR(0) item: production p with the dot before RHS[dot].
// Comparable, so it can be used as a map key directly — vartan content-
// addresses items with a sha256 of production id + dot (lr0_item.go) for
// the same reason; a plain struct key is equivalent and cheaper since
// there's no cross-run persistence requirement here.
type item struct {
	prod ProductionID
	dot  int
}

func (it item) dottedSymbol(ps *ProductionSet) Symbol {
	p := ps.byID(it.prod)
	if it.dot >= len(p.RHS) {
		return symbolNil
	}
	return p.RHS[it.dot]
}

func (it item) reducible(ps *ProductionSet) bool {
	return it.dot == len(ps.byID(it.prod).RHS)
}

func (it item) advance() item { return item{prod: it.prod, dot: it.dot + 1} }

// kernel is a deduplicated, sorted set of kernel items (dot > 0, or the
// augmented start item). Its key is a canonical string over (prod,dot)
// pairs, standing in for vartan's sha256 kernelID (lr0_item.go) — both
// exist only to give each distinct item set a stable map key.
type kernel struct {
	key   string
	items []item
}

func newKernel(items []item) *kernel {
	seen := map[item]bool{}
	var uniq []item
	for _, it := range items {
		if seen[it] {
			continue
		}
		seen[it] = true
		uniq = append(uniq, it)
	}
	sort.Slice(uniq, func(i, j int) bool {
		if uniq[i].prod != uniq[j].prod {
			return uniq[i].prod < uniq[j].prod
		}
		return uniq[i].dot < uniq[j].dot
	})
	var b strings.Builder
	for _, it := range uniq {
		fmt.Fprintf(&b, "%d.%d|", it.prod, it.dot)
	}
	return &kernel{key: b.String(), items: uniq}
}

// closure computes CLOSURE(k): for every item whose dotted symbol is a
// non-terminal, add every initial (dot=0) item of that non-terminal's own
// productions, repeating until no new items appear. Ported from vartan's
// genClosure (lr0_item.go).
func closure(k *kernel, ps *ProductionSet) []item {
	known := map[item]bool{}
	var items []item
	var frontier []item
	for _, it := range k.items {
		if !known[it] {
			known[it] = true
			items = append(items, it)
			frontier = append(frontier, it)
		}
	}
	for len(frontier) > 0 {
		var next []item
		for _, it := range frontier {
			sym := it.dottedSymbol(ps)
			if sym.isNil() {
				continue
			}
			for _, p := range ps.ByLHS(sym) {
				cand := item{prod: p.ID, dot: 0}
				if known[cand] {
					continue
				}
				known[cand] = true
				items = append(items, cand)
				next = append(next, cand)
			}
		}
		frontier = next
	}
	return items
}
