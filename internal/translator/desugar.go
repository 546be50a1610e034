package translator

import (
	"fmt"
	"strings"

	"github.com/kpumuk/langforge/internal/diagnostic"
	"github.com/kpumuk/langforge/internal/gr"
	"github.com/kpumuk/langforge/internal/langgrammar"
	"github.com/kpumuk/langforge/internal/translator/grammarsyntax"
	"github.com/kpumuk/langforge/internal/translator/lalr"
)

// desugarResult is everything the LALR table builder and the grammar-
// source emitter need, produced by one walk over g.
type desugarResult struct {
	productions    *lalr.ProductionSet
	entrySymbol    lalr.Symbol
	fieldMap       *gr.FieldMap
	keywords       []string
	keywordSymbols map[string]lalr.Symbol
	grammarDoc     grammarsyntax.Document
	diags          []diagnostic.Diagnostic
}

// desugarer lowers internal/langgrammar's surface syntax (cardinality,
// groups, unordered groups, assignments, infix rules) into the flat BNF
// productions internal/translator/lalr operates on, synthesizing helper
// non-terminals for every construct BNF can't express directly — the same
// role nihei9-vartan's own grammar-AST-to-production lowering plays before
// its item/lr0/lalr1 stages run, generalized from vartan's hand-rolled
// parser/AST onto internal/langgrammar.Grammar.
type desugarer struct {
	idx *gr.Index

	ps       *lalr.ProductionSet
	fieldMap *gr.FieldMap

	// synth maps a rule or helper name to its already-allocated symbol, so
	// recursive/self-referential helpers (e.g. a "*" list's own repetition)
	// and infix-rule names (gr.Index does not yet index InfixRule names;
	// see desugarInfixRule) resolve consistently across multiple visits.
	synth map[string]lalr.Symbol

	keywordSymbols map[string]lalr.Symbol
	keywordSeen    map[string]bool
	keywords       []string

	synthCounter  int
	nextSynthetic int32

	docRules   map[string][][]string
	precedence []grammarsyntax.PrecedenceLevel
	diags      []diagnostic.Diagnostic
}

// syntheticSymbolBase is chosen well above gr.SymbolID's uint16 range so a
// synthetic helper symbol can never collide with a real grammar rule's
// symbol once both are widened to lalr.Symbol (int32).
const syntheticSymbolBase = int32(1 << 17)

func newDesugarer(idx *gr.Index) *desugarer {
	return &desugarer{
		idx:            idx,
		ps:             lalr.NewProductionSet(),
		fieldMap:       gr.NewFieldMap(),
		synth:          map[string]lalr.Symbol{},
		keywordSymbols: map[string]lalr.Symbol{},
		keywordSeen:    map[string]bool{},
		docRules:       map[string][][]string{},
	}
}

func (d *desugarer) newSynthSymbol() lalr.Symbol {
	sym := lalr.Symbol(syntheticSymbolBase + d.nextSynthetic)
	d.nextSynthetic++
	return sym
}

func (d *desugarer) freshName(prefix string) string {
	d.synthCounter++
	return fmt.Sprintf("%s#%d", prefix, d.synthCounter)
}

// ruleSymbol resolves name to a symbol: a previously-registered synthetic
// (including a pre-registered infix-rule name), a gr.Index rule, or — if
// neither matches — a freshly synthesized one (recorded so later lookups
// of the same name agree).
func (d *desugarer) ruleSymbol(name string) lalr.Symbol {
	if sym, ok := d.synth[name]; ok {
		return sym
	}
	if rule, ok := d.idx.RuleByName(name); ok {
		return lalr.FromRule(rule.Symbol)
	}
	sym := d.newSynthSymbol()
	d.synth[name] = sym
	return sym
}

func (d *desugarer) keywordSymbol(value string) lalr.Symbol {
	if sym, ok := d.keywordSymbols[value]; ok {
		return sym
	}
	sym := d.newSynthSymbol()
	d.keywordSymbols[value] = sym
	if !d.keywordSeen[value] {
		d.keywordSeen[value] = true
		d.keywords = append(d.keywords, value)
	}
	return sym
}

func (d *desugarer) crossRefSymbol(target string) lalr.Symbol {
	return d.ruleSymbol("$ref:" + target)
}

// applyCardinality wraps sym in a synthetic list/optional helper rule when
// card isn't langgrammar.One, per spec.md §4.5 ("cardinality ? * + is
// applied after the inner translation"). render is the already-rendered
// tree-sitter-syntax expression for the base element; the returned render
// uses tree-sitter's native optional/repeat/repeat1 combinators directly
// (no synthetic rule needed on the grammar-source side — only the LALR
// table needs BNF-shaped helpers).
func (d *desugarer) applyCardinality(sym lalr.Symbol, render string, card langgrammar.Cardinality, baseName string) (lalr.Symbol, string) {
	switch card {
	case langgrammar.Optional:
		name := d.freshName(baseName + "_opt")
		s := d.newSynthSymbol()
		d.synth[name] = s
		d.ps.Add(s, nil, name)
		d.ps.Add(s, []lalr.Symbol{sym}, name)
		return s, "optional(" + render + ")"
	case langgrammar.Star:
		name := d.freshName(baseName + "_star")
		s := d.newSynthSymbol()
		d.synth[name] = s
		d.ps.Add(s, nil, name)
		d.ps.Add(s, []lalr.Symbol{s, sym}, name)
		return s, "repeat(" + render + ")"
	case langgrammar.Plus:
		name := d.freshName(baseName + "_plus")
		s := d.newSynthSymbol()
		d.synth[name] = s
		d.ps.Add(s, []lalr.Symbol{sym}, name)
		d.ps.Add(s, []lalr.Symbol{s, sym}, name)
		return s, "repeat1(" + render + ")"
	default:
		return sym, render
	}
}

func (d *desugarer) desugarElement(ruleName string, el langgrammar.Element) (lalr.Symbol, string) {
	switch v := el.(type) {
	case *langgrammar.Keyword:
		sym := d.keywordSymbol(v.Value)
		return d.applyCardinality(sym, fmt.Sprintf("%q", v.Value), v.Cardinality, ruleName+"_kw")
	case *langgrammar.RuleCall:
		sym := d.ruleSymbol(v.RuleName)
		return d.applyCardinality(sym, "$."+v.RuleName, v.Cardinality, ruleName+"_"+v.RuleName)
	case *langgrammar.CrossReference:
		sym := d.crossRefSymbol(v.TargetRuleName)
		return d.applyCardinality(sym, "$."+v.TargetRuleName, v.Cardinality, ruleName+"_ref_"+v.TargetRuleName)
	case *langgrammar.Group:
		sym, render := d.desugarGroup(ruleName, v)
		return d.applyCardinality(sym, render, v.Cardinality, ruleName+"_group")
	case *langgrammar.Assignment:
		return d.desugarAssignment(ruleName, v)
	default:
		d.diags = append(d.diags, diagnostic.FromTranslation(
			fmt.Sprintf("rule %q: unrecognized grammar element type %T", ruleName, el),
			diagnostic.SeverityError,
		))
		name := d.freshName(ruleName + "_unknown")
		s := d.newSynthSymbol()
		d.synth[name] = s
		d.ps.Add(s, nil, name)
		return s, "blank()"
	}
}

// desugarGroup lowers a (possibly unordered) group into a synthetic helper
// rule, one production per admissible ordering. Per spec.md §4.5: ≤4
// elements get full permutation expansion; more than that collapses to one
// fixed sequence with a warning (matching how Interpreted.Validate flags
// the same construct for the interpreted backend in interpreted.go).
func (d *desugarer) desugarGroup(ruleName string, g *langgrammar.Group) (lalr.Symbol, string) {
	name := d.freshName(ruleName + "_group")
	sym := d.newSynthSymbol()
	d.synth[name] = sym

	if g.Unordered && len(g.Alternatives) > 1 {
		n := len(g.Alternatives)
		rendered := make([][]lalr.Symbol, 0, n)
		for _, alt := range g.Alternatives {
			var rhs []lalr.Symbol
			for _, el := range alt.Elements {
				s, _ := d.desugarElement(ruleName, el)
				rhs = append(rhs, s)
			}
			rendered = append(rendered, rhs)
		}

		if n <= 4 {
			for _, perm := range permutations(n) {
				var rhs []lalr.Symbol
				for _, i := range perm {
					rhs = append(rhs, rendered[i]...)
				}
				d.ps.Add(sym, rhs, name)
			}
		} else {
			d.diags = append(d.diags, diagnostic.FromTranslation(
				fmt.Sprintf("rule %q: unordered group with %d elements exceeds the 4-element permutation limit; emitting as a fixed sequence", ruleName, n),
				diagnostic.SeverityWarning,
			))
			var rhs []lalr.Symbol
			for _, r := range rendered {
				rhs = append(rhs, r...)
			}
			d.ps.Add(sym, rhs, name)
		}
		return sym, "seq(/* unordered */)"
	}

	for _, alt := range g.Alternatives {
		var rhs []lalr.Symbol
		for _, el := range alt.Elements {
			s, _ := d.desugarElement(ruleName, el)
			rhs = append(rhs, s)
		}
		d.ps.Add(sym, rhs, name)
	}
	return sym, "choice(/* group */)"
}

// desugarAssignment wraps the target in the fresh "ParentProperty" field
// non-terminal spec.md §4.5 describes, recording (ruleName, wrapperName) ->
// property in the field map so the compiled backend's tree builder
// (internal/backend/compiled/tree.go) can recover field names from child
// kind names alone. Repeated assignments to the same property within the
// same rule share one wrapper rule (deduplicated by (ruleName, property)),
// gaining one alternative per distinct target shape.
func (d *desugarer) desugarAssignment(ruleName string, a *langgrammar.Assignment) (lalr.Symbol, string) {
	targetSym, targetRender := d.desugarElement(ruleName, a.Target)

	wrapperName := fieldWrapperName(ruleName, a.Property)
	key := ruleName + "#" + a.Property
	sym, exists := d.synth[key]
	if !exists {
		sym = d.newSynthSymbol()
		d.synth[key] = sym
		d.fieldMap.Add(ruleName, wrapperName, a.Property)
	}
	d.ps.Add(sym, []lalr.Symbol{targetSym}, wrapperName)
	return sym, fmt.Sprintf("alias(%s, $.%s)", targetRender, wrapperName)
}

func fieldWrapperName(ruleName, property string) string {
	if property == "" {
		return ruleName
	}
	return ruleName + strings.ToUpper(property[:1]) + property[1:]
}

// desugarInfixRule unfolds a compact binary-operator rule into the
// left(or right)-recursive alternation spec.md §4.5 describes: one
// precedence level per entry in inf.Levels (ordered highest to lowest
// encounter precedence), each level falling back to the next-tighter
// level, with the lowest level (last in Levels) taking the rule's own
// declared name since other rules call it by that name.
func (d *desugarer) desugarInfixRule(inf *langgrammar.InfixRule) {
	prev := d.ruleSymbol(inf.OperandRule)
	n := len(inf.Levels)
	for i, lvl := range inf.Levels {
		levelName := inf.Name
		if i < n-1 {
			levelName = d.freshName(inf.Name + "_level")
		}
		levelSym := d.ruleSymbol(levelName)
		opSym := d.keywordSymbol(lvl.Operator)

		if lvl.RightAssoc {
			d.ps.Add(levelSym, []lalr.Symbol{prev, opSym, levelSym}, levelName)
		} else {
			d.ps.Add(levelSym, []lalr.Symbol{levelSym, opSym, prev}, levelName)
		}
		d.ps.Add(levelSym, []lalr.Symbol{prev}, levelName)

		assoc := grammarsyntax.PrecedenceLevel{RightAssoc: lvl.RightAssoc, Operators: []string{lvl.Operator}}
		d.precedence = append(d.precedence, assoc)
		prev = levelSym
	}
}

// desugar walks g's parser rules and infix rules into a flat production
// set ready for lalr.Build, plus the field map and keyword set the
// compiled backend's persisted artifacts need (spec.md §6).
func desugar(idx *gr.Index, g *langgrammar.Grammar) *desugarResult {
	d := newDesugarer(idx)

	// Pre-register every infix rule's own name before any rule body is
	// visited: a RuleCall elsewhere in the grammar may reference an infix
	// rule by name, and gr.Index does not index InfixRule names (see
	// desugarInfixRule's doc comment) — without this pre-pass, a RuleCall
	// visited before its infix rule's own desugarInfixRule call would
	// synthesize a second, disconnected symbol for the same name.
	for _, inf := range g.InfixRules {
		if _, ok := d.synth[inf.Name]; !ok {
			d.synth[inf.Name] = d.newSynthSymbol()
		}
	}

	for _, r := range g.Rules {
		if r.IsTerminal {
			continue
		}
		lhs := d.ruleSymbol(r.Name)
		for _, alt := range r.Alternatives {
			var rhs []lalr.Symbol
			var rendered []string
			for _, el := range alt.Elements {
				sym, render := d.desugarElement(r.Name, el)
				rhs = append(rhs, sym)
				rendered = append(rendered, render)
			}
			d.ps.Add(lhs, rhs, r.Name)
			d.docRules[r.Name] = append(d.docRules[r.Name], rendered)
		}
	}

	for _, inf := range g.InfixRules {
		d.desugarInfixRule(inf)
	}

	entry := d.ruleSymbol(g.EntryRule)

	var docRules []grammarsyntax.Rule
	for _, r := range g.Rules {
		if r.IsTerminal {
			continue
		}
		docRules = append(docRules, grammarsyntax.Rule{
			Name:         r.Name,
			Hidden:       r.IsFragment,
			Alternatives: d.docRules[r.Name],
		})
	}

	return &desugarResult{
		productions:    d.ps,
		entrySymbol:    entry,
		fieldMap:       d.fieldMap,
		keywords:       d.keywords,
		keywordSymbols: d.keywordSymbols,
		grammarDoc: grammarsyntax.Document{
			Name:       g.Name,
			EntryRule:  g.EntryRule,
			Precedence: d.precedence,
			Rules:      docRules,
		},
		diags: d.diags,
	}
}

// permutations returns every ordering of {0,...,n-1} as index slices, used
// by desugarGroup to expand an unordered group of ≤4 members.
func permutations(n int) [][]int {
	if n == 0 {
		return [][]int{{}}
	}
	idxs := make([]int, n)
	for i := range idxs {
		idxs[i] = i
	}
	var out [][]int
	var rec func(prefix []int, rest []int)
	rec = func(prefix []int, rest []int) {
		if len(rest) == 0 {
			cp := make([]int, len(prefix))
			copy(cp, prefix)
			out = append(out, cp)
			return
		}
		for i, v := range rest {
			nextRest := make([]int, 0, len(rest)-1)
			nextRest = append(nextRest, rest[:i]...)
			nextRest = append(nextRest, rest[i+1:]...)
			rec(append(prefix, v), nextRest)
		}
	}
	rec(nil, idxs)
	return out
}
