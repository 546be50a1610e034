// Package grammarsyntax renders a desugared rule set into the compiled
// backend's own grammar source syntax: a JS-object grammar description in
// the shape tree-sitter's grammar.js accepts (rules: {name: $ => seq(...)}),
// since the compiled backend (internal/backend/compiled) loads a
// tree-sitter-shaped parser. Grounded on nihei9-vartan/spec/grammar's own
// role (describing vartan's grammar textually) generalized to this
// project's emitted-artifact shape; actually invoking a JS/tree-sitter
// toolchain to turn this source into wasm is out of scope here (spec.md
// §4.5 step 4 hands that off to "the backend's parser generator" as an
// external step) — this package's job ends at emitting the source text the
// translator writes to <languageId>.grammar.js.
package grammarsyntax

import (
	"fmt"
	"sort"
	"strings"
)

// Rule is one emitted grammar rule: a named production built from already-
// translated alternatives (each alternative a sequence of already-rendered
// element expressions, e.g. `$.identifier`, `"keyword"`, `alias($._x,
// $.field)`).
type Rule struct {
	Name         string
	Hidden       bool // true for fragment rules (spec.md: "lowercase-named ... appear hidden")
	Alternatives [][]string
}

// Document is the full emitted grammar: its name, entry rule, precedence
// levels (for infix-rule associativity), and rule bodies.
type Document struct {
	Name      string
	EntryRule string
	Precedence []PrecedenceLevel
	Rules     []Rule
}

// PrecedenceLevel is one `@left`/`@right` associativity directive, ordered
// highest-binding first, matching how infix rules declare their operator
// levels (spec.md §4.5).
type PrecedenceLevel struct {
	RightAssoc bool
	Operators  []string
}

// Render serializes doc into the compiled backend's grammar source text.
func Render(doc Document) string {
	var b strings.Builder
	fmt.Fprintf(&b, "// generated by internal/translator; do not edit by hand\n")
	fmt.Fprintf(&b, "grammar(%q, {\n", doc.Name)
	fmt.Fprintf(&b, "  word: () => $.%s,\n", "identifier")
	if len(doc.Precedence) > 0 {
		b.WriteString("  conflicts: () => [],\n")
		b.WriteString("  precedences: () => [[\n")
		for _, level := range doc.Precedence {
			assoc := "left"
			if level.RightAssoc {
				assoc = "right"
			}
			fmt.Fprintf(&b, "    %s(%s),\n", assoc, joinQuoted(level.Operators))
		}
		b.WriteString("  ]],\n")
	}

	names := make([]string, len(doc.Rules))
	byName := map[string]Rule{}
	for i, r := range doc.Rules {
		names[i] = r.Name
		byName[r.Name] = r
	}
	sort.Strings(names)

	b.WriteString("  rules: {\n")
	for _, name := range names {
		r := byName[name]
		emitted := name
		if r.Hidden {
			emitted = strings.ToLower(name)
		}
		fmt.Fprintf(&b, "    %s: $ => %s,\n", emitted, renderAlternatives(r.Alternatives))
	}
	b.WriteString("  },\n")
	fmt.Fprintf(&b, "  start: $ => $.%s,\n", doc.EntryRule)
	b.WriteString("})\n")
	return b.String()
}

func renderAlternatives(alts [][]string) string {
	if len(alts) == 1 {
		return renderSeq(alts[0])
	}
	parts := make([]string, len(alts))
	for i, alt := range alts {
		parts[i] = renderSeq(alt)
	}
	return "choice(" + strings.Join(parts, ", ") + ")"
}

func renderSeq(elems []string) string {
	if len(elems) == 1 {
		return elems[0]
	}
	return "seq(" + strings.Join(elems, ", ") + ")"
}

func joinQuoted(vals []string) string {
	q := make([]string, len(vals))
	for i, v := range vals {
		q[i] = fmt.Sprintf("%q", v)
	}
	return strings.Join(q, ", ")
}
