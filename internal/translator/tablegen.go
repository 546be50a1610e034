package translator

import (
	"fmt"
	"strings"

	"github.com/kpumuk/langforge/internal/translator/lalr"
)

// renderTermsTable emits <languageId>.terms.go: the production list plus
// the keyword-literal-to-symbol-ID map, as a standalone file so a
// language's term/production numbering can be regenerated independent of
// its (much larger) state table — mirroring the teacher's own split
// between a language's lexer tables and its parser tables
// (internal/lexer vs internal/syntax). KeywordSymbols is what lets a
// no-WASM fallback lexer (SPEC_FULL.md §6.5) assign the same symbol IDs
// to keyword text that Tables.Action/Goto were built against; non-keyword
// terminals need no such table here since their symbol IS the grammar's
// own gr.SymbolID, already available from the grammar index.
func renderTermsTable(languageID string, t *lalr.Tables, keywordSymbols map[string]int32) string {
	var b strings.Builder
	fmt.Fprintf(&b, "// Code generated by internal/translator. DO NOT EDIT.\n\n")
	fmt.Fprintf(&b, "package %s\n\n", packageName(languageID))
	b.WriteString("import \"github.com/kpumuk/langforge/internal/backend/compiled/tableparser\"\n\n")
	fmt.Fprintf(&b, "var productions = []tableparser.Production{\n")
	for _, p := range t.Productions {
		fmt.Fprintf(&b, "\t{LHS: %d, RHSLen: %d, RuleName: %q},\n", p.LHS, len(p.RHS), p.RuleName)
	}
	b.WriteString("}\n\n")

	fmt.Fprintf(&b, "var KeywordSymbols = map[string]int32{\n")
	for _, kw := range sortedKeywordValues(keywordSymbols) {
		fmt.Fprintf(&b, "\t%q: %d,\n", kw, keywordSymbols[kw])
	}
	b.WriteString("}\n")
	return b.String()
}

func sortedKeywordValues(m map[string]int32) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1] > out[j]; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}

// renderParserTable emits <languageId>.parser.go: the ACTION/GOTO table,
// as a tableparser.Tables literal consumable by the fallback in-process
// table interpreter (internal/backend/compiled/tableparser) when no WASM
// grammar shared library has been built for this language yet (SPEC_FULL.md
// §6.5).
func renderParserTable(languageID string, t *lalr.Tables) string {
	var b strings.Builder
	fmt.Fprintf(&b, "// Code generated by internal/translator. DO NOT EDIT.\n\n")
	fmt.Fprintf(&b, "package %s\n\n", packageName(languageID))
	b.WriteString("import \"github.com/kpumuk/langforge/internal/backend/compiled/tableparser\"\n\n")

	fmt.Fprintf(&b, "var Tables = &tableparser.Tables{\n")
	fmt.Fprintf(&b, "\tStateCount: %d,\n", t.StateCount)
	b.WriteString("\tAction: map[int]map[int32]tableparser.Action{\n")
	for _, s := range t.SortedStates() {
		fmt.Fprintf(&b, "\t\t%d: {\n", s)
		for _, sym := range sortedSymbols(t.Action[s]) {
			a := t.Action[s][sym]
			fmt.Fprintf(&b, "\t\t\t%d: {Kind: %s, State: %d, Prod: %d},\n", sym, actionKindName(a.Kind), a.State, a.Prod)
		}
		b.WriteString("\t\t},\n")
	}
	b.WriteString("\t},\n")

	b.WriteString("\tGoto: map[int]map[int32]int{\n")
	for _, s := range t.SortedStates() {
		row, ok := t.Goto[s]
		if !ok || len(row) == 0 {
			continue
		}
		fmt.Fprintf(&b, "\t\t%d: {\n", s)
		for _, sym := range sortedGotoSymbols(row) {
			fmt.Fprintf(&b, "\t\t\t%d: %d,\n", sym, row[sym])
		}
		b.WriteString("\t\t},\n")
	}
	b.WriteString("\t},\n")
	b.WriteString("\tProductions: productions,\n")
	b.WriteString("}\n")
	return b.String()
}

func actionKindName(k lalr.ActionKind) string {
	switch k {
	case lalr.ActionShift:
		return "tableparser.ActionShift"
	case lalr.ActionReduce:
		return "tableparser.ActionReduce"
	case lalr.ActionAccept:
		return "tableparser.ActionAccept"
	default:
		return "tableparser.ActionError"
	}
}

func sortedSymbols(row map[lalr.Symbol]lalr.Action) []lalr.Symbol {
	out := make([]lalr.Symbol, 0, len(row))
	for sym := range row {
		out = append(out, sym)
	}
	sortSymbols(out)
	return out
}

func sortedGotoSymbols(row map[lalr.Symbol]int) []lalr.Symbol {
	out := make([]lalr.Symbol, 0, len(row))
	for sym := range row {
		out = append(out, sym)
	}
	sortSymbols(out)
	return out
}

func sortSymbols(syms []lalr.Symbol) {
	for i := 1; i < len(syms); i++ {
		for j := i; j > 0 && syms[j-1] > syms[j]; j-- {
			syms[j-1], syms[j] = syms[j], syms[j-1]
		}
	}
}

// packageName derives a Go package identifier from a language id (e.g.
// "thrift" -> "thrift"; any non-identifier-safe id is prefixed so the
// generated file still compiles under a plausible name).
func packageName(languageID string) string {
	if languageID == "" {
		return "langgen"
	}
	r := []rune(languageID)
	if !isLetter(r[0]) {
		return "lang_" + sanitize(languageID)
	}
	return sanitize(languageID)
}

func sanitize(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if isLetter(r) || (r >= '0' && r <= '9') {
			out = append(out, r)
		} else {
			out = append(out, '_')
		}
	}
	return string(out)
}

func isLetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r == '_'
}
