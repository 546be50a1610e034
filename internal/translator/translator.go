// Package translator implements the grammar translator (C5, spec.md §4.5):
// validation for the interpreted backend, and grammar-source + field-map +
// keyword-set + parse-table emission for the compiled backend. Grounded on
// nihei9-vartan's grammar package for the LALR/SLR table construction
// (delegated to internal/translator/lalr) and on the teacher's own
// "generate thrift.wasm from thrift.grammar" step (internal/grammars/thrift)
// for the shape of a translator's persisted-artifact set, generalized from
// one hardcoded language to any internal/langgrammar.Grammar.
package translator

import (
	"github.com/kpumuk/langforge/internal/diagnostic"
	"github.com/kpumuk/langforge/internal/gr"
	"github.com/kpumuk/langforge/internal/translator/lalr"
)

// Artifacts is everything Compiled.Translate writes to outDir, mirroring
// spec.md §6's "Persisted artifacts" list plus the project descriptor
// SPEC_FULL.md §7 adds for completeness.
type Artifacts struct {
	GrammarSource string // <languageId>.grammar.js
	FieldMap      *gr.FieldMap
	Keywords      []string
	// KeywordSymbols maps each keyword literal to the synthetic symbol ID
	// the LALR table was built against (desugarer.keywordSymbol), so a
	// caller driving tableparser.Run directly — with no generated
	// <languageId>.terms.go package to import — can still build a lexer
	// that emits tableparser.Token.Symbol values the Tables recognize.
	KeywordSymbols map[string]int32
	Tables         *lalr.Tables
	Descriptor     ProjectDescriptor
}

// ProjectDescriptor is the small human-readable <languageId>.langforge.yaml
// sidecar (SPEC_FULL.md §7): enough for a document builder to check a
// language's artifacts are present without re-parsing the grammar.
type ProjectDescriptor struct {
	LanguageID   string `yaml:"languageId"`
	EntryRule    string `yaml:"entryRule"`
	RuleCount    int    `yaml:"ruleCount"`
	KeywordCount int    `yaml:"keywordCount"`
	GeneratedAt  string `yaml:"generatedAt"` // caller-supplied timestamp; this package never reads the clock
}

// hasErrorSeverity reports the Initial -> HasErrors transition of spec.md
// §4.5's translator state machine: Compiled.Translate stops emitting
// artifacts as soon as any stage produces an error-severity diagnostic.
func hasErrorSeverity(diags []diagnostic.Diagnostic) bool {
	for _, d := range diags {
		if d.Severity == diagnostic.SeverityError {
			return true
		}
	}
	return false
}
