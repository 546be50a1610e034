package compiled

import (
	"github.com/kpumuk/langforge/internal/backend/compiled/tableparser"
	"github.com/kpumuk/langforge/internal/gr"
)

// LanguageArtifact is everything the translator (internal/translator)
// produces for one grammar's compiled backend: the wasm tree-sitter parser
// plus the field map standing in for tree-sitter's native (and here
// unavailable) field-query API. Generalizes the teacher's hardcoded
// embedded thrift.wasm (internal/grammars/thrift) into translator output
// any grammar can supply (spec.md §4.4b, §4.5).
//
// Tables and KeywordSymbols back the no-WASM fallback parser (SPEC_FULL.md
// §6.5): when WASM is empty but Tables is set, Adapter runs a hand-written
// lexer plus tableparser.Run in place of the wazero-hosted tree-sitter
// parser, for a language with no compiled shared library yet (or an
// environment that cannot host wazero at all). Both fields come straight
// off translator.Artifacts — Tables is the SLR(1) ACTION/GOTO table
// tableparser.Run interprets directly; KeywordSymbols maps each keyword
// literal to the synthetic symbol ID the table was built against, since
// keyword symbols have no gr.SymbolID of their own.
type LanguageArtifact struct {
	WASM     []byte
	Checksum string // sha256 hex digest of WASM, verified before load
	Symbol   string // language id; the artifact must export tree_sitter_<Symbol>
	FieldMap *gr.FieldMap

	Tables         *tableparser.Tables
	KeywordSymbols map[string]int32
}
