// Package tableparser is the compiled backend's in-process LR table
// interpreter: a fallback runtime for a language the translator
// (internal/translator) has produced SLR(1) tables for but that has no
// built WASM tree-sitter shared library yet. It trades the wazero/wasm
// runtime's speed for zero build-toolchain dependency, walking the
// ACTION/GOTO tables the translator emits to <languageId>.parser.go /
// <languageId>.terms.go directly. Grounded on nihei9-vartan's own
// table-driven parser (grammar/parsing_table.go's consumer side), adapted
// from vartan's packed-table bytecode reader to a plain in-memory Go table
// literal, since this project's tables are generated Go source rather than
// a binary blob vartan's parser loads at runtime.
package tableparser

// ActionKind mirrors internal/translator/lalr.ActionKind; duplicated here
// (rather than imported) so a generated <languageId>.parser.go file has no
// compile-time dependency on the translator package, matching how the
// teacher's own generated thrift.wasm artifact never imports its
// generator.
type ActionKind uint8

const (
	ActionError ActionKind = iota
	ActionShift
	ActionReduce
	ActionAccept
)

// Action is one ACTION table cell.
type Action struct {
	Kind  ActionKind
	State int
	Prod  int
}

// Production is one desugared grammar production, enough for the
// interpreter to pop |RHS| symbols on reduce and know which rule produced
// the resulting node.
type Production struct {
	LHS      int32
	RHSLen   int
	RuleName string
}

// Tables is the generated artifact's shape: one ACTION/GOTO row per parser
// state, plus the production list reduces index into.
type Tables struct {
	StateCount  int
	Action      map[int]map[int32]Action
	Goto        map[int]map[int32]int
	Productions []Production
	// EntrySymbol is the (non-augmented) start symbol's numeric id, used
	// only for diagnostics.
	EntrySymbol int32
}
