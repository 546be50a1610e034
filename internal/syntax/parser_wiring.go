package syntax

import (
	"sync"

	compiledts "github.com/kpumuk/langforge/internal/backend/compiled/treesitter"
	thriftwasm "github.com/kpumuk/langforge/internal/grammars/thrift"
)

// thriftArtifact describes the Thrift grammar's compiled wasm parser to the
// generalized wazero-backed runtime in internal/backend/compiled/treesitter.
// It replaces internal/syntax/treesitter's own former hardcoded
// tree_sitter_thrift loader, so this package and the generic compiled
// backend share one parser implementation instead of two.
var thriftArtifact = compiledts.Artifact{
	WASM:     thriftwasm.WASM(),
	Checksum: thriftwasm.WASMChecksum(),
	Symbol:   "thrift",
}

var (
	newParserMu sync.RWMutex
	newParser   = func() (*compiledts.Parser, error) {
		return compiledts.NewParser(thriftArtifact)
	}
)

func currentNewParser() func() (*compiledts.Parser, error) {
	newParserMu.RLock()
	fn := newParser
	newParserMu.RUnlock()
	return fn
}

// setParserConstructorForTesting overrides how Parse/Reparse obtain a parser
// instance, so tests can inject failure or call-counting behavior without a
// live wasm artifact.
func setParserConstructorForTesting(fn func() (*compiledts.Parser, error)) func() {
	newParserMu.Lock()
	prev := newParser
	newParser = fn
	newParserMu.Unlock()
	return func() {
		newParserMu.Lock()
		newParser = prev
		newParserMu.Unlock()
	}
}
