package compiled

import (
	"github.com/kpumuk/langforge/internal/backend/compiled/treesitter"
)

// incrementalState is the opaque value a ParseResult.IncrementalState holds
// for the compiled backend: the live wasm parser instance and its current
// tree-sitter tree, kept alive across edits so ParseIncremental can apply
// InputEdits and reuse subtrees instead of reparsing from scratch.
type incrementalState struct {
	parser       *treesitter.Parser
	tree         *treesitter.Tree
	source       []byte
	reparseCount uint64
}

// fullParseVerificationEvery mirrors the teacher's periodic full-parse
// verification cadence (internal/syntax/incremental.go): sparse enough to
// keep the edit path's allocations low, frequent enough to catch subtree
// reuse drifting from a from-scratch parse.
var fullParseVerificationEvery uint64 = 256

func shouldVerifyWithFullParse(state *incrementalState) bool {
	if state == nil || state.reparseCount == 0 {
		return false
	}
	return state.reparseCount%fullParseVerificationEvery == 0
}
