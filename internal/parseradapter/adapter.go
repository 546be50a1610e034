// Package parseradapter defines the uniform parser-adapter contract (PA,
// spec.md §4.3) both backends implement identically. Generalized from
// internal/syntax/backend.Parser/Factory, which only spoke tree-sitter.
package parseradapter

import (
	"context"

	"github.com/kpumuk/langforge/internal/diagnostic"
	"github.com/kpumuk/langforge/internal/langgrammar"
	"github.com/kpumuk/langforge/internal/stree"
	"github.com/kpumuk/langforge/internal/text"
)

// TextChange describes one edit against the previous text, in byte offsets
// against the OLD text (spec.md §6).
type TextChange struct {
	RangeOffset text.ByteOffset
	RangeLength int
	Text        string
}

// ExpectedToken is one completion candidate returned by GetExpectedTokens.
type ExpectedToken struct {
	Name      string
	IsKeyword bool
	Pattern   string // set for non-keyword terminals with a known regex
}

// ParseResult is returned by both Parse and ParseIncremental.
type ParseResult struct {
	Root            stree.Root
	IncrementalState any // opaque; nil for backends that do not support incremental parsing
}

// Adapter is the contract every parser backend implements (spec.md §4.3).
type Adapter interface {
	// Configure is called once before the first Parse. Backends that were
	// already initialized through another path (e.g. pre-compiled tables
	// loaded at startup) may no-op.
	Configure(ctx context.Context, grammar *langgrammar.Grammar, config Config) error

	// Parse performs a full parse. The resulting root's range covers
	// [0, len(text)); diagnostics are attached to the root.
	Parse(ctx context.Context, source []byte, entryRule string) (ParseResult, error)

	// GetExpectedTokens computes completion candidates after the token
	// prefix ending at offset.
	GetExpectedTokens(ctx context.Context, source []byte, offset text.ByteOffset) ([]ExpectedToken, error)

	// SupportsIncremental truthfully reports whether ParseIncremental is
	// usable. Callers must fall back to Parse when it returns false
	// (spec.md §4.3).
	SupportsIncremental() bool

	// Dispose releases backend resources. Optional; a no-op is valid.
	Dispose()
}

// IncrementalAdapter narrows Adapter for backends that advertise
// SupportsIncremental() == true.
type IncrementalAdapter interface {
	Adapter
	ParseIncremental(ctx context.Context, source []byte, previousState any, changes []TextChange) (ParseResult, error)
}

// Config carries backend-specific startup configuration.
type Config struct {
	LanguageID string
	EntryRule  string
}

// Diagnostics is a convenience accessor mirroring stree.Root.Diagnostics,
// kept here so callers that only import parseradapter do not also need to
// import stree directly just to read diagnostics off a ParseResult.
func (pr ParseResult) Diagnostics() []diagnostic.Diagnostic {
	if pr.Root == nil {
		return nil
	}
	return pr.Root.Diagnostics()
}
