// Package diagnostic defines the uniform diagnostic shape shared by both
// parser backends and the grammar translator (spec.md §3, §7), generalized
// out of internal/syntax's mapLexerDiagnostics/collectParserDiagnostics so
// every producer normalizes to the same type.
package diagnostic

import "github.com/kpumuk/langforge/internal/text"

// Severity is a diagnostic severity level.
type Severity uint8

const (
	// SeverityError indicates an error diagnostic.
	SeverityError Severity = iota + 1
	// SeverityWarning indicates a warning diagnostic.
	SeverityWarning
)

// Source identifies which stage produced a diagnostic.
type Source string

const (
	// SourceLexer marks a diagnostic produced while tokenizing.
	SourceLexer Source = "lexer"
	// SourceParser marks a diagnostic produced while parsing.
	SourceParser Source = "parser"
	// SourceTranslator marks a diagnostic produced during grammar translation.
	SourceTranslator Source = "translator"
)

// Code is an optional, additive classification kept from the teacher's
// DiagnosticCode enum (internal/syntax/types.go) — not required by spec.md's
// core Diagnostic shape, but useful to existing lint/format consumers that
// switch on it. See SPEC_FULL.md §7.
type Code string

const (
	// CodeParserErrorNode reports a parser-generated error node.
	CodeParserErrorNode Code = "PARSE_ERROR_NODE"
	// CodeParserMissingNode reports a parser-generated missing node.
	CodeParserMissingNode Code = "PARSE_MISSING_NODE"
	// CodeTranslationIncompatible reports a grammar construct the target
	// backend cannot express.
	CodeTranslationIncompatible Code = "TRANSLATION_INCOMPATIBLE"
)

// Diagnostic is the normalized diagnostic shape produced by either backend
// or the translator. Offset/Length are byte-based against the document that
// produced the diagnostic.
type Diagnostic struct {
	Message  string
	Offset   text.ByteOffset
	Length   int
	Severity Severity
	Source   Source
	Code     Code // optional, additive
}

// Span returns the diagnostic's byte range as a text.Span.
func (d Diagnostic) Span() text.Span {
	return text.Span{Start: d.Offset, End: d.Offset + text.ByteOffset(d.Length)}
}

// FromLexError builds a lexer diagnostic. Length is clamped to at least 1,
// per spec.md §3's "length ≥ 1" invariant.
func FromLexError(message string, offset text.ByteOffset, length int) Diagnostic {
	return Diagnostic{
		Message:  message,
		Offset:   offset,
		Length:   max(length, 1),
		Severity: SeverityError,
		Source:   SourceLexer,
	}
}

// FromParseError builds a parser diagnostic for an unexpected or recovered
// token.
func FromParseError(message string, offset text.ByteOffset, length int) Diagnostic {
	return Diagnostic{
		Message:  message,
		Offset:   offset,
		Length:   max(length, 1),
		Severity: SeverityError,
		Source:   SourceParser,
	}
}

// FromTranslation builds a translator diagnostic; severity distinguishes a
// grammar incompatibility the target backend cannot express (error, blocks
// artifact emission) from one it can only partially support (warning).
func FromTranslation(message string, severity Severity) Diagnostic {
	return Diagnostic{
		Message:  message,
		Severity: severity,
		Source:   SourceTranslator,
		Code:     CodeTranslationIncompatible,
	}
}
