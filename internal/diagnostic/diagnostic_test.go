package diagnostic_test

import (
	"testing"

	"github.com/kpumuk/langforge/internal/diagnostic"
	"github.com/kpumuk/langforge/internal/text"
)

func TestFromLexErrorClampsLengthToAtLeastOne(t *testing.T) {
	d := diagnostic.FromLexError("unexpected byte", 5, 0)
	if d.Length != 1 {
		t.Errorf("Length = %d, want 1 (clamped)", d.Length)
	}
	if d.Severity != diagnostic.SeverityError || d.Source != diagnostic.SourceLexer {
		t.Errorf("d = %+v, want SeverityError/SourceLexer", d)
	}
}

func TestFromLexErrorKeepsLongerLength(t *testing.T) {
	d := diagnostic.FromLexError("bad token", 5, 4)
	if d.Length != 4 {
		t.Errorf("Length = %d, want 4 (unclamped)", d.Length)
	}
}

func TestFromParseErrorSetsParserSourceAndErrorSeverity(t *testing.T) {
	d := diagnostic.FromParseError("unexpected token", 10, 2)
	if d.Severity != diagnostic.SeverityError || d.Source != diagnostic.SourceParser {
		t.Errorf("d = %+v, want SeverityError/SourceParser", d)
	}
}

func TestFromTranslationPreservesGivenSeverityAndSetsCode(t *testing.T) {
	d := diagnostic.FromTranslation("can't express this", diagnostic.SeverityWarning)
	if d.Severity != diagnostic.SeverityWarning {
		t.Errorf("Severity = %v, want SeverityWarning (caller-supplied)", d.Severity)
	}
	if d.Source != diagnostic.SourceTranslator {
		t.Errorf("Source = %v, want SourceTranslator", d.Source)
	}
	if d.Code != diagnostic.CodeTranslationIncompatible {
		t.Errorf("Code = %v, want CodeTranslationIncompatible", d.Code)
	}
}

func TestDiagnosticSpanCoversOffsetPlusLength(t *testing.T) {
	d := diagnostic.Diagnostic{Offset: text.ByteOffset(3), Length: 4}
	span := d.Span()
	if span.Start != 3 || span.End != 7 {
		t.Errorf("Span() = %+v, want Start=3 End=7", span)
	}
}
