package syntax

import (
	"context"
	"errors"
	"sync"
	"testing"

	ts "github.com/kpumuk/langforge/internal/backend/compiled/treesitter"
)

type observingParserConstructor struct {
	mu    sync.Mutex
	calls int
}

func (c *observingParserConstructor) newParser() (*ts.Parser, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	return ts.NewParser(thriftArtifact)
}

func (c *observingParserConstructor) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func TestParseUsesParserConstructorWiring(t *testing.T) {
	ctor := &observingParserConstructor{}
	restore := setParserConstructorForTesting(ctor.newParser)
	defer restore()

	src := []byte("struct Wiring { 1: string name, }\n")
	if _, err := Parse(context.Background(), src, ParseOptions{URI: "file:///wiring.thrift"}); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := ctor.callCount(); got != 1 {
		t.Fatalf("newParser() calls = %d, want 1", got)
	}
}

func TestParseFailOpenWhenParserInitializationFails(t *testing.T) {
	restore := setParserConstructorForTesting(func() (*ts.Parser, error) {
		return nil, errors.New("parser init unavailable")
	})
	defer restore()

	tree, err := Parse(context.Background(), []byte("struct S { 1: string a }\n"), ParseOptions{URI: "file:///fail-open.thrift"})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if tree.Root != NoNode {
		t.Fatalf("expected degraded tree root=NoNode, got %d", tree.Root)
	}

	var sawInternalParse bool
	for _, d := range tree.Diagnostics {
		if d.Code == DiagnosticInternalParse && d.Source == "parser" {
			sawInternalParse = true
			if d.Recoverable {
				t.Fatalf("expected non-recoverable parse diagnostic, got %+v", d)
			}
			break
		}
	}
	if !sawInternalParse {
		t.Fatalf("expected INTERNAL_PARSE diagnostic, got %+v", tree.Diagnostics)
	}
}
