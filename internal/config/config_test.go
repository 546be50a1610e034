package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeProjectFile(t *testing.T, dir, contents string) string {
	t.Helper()
	path := filepath.Join(dir, ".langforge.toml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write project file: %v", err)
	}
	return path
}

func TestLoadResolvesRelativePaths(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "grammars"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	path := writeProjectFile(t, dir, `
name = "example"

[[language]]
id = "thrift"
grammar = "grammars/thrift.glang"
`)

	p, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if p.Name != "example" {
		t.Fatalf("Name = %q, want %q", p.Name, "example")
	}
	if len(p.Languages) != 1 {
		t.Fatalf("len(Languages) = %d, want 1", len(p.Languages))
	}
	lang := p.Languages[0]
	wantGrammar := filepath.Join(dir, "grammars", "thrift.glang")
	if lang.Grammar != wantGrammar {
		t.Errorf("Grammar = %q, want %q", lang.Grammar, wantGrammar)
	}
	wantOutDir := filepath.Join(dir, "grammars")
	if lang.OutDir != wantOutDir {
		t.Errorf("OutDir = %q, want %q", lang.OutDir, wantOutDir)
	}
}

func TestLoadExplicitOutDir(t *testing.T) {
	dir := t.TempDir()
	path := writeProjectFile(t, dir, `
name = "example"

[[language]]
id = "thrift"
grammar = "thrift.glang"
out_dir = "build"
`)

	p, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	wantOutDir := filepath.Join(dir, "build")
	if p.Languages[0].OutDir != wantOutDir {
		t.Errorf("OutDir = %q, want %q", p.Languages[0].OutDir, wantOutDir)
	}
}

func TestLoadMissingID(t *testing.T) {
	dir := t.TempDir()
	path := writeProjectFile(t, dir, `
name = "example"

[[language]]
grammar = "thrift.glang"
`)

	if _, err := Load(path); err == nil {
		t.Fatal("Load: want error for missing language id, got nil")
	}
}

func TestLoadMissingGrammar(t *testing.T) {
	dir := t.TempDir()
	path := writeProjectFile(t, dir, `
name = "example"

[[language]]
id = "thrift"
`)

	if _, err := Load(path); err == nil {
		t.Fatal("Load: want error for missing grammar path, got nil")
	}
}
