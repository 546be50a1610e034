package translator

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kpumuk/langforge/internal/diagnostic"
	"github.com/kpumuk/langforge/internal/gr"
	"github.com/kpumuk/langforge/internal/langgrammar"
	"github.com/kpumuk/langforge/internal/translator/grammarsyntax"
	"github.com/kpumuk/langforge/internal/translator/lalr"
	"gopkg.in/yaml.v3"
)

// Compiled is the compiled-backend translator: validates g (reusing
// Interpreted's feature checks, since every construct that degrades the
// interpreted backend degrades the compiled backend too — they share a
// grammar surface), then runs the Initial -> Generated -> Tables -> Done
// pipeline spec.md §4.5 describes.
type Compiled struct{}

// Translate desugars g, builds its SLR(1) parsing table, and writes every
// artifact spec.md §6 requires (plus the project descriptor SPEC_FULL.md
// §7 adds) under outDir, named by g.Name. Any error-severity diagnostic
// (from validation or from table construction) stops the pipeline at
// HasErrors with no artifacts written; warnings (conflict resolutions,
// oversized unordered groups, partially-supported constructs) don't.
func (Compiled) Translate(g *langgrammar.Grammar, outDir string) (*Artifacts, []diagnostic.Diagnostic) {
	var diags []diagnostic.Diagnostic

	validation := Interpreted{}.Validate(g)
	diags = append(diags, validation...)
	if hasErrorSeverity(validation) {
		return nil, diags // Initial -> HasErrors -> Done
	}

	idx, err := gr.Build(g)
	if err != nil {
		diags = append(diags, diagnostic.FromTranslation(
			fmt.Sprintf("build grammar index: %v", err), diagnostic.SeverityError,
		))
		return nil, diags
	}

	desugared := desugar(idx, g)
	diags = append(diags, desugared.diags...)
	if hasErrorSeverity(desugared.diags) {
		return nil, diags
	}

	// -> Generated: grammar source, field map, keyword set.
	grammarSource := grammarsyntax.Render(desugared.grammarDoc)

	tables, tableDiags := lalr.Build(desugared.productions, desugared.entrySymbol)
	diags = append(diags, tableDiags...)
	if hasErrorSeverity(tableDiags) {
		return nil, diags
	}
	// -> Tables

	keywordSymbols := make(map[string]int32, len(desugared.keywordSymbols))
	for value, sym := range desugared.keywordSymbols {
		keywordSymbols[value] = int32(sym)
	}

	artifacts := &Artifacts{
		GrammarSource:  grammarSource,
		FieldMap:       desugared.fieldMap,
		Keywords:       desugared.keywords,
		KeywordSymbols: keywordSymbols,
		Tables:         tables,
		Descriptor: ProjectDescriptor{
			LanguageID:   g.Name,
			EntryRule:    g.EntryRule,
			RuleCount:    len(idx.Rules()),
			KeywordCount: len(desugared.keywords),
		},
	}

	if writeDiags := writeArtifacts(outDir, g.Name, artifacts); len(writeDiags) > 0 {
		diags = append(diags, writeDiags...)
		if hasErrorSeverity(writeDiags) {
			return artifacts, diags
		}
	}

	return artifacts, diags // -> Done
}

// writeArtifacts persists every file spec.md §6 names, plus the project
// descriptor. A write failure becomes an error diagnostic rather than a Go
// error return, per spec.md §4.5: "Any failure during parse-table
// generation produces a diagnostic; artifacts already written may remain."
func writeArtifacts(outDir, languageID string, a *Artifacts) []diagnostic.Diagnostic {
	var diags []diagnostic.Diagnostic
	write := func(name string, data []byte) {
		if err := os.WriteFile(filepath.Join(outDir, name), data, 0o644); err != nil {
			diags = append(diags, diagnostic.FromTranslation(
				fmt.Sprintf("write %s: %v", name, err), diagnostic.SeverityError,
			))
		}
	}

	write(languageID+".grammar.js", []byte(a.GrammarSource))

	fieldMapJSON, err := json.MarshalIndent(a.FieldMap, "", "  ")
	if err != nil {
		diags = append(diags, diagnostic.FromTranslation(
			fmt.Sprintf("marshal field map: %v", err), diagnostic.SeverityError,
		))
	} else {
		write(languageID+".field-map.json", fieldMapJSON)
	}

	keywordsJSON, err := json.MarshalIndent(a.Keywords, "", "  ")
	if err != nil {
		diags = append(diags, diagnostic.FromTranslation(
			fmt.Sprintf("marshal keyword set: %v", err), diagnostic.SeverityError,
		))
	} else {
		write(languageID+".keywords.json", keywordsJSON)
	}

	write(languageID+".parser.go", []byte(renderParserTable(languageID, a.Tables)))
	write(languageID+".terms.go", []byte(renderTermsTable(languageID, a.Tables, a.KeywordSymbols)))

	descriptorYAML, err := yaml.Marshal(a.Descriptor)
	if err != nil {
		diags = append(diags, diagnostic.FromTranslation(
			fmt.Sprintf("marshal project descriptor: %v", err), diagnostic.SeverityError,
		))
	} else {
		write(languageID+".langforge.yaml", descriptorYAML)
	}

	return diags
}
