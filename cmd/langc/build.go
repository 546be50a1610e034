package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/kpumuk/langforge/internal/config"
	"github.com/kpumuk/langforge/internal/diagnostic"
	"github.com/kpumuk/langforge/internal/langgrammar"
	"github.com/kpumuk/langforge/internal/translator"
	"github.com/spf13/cobra"
)

var buildFlags = struct {
	project *string
	out     *string
	format  reportFormat
}{
	format: reportFormatText,
}

func init() {
	cmd := &cobra.Command{
		Use:     "build [grammar.glang]",
		Short:   "Translate a grammar into compiled-backend artifacts",
		Example: `  langc build thrift.glang -o build/`,
		Args:    cobra.MaximumNArgs(1),
		RunE:    runBuild,
	}
	buildFlags.project = cmd.Flags().StringP("project", "p", "", "path to a .langforge.toml project file (translates every listed language)")
	buildFlags.out = cmd.Flags().StringP("out", "o", "", "output directory for a single grammar's artifacts (default: the grammar's own directory)")
	cmd.Flags().VarP(&buildFlags.format, "format", "f", "diagnostic report format: text or json")
	rootCmd.AddCommand(cmd)
}

func runBuild(cmd *cobra.Command, args []string) error {
	buildID := uuid.New().String()

	var targets []config.Language
	switch {
	case *buildFlags.project != "":
		proj, err := config.Load(*buildFlags.project)
		if err != nil {
			return err
		}
		targets = proj.Languages
	case len(args) == 1:
		grammarPath := args[0]
		outDir := *buildFlags.out
		if outDir == "" {
			outDir = filepath.Dir(grammarPath)
		}
		targets = []config.Language{{
			ID:      grammarID(grammarPath),
			Grammar: grammarPath,
			OutDir:  outDir,
		}}
	default:
		return fmt.Errorf("build requires a grammar path or --project")
	}

	failed := false
	for _, lang := range targets {
		diags, err := buildLanguage(lang)
		if err != nil {
			fmt.Fprintf(os.Stderr, "build %s: %v\n", lang.ID, err)
			failed = true
			continue
		}
		if err := writeDiagnostics(cmd.OutOrStdout(), buildFlags.format, diags); err != nil {
			return err
		}
		if hasError(diags) {
			failed = true
		}
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "build %s: %d language(s) translated\n", buildID, len(targets))
	if failed {
		return fmt.Errorf("one or more languages failed to translate")
	}
	return nil
}

func buildLanguage(lang config.Language) ([]diagnostic.Diagnostic, error) {
	src, err := os.ReadFile(lang.Grammar)
	if err != nil {
		return nil, fmt.Errorf("read grammar %s: %w", lang.Grammar, err)
	}
	g, err := langgrammar.Parse(lang.ID, src)
	if err != nil {
		return nil, fmt.Errorf("parse grammar %s: %w", lang.Grammar, err)
	}
	if err := os.MkdirAll(lang.OutDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir %s: %w", lang.OutDir, err)
	}

	_, diags := translator.Compiled{}.Translate(g, lang.OutDir)
	return diags, nil
}

func grammarID(path string) string {
	base := filepath.Base(path)
	return base[:len(base)-len(filepath.Ext(base))]
}
