package main

import (
	"fmt"
	"os"

	"github.com/kpumuk/langforge/internal/langgrammar"
	"github.com/kpumuk/langforge/internal/translator"
	"github.com/spf13/cobra"
)

var checkFlags = struct {
	format reportFormat
}{
	format: reportFormatText,
}

func init() {
	cmd := &cobra.Command{
		Use:     "check <grammar.glang>",
		Short:   "Validate a grammar for the interpreted backend without generating artifacts",
		Example: `  langc check thrift.glang`,
		Args:    cobra.ExactArgs(1),
		RunE:    runCheck,
	}
	cmd.Flags().VarP(&checkFlags.format, "format", "f", "diagnostic report format: text or json")
	rootCmd.AddCommand(cmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	grammarPath := args[0]
	src, err := os.ReadFile(grammarPath)
	if err != nil {
		return fmt.Errorf("read grammar %s: %w", grammarPath, err)
	}
	g, err := langgrammar.Parse(grammarID(grammarPath), src)
	if err != nil {
		return fmt.Errorf("parse grammar %s: %w", grammarPath, err)
	}

	diags := translator.Interpreted{}.Validate(g)
	if err := writeDiagnostics(cmd.OutOrStdout(), checkFlags.format, diags); err != nil {
		return err
	}
	if hasError(diags) {
		return fmt.Errorf("grammar %s has errors", grammarPath)
	}
	return nil
}
