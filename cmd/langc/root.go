package main

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "langc",
	Short: "Translate langforge grammar descriptions into backend artifacts",
	Long: `langc provides two features:
- Validates a .glang grammar for the interpreted backend (check).
- Translates a .glang grammar into the compiled backend's artifacts:
  grammar source, field map, keyword set, parse tables, and a project
  descriptor (build).`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

func Execute() error {
	return rootCmd.Execute()
}
