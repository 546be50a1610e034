// Command langc translates a .glang grammar description into the artifacts
// both backends consume: a tree-sitter-shaped grammar source, a field map,
// a keyword set, LALR/SLR parse tables, and a project descriptor.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
