// Package config decodes a project's ".langforge.toml" manifest: the set
// of grammars cmd/langc should translate and where their artifacts land.
// Grounded on dekarrin-tunaq/internal/tqw's TOML loading (read the whole
// file, then toml.Unmarshal into a plain struct — no streaming decoder,
// since these files are always small).
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Project is the decoded shape of a ".langforge.toml" file.
type Project struct {
	// Name identifies the project in diagnostics and build reports.
	Name string `toml:"name"`

	// Languages lists every grammar this project translates. TOML's
	// array-of-tables syntax ("[[language]]") matches one entry per
	// language.
	Languages []Language `toml:"language"`
}

// Language is one "[[language]]" table: a single grammar's source file
// and where its translated artifacts are written.
type Language struct {
	// ID names the language; artifact file names are <ID>.<ext>.
	ID string `toml:"id"`

	// Grammar is the path to the ".glang" grammar description file,
	// resolved relative to the project file's directory.
	Grammar string `toml:"grammar"`

	// OutDir is where translated artifacts are written, resolved
	// relative to the project file's directory. Defaults to the
	// grammar file's own directory when empty.
	OutDir string `toml:"out_dir"`
}

// Load reads and decodes the project file at path, resolving every
// Language's Grammar/OutDir against path's directory.
func Load(path string) (*Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read project config %s: %w", path, err)
	}

	var p Project
	if err := toml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode project config %s: %w", path, err)
	}

	base := filepath.Dir(path)
	for i := range p.Languages {
		lang := &p.Languages[i]
		if lang.ID == "" {
			return nil, fmt.Errorf("project config %s: language entry %d is missing an id", path, i)
		}
		if lang.Grammar == "" {
			return nil, fmt.Errorf("project config %s: language %q is missing a grammar path", path, lang.ID)
		}
		lang.Grammar = resolvePath(base, lang.Grammar)
		if lang.OutDir == "" {
			lang.OutDir = filepath.Dir(lang.Grammar)
		} else {
			lang.OutDir = resolvePath(base, lang.OutDir)
		}
	}
	return &p, nil
}

func resolvePath(base, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}
