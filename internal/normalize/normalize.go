// Package normalize derives canonical group and variable identifiers from
// file, table and column names.
package normalize

import (
	"path/filepath"
	"strings"
)

var (
	// FileTokens are stripped from run and database file names.
	FileTokens = []string{"validation", "_"}
	// ArtifactTokens are stripped from the names of extracted output files.
	ArtifactTokens = []string{"predicted", "observed", "vs"}
)

// Normalize lowercases raw, removes every occurrence of each token (plain
// substring removal), removes underscores and trims surrounding whitespace.
func Normalize(raw string, strip []string) string {
	s := strings.ToLower(raw)
	for _, tok := range strip {
		if tok == "" {
			continue
		}
		s = strings.ReplaceAll(s, strings.ToLower(tok), "")
	}
	s = strings.ReplaceAll(s, "_", "")
	return strings.TrimSpace(s)
}

// GroupName is the model/crop name for a run or database file path.
func GroupName(path string) string {
	return Normalize(baseName(path), FileTokens)
}

// VariableName is the variable name for an extracted output file path.
func VariableName(path string) string {
	return Normalize(baseName(path), ArtifactTokens)
}

func baseName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
