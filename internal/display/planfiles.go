package display

import (
	"path/filepath"
	"strings"
	"unicode"

	"github.com/Flickinny11/symphony/internal/fileutil"
)

// planExtensions are the extensions the plan loader understands.
var planExtensions = []string{".md", ".markdown", ".yaml", ".yml"}

// FindPlanFiles lists the plan files directly under dir as sorted
// absolute paths.
func FindPlanFiles(dir string) ([]string, error) {
	res, err := fileutil.Scan(dir, fileutil.ScanOptions{Extensions: planExtensions})
	if err != nil {
		return nil, err
	}
	return res.Files, nil
}

// SequencedNames returns the base names in paths that carry a numeric
// "12-" style prefix. Tasks run in dependency order rather than file
// order, so numbered plan files usually signal a sequencing
// expectation the engine will not honor.
func SequencedNames(paths []string) []string {
	var names []string
	for _, p := range paths {
		name := filepath.Base(p)
		if isSequenced(name) {
			names = append(names, name)
		}
	}
	return names
}

// isSequenced reports whether name is a plan file whose stem starts
// with digits followed by a dash, like "01-setup.md".
func isSequenced(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	supported := false
	for _, e := range planExtensions {
		if ext == e {
			supported = true
			break
		}
	}
	if !supported {
		return false
	}

	stem := strings.TrimSuffix(name, filepath.Ext(name))
	digits, rest, found := strings.Cut(stem, "-")
	if !found || digits == "" || rest == "" {
		return false
	}
	for _, r := range digits {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
