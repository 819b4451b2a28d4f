package planner

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Flickinny11/symphony/internal/models"
)

// Format identifies a plan file format.
type Format int

const (
	// FormatUnknown marks an unsupported file format.
	FormatUnknown Format = iota
	// FormatMarkdown marks a Markdown (.md, .markdown) plan file.
	FormatMarkdown
	// FormatYAML marks a YAML (.yaml, .yml) plan file.
	FormatYAML
)

// String returns the string representation of the Format.
func (f Format) String() string {
	switch f {
	case FormatMarkdown:
		return "markdown"
	case FormatYAML:
		return "yaml"
	default:
		return "unknown"
	}
}

// Parser is the interface plan file parsers implement.
type Parser interface {
	Parse(r io.Reader) (*models.BuildPlan, error)
}

// DetectFormat detects the plan format from the file extension.
func DetectFormat(filename string) Format {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".md", ".markdown":
		return FormatMarkdown
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatUnknown
	}
}

// NewParser creates a parser for the given format.
func NewParser(format Format) (Parser, error) {
	switch format {
	case FormatMarkdown:
		return NewMarkdownParser(), nil
	case FormatYAML:
		return NewYAMLParser(), nil
	default:
		return nil, fmt.Errorf("unsupported plan format: %v", format)
	}
}

// ParseFile loads a plan file, auto-detecting the format from the
// extension. The plan's FilePath is set to the absolute path, and
// plans that carry no name inherit the file's base name.
func ParseFile(path string) (*models.BuildPlan, error) {
	name, specs, err := parseFileSpecs(path)
	if err != nil {
		return nil, err
	}

	plan, err := assemblePlan(name, models.SourceFile, specs)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}
	plan.FilePath = absPath
	if plan.Name == "" {
		plan.Name = planNameFromPath(path)
	}
	return plan, nil
}

// parseFileSpecs loads one plan file down to its raw task specs.
func parseFileSpecs(path string) (string, []taskSpec, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", nil, fmt.Errorf("access plan file: %w", err)
	}
	if info.IsDir() {
		return "", nil, fmt.Errorf("plan path is a directory: %s", path)
	}

	format := DetectFormat(path)
	if format == FormatUnknown {
		return "", nil, fmt.Errorf("unknown plan format: %s (supported: .md, .markdown, .yaml, .yml)", path)
	}

	file, err := os.Open(path)
	if err != nil {
		return "", nil, fmt.Errorf("open plan file: %w", err)
	}
	defer file.Close()

	var name string
	var specs []taskSpec
	switch format {
	case FormatMarkdown:
		name, specs, err = NewMarkdownParser().parseSpecs(file)
	default:
		name, specs, err = NewYAMLParser().parseSpecs(file)
	}
	if err != nil {
		return "", nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return name, specs, nil
}

// planNameFromPath derives a plan name from a file's base name.
func planNameFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
