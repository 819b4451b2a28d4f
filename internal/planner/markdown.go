package planner

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"gopkg.in/yaml.v3"

	"github.com/Flickinny11/symphony/internal/models"
)

// MarkdownParser reads plans written as Markdown: one level two
// heading per task ("## Task <id>: <title>") followed by bold metadata
// annotations, with an optional YAML frontmatter block naming the
// plan.
type MarkdownParser struct {
	markdown goldmark.Markdown
}

// NewMarkdownParser creates a Markdown plan parser.
func NewMarkdownParser() *MarkdownParser {
	return &MarkdownParser{
		markdown: goldmark.New(),
	}
}

// Parse reads a Markdown plan document.
func (p *MarkdownParser) Parse(r io.Reader) (*models.BuildPlan, error) {
	name, specs, err := p.parseSpecs(r)
	if err != nil {
		return nil, err
	}
	return assemblePlan(name, models.SourceFile, specs)
}

// parseSpecs reads the document down to raw task specs, leaving
// validation to plan assembly so specs from several files can be
// validated together.
func (p *MarkdownParser) parseSpecs(r io.Reader) (string, []taskSpec, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return "", nil, fmt.Errorf("read plan: %w", err)
	}

	var name string
	content, frontmatter := extractFrontmatter(content)
	if frontmatter != nil {
		var fm struct {
			Name string `yaml:"name"`
		}
		if err := yaml.Unmarshal(frontmatter, &fm); err != nil {
			return "", nil, fmt.Errorf("parse frontmatter: %w", err)
		}
		name = fm.Name
	}

	doc := p.markdown.Parser().Parse(text.NewReader(content))

	// Task sections span from the end of their heading line to the
	// start of the next level two heading. Headings inside fenced code
	// blocks never become heading nodes, so they cannot open or close
	// a section.
	type section struct {
		id, title  string
		start, end int
	}
	taskHeadingRegex := regexp.MustCompile(`^Task\s+([A-Za-z0-9][A-Za-z0-9._-]*):\s+(.+)$`)

	var sections []section
	err = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		heading, ok := n.(*ast.Heading)
		if !ok || heading.Lines().Len() == 0 {
			return ast.WalkContinue, nil
		}
		line := heading.Lines().At(0)

		switch heading.Level {
		case 1:
			if name == "" {
				name = extractText(heading, content)
			}
		case 2:
			if len(sections) > 0 {
				sections[len(sections)-1].end = lineStartBefore(content, line.Start)
			}
			if matches := taskHeadingRegex.FindStringSubmatch(extractText(heading, content)); len(matches) == 3 {
				sections = append(sections, section{
					id:    matches[1],
					title: strings.TrimSpace(matches[2]),
					start: lineEndAfter(content, line.Stop),
					end:   len(content),
				})
			}
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return "", nil, err
	}

	specs := make([]taskSpec, 0, len(sections))
	for _, s := range sections {
		specs = append(specs, parseTaskSection(s.id, s.title, string(content[s.start:s.end])))
	}
	return name, specs, nil
}

// parseTaskSection extracts metadata annotations from a task body.
// Code blocks are stripped first so examples cannot masquerade as
// metadata.
func parseTaskSection(id, title, body string) taskSpec {
	spec := taskSpec{
		ID:          id,
		Title:       title,
		Description: strings.TrimSpace(body),
	}
	meta := removeCodeBlocks(body)

	categoryRegex := regexp.MustCompile(`\*\*Category\*\*:\s*(\S+)`)
	if matches := categoryRegex.FindStringSubmatch(meta); len(matches) > 1 {
		spec.Category = strings.TrimSpace(matches[1])
	}

	priorityRegex := regexp.MustCompile(`\*\*Priority\*\*:\s*(\S+)`)
	if matches := priorityRegex.FindStringSubmatch(meta); len(matches) > 1 {
		spec.Priority = strings.TrimSpace(matches[1])
	}

	dependsRegex := regexp.MustCompile(`\*\*Depends on\*\*:\s*(.+)`)
	if matches := dependsRegex.FindStringSubmatch(meta); len(matches) > 1 {
		depStr := strings.TrimSpace(matches[1])
		if !strings.EqualFold(depStr, "none") {
			for _, part := range strings.Split(depStr, ",") {
				if part = strings.TrimSpace(part); part != "" {
					spec.DependsOn = append(spec.DependsOn, part)
				}
			}
		}
	}

	estimateRegex := regexp.MustCompile(`\*\*Estimated time\*\*:\s*(.+)`)
	if matches := estimateRegex.FindStringSubmatch(meta); len(matches) > 1 {
		spec.EstimatedTime = strings.TrimSpace(matches[1])
	}

	fileRegex := regexp.MustCompile(`\*\*File\(s\)\*\*:\s*(.+)`)
	if matches := fileRegex.FindStringSubmatch(meta); len(matches) > 1 {
		spec.Files = parseFileList(matches[1])
	}

	return spec
}

// parseFileList reads a file annotation: backtick-quoted paths when
// present, a comma-separated list otherwise.
func parseFileList(s string) []string {
	backtickRegex := regexp.MustCompile("`([^`]+)`")
	if matches := backtickRegex.FindAllStringSubmatch(s, -1); len(matches) > 0 {
		files := make([]string, 0, len(matches))
		for _, m := range matches {
			if f := strings.TrimSpace(m[1]); f != "" {
				files = append(files, f)
			}
		}
		return files
	}

	var files []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" && !strings.EqualFold(part, "none") {
			files = append(files, part)
		}
	}
	return files
}

// removeCodeBlocks strips fenced code blocks so metadata extraction
// cannot match inside code examples.
func removeCodeBlocks(content string) string {
	lines := strings.Split(content, "\n")
	var result strings.Builder
	inCodeBlock := false

	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			inCodeBlock = !inCodeBlock
			continue
		}
		if !inCodeBlock {
			result.WriteString(line)
			result.WriteString("\n")
		}
	}
	return result.String()
}

// extractText extracts the plain text of an AST node's direct children.
func extractText(n ast.Node, source []byte) string {
	var buf bytes.Buffer
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*ast.Text); ok {
			buf.Write(t.Segment.Value(source))
		}
	}
	return buf.String()
}

// extractFrontmatter splits YAML frontmatter off the document. Returns
// the body and the frontmatter bytes, or the unchanged content and nil
// when there is none.
func extractFrontmatter(content []byte) ([]byte, []byte) {
	lines := bytes.Split(content, []byte("\n"))
	if len(lines) < 3 || !bytes.Equal(bytes.TrimSpace(lines[0]), []byte("---")) {
		return content, nil
	}
	for i := 1; i < len(lines); i++ {
		if bytes.Equal(bytes.TrimSpace(lines[i]), []byte("---")) {
			frontmatter := bytes.Join(lines[1:i], []byte("\n"))
			body := bytes.Join(lines[i+1:], []byte("\n"))
			return body, frontmatter
		}
	}
	return content, nil
}

// lineStartBefore returns the offset of the first byte of the line
// containing pos.
func lineStartBefore(source []byte, pos int) int {
	for pos > 0 && source[pos-1] != '\n' {
		pos--
	}
	return pos
}

// lineEndAfter returns the offset just past the end of the line
// containing pos.
func lineEndAfter(source []byte, pos int) int {
	for pos < len(source) && source[pos] != '\n' {
		pos++
	}
	if pos < len(source) {
		pos++
	}
	return pos
}
