package planner

import (
	"fmt"
	"io"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/Flickinny11/symphony/internal/models"
)

// YAMLParser reads plans written as YAML documents under a top level
// "plan" key.
type YAMLParser struct{}

// NewYAMLParser creates a YAML plan parser.
func NewYAMLParser() *YAMLParser {
	return &YAMLParser{}
}

// taskRef accepts both quoted and bare scalar task identifiers, so
// "depends_on: [1, schema]" works without quoting the number.
type taskRef string

// UnmarshalYAML implements yaml.Unmarshaler for taskRef.
func (r *taskRef) UnmarshalYAML(value *yaml.Node) error {
	var v interface{}
	if err := value.Decode(&v); err != nil {
		return err
	}
	switch t := v.(type) {
	case string:
		*r = taskRef(t)
	case int:
		*r = taskRef(strconv.Itoa(t))
	default:
		return fmt.Errorf("line %d: task id must be a scalar, got %T", value.Line, v)
	}
	return nil
}

type yamlDocument struct {
	Plan yamlPlan `yaml:"plan"`
}

type yamlPlan struct {
	Name  string     `yaml:"name"`
	Tasks []yamlTask `yaml:"tasks"`
}

type yamlTask struct {
	ID            taskRef             `yaml:"id"`
	Title         string              `yaml:"title"`
	Description   string              `yaml:"description"`
	Category      string              `yaml:"category"`
	Priority      string              `yaml:"priority"`
	DependsOn     []taskRef           `yaml:"depends_on"`
	EstimatedTime string              `yaml:"estimated_time"`
	Files         []string            `yaml:"files"`
	Requirements  models.Requirements `yaml:"requirements"`
}

// Parse reads a YAML plan document.
func (p *YAMLParser) Parse(r io.Reader) (*models.BuildPlan, error) {
	name, specs, err := p.parseSpecs(r)
	if err != nil {
		return nil, err
	}
	return assemblePlan(name, models.SourceFile, specs)
}

// parseSpecs reads the document down to raw task specs, leaving
// validation to plan assembly so specs from several files can be
// validated together.
func (p *YAMLParser) parseSpecs(r io.Reader) (string, []taskSpec, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return "", nil, fmt.Errorf("read plan: %w", err)
	}

	var doc yamlDocument
	if err := yaml.Unmarshal(content, &doc); err != nil {
		return "", nil, fmt.Errorf("parse yaml plan: %w", err)
	}

	specs := make([]taskSpec, 0, len(doc.Plan.Tasks))
	for _, t := range doc.Plan.Tasks {
		deps := make([]string, 0, len(t.DependsOn))
		for _, dep := range t.DependsOn {
			deps = append(deps, string(dep))
		}
		specs = append(specs, taskSpec{
			ID:            string(t.ID),
			Title:         t.Title,
			Description:   t.Description,
			Category:      t.Category,
			Priority:      t.Priority,
			DependsOn:     deps,
			EstimatedTime: t.EstimatedTime,
			Files:         t.Files,
			Requirements:  t.Requirements,
		})
	}
	return doc.Plan.Name, specs, nil
}
