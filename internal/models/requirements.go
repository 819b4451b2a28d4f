package models

// Requirements is the category-specific task payload. Exactly the
// variant matching the task's category may be set; an empty value is
// allowed for tasks that carry no structured requirements. The variant
// shape is declared here instead of an open-ended metadata bag so plan
// parsing can validate it.
type Requirements struct {
	Architect   *ArchitectRequirements   `json:"architect,omitempty" yaml:"architect,omitempty"`
	Frontend    *FrontendRequirements    `json:"frontend,omitempty" yaml:"frontend,omitempty"`
	Backend     *BackendRequirements     `json:"backend,omitempty" yaml:"backend,omitempty"`
	Database    *DatabaseRequirements    `json:"database,omitempty" yaml:"database,omitempty"`
	Integration *IntegrationRequirements `json:"integration,omitempty" yaml:"integration,omitempty"`
	Testing     *TestingRequirements     `json:"testing,omitempty" yaml:"testing,omitempty"`
	Deployment  *DeploymentRequirements  `json:"deployment,omitempty" yaml:"deployment,omitempty"`
}

// ArchitectRequirements describe system design work.
type ArchitectRequirements struct {
	Stack       []string `json:"stack,omitempty" yaml:"stack,omitempty"`
	Modules     []string `json:"modules,omitempty" yaml:"modules,omitempty"`
	Constraints []string `json:"constraints,omitempty" yaml:"constraints,omitempty"`
}

// FrontendRequirements describe UI work.
type FrontendRequirements struct {
	Framework  string   `json:"framework,omitempty" yaml:"framework,omitempty"`
	Pages      []string `json:"pages,omitempty" yaml:"pages,omitempty"`
	Components []string `json:"components,omitempty" yaml:"components,omitempty"`
	Styling    string   `json:"styling,omitempty" yaml:"styling,omitempty"`
}

// BackendRequirements describe server-side work.
type BackendRequirements struct {
	Runtime   string   `json:"runtime,omitempty" yaml:"runtime,omitempty"`
	Endpoints []string `json:"endpoints,omitempty" yaml:"endpoints,omitempty"`
	Auth      string   `json:"auth,omitempty" yaml:"auth,omitempty"`
}

// DatabaseRequirements describe schema and storage work.
type DatabaseRequirements struct {
	Engine     string   `json:"engine,omitempty" yaml:"engine,omitempty"`
	Entities   []string `json:"entities,omitempty" yaml:"entities,omitempty"`
	Migrations bool     `json:"migrations,omitempty" yaml:"migrations,omitempty"`
}

// IntegrationRequirements describe third-party service wiring.
type IntegrationRequirements struct {
	Services []string `json:"services,omitempty" yaml:"services,omitempty"`
	Webhooks []string `json:"webhooks,omitempty" yaml:"webhooks,omitempty"`
}

// TestingRequirements describe verification work.
type TestingRequirements struct {
	Frameworks []string `json:"frameworks,omitempty" yaml:"frameworks,omitempty"`
	Suites     []string `json:"suites,omitempty" yaml:"suites,omitempty"`
	Coverage   int      `json:"coverage,omitempty" yaml:"coverage,omitempty"`
}

// DeploymentRequirements describe release work.
type DeploymentRequirements struct {
	Targets  []string `json:"targets,omitempty" yaml:"targets,omitempty"`
	Channels []string `json:"channels,omitempty" yaml:"channels,omitempty"`
}

// set returns the categories whose variant is non-nil.
func (r Requirements) set() []AgentCategory {
	var cats []AgentCategory
	if r.Architect != nil {
		cats = append(cats, CategoryArchitect)
	}
	if r.Frontend != nil {
		cats = append(cats, CategoryFrontend)
	}
	if r.Backend != nil {
		cats = append(cats, CategoryBackend)
	}
	if r.Database != nil {
		cats = append(cats, CategoryDatabase)
	}
	if r.Integration != nil {
		cats = append(cats, CategoryIntegration)
	}
	if r.Testing != nil {
		cats = append(cats, CategoryTesting)
	}
	if r.Deployment != nil {
		cats = append(cats, CategoryDeployment)
	}
	return cats
}

// Empty reports whether no variant is set.
func (r Requirements) Empty() bool {
	return len(r.set()) == 0
}

// Validate checks that any populated variant matches the task category.
func (r Requirements) Validate(category AgentCategory) error {
	cats := r.set()
	if len(cats) == 0 {
		return nil
	}
	if len(cats) > 1 {
		return NewValidationError("", "requirements set for multiple categories %v", cats)
	}
	if cats[0] != category {
		return NewValidationError("", "requirements for %q on a %q task", cats[0], category)
	}
	return nil
}
