// Package agents holds the specialist catalog: which capabilities each
// agent category carries and how much context it may consume before a
// duplication handoff is due.
package agents

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Flickinny11/symphony/internal/models"
)

// Profile describes one agent category.
type Profile struct {
	Capabilities []string `yaml:"capabilities"`
	MaxContext   int      `yaml:"max_context"`
}

// Catalog maps agent categories to their profiles.
type Catalog struct {
	profiles map[models.AgentCategory]Profile
}

// DefaultCatalog returns the built-in profiles for every category.
func DefaultCatalog() *Catalog {
	return &Catalog{
		profiles: map[models.AgentCategory]Profile{
			models.CategoryArchitect: {
				Capabilities: []string{"system-design", "api-contracts", "dependency-planning"},
				MaxContext:   128000,
			},
			models.CategoryFrontend: {
				Capabilities: []string{"react", "typescript", "css", "accessibility"},
				MaxContext:   128000,
			},
			models.CategoryBackend: {
				Capabilities: []string{"node", "rest", "graphql", "auth"},
				MaxContext:   128000,
			},
			models.CategoryDatabase: {
				Capabilities: []string{"schema-design", "sql", "migrations", "indexing"},
				MaxContext:   128000,
			},
			models.CategoryIntegration: {
				Capabilities: []string{"webhooks", "oauth", "third-party-apis"},
				MaxContext:   128000,
			},
			models.CategoryTesting: {
				Capabilities: []string{"unit-tests", "integration-tests", "e2e"},
				MaxContext:   128000,
			},
			models.CategoryDeployment: {
				Capabilities: []string{"ci-cd", "containers", "app-store-packaging"},
				MaxContext:   128000,
			},
		},
	}
}

// catalogFile is the on-disk override format.
type catalogFile struct {
	Categories map[string]Profile `yaml:"categories"`
}

// LoadCatalog reads category overrides from a YAML file and merges them
// over the defaults. A missing file returns the defaults unchanged.
func LoadCatalog(path string) (*Catalog, error) {
	catalog := DefaultCatalog()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return catalog, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading agent catalog: %w", err)
	}

	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing agent catalog: %w", err)
	}

	for name, override := range file.Categories {
		category := models.AgentCategory(name)
		if !category.Valid() {
			return nil, fmt.Errorf("agent catalog: unknown category %q", name)
		}
		profile := catalog.profiles[category]
		if len(override.Capabilities) > 0 {
			profile.Capabilities = override.Capabilities
		}
		if override.MaxContext > 0 {
			profile.MaxContext = override.MaxContext
		}
		catalog.profiles[category] = profile
	}
	return catalog, nil
}

// Profile returns the profile for a category. Unknown categories get a
// zero profile; callers validate categories before asking.
func (c *Catalog) Profile(category models.AgentCategory) Profile {
	return c.profiles[category]
}

// Capabilities returns the capability tags for a category, cloned so
// callers cannot mutate the catalog.
func (c *Catalog) Capabilities(category models.AgentCategory) []string {
	return append([]string(nil), c.profiles[category].Capabilities...)
}

// MaxContext returns the context ceiling for a category.
func (c *Catalog) MaxContext(category models.AgentCategory) int {
	return c.profiles[category].MaxContext
}
