package agents

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Flickinny11/symphony/internal/models"
)

func TestDefaultCatalog_CoversAllCategories(t *testing.T) {
	catalog := DefaultCatalog()
	for _, category := range models.Categories() {
		profile := catalog.Profile(category)
		if len(profile.Capabilities) == 0 {
			t.Errorf("category %s has no capabilities", category)
		}
		if profile.MaxContext <= 0 {
			t.Errorf("category %s has no context ceiling", category)
		}
	}
}

func TestLoadCatalog_MissingFileReturnsDefaults(t *testing.T) {
	catalog, err := LoadCatalog(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := catalog.MaxContext(models.CategoryFrontend); got != 128000 {
		t.Errorf("expected default ceiling, got %d", got)
	}
}

func TestLoadCatalog_MergesOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agents.yaml")
	content := `categories:
  frontend:
    capabilities: [svelte]
    max_context: 200000
  backend:
    max_context: 64000
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	catalog, err := LoadCatalog(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if caps := catalog.Capabilities(models.CategoryFrontend); len(caps) != 1 || caps[0] != "svelte" {
		t.Errorf("expected overridden capabilities, got %v", caps)
	}
	if got := catalog.MaxContext(models.CategoryFrontend); got != 200000 {
		t.Errorf("expected overridden ceiling, got %d", got)
	}

	// Partial override keeps default capabilities.
	if caps := catalog.Capabilities(models.CategoryBackend); len(caps) == 0 {
		t.Error("partial override should keep default capabilities")
	}
	if got := catalog.MaxContext(models.CategoryBackend); got != 64000 {
		t.Errorf("expected overridden backend ceiling, got %d", got)
	}

	// Untouched categories keep defaults.
	if got := catalog.MaxContext(models.CategoryTesting); got != 128000 {
		t.Errorf("expected untouched default, got %d", got)
	}
}

func TestLoadCatalog_RejectsUnknownCategory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agents.yaml")
	if err := os.WriteFile(path, []byte("categories:\n  wizard: {}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadCatalog(path); err == nil {
		t.Error("expected error for unknown category")
	}
}
