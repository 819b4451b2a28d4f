package planner

import (
	"fmt"

	"github.com/Flickinny11/symphony/internal/models"
)

// ParseFiles loads several plan files as one plan. Task specs from all
// files are assembled and validated together, so tasks may depend on
// tasks declared in other files and duplicate ids across files are
// rejected. The first file to name its plan names the merge; when none
// does, the first file's base name is used.
func ParseFiles(paths ...string) (*models.BuildPlan, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("no plan files to parse")
	}
	if len(paths) == 1 {
		return ParseFile(paths[0])
	}

	var name string
	var specs []taskSpec
	for _, path := range paths {
		n, s, err := parseFileSpecs(path)
		if err != nil {
			return nil, err
		}
		if name == "" {
			name = n
		}
		specs = append(specs, s...)
	}
	if name == "" {
		name = planNameFromPath(paths[0])
	}

	plan, err := assemblePlan(name, models.SourceFile, specs)
	if err != nil {
		return nil, fmt.Errorf("merge plans: %w", err)
	}
	return plan, nil
}
