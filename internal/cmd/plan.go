package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Flickinny11/symphony/internal/display"
	"github.com/Flickinny11/symphony/internal/queue"
)

// NewPlanCommand creates and returns the plan subcommand
func NewPlanCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan <plan-file-or-directory>...",
		Short: "Validate and preview a build plan",
		Long: `Parse plan files and preview the execution without running anything.

Checks performed:
  - Task fields (ids, titles, categories, priorities)
  - Dependencies reference tasks that exist
  - No duplicate task ids (including across files)
  - No circular dependencies

The preview shows the task table and the critical path, the dependency
chain that bounds the total execution time.

Exit code: 0 if valid, 1 if errors found`,
		Args: cobra.MinimumNArgs(1),
		RunE: planCommand,
	}

	return cmd
}

// planCommand implements the plan command logic
func planCommand(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	plan, err := loadPlan(cmd, args)
	if err != nil {
		fmt.Fprintf(out, "✗ Plan is not valid\n")
		return err
	}

	fmt.Fprintf(out, "✓ Parsed %d task(s)\n", len(plan.Tasks))
	fmt.Fprintf(out, "✓ All dependencies resolve\n")
	fmt.Fprintf(out, "✓ No circular dependencies\n")

	fmt.Fprintln(out)
	display.NewRenderer(out).Plan(plan)

	q := queue.New()
	if err := q.AddTasks(plan.Tasks); err != nil {
		return fmt.Errorf("queue plan: %w", err)
	}
	path, err := q.CriticalPath()
	if err != nil {
		return fmt.Errorf("critical path: %w", err)
	}

	var bound time.Duration
	for _, t := range path {
		bound += t.EstimatedTime
	}
	fmt.Fprintf(out, "\nCritical path (%d of %d tasks, %s):\n",
		len(path), len(plan.Tasks), display.FormatDuration(bound))
	for i, t := range path {
		fmt.Fprintf(out, "  %d. %s  %s (%s)\n",
			i+1, t.ID, t.Title, display.FormatDuration(t.EstimatedTime))
	}

	fmt.Fprintf(out, "\n✓ Plan is valid and ready for execution\n")
	return nil
}
