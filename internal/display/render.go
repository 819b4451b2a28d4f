package display

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/Flickinny11/symphony/internal/conductor"
	"github.com/Flickinny11/symphony/internal/models"
)

// statusOrder fixes the rendering order of task status counts.
var statusOrder = []models.TaskStatus{
	models.StatusPending,
	models.StatusAssigned,
	models.StatusInProgress,
	models.StatusCompleted,
	models.StatusFailed,
}

// Renderer writes plan previews, run summaries, and orchestration
// statistics to a single destination.
type Renderer struct {
	out      io.Writer
	colorize bool
}

// NewRenderer creates a renderer for out, enabling color when out is a
// terminal.
func NewRenderer(out io.Writer) *Renderer {
	colorize := false
	if f, ok := out.(*os.File); ok {
		colorize = isatty.IsTerminal(f.Fd())
	}
	return &Renderer{out: out, colorize: colorize}
}

// NewColorRenderer creates a renderer with color forced on or off,
// regardless of the destination.
func NewColorRenderer(out io.Writer, colorize bool) *Renderer {
	return &Renderer{out: out, colorize: colorize}
}

// Plan renders a build plan preview: source and totals followed by a
// task table. Critical-priority rows render red, high-priority rows
// yellow.
func (r *Renderer) Plan(plan *models.BuildPlan) {
	fmt.Fprint(r.out, r.formatPlan(plan))
}

// Report renders the summary of a finished run.
func (r *Renderer) Report(report *models.RunReport) {
	fmt.Fprint(r.out, r.formatReport(report))
}

// Stats renders a point-in-time statistics snapshot.
func (r *Renderer) Stats(s conductor.Stats) {
	fmt.Fprint(r.out, r.formatStats(s))
}

func (r *Renderer) formatPlan(plan *models.BuildPlan) string {
	var sb strings.Builder

	sb.WriteString(r.header(fmt.Sprintf("=== Build Plan: %s ===", plan.Name)))
	sb.WriteString("\n\n")
	if plan.FilePath != "" {
		sb.WriteString(fmt.Sprintf("File:     %s\n", plan.FilePath))
	}
	sb.WriteString(fmt.Sprintf("Source:   %s\n", plan.Source))
	sb.WriteString(fmt.Sprintf("Tasks:    %d\n", len(plan.Tasks)))
	sb.WriteString(fmt.Sprintf("Estimate: %s\n", FormatDuration(plan.TotalEstimate())))

	if len(plan.Tasks) == 0 {
		sb.WriteString("\nNo tasks in plan\n")
		return sb.String()
	}
	sb.WriteString("\n")

	idW, titleW, catW := len("ID"), len("Title"), len("Category")
	for _, t := range plan.Tasks {
		if len(t.ID) > idW {
			idW = len(t.ID)
		}
		if w := len(truncate(t.Title, 40)); w > titleW {
			titleW = w
		}
		if len(t.Category) > catW {
			catW = len(t.Category)
		}
	}

	head := fmt.Sprintf("%-*s  %-*s  %-*s  %-8s  %-8s  %s",
		idW, "ID", titleW, "Title", catW, "Category", "Priority", "Estimate", "Depends On")
	sb.WriteString(head + "\n")
	sb.WriteString(strings.Repeat("-", len(head)) + "\n")

	for _, t := range plan.Tasks {
		deps := "-"
		if len(t.Dependencies) > 0 {
			deps = strings.Join(t.Dependencies, ", ")
		}
		row := fmt.Sprintf("%-*s  %-*s  %-*s  %-8s  %-8s  %s",
			idW, t.ID, titleW, truncate(t.Title, 40), catW, t.Category,
			t.Priority, FormatDuration(t.EstimatedTime), deps)
		if r.colorize {
			switch t.Priority {
			case models.PriorityCritical:
				row = color.RedString(row)
			case models.PriorityHigh:
				row = color.YellowString(row)
			}
		}
		sb.WriteString(row + "\n")
	}

	return sb.String()
}

func (r *Renderer) formatReport(report *models.RunReport) string {
	var sb strings.Builder

	sb.WriteString(r.header("=== Execution Summary ==="))
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("Plan:               %s\n", report.PlanName))

	completed := fmt.Sprintf("Completed:          %d/%d", report.Completed, report.TotalTasks)
	if r.colorize {
		completed = color.GreenString(completed)
	}
	sb.WriteString(completed + "\n")

	if report.Failed > 0 {
		failed := fmt.Sprintf("Failed:             %d", report.Failed)
		if r.colorize {
			failed = color.RedString(failed)
		}
		sb.WriteString(failed + "\n")
	}

	sb.WriteString(fmt.Sprintf("Duration:           %s\n", FormatDuration(report.Duration)))
	sb.WriteString(fmt.Sprintf("Files written:      %d\n", report.FilesWritten))
	sb.WriteString(fmt.Sprintf("Conflicts resolved: %d\n", report.ConflictsResolved))
	sb.WriteString(fmt.Sprintf("Handoffs:           %d\n", report.Handoffs))

	if len(report.FailedTasks) > 0 {
		sb.WriteString("\n")
		failedHeader := "Failed tasks:"
		if r.colorize {
			failedHeader = color.RedString(failedHeader)
		}
		sb.WriteString(failedHeader + "\n")
		for _, ft := range report.FailedTasks {
			reason := ft.FailureReason
			if reason == "" {
				reason = "unknown"
			}
			sb.WriteString(fmt.Sprintf("  - %s (%s): %s\n", ft.Title, ft.Category, reason))
		}
	}

	return sb.String()
}

func (r *Renderer) formatStats(s conductor.Stats) string {
	var sb strings.Builder

	sb.WriteString(r.header("=== Orchestration Statistics ==="))
	sb.WriteString("\n\n")
	if s.Plan != "" {
		sb.WriteString(fmt.Sprintf("Plan:    %s\n", s.Plan))
	}
	if s.RunID != "" {
		sb.WriteString(fmt.Sprintf("Run:     %s\n", s.RunID))
	}
	sb.WriteString(fmt.Sprintf("Running: %t\n", s.Running))

	sb.WriteString("\n--- Task Queue ---\n")
	sb.WriteString(fmt.Sprintf("Total tasks:        %d\n", s.Queue.Total))
	for _, st := range statusOrder {
		if n := s.Queue.ByStatus[st]; n > 0 {
			sb.WriteString(fmt.Sprintf("%-20s%d\n", string(st)+":", n))
		}
	}
	if s.Queue.AverageDuration > 0 {
		sb.WriteString(fmt.Sprintf("Average duration:   %s\n", FormatDuration(s.Queue.AverageDuration)))
	}
	if s.Queue.RemainingEstimate > 0 {
		sb.WriteString(fmt.Sprintf("Remaining estimate: %s\n", FormatDuration(s.Queue.RemainingEstimate)))
	}

	sb.WriteString("\n--- Agent Pool ---\n")
	sb.WriteString(fmt.Sprintf("Capacity: %d  Live: %d  Idle: %d  Working: %d  Errored: %d  Retired: %d\n",
		s.Pool.Capacity, s.Pool.Live, s.Pool.Idle, s.Pool.Working, s.Pool.Errored, s.Pool.Retired))
	for _, cat := range models.Categories() {
		if n := s.Pool.ByCategory[cat]; n > 0 {
			sb.WriteString(fmt.Sprintf("%-20s%d\n", string(cat)+":", n))
		}
	}

	sb.WriteString("\n--- Shared Memory ---\n")
	sb.WriteString(fmt.Sprintf("Mode: %s  Regions: %d  Subscribers: %d\n",
		s.Memory.Mode, s.Memory.Regions, s.Memory.Subscribers))

	sb.WriteString(fmt.Sprintf("\nFiles written: %d  Conflicts resolved: %d  Handoffs: %d\n",
		s.FilesWritten, s.ConflictsResolved, s.Handoffs))

	if s.Coordination != nil {
		c := s.Coordination
		sb.WriteString("\n--- File Coordination ---\n")
		sb.WriteString(fmt.Sprintf("Tracked files:      %d\n", c.Files))
		sb.WriteString(fmt.Sprintf("Active operations:  %d\n", c.ActiveOperations))
		sb.WriteString(fmt.Sprintf("Total operations:   %d\n", c.TotalOperations))
		sb.WriteString(fmt.Sprintf("Conflicts resolved: %d\n", c.ConflictsResolved))
		sb.WriteString(fmt.Sprintf("Active locks:       %d\n", c.ActiveLocks))
	}

	return sb.String()
}

func (r *Renderer) header(s string) string {
	if r.colorize {
		return color.New(color.Bold).Sprint(s)
	}
	return s
}

// truncate shortens s to max characters, marking the cut with an
// ellipsis.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

// FormatDuration renders a duration at the coarsest useful unit.
func FormatDuration(d time.Duration) string {
	if d <= 0 {
		return "0s"
	}
	if d < time.Minute {
		return fmt.Sprintf("%.0fs", d.Seconds())
	}
	if d < time.Hour {
		return fmt.Sprintf("%.0fm", d.Minutes())
	}
	return fmt.Sprintf("%.1fh", d.Hours())
}
