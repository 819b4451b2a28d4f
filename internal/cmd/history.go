package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Flickinny11/symphony/internal/display"
	"github.com/Flickinny11/symphony/internal/history"
	"github.com/Flickinny11/symphony/internal/models"
)

// lookbackRuns bounds how far back a --run prefix search goes.
const lookbackRuns = 100

// NewHistoryCommand creates and returns the history subcommand
func NewHistoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded runs",
		Long: `Show runs recorded in the history database.

Without flags the most recent runs are listed. With --run the summary
of one run is reconstructed, including its failed tasks and file
changes. The run id may be abbreviated to a unique prefix.

Examples:
  symphony history
  symphony history --limit 25
  symphony history --run 3f2a`,
		Args: cobra.NoArgs,
		RunE: historyCommand,
	}

	cmd.Flags().String("config", "", "Path to config file (default: .symphony/config.yaml)")
	cmd.Flags().String("run", "", "Show one run by id or unique id prefix")
	cmd.Flags().Int("limit", 10, "Number of runs to list")

	return cmd
}

// historyCommand implements the history command logic
func historyCommand(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	store, err := history.NewStore(cfg.History.DBPath)
	if err != nil {
		return fmt.Errorf("open history database: %w", err)
	}
	defer store.Close()

	ctx := cmd.Context()

	runID, _ := cmd.Flags().GetString("run")
	if runID != "" {
		return showRun(ctx, store, runID, out)
	}

	limit, _ := cmd.Flags().GetInt("limit")
	runs, err := store.RecentRuns(ctx, limit)
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}
	if len(runs) == 0 {
		fmt.Fprintf(out, "No recorded runs.\n")
		return nil
	}

	fmt.Fprintf(out, "%-8s  %-20s  %5s  %9s  %6s  %8s  %s\n",
		"Run", "Plan", "Tasks", "Completed", "Failed", "Duration", "Finished")
	for _, rec := range runs {
		name := rec.PlanName
		if len(name) > 20 {
			name = name[:17] + "..."
		}
		fmt.Fprintf(out, "%-8s  %-20s  %5d  %9d  %6d  %8s  %s\n",
			shortID(rec.RunID), name, rec.TotalTasks, rec.Completed, rec.Failed,
			display.FormatDuration(time.Duration(rec.DurationSecs)*time.Second),
			rec.Timestamp.Format("2006-01-02 15:04"))
	}
	return nil
}

// showRun reconstructs one recorded run and renders its summary.
func showRun(ctx context.Context, store *history.Store, prefix string, out io.Writer) error {
	runs, err := store.RecentRuns(ctx, lookbackRuns)
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}

	var rec *history.RunRecord
	for _, r := range runs {
		if strings.HasPrefix(r.RunID, prefix) {
			if rec != nil {
				return fmt.Errorf("run id prefix %q is ambiguous", prefix)
			}
			rec = r
		}
	}
	if rec == nil {
		return fmt.Errorf("no recorded run matches %q", prefix)
	}

	report := &models.RunReport{
		PlanName:          rec.PlanName,
		TotalTasks:        rec.TotalTasks,
		Completed:         rec.Completed,
		Failed:            rec.Failed,
		Duration:          time.Duration(rec.DurationSecs) * time.Second,
		FilesWritten:      rec.FilesWritten,
		ConflictsResolved: rec.ConflictsResolved,
		Handoffs:          rec.Handoffs,
	}

	tasks, err := store.TasksForRun(ctx, rec.RunID)
	if err != nil {
		return fmt.Errorf("load task records: %w", err)
	}
	for _, tr := range tasks {
		if tr.Status != string(models.StatusFailed) {
			continue
		}
		report.FailedTasks = append(report.FailedTasks, models.TaskOutcome{
			TaskID:        tr.TaskID,
			Title:         tr.Title,
			Category:      models.AgentCategory(tr.Category),
			AgentID:       tr.AgentID,
			Status:        models.StatusFailed,
			Duration:      time.Duration(tr.DurationSecs) * time.Second,
			FailureReason: tr.FailureReason,
		})
	}

	fmt.Fprintf(out, "Run %s finished %s\n\n", rec.RunID, rec.Timestamp.Format("2006-01-02 15:04:05"))
	display.NewRenderer(out).Report(report)

	changes, err := store.FileChangesForRun(ctx, rec.RunID)
	if err != nil {
		return fmt.Errorf("load file changes: %w", err)
	}
	if len(changes) > 0 {
		fmt.Fprintf(out, "\nFile changes:\n")
		for _, ch := range changes {
			fmt.Fprintf(out, "  %-7s %s (task %s, v%d)\n", ch.Operation, ch.Path, ch.TaskID, ch.Version)
		}
	}
	return nil
}

// shortID abbreviates a run id for table display.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
