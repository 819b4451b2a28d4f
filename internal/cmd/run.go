package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/Flickinny11/symphony/internal/agents"
	"github.com/Flickinny11/symphony/internal/conductor"
	"github.com/Flickinny11/symphony/internal/display"
	"github.com/Flickinny11/symphony/internal/history"
	"github.com/Flickinny11/symphony/internal/logger"
	"github.com/Flickinny11/symphony/internal/metrics"
	"github.com/Flickinny11/symphony/internal/models"
	"github.com/Flickinny11/symphony/internal/planner"
	"github.com/Flickinny11/symphony/internal/pool"
	"github.com/Flickinny11/symphony/internal/sharedmem"
	"github.com/Flickinny11/symphony/internal/simulate"
)

// NewRunCommand creates the run command
func NewRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <plan-file-or-directory>...",
		Short: "Execute a build plan",
		Long: `Execute a build plan by dispatching its tasks to a pool of agents.

The run command parses the specified plan file(s) or directory (Markdown
or YAML format), validates task dependencies, and executes independent
tasks concurrently while respecting dependency order.

When a directory is given, every plan file in it is loaded and merged
into a single plan with cross-file dependency resolution. Task order is
always the dependency order, never the file order.

Configuration is loaded from .symphony/config.yaml if present.
CLI flags override configuration file settings.

Examples:
  # Single file execution
  symphony run plan.md

  # Directory execution (merges every plan file in the directory)
  symphony run docs/plans/checkout/

  # Multi-file execution with cross-file dependencies
  symphony run backend.md frontend.yaml

  # Other options
  symphony run --dry-run plan.yaml       # Validate and preview without executing
  symphony run --timeout 2h plan.md      # Set 2 hour timeout
  symphony run --verbose plan.md         # Debug logging plus final statistics
  symphony run --capacity 5 plan.md      # Cap the agent pool at 5 slots
  symphony run --extended=false plan.md  # Base engine without file coordination
  symphony run --no-history plan.md      # Skip the run history database`,
		Args: cobra.MinimumNArgs(1),
		RunE: runCommand,
	}

	// Add flags
	cmd.Flags().String("config", "", "Path to config file (default: .symphony/config.yaml)")
	cmd.Flags().Bool("dry-run", false, "Validate and preview the plan without executing tasks")
	cmd.Flags().Int("capacity", 0, "Agent pool capacity (0 = use config)")
	cmd.Flags().Bool("extended", true, "Run the extended engine with file coordination")
	cmd.Flags().String("timeout", "", "Maximum execution time (e.g., 30m, 2h, 1h30m)")
	cmd.Flags().Bool("verbose", false, "Show detailed execution information")
	cmd.Flags().String("log-dir", "", "Directory for log files")
	cmd.Flags().String("mirror-dir", "", "Directory for shared memory region mirrors")
	cmd.Flags().Bool("no-history", false, "Do not record the run in the history database")

	return cmd
}

// runCommand implements the run command logic
func runCommand(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	// Build flag pointers for merge (only values the user set)
	capacityFlag, _ := cmd.Flags().GetInt("capacity")
	var capacityPtr *int
	if cmd.Flags().Changed("capacity") {
		capacityPtr = &capacityFlag
	}

	var logLevelPtr *string
	verbose, _ := cmd.Flags().GetBool("verbose")
	if verbose {
		debug := "debug"
		logLevelPtr = &debug
	}

	logDirFlag, _ := cmd.Flags().GetString("log-dir")
	var logDirPtr *string
	if cmd.Flags().Changed("log-dir") {
		logDirPtr = &logDirFlag
	}

	mirrorDirFlag, _ := cmd.Flags().GetString("mirror-dir")
	var mirrorDirPtr *string
	if cmd.Flags().Changed("mirror-dir") {
		mirrorDirPtr = &mirrorDirFlag
	}

	// Merge CLI flags with config (flags take precedence)
	cfg.MergeWithFlags(capacityPtr, logLevelPtr, logDirPtr, mirrorDirPtr)

	// An explicit --capacity above the configured extended ceiling
	// lifts the ceiling with it.
	if capacityPtr != nil && cfg.Pool.ExtendedCapacity < cfg.Pool.Capacity {
		cfg.Pool.ExtendedCapacity = cfg.Pool.Capacity
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	timeoutStr, _ := cmd.Flags().GetString("timeout")
	var timeout time.Duration
	if timeoutStr != "" {
		timeout, err = time.ParseDuration(timeoutStr)
		if err != nil {
			return fmt.Errorf("invalid timeout format %q: %w", timeoutStr, err)
		}
	}

	// Load and parse plan file(s)
	plan, err := loadPlan(cmd, args)
	if err != nil {
		return err
	}

	renderer := display.NewRenderer(out)
	fmt.Fprintln(out)
	renderer.Plan(plan)

	dryRun, _ := cmd.Flags().GetBool("dry-run")
	if dryRun {
		fmt.Fprintf(out, "\nDry-run mode: plan is valid and ready for execution.\n")
		return nil
	}

	// Full execution mode: assemble the engine
	logLevel := cfg.LogLevel

	consoleLog := logger.NewConsoleLogger(out, logLevel)
	fileLog, err := logger.NewFileLoggerWithDirAndLevel(cfg.LogDir, logLevel)
	if err != nil {
		return fmt.Errorf("create file logger: %w", err)
	}
	defer fileLog.Close()

	multiLog := &multiLogger{loggers: []conductor.Logger{consoleLog, fileLog}}

	var sink history.Sink = history.NoopSink{}
	noHistory, _ := cmd.Flags().GetBool("no-history")
	if cfg.History.Enabled && !noHistory {
		store, err := history.NewStore(cfg.History.DBPath)
		if err != nil {
			fmt.Fprintf(cmd.OutOrStderr(), "Warning: run history disabled: %v\n", err)
		} else {
			defer store.Close()
			sink = store
		}
	}

	catalog, err := agents.LoadCatalog(cfg.AgentsFile)
	if err != nil {
		return fmt.Errorf("load agent catalog: %w", err)
	}

	extended, _ := cmd.Flags().GetBool("extended")
	capacity := cfg.Pool.Capacity
	if extended {
		capacity = cfg.Pool.ExtendedCapacity
	}
	if capacityPtr != nil {
		capacity = *capacityPtr
	}

	agentPool := pool.NewWithOptions(capacity, catalog, pool.Options{
		WaitTimeout:  cfg.Pool.WaitTimeout,
		PollInterval: cfg.Pool.PollInterval,
	})

	bridge := sharedmem.NewWithOptions(sharedmem.Options{
		MirrorDir:   cfg.Memory.MirrorDir,
		LockTimeout: cfg.Memory.LockTimeout,
		Logger:      consoleLog,
	})

	exec := simulate.NewWithOptions(simulate.Options{Logger: consoleLog})

	opts := conductor.Options{
		Logger:       multiLog,
		Sink:         sink,
		Metrics:      metrics.Default(),
		Coordination: cfg.Coordination,
		RegionSize:   cfg.Memory.RegionSize,
	}

	var eng *conductor.Conductor
	if extended {
		eng = conductor.NewExtendedWithOptions(agentPool, bridge, exec, conductor.ExtendedOptions{Options: opts}).Conductor
	} else {
		eng = conductor.NewWithOptions(agentPool, bridge, exec, opts)
	}

	if err := eng.LoadPlan(plan); err != nil {
		return fmt.Errorf("load plan: %w", err)
	}

	ctx := cmd.Context()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	fmt.Fprintf(out, "\nStarting execution with %d agent slot(s)...\n\n", capacity)

	report, err := eng.Start(ctx)
	if err != nil {
		return fmt.Errorf("execution failed: %w", err)
	}

	if verbose {
		fmt.Fprintln(out)
		renderer.Stats(eng.Stats())
	}

	if report.Failed > 0 {
		return fmt.Errorf("%d task(s) failed", report.Failed)
	}

	fmt.Fprintf(out, "\nExecution completed successfully.\n")
	fmt.Fprintf(out, "Log file: %s\n", fileLog.RunFile())
	return nil
}

// collectPlanFiles expands directory arguments into the plan files they
// contain. File arguments pass through untouched so ParseFile can
// report missing paths itself.
func collectPlanFiles(args []string) ([]string, error) {
	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err == nil && info.IsDir() {
			found, err := display.FindPlanFiles(arg)
			if err != nil {
				return nil, fmt.Errorf("scan %s: %w", arg, err)
			}
			if len(found) == 0 {
				return nil, fmt.Errorf("no plan files in %s", arg)
			}
			files = append(files, found...)
			continue
		}
		files = append(files, arg)
	}
	return files, nil
}

// loadPlan parses the plan files named by args, merging when there is
// more than one.
func loadPlan(cmd *cobra.Command, args []string) (*models.BuildPlan, error) {
	out := cmd.OutOrStdout()

	files, err := collectPlanFiles(args)
	if err != nil {
		return nil, err
	}

	if len(files) == 1 {
		fmt.Fprintf(out, "Loading plan from %s...\n", files[0])
		return planner.ParseFile(files[0])
	}

	if seq := display.SequencedNames(files); len(seq) > 0 {
		w := display.Warning{
			Title:  "Numbered plan files detected",
			Detail: "File numbering does not set execution order. Tasks run in dependency order.",
			Items:  seq,
			Hint:   "Declare ordering with **Depends on** annotations instead.",
		}
		w.Render(out)
	}

	progress := display.NewProgress(out, "Loading plan files", len(files))
	progress.Start()
	for _, f := range files {
		progress.Step(filepath.Base(f))
	}

	plan, err := planner.ParseFiles(files...)
	if err != nil {
		return nil, err
	}
	progress.Complete(fmt.Sprintf("Merged %d plan files into %d task(s)", len(files), len(plan.Tasks)))
	return plan, nil
}

// multiLogger implements conductor.Logger by delegating to multiple loggers
type multiLogger struct {
	loggers []conductor.Logger
}

// Debugf forwards to all loggers
func (ml *multiLogger) Debugf(format string, args ...interface{}) {
	for _, l := range ml.loggers {
		l.Debugf(format, args...)
	}
}

// Infof forwards to all loggers
func (ml *multiLogger) Infof(format string, args ...interface{}) {
	for _, l := range ml.loggers {
		l.Infof(format, args...)
	}
}

// Warnf forwards to all loggers
func (ml *multiLogger) Warnf(format string, args ...interface{}) {
	for _, l := range ml.loggers {
		l.Warnf(format, args...)
	}
}

// Errorf forwards to all loggers
func (ml *multiLogger) Errorf(format string, args ...interface{}) {
	for _, l := range ml.loggers {
		l.Errorf(format, args...)
	}
}

// LogPlanStart forwards to all loggers
func (ml *multiLogger) LogPlanStart(plan *models.BuildPlan) {
	for _, l := range ml.loggers {
		l.LogPlanStart(plan)
	}
}

// LogTaskOutcome forwards to all loggers, returning the last error
func (ml *multiLogger) LogTaskOutcome(outcome models.TaskOutcome) error {
	var lastErr error
	for _, l := range ml.loggers {
		if err := l.LogTaskOutcome(outcome); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// LogRunSummary forwards to all loggers
func (ml *multiLogger) LogRunSummary(report *models.RunReport) {
	for _, l := range ml.loggers {
		l.LogRunSummary(report)
	}
}

// LogProgress forwards to all loggers
func (ml *multiLogger) LogProgress(tasks []*models.Task) {
	for _, l := range ml.loggers {
		l.LogProgress(tasks)
	}
}
