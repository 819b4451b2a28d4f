// Package logger provides the logging implementations used during a
// symphony run.
//
// The package offers leveled message logging plus structured reporting
// of plan progress and run summaries. Implementations are thread-safe
// and cover the common destinations (console, file). Engine packages
// declare the subset of the interface they need and accept any of the
// implementations here.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"

	"github.com/Flickinny11/symphony/internal/models"
)

// Log level constants for filtering
const (
	levelTrace int = 0
	levelDebug int = 1
	levelInfo  int = 2
	levelWarn  int = 3
	levelError int = 4
)

// Logger is the leveled logging surface shared by the console and file
// implementations.
type Logger interface {
	Tracef(format string, args ...interface{})
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// ConsoleLogger logs run progress to a writer with timestamps and thread safety.
// All output is prefixed with [HH:MM:SS] timestamps for tracking execution flow.
// It supports log level filtering to control message verbosity.
// Color output is automatically enabled for terminal output (os.Stdout/os.Stderr).
type ConsoleLogger struct {
	writer      io.Writer
	logLevel    string
	mutex       sync.Mutex
	colorOutput bool
}

// NewConsoleLogger creates a ConsoleLogger that writes to the provided io.Writer.
// If writer is nil, messages are silently discarded.
// logLevel determines the minimum log level for messages to be output.
// Valid levels: trace, debug, info, warn, error (case-insensitive).
// If logLevel is empty or invalid, defaults to "info".
// Color output is automatically enabled when writing to os.Stdout or os.Stderr with TTY support.
func NewConsoleLogger(writer io.Writer, logLevel string) *ConsoleLogger {
	return &ConsoleLogger{
		writer:      writer,
		logLevel:    normalizeLogLevel(logLevel),
		mutex:       sync.Mutex{},
		colorOutput: isTerminal(writer),
	}
}

// isTerminal checks if the writer is a terminal that supports colors.
// Returns true for os.Stdout and os.Stderr when they are TTYs.
func isTerminal(w io.Writer) bool {
	if w == nil {
		return false
	}

	if w == os.Stdout || w == os.Stderr {
		// The color library's detection also honors NO_COLOR.
		return !color.NoColor
	}

	return false
}

// normalizeLogLevel converts a log level string to lowercase and validates it.
// Returns "info" as default for empty or invalid levels.
func normalizeLogLevel(level string) string {
	normalized := strings.ToLower(strings.TrimSpace(level))

	validLevels := map[string]bool{
		"trace": true,
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}

	if validLevels[normalized] {
		return normalized
	}

	return "info" // Default level
}

// shouldLog checks if a message at the given level should be logged.
// Returns true if messageLevel >= configured logLevel.
func (cl *ConsoleLogger) shouldLog(messageLevel string) bool {
	return logLevelToInt(messageLevel) >= logLevelToInt(cl.logLevel)
}

// logLevelToInt converts a log level string to its numeric value.
func logLevelToInt(level string) int {
	switch level {
	case "trace":
		return levelTrace
	case "debug":
		return levelDebug
	case "info":
		return levelInfo
	case "warn":
		return levelWarn
	case "error":
		return levelError
	default:
		return levelInfo // Default to info if unknown
	}
}

// Tracef logs a trace-level message (most verbose).
// Format: "[HH:MM:SS] [TRACE] <message>"
func (cl *ConsoleLogger) Tracef(format string, args ...interface{}) {
	cl.logWithLevel("TRACE", fmt.Sprintf(format, args...))
}

// Debugf logs a debug-level message.
// Format: "[HH:MM:SS] [DEBUG] <message>"
func (cl *ConsoleLogger) Debugf(format string, args ...interface{}) {
	cl.logWithLevel("DEBUG", fmt.Sprintf(format, args...))
}

// Infof logs an info-level message.
// Format: "[HH:MM:SS] [INFO] <message>"
func (cl *ConsoleLogger) Infof(format string, args ...interface{}) {
	cl.logWithLevel("INFO", fmt.Sprintf(format, args...))
}

// Warnf logs a warning-level message.
// Format: "[HH:MM:SS] [WARN] <message>"
func (cl *ConsoleLogger) Warnf(format string, args ...interface{}) {
	cl.logWithLevel("WARN", fmt.Sprintf(format, args...))
}

// Errorf logs an error-level message.
// Format: "[HH:MM:SS] [ERROR] <message>"
func (cl *ConsoleLogger) Errorf(format string, args ...interface{}) {
	cl.logWithLevel("ERROR", fmt.Sprintf(format, args...))
}

// logWithLevel is a helper that logs a message at the specified level if filtering allows it.
func (cl *ConsoleLogger) logWithLevel(level string, message string) {
	if cl.writer == nil {
		return
	}

	if !cl.shouldLog(strings.ToLower(level)) {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	ts := timestamp()
	var formatted string

	if cl.colorOutput {
		formatted = cl.formatWithColor(ts, level, message)
	} else {
		formatted = fmt.Sprintf("[%s] [%s] %s\n", ts, level, message)
	}

	cl.writer.Write([]byte(formatted))
}

// formatWithColor formats a log message with ANSI color codes.
func (cl *ConsoleLogger) formatWithColor(ts, level, message string) string {
	var coloredLevel string

	switch strings.ToUpper(level) {
	case "TRACE":
		coloredLevel = color.New(color.FgHiBlack).Sprint(level)
	case "DEBUG":
		coloredLevel = color.New(color.FgCyan).Sprint(level)
	case "INFO":
		coloredLevel = color.New(color.FgBlue).Sprint(level)
	case "WARN":
		coloredLevel = color.New(color.FgYellow).Sprint(level)
	case "ERROR":
		coloredLevel = color.New(color.FgRed).Sprint(level)
	default:
		coloredLevel = level
	}

	return fmt.Sprintf("[%s] [%s] %s\n", ts, coloredLevel, message)
}

// LogPlanStart logs the start of a plan run at INFO level.
// Format: "[HH:MM:SS] Starting <name>: <count> tasks (estimated <duration>)"
func (cl *ConsoleLogger) LogPlanStart(plan *models.BuildPlan) {
	if cl.writer == nil || plan == nil {
		return
	}

	if !cl.shouldLog("info") {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	ts := timestamp()
	taskCount := len(plan.Tasks)
	estimate := formatDuration(plan.TotalEstimate())

	var message string
	if cl.colorOutput {
		// Bold for plan headers
		planName := color.New(color.Bold).Sprint(plan.Name)
		message = fmt.Sprintf("[%s] Starting %s: %d tasks (estimated %s)\n", ts, planName, taskCount, estimate)
	} else {
		message = fmt.Sprintf("[%s] Starting %s: %d tasks (estimated %s)\n", ts, plan.Name, taskCount, estimate)
	}

	cl.writer.Write([]byte(message))
}

// LogTaskOutcome logs a task reaching a terminal status at DEBUG level.
// Format: "[HH:MM:SS] Task <id> (<title>): <status>"
// Returns nil for successful logging, or an error if logging failed.
func (cl *ConsoleLogger) LogTaskOutcome(outcome models.TaskOutcome) error {
	if cl.writer == nil {
		return nil
	}

	if !cl.shouldLog("debug") {
		return nil
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	ts := timestamp()
	taskInfo := fmt.Sprintf("Task %s (%s)", outcome.TaskID, outcome.Title)

	statusText := string(outcome.Status)
	if cl.colorOutput {
		switch outcome.Status {
		case models.StatusCompleted:
			statusText = color.New(color.FgGreen).Sprint(statusText)
		case models.StatusFailed:
			statusText = color.New(color.FgRed).Sprint(statusText)
		}
	}

	var message string
	if outcome.Status == models.StatusFailed && outcome.FailureReason != "" {
		message = fmt.Sprintf("[%s] %s: %s (%s)\n", ts, taskInfo, statusText, outcome.FailureReason)
	} else {
		message = fmt.Sprintf("[%s] %s: %s in %s\n", ts, taskInfo, statusText, formatDuration(outcome.Duration))
	}

	_, err := cl.writer.Write([]byte(message))
	return err
}

// LogRunSummary logs the run summary with completion statistics at INFO level.
func (cl *ConsoleLogger) LogRunSummary(report *models.RunReport) {
	if cl.writer == nil || report == nil {
		return
	}

	if !cl.shouldLog("info") {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	ts := timestamp()
	durationStr := formatDuration(report.Duration)

	var output string

	if cl.colorOutput {
		header := color.New(color.Bold).Sprint("=== Run Summary ===")
		output = fmt.Sprintf("[%s] %s\n", ts, header)
		output += fmt.Sprintf("[%s] Plan: %s\n", ts, report.PlanName)
		output += fmt.Sprintf("[%s] Total tasks: %d\n", ts, report.TotalTasks)

		completedText := color.New(color.FgGreen).Sprintf("Completed: %d", report.Completed)
		output += fmt.Sprintf("[%s] %s\n", ts, completedText)

		if report.Failed > 0 {
			failedText := color.New(color.FgRed).Sprintf("Failed: %d", report.Failed)
			output += fmt.Sprintf("[%s] %s\n", ts, failedText)
		} else {
			output += fmt.Sprintf("[%s] Failed: %d\n", ts, report.Failed)
		}

		output += fmt.Sprintf("[%s] Files written: %d\n", ts, report.FilesWritten)
		output += fmt.Sprintf("[%s] Conflicts resolved: %d\n", ts, report.ConflictsResolved)
		output += fmt.Sprintf("[%s] Handoffs: %d\n", ts, report.Handoffs)
		output += fmt.Sprintf("[%s] Duration: %s\n", ts, durationStr)

		if len(report.FailedTasks) > 0 {
			failedHeader := color.New(color.FgRed).Sprint("Failed tasks:")
			output += fmt.Sprintf("[%s] %s\n", ts, failedHeader)
			for _, outcome := range report.FailedTasks {
				title := color.New(color.FgRed).Sprint(outcome.Title)
				output += fmt.Sprintf("[%s]   - %s: %s\n", ts, title, outcome.FailureReason)
			}
		}
	} else {
		output = fmt.Sprintf("[%s] === Run Summary ===\n", ts)
		output += fmt.Sprintf("[%s] Plan: %s\n", ts, report.PlanName)
		output += fmt.Sprintf("[%s] Total tasks: %d\n", ts, report.TotalTasks)
		output += fmt.Sprintf("[%s] Completed: %d\n", ts, report.Completed)
		output += fmt.Sprintf("[%s] Failed: %d\n", ts, report.Failed)
		output += fmt.Sprintf("[%s] Files written: %d\n", ts, report.FilesWritten)
		output += fmt.Sprintf("[%s] Conflicts resolved: %d\n", ts, report.ConflictsResolved)
		output += fmt.Sprintf("[%s] Handoffs: %d\n", ts, report.Handoffs)
		output += fmt.Sprintf("[%s] Duration: %s\n", ts, durationStr)

		if len(report.FailedTasks) > 0 {
			output += fmt.Sprintf("[%s] Failed tasks:\n", ts)
			for _, outcome := range report.FailedTasks {
				output += fmt.Sprintf("[%s]   - %s: %s\n", ts, outcome.Title, outcome.FailureReason)
			}
		}
	}

	cl.writer.Write([]byte(output))
}

// LogProgress logs real-time progress of task execution with percentage, counts, and average duration.
// Format: "[HH:MM:SS] Progress: [====      ] 4/8 (50%) - Avg: 3s/task"
// Handles edge cases: zero tasks, all completed, no duration data.
func (cl *ConsoleLogger) LogProgress(tasks []*models.Task) {
	if cl.writer == nil {
		return
	}

	if !cl.shouldLog("info") {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	ts := timestamp()

	completed := 0
	totalDuration := time.Duration(0)

	for _, task := range tasks {
		if task.Status == models.StatusCompleted {
			completed++
			totalDuration += task.Duration()
		}
	}

	total := len(tasks)

	pb := NewProgressBar(total, 10, cl.colorOutput)
	pb.Update(completed)

	var avgDurationStr string
	if completed > 0 && totalDuration > 0 {
		avgDuration := totalDuration / time.Duration(completed)
		avgDurationStr = fmt.Sprintf(" - Avg: %s/task", formatDuration(avgDuration))
	}

	output := fmt.Sprintf("[%s] Progress: %s%s\n", ts, pb.Render(), avgDurationStr)
	cl.writer.Write([]byte(output))
}

// timestamp returns the current time formatted as "15:04:05" (HH:MM:SS).
func timestamp() string {
	return time.Now().Format("15:04:05")
}

// formatDuration converts a time.Duration to a human-readable string.
// Examples: "5s", "1m30s", "2h15m"
func formatDuration(d time.Duration) string {
	switch {
	case d >= time.Hour:
		hours := d / time.Hour
		remainder := d % time.Hour
		if remainder == 0 {
			return fmt.Sprintf("%dh", hours)
		}
		minutes := remainder / time.Minute
		remainder = remainder % time.Minute
		if remainder == 0 {
			return fmt.Sprintf("%dh%dm", hours, minutes)
		}
		seconds := remainder / time.Second
		return fmt.Sprintf("%dh%dm%ds", hours, minutes, seconds)
	case d >= time.Minute:
		minutes := d / time.Minute
		remainder := d % time.Minute
		if remainder == 0 {
			return fmt.Sprintf("%dm", minutes)
		}
		seconds := remainder / time.Second
		return fmt.Sprintf("%dm%ds", minutes, seconds)
	default:
		return fmt.Sprintf("%ds", int64(d.Seconds()))
	}
}

// NoOpLogger is a Logger implementation that discards all log messages.
// Useful for testing or when logging is disabled.
type NoOpLogger struct{}

// NewNoOpLogger creates a NoOpLogger instance.
func NewNoOpLogger() *NoOpLogger {
	return &NoOpLogger{}
}

// Tracef is a no-op implementation.
func (n *NoOpLogger) Tracef(format string, args ...interface{}) {
}

// Debugf is a no-op implementation.
func (n *NoOpLogger) Debugf(format string, args ...interface{}) {
}

// Infof is a no-op implementation.
func (n *NoOpLogger) Infof(format string, args ...interface{}) {
}

// Warnf is a no-op implementation.
func (n *NoOpLogger) Warnf(format string, args ...interface{}) {
}

// Errorf is a no-op implementation.
func (n *NoOpLogger) Errorf(format string, args ...interface{}) {
}

// LogPlanStart is a no-op implementation.
func (n *NoOpLogger) LogPlanStart(plan *models.BuildPlan) {
}

// LogTaskOutcome is a no-op implementation.
func (n *NoOpLogger) LogTaskOutcome(outcome models.TaskOutcome) error {
	return nil
}

// LogRunSummary is a no-op implementation.
func (n *NoOpLogger) LogRunSummary(report *models.RunReport) {
}

// LogProgress is a no-op implementation.
func (n *NoOpLogger) LogProgress(tasks []*models.Task) {
}
