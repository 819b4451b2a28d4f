// Package display renders terminal output for the CLI: build plan
// previews, run summaries, orchestration statistics, progress
// counters, and warnings.
//
// Renderer is the main entry point. It colorizes through fatih/color
// when the destination is a terminal and falls back to plain text
// otherwise:
//
//	r := display.NewRenderer(os.Stdout)
//	r.Plan(plan)
//	r.Report(report)
//
// Progress prints a step counter for multi-item operations such as
// loading a directory of plan files:
//
//	p := display.NewProgress(os.Stdout, "Loading plan files", len(files))
//	p.Start()
//	for _, f := range files {
//	    p.Step(filepath.Base(f))
//	}
//	p.Complete(fmt.Sprintf("Loaded %d plan files", len(files)))
//
// Warnings render as an indented yellow block:
//
//	display.Warning{
//	    Title: "Sequenced plan files detected",
//	    Items: names,
//	    Hint:  "Tasks run in dependency order, not file order.",
//	}.Render(os.Stderr)
//
// Everything writes to an io.Writer, so output stays testable and
// redirectable.
package display
