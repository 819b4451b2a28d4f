package display

import (
	"fmt"
	"io"
)

// Progress prints a colorized step counter for multi-item operations.
type Progress struct {
	out   io.Writer
	label string
	total int
	done  int
}

// NewProgress creates a progress counter that writes to out. The label
// heads the listing and total sizes the [n/total] markers.
func NewProgress(out io.Writer, label string, total int) *Progress {
	return &Progress{out: out, label: label, total: total}
}

// Start prints the heading.
func (p *Progress) Start() {
	fmt.Fprintf(p.out, "%s:\n", p.label)
}

// Step advances the counter and prints the item on a cyan [n/total]
// line.
func (p *Progress) Step(item string) {
	p.done++
	fmt.Fprintf(p.out, "\x1b[36m  [%d/%d] %s\x1b[0m\n", p.done, p.total, item)
}

// Complete prints the summary behind a green check mark.
func (p *Progress) Complete(summary string) {
	fmt.Fprintf(p.out, "\x1b[32m✓\x1b[0m %s\n", summary)
}
