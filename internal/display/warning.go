package display

import (
	"fmt"
	"io"
	"strings"
)

// Warning is a user-facing advisory rendered as an indented yellow
// block.
type Warning struct {
	Title  string
	Detail string   // optional explanation under the title
	Items  []string // optional list of affected names
	Hint   string   // optional suggested action
}

// Render writes the warning to out.
func (w Warning) Render(out io.Writer) {
	var b strings.Builder

	b.WriteString("\x1b[33m")
	b.WriteString("⚠️  Warning: ")
	b.WriteString(w.Title)
	b.WriteString("\n")

	if w.Detail != "" {
		b.WriteString("    ")
		b.WriteString(w.Detail)
		b.WriteString("\n")
	}

	for _, item := range w.Items {
		b.WriteString("      - ")
		b.WriteString(item)
		b.WriteString("\n")
	}

	if w.Hint != "" {
		b.WriteString("    Hint: ")
		b.WriteString(w.Hint)
		b.WriteString("\n")
	}

	b.WriteString("\x1b[0m")

	fmt.Fprint(out, b.String())
}
