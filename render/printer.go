// Package render writes analysis results as text reports and as Graphviz
// graphs.
package render

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"golang.org/x/term"
)

// Printer writes reports, coloring them when enabled.
type Printer struct {
	w io.Writer

	head, good, bad, faint *color.Color

	// Verbose adds the alias relation at each call to run reports.
	Verbose bool
}

// NewPrinter returns a printer for w. mode is auto, always or never; in auto
// mode colors are used when w is a terminal.
func NewPrinter(w io.Writer, mode string) *Printer {
	p := &Printer{
		w:     w,
		head:  color.New(color.Bold),
		good:  color.New(color.FgGreen),
		bad:   color.New(color.FgYellow),
		faint: color.New(color.Faint),
	}

	enable := false
	switch mode {
	case "always":
		enable = true
	case "auto":
		if f, ok := w.(*os.File); ok {
			enable = term.IsTerminal(int(f.Fd()))
		}
	}

	for _, c := range []*color.Color{p.head, p.good, p.bad, p.faint} {
		if enable {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

func (p *Printer) printf(format string, args ...any) {
	fmt.Fprintf(p.w, format, args...)
}
