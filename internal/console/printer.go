// Package console is the line-oriented terminal front end: styled output,
// attempt progress, session selection and the chat loop.
package console

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Margin is the left indent of every printed line.
const Margin = "    "

const (
	defaultWidth = 80
	maxRuleWidth = 80
)

// Colors
var (
	headerColor = lipgloss.Color("212") // Pink
	infoColor   = lipgloss.Color("214") // Orange
	errorColor  = lipgloss.Color("196") // Red
	dimColor    = lipgloss.Color("245") // Gray
	modelColor  = lipgloss.Color("39")  // Blue
	warnColor   = lipgloss.Color("220") // Yellow
)

// Printer writes styled lines to out. Styles degrade to plain text when out
// is not a color terminal.
type Printer struct {
	out   io.Writer
	width int

	header lipgloss.Style
	info   lipgloss.Style
	err    lipgloss.Style
	dim    lipgloss.Style
	model  lipgloss.Style
	warn   lipgloss.Style
}

// NewPrinter returns a printer for out.
func NewPrinter(out io.Writer) *Printer {
	r := lipgloss.NewRenderer(out)
	return &Printer{
		out:    out,
		width:  terminalWidth(out),
		header: r.NewStyle().Foreground(headerColor).Bold(true),
		info:   r.NewStyle().Foreground(infoColor),
		err:    r.NewStyle().Foreground(errorColor),
		dim:    r.NewStyle().Foreground(dimColor),
		model:  r.NewStyle().Foreground(modelColor).Bold(true),
		warn:   r.NewStyle().Foreground(warnColor),
	}
}

func terminalWidth(out io.Writer) int {
	f, ok := out.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return defaultWidth
	}
	w, _, err := term.GetSize(int(f.Fd()))
	if err != nil || w <= 0 {
		return defaultWidth
	}
	return w
}

// Writer returns the underlying writer.
func (p *Printer) Writer() io.Writer { return p.out }

func (p *Printer) lines(style lipgloss.Style, text string) {
	for _, line := range strings.Split(strings.TrimRight(text, "\n"), "\n") {
		fmt.Fprintln(p.out, Margin+style.Render(line))
	}
}

// Header prints a bold title.
func (p *Printer) Header(text string) { p.lines(p.header, text) }

// Info prints informational text, one styled line per input line.
func (p *Printer) Info(text string) { p.lines(p.info, text) }

// Error prints an error message.
func (p *Printer) Error(text string) { p.lines(p.err, text) }

// Warn prints a warning.
func (p *Printer) Warn(text string) { p.lines(p.warn, text) }

// Dim prints low-emphasis text.
func (p *Printer) Dim(text string) { p.lines(p.dim, text) }

// Blank prints an empty line.
func (p *Printer) Blank() { fmt.Fprintln(p.out) }

// Rule prints a horizontal separator.
func (p *Printer) Rule() {
	w := p.width - 2*len(Margin)
	if w > maxRuleWidth {
		w = maxRuleWidth
	}
	if w < 1 {
		w = 1
	}
	fmt.Fprintln(p.out, Margin+p.dim.Render(strings.Repeat("─", w)))
}

// ModelHeader announces which model produced the response that follows.
func (p *Printer) ModelHeader(label string) {
	fmt.Fprintln(p.out, Margin+p.model.Render(label+":"))
}

// Response prints model output verbatim, without margin or styling, so
// code blocks can be copied as-is.
func (p *Printer) Response(text string) {
	fmt.Fprintln(p.out, strings.TrimRight(text, "\n"))
}
