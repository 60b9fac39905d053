package main

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	funcStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	typeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

// printer writes command output, styled only when w is a terminal.
type printer struct {
	w      io.Writer
	styled bool
}

func newPrinter(w io.Writer) printer {
	p := printer{w: w}
	if f, ok := w.(*os.File); ok {
		p.styled = term.IsTerminal(int(f.Fd()))
	}
	return p
}

func (p printer) render(s lipgloss.Style, text string) string {
	if !p.styled {
		return text
	}
	return s.Render(text)
}

func (p printer) title(text string) {
	fmt.Fprintln(p.w, p.render(titleStyle, text))
}

func (p printer) field(name string, value any) {
	fmt.Fprintf(p.w, "%s: %s\n", name, p.render(resultStyle, fmt.Sprint(value)))
}

func (p printer) method(name, desc, sig string) {
	fmt.Fprintf(p.w, "  %s%s  %s\n", p.render(funcStyle, name), desc, p.render(typeStyle, sig))
}

func (p printer) failure(text string) {
	fmt.Fprintln(p.w, p.render(errorStyle, text))
}
