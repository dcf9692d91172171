// Package ui renders styled CLI output.
//
// Color is automatic: it turns off when stdout is not a terminal, when
// NO_COLOR is set, or when the terminal reports no color support. The
// --no-color flag disables it explicitly.
package ui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

var (
	accentStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("12")).
			Bold(true)

	passStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("11"))

	failStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Faint(true)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Underline(true)
)

var colorEnabled = detectColor()

func detectColor() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return false
	}
	return termenv.EnvColorProfile() != termenv.Ascii
}

// DisableColor forces plain output for the rest of the process.
func DisableColor() {
	colorEnabled = false
}

// Accent highlights identifiers such as table names and run IDs.
func Accent(s string) string { return render(accentStyle, s) }

// Pass marks a successful outcome.
func Pass(s string) string { return render(passStyle, s) }

// Warn marks a recoverable oddity, such as a broken reference cycle.
func Warn(s string) string { return render(warnStyle, s) }

// Fail marks an aborted run.
func Fail(s string) string { return render(failStyle, s) }

// Dim de-emphasizes supporting detail.
func Dim(s string) string { return render(dimStyle, s) }

// Header styles a section heading.
func Header(s string) string { return render(headerStyle, s) }

func render(style lipgloss.Style, s string) string {
	if !colorEnabled {
		return s
	}
	return style.Render(s)
}

// Table lays out rows under headers with a normal border.
func Table(headers []string, rows [][]string) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		Rows(rows...)
	return t.Render()
}
