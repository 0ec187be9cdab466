package formatter

import (
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

var (
	colorOK    = lipgloss.Color("#2CD7C7")
	colorWarn  = lipgloss.Color("#F4D03F")
	colorBad   = lipgloss.Color("#E74C3C")
	colorMuted = lipgloss.Color("#6C7A89")
)

// Styles used by gk output.
var (
	TitleStyle  = lipgloss.NewStyle().Bold(true)
	HeaderStyle = lipgloss.NewStyle().Bold(true).Underline(true)
	OKStyle     = lipgloss.NewStyle().Foreground(colorOK)
	WarnStyle   = lipgloss.NewStyle().Foreground(colorWarn)
	BadStyle    = lipgloss.NewStyle().Foreground(colorBad).Bold(true)
	MutedStyle  = lipgloss.NewStyle().Foreground(colorMuted)
)

// ColorEnabled reports whether f is a terminal that should get color.
// NO_COLOR disables it.
func ColorEnabled(f *os.File) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// Styler colors status words when enabled.
type Styler struct {
	Color bool
}

// Status renders a status word in the color of its meaning.
func (s Styler) Status(word string) string {
	if !s.Color {
		return word
	}
	switch strings.ToUpper(word) {
	case "CLOSED", "ALLOW", "SATISFIED", "COMPLETED", "APPROVED", "PASS", "OK":
		return OKStyle.Render(word)
	case "WARN", "WARNING", "PENDING", "SKIPPED", "TRIVIAL":
		return WarnStyle.Render(word)
	case "TRIPPED", "BLOCK", "HALTED", "GAMED", "FAIL", "NOT APPROVED":
		return BadStyle.Render(word)
	default:
		return word
	}
}

// Title renders a section title.
func (s Styler) Title(text string) string {
	if !s.Color {
		return text
	}
	return TitleStyle.Render(text)
}

// Muted renders secondary text.
func (s Styler) Muted(text string) string {
	if !s.Color {
		return text
	}
	return MutedStyle.Render(text)
}

// Table returns a table whose header is styled when color is on.
func (s Styler) Table(w io.Writer, headers ...string) *Table {
	t := NewTable(w, headers...)
	if s.Color {
		t.WithHeaderStyle(HeaderStyle)
	}
	return t
}
