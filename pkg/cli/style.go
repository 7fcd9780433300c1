package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Theme defines the terminal colors.
type Theme struct {
	Primary lipgloss.Color
	Success lipgloss.Color
	Warning lipgloss.Color
	Error   lipgloss.Color
	Dim     lipgloss.Color
}

// DefaultTheme is the default bright green theme.
var DefaultTheme = Theme{
	Primary: lipgloss.Color("#00ff9f"),
	Success: lipgloss.Color("#3fb950"),
	Warning: lipgloss.Color("#d29922"),
	Error:   lipgloss.Color("#f85149"),
	Dim:     lipgloss.Color("#6e7681"),
}

// Styles holds all styles derived from a theme.
type Styles struct {
	Title   lipgloss.Style
	Label   lipgloss.Style
	Value   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Dim     lipgloss.Style
}

// NewStyles creates styles from a theme.
func NewStyles(t Theme) Styles {
	return Styles{
		Title:   lipgloss.NewStyle().Bold(true).Foreground(t.Primary),
		Label:   lipgloss.NewStyle().Foreground(t.Dim),
		Value:   lipgloss.NewStyle().Bold(true),
		Success: lipgloss.NewStyle().Foreground(t.Success),
		Warning: lipgloss.NewStyle().Foreground(t.Warning),
		Error:   lipgloss.NewStyle().Bold(true).Foreground(t.Error),
		Dim:     lipgloss.NewStyle().Foreground(t.Dim),
	}
}

// DefaultStyles is used by the Print helpers.
var DefaultStyles = NewStyles(DefaultTheme)

// Messages go to stderr so stdout stays parseable.
var messageWriter io.Writer = os.Stderr

// PrintSuccess prints a success message with checkmark.
func PrintSuccess(format string, args ...any) {
	fmt.Fprintln(messageWriter, DefaultStyles.Success.Render("✓ "+fmt.Sprintf(format, args...)))
}

// PrintError prints an error message.
func PrintError(format string, args ...any) {
	fmt.Fprintln(messageWriter, DefaultStyles.Error.Render("Error: "+fmt.Sprintf(format, args...)))
}

// PrintInfo prints an info message.
func PrintInfo(format string, args ...any) {
	fmt.Fprintln(messageWriter, "ℹ "+fmt.Sprintf(format, args...))
}

// PrintWarning prints a warning message.
func PrintWarning(format string, args ...any) {
	fmt.Fprintln(messageWriter, DefaultStyles.Warning.Render("⚠ "+fmt.Sprintf(format, args...)))
}

// Field is one row of a Summary.
type Field struct {
	Label string
	Value string
}

// Summary renders a titled, aligned key/value block.
func Summary(s Styles, title string, fields []Field) string {
	width := 0
	for _, f := range fields {
		width = max(width, lipgloss.Width(f.Label))
	}
	lines := []string{s.Title.Render(title)}
	for _, f := range fields {
		pad := strings.Repeat(" ", width-lipgloss.Width(f.Label))
		lines = append(lines, "  "+s.Label.Render(f.Label+":")+pad+" "+s.Value.Render(f.Value))
	}
	return strings.Join(lines, "\n")
}

// PrintSummary writes Summary with the default styles to stderr.
func PrintSummary(title string, fields []Field) {
	fmt.Fprintln(messageWriter, Summary(DefaultStyles, title, fields))
}
