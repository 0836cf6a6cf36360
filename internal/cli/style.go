package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	bannerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7D56F4")).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#7D56F4")).
			Padding(0, 2)

	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575"))
	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFB86C"))
	dimStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")).Italic(true)
	keyStyle  = lipgloss.NewStyle().Bold(true).Width(22)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B")).
			Bold(true)
)

// banner renders a boxed section title
func banner(title string) string {
	return bannerStyle.Render(title)
}

// field renders an aligned "key  value" line
func field(key string, value any) string {
	return "  " + keyStyle.Render(key) + fmt.Sprint(value)
}

// FormatError renders a command error for the terminal
func FormatError(err error) string {
	msg := err.Error()
	head, detail, found := strings.Cut(msg, ": ")
	if !found {
		return "✗ " + errorStyle.Render(msg)
	}
	return "✗ " + errorStyle.Render(head) + "\n" + dimStyle.Render("  "+detail)
}
