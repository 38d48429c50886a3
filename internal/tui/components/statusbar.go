package components

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/theirongolddev/toolmeter/internal/tui/theme"
)

// RenderStatusBar renders the bottom status bar. info is shown on the
// right (data age, source), firing is the number of rules currently over
// threshold.
func RenderStatusBar(width int, info string, firing int, refreshing, autoRefresh bool) string {
	t := theme.Active
	base := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)

	left := base.Render(" [?]help  [r]efresh  [q]uit")
	if autoRefresh {
		left += base.Render("  auto")
	}
	if refreshing {
		left += lipgloss.NewStyle().Foreground(t.Accent).Background(t.Surface).Render("  refreshing…")
	}
	if firing > 0 {
		left += lipgloss.NewStyle().Foreground(t.Alert).Background(t.Surface).Bold(true).
			Render("  ▲ " + pluralRules(firing) + " firing")
	}

	right := base.Render(info + " ")
	pad := max(0, width-lipgloss.Width(left)-lipgloss.Width(right))
	return left + base.Render(strings.Repeat(" ", pad)) + right
}

func pluralRules(n int) string {
	if n == 1 {
		return "1 rule"
	}
	return strconv.Itoa(n) + " rules"
}
