package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/theirongolddev/toolmeter/internal/tui/theme"
)

// Tab is one entry in the tab bar.
type Tab struct {
	Name string
	Key  string
}

// Tabs defines the dashboard tabs in display order.
var Tabs = []Tab{
	{Name: "Overview", Key: "o"},
	{Name: "Tools", Key: "t"},
	{Name: "Alerts", Key: "a"},
}

// TabIdxByKey returns the tab for a shortcut key, or -1.
func TabIdxByKey(key string) int {
	for i, tab := range Tabs {
		if tab.Key == key {
			return i
		}
	}
	return -1
}

func renderTab(tab Tab, active bool) string {
	t := theme.Active
	if active {
		return lipgloss.NewStyle().
			Foreground(t.AccentBright).
			Background(t.SurfaceHover).
			Bold(true).
			Padding(0, 1).
			Render(tab.Name)
	}
	muted := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	key := lipgloss.NewStyle().Foreground(t.Accent).Background(t.Surface).Bold(true)
	return muted.Render(" "+tab.Name) + key.Render("["+tab.Key+"]") + muted.Render(" ")
}

// TabVisualWidth is the rendered width of a tab, used for mouse hit tests.
func TabVisualWidth(idx int, active bool) int {
	return lipgloss.Width(renderTab(Tabs[idx], active))
}

// RenderTabBar renders the tab bar with the given active index.
func RenderTabBar(activeIdx, width int) string {
	t := theme.Active
	sep := lipgloss.NewStyle().Foreground(t.Border).Background(t.Surface).Render("│")

	parts := make([]string, len(Tabs))
	for i, tab := range Tabs {
		parts[i] = renderTab(tab, i == activeIdx)
	}

	logo := lipgloss.NewStyle().Foreground(t.AccentBright).Background(t.Surface).Bold(true).Render(" ◈ toolmeter  ")
	row := logo + strings.Join(parts, sep)
	return lipgloss.NewStyle().Background(t.Surface).Width(width).Render(row)
}

// TabBarOffset is the width of the logo before the first tab.
func TabBarOffset() int {
	return lipgloss.Width(" ◈ toolmeter  ")
}
