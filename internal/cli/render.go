package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/theirongolddev/toolmeter/internal/model"
)

// Theme colors (Flexoki Dark)
var (
	ColorBorder    = lipgloss.Color("#282726")
	ColorTextDim   = lipgloss.Color("#575653")
	ColorTextMuted = lipgloss.Color("#6F6E69")
	ColorText      = lipgloss.Color("#FFFCF0")
	ColorAccent    = lipgloss.Color("#3AA99F")
	ColorGreen     = lipgloss.Color("#879A39")
	ColorOrange    = lipgloss.Color("#DA702C")
	ColorRed       = lipgloss.Color("#D14D41")
	ColorBlue      = lipgloss.Color("#4385BE")
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(ColorText).Align(lipgloss.Center)
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorAccent)
	valueStyle  = lipgloss.NewStyle().Foreground(ColorText)
	mutedStyle  = lipgloss.NewStyle().Foreground(ColorTextMuted)
	dimStyle    = lipgloss.NewStyle().Foreground(ColorTextDim)
	barStyle    = lipgloss.NewStyle().Foreground(ColorBlue)
	alertStyle  = lipgloss.NewStyle().Bold(true).Foreground(ColorRed)
	okStyle     = lipgloss.NewStyle().Foreground(ColorGreen)
)

// SeparatorRow can be placed in Table.Rows to draw a rule.
var SeparatorRow = []string{"---"}

// Table represents a bordered text table for CLI output. The first column
// is left-aligned and the rest are right-aligned.
type Table struct {
	Title   string
	Headers []string
	Rows    [][]string
	Widths  []int // optional column widths, auto-calculated if nil
}

// RenderTitle renders a centered title bar in a bordered box.
func RenderTitle(title string) string {
	border := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorBorder).
		Width(55).
		Align(lipgloss.Center).
		Padding(0, 1)

	return border.Render(titleStyle.Render(title))
}

// RenderTable renders a bordered table with headers and rows.
func RenderTable(t Table) string {
	numCols := len(t.Headers)
	if numCols == 0 {
		for _, row := range t.Rows {
			numCols = max(numCols, len(row))
		}
	}
	if numCols == 0 {
		return ""
	}

	widths := t.Widths
	if widths == nil {
		widths = columnWidths(t.Headers, t.Rows, numCols)
	}

	var b strings.Builder
	if t.Title != "" {
		b.WriteString("  " + headerStyle.Render(t.Title) + "\n")
	}

	b.WriteString(rule("╭", "┬", "╮", widths))
	if len(t.Headers) > 0 {
		b.WriteString(row(t.Headers, widths, headerStyle, false))
		b.WriteString(rule("├", "┼", "┤", widths))
	}
	for _, r := range t.Rows {
		if len(r) == 1 && r[0] == SeparatorRow[0] {
			b.WriteString(rule("├", "┼", "┤", widths))
			continue
		}
		b.WriteString(row(r, widths, valueStyle, true))
	}
	b.WriteString(rule("╰", "┴", "╯", widths))
	return b.String()
}

func columnWidths(headers []string, rows [][]string, numCols int) []int {
	widths := make([]int, numCols)
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, r := range rows {
		if len(r) == 1 && r[0] == SeparatorRow[0] {
			continue
		}
		for i := 0; i < len(r) && i < numCols; i++ {
			widths[i] = max(widths[i], lipgloss.Width(r[i]))
		}
	}
	return widths
}

func rule(left, mid, right string, widths []int) string {
	parts := make([]string, len(widths))
	for i, w := range widths {
		parts[i] = strings.Repeat("─", w+2)
	}
	return dimStyle.Render(left+strings.Join(parts, mid)+right) + "\n"
}

func row(cells []string, widths []int, style lipgloss.Style, alignNumbers bool) string {
	sep := dimStyle.Render("│")
	var b strings.Builder
	b.WriteString(sep)
	for i, w := range widths {
		cell := ""
		if i < len(cells) {
			cell = cells[i]
		}
		pad := strings.Repeat(" ", max(0, w-lipgloss.Width(cell)))
		if alignNumbers && i > 0 {
			cell = pad + cell
		} else {
			cell += pad
		}
		b.WriteString(style.Render(" " + cell + " "))
		b.WriteString(sep)
	}
	b.WriteString("\n")
	return b.String()
}

// RenderSparkline generates a unicode block sparkline from a series of values.
func RenderSparkline(values []float64) string {
	if len(values) == 0 {
		return ""
	}

	blocks := []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

	peak := values[0]
	for _, v := range values[1:] {
		peak = max(peak, v)
	}
	if peak <= 0 {
		peak = 1
	}

	var b strings.Builder
	for _, v := range values {
		idx := int(v / peak * float64(len(blocks)-1))
		idx = min(max(idx, 0), len(blocks)-1)
		b.WriteRune(blocks[idx])
	}
	return b.String()
}

// RenderHorizontalBar renders one labeled bar scaled against maxValue.
func RenderHorizontalBar(label string, labelWidth int, value, maxValue float64, maxWidth int, suffix string) string {
	barLen := 0
	if maxValue > 0 {
		barLen = int(value / maxValue * float64(maxWidth))
	}
	barLen = min(max(barLen, 0), maxWidth)
	return fmt.Sprintf("  %-*s %s%s %s",
		labelWidth, label,
		barStyle.Render(strings.Repeat("█", barLen)),
		strings.Repeat(" ", maxWidth-barLen),
		mutedStyle.Render(suffix),
	)
}

// RenderAlert renders a fired alert as a single line.
func RenderAlert(a model.Alert) string {
	ts := a.TriggeredAt.Local().Format("2006-01-02 15:04:05")
	return fmt.Sprintf("  %s %s  %s", alertStyle.Render("▲"), mutedStyle.Render(ts), valueStyle.Render(a.Message()))
}

// RenderOK renders a green status line.
func RenderOK(msg string) string {
	return "  " + okStyle.Render("✓") + " " + msg
}

// RenderMuted renders secondary text.
func RenderMuted(msg string) string {
	return mutedStyle.Render(msg)
}
