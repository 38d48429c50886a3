package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/theirongolddev/toolmeter/internal/cli"
	"github.com/theirongolddev/toolmeter/internal/model"
	"github.com/theirongolddev/toolmeter/internal/pipeline"
	"github.com/theirongolddev/toolmeter/internal/tui/components"
	"github.com/theirongolddev/toolmeter/internal/tui/theme"
)

type toolsState struct {
	cursor  int
	offset  int
	rankIdx int // index into pipeline.RankKeys
}

func (s *toolsState) rankKey() string {
	return pipeline.RankKeys[s.rankIdx%len(pipeline.RankKeys)]
}

func (s *toolsState) move(delta, n int) {
	s.cursor += delta
	s.clamp(n)
}

func (s *toolsState) clamp(n int) {
	s.cursor = min(max(s.cursor, 0), max(n-1, 0))
	s.offset = min(s.offset, s.cursor)
}

// updateToolsKey handles Tools tab keys and reports whether key was consumed.
func (a *App) updateToolsKey(key string) bool {
	n := len(a.mon.AllStats())
	switch key {
	case "j", "down":
		a.tools.move(1, n)
	case "k", "up":
		a.tools.move(-1, n)
	case "g":
		a.tools.cursor, a.tools.offset = 0, 0
	case "G":
		a.tools.move(n, n)
	case "s":
		a.tools.rankIdx = (a.tools.rankIdx + 1) % len(pipeline.RankKeys)
		a.tools.cursor, a.tools.offset = 0, 0
	default:
		return false
	}
	return true
}

// rankedTools returns every key ordered by the selected rank key.
func (a App) rankedTools() []model.ToolStats {
	ranked, err := a.mon.TopTools(len(a.mon.AllStats()), a.tools.rankKey())
	if err != nil {
		return nil
	}
	return ranked
}

func (a App) renderToolsTab(cw, h int) string {
	ranked := a.rankedTools()
	if len(ranked) == 0 {
		return components.ContentCard("Tools", "No tool calls in this window.", cw)
	}

	if a.isCompactLayout() {
		list := a.renderToolList(ranked, cw, max(h-10, 3))
		return list + "\n" + a.renderToolDetail(ranked[a.tools.cursor], cw)
	}

	widths := components.LayoutRow(cw, 5)
	listW := widths[0] + widths[1] + widths[2]
	detailW := widths[3] + widths[4]
	return components.CardRow([]string{
		a.renderToolList(ranked, listW, max(h-4, 3)),
		a.renderToolDetail(ranked[a.tools.cursor], detailW),
	})
}

func (a App) renderToolList(ranked []model.ToolStats, cw, rows int) string {
	t := theme.Active
	innerW := components.CardInnerWidth(cw)

	header := lipgloss.NewStyle().Foreground(t.Accent).Background(t.Surface).Bold(true)
	row := lipgloss.NewStyle().Foreground(t.TextPrimary).Background(t.Surface)
	selected := lipgloss.NewStyle().Foreground(t.AccentBright).Background(t.SurfaceHover).Bold(true)
	muted := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)

	const fixed = 8 + 8 + 9 + 9 + 9 + 5
	nameW := max(innerW-fixed, 10)

	// Keep the cursor visible.
	offset := a.tools.offset
	if a.tools.cursor >= offset+rows {
		offset = a.tools.cursor - rows + 1
	}
	if a.tools.cursor < offset {
		offset = a.tools.cursor
	}

	var b strings.Builder
	b.WriteString(header.Render(fmt.Sprintf("%-*s %8s %8s %9s %9s %9s", nameW, "Tool", "Calls", "Success", "Avg", "p95", "Cost")))
	b.WriteString("\n")
	b.WriteString(muted.Render(strings.Repeat("─", innerW)))
	b.WriteString("\n")

	end := min(offset+rows, len(ranked))
	for i := offset; i < end; i++ {
		s := ranked[i]
		line := fmt.Sprintf("%-*s %8s %8s %9s %9s %9s",
			nameW, truncStr(s.Key, nameW),
			cli.FormatCount(s.Count),
			cli.FormatPercent(s.SuccessRate()),
			cli.FormatDuration(s.AvgDuration()),
			cli.FormatMillis(a.perf[s.Key].P95),
			cli.FormatCost(s.TotalCost),
		)
		if i == a.tools.cursor {
			b.WriteString(selected.Render(line))
		} else {
			b.WriteString(row.Render(line))
		}
		b.WriteString("\n")
	}
	if len(ranked) > rows {
		b.WriteString(muted.Render(fmt.Sprintf("%d-%d of %d", offset+1, end, len(ranked))))
	}

	title := fmt.Sprintf("Tools by %s  [s] to change", a.tools.rankKey())
	return components.ContentCard(title, strings.TrimRight(b.String(), "\n"), cw)
}

func (a App) renderToolDetail(s model.ToolStats, cw int) string {
	t := theme.Active
	innerW := components.CardInnerWidth(cw)
	label := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	value := lipgloss.NewStyle().Foreground(t.TextPrimary).Background(t.Surface)
	latency := lipgloss.NewStyle().Foreground(t.Latency).Background(t.Surface)

	p := a.perf[s.Key]
	kv := func(k, v string, style lipgloss.Style) string {
		return label.Render(fmt.Sprintf("%-12s", k)) + style.Render(v) + "\n"
	}

	var b strings.Builder
	b.WriteString(components.RateBar("success", s.SuccessRate(), 12, max(innerW-21, 8)))
	b.WriteString("\n\n")
	b.WriteString(kv("calls", cli.FormatNumber(s.Count), value))
	b.WriteString(kv("failures", cli.FormatNumber(s.ErrorCount()), value))
	b.WriteString(kv("total time", cli.FormatDuration(s.TotalDuration), value))
	b.WriteString(kv("cost", cli.FormatCost(s.TotalCost), value))
	b.WriteString("\n")
	b.WriteString(kv("min", cli.FormatMillis(p.Min), latency))
	b.WriteString(kv("mean", cli.FormatMillis(p.Mean)+" ± "+cli.FormatMillis(p.Std), latency))
	b.WriteString(kv("p50", cli.FormatMillis(p.P50), latency))
	b.WriteString(kv("p95", cli.FormatMillis(p.P95), latency))
	b.WriteString(kv("p99", cli.FormatMillis(p.P99), latency))
	b.WriteString(kv("max", cli.FormatMillis(p.Max), latency))

	return components.ContentCard(truncStr(s.Key, innerW), strings.TrimRight(b.String(), "\n"), cw)
}
