package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/theirongolddev/toolmeter/internal/cli"
	"github.com/theirongolddev/toolmeter/internal/tui/components"
	"github.com/theirongolddev/toolmeter/internal/tui/theme"
)

func (a App) renderOverviewTab(cw int) string {
	t := theme.Active
	stats, prev := a.stats, a.prevStats
	var b strings.Builder

	if stats.TotalCalls == 0 {
		msg := "No tool calls in the last " + fmt.Sprint(a.days) + " days."
		if a.loadErr != nil {
			msg = "Could not load events: " + a.loadErr.Error()
		}
		return components.ContentCard("Overview", msg, cw)
	}

	callsNote := fmt.Sprintf("%.1f/day", stats.CallsPerDay)
	if prev.CallsPerDay > 0 {
		callsNote += fmt.Sprintf(" (%+.0f%%)", (stats.CallsPerDay-prev.CallsPerDay)/prev.CallsPerDay*100)
	}
	costNote := cli.FormatCost(stats.CostPerDay) + "/day"
	if prev.CostPerDay > 0 {
		costNote += " (" + cli.FormatDelta(stats.CostPerDay, prev.CostPerDay) + ")"
	}

	cards := []components.Metric{
		{Label: "Calls", Value: cli.FormatCount(stats.TotalCalls), Note: callsNote},
		{
			Label: "Success",
			Value: cli.FormatPercent(stats.SuccessRate),
			Note:  cli.FormatNumber(stats.TotalFailures) + " failed",
			Color: t.ForSuccessRate(stats.SuccessRate),
		},
		{Label: "p95 latency", Value: cli.FormatMillis(a.metrics["p95"]), Note: "p50 " + cli.FormatMillis(a.metrics["p50"]), Color: t.Latency},
		{Label: "Cost", Value: cli.FormatCost(stats.TotalCost), Note: costNote, Color: t.Cost},
	}
	b.WriteString(components.MetricCardRow(cards, cw))
	b.WriteString("\n")

	if len(a.daily) > 0 {
		vals := make([]float64, len(a.daily))
		for i, d := range a.daily {
			vals[len(a.daily)-1-i] = float64(d.Calls)
		}
		chartH := 10
		if a.isCompactLayout() {
			chartH = 6
		}
		b.WriteString(components.ContentCard(
			fmt.Sprintf("Daily Calls (%dd)", a.days),
			components.BarChart(vals, chartDateLabels(a.daily), t.Accent, components.CardInnerWidth(cw), chartH),
			cw,
		))
		b.WriteString("\n")
	}

	halves := components.LayoutRow(cw, 2)
	serversCard := components.ContentCard("Servers", a.renderServerSplit(components.CardInnerWidth(halves[0])), halves[0])
	hourlyCard := components.ContentCard("Calls by Hour", a.renderHourly(components.CardInnerWidth(halves[1])), halves[1])
	if a.isCompactLayout() {
		b.WriteString(components.ContentCard("Servers", a.renderServerSplit(components.CardInnerWidth(cw)), cw))
		b.WriteString("\n")
		b.WriteString(components.ContentCard("Calls by Hour", a.renderHourly(components.CardInnerWidth(cw)), cw))
	} else {
		b.WriteString(components.CardRow([]string{serversCard, hourlyCard}))
	}
	return b.String()
}

func (a App) renderServerSplit(innerW int) string {
	t := theme.Active
	nameStyle := lipgloss.NewStyle().Foreground(t.TextPrimary).Background(t.Surface)
	barStyle := lipgloss.NewStyle().Foreground(t.Accent).Background(t.Surface)
	dim := lipgloss.NewStyle().Foreground(t.TextDim).Background(t.Surface)

	if len(a.servers) == 0 {
		return dim.Render("no servers")
	}

	nameW := min(18, innerW/3)
	suffixW := 16
	barW := max(innerW-nameW-suffixW-2, 4)

	maxShare := 0.0
	for _, s := range a.servers {
		maxShare = max(maxShare, s.SharePercent)
	}

	var b strings.Builder
	for i, s := range a.servers {
		if i == 6 {
			b.WriteString(dim.Render(fmt.Sprintf("+%d more", len(a.servers)-i)))
			break
		}
		filled := 0
		if maxShare > 0 {
			filled = int(s.SharePercent / maxShare * float64(barW))
		}
		b.WriteString(nameStyle.Render(fmt.Sprintf("%-*s ", nameW, truncStr(s.Server, nameW))))
		b.WriteString(barStyle.Render(strings.Repeat("█", filled)))
		b.WriteString(dim.Render(strings.Repeat(" ", barW-filled)))
		b.WriteString(dim.Render(fmt.Sprintf(" %5.1f%% %8s", s.SharePercent, cli.FormatCount(int64(s.Calls)))))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (a App) renderHourly(innerW int) string {
	t := theme.Active
	if len(a.hourly) == 0 {
		return ""
	}
	vals := make([]float64, len(a.hourly))
	labels := make([]string, len(a.hourly))
	for i, h := range a.hourly {
		vals[i] = float64(h.Calls)
		labels[i] = fmt.Sprintf("%02d", h.Hour)
	}
	return components.BarChart(vals, labels, t.Latency, innerW, 6)
}
