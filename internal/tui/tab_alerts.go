package tui

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/theirongolddev/toolmeter/internal/cli"
	"github.com/theirongolddev/toolmeter/internal/tui/components"
	"github.com/theirongolddev/toolmeter/internal/tui/theme"
)

type alertsState struct {
	scroll int
}

// updateAlertsKey scrolls the alert history.
func (a *App) updateAlertsKey(key string) bool {
	switch key {
	case "j", "down":
		if a.alertsTab.scroll < len(a.history)-1 {
			a.alertsTab.scroll++
		}
	case "k", "up":
		if a.alertsTab.scroll > 0 {
			a.alertsTab.scroll--
		}
	default:
		return false
	}
	return true
}

func (a App) renderAlertsTab(cw int) string {
	return a.renderRules(cw) + "\n" + a.renderHistory(cw)
}

func (a App) renderRules(cw int) string {
	t := theme.Active
	innerW := components.CardInnerWidth(cw)
	header := lipgloss.NewStyle().Foreground(t.Accent).Background(t.Surface).Bold(true)
	row := lipgloss.NewStyle().Foreground(t.TextPrimary).Background(t.Surface)
	muted := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	ok := lipgloss.NewStyle().Foreground(t.OK).Background(t.Surface)
	firing := lipgloss.NewStyle().Foreground(t.Alert).Background(t.Surface).Bold(true)

	if len(a.opts.Rules) == 0 {
		return components.ContentCard("Rules", muted.Render("No alert rules configured. Add [[alerts]] to the config file."), cw)
	}

	const fixed = 4 + 12 + 10 + 10 + 9 + 8
	nameW := max((innerW-fixed)/2, 8)
	metricW := max(innerW-fixed-nameW, 8)

	var b strings.Builder
	b.WriteString(header.Render(fmt.Sprintf("%-*s %-*s %3s %12s %10s %9s %7s",
		nameW, "Rule", metricW, "Metric", "Op", "Threshold", "Current", "Cooldown", "State")))
	b.WriteString("\n")
	b.WriteString(muted.Render(strings.Repeat("─", innerW)))
	b.WriteString("\n")

	for _, r := range a.opts.Rules {
		current, have := a.metrics[r.Metric]
		cur := "-"
		if have {
			cur = cli.FormatValue(roundTo(current, 3))
		}
		b.WriteString(row.Render(fmt.Sprintf("%-*s %-*s %3s %12s %10s %9s ",
			nameW, truncStr(r.Name, nameW),
			metricW, truncStr(r.Metric, metricW),
			r.Operator.Symbol(),
			cli.FormatValue(r.Threshold),
			cur,
			r.Cooldown.String(),
		)))
		switch {
		case !have:
			b.WriteString(muted.Render(fmt.Sprintf("%7s", "n/a")))
		case r.Operator.Compare(current, r.Threshold):
			b.WriteString(firing.Render(fmt.Sprintf("%7s", "FIRING")))
		default:
			b.WriteString(ok.Render(fmt.Sprintf("%7s", "ok")))
		}
		b.WriteString("\n")
	}
	return components.ContentCard(fmt.Sprintf("Rules (%d)", len(a.opts.Rules)), strings.TrimRight(b.String(), "\n"), cw)
}

func (a App) renderHistory(cw int) string {
	t := theme.Active
	muted := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	ts := lipgloss.NewStyle().Foreground(t.TextDim).Background(t.Surface)
	msg := lipgloss.NewStyle().Foreground(t.TextPrimary).Background(t.Surface)
	mark := lipgloss.NewStyle().Foreground(t.Alert).Background(t.Surface)

	if len(a.history) == 0 {
		return components.ContentCard("Recent Alerts", muted.Render("Nothing has fired yet."), cw)
	}

	var b strings.Builder
	for i := a.alertsTab.scroll; i < len(a.history) && i < a.alertsTab.scroll+15; i++ {
		al := a.history[i]
		b.WriteString(mark.Render("▲ "))
		b.WriteString(ts.Render(al.TriggeredAt.Local().Format("01-02 15:04:05") + "  "))
		b.WriteString(msg.Render(al.Message()))
		b.WriteString("\n")
	}
	return components.ContentCard(fmt.Sprintf("Recent Alerts (%d)", len(a.history)), strings.TrimRight(b.String(), "\n"), cw)
}

func roundTo(v float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(v*p) / p
}
