package components

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/theirongolddev/toolmeter/internal/tui/theme"
)

var sparkBlocks = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// Sparkline renders a unicode sparkline from values.
func Sparkline(values []float64, color lipgloss.Color) string {
	if len(values) == 0 {
		return ""
	}

	peak := values[0]
	for _, v := range values[1:] {
		peak = max(peak, v)
	}
	if peak <= 0 {
		peak = 1
	}

	var buf strings.Builder
	for _, v := range values {
		idx := int(v / peak * float64(len(sparkBlocks)-1))
		buf.WriteRune(sparkBlocks[min(max(idx, 0), len(sparkBlocks)-1)])
	}
	return lipgloss.NewStyle().Foreground(color).Background(theme.Active.Surface).Render(buf.String())
}

// BarChart renders vertical bars with a labeled y-axis. labels, if given,
// must match values and are printed under the first, middle and last bars.
// Narrow or short areas fall back to a sparkline.
func BarChart(values []float64, labels []string, color lipgloss.Color, width, height int) string {
	if len(values) == 0 {
		return ""
	}
	if width < 15 || height < 3 {
		return Sparkline(values, color)
	}
	t := theme.Active

	peak := 0.0
	for _, v := range values {
		peak = max(peak, v)
	}
	step := tickStep(peak, height/2)
	ceiling := math.Max(step, math.Ceil(peak/step)*step)

	yLabelW := max(len(formatChartLabel(ceiling))+1, 4)
	chartW := max(width-yLabelW-1, 5)

	// Too many bars for the width: keep evenly spaced samples.
	if len(values) > (chartW+1)/2 {
		n := max((chartW+1)/2, 2)
		sampledVals := make([]float64, n)
		var sampledLabels []string
		if len(labels) == len(values) {
			sampledLabels = make([]string, n)
		}
		for i := range sampledVals {
			src := i * (len(values) - 1) / (n - 1)
			sampledVals[i] = values[src]
			if sampledLabels != nil {
				sampledLabels[i] = labels[src]
			}
		}
		values, labels = sampledVals, sampledLabels
	}

	n := len(values)
	barW := min(max((chartW-(n-1))/n, 1), 6)
	axisLen := n*barW + (n - 1)

	axis := lipgloss.NewStyle().Foreground(t.TextDim).Background(t.Surface)
	bar := lipgloss.NewStyle().Foreground(color).Background(t.Surface)
	space := lipgloss.NewStyle().Background(t.Surface)
	partial := []rune{' ', '▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

	var b strings.Builder
	for row := height; row >= 1; row-- {
		top := ceiling * float64(row) / float64(height)
		bottom := ceiling * float64(row-1) / float64(height)

		label := ""
		if row == height {
			label = formatChartLabel(ceiling)
		} else if row == (height+1)/2 {
			label = formatChartLabel(ceiling / 2)
		}
		b.WriteString(axis.Render(fmt.Sprintf("%*s│", yLabelW, label)))

		for i, v := range values {
			if i > 0 {
				b.WriteString(space.Render(" "))
			}
			switch {
			case v >= top:
				b.WriteString(bar.Render(strings.Repeat("█", barW)))
			case v > bottom:
				idx := min(max(int((v-bottom)/(top-bottom)*8), 1), 8)
				b.WriteString(bar.Render(strings.Repeat(string(partial[idx]), barW)))
			default:
				b.WriteString(space.Render(strings.Repeat(" ", barW)))
			}
		}
		b.WriteString("\n")
	}
	b.WriteString(axis.Render(fmt.Sprintf("%*s└%s", yLabelW, "0", strings.Repeat("─", axisLen))))

	if len(labels) == n && n > 0 {
		line := []rune(strings.Repeat(" ", axisLen))
		place := func(i int) {
			lbl := []rune(labels[i])
			pos := min(i*(barW+1), max(axisLen-len(lbl), 0))
			for j := 0; j < len(lbl) && pos+j < len(line); j++ {
				line[pos+j] = lbl[j]
			}
		}
		place(0)
		if n > 4 {
			place(n / 2)
		}
		if n > 1 {
			place(n - 1)
		}
		b.WriteString("\n")
		b.WriteString(axis.Render(strings.Repeat(" ", yLabelW+1) + strings.TrimRight(string(line), " ")))
	}
	return b.String()
}

// tickStep picks a 1/2/5 interval so that peak spans at most maxTicks.
func tickStep(peak float64, maxTicks int) float64 {
	if peak <= 0 {
		return 1
	}
	maxTicks = max(maxTicks, 2)
	base := math.Pow(10, math.Floor(math.Log10(peak/float64(maxTicks))))
	for _, m := range []float64{1, 2, 5, 10} {
		if peak/(base*m) <= float64(maxTicks) {
			return base * m
		}
	}
	return base * 10
}

func formatChartLabel(v float64) string {
	switch {
	case v >= 1e6:
		return trimZero(fmt.Sprintf("%.1f", v/1e6)) + "M"
	case v >= 1e3:
		return trimZero(fmt.Sprintf("%.1f", v/1e3)) + "k"
	case v >= 1:
		return fmt.Sprintf("%.0f", v)
	default:
		return fmt.Sprintf("%.2f", v)
	}
}

func trimZero(s string) string {
	return strings.TrimSuffix(s, ".0")
}
