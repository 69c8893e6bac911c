package chart

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/NimbleMarkets/ntcharts/barchart"
	"github.com/NimbleMarkets/ntcharts/sparkline"
	"github.com/charmbracelet/lipgloss"
)

var palette = []lipgloss.Color{"39", "208", "42", "170", "220", "203", "81", "141"}

var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

// RenderTerminal draws fig within roughly width x height cells.
func RenderTerminal(fig *Figure, width, height int) string {
	if fig == nil {
		return dimStyle.Render("no chart produced")
	}
	width = max(width, 20)
	height = max(height, 6)

	var b strings.Builder
	if fig.Title != "" {
		b.WriteString(titleStyle.Render(fig.Title))
		b.WriteByte('\n')
	}
	if fig.Points() == 0 {
		b.WriteString(dimStyle.Render("(empty chart)"))
		return b.String()
	}

	switch fig.Kind {
	case Bar, Histogram:
		b.WriteString(renderBars(fig, width, height))
	case Pie:
		b.WriteString(renderPie(fig, width))
	default:
		b.WriteString(renderSparklines(fig, width, height))
	}
	if fig.XLabel != "" || fig.YLabel != "" {
		b.WriteByte('\n')
		b.WriteString(dimStyle.Render(fmt.Sprintf("x: %s  y: %s", fig.XLabel, fig.YLabel)))
	}
	return b.String()
}

// renderBars stacks series per label in first-seen label order.
func renderBars(fig *Figure, width, height int) string {
	var labels []string
	values := map[string][]barchart.BarValue{}
	for si, s := range fig.Series {
		style := lipgloss.NewStyle().Foreground(palette[si%len(palette)])
		for i, label := range s.Labels {
			if _, ok := values[label]; !ok {
				labels = append(labels, label)
			}
			values[label] = append(values[label], barchart.BarValue{
				Name:  s.Name,
				Value: math.Max(s.Values[i], 0),
				Style: style,
			})
		}
	}

	data := make([]barchart.BarData, 0, len(labels))
	for _, label := range labels {
		data = append(data, barchart.BarData{Label: truncate(label, 8), Values: values[label]})
	}
	bc := barchart.New(width, height)
	bc.PushAll(data)
	bc.Draw()

	out := bc.View()
	if len(fig.Series) > 1 {
		out += "\n" + legend(fig)
	}
	return out
}

func renderSparklines(fig *Figure, width, height int) string {
	rows := max(height/max(len(fig.Series), 1)-1, 2)
	var parts []string
	for si, s := range fig.Series {
		sl := sparkline.New(width, rows,
			sparkline.WithStyle(lipgloss.NewStyle().Foreground(palette[si%len(palette)])))
		sl.PushAll(s.Values)
		sl.Draw()

		lo, hi := bounds(s.Values)
		name := s.Name
		if name == "" {
			name = fig.YLabel
		}
		parts = append(parts, fmt.Sprintf("%s  %s..%s", name, formatNumber(lo), formatNumber(hi)), sl.View())
	}
	return strings.Join(parts, "\n")
}

func renderPie(fig *Figure, width int) string {
	s := fig.Series[0]
	total := 0.0
	labelW := 0
	for i, v := range s.Values {
		total += math.Max(v, 0)
		labelW = max(labelW, len(truncate(s.Labels[i], 20)))
	}
	barW := max(width-labelW-10, 5)

	var lines []string
	for i, v := range s.Values {
		pct := 0.0
		if total > 0 {
			pct = math.Max(v, 0) / total * 100
		}
		filled := int(math.Round(pct / 100 * float64(barW)))
		bar := lipgloss.NewStyle().Foreground(palette[i%len(palette)]).Render(strings.Repeat("█", filled))
		label := truncate(s.Labels[i], 20)
		lines = append(lines, fmt.Sprintf("%-*s %s %5.1f%%", labelW, label, bar, pct))
	}
	return strings.Join(lines, "\n")
}

func legend(fig *Figure) string {
	parts := make([]string, 0, len(fig.Series))
	for i, s := range fig.Series {
		swatch := lipgloss.NewStyle().Foreground(palette[i%len(palette)]).Render("■")
		parts = append(parts, swatch+" "+s.Name)
	}
	return strings.Join(parts, "  ")
}

func bounds(vs []float64) (float64, float64) {
	if len(vs) == 0 {
		return 0, 0
	}
	lo, hi := vs[0], vs[0]
	for _, v := range vs[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi
}

func formatNumber(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
