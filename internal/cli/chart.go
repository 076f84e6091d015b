package cli

import (
	"math"
	"strings"
)

// ChartOptions bounds chart output. Zero fields use the defaults.
type ChartOptions struct {
	MaxPoints int
	Width     int
}

const (
	defaultChartPoints = 14
	defaultChartWidth  = 40
)

func (o ChartOptions) resolved() ChartOptions {
	if o.MaxPoints <= 0 {
		o.MaxPoints = defaultChartPoints
	}
	if o.Width <= 0 {
		o.Width = defaultChartWidth
	}
	return o
}

// BarChart renders one "label | ####" line per point using the first MaxPoints
// values. Every point gets at least one bar character unless all values are zero,
// in which case only the labels are printed.
func BarChart(values []float64, labels []string, opts ChartOptions) string {
	if len(values) == 0 || len(labels) == 0 {
		return ""
	}
	opts = opts.resolved()

	n := min(len(values), len(labels), opts.MaxPoints)
	values, labels = values[:n], labels[:n]

	maxValue := values[0]
	for _, v := range values[1:] {
		maxValue = math.Max(maxValue, v)
	}

	lines := make([]string, n)
	if maxValue == 0 {
		for i, l := range labels {
			lines[i] = l + " | "
		}
		return strings.Join(lines, "\n")
	}

	for i, v := range values {
		bar := max(1, int(math.Round(v/maxValue*float64(opts.Width))))
		lines[i] = labels[i] + " | " + strings.Repeat("#", bar)
	}
	return strings.Join(lines, "\n")
}

var sparkBlocks = []string{"▁", "▂", "▃", "▄", "▅", "▆", "▇", "█"}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Sparkline renders the last MaxPoints values as block characters. NaN and
// infinite values are missing points and render as ".".
func Sparkline(values []float64, opts ChartOptions) string {
	if len(values) == 0 {
		return ""
	}
	opts = opts.resolved()
	if len(values) > opts.MaxPoints {
		values = values[len(values)-opts.MaxPoints:]
	}

	if len(values) == 1 {
		if finite(values[0]) {
			return "▄"
		}
		return "."
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	seen := false
	for _, v := range values {
		if !finite(v) {
			continue
		}
		seen = true
		lo, hi = math.Min(lo, v), math.Max(hi, v)
	}
	if !seen {
		return ""
	}

	var b strings.Builder
	for _, v := range values {
		switch {
		case !finite(v):
			b.WriteString(".")
		case lo == hi:
			b.WriteString("▄")
		default:
			idx := min(len(sparkBlocks)-1, int(math.Floor((v-lo)/(hi-lo)*float64(len(sparkBlocks)))))
			b.WriteString(sparkBlocks[idx])
		}
	}
	return b.String()
}
