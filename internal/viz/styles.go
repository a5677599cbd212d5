package viz

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// styles is the stats panel look for one theme.
type styles struct {
	canvas lipgloss.Style
	panel  lipgloss.Style
	header lipgloss.Style
	label  lipgloss.Style
	value  lipgloss.Style
	graph  lipgloss.Style
	hint   lipgloss.Style

	running  lipgloss.Style
	paused   lipgloss.Style
	finished lipgloss.Style
	failed   lipgloss.Style

	sparkHigh lipgloss.Style
	sparkMid  lipgloss.Style
	sparkLow  lipgloss.Style
}

func newStyles(t Theme) styles {
	return styles{
		canvas: lipgloss.NewStyle().Padding(1, 2),
		panel: lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, false, false, true).
			BorderForeground(t.Muted).
			Padding(1, 2).
			Width(44),
		header: lipgloss.NewStyle().
			Bold(true).
			Foreground(t.Text).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(t.Muted),
		label: lipgloss.NewStyle().Foreground(t.Muted).Width(12),
		value: lipgloss.NewStyle().Foreground(t.Text).Bold(true),
		graph: lipgloss.NewStyle().Foreground(t.Trail).Padding(1, 0),
		hint:  lipgloss.NewStyle().Foreground(t.Muted).Italic(true).MarginTop(1),

		running:  lipgloss.NewStyle().Bold(true).Foreground(t.Good),
		paused:   lipgloss.NewStyle().Bold(true).Foreground(t.Warn),
		finished: lipgloss.NewStyle().Bold(true).Foreground(t.Trail),
		failed:   lipgloss.NewStyle().Bold(true).Foreground(t.Bad),

		sparkHigh: lipgloss.NewStyle().Foreground(t.Good),
		sparkMid:  lipgloss.NewStyle().Foreground(t.Warn),
		sparkLow:  lipgloss.NewStyle().Foreground(t.Bad),
	}
}

func spinner(frame int) string {
	frames := []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}
	return frames[frame%len(frames)]
}

// progressBar renders fraction in [0, 1] as a filled bar.
func (s styles) progressBar(fraction float64, width int) string {
	filled := int(fraction * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	if fraction > 0.8 {
		return s.sparkHigh.Render(bar)
	} else if fraction > 0.4 {
		return s.sparkMid.Render(bar)
	}
	return s.sparkLow.Render(bar)
}

// sparkline renders the most recent width values, scaled to their own range.
func (s styles) sparkline(values []float64, width int) string {
	if len(values) == 0 {
		return strings.Repeat("─", width)
	}
	if len(values) > width {
		values = values[len(values)-width:]
	}
	chars := []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

	lo, hi := values[0], values[0]
	for _, v := range values {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	rng := hi - lo
	if rng == 0 {
		rng = 1
	}

	var b strings.Builder
	for _, v := range values {
		norm := (v - lo) / rng
		c := string(chars[int(norm*float64(len(chars)-1))])
		switch {
		case norm > 0.7:
			b.WriteString(s.sparkHigh.Render(c))
		case norm > 0.3:
			b.WriteString(s.sparkMid.Render(c))
		default:
			b.WriteString(s.sparkLow.Render(c))
		}
	}
	return b.String()
}
