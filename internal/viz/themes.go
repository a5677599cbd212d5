package viz

import "github.com/charmbracelet/lipgloss"

// Theme colours the field view and the stats panel.
type Theme struct {
	Name      string
	Path      lipgloss.Color
	Trail     lipgloss.Color
	Estimate  lipgloss.Color
	Lookahead lipgloss.Color
	Robot     lipgloss.Color
	Text      lipgloss.Color
	Muted     lipgloss.Color
	Good      lipgloss.Color
	Warn      lipgloss.Color
	Bad       lipgloss.Color
}

var (
	ThemeField = Theme{
		Name:      "field",
		Path:      lipgloss.Color("#666688"),
		Trail:     lipgloss.Color("#00ffff"),
		Estimate:  lipgloss.Color("#ff00ff"),
		Lookahead: lipgloss.Color("#ffff00"),
		Robot:     lipgloss.Color("#ffffff"),
		Text:      lipgloss.Color("#ffffff"),
		Muted:     lipgloss.Color("#888899"),
		Good:      lipgloss.Color("#00ff88"),
		Warn:      lipgloss.Color("#ffaa00"),
		Bad:       lipgloss.Color("#ff4444"),
	}

	ThemeRetro = Theme{
		Name:      "retro",
		Path:      lipgloss.Color("#005500"),
		Trail:     lipgloss.Color("#00ff00"),
		Estimate:  lipgloss.Color("#00cc00"),
		Lookahead: lipgloss.Color("#ffff00"),
		Robot:     lipgloss.Color("#88ff88"),
		Text:      lipgloss.Color("#00ff00"),
		Muted:     lipgloss.Color("#005500"),
		Good:      lipgloss.Color("#88ff88"),
		Warn:      lipgloss.Color("#ffff00"),
		Bad:       lipgloss.Color("#ff0000"),
	}

	ThemeMinimal = Theme{
		Name:      "minimal",
		Path:      lipgloss.Color("#888888"),
		Trail:     lipgloss.Color("#ffffff"),
		Estimate:  lipgloss.Color("#cccccc"),
		Lookahead: lipgloss.Color("#0088ff"),
		Robot:     lipgloss.Color("#0088ff"),
		Text:      lipgloss.Color("#ffffff"),
		Muted:     lipgloss.Color("#888888"),
		Good:      lipgloss.Color("#00ff00"),
		Warn:      lipgloss.Color("#ffaa00"),
		Bad:       lipgloss.Color("#ff0000"),
	}

	ThemeOcean = Theme{
		Name:      "ocean",
		Path:      lipgloss.Color("#4488aa"),
		Trail:     lipgloss.Color("#00a8cc"),
		Estimate:  lipgloss.Color("#e0f0ff"),
		Lookahead: lipgloss.Color("#ffd700"),
		Robot:     lipgloss.Color("#ffd700"),
		Text:      lipgloss.Color("#e0f0ff"),
		Muted:     lipgloss.Color("#4488aa"),
		Good:      lipgloss.Color("#00ff88"),
		Warn:      lipgloss.Color("#ffcc00"),
		Bad:       lipgloss.Color("#ff4444"),
	}

	Themes = []Theme{ThemeField, ThemeRetro, ThemeMinimal, ThemeOcean}
)

// GetTheme returns a theme by name, falling back to the field theme.
func GetTheme(name string) Theme {
	for _, t := range Themes {
		if t.Name == name {
			return t
		}
	}
	return ThemeField
}

// NextTheme cycles to the theme after name.
func NextTheme(name string) Theme {
	for i, t := range Themes {
		if t.Name == name {
			return Themes[(i+1)%len(Themes)]
		}
	}
	return Themes[0]
}

func ThemeNames() []string {
	names := make([]string, len(Themes))
	for i, t := range Themes {
		names[i] = t.Name
	}
	return names
}

// layerStyles maps canvas layers to the theme's colours.
func (t Theme) layerStyles() map[Layer]lipgloss.Style {
	return map[Layer]lipgloss.Style{
		LayerPath:      lipgloss.NewStyle().Foreground(t.Path),
		LayerEstimate:  lipgloss.NewStyle().Foreground(t.Estimate),
		LayerTrail:     lipgloss.NewStyle().Foreground(t.Trail),
		LayerLookahead: lipgloss.NewStyle().Foreground(t.Lookahead),
		LayerRobot:     lipgloss.NewStyle().Foreground(t.Robot).Bold(true),
	}
}
