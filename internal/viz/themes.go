package viz

import "github.com/charmbracelet/lipgloss"

// Theme defines color scheme for the TUI
type Theme struct {
	Name      string
	Primary   lipgloss.Color
	Secondary lipgloss.Color
	Accent    lipgloss.Color
	Text      lipgloss.Color
	Muted     lipgloss.Color
	Success   lipgloss.Color
	Warning   lipgloss.Color
	Error     lipgloss.Color
}

var (
	ThemeControlRoom = Theme{
		Name:      "control-room",
		Primary:   lipgloss.Color("#00ffff"),
		Secondary: lipgloss.Color("#ff00ff"),
		Accent:    lipgloss.Color("#ffff00"),
		Text:      lipgloss.Color("#ffffff"),
		Muted:     lipgloss.Color("#666688"),
		Success:   lipgloss.Color("#00ff88"),
		Warning:   lipgloss.Color("#ffaa00"),
		Error:     lipgloss.Color("#ff4444"),
	}

	// ThemeAmber mimics the amber trace of an analog beam-position scope.
	ThemeAmber = Theme{
		Name:      "amber",
		Primary:   lipgloss.Color("#ffb000"),
		Secondary: lipgloss.Color("#d98c00"),
		Accent:    lipgloss.Color("#ffe0a0"),
		Text:      lipgloss.Color("#ffc94d"),
		Muted:     lipgloss.Color("#6b4a00"),
		Success:   lipgloss.Color("#c8e64c"),
		Warning:   lipgloss.Color("#ff7a1a"),
		Error:     lipgloss.Color("#ff3b30"),
	}

	ThemeMinimal = Theme{
		Name:      "minimal",
		Primary:   lipgloss.Color("#e8e8e8"),
		Secondary: lipgloss.Color("#b0b0b0"),
		Accent:    lipgloss.Color("#5fafd7"),
		Text:      lipgloss.Color("#dadada"),
		Muted:     lipgloss.Color("#767676"),
		Success:   lipgloss.Color("#87af87"),
		Warning:   lipgloss.Color("#d7af5f"),
		Error:     lipgloss.Color("#d75f5f"),
	}

	CurrentTheme = ThemeControlRoom

	Themes = []Theme{
		ThemeControlRoom,
		ThemeAmber,
		ThemeMinimal,
	}
)

// GetTheme returns a theme by name, falling back to the default.
func GetTheme(name string) Theme {
	for _, t := range Themes {
		if t.Name == name {
			return t
		}
	}
	return ThemeControlRoom
}

// SetTheme changes the current theme
func SetTheme(name string) {
	CurrentTheme = GetTheme(name)
}

// NextTheme returns the theme after t in Themes.
func NextTheme(t Theme) Theme {
	for i, th := range Themes {
		if th.Name == t.Name {
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
