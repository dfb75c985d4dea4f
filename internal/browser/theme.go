package browser

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/timvw/taxomap/internal/model"
)

// Theme defines all colors used by the result browser and the run trace.
// Use DarkTheme() or LightTheme() to get a pre-built theme,
// or construct a custom Theme.
type Theme struct {
	Primary        lipgloss.Color // warm accent: title, labels
	Secondary      lipgloss.Color // cool accent: selected row
	Mapped         lipgloss.Color // MAPPED status
	Unmapped       lipgloss.Color // UNMAPPED status
	Text           lipgloss.Color // primary text
	TextMuted      lipgloss.Color // hints, reasoning
	BackgroundElem lipgloss.Color // highlighted row background
	Border         lipgloss.Color // separators, borders
}

// DarkTheme returns the default dark theme.
func DarkTheme() Theme {
	return Theme{
		Primary:        lipgloss.Color("#fab283"),
		Secondary:      lipgloss.Color("#5c9cf5"),
		Mapped:         lipgloss.Color("#7fd88f"),
		Unmapped:       lipgloss.Color("#f5a742"),
		Text:           lipgloss.Color("#eeeeee"),
		TextMuted:      lipgloss.Color("#808080"),
		BackgroundElem: lipgloss.Color("#1e1e1e"),
		Border:         lipgloss.Color("#484848"),
	}
}

// LightTheme returns a light theme for bright terminal backgrounds.
func LightTheme() Theme {
	return Theme{
		Primary:        lipgloss.Color("#b35c00"),
		Secondary:      lipgloss.Color("#0550ae"),
		Mapped:         lipgloss.Color("#116329"),
		Unmapped:       lipgloss.Color("#bf8700"),
		Text:           lipgloss.Color("#1f2328"),
		TextMuted:      lipgloss.Color("#656d76"),
		BackgroundElem: lipgloss.Color("#f6f8fa"),
		Border:         lipgloss.Color("#d0d7de"),
	}
}

// ThemeByName returns a theme by name. Defaults to dark.
func ThemeByName(name string) Theme {
	switch name {
	case "light":
		return LightTheme()
	default:
		return DarkTheme()
	}
}

// Styles holds the lipgloss styles derived from a Theme.
type Styles struct {
	Title    lipgloss.Style
	Label    lipgloss.Style
	Text     lipgloss.Style
	Dim      lipgloss.Style
	Mapped   lipgloss.Style
	Unmapped lipgloss.Style
	Rule     lipgloss.Style
	Panel    lipgloss.Style

	// Hints
	HintKey  lipgloss.Style
	HintDesc lipgloss.Style
}

// NewStyles builds all styles from a theme.
func NewStyles(t Theme) Styles {
	return Styles{
		Title:    lipgloss.NewStyle().Bold(true).Foreground(t.Primary),
		Label:    lipgloss.NewStyle().Bold(true).Foreground(t.Secondary),
		Text:     lipgloss.NewStyle().Foreground(t.Text),
		Dim:      lipgloss.NewStyle().Foreground(t.TextMuted),
		Mapped:   lipgloss.NewStyle().Bold(true).Foreground(t.Mapped),
		Unmapped: lipgloss.NewStyle().Bold(true).Foreground(t.Unmapped),
		Rule:     lipgloss.NewStyle().Foreground(t.Border),
		Panel: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(t.Border).
			Padding(0, 1),

		HintKey:  lipgloss.NewStyle().Foreground(t.Text),
		HintDesc: lipgloss.NewStyle().Foreground(t.TextMuted),
	}
}

// Status renders a status word in its color.
func (s Styles) Status(status model.Status) string {
	if status == model.StatusMapped {
		return s.Mapped.Render(string(status))
	}
	return s.Unmapped.Render(string(status))
}
