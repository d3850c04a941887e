package cli

import (
	"github.com/charmbracelet/lipgloss"
)

// Theme defines the color scheme for the chat prompt.
type Theme struct {
	User      lipgloss.Color
	Assistant lipgloss.Color
	Dim       lipgloss.Color
}

// DefaultTheme is the default bright green theme.
var DefaultTheme = Theme{
	User:      lipgloss.Color("#58a6ff"),
	Assistant: lipgloss.Color("#00ff9f"),
	Dim:       lipgloss.Color("#6e7681"),
}

// Styles holds all styles derived from a theme.
type Styles struct {
	User      lipgloss.Style
	Assistant lipgloss.Style
	Help      lipgloss.Style
	Banner    lipgloss.Style
}

// NewStyles creates styles from a theme.
func NewStyles(t Theme) Styles {
	return Styles{
		User:      lipgloss.NewStyle().Bold(true).Foreground(t.User),
		Assistant: lipgloss.NewStyle().Bold(true).Foreground(t.Assistant),
		Help:      lipgloss.NewStyle().Foreground(t.Dim),
		Banner: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(t.Assistant).
			Padding(0, 1),
	}
}

// Labels renders the user and assistant prompt labels. Trailing spaces are
// kept outside the styled span so the cursor is not colored.
func (s Styles) Labels(user, assistant string) (string, string) {
	return styleLabel(s.User, user), styleLabel(s.Assistant, assistant)
}

func styleLabel(st lipgloss.Style, label string) string {
	body := label
	tail := ""
	for len(body) > 0 && body[len(body)-1] == ' ' {
		body = body[:len(body)-1]
		tail += " "
	}
	if body == "" {
		return label
	}
	return st.Render(body) + tail
}

// RenderBanner renders a bordered title with a dim help line below it.
func (s Styles) RenderBanner(title, help string) string {
	out := s.Banner.Render(title)
	if help != "" {
		out += "\n" + s.Help.Render(help)
	}
	return out
}
