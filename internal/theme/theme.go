// Package theme holds the dashboard's colors and shared styles.
package theme

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/taskbuddy/internal/board"
	"github.com/nhle/taskbuddy/internal/model"
)

// Adaptive color pairs (dark terminal value, light terminal value).
var (
	ColorBlue    = lipgloss.AdaptiveColor{Dark: "#5B9BD5", Light: "#2B6CB0"}
	ColorGreen   = lipgloss.AdaptiveColor{Dark: "#6BCB77", Light: "#2F855A"}
	ColorYellow  = lipgloss.AdaptiveColor{Dark: "#FFD93D", Light: "#B7791F"}
	ColorRed     = lipgloss.AdaptiveColor{Dark: "#FF6B6B", Light: "#C53030"}
	ColorMagenta = lipgloss.AdaptiveColor{Dark: "#CC5DE8", Light: "#805AD5"}
	ColorGray    = lipgloss.AdaptiveColor{Dark: "#868E96", Light: "#718096"}
	ColorWhite   = lipgloss.AdaptiveColor{Dark: "#F8F9FA", Light: "#1A202C"}
	ColorSubtle  = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#CBD5E0"}
	ColorBorder  = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#E2E8F0"}
)

// Apply forces the light or dark palette from the user's theme preference.
func Apply(name string) {
	lipgloss.SetHasDarkBackground(name == model.ThemeDark)
}

// HeaderStyle is used for the title bar.
var HeaderStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorWhite).
	Background(ColorBlue).
	Padding(0, 1)

// StatusBarStyle is used for the bottom status bar.
var StatusBarStyle = lipgloss.NewStyle().
	Foreground(ColorWhite).
	Background(ColorSubtle).
	Padding(0, 1)

// ErrorToastStyle replaces the status bar while an error toast is shown.
var ErrorToastStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("#FFFFFF")).
	Background(ColorRed).
	Padding(0, 1)

// InfoToastStyle is the status bar style for confirmations.
var InfoToastStyle = StatusBarStyle.
	Foreground(ColorGreen)

// DetailPanelStyle wraps the detail, form and help panels.
var DetailPanelStyle = lipgloss.NewStyle().
	Padding(1, 2).
	Border(lipgloss.RoundedBorder()).
	BorderForeground(ColorBorder)

// CardStyle is a task card in an unfocused position.
var CardStyle = lipgloss.NewStyle().
	PaddingLeft(2)

// FocusedCardStyle highlights the card under the cursor.
var FocusedCardStyle = lipgloss.NewStyle().
	PaddingLeft(1).
	Bold(true).
	Foreground(ColorBlue).
	Border(lipgloss.NormalBorder(), false, false, false, true).
	BorderForeground(ColorBlue)

// GrabbedCardStyle marks the card being dragged.
var GrabbedCardStyle = FocusedCardStyle.
	Foreground(ColorMagenta).
	BorderForeground(ColorMagenta)

// HelpStyle is used for keyboard hints.
var HelpStyle = lipgloss.NewStyle().
	Foreground(ColorGray).
	Italic(true)

// DimmedStyle renders secondary card text.
var DimmedStyle = lipgloss.NewStyle().
	Foreground(ColorGray)

// OverdueStyle renders a past due date.
var OverdueStyle = lipgloss.NewStyle().
	Foreground(ColorRed).
	Bold(true)

// LaneHeaderStyle renders a lane title on its lane color.
func LaneHeaderStyle(status model.Status) lipgloss.Style {
	return lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#1A202C")).
		Background(lipgloss.Color(board.LaneColor(status))).
		Padding(0, 1)
}

// LaneBorderStyle frames a lane column; the drop target gets a thick border.
func LaneBorderStyle(status model.Status, target bool) lipgloss.Style {
	s := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(board.LaneColor(status)))
	if target {
		s = s.Border(lipgloss.ThickBorder())
	}
	return s
}

// CategoryStyle returns a color-coded badge for a task category.
func CategoryStyle(c model.Category) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true)

	switch c {
	case model.CategoryWork:
		return base.Foreground(ColorBlue)
	case model.CategoryPersonal:
		return base.Foreground(ColorGreen)
	default:
		return base.Foreground(ColorGray)
	}
}

// StatusStyle returns a color-coded label for a task status.
func StatusStyle(s model.Status) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true).Padding(0, 1)

	switch s {
	case model.StatusTodo:
		return base.Foreground(ColorMagenta)
	case model.StatusInProgress:
		return base.Foreground(ColorYellow)
	case model.StatusCompleted:
		return base.Foreground(ColorGreen)
	default:
		return base.Foreground(ColorGray)
	}
}
