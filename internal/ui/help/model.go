// Package help renders the keyboard shortcut overlay.
package help

import (
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/taskbuddy/internal/keys"
	"github.com/nhle/taskbuddy/internal/theme"
)

// Model is the help overlay view.
type Model struct {
	keys   *keys.KeyMap
	help   help.Model
	width  int
	height int
}

// New creates a help overlay for k.
func New(k *keys.KeyMap, width, height int) Model {
	h := help.New()
	h.ShowAll = true
	return Model{keys: k, help: h, width: width, height: height}
}

// ShortView renders the one-line hints for the status bar.
func (m Model) ShortView() string {
	h := m.help
	h.ShowAll = false
	h.Width = m.width
	return h.View(m.keys)
}

// View renders the full overlay.
func (m Model) View() string {
	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1).
		Render("Keyboard Shortcuts")

	m.help.Width = max(m.width-4, 0)
	content := lipgloss.JoinVertical(lipgloss.Left, title, m.help.View(m.keys))

	return theme.DetailPanelStyle.
		Width(max(m.width-4, 0)).
		Height(max(m.height-4, 0)).
		Render(content)
}

// SetSize updates the overlay dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}
