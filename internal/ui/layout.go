// Package ui holds the layout shared by the dashboard's views.
package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/taskbuddy/internal/theme"
)

// Layout tracks the terminal size and the rows reserved for chrome.
type Layout struct {
	Width           int
	Height          int
	HeaderHeight    int
	StatusBarHeight int
}

// NewLayout creates a Layout with one-row header and status bar.
func NewLayout(width, height int) Layout {
	return Layout{
		Width:           width,
		Height:          height,
		HeaderHeight:    1,
		StatusBarHeight: 1,
	}
}

// ContentHeight is what is left for the active view.
func (l Layout) ContentHeight() int {
	return max(l.Height-l.HeaderHeight-l.StatusBarHeight, 0)
}

// RenderHeader renders the title on the left and a summary on the right,
// filling the row with the header background.
func (l Layout) RenderHeader(title, summary string) string {
	return l.bar(theme.HeaderStyle, title, summary)
}

// RenderStatusBar renders the bottom row. A toast, when set, replaces
// the key hints.
func (l Layout) RenderStatusBar(hints string, toast Toast) string {
	switch {
	case toast.Text == "":
		return l.bar(theme.StatusBarStyle, hints, "")
	case toast.Error:
		return l.bar(theme.ErrorToastStyle, toast.Text, "")
	default:
		return l.bar(theme.InfoToastStyle, toast.Text, "")
	}
}

// RenderWithFrame stacks header, content and status bar.
func (l Layout) RenderWithFrame(header, content, statusBar string) string {
	content = lipgloss.NewStyle().
		Height(l.ContentHeight()).
		MaxHeight(l.ContentHeight()).
		Render(content)
	return lipgloss.JoinVertical(lipgloss.Left, header, content, statusBar)
}

func (l Layout) bar(style lipgloss.Style, left, right string) string {
	leftRendered := style.Render(left)
	rightRendered := ""
	if right != "" {
		rightRendered = style.Render(right)
	}

	gap := max(l.Width-lipgloss.Width(leftRendered)-lipgloss.Width(rightRendered), 0)
	filler := lipgloss.NewStyle().
		Width(gap).
		Background(style.GetBackground()).
		Render("")

	return lipgloss.JoinHorizontal(lipgloss.Top, leftRendered, filler, rightRendered)
}

// Toast is a transient status-bar message.
type Toast struct {
	Text  string
	Error bool
}
