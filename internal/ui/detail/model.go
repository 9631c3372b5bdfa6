// Package detail shows a single task with its markdown description and
// activity history.
package detail

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/nhle/taskbuddy/internal/keys"
	"github.com/nhle/taskbuddy/internal/model"
	"github.com/nhle/taskbuddy/internal/theme"
)

// BackMsg signals the parent to navigate back to the lanes.
type BackMsg struct{}

const minMarkdownWidth = 20

// Model is the task detail view component.
type Model struct {
	task     *model.Task
	viewport viewport.Model
	keys     *keys.KeyMap
	now      func() time.Time
	width    int
	height   int
}

// New creates a detail view model.
func New(k *keys.KeyMap, width, height int) Model {
	return Model{
		viewport: viewport.New(width, max(height-2, 1)),
		keys:     k,
		now:      time.Now,
		width:    width,
		height:   height,
	}
}

// Task returns the task on display.
func (m Model) Task() (model.Task, bool) {
	if m.task == nil {
		return model.Task{}, false
	}
	return *m.task, true
}

// SetTask shows t and scrolls to the top.
func (m *Model) SetTask(t model.Task) {
	m.task = &t
	m.viewport.SetContent(m.renderContent())
	m.viewport.GotoTop()
}

// Update handles messages for the detail view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok && key.Matches(msg, m.keys.Back) {
		return m, func() tea.Msg { return BackMsg{} }
	}

	// j/k, pgup/pgdn scroll
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// View renders the detail view.
func (m Model) View() string {
	if m.task == nil {
		return lipgloss.NewStyle().
			Width(m.width).
			Height(m.height).
			Align(lipgloss.Center, lipgloss.Center).
			Foreground(theme.ColorGray).
			Render("No task selected")
	}
	return m.viewport.View()
}

// SetSize updates the dimensions and re-wraps the content.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = max(height-2, 1)
	if m.task != nil {
		m.viewport.SetContent(m.renderContent())
	}
}

func (m Model) renderContent() string {
	t := m.task
	metaStyle := lipgloss.NewStyle().Foreground(theme.ColorGray)
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite)
	separator := lipgloss.NewStyle().
		Foreground(theme.ColorSubtle).
		Render(strings.Repeat("─", min(max(m.width-4, 1), 80)))

	sections := []string{
		headerStyle.Render(t.Title),
		lipgloss.JoinHorizontal(lipgloss.Top,
			theme.StatusStyle(t.Status).Render(string(t.Status)), "  ",
			theme.CategoryStyle(t.Category).Render(string(t.Category))),
		"",
	}

	meta := func(label, value string) {
		sections = append(sections, fmt.Sprintf("%-10s %s", metaStyle.Render(label+":"), value))
	}
	if d, ok := model.ParseDate(t.DueDate); ok {
		meta("Due", fmt.Sprintf("%s (%s)", d.Format("Mon Jan 2, 2006"), relative(d, m.now())))
	}
	if len(t.Tags) > 0 {
		meta("Tags", "#"+strings.Join(t.Tags, " #"))
	}
	if !t.CreatedAt.IsZero() {
		meta("Created", relative(t.CreatedAt, m.now()))
	}
	if !t.UpdatedAt.IsZero() {
		meta("Updated", relative(t.UpdatedAt, m.now()))
	}

	sections = append(sections, "", separator, "", headerStyle.Render("Description"))
	sections = append(sections, m.renderDescription(t.Description))

	if len(t.Attachments) > 0 {
		sections = append(sections, "", headerStyle.Render(fmt.Sprintf("Attachments (%d)", len(t.Attachments))))
		for _, a := range t.Attachments {
			sections = append(sections, fmt.Sprintf("  %s  %s", a.Name, metaStyle.Render(a.URL)))
		}
	}

	if len(t.ActivityLog) > 0 {
		sections = append(sections, "", separator, "", headerStyle.Render("Activity"))
		// newest first
		for i := len(t.ActivityLog) - 1; i >= 0; i-- {
			item := t.ActivityLog[i]
			sections = append(sections, fmt.Sprintf("  %s  %s",
				item.Action, metaStyle.Render(relative(item.Timestamp, m.now()))))
		}
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderDescription(text string) string {
	if strings.TrimSpace(text) == "" {
		return lipgloss.NewStyle().
			Foreground(theme.ColorGray).
			Italic(true).
			Render("No description")
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(max(m.width-4, minMarkdownWidth)),
	)
	if err != nil {
		return text
	}
	out, err := renderer.Render(text)
	if err != nil {
		return text
	}
	return strings.TrimRight(out, "\n")
}

// relative formats ts against now, e.g. "3 hours ago" or "2 days from now".
func relative(ts, now time.Time) string {
	return humanize.RelTime(ts, now, "ago", "from now")
}
