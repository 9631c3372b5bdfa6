// Package tasklist renders the composed lanes as a stacked list or as
// side-by-side board columns and tracks the cursor across them.
package tasklist

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/taskbuddy/internal/board"
	"github.com/nhle/taskbuddy/internal/model"
	"github.com/nhle/taskbuddy/internal/theme"
)

// Mode is the layout the lanes are drawn in.
type Mode int

const (
	ModeList Mode = iota
	ModeBoard
)

// ParseMode maps a stored view preference onto a Mode.
func ParseMode(s string) Mode {
	if s == model.ViewBoard {
		return ModeBoard
	}
	return ModeList
}

// String returns the preference value for the mode.
func (m Mode) String() string {
	if m == ModeBoard {
		return model.ViewBoard
	}
	return model.ViewList
}

// Marks is the per-card state the parent owns: selection and drag.
type Marks struct {
	Selection *board.Selection
	Grabbed   string
	Dragging  bool
}

// Model holds the lanes on screen and a (lane, card) cursor. Card is -1
// when the focused lane is empty.
type Model struct {
	view   board.View
	mode   Mode
	lane   int
	card   int
	width  int
	height int
}

// New creates an empty list.
func New(mode Mode, width, height int) Model {
	return Model{mode: mode, card: -1, width: width, height: height}
}

// SetView replaces the lanes, keeping the cursor on the focused task when
// it is still visible.
func (m *Model) SetView(v board.View) {
	focused, hadFocus := m.Current()
	m.view = v
	if hadFocus && m.FocusTask(focused.ID) {
		return
	}
	m.clamp()
}

// View returns the lanes currently shown.
func (m Model) View() board.View { return m.view }

// Mode returns the current layout.
func (m Model) Mode() Mode { return m.mode }

// ToggleMode switches between list and board.
func (m *Model) ToggleMode() Mode {
	if m.mode == ModeList {
		m.mode = ModeBoard
	} else {
		m.mode = ModeList
	}
	return m.mode
}

// SetSize updates the drawing area.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

// Current returns the task under the cursor.
func (m Model) Current() (model.Task, bool) {
	if m.lane >= len(m.view.Lanes) {
		return model.Task{}, false
	}
	tasks := m.view.Lanes[m.lane].Tasks
	if m.card < 0 || m.card >= len(tasks) {
		return model.Task{}, false
	}
	return tasks[m.card], true
}

// CurrentLane returns the focused lane, which is also the drop target.
func (m Model) CurrentLane() (board.Lane, bool) {
	if m.lane >= len(m.view.Lanes) {
		return board.Lane{}, false
	}
	return m.view.Lanes[m.lane], true
}

// FocusTask moves the cursor onto the task with id.
func (m *Model) FocusTask(id string) bool {
	for li, lane := range m.view.Lanes {
		for ci, t := range lane.Tasks {
			if t.ID == id {
				m.lane, m.card = li, ci
				return true
			}
		}
	}
	return false
}

// Down moves to the next card. In list mode it continues into the next
// non-empty lane.
func (m *Model) Down() {
	if lane, ok := m.CurrentLane(); ok && m.card+1 < len(lane.Tasks) {
		m.card++
		return
	}
	if m.mode == ModeBoard {
		return
	}
	for li := m.lane + 1; li < len(m.view.Lanes); li++ {
		if len(m.view.Lanes[li].Tasks) > 0 {
			m.lane, m.card = li, 0
			return
		}
	}
}

// Up moves to the previous card. In list mode it continues into the
// previous non-empty lane.
func (m *Model) Up() {
	if m.card > 0 {
		m.card--
		return
	}
	if m.mode == ModeBoard {
		return
	}
	for li := m.lane - 1; li >= 0; li-- {
		if n := len(m.view.Lanes[li].Tasks); n > 0 {
			m.lane, m.card = li, n-1
			return
		}
	}
}

// Right focuses the next lane, empty or not, so it can take a drop.
func (m *Model) Right() {
	if m.lane+1 < len(m.view.Lanes) {
		m.lane++
		m.clampCard()
	}
}

// Left focuses the previous lane.
func (m *Model) Left() {
	if m.lane > 0 {
		m.lane--
		m.clampCard()
	}
}

func (m *Model) clamp() {
	if m.lane >= len(m.view.Lanes) {
		m.lane = max(len(m.view.Lanes)-1, 0)
	}
	m.clampCard()
}

func (m *Model) clampCard() {
	lane, ok := m.CurrentLane()
	switch {
	case !ok || len(lane.Tasks) == 0:
		m.card = -1
	case m.card < 0:
		m.card = 0
	case m.card >= len(lane.Tasks):
		m.card = len(lane.Tasks) - 1
	}
}

// Render draws the lanes in the current mode.
func (m Model) Render(marks Marks) string {
	if m.view.NoResults {
		return lipgloss.NewStyle().
			Width(m.width).
			Height(m.height).
			Align(lipgloss.Center, lipgloss.Center).
			Foreground(theme.ColorGray).
			Render("No tasks match your search.\nPress 0 to clear filters.")
	}
	if m.mode == ModeBoard {
		return m.renderBoard(marks)
	}
	return m.renderList(marks)
}

func (m Model) renderList(marks Marks) string {
	sections := make([]string, 0, len(m.view.Lanes))
	for li, lane := range m.view.Lanes {
		target := marks.Dragging && li == m.lane
		header := theme.LaneHeaderStyle(lane.Status).Render(lane.Title)
		if target {
			header += theme.HelpStyle.Render("  ← drop here")
		}
		rows := []string{header}
		rows = append(rows, m.renderCards(li, lane, m.width-2, marks)...)
		sections = append(sections, lipgloss.JoinVertical(lipgloss.Left, rows...))
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderBoard(marks Marks) string {
	n := max(len(m.view.Lanes), 1)
	// Two border columns per lane.
	colWidth := max(m.width/n-2, 16)

	cols := make([]string, 0, len(m.view.Lanes))
	for li, lane := range m.view.Lanes {
		target := marks.Dragging && li == m.lane
		rows := []string{theme.LaneHeaderStyle(lane.Status).Render(lane.Title), ""}
		rows = append(rows, m.renderCards(li, lane, colWidth-1, marks)...)
		cols = append(cols, theme.LaneBorderStyle(lane.Status, target).
			Width(colWidth).
			Height(max(m.height-2, 3)).
			Render(lipgloss.JoinVertical(lipgloss.Left, rows...)))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cols...)
}

func (m Model) renderCards(li int, lane board.Lane, width int, marks Marks) []string {
	if len(lane.Tasks) == 0 {
		return []string{theme.DimmedStyle.Render("  No tasks")}
	}
	rows := make([]string, 0, len(lane.Tasks))
	for ci, t := range lane.Tasks {
		rows = append(rows, renderCard(t, cardState{
			focused:  li == m.lane && ci == m.card,
			grabbed:  marks.Dragging && t.ID == marks.Grabbed,
			selected: marks.Selection != nil && marks.Selection.Contains(t.ID),
			multi:    marks.Selection != nil && marks.Selection.MultiSelect(),
			compact:  m.mode == ModeBoard,
		}, width))
	}
	return rows
}
