// Package app is the root Bubble Tea model of the terminal dashboard.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/taskbuddy/internal/board"
	"github.com/nhle/taskbuddy/internal/keys"
	"github.com/nhle/taskbuddy/internal/model"
	"github.com/nhle/taskbuddy/internal/reminder"
	"github.com/nhle/taskbuddy/internal/service"
	"github.com/nhle/taskbuddy/internal/theme"
	"github.com/nhle/taskbuddy/internal/ui"
	"github.com/nhle/taskbuddy/internal/ui/detail"
	helpview "github.com/nhle/taskbuddy/internal/ui/help"
	"github.com/nhle/taskbuddy/internal/ui/taskform"
	"github.com/nhle/taskbuddy/internal/ui/tasklist"
)

// Tasks is the slice of the task service the dashboard drives.
type Tasks interface {
	View(ctx context.Context, userID string, f board.FilterValues, sc board.SortConfig) (board.View, error)
	Get(ctx context.Context, userID, id string) (*model.Task, error)
	Create(ctx context.Context, userID string, d model.TaskDraft, files []model.FileUpload) (model.Task, error)
	Update(ctx context.Context, userID, id string, u model.TaskUpdate, files []model.FileUpload) (model.Task, error)
	As(userID string) service.Actor
}

// ViewState is the screen currently shown.
type ViewState int

const (
	ViewLanes ViewState = iota
	ViewDetail
	ViewForm
	ViewHelp
	ViewConfirm
)

// categoryCycle is the order c steps through; "" means all categories.
var categoryCycle = []model.Category{"", model.CategoryWork, model.CategoryPersonal}

// Model is the root Bubble Tea model.
type Model struct {
	state     ViewState
	prevState ViewState
	layout    ui.Layout
	ready     bool
	keys      *keys.KeyMap
	logger    *slog.Logger

	tasks  Tasks
	userID string
	actor  service.Actor
	sched  *reminder.Scheduler

	lanes    tasklist.Model
	detail   detail.Model
	form     taskform.Model
	helpView helpview.Model

	search    textinput.Model
	searching bool
	query     string

	filter  board.FilterValues
	sortCfg board.SortConfig
	drag    *board.DragTracker
	sel     *board.Selection

	confirm *confirmDialog

	focusAfterLoad string

	toast    ui.Toast
	toastSeq int
}

// Options configures a dashboard.
type Options struct {
	UserID      string
	DefaultView string
	Theme       string
	// Scheduler, when set, is started with the program and its results
	// are shown as toasts.
	Scheduler *reminder.Scheduler
	Logger    *slog.Logger
}

// New creates the dashboard for one signed-in user.
func New(tasks Tasks, opts Options) Model {
	theme.Apply(opts.Theme)
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	k := keys.DefaultKeyMap()
	actor := tasks.As(opts.UserID)

	si := textinput.New()
	si.Placeholder = "search title or description..."
	si.Prompt = "/ "

	return Model{
		state:    ViewLanes,
		keys:     k,
		logger:   logger,
		tasks:    tasks,
		userID:   opts.UserID,
		actor:    actor,
		sched:    opts.Scheduler,
		lanes:    tasklist.New(tasklist.ParseMode(opts.DefaultView), 80, 24),
		detail:   detail.New(k, 80, 24),
		form:     taskform.New(80, 24),
		helpView: helpview.New(k, 80, 24),
		search:   si,
		drag:     board.NewDragTracker(actor),
		sel:      board.NewSelection(),
	}
}

// Init loads the lanes and starts the reminder scheduler.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.load()}
	if m.sched != nil {
		cmds = append(cmds, m.sched.Start())
	}
	return tea.Batch(cmds...)
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		h := m.layout.ContentHeight()
		m.lanes.SetSize(msg.Width, h)
		m.detail.SetSize(msg.Width, h)
		m.form.SetSize(msg.Width, h)
		m.helpView.SetSize(msg.Width, h)
		m.search.Width = max(msg.Width-4, 10)
		// huh forms size themselves from this message
		return m.updateActiveView(msg)

	case viewLoadedMsg:
		if msg.err != nil {
			cmd := m.showError("loading tasks", msg.err)
			return m, cmd
		}
		m.lanes.SetView(msg.view)
		if m.focusAfterLoad != "" {
			m.lanes.FocusTask(m.focusAfterLoad)
			m.focusAfterLoad = ""
		}
		return m, nil

	case mutationDoneMsg:
		var cmds []tea.Cmd
		if msg.err != nil {
			cmds = append(cmds, m.showError(msg.what, msg.err))
		} else if msg.text != "" {
			cmds = append(cmds, m.showInfo(msg.text))
		}
		m.focusAfterLoad = msg.focus
		cmds = append(cmds, m.load())
		if m.state == ViewDetail && msg.focus != "" {
			cmds = append(cmds, m.loadDetail(msg.focus))
		}
		return m, tea.Batch(cmds...)

	case detailLoadedMsg:
		if msg.err != nil {
			m.state = ViewLanes
			cmd := m.showError("opening task", msg.err)
			return m, cmd
		}
		m.detail.SetTask(msg.task)
		return m, nil

	case clearToastMsg:
		if msg.seq == m.toastSeq {
			m.toast = ui.Toast{}
		}
		return m, nil

	case reminder.ResultMsg:
		var cmds []tea.Cmd
		switch {
		case msg.Error != nil:
			cmds = append(cmds, m.showError("sending reminders", msg.Error))
		case msg.Sent > 0:
			cmds = append(cmds, m.showInfo(fmt.Sprintf("Sent %d due-date reminder(s)", msg.Sent)))
		}
		cmds = append(cmds, m.sched.WaitForNextResult())
		return m, tea.Batch(cmds...)

	case taskform.CreatedMsg:
		m.state = ViewLanes
		return m, m.create(msg.Draft, msg.Files)

	case taskform.UpdatedMsg:
		m.state = m.prevState
		return m, m.update(msg.ID, msg.Update, msg.Files)

	case taskform.CancelMsg:
		m.state = m.prevState
		return m, nil

	case detail.BackMsg:
		m.state = ViewLanes
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) && msg.String() == "ctrl+c" {
			return m, m.quit()
		}
		switch m.state {
		case ViewLanes:
			return m.handleLaneKeys(msg)
		case ViewDetail:
			return m.handleDetailKeys(msg)
		case ViewHelp:
			if key.Matches(msg, m.keys.Help) || key.Matches(msg, m.keys.Back) {
				m.state = m.prevState
				return m, nil
			}
		}
	}

	return m.updateActiveView(msg)
}

func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.state {
	case ViewDetail:
		m.detail, cmd = m.detail.Update(msg)
	case ViewForm:
		m.form, cmd = m.form.Update(msg)
	case ViewConfirm:
		return m.updateConfirm(msg)
	}
	return m, cmd
}

func (m Model) handleLaneKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.searching {
		return m.handleSearchKeys(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, m.quit()

	case key.Matches(msg, m.keys.Back):
		if m.drag.State() == board.Dragging {
			m.drag.Cancel()
			cmd := m.showInfo("Move cancelled")
			return m, cmd
		}
		return m, nil

	case key.Matches(msg, m.keys.Down):
		m.lanes.Down()
	case key.Matches(msg, m.keys.Up):
		m.lanes.Up()
	case key.Matches(msg, m.keys.Right):
		m.lanes.Right()
	case key.Matches(msg, m.keys.Left):
		m.lanes.Left()

	case key.Matches(msg, m.keys.Help):
		m.prevState = m.state
		m.state = ViewHelp

	case key.Matches(msg, m.keys.ToggleView):
		m.lanes.ToggleMode()

	case key.Matches(msg, m.keys.Search):
		m.searching = true
		m.search.SetValue(m.query)
		cmd := m.search.Focus()
		return m, cmd

	case key.Matches(msg, m.keys.CycleCategory):
		m.filter.Category = nextCategory(m.filter.Category)
		return m, m.load()

	case key.Matches(msg, m.keys.CycleSort):
		m.sortCfg = m.sortCfg.Toggle(nextSortKey(m.sortCfg.Key))
		return m, m.load()

	case key.Matches(msg, m.keys.FlipDirection):
		if m.sortCfg.Key == board.SortNone {
			m.sortCfg = m.sortCfg.Toggle(board.SortKeys[0])
		} else {
			m.sortCfg = m.sortCfg.Toggle(m.sortCfg.Key)
		}
		return m, m.load()

	case key.Matches(msg, m.keys.ClearFilters):
		m.filter = board.FilterValues{}
		m.query = ""
		m.search.Reset()
		return m, m.load()

	case key.Matches(msg, m.keys.Refresh):
		if m.sched != nil {
			m.sched.TriggerNow()
		}
		return m, m.load()

	case key.Matches(msg, m.keys.Grab):
		return m.grabOrDrop()

	case key.Matches(msg, m.keys.MultiSelect):
		if m.sel.ToggleMultiSelect() {
			cmd := m.showInfo("Multi-select on: x selects, A selects lane")
			return m, cmd
		}

	case key.Matches(msg, m.keys.ToggleSelect):
		if t, ok := m.lanes.Current(); ok {
			m.sel.Toggle(t.ID)
		}

	case key.Matches(msg, m.keys.SelectAll):
		if lane, ok := m.lanes.CurrentLane(); ok {
			m.sel.SelectAll(lane.Tasks)
		}

	case key.Matches(msg, m.keys.BatchDelete):
		if n := m.sel.Len(); n > 0 {
			return m.askConfirm(fmt.Sprintf("Delete %d selected task(s)?", n), Model.batchDelete)
		}

	case key.Matches(msg, m.keys.BatchComplete):
		if m.sel.Len() > 0 {
			return m, m.batchComplete()
		}

	case key.Matches(msg, m.keys.New):
		status := model.StatusTodo
		if lane, ok := m.lanes.CurrentLane(); ok {
			status = lane.Status
		}
		m.prevState = m.state
		m.state = ViewForm
		cmd := m.form.StartCreate(status)
		return m, cmd

	case key.Matches(msg, m.keys.Edit):
		if t, ok := m.lanes.Current(); ok {
			return m.startEdit(t)
		}

	case key.Matches(msg, m.keys.Delete):
		if t, ok := m.lanes.Current(); ok {
			return m.askDelete(t)
		}

	case key.Matches(msg, m.keys.Select):
		if t, ok := m.lanes.Current(); ok {
			m.state = ViewDetail
			m.detail.SetTask(t)
			return m, m.loadDetail(t.ID)
		}
	}
	return m, nil
}

func (m Model) handleDetailKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	t, ok := m.detail.Task()
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, m.quit()
	case ok && key.Matches(msg, m.keys.Edit):
		return m.startEdit(t)
	case ok && key.Matches(msg, m.keys.Delete):
		return m.askDelete(t)
	}
	return m.updateActiveView(msg)
}

func (m Model) handleSearchKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.searching = false
		m.search.Blur()
		m.query = strings.TrimSpace(m.search.Value())
		m.filter = parseQuery(m.query, m.filter)
		return m, m.load()
	case "esc":
		m.searching = false
		m.search.Blur()
		m.search.SetValue(m.query)
		return m, nil
	}

	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	return m, cmd
}

// grabOrDrop picks up the focused card, or drops the carried card on
// the focused lane.
func (m Model) grabOrDrop() (tea.Model, tea.Cmd) {
	if m.drag.State() == board.Dragging {
		lane, ok := m.lanes.CurrentLane()
		if !ok {
			m.drag.Cancel()
			return m, nil
		}
		return m, m.drop(lane.Status)
	}

	t, ok := m.lanes.Current()
	if !ok {
		return m, nil
	}
	m.drag.Start(t.ID, t.Status)
	cmd := m.showInfo(fmt.Sprintf("Moving %q: pick a lane with h/l, space to drop, esc to cancel", t.Title))
	return m, cmd
}

func (m Model) startEdit(t model.Task) (tea.Model, tea.Cmd) {
	m.prevState = m.state
	m.state = ViewForm
	cmd := m.form.StartEdit(t)
	return m, cmd
}

func (m Model) askDelete(t model.Task) (tea.Model, tea.Cmd) {
	id := t.ID
	return m.askConfirm(fmt.Sprintf("Delete %q?", t.Title), func(m Model) tea.Cmd {
		return m.deleteOne(id)
	})
}

func (m Model) quit() tea.Cmd {
	if m.sched != nil {
		m.sched.Stop()
	}
	return tea.Quit
}

// View renders the full terminal UI.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	header := m.layout.RenderHeader("TaskBuddy", m.summary())
	status := m.layout.RenderStatusBar(m.hints(), m.toast)
	return m.layout.RenderWithFrame(header, m.renderContent(), status)
}

func (m Model) renderContent() string {
	switch m.state {
	case ViewDetail:
		return m.detail.View()
	case ViewForm:
		return m.form.View()
	case ViewHelp:
		return m.helpView.View()
	case ViewConfirm:
		return m.confirm.View()
	}

	grabbed, _, dragging := m.drag.Dragged()
	content := m.lanes.Render(tasklist.Marks{
		Selection: m.sel,
		Grabbed:   grabbed,
		Dragging:  dragging,
	})
	if m.searching {
		bar := lipgloss.NewStyle().Padding(0, 1).Render(m.search.View())
		return lipgloss.JoinVertical(lipgloss.Left, bar, content)
	}
	return content
}

// summary describes the active filter, sort and reminder state.
func (m Model) summary() string {
	var parts []string
	if m.filter.Category != "" {
		parts = append(parts, strings.ToLower(string(m.filter.Category)))
	}
	if m.query != "" {
		parts = append(parts, fmt.Sprintf("%q", m.query))
	}
	if m.sortCfg.Key != board.SortNone {
		parts = append(parts, fmt.Sprintf("sort %s %s", m.sortCfg.Key, m.sortCfg.Direction))
	}
	if n := m.sel.Len(); n > 0 {
		parts = append(parts, fmt.Sprintf("%d selected", n))
	}
	if m.sched != nil {
		switch st := m.sched.Status(); st.State {
		case reminder.Running:
			parts = append(parts, "reminders: checking")
		case reminder.Failed:
			parts = append(parts, "reminders: failing")
		}
	}
	parts = append(parts, m.lanes.Mode().String())
	return strings.Join(parts, " · ")
}

func (m Model) hints() string {
	switch m.state {
	case ViewHelp:
		return "? close help | esc back"
	case ViewDetail:
		return "esc back | e edit | d delete | j/k scroll"
	case ViewForm:
		return "enter next/submit | esc cancel"
	case ViewConfirm:
		return "←/→ choose | enter confirm | esc cancel"
	}
	if m.searching {
		return "enter apply | esc cancel"
	}
	if m.drag.State() == board.Dragging {
		return "h/l pick lane | space drop | esc cancel"
	}
	return m.helpView.ShortView()
}

func nextCategory(c model.Category) model.Category {
	for i, cc := range categoryCycle {
		if cc == c {
			return categoryCycle[(i+1)%len(categoryCycle)]
		}
	}
	return categoryCycle[0]
}

// nextSortKey cycles through board.SortKeys and back to natural order.
func nextSortKey(k board.SortKey) board.SortKey {
	if k == board.SortNone {
		return board.SortKeys[0]
	}
	for i, kk := range board.SortKeys {
		if kk == k && i+1 < len(board.SortKeys) {
			return board.SortKeys[i+1]
		}
	}
	return board.SortNone
}
