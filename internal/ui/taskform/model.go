// Package taskform is the huh form used to create and edit tasks.
package taskform

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/taskbuddy/internal/model"
	"github.com/nhle/taskbuddy/internal/tags"
	"github.com/nhle/taskbuddy/internal/theme"
)

// CreatedMsg is dispatched when the create form is submitted.
type CreatedMsg struct {
	Draft model.TaskDraft
	Files []string
}

// UpdatedMsg is dispatched when the edit form is submitted.
type UpdatedMsg struct {
	ID     string
	Update model.TaskUpdate
	Files  []string
}

// CancelMsg is dispatched when the user aborts the form.
type CancelMsg struct{}

// formBindings holds field values on the heap so that huh's Value()
// pointers remain valid across Bubble Tea model copies.
type formBindings struct {
	title       string
	description string
	status      model.Status
	category    model.Category
	dueDate     string
	tags        string
	files       string
}

// Model is the Bubble Tea model for the task create/edit form.
type Model struct {
	form    *huh.Form
	fb      *formBindings
	editing *model.Task
	width   int
	height  int
}

// New creates a task form model.
func New(width, height int) Model {
	return Model{fb: &formBindings{}, width: width, height: height}
}

// StartCreate resets the form for a new task in the given lane.
func (m *Model) StartCreate(status model.Status) tea.Cmd {
	m.editing = nil
	*m.fb = formBindings{status: status, category: model.CategoryWork}
	m.form = m.build()
	return m.form.Init()
}

// StartEdit fills the form from an existing task.
func (m *Model) StartEdit(t model.Task) tea.Cmd {
	m.editing = &t
	*m.fb = formBindings{
		title:       t.Title,
		description: t.Description,
		status:      t.Status,
		category:    t.Category,
		tags:        tags.Join(t.Tags),
	}
	if d, ok := model.ParseDate(t.DueDate); ok {
		m.fb.dueDate = d.Format(model.DateLayout)
	}
	m.form = m.build()
	return m.form.Init()
}

// Update handles messages for the form.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		m.form = nil
		return m, m.submit()
	case huh.StateAborted:
		m.form = nil
		return m, func() tea.Msg { return CancelMsg{} }
	}
	return m, cmd
}

// View renders the form.
func (m Model) View() string {
	if m.form == nil {
		return ""
	}

	titleText := "New Task"
	if m.editing != nil {
		titleText = "Edit Task"
	}
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	return lipgloss.NewStyle().
		Padding(1, 2).
		Render(titleStyle.Render(titleText) + "\n" + m.form.View())
}

// SetSize updates the form dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m *Model) build() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Title").
				Placeholder("What needs to be done?").
				Value(&m.fb.title).
				Validate(validateRequired("Title")),
			huh.NewText().
				Title("Description").
				Placeholder("Optional details, markdown welcome...").
				CharLimit(model.MaxDescriptionLen).
				Value(&m.fb.description).
				Validate(validateDescription),
			huh.NewSelect[model.Status]().
				Title("Status").
				Options(
					huh.NewOption("Todo", model.StatusTodo),
					huh.NewOption("In-Progress", model.StatusInProgress),
					huh.NewOption("Completed", model.StatusCompleted),
				).
				Value(&m.fb.status),
			huh.NewSelect[model.Category]().
				Title("Category").
				Options(
					huh.NewOption("Work", model.CategoryWork),
					huh.NewOption("Personal", model.CategoryPersonal),
				).
				Value(&m.fb.category),
			huh.NewInput().
				Title("Due Date").
				Placeholder("YYYY-MM-DD (optional)").
				Value(&m.fb.dueDate).
				Validate(validateOptionalDate),
			huh.NewInput().
				Title("Tags").
				Placeholder("comma separated, e.g. urgent, client").
				Value(&m.fb.tags),
			huh.NewInput().
				Title("Attach files").
				Placeholder("comma separated paths (optional)").
				Value(&m.fb.files).
				Validate(validateFiles),
		),
	).WithWidth(m.formWidth()).WithHeight(m.formHeight())
}

func (m Model) submit() tea.Cmd {
	fb := *m.fb
	files := splitPaths(fb.files)

	if m.editing == nil {
		draft := model.TaskDraft{
			Title:       fb.title,
			Description: fb.description,
			Status:      fb.status,
			Category:    fb.category,
			DueDate:     strings.TrimSpace(fb.dueDate),
			Tags:        tags.Split(fb.tags),
		}
		return func() tea.Msg { return CreatedMsg{Draft: draft, Files: files} }
	}

	return func() tea.Msg {
		return UpdatedMsg{ID: m.editing.ID, Update: diffUpdate(*m.editing, fb), Files: files}
	}
}

// diffUpdate carries only the fields the user changed, pinned to the
// version the form was opened on.
func diffUpdate(prev model.Task, fb formBindings) model.TaskUpdate {
	u := model.TaskUpdate{ExpectedVersion: prev.Version}
	if fb.title != prev.Title {
		u.Title = &fb.title
	}
	if fb.description != prev.Description {
		u.Description = &fb.description
	}
	if fb.status != prev.Status {
		u.Status = &fb.status
	}
	if fb.category != prev.Category {
		u.Category = &fb.category
	}

	due := strings.TrimSpace(fb.dueDate)
	prevDue := ""
	if d, ok := model.ParseDate(prev.DueDate); ok {
		prevDue = d.Format(model.DateLayout)
	}
	if due != prevDue {
		u.DueDate = &due
	}

	if t := tags.Split(fb.tags); tags.Join(t) != tags.Join(prev.Tags) {
		u.Tags = &t
	}
	return u
}

func splitPaths(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, filepath.Clean(p))
		}
	}
	return out
}

func (m Model) formWidth() int {
	return min(max(m.width-4, 40), 100)
}

func (m Model) formHeight() int {
	return max(m.height-4, 10)
}

func validateRequired(fieldName string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
		return nil
	}
}

func validateDescription(s string) error {
	if utf8.RuneCountInString(s) > model.MaxDescriptionLen {
		return fmt.Errorf("description must be at most %d characters", model.MaxDescriptionLen)
	}
	return nil
}

func validateOptionalDate(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if _, ok := model.ParseDate(s); !ok {
		return fmt.Errorf("invalid date format, use YYYY-MM-DD")
	}
	return nil
}

func validateFiles(s string) error {
	for _, p := range splitPaths(s) {
		info, err := os.Stat(p)
		if err != nil {
			return fmt.Errorf("cannot read %s", p)
		}
		if info.IsDir() {
			return fmt.Errorf("%s is a directory", p)
		}
	}
	return nil
}
