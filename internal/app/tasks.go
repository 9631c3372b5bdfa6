package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"

	"github.com/nhle/taskbuddy/internal/board"
	"github.com/nhle/taskbuddy/internal/model"
	"github.com/nhle/taskbuddy/internal/store"
	"github.com/nhle/taskbuddy/internal/tags"
	"github.com/nhle/taskbuddy/internal/theme"
)

const toastTTL = 4 * time.Second

type viewLoadedMsg struct {
	view board.View
	err  error
}

type detailLoadedMsg struct {
	task model.Task
	err  error
}

// mutationDoneMsg reports a write. The lanes are reloaded after every one.
type mutationDoneMsg struct {
	what  string
	text  string
	focus string
	err   error
}

type clearToastMsg struct{ seq int }

func (m Model) load() tea.Cmd {
	tasks, uid, f, sc := m.tasks, m.userID, m.filter, m.sortCfg
	return func() tea.Msg {
		v, err := tasks.View(context.Background(), uid, f, sc)
		return viewLoadedMsg{view: v, err: err}
	}
}

func (m Model) loadDetail(id string) tea.Cmd {
	tasks, uid := m.tasks, m.userID
	return func() tea.Msg {
		t, err := tasks.Get(context.Background(), uid, id)
		if err != nil {
			return detailLoadedMsg{err: err}
		}
		return detailLoadedMsg{task: *t}
	}
}

func (m Model) create(d model.TaskDraft, paths []string) tea.Cmd {
	tasks, uid := m.tasks, m.userID
	return func() tea.Msg {
		files, err := readFiles(paths)
		if err != nil {
			return mutationDoneMsg{what: "attaching files", err: err}
		}
		t, err := tasks.Create(context.Background(), uid, d, files)
		if err != nil {
			return mutationDoneMsg{what: "creating task", err: err}
		}
		return mutationDoneMsg{text: fmt.Sprintf("Created %q", t.Title), focus: t.ID}
	}
}

func (m Model) update(id string, u model.TaskUpdate, paths []string) tea.Cmd {
	tasks, uid := m.tasks, m.userID
	return func() tea.Msg {
		files, err := readFiles(paths)
		if err != nil {
			return mutationDoneMsg{what: "attaching files", err: err}
		}
		t, err := tasks.Update(context.Background(), uid, id, u, files)
		if err != nil {
			return mutationDoneMsg{what: "saving task", err: err}
		}
		return mutationDoneMsg{text: fmt.Sprintf("Saved %q", t.Title), focus: t.ID}
	}
}

func (m Model) deleteOne(id string) tea.Cmd {
	actor := m.actor
	return func() tea.Msg {
		if err := actor.DeleteTask(context.Background(), id); err != nil {
			return mutationDoneMsg{what: "deleting task", err: err}
		}
		return mutationDoneMsg{text: "Task deleted"}
	}
}

func (m Model) drop(target model.Status) tea.Cmd {
	drag := m.drag
	return func() tea.Msg {
		cmd, err := drag.Drop(context.Background(), target)
		switch {
		case err != nil:
			return mutationDoneMsg{what: "moving task", err: err}
		case cmd == nil:
			return mutationDoneMsg{}
		}
		return mutationDoneMsg{
			text:  "Moved to " + strings.ToLower(string(cmd.To)),
			focus: cmd.TaskID,
		}
	}
}

// batchDelete runs after the confirm dialog, so the confirmation
// callback always agrees.
func (m Model) batchDelete() tea.Cmd {
	sel, actor := m.sel, m.actor
	n := sel.Len()
	return func() tea.Msg {
		err := sel.BatchDelete(context.Background(), actor, func(int) bool { return true })
		if err != nil {
			return mutationDoneMsg{what: "deleting tasks", err: err}
		}
		return mutationDoneMsg{text: fmt.Sprintf("Deleted %d task(s)", n)}
	}
}

func (m Model) batchComplete() tea.Cmd {
	sel, actor := m.sel, m.actor
	n := sel.Len()
	return func() tea.Msg {
		if err := sel.BatchComplete(context.Background(), actor); err != nil {
			return mutationDoneMsg{what: "completing tasks", err: err}
		}
		return mutationDoneMsg{text: fmt.Sprintf("Completed %d task(s)", n)}
	}
}

// showError logs err and shows it as a toast.
func (m *Model) showError(what string, err error) tea.Cmd {
	m.logger.Warn("dashboard action failed", "action", what, "err", err)

	text := fmt.Sprintf("Error %s: %v", what, err)
	var batchErr *board.BatchError
	switch {
	case store.IsConflict(err):
		text = "Task was changed elsewhere; reopen it and try again"
	case store.IsPermissionError(err):
		text = "That task belongs to another user"
	case errors.As(err, &batchErr):
		text = fmt.Sprintf("Error %s: some items failed (%d of %d)", what, len(batchErr.Failed), batchErr.Total)
	}
	return m.setToast(text, true)
}

func (m *Model) showInfo(text string) tea.Cmd {
	return m.setToast(text, false)
}

func (m *Model) setToast(text string, isErr bool) tea.Cmd {
	m.toastSeq++
	m.toast.Text = text
	m.toast.Error = isErr
	seq := m.toastSeq
	return tea.Tick(toastTTL, func(time.Time) tea.Msg { return clearToastMsg{seq: seq} })
}

// confirmDialog is a yes/no question guarding a destructive action.
type confirmDialog struct {
	form  *huh.Form
	yes   *bool
	onYes func(Model) tea.Cmd
}

func (d *confirmDialog) View() string {
	if d == nil {
		return ""
	}
	return theme.DetailPanelStyle.Render(d.form.View())
}

func (m Model) askConfirm(prompt string, onYes func(Model) tea.Cmd) (tea.Model, tea.Cmd) {
	yes := new(bool)
	form := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().
			Title(prompt).
			Affirmative("Delete").
			Negative("Cancel").
			Value(yes),
	)).WithWidth(min(max(m.layout.Width-8, 30), 70))

	m.confirm = &confirmDialog{form: form, yes: yes, onYes: onYes}
	m.prevState = m.state
	m.state = ViewConfirm
	return m, form.Init()
}

func (m Model) updateConfirm(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.confirm == nil {
		m.state = ViewLanes
		return m, nil
	}
	if km, ok := msg.(tea.KeyMsg); ok && km.String() == "esc" {
		m.confirm = nil
		m.state = m.prevState
		return m, nil
	}

	mdl, cmd := m.confirm.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.confirm.form = f
	}

	switch m.confirm.form.State {
	case huh.StateCompleted:
		d := m.confirm
		m.confirm = nil
		m.state = ViewLanes
		if *d.yes {
			return m, d.onYes(m)
		}
		return m, nil
	case huh.StateAborted:
		m.confirm = nil
		m.state = m.prevState
		return m, nil
	}
	return m, cmd
}

// parseQuery splits a search box entry into filter values: #tag tokens
// select tags, from:/to: tokens bound the due date, the rest is free text.
func parseQuery(q string, f board.FilterValues) board.FilterValues {
	var text, tagList []string
	f.StartDate, f.EndDate = "", ""
	for _, tok := range strings.Fields(q) {
		switch {
		case strings.HasPrefix(tok, "#") && len(tok) > 1:
			tagList = append(tagList, tok[1:])
		case strings.HasPrefix(tok, "from:"):
			f.StartDate = strings.TrimPrefix(tok, "from:")
		case strings.HasPrefix(tok, "to:"):
			f.EndDate = strings.TrimPrefix(tok, "to:")
		default:
			text = append(text, tok)
		}
	}
	f.Tags = tags.Normalize(tagList)
	f.SearchText = strings.Join(text, " ")
	return f
}

func readFiles(paths []string) ([]model.FileUpload, error) {
	files := make([]model.FileUpload, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", p, err)
		}
		files = append(files, model.FileUpload{Name: filepath.Base(p), Data: data})
	}
	return files, nil
}
