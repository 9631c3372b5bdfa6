package detail

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/taskbuddy/internal/keys"
	"github.com/nhle/taskbuddy/internal/model"
)

func TestRenderContent(t *testing.T) {
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	m := New(keys.DefaultKeyMap(), 80, 40)
	m.now = func() time.Time { return now }

	m.SetTask(model.Task{
		ID:          "t1",
		Title:       "Ship release",
		Description: "Check the **changelog** first",
		Status:      model.StatusInProgress,
		Category:    model.CategoryWork,
		Tags:        []string{"release"},
		Attachments: []model.Attachment{{Name: "notes.txt", URL: "http://x/notes.txt"}},
		ActivityLog: []model.ActivityLogItem{
			{Action: "created this task", Timestamp: now.Add(-48 * time.Hour)},
			{Action: "changed status from to-do to in-progress", Timestamp: now.Add(-3 * time.Hour)},
		},
	})

	out := m.renderContent()
	for _, want := range []string{
		"Ship release", "IN-PROGRESS", "#release", "changelog",
		"notes.txt", "3 hours ago", "2 days ago",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("content missing %q", want)
		}
	}
	if strings.Index(out, "changed status") > strings.Index(out, "created this task") {
		t.Error("activity should list newest first")
	}
}

func TestEmptyDescription(t *testing.T) {
	m := New(keys.DefaultKeyMap(), 80, 40)
	m.SetTask(model.Task{Title: "x", Status: model.StatusTodo, Category: model.CategoryPersonal})
	if !strings.Contains(m.renderContent(), "No description") {
		t.Error("want placeholder for empty description")
	}
}

func TestBackKey(t *testing.T) {
	m := New(keys.DefaultKeyMap(), 80, 40)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if cmd == nil {
		t.Fatal("esc should produce a command")
	}
	if _, ok := cmd().(BackMsg); !ok {
		t.Error("esc should go back")
	}
}
