package tasklist

import (
	"strings"
	"testing"
	"time"

	"github.com/nhle/taskbuddy/internal/board"
	"github.com/nhle/taskbuddy/internal/model"
)

func lanesOf(todo, inProgress, completed []string) board.View {
	mk := func(status model.Status, ids []string) []model.Task {
		out := make([]model.Task, len(ids))
		for i, id := range ids {
			out[i] = model.Task{ID: id, Title: "task " + id, Status: status, Category: model.CategoryWork}
		}
		return out
	}
	return board.Compose(board.Buckets{
		model.StatusTodo:       mk(model.StatusTodo, todo),
		model.StatusInProgress: mk(model.StatusInProgress, inProgress),
		model.StatusCompleted:  mk(model.StatusCompleted, completed),
	}, board.FilterValues{}, board.SortConfig{})
}

func currentID(t *testing.T, m Model) string {
	t.Helper()
	task, ok := m.Current()
	if !ok {
		return ""
	}
	return task.ID
}

func TestListModeCrossesLanes(t *testing.T) {
	m := New(ModeList, 80, 24)
	m.SetView(lanesOf([]string{"a", "b"}, nil, []string{"c"}))

	var got []string
	for range 4 {
		got = append(got, currentID(t, m))
		m.Down()
	}
	want := []string{"a", "b", "c", "c"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("down walk = %v, want %v", got, want)
	}

	m.Up()
	if id := currentID(t, m); id != "b" {
		t.Errorf("up skipped empty lane to %q, want b", id)
	}
}

func TestBoardModeStaysInLane(t *testing.T) {
	m := New(ModeBoard, 120, 30)
	m.SetView(lanesOf([]string{"a"}, nil, []string{"c"}))

	m.Down()
	if id := currentID(t, m); id != "a" {
		t.Errorf("down in board mode left the lane: %q", id)
	}

	m.Right()
	if _, ok := m.Current(); ok {
		t.Error("empty lane should have no focused card")
	}
	if lane, _ := m.CurrentLane(); lane.Status != model.StatusInProgress {
		t.Errorf("lane = %s", lane.Status)
	}

	m.Right()
	m.Right()
	if id := currentID(t, m); id != "c" {
		t.Errorf("right clamps to last lane, got %q", id)
	}
}

func TestSetViewKeepsFocus(t *testing.T) {
	m := New(ModeList, 80, 24)
	m.SetView(lanesOf([]string{"a", "b"}, nil, nil))
	m.Down()

	// b moved to completed after a drop
	m.SetView(lanesOf([]string{"a"}, nil, []string{"b"}))
	if id := currentID(t, m); id != "b" {
		t.Errorf("focus = %q, want b", id)
	}

	m.SetView(lanesOf(nil, nil, nil))
	if _, ok := m.Current(); ok {
		t.Error("cursor should be empty after lanes emptied")
	}
}

func TestToggleMode(t *testing.T) {
	m := New(ParseMode(model.ViewList), 80, 24)
	if m.ToggleMode() != ModeBoard || m.Mode().String() != model.ViewBoard {
		t.Error("toggle from list should give board")
	}
	if ParseMode("unknown") != ModeList {
		t.Error("unknown preference falls back to list")
	}
}

func TestRenderNoResults(t *testing.T) {
	m := New(ModeList, 80, 10)
	v := lanesOf(nil, nil, nil)
	v.NoResults = true
	m.SetView(v)
	if out := m.Render(Marks{}); !strings.Contains(out, "No tasks match your search") {
		t.Errorf("render = %q", out)
	}
}

func TestRenderShowsLaneTitles(t *testing.T) {
	m := New(ModeList, 80, 24)
	m.SetView(lanesOf([]string{"a"}, nil, nil))
	out := m.Render(Marks{Selection: board.NewSelection()})
	for _, want := range []string{"Todo (1)", "In-Progress (0)", "Completed (0)", "task a"} {
		if !strings.Contains(out, want) {
			t.Errorf("render missing %q", want)
		}
	}
}

func TestIsOverdue(t *testing.T) {
	now = func() time.Time { return time.Date(2024, 5, 10, 15, 0, 0, 0, time.Local) }
	t.Cleanup(func() { now = time.Now })

	tests := []struct {
		name string
		task model.Task
		want bool
	}{
		{"yesterday", model.Task{DueDate: "2024-05-09"}, true},
		{"today", model.Task{DueDate: "2024-05-10"}, false},
		{"completed", model.Task{DueDate: "2024-05-01", Status: model.StatusCompleted}, false},
		{"no date", model.Task{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isOverdue(tt.task); got != tt.want {
				t.Errorf("isOverdue = %v, want %v", got, tt.want)
			}
		})
	}
}
