package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/nhle/taskbuddy/internal/board"
	"github.com/nhle/taskbuddy/internal/model"
)

func TestPrintView(t *testing.T) {
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.Local)
	v := board.Compose(board.Buckets{
		model.StatusTodo: {{
			ID: "0123456789abcdef", Title: "Write report", Status: model.StatusTodo,
			Category: model.CategoryWork, DueDate: "2024-05-13", Tags: []string{"q2"},
		}},
	}, board.FilterValues{}, board.SortConfig{})

	var buf bytes.Buffer
	printView(&buf, v, now)
	out := buf.String()
	for _, want := range []string{"Todo (1)", "01234567  Write report  [work]", "due 2 days from now", "#q2", "Completed (0)", "(empty)"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestPrintViewNoResults(t *testing.T) {
	var buf bytes.Buffer
	printView(&buf, board.View{NoResults: true}, time.Now())
	if !strings.Contains(buf.String(), "No tasks match") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(model.LogConfig{Level: "warn", Format: "json"}, &buf)
	logger.Info("hidden")
	logger.Warn("shown", "k", "v")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info should be filtered at warn level")
	}
	if !strings.Contains(out, `"msg":"shown"`) {
		t.Errorf("want JSON output, got %q", out)
	}
}
