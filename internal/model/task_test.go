package model

import (
	"errors"
	"strings"
	"testing"
)

func TestDraftValidate(t *testing.T) {
	tests := []struct {
		name  string
		draft TaskDraft
		ok    bool
	}{
		{"minimal", TaskDraft{Title: "x", Category: CategoryWork}, true},
		{"blank title", TaskDraft{Title: "  ", Category: CategoryWork}, false},
		{"bad category", TaskDraft{Title: "x", Category: "HOBBY"}, false},
		{"bad status", TaskDraft{Title: "x", Category: CategoryWork, Status: "DONE"}, false},
		{"long description", TaskDraft{Title: "x", Category: CategoryWork, Description: strings.Repeat("a", 301)}, false},
		{"bad date", TaskDraft{Title: "x", Category: CategoryWork, DueDate: "tomorrow"}, false},
		{"rfc3339 date", TaskDraft{Title: "x", Category: CategoryWork, DueDate: "2024-01-02T10:00:00Z"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := tt.draft
			err := d.Validate()
			if tt.ok && err != nil {
				t.Errorf("Validate: %v", err)
			}
			if !tt.ok && !errors.Is(err, ErrInvalidTask) {
				t.Errorf("err = %v, want ErrInvalidTask", err)
			}
		})
	}
}

func TestDraftDefaultsStatus(t *testing.T) {
	d := TaskDraft{Title: "x", Category: CategoryPersonal}
	if err := d.Validate(); err != nil {
		t.Fatal(err)
	}
	if d.Status != StatusTodo {
		t.Errorf("status = %q", d.Status)
	}
}

func TestParseDate(t *testing.T) {
	d, ok := ParseDate("2024-02-29")
	if !ok || d.Day() != 29 || d.Hour() != 0 {
		t.Errorf("ParseDate = %v, %v", d, ok)
	}
	if _, ok := ParseDate(""); ok {
		t.Error("empty date parsed")
	}
	if _, ok := ParseDate("29/02/2024"); ok {
		t.Error("foreign layout parsed")
	}
}

func TestUpdateApplyCopiesSlices(t *testing.T) {
	tags := []string{"a"}
	u := TaskUpdate{Title: StringPtr("new"), Tags: &tags}
	got := u.Apply(Task{Title: "old", Description: "keep"})
	tags[0] = "mutated"
	if got.Title != "new" || got.Description != "keep" || got.Tags[0] != "a" {
		t.Errorf("Apply = %+v", got)
	}
	if !(TaskUpdate{}).IsEmpty() || u.IsEmpty() {
		t.Error("IsEmpty wrong")
	}
}

func TestUpdateValidate(t *testing.T) {
	bad := Status("ARCHIVED")
	if err := (TaskUpdate{Status: &bad}).Validate(); !errors.Is(err, ErrInvalidTask) {
		t.Errorf("err = %v", err)
	}
	if err := (TaskUpdate{DueDate: StringPtr("")}).Validate(); err != nil {
		t.Errorf("clearing due date rejected: %v", err)
	}
}
