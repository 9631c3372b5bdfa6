// Package activity derives the audit entries appended to a task's log.
package activity

import (
	"fmt"
	"strings"
	"time"

	"github.com/nhle/taskbuddy/internal/model"
)

// Field names recorded on log entries.
const (
	FieldStatus      = "status"
	FieldTitle       = "title"
	FieldDescription = "description"
	FieldDueDate     = "dueDate"
	FieldCategory    = "category"
	FieldAttachments = "attachments"
)

// Differ computes log entries for an update. The zero value uses time.Now.
type Differ struct {
	Now func() time.Time
}

func (d Differ) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// Created returns the entry seeded on a new task.
func (d Differ) Created(userID string) model.ActivityLogItem {
	return model.ActivityLogItem{Action: "created this task", Timestamp: d.now(), UserID: userID}
}

// Diff compares prev against the fields present in u. An update that
// changes nothing yields no entries.
func (d Differ) Diff(prev model.Task, u model.TaskUpdate, userID string) []model.ActivityLogItem {
	return d.DiffUploads(prev, u, 0, userID)
}

// DiffUploads is Diff for updates that also stored newFiles attachments.
// Entries come out in a fixed field order and share one timestamp.
func (d Differ) DiffUploads(prev model.Task, u model.TaskUpdate, newFiles int, userID string) []model.ActivityLogItem {
	at := d.now()
	var items []model.ActivityLogItem

	// from and to are stored as-is; format only shapes the action text.
	change := func(field, label, from, to string, format func(string) string) {
		items = append(items, model.ActivityLogItem{
			Action:        fmt.Sprintf("changed %s from %s to %s", label, format(from), format(to)),
			Timestamp:     at,
			Field:         field,
			PreviousValue: model.StringPtr(from),
			NewValue:      model.StringPtr(to),
			UserID:        userID,
		})
	}

	if u.Status != nil && *u.Status != prev.Status {
		change(FieldStatus, "status", string(prev.Status), string(*u.Status), strings.ToLower)
	}
	if u.Title != nil && *u.Title != prev.Title {
		change(FieldTitle, "title", prev.Title, *u.Title, quote)
	}
	if u.Description != nil && *u.Description != prev.Description {
		items = append(items, model.ActivityLogItem{
			Action:    "updated the description",
			Timestamp: at,
			Field:     FieldDescription,
			UserID:    userID,
		})
	}
	if u.DueDate != nil && *u.DueDate != prev.DueDate {
		change(FieldDueDate, "due date", prev.DueDate, *u.DueDate, orNone)
	}
	if u.Category != nil && *u.Category != prev.Category {
		change(FieldCategory, "category", string(prev.Category), string(*u.Category), strings.ToLower)
	}
	if u.Attachments != nil && len(*u.Attachments) != len(prev.Attachments) {
		items = append(items, model.ActivityLogItem{
			Action:    "updated attachments",
			Timestamp: at,
			Field:     FieldAttachments,
			UserID:    userID,
		})
	}
	if newFiles > 0 {
		items = append(items, model.ActivityLogItem{
			Action:    fmt.Sprintf("added %d %s", newFiles, plural(newFiles, "attachment")),
			Timestamp: at,
			Field:     FieldAttachments,
			UserID:    userID,
		})
	}
	return items
}

func quote(s string) string { return `"` + s + `"` }

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}
