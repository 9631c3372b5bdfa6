package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Status is the lane a task lives in.
type Status string

// Task status values. No other lane exists.
const (
	StatusTodo       Status = "TO-DO"
	StatusInProgress Status = "IN-PROGRESS"
	StatusCompleted  Status = "COMPLETED"
)

// Statuses lists every status in lane order.
var Statuses = []Status{StatusTodo, StatusInProgress, StatusCompleted}

// Valid reports whether s is one of the three known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// Category is the coarse task classification.
type Category string

// Category values.
const (
	CategoryWork     Category = "WORK"
	CategoryPersonal Category = "PERSONAL"
)

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	return c == CategoryWork || c == CategoryPersonal
}

// MaxDescriptionLen is the conventional description limit.
const MaxDescriptionLen = 300

// DateLayout is the ISO calendar date format used for due dates.
const DateLayout = "2006-01-02"

// ErrInvalidTask is wrapped by every task validation failure.
var ErrInvalidTask = errors.New("invalid task")

// Attachment is a stored file linked to a task.
type Attachment struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// ActivityLogItem is one append-only audit record on a task.
// PreviousValue and NewValue are only set for status, title, due_date
// and category changes.
type ActivityLogItem struct {
	Action        string    `json:"action"`
	Timestamp     time.Time `json:"timestamp"`
	Field         string    `json:"field,omitempty"`
	PreviousValue *string   `json:"previous_value,omitempty"`
	NewValue      *string   `json:"new_value,omitempty"`
	UserID        string    `json:"user_id"`
}

// Task is the central entity, owned by exactly one user.
type Task struct {
	// ID is assigned by the store; empty before the first persist.
	ID          string            `json:"id" db:"id"`
	UserID      string            `json:"user_id" db:"user_id"`
	Title       string            `json:"title" db:"title"`
	Description string            `json:"description" db:"description"`
	Status      Status            `json:"status" db:"status"`
	Category    Category          `json:"category" db:"category"`
	DueDate     string            `json:"due_date" db:"due_date"`
	Tags        []string          `json:"tags" db:"-"`
	Attachments []Attachment      `json:"attachments" db:"-"`
	ActivityLog []ActivityLogItem `json:"activity_log" db:"-"`

	// Version increases by one on every successful write.
	Version   int       `json:"version" db:"version"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Due parses DueDate. Both plain dates and RFC 3339 timestamps are
// accepted; the result is truncated to a local calendar date.
func (t Task) Due() (time.Time, bool) {
	return ParseDate(t.DueDate)
}

// ParseDate parses an ISO date or timestamp into a midnight local date.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if d, err := time.ParseInLocation(DateLayout, s, time.Local); err == nil {
		return d, true
	}
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		ts = ts.In(time.Local)
		return time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.Local), true
	}
	return time.Time{}, false
}

// HasTag reports whether the task carries tag.
func (t Task) HasTag(tag string) bool {
	for _, tg := range t.Tags {
		if tg == tag {
			return true
		}
	}
	return false
}

// TaskDraft is the caller-supplied content of a new task.
type TaskDraft struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Status      Status   `json:"status"`
	Category    Category `json:"category"`
	DueDate     string   `json:"due_date"`
	Tags        []string `json:"tags"`
}

// Validate checks a draft, defaulting an empty status to TO-DO.
func (d *TaskDraft) Validate() error {
	if d.Status == "" {
		d.Status = StatusTodo
	}
	if strings.TrimSpace(d.Title) == "" {
		return fmt.Errorf("%w: title must not be empty", ErrInvalidTask)
	}
	return validateFields(d.Status, d.Category, d.Description, d.DueDate)
}

// TaskUpdate is a partial update. Nil fields are left untouched.
type TaskUpdate struct {
	Title       *string       `json:"title,omitempty"`
	Description *string       `json:"description,omitempty"`
	Status      *Status       `json:"status,omitempty"`
	Category    *Category     `json:"category,omitempty"`
	DueDate     *string       `json:"due_date,omitempty"`
	Tags        *[]string     `json:"tags,omitempty"`
	Attachments *[]Attachment `json:"attachments,omitempty"`

	// ExpectedVersion, when non-zero, makes the write conditional on the
	// stored version still matching.
	ExpectedVersion int `json:"expected_version,omitempty"`
}

// IsEmpty reports whether the update touches no field.
func (u TaskUpdate) IsEmpty() bool {
	return u.Title == nil && u.Description == nil && u.Status == nil &&
		u.Category == nil && u.DueDate == nil && u.Tags == nil && u.Attachments == nil
}

// Validate checks only the fields present in the update.
func (u TaskUpdate) Validate() error {
	if u.Title != nil && strings.TrimSpace(*u.Title) == "" {
		return fmt.Errorf("%w: title must not be empty", ErrInvalidTask)
	}
	if u.Status != nil && !u.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidTask, *u.Status)
	}
	if u.Category != nil && !u.Category.Valid() {
		return fmt.Errorf("%w: unknown category %q", ErrInvalidTask, *u.Category)
	}
	if u.Description != nil && len([]rune(*u.Description)) > MaxDescriptionLen {
		return fmt.Errorf("%w: description exceeds %d characters", ErrInvalidTask, MaxDescriptionLen)
	}
	if u.DueDate != nil && *u.DueDate != "" {
		if _, ok := ParseDate(*u.DueDate); !ok {
			return fmt.Errorf("%w: unparseable due date %q", ErrInvalidTask, *u.DueDate)
		}
	}
	return nil
}

// Apply returns a copy of t with the update merged in. Slices are copied.
func (u TaskUpdate) Apply(t Task) Task {
	if u.Title != nil {
		t.Title = *u.Title
	}
	if u.Description != nil {
		t.Description = *u.Description
	}
	if u.Status != nil {
		t.Status = *u.Status
	}
	if u.Category != nil {
		t.Category = *u.Category
	}
	if u.DueDate != nil {
		t.DueDate = *u.DueDate
	}
	if u.Tags != nil {
		t.Tags = append([]string(nil), (*u.Tags)...)
	}
	if u.Attachments != nil {
		t.Attachments = append([]Attachment(nil), (*u.Attachments)...)
	}
	return t
}

// Validate checks a fully-formed task as read from or written to a store.
func (t Task) Validate() error {
	if strings.TrimSpace(t.Title) == "" {
		return fmt.Errorf("%w: title must not be empty", ErrInvalidTask)
	}
	if t.UserID == "" {
		return fmt.Errorf("%w: missing owner", ErrInvalidTask)
	}
	return validateFields(t.Status, t.Category, t.Description, t.DueDate)
}

func validateFields(status Status, category Category, description, dueDate string) error {
	if !status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidTask, status)
	}
	if !category.Valid() {
		return fmt.Errorf("%w: unknown category %q", ErrInvalidTask, category)
	}
	if len([]rune(description)) > MaxDescriptionLen {
		return fmt.Errorf("%w: description exceeds %d characters", ErrInvalidTask, MaxDescriptionLen)
	}
	if dueDate != "" {
		if _, ok := ParseDate(dueDate); !ok {
			return fmt.Errorf("%w: unparseable due date %q", ErrInvalidTask, dueDate)
		}
	}
	return nil
}

// FileUpload is a file supplied alongside a create or update.
type FileUpload struct {
	Name string
	Data []byte
}

// StatusPtr and friends build TaskUpdate fields inline.
func StatusPtr(s Status) *Status       { return &s }
func CategoryPtr(c Category) *Category { return &c }
func StringPtr(s string) *string       { return &s }
