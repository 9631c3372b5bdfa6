// Package notify files task notifications as mail messages.
package notify

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"

	"github.com/nhle/taskbuddy/internal/model"
)

// Event is what happened to a task.
type Event string

// Events that produce a notification.
const (
	EventCreated   Event = "created"
	EventCompleted Event = "completed"
	EventDueSoon   Event = "due_soon"
)

// Notification is one message for a task owner.
type Notification struct {
	Event Event
	Task  model.Task
	To    model.UserProfile
	At    time.Time
}

// Notifier delivers notifications.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// Subject returns the message subject line.
func (n Notification) Subject() string {
	switch n.Event {
	case EventCreated:
		return fmt.Sprintf("[TaskBuddy] New task: %s", n.Task.Title)
	case EventCompleted:
		return fmt.Sprintf("[TaskBuddy] Completed: %s", n.Task.Title)
	case EventDueSoon:
		return fmt.Sprintf("[TaskBuddy] Due %s: %s", n.Task.DueDate, n.Task.Title)
	}
	return fmt.Sprintf("[TaskBuddy] %s", n.Task.Title)
}

// Body returns the plain-text message body.
func (n Notification) Body() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n", n.Task.Title)
	fmt.Fprintf(&b, "Status:   %s\n", n.Task.Status)
	fmt.Fprintf(&b, "Category: %s\n", n.Task.Category)
	if n.Task.DueDate != "" {
		fmt.Fprintf(&b, "Due:      %s\n", n.Task.DueDate)
	}
	if len(n.Task.Tags) > 0 {
		fmt.Fprintf(&b, "Tags:     %s\n", strings.Join(n.Task.Tags, ", "))
	}
	if n.Task.Description != "" {
		fmt.Fprintf(&b, "\n%s\n", n.Task.Description)
	}
	return b.String()
}

// Compose renders n as an RFC 5322 message from the given sender.
func Compose(n Notification, from string) ([]byte, error) {
	var h mail.Header
	at := n.At
	if at.IsZero() {
		at = time.Now()
	}
	h.SetDate(at)
	h.SetSubject(n.Subject())
	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
	if from != "" {
		h.SetAddressList("From", []*mail.Address{{Name: "TaskBuddy", Address: from}})
	}
	if n.To.Email != "" {
		h.SetAddressList("To", []*mail.Address{{Name: n.To.DisplayName, Address: n.To.Email}})
	}
	h.Set("X-TaskBuddy-Task", n.Task.ID)
	h.Set("X-TaskBuddy-Event", string(n.Event))

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("creating message writer: %w", err)
	}
	if _, err := io.WriteString(w, n.Body()); err != nil {
		return nil, fmt.Errorf("writing message body: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("closing message: %w", err)
	}
	return buf.Bytes(), nil
}
