package tasklist

import (
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/taskbuddy/internal/model"
	"github.com/nhle/taskbuddy/internal/theme"
)

// now is replaced in tests.
var now = time.Now

type cardState struct {
	focused  bool
	grabbed  bool
	selected bool
	multi    bool
	compact  bool
}

// renderCard draws one task as a single line, truncated to width.
func renderCard(t model.Task, st cardState, width int) string {
	var b strings.Builder

	if st.multi {
		if st.selected {
			b.WriteString("[x] ")
		} else {
			b.WriteString("[ ] ")
		}
	}
	b.WriteString(t.Title)

	if !st.compact {
		b.WriteString("  ")
		b.WriteString(theme.CategoryStyle(t.Category).Render(string(t.Category)))
	}
	if due := dueLabel(t); due != "" {
		b.WriteString("  ")
		if isOverdue(t) {
			b.WriteString(theme.OverdueStyle.Render(due))
		} else {
			b.WriteString(theme.DimmedStyle.Render(due))
		}
	}
	if !st.compact && len(t.Tags) > 0 {
		b.WriteString("  ")
		b.WriteString(theme.DimmedStyle.Render("#" + strings.Join(t.Tags, " #")))
	}

	line := b.String()
	if width > 0 {
		line = lipgloss.NewStyle().MaxWidth(width).Render(line)
	}

	switch {
	case st.grabbed:
		return theme.GrabbedCardStyle.Render(line)
	case st.focused:
		return theme.FocusedCardStyle.Render(line)
	default:
		return theme.CardStyle.Render(line)
	}
}

// dueLabel shows the calendar date of the due date, or nothing.
func dueLabel(t model.Task) string {
	d, ok := model.ParseDate(t.DueDate)
	if !ok {
		return ""
	}
	return "due " + d.Format("Jan 2")
}

// isOverdue reports whether an open task's due day has passed.
func isOverdue(t model.Task) bool {
	if t.Status == model.StatusCompleted {
		return false
	}
	d, ok := model.ParseDate(t.DueDate)
	if !ok {
		return false
	}
	y, m, dd := now().Date()
	today := time.Date(y, m, dd, 0, 0, 0, 0, d.Location())
	return d.Before(today)
}
