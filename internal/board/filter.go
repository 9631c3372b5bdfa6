// Package board turns raw per-status task collections into the filtered,
// sorted lanes shown by the list and board views, and tracks the two
// pieces of interaction state that issue commands against the store:
// drag-and-drop status moves and multi-select batch actions.
package board

import (
	"strings"
	"time"

	"github.com/nhle/taskbuddy/internal/model"
)

// FilterValues is the transient filter state of a dashboard.
// Zero values mean "not filtering on this field".
type FilterValues struct {
	Category model.Category `json:"category,omitempty"`

	// StartDate and EndDate are inclusive bounds on the due date.
	// Unparseable bounds are ignored.
	StartDate string `json:"start_date,omitempty"`
	EndDate   string `json:"end_date,omitempty"`

	// SearchText matches title or description, case-insensitively.
	SearchText string `json:"search_text,omitempty"`

	// Tags keeps tasks carrying at least one of these tags.
	Tags []string `json:"tags,omitempty"`
}

// IsEmpty reports whether no filter is active.
func (f FilterValues) IsEmpty() bool {
	start, end := f.bounds()
	return f.Category == "" && start == nil && end == nil &&
		f.SearchText == "" && len(f.Tags) == 0
}

func (f FilterValues) bounds() (start, end *time.Time) {
	if d, ok := model.ParseDate(f.StartDate); ok {
		start = &d
	}
	if d, ok := model.ParseDate(f.EndDate); ok {
		end = &d
	}
	return start, end
}

// Filter returns the tasks satisfying every active filter, in input order.
// The input slice is never modified.
func Filter(tasks []model.Task, f FilterValues) []model.Task {
	start, end := f.bounds()
	search := strings.ToLower(f.SearchText)

	var wanted map[string]struct{}
	if len(f.Tags) > 0 {
		wanted = make(map[string]struct{}, len(f.Tags))
		for _, tag := range f.Tags {
			wanted[tag] = struct{}{}
		}
	}

	out := make([]model.Task, 0, len(tasks))
	for _, t := range tasks {
		if f.Category != "" && t.Category != f.Category {
			continue
		}
		if start != nil || end != nil {
			due, ok := t.Due()
			if !ok {
				continue
			}
			if start != nil && due.Before(*start) {
				continue
			}
			if end != nil && due.After(*end) {
				continue
			}
		}
		if wanted != nil && !hasAnyTag(t, wanted) {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(t.Title), search) &&
			!strings.Contains(strings.ToLower(t.Description), search) {
			continue
		}
		out = append(out, t)
	}
	return out
}

func hasAnyTag(t model.Task, wanted map[string]struct{}) bool {
	for _, tag := range t.Tags {
		if _, ok := wanted[tag]; ok {
			return true
		}
	}
	return false
}
