package board

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/nhle/taskbuddy/internal/model"
)

// SortKey names a sortable task field. The empty key means natural order.
type SortKey string

// Sortable fields.
const (
	SortNone        SortKey = ""
	SortTitle       SortKey = "title"
	SortDescription SortKey = "description"
	SortStatus      SortKey = "status"
	SortCategory    SortKey = "category"
	SortDueDate     SortKey = "due_date"
	SortTags        SortKey = "tags"
)

// SortKeys lists the keys a user can cycle through.
var SortKeys = []SortKey{SortTitle, SortDueDate, SortStatus, SortCategory, SortTags}

// ParseSortKey validates a key supplied by a client.
func ParseSortKey(s string) (SortKey, bool) {
	switch k := SortKey(s); k {
	case SortNone, SortTitle, SortDescription, SortStatus, SortCategory, SortDueDate, SortTags:
		return k, true
	}
	return SortNone, false
}

// Direction is the sort order.
type Direction string

// Directions.
const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// SortConfig is transient sort state; the zero value means no sort.
type SortConfig struct {
	Key       SortKey   `json:"key"`
	Direction Direction `json:"direction"`
}

// Toggle returns the config after the user picks key: the same key
// flips the direction, a new key starts ascending.
func (c SortConfig) Toggle(key SortKey) SortConfig {
	if key == c.Key && key != SortNone {
		if c.Direction == Desc {
			return SortConfig{Key: key, Direction: Asc}
		}
		return SortConfig{Key: key, Direction: Desc}
	}
	return SortConfig{Key: key, Direction: Asc}
}

// Sort returns a new slice ordered by cfg. Equal keys keep their input order.
// With an empty key the input order is returned as-is.
func Sort(tasks []model.Task, cfg SortConfig) []model.Task {
	out := slices.Clone(tasks)
	if cfg.Key == SortNone {
		return out
	}

	compare := comparator(cfg.Key)
	sign := 1
	if cfg.Direction == Desc {
		sign = -1
	}

	if cfg.Key == SortTags {
		// Untagged tasks go last ascending and first descending,
		// ahead of the count comparison.
		slices.SortStableFunc(out, func(a, b model.Task) int {
			ae, be := len(a.Tags) == 0, len(b.Tags) == 0
			switch {
			case ae && be:
				return 0
			case ae:
				return sign
			case be:
				return -sign
			}
			return sign * compare(a, b)
		})
		return out
	}

	slices.SortStableFunc(out, func(a, b model.Task) int {
		return sign * compare(a, b)
	})
	return out
}

func comparator(key SortKey) func(a, b model.Task) int {
	// A Collator keeps internal buffers, so each sort gets its own.
	col := collate.New(language.English)
	str := func(a, b string) int { return col.CompareString(a, b) }

	switch key {
	case SortTitle:
		return func(a, b model.Task) int { return str(a.Title, b.Title) }
	case SortDescription:
		return func(a, b model.Task) int { return str(a.Description, b.Description) }
	case SortStatus:
		return func(a, b model.Task) int { return str(string(a.Status), string(b.Status)) }
	case SortCategory:
		return func(a, b model.Task) int { return str(string(a.Category), string(b.Category)) }
	case SortDueDate:
		return func(a, b model.Task) int { return cmp.Compare(dueMillis(a), dueMillis(b)) }
	case SortTags:
		return func(a, b model.Task) int {
			if c := cmp.Compare(len(a.Tags), len(b.Tags)); c != 0 {
				return c
			}
			return str(strings.ToLower(a.Tags[0]), strings.ToLower(b.Tags[0]))
		}
	}
	return func(model.Task, model.Task) int { return 0 }
}

// dueMillis returns the due date as epoch milliseconds; undated or
// unparseable tasks sort as the epoch itself.
func dueMillis(t model.Task) int64 {
	due, ok := t.Due()
	if !ok {
		return time.Unix(0, 0).UnixMilli()
	}
	return due.UnixMilli()
}
