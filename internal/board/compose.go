package board

import (
	"fmt"

	"github.com/nhle/taskbuddy/internal/model"
)

// Lane is one status section of the dashboard.
type Lane struct {
	ID     string       `json:"id"`
	Title  string       `json:"title"`
	Color  string       `json:"color"`
	Status model.Status `json:"status"`
	Tasks  []model.Task `json:"tasks"`
}

// View is what both the list and board renderers draw.
type View struct {
	Lanes     []Lane `json:"lanes"`
	NoResults bool   `json:"no_results"`
}

type laneSpec struct {
	id, label, color string
}

var laneSpecs = map[model.Status]laneSpec{
	model.StatusTodo:       {"todo", "Todo", "#FAC3FF"},
	model.StatusInProgress: {"inProgress", "In-Progress", "#85D9F1"},
	model.StatusCompleted:  {"completed", "Completed", "#CDFFCC"},
}

// LaneID returns the stable section id for a status.
func LaneID(s model.Status) string { return laneSpecs[s].id }

// LaneColor returns the accent color for a status.
func LaneColor(s model.Status) string { return laneSpecs[s].color }

// Buckets holds the raw task collections keyed by status.
type Buckets map[model.Status][]model.Task

// Total counts tasks across all buckets.
func (b Buckets) Total() int {
	n := 0
	for _, ts := range b {
		n += len(ts)
	}
	return n
}

// Compose filters and sorts each bucket and lays the results out as
// lanes in fixed order. Raw buckets are not modified.
func Compose(raw Buckets, f FilterValues, s SortConfig) View {
	v := View{Lanes: make([]Lane, 0, len(model.Statuses))}
	empty := true
	for _, status := range model.Statuses {
		tasks := Sort(Filter(raw[status], f), s)
		if len(tasks) > 0 {
			empty = false
		}
		spec := laneSpecs[status]
		v.Lanes = append(v.Lanes, Lane{
			ID:     spec.id,
			Title:  fmt.Sprintf("%s (%d)", spec.label, len(tasks)),
			Color:  spec.color,
			Status: status,
			Tasks:  tasks,
		})
	}
	v.NoResults = empty && f.SearchText != ""
	return v
}

// Lane returns the lane for status, if present.
func (v View) Lane(status model.Status) (Lane, bool) {
	for _, l := range v.Lanes {
		if l.Status == status {
			return l, true
		}
	}
	return Lane{}, false
}
