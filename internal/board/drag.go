package board

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/nhle/taskbuddy/internal/model"
)

// ErrUnknownLane is returned when a drop targets a status that has no lane.
var ErrUnknownLane = errors.New("unknown lane")

// Updater applies a partial update to one task.
type Updater interface {
	UpdateTask(ctx context.Context, id string, u model.TaskUpdate) error
}

// DragState is the state of a DragTracker.
type DragState int

// Drag states.
const (
	Idle DragState = iota
	Dragging
)

func (s DragState) String() string {
	if s == Dragging {
		return "dragging"
	}
	return "idle"
}

// MoveCommand is the update issued when a card lands in another lane.
type MoveCommand struct {
	TaskID string
	From   model.Status
	To     model.Status
}

// Update returns the partial update that performs the move.
func (c MoveCommand) Update() model.TaskUpdate {
	return model.TaskUpdate{Status: model.StatusPtr(c.To)}
}

// DragTracker holds the card currently being dragged.
type DragTracker struct {
	mu      sync.Mutex
	taskID  string
	source  model.Status
	state   DragState
	updater Updater
}

// NewDragTracker creates an idle tracker that sends moves to u.
func NewDragTracker(u Updater) *DragTracker {
	return &DragTracker{updater: u}
}

// Start picks up a card. Starting while already dragging replaces the payload.
func (d *DragTracker) Start(taskID string, source model.Status) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.taskID = taskID
	d.source = source
	d.state = Dragging
}

// Cancel drops the payload without issuing anything.
func (d *DragTracker) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reset()
}

// State reports whether a card is being dragged.
func (d *DragTracker) State() DragState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Dragged returns the id and source status of the dragged card.
func (d *DragTracker) Dragged() (string, model.Status, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.taskID, d.source, d.state == Dragging
}

// Resolve ends the drag over target and returns the move to issue, or nil
// when nothing was dragged or the card is dropped on its own lane. The
// tracker is idle afterwards whatever the outcome.
func (d *DragTracker) Resolve(target model.Status) (*MoveCommand, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	defer d.reset()

	if d.state != Dragging {
		return nil, nil
	}
	if !target.Valid() {
		return nil, fmt.Errorf("dropping on %q: %w", target, ErrUnknownLane)
	}
	if d.source == target {
		return nil, nil
	}
	return &MoveCommand{TaskID: d.taskID, From: d.source, To: target}, nil
}

// Drop resolves the drag and sends the resulting move to the updater.
// The tracker is already idle when the update runs; a failed update is
// returned but does not restore the drag.
func (d *DragTracker) Drop(ctx context.Context, target model.Status) (*MoveCommand, error) {
	cmd, err := d.Resolve(target)
	if err != nil || cmd == nil {
		return nil, err
	}
	if err := d.updater.UpdateTask(ctx, cmd.TaskID, cmd.Update()); err != nil {
		return cmd, fmt.Errorf("moving task %s to %s: %w", cmd.TaskID, cmd.To, err)
	}
	return cmd, nil
}

func (d *DragTracker) reset() {
	d.taskID = ""
	d.source = ""
	d.state = Idle
}
