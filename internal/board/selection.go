package board

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/sourcegraph/conc/pool"

	"github.com/nhle/taskbuddy/internal/model"
)

// ErrNotConfirmed is returned when the user declines a destructive batch.
var ErrNotConfirmed = errors.New("batch action not confirmed")

// Deleter removes one task.
type Deleter interface {
	DeleteTask(ctx context.Context, id string) error
}

// ConfirmFunc asks the user to confirm an action on n items.
type ConfirmFunc func(n int) bool

// BatchError reports the items of a batch that failed. The selection is
// left intact so the user can retry.
type BatchError struct {
	Action string
	Total  int
	Failed map[string]error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("batch %s: some items failed (%d of %d)", e.Action, len(e.Failed), e.Total)
}

// FailedIDs returns the ids that failed, sorted.
func (e *BatchError) FailedIDs() []string {
	ids := make([]string, 0, len(e.Failed))
	for id := range e.Failed {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Unwrap exposes the individual failures to errors.Is and errors.As.
func (e *BatchError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failed))
	for _, id := range e.FailedIDs() {
		errs = append(errs, e.Failed[id])
	}
	return errs
}

// Selection is the multi-select state of a dashboard. Toggle and
// SelectAll only take effect while multi-select mode is on.
type Selection struct {
	mu    sync.Mutex
	multi bool
	ids   map[string]struct{}
}

// NewSelection returns an empty selection with multi-select off.
func NewSelection() *Selection {
	return &Selection{ids: make(map[string]struct{})}
}

// ToggleMultiSelect flips the mode and returns the new value. Turning it
// off clears the selection.
func (s *Selection) ToggleMultiSelect() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.multi = !s.multi
	if !s.multi {
		clear(s.ids)
	}
	return s.multi
}

// MultiSelect reports whether multi-select mode is on.
func (s *Selection) MultiSelect() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.multi
}

// Toggle adds or removes id and reports whether it is now selected.
func (s *Selection) Toggle(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.multi {
		return false
	}
	if _, ok := s.ids[id]; ok {
		delete(s.ids, id)
		return false
	}
	s.ids[id] = struct{}{}
	return true
}

// SelectAll adds every task to the selection, keeping earlier picks.
func (s *Selection) SelectAll(tasks []model.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.multi {
		return
	}
	for _, t := range tasks {
		s.ids[t.ID] = struct{}{}
	}
}

// Clear empties the selection without leaving multi-select mode.
func (s *Selection) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.ids)
}

// Contains reports whether id is selected.
func (s *Selection) Contains(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.ids[id]
	return ok
}

// Len returns the number of selected ids.
func (s *Selection) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ids)
}

// IDs returns the selected ids, sorted.
func (s *Selection) IDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.ids))
	for id := range s.ids {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// BatchDelete asks confirm, then deletes every selected task in parallel.
// On full success the selection is cleared; otherwise a *BatchError is
// returned and the selection is kept.
func (s *Selection) BatchDelete(ctx context.Context, d Deleter, confirm ConfirmFunc) error {
	ids := s.IDs()
	if len(ids) == 0 {
		return nil
	}
	if confirm != nil && !confirm(len(ids)) {
		return ErrNotConfirmed
	}
	return s.run(ctx, "delete", ids, func(ctx context.Context, id string) error {
		return d.DeleteTask(ctx, id)
	})
}

// BatchComplete moves every selected task to COMPLETED in parallel.
func (s *Selection) BatchComplete(ctx context.Context, u Updater) error {
	ids := s.IDs()
	if len(ids) == 0 {
		return nil
	}
	update := model.TaskUpdate{Status: model.StatusPtr(model.StatusCompleted)}
	return s.run(ctx, "complete", ids, func(ctx context.Context, id string) error {
		return u.UpdateTask(ctx, id, update)
	})
}

func (s *Selection) run(ctx context.Context, action string, ids []string, fn func(context.Context, string) error) error {
	var (
		mu     sync.Mutex
		failed = make(map[string]error)
	)

	p := pool.New().WithErrors()
	for _, id := range ids {
		p.Go(func() error {
			if err := fn(ctx, id); err != nil {
				mu.Lock()
				failed[id] = err
				mu.Unlock()
				return err
			}
			return nil
		})
	}
	_ = p.Wait() // per-id failures are collected above

	if len(failed) > 0 {
		return &BatchError{Action: action, Total: len(ids), Failed: failed}
	}
	s.Clear()
	return nil
}
