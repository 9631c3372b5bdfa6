// Package store persists tasks, user profiles and sessions in SQLite.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/nhle/taskbuddy/internal/model"
)

// ErrNotFound is wrapped by every lookup that matched no row.
var ErrNotFound = errors.New("not found")

// IsNotFound reports whether err wraps ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// PermissionError is returned when a user acts on a task they do not own.
type PermissionError struct {
	TaskID string
	UserID string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("user %s may not modify task %s", e.UserID, e.TaskID)
}

// IsPermissionError reports whether err is or wraps a *PermissionError.
func IsPermissionError(err error) bool {
	var pe *PermissionError
	return errors.As(err, &pe)
}

// ConflictError is returned when a conditional update finds that the task
// changed since the caller read it. The caller may reload and retry.
type ConflictError struct {
	TaskID   string
	Expected int
	Actual   int
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("task %s changed: expected version %d, found %d", e.TaskID, e.Expected, e.Actual)
}

// IsConflict reports whether err is or wraps a *ConflictError.
func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

// MutateFunc receives the stored task and returns the task to write back.
// It runs inside the write transaction.
type MutateFunc func(prev model.Task) (model.Task, error)

// TaskStore is the task persistence contract.
type TaskStore interface {
	ListTasksByStatus(ctx context.Context, userID string, status model.Status) ([]model.Task, error)
	GetTask(ctx context.Context, id string) (*model.Task, error)
	CreateTask(ctx context.Context, t model.Task) (model.Task, error)
	UpdateTask(ctx context.Context, userID, id string, fn MutateFunc) (model.Task, error)
	DeleteTask(ctx context.Context, userID, id string) error
	ListOpenTasksDueBefore(ctx context.Context, before string) ([]model.Task, error)
}

// ProfileStore persists user profiles and their preferences.
type ProfileStore interface {
	GetProfile(ctx context.Context, uid string) (*model.UserProfile, error)
	UpsertProfile(ctx context.Context, p model.UserProfile) (model.UserProfile, error)
	UpdatePreferences(ctx context.Context, uid string, prefs model.Preferences) error
}

// SessionStore maps bearer tokens to users.
type SessionStore interface {
	CreateSession(ctx context.Context, userID string) (model.Session, error)
	GetSession(ctx context.Context, token string) (*model.Session, error)
	DeleteSession(ctx context.Context, token string) error
}

// Store is everything the application persists.
type Store interface {
	TaskStore
	ProfileStore
	SessionStore
	Close() error
}
