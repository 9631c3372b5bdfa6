package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/nhle/taskbuddy/internal/model"
)

// taskRow is the on-disk shape of a task; list fields are JSON columns.
type taskRow struct {
	model.Task
	TagsJSON        string `db:"tags"`
	AttachmentsJSON string `db:"attachments"`
	ActivityJSON    string `db:"activity_log"`
}

const taskColumns = `id, user_id, title, description, status, category, due_date,
	tags, attachments, activity_log, version, created_at, updated_at`

func (r taskRow) decode() (model.Task, error) {
	t := r.Task
	if err := json.Unmarshal([]byte(r.TagsJSON), &t.Tags); err != nil {
		return model.Task{}, fmt.Errorf("unmarshaling tags for task %s: %w", t.ID, err)
	}
	if err := json.Unmarshal([]byte(r.AttachmentsJSON), &t.Attachments); err != nil {
		return model.Task{}, fmt.Errorf("unmarshaling attachments for task %s: %w", t.ID, err)
	}
	if err := json.Unmarshal([]byte(r.ActivityJSON), &t.ActivityLog); err != nil {
		return model.Task{}, fmt.Errorf("unmarshaling activity log for task %s: %w", t.ID, err)
	}
	// Rows are validated on the way out so a hand-edited database cannot
	// feed an unknown status into the lanes.
	if err := t.Validate(); err != nil {
		return model.Task{}, fmt.Errorf("task %s: %w", t.ID, err)
	}
	return t, nil
}

func encodeTask(t model.Task) (taskRow, error) {
	row := taskRow{Task: t}
	for _, f := range []struct {
		v   any
		dst *string
	}{
		{nonNil(t.Tags), &row.TagsJSON},
		{nonNil(t.Attachments), &row.AttachmentsJSON},
		{nonNil(t.ActivityLog), &row.ActivityJSON},
	} {
		b, err := json.Marshal(f.v)
		if err != nil {
			return taskRow{}, fmt.Errorf("marshaling task %s: %w", t.ID, err)
		}
		*f.dst = string(b)
	}
	return row, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// ListTasksByStatus returns a user's tasks in one status, newest first.
func (s *SQLiteStore) ListTasksByStatus(
	ctx context.Context,
	userID string,
	status model.Status,
) ([]model.Task, error) {
	var rows []taskRow
	err := s.db.SelectContext(ctx, &rows,
		"SELECT "+taskColumns+" FROM tasks WHERE user_id = ? AND status = ? ORDER BY created_at DESC, rowid DESC",
		userID, status,
	)
	if err != nil {
		return nil, fmt.Errorf("listing %s tasks for %s: %w", status, userID, err)
	}
	return decodeRows(rows)
}

// ListOpenTasksDueBefore returns tasks of every user that are not completed
// and have a due date on or before the given ISO date.
func (s *SQLiteStore) ListOpenTasksDueBefore(ctx context.Context, before string) ([]model.Task, error) {
	var rows []taskRow
	err := s.db.SelectContext(ctx, &rows,
		"SELECT "+taskColumns+` FROM tasks
		WHERE status != ? AND due_date != '' AND substr(due_date, 1, 10) <= ?
		ORDER BY due_date`,
		model.StatusCompleted, before,
	)
	if err != nil {
		return nil, fmt.Errorf("listing tasks due before %s: %w", before, err)
	}
	return decodeRows(rows)
}

func decodeRows(rows []taskRow) ([]model.Task, error) {
	tasks := make([]model.Task, 0, len(rows))
	for _, r := range rows {
		t, err := r.decode()
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

// GetTask retrieves a single task by ID.
func (s *SQLiteStore) GetTask(ctx context.Context, id string) (*model.Task, error) {
	t, err := getTask(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func getTask(ctx context.Context, q sqlx.QueryerContext, id string) (model.Task, error) {
	var row taskRow
	err := sqlx.GetContext(ctx, q, &row, "SELECT "+taskColumns+" FROM tasks WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Task{}, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.Task{}, fmt.Errorf("getting task %s: %w", id, err)
	}
	return row.decode()
}

// CreateTask validates and inserts t, assigning its id, version and
// timestamps. The stored task is returned.
func (s *SQLiteStore) CreateTask(ctx context.Context, t model.Task) (model.Task, error) {
	if err := t.Validate(); err != nil {
		return model.Task{}, err
	}
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now
	t.Version = 1

	row, err := encodeTask(t)
	if err != nil {
		return model.Task{}, err
	}
	_, err = s.db.NamedExecContext(ctx, `
		INSERT INTO tasks (`+taskColumns+`) VALUES (
			:id, :user_id, :title, :description, :status, :category, :due_date,
			:tags, :attachments, :activity_log, :version, :created_at, :updated_at
		)`, row)
	if err != nil {
		return model.Task{}, fmt.Errorf("creating task: %w", err)
	}
	return t, nil
}

// UpdateTask loads the task, checks that userID owns it, lets fn produce
// the new state and writes it back, all in one transaction. The update
// timestamp is stamped and the version bumped on every write.
func (s *SQLiteStore) UpdateTask(ctx context.Context, userID, id string, fn MutateFunc) (model.Task, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return model.Task{}, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	prev, err := getTask(ctx, tx, id)
	if err != nil {
		return model.Task{}, err
	}
	if prev.UserID != userID {
		return model.Task{}, &PermissionError{TaskID: id, UserID: userID}
	}

	next, err := fn(prev)
	if err != nil {
		return model.Task{}, err
	}
	next.ID = prev.ID
	next.UserID = prev.UserID
	next.CreatedAt = prev.CreatedAt
	next.UpdatedAt = time.Now().UTC()
	next.Version = prev.Version + 1
	if err := next.Validate(); err != nil {
		return model.Task{}, err
	}

	row, err := encodeTask(next)
	if err != nil {
		return model.Task{}, err
	}
	_, err = tx.NamedExecContext(ctx, `
		UPDATE tasks SET
			title = :title, description = :description, status = :status,
			category = :category, due_date = :due_date, tags = :tags,
			attachments = :attachments, activity_log = :activity_log,
			version = :version, updated_at = :updated_at
		WHERE id = :id`, row)
	if err != nil {
		return model.Task{}, fmt.Errorf("updating task %s: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return model.Task{}, fmt.Errorf("committing task %s: %w", id, err)
	}
	return next, nil
}

// DeleteTask removes a task after checking that userID owns it.
func (s *SQLiteStore) DeleteTask(ctx context.Context, userID, id string) error {
	var owner string
	err := s.db.GetContext(ctx, &owner, "SELECT user_id FROM tasks WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("reading owner of task %s: %w", id, err)
	}
	if owner != userID {
		return &PermissionError{TaskID: id, UserID: userID}
	}

	result, err := s.db.ExecContext(ctx, "DELETE FROM tasks WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return fmt.Errorf("deleting task %s: %w", id, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	return nil
}
