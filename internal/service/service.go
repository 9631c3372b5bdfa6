// Package service is the task store facade used by the API and the
// terminal dashboard. Every method takes the acting user explicitly.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/sourcegraph/conc"

	"github.com/nhle/taskbuddy/internal/activity"
	"github.com/nhle/taskbuddy/internal/board"
	"github.com/nhle/taskbuddy/internal/cache"
	"github.com/nhle/taskbuddy/internal/model"
	"github.com/nhle/taskbuddy/internal/notify"
	"github.com/nhle/taskbuddy/internal/store"
	"github.com/nhle/taskbuddy/internal/tags"
)

// FileStore holds attachment content.
type FileStore interface {
	UploadAll(ctx context.Context, files []model.FileUpload) ([]model.Attachment, error)
	Remove(a model.Attachment) error
}

// ProfileGetter looks up the owner of a task for notification settings.
type ProfileGetter interface {
	GetProfile(ctx context.Context, uid string) (*model.UserProfile, error)
}

// TaskService implements task reads and writes on top of a TaskStore.
type TaskService struct {
	tasks    store.TaskStore
	files    FileStore
	cache    *cache.TaskCache
	differ   activity.Differ
	profiles ProfileGetter
	notifier notify.Notifier
	logger   *slog.Logger

	wg conc.WaitGroup
}

// Option configures a TaskService.
type Option func(*TaskService)

// WithNotifier sends created/completed notifications to owners who
// enabled email notifications.
func WithNotifier(profiles ProfileGetter, n notify.Notifier) Option {
	return func(s *TaskService) {
		s.profiles = profiles
		s.notifier = n
	}
}

// WithLogger sets the logger; slog.Default is used otherwise.
func WithLogger(l *slog.Logger) Option {
	return func(s *TaskService) { s.logger = l }
}

// WithClock fixes the time used for activity entries.
func WithClock(now func() time.Time) Option {
	return func(s *TaskService) { s.differ.Now = now }
}

// New creates a TaskService.
func New(tasks store.TaskStore, files FileStore, c *cache.TaskCache, opts ...Option) *TaskService {
	s := &TaskService{
		tasks:  tasks,
		files:  files,
		cache:  c,
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Wait blocks until background notifications have been sent.
func (s *TaskService) Wait() {
	s.wg.Wait()
}

// ListByStatus returns a user's tasks in one lane, newest first.
func (s *TaskService) ListByStatus(ctx context.Context, userID string, status model.Status) ([]model.Task, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", model.ErrInvalidTask, status)
	}
	return s.cache.Load(ctx, userID, status, func(ctx context.Context) ([]model.Task, error) {
		return s.tasks.ListTasksByStatus(ctx, userID, status)
	})
}

// Lanes loads all three raw buckets.
func (s *TaskService) Lanes(ctx context.Context, userID string) (board.Buckets, error) {
	b := make(board.Buckets, len(model.Statuses))
	for _, st := range model.Statuses {
		tasks, err := s.ListByStatus(ctx, userID, st)
		if err != nil {
			return nil, fmt.Errorf("loading %s lane: %w", st, err)
		}
		b[st] = tasks
	}
	return b, nil
}

// View loads the lanes and composes them with the given filter and sort.
func (s *TaskService) View(ctx context.Context, userID string, f board.FilterValues, sc board.SortConfig) (board.View, error) {
	b, err := s.Lanes(ctx, userID)
	if err != nil {
		return board.View{}, err
	}
	return board.Compose(b, f, sc), nil
}

// Get returns one of the user's tasks.
func (s *TaskService) Get(ctx context.Context, userID, id string) (*model.Task, error) {
	t, err := s.tasks.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.UserID != userID {
		return nil, &store.PermissionError{TaskID: id, UserID: userID}
	}
	return t, nil
}

// Create validates the draft, uploads files, and persists the task with
// its "created this task" entry.
func (s *TaskService) Create(ctx context.Context, userID string, d model.TaskDraft, files []model.FileUpload) (model.Task, error) {
	if err := d.Validate(); err != nil {
		return model.Task{}, err
	}

	attachments, err := s.upload(ctx, files)
	if err != nil {
		return model.Task{}, err
	}

	t := model.Task{
		UserID:      userID,
		Title:       strings.TrimSpace(d.Title),
		Description: d.Description,
		Status:      d.Status,
		Category:    d.Category,
		DueDate:     d.DueDate,
		Tags:        tags.Merge(d.Tags, tags.Extract(d.Title+" "+d.Description)),
		Attachments: attachments,
		ActivityLog: []model.ActivityLogItem{s.differ.Created(userID)},
	}
	created, err := s.tasks.CreateTask(ctx, t)
	if err != nil {
		s.discard(ctx, attachments)
		return model.Task{}, fmt.Errorf("creating task: %w", err)
	}
	s.cache.Invalidate(userID)

	s.logger.InfoContext(ctx, "task created", "task", created.ID, "user", userID, "files", len(attachments))
	s.notify(ctx, notify.EventCreated, created)
	return created, nil
}

// Update merges u into the task. New files are uploaded first and
// appended to the task's attachments. The activity diff is computed
// against the stored task inside the write, and a non-zero
// u.ExpectedVersion makes the write fail with a *store.ConflictError when
// the task changed in between.
func (s *TaskService) Update(ctx context.Context, userID, id string, u model.TaskUpdate, files []model.FileUpload) (model.Task, error) {
	if err := u.Validate(); err != nil {
		return model.Task{}, err
	}
	if u.IsEmpty() && len(files) == 0 {
		t, err := s.Get(ctx, userID, id)
		if err != nil {
			return model.Task{}, err
		}
		return *t, nil
	}

	if len(files) > 0 {
		// Only the owner may add content to the attachment store.
		if _, err := s.Get(ctx, userID, id); err != nil {
			return model.Task{}, err
		}
	}
	uploaded, err := s.upload(ctx, files)
	if err != nil {
		return model.Task{}, err
	}

	var prevStatus model.Status
	next, err := s.tasks.UpdateTask(ctx, userID, id, func(prev model.Task) (model.Task, error) {
		if u.ExpectedVersion != 0 && u.ExpectedVersion != prev.Version {
			return model.Task{}, &store.ConflictError{TaskID: id, Expected: u.ExpectedVersion, Actual: prev.Version}
		}
		prevStatus = prev.Status

		upd := u
		if len(uploaded) > 0 {
			base := prev.Attachments
			if u.Attachments != nil {
				base = *u.Attachments
			}
			merged := append(slices.Clone(base), uploaded...)
			upd.Attachments = &merged
		}
		if upd.Tags != nil {
			normalized := tags.Normalize(*upd.Tags)
			upd.Tags = &normalized
		}

		entries := s.differ.DiffUploads(prev, upd, len(uploaded), userID)
		next := upd.Apply(prev)
		next.ActivityLog = append(slices.Clone(prev.ActivityLog), entries...)
		return next, nil
	})
	if err != nil {
		s.discard(ctx, uploaded)
		return model.Task{}, fmt.Errorf("updating task %s: %w", id, err)
	}
	s.cache.Invalidate(userID)

	s.logger.InfoContext(ctx, "task updated", "task", id, "user", userID, "version", next.Version)
	if next.Status == model.StatusCompleted && prevStatus != model.StatusCompleted {
		s.notify(ctx, notify.EventCompleted, next)
	}
	return next, nil
}

// Move changes only the status of a task.
func (s *TaskService) Move(ctx context.Context, userID, id string, to model.Status) (model.Task, error) {
	return s.Update(ctx, userID, id, model.TaskUpdate{Status: model.StatusPtr(to)}, nil)
}

// Delete removes a task owned by userID, then the content of its
// attachments. Attachment cleanup failures are only logged.
func (s *TaskService) Delete(ctx context.Context, userID, id string) error {
	prev, err := s.tasks.GetTask(ctx, id)
	if err != nil {
		return fmt.Errorf("deleting task %s: %w", id, err)
	}
	if err := s.tasks.DeleteTask(ctx, userID, id); err != nil {
		return fmt.Errorf("deleting task %s: %w", id, err)
	}
	s.cache.Invalidate(userID)
	for _, a := range prev.Attachments {
		if err := s.files.Remove(a); err != nil {
			s.logger.WarnContext(ctx, "removing attachment", "task", id, "url", a.URL, "err", err)
		}
	}
	s.logger.InfoContext(ctx, "task deleted", "task", id, "user", userID)
	return nil
}

func (s *TaskService) upload(ctx context.Context, files []model.FileUpload) ([]model.Attachment, error) {
	if len(files) == 0 {
		return nil, nil
	}
	attachments, err := s.files.UploadAll(ctx, files)
	if err != nil {
		return nil, fmt.Errorf("uploading attachments: %w", err)
	}
	return attachments, nil
}

// discard removes content uploaded for a write that did not happen.
func (s *TaskService) discard(ctx context.Context, attachments []model.Attachment) {
	for _, a := range attachments {
		if err := s.files.Remove(a); err != nil {
			s.logger.WarnContext(ctx, "removing orphaned attachment", "url", a.URL, "err", err)
		}
	}
}

// notify sends in the background; failures are logged, never returned.
func (s *TaskService) notify(ctx context.Context, ev notify.Event, t model.Task) {
	if s.notifier == nil || s.profiles == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	s.wg.Go(func() {
		p, err := s.profiles.GetProfile(ctx, t.UserID)
		if err != nil {
			s.logger.WarnContext(ctx, "loading profile for notification", "user", t.UserID, "err", err)
			return
		}
		if !p.Preferences.EmailNotifications {
			return
		}
		n := notify.Notification{Event: ev, Task: t, To: *p, At: time.Now()}
		if err := s.notifier.Notify(ctx, n); err != nil {
			s.logger.WarnContext(ctx, "sending notification", "task", t.ID, "event", ev, "err", err)
		}
	})
}

// Actor binds a user to the service so it satisfies the narrow
// interfaces of the drag tracker and batch selection.
type Actor struct {
	svc    *TaskService
	userID string
}

// As returns an Actor for userID.
func (s *TaskService) As(userID string) Actor {
	return Actor{svc: s, userID: userID}
}

// UpdateTask implements board.Updater.
func (a Actor) UpdateTask(ctx context.Context, id string, u model.TaskUpdate) error {
	_, err := a.svc.Update(ctx, a.userID, id, u, nil)
	return err
}

// DeleteTask implements board.Deleter.
func (a Actor) DeleteTask(ctx context.Context, id string) error {
	return a.svc.Delete(ctx, a.userID, id)
}

var (
	_ board.Updater = Actor{}
	_ board.Deleter = Actor{}
)
