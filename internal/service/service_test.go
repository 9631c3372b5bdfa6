package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/nhle/taskbuddy/internal/blob"
	"github.com/nhle/taskbuddy/internal/board"
	"github.com/nhle/taskbuddy/internal/cache"
	"github.com/nhle/taskbuddy/internal/model"
	"github.com/nhle/taskbuddy/internal/notify"
	"github.com/nhle/taskbuddy/internal/store"
	"github.com/nhle/taskbuddy/internal/testutil"
)

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notify.Notification
}

func (r *recordingNotifier) Notify(_ context.Context, n notify.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return nil
}

func (r *recordingNotifier) events() []notify.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []notify.Event
	for _, n := range r.sent {
		out = append(out, n.Event)
	}
	return out
}

type fixture struct {
	svc      *TaskService
	store    *store.SQLiteStore
	files    *blob.Store
	notifier *recordingNotifier
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	st := testutil.NewTestStore(t)
	c, err := cache.New(16)
	if err != nil {
		t.Fatal(err)
	}
	n := &recordingNotifier{}
	files := blob.New(afero.NewMemMapFs(), "http://files.test")
	svc := New(st, files, c,
		WithNotifier(st, n),
		WithClock(func() time.Time { return time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC) }),
	)
	t.Cleanup(svc.Wait)
	return fixture{svc: svc, store: st, files: files, notifier: n}
}

func TestCreate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	task, err := f.svc.Create(ctx, "u1", model.TaskDraft{
		Title:       "  Plan sprint ",
		Description: "discuss #roadmap",
		Category:    model.CategoryWork,
		Tags:        []string{"team", " team", "q1"},
	}, []model.FileUpload{{Name: "agenda.md", Data: []byte("# agenda")}})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if task.Title != "Plan sprint" || task.Status != model.StatusTodo {
		t.Errorf("task = %+v", task)
	}
	wantTags := []string{"team", "q1", "roadmap"}
	if len(task.Tags) != len(wantTags) {
		t.Fatalf("tags = %v, want %v", task.Tags, wantTags)
	}
	for i := range wantTags {
		if task.Tags[i] != wantTags[i] {
			t.Errorf("tags = %v, want %v", task.Tags, wantTags)
		}
	}
	if len(task.Attachments) != 1 || task.Attachments[0].Name != "agenda.md" {
		t.Errorf("attachments = %v", task.Attachments)
	}
	if len(task.ActivityLog) != 1 || task.ActivityLog[0].Action != "created this task" {
		t.Errorf("activity = %v", task.ActivityLog)
	}
}

func TestCreateRejectsInvalidDraft(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Create(context.Background(), "u1", model.TaskDraft{Title: "", Category: model.CategoryWork}, nil)
	if !errors.Is(err, model.ErrInvalidTask) {
		t.Errorf("err = %v, want ErrInvalidTask", err)
	}
}

func TestListInvalidatedAfterWrite(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	todo, err := f.svc.ListByStatus(ctx, "u1", model.StatusTodo)
	if err != nil || len(todo) != 0 {
		t.Fatalf("ListByStatus = %v, %v", todo, err)
	}
	task, _ := f.svc.Create(ctx, "u1", model.TaskDraft{Title: "one", Category: model.CategoryWork}, nil)

	todo, _ = f.svc.ListByStatus(ctx, "u1", model.StatusTodo)
	if len(todo) != 1 {
		t.Fatalf("created task not visible: %v", todo)
	}

	if _, err := f.svc.Move(ctx, "u1", task.ID, model.StatusInProgress); err != nil {
		t.Fatal(err)
	}
	lanes, err := f.svc.Lanes(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(lanes[model.StatusTodo]) != 0 || len(lanes[model.StatusInProgress]) != 1 {
		t.Errorf("lanes after move = %v", lanes)
	}
}

func TestUpdateAppendsActivity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	task, _ := f.svc.Create(ctx, "u1", model.TaskDraft{
		Title: "Report", Category: model.CategoryWork, DueDate: "2024-01-01",
	}, nil)

	updated, err := f.svc.Update(ctx, "u1", task.ID, model.TaskUpdate{DueDate: model.StringPtr("2024-02-01")}, nil)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if len(updated.ActivityLog) != 2 {
		t.Fatalf("activity = %+v", updated.ActivityLog)
	}
	e := updated.ActivityLog[1]
	if e.Field != "dueDate" || *e.PreviousValue != "2024-01-01" || *e.NewValue != "2024-02-01" {
		t.Errorf("entry = %+v", e)
	}
	if updated.ActivityLog[0].Action != "created this task" {
		t.Error("earlier entries rewritten")
	}
}

func TestUpdateWithFiles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	task, _ := f.svc.Create(ctx, "u1", model.TaskDraft{Title: "Report", Category: model.CategoryWork},
		[]model.FileUpload{{Name: "a.txt", Data: []byte("a")}})

	updated, err := f.svc.Update(ctx, "u1", task.ID, model.TaskUpdate{},
		[]model.FileUpload{{Name: "b.txt", Data: []byte("b")}})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if len(updated.Attachments) != 2 || updated.Attachments[1].Name != "b.txt" {
		t.Errorf("attachments = %v", updated.Attachments)
	}
	log := updated.ActivityLog[1:]
	if len(log) != 2 || log[0].Action != "updated attachments" || log[1].Action != "added 1 attachment" {
		t.Errorf("activity = %+v", log)
	}
}

func TestDeleteRemovesAttachments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	task, err := f.svc.Create(ctx, "u1", model.TaskDraft{Title: "Report", Category: model.CategoryWork},
		[]model.FileUpload{{Name: "a.txt", Data: []byte("a")}})
	if err != nil {
		t.Fatal(err)
	}
	key, ok := f.files.Key(task.Attachments[0].URL)
	if !ok {
		t.Fatalf("url %q not issued by the store", task.Attachments[0].URL)
	}
	if _, err := f.files.Read(key); err != nil {
		t.Fatalf("Read before delete: %v", err)
	}

	if err := f.svc.Delete(ctx, "u1", task.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := f.files.Read(key); err == nil {
		t.Error("attachment content still present after delete")
	}
	if err := f.svc.Delete(ctx, "u1", task.ID); !store.IsNotFound(err) {
		t.Errorf("second delete err = %v, want not found", err)
	}
}

func storedFiles(t *testing.T, fs afero.Fs) int {
	t.Helper()
	entries, err := afero.ReadDir(fs, "/"+blob.Prefix)
	if errors.Is(err, afero.ErrFileNotFound) {
		return 0
	}
	if err != nil {
		t.Fatal(err)
	}
	return len(entries)
}

func TestRejectedUpdateLeavesNoFiles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	task, err := f.svc.Create(ctx, "u1", model.TaskDraft{Title: "Report", Category: model.CategoryWork}, nil)
	if err != nil {
		t.Fatal(err)
	}
	upload := []model.FileUpload{{Name: "x.bin", Data: []byte("x")}}

	tests := []struct {
		name  string
		user  string
		id    string
		u     model.TaskUpdate
		check func(error) bool
	}{
		{"other user", "u2", task.ID, model.TaskUpdate{}, store.IsPermissionError},
		{"stale version", "u1", task.ID, model.TaskUpdate{ExpectedVersion: task.Version + 5}, store.IsConflict},
		{"missing task", "u1", "nope", model.TaskUpdate{}, store.IsNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Update(ctx, tt.user, tt.id, tt.u, upload)
			if !tt.check(err) {
				t.Fatalf("err = %v", err)
			}
			if n := storedFiles(t, f.files.FS()); n != 0 {
				t.Errorf("%d files left in the attachment store", n)
			}
		})
	}

	got, err := f.svc.Get(ctx, "u1", task.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Attachments) != 0 || got.Version != task.Version {
		t.Errorf("task changed by rejected updates: %+v", got)
	}
}

func TestUpdateVersionConflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	task, _ := f.svc.Create(ctx, "u1", model.TaskDraft{Title: "x", Category: model.CategoryWork}, nil)

	_, err := f.svc.Update(ctx, "u1", task.ID, model.TaskUpdate{Title: model.StringPtr("y"), ExpectedVersion: task.Version}, nil)
	if err != nil {
		t.Fatalf("first conditional update: %v", err)
	}
	_, err = f.svc.Update(ctx, "u1", task.ID, model.TaskUpdate{Title: model.StringPtr("z"), ExpectedVersion: task.Version}, nil)
	if !store.IsConflict(err) {
		t.Errorf("err = %v, want conflict", err)
	}
	// Without a version the write wins.
	if _, err := f.svc.Update(ctx, "u1", task.ID, model.TaskUpdate{Title: model.StringPtr("z")}, nil); err != nil {
		t.Errorf("unconditional update: %v", err)
	}
}

func TestOwnership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	task, _ := f.svc.Create(ctx, "u1", model.TaskDraft{Title: "x", Category: model.CategoryWork}, nil)

	if err := f.svc.Delete(ctx, "u2", task.ID); !store.IsPermissionError(err) {
		t.Errorf("delete err = %v", err)
	}
	if _, err := f.svc.Get(ctx, "u2", task.ID); !store.IsPermissionError(err) {
		t.Errorf("get err = %v", err)
	}
	if _, err := f.svc.Update(ctx, "u2", task.ID, model.TaskUpdate{Title: model.StringPtr("mine")}, nil); !store.IsPermissionError(err) {
		t.Errorf("update err = %v", err)
	}
	if err := f.svc.Delete(ctx, "u1", task.ID); err != nil {
		t.Errorf("owner delete: %v", err)
	}
}

func TestNotificationsFollowPreference(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	testutil.SeedUser(t, f.store, "u1")
	testutil.SeedUser(t, f.store, "quiet")
	if err := f.store.UpdatePreferences(ctx, "quiet", model.Preferences{Theme: model.ThemeLight, DefaultView: model.ViewList}); err != nil {
		t.Fatal(err)
	}

	task, _ := f.svc.Create(ctx, "u1", model.TaskDraft{Title: "x", Category: model.CategoryWork}, nil)
	if _, err := f.svc.Move(ctx, "u1", task.ID, model.StatusCompleted); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.Create(ctx, "quiet", model.TaskDraft{Title: "y", Category: model.CategoryWork}, nil); err != nil {
		t.Fatal(err)
	}
	f.svc.Wait()

	// Notifications are sent concurrently, so only the set is stable.
	got := f.notifier.events()
	seen := map[notify.Event]int{}
	for _, ev := range got {
		seen[ev]++
	}
	if len(got) != 2 || seen[notify.EventCreated] != 1 || seen[notify.EventCompleted] != 1 {
		t.Errorf("events = %v", got)
	}
}

func TestActorDrivesDragAndBatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, _ := f.svc.Create(ctx, "u1", model.TaskDraft{Title: "a", Category: model.CategoryWork}, nil)
	b, _ := f.svc.Create(ctx, "u1", model.TaskDraft{Title: "b", Category: model.CategoryWork}, nil)

	drag := board.NewDragTracker(f.svc.As("u1"))
	drag.Start(a.ID, model.StatusTodo)
	if _, err := drag.Drop(ctx, model.StatusCompleted); err != nil {
		t.Fatalf("Drop: %v", err)
	}
	got, _ := f.svc.Get(ctx, "u1", a.ID)
	if got.Status != model.StatusCompleted {
		t.Errorf("status after drop = %s", got.Status)
	}

	sel := board.NewSelection()
	sel.ToggleMultiSelect()
	sel.SelectAll([]model.Task{a, b})
	if err := sel.BatchDelete(ctx, f.svc.As("u1"), func(int) bool { return true }); err != nil {
		t.Fatalf("BatchDelete: %v", err)
	}
	lanes, _ := f.svc.Lanes(ctx, "u1")
	if lanes.Total() != 0 {
		t.Errorf("tasks left after batch delete: %v", lanes)
	}
}
