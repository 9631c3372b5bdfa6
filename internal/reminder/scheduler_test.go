package reminder

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nhle/taskbuddy/internal/model"
	"github.com/nhle/taskbuddy/internal/notify"
	"github.com/nhle/taskbuddy/internal/store"
)

type fakeSource struct {
	tasks    []model.Task
	profiles map[string]model.UserProfile
	before   string
}

func (f *fakeSource) ListOpenTasksDueBefore(_ context.Context, before string) ([]model.Task, error) {
	f.before = before
	return f.tasks, nil
}

func (f *fakeSource) GetProfile(_ context.Context, uid string) (*model.UserProfile, error) {
	p, ok := f.profiles[uid]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

type countingNotifier struct {
	mu   sync.Mutex
	sent []string
	fail error
}

func (c *countingNotifier) Notify(_ context.Context, n notify.Notification) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail != nil {
		return c.fail
	}
	c.sent = append(c.sent, n.Task.ID)
	return nil
}

func newTestScheduler(src Source, n notify.Notifier, now *time.Time) *Scheduler {
	s := New(src, n, model.ReminderConfig{IntervalSec: 3600, HorizonHours: 24}, nil)
	s.now = func() time.Time { return *now }
	return s
}

func profileWith(uid string, on bool) model.UserProfile {
	return model.UserProfile{UID: uid, Email: uid + "@example.com", Preferences: model.Preferences{EmailNotifications: on}}
}

func TestRunOnceOncePerDay(t *testing.T) {
	src := &fakeSource{
		tasks: []model.Task{
			{ID: "t1", UserID: "u1", DueDate: "2024-05-02"},
			{ID: "t2", UserID: "quiet", DueDate: "2024-05-02"},
		},
		profiles: map[string]model.UserProfile{
			"u1":    profileWith("u1", true),
			"quiet": profileWith("quiet", false),
		},
	}
	n := &countingNotifier{}
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.Local)
	s := newTestScheduler(src, n, &now)
	ctx := context.Background()

	sent, err := s.RunOnce(ctx)
	if err != nil || sent != 1 {
		t.Fatalf("first run = %d, %v", sent, err)
	}
	if src.before != "2024-05-02" {
		t.Errorf("horizon date = %q", src.before)
	}

	now = now.Add(2 * time.Hour)
	if sent, _ := s.RunOnce(ctx); sent != 0 {
		t.Errorf("same-day rerun sent %d", sent)
	}

	now = now.Add(24 * time.Hour)
	if sent, _ := s.RunOnce(ctx); sent != 1 {
		t.Errorf("next-day run sent %d", sent)
	}
	if len(n.sent) != 2 {
		t.Errorf("notifications = %v", n.sent)
	}
}

func TestRunOnceReportsFailures(t *testing.T) {
	src := &fakeSource{
		tasks:    []model.Task{{ID: "t1", UserID: "ghost"}, {ID: "t2", UserID: "u1"}},
		profiles: map[string]model.UserProfile{"u1": profileWith("u1", true)},
	}
	boom := errors.New("mailbox down")
	n := &countingNotifier{fail: boom}
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.Local)
	s := newTestScheduler(src, n, &now)

	sent, err := s.RunOnce(context.Background())
	if sent != 0 || !errors.Is(err, boom) || !errors.Is(err, store.ErrNotFound) {
		t.Errorf("RunOnce = %d, %v", sent, err)
	}

	// A failed reminder is retried on the next run.
	n.fail = nil
	if sent, _ := s.RunOnce(context.Background()); sent != 1 {
		t.Errorf("retry sent %d", sent)
	}
}

func TestStartTriggerStop(t *testing.T) {
	src := &fakeSource{
		tasks:    []model.Task{{ID: "t1", UserID: "u1"}},
		profiles: map[string]model.UserProfile{"u1": profileWith("u1", true)},
	}
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.Local)
	s := newTestScheduler(src, &countingNotifier{}, &now)

	cmd := s.Start()
	if cmd == nil {
		t.Fatal("Start returned nil command")
	}
	defer s.Stop()
	if s.Start() != nil {
		t.Error("second Start should be a no-op")
	}

	msg, ok := cmd().(ResultMsg)
	if !ok || msg.Sent != 1 || msg.Error != nil {
		t.Fatalf("first result = %+v", msg)
	}

	s.TriggerNow()
	msg = s.WaitForNextResult()().(ResultMsg)
	if msg.Sent != 0 {
		t.Errorf("triggered run sent %d, want 0 (already reminded today)", msg.Sent)
	}
	if st := s.Status(); st.State != Idle || st.LastRun.IsZero() {
		t.Errorf("status = %+v", st)
	}
}
