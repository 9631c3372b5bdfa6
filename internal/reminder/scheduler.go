// Package reminder periodically notifies owners about tasks that are
// about to fall due.
package reminder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/taskbuddy/internal/model"
	"github.com/nhle/taskbuddy/internal/notify"
)

// State is the current state of the scheduler.
type State int

const (
	Idle State = iota
	Running
	Failed
)

// Status describes the last run.
type Status struct {
	State   State
	LastRun time.Time
	Sent    int
	Error   error
}

// ResultMsg is a tea.Msg sent when a run completes.
type ResultMsg struct {
	Sent  int
	Error error
}

// Source finds due tasks and their owners.
type Source interface {
	ListOpenTasksDueBefore(ctx context.Context, before string) ([]model.Task, error)
	GetProfile(ctx context.Context, uid string) (*model.UserProfile, error)
}

// runTimeout bounds a single scan-and-notify pass.
const runTimeout = 2 * time.Minute

// Scheduler scans for due tasks on a ticker and on demand.
type Scheduler struct {
	src      Source
	notifier notify.Notifier
	interval time.Duration
	horizon  time.Duration
	now      func() time.Time
	logger   *slog.Logger

	// sent maps task id to the local date it was last reminded about.
	sent map[string]string

	status    Status
	resultCh  chan ResultMsg
	triggerCh chan struct{}
	stopCh    chan struct{}
	mu        sync.Mutex
	running   bool
}

// New creates a Scheduler from the reminder config.
func New(src Source, n notify.Notifier, cfg model.ReminderConfig, logger *slog.Logger) *Scheduler {
	interval := time.Duration(cfg.IntervalSec) * time.Second
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	horizon := time.Duration(cfg.HorizonHours) * time.Hour
	if horizon <= 0 {
		horizon = 24 * time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		src:       src,
		notifier:  n,
		interval:  interval,
		horizon:   horizon,
		now:       time.Now,
		logger:    logger,
		sent:      make(map[string]string),
		resultCh:  make(chan ResultMsg, 16),
		triggerCh: make(chan struct{}, 1),
		stopCh:    make(chan struct{}),
	}
}

// Start launches the background loop, which runs once immediately, and
// returns a tea.Cmd delivering the first ResultMsg. Callers outside a
// Bubble Tea program may ignore the command.
func (s *Scheduler) Start() tea.Cmd {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.mu.Unlock()

	go s.loop()
	return s.WaitForNextResult()
}

// Stop halts the background loop.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	close(s.stopCh)
	s.running = false
}

// TriggerNow requests an immediate run. Requests made while one is
// already pending are merged.
func (s *Scheduler) TriggerNow() {
	select {
	case s.triggerCh <- struct{}{}:
	default:
	}
}

// Status returns the state of the last run.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// WaitForNextResult returns a tea.Cmd that waits for the next result.
func (s *Scheduler) WaitForNextResult() tea.Cmd {
	return func() tea.Msg {
		result, ok := <-s.resultCh
		if !ok {
			return nil
		}
		return result
	}
}

func (s *Scheduler) loop() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.runAndReport()
	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.runAndReport()
		case <-s.triggerCh:
			s.runAndReport()
		}
	}
}

func (s *Scheduler) runAndReport() {
	s.setStatus(Status{State: Running})

	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	sent, err := s.RunOnce(ctx)
	st := Status{State: Idle, LastRun: s.now(), Sent: sent, Error: err}
	if err != nil {
		st.State = Failed
		s.logger.Warn("reminder run failed", "sent", sent, "err", err)
	} else if sent > 0 {
		s.logger.Info("reminders sent", "count", sent)
	}
	s.setStatus(st)

	select {
	case s.resultCh <- ResultMsg{Sent: sent, Error: err}:
	default:
		// Drop if nobody is listening.
	}
}

// RunOnce notifies owners of every open task due within the horizon,
// at most once per task per day. Owners without email notifications
// enabled are skipped. It returns how many reminders were sent.
func (s *Scheduler) RunOnce(ctx context.Context) (int, error) {
	now := s.now()
	today := now.Format(model.DateLayout)
	before := now.Add(s.horizon).Format(model.DateLayout)

	tasks, err := s.src.ListOpenTasksDueBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("listing due tasks: %w", err)
	}

	s.mu.Lock()
	for id, day := range s.sent {
		if day != today {
			delete(s.sent, id)
		}
	}
	s.mu.Unlock()

	profiles := make(map[string]*model.UserProfile)
	var errs []error
	sent := 0
	for _, t := range tasks {
		if s.alreadySent(t.ID, today) {
			continue
		}

		p, ok := profiles[t.UserID]
		if !ok {
			p, err = s.src.GetProfile(ctx, t.UserID)
			if err != nil {
				errs = append(errs, fmt.Errorf("loading profile %s: %w", t.UserID, err))
				continue
			}
			profiles[t.UserID] = p
		}
		if !p.Preferences.EmailNotifications {
			continue
		}

		n := notify.Notification{Event: notify.EventDueSoon, Task: t, To: *p, At: now}
		if err := s.notifier.Notify(ctx, n); err != nil {
			errs = append(errs, fmt.Errorf("reminding about task %s: %w", t.ID, err))
			continue
		}
		s.markSent(t.ID, today)
		sent++
	}
	return sent, errors.Join(errs...)
}

func (s *Scheduler) alreadySent(id, day string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sent[id] == day
}

func (s *Scheduler) markSent(id, day string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent[id] = day
}

func (s *Scheduler) setStatus(st Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = st
}
