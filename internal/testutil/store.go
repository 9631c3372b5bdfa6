// Package testutil holds helpers shared by package tests.
package testutil

import (
	"context"
	"testing"

	"github.com/nhle/taskbuddy/internal/model"
	"github.com/nhle/taskbuddy/internal/store"
)

// NewTestStore creates an in-memory SQLiteStore with all migrations applied.
// It automatically closes the store when the test completes.
func NewTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	s, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}

	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing test store: %v", err)
		}
	})

	return s
}

// SeedUser creates a profile with default preferences.
func SeedUser(t *testing.T, s *store.SQLiteStore, uid string) model.UserProfile {
	t.Helper()

	p, err := s.UpsertProfile(context.Background(), model.UserProfile{
		UID:         uid,
		DisplayName: uid,
		Email:       uid + "@example.com",
	})
	if err != nil {
		t.Fatalf("seeding user %s: %v", uid, err)
	}
	return p
}

// SeedTask stores a minimal task owned by uid.
func SeedTask(t *testing.T, s *store.SQLiteStore, uid, title string, status model.Status) model.Task {
	t.Helper()

	task, err := s.CreateTask(context.Background(), model.Task{
		UserID:   uid,
		Title:    title,
		Status:   status,
		Category: model.CategoryWork,
	})
	if err != nil {
		t.Fatalf("seeding task %q: %v", title, err)
	}
	return task
}
