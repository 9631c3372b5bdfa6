package cache

import (
	"context"
	"errors"
	"testing"

	"github.com/nhle/taskbuddy/internal/model"
)

func TestLoadReadsThrough(t *testing.T) {
	c, err := New(8)
	if err != nil {
		t.Fatal(err)
	}
	calls := 0
	fetch := func(context.Context) ([]model.Task, error) {
		calls++
		return []model.Task{{ID: "a"}}, nil
	}

	ctx := context.Background()
	for range 3 {
		tasks, err := c.Load(ctx, "u1", model.StatusTodo, fetch)
		if err != nil || len(tasks) != 1 {
			t.Fatalf("Load = %v, %v", tasks, err)
		}
	}
	if calls != 1 {
		t.Errorf("fetch called %d times, want 1", calls)
	}

	c.Invalidate("u1")
	if _, err := c.Load(ctx, "u1", model.StatusTodo, fetch); err != nil {
		t.Fatal(err)
	}
	if calls != 2 {
		t.Errorf("fetch called %d times after invalidate, want 2", calls)
	}
}

func TestInvalidateDuringFetchDiscardsResult(t *testing.T) {
	c, _ := New(8)
	ctx := context.Background()

	tasks, err := c.Load(ctx, "u1", model.StatusTodo, func(context.Context) ([]model.Task, error) {
		// A write lands while the read is still in flight.
		c.Invalidate("u1")
		return []model.Task{{ID: "old"}}, nil
	})
	if err != nil || len(tasks) != 1 || tasks[0].ID != "old" {
		t.Fatalf("Load = %v, %v", tasks, err)
	}
	if got, ok := c.Get("u1", model.StatusTodo); ok {
		t.Errorf("stale lane cached after invalidation: %v", got)
	}

	fresh, err := c.Load(ctx, "u1", model.StatusTodo, func(context.Context) ([]model.Task, error) {
		return []model.Task{{ID: "new"}}, nil
	})
	if err != nil || fresh[0].ID != "new" {
		t.Fatalf("reload = %v, %v", fresh, err)
	}
	if got, ok := c.Get("u1", model.StatusTodo); !ok || got[0].ID != "new" {
		t.Errorf("cached = %v, %v", got, ok)
	}
}

func TestLoadErrorIsNotCached(t *testing.T) {
	c, _ := New(8)
	boom := errors.New("boom")
	_, err := c.Load(context.Background(), "u1", model.StatusTodo, func(context.Context) ([]model.Task, error) {
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	if c.Len() != 0 {
		t.Error("failed load was cached")
	}
}

func TestInvalidateOnlyTouchesOwner(t *testing.T) {
	c, _ := New(8)
	c.Put("u1", model.StatusTodo, nil)
	c.Put("u1", model.StatusCompleted, nil)
	c.Put("u2", model.StatusTodo, nil)
	c.Invalidate("u1")
	if _, ok := c.Get("u2", model.StatusTodo); !ok {
		t.Error("other user's lane evicted")
	}
	if c.Len() != 1 {
		t.Errorf("Len = %d, want 1", c.Len())
	}
}

func TestGetReturnsCopy(t *testing.T) {
	c, _ := New(8)
	c.Put("u1", model.StatusTodo, []model.Task{{ID: "a"}})
	got, _ := c.Get("u1", model.StatusTodo)
	got[0].ID = "mutated"
	again, _ := c.Get("u1", model.StatusTodo)
	if again[0].ID != "a" {
		t.Error("cached lane was mutated through Get")
	}
}
