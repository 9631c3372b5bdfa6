// Package cache keeps recently loaded status lanes in memory.
package cache

import (
	"context"
	"fmt"
	"slices"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/nhle/taskbuddy/internal/model"
)

type key struct {
	userID string
	status model.Status
}

// FetchFunc loads a lane from the store on a miss.
type FetchFunc func(ctx context.Context) ([]model.Task, error)

// TaskCache is a read-through cache keyed by (user, status). Every
// successful write must call Invalidate for the owner.
type TaskCache struct {
	lru *lru.Cache[key, []model.Task]

	mu sync.Mutex
	// gen counts invalidations per user; a fetch that started under an
	// older generation must not be stored.
	gen map[string]uint64
}

// New creates a cache holding at most size lanes.
func New(size int) (*TaskCache, error) {
	c, err := lru.New[key, []model.Task](size)
	if err != nil {
		return nil, fmt.Errorf("creating task cache: %w", err)
	}
	return &TaskCache{lru: c, gen: make(map[string]uint64)}, nil
}

// Get returns a copy of a cached lane.
func (c *TaskCache) Get(userID string, status model.Status) ([]model.Task, bool) {
	tasks, ok := c.lru.Get(key{userID, status})
	if !ok {
		return nil, false
	}
	return slices.Clone(tasks), true
}

// Put stores a copy of a lane.
func (c *TaskCache) Put(userID string, status model.Status, tasks []model.Task) {
	c.lru.Add(key{userID, status}, slices.Clone(tasks))
}

// Load returns the cached lane or fetches and caches it.
func (c *TaskCache) Load(ctx context.Context, userID string, status model.Status, fetch FetchFunc) ([]model.Task, error) {
	if tasks, ok := c.Get(userID, status); ok {
		return tasks, nil
	}
	start := c.generation(userID)
	tasks, err := fetch(ctx)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen[userID] == start {
		c.lru.Add(key{userID, status}, slices.Clone(tasks))
	}
	return tasks, nil
}

func (c *TaskCache) generation(userID string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen[userID]
}

// Invalidate drops every lane of a user and discards fetches still in
// flight for them.
func (c *TaskCache) Invalidate(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen[userID]++
	for _, s := range model.Statuses {
		c.lru.Remove(key{userID, s})
	}
}

// Len returns the number of cached lanes.
func (c *TaskCache) Len() int { return c.lru.Len() }
