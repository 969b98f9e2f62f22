package task

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a generation task.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Key identifies one unit of generation work: one content type for one
// date key.
type Key struct {
	ContentType string
	DateKey     string
}

// Task is a snapshot of a registry entry. RecordID is set once the task
// succeeded and names the persisted row.
type Task struct {
	ID         string
	Key        Key
	Status     Status
	Error      string
	RecordID   int64
	StartedAt  time.Time
	FinishedAt time.Time
}

// Registry tracks in-flight generation so concurrent requests for the same
// key share one task. All transitions happen under one mutex, so acquire is
// atomic: exactly one caller creates, everyone else joins.
type Registry struct {
	mu        sync.Mutex
	tasks     map[Key]*Task
	retention time.Duration
	now       func() time.Time
}

// NewRegistry builds a registry that keeps finished tasks for retention
// before eviction.
func NewRegistry(retention time.Duration) *Registry {
	return &Registry{
		tasks:     make(map[Key]*Task),
		retention: retention,
		now:       time.Now,
	}
}

// Acquire returns the task for key, creating one only when the key has no
// entry at all. created is true only for the caller that created the entry.
// Finished tasks stay visible until evicted, so a passive read cannot
// restart a generation that already ran for the key.
func (r *Registry) Acquire(key Key) (Task, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if t, ok := r.tasks[key]; ok {
		return *t, false
	}
	return r.create(key), true
}

// ForceAcquire replaces a finished task with a fresh one. An in-flight
// task is joined, never duplicated.
func (r *Registry) ForceAcquire(key Key) (Task, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if t, ok := r.tasks[key]; ok {
		if t.Status == StatusPending || t.Status == StatusRunning {
			return *t, false
		}
	}
	return r.create(key), true
}

func (r *Registry) create(key Key) Task {
	t := &Task{
		ID:        uuid.NewString(),
		Key:       key,
		Status:    StatusPending,
		StartedAt: r.now(),
	}
	r.tasks[key] = t
	return *t
}

// MarkRunning moves a pending task to running. A stale task ID is ignored
// so a superseded worker cannot touch its replacement's entry.
func (r *Registry) MarkRunning(key Key, taskID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.tasks[key]; ok && t.ID == taskID && t.Status == StatusPending {
		t.Status = StatusRunning
	}
}

// Complete marks the task succeeded and records the persisted row id.
func (r *Registry) Complete(key Key, taskID string, recordID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.tasks[key]; ok && t.ID == taskID {
		t.Status = StatusSucceeded
		t.RecordID = recordID
		t.FinishedAt = r.now()
	}
}

// Fail marks the task failed with the error message.
func (r *Registry) Fail(key Key, taskID string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.tasks[key]; ok && t.ID == taskID {
		t.Status = StatusFailed
		if err != nil {
			t.Error = err.Error()
		}
		t.FinishedAt = r.now()
	}
}

// Lookup returns the current snapshot for key.
func (r *Registry) Lookup(key Key) (Task, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[key]
	if !ok {
		return Task{}, false
	}
	return *t, true
}

// Evict drops finished tasks older than the retention window and returns
// how many were removed.
func (r *Registry) Evict() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := r.now().Add(-r.retention)
	removed := 0
	for key, t := range r.tasks {
		if t.Status != StatusSucceeded && t.Status != StatusFailed {
			continue
		}
		if t.FinishedAt.Before(cutoff) {
			delete(r.tasks, key)
			removed++
		}
	}
	return removed
}
