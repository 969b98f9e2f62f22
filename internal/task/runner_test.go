package task

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestRunnerExecutesSubmittedJobs(t *testing.T) {
	r := NewRunner(2)
	r.Start(context.Background())
	defer r.Stop()

	var count atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		if err := r.Submit(func(ctx context.Context) {
			defer wg.Done()
			count.Add(1)
		}); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}
	wg.Wait()
	if count.Load() != 10 {
		t.Fatalf("expected 10 executions, got %d", count.Load())
	}
}

func TestRunnerSubmitDoesNotBlockWhenFull(t *testing.T) {
	r := NewRunner(1)
	// Not started: nothing drains the buffer, so it fills after cap jobs.
	filled := 0
	for i := 0; i < cap(r.jobs)+1; i++ {
		if err := r.Submit(func(ctx context.Context) {}); err != nil {
			if err != ErrQueueFull {
				t.Fatalf("unexpected error: %v", err)
			}
			break
		}
		filled++
	}
	if filled != cap(r.jobs) {
		t.Fatalf("expected %d accepted jobs, got %d", cap(r.jobs), filled)
	}
}

func TestRunnerRecoverFromPanic(t *testing.T) {
	r := NewRunner(1)
	r.Start(context.Background())
	defer r.Stop()

	done := make(chan struct{})
	if err := r.Submit(func(ctx context.Context) { panic("boom") }); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if err := r.Submit(func(ctx context.Context) { close(done) }); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("worker did not survive panicking job")
	}
}

func TestRunnerStopWaitsForInflight(t *testing.T) {
	r := NewRunner(1)
	r.Start(context.Background())

	var finished atomic.Bool
	started := make(chan struct{})
	if err := r.Submit(func(ctx context.Context) {
		close(started)
		time.Sleep(50 * time.Millisecond)
		finished.Store(true)
	}); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	<-started
	r.Stop()
	if !finished.Load() {
		t.Fatalf("Stop returned before in-flight job finished")
	}
}
