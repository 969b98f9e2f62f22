package task

import (
	"context"
	"errors"
	"log"
	"sync"
)

// ErrQueueFull is returned by Submit when the job buffer is saturated.
// Callers on the request path treat it as a failed acquire rather than
// blocking the request.
var ErrQueueFull = errors.New("task queue full")

// Job is one unit of background work.
type Job func(ctx context.Context)

// Runner executes jobs on a fixed pool of workers so generation never runs
// on the request goroutine.
type Runner struct {
	jobs    chan Job
	workers int
	logger  *log.Logger

	startOnce sync.Once
	stopOnce  sync.Once
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewRunner builds a runner with the given pool size.
func NewRunner(workers int) *Runner {
	if workers <= 0 {
		workers = 1
	}
	return &Runner{
		jobs:    make(chan Job, workers*8),
		workers: workers,
		logger:  log.New(log.Writer(), "[RUNNER] ", log.LstdFlags),
	}
}

// Start launches the worker pool. Jobs inherit a context that is cancelled
// by Stop.
func (r *Runner) Start(ctx context.Context) {
	r.startOnce.Do(func() {
		ctx, r.cancel = context.WithCancel(ctx)
		for i := 0; i < r.workers; i++ {
			r.wg.Add(1)
			go r.work(ctx)
		}
	})
}

func (r *Runner) work(ctx context.Context) {
	defer r.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-r.jobs:
			if !ok {
				return
			}
			func() {
				defer func() {
					if rec := recover(); rec != nil {
						r.logger.Printf("job panic: %v", rec)
					}
				}()
				job(ctx)
			}()
		}
	}
}

// Submit enqueues a job without blocking. It fails when the runner is
// stopped or the buffer is full.
func (r *Runner) Submit(job Job) error {
	select {
	case r.jobs <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop cancels the worker context and waits for in-flight jobs to finish.
func (r *Runner) Stop() {
	r.stopOnce.Do(func() {
		if r.cancel != nil {
			r.cancel()
		}
		r.wg.Wait()
	})
}
