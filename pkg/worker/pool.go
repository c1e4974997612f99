// Package worker runs store I/O on a small fixed set of goroutines and hands
// results back through Task values.
package worker

import (
	"context"
	"fmt"
	"sync"
)

// Job is a unit of work submitted to the Pool.
// It returns an error to indicate failure; callers may treat errors as they see fit.
type Job func(ctx context.Context) error

// Submitter accepts jobs for asynchronous execution.
type Submitter interface {
	Submit(job Job) error
}

// Pool runs jobs using a fixed number of goroutines.
type Pool struct {
	jobs    chan Job
	quit    chan struct{}
	wg      sync.WaitGroup
	workers int

	// mu is held for reading while a job is being queued and for writing
	// while the job channel is closed.
	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once

	// OnError, when set, receives every job error and recovered panic.
	OnError func(error)
}

// NewPool creates a new worker pool with the specified number of workers
// and job queue capacity.
func NewPool(workers, queue int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queue <= 0 {
		queue = workers * 2
	}
	return &Pool{
		jobs:    make(chan Job, queue),
		quit:    make(chan struct{}),
		workers: workers,
	}
}

// Workers returns the number of worker goroutines.
func (p *Pool) Workers() int { return p.workers }

// Start begins the worker goroutines and listens for jobs until ctx is done or
// Close is called. When ctx ends the pool closes itself: later submissions
// fail with ErrPoolClosed and queued jobs run with the canceled context.
func (p *Pool) Start(ctx context.Context) {
	go func() {
		select {
		case <-ctx.Done():
			p.Close()
		case <-p.quit:
		}
	}()
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case job, ok := <-p.jobs:
					if !ok {
						return
					}
					p.run(ctx, job)
				}
			}
		}()
	}
}

func (p *Pool) run(ctx context.Context, job Job) {
	defer func() {
		if r := recover(); r != nil {
			p.report(fmt.Errorf("worker: job panic: %v", r))
		}
	}()
	if err := job(ctx); err != nil {
		p.report(err)
	}
}

func (p *Pool) report(err error) {
	if p.OnError != nil {
		p.OnError(err)
	}
}

// Submit enqueues a job for processing. It blocks while the queue is full and
// returns ErrPoolClosed if the pool is or becomes closed.
func (p *Pool) Submit(job Job) error {
	return p.SubmitCtx(context.Background(), job)
}

// SubmitCtx is Submit with a bound on how long to wait for queue space.
func (p *Pool) SubmitCtx(ctx context.Context, job Job) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}
	select {
	case p.jobs <- job:
		return nil
	case <-p.quit:
		return ErrPoolClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting new jobs and waits for workers to finish. Jobs still
// queued once the workers have exited run with a canceled context, so every
// accepted job is invoked exactly once.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		close(p.quit)

		p.mu.Lock()
		p.closed = true
		close(p.jobs)
		p.mu.Unlock()

		p.wg.Wait()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		for job := range p.jobs {
			p.run(ctx, job)
		}
	})
}

// ErrPoolClosed is returned if a Submit is attempted after Close.
var ErrPoolClosed = &PoolError{"worker pool closed"}

// PoolError provides a simple typed error for pool operations.
type PoolError struct{ msg string }

func (e *PoolError) Error() string { return e.msg }
