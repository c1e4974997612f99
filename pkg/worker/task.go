package worker

import (
	"context"
	"fmt"
	"sync"
)

// Task is the pending result of a function run on a pool.
type Task[T any] struct {
	done chan struct{}
	once sync.Once
	val  T
	err  error
}

func newTask[T any]() *Task[T] {
	return &Task[T]{done: make(chan struct{})}
}

// Resolved returns a task that is already complete.
func Resolved[T any](val T, err error) *Task[T] {
	t := newTask[T]()
	t.resolve(val, err)
	return t
}

// Go submits fn to s and returns its pending result. A rejected submission or
// a panic inside fn completes the task with an error.
func Go[T any](s Submitter, fn func(ctx context.Context) (T, error)) *Task[T] {
	t := newTask[T]()
	err := s.Submit(func(ctx context.Context) (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("task panic: %v", r)
				var zero T
				t.resolve(zero, err)
			}
		}()
		val, err := fn(ctx)
		t.resolve(val, err)
		return err
	})
	if err != nil {
		var zero T
		t.resolve(zero, err)
	}
	return t
}

func (t *Task[T]) resolve(val T, err error) {
	t.once.Do(func() {
		t.val, t.err = val, err
		close(t.done)
	})
}

// Done is closed once the task has completed.
func (t *Task[T]) Done() <-chan struct{} { return t.done }

// Wait blocks until the task completes and returns its result.
func (t *Task[T]) Wait() (T, error) {
	<-t.done
	return t.val, t.err
}

// Value returns the result without blocking. ok is false while the task is
// pending or when it failed.
func (t *Task[T]) Value() (val T, ok bool) {
	select {
	case <-t.done:
		if t.err != nil {
			return val, false
		}
		return t.val, true
	default:
		return val, false
	}
}

// Err returns the failure of a completed task, or nil while it is pending.
func (t *Task[T]) Err() error {
	select {
	case <-t.done:
		return t.err
	default:
		return nil
	}
}
