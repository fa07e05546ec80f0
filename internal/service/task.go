package service

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync/atomic"

	"stationagent/internal/logger"
)

// Task is the handle of one background loop. Stop is cooperative: the loop
// observes it at its next iteration boundary or sleep.
type Task struct {
	name    string
	cancel  context.CancelFunc
	done    chan struct{}
	running atomic.Bool
}

// StartTask runs fn in its own goroutine until ctx is done or Stop is called.
func StartTask(ctx context.Context, name string, fn func(ctx context.Context)) *Task {
	ctx, cancel := context.WithCancel(ctx)
	t := &Task{name: name, cancel: cancel, done: make(chan struct{})}
	t.running.Store(true)

	go func() {
		defer close(t.done)
		defer t.running.Store(false)
		fn(ctx)
	}()
	return t
}

func (t *Task) Name() string { return t.name }

// Stop signals the task without waiting.
func (t *Task) Stop() { t.cancel() }

// Wait blocks until the current iteration has finished and the loop returned.
func (t *Task) Wait() { <-t.done }

// Done is closed when the loop has returned.
func (t *Task) Done() <-chan struct{} { return t.done }

func (t *Task) Running() bool { return t.running.Load() }

// safeIteration runs one loop iteration, turning a panic into an error.
func safeIteration(log *logger.Logger, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Debug("panic stack: %s", debug.Stack())
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}
