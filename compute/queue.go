// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package compute

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
)

// Queue errors.
var (
	// ErrQueueClosed is returned by Submit after Close.
	ErrQueueClosed = errors.New("compute: queue closed")

	// ErrTaskPanicked wraps a panic recovered from a task's Run function.
	ErrTaskPanicked = errors.New("compute: task panicked")
)

// Task is one unit of work submitted to a Queue.
type Task struct {
	// Label names the task in logs.
	Label string

	// Run executes on a queue worker.
	Run func() error

	// Done, if set, receives Run's result on the same worker goroutine.
	Done func(error)
}

// Queue executes submitted tasks on its own worker goroutines, standing in
// for a hardware command queue: Submit returns as soon as the task is
// queued and completion is reported from a worker.
//
// The queue is unbounded so that a task's Done may submit follow-up work
// (a pipeline feeding its next stage) without deadlocking the workers.
// Callers bound the work in flight with their buffer pools.
//
// With one worker (the default) tasks complete in submission order. With
// more workers completion order is not guaranteed.
//
// Thread safety: All methods are safe for concurrent use.
type Queue struct {
	mu   sync.Mutex
	work *sync.Cond // signalled when tasks grows or the queue closes
	idle *sync.Cond // signalled when pending drops to zero
	// tasks is the FIFO of queued tasks not yet picked up by a worker.
	tasks []Task
	// pending counts queued plus running tasks.
	pending int
	closed  bool

	wg sync.WaitGroup
}

// NewQueue starts a queue with the given number of workers. If workers is
// 0, one worker is used; a negative value means GOMAXPROCS.
func NewQueue(workers int) *Queue {
	switch {
	case workers < 0:
		workers = runtime.GOMAXPROCS(0)
	case workers == 0:
		workers = 1
	}

	q := &Queue{}
	q.work = sync.NewCond(&q.mu)
	q.idle = sync.NewCond(&q.mu)

	q.wg.Add(workers)
	for range workers {
		go q.worker()
	}
	return q
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for {
		q.mu.Lock()
		for len(q.tasks) == 0 && !q.closed {
			q.work.Wait()
		}
		if len(q.tasks) == 0 {
			q.mu.Unlock()
			return
		}
		t := q.tasks[0]
		q.tasks[0] = Task{}
		q.tasks = q.tasks[1:]
		q.mu.Unlock()

		err := run(t)
		if t.Done != nil {
			t.Done(err)
		}

		q.mu.Lock()
		q.pending--
		if q.pending == 0 {
			q.idle.Broadcast()
		}
		q.mu.Unlock()
	}
}

func run(t Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s: %v", ErrTaskPanicked, t.Label, r)
			slogger().Warn("compute: task panicked", "task", t.Label, "panic", r)
		}
	}()
	if t.Run == nil {
		return nil
	}
	return t.Run()
}

// Submit queues t and returns without waiting for it to run.
func (q *Queue) Submit(t Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}
	q.tasks = append(q.tasks, t)
	q.pending++
	q.work.Signal()
	return nil
}

// Pending returns the number of submitted tasks that have not completed.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pending
}

// Wait blocks until every submitted task has completed, Done included.
// Must not be called from a task's Run or Done.
func (q *Queue) Wait() {
	q.mu.Lock()
	for q.pending > 0 {
		q.idle.Wait()
	}
	q.mu.Unlock()
}

// Close stops accepting tasks, lets the workers finish everything already
// queued and waits for them to exit. Close is idempotent and must not be
// called from a task.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.work.Broadcast()
	q.mu.Unlock()

	q.wg.Wait()
}
