// Package scheduler implements an elastic worker pool: a bounded set of
// reusable goroutine workers that execute submitted tasks, backed by an
// overflow queue once the busy-worker ceiling is reached. Channel connectors
// use one pool each to run inbound dispatch off the transport's own
// goroutine.
package scheduler

import (
	"container/list"
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// ScheduleFlag influences how Schedule behaves when every worker is busy.
type ScheduleFlag int

const (
	// Normal appends the task to the tail of the overflow queue.
	Normal ScheduleFlag = iota
	// Priority inserts the task at the head of the overflow queue.
	Priority
	// NoQueue fails fast instead of queuing when no worker is immediately
	// available.
	NoQueue
)

// Task is a unit of work submitted to the scheduler.
type Task func()

// Scheduler is an elastic, bounded worker pool. The semaphore's weight is the
// number of tasks currently allowed to run; a worker holds one unit from the
// moment a task is dispatched to it until it retires, including for the whole
// of its overflow-draining loop, so at most maxBusy tasks ever run at once.
type Scheduler struct {
	minIdle int
	maxBusy int

	mu       sync.Mutex
	idle     []*worker
	all      []*worker
	maxSeen  int
	overflow *list.List // of Task
	sem      *semaphore.Weighted
}

// New creates a Scheduler that keeps at least minIdle idle workers around
// (once they have existed) and never runs more than maxBusy tasks
// concurrently. Both must be >= 1.
func New(minIdle, maxBusy int) *Scheduler {
	if minIdle < 1 {
		minIdle = 1
	}
	if maxBusy < 1 {
		maxBusy = 1
	}
	return &Scheduler{
		minIdle:  minIdle,
		maxBusy:  maxBusy,
		overflow: list.New(),
		sem:      semaphore.NewWeighted(int64(maxBusy)),
	}
}

// Schedule submits a task for asynchronous execution. See ScheduleFlag for
// the behavior once the busy-worker ceiling is reached.
func (s *Scheduler) Schedule(task Task, flag ScheduleFlag) bool {
	s.mu.Lock()

	if !s.sem.TryAcquire(1) {
		// Every run slot is held by a busy worker. Those workers drain the
		// overflow queue before giving their slot back (see finish), so a
		// queued task cannot be stranded.
		switch flag {
		case NoQueue:
			s.mu.Unlock()
			return false
		case Priority:
			s.overflow.PushFront(task)
		default:
			s.overflow.PushBack(task)
		}
		s.mu.Unlock()
		return true
	}

	var w *worker
	if len(s.idle) > 0 {
		w = s.idle[len(s.idle)-1]
		s.idle = s.idle[:len(s.idle)-1]
	} else {
		w = newWorker(s)
		s.all = append(s.all, w)
		if len(s.all) > s.maxSeen {
			s.maxSeen = len(s.all)
		}
	}
	s.mu.Unlock()
	w.execute(task)
	return true
}

// finish is called by a worker after each task. It either hands back the next
// overflow task (the worker keeps its run slot) or, with the queue empty,
// releases the slot and parks or reaps the worker. The overflow check and the
// slot release happen under one lock acquisition, so a Schedule call that
// queued because TryAcquire failed is guaranteed to have its task seen by
// whichever busy worker finishes next.
func (s *Scheduler) finish(w *worker) (Task, bool) {
	s.mu.Lock()
	if e := s.overflow.Front(); e != nil {
		s.overflow.Remove(e)
		s.mu.Unlock()
		return e.Value.(Task), true
	}

	s.sem.Release(1)
	if len(s.idle) >= s.minIdle {
		s.removeWorkerLocked(w)
		s.mu.Unlock()
		w.stop()
		return nil, false
	}
	s.idle = append(s.idle, w)
	s.mu.Unlock()
	return nil, false
}

func (s *Scheduler) removeWorkerLocked(w *worker) {
	for i, cand := range s.all {
		if cand == w {
			s.all = append(s.all[:i], s.all[i+1:]...)
			return
		}
	}
}

// WaitForExecution blocks until every worker has been reaped (no busy, no
// idle workers remain), then restores minIdle so the pool can grow again. It
// is a quiescence barrier intended for shutdown: callers must not invoke it
// from within a task scheduled on this same Scheduler, since the reaping of
// the calling worker would then depend on this very call returning.
func (s *Scheduler) WaitForExecution() {
	s.mu.Lock()
	savedMinIdle := s.minIdle
	s.minIdle = 0
	s.mu.Unlock()

	ctx := context.Background()
	for {
		// Reap whatever is idle right now; busy workers reap themselves on
		// finish while minIdle is 0.
		s.mu.Lock()
		idle := s.idle
		s.idle = nil
		for _, w := range idle {
			s.removeWorkerLocked(w)
		}
		done := len(s.all) == 0
		if done {
			s.minIdle = savedMinIdle
		}
		s.mu.Unlock()
		for _, w := range idle {
			w.stop()
		}
		if done {
			return
		}

		// Block until no task holds a run slot, then re-check: a worker that
		// just released its slot may still be parking itself idle.
		if s.sem.Acquire(ctx, int64(s.maxBusy)) == nil {
			s.sem.Release(int64(s.maxBusy))
		}
		time.Sleep(time.Millisecond)
	}
}

// GetThreadCount returns the current number of workers (idle + busy).
func (s *Scheduler) GetThreadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.all)
}

// GetMaxThreadCount returns the highest number of workers that existed
// concurrently at any point in this Scheduler's lifetime.
func (s *Scheduler) GetMaxThreadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxSeen
}

// GetBusyThreadCount returns the current number of workers executing a task.
func (s *Scheduler) GetBusyThreadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.all) - len(s.idle)
}

// GetIdleThreadCount returns the current number of idle workers.
func (s *Scheduler) GetIdleThreadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.idle)
}
