package datadog

import "golang.org/x/sync/semaphore"

// Scheduler runs upload tasks in the background. Go must not block; it
// reports false when the task was refused.
type Scheduler interface {
	Go(task func()) bool
}

// SchedulerFunc adapts a function to Scheduler.
type SchedulerFunc func(task func()) bool

// Go calls f(task).
func (f SchedulerFunc) Go(task func()) bool { return f(task) }

// GoScheduler starts one goroutine per task.
type GoScheduler struct{}

// Go runs task on a new goroutine.
func (GoScheduler) Go(task func()) bool {
	go task()
	return true
}

// BoundedScheduler caps the number of tasks in flight. Tasks submitted while
// the cap is reached are refused, not queued.
type BoundedScheduler struct {
	sem *semaphore.Weighted
}

// NewBoundedScheduler allows at most limit concurrent tasks. A limit below 1
// is treated as 1.
func NewBoundedScheduler(limit int64) *BoundedScheduler {
	if limit < 1 {
		limit = 1
	}
	return &BoundedScheduler{sem: semaphore.NewWeighted(limit)}
}

// Go runs task on a new goroutine if a slot is free.
func (s *BoundedScheduler) Go(task func()) bool {
	if !s.sem.TryAcquire(1) {
		return false
	}
	go func() {
		defer s.sem.Release(1)
		task()
	}()
	return true
}
