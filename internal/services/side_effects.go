package services

import (
	"context"
	"log"
	"sync"
)

// SideEffectJob is a unit of post-commit work. It receives a context that
// is detached from the originating request.
type SideEffectJob struct {
	Name string
	Run  func(ctx context.Context)
}

// SideEffectQueue runs audit and notification work off the request path.
// Jobs are best-effort: never retried, panics are recovered and logged, and
// a full queue drops the job instead of blocking the caller.
type SideEffectQueue struct {
	jobs chan SideEffectJob
	wg   sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

func NewSideEffectQueue(workers, buffer int) *SideEffectQueue {
	if workers <= 0 {
		workers = 1
	}
	if buffer < 0 {
		buffer = 0
	}
	q := &SideEffectQueue{jobs: make(chan SideEffectJob, buffer)}
	q.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go q.worker()
	}
	return q
}

// Enqueue schedules job and reports whether it was accepted.
func (q *SideEffectQueue) Enqueue(job SideEffectJob) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		log.Printf("[side-effects][drop] queue closed job=%s", job.Name)
		return false
	}
	select {
	case q.jobs <- job:
		return true
	default:
		log.Printf("[side-effects][drop] queue full job=%s", job.Name)
		return false
	}
}

// Close stops accepting jobs and waits for the queued ones to finish.
func (q *SideEffectQueue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.jobs)
	q.mu.Unlock()
	q.wg.Wait()
}

func (q *SideEffectQueue) worker() {
	defer q.wg.Done()
	for job := range q.jobs {
		q.run(job)
	}
}

func (q *SideEffectQueue) run(job SideEffectJob) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[side-effects][panic] job=%s: %v", job.Name, r)
		}
	}()
	job.Run(context.Background())
}
