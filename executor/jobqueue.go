package executor

import (
	"sync"

	"github.com/rs/zerolog"
)

// JobQueue is a FIFO of callbacks served by a single worker goroutine.
// Submission never blocks; the queue is bounded only by memory. On Close
// the worker drains every pending job before exiting.
type JobQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	jobs   []func()
	closed bool
	done   chan struct{}
	log    zerolog.Logger
}

// NewJobQueue creates a queue and starts its worker.
func NewJobQueue(log zerolog.Logger) *JobQueue {
	q := &JobQueue{
		done: make(chan struct{}),
		log:  log,
	}
	q.cond = sync.NewCond(&q.mu)
	go q.work()
	return q
}

// Submit appends a job to the tail and wakes the worker. After Close the
// job runs synchronously on the caller, so no submission is ever dropped.
func (q *JobQueue) Submit(job func()) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		q.run(job)
		return
	}
	q.jobs = append(q.jobs, job)
	q.mu.Unlock()
	q.cond.Signal()
}

// Close drains pending jobs, stops the worker and waits for it to exit.
// Close is idempotent.
func (q *JobQueue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		<-q.done
		return
	}
	q.closed = true
	q.mu.Unlock()
	q.cond.Signal()
	<-q.done
}

func (q *JobQueue) work() {
	defer close(q.done)
	for {
		q.mu.Lock()
		for len(q.jobs) == 0 && !q.closed {
			q.cond.Wait()
		}
		if len(q.jobs) == 0 {
			q.mu.Unlock()
			return
		}
		job := q.jobs[0]
		q.jobs = q.jobs[1:]
		q.mu.Unlock()
		q.run(job)
	}
}

// run executes one job, keeping a panicking callback from killing the
// worker or leaking the in-flight counter.
func (q *JobQueue) run(job func()) {
	defer func() {
		if r := recover(); r != nil {
			q.log.Error().Interface("panic", r).Msg("queued action panicked")
		}
	}()
	job()
}
