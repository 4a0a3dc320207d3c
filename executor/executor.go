// Package executor provides the interchangeable policies that decide on
// which goroutine place callbacks run, plus the FIFO job queue backing the
// queued policy.
package executor

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// ThreadOption selects the action-execution policy of an engine.
type ThreadOption int

const (
	// Inline runs callbacks synchronously on the calling goroutine.
	Inline ThreadOption = iota
	// EventLoop uses the same implementation as Inline: a callback runs
	// synchronously on the goroutine that dispatches it. Callbacks staged
	// by a firing pass of the event loop run on the event-loop goroutine,
	// inline with firing; the on-enter callback of an input place
	// incremented through IncrementInputPlace, and callbacks of a pass run
	// by Step, run on the caller's goroutine and are not moved to the loop.
	EventLoop
	// Detached spawns a new goroutine per callback.
	Detached
	// JobQueued appends callbacks to a single-consumer FIFO queue served
	// by a dedicated worker goroutine, preserving submission order.
	JobQueued
)

// String returns the serialized name of the option.
func (o ThreadOption) String() string {
	switch o {
	case Inline:
		return "INLINE"
	case EventLoop:
		return "EVENT_LOOP"
	case Detached:
		return "DETACHED"
	case JobQueued:
		return "JOB_QUEUE"
	default:
		return fmt.Sprintf("ThreadOption(%d)", int(o))
	}
}

// ParseThreadOption parses a serialized thread option name.
func ParseThreadOption(s string) (ThreadOption, error) {
	switch s {
	case "INLINE":
		return Inline, nil
	case "EVENT_LOOP":
		return EventLoop, nil
	case "DETACHED":
		return Detached, nil
	case "JOB_QUEUE":
		return JobQueued, nil
	default:
		return 0, fmt.Errorf("unknown actions thread option %q", s)
	}
}

// ActionExecutor runs a host callback under one of the four policies. The
// in-flight counter is incremented before the callback is scheduled and
// decremented on every exit path; it is the only cross-goroutine channel
// communicating "callbacks are still running".
type ActionExecutor interface {
	Execute(action func(), inflight *atomic.Int64)
}

// Drainer is implemented by executors that can wait for all submitted
// callbacks to finish.
type Drainer interface {
	Drain()
}

// New builds the executor for an option. Inline and EventLoop share an
// implementation; the engine is responsible for which goroutine calls them.
func New(option ThreadOption, log zerolog.Logger) ActionExecutor {
	switch option {
	case Detached:
		return &DetachedExecutor{log: log}
	case JobQueued:
		return &JobQueueExecutor{queue: NewJobQueue(log)}
	default:
		return InlineExecutor{}
	}
}

// InlineExecutor runs the callback synchronously. Panics propagate on the
// caller's goroutine; the counter is still released.
type InlineExecutor struct{}

func (InlineExecutor) Execute(action func(), inflight *atomic.Int64) {
	inflight.Add(1)
	defer inflight.Add(-1)
	action()
}

// DetachedExecutor runs each callback on its own goroutine.
type DetachedExecutor struct {
	log zerolog.Logger
	wg  sync.WaitGroup
}

func (e *DetachedExecutor) Execute(action func(), inflight *atomic.Int64) {
	inflight.Add(1)
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer inflight.Add(-1)
		defer func() {
			if r := recover(); r != nil {
				e.log.Error().Interface("panic", r).Msg("detached action panicked")
			}
		}()
		action()
	}()
}

// Drain blocks until every detached callback has finished.
func (e *DetachedExecutor) Drain() {
	e.wg.Wait()
}

// JobQueueExecutor serializes callbacks through a single worker goroutine.
// The counter tracks pending plus running jobs.
type JobQueueExecutor struct {
	queue *JobQueue
}

func (e *JobQueueExecutor) Execute(action func(), inflight *atomic.Int64) {
	inflight.Add(1)
	e.queue.Submit(func() {
		defer inflight.Add(-1)
		action()
	})
}

// Drain waits for the queue to empty, then stops the worker.
func (e *JobQueueExecutor) Drain() {
	e.queue.Close()
}
