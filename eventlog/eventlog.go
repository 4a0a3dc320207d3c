// Package eventlog records transition firings for later analysis. A
// Recorder observes an engine run and accumulates firing events that can
// be written out as CSV or JSONL, or persisted to a SQLite store. The log
// is history, not state: the engine never reads it back.
package eventlog

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pflow-xyz/go-ptnet/engine"
)

// FiringEvent is one recorded firing: which transition fired, the marking
// right after the tokens moved, and when.
type FiringEvent struct {
	RunID      string            `json:"runId"`
	Seq        int               `json:"seq"`
	Transition string            `json:"transition"`
	Marking    map[string]uint64 `json:"marking"`
	Timestamp  time.Time         `json:"timestamp"`
}

// Recorder implements engine.Observer, collecting firing events for one
// run under a fresh run identifier.
type Recorder struct {
	mu     sync.Mutex
	runID  string
	seq    int
	events []FiringEvent
}

// NewRecorder creates a recorder with a random run identifier.
func NewRecorder() *Recorder {
	return &Recorder{runID: uuid.NewString()}
}

// RunID returns the run identifier.
func (r *Recorder) RunID() string { return r.runID }

// TransitionFired records one firing event.
func (r *Recorder) TransitionFired(ev engine.FiringEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	r.events = append(r.events, FiringEvent{
		RunID:      r.runID,
		Seq:        r.seq,
		Transition: ev.Transition,
		Marking:    ev.Marking,
		Timestamp:  ev.Time,
	})
}

// Events returns a copy of the recorded events in firing order.
func (r *Recorder) Events() []FiringEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]FiringEvent, len(r.events))
	copy(out, r.events)
	return out
}

// Len returns the number of recorded events.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

// Reset clears the recorded events and starts a new run identifier.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runID = uuid.NewString()
	r.seq = 0
	r.events = nil
}

// markingPlaces returns the place names of an event's marking, sorted so
// writers emit stable output.
func markingPlaces(marking map[string]uint64) []string {
	names := make([]string, 0, len(marking))
	for name := range marking {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
