package engine

import (
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/pflow-xyz/go-ptnet/petri"
)

// Execute starts the event loop. Calling it while the loop is already
// running is a no-op. When logMarking is set, the marking is printed to w
// (default os.Stdout) before each firing pass.
func (e *Engine) Execute(logMarking bool, w io.Writer) {
	e.loopMu.Lock()
	defer e.loopMu.Unlock()
	if e.running {
		return
	}
	if w == nil {
		w = os.Stdout
	}
	e.mu.Lock()
	e.ensureExecutorLocked()
	e.mu.Unlock()

	e.stopCh = make(chan struct{})
	e.doneCh = make(chan struct{})
	e.running = true
	e.log.Info().Str("threadOption", e.GetActionsThreadOption().String()).Msg("event loop started")
	go e.run(logMarking, w)
	e.notifyWake()
}

// Stop halts the event loop, zeroes all input places and waits for the
// executor to drain. Stop is idempotent; any callback already in flight
// runs to completion.
func (e *Engine) Stop() {
	e.loopMu.Lock()
	if e.running {
		close(e.stopCh)
		<-e.doneCh
		e.running = false
		e.log.Info().Msg("event loop stopped")
	}
	e.loopMu.Unlock()

	e.mu.Lock()
	for _, p := range e.inputPlaces {
		p.SetTokens(0)
	}
	old := e.exec
	e.exec = nil
	e.mu.Unlock()
	drainExecutor(old)
}

// IsEventLoopRunning reports whether the event loop is running.
func (e *Engine) IsEventLoopRunning() bool {
	e.loopMu.Lock()
	defer e.loopMu.Unlock()
	return e.running
}

// IncrementInputPlace adds one token to an input place and wakes the event
// loop. Non-input places reject the call.
func (e *Engine) IncrementInputPlace(name string) error {
	e.mu.Lock()
	p, err := e.places.Get(name)
	if err != nil {
		e.mu.Unlock()
		return err
	}
	if !p.IsInput() {
		e.mu.Unlock()
		return fmt.Errorf("%w: %q", petri.ErrNotInputPlace, name)
	}
	e.ensureExecutorLocked()
	sub, err := p.Enter(1)
	ex := e.exec
	e.mu.Unlock()
	if err != nil {
		return err
	}
	e.notifyWake()
	sub.Dispatch(ex)
	return nil
}

// notifyWake signals the event loop that input arrived. The buffered
// channel doubles as the new-input-received flag.
func (e *Engine) notifyWake() {
	select {
	case e.wakeCh <- struct{}{}:
	default:
	}
}

// run is the event loop body: wait for input, stop or the bounded sleep,
// then fire passes until the net is quiescent again.
func (e *Engine) run(logMarking bool, w io.Writer) {
	defer close(e.doneCh)
	for {
		select {
		case <-e.stopCh:
			return
		case <-e.wakeCh:
		case <-time.After(e.GetEventLoopSleepDuration()):
		}
		for {
			select {
			case <-e.stopCh:
				return
			default:
			}
			if !e.firingPass(logMarking, w) {
				break
			}
		}
	}
}

// Step runs a single firing pass synchronously on the calling goroutine:
// collect enabled transitions, shuffle, fire. Returns whether any
// transition fired. Useful for stepping a net without the event loop.
func (e *Engine) Step() bool {
	return e.firingPass(false, io.Discard)
}

// firingPass collects the enabled transitions under the engine lock,
// shuffles them and fires each that is still enabled. Staged callbacks and
// observer notifications are dispatched after the lock is released, so
// inline callbacks may call back into the engine.
func (e *Engine) firingPass(logMarking bool, w io.Writer) bool {
	var subs []*petri.Submission
	var events []FiringEvent

	e.mu.Lock()
	e.ensureExecutorLocked()
	if logMarking {
		e.printStateLocked(w)
	}
	enabled := e.collectEnabledLocked()
	e.rng.Shuffle(len(enabled), func(i, j int) {
		enabled[i], enabled[j] = enabled[j], enabled[i]
	})
	fired := false
	for _, t := range enabled {
		s, ok, err := t.Fire()
		subs = append(subs, s...)
		if err != nil {
			e.log.Error().Err(err).Str("transition", t.Name()).Msg("firing failed")
			continue
		}
		if !ok {
			continue
		}
		fired = true
		e.log.Debug().Str("transition", t.Name()).Msg("transition fired")
		if e.observer != nil {
			events = append(events, FiringEvent{
				Transition: t.Name(),
				Marking:    e.markingLocked(),
				Time:       time.Now(),
			})
		}
	}
	ex := e.exec
	observer := e.observer
	e.mu.Unlock()

	for _, s := range subs {
		s.Dispatch(ex)
	}
	for _, ev := range events {
		observer.TransitionFired(ev)
	}
	return fired
}

func (e *Engine) collectEnabledLocked() []*petri.Transition {
	var enabled []*petri.Transition
	e.transitions.ForEach(func(_ string, t *petri.Transition) {
		if t.IsEnabled() {
			enabled = append(enabled, t)
		}
	})
	return enabled
}

// markingLocked snapshots the token counts of every place.
func (e *Engine) markingLocked() map[string]uint64 {
	marking := make(map[string]uint64, e.places.Len())
	e.places.ForEach(func(name string, p *petri.Place) {
		marking[name] = p.Tokens()
	})
	return marking
}

// PrintState writes the current marking as "<place>: <tokens>" lines.
func (e *Engine) PrintState(w io.Writer) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	e.printStateLocked(w)
}

func (e *Engine) printStateLocked(w io.Writer) {
	names := e.places.Names()
	sort.Strings(names)
	for _, name := range names {
		p, err := e.places.Get(name)
		if err != nil {
			continue
		}
		fmt.Fprintf(w, "%s: %d\n", name, p.Tokens())
	}
	fmt.Fprintln(w)
}
