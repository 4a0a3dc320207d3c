// Package petri implements the core Petri net data model: places holding
// token counts, typed weighted arcs, transitions with additional activation
// conditions, and the name registries that own them.
package petri

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pflow-xyz/go-ptnet/executor"
)

// ActionFunc is a host callback attached to a place, invoked when tokens
// enter or leave it.
type ActionFunc func()

// ConditionFunc is a host predicate attached to a transition. Conditions
// must be pure: they may be evaluated several times per firing cycle.
type ConditionFunc func() bool

// onEnterBlockTimeout bounds how long a staged on-enter callback waits for
// the engine to lift the block-starting-on-enter latch.
const onEnterBlockTimeout = 5 * time.Second

// PlaceConfig describes a place to be created. A non-empty action name must
// come with a resolved callback; a callback without a name is anonymous.
type PlaceConfig struct {
	Name        string
	Tokens      uint64
	OnEnterName string
	OnEnter     ActionFunc
	OnExitName  string
	OnExit      ActionFunc
	Input       bool
}

// Place holds a non-negative token count and the callbacks to run when the
// count rises or falls. All mutations are serialized by a per-place
// reader/writer lock; reads may proceed in parallel.
type Place struct {
	name        string
	isInput     bool
	onEnterName string
	onEnter     ActionFunc
	onExitName  string
	onExit      ActionFunc

	mu     sync.RWMutex
	tokens uint64

	onEnterInFlight atomic.Int64
	onExitInFlight  atomic.Int64

	blockMu   sync.Mutex
	blockedCh chan struct{} // non-nil while on-enter submission is blocked
}

// NewPlace validates the config and creates a place.
func NewPlace(cfg PlaceConfig) (*Place, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("%w: empty place name", ErrInvalidName)
	}
	if cfg.OnEnterName != "" && cfg.OnEnter == nil {
		return nil, fmt.Errorf("%w: on-enter action %q", ErrMissingCallback, cfg.OnEnterName)
	}
	if cfg.OnExitName != "" && cfg.OnExit == nil {
		return nil, fmt.Errorf("%w: on-exit action %q", ErrMissingCallback, cfg.OnExitName)
	}
	return &Place{
		name:        cfg.Name,
		isInput:     cfg.Input,
		onEnterName: cfg.OnEnterName,
		onEnter:     cfg.OnEnter,
		onExitName:  cfg.OnExitName,
		onExit:      cfg.OnExit,
		tokens:      cfg.Tokens,
	}, nil
}

// Name returns the place name.
func (p *Place) Name() string { return p.name }

// IsInput reports whether the host may increment this place directly.
func (p *Place) IsInput() bool { return p.isInput }

// OnEnterActionName returns the registered name of the on-enter action,
// empty for anonymous or absent callbacks.
func (p *Place) OnEnterActionName() string { return p.onEnterName }

// OnExitActionName returns the registered name of the on-exit action.
func (p *Place) OnExitActionName() string { return p.onExitName }

// Tokens returns the current token count.
func (p *Place) Tokens() uint64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.tokens
}

// SetTokens overwrites the token count without running callbacks. Used by
// the engine bootstrap and by input-place clearing on stop.
func (p *Place) SetTokens(n uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tokens = n
}

// Enter adds n tokens (n >= 1) and stages the on-enter callback, if any.
// The returned submission is dispatched by the caller once it no longer
// holds the engine lock, so that inline callbacks may re-enter the engine.
func (p *Place) Enter(n uint64) (*Submission, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if n == 0 {
		return nil, fmt.Errorf("%w: place %q", ErrNullTokens, p.name)
	}
	if n > math.MaxUint64-p.tokens {
		return nil, fmt.Errorf("%w: place %q", ErrOverflow, p.name)
	}
	p.tokens += n
	if p.onEnter == nil {
		return nil, nil
	}
	return &Submission{place: p, action: p.onEnter, counter: &p.onEnterInFlight, onEnter: true}, nil
}

// Exit removes n tokens and stages the on-exit callback, if any. n = 0
// resets the count to zero.
func (p *Place) Exit(n uint64) (*Submission, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if n > p.tokens {
		return nil, fmt.Errorf("%w: place %q holds %d, withdrawing %d", ErrNotEnoughTokens, p.name, p.tokens, n)
	}
	if n == 0 {
		p.tokens = 0
	} else {
		p.tokens -= n
	}
	if p.onExit == nil {
		return nil, nil
	}
	return &Submission{place: p, action: p.onExit, counter: &p.onExitInFlight}, nil
}

// IsOnEnterInFlight reports whether any on-enter callback of this place is
// still pending or running.
func (p *Place) IsOnEnterInFlight() bool {
	return p.onEnterInFlight.Load() > 0
}

// ActionsInExecution reports whether any callback of this place is still
// pending or running.
func (p *Place) ActionsInExecution() bool {
	return p.onEnterInFlight.Load() > 0 || p.onExitInFlight.Load() > 0
}

// BlockStartingOnEnter sets or lifts the latch that holds back new on-enter
// submissions, so callbacks from a prior firing can finish before the next
// one begins. Lifting the latch releases all waiters.
func (p *Place) BlockStartingOnEnter(block bool) {
	p.blockMu.Lock()
	defer p.blockMu.Unlock()
	if block {
		if p.blockedCh == nil {
			p.blockedCh = make(chan struct{})
		}
	} else if p.blockedCh != nil {
		close(p.blockedCh)
		p.blockedCh = nil
	}
}

// waitOnEnterUnblocked waits, bounded, for the on-enter latch to lift.
func (p *Place) waitOnEnterUnblocked() {
	p.blockMu.Lock()
	ch := p.blockedCh
	p.blockMu.Unlock()
	if ch == nil {
		return
	}
	select {
	case <-ch:
	case <-time.After(onEnterBlockTimeout):
	}
}

// Submission is a staged callback produced by a token movement. It is
// handed to the action executor by whoever triggered the movement, after
// every lock has been released.
type Submission struct {
	place   *Place
	action  ActionFunc
	counter *atomic.Int64
	onEnter bool
}

// Dispatch submits the staged callback to the executor. On-enter
// submissions honor the place's block-starting-on-enter latch first.
func (s *Submission) Dispatch(ex executor.ActionExecutor) {
	if s == nil || ex == nil {
		return
	}
	if s.onEnter {
		s.place.waitOnEnterUnblocked()
	}
	ex.Execute(func() { s.action() }, s.counter)
}
