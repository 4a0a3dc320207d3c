// Package engine runs a Petri net: it owns the place and transition
// registries, the action executor, and the event loop that fires enabled
// transitions until the net is quiescent or stopped.
package engine

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	mrand "math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/pflow-xyz/go-ptnet/executor"
	"github.com/pflow-xyz/go-ptnet/petri"
)

// DefaultEventLoopSleep is the bounded sleep between event-loop wake-ups
// when no input notification arrives.
const DefaultEventLoopSleep = time.Millisecond

// ErrEventLoopRunning rejects operations that require a stopped loop, such
// as switching the actions thread option or importing a net.
var ErrEventLoopRunning = errors.New("ptnet: event loop is running")

// FiringEvent describes one transition firing: the transition name and the
// marking immediately after the tokens moved.
type FiringEvent struct {
	Transition string
	Marking    map[string]uint64
	Time       time.Time
}

// Observer receives a notification after every firing. Notifications are
// delivered outside the engine lock, on the goroutine that ran the firing
// pass: the event-loop goroutine, or the caller of Step.
type Observer interface {
	TransitionFired(ev FiringEvent)
}

// TransitionConfig describes a transition to be created. Weight slices may
// be empty to default to all-ones of the matching length.
type TransitionConfig struct {
	Name                        string
	ActivationPlaces            []string
	ActivationWeights           []uint64
	DestinationPlaces           []string
	DestinationWeights          []uint64
	InhibitorPlaces             []string
	InhibitorWeights            []uint64
	Conditions                  []string
	RequireNoActionsInExecution bool
}

// Engine is the public face of the net. The host builds the net with
// CreatePlace / CreateTransition / Register*, starts it with Execute, feeds
// it through IncrementInputPlace and halts it with Stop. All public
// operations may be called from any goroutine.
type Engine struct {
	// mu is the engine lock: it serializes net structure, marking and
	// executor against the firing cycle.
	mu          sync.RWMutex
	places      *petri.Registry[*petri.Place]
	transitions *petri.Registry[*petri.Transition]
	actions     *petri.Registry[petri.ActionFunc]
	conditions  *petri.Registry[petri.ConditionFunc]
	inputPlaces []*petri.Place

	threadOption executor.ThreadOption
	exec         executor.ActionExecutor
	rng          *mrand.Rand
	sleep        time.Duration
	observer     Observer
	log          zerolog.Logger

	// loopMu guards the event-loop lifecycle only.
	loopMu  sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
	wakeCh  chan struct{}
}

// Option configures an Engine at construction.
type Option func(*Engine)

// WithLogger attaches a structured logger for engine diagnostics.
func WithLogger(log zerolog.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// WithSeed fixes the firing-order shuffle seed, making runs deterministic.
func WithSeed(seed int64) Option {
	return func(e *Engine) { e.rng = mrand.New(mrand.NewSource(seed)) }
}

// WithObserver attaches a firing observer, e.g. an eventlog recorder.
func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observer = o }
}

// New creates an engine with the given actions thread option.
func New(option executor.ThreadOption, opts ...Option) *Engine {
	e := &Engine{
		places:       petri.NewRegistry[*petri.Place](),
		transitions:  petri.NewRegistry[*petri.Transition](),
		actions:      petri.NewRegistry[petri.ActionFunc](),
		conditions:   petri.NewRegistry[petri.ConditionFunc](),
		threadOption: option,
		sleep:        DefaultEventLoopSleep,
		log:          zerolog.Nop(),
		wakeCh:       make(chan struct{}, 1),
	}
	for _, o := range opts {
		o(e)
	}
	if e.rng == nil {
		e.rng = mrand.New(mrand.NewSource(cryptoSeed()))
	}
	return e
}

func cryptoSeed() int64 {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return time.Now().UnixNano()
	}
	return int64(binary.LittleEndian.Uint64(b[:]))
}

// RegisterAction registers a named callback for use by places.
func (e *Engine) RegisterAction(name string, action petri.ActionFunc) error {
	if action == nil {
		return fmt.Errorf("%w: nil action %q", petri.ErrMissingCallback, name)
	}
	return e.actions.Insert(name, action)
}

// RegisterCondition registers a named predicate for use by transitions.
func (e *Engine) RegisterCondition(name string, condition petri.ConditionFunc) error {
	if condition == nil {
		return fmt.Errorf("%w: nil condition %q", petri.ErrMissingCallback, name)
	}
	return e.conditions.Insert(name, condition)
}

// CreatePlace creates a place whose callbacks are resolved by name through
// the action registry. Empty names mean no callback.
func (e *Engine) CreatePlace(name string, tokens uint64, onEnter, onExit string, input bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.buildPlace(e.places, &e.inputPlaces, name, tokens, onEnter, onExit, input)
}

// CreatePlaceWithActions creates a place with direct, anonymous callbacks.
func (e *Engine) CreatePlaceWithActions(name string, tokens uint64, onEnter, onExit petri.ActionFunc, input bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, err := petri.NewPlace(petri.PlaceConfig{
		Name:    name,
		Tokens:  tokens,
		OnEnter: onEnter,
		OnExit:  onExit,
		Input:   input,
	})
	if err != nil {
		return err
	}
	if err := e.places.Insert(name, p); err != nil {
		return err
	}
	if p.IsInput() {
		e.inputPlaces = append(e.inputPlaces, p)
	}
	return nil
}

// buildPlace resolves named callbacks and inserts the place into the given
// registry. Shared by CreatePlace and Import.
func (e *Engine) buildPlace(places *petri.Registry[*petri.Place], inputs *[]*petri.Place,
	name string, tokens uint64, onEnter, onExit string, input bool) error {
	cfg := petri.PlaceConfig{
		Name:        name,
		Tokens:      tokens,
		OnEnterName: onEnter,
		OnExitName:  onExit,
		Input:       input,
	}
	if onEnter != "" {
		fn, err := e.actions.Get(onEnter)
		if err != nil {
			return fmt.Errorf("%w: on-enter action %q", petri.ErrMissingCallback, onEnter)
		}
		cfg.OnEnter = fn
	}
	if onExit != "" {
		fn, err := e.actions.Get(onExit)
		if err != nil {
			return fmt.Errorf("%w: on-exit action %q", petri.ErrMissingCallback, onExit)
		}
		cfg.OnExit = fn
	}
	p, err := petri.NewPlace(cfg)
	if err != nil {
		return err
	}
	if err := places.Insert(name, p); err != nil {
		return err
	}
	if p.IsInput() {
		*inputs = append(*inputs, p)
	}
	return nil
}

// CreateTransition creates a transition whose additional conditions are
// resolved by name through the condition registry.
func (e *Engine) CreateTransition(cfg TransitionConfig) error {
	return e.CreateTransitionWithConditions(cfg, nil)
}

// CreateTransitionWithConditions additionally attaches direct, anonymous
// condition predicates.
func (e *Engine) CreateTransitionWithConditions(cfg TransitionConfig, inline []petri.ConditionFunc) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.buildTransition(e.places, e.transitions, cfg, inline)
}

// buildTransition resolves places and conditions and inserts the finished
// transition. Shared by CreateTransition and Import. Nothing is inserted
// until every reference resolved, so a failed call leaves the net as it
// was.
func (e *Engine) buildTransition(places *petri.Registry[*petri.Place],
	transitions *petri.Registry[*petri.Transition], cfg TransitionConfig,
	inline []petri.ConditionFunc) error {
	activation, err := buildArcs(places, cfg.ActivationPlaces, cfg.ActivationWeights)
	if err != nil {
		return fmt.Errorf("transition %q: %w", cfg.Name, err)
	}
	destination, err := buildArcs(places, cfg.DestinationPlaces, cfg.DestinationWeights)
	if err != nil {
		return fmt.Errorf("transition %q: %w", cfg.Name, err)
	}
	inhibitor, err := buildArcs(places, cfg.InhibitorPlaces, cfg.InhibitorWeights)
	if err != nil {
		return fmt.Errorf("transition %q: %w", cfg.Name, err)
	}

	conditions := make([]petri.Condition, 0, len(cfg.Conditions)+len(inline))
	for _, name := range cfg.Conditions {
		fn, err := e.conditions.Get(name)
		if err != nil {
			return fmt.Errorf("%w: condition %q of transition %q", petri.ErrMissingCallback, name, cfg.Name)
		}
		conditions = append(conditions, petri.Condition{Name: name, Fn: fn})
	}
	for _, fn := range inline {
		conditions = append(conditions, petri.Condition{Fn: fn})
	}

	t, err := petri.NewTransition(cfg.Name, activation, destination, inhibitor,
		conditions, cfg.RequireNoActionsInExecution)
	if err != nil {
		return err
	}
	t.SetActionsIdleCheck(e.allActionsIdle)
	return transitions.Insert(cfg.Name, t)
}

// buildArcs pairs place names with weights, defaulting an empty weight
// slice to all ones.
func buildArcs(places *petri.Registry[*petri.Place], names []string, weights []uint64) ([]petri.Arc, error) {
	if len(weights) != 0 && len(weights) != len(names) {
		return nil, fmt.Errorf("%w: %d weights for %d places", petri.ErrArcWeight, len(weights), len(names))
	}
	arcs := make([]petri.Arc, 0, len(names))
	for i, name := range names {
		p, err := places.Get(name)
		if err != nil {
			return nil, err
		}
		w := uint64(1)
		if len(weights) != 0 {
			w = weights[i]
		}
		arcs = append(arcs, petri.Arc{Place: p, Weight: w})
	}
	return arcs, nil
}

// allActionsIdle reports whether no place in the net has a callback
// pending or running.
func (e *Engine) allActionsIdle() bool {
	idle := true
	e.places.ForEach(func(_ string, p *petri.Place) {
		if p.ActionsInExecution() {
			idle = false
		}
	})
	return idle
}

// GetNumberOfTokens returns the token count of a place.
func (e *Engine) GetNumberOfTokens(name string) (uint64, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	p, err := e.places.Get(name)
	if err != nil {
		return 0, err
	}
	return p.Tokens(), nil
}

// SetActionsThreadOption switches the action-execution policy. Allowed
// only while the event loop is not running.
func (e *Engine) SetActionsThreadOption(option executor.ThreadOption) error {
	e.loopMu.Lock()
	defer e.loopMu.Unlock()
	if e.running {
		return ErrEventLoopRunning
	}
	e.mu.Lock()
	old := e.exec
	e.exec = nil
	e.threadOption = option
	e.mu.Unlock()
	drainExecutor(old)
	return nil
}

// GetActionsThreadOption returns the current action-execution policy.
func (e *Engine) GetActionsThreadOption() executor.ThreadOption {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.threadOption
}

// SetEventLoopSleepDuration sets the bounded sleep between event-loop
// wake-ups.
func (e *Engine) SetEventLoopSleepDuration(d time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if d > 0 {
		e.sleep = d
	}
}

// GetEventLoopSleepDuration returns the event-loop sleep duration.
func (e *Engine) GetEventLoopSleepDuration() time.Duration {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.sleep
}

// ensureExecutorLocked lazily creates the executor for the current thread
// option. Caller holds the engine write lock.
func (e *Engine) ensureExecutorLocked() {
	if e.exec == nil {
		e.exec = executor.New(e.threadOption, e.log)
	}
}

func drainExecutor(ex executor.ActionExecutor) {
	if d, ok := ex.(executor.Drainer); ok {
		d.Drain()
	}
}
