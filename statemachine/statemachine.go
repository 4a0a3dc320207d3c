// Package statemachine layers finite-state-machine semantics over the
// Petri net engine. Each state is a place holding at most one token, each
// event an input place the host increments, and each state change a
// transition consuming the event token together with the source-state
// token. An event arriving in a state with no matching transition leaves
// its token on the event place until a matching state is reached.
package statemachine

import (
	"fmt"
	"time"

	"github.com/pflow-xyz/go-ptnet/engine"
	"github.com/pflow-xyz/go-ptnet/executor"
	"github.com/pflow-xyz/go-ptnet/petri"
)

// eventPrefix keeps event place names from colliding with state names.
const eventPrefix = "event:"

// Machine is a running state machine backed by an engine.
type Machine struct {
	engine *engine.Engine
	states []string
	events map[string]bool
}

// Builder accumulates states, events and transitions, then compiles them
// into a net.
type Builder struct {
	initial     string
	states      []string
	onEnter     map[string]petri.ActionFunc
	transitions []edge
}

type edge struct {
	event string
	from  string
	to    string
	guard petri.ConditionFunc
}

// New starts a builder with the initial state.
func New(initial string) *Builder {
	return &Builder{
		initial: initial,
		states:  []string{initial},
		onEnter: make(map[string]petri.ActionFunc),
	}
}

// State declares a state.
func (b *Builder) State(name string) *Builder {
	for _, s := range b.states {
		if s == name {
			return b
		}
	}
	b.states = append(b.states, name)
	return b
}

// OnEnter attaches a callback that runs whenever the state is entered.
func (b *Builder) OnEnter(state string, action petri.ActionFunc) *Builder {
	b.State(state)
	b.onEnter[state] = action
	return b
}

// Transition declares that event moves the machine from one state to
// another.
func (b *Builder) Transition(event, from, to string) *Builder {
	return b.TransitionWhen(event, from, to, nil)
}

// TransitionWhen declares a guarded transition; it only fires while the
// guard evaluates true.
func (b *Builder) TransitionWhen(event, from, to string, guard petri.ConditionFunc) *Builder {
	b.State(from)
	b.State(to)
	b.transitions = append(b.transitions, edge{event: event, from: from, to: to, guard: guard})
	return b
}

// Build compiles the machine onto a fresh engine with the given actions
// thread option.
func (b *Builder) Build(option executor.ThreadOption, opts ...engine.Option) (*Machine, error) {
	e := engine.New(option, opts...)

	for _, state := range b.states {
		tokens := uint64(0)
		if state == b.initial {
			tokens = 1
		}
		if err := e.CreatePlaceWithActions(state, tokens, b.onEnter[state], nil, false); err != nil {
			return nil, fmt.Errorf("state %q: %w", state, err)
		}
	}

	events := make(map[string]bool)
	for _, tr := range b.transitions {
		if !events[tr.event] {
			events[tr.event] = true
			if err := e.CreatePlace(eventPrefix+tr.event, 0, "", "", true); err != nil {
				return nil, fmt.Errorf("event %q: %w", tr.event, err)
			}
		}
	}

	for _, tr := range b.transitions {
		cfg := engine.TransitionConfig{
			Name:              fmt.Sprintf("%s:%s->%s", tr.event, tr.from, tr.to),
			ActivationPlaces:  []string{eventPrefix + tr.event, tr.from},
			DestinationPlaces: []string{tr.to},
		}
		var guards []petri.ConditionFunc
		if tr.guard != nil {
			guards = append(guards, tr.guard)
		}
		if err := e.CreateTransitionWithConditions(cfg, guards); err != nil {
			return nil, err
		}
	}

	return &Machine{engine: e, states: b.states, events: events}, nil
}

// Engine returns the underlying engine, for logging, export or direct
// inspection.
func (m *Machine) Engine() *engine.Engine { return m.engine }

// Start runs the machine's event loop.
func (m *Machine) Start() { m.engine.Execute(false, nil) }

// Stop halts the machine. Pending event tokens are cleared.
func (m *Machine) Stop() { m.engine.Stop() }

// Send dispatches an event to the machine.
func (m *Machine) Send(event string) error {
	if !m.events[event] {
		return fmt.Errorf("%w: event %q", petri.ErrInvalidName, event)
	}
	return m.engine.IncrementInputPlace(eventPrefix + event)
}

// State returns the currently active state, or the empty string while a
// state change is still settling.
func (m *Machine) State() string {
	for _, state := range m.states {
		n, err := m.engine.GetNumberOfTokens(state)
		if err == nil && n > 0 {
			return state
		}
	}
	return ""
}

// WaitFor polls until the machine reaches the state or the timeout
// expires. Returns whether the state was reached.
func (m *Machine) WaitFor(state string, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if m.State() == state {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return m.State() == state
}
