package petri

import "fmt"

// Condition pairs an optional registry name with its predicate. Anonymous
// inline conditions carry an empty name.
type Condition struct {
	Name string
	Fn   ConditionFunc
}

// Transition moves tokens between places when it fires. Its arcs hold
// registry-owned places; the transition never controls place lifetime.
type Transition struct {
	name         string
	activations  []Arc
	destinations []Arc
	inhibitors   []Arc
	conditions   []Condition

	// Disables the transition while any place callback is still running.
	requireNoActionsInExecution bool

	// Net-wide check installed by the engine; nil means always idle.
	actionsIdle func() bool
}

// NewTransition validates the arc lists and creates a transition. The same
// place may not appear twice within one list; arc order is preserved as
// given.
func NewTransition(name string, activations, destinations, inhibitors []Arc,
	conditions []Condition, requireNoActionsInExecution bool) (*Transition, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: empty transition name", ErrInvalidName)
	}
	for _, arcs := range [][]Arc{activations, destinations, inhibitors} {
		if err := checkArcs(name, arcs); err != nil {
			return nil, err
		}
	}
	for _, c := range conditions {
		if c.Fn == nil {
			return nil, fmt.Errorf("%w: condition %q of transition %q", ErrMissingCallback, c.Name, name)
		}
	}
	return &Transition{
		name:         name,
		activations:  activations,
		destinations: destinations,
		inhibitors:   inhibitors,
		conditions:   conditions,

		requireNoActionsInExecution: requireNoActionsInExecution,
	}, nil
}

func checkArcs(transition string, arcs []Arc) error {
	seen := make(map[*Place]struct{}, len(arcs))
	for _, a := range arcs {
		if a.Place == nil {
			return fmt.Errorf("%w: nil place in transition %q", ErrInvalidName, transition)
		}
		if a.Weight == 0 {
			return fmt.Errorf("%w: place %q in transition %q", ErrArcWeight, a.Place.Name(), transition)
		}
		if _, ok := seen[a.Place]; ok {
			return fmt.Errorf("%w: place %q in transition %q", ErrRepeatedArcPlace, a.Place.Name(), transition)
		}
		seen[a.Place] = struct{}{}
	}
	return nil
}

// Name returns the transition name.
func (t *Transition) Name() string { return t.name }

// ActivationArcs returns the activation arc list in construction order.
func (t *Transition) ActivationArcs() []Arc { return t.activations }

// DestinationArcs returns the destination arc list in construction order.
func (t *Transition) DestinationArcs() []Arc { return t.destinations }

// InhibitorArcs returns the inhibitor arc list in construction order.
func (t *Transition) InhibitorArcs() []Arc { return t.inhibitors }

// Conditions returns the additional activation conditions.
func (t *Transition) Conditions() []Condition { return t.conditions }

// RequireNoActionsInExecution reports whether the transition is held back
// while callbacks are in flight anywhere in the net.
func (t *Transition) RequireNoActionsInExecution() bool { return t.requireNoActionsInExecution }

// SetActionsIdleCheck installs the net-wide "no callbacks in flight" probe
// used by RequireNoActionsInExecution transitions.
func (t *Transition) SetActionsIdleCheck(idle func() bool) { t.actionsIdle = idle }

// IsEnabled evaluates the enablement rule: every activation place holds at
// least the arc weight, every inhibitor place strictly fewer, and every
// additional condition is true.
func (t *Transition) IsEnabled() bool {
	for _, a := range t.activations {
		if a.Place.Tokens() < a.Weight {
			return false
		}
	}
	for _, a := range t.inhibitors {
		if a.Place.Tokens() >= a.Weight {
			return false
		}
	}
	if t.requireNoActionsInExecution && t.actionsIdle != nil && !t.actionsIdle() {
		return false
	}
	for _, c := range t.conditions {
		if !c.Fn() {
			return false
		}
	}
	return true
}

// Fire re-checks enablement and, if still enabled, withdraws every
// activation weight and then deposits every destination weight, staging the
// resulting callbacks. A place listed as both activation and destination
// sees the withdrawal before the deposit, and both callbacks fire even when
// the net token change is zero.
//
// The caller must hold the engine write lock so the marking cannot move
// between the check and the token updates.
func (t *Transition) Fire() ([]*Submission, bool, error) {
	if !t.IsEnabled() {
		return nil, false, nil
	}
	subs := make([]*Submission, 0, len(t.activations)+len(t.destinations))
	for _, a := range t.activations {
		s, err := a.Place.Exit(a.Weight)
		if err != nil {
			return subs, false, fmt.Errorf("firing %q: %w", t.name, err)
		}
		if s != nil {
			subs = append(subs, s)
		}
	}
	for _, a := range t.destinations {
		s, err := a.Place.Enter(a.Weight)
		if err != nil {
			return subs, false, fmt.Errorf("firing %q: %w", t.name, err)
		}
		if s != nil {
			subs = append(subs, s)
		}
	}
	return subs, true, nil
}
