// Package codec defines the abstract import/export contract for net
// structure. An Exporter consumes a serialized description of the net; an
// Importer supplies the same tuples so the engine can rebuild it from
// scratch. Concrete codecs live behind these interfaces; a JSON codec is
// provided.
package codec

import (
	"fmt"

	"github.com/pflow-xyz/go-ptnet/petri"
)

// Arc is a serialized reference to a place with a weight.
type Arc struct {
	Place  string `json:"name"`
	Weight uint64 `json:"weight"`
}

// TypedArc is a standalone arc entry carrying its own type tag, one of
// Activation, Destination, Bidirectional or Inhibitor. Bidirectional
// entries fold into one activation and one destination arc of equal
// weight.
type TypedArc struct {
	Place  string `json:"name"`
	Weight uint64 `json:"weight,omitempty"`
	Type   string `json:"type"`
}

// Place is the serialized form of a place.
type Place struct {
	Name          string `json:"name"`
	Tokens        uint64 `json:"tokens"`
	Input         bool   `json:"input"`
	OnEnterAction string `json:"onEnterAction,omitempty"`
	OnExitAction  string `json:"onExitAction,omitempty"`
}

// Transition is the serialized form of a transition. Arcs may arrive
// either pre-sorted into the three lists or as typed entries in Arcs;
// Normalize folds the latter into the former.
type Transition struct {
	Name                        string     `json:"name"`
	ActivationArcs              []Arc      `json:"activationPlaces,omitempty"`
	DestinationArcs             []Arc      `json:"destinationPlaces,omitempty"`
	InhibitorArcs               []Arc      `json:"inhibitorPlaces,omitempty"`
	Arcs                        []TypedArc `json:"arcs,omitempty"`
	Conditions                  []string   `json:"activationConditions,omitempty"`
	RequireNoActionsInExecution bool       `json:"requireNoActionsInExecution"`
}

// Normalize folds typed arc entries into the three arc lists, defaulting
// absent weights to one. Unknown arc types fail with ErrImportFormat.
func (t *Transition) Normalize() error {
	for _, a := range t.Arcs {
		kind, err := petri.ParseArcType(a.Type)
		if err != nil {
			return fmt.Errorf("transition %q: %w", t.Name, err)
		}
		weight := a.Weight
		if weight == 0 {
			weight = 1
		}
		arc := Arc{Place: a.Place, Weight: weight}
		switch kind {
		case petri.Activation:
			t.ActivationArcs = append(t.ActivationArcs, arc)
		case petri.Destination:
			t.DestinationArcs = append(t.DestinationArcs, arc)
		case petri.Bidirectional:
			t.ActivationArcs = append(t.ActivationArcs, arc)
			t.DestinationArcs = append(t.DestinationArcs, arc)
		case petri.Inhibitor:
			t.InhibitorArcs = append(t.InhibitorArcs, arc)
		}
	}
	t.Arcs = nil
	return nil
}

// Exporter consumes the serialized description of a net, one element at a
// time, in registration order.
type Exporter interface {
	ExportActionsThreadOption(option string)
	ExportPlace(p Place)
	ExportTransition(t Transition)
}

// Importer supplies the serialized description of a net. Callbacks are
// resolved by name through the engine's registries; unknown names fail the
// import.
type Importer interface {
	ActionsThreadOption() (string, error)
	Places() ([]Place, error)
	Transitions() ([]Transition, error)
}
