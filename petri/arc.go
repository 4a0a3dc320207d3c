package petri

import "fmt"

// ArcType distinguishes the four arc flavors of the net.
type ArcType int

const (
	// Activation arcs consume their weight from the place when the
	// transition fires.
	Activation ArcType = iota
	// Destination arcs deposit their weight into the place.
	Destination
	// Bidirectional arcs behave as an activation and a destination arc of
	// equal weight: the tokens must be available, but the net change is zero.
	Bidirectional
	// Inhibitor arcs require the place to hold strictly fewer tokens than
	// the arc weight. They never consume.
	Inhibitor
)

// String returns the serialized name of the arc type.
func (t ArcType) String() string {
	switch t {
	case Activation:
		return "Activation"
	case Destination:
		return "Destination"
	case Bidirectional:
		return "Bidirectional"
	case Inhibitor:
		return "Inhibitor"
	default:
		return fmt.Sprintf("ArcType(%d)", int(t))
	}
}

// ParseArcType parses a serialized arc type name.
func ParseArcType(s string) (ArcType, error) {
	switch s {
	case "Activation":
		return Activation, nil
	case "Destination":
		return Destination, nil
	case "Bidirectional":
		return Bidirectional, nil
	case "Inhibitor":
		return Inhibitor, nil
	default:
		return 0, fmt.Errorf("%w: unknown arc type %q", ErrImportFormat, s)
	}
}

// Arc is a weighted edge between a transition and a place. Arcs are owned by
// the transition; the place itself is owned by the place registry.
type Arc struct {
	Place  *Place
	Weight uint64
}
