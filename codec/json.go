package codec

import (
	"encoding/json"
	"fmt"

	"github.com/pflow-xyz/go-ptnet/petri"
)

// Document is an in-memory net description implementing both Exporter and
// Importer, with a JSON wire form. The root carries the actions-thread
// option, a places section and a transitions section.
type Document struct {
	ThreadOption   string       `json:"actionsThreadOption"`
	PlaceDocs      []Place      `json:"places"`
	TransitionDocs []Transition `json:"transitions"`
}

// NewDocument creates an empty document, ready to receive an export.
func NewDocument() *Document {
	return &Document{}
}

// ExportActionsThreadOption records the actions-thread policy.
func (d *Document) ExportActionsThreadOption(option string) {
	d.ThreadOption = option
}

// ExportPlace appends a place description.
func (d *Document) ExportPlace(p Place) {
	d.PlaceDocs = append(d.PlaceDocs, p)
}

// ExportTransition appends a transition description.
func (d *Document) ExportTransition(t Transition) {
	d.TransitionDocs = append(d.TransitionDocs, t)
}

// ActionsThreadOption returns the recorded actions-thread policy.
func (d *Document) ActionsThreadOption() (string, error) {
	return d.ThreadOption, nil
}

// Places returns the place descriptions in document order.
func (d *Document) Places() ([]Place, error) {
	for _, p := range d.PlaceDocs {
		if p.Name == "" {
			return nil, fmt.Errorf("%w: place with empty name", petri.ErrImportFormat)
		}
	}
	return d.PlaceDocs, nil
}

// Transitions returns the transition descriptions in document order, with
// typed arc entries already folded into the three lists.
func (d *Document) Transitions() ([]Transition, error) {
	out := make([]Transition, len(d.TransitionDocs))
	copy(out, d.TransitionDocs)
	for i := range out {
		if out[i].Name == "" {
			return nil, fmt.Errorf("%w: transition with empty name", petri.ErrImportFormat)
		}
		if err := out[i].Normalize(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// ToJSON serializes the document. Booleans appear as the literal true /
// false tokens of JSON.
func (d *Document) ToJSON() ([]byte, error) {
	return json.MarshalIndent(d, "", "  ")
}

// FromJSON parses a serialized document. Malformed input, including
// unparseable integers and booleans, fails with ErrImportFormat.
func FromJSON(data []byte) (*Document, error) {
	var d Document
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("%w: %v", petri.ErrImportFormat, err)
	}
	return &d, nil
}
