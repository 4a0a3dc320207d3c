package engine

import (
	"fmt"

	"github.com/pflow-xyz/go-ptnet/codec"
	"github.com/pflow-xyz/go-ptnet/executor"
	"github.com/pflow-xyz/go-ptnet/petri"
)

// Export writes the structure of the net — thread option, places and
// transitions with their arcs and condition names — to the exporter, in
// registration order. Anonymous callbacks and conditions have no name and
// are not exported.
func (e *Engine) Export(exp codec.Exporter) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	exp.ExportActionsThreadOption(e.threadOption.String())

	e.places.ForEach(func(name string, p *petri.Place) {
		exp.ExportPlace(codec.Place{
			Name:          name,
			Tokens:        p.Tokens(),
			Input:         p.IsInput(),
			OnEnterAction: p.OnEnterActionName(),
			OnExitAction:  p.OnExitActionName(),
		})
	})

	e.transitions.ForEach(func(name string, t *petri.Transition) {
		doc := codec.Transition{
			Name:                        name,
			ActivationArcs:              arcDocs(t.ActivationArcs()),
			DestinationArcs:             arcDocs(t.DestinationArcs()),
			InhibitorArcs:               arcDocs(t.InhibitorArcs()),
			RequireNoActionsInExecution: t.RequireNoActionsInExecution(),
		}
		for _, c := range t.Conditions() {
			if c.Name != "" {
				doc.Conditions = append(doc.Conditions, c.Name)
			}
		}
		exp.ExportTransition(doc)
	})
}

func arcDocs(arcs []petri.Arc) []codec.Arc {
	if len(arcs) == 0 {
		return nil
	}
	docs := make([]codec.Arc, 0, len(arcs))
	for _, a := range arcs {
		docs = append(docs, codec.Arc{Place: a.Place.Name(), Weight: a.Weight})
	}
	return docs
}

// Import rebuilds the net from the importer, discarding all existing
// places and transitions. Callbacks are resolved by name through the
// already-registered action and condition registries; an unresolvable name
// fails the import and leaves the net unchanged. Allowed only while the
// event loop is not running.
func (e *Engine) Import(imp codec.Importer) error {
	e.loopMu.Lock()
	defer e.loopMu.Unlock()
	if e.running {
		return ErrEventLoopRunning
	}

	optionStr, err := imp.ActionsThreadOption()
	if err != nil {
		return err
	}
	option, err := executor.ParseThreadOption(optionStr)
	if err != nil {
		return fmt.Errorf("%w: %v", petri.ErrImportFormat, err)
	}
	placeDocs, err := imp.Places()
	if err != nil {
		return err
	}
	transitionDocs, err := imp.Transitions()
	if err != nil {
		return err
	}

	// Build into fresh registries so a failed import leaves the engine in
	// its pre-call state.
	places := petri.NewRegistry[*petri.Place]()
	transitions := petri.NewRegistry[*petri.Transition]()
	var inputs []*petri.Place

	for _, p := range placeDocs {
		if err := e.buildPlace(places, &inputs, p.Name, p.Tokens, p.OnEnterAction, p.OnExitAction, p.Input); err != nil {
			return err
		}
	}
	for _, t := range transitionDocs {
		cfg := TransitionConfig{
			Name:                        t.Name,
			Conditions:                  t.Conditions,
			RequireNoActionsInExecution: t.RequireNoActionsInExecution,
		}
		cfg.ActivationPlaces, cfg.ActivationWeights = arcLists(t.ActivationArcs)
		cfg.DestinationPlaces, cfg.DestinationWeights = arcLists(t.DestinationArcs)
		cfg.InhibitorPlaces, cfg.InhibitorWeights = arcLists(t.InhibitorArcs)
		if err := e.buildTransition(places, transitions, cfg, nil); err != nil {
			return err
		}
	}

	e.mu.Lock()
	e.places = places
	e.transitions = transitions
	e.inputPlaces = inputs
	e.threadOption = option
	old := e.exec
	e.exec = nil
	e.mu.Unlock()
	drainExecutor(old)

	e.log.Info().
		Int("places", places.Len()).
		Int("transitions", transitions.Len()).
		Str("threadOption", option.String()).
		Msg("net imported")
	return nil
}

func arcLists(arcs []codec.Arc) ([]string, []uint64) {
	if len(arcs) == 0 {
		return nil, nil
	}
	names := make([]string, 0, len(arcs))
	weights := make([]uint64, 0, len(arcs))
	for _, a := range arcs {
		names = append(names, a.Place)
		weights = append(weights, a.Weight)
	}
	return names, weights
}
