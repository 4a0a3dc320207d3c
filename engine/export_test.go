package engine

import (
	"errors"
	"reflect"
	"testing"

	"github.com/pflow-xyz/go-ptnet/codec"
	"github.com/pflow-xyz/go-ptnet/executor"
	"github.com/pflow-xyz/go-ptnet/petri"
)

func buildSampleEngine(t *testing.T) *Engine {
	t.Helper()
	e := New(executor.JobQueued)
	if err := e.RegisterAction("ring", func() {}); err != nil {
		t.Fatal(err)
	}
	if err := e.RegisterAction("hangup", func() {}); err != nil {
		t.Fatal(err)
	}
	if err := e.RegisterCondition("lineFree", func() bool { return true }); err != nil {
		t.Fatal(err)
	}

	if err := e.CreatePlace("Idle", 1, "", "", false); err != nil {
		t.Fatal(err)
	}
	if err := e.CreatePlace("Ringing", 0, "ring", "hangup", false); err != nil {
		t.Fatal(err)
	}
	if err := e.CreatePlace("Call", 0, "", "", true); err != nil {
		t.Fatal(err)
	}
	if err := e.CreateTransition(TransitionConfig{
		Name:                        "pickup",
		ActivationPlaces:            []string{"Call", "Idle"},
		DestinationPlaces:           []string{"Ringing"},
		InhibitorPlaces:             []string{"Ringing"},
		Conditions:                  []string{"lineFree"},
		RequireNoActionsInExecution: true,
	}); err != nil {
		t.Fatal(err)
	}
	return e
}

func registerSampleCallbacks(t *testing.T, e *Engine) {
	t.Helper()
	if err := e.RegisterAction("ring", func() {}); err != nil {
		t.Fatal(err)
	}
	if err := e.RegisterAction("hangup", func() {}); err != nil {
		t.Fatal(err)
	}
	if err := e.RegisterCondition("lineFree", func() bool { return true }); err != nil {
		t.Fatal(err)
	}
}

func TestExportDescribesNet(t *testing.T) {
	e := buildSampleEngine(t)
	doc := codec.NewDocument()
	e.Export(doc)

	if doc.ThreadOption != "JOB_QUEUE" {
		t.Errorf("thread option = %q, want JOB_QUEUE", doc.ThreadOption)
	}
	if len(doc.PlaceDocs) != 3 {
		t.Fatalf("exported %d places, want 3", len(doc.PlaceDocs))
	}
	ringing := doc.PlaceDocs[1]
	if ringing.Name != "Ringing" || ringing.OnEnterAction != "ring" || ringing.OnExitAction != "hangup" {
		t.Errorf("unexpected place export %+v", ringing)
	}
	if len(doc.TransitionDocs) != 1 {
		t.Fatalf("exported %d transitions, want 1", len(doc.TransitionDocs))
	}
	pickup := doc.TransitionDocs[0]
	if !pickup.RequireNoActionsInExecution {
		t.Error("RequireNoActionsInExecution lost in export")
	}
	wantActivation := []codec.Arc{{Place: "Call", Weight: 1}, {Place: "Idle", Weight: 1}}
	if !reflect.DeepEqual(pickup.ActivationArcs, wantActivation) {
		t.Errorf("activation arcs = %+v, want %+v", pickup.ActivationArcs, wantActivation)
	}
}

// Round trip: import(export(net)) reproduces the same structure.
func TestExportImportRoundTrip(t *testing.T) {
	src := buildSampleEngine(t)
	doc := codec.NewDocument()
	src.Export(doc)

	data, err := doc.ToJSON()
	if err != nil {
		t.Fatal(err)
	}
	parsed, err := codec.FromJSON(data)
	if err != nil {
		t.Fatal(err)
	}

	rebuilt := New(executor.Inline)
	registerSampleCallbacks(t, rebuilt)
	if err := rebuilt.Import(parsed); err != nil {
		t.Fatal(err)
	}

	if got := rebuilt.GetActionsThreadOption(); got != executor.JobQueued {
		t.Errorf("imported thread option = %v, want JobQueued", got)
	}

	second := codec.NewDocument()
	rebuilt.Export(second)
	if !reflect.DeepEqual(doc, second) {
		t.Errorf("round trip changed the net:\nfirst:  %+v\nsecond: %+v", doc, second)
	}
}

// Import replaces the whole net: previously created places are gone.
func TestImportClearsExistingNet(t *testing.T) {
	e := New(executor.Inline)
	mustCreatePlace(t, e, "old", 7, false)

	doc := codec.NewDocument()
	doc.ExportActionsThreadOption("INLINE")
	doc.ExportPlace(codec.Place{Name: "fresh", Tokens: 1})
	if err := e.Import(doc); err != nil {
		t.Fatal(err)
	}

	if _, err := e.GetNumberOfTokens("old"); !errors.Is(err, petri.ErrInvalidName) {
		t.Errorf("old place survived the import: %v", err)
	}
	if n, err := e.GetNumberOfTokens("fresh"); err != nil || n != 1 {
		t.Errorf("fresh place = %d, %v; want 1, nil", n, err)
	}
}

func TestImportFailuresLeaveNetUntouched(t *testing.T) {
	e := New(executor.Inline)
	mustCreatePlace(t, e, "keep", 4, false)

	cases := map[string]*codec.Document{
		"unknown thread option": {
			ThreadOption: "THREAD_POOL",
		},
		"unresolvable action": {
			ThreadOption: "INLINE",
			PlaceDocs:    []codec.Place{{Name: "p", OnEnterAction: "ghost"}},
		},
		"unknown arc type": {
			ThreadOption: "INLINE",
			PlaceDocs:    []codec.Place{{Name: "p"}},
			TransitionDocs: []codec.Transition{{
				Name: "t",
				Arcs: []codec.TypedArc{{Place: "p", Type: "Sideways"}},
			}},
		},
		"empty place name": {
			ThreadOption: "INLINE",
			PlaceDocs:    []codec.Place{{Name: ""}},
		},
	}
	for name, doc := range cases {
		if err := e.Import(doc); err == nil {
			t.Errorf("%s: import succeeded, want error", name)
		}
		if n, err := e.GetNumberOfTokens("keep"); err != nil || n != 4 {
			t.Errorf("%s: failed import disturbed the net: %d, %v", name, n, err)
		}
	}
}

func TestImportRejectedWhileRunning(t *testing.T) {
	e := New(executor.Inline)
	mustCreatePlace(t, e, "p", 0, true)
	e.Execute(false, nil)
	defer e.Stop()

	doc := codec.NewDocument()
	doc.ExportActionsThreadOption("INLINE")
	if err := e.Import(doc); !errors.Is(err, ErrEventLoopRunning) {
		t.Errorf("expected ErrEventLoopRunning, got %v", err)
	}
}

// Bidirectional arcs fold into matching activation and destination arcs.
func TestImportBidirectionalArc(t *testing.T) {
	doc := &codec.Document{
		ThreadOption: "INLINE",
		PlaceDocs: []codec.Place{
			{Name: "gate", Tokens: 1},
			{Name: "in", Input: true},
			{Name: "out"},
		},
		TransitionDocs: []codec.Transition{{
			Name: "t",
			Arcs: []codec.TypedArc{
				{Place: "in", Type: "Activation"},
				{Place: "gate", Weight: 1, Type: "Bidirectional"},
				{Place: "out", Type: "Destination"},
			},
		}},
	}

	e := New(executor.Inline)
	if err := e.Import(doc); err != nil {
		t.Fatal(err)
	}

	// The gate token is required and preserved across firings.
	if err := e.IncrementInputPlace("in"); err != nil {
		t.Fatal(err)
	}
	if !e.Step() {
		t.Fatal("expected firing with the gate token present")
	}
	gate, _ := e.GetNumberOfTokens("gate")
	out, _ := e.GetNumberOfTokens("out")
	if gate != 1 || out != 1 {
		t.Errorf("gate=%d out=%d, want 1 and 1", gate, out)
	}

	// Without the gate token the transition is dead.
	doc.PlaceDocs[0].Tokens = 0
	e2 := New(executor.Inline)
	if err := e2.Import(doc); err != nil {
		t.Fatal(err)
	}
	if err := e2.IncrementInputPlace("in"); err != nil {
		t.Fatal(err)
	}
	if e2.Step() {
		t.Error("fired without the bidirectional token available")
	}
}
