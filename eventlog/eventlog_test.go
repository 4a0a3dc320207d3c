package eventlog

import (
	"bytes"
	"reflect"
	"testing"
	"time"

	"github.com/pflow-xyz/go-ptnet/engine"
)

func sampleEvents(runID string) []FiringEvent {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return []FiringEvent{
		{RunID: runID, Seq: 1, Transition: "T1", Marking: map[string]uint64{"A": 0, "B": 1}, Timestamp: base},
		{RunID: runID, Seq: 2, Transition: "T2", Marking: map[string]uint64{"A": 1, "B": 0}, Timestamp: base.Add(time.Millisecond)},
	}
}

func TestRecorderAccumulatesEvents(t *testing.T) {
	r := NewRecorder()
	if r.RunID() == "" {
		t.Fatal("expected a run id")
	}

	r.TransitionFired(engine.FiringEvent{Transition: "T1", Marking: map[string]uint64{"A": 1}, Time: time.Now()})
	r.TransitionFired(engine.FiringEvent{Transition: "T2", Marking: map[string]uint64{"A": 0}, Time: time.Now()})

	events := r.Events()
	if len(events) != 2 || r.Len() != 2 {
		t.Fatalf("recorded %d events, want 2", len(events))
	}
	if events[0].Seq != 1 || events[1].Seq != 2 {
		t.Errorf("sequence numbers %d, %d; want 1, 2", events[0].Seq, events[1].Seq)
	}
	if events[0].Transition != "T1" || events[1].Transition != "T2" {
		t.Errorf("unexpected transitions %q, %q", events[0].Transition, events[1].Transition)
	}
	if events[0].RunID != r.RunID() {
		t.Error("events must carry the recorder run id")
	}

	oldRun := r.RunID()
	r.Reset()
	if r.Len() != 0 {
		t.Error("Reset kept events")
	}
	if r.RunID() == oldRun {
		t.Error("Reset kept the run id")
	}
}

func TestCSVRoundTrip(t *testing.T) {
	events := sampleEvents("run-1")
	var buf bytes.Buffer
	if err := WriteCSV(&buf, events); err != nil {
		t.Fatal(err)
	}
	parsed, err := ReadCSV(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(events, parsed) {
		t.Errorf("round trip changed events:\nin:  %+v\nout: %+v", events, parsed)
	}
}

func TestReadCSVMalformed(t *testing.T) {
	bad := "run_id,seq,transition,timestamp,marking\nrun-1,x,T1,2024-03-01T12:00:00Z,A=1\n"
	if _, err := ReadCSV(bytes.NewReader([]byte(bad))); err == nil {
		t.Error("expected error for unparseable seq")
	}
	bad = "run_id,seq,transition,timestamp,marking\nrun-1,1,T1,2024-03-01T12:00:00Z,A\n"
	if _, err := ReadCSV(bytes.NewReader([]byte(bad))); err == nil {
		t.Error("expected error for malformed marking pair")
	}
}

func TestJSONLRoundTrip(t *testing.T) {
	events := sampleEvents("run-2")
	var buf bytes.Buffer
	if err := WriteJSONL(&buf, events); err != nil {
		t.Fatal(err)
	}
	parsed, err := ReadJSONL(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(events, parsed) {
		t.Errorf("round trip changed events:\nin:  %+v\nout: %+v", events, parsed)
	}
}

func TestReadJSONLMalformed(t *testing.T) {
	if _, err := ReadJSONL(bytes.NewReader([]byte("{not json}\n"))); err == nil {
		t.Error("expected error for malformed line")
	}
}
