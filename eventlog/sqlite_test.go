package eventlog

import (
	"path/filepath"
	"reflect"
	"testing"
)

func TestStoreSaveAndLoad(t *testing.T) {
	store, err := OpenStore(filepath.Join(t.TempDir(), "events.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	first := sampleEvents("run-1")
	second := sampleEvents("run-2")
	if err := store.SaveEvents(first); err != nil {
		t.Fatal(err)
	}
	if err := store.SaveEvents(second); err != nil {
		t.Fatal(err)
	}

	loaded, err := store.LoadRun("run-1")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(first, loaded) {
		t.Errorf("loaded run differs:\nin:  %+v\nout: %+v", first, loaded)
	}

	runs, err := store.Runs()
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(runs, []string{"run-2", "run-1"}) {
		t.Errorf("Runs() = %v, want newest first", runs)
	}

	if missing, err := store.LoadRun("nope"); err != nil || len(missing) != 0 {
		t.Errorf("missing run = %v, %v; want empty, nil", missing, err)
	}
}

func TestStoreRejectsDuplicateSeq(t *testing.T) {
	store, err := OpenStore(filepath.Join(t.TempDir(), "events.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	events := sampleEvents("run-1")
	if err := store.SaveEvents(events); err != nil {
		t.Fatal(err)
	}
	if err := store.SaveEvents(events); err == nil {
		t.Error("expected unique constraint violation on duplicate seq")
	}
}
