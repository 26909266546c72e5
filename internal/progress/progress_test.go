package progress

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestProgressWrittenAtomically(t *testing.T) {
	dir := t.TempDir()
	r := New("ingest", filepath.Join(dir, "run.progress.json"), filepath.Join(dir, "run.cancel_processing.marker"))

	if err := r.Progress(map[string]int{"lines": 10}); err != nil {
		t.Fatalf("progress: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "run.progress.json"))
	if err != nil {
		t.Fatalf("read progress file: %v", err)
	}
	var state map[string]int
	if err := json.Unmarshal(data, &state); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if state["lines"] != 10 {
		t.Fatalf("lines = %d, want 10", state["lines"])
	}
}

func TestWatchCancelObservesMarker(t *testing.T) {
	dir := t.TempDir()
	markerPath := filepath.Join(dir, "run.cancel_processing.marker")
	r := New("ingest", filepath.Join(dir, "run.progress.json"), markerPath)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	go r.WatchCancel(ctx)

	if r.Cancelled() {
		t.Fatal("expected not cancelled before marker exists")
	}

	if err := os.WriteFile(markerPath, nil, 0o644); err != nil {
		t.Fatalf("write marker: %v", err)
	}

	deadline := time.Now().Add(300 * time.Millisecond)
	for time.Now().Before(deadline) {
		if r.Cancelled() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("expected cancellation to be observed within the poll window")
}
