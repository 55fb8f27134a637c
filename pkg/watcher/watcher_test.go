package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDebouncerMergesBurst(t *testing.T) {
	input := make(chan ChangeEvent)
	d := NewDebouncer(input, 30*time.Millisecond, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)

	input <- ChangeEvent{Type: ChangeTypeModified, Paths: []string{"topology.yaml"}}
	input <- ChangeEvent{Type: ChangeTypeModified, Paths: []string{"topology.yaml"}}
	input <- ChangeEvent{Type: ChangeTypeRemoved, Paths: []string{"topology.yaml", "extra.yaml"}}

	select {
	case event := <-d.Output():
		if event.Type != ChangeTypeRemoved {
			t.Errorf("Expected the latest change type, got %s", event.Type)
		}
		if len(event.Paths) != 2 {
			t.Errorf("Expected 2 distinct paths, got %v", event.Paths)
		}
	case <-time.After(time.Second):
		t.Fatal("Timeout waiting for debounced event")
	}

	select {
	case event := <-d.Output():
		t.Errorf("Unexpected second event %+v", event)
	case <-time.After(80 * time.Millisecond):
	}
}

func TestDebouncerMaxWait(t *testing.T) {
	input := make(chan ChangeEvent)
	d := NewDebouncer(input, time.Hour, 50*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)

	input <- ChangeEvent{Paths: []string{"topology.yaml"}}

	select {
	case <-d.Output():
	case <-time.After(time.Second):
		t.Fatal("maxWait should flush even without a quiet period")
	}
}

func TestDebouncerFlushesOnClose(t *testing.T) {
	input := make(chan ChangeEvent)
	d := NewDebouncer(input, time.Hour, time.Hour)
	d.Start(context.Background())

	input <- ChangeEvent{Paths: []string{"topology.yaml"}}
	close(input)

	if _, ok := <-d.Output(); !ok {
		t.Fatal("pending event should be flushed before the output closes")
	}
	if _, ok := <-d.Output(); ok {
		t.Error("output should be closed")
	}
}

func TestFileWatcherReportsWatchedFileOnly(t *testing.T) {
	dir := t.TempDir()
	topology := filepath.Join(dir, "topology.yaml")
	other := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(topology, []byte("nodes: []\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	fw, err := NewFileWatcher(topology)
	if err != nil {
		t.Fatalf("NewFileWatcher() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := fw.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if err := os.WriteFile(other, []byte("ignored"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(topology, []byte("nodes: [a]\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case event := <-fw.Events():
		if event.Type != ChangeTypeModified {
			t.Errorf("Expected modified, got %s", event.Type)
		}
		for _, p := range event.Paths {
			if filepath.Base(p) != "topology.yaml" {
				t.Errorf("Unexpected path %s in event", p)
			}
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timeout waiting for change event")
	}

	cancel()
	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-fw.Events():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("events channel should close after cancel")
		}
	}
}

func TestNewFileWatcherRequiresFiles(t *testing.T) {
	if _, err := NewFileWatcher(); err == nil {
		t.Error("NewFileWatcher() without files should fail")
	}
}
