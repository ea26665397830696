package watcher

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatcherTriggersOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "records.db")
	if err := os.WriteFile(path, []byte("v1"), 0600); err != nil {
		t.Fatal(err)
	}

	changed := make(chan struct{}, 1)
	w, err := New(&Config{
		Paths:            []string{path},
		DebounceDuration: 50 * time.Millisecond,
		OnChange: func() {
			select {
			case changed <- struct{}{}:
			default:
			}
		},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	if err := os.WriteFile(path, []byte("v2"), 0600); err != nil {
		t.Fatal(err)
	}

	select {
	case <-changed:
	case <-time.After(5 * time.Second):
		t.Fatal("change never reported")
	}
}

func TestWatcherSkipsMissingPaths(t *testing.T) {
	w, err := New(&Config{
		Paths:    []string{filepath.Join(t.TempDir(), "does-not-exist")},
		OnChange: func() {},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := w.Start(); err != nil {
		t.Errorf("Start over a missing path = %v, want skipped", err)
	}
	w.Stop()
}

func TestWatcherStopIdempotent(t *testing.T) {
	w, err := New(&Config{OnChange: func() {}})
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	w.Stop()
	w.Stop()

	if err := w.Start(); err == nil {
		t.Error("restart after Stop accepted")
	}
}
