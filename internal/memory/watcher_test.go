package memory

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestWatcherEmitsAddOnNewFile(t *testing.T) {
	dir := t.TempDir()
	events := make(chan ChunkEvent, 10)
	w, err := NewWatcher(dir, zerolog.Nop(), func(e ChunkEvent) { events <- e })
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer w.Stop()

	path := filepath.Join(dir, "abc123-greet.md")
	if err := os.WriteFile(path, []byte("---\nid: abc123\n---\n\nhello"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	select {
	case e := <-events:
		if e.Kind != EventAdd || e.Path != path {
			t.Fatalf("unexpected event: %+v", e)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for add event")
	}
}

func TestWatcherIgnoresDotfiles(t *testing.T) {
	dir := t.TempDir()
	events := make(chan ChunkEvent, 10)
	w, err := NewWatcher(dir, zerolog.Nop(), func(e ChunkEvent) { events <- e })
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer w.Stop()

	if err := os.WriteFile(filepath.Join(dir, ".hidden.md"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	// Give the watcher time to (not) react, then confirm nothing arrived.
	select {
	case e := <-events:
		t.Fatalf("expected no event for dotfile, got %+v", e)
	case <-time.After(1200 * time.Millisecond):
	}
}

func TestWatcherEmitsUnlinkOnDelete(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "abc123-greet.md")
	if err := os.WriteFile(path, []byte("initial"), 0o644); err != nil {
		t.Fatal(err)
	}

	events := make(chan ChunkEvent, 10)
	w, err := NewWatcher(dir, zerolog.Nop(), func(e ChunkEvent) { events <- e })
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer w.Stop()

	// Drain the add event from the initial write being picked up, if any,
	// then remove the file and expect an unlink.
	time.Sleep(700 * time.Millisecond)
	for len(events) > 0 {
		<-events
	}

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}

	select {
	case e := <-events:
		if e.Kind != EventUnlink || e.Path != path {
			t.Fatalf("unexpected event: %+v", e)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for unlink event")
	}
}
