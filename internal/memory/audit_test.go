package memory

import (
	"strings"
	"testing"
	"time"
)

func TestAuditLogInitializeCreatesFile(t *testing.T) {
	dir := t.TempDir()
	log := NewAuditLog(dir)
	if err := log.Initialize(); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	text, err := log.ReadSince(nil)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if text != "" {
		t.Fatalf("expected empty log, got %q", text)
	}
}

func TestAuditLogAppendAndRead(t *testing.T) {
	dir := t.TempDir()
	log := NewAuditLog(dir)
	if err := log.Initialize(); err != nil {
		t.Fatal(err)
	}

	if err := log.Log(ActionStore, "abc123", "type=fact"); err != nil {
		t.Fatalf("log: %v", err)
	}
	if err := log.Log(ActionInit, "", "loaded 0 chunks"); err != nil {
		t.Fatalf("log: %v", err)
	}

	text, err := log.ReadSince(nil)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), text)
	}
	if !strings.Contains(lines[0], ActionStore) || !strings.Contains(lines[0], "abc123") {
		t.Fatalf("unexpected first line: %q", lines[0])
	}
}

func TestAuditLogReadSinceFilters(t *testing.T) {
	dir := t.TempDir()
	log := NewAuditLog(dir)
	if err := log.Initialize(); err != nil {
		t.Fatal(err)
	}
	if err := log.Log(ActionStore, "abc123", ""); err != nil {
		t.Fatal(err)
	}

	cutoff := time.Now().UTC().Add(time.Hour)
	text, err := log.ReadSince(&cutoff)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if text != "" {
		t.Fatalf("expected no entries after future cutoff, got %q", text)
	}
}

func TestAuditLogGetEntriesParsesChunkID(t *testing.T) {
	dir := t.TempDir()
	log := NewAuditLog(dir)
	if err := log.Initialize(); err != nil {
		t.Fatal(err)
	}
	if err := log.Log(ActionObsolete, "abc123", "superseded by xyz"); err != nil {
		t.Fatal(err)
	}

	entries, err := log.GetEntries(nil)
	if err != nil {
		t.Fatalf("get entries: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	e := entries[0]
	if e.Action != ActionObsolete || e.ChunkID != "abc123" || e.Details != "superseded by xyz" {
		t.Fatalf("unexpected entry: %+v", e)
	}
}

func TestAuditLogGetEntriesWithoutChunkID(t *testing.T) {
	dir := t.TempDir()
	log := NewAuditLog(dir)
	if err := log.Initialize(); err != nil {
		t.Fatal(err)
	}
	if err := log.Log(ActionInit, "", "loaded 5 chunks"); err != nil {
		t.Fatal(err)
	}

	entries, err := log.GetEntries(nil)
	if err != nil {
		t.Fatalf("get entries: %v", err)
	}
	if len(entries) != 1 || entries[0].ChunkID != "" || entries[0].Details != "loaded 5 chunks" {
		t.Fatalf("unexpected entry: %+v", entries[0])
	}
}
