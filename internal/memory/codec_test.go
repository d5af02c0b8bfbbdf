package memory

import (
	"strings"
	"testing"
	"time"
)

func sampleChunk() *Chunk {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	last := now.Add(-time.Hour)
	return &Chunk{
		ID:               "abc123",
		Content:          "hello world",
		Summary:          "greet",
		Type:             TypeFact,
		Epistemic:        EpistemicEstablished,
		Status:           StatusActive,
		SurfaceTags:      []string{"hello", "greeting"},
		Related:          []Related{{ID: "def456", Reason: "companion chunk"}},
		Created:          now,
		Updated:          now,
		Accessed:         now,
		RetrievedCount:   3,
		RelevantCount:    1,
		LastRelevantDate: &last,
	}
}

func TestRoundTrip(t *testing.T) {
	c := sampleChunk()
	text, err := Serialize(c)
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}

	got, err := Parse(text, "abc123-greet.md")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if got.ID != c.ID || got.Content != c.Content || got.Summary != c.Summary {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if len(got.SurfaceTags) != 2 || got.SurfaceTags[0] != "hello" {
		t.Fatalf("surface_tags not preserved: %+v", got.SurfaceTags)
	}
	if len(got.Related) != 1 || got.Related[0].ID != "def456" {
		t.Fatalf("related not preserved: %+v", got.Related)
	}
	if got.RetrievedCount != 3 || got.RelevantCount != 1 {
		t.Fatalf("counters not preserved: %+v", got)
	}
	if got.LastRelevantDate == nil || !got.LastRelevantDate.Equal(*c.LastRelevantDate) {
		t.Fatalf("last_relevant_date not preserved: %+v", got.LastRelevantDate)
	}
}

func TestSerializeHasHeaderDelimiters(t *testing.T) {
	text, err := Serialize(sampleChunk())
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	if !strings.HasPrefix(text, "---\n") {
		t.Fatalf("expected text to start with --- delimiter, got %q", text[:20])
	}
	if strings.Count(text, "---\n") < 2 {
		t.Fatalf("expected two --- delimiters, got text: %s", text)
	}
}

func TestParseMissingOpeningDelimiter(t *testing.T) {
	_, err := Parse("id: abc123\nsummary: x\n---\n\nbody", "bad.md")
	if err == nil {
		t.Fatal("expected InvalidFormat error")
	}
}

func TestParseUnterminatedHeader(t *testing.T) {
	_, err := Parse("---\nid: abc123\nsummary: x\n\nbody with no closing delimiter", "bad.md")
	if err == nil {
		t.Fatal("expected InvalidFormat error")
	}
}

func TestParseDefaultsMissingFields(t *testing.T) {
	text := "---\nid: abc123\nsummary: minimal\ntype: fact\nepistemic: established\n---\n\nbody\n"
	c, err := Parse(text, "abc123-minimal.md")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if c.RetrievedCount != 0 || c.RelevantCount != 0 {
		t.Fatalf("expected zero counters by default, got %+v", c)
	}
	if c.LastRelevantDate != nil {
		t.Fatalf("expected nil last_relevant_date by default")
	}
	if len(c.Related) != 0 {
		t.Fatalf("expected empty related by default")
	}
	if c.Status != StatusActive {
		t.Fatalf("expected default status active, got %q", c.Status)
	}
}

func TestParseUnknownFieldsIgnored(t *testing.T) {
	text := "---\nid: abc123\nsummary: x\ntype: fact\nepistemic: established\nbogus_field: surprise\n---\n\nbody\n"
	c, err := Parse(text, "abc123-x.md")
	if err != nil {
		t.Fatalf("parse should ignore unknown fields, got: %v", err)
	}
	if c.ID != "abc123" {
		t.Fatalf("expected id preserved despite unknown field, got %+v", c)
	}
}
