package memory

import "testing"

func newTestIndex(t *testing.T) *SemanticIndex {
	t.Helper()
	cfg := DefaultIndexConfig()
	cfg.MaxElements = 5
	idx := NewSemanticIndex(cfg, NewLocalEmbedder(cfg.Dimensions))
	if err := idx.Init(); err != nil {
		t.Fatalf("init: %v", err)
	}
	return idx
}

func TestSemanticIndexAddQueryRemove(t *testing.T) {
	idx := newTestIndex(t)

	if err := idx.AddDocument("aaaaaa", "startup equity offer evaluation framework"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := idx.AddDocument("bbbbbb", "pasta carbonara recipe"); err != nil {
		t.Fatalf("add: %v", err)
	}

	if idx.GetDocumentCount() != 2 {
		t.Fatalf("expected 2 documents, got %d", idx.GetDocumentCount())
	}
	if !idx.HasDocument("aaaaaa") {
		t.Fatal("expected aaaaaa to be indexed")
	}

	hits, err := idx.Query("startup job offer evaluation", 2)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(hits) == 0 || hits[0].ID != "aaaaaa" {
		t.Fatalf("expected aaaaaa to rank first, got %+v", hits)
	}

	ok, err := idx.RemoveDocument("aaaaaa")
	if err != nil || !ok {
		t.Fatalf("remove: ok=%v err=%v", ok, err)
	}
	if idx.HasDocument("aaaaaa") {
		t.Fatal("expected aaaaaa gone after remove")
	}

	ok, err = idx.RemoveDocument("aaaaaa")
	if err != nil || ok {
		t.Fatalf("expected second remove to be a no-op, got ok=%v err=%v", ok, err)
	}
}

func TestSemanticIndexQueryCapsAtDocumentCount(t *testing.T) {
	idx := newTestIndex(t)
	if err := idx.AddDocument("aaaaaa", "only document"); err != nil {
		t.Fatal(err)
	}
	hits, err := idx.Query("only document", 10)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected at most 1 hit, got %d", len(hits))
	}
}

func TestSemanticIndexQueryEmptyIndex(t *testing.T) {
	idx := newTestIndex(t)
	hits, err := idx.Query("anything", 5)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(hits) != 0 {
		t.Fatalf("expected no hits on empty index, got %+v", hits)
	}
}

func TestSemanticIndexSlotReuseAfterDelete(t *testing.T) {
	idx := newTestIndex(t) // MaxElements = 5

	for i := 0; i < 5; i++ {
		id := string([]byte{'a' + byte(i), 'a' + byte(i), 'a' + byte(i), 'a' + byte(i), 'a' + byte(i), 'a' + byte(i)})
		if err := idx.AddDocument(id, "doc number content"); err != nil {
			t.Fatalf("add %d: %v", i, err)
		}
	}

	// Index is now at capacity; one more add must fail.
	if err := idx.AddDocument("zzzzzz", "overflow"); err != ErrCapacityExceeded {
		t.Fatalf("expected ErrCapacityExceeded, got %v", err)
	}

	// Freeing a slot by removing a document allows a subsequent add to
	// succeed again without growing past MaxElements.
	if _, err := idx.RemoveDocument("aaaaaa"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := idx.AddDocument("zzzzzz", "reuses freed slot"); err != nil {
		t.Fatalf("expected add to succeed after freeing a slot: %v", err)
	}
}

func TestSemanticIndexUpdateDocumentReembeds(t *testing.T) {
	idx := newTestIndex(t)
	if err := idx.AddDocument("aaaaaa", "original text about pasta"); err != nil {
		t.Fatal(err)
	}
	if err := idx.UpdateDocument("aaaaaa", "updated text about startup equity"); err != nil {
		t.Fatalf("update: %v", err)
	}
	if idx.GetDocumentCount() != 1 {
		t.Fatalf("expected document count unchanged after update, got %d", idx.GetDocumentCount())
	}

	hits, err := idx.Query("startup equity", 1)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(hits) != 1 || hits[0].ID != "aaaaaa" {
		t.Fatalf("expected updated embedding to match new text, got %+v", hits)
	}
}

func TestSemanticIndexResetClearsState(t *testing.T) {
	idx := newTestIndex(t)
	if err := idx.AddDocument("aaaaaa", "some text"); err != nil {
		t.Fatal(err)
	}
	if err := idx.Reset(); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if idx.GetDocumentCount() != 0 {
		t.Fatalf("expected empty index after reset, got %d", idx.GetDocumentCount())
	}
}
