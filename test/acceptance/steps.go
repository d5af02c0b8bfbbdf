package acceptance

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/canopyhq/memoir/internal/memory"
)

type testContext struct {
	dir         string
	o           *memory.Orchestrator
	lastID      string
	idBySummary map[string]string
	lastResults []*memory.Chunk
}

func (tc *testContext) reset() error {
	dir, err := os.MkdirTemp("", "memoir-acceptance-*")
	if err != nil {
		return err
	}
	tc.dir = dir
	tc.idBySummary = map[string]string{}

	o, err := memory.NewOrchestrator(dir, memory.DefaultIndexConfig(), nil)
	if err != nil {
		return err
	}
	if err := o.Init(); err != nil {
		return err
	}
	tc.o = o
	return nil
}

func (tc *testContext) teardown() {
	if tc.o != nil {
		tc.o.Shutdown()
	}
	if tc.dir != "" {
		os.RemoveAll(tc.dir)
	}
}

func (tc *testContext) freshMemoryEngine() error {
	if tc.o == nil {
		return fmt.Errorf("memory engine was not initialized")
	}
	return nil
}

func (tc *testContext) store(summary, content string) error {
	id, err := tc.o.StoreChunk(content, memory.StoreMetadata{
		Summary:     summary,
		Type:        memory.TypeFact,
		Epistemic:   memory.EpistemicEstablished,
		SurfaceTags: []string{"acceptance"},
	})
	if err != nil {
		return err
	}
	tc.lastID = id
	tc.idBySummary[summary] = id
	return nil
}

func (tc *testContext) rememberSummaryOnly(summary string) error {
	return tc.store(summary, summary)
}

func (tc *testContext) rememberSummaryAndContent(summary, content string) error {
	return tc.store(summary, content)
}

func (tc *testContext) canRetrieveById() error {
	chunks, err := tc.o.GetChunks([]string{tc.lastID})
	if err != nil {
		return err
	}
	if len(chunks) != 1 {
		return fmt.Errorf("expected exactly one chunk, got %d", len(chunks))
	}
	return nil
}

func (tc *testContext) recall(query string, limit string) error {
	n, err := strconv.Atoi(limit)
	if err != nil {
		return err
	}
	results, err := tc.o.Query(query, n)
	if err != nil {
		return err
	}
	tc.lastResults = results
	return nil
}

func (tc *testContext) topResultHasSummary(summary string) error {
	if len(tc.lastResults) == 0 {
		return fmt.Errorf("no results to inspect")
	}
	if tc.lastResults[0].Summary != summary {
		return fmt.Errorf("expected top result summary %q, got %q", summary, tc.lastResults[0].Summary)
	}
	return nil
}

func (tc *testContext) obsoleteThatChunk(reason string) error {
	return tc.o.MarkObsolete(tc.lastID, reason)
}

func (tc *testContext) thatChunkHasStatus(status string) error {
	chunks, err := tc.o.GetChunks([]string{tc.lastID})
	if err != nil || len(chunks) != 1 {
		return fmt.Errorf("get chunk: chunks=%v err=%v", chunks, err)
	}
	if chunks[0].Status != status {
		return fmt.Errorf("expected status %q, got %q", status, chunks[0].Status)
	}
	return nil
}

func (tc *testContext) thatChunkNotesMention(substr string) error {
	chunks, err := tc.o.GetChunks([]string{tc.lastID})
	if err != nil || len(chunks) != 1 {
		return fmt.Errorf("get chunk: chunks=%v err=%v", chunks, err)
	}
	if !strings.Contains(chunks[0].ContextNotes, substr) {
		return fmt.Errorf("expected context notes to mention %q, got %q", substr, chunks[0].ContextNotes)
	}
	return nil
}

func (tc *testContext) rewriteChunkFileExternally(newContent string) error {
	chunksDir := filepath.Join(tc.dir, "chunks")
	entries, err := os.ReadDir(chunksDir)
	if err != nil {
		return err
	}
	var path string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), tc.lastID) {
			path = filepath.Join(chunksDir, e.Name())
		}
	}
	if path == "" {
		return fmt.Errorf("no chunk file found for id %s", tc.lastID)
	}

	text := "---\nid: " + tc.lastID + "\nsummary: reconcile me\ntype: fact\nepistemic: established\n" +
		"surface_tags: [acceptance]\nstatus: active\nretrieved_count: 0\nrelevant_count: 0\n" +
		"last_relevant_date: null\n---\n\n" + newContent
	return os.WriteFile(path, []byte(text), 0o644)
}

func (tc *testContext) reconcileMemoryEngine() error {
	return tc.o.Reconcile()
}

func (tc *testContext) recallingFindsThatChunk(query string) error {
	results, err := tc.o.Query(query, 5)
	if err != nil {
		return err
	}
	for _, r := range results {
		if r.ID == tc.lastID {
			return nil
		}
	}
	return fmt.Errorf("chunk %s not found among recall results for %q", tc.lastID, query)
}
