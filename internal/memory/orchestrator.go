package memory

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// StoreMetadata carries the required and optional fields a caller
// supplies to StoreChunk. SurfaceTags, Summary, Type, and Epistemic are
// mandatory; everything else has a documented default.
type StoreMetadata struct {
	Summary      string
	Type         string
	Epistemic    string
	SurfaceTags  []string
	Status       string // defaults to StatusActive if empty
	Related      []Related
	Expires      *time.Time
	ContextNotes string
}

// MetadataPatch is the partial-update shape accepted by UpdateChunk. A
// nil pointer (or nil slice, for SurfaceTags/Related) means "leave this
// field unchanged"; a non-nil value replaces it wholesale, matching the
// "merge metadata over it" contract.
type MetadataPatch struct {
	Summary      *string
	Type         *string
	Epistemic    *string
	Status       *string
	SurfaceTags  []string
	Related      []Related
	Expires      *time.Time
	ContextNotes *string
}

// Stats summarizes the orchestrator's current state.
type Stats struct {
	ChunkCount   int
	IndexedCount int
}

// Orchestrator is the single mutation gateway composing storage, the
// semantic index, the audit log, and the file watcher. All mutating
// operations (store, update, query-with-writeback, markRelevant,
// markObsolete, watcher-reconcile) are serialized through mu: at most one
// is in flight at any instant, and within one operation the order is
// always storage -> index -> audit.
type Orchestrator struct {
	mu sync.Mutex

	dataDir  string
	storage  *Storage
	index    *SemanticIndex
	audit    *AuditLog
	watcher  *Watcher
	embedder Embedder
	logger   zerolog.Logger

	initialized bool
}

var (
	globalOnce         sync.Once
	globalOrchestrator *Orchestrator
	globalInitErr      error
	globalDataDir      string
	globalMu           sync.Mutex
)

// GetOrchestrator returns the process-wide orchestrator singleton,
// lazily initializing it against dataDir on first call. Re-initializing
// with a different dataDir in the same process is not supported and
// returns an error.
func GetOrchestrator(dataDir string) (*Orchestrator, error) {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalOrchestrator != nil {
		if globalDataDir != dataDir {
			return nil, fmt.Errorf("orchestrator already initialized with data dir %q, cannot reinitialize with %q", globalDataDir, dataDir)
		}
		return globalOrchestrator, nil
	}

	globalOnce.Do(func() {
		o, err := NewOrchestrator(dataDir, DefaultIndexConfig(), nil)
		if err != nil {
			globalInitErr = err
			return
		}
		if err := o.Init(); err != nil {
			globalInitErr = err
			return
		}
		globalOrchestrator = o
		globalDataDir = dataDir
	})

	if globalInitErr != nil {
		return nil, globalInitErr
	}
	return globalOrchestrator, nil
}

// ResetGlobalOrchestrator tears down and clears the process singleton.
// Intended for tests that need a clean global state between cases.
func ResetGlobalOrchestrator() {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalOrchestrator != nil {
		globalOrchestrator.Shutdown()
	}
	globalOrchestrator = nil
	globalDataDir = ""
	globalInitErr = nil
	globalOnce = sync.Once{}
}

// NewOrchestrator builds an Orchestrator over dataDir without starting
// it. embedder may be nil, in which case a LocalEmbedder of cfg's
// dimensions wrapped in an LRU cache is used — the default, offline,
// dependency-free path.
func NewOrchestrator(dataDir string, cfg IndexConfig, embedder Embedder) (*Orchestrator, error) {
	storage, err := NewStorage(dataDir)
	if err != nil {
		return nil, err
	}

	if embedder == nil {
		local := NewLocalEmbedder(cfg.Dimensions)
		cached, err := NewCachingEmbedder(local, 4096)
		if err != nil {
			return nil, err
		}
		embedder = cached
	}

	logger := zerolog.New(zerolog.NewConsoleWriter(func(w *zerolog.ConsoleWriter) {
		w.Out = os.Stderr
	})).With().Timestamp().Str("component", "memory").Logger()

	return &Orchestrator{
		dataDir:  dataDir,
		storage:  storage,
		index:    NewSemanticIndex(cfg, embedder),
		audit:    NewAuditLog(dataDir),
		embedder: embedder,
		logger:   logger,
	}, nil
}

// Init initializes storage, audit, and the index; rebuilds the index by
// reading every chunk and adding (id, embeddingText); starts the
// watcher; logs an INIT event with the loaded count.
func (o *Orchestrator) Init() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.storage.Initialize(); err != nil {
		return err
	}
	if err := o.audit.Initialize(); err != nil {
		return err
	}
	if err := o.index.Init(); err != nil {
		return err
	}

	ids, err := o.storage.GetAllIds()
	if err != nil {
		return err
	}

	loaded := 0
	for _, id := range ids {
		c, err := o.storage.Read(id)
		if err != nil {
			o.logger.Warn().Err(err).Str("id", id).Msg("skipping unreadable chunk on backfill")
			continue
		}
		if c == nil {
			continue
		}
		if err := o.index.AddDocument(c.ID, EmbeddingText(c)); err != nil {
			o.logger.Warn().Err(err).Str("id", id).Msg("skipping chunk that failed to embed on backfill")
			continue
		}
		loaded++
	}

	watcher, err := NewWatcher(o.storage.Dir(), o.logger, o.handleWatchEvent)
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Start(); err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}
	o.watcher = watcher

	o.initialized = true

	if err := o.audit.Log(ActionInit, "", fmt.Sprintf("loaded %d chunks", loaded)); err != nil {
		o.logger.Warn().Err(err).Msg("failed to append INIT audit entry")
	}
	return nil
}

// StoreChunk validates metadata, generates an id, writes the chunk,
// indexes it, and logs a STORE entry. Returns the new id.
func (o *Orchestrator) StoreChunk(content string, meta StoreMetadata) (string, error) {
	if meta.Summary == "" || meta.Type == "" || meta.Epistemic == "" || len(meta.SurfaceTags) == 0 {
		return "", ErrMissingRequiredField
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	id, err := o.storage.GenerateUniqueId()
	if err != nil {
		return "", err
	}

	now := time.Now().UTC()
	status := meta.Status
	if status == "" {
		status = StatusActive
	}

	c := &Chunk{
		ID:           id,
		Content:      content,
		Summary:      meta.Summary,
		Type:         meta.Type,
		Epistemic:    meta.Epistemic,
		Status:       status,
		SurfaceTags:  meta.SurfaceTags,
		Related:      meta.Related,
		Created:      now,
		Updated:      now,
		Accessed:     now,
		Expires:      meta.Expires,
		ContextNotes: meta.ContextNotes,
	}

	if err := o.storage.Write(c); err != nil {
		return "", err
	}
	if err := o.index.AddDocument(c.ID, EmbeddingText(c)); err != nil {
		return "", err
	}

	details := fmt.Sprintf("type=%s epistemic=%s", c.Type, c.Epistemic)
	if err := o.audit.Log(ActionStore, c.ID, details); err != nil {
		o.logger.Warn().Err(err).Str("id", c.ID).Msg("failed to append STORE audit entry")
	}

	return id, nil
}

// UpdateChunk reads the current chunk, merges patch over it, optionally
// replaces content, rewrites storage, refreshes the index entry, and
// logs an UPDATE entry.
func (o *Orchestrator) UpdateChunk(id string, patch *MetadataPatch, content *string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	c, err := o.storage.Read(id)
	if err != nil {
		return err
	}
	if c == nil {
		return ErrChunkNotFound
	}

	var changed []string
	if patch != nil {
		if patch.Summary != nil {
			c.Summary = *patch.Summary
			changed = append(changed, "summary")
		}
		if patch.Type != nil {
			c.Type = *patch.Type
			changed = append(changed, "type")
		}
		if patch.Epistemic != nil {
			c.Epistemic = *patch.Epistemic
			changed = append(changed, "epistemic")
		}
		if patch.Status != nil {
			c.Status = *patch.Status
			changed = append(changed, "status")
		}
		if patch.SurfaceTags != nil {
			c.SurfaceTags = patch.SurfaceTags
			changed = append(changed, "surface_tags")
		}
		if patch.Related != nil {
			c.Related = patch.Related
			changed = append(changed, "related")
		}
		if patch.Expires != nil {
			c.Expires = patch.Expires
			changed = append(changed, "expires")
		}
		if patch.ContextNotes != nil {
			c.ContextNotes = *patch.ContextNotes
			changed = append(changed, "context_notes")
		}
	}

	c.ID = id
	c.Updated = time.Now().UTC()

	contentChanged := false
	if content != nil {
		c.Content = *content
		contentChanged = true
	}

	if err := o.storage.Write(c); err != nil {
		return err
	}
	if err := o.index.UpdateDocument(c.ID, EmbeddingText(c)); err != nil {
		return err
	}

	details := strings.Join(changed, ",")
	if contentChanged {
		excerpt := truncate(*content, 100)
		if details != "" {
			details += " "
		}
		details += "content=" + excerpt
	}
	if err := o.audit.Log(ActionUpdate, c.ID, details); err != nil {
		o.logger.Warn().Err(err).Str("id", c.ID).Msg("failed to append UPDATE audit entry")
	}

	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// GetChunks is a read-only passthrough to storage.
func (o *Orchestrator) GetChunks(ids []string) ([]*Chunk, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.storage.ReadMany(ids)
}

// Query runs a semantic search, writes back retrieval bookkeeping on the
// hits, logs QUERY then RETRIEVE, and returns the chunks with content
// stripped (chunk-meta only).
func (o *Orchestrator) Query(searchText string, limit int) ([]*Chunk, error) {
	if limit <= 0 {
		limit = 10
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	hits, err := o.index.Query(searchText, limit)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return nil, nil
	}

	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.ID
	}

	chunks, err := o.storage.ReadMany(ids)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	out := make([]*Chunk, 0, len(chunks))
	for _, c := range chunks {
		c.RetrievedCount++
		c.Accessed = now
		if err := o.storage.Write(c); err != nil {
			return nil, err
		}
		stripped := *c
		stripped.Content = ""
		out = append(out, &stripped)
	}

	if err := o.audit.Log(ActionQuery, "", "text="+truncate(searchText, 100)+" ids="+strings.Join(ids, ",")); err != nil {
		o.logger.Warn().Err(err).Msg("failed to append QUERY audit entry")
	}
	if err := o.audit.Log(ActionRetrieve, "", "ids="+strings.Join(ids, ",")); err != nil {
		o.logger.Warn().Err(err).Msg("failed to append RETRIEVE audit entry")
	}

	return out, nil
}

// MarkRelevant increments relevant_count and sets last_relevant_date for
// each present id, silently skipping unknown ones, and logs one
// RELEVANT entry for the whole batch.
func (o *Orchestrator) MarkRelevant(ids []string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	now := time.Now().UTC()
	var touched []string
	for _, id := range ids {
		c, err := o.storage.Read(id)
		if err != nil {
			return err
		}
		if c == nil {
			continue
		}
		c.RelevantCount++
		c.LastRelevantDate = &now
		if err := o.storage.Write(c); err != nil {
			return err
		}
		touched = append(touched, id)
	}

	if err := o.audit.Log(ActionRelevant, "", strings.Join(touched, ",")); err != nil {
		o.logger.Warn().Err(err).Msg("failed to append RELEVANT audit entry")
	}
	return nil
}

// MarkObsolete archives id, appending an [Obsoleted: reason] line to its
// context_notes, and logs an OBSOLETE entry.
func (o *Orchestrator) MarkObsolete(id, reason string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	c, err := o.storage.Read(id)
	if err != nil {
		return err
	}
	if c == nil {
		return ErrChunkNotFound
	}

	c.Status = StatusArchived
	c.Updated = time.Now().UTC()
	note := "[Obsoleted: " + reason + "]"
	if c.ContextNotes != "" {
		c.ContextNotes += "\n" + note
	} else {
		c.ContextNotes = note
	}

	if err := o.storage.Write(c); err != nil {
		return err
	}

	if err := o.audit.Log(ActionObsolete, c.ID, reason); err != nil {
		o.logger.Warn().Err(err).Str("id", c.ID).Msg("failed to append OBSOLETE audit entry")
	}
	return nil
}

// GetAuditLog is a passthrough to the audit log.
func (o *Orchestrator) GetAuditLog(since *time.Time) (string, error) {
	return o.audit.ReadSince(since)
}

// Shutdown stops the watcher and marks the orchestrator uninitialized.
func (o *Orchestrator) Shutdown() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.watcher != nil {
		if err := o.watcher.Stop(); err != nil {
			o.logger.Warn().Err(err).Msg("error stopping watcher")
		}
	}
	o.initialized = false
	return o.index.Close()
}

// GetStats reports the chunk count and the indexed count, which may
// momentarily diverge during reconciliation.
func (o *Orchestrator) GetStats() (Stats, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	ids, err := o.storage.GetAllIds()
	if err != nil {
		return Stats{}, err
	}
	return Stats{ChunkCount: len(ids), IndexedCount: o.index.GetDocumentCount()}, nil
}

// ComposeQuery runs Query for each non-empty text and merges the results,
// deduping by id. Results are ordered by first appearance: all hits of
// the first text in its rank order, then new hits of the next text, and
// so on; a later, better rank does not move a chunk forward. This is
// additive sugar over Query; it does not bypass its
// write-back or audit behavior — every constituent query still logs
// QUERY/RETRIEVE as normal.
func (o *Orchestrator) ComposeQuery(texts []string, limit int) ([]*Chunk, error) {
	if limit <= 0 {
		limit = 10
	}
	seen := make(map[string]*Chunk)
	order := make([]string, 0)
	for _, text := range texts {
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		chunks, err := o.Query(text, limit)
		if err != nil {
			return nil, fmt.Errorf("compose query %q: %w", text, err)
		}
		for _, c := range chunks {
			if _, ok := seen[c.ID]; !ok {
				order = append(order, c.ID)
			}
			seen[c.ID] = c
		}
	}
	out := make([]*Chunk, 0, len(order))
	for _, id := range order {
		out = append(out, seen[id])
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Reconcile forces a full, synchronous reload of storage's directory
// index and a rebuild of the semantic index from the current file set.
// Useful after a burst of external edits without waiting on the
// watcher's settle window.
func (o *Orchestrator) Reconcile() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.reconcileLocked()
}

func (o *Orchestrator) reconcileLocked() error {
	if err := o.storage.ReloadIndex(); err != nil {
		return err
	}
	if err := o.index.Reset(); err != nil {
		return err
	}
	ids, err := o.storage.GetAllIds()
	if err != nil {
		return err
	}
	for _, id := range ids {
		c, err := o.storage.Read(id)
		if err != nil || c == nil {
			continue
		}
		_ = o.index.AddDocument(c.ID, EmbeddingText(c))
	}
	return nil
}

// handleWatchEvent reconciles one filesystem event into the index. It is
// invoked on the watcher's goroutines (its event loop and its settle
// timers), so it takes the orchestrator lock itself rather than assuming
// the caller already holds it.
func (o *Orchestrator) handleWatchEvent(ev ChunkEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()

	base := filepath.Base(ev.Path)
	id, ok := idFromFilename(base)
	if !ok {
		return
	}

	if err := o.storage.ReloadIndex(); err != nil {
		o.logger.Error().Err(err).Str("path", ev.Path).Msg("reload failed during reconciliation")
		return
	}

	switch ev.Kind {
	case EventAdd, EventChange:
		c, err := o.storage.Read(id)
		if err != nil {
			o.logger.Error().Err(err).Str("id", id).Msg("failed to read chunk during reconciliation")
			return
		}
		if c == nil {
			return
		}
		if err := o.index.UpdateDocument(id, EmbeddingText(c)); err != nil {
			o.logger.Error().Err(err).Str("id", id).Msg("failed to reindex chunk during reconciliation")
			return
		}
		if err := o.audit.Log(ActionReload, id, "kind="+ev.Kind.String()); err != nil {
			o.logger.Warn().Err(err).Str("id", id).Msg("failed to append RELOAD audit entry")
		}

	case EventUnlink:
		if _, err := o.index.RemoveDocument(id); err != nil {
			o.logger.Error().Err(err).Str("id", id).Msg("failed to remove chunk during reconciliation")
		}
	}
}
