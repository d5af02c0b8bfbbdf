package memory

import (
	"database/sql"
	"fmt"
	"os"
	"sync"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
)

func init() {
	sqlite_vec.Auto()
}

// IndexConfig carries the semantic index's tuning knobs, named after the
// ANN backend's own parameters (M, efConstruction, ef) even though the
// concrete backend here (sqlite-vec's vec0) takes no direct knob for
// them — they are carried in the config but not read by this backend.
type IndexConfig struct {
	ModelName      string
	MaxElements    int
	M              int
	EfConstruction int
	Ef             int
	Dimensions     int
}

// DefaultIndexConfig matches the documented configuration defaults.
func DefaultIndexConfig() IndexConfig {
	return IndexConfig{
		ModelName:      "bge-small-en-v1.5",
		MaxElements:    10000,
		M:              16,
		EfConstruction: 100,
		Ef:             50,
		Dimensions:     DefaultDimensions,
	}
}

// QueryHit is one result of SemanticIndex.Query.
type QueryHit struct {
	ID       string
	Distance float64
}

// SemanticIndex is a stable string-ID façade over an integer-slot ANN
// backend. Slots are non-negative integers below cfg.MaxElements; the
// façade keeps idToSlot/slotToId/freeSlots/nextSlot so that deleting a
// document frees its slot for reuse instead of growing the backend
// without bound on add/remove churn.
type SemanticIndex struct {
	mu       sync.Mutex
	cfg      IndexConfig
	embedder Embedder

	db        *sql.DB
	available bool
	// linear is the fallback store used when the vec0 extension could not
	// be loaded: id -> unit vector, searched by brute-force cosine.
	linear map[string][]float32

	idToSlot map[string]int
	slotToId map[int]string
	freeSlots map[int]bool
	nextSlot  int
}

// NewSemanticIndex constructs the façade. Call Init before use.
func NewSemanticIndex(cfg IndexConfig, embedder Embedder) *SemanticIndex {
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = DefaultDimensions
	}
	if cfg.MaxElements <= 0 {
		cfg.MaxElements = 10000
	}
	return &SemanticIndex{cfg: cfg, embedder: embedder}
}

// Init asserts the embedder is present and resets to a fresh, empty
// backend.
func (si *SemanticIndex) Init() error {
	if si.embedder == nil {
		return ErrEmbedderUnavailable
	}
	return si.Reset()
}

// Reset allocates a fresh ANN backend and clears every façade map and
// counter.
func (si *SemanticIndex) Reset() error {
	si.mu.Lock()
	defer si.mu.Unlock()

	if si.db != nil {
		si.db.Close()
	}

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return fmt.Errorf("open vector backend: %w", err)
	}

	available := true
	if err := ensureVecSchema(db, si.cfg.Dimensions); err != nil {
		fmt.Fprintf(os.Stderr, "⚠️  vector index unavailable, using linear scan: %v\n", err)
		available = false
	}

	si.db = db
	si.available = available
	si.linear = make(map[string][]float32)
	si.idToSlot = make(map[string]int)
	si.slotToId = make(map[int]string)
	si.freeSlots = make(map[int]bool)
	si.nextSlot = 0
	return nil
}

func ensureVecSchema(db *sql.DB, dim int) error {
	var version string
	if err := db.QueryRow("SELECT vec_version()").Scan(&version); err != nil {
		return fmt.Errorf("vec_version: %w", err)
	}
	createSQL := fmt.Sprintf(
		`CREATE VIRTUAL TABLE ann_vectors USING vec0(embedding float[%d] distance_metric=cosine)`,
		dim,
	)
	if _, err := db.Exec(createSQL); err != nil {
		return fmt.Errorf("create vec0 table: %w", err)
	}
	return nil
}

// AddDocument embeds text and adds it under id, allocating a fresh or
// reused slot. If id is already present it is removed first.
func (si *SemanticIndex) AddDocument(id, text string) error {
	vec, err := si.embedder.Embed(text)
	if err != nil {
		return fmt.Errorf("embed %s: %w", id, err)
	}

	si.mu.Lock()
	defer si.mu.Unlock()

	if _, ok := si.idToSlot[id]; ok {
		if err := si.removeLocked(id); err != nil {
			return err
		}
	}

	slot, err := si.allocSlotLocked()
	if err != nil {
		return err
	}

	if err := si.addPointLocked(slot, vec); err != nil {
		return err
	}

	si.idToSlot[id] = slot
	si.slotToId[slot] = id
	if id != "" {
		si.linear[id] = vec
	}
	return nil
}

func (si *SemanticIndex) allocSlotLocked() (int, error) {
	for slot := range si.freeSlots {
		delete(si.freeSlots, slot)
		return slot, nil
	}
	if si.nextSlot >= si.cfg.MaxElements {
		return 0, ErrCapacityExceeded
	}
	slot := si.nextSlot
	si.nextSlot++
	return slot, nil
}

func (si *SemanticIndex) addPointLocked(slot int, vec []float32) error {
	if !si.available {
		return nil
	}
	blob, err := sqlite_vec.SerializeFloat32(vec)
	if err != nil {
		return fmt.Errorf("serialize embedding: %w", err)
	}
	if _, err := si.db.Exec(`DELETE FROM ann_vectors WHERE rowid = ?`, slot); err != nil {
		return fmt.Errorf("clear stale slot %d: %w", slot, err)
	}
	if _, err := si.db.Exec(`INSERT INTO ann_vectors (rowid, embedding) VALUES (?, ?)`, slot, blob); err != nil {
		return fmt.Errorf("insert embedding at slot %d: %w", slot, err)
	}
	return nil
}

// RemoveDocument marks the document's slot deleted and frees it for
// reuse. Returns false if id is unknown.
func (si *SemanticIndex) RemoveDocument(id string) (bool, error) {
	si.mu.Lock()
	defer si.mu.Unlock()

	if _, ok := si.idToSlot[id]; !ok {
		return false, nil
	}
	if err := si.removeLocked(id); err != nil {
		return false, err
	}
	return true, nil
}

func (si *SemanticIndex) removeLocked(id string) error {
	slot, ok := si.idToSlot[id]
	if !ok {
		return nil
	}
	if si.available {
		if _, err := si.db.Exec(`DELETE FROM ann_vectors WHERE rowid = ?`, slot); err != nil {
			return fmt.Errorf("markDelete slot %d: %w", slot, err)
		}
	}
	delete(si.idToSlot, id)
	delete(si.slotToId, slot)
	delete(si.linear, id)
	si.freeSlots[slot] = true
	return nil
}

// UpdateDocument is equivalent to RemoveDocument followed by AddDocument.
func (si *SemanticIndex) UpdateDocument(id, text string) error {
	if _, err := si.RemoveDocument(id); err != nil {
		return err
	}
	return si.AddDocument(id, text)
}

// Query embeds text, runs a KNN search capped at the current document
// count, and maps backend slots back to chunk ids. Any hit whose slot no
// longer maps to a live id (a tombstone) is silently dropped.
func (si *SemanticIndex) Query(text string, k int) ([]QueryHit, error) {
	si.mu.Lock()
	count := len(si.idToSlot)
	si.mu.Unlock()

	if count == 0 || k <= 0 {
		return nil, nil
	}
	if k > count {
		k = count
	}

	vec, err := si.embedder.Embed(text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	si.mu.Lock()
	defer si.mu.Unlock()

	if si.available {
		return si.queryVecLocked(vec, k)
	}
	return si.queryLinearLocked(vec, k), nil
}

func (si *SemanticIndex) queryVecLocked(vec []float32, k int) ([]QueryHit, error) {
	blob, err := sqlite_vec.SerializeFloat32(vec)
	if err != nil {
		return nil, fmt.Errorf("serialize query vector: %w", err)
	}

	rows, err := si.db.Query(`
		SELECT rowid, distance FROM ann_vectors
		WHERE embedding MATCH ?
		ORDER BY distance
		LIMIT ?
	`, blob, k)
	if err != nil {
		return nil, fmt.Errorf("searchKnn: %w", err)
	}
	defer rows.Close()

	var hits []QueryHit
	for rows.Next() {
		var slot int
		var dist float64
		if err := rows.Scan(&slot, &dist); err != nil {
			continue
		}
		id, ok := si.slotToId[slot]
		if !ok {
			// errIndexTombstone case: backend still has the row (a
			// concurrent remove can race a query within the same
			// locked section only in theory — kept defensively).
			continue
		}
		hits = append(hits, QueryHit{ID: id, Distance: dist})
	}
	return hits, rows.Err()
}

func (si *SemanticIndex) queryLinearLocked(vec []float32, k int) []QueryHit {
	hits := make([]QueryHit, 0, len(si.linear))
	for id, v := range si.linear {
		hits = append(hits, QueryHit{ID: id, Distance: 1 - cosine(vec, v)})
	}
	sortHitsByDistance(hits)
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits
}

func cosine(a, b []float32) float64 {
	var dot float64
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}

func sortHitsByDistance(hits []QueryHit) {
	for i := 1; i < len(hits); i++ {
		for j := i; j > 0 && hits[j].Distance < hits[j-1].Distance; j-- {
			hits[j], hits[j-1] = hits[j-1], hits[j]
		}
	}
}

// HasDocument reports whether id is currently indexed.
func (si *SemanticIndex) HasDocument(id string) bool {
	si.mu.Lock()
	defer si.mu.Unlock()
	_, ok := si.idToSlot[id]
	return ok
}

// GetDocumentCount returns the number of live entries.
func (si *SemanticIndex) GetDocumentCount() int {
	si.mu.Lock()
	defer si.mu.Unlock()
	return len(si.idToSlot)
}

// GetAllIds returns every currently indexed id, order unspecified.
func (si *SemanticIndex) GetAllIds() []string {
	si.mu.Lock()
	defer si.mu.Unlock()
	ids := make([]string, 0, len(si.idToSlot))
	for id := range si.idToSlot {
		ids = append(ids, id)
	}
	return ids
}

// Close releases the backing database handle.
func (si *SemanticIndex) Close() error {
	si.mu.Lock()
	defer si.mu.Unlock()
	if si.db == nil {
		return nil
	}
	return si.db.Close()
}
