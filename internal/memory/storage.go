package memory

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/hashicorp/go-memdb"
)

const chunkFileExt = ".md"

var idPrefixPattern = regexp.MustCompile(`^[a-f0-9]{6}$`)

// chunkIndexEntry is the row shape kept in the in-memory directory index.
// It is pure derived bookkeeping: the id→filename mapping required by the
// storage component, plus type/status so listing/filtering by either
// doesn't need a second directory scan.
type chunkIndexEntry struct {
	ID       string
	Filename string
	Type     string
	Status   string
}

func chunkIndexSchema() *memdb.DBSchema {
	return &memdb.DBSchema{
		Tables: map[string]*memdb.TableSchema{
			"chunk": {
				Name: "chunk",
				Indexes: map[string]*memdb.IndexSchema{
					"id": {
						Name:    "id",
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "ID"},
					},
					"type": {
						Name:         "type",
						AllowMissing: true,
						Indexer:      &memdb.StringFieldIndex{Field: "Type"},
					},
					"status": {
						Name:         "status",
						AllowMissing: true,
						Indexer:      &memdb.StringFieldIndex{Field: "Status"},
					},
				},
			},
		},
	}
}

// Storage owns the chunks/ directory: one file per live chunk, plus the
// in-memory id→filename mapping rebuilt on initialize and reloadIndex.
type Storage struct {
	dir string
	db  *memdb.MemDB
}

// NewStorage constructs a Storage rooted at dir/chunks. It does not touch
// the filesystem until Initialize is called.
func NewStorage(dataDir string) (*Storage, error) {
	db, err := memdb.NewMemDB(chunkIndexSchema())
	if err != nil {
		return nil, fmt.Errorf("build chunk index: %w", err)
	}
	return &Storage{dir: filepath.Join(dataDir, "chunks"), db: db}, nil
}

// Dir returns the chunks directory path.
func (s *Storage) Dir() string { return s.dir }

// Initialize creates the chunks directory if missing and builds the
// in-memory index by scanning it. Idempotent.
func (s *Storage) Initialize() error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create chunks dir: %w: %v", ErrIoError, err)
	}
	return s.ReloadIndex()
}

// ReloadIndex rescans the directory and rebuilds the id→filename mapping.
func (s *Storage) ReloadIndex() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("scan chunks dir: %w: %v", ErrIoError, err)
	}

	fresh, err := memdb.NewMemDB(chunkIndexSchema())
	if err != nil {
		return fmt.Errorf("rebuild chunk index: %w", err)
	}

	txn := fresh.Txn(true)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, chunkFileExt) {
			continue
		}
		id, ok := idFromFilename(name)
		if !ok {
			continue
		}
		entry := &chunkIndexEntry{ID: id, Filename: name}
		// Type/status are filled in when the chunk is next written
		// (Write); a cold scan leaves them blank, and entries with a blank
		// value are simply absent from the type/status indexes.
		if err := txn.Insert("chunk", entry); err != nil {
			txn.Abort()
			return fmt.Errorf("index chunk file %s: %w", name, err)
		}
	}
	txn.Commit()

	s.db = fresh
	return nil
}

func idFromFilename(name string) (string, bool) {
	base := strings.TrimSuffix(name, chunkFileExt)
	dash := strings.Index(base, "-")
	var prefix string
	if dash < 0 {
		prefix = base
	} else {
		prefix = base[:dash]
	}
	if !idPrefixPattern.MatchString(prefix) {
		return "", false
	}
	return prefix, true
}

// Exists reports whether id resolves to a live chunk file.
func (s *Storage) Exists(id string) bool {
	_, ok := s.filename(id)
	return ok
}

func (s *Storage) filename(id string) (string, bool) {
	txn := s.db.Txn(false)
	raw, err := txn.First("chunk", "id", id)
	if err != nil || raw == nil {
		return "", false
	}
	return raw.(*chunkIndexEntry).Filename, true
}

// GetAllIds returns every live chunk id, order unspecified.
func (s *Storage) GetAllIds() ([]string, error) {
	txn := s.db.Txn(false)
	it, err := txn.Get("chunk", "id")
	if err != nil {
		return nil, fmt.Errorf("list chunk ids: %w", err)
	}
	var ids []string
	for raw := it.Next(); raw != nil; raw = it.Next() {
		ids = append(ids, raw.(*chunkIndexEntry).ID)
	}
	return ids, nil
}

// GenerateUniqueId draws 3 random bytes, hex-encodes them, and rejects
// any id already present in the directory index. Gives up with
// ErrIdExhausted after 100 attempts, per the source behavior this is
// grounded on — it does not consult the semantic index, only storage.
func (s *Storage) GenerateUniqueId() (string, error) {
	buf := make([]byte, 3)
	for attempt := 0; attempt < 100; attempt++ {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("generate id: %w: %v", ErrIoError, err)
		}
		id := hex.EncodeToString(buf)
		if !s.Exists(id) {
			return id, nil
		}
	}
	return "", ErrIdExhausted
}

// Read returns the chunk for id, nil if unknown, or a wrapped
// ErrInvalidFormat/ErrIoError on failure.
func (s *Storage) Read(id string) (*Chunk, error) {
	filename, ok := s.filename(id)
	if !ok {
		return nil, nil
	}
	return s.readFile(filename)
}

func (s *Storage) readFile(filename string) (*Chunk, error) {
	path := filepath.Join(s.dir, filename)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w: %v", filename, ErrIoError, err)
	}
	return Parse(string(data), filename)
}

// ReadMany returns the chunks that resolve, in input order, silently
// dropping unknown ids.
func (s *Storage) ReadMany(ids []string) ([]*Chunk, error) {
	out := make([]*Chunk, 0, len(ids))
	for _, id := range ids {
		c, err := s.Read(id)
		if err != nil {
			return nil, err
		}
		if c != nil {
			out = append(out, c)
		}
	}
	return out, nil
}

// Write computes the target filename from id+summary, removes the
// previous file for this id if the name changed, writes the new file,
// and updates the mapping.
func (s *Storage) Write(c *Chunk) error {
	newFilename := c.ID + "-" + Slugify(c.Summary) + chunkFileExt

	if oldFilename, ok := s.filename(c.ID); ok && oldFilename != newFilename {
		oldPath := filepath.Join(s.dir, oldFilename)
		if err := os.Remove(oldPath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove stale chunk file %s: %w: %v", oldFilename, ErrIoError, err)
		}
	}

	text, err := Serialize(c)
	if err != nil {
		return err
	}

	path := filepath.Join(s.dir, newFilename)
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return fmt.Errorf("write %s: %w: %v", newFilename, ErrIoError, err)
	}

	txn := s.db.Txn(true)
	entry := &chunkIndexEntry{ID: c.ID, Filename: newFilename, Type: c.Type, Status: c.Status}
	if err := txn.Insert("chunk", entry); err != nil {
		txn.Abort()
		return fmt.Errorf("index chunk %s: %w", c.ID, err)
	}
	txn.Commit()

	return nil
}

// Delete unlinks the file for id and removes it from the mapping.
// Returns false if id was unknown.
func (s *Storage) Delete(id string) (bool, error) {
	filename, ok := s.filename(id)
	if !ok {
		return false, nil
	}

	path := filepath.Join(s.dir, filename)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return false, fmt.Errorf("delete %s: %w: %v", filename, ErrIoError, err)
	}

	txn := s.db.Txn(true)
	if _, err := txn.DeleteAll("chunk", "id", id); err != nil {
		txn.Abort()
		return false, fmt.Errorf("unindex chunk %s: %w", id, err)
	}
	txn.Commit()

	return true, nil
}

// Slugify derives a filename slug from a summary: lowercase, runs of
// non-alphanumeric collapsed to a single "-", trimmed, truncated to 15
// characters, re-trimmed.
func Slugify(summary string) string {
	lower := strings.ToLower(summary)
	var b strings.Builder
	prevDash := false
	for _, r := range lower {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			prevDash = false
		} else if !prevDash {
			b.WriteByte('-')
			prevDash = true
		}
	}
	slug := strings.Trim(b.String(), "-")
	if len(slug) > 15 {
		slug = slug[:15]
	}
	return strings.TrimRight(slug, "-")
}
