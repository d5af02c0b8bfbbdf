package memory

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const headerDelimiter = "---"

// header is the YAML shape of everything in a Chunk except Content. The
// id is carried here so a chunk file is self-describing on its own;
// storage separately derives the id from the filename for its
// id→filename mapping.
type header struct {
	ID               string     `yaml:"id"`
	Summary          string     `yaml:"summary"`
	Type             string     `yaml:"type"`
	Epistemic        string     `yaml:"epistemic"`
	Status           string     `yaml:"status"`
	SurfaceTags      []string   `yaml:"surface_tags"`
	Created          time.Time  `yaml:"created"`
	Updated          time.Time  `yaml:"updated"`
	Accessed         time.Time  `yaml:"accessed"`
	RetrievedCount   int        `yaml:"retrieved_count"`
	RelevantCount    int        `yaml:"relevant_count"`
	LastRelevantDate *time.Time `yaml:"last_relevant_date"`
	Related          []Related  `yaml:"related,omitempty"`
	Expires          *time.Time `yaml:"expires,omitempty"`
	ContextNotes     string     `yaml:"context_notes,omitempty"`
}

// Serialize emits a chunk file: a YAML header enclosed by `---` lines,
// a blank line, then the content body.
func Serialize(c *Chunk) (string, error) {
	h := header{
		ID:               c.ID,
		Summary:          c.Summary,
		Type:             c.Type,
		Epistemic:        c.Epistemic,
		Status:           c.Status,
		SurfaceTags:      c.SurfaceTags,
		Created:          c.Created,
		Updated:          c.Updated,
		Accessed:         c.Accessed,
		RetrievedCount:   c.RetrievedCount,
		RelevantCount:    c.RelevantCount,
		LastRelevantDate: c.LastRelevantDate,
		Related:          c.Related,
		Expires:          c.Expires,
		ContextNotes:     c.ContextNotes,
	}

	body, err := yaml.Marshal(&h)
	if err != nil {
		return "", fmt.Errorf("serialize chunk %s: %w", c.ID, err)
	}

	var sb strings.Builder
	sb.WriteString(headerDelimiter)
	sb.WriteByte('\n')
	sb.Write(body)
	sb.WriteString(headerDelimiter)
	sb.WriteString("\n\n")
	sb.WriteString(c.Content)
	return sb.String(), nil
}

// Parse reverses Serialize. filename is accepted for symmetry with the
// storage layer's read path but is not consulted for any field here — id
// comes from the header, matching the round-trip law in all cases where
// the header and filename agree (storage is responsible for keeping them
// in sync on write).
func Parse(text string, filename string) (*Chunk, error) {
	if !strings.HasPrefix(text, headerDelimiter) {
		return nil, fmt.Errorf("parse %s: %w", filename, ErrInvalidFormat)
	}

	rest := text[len(headerDelimiter):]
	rest = strings.TrimPrefix(rest, "\n")

	end := strings.Index(rest, "\n"+headerDelimiter)
	if end < 0 {
		return nil, fmt.Errorf("parse %s: %w", filename, ErrInvalidFormat)
	}

	headerText := rest[:end]
	remainder := rest[end+len("\n"+headerDelimiter):]
	remainder = strings.TrimPrefix(remainder, "\n")
	remainder = strings.TrimPrefix(remainder, "\n")

	var h header
	if err := yaml.Unmarshal([]byte(headerText), &h); err != nil {
		return nil, fmt.Errorf("parse %s: %w: %v", filename, ErrInvalidFormat, err)
	}

	c := &Chunk{
		ID:               h.ID,
		Content:          remainder,
		Summary:          h.Summary,
		Type:             h.Type,
		Epistemic:        h.Epistemic,
		Status:           h.Status,
		SurfaceTags:      h.SurfaceTags,
		Related:          h.Related,
		Created:          h.Created,
		Updated:          h.Updated,
		Accessed:         h.Accessed,
		RetrievedCount:   h.RetrievedCount,
		RelevantCount:    h.RelevantCount,
		LastRelevantDate: h.LastRelevantDate,
		Expires:          h.Expires,
		ContextNotes:     h.ContextNotes,
	}
	if c.Status == "" {
		c.Status = StatusActive
	}
	return c, nil
}
