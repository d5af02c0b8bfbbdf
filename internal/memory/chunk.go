// Package memory implements the chunk repository, semantic index, audit
// log, file watcher, and orchestrator that together form the memory
// engine: a long-lived, single-user store of small retrievable knowledge
// records addressed by semantic similarity.
package memory

import "time"

// Chunk is the atomic, independently retrievable memory record.
type Chunk struct {
	ID      string `yaml:"id"`
	Content string `yaml:"-"`

	Summary      string   `yaml:"summary"`
	Type         string   `yaml:"type"`
	Epistemic    string   `yaml:"epistemic"`
	Status       string   `yaml:"status"`
	SurfaceTags  []string `yaml:"surface_tags"`
	Related      []Related `yaml:"related,omitempty"`

	Created  time.Time `yaml:"created"`
	Updated  time.Time `yaml:"updated"`
	Accessed time.Time `yaml:"accessed"`

	RetrievedCount    int        `yaml:"retrieved_count"`
	RelevantCount     int        `yaml:"relevant_count"`
	LastRelevantDate  *time.Time `yaml:"last_relevant_date"`

	Expires      *time.Time `yaml:"expires,omitempty"`
	ContextNotes string     `yaml:"context_notes,omitempty"`
}

// Related is a {id, reason} pair. id need not resolve to a live chunk.
type Related struct {
	ID     string `yaml:"id"`
	Reason string `yaml:"reason"`
}

// Chunk types recognized by the store. Unknown values are accepted by the
// codec (unknown-field tolerance extends to enum-ish fields too — the
// orchestrator does not reject a type it doesn't recognize) but these are
// the documented set.
const (
	TypeFramework = "framework"
	TypeInsight   = "insight"
	TypeFact      = "fact"
	TypeLog       = "log"
	TypeEmotional = "emotional"
	TypeGoal      = "goal"
	TypeQuestion  = "question"
)

// Epistemic status values.
const (
	EpistemicEstablished = "established"
	EpistemicWorking     = "working"
	EpistemicSpeculative = "speculative"
	EpistemicDeprecated  = "deprecated"
)

// Lifecycle status values.
const (
	StatusActive   = "active"
	StatusDormant  = "dormant"
	StatusReview   = "review"
	StatusArchived = "archived"
)

// EmbeddingText is the deterministic concatenation used to compute a
// chunk's vector. Used identically on store, update, and external reload
// so that re-embedding the same chunk content always yields the same
// vector.
func EmbeddingText(c *Chunk) string {
	return c.Summary + "\n\n" + joinTags(c.SurfaceTags) + "\n\n" + c.Content
}

func joinTags(tags []string) string {
	out := ""
	for i, t := range tags {
		if i > 0 {
			out += ", "
		}
		out += t
	}
	return out
}
