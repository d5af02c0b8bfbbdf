package memory

import "errors"

// Error kinds returned by the memory engine. These are sentinel values,
// not types — callers compare with errors.Is, and wrapping with
// fmt.Errorf("...: %w", ErrX) is expected throughout this package.
var (
	// ErrMissingRequiredField is returned by storeChunk when metadata is
	// missing one of summary, type, epistemic, surface_tags.
	ErrMissingRequiredField = errors.New("missing required field")

	// ErrChunkNotFound is returned by updateChunk and markObsolete when the
	// target id does not resolve to a live chunk.
	ErrChunkNotFound = errors.New("chunk not found")

	// ErrInvalidFormat is returned by the codec when a chunk file's header
	// delimiter is missing or unterminated.
	ErrInvalidFormat = errors.New("invalid chunk format")

	// ErrCapacityExceeded is returned when the semantic index has no free
	// or unused slot left under maxElements.
	ErrCapacityExceeded = errors.New("index capacity exceeded")

	// ErrIdExhausted is returned by generateUniqueId after 100 consecutive
	// collisions against the live id set.
	ErrIdExhausted = errors.New("id space exhausted")

	// ErrIoError wraps disk failures from storage and audit.
	ErrIoError = errors.New("io error")

	// ErrEmbedderUnavailable is a programmer error: an operation that
	// requires embeddings ran before init() loaded an embedder.
	ErrEmbedderUnavailable = errors.New("embedder unavailable")

	// errIndexTombstone is internal: a searchKnn hit whose slot no longer
	// maps to a live id. Never returned across a package boundary.
	errIndexTombstone = errors.New("index tombstone")
)
