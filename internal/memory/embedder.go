package memory

import (
	"fmt"
	"math"
	"strings"

	lru "github.com/hashicorp/golang-lru"
)

// Embedder generates unit-L2-norm vector embeddings for text. D is fixed
// at construction (384 for the default model). Any implementation —
// model-based or a deterministic hash-based stand-in — satisfying this
// contract is substitutable; the orchestrator only ever calls through
// the interface.
type Embedder interface {
	Embed(text string) ([]float32, error)
	EmbedBatch(texts []string) ([][]float32, error)
	Dimensions() int
}

// DefaultDimensions matches the default model named in configuration
// (bge-small-en-v1.5).
const DefaultDimensions = 384

// FallbackEmbedder wraps a primary embedder and falls back to a local,
// dependency-free embedder on error. The fallback is sticky for the
// lifetime of the process: once the primary fails, every later call
// stays on local rather than retrying a possibly-broken remote call on
// the hot path.
type FallbackEmbedder struct {
	primary  Embedder
	fallback Embedder
	failed   bool
	onFail   func(error)
}

// NewFallbackEmbedder wraps primary with a LocalEmbedder fallback of the
// same dimensionality. onFail, if non-nil, is invoked once when the
// primary first fails (used by callers that want to log the event).
func NewFallbackEmbedder(primary Embedder, onFail func(error)) *FallbackEmbedder {
	return &FallbackEmbedder{
		primary:  primary,
		fallback: NewLocalEmbedder(primary.Dimensions()),
		onFail:   onFail,
	}
}

func (f *FallbackEmbedder) Embed(text string) ([]float32, error) {
	if f.failed {
		return f.fallback.Embed(text)
	}
	v, err := f.primary.Embed(text)
	if err != nil {
		f.trip(err)
		return f.fallback.Embed(text)
	}
	return v, nil
}

func (f *FallbackEmbedder) EmbedBatch(texts []string) ([][]float32, error) {
	if f.failed {
		return f.fallback.EmbedBatch(texts)
	}
	v, err := f.primary.EmbedBatch(texts)
	if err != nil {
		f.trip(err)
		return f.fallback.EmbedBatch(texts)
	}
	return v, nil
}

func (f *FallbackEmbedder) Dimensions() int {
	if f.failed {
		return f.fallback.Dimensions()
	}
	return f.primary.Dimensions()
}

func (f *FallbackEmbedder) trip(err error) {
	f.failed = true
	if f.onFail != nil {
		f.onFail(err)
	}
}

// CachingEmbedder memoizes embeddings by exact text match in an LRU
// cache, so reconciliation re-embeds a chunk only when its embedding
// text actually changed rather than on every watcher-driven reload.
type CachingEmbedder struct {
	inner Embedder
	cache *lru.Cache
}

// NewCachingEmbedder wraps inner with an LRU cache of the given size.
func NewCachingEmbedder(inner Embedder, size int) (*CachingEmbedder, error) {
	if size <= 0 {
		size = 2048
	}
	c, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("build embedding cache: %w", err)
	}
	return &CachingEmbedder{inner: inner, cache: c}, nil
}

func (c *CachingEmbedder) Embed(text string) ([]float32, error) {
	if v, ok := c.cache.Get(text); ok {
		return v.([]float32), nil
	}
	v, err := c.inner.Embed(text)
	if err != nil {
		return nil, err
	}
	c.cache.Add(text, v)
	return v, nil
}

func (c *CachingEmbedder) EmbedBatch(texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var misses []string
	var missIdx []int
	for i, t := range texts {
		if v, ok := c.cache.Get(t); ok {
			out[i] = v.([]float32)
			continue
		}
		misses = append(misses, t)
		missIdx = append(missIdx, i)
	}
	if len(misses) == 0 {
		return out, nil
	}
	embedded, err := c.inner.EmbedBatch(misses)
	if err != nil {
		return nil, err
	}
	for i, v := range embedded {
		out[missIdx[i]] = v
		c.cache.Add(misses[i], v)
	}
	return out, nil
}

func (c *CachingEmbedder) Dimensions() int { return c.inner.Dimensions() }

// LocalEmbedder is a small deterministic stand-in for a real embedding
// model: a single-pass hashing-trick vectorizer over word unigrams and
// bigrams, log-TF weighted with a sign drawn from a second hash (the
// standard collision-damping trick for feature hashing). It requires no
// model weights and no network access, making it both the default
// offline embedder and a stand-in any test can construct directly. It
// is not intended to approach the retrieval quality of a trained model
// — only to give the index something stable and content-sensitive to
// rank against in the absence of one.
type LocalEmbedder struct {
	dimensions int
}

// NewLocalEmbedder builds a LocalEmbedder producing vectors of the given
// dimension (pass DefaultDimensions for the configured default).
func NewLocalEmbedder(dimensions int) *LocalEmbedder {
	if dimensions <= 0 {
		dimensions = DefaultDimensions
	}
	return &LocalEmbedder{dimensions: dimensions}
}

func (e *LocalEmbedder) Embed(text string) ([]float32, error) {
	return e.generate(text), nil
}

func (e *LocalEmbedder) EmbedBatch(texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = e.generate(t)
	}
	return out, nil
}

func (e *LocalEmbedder) Dimensions() int { return e.dimensions }

// generate hashes every unigram and bigram in text into the vector,
// reserves its last two slots for a couple of coarse shape signals, and
// L2-normalizes the result.
func (e *LocalEmbedder) generate(text string) []float32 {
	v := make([]float32, e.dimensions)

	tokens := tokenize(strings.ToLower(text))
	if len(tokens) == 0 {
		return v
	}

	termCounts := make(map[string]int, len(tokens)*2)
	for _, t := range tokens {
		termCounts[t]++
	}
	for i := 0; i+1 < len(tokens); i++ {
		termCounts[tokens[i]+"\x00"+tokens[i+1]]++
	}

	shapeDims := 2
	hashDims := e.dimensions - shapeDims
	if hashDims < 1 {
		hashDims = e.dimensions
		shapeDims = 0
	}

	for term, count := range termCounts {
		bucket, sign := hashTerm(term, hashDims)
		v[bucket] += sign * float32(1+math.Log(float64(count)))
	}

	if shapeDims > 0 {
		v[hashDims] = float32(math.Log(float64(len(text) + 1)))
		v[hashDims+1] = float32(math.Log(float64(len(tokens) + 1)))
	}

	normalize(v)
	return v
}

var tokenBreak = func(r rune) bool {
	return !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9')
}

func tokenize(text string) []string {
	fields := strings.FieldsFunc(text, tokenBreak)
	out := fields[:0]
	for _, w := range fields {
		if len(w) > 1 {
			out = append(out, w)
		}
	}
	return out
}

// hashTerm maps term to a bucket in [0, dims) and a sign in {-1, +1},
// drawn from independent halves of a single 64-bit FNV-1a digest.
func hashTerm(term string, dims int) (int, float32) {
	h := fnv1a64(term)
	bucket := int(h>>1) % dims
	sign := float32(1)
	if h&1 == 1 {
		sign = -1
	}
	return bucket, sign
}

func fnv1a64(s string) uint64 {
	var h uint64 = 14695981039346656037
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= 1099511628211
	}
	return h
}

func normalize(v []float32) {
	var norm float32
	for _, x := range v {
		norm += x * x
	}
	if norm > 0 {
		n := float32(math.Sqrt(float64(norm)))
		for i := range v {
			v[i] /= n
		}
	}
}
