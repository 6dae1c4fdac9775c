package embed

import (
	"context"
	"hash/fnv"
	"regexp"
	"strings"
	"sync"
	"unicode"

	scherrors "github.com/scholaq/scholaq/internal/errors"
)

// StaticEmbedder generates deterministic hash-based embeddings with no
// network dependency. Vectors capture lexical overlap (shared terms and
// character trigrams) rather than semantics, which is enough for offline
// use and for tests.
type StaticEmbedder struct {
	mu     sync.RWMutex
	closed bool
}

var _ Embedder = (*StaticEmbedder)(nil)

// englishStopWords are filtered before hashing so function words do not
// dominate the vector.
var englishStopWords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true,
	"at": true, "be": true, "by": true, "for": true, "from": true,
	"has": true, "in": true, "is": true, "it": true, "its": true,
	"of": true, "on": true, "or": true, "that": true, "the": true,
	"to": true, "was": true, "were": true, "which": true, "with": true,
}

const (
	termWeight    = 0.7
	trigramWeight = 0.3
	trigramSize   = 3
)

var wordRegex = regexp.MustCompile(`[a-zA-Z0-9]+`)

// NewStaticEmbedder creates a new static embedder.
func NewStaticEmbedder() *StaticEmbedder {
	return &StaticEmbedder{}
}

// Embed generates a deterministic embedding for a single text.
func (e *StaticEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return nil, scherrors.New(scherrors.ErrCodeEmbedUnavailable, "embedder is closed")
	}

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return make([]float32, StaticDimensions), nil
	}

	vector := make([]float32, StaticDimensions)

	for _, term := range terms(trimmed) {
		vector[hashToIndex(term, StaticDimensions)] += termWeight
	}
	for _, tri := range trigrams(trimmed) {
		vector[hashToIndex(tri, StaticDimensions)] += trigramWeight
	}

	return normalizeVector(vector), nil
}

// EmbedBatch generates embeddings for multiple texts.
func (e *StaticEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	results := make([][]float32, len(texts))
	for i, text := range texts {
		emb, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		results[i] = emb
	}
	return results, nil
}

// terms tokenizes text into lowercase words with stop words removed.
func terms(text string) []string {
	words := wordRegex.FindAllString(text, -1)
	result := make([]string, 0, len(words))
	for _, w := range words {
		lower := strings.ToLower(w)
		if !englishStopWords[lower] {
			result = append(result, lower)
		}
	}
	return result
}

// trigrams extracts sliding character trigrams over the lowercased
// alphanumeric content of text.
func trigrams(text string) []string {
	var b strings.Builder
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	s := b.String()
	if len(s) < trigramSize {
		return nil
	}
	grams := make([]string, 0, len(s)-trigramSize+1)
	for i := 0; i <= len(s)-trigramSize; i++ {
		grams = append(grams, s[i:i+trigramSize])
	}
	return grams
}

// hashToIndex maps a string to a vector index via FNV-64.
func hashToIndex(s string, size int) int {
	h := fnv.New64()
	_, _ = h.Write([]byte(s))
	return int(h.Sum64() % uint64(size))
}

// Dimensions returns the embedding dimension.
func (e *StaticEmbedder) Dimensions() int {
	return StaticDimensions
}

// ModelName returns the model identifier.
func (e *StaticEmbedder) ModelName() string {
	return "static"
}

// Available reports readiness (always true until closed).
func (e *StaticEmbedder) Available(_ context.Context) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return !e.closed
}

// Close releases resources.
func (e *StaticEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}
