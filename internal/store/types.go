// Package store provides persistence for the paper library: chunk and
// paper metadata in SQLite, keyword search via Bleve or SQLite FTS5,
// and vector search via an HNSW graph.
package store

import (
	"context"
	"strings"
	"time"
)

// SectionType classifies which part of a paper a chunk came from.
type SectionType string

const (
	SectionAbstract     SectionType = "abstract"
	SectionIntroduction SectionType = "introduction"
	SectionMethods      SectionType = "methods"
	SectionResults      SectionType = "results"
	SectionDiscussion   SectionType = "discussion"
	SectionConclusion   SectionType = "conclusion"
	SectionOther        SectionType = "other"
)

// ParseSectionType maps arbitrary section labels to a known SectionType.
// Unknown labels map to SectionOther; empty input stays empty.
func ParseSectionType(s string) SectionType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return ""
	case "abstract":
		return SectionAbstract
	case "introduction", "intro", "background":
		return SectionIntroduction
	case "methods", "method", "materials and methods", "methodology":
		return SectionMethods
	case "results", "result", "findings":
		return SectionResults
	case "discussion":
		return SectionDiscussion
	case "conclusion", "conclusions", "summary":
		return SectionConclusion
	default:
		return SectionOther
	}
}

// Paper is an imported document in the library.
type Paper struct {
	ID         string
	Title      string
	Authors    []string
	Year       int
	Journal    string
	DOI        string
	ChunkCount int
	ImportedAt time.Time
}

// Chunk is the retrievable unit of a paper.
type Chunk struct {
	ID         string
	PaperID    string
	Text       string
	ChunkIndex int
	Section    SectionType
	PageNumber int
	HasTable   bool
	CreatedAt  time.Time
}

// Scope restricts a search to a subset of the library.
// Empty PaperIDs means the whole library. Section applies only where the
// caller chooses to apply it (the pipeline filters vector search only).
type Scope struct {
	PaperIDs []string
	Section  SectionType
}

// ContainsPaper reports whether the scope admits the given paper.
func (s Scope) ContainsPaper(paperID string) bool {
	if len(s.PaperIDs) == 0 {
		return true
	}
	for _, id := range s.PaperIDs {
		if id == paperID {
			return true
		}
	}
	return false
}

// KeywordResult is a single keyword search hit.
type KeywordResult struct {
	ChunkID string
	Score   float64
}

// VectorResult is a single vector search hit.
type VectorResult struct {
	ChunkID  string
	Distance float32
	Score    float32
}

// ScoredChunk is a search hit joined with its chunk metadata.
type ScoredChunk struct {
	Chunk *Chunk
	Score float64
}

// KeywordIndex provides full-text search over chunk text.
// Paper scoping is applied inside the index so limits count only
// in-scope hits.
type KeywordIndex interface {
	// Index adds or replaces chunks in the index.
	Index(ctx context.Context, chunks []*Chunk) error

	// Search returns chunks matching query within the given papers,
	// best first. Empty paperIDs searches the whole library.
	Search(ctx context.Context, query string, paperIDs []string, limit int) ([]*KeywordResult, error)

	// Delete removes chunks by ID.
	Delete(ctx context.Context, chunkIDs []string) error

	// Count returns the number of indexed chunks.
	Count() (int, error)

	// Close releases resources.
	Close() error
}

// VectorIndex provides approximate nearest neighbor search over chunk
// embeddings. Chunks without embeddings are never added, so they can
// never appear in results.
type VectorIndex interface {
	// Add inserts vectors with their chunk IDs, replacing existing ones.
	Add(ctx context.Context, chunkIDs []string, vectors [][]float32) error

	// Search finds the k nearest chunks to the query vector.
	Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error)

	// Delete removes vectors by chunk ID.
	Delete(ctx context.Context, chunkIDs []string) error

	// Contains reports whether a chunk has a vector.
	Contains(chunkID string) bool

	// Count returns the number of vectors.
	Count() int

	// Save persists the index to the given path.
	Save(path string) error

	// Load restores the index from the given path.
	Load(path string) error

	// Close releases resources.
	Close() error
}
