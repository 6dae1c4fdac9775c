// Package rag implements the hybrid retrieval pipeline: query expansion,
// hypothetical answer embedding, metadata filter extraction, question
// decomposition, parallel vector and keyword search, reciprocal rank
// fusion, cross-encoder reranking and contextual compression.
package rag

import (
	"math"

	"github.com/scholaq/scholaq/internal/store"
)

// Source tags which retrieval modality produced a result.
type Source string

const (
	SourceVector  Source = "vector"
	SourceKeyword Source = "keyword"
)

// ChunkResult is a chunk as returned by a single retrieval modality.
type ChunkResult struct {
	ID         string
	PaperID    string
	Text       string
	ChunkIndex int
	Section    store.SectionType
	PageNumber int
	Score      float64
}

// RankedList is one ranked result list entering fusion, typically one
// per modality and query variant.
type RankedList struct {
	Source  Source
	Results []ChunkResult
}

// FusedChunk is a chunk after reciprocal rank fusion. VectorRank and
// KeywordRank are 1-based ranks in the corresponding source lists,
// keeping the best rank when a modality contributed via several query
// variants. A rank of 0 means that modality never returned the chunk.
type FusedChunk struct {
	ChunkResult
	RRFScore    float64
	Sources     []Source
	VectorRank  int
	KeywordRank int
}

// RerankedChunk is a fused chunk after cross-encoder reranking. When
// reranking is disabled or degraded, RerankScore equals RRFScore.
type RerankedChunk struct {
	FusedChunk
	RerankScore float64
}

// CompressedChunk is a reranked chunk after contextual compression.
// CompressedText is empty when compression did not run.
type CompressedChunk struct {
	RerankedChunk
	CompressedText string
}

// FinalText returns the compressed text when present, the full chunk
// text otherwise.
func (c CompressedChunk) FinalText() string {
	if c.CompressedText != "" {
		return c.CompressedText
	}
	return c.Text
}

// MetadataFilters holds filters extracted from the query by the
// self-query stage. Only Section is applied (to vector search); the
// others are extracted and reported but deliberately not enforced.
type MetadataFilters struct {
	Section      store.SectionType
	YearFrom     int
	YearTo       int
	RequireTable bool
}

// Empty reports whether no filter was extracted.
func (f MetadataFilters) Empty() bool {
	return f.Section == "" && f.YearFrom == 0 && f.YearTo == 0 && !f.RequireTable
}

// Options is a per-call override of the configured pipeline defaults.
// Nil toggles fall back to the configured value.
type Options struct {
	// PaperIDs restricts retrieval to the given papers.
	PaperIDs []string

	TopK         int
	VectorLimit  int
	KeywordLimit int

	MultiQuery    *bool
	HyDE          *bool
	SelfQuery     *bool
	Rerank        *bool
	Compression   *bool
	Decomposition *bool
}

// Bool is a convenience for building Options literals.
func Bool(v bool) *bool { return &v }

// settings is Options resolved against the configured defaults.
type settings struct {
	paperIDs     []string
	topK         int
	vectorLimit  int
	keywordLimit int
	rrfK         int
	rerankPool   int

	multiQuery    bool
	hyde          bool
	selfQuery     bool
	rerank        bool
	compression   bool
	decomposition bool
}

// Result is the outcome of a retrieval, including the intermediate
// signals that explain how the chunks were found.
type Result struct {
	Chunks []CompressedChunk

	// QueryVariants are the texts used for retrieval (original first).
	QueryVariants []string

	// Hypothetical is the HyDE passage, empty if the stage was off.
	Hypothetical string

	// Filters are the extracted metadata filters.
	Filters MetadataFilters

	// SubQuestions are the decomposition outputs, empty when the query
	// was handled as a single question.
	SubQuestions []string
}

// ceilDiv returns ceil(a/b) for positive b.
func ceilDiv(a, b int) int {
	return int(math.Ceil(float64(a) / float64(b)))
}
