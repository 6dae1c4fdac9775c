package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open("", Options{KeywordBackend: "bleve", Dimensions: 4, InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// importFixture loads one paper with three chunks. Only c1 and c2 get
// embeddings; c3 is keyword-only.
func importFixture(t *testing.T, s *Store) {
	t.Helper()
	ctx := context.Background()

	paper := &Paper{ID: "p1", Title: "Statins and LDL", Authors: []string{"Ng R"}, Year: 2020}
	chunks := []*Chunk{
		{ID: "c1", PaperID: "p1", Text: "Atorvastatin reduced LDL cholesterol significantly.", ChunkIndex: 0, Section: SectionResults},
		{ID: "c2", PaperID: "p1", Text: "Patients received 40mg daily for twelve weeks.", ChunkIndex: 1, Section: SectionMethods},
		{ID: "c3", PaperID: "p1", Text: "Atorvastatin adherence was self reported.", ChunkIndex: 2, Section: SectionMethods},
	}
	embeddings := map[string][]float32{
		"c1": {1, 0, 0, 0},
		"c2": {0, 1, 0, 0},
	}
	require.NoError(t, s.ImportPaper(ctx, paper, chunks, embeddings, "static"))
}

func TestStore_ImportPaperSetsChunkCount(t *testing.T) {
	s := newTestStore(t)
	importFixture(t, s)

	paper, err := s.Metadata.GetPaper(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, 3, paper.ChunkCount)
}

func TestStore_ChunkWithoutEmbeddingInvisibleToVectorSearch(t *testing.T) {
	s := newTestStore(t)
	importFixture(t, s)
	ctx := context.Background()

	hits, err := s.SearchVector(ctx, []float32{1, 0, 0, 0}, Scope{}, 10)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	for _, h := range hits {
		assert.NotEqual(t, "c3", h.Chunk.ID)
	}

	// The same chunk is still reachable via keyword search.
	khits, err := s.SearchKeyword(ctx, "adherence", nil, 10)
	require.NoError(t, err)
	require.Len(t, khits, 1)
	assert.Equal(t, "c3", khits[0].Chunk.ID)
}

func TestStore_SearchVectorSectionFilter(t *testing.T) {
	s := newTestStore(t)
	importFixture(t, s)
	ctx := context.Background()

	hits, err := s.SearchVector(ctx, []float32{1, 0, 0, 0}, Scope{Section: SectionMethods}, 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "c2", hits[0].Chunk.ID)
}

func TestStore_SearchVectorPaperScope(t *testing.T) {
	s := newTestStore(t)
	importFixture(t, s)
	ctx := context.Background()

	// Second paper with its own embedded chunk.
	require.NoError(t, s.ImportPaper(ctx,
		&Paper{ID: "p2", Title: "Unrelated"},
		[]*Chunk{{ID: "c4", PaperID: "p2", Text: "Different topic entirely.", Section: SectionAbstract}},
		map[string][]float32{"c4": {0.9, 0.1, 0, 0}}, "static"))

	hits, err := s.SearchVector(ctx, []float32{1, 0, 0, 0}, Scope{PaperIDs: []string{"p2"}}, 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "c4", hits[0].Chunk.ID)
}

func TestStore_SearchKeywordJoinsMetadata(t *testing.T) {
	s := newTestStore(t)
	importFixture(t, s)

	hits, err := s.SearchKeyword(context.Background(), "atorvastatin", nil, 10)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	for _, h := range hits {
		assert.Equal(t, "p1", h.Chunk.PaperID)
		assert.NotEmpty(t, h.Chunk.Text)
		assert.Greater(t, h.Score, 0.0)
	}
}

func TestStore_SearchVectorEmptyLibrary(t *testing.T) {
	s := newTestStore(t)

	hits, err := s.SearchVector(context.Background(), []float32{1, 0, 0, 0}, Scope{Section: SectionResults}, 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}
