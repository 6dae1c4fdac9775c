package mcp

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scholaq/scholaq/internal/rag"
	"github.com/scholaq/scholaq/internal/store"
)

type fakeRetriever struct {
	result   *rag.Result
	err      error
	lastOpts rag.Options
}

func (f *fakeRetriever) Retrieve(_ context.Context, _ string, opts rag.Options) (*rag.Result, error) {
	f.lastOpts = opts
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func newTestServer(t *testing.T, retriever Retriever) *Server {
	t.Helper()

	meta, err := store.NewMetadataStore("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = meta.Close() })

	require.NoError(t, meta.SavePaper(context.Background(), &store.Paper{
		ID:      "p1",
		Title:   "Glycemic control with metformin",
		Authors: []string{"Ada Lovelace"},
		Year:    2019,
		Journal: "Diabetes Care",
	}))

	s, err := NewServer(retriever, meta)
	require.NoError(t, err)
	return s
}

func searchResult() *rag.Result {
	return &rag.Result{
		QueryVariants: []string{"q"},
		Chunks: []rag.CompressedChunk{
			{
				RerankedChunk: rag.RerankedChunk{
					FusedChunk: rag.FusedChunk{
						ChunkResult: rag.ChunkResult{
							ID:      "c1",
							PaperID: "p1",
							Text:    "Metformin reduced HbA1c.",
							Section: store.SectionResults,
						},
						Sources: []rag.Source{rag.SourceVector},
					},
					RerankScore: 0.8,
				},
			},
		},
	}
}

func TestNewServer_RequiresDependencies(t *testing.T) {
	meta, err := store.NewMetadataStore("")
	require.NoError(t, err)
	defer meta.Close()

	_, err = NewServer(nil, meta)
	assert.Error(t, err)

	_, err = NewServer(&fakeRetriever{}, nil)
	assert.Error(t, err)
}

func TestResearchSearch(t *testing.T) {
	retriever := &fakeRetriever{result: searchResult()}
	s := newTestServer(t, retriever)

	_, out, err := s.researchSearchHandler(context.Background(), nil, ResearchSearchInput{
		Query:    "metformin",
		PaperIDs: []string{"p1"},
		TopK:     5,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"p1"}, retriever.lastOpts.PaperIDs)
	assert.Equal(t, 5, retriever.lastOpts.TopK)
	assert.Nil(t, retriever.lastOpts.Decomposition)

	require.Len(t, out.Chunks, 1)
	c := out.Chunks[0]
	assert.Equal(t, "c1", c.ChunkID)
	assert.Equal(t, "Glycemic control with metformin", c.PaperTitle)
	assert.Equal(t, "Metformin reduced HbA1c.", c.Text)
	assert.Equal(t, []string{"vector"}, c.Sources)
	assert.Contains(t, c.Citation, "Lovelace, A. (2019).")
}

func TestResearchSearch_OptionalStages(t *testing.T) {
	retriever := &fakeRetriever{result: searchResult()}
	s := newTestServer(t, retriever)

	_, _, err := s.researchSearchHandler(context.Background(), nil, ResearchSearchInput{
		Query:     "metformin",
		Decompose: true,
		Compress:  true,
	})
	require.NoError(t, err)

	require.NotNil(t, retriever.lastOpts.Decomposition)
	assert.True(t, *retriever.lastOpts.Decomposition)
	require.NotNil(t, retriever.lastOpts.Compression)
	assert.True(t, *retriever.lastOpts.Compression)
}

func TestResearchSearch_EmptyQuery(t *testing.T) {
	s := newTestServer(t, &fakeRetriever{result: searchResult()})

	_, _, err := s.researchSearchHandler(context.Background(), nil, ResearchSearchInput{})
	assert.Error(t, err)
}

func TestResearchSearch_PipelineError(t *testing.T) {
	s := newTestServer(t, &fakeRetriever{err: errors.New("llm down")})

	_, _, err := s.researchSearchHandler(context.Background(), nil, ResearchSearchInput{Query: "q"})
	assert.Error(t, err)
}

func TestListPapers(t *testing.T) {
	s := newTestServer(t, &fakeRetriever{})

	_, out, err := s.listPapersHandler(context.Background(), nil, ListPapersInput{})
	require.NoError(t, err)

	require.Len(t, out.Papers, 1)
	assert.Equal(t, "p1", out.Papers[0].ID)
	assert.Equal(t, 2019, out.Papers[0].Year)
}
