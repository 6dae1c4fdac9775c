package rag

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scholaq/scholaq/internal/config"
	"github.com/scholaq/scholaq/internal/embed"
	"github.com/scholaq/scholaq/internal/store"
)

// newTestPipeline builds a pipeline over an in-memory store seeded with
// a small cross-topic corpus, using the static embedder and a scripted
// generator. Reranking degrades via NoopReranker.
func newTestPipeline(t *testing.T, gen *fakeGenerator) *Pipeline {
	t.Helper()
	ctx := context.Background()

	s, err := store.Open("", store.Options{
		KeywordBackend: "bleve",
		Dimensions:     embed.StaticDimensions,
		InMemory:       true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	embedder := embed.NewStaticEmbedder()
	t.Cleanup(func() { _ = embedder.Close() })

	papers := map[string][]*store.Chunk{
		"p1": {
			{ID: "c-metformin", PaperID: "p1", Text: "Metformin reduced HbA1c levels in patients with type 2 diabetes.", Section: store.SectionResults},
			{ID: "c-dosing", PaperID: "p1", Text: "Metformin dosing protocol was twice daily with meals.", Section: store.SectionMethods},
		},
		"p2": {
			{ID: "c-statin", PaperID: "p2", Text: "Atorvastatin lowered LDL cholesterol in the statin arm.", Section: store.SectionResults},
			{ID: "c-seismic", PaperID: "p2", Text: "Seismic waves propagate through the crust of the earth.", Section: store.SectionOther},
		},
	}
	for paperID, chunks := range papers {
		embeddings := make(map[string][]float32)
		for _, c := range chunks {
			vec, embErr := embedder.Embed(ctx, c.Text)
			require.NoError(t, embErr)
			embeddings[c.ID] = vec
		}
		require.NoError(t, s.ImportPaper(ctx,
			&store.Paper{ID: paperID, Title: "Paper " + paperID},
			chunks, embeddings, "static"))
	}

	cfg := config.Default().Retrieval
	return New(s, embedder, gen, NoopReranker{}, cfg)
}

func TestPipeline_EmptyQuery(t *testing.T) {
	p := newTestPipeline(t, &fakeGenerator{})

	_, err := p.Retrieve(context.Background(), "   ", Options{})
	assert.Error(t, err)
}

func TestPipeline_AllStagesOff(t *testing.T) {
	p := newTestPipeline(t, &fakeGenerator{})

	result, err := p.Retrieve(context.Background(), "atorvastatin LDL cholesterol", Options{
		MultiQuery:    Bool(false),
		HyDE:          Bool(false),
		SelfQuery:     Bool(false),
		Rerank:        Bool(false),
		Decomposition: Bool(false),
		TopK:          3,
	})
	require.NoError(t, err)

	// Degenerate configuration: a single query variant, no hypothetical,
	// no filters, plain hybrid search.
	assert.Equal(t, []string{"atorvastatin LDL cholesterol"}, result.QueryVariants)
	assert.Empty(t, result.Hypothetical)
	assert.True(t, result.Filters.Empty())
	assert.Empty(t, result.SubQuestions)

	require.NotEmpty(t, result.Chunks)
	assert.LessOrEqual(t, len(result.Chunks), 3)
	assert.Equal(t, "c-statin", result.Chunks[0].ID)
	assert.ElementsMatch(t, []Source{SourceVector, SourceKeyword}, result.Chunks[0].Sources)
}

func TestPipeline_DefaultsRunExpansionStages(t *testing.T) {
	gen := &fakeGenerator{
		rewriteReply: "metformin glucose lowering\nmetformin HbA1c effect\nbiguanide glycemic control",
		hydeReply:    "Metformin reduced HbA1c in randomized trials of type 2 diabetes.",
	}
	p := newTestPipeline(t, gen)

	result, err := p.Retrieve(context.Background(), "how well does metformin lower HbA1c", Options{})
	require.NoError(t, err)

	assert.Len(t, result.QueryVariants, 4)
	assert.Equal(t, "how well does metformin lower HbA1c", result.QueryVariants[0])
	assert.NotEmpty(t, result.Hypothetical)

	require.NotEmpty(t, result.Chunks)
	assert.Equal(t, "c-metformin", result.Chunks[0].ID)
}

func TestPipeline_RerankDegradationKeepsFusedOrder(t *testing.T) {
	p := newTestPipeline(t, &fakeGenerator{})

	result, err := p.Retrieve(context.Background(), "metformin HbA1c diabetes", Options{
		MultiQuery: Bool(false),
		HyDE:       Bool(false),
		SelfQuery:  Bool(false),
	})
	require.NoError(t, err)

	require.NotEmpty(t, result.Chunks)
	for i, c := range result.Chunks {
		assert.Equal(t, c.RRFScore, c.RerankScore, "chunk %d", i)
		if i > 0 {
			assert.GreaterOrEqual(t, result.Chunks[i-1].RRFScore, c.RRFScore)
		}
	}
}

func TestPipeline_SectionFilterSkipsKeywordSearch(t *testing.T) {
	// The extracted section filter constrains vector search only: the
	// methods chunk still arrives through the keyword channel.
	gen := &fakeGenerator{selfQueryReply: `{"sectionType": "results"}`}
	p := newTestPipeline(t, gen)

	result, err := p.Retrieve(context.Background(), "metformin dosing protocol", Options{
		MultiQuery: Bool(false),
		HyDE:       Bool(false),
	})
	require.NoError(t, err)
	assert.Equal(t, store.SectionResults, result.Filters.Section)

	var dosing *CompressedChunk
	for i := range result.Chunks {
		if result.Chunks[i].ID == "c-dosing" {
			dosing = &result.Chunks[i]
		}
		if result.Chunks[i].Section != store.SectionResults {
			// Anything outside the filtered section can only have come
			// from the keyword channel.
			assert.Equal(t, []Source{SourceKeyword}, result.Chunks[i].Sources)
		}
	}
	require.NotNil(t, dosing, "methods chunk must survive via keyword search")
}

func TestPipeline_PaperScope(t *testing.T) {
	p := newTestPipeline(t, &fakeGenerator{})

	result, err := p.Retrieve(context.Background(), "metformin", Options{
		PaperIDs:   []string{"p2"},
		MultiQuery: Bool(false),
		HyDE:       Bool(false),
		SelfQuery:  Bool(false),
	})
	require.NoError(t, err)

	for _, c := range result.Chunks {
		assert.Equal(t, "p2", c.PaperID)
	}
}

func TestPipeline_Decomposition(t *testing.T) {
	gen := &fakeGenerator{
		decomposeReply: `{"isComplex": true, "subQuestions": ["metformin HbA1c diabetes", "atorvastatin LDL cholesterol"]}`,
	}
	p := newTestPipeline(t, gen)

	result, err := p.Retrieve(context.Background(), "compare metformin and atorvastatin outcomes", Options{
		Decomposition: Bool(true),
		MultiQuery:    Bool(false),
		HyDE:          Bool(false),
		SelfQuery:     Bool(false),
		TopK:          4,
	})
	require.NoError(t, err)

	assert.Len(t, result.SubQuestions, 2)

	ids := make(map[string]int)
	for _, c := range result.Chunks {
		ids[c.ID]++
	}
	// Merged results are deduplicated by chunk ID.
	for id, n := range ids {
		assert.Equal(t, 1, n, "chunk %s appears once", id)
	}
	assert.Contains(t, ids, "c-metformin")
	assert.Contains(t, ids, "c-statin")
}

func TestPipeline_DecompositionSimpleFallsThrough(t *testing.T) {
	gen := &fakeGenerator{decomposeReply: `{"isComplex": false, "subQuestions": []}`}
	p := newTestPipeline(t, gen)

	result, err := p.Retrieve(context.Background(), "metformin", Options{
		Decomposition: Bool(true),
		MultiQuery:    Bool(false),
		HyDE:          Bool(false),
		SelfQuery:     Bool(false),
	})
	require.NoError(t, err)
	assert.Empty(t, result.SubQuestions)
	assert.NotEmpty(t, result.Chunks)
}

func TestPipeline_Compression(t *testing.T) {
	gen := &fakeGenerator{compressFn: func(prompt string) string {
		if strings.Contains(prompt, "Metformin") {
			return "Metformin reduced HbA1c levels."
		}
		return ""
	}}
	p := newTestPipeline(t, gen)

	result, err := p.Retrieve(context.Background(), "metformin HbA1c", Options{
		MultiQuery:  Bool(false),
		HyDE:        Bool(false),
		SelfQuery:   Bool(false),
		Compression: Bool(true),
	})
	require.NoError(t, err)

	require.NotEmpty(t, result.Chunks)
	for _, c := range result.Chunks {
		assert.Equal(t, "Metformin reduced HbA1c levels.", c.CompressedText)
		assert.Equal(t, c.CompressedText, c.FinalText())
	}
}

func TestPipeline_TopKRespected(t *testing.T) {
	p := newTestPipeline(t, &fakeGenerator{})

	result, err := p.Retrieve(context.Background(), "metformin atorvastatin seismic", Options{
		MultiQuery: Bool(false),
		HyDE:       Bool(false),
		SelfQuery:  Bool(false),
		TopK:       2,
	})
	require.NoError(t, err)
	assert.LessOrEqual(t, len(result.Chunks), 2)
}
