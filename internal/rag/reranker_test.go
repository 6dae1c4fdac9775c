package rag

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fusedFixture(ids ...string) []FusedChunk {
	fused := make([]FusedChunk, len(ids))
	for i, id := range ids {
		fused[i] = FusedChunk{
			ChunkResult: ChunkResult{ID: id, Text: "text " + id},
			RRFScore:    1.0 / float64(61+i),
			Sources:     []Source{SourceVector},
		}
	}
	return fused
}

func TestCohereReranker_Rerank(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req cohereRerankRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "rerank-v3.5", req.Model)
		assert.False(t, req.ReturnDocuments)

		// Reverse the submitted order.
		resp := map[string]any{"results": []map[string]any{
			{"index": 2, "relevance_score": 0.95},
			{"index": 0, "relevance_score": 0.40},
		}}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer srv.Close()

	r := NewCohereReranker(CohereConfig{Endpoint: srv.URL, APIKey: "test-key"})
	require.True(t, r.Available())

	results, err := r.Rerank(context.Background(), "query", []string{"a", "b", "c"}, 2)
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, 2, results[0].Index)
	assert.InDelta(t, 0.95, results[0].Score, 1e-9)
	assert.Equal(t, 0, results[1].Index)
}

func TestCohereReranker_MissingKey(t *testing.T) {
	r := NewCohereReranker(CohereConfig{})
	assert.False(t, r.Available())

	_, err := r.Rerank(context.Background(), "q", []string{"a"}, 1)
	assert.Error(t, err)
}

func TestRerankChunks_AppliesVerdictOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{"results": []map[string]any{
			{"index": 1, "relevance_score": 0.9},
			{"index": 0, "relevance_score": 0.1},
		}}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer srv.Close()

	reranker := NewCohereReranker(CohereConfig{Endpoint: srv.URL, APIKey: "k"})
	fused := fusedFixture("a", "b", "c")

	out := rerankChunks(context.Background(), reranker, "q", fused, 2)
	require.Len(t, out, 2)
	assert.Equal(t, "b", out[0].ID)
	assert.InDelta(t, 0.9, out[0].RerankScore, 1e-9)
	assert.Equal(t, "a", out[1].ID)
}

func TestRerankChunks_DegradesWithoutCredential(t *testing.T) {
	fused := fusedFixture("a", "b", "c")

	out := rerankChunks(context.Background(), NoopReranker{}, "q", fused, 2)

	// Fused order preserved, RerankScore mirrors RRFScore.
	require.Len(t, out, 2)
	assert.Equal(t, "a", out[0].ID)
	assert.Equal(t, out[0].RRFScore, out[0].RerankScore)
	assert.Equal(t, "b", out[1].ID)
	assert.Equal(t, out[1].RRFScore, out[1].RerankScore)
}

func TestRerankChunks_DegradesOnServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	reranker := NewCohereReranker(CohereConfig{Endpoint: srv.URL, APIKey: "k"})
	fused := fusedFixture("a", "b")

	out := rerankChunks(context.Background(), reranker, "q", fused, 2)
	require.Len(t, out, 2)
	assert.Equal(t, "a", out[0].ID)
	assert.Equal(t, out[0].RRFScore, out[0].RerankScore)
}

func TestRerankChunks_TopKBoundedByInput(t *testing.T) {
	fused := fusedFixture("a", "b")

	out := rerankChunks(context.Background(), nil, "q", fused, 8)
	assert.Len(t, out, 2)
}

func TestRerankChunks_EmptyInput(t *testing.T) {
	out := rerankChunks(context.Background(), NoopReranker{}, "q", nil, 8)
	assert.Empty(t, out)
}
