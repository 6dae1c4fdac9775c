package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestVector(t *testing.T) *HNSWIndex {
	t.Helper()
	idx, err := NewHNSWIndex(VectorConfig{Dimensions: 4})
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func TestHNSWIndex_SearchNearestFirst(t *testing.T) {
	idx := newTestVector(t)
	ctx := context.Background()

	require.NoError(t, idx.Add(ctx,
		[]string{"c1", "c2", "c3"},
		[][]float32{
			{1, 0, 0, 0},
			{0, 1, 0, 0},
			{0.9, 0.1, 0, 0},
		}))

	hits, err := idx.Search(ctx, []float32{1, 0, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "c1", hits[0].ChunkID)
	assert.Equal(t, "c3", hits[1].ChunkID)
	assert.Greater(t, hits[0].Score, hits[1].Score)
}

func TestHNSWIndex_EmptyIndex(t *testing.T) {
	idx := newTestVector(t)

	hits, err := idx.Search(context.Background(), []float32{1, 0, 0, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestHNSWIndex_DimensionMismatch(t *testing.T) {
	idx := newTestVector(t)
	ctx := context.Background()

	err := idx.Add(ctx, []string{"c1"}, [][]float32{{1, 0}})
	assert.Error(t, err)

	_, err = idx.Search(ctx, []float32{1, 0}, 5)
	assert.Error(t, err)
}

func TestHNSWIndex_LazyDelete(t *testing.T) {
	idx := newTestVector(t)
	ctx := context.Background()

	require.NoError(t, idx.Add(ctx,
		[]string{"c1", "c2"},
		[][]float32{{1, 0, 0, 0}, {0, 1, 0, 0}}))
	require.NoError(t, idx.Delete(ctx, []string{"c1"}))

	assert.False(t, idx.Contains("c1"))
	assert.True(t, idx.Contains("c2"))
	assert.Equal(t, 1, idx.Count())

	hits, err := idx.Search(ctx, []float32{1, 0, 0, 0}, 5)
	require.NoError(t, err)
	for _, h := range hits {
		assert.NotEqual(t, "c1", h.ChunkID)
	}
}

func TestHNSWIndex_ReplaceExisting(t *testing.T) {
	idx := newTestVector(t)
	ctx := context.Background()

	require.NoError(t, idx.Add(ctx, []string{"c1"}, [][]float32{{1, 0, 0, 0}}))
	require.NoError(t, idx.Add(ctx, []string{"c1"}, [][]float32{{0, 0, 0, 1}}))

	assert.Equal(t, 1, idx.Count())

	hits, err := idx.Search(ctx, []float32{0, 0, 0, 1}, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "c1", hits[0].ChunkID)
	assert.InDelta(t, 1.0, float64(hits[0].Score), 1e-5)
}

func TestHNSWIndex_SaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vectors.hnsw")
	ctx := context.Background()

	idx, err := NewHNSWIndex(VectorConfig{Dimensions: 4})
	require.NoError(t, err)
	require.NoError(t, idx.Add(ctx,
		[]string{"c1", "c2"},
		[][]float32{{1, 0, 0, 0}, {0, 1, 0, 0}}))
	require.NoError(t, idx.Save(path))
	require.NoError(t, idx.Close())

	restored, err := NewHNSWIndex(VectorConfig{Dimensions: 4})
	require.NoError(t, err)
	defer func() { _ = restored.Close() }()
	require.NoError(t, restored.Load(path))

	assert.Equal(t, 2, restored.Count())
	hits, err := restored.Search(ctx, []float32{1, 0, 0, 0}, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "c1", hits[0].ChunkID)
}

func TestHNSWIndex_LoadDimensionMismatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vectors.hnsw")
	ctx := context.Background()

	idx, err := NewHNSWIndex(VectorConfig{Dimensions: 4})
	require.NoError(t, err)
	require.NoError(t, idx.Add(ctx, []string{"c1"}, [][]float32{{1, 0, 0, 0}}))
	require.NoError(t, idx.Save(path))
	require.NoError(t, idx.Close())

	other, err := NewHNSWIndex(VectorConfig{Dimensions: 8})
	require.NoError(t, err)
	defer func() { _ = other.Close() }()

	assert.Error(t, other.Load(path))
}

func TestVectorCodec_RoundTrip(t *testing.T) {
	in := []float32{0.1, -2.5, 0, 42}
	out := decodeVector(encodeVector(in))
	assert.Equal(t, in, out)
}
