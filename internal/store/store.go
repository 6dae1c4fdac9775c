package store

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	scherrors "github.com/scholaq/scholaq/internal/errors"
)

// Index file names inside the data directory.
const (
	metadataFile = "scholaq.db"
	keywordBleve = "keyword.bleve"
	keywordFTS   = "keyword.db"
	vectorFile   = "vectors.hnsw"
	lockFile     = ".scholaq.lock"
)

// Options configures Open.
type Options struct {
	// KeywordBackend selects "bleve" or "sqlite".
	KeywordBackend string

	// Dimensions is the embedding dimension for the vector index.
	Dimensions int

	// InMemory keeps all state in memory (tests).
	InMemory bool
}

// Store is the combined persistence layer: paper and chunk metadata,
// keyword index and vector index, kept consistent by construction.
// Chunks enter the vector index only when an embedding exists for them.
type Store struct {
	Metadata *MetadataStore
	Keyword  KeywordIndex
	Vector   VectorIndex

	dir   string
	flock *flock.Flock
}

// Open opens the store in dir, taking an exclusive file lock so two
// processes cannot write the same library concurrently.
func Open(dir string, opts Options) (*Store, error) {
	if opts.InMemory {
		return openInMemory(opts)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, scherrors.Wrap(err, scherrors.ErrCodeStoreOpen, "create data directory")
	}

	fl := flock.New(filepath.Join(dir, lockFile))
	locked, err := fl.TryLock()
	if err != nil {
		return nil, scherrors.Wrap(err, scherrors.ErrCodeStoreLocked, "acquire library lock")
	}
	if !locked {
		return nil, scherrors.New(scherrors.ErrCodeStoreLocked, "library is in use by another process").
			WithSuggestion("close other scholaq processes and retry")
	}

	meta, err := NewMetadataStore(filepath.Join(dir, metadataFile))
	if err != nil {
		_ = fl.Unlock()
		return nil, err
	}

	keywordPath := filepath.Join(dir, keywordBleve)
	if opts.KeywordBackend == "sqlite" {
		keywordPath = filepath.Join(dir, keywordFTS)
	}
	keyword, err := NewKeywordIndex(opts.KeywordBackend, keywordPath)
	if err != nil {
		_ = meta.Close()
		_ = fl.Unlock()
		return nil, err
	}

	vector, err := NewHNSWIndex(VectorConfig{Dimensions: opts.Dimensions})
	if err != nil {
		_ = keyword.Close()
		_ = meta.Close()
		_ = fl.Unlock()
		return nil, err
	}

	s := &Store{Metadata: meta, Keyword: keyword, Vector: vector, dir: dir, flock: fl}

	vectorPath := filepath.Join(dir, vectorFile)
	if _, statErr := os.Stat(vectorPath); statErr == nil {
		if loadErr := vector.Load(vectorPath); loadErr != nil {
			slog.Warn("vector index load failed, rebuilding from metadata", "error", loadErr)
			if rebuildErr := s.rebuildVectorIndex(context.Background()); rebuildErr != nil {
				_ = s.Close()
				return nil, rebuildErr
			}
		}
	} else if rebuildErr := s.rebuildVectorIndex(context.Background()); rebuildErr != nil {
		_ = s.Close()
		return nil, rebuildErr
	}

	return s, nil
}

func openInMemory(opts Options) (*Store, error) {
	meta, err := NewMetadataStore("")
	if err != nil {
		return nil, err
	}
	keyword, err := NewKeywordIndex(opts.KeywordBackend, "")
	if err != nil {
		_ = meta.Close()
		return nil, err
	}
	vector, err := NewHNSWIndex(VectorConfig{Dimensions: opts.Dimensions})
	if err != nil {
		_ = keyword.Close()
		_ = meta.Close()
		return nil, err
	}
	return &Store{Metadata: meta, Keyword: keyword, Vector: vector}, nil
}

// rebuildVectorIndex reloads all stored embeddings into a fresh graph.
func (s *Store) rebuildVectorIndex(ctx context.Context) error {
	embeddings, err := s.Metadata.AllEmbeddings(ctx)
	if err != nil {
		return err
	}
	if len(embeddings) == 0 {
		return nil
	}

	ids := make([]string, 0, len(embeddings))
	vectors := make([][]float32, 0, len(embeddings))
	for id, vec := range embeddings {
		ids = append(ids, id)
		vectors = append(vectors, vec)
	}
	return s.Vector.Add(ctx, ids, vectors)
}

// ImportPaper saves a paper with its chunks and indexes them.
// Embeddings may cover only a subset of chunks; chunks without one stay
// out of the vector index and are only reachable via keyword search.
func (s *Store) ImportPaper(ctx context.Context, paper *Paper, chunks []*Chunk, embeddings map[string][]float32, model string) error {
	paper.ChunkCount = len(chunks)
	if err := s.Metadata.SavePaper(ctx, paper); err != nil {
		return scherrors.Wrapf(err, scherrors.ErrCodeStoreOpen, "save paper %s", paper.ID)
	}
	if err := s.Metadata.SaveChunks(ctx, chunks); err != nil {
		return scherrors.Wrapf(err, scherrors.ErrCodeStoreOpen, "save chunks for paper %s", paper.ID)
	}
	if err := s.Keyword.Index(ctx, chunks); err != nil {
		return scherrors.Wrapf(err, scherrors.ErrCodeStoreOpen, "index chunks for paper %s", paper.ID)
	}

	if len(embeddings) == 0 {
		return nil
	}
	var ids []string
	var vectors [][]float32
	for _, c := range chunks {
		if vec, ok := embeddings[c.ID]; ok {
			ids = append(ids, c.ID)
			vectors = append(vectors, vec)
		}
	}
	if err := s.Metadata.SaveEmbeddings(ctx, ids, vectors, model); err != nil {
		return err
	}
	return s.Vector.Add(ctx, ids, vectors)
}

// SearchKeyword runs a scoped keyword search and joins chunk metadata.
func (s *Store) SearchKeyword(ctx context.Context, query string, paperIDs []string, limit int) ([]*ScoredChunk, error) {
	hits, err := s.Keyword.Search(ctx, query, paperIDs, limit)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(hits))
	scores := make(map[string]float64, len(hits))
	for i, h := range hits {
		ids[i] = h.ChunkID
		scores[h.ChunkID] = h.Score
	}

	chunks, err := s.Metadata.GetChunks(ctx, ids)
	if err != nil {
		return nil, err
	}

	results := make([]*ScoredChunk, 0, len(chunks))
	for _, c := range chunks {
		results = append(results, &ScoredChunk{Chunk: c, Score: scores[c.ID]})
	}
	return results, nil
}

// SearchVector runs a vector search constrained by scope. HNSW has no
// native filtering, so filtered searches widen k to the full index and
// filter afterward; at library scale this stays cheap.
func (s *Store) SearchVector(ctx context.Context, queryVec []float32, scope Scope, limit int) ([]*ScoredChunk, error) {
	if limit <= 0 {
		return []*ScoredChunk{}, nil
	}

	filtered := len(scope.PaperIDs) > 0 || scope.Section != ""
	k := limit
	if filtered {
		k = s.Vector.Count()
		if k == 0 {
			return []*ScoredChunk{}, nil
		}
	}

	hits, err := s.Vector.Search(ctx, queryVec, k)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return []*ScoredChunk{}, nil
	}

	ids := make([]string, len(hits))
	scores := make(map[string]float64, len(hits))
	for i, h := range hits {
		ids[i] = h.ChunkID
		scores[h.ChunkID] = float64(h.Score)
	}

	chunks, err := s.Metadata.GetChunks(ctx, ids)
	if err != nil {
		return nil, err
	}

	results := make([]*ScoredChunk, 0, limit)
	for _, c := range chunks {
		if !scope.ContainsPaper(c.PaperID) {
			continue
		}
		if scope.Section != "" && c.Section != scope.Section {
			continue
		}
		results = append(results, &ScoredChunk{Chunk: c, Score: scores[c.ID]})
		if len(results) == limit {
			break
		}
	}
	return results, nil
}

// Save persists the vector index snapshot. Metadata and keyword indexes
// persist their own writes.
func (s *Store) Save() error {
	if s.dir == "" {
		return nil
	}
	return s.Vector.Save(filepath.Join(s.dir, vectorFile))
}

// Close releases all resources and the library lock.
func (s *Store) Close() error {
	var firstErr error
	if err := s.Vector.Close(); err != nil {
		firstErr = err
	}
	if err := s.Keyword.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := s.Metadata.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if s.flock != nil {
		if err := s.flock.Unlock(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
