package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"

	scherrors "github.com/scholaq/scholaq/internal/errors"
)

// BleveKeywordIndex implements KeywordIndex using Bleve's BM25 scoring.
// Chunk text is analyzed with the English analyzer; paper IDs are
// indexed verbatim so scoping is a cheap term filter inside the query.
type BleveKeywordIndex struct {
	mu     sync.RWMutex
	index  bleve.Index
	path   string
	closed bool
}

var _ KeywordIndex = (*BleveKeywordIndex)(nil)

// bleveChunkDoc is the indexed document shape.
type bleveChunkDoc struct {
	Text    string `json:"text"`
	PaperID string `json:"paper_id"`
}

// NewBleveKeywordIndex opens or creates a Bleve index at path.
// An empty path creates an in-memory index for tests.
func NewBleveKeywordIndex(path string) (*BleveKeywordIndex, error) {
	indexMapping, err := createChunkMapping()
	if err != nil {
		return nil, err
	}

	var idx bleve.Index
	if path == "" {
		idx, err = bleve.NewMemOnly(indexMapping)
	} else {
		if mkErr := os.MkdirAll(filepath.Dir(path), 0o755); mkErr != nil {
			return nil, scherrors.Wrap(mkErr, scherrors.ErrCodeStoreOpen, "create index directory")
		}
		idx, err = bleve.Open(path)
		if err == bleve.ErrorIndexPathDoesNotExist {
			idx, err = bleve.New(path, indexMapping)
		}
	}
	if err != nil {
		return nil, scherrors.Wrap(err, scherrors.ErrCodeStoreOpen, "open keyword index")
	}

	return &BleveKeywordIndex{index: idx, path: path}, nil
}

func createChunkMapping() (*mapping.IndexMappingImpl, error) {
	textField := bleve.NewTextFieldMapping()
	textField.Analyzer = en.AnalyzerName

	paperField := bleve.NewTextFieldMapping()
	paperField.Analyzer = keyword.Name
	paperField.Store = false
	paperField.IncludeInAll = false

	docMapping := bleve.NewDocumentMapping()
	docMapping.AddFieldMappingsAt("text", textField)
	docMapping.AddFieldMappingsAt("paper_id", paperField)

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultMapping = docMapping
	indexMapping.DefaultAnalyzer = en.AnalyzerName
	return indexMapping, nil
}

// Index adds or replaces chunks.
func (b *BleveKeywordIndex) Index(ctx context.Context, chunks []*Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return scherrors.New(scherrors.ErrCodeStoreOpen, "keyword index is closed")
	}

	batch := b.index.NewBatch()
	for _, c := range chunks {
		doc := bleveChunkDoc{Text: c.Text, PaperID: c.PaperID}
		if err := batch.Index(c.ID, doc); err != nil {
			return fmt.Errorf("index chunk %s: %w", c.ID, err)
		}
	}
	return b.index.Batch(batch)
}

// Search returns chunks matching query within the given papers.
func (b *BleveKeywordIndex) Search(ctx context.Context, queryStr string, paperIDs []string, limit int) ([]*KeywordResult, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, scherrors.New(scherrors.ErrCodeStoreOpen, "keyword index is closed")
	}

	if strings.TrimSpace(queryStr) == "" || limit <= 0 {
		return []*KeywordResult{}, nil
	}

	matchQuery := bleve.NewMatchQuery(queryStr)
	matchQuery.SetField("text")

	var searchQuery query.Query = matchQuery
	if len(paperIDs) > 0 {
		terms := make([]query.Query, len(paperIDs))
		for i, id := range paperIDs {
			tq := bleve.NewTermQuery(id)
			tq.SetField("paper_id")
			terms[i] = tq
		}
		searchQuery = bleve.NewConjunctionQuery(matchQuery, bleve.NewDisjunctionQuery(terms...))
	}

	req := bleve.NewSearchRequest(searchQuery)
	req.Size = limit

	result, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, scherrors.Wrap(err, scherrors.ErrCodeSearchFailed, "keyword search failed")
	}

	results := make([]*KeywordResult, 0, len(result.Hits))
	for _, hit := range result.Hits {
		results = append(results, &KeywordResult{ChunkID: hit.ID, Score: hit.Score})
	}
	return results, nil
}

// Delete removes chunks by ID.
func (b *BleveKeywordIndex) Delete(ctx context.Context, chunkIDs []string) error {
	if len(chunkIDs) == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return scherrors.New(scherrors.ErrCodeStoreOpen, "keyword index is closed")
	}

	batch := b.index.NewBatch()
	for _, id := range chunkIDs {
		batch.Delete(id)
	}
	return b.index.Batch(batch)
}

// Count returns the number of indexed chunks.
func (b *BleveKeywordIndex) Count() (int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return 0, scherrors.New(scherrors.ErrCodeStoreOpen, "keyword index is closed")
	}

	n, err := b.index.DocCount()
	return int(n), err
}

// Close releases resources.
func (b *BleveKeywordIndex) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	return b.index.Close()
}
