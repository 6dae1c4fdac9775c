package rag

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/scholaq/scholaq/internal/config"
	"github.com/scholaq/scholaq/internal/embed"
	scherrors "github.com/scholaq/scholaq/internal/errors"
	"github.com/scholaq/scholaq/internal/llm"
	"github.com/scholaq/scholaq/internal/store"
)

// searchConcurrency bounds parallel variant searches.
const searchConcurrency = 8

// Pipeline orchestrates hybrid retrieval over the paper library.
type Pipeline struct {
	store    *store.Store
	embedder embed.Embedder
	reranker Reranker

	rewriter   *QueryRewriter
	hyde       *HyDE
	selfQuery  *SelfQuery
	decomposer *Decomposer
	compressor *Compressor

	defaults config.RetrievalConfig
}

// New creates a retrieval pipeline. The generator powers every LLM
// stage; the reranker may be a NoopReranker when no rerank credential
// is configured.
func New(s *store.Store, embedder embed.Embedder, gen llm.Generator, reranker Reranker, defaults config.RetrievalConfig) *Pipeline {
	if reranker == nil {
		reranker = NoopReranker{}
	}
	return &Pipeline{
		store:      s,
		embedder:   embedder,
		reranker:   reranker,
		rewriter:   NewQueryRewriter(gen),
		hyde:       NewHyDE(gen),
		selfQuery:  NewSelfQuery(gen),
		decomposer: NewDecomposer(gen),
		compressor: NewCompressor(gen),
		defaults:   defaults,
	}
}

// resolve merges per-call options with configured defaults.
func (p *Pipeline) resolve(opts Options) settings {
	s := settings{
		paperIDs:      opts.PaperIDs,
		topK:          p.defaults.TopK,
		vectorLimit:   p.defaults.VectorLimit,
		keywordLimit:  p.defaults.KeywordLimit,
		rrfK:          p.defaults.RRFConstant,
		rerankPool:    p.defaults.RerankPool,
		multiQuery:    p.defaults.UseMultiQuery,
		hyde:          p.defaults.UseHyDE,
		selfQuery:     p.defaults.UseSelfQuery,
		rerank:        p.defaults.UseRerank,
		compression:   p.defaults.UseCompression,
		decomposition: p.defaults.UseDecomposition,
	}
	if opts.TopK > 0 {
		s.topK = opts.TopK
	}
	if opts.VectorLimit > 0 {
		s.vectorLimit = opts.VectorLimit
	}
	if opts.KeywordLimit > 0 {
		s.keywordLimit = opts.KeywordLimit
	}
	if opts.MultiQuery != nil {
		s.multiQuery = *opts.MultiQuery
	}
	if opts.HyDE != nil {
		s.hyde = *opts.HyDE
	}
	if opts.SelfQuery != nil {
		s.selfQuery = *opts.SelfQuery
	}
	if opts.Rerank != nil {
		s.rerank = *opts.Rerank
	}
	if opts.Compression != nil {
		s.compression = *opts.Compression
	}
	if opts.Decomposition != nil {
		s.decomposition = *opts.Decomposition
	}
	if s.rrfK <= 0 {
		s.rrfK = DefaultRRFConstant
	}
	if s.rerankPool < s.topK {
		s.rerankPool = s.topK
	}
	return s
}

// Retrieve runs the full pipeline for a query.
func (p *Pipeline) Retrieve(ctx context.Context, query string, opts Options) (*Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, scherrors.New(scherrors.ErrCodeQueryEmpty, "query must not be empty")
	}

	s := p.resolve(opts)
	start := time.Now()

	if s.decomposition {
		subs, err := p.decomposer.Decompose(ctx, query)
		if err != nil {
			return nil, err
		}
		if len(subs) >= 2 {
			return p.retrieveDecomposed(ctx, query, subs, s, opts)
		}
	}

	result, err := p.retrieveSingle(ctx, query, s)
	if err != nil {
		return nil, err
	}

	slog.Debug("retrieval complete",
		"query", query,
		"chunks", len(result.Chunks),
		"variants", len(result.QueryVariants),
		"duration", time.Since(start))
	return result, nil
}

// retrieveDecomposed answers each sub-question independently with a
// proportional budget and merges the results, deduplicating by chunk ID
// in sub-question order.
func (p *Pipeline) retrieveDecomposed(ctx context.Context, query string, subs []string, s settings, opts Options) (*Result, error) {
	subOpts := opts
	subOpts.Decomposition = Bool(false)
	subOpts.TopK = ceilDiv(s.topK, len(subs))

	subResults := make([]*Result, len(subs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(searchConcurrency)
	for i, sub := range subs {
		g.Go(func() error {
			r, err := p.Retrieve(gctx, sub, subOpts)
			if err != nil {
				return err
			}
			subResults[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	merged := &Result{QueryVariants: []string{query}, SubQuestions: subs}
	for _, r := range subResults {
		for _, c := range r.Chunks {
			if seen[c.ID] {
				continue
			}
			seen[c.ID] = true
			merged.Chunks = append(merged.Chunks, c)
		}
	}
	return merged, nil
}

// retrieveSingle runs expansion, parallel hybrid search, fusion,
// reranking and compression for one question.
func (p *Pipeline) retrieveSingle(ctx context.Context, query string, s settings) (*Result, error) {
	result := &Result{QueryVariants: []string{query}}

	if s.multiQuery {
		variants, err := p.rewriter.Rewrite(ctx, query)
		if err != nil {
			return nil, err
		}
		result.QueryVariants = variants
	}

	if s.selfQuery {
		filters, err := p.selfQuery.Extract(ctx, query)
		if err != nil {
			return nil, err
		}
		result.Filters = filters
	}

	if s.hyde {
		passage, err := p.hyde.Hypothesize(ctx, query)
		if err != nil {
			return nil, err
		}
		result.Hypothetical = passage
	}

	lists, err := p.hybridSearch(ctx, result, s)
	if err != nil {
		return nil, err
	}

	fused := ReciprocalRankFusion(lists, s.rrfK)

	pool := fused
	if len(pool) > s.rerankPool {
		pool = pool[:s.rerankPool]
	}

	var reranked []RerankedChunk
	if s.rerank {
		reranked = rerankChunks(ctx, p.reranker, query, pool, s.topK)
	} else {
		reranked = rerankChunks(ctx, nil, query, pool, s.topK)
	}

	if s.compression {
		compressed, err := p.compressor.Compress(ctx, query, reranked)
		if err != nil {
			return nil, err
		}
		result.Chunks = compressed
		return result, nil
	}

	result.Chunks = make([]CompressedChunk, len(reranked))
	for i, c := range reranked {
		result.Chunks[i] = CompressedChunk{RerankedChunk: c}
	}
	return result, nil
}

// hybridSearch runs every vector and keyword search in parallel and
// returns one ranked list per modality and query text.
//
// The section filter applies to vector search only: keyword search keeps
// seeing all sections so exact term matches are never filtered away. The
// hypothetical passage likewise feeds vector search only.
func (p *Pipeline) hybridSearch(ctx context.Context, result *Result, s settings) ([]RankedList, error) {
	vectorTexts := make([]string, len(result.QueryVariants))
	copy(vectorTexts, result.QueryVariants)
	if result.Hypothetical != "" {
		vectorTexts = append(vectorTexts, result.Hypothetical)
	}
	keywordTexts := result.QueryVariants

	scope := store.Scope{PaperIDs: s.paperIDs, Section: result.Filters.Section}

	lists := make([]RankedList, len(vectorTexts)+len(keywordTexts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(searchConcurrency)

	for i, text := range vectorTexts {
		g.Go(func() error {
			vec, err := p.embedder.Embed(gctx, text)
			if err != nil {
				return scherrors.Wrap(err, scherrors.ErrCodeSearchFailed, "embed query variant")
			}
			hits, err := p.store.SearchVector(gctx, vec, scope, s.vectorLimit)
			if err != nil {
				return err
			}
			lists[i] = RankedList{Source: SourceVector, Results: toChunkResults(hits)}
			return nil
		})
	}

	for i, text := range keywordTexts {
		g.Go(func() error {
			hits, err := p.store.SearchKeyword(gctx, text, s.paperIDs, s.keywordLimit)
			if err != nil {
				return err
			}
			lists[len(vectorTexts)+i] = RankedList{Source: SourceKeyword, Results: toChunkResults(hits)}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return lists, nil
}

func toChunkResults(hits []*store.ScoredChunk) []ChunkResult {
	results := make([]ChunkResult, len(hits))
	for i, h := range hits {
		results[i] = ChunkResult{
			ID:         h.Chunk.ID,
			PaperID:    h.Chunk.PaperID,
			Text:       h.Chunk.Text,
			ChunkIndex: h.Chunk.ChunkIndex,
			Section:    h.Chunk.Section,
			PageNumber: h.Chunk.PageNumber,
			Score:      h.Score,
		}
	}
	return results
}
