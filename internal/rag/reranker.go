package rag

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	scherrors "github.com/scholaq/scholaq/internal/errors"
)

// RerankResult is one reranker verdict: the index into the submitted
// document list and its relevance score.
type RerankResult struct {
	Index int
	Score float64
}

// Reranker scores documents for relevance to a query with a
// cross-encoder, returning the topN best in descending score order.
type Reranker interface {
	Rerank(ctx context.Context, query string, documents []string, topN int) ([]RerankResult, error)

	// Available reports whether the reranker can serve requests.
	Available() bool
}

// CohereConfig configures the Cohere-compatible rerank endpoint.
type CohereConfig struct {
	Endpoint string
	Model    string
	APIKey   string
	Timeout  time.Duration
}

// CohereReranker calls a Cohere v2/rerank compatible API.
type CohereReranker struct {
	client *http.Client
	config CohereConfig
}

var _ Reranker = (*CohereReranker)(nil)

type cohereRerankRequest struct {
	Model           string   `json:"model"`
	Query           string   `json:"query"`
	Documents       []string `json:"documents"`
	TopN            int      `json:"top_n"`
	ReturnDocuments bool     `json:"return_documents"`
}

type cohereRerankResponse struct {
	Results []struct {
		Index          int     `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
	} `json:"results"`
}

// NewCohereReranker creates a rerank client.
func NewCohereReranker(cfg CohereConfig) *CohereReranker {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "https://api.cohere.com/v2/rerank"
	}
	if cfg.Model == "" {
		cfg.Model = "rerank-v3.5"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &CohereReranker{
		client: &http.Client{Timeout: cfg.Timeout},
		config: cfg,
	}
}

// Available reports whether an API key is configured.
func (r *CohereReranker) Available() bool {
	return r.config.APIKey != ""
}

// Rerank submits documents for cross-encoder scoring.
func (r *CohereReranker) Rerank(ctx context.Context, query string, documents []string, topN int) ([]RerankResult, error) {
	if !r.Available() {
		return nil, scherrors.New(scherrors.ErrCodeLLMUnavailable, "rerank API key not configured")
	}
	if len(documents) == 0 {
		return []RerankResult{}, nil
	}
	if topN <= 0 || topN > len(documents) {
		topN = len(documents)
	}

	payload, err := json.Marshal(cohereRerankRequest{
		Model:           r.config.Model,
		Query:           query,
		Documents:       documents,
		TopN:            topN,
		ReturnDocuments: false,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.config.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+r.config.APIKey)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, scherrors.Wrap(err, scherrors.ErrCodeLLMUnavailable, "rerank request failed")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, scherrors.Newf(scherrors.ErrCodeLLMFailed,
			"rerank returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var result cohereRerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, scherrors.Wrap(err, scherrors.ErrCodeLLMBadOutput, "decode rerank response")
	}

	results := make([]RerankResult, 0, len(result.Results))
	for _, item := range result.Results {
		if item.Index < 0 || item.Index >= len(documents) {
			continue
		}
		results = append(results, RerankResult{Index: item.Index, Score: item.RelevanceScore})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	return results, nil
}

// NoopReranker always reports unavailable, forcing fused-order fallback.
type NoopReranker struct{}

var _ Reranker = (*NoopReranker)(nil)

func (NoopReranker) Rerank(context.Context, string, []string, int) ([]RerankResult, error) {
	return nil, scherrors.New(scherrors.ErrCodeLLMUnavailable, "reranking disabled")
}

func (NoopReranker) Available() bool { return false }

// rerankChunks applies cross-encoder reranking to fused chunks with
// graceful degradation: when the reranker is unavailable or errors, the
// first topK chunks keep their fused order with RerankScore set to the
// RRF score.
func rerankChunks(ctx context.Context, reranker Reranker, query string, fused []FusedChunk, topK int) []RerankedChunk {
	if topK > len(fused) {
		topK = len(fused)
	}

	degrade := func() []RerankedChunk {
		results := make([]RerankedChunk, topK)
		for i := 0; i < topK; i++ {
			results[i] = RerankedChunk{FusedChunk: fused[i], RerankScore: fused[i].RRFScore}
		}
		return results
	}

	if reranker == nil || !reranker.Available() || len(fused) == 0 {
		return degrade()
	}

	documents := make([]string, len(fused))
	for i, c := range fused {
		documents[i] = c.Text
	}

	verdicts, err := reranker.Rerank(ctx, query, documents, topK)
	if err != nil {
		slog.Warn("rerank failed, keeping fused order", "error", err)
		return degrade()
	}

	results := make([]RerankedChunk, 0, topK)
	for _, v := range verdicts {
		results = append(results, RerankedChunk{FusedChunk: fused[v.Index], RerankScore: v.Score})
		if len(results) == topK {
			break
		}
	}
	if len(results) == 0 {
		return degrade()
	}
	return results
}
