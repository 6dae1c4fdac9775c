package rag

import (
	"context"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/scholaq/scholaq/internal/llm"
)

// compressConcurrency bounds parallel compression calls.
const compressConcurrency = 4

const compressPrompt = `Extract ONLY the sentences from the passage that are directly relevant
to answering the question. Copy sentences verbatim, do not paraphrase or summarize.
If no sentence is relevant, return an empty response.`

// Compressor reduces retrieved chunks to the sentences relevant to the
// query, dropping chunks where nothing relevant survives.
type Compressor struct {
	gen llm.Generator
}

// NewCompressor creates a contextual compressor.
func NewCompressor(gen llm.Generator) *Compressor {
	return &Compressor{gen: gen}
}

// Compress extracts relevant sentences from each chunk concurrently.
// Chunks with an empty extraction are dropped; relative order of the
// surviving chunks is preserved. The first extraction error aborts.
func (c *Compressor) Compress(ctx context.Context, query string, chunks []RerankedChunk) ([]CompressedChunk, error) {
	if len(chunks) == 0 {
		return []CompressedChunk{}, nil
	}

	extracted := make([]string, len(chunks))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(compressConcurrency)

	for i, chunk := range chunks {
		g.Go(func() error {
			out, err := c.gen.Complete(gctx, llm.Request{
				System: compressPrompt,
				Prompt: "Question: " + query + "\n\nPassage:\n" + chunk.Text,
			})
			if err != nil {
				return err
			}
			mu.Lock()
			extracted[i] = strings.TrimSpace(out)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	results := make([]CompressedChunk, 0, len(chunks))
	for i, chunk := range chunks {
		if extracted[i] == "" {
			continue
		}
		results = append(results, CompressedChunk{RerankedChunk: chunk, CompressedText: extracted[i]})
	}
	return results, nil
}
