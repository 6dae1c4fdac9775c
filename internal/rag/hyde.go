package rag

import (
	"context"
	"strings"

	"github.com/scholaq/scholaq/internal/llm"
)

const hydePrompt = `You are writing a passage as it would appear in an academic paper.
Write a short, factual paragraph (3-4 sentences) that directly answers the question,
using the vocabulary and register of scholarly prose. Do not hedge, cite, or mention
that you are answering a question. Write only the passage.`

// HyDE generates a hypothetical answer passage whose embedding is used
// for vector search in place of relying on the question text alone.
// The passage is never used for keyword search: its invented terms
// would pollute exact-match retrieval.
type HyDE struct {
	gen llm.Generator
}

// NewHyDE creates a hypothetical answer generator.
func NewHyDE(gen llm.Generator) *HyDE {
	return &HyDE{gen: gen}
}

// Hypothesize returns a hypothetical answer passage for the query.
func (h *HyDE) Hypothesize(ctx context.Context, query string) (string, error) {
	passage, err := h.gen.Complete(ctx, llm.Request{
		System:    hydePrompt,
		Prompt:    query,
		MaxTokens: 256,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(passage), nil
}
