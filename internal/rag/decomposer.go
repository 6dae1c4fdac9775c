package rag

import (
	"context"
	"strings"

	"github.com/scholaq/scholaq/internal/llm"
)

// maxSubQuestions caps how many sub-questions decomposition produces.
const maxSubQuestions = 4

const decomposePrompt = `You analyze research questions for a retrieval system.
Decide whether the question is complex: does it compare multiple things, ask about
several distinct topics, or chain multiple sub-questions together?
Return a JSON object:
  "isComplex": boolean
  "subQuestions": array of 2-4 standalone questions that together cover the original,
                  empty when the question is simple
Each sub-question must be answerable on its own. Return only the JSON object.`

type decomposeResponse struct {
	IsComplex    bool     `json:"isComplex"`
	SubQuestions []string `json:"subQuestions"`
}

// Decomposer splits complex questions into independent sub-questions
// that are retrieved separately and merged.
type Decomposer struct {
	gen llm.Generator
}

// NewDecomposer creates a query decomposer.
func NewDecomposer(gen llm.Generator) *Decomposer {
	return &Decomposer{gen: gen}
}

// Decompose returns the sub-questions for a complex query, or nil when
// the query should be handled as a single question. A decomposition
// with fewer than two usable sub-questions is treated as simple.
func (d *Decomposer) Decompose(ctx context.Context, query string) ([]string, error) {
	resp, err := llm.CompleteJSON[decomposeResponse](ctx, d.gen, llm.Request{
		System: decomposePrompt,
		Prompt: query,
	})
	if err != nil {
		return nil, err
	}
	if !resp.IsComplex {
		return nil, nil
	}

	var subs []string
	for _, q := range resp.SubQuestions {
		q = strings.TrimSpace(q)
		if q == "" {
			continue
		}
		subs = append(subs, q)
		if len(subs) == maxSubQuestions {
			break
		}
	}
	if len(subs) <= 1 {
		return nil, nil
	}
	return subs, nil
}
