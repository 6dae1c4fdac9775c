package rag

import (
	"context"
	"strings"

	"github.com/scholaq/scholaq/internal/llm"
)

// variantCount is how many query texts multi-query expansion produces:
// the original plus three paraphrases.
const variantCount = 4

const rewritePrompt = `You are a research librarian helping retrieve passages from academic papers.
Generate exactly 3 alternative phrasings of the user's question. Each phrasing should
use different terminology (synonyms, technical vs plain language) while preserving the
exact meaning. Return one phrasing per line with no numbering and no commentary.`

// QueryRewriter expands a query into paraphrased variants.
type QueryRewriter struct {
	gen llm.Generator
}

// NewQueryRewriter creates a rewriter backed by the given generator.
func NewQueryRewriter(gen llm.Generator) *QueryRewriter {
	return &QueryRewriter{gen: gen}
}

// Rewrite returns exactly variantCount query texts, the original first.
// Short LLM output is padded by repeating the original; surplus lines
// are dropped. The count invariant holds even on degenerate output.
func (r *QueryRewriter) Rewrite(ctx context.Context, query string) ([]string, error) {
	raw, err := r.gen.Complete(ctx, llm.Request{
		System: rewritePrompt,
		Prompt: query,
	})
	if err != nil {
		return nil, err
	}

	variants := []string{query}
	for _, line := range strings.Split(raw, "\n") {
		line = cleanVariantLine(line)
		if line == "" || strings.EqualFold(line, query) {
			continue
		}
		variants = append(variants, line)
		if len(variants) == variantCount {
			break
		}
	}
	for len(variants) < variantCount {
		variants = append(variants, query)
	}
	return variants, nil
}

// cleanVariantLine strips list markers the model sometimes adds despite
// instructions.
func cleanVariantLine(line string) string {
	line = strings.TrimSpace(line)
	line = strings.TrimLeft(line, "-*0123456789.) ")
	line = strings.Trim(line, `"`)
	return strings.TrimSpace(line)
}
