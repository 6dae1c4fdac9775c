package rag

import (
	"context"
	"strings"
	"sync/atomic"

	"github.com/scholaq/scholaq/internal/llm"
)

// fakeGenerator scripts each pipeline stage by matching the distinctive
// system prompt of the stage. Unmatched requests return empty output.
type fakeGenerator struct {
	rewriteReply   string
	hydeReply      string
	selfQueryReply string
	decomposeReply string

	// compressFn computes the compression reply from the user prompt.
	compressFn func(prompt string) string

	err   error
	calls int32
}

func (f *fakeGenerator) Complete(_ context.Context, req llm.Request) (string, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.err != nil {
		return "", f.err
	}

	switch {
	case strings.Contains(req.System, "alternative phrasings"):
		return f.rewriteReply, nil
	case strings.Contains(req.System, "factual paragraph"):
		return f.hydeReply, nil
	case strings.Contains(req.System, "structured search filters"):
		if f.selfQueryReply == "" {
			return "{}", nil
		}
		return f.selfQueryReply, nil
	case strings.Contains(req.System, "isComplex"):
		if f.decomposeReply == "" {
			return `{"isComplex": false, "subQuestions": []}`, nil
		}
		return f.decomposeReply, nil
	case strings.Contains(req.System, "Extract ONLY the sentences"):
		if f.compressFn != nil {
			return f.compressFn(req.Prompt), nil
		}
		return "", nil
	default:
		return "", nil
	}
}
