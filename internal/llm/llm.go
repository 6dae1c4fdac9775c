// Package llm provides text generation for the retrieval pipeline.
//
// The pipeline uses an LLM for query paraphrasing, hypothetical answer
// generation, metadata filter extraction, question decomposition and
// contextual compression. All of these go through the Generator
// interface so tests can substitute a scripted fake.
package llm

import "context"

// Request is a single generation request.
type Request struct {
	// System is the system prompt establishing the model's role.
	System string

	// Prompt is the user message.
	Prompt string

	// Temperature overrides the client default when > 0.
	Temperature float64

	// JSONMode asks the provider to return a single JSON object.
	JSONMode bool

	// MaxTokens caps the response length when > 0.
	MaxTokens int
}

// Generator produces text completions.
type Generator interface {
	// Complete returns the model's response text for the request.
	Complete(ctx context.Context, req Request) (string, error)
}
