package rag

import (
	"context"

	"github.com/scholaq/scholaq/internal/llm"
	"github.com/scholaq/scholaq/internal/store"
)

const selfQueryPrompt = `You extract structured search filters from questions about academic papers.
Given a question, return a JSON object with these optional fields:
  "sectionType": one of "abstract", "introduction", "methods", "results", "discussion", "conclusion"
                 if the question targets a specific paper section
  "yearFrom", "yearTo": integers when the question names a publication year range
  "requireTable": true when the question asks for tabular data
Omit any field the question does not imply. Return only the JSON object.`

// selfQueryResponse is the model's JSON shape.
type selfQueryResponse struct {
	SectionType  string `json:"sectionType"`
	YearFrom     int    `json:"yearFrom"`
	YearTo       int    `json:"yearTo"`
	RequireTable bool   `json:"requireTable"`
}

// SelfQuery extracts metadata filters from the query text. Of the
// extracted filters only the section filter is enforced, and only on
// vector search; the keyword side keeps seeing the full library so
// exact term matches in other sections are not lost.
type SelfQuery struct {
	gen llm.Generator
}

// NewSelfQuery creates a filter extractor.
func NewSelfQuery(gen llm.Generator) *SelfQuery {
	return &SelfQuery{gen: gen}
}

// Extract returns the filters implied by the query.
func (s *SelfQuery) Extract(ctx context.Context, query string) (MetadataFilters, error) {
	resp, err := llm.CompleteJSON[selfQueryResponse](ctx, s.gen, llm.Request{
		System: selfQueryPrompt,
		Prompt: query,
	})
	if err != nil {
		return MetadataFilters{}, err
	}

	filters := MetadataFilters{
		YearFrom:     resp.YearFrom,
		YearTo:       resp.YearTo,
		RequireTable: resp.RequireTable,
	}
	if section := store.ParseSectionType(resp.SectionType); section != "" && section != store.SectionOther {
		filters.Section = section
	}
	return filters, nil
}
