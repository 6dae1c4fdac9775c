package mcp

// ResearchSearchInput defines the input schema for the research_search tool.
type ResearchSearchInput struct {
	Query     string   `json:"query" jsonschema:"the research question to answer from the paper library"`
	PaperIDs  []string `json:"paper_ids,omitempty" jsonschema:"restrict retrieval to these paper IDs"`
	TopK      int      `json:"top_k,omitempty" jsonschema:"maximum number of chunks to return, default 8"`
	Decompose bool     `json:"decompose,omitempty" jsonschema:"break complex questions into sub-questions before retrieval"`
	Compress  bool     `json:"compress,omitempty" jsonschema:"extract only the sentences relevant to the query from each chunk"`
}

// ResearchSearchOutput defines the output schema for the research_search tool.
type ResearchSearchOutput struct {
	Chunks        []ChunkOutput `json:"chunks" jsonschema:"retrieved chunks, best first"`
	QueryVariants []string      `json:"query_variants,omitempty" jsonschema:"query phrasings used for retrieval"`
	SubQuestions  []string      `json:"sub_questions,omitempty" jsonschema:"sub-questions the query was decomposed into"`
}

// ChunkOutput is a single retrieved chunk with provenance metadata.
type ChunkOutput struct {
	ChunkID    string   `json:"chunk_id" jsonschema:"unique chunk identifier"`
	PaperID    string   `json:"paper_id" jsonschema:"identifier of the source paper"`
	PaperTitle string   `json:"paper_title,omitempty" jsonschema:"title of the source paper"`
	Text       string   `json:"text" jsonschema:"chunk text, compressed when compression was requested"`
	Section    string   `json:"section,omitempty" jsonschema:"paper section the chunk came from"`
	PageNumber int      `json:"page_number,omitempty" jsonschema:"page the chunk starts on"`
	Score      float64  `json:"score" jsonschema:"final relevance score"`
	Sources    []string `json:"sources" jsonschema:"retrieval modalities that found this chunk: vector, keyword"`
	Citation   string   `json:"citation,omitempty" jsonschema:"APA-formatted reference for the source paper"`
}

// ListPapersInput defines the input schema for the list_papers tool (no parameters).
type ListPapersInput struct{}

// ListPapersOutput defines the output schema for the list_papers tool.
type ListPapersOutput struct {
	Papers []PaperOutput `json:"papers" jsonschema:"papers in the library"`
}

// PaperOutput is a library paper with its import metadata.
type PaperOutput struct {
	ID         string   `json:"id" jsonschema:"paper identifier, usable as a paper_ids filter"`
	Title      string   `json:"title"`
	Authors    []string `json:"authors,omitempty"`
	Year       int      `json:"year,omitempty"`
	Journal    string   `json:"journal,omitempty"`
	DOI        string   `json:"doi,omitempty"`
	ChunkCount int      `json:"chunk_count" jsonschema:"number of indexed chunks"`
}
