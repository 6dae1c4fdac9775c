// Package mcp exposes the retrieval pipeline to AI assistant clients
// over the Model Context Protocol.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/scholaq/scholaq/internal/cite"
	"github.com/scholaq/scholaq/internal/rag"
	"github.com/scholaq/scholaq/internal/store"
	"github.com/scholaq/scholaq/pkg/version"
)

// Retriever is the pipeline surface the server needs.
type Retriever interface {
	Retrieve(ctx context.Context, query string, opts rag.Options) (*rag.Result, error)
}

var _ Retriever = (*rag.Pipeline)(nil)

// Server bridges MCP clients with the retrieval pipeline. It is
// read-only: importing papers stays a CLI concern.
type Server struct {
	mcp      *mcp.Server
	pipeline Retriever
	metadata *store.MetadataStore
	logger   *slog.Logger
}

// NewServer creates an MCP server around an opened library.
func NewServer(pipeline Retriever, metadata *store.MetadataStore) (*Server, error) {
	if pipeline == nil {
		return nil, errors.New("pipeline is required")
	}
	if metadata == nil {
		return nil, errors.New("metadata store is required")
	}

	s := &Server{
		pipeline: pipeline,
		metadata: metadata,
		logger:   slog.Default(),
	}

	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    "scholaq",
			Version: version.Version,
		},
		nil,
	)
	s.registerTools()
	return s, nil
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "research_search",
		Description: "Answer a research question from the indexed paper library. Runs hybrid retrieval (semantic + keyword) with query expansion and reranking, and returns the most relevant passages with paper provenance.",
	}, s.researchSearchHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "list_papers",
		Description: "List the papers in the library with their metadata. Use the returned IDs to scope research_search to specific papers.",
	}, s.listPapersHandler)

	s.logger.Info("MCP tools registered", slog.Int("count", 2))
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

func (s *Server) researchSearchHandler(ctx context.Context, _ *mcp.CallToolRequest, input ResearchSearchInput) (
	*mcp.CallToolResult,
	ResearchSearchOutput,
	error,
) {
	if input.Query == "" {
		return nil, ResearchSearchOutput{}, errors.New("query parameter is required")
	}

	opts := rag.Options{
		PaperIDs: input.PaperIDs,
		TopK:     input.TopK,
	}
	if input.Decompose {
		opts.Decomposition = rag.Bool(true)
	}
	if input.Compress {
		opts.Compression = rag.Bool(true)
	}

	start := time.Now()
	result, err := s.pipeline.Retrieve(ctx, input.Query, opts)
	if err != nil {
		s.logger.Error("research_search failed",
			slog.String("query", input.Query),
			slog.String("error", err.Error()))
		return nil, ResearchSearchOutput{}, err
	}
	s.logger.Info("research_search completed",
		slog.String("query", input.Query),
		slog.Int("chunks", len(result.Chunks)),
		slog.Duration("duration", time.Since(start)))

	output := ResearchSearchOutput{
		Chunks:        make([]ChunkOutput, 0, len(result.Chunks)),
		QueryVariants: result.QueryVariants,
		SubQuestions:  result.SubQuestions,
	}

	papers := s.paperLookup(ctx, result)
	for _, c := range result.Chunks {
		out := ChunkOutput{
			ChunkID:    c.ID,
			PaperID:    c.PaperID,
			Text:       c.FinalText(),
			Section:    string(c.Section),
			PageNumber: c.PageNumber,
			Score:      c.RerankScore,
			Sources:    sourceStrings(c.Sources),
		}
		if p, ok := papers[c.PaperID]; ok {
			out.PaperTitle = p.Title
			if ref, citeErr := cite.Format(p, "apa"); citeErr == nil {
				out.Citation = ref
			}
		}
		output.Chunks = append(output.Chunks, out)
	}
	return nil, output, nil
}

func (s *Server) listPapersHandler(ctx context.Context, _ *mcp.CallToolRequest, _ ListPapersInput) (
	*mcp.CallToolResult,
	ListPapersOutput,
	error,
) {
	papers, err := s.metadata.ListPapers(ctx)
	if err != nil {
		return nil, ListPapersOutput{}, err
	}

	output := ListPapersOutput{Papers: make([]PaperOutput, 0, len(papers))}
	for _, p := range papers {
		output.Papers = append(output.Papers, PaperOutput{
			ID:         p.ID,
			Title:      p.Title,
			Authors:    p.Authors,
			Year:       p.Year,
			Journal:    p.Journal,
			DOI:        p.DOI,
			ChunkCount: p.ChunkCount,
		})
	}
	return nil, output, nil
}

// paperLookup fetches metadata for every distinct paper in the result.
// A failed lookup leaves the chunk without title and citation rather
// than failing the search.
func (s *Server) paperLookup(ctx context.Context, result *rag.Result) map[string]*store.Paper {
	papers := make(map[string]*store.Paper)
	for _, c := range result.Chunks {
		if _, seen := papers[c.PaperID]; seen {
			continue
		}
		p, err := s.metadata.GetPaper(ctx, c.PaperID)
		if err != nil {
			s.logger.Warn("paper lookup failed", slog.String("paper_id", c.PaperID), slog.String("error", err.Error()))
			continue
		}
		papers[c.PaperID] = p
	}
	return papers
}

func sourceStrings(sources []rag.Source) []string {
	out := make([]string, len(sources))
	for i, s := range sources {
		out[i] = string(s)
	}
	return out
}

// Serve runs the server on the given transport until ctx is canceled.
// Only stdio is supported.
func (s *Server) Serve(ctx context.Context, transport string) error {
	s.logger.Info("starting MCP server", slog.String("transport", transport))

	switch transport {
	case "stdio", "":
		err := s.mcp.Run(ctx, &mcp.StdioTransport{})
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("MCP server stopped with error", slog.String("error", err.Error()))
			return err
		}
		s.logger.Info("MCP server stopped")
		return nil
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio)", transport)
	}
}
