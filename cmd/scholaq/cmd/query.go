package cmd

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/spf13/cobra"

	"github.com/scholaq/scholaq/internal/rag"
	"github.com/scholaq/scholaq/internal/store"
	"github.com/scholaq/scholaq/internal/ui"
)

func newQueryCmd() *cobra.Command {
	var (
		topK      int
		paperIDs  []string
		citeStyle string
		decompose bool
		compress  bool
		noRerank  bool
		jsonOut   bool
	)

	cmd := &cobra.Command{
		Use:   "query <question>",
		Short: "Ask a research question against the library",
		Long: `Query runs the full retrieval pipeline: multi-query expansion, HyDE,
metadata filter extraction, hybrid vector + keyword search, rank fusion
and reranking. Use --cite to append formatted references.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			question := strings.Join(args, " ")

			opts := rag.Options{
				PaperIDs: paperIDs,
				TopK:     topK,
			}
			if decompose {
				opts.Decomposition = rag.Bool(true)
			}
			if compress {
				opts.Compression = rag.Bool(true)
			}
			if noRerank {
				opts.Rerank = rag.Bool(false)
			}

			return runQuery(cmd.Context(), cmd, question, opts, citeStyle, jsonOut)
		},
	}

	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "Number of chunks to return (default from config)")
	cmd.Flags().StringSliceVar(&paperIDs, "papers", nil, "Restrict retrieval to these paper IDs")
	cmd.Flags().StringVar(&citeStyle, "cite", "", "Append citations in the given style (apa, mla, chicago, harvard, vancouver)")
	cmd.Flags().BoolVar(&decompose, "decompose", false, "Decompose complex questions into sub-questions")
	cmd.Flags().BoolVar(&compress, "compress", false, "Extract only query-relevant sentences from each chunk")
	cmd.Flags().BoolVar(&noRerank, "no-rerank", false, "Skip the reranking stage")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit the raw result as JSON")

	return cmd
}

func runQuery(ctx context.Context, cmd *cobra.Command, question string, opts rag.Options, citeStyle string, jsonOut bool) error {
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.pipeline.Retrieve(ctx, question, opts)
	if err != nil {
		return err
	}

	if jsonOut {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	papers := lookupPapers(ctx, a, result)
	return ui.NewRenderer(cmd.OutOrStdout()).RenderResult(result, papers, citeStyle)
}

// lookupPapers fetches metadata for the papers behind the result chunks.
// Lookup failures leave the chunk without title and citation.
func lookupPapers(ctx context.Context, a *app, result *rag.Result) map[string]*store.Paper {
	papers := make(map[string]*store.Paper)
	for _, c := range result.Chunks {
		if _, seen := papers[c.PaperID]; seen {
			continue
		}
		if p, err := a.store.Metadata.GetPaper(ctx, c.PaperID); err == nil {
			papers[c.PaperID] = p
		}
	}
	return papers
}
