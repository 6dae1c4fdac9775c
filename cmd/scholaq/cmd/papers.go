package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newPapersCmd() *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "papers",
		Short: "List the papers in the library",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			papers, err := a.store.Metadata.ListPapers(cmd.Context())
			if err != nil {
				return err
			}

			if jsonOut {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(papers)
			}

			if len(papers) == 0 {
				cmd.Println("Library is empty. Add papers with 'scholaq import'.")
				return nil
			}

			cmd.Printf("%-20s %-6s %-7s %s\n", "ID", "YEAR", "CHUNKS", "TITLE")
			for _, p := range papers {
				year := ""
				if p.Year > 0 {
					year = fmt.Sprintf("%d", p.Year)
				}
				cmd.Printf("%-20s %-6s %-7d %s\n", truncate(p.ID, 20), year, p.ChunkCount, p.Title)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit the paper list as JSON")
	return cmd
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.TrimSpace(s[:n-3]) + "..."
}
