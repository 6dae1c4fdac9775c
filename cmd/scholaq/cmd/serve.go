package cmd

import (
	"github.com/spf13/cobra"

	"github.com/scholaq/scholaq/internal/mcp"
)

func newServeCmd() *cobra.Command {
	var transport string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the library to AI assistants over MCP",
		Long: `Serve starts a Model Context Protocol server exposing the retrieval
pipeline as the research_search and list_papers tools.

Stdout carries JSON-RPC exclusively; diagnostics go to the log file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			server, err := mcp.NewServer(a.pipeline, a.store.Metadata)
			if err != nil {
				return err
			}
			return server.Serve(cmd.Context(), transport)
		},
	}

	cmd.Flags().StringVar(&transport, "transport", "stdio", "MCP transport (stdio)")
	return cmd
}
