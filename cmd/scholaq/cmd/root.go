// Package cmd provides the CLI commands for scholaq.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/scholaq/scholaq/internal/logging"
	"github.com/scholaq/scholaq/pkg/version"
)

var (
	configPath     string
	debugMode      bool
	loggingCleanup func()
)

// NewRootCmd creates the root command for the scholaq CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scholaq",
		Short: "Hybrid RAG retrieval over an academic paper library",
		Long: `scholaq answers research questions from a local library of academic
papers. It combines semantic and keyword search with LLM-driven query
expansion, rank fusion and cross-encoder reranking.

Import a corpus with 'scholaq import', then ask questions with
'scholaq query' or serve the library to AI assistants with
'scholaq serve'.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("scholaq version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default: ./scholaq.yaml, ~/.scholaq/config.yaml)")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to ~/.scholaq/logs/")

	cmd.PersistentPreRunE = startLogging
	cmd.PersistentPostRunE = stopLogging

	cmd.AddCommand(newImportCmd())
	cmd.AddCommand(newQueryCmd())
	cmd.AddCommand(newPapersCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// startLogging installs file logging before any command runs. Stdout
// stays clean for command output, which the MCP stdio transport requires.
func startLogging(_ *cobra.Command, _ []string) error {
	cfg := logging.DefaultConfig()
	if debugMode {
		cfg = logging.DebugConfig()
	}
	logger, cleanup, err := logging.Setup(cfg)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	loggingCleanup = cleanup
	slog.SetDefault(logger)
	return nil
}

func stopLogging(_ *cobra.Command, _ []string) error {
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
	return nil
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
