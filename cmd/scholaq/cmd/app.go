package cmd

import (
	"context"
	"log/slog"

	"github.com/scholaq/scholaq/internal/config"
	"github.com/scholaq/scholaq/internal/embed"
	"github.com/scholaq/scholaq/internal/llm"
	"github.com/scholaq/scholaq/internal/rag"
	"github.com/scholaq/scholaq/internal/store"
)

// app bundles the wired components behind every command.
type app struct {
	cfg      *config.Config
	store    *store.Store
	embedder embed.Embedder
	pipeline *rag.Pipeline
}

// openApp loads configuration and opens the library with all pipeline
// dependencies wired. Callers must Close it.
func openApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	slog.Info("configuration loaded", "config", cfg.String())

	embedder, err := newEmbedder(ctx, cfg)
	if err != nil {
		return nil, err
	}

	s, err := store.Open(cfg.Storage.DataDir, store.Options{
		KeywordBackend: cfg.Storage.KeywordBackend,
		Dimensions:     embedder.Dimensions(),
	})
	if err != nil {
		_ = embedder.Close()
		return nil, err
	}

	generator := llm.NewOpenAIClient(llm.OpenAIConfig{
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		APIKey:      cfg.LLMAPIKey(),
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout,
	})

	pipeline := rag.New(s, embedder, generator, newReranker(cfg), cfg.Retrieval)

	return &app{cfg: cfg, store: s, embedder: embedder, pipeline: pipeline}, nil
}

func newEmbedder(ctx context.Context, cfg *config.Config) (embed.Embedder, error) {
	if cfg.Embeddings.Provider == "static" {
		return embed.NewStaticEmbedder(), nil
	}

	ollama, err := embed.NewOllamaEmbedder(ctx, embed.OllamaConfig{
		Host:       cfg.Embeddings.OllamaHost,
		Model:      cfg.Embeddings.Model,
		Dimensions: cfg.Embeddings.Dimensions,
		BatchSize:  cfg.Embeddings.BatchSize,
		Timeout:    cfg.Embeddings.Timeout,
	})
	if err != nil {
		return nil, err
	}
	return embed.NewCachedEmbedder(ollama, cfg.Embeddings.CacheSize), nil
}

// newReranker returns the Cohere client when a credential is configured
// and a noop otherwise, so retrieval degrades instead of failing.
func newReranker(cfg *config.Config) rag.Reranker {
	key := cfg.RerankAPIKey()
	if key == "" {
		slog.Info("no rerank API key configured, reranking disabled",
			"env", cfg.Rerank.APIKeyEnv)
		return rag.NoopReranker{}
	}
	return rag.NewCohereReranker(rag.CohereConfig{
		Endpoint: cfg.Rerank.Endpoint,
		Model:    cfg.Rerank.Model,
		APIKey:   key,
		Timeout:  cfg.Rerank.Timeout,
	})
}

// Close releases the library lock and all component resources.
func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		slog.Warn("store close failed", "error", err)
	}
	if err := a.embedder.Close(); err != nil {
		slog.Warn("embedder close failed", "error", err)
	}
}
