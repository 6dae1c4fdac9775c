// Package config provides configuration loading for scholaq.
//
// Configuration is resolved in three layers, later layers winning:
//  1. Built-in defaults
//  2. YAML config file (./scholaq.yaml, then ~/.scholaq/config.yaml)
//  3. Environment variables with the SCHOLAQ_ prefix
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	scherrors "github.com/scholaq/scholaq/internal/errors"
)

// CurrentVersion is the current config schema version.
const CurrentVersion = 1

// Keyword index backends.
const (
	KeywordBackendBleve  = "bleve"
	KeywordBackendSQLite = "sqlite"
)

// Config represents the complete scholaq configuration.
type Config struct {
	Version    int              `yaml:"version"`
	Storage    StorageConfig    `yaml:"storage"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Embeddings EmbeddingsConfig `yaml:"embeddings"`
	LLM        LLMConfig        `yaml:"llm"`
	Rerank     RerankConfig     `yaml:"rerank"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// StorageConfig configures where index data lives.
type StorageConfig struct {
	// DataDir is the directory holding scholaq.db, the keyword index
	// and the vector index (default: ~/.scholaq/data).
	DataDir string `yaml:"data_dir"`

	// KeywordBackend selects the keyword index backend.
	// Options: "bleve" (default) or "sqlite" (FTS5).
	KeywordBackend string `yaml:"keyword_backend"`
}

// RetrievalConfig configures the retrieval pipeline defaults.
// Each stage toggle corresponds to one pipeline stage and can be
// overridden per call.
type RetrievalConfig struct {
	TopK         int `yaml:"top_k"`
	VectorLimit  int `yaml:"vector_limit"`
	KeywordLimit int `yaml:"keyword_limit"`

	// RRFConstant is the RRF fusion smoothing parameter k.
	// Default: 60 (industry standard used by Azure AI Search, OpenSearch).
	RRFConstant int `yaml:"rrf_constant"`

	// RerankPool is how many fused candidates are sent to the reranker.
	RerankPool int `yaml:"rerank_pool"`

	UseMultiQuery    bool `yaml:"use_multi_query"`
	UseHyDE          bool `yaml:"use_hyde"`
	UseSelfQuery     bool `yaml:"use_self_query"`
	UseRerank        bool `yaml:"use_rerank"`
	UseCompression   bool `yaml:"use_compression"`
	UseDecomposition bool `yaml:"use_decomposition"`
}

// EmbeddingsConfig configures the embedding provider.
type EmbeddingsConfig struct {
	// Provider selects the embedding backend: "ollama" (default) or
	// "static" (deterministic offline embeddings, test/degraded use).
	Provider   string        `yaml:"provider"`
	OllamaHost string        `yaml:"ollama_host"`
	Model      string        `yaml:"model"`
	Dimensions int           `yaml:"dimensions"`
	BatchSize  int           `yaml:"batch_size"`
	CacheSize  int           `yaml:"cache_size"`
	Timeout    time.Duration `yaml:"timeout"`
}

// LLMConfig configures the OpenAI-compatible generation endpoint used by
// the query rewriter, self-query extractor, decomposer, HyDE and compressor.
type LLMConfig struct {
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`

	// APIKeyEnv names the environment variable holding the API key.
	// The key itself never lives in the config file.
	APIKeyEnv string `yaml:"api_key_env"`

	Temperature float64       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
}

// RerankConfig configures the cross-encoder rerank API.
// A missing API key is not an error: reranking degrades to fused order.
type RerankConfig struct {
	Endpoint  string        `yaml:"endpoint"`
	Model     string        `yaml:"model"`
	APIKeyEnv string        `yaml:"api_key_env"`
	Timeout   time.Duration `yaml:"timeout"`
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Default returns the built-in default configuration.
func Default() *Config {
	return &Config{
		Version: CurrentVersion,
		Storage: StorageConfig{
			DataDir:        defaultDataDir(),
			KeywordBackend: KeywordBackendBleve,
		},
		Retrieval: RetrievalConfig{
			TopK:             8,
			VectorLimit:      20,
			KeywordLimit:     20,
			RRFConstant:      60,
			RerankPool:       20,
			UseMultiQuery:    true,
			UseHyDE:          true,
			UseSelfQuery:     true,
			UseRerank:        true,
			UseCompression:   false,
			UseDecomposition: false,
		},
		Embeddings: EmbeddingsConfig{
			Provider:   "ollama",
			OllamaHost: "http://localhost:11434",
			Model:      "nomic-embed-text",
			Dimensions: 768,
			BatchSize:  32,
			CacheSize:  1000,
			Timeout:    60 * time.Second,
		},
		LLM: LLMConfig{
			BaseURL:     "https://api.openai.com/v1",
			Model:       "gpt-4o-mini",
			APIKeyEnv:   "SCHOLAQ_LLM_API_KEY",
			Temperature: 0.3,
			Timeout:     45 * time.Second,
		},
		Rerank: RerankConfig{
			Endpoint:  "https://api.cohere.com/v2/rerank",
			Model:     "rerank-v3.5",
			APIKeyEnv: "COHERE_API_KEY",
			Timeout:   30 * time.Second,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load resolves configuration from defaults, an optional config file and
// environment overrides. If path is empty the standard locations are probed.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, scherrors.Wrapf(err, scherrors.ErrCodeConfigNotFound,
				"cannot read config file %s", path)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, scherrors.Wrapf(err, scherrors.ErrCodeConfigInvalid,
				"cannot parse config file %s", path)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	if c.Retrieval.TopK <= 0 {
		return scherrors.Newf(scherrors.ErrCodeConfigInvalid, "retrieval.top_k must be positive, got %d", c.Retrieval.TopK)
	}
	if c.Retrieval.VectorLimit <= 0 || c.Retrieval.KeywordLimit <= 0 {
		return scherrors.New(scherrors.ErrCodeConfigInvalid, "retrieval limits must be positive")
	}
	if c.Retrieval.RRFConstant <= 0 {
		return scherrors.Newf(scherrors.ErrCodeConfigInvalid, "retrieval.rrf_constant must be positive, got %d", c.Retrieval.RRFConstant)
	}
	switch c.Storage.KeywordBackend {
	case KeywordBackendBleve, KeywordBackendSQLite:
	default:
		return scherrors.Newf(scherrors.ErrCodeConfigInvalid,
			"storage.keyword_backend must be %q or %q, got %q",
			KeywordBackendBleve, KeywordBackendSQLite, c.Storage.KeywordBackend)
	}
	if c.Embeddings.Dimensions <= 0 {
		return scherrors.New(scherrors.ErrCodeConfigInvalid, "embeddings.dimensions must be positive")
	}
	return nil
}

// LLMAPIKey returns the LLM API key from the configured environment variable.
func (c *Config) LLMAPIKey() string {
	if c.LLM.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(c.LLM.APIKeyEnv)
}

// RerankAPIKey returns the rerank API key from the configured environment
// variable. Empty means reranking degrades to fused order.
func (c *Config) RerankAPIKey() string {
	if c.Rerank.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(c.Rerank.APIKeyEnv)
}

// findConfigFile probes the standard config file locations.
func findConfigFile() string {
	candidates := []string{"scholaq.yaml"}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".scholaq", "config.yaml"))
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// defaultDataDir returns ~/.scholaq/data, falling back to the temp dir.
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".scholaq", "data")
	}
	return filepath.Join(home, ".scholaq", "data")
}

// applyEnvOverrides applies SCHOLAQ_* environment variables for the knobs
// that are commonly tuned without editing the config file.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SCHOLAQ_DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("SCHOLAQ_KEYWORD_BACKEND"); v != "" {
		cfg.Storage.KeywordBackend = v
	}
	if v := os.Getenv("SCHOLAQ_OLLAMA_HOST"); v != "" {
		cfg.Embeddings.OllamaHost = v
	}
	if v := os.Getenv("SCHOLAQ_LLM_BASE_URL"); v != "" {
		cfg.LLM.BaseURL = v
	}
	if v := os.Getenv("SCHOLAQ_RERANK_ENDPOINT"); v != "" {
		cfg.Rerank.Endpoint = v
	}
	if v := os.Getenv("SCHOLAQ_RRF_CONSTANT"); v != "" {
		if k, err := strconv.Atoi(v); err == nil && k > 0 {
			cfg.Retrieval.RRFConstant = k
		}
	}
	if v := os.Getenv("SCHOLAQ_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// String returns a redacted one-line summary for logging.
func (c *Config) String() string {
	return fmt.Sprintf("config{data_dir=%s keyword=%s embed=%s/%s llm=%s rerank=%s}",
		c.Storage.DataDir, c.Storage.KeywordBackend,
		c.Embeddings.Provider, c.Embeddings.Model,
		c.LLM.Model, c.Rerank.Model)
}
