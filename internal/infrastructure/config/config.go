// Package config loads archiverag settings from a YAML file, the process
// environment and built-in defaults, in increasing order of precedence:
// defaults < file < ARCHIVERAG_* variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/0xcro3dile/archiverag/internal/domain/entities"
)

// DefaultFile is looked up in the working directory when no path is given.
const DefaultFile = "archiverag.yaml"

// EnvPrefix prefixes every environment override.
const EnvPrefix = "ARCHIVERAG_"

// Provider names.
const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

// Built-in backend defaults.
const (
	DefaultOllamaURL       = "http://localhost:11434"
	DefaultOpenAIURL       = "https://api.openai.com/v1"
	DefaultEmbeddingModel  = "nomic-embed-text"
	DefaultGenerationModel = "gemma3:1b"
	OpenAIEmbeddingModel   = "text-embedding-3-small"
	OpenAIGenerationModel  = "gpt-4o-mini"
)

// Store drivers.
const (
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

// CorpusConfig locates the source documents.
type CorpusConfig struct {
	Dir string `yaml:"dir"`
	// Pattern is a comma-separated list of file name globs.
	Pattern string `yaml:"pattern"`
}

// Patterns splits Pattern into its globs.
func (c CorpusConfig) Patterns() []string {
	return strings.Split(c.Pattern, ",")
}

// StoreConfig selects the vector store.
type StoreConfig struct {
	Dir    string `yaml:"dir"`
	Driver string `yaml:"driver"`
}

// ChunkingConfig sizes chunks in characters.
type ChunkingConfig struct {
	Size    int `yaml:"size"`
	Overlap int `yaml:"overlap"`
}

// IngestConfig tunes the ingestion run.
type IngestConfig struct {
	BatchSize int `yaml:"batch_size"`
}

// ServiceConfig is shared by the embedding and generation backends.
type ServiceConfig struct {
	Provider    string `yaml:"provider"`
	BaseURL     string `yaml:"base_url"`
	Model       string `yaml:"model"`
	APIKeyEnv   string `yaml:"api_key_env,omitempty"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// Timeout returns the per-call timeout.
func (s ServiceConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutSecs) * time.Second
}

// APIKey reads the key from the variable named by APIKeyEnv.
func (s ServiceConfig) APIKey() string {
	if s.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(s.APIKeyEnv)
}

// EmbeddingConfig configures the embedding backend.
type EmbeddingConfig struct {
	ServiceConfig  `yaml:",inline"`
	DocumentPrefix string `yaml:"document_prefix,omitempty"`
	QueryPrefix    string `yaml:"query_prefix,omitempty"`
}

// QueryConfig holds query chain defaults.
type QueryConfig struct {
	K        int    `yaml:"k"`
	Template string `yaml:"template,omitempty"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// Config is the root configuration.
type Config struct {
	Corpus     CorpusConfig    `yaml:"corpus"`
	Store      StoreConfig     `yaml:"store"`
	Chunking   ChunkingConfig  `yaml:"chunking"`
	Ingest     IngestConfig    `yaml:"ingest"`
	Embedding  EmbeddingConfig `yaml:"embedding"`
	Generation ServiceConfig   `yaml:"generation"`
	Query      QueryConfig     `yaml:"query"`
	Server     ServerConfig    `yaml:"server"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Corpus:   CorpusConfig{Dir: "./data", Pattern: "*.pdf"},
		Store:    StoreConfig{Dir: "./vector_db", Driver: DriverSQLite},
		Chunking: ChunkingConfig{Size: 500, Overlap: 50},
		Ingest:   IngestConfig{BatchSize: 64},
		Embedding: EmbeddingConfig{
			ServiceConfig: ServiceConfig{
				Provider:    ProviderOllama,
				BaseURL:     DefaultOllamaURL,
				Model:       DefaultEmbeddingModel,
				TimeoutSecs: 60,
			},
		},
		Generation: ServiceConfig{
			Provider:    ProviderOllama,
			BaseURL:     DefaultOllamaURL,
			Model:       DefaultGenerationModel,
			TimeoutSecs: 300,
		},
		Query:  QueryConfig{K: 7},
		Server: ServerConfig{Addr: "127.0.0.1:8080"},
	}
}

// Load reads path over the defaults and applies environment overrides.
// An empty path tries DefaultFile; a missing default file is not an error,
// a missing explicit path is.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	applyProviderDefaults(&cfg.Embedding.ServiceConfig, DefaultEmbeddingModel, OpenAIEmbeddingModel)
	applyProviderDefaults(&cfg.Generation, DefaultGenerationModel, OpenAIGenerationModel)
	return cfg, nil
}

// Save writes the config to path, creating directories as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Corpus.Dir == "" {
		errs = append(errs, errors.New("corpus.dir is required"))
	}
	switch c.Store.Driver {
	case DriverSQLite:
		if c.Store.Dir == "" {
			errs = append(errs, errors.New("store.dir is required for the sqlite driver"))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("store.driver %q is not one of sqlite, memory", c.Store.Driver))
	}
	if c.Chunking.Size <= 0 {
		errs = append(errs, errors.New("chunking.size must be positive"))
	}
	if c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.Size {
		errs = append(errs, errors.New("chunking.overlap must be in [0, chunking.size)"))
	}
	if c.Ingest.BatchSize <= 0 {
		errs = append(errs, errors.New("ingest.batch_size must be positive"))
	}
	if c.Query.K <= 0 {
		errs = append(errs, errors.New("query.k must be positive"))
	}
	errs = append(errs, validateService("embedding", c.Embedding.ServiceConfig))
	errs = append(errs, validateService("generation", c.Generation))

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", entities.ErrInvalidInput, err)
	}
	return nil
}

func validateService(name string, s ServiceConfig) error {
	switch s.Provider {
	case ProviderOllama, ProviderOpenAI:
	default:
		return fmt.Errorf("%s.provider %q is not one of ollama, openai", name, s.Provider)
	}
	if s.Model == "" {
		return fmt.Errorf("%s.model is required", name)
	}
	if s.TimeoutSecs <= 0 {
		return fmt.Errorf("%s.timeout_secs must be positive", name)
	}
	return nil
}

// applyProviderDefaults swaps Ollama defaults still left in s for the
// OpenAI ones once the provider is openai. Explicit values are kept.
func applyProviderDefaults(s *ServiceConfig, ollamaModel, openAIModel string) {
	if s.Provider != ProviderOpenAI {
		return
	}
	if s.BaseURL == "" || s.BaseURL == DefaultOllamaURL {
		s.BaseURL = DefaultOpenAIURL
	}
	if s.APIKeyEnv == "" {
		s.APIKeyEnv = "OPENAI_API_KEY"
	}
	if s.Model == "" || s.Model == ollamaModel {
		s.Model = openAIModel
	}
}

func applyEnv(c *Config) error {
	c.Corpus.Dir = envOr("CORPUS_DIR", c.Corpus.Dir)
	c.Corpus.Pattern = envOr("CORPUS_PATTERN", c.Corpus.Pattern)
	c.Store.Dir = envOr("STORE_DIR", c.Store.Dir)
	c.Store.Driver = envOr("STORE_DRIVER", c.Store.Driver)
	c.Embedding.Provider = envOr("EMBEDDING_PROVIDER", c.Embedding.Provider)
	c.Embedding.BaseURL = envOr("EMBEDDING_BASE_URL", c.Embedding.BaseURL)
	c.Embedding.Model = envOr("EMBEDDING_MODEL", c.Embedding.Model)
	c.Generation.Provider = envOr("GENERATION_PROVIDER", c.Generation.Provider)
	c.Generation.BaseURL = envOr("GENERATION_BASE_URL", c.Generation.BaseURL)
	c.Generation.Model = envOr("GENERATION_MODEL", c.Generation.Model)
	c.Server.Addr = envOr("SERVER_ADDR", c.Server.Addr)

	var err error
	if c.Chunking.Size, err = envInt("CHUNK_SIZE", c.Chunking.Size); err != nil {
		return err
	}
	if c.Chunking.Overlap, err = envInt("CHUNK_OVERLAP", c.Chunking.Overlap); err != nil {
		return err
	}
	if c.Ingest.BatchSize, err = envInt("BATCH_SIZE", c.Ingest.BatchSize); err != nil {
		return err
	}
	if c.Query.K, err = envInt("QUERY_K", c.Query.K); err != nil {
		return err
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(EnvPrefix + key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(EnvPrefix + key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s%s=%q is not an integer", entities.ErrInvalidInput, EnvPrefix, key, v)
	}
	return n, nil
}
