// Package config provides application configuration management with
// multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.docsage/config.yaml or ./config.yaml)
//  3. Default values
//
// Main configuration categories:
//   - AI: completion model, embedder model and output dimension
//   - Retrieval: chunk size/overlap, similarity threshold, default top-k
//   - Vector store: backend selection plus PostgreSQL settings
//   - Storage: local data directory for cache, versions and files
//
// Sensitive data (passwords, API keys) is never logged. Validation is
// fail-fast with sentinel errors usable via errors.Is().
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrInvalidBackend indicates an unknown vector store backend.
	ErrInvalidBackend = errors.New("invalid vector store backend")

	// ErrInvalidChunkSize indicates the chunk size is out of range.
	ErrInvalidChunkSize = errors.New("invalid chunk size")

	// ErrInvalidChunkOverlap indicates the overlap is out of range.
	ErrInvalidChunkOverlap = errors.New("invalid chunk overlap")

	// ErrInvalidThreshold indicates the similarity threshold is out of range.
	ErrInvalidThreshold = errors.New("invalid similarity threshold")

	// ErrInvalidTopK indicates the default top-k is out of range.
	ErrInvalidTopK = errors.New("invalid top k")

	// ErrInvalidEmbedderDimension indicates an unusable vector dimension.
	ErrInvalidEmbedderDimension = errors.New("invalid embedder dimension")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is empty.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidDataDir indicates the data directory is empty.
	ErrInvalidDataDir = errors.New("invalid data directory")
)

// Vector store backend identifiers used in Config.Backend.
const (
	// BackendChromem is the embedded vector database backend.
	BackendChromem = "chromem"

	// BackendPgvector is the PostgreSQL + pgvector backend.
	BackendPgvector = "pgvector"
)

const (
	// DefaultEmbedderModel is the default Gemini embedder model.
	// gemini-embedding-001 supports output truncation via
	// OutputDimensionality; the default schema uses 768 dimensions.
	DefaultEmbedderModel = "gemini-embedding-001"

	// DefaultCompletionModel is the default chat completion model.
	DefaultCompletionModel = "gemini-2.5-flash"

	// DefaultEmbedderDimension is the embedding vector size. Must match
	// the pgvector column dimension in db/migrations.
	DefaultEmbedderDimension = 768

	// DefaultChunkSize is the target chunk length in characters.
	DefaultChunkSize = 800

	// DefaultChunkOverlap is the number of characters repeated between
	// adjacent chunks.
	DefaultChunkOverlap = 150

	// DefaultSimilarityThreshold prunes retrieved chunks whose cosine
	// similarity falls below it.
	DefaultSimilarityThreshold = 0.65

	// DefaultTopK is the default number of chunks retrieved per query.
	DefaultTopK = 5
)

// Config stores application configuration.
type Config struct {
	// AI model configuration
	CompletionModel   string `mapstructure:"completion_model"`
	EmbedderModel     string `mapstructure:"embedder_model"`
	EmbedderDimension int    `mapstructure:"embedder_dimension"`

	// Retrieval configuration
	ChunkSize           int     `mapstructure:"chunk_size"`
	ChunkOverlap        int     `mapstructure:"chunk_overlap"`
	SimilarityThreshold float32 `mapstructure:"similarity_threshold"`
	TopK                int     `mapstructure:"top_k"`

	// Vector store backend: "chromem" (embedded) or "pgvector"
	Backend string `mapstructure:"backend"`

	// DataDir holds the embedding cache, version log, uploaded files
	// and (for the chromem backend) the vector database.
	DataDir string `mapstructure:"data_dir"`

	// PostgreSQL settings (pgvector backend only)
	PostgresHost     string `mapstructure:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password"` // SENSITIVE: never logged
	PostgresDBName   string `mapstructure:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > defaults.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".docsage")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	v.AddConfigPath(".")

	setDefaults(v, configDir)

	v.SetEnvPrefix("DOCSAGE")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is not an error; defaults apply.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using defaults",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults(v *viper.Viper, configDir string) {
	v.SetDefault("completion_model", DefaultCompletionModel)
	v.SetDefault("embedder_model", DefaultEmbedderModel)
	v.SetDefault("embedder_dimension", DefaultEmbedderDimension)

	v.SetDefault("chunk_size", DefaultChunkSize)
	v.SetDefault("chunk_overlap", DefaultChunkOverlap)
	v.SetDefault("similarity_threshold", DefaultSimilarityThreshold)
	v.SetDefault("top_k", DefaultTopK)

	v.SetDefault("backend", BackendChromem)
	v.SetDefault("data_dir", filepath.Join(configDir, "data"))

	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", 5432)
	v.SetDefault("postgres_user", "docsage")
	v.SetDefault("postgres_password", "docsage_dev_password")
	v.SetDefault("postgres_db_name", "docsage")
	v.SetDefault("postgres_ssl_mode", "disable")
}
