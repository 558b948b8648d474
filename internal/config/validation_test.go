package config

import (
	"errors"
	"testing"
)

// validConfig returns a configuration that passes validation;
// individual tests break one field at a time.
func validConfig() *Config {
	return &Config{
		CompletionModel:     DefaultCompletionModel,
		EmbedderModel:       DefaultEmbedderModel,
		EmbedderDimension:   DefaultEmbedderDimension,
		ChunkSize:           DefaultChunkSize,
		ChunkOverlap:        DefaultChunkOverlap,
		SimilarityThreshold: DefaultSimilarityThreshold,
		TopK:                DefaultTopK,
		Backend:             BackendChromem,
		DataDir:             "/tmp/docsage-test",
		PostgresHost:        "localhost",
		PostgresPort:        5432,
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{
			name:   "valid chromem config",
			mutate: func(*Config) {},
		},
		{
			name:   "valid pgvector config",
			mutate: func(c *Config) { c.Backend = BackendPgvector },
		},
		{
			name:    "unknown backend",
			mutate:  func(c *Config) { c.Backend = "milvus" },
			wantErr: ErrInvalidBackend,
		},
		{
			name:    "empty data dir",
			mutate:  func(c *Config) { c.DataDir = "" },
			wantErr: ErrInvalidDataDir,
		},
		{
			name:    "chunk size too small",
			mutate:  func(c *Config) { c.ChunkSize = 50 },
			wantErr: ErrInvalidChunkSize,
		},
		{
			name:    "overlap not smaller than chunk size",
			mutate:  func(c *Config) { c.ChunkOverlap = c.ChunkSize },
			wantErr: ErrInvalidChunkOverlap,
		},
		{
			name:    "negative overlap",
			mutate:  func(c *Config) { c.ChunkOverlap = -1 },
			wantErr: ErrInvalidChunkOverlap,
		},
		{
			name:    "threshold above one",
			mutate:  func(c *Config) { c.SimilarityThreshold = 1.5 },
			wantErr: ErrInvalidThreshold,
		},
		{
			name:    "zero top k",
			mutate:  func(c *Config) { c.TopK = 0 },
			wantErr: ErrInvalidTopK,
		},
		{
			name:    "zero embedder dimension",
			mutate:  func(c *Config) { c.EmbedderDimension = 0 },
			wantErr: ErrInvalidEmbedderDimension,
		},
		{
			name: "pgvector without host",
			mutate: func(c *Config) {
				c.Backend = BackendPgvector
				c.PostgresHost = ""
			},
			wantErr: ErrInvalidPostgresHost,
		},
		{
			name: "pgvector port out of range",
			mutate: func(c *Config) {
				c.Backend = BackendPgvector
				c.PostgresPort = 70000
			},
			wantErr: ErrInvalidPostgresPort,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Validate() = %v, want errors.Is(%v)", err, tt.wantErr)
			}
		})
	}
}

func TestValidateNil(t *testing.T) {
	var cfg *Config
	if err := cfg.Validate(); !errors.Is(err, ErrConfigNil) {
		t.Fatalf("Validate() on nil = %v, want ErrConfigNil", err)
	}
}

func TestPostgresConnectionString(t *testing.T) {
	cfg := validConfig()
	cfg.PostgresPassword = "p'ass word"

	dsn := cfg.PostgresConnectionString()
	want := `host=localhost port=5432 user= password='p\'ass word' dbname= sslmode=`
	if dsn != want {
		t.Fatalf("PostgresConnectionString() = %q, want %q", dsn, want)
	}
}
