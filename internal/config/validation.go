package config

import "fmt"

// Validate checks all configuration values and returns the first
// violation found, wrapped around its sentinel error.
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	if c.Backend != BackendChromem && c.Backend != BackendPgvector {
		return fmt.Errorf("%w: %q (must be %q or %q)",
			ErrInvalidBackend, c.Backend, BackendChromem, BackendPgvector)
	}

	if c.DataDir == "" {
		return fmt.Errorf("%w: data_dir must not be empty", ErrInvalidDataDir)
	}

	if c.ChunkSize < 100 || c.ChunkSize > 10000 {
		return fmt.Errorf("%w: %d (must be 100-10000 characters)",
			ErrInvalidChunkSize, c.ChunkSize)
	}

	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: %d (must be non-negative and smaller than chunk size %d)",
			ErrInvalidChunkOverlap, c.ChunkOverlap, c.ChunkSize)
	}

	if c.SimilarityThreshold < 0 || c.SimilarityThreshold > 1 {
		return fmt.Errorf("%w: %g (must be within [0, 1])",
			ErrInvalidThreshold, c.SimilarityThreshold)
	}

	if c.TopK < 1 || c.TopK > 100 {
		return fmt.Errorf("%w: %d (must be 1-100)", ErrInvalidTopK, c.TopK)
	}

	if c.EmbedderDimension < 1 || c.EmbedderDimension > 4096 {
		return fmt.Errorf("%w: %d (must be 1-4096)",
			ErrInvalidEmbedderDimension, c.EmbedderDimension)
	}

	if c.Backend == BackendPgvector {
		if c.PostgresHost == "" {
			return fmt.Errorf("%w: host must not be empty", ErrInvalidPostgresHost)
		}
		if c.PostgresPort < 1 || c.PostgresPort > 65535 {
			return fmt.Errorf("%w: %d", ErrInvalidPostgresPort, c.PostgresPort)
		}
	}

	return nil
}
