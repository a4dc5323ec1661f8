// Package config loads service configuration from environment
// variables, with defaults suitable for local development.
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/memorylink/memorylink/memory/cipher"
)

// Config holds the full service configuration.
type Config struct {
	// HTTPAddr is the listen address of the HTTP API.
	HTTPAddr string

	// DataPath is the on-disk location of the vector database. Empty
	// keeps the index in memory.
	DataPath string

	// Collection is the vector collection name.
	Collection string

	// EmbeddingModel and EmbeddingDimension describe the embedding
	// backend.
	EmbeddingModel     string
	EmbeddingDimension int

	// ModelPath, TokenizerPath, and OnnxLibraryPath locate the local
	// ONNX model (used only by onnx builds).
	ModelPath       string
	TokenizerPath   string
	OnnxLibraryPath string

	// EncryptionSecret feeds key derivation. When unset a random
	// secret is generated so the service still functions, but records
	// become unreadable after restart.
	EncryptionSecret string

	// SecretGenerated marks that EncryptionSecret was not configured.
	SecretGenerated bool

	// DefaultSearchLimit and MaxSearchLimit bound search result counts.
	DefaultSearchLimit int
	MaxSearchLimit     int

	// MaxContentLength rejects oversized memory submissions.
	MaxContentLength int

	// EmbeddingCacheEntries sizes the embedding cache.
	EmbeddingCacheEntries int
}

// FromEnv reads MEMORYLINK_* environment variables, filling defaults
// for anything unset.
func FromEnv() (*Config, error) {
	cfg := &Config{
		HTTPAddr:              stringOr("MEMORYLINK_HTTP_ADDR", ":8080"),
		DataPath:              stringOr("MEMORYLINK_DATA_PATH", "./data/chromadb"),
		Collection:            stringOr("MEMORYLINK_COLLECTION", "memory_embeddings"),
		EmbeddingModel:        stringOr("MEMORYLINK_EMBEDDING_MODEL", "all-MiniLM-L6-v2"),
		EmbeddingDimension:    intOr("MEMORYLINK_EMBEDDING_DIMENSION", 384),
		ModelPath:             stringOr("MEMORYLINK_MODEL_PATH", "./models/all-MiniLM-L6-v2/model.onnx"),
		TokenizerPath:         stringOr("MEMORYLINK_TOKENIZER_PATH", "./models/all-MiniLM-L6-v2/tokenizer.json"),
		OnnxLibraryPath:       stringOr("MEMORYLINK_ONNX_LIBRARY_PATH", ""),
		EncryptionSecret:      stringOr("MEMORYLINK_ENCRYPTION_SECRET", ""),
		DefaultSearchLimit:    intOr("MEMORYLINK_DEFAULT_SEARCH_LIMIT", 10),
		MaxSearchLimit:        intOr("MEMORYLINK_MAX_SEARCH_LIMIT", 100),
		MaxContentLength:      intOr("MEMORYLINK_MAX_CONTENT_LENGTH", 10000),
		EmbeddingCacheEntries: intOr("MEMORYLINK_EMBEDDING_CACHE_ENTRIES", 4096),
	}

	if cfg.EncryptionSecret == "" {
		secret, err := cipher.GenerateSecret()
		if err != nil {
			return nil, fmt.Errorf("generate fallback secret: %w", err)
		}
		cfg.EncryptionSecret = secret
		cfg.SecretGenerated = true
		log.Printf("[CONFIG] MEMORYLINK_ENCRYPTION_SECRET is not set; generated an ephemeral secret. " +
			"Stored memories will be unreadable after restart.")
	}

	return cfg, nil
}

// stringOr returns the named environment variable, or defaultValue if
// it is unset or empty.
func stringOr(name, defaultValue string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return defaultValue
}

// intOr parses the named environment variable as a decimal integer,
// falling back to defaultValue when unset or unparseable.
func intOr(name string, defaultValue int) int {
	v := os.Getenv(name)
	if v == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultValue
	}
	return n
}
