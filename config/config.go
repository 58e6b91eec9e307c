// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads factsearch configuration from a YAML file with
// FACTSEARCH_* environment-variable overrides.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/poiesic/factsearch/ai"
	"github.com/poiesic/factsearch/ingestion"
	"github.com/poiesic/factsearch/reembed"
	"github.com/poiesic/factsearch/search"
)

// Vector backends selectable in StorageConfig.
const (
	VectorBackendBadger = "badger"
	VectorBackendQdrant = "qdrant"
)

// Config is the top-level application configuration.
type Config struct {
	Storage   StorageConfig   `yaml:"storage"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Search    SearchConfig    `yaml:"search"`
	Ingestion IngestionConfig `yaml:"ingestion"`
	Qdrant    QdrantConfig    `yaml:"qdrant"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Server    ServerConfig    `yaml:"server"`
}

// StorageConfig locates the corpus database and picks the vector backend.
type StorageConfig struct {
	Path          string `yaml:"path"`
	InMemory      bool   `yaml:"inMemory"`
	VectorBackend string `yaml:"vectorBackend"`
}

// EmbeddingConfig describes the OpenAI-compatible embedding service.
type EmbeddingConfig struct {
	Host       string        `yaml:"host"`
	Model      string        `yaml:"model"`
	APIKey     string        `yaml:"apiKey"`
	Dimensions int           `yaml:"dimensions"`
	BatchSize  int           `yaml:"batchSize"`
	Timeout    time.Duration `yaml:"timeout"`
}

// SearchConfig holds fusion weights and per-query defaults.
type SearchConfig struct {
	SemanticWeight float64 `yaml:"semanticWeight"`
	KeywordWeight  float64 `yaml:"keywordWeight"`
	TopK           int     `yaml:"topK"`
	Threshold      float64 `yaml:"threshold"`
	PoolSize       int     `yaml:"poolSize"`
	CacheSize      int     `yaml:"cacheSize"`
}

// IngestionConfig controls chunking and the embedding stage.
type IngestionConfig struct {
	ChunkSize         int           `yaml:"chunkSize"`
	ChunkOverlap      int           `yaml:"chunkOverlap"`
	BatchSize         int           `yaml:"batchSize"`
	Concurrency       int           `yaml:"concurrency"`
	MaxRetries        int           `yaml:"maxRetries"`
	RetryDelay        time.Duration `yaml:"retryDelay"`
	RequestsPerSecond float64       `yaml:"requestsPerSecond"`
	ReportInterval    int           `yaml:"reportInterval"`
}

// QdrantConfig locates the qdrant gRPC endpoint.
type QdrantConfig struct {
	Addr       string `yaml:"addr"`
	Collection string `yaml:"collection"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig toggles Prometheus collection.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. Missing values keep their defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration used when nothing is specified.
func Default() *Config {
	embed := ai.DefaultConfig()
	reembedCfg := reembed.DefaultConfig()
	chunks := ingestion.DefaultChunkOptions()

	return &Config{
		Storage: StorageConfig{
			Path:          "./factsearch_db",
			VectorBackend: VectorBackendBadger,
		},
		Embedding: EmbeddingConfig{
			Host:      embed.EmbeddingHost,
			Model:     embed.EmbeddingModel,
			APIKey:    embed.APIKey,
			BatchSize: embed.BatchSize,
			Timeout:   embed.Timeout,
		},
		Search: SearchConfig{
			SemanticWeight: search.DefaultSemanticWeight,
			KeywordWeight:  search.DefaultKeywordWeight,
			TopK:           search.DefaultTopK,
			Threshold:      search.DefaultThreshold,
			CacheSize:      1024,
		},
		Ingestion: IngestionConfig{
			ChunkSize:      chunks.Size,
			ChunkOverlap:   chunks.Overlap,
			BatchSize:      reembedCfg.BatchSize,
			Concurrency:    reembedCfg.Concurrency,
			MaxRetries:     reembedCfg.MaxRetries,
			RetryDelay:     reembedCfg.RetryDelay,
			ReportInterval: reembedCfg.ReportInterval,
		},
		Qdrant: QdrantConfig{
			Addr:       "localhost:6334",
			Collection: "factsearch",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
	}
}

// Validate checks every section and joins all problems into one error.
func (c *Config) Validate() error {
	var errs []error

	if !c.Storage.InMemory && c.Storage.Path == "" {
		errs = append(errs, errors.New("storage.path is required unless storage.inMemory is set"))
	}
	switch c.Storage.VectorBackend {
	case VectorBackendBadger:
	case VectorBackendQdrant:
		if c.Qdrant.Addr == "" || c.Qdrant.Collection == "" {
			errs = append(errs, errors.New("qdrant.addr and qdrant.collection are required for the qdrant backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.vectorBackend must be %q or %q, got %q",
			VectorBackendBadger, VectorBackendQdrant, c.Storage.VectorBackend))
	}

	if err := c.AIConfig().Validate(); err != nil {
		errs = append(errs, err)
	}

	if err := search.ValidateWeights(c.Search.SemanticWeight, c.Search.KeywordWeight); err != nil {
		errs = append(errs, fmt.Errorf("search weights: %w", err))
	}
	if c.Search.TopK <= 0 {
		errs = append(errs, fmt.Errorf("search.topK: %w", search.ErrInvalidTopK))
	}
	if math.IsNaN(c.Search.Threshold) || math.IsInf(c.Search.Threshold, 0) {
		errs = append(errs, fmt.Errorf("search.threshold: %w", search.ErrInvalidThreshold))
	}
	if c.Search.PoolSize < 0 {
		errs = append(errs, errors.New("search.poolSize cannot be negative"))
	}
	if c.Search.CacheSize < 0 {
		errs = append(errs, errors.New("search.cacheSize cannot be negative"))
	}

	if err := c.ChunkOptions().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("ingestion chunking: %w", err))
	}
	if err := c.ReembedConfig().Validate(); err != nil {
		errs = append(errs, err)
	}

	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}

	return errors.Join(errs...)
}

// AIConfig returns the embedding service configuration.
func (c *Config) AIConfig() *ai.Config {
	return ai.NewConfig(
		ai.WithEmbeddingHost(c.Embedding.Host),
		ai.WithEmbeddingModel(c.Embedding.Model),
		ai.WithAPIKey(c.Embedding.APIKey),
		ai.WithDimensions(c.Embedding.Dimensions),
		ai.WithBatchSize(c.Embedding.BatchSize),
		ai.WithTimeout(c.Embedding.Timeout),
	)
}

// ReembedConfig returns the embedding-stage settings used by ingestion and
// reembed runs.
func (c *Config) ReembedConfig() *reembed.Config {
	return &reembed.Config{
		BatchSize:         c.Ingestion.BatchSize,
		ReportInterval:    c.Ingestion.ReportInterval,
		MaxRetries:        c.Ingestion.MaxRetries,
		RetryDelay:        c.Ingestion.RetryDelay,
		Concurrency:       c.Ingestion.Concurrency,
		RequestsPerSecond: c.Ingestion.RequestsPerSecond,
	}
}

// ChunkOptions returns the long-value chunking settings.
func (c *Config) ChunkOptions() ingestion.ChunkOptions {
	return ingestion.ChunkOptions{Size: c.Ingestion.ChunkSize, Overlap: c.Ingestion.ChunkOverlap}
}

// SearchOptions returns searcher options for the search section.
func (c *Config) SearchOptions() []search.Option {
	opts := []search.Option{
		search.WithWeights(c.Search.SemanticWeight, c.Search.KeywordWeight),
		search.WithDefaults(c.Search.TopK, c.Search.Threshold),
		search.WithQueryCache(c.Search.CacheSize),
	}
	if c.Search.PoolSize > 0 {
		opts = append(opts, search.WithPoolSize(c.Search.PoolSize))
	}
	return opts
}

// applyEnvOverrides reads FACTSEARCH_* environment variables and overrides
// the corresponding config fields. Malformed numbers are reported.
func applyEnvOverrides(cfg *Config) error {
	var errs []error

	setString := func(name string, dst *string) {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}
	setInt := func(name string, dst *int) {
		if v := os.Getenv(name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				return
			}
			*dst = n
		}
	}
	setFloat := func(name string, dst *float64) {
		if v := os.Getenv(name); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				return
			}
			*dst = f
		}
	}
	setBool := func(name string, dst *bool) {
		if v := os.Getenv(name); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				return
			}
			*dst = b
		}
	}
	setDuration := func(name string, dst *time.Duration) {
		if v := os.Getenv(name); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				return
			}
			*dst = d
		}
	}

	setString("FACTSEARCH_STORAGE_PATH", &cfg.Storage.Path)
	setBool("FACTSEARCH_STORAGE_IN_MEMORY", &cfg.Storage.InMemory)
	setString("FACTSEARCH_VECTOR_BACKEND", &cfg.Storage.VectorBackend)

	setString("FACTSEARCH_EMBEDDING_HOST", &cfg.Embedding.Host)
	setString("FACTSEARCH_EMBEDDING_MODEL", &cfg.Embedding.Model)
	setString("FACTSEARCH_EMBEDDING_API_KEY", &cfg.Embedding.APIKey)
	setInt("FACTSEARCH_EMBEDDING_DIMENSIONS", &cfg.Embedding.Dimensions)
	setInt("FACTSEARCH_EMBEDDING_BATCH_SIZE", &cfg.Embedding.BatchSize)
	setDuration("FACTSEARCH_EMBEDDING_TIMEOUT", &cfg.Embedding.Timeout)

	setFloat("FACTSEARCH_SEARCH_SEMANTIC_WEIGHT", &cfg.Search.SemanticWeight)
	setFloat("FACTSEARCH_SEARCH_KEYWORD_WEIGHT", &cfg.Search.KeywordWeight)
	setInt("FACTSEARCH_SEARCH_TOP_K", &cfg.Search.TopK)
	setFloat("FACTSEARCH_SEARCH_THRESHOLD", &cfg.Search.Threshold)
	setInt("FACTSEARCH_SEARCH_POOL_SIZE", &cfg.Search.PoolSize)
	setInt("FACTSEARCH_SEARCH_CACHE_SIZE", &cfg.Search.CacheSize)

	setInt("FACTSEARCH_INGESTION_BATCH_SIZE", &cfg.Ingestion.BatchSize)
	setInt("FACTSEARCH_INGESTION_CONCURRENCY", &cfg.Ingestion.Concurrency)
	setFloat("FACTSEARCH_INGESTION_REQUESTS_PER_SECOND", &cfg.Ingestion.RequestsPerSecond)

	setString("FACTSEARCH_QDRANT_ADDR", &cfg.Qdrant.Addr)
	setString("FACTSEARCH_QDRANT_COLLECTION", &cfg.Qdrant.Collection)

	setString("FACTSEARCH_LOG_LEVEL", &cfg.Logging.Level)
	setString("FACTSEARCH_LOG_FORMAT", &cfg.Logging.Format)
	setBool("FACTSEARCH_METRICS_ENABLED", &cfg.Metrics.Enabled)
	setString("FACTSEARCH_SERVER_ADDR", &cfg.Server.Addr)

	return errors.Join(errs...)
}
