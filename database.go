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

// Package factsearch wires storage, the embedding provider, metrics and the
// search engine into a single Database value.
package factsearch

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/poiesic/factsearch/ai"
	"github.com/poiesic/factsearch/ai/openai"
	"github.com/poiesic/factsearch/config"
	"github.com/poiesic/factsearch/ingestion"
	"github.com/poiesic/factsearch/metrics"
	"github.com/poiesic/factsearch/reembed"
	"github.com/poiesic/factsearch/search"
	"github.com/poiesic/factsearch/server"
	"github.com/poiesic/factsearch/storage"
	"github.com/poiesic/factsearch/storage/badger"
	"github.com/poiesic/factsearch/storage/qdrant"
)

// Database owns the open storage backends and the embedding provider.
type Database struct {
	config       *config.Config
	backend      *badger.Backend
	corpusRepo   storage.CorpusRepository
	vectorRepo   storage.VectorRepository
	manifestRepo storage.ManifestRepository
	provider     ai.AIProvider
	metrics      *metrics.Metrics
	gatherer     prometheus.Gatherer
	logger       *slog.Logger // passed to components
	log          *slog.Logger
}

// DatabaseOption configures a Database.
type DatabaseOption func(*databaseOptions)

type databaseOptions struct {
	provider   ai.AIProvider
	registerer prometheus.Registerer
	gatherer   prometheus.Gatherer
	logger     *slog.Logger
}

// WithProvider uses provider instead of building an OpenAI-compatible one
// from the embedding config. The Database takes ownership and closes it.
func WithProvider(provider ai.AIProvider) DatabaseOption {
	return func(o *databaseOptions) {
		o.provider = provider
	}
}

// WithRegistry registers metrics with reg and serves them from it.
// Without it the Prometheus default registry is used.
func WithRegistry(reg *prometheus.Registry) DatabaseOption {
	return func(o *databaseOptions) {
		o.registerer = reg
		o.gatherer = reg
	}
}

// WithLogger sets the logger handed to every component.
func WithLogger(logger *slog.Logger) DatabaseOption {
	return func(o *databaseOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// NewDatabase opens the stores described by cfg.
func NewDatabase(cfg *config.Config, opts ...DatabaseOption) (*Database, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	options := &databaseOptions{
		registerer: prometheus.DefaultRegisterer,
		gatherer:   prometheus.DefaultGatherer,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}

	backend, err := badger.OpenBackend(cfg.Storage.Path, cfg.Storage.InMemory)
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}

	var vectorRepo storage.VectorRepository
	switch cfg.Storage.VectorBackend {
	case config.VectorBackendQdrant:
		store, err := qdrant.New(cfg.Qdrant.Addr, cfg.Qdrant.Collection)
		if err != nil {
			backend.Close()
			return nil, err
		}
		vectorRepo = store
	default:
		vectorRepo = badger.NewVectorRepository(backend)
	}

	provider := options.provider
	if provider == nil {
		provider, err = openai.NewProvider(cfg.AIConfig())
		if err != nil {
			vectorRepo.Close()
			backend.Close()
			return nil, err
		}
	}

	db := &Database{
		config:       cfg,
		backend:      backend,
		corpusRepo:   badger.NewCorpusRepository(backend),
		vectorRepo:   vectorRepo,
		manifestRepo: badger.NewManifestRepository(backend),
		provider:     provider,
		logger:       options.logger,
		log:          options.logger.With("component", "database"),
	}
	if cfg.Metrics.Enabled {
		db.metrics = metrics.New(options.registerer)
		db.gatherer = options.gatherer
	}
	return db, nil
}

// Close releases the provider and every store. All errors are reported.
func (db *Database) Close() error {
	var errs []error
	if err := db.provider.Close(); err != nil {
		db.log.Error("error closing AI provider", "err", err)
		errs = append(errs, err)
	}
	if err := db.vectorRepo.Close(); err != nil {
		db.log.Error("error closing vector repository", "err", err)
		errs = append(errs, err)
	}
	if err := db.corpusRepo.Close(); err != nil {
		db.log.Error("error closing corpus repository", "err", err)
		errs = append(errs, err)
	}
	if err := db.backend.Close(); err != nil {
		db.log.Error("error closing backend storage", "err", err)
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (db *Database) Config() *config.Config {
	return db.config
}

func (db *Database) CorpusRepository() storage.CorpusRepository {
	return db.corpusRepo
}

func (db *Database) VectorRepository() storage.VectorRepository {
	return db.vectorRepo
}

func (db *Database) ManifestRepository() storage.ManifestRepository {
	return db.manifestRepo
}

// Metrics returns the collectors, or nil when metrics are disabled.
func (db *Database) Metrics() *metrics.Metrics {
	return db.metrics
}

// NewSearcher creates a searcher configured from the search section.
// Later options override the configured ones. The searcher is not loaded.
func (db *Database) NewSearcher(opts ...search.Option) (*search.Searcher, error) {
	base := append(db.config.SearchOptions(),
		search.WithLogger(db.logger),
		search.WithManifestRepository(db.manifestRepo),
		search.WithMetrics(db.metrics),
	)
	return search.NewSearcher(db.corpusRepo, db.vectorRepo, db.provider.Embedder(), append(base, opts...)...)
}

// NewIngestionPipeline creates a pipeline configured from the ingestion section.
func (db *Database) NewIngestionPipeline(opts ...ingestion.Option) (*ingestion.Pipeline, error) {
	base := []ingestion.Option{
		ingestion.WithLogger(db.logger),
		ingestion.WithEmbedConfig(db.config.ReembedConfig()),
		ingestion.WithManifestRepository(db.manifestRepo, db.provider.Model()),
		ingestion.WithMetrics(db.metrics),
	}
	return ingestion.NewPipeline(db.corpusRepo, db.vectorRepo, db.provider.Embedder(), append(base, opts...)...)
}

// NewReembedder creates a reembedder that rebuilds every vector with the
// configured model, reporting progress to progress.
func (db *Database) NewReembedder(progress io.Writer) (*reembed.Reembedder, error) {
	return reembed.NewReembedder(db.corpusRepo, db.vectorRepo, db.provider.Embedder(),
		db.config.ReembedConfig(), progress,
		reembed.WithLogger(db.logger),
		reembed.WithManifestRepository(db.manifestRepo, db.provider.Model()),
		reembed.WithMetrics(db.metrics),
	)
}

// NewServer creates an HTTP server for searcher using the server section.
func (db *Database) NewServer(searcher *search.Searcher, opts ...server.Option) (*server.Server, error) {
	srv := db.config.Server
	base := []server.Option{
		server.WithLogger(db.logger),
		server.WithTimeouts(srv.ReadTimeout, srv.WriteTimeout, srv.ShutdownTimeout),
	}
	if db.metrics != nil {
		base = append(base, server.WithMetrics(db.metrics, db.gatherer))
	}
	return server.New(searcher, append(base, opts...)...)
}
