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

package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/poiesic/factsearch/core"
	"github.com/poiesic/factsearch/metrics"
	"github.com/poiesic/factsearch/search"
)

// Engine is the query surface served over HTTP. *search.Searcher satisfies it.
type Engine interface {
	Search(ctx context.Context, query string, opts ...search.QueryOption) ([]core.SearchResult, error)
	BatchSearch(ctx context.Context, queries []string, opts ...search.QueryOption) ([][]core.SearchResult, error)
	Load(ctx context.Context) error
	Ready() bool
	Stats() search.Stats
}

// DefaultMaxBatch bounds the number of queries in one batch request.
const DefaultMaxBatch = 256

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// Server serves an Engine over HTTP.
type Server struct {
	engine          Engine
	metrics         *metrics.Metrics
	gatherer        prometheus.Gatherer
	maxBatch        int
	readTimeout     time.Duration
	writeTimeout    time.Duration
	shutdownTimeout time.Duration
	logger          *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger.With("component", "server")
		}
	}
}

// WithMetrics records per-request metrics and serves gatherer on /metrics.
// A nil gatherer leaves /metrics unregistered.
func WithMetrics(m *metrics.Metrics, gatherer prometheus.Gatherer) Option {
	return func(s *Server) {
		s.metrics = m
		s.gatherer = gatherer
	}
}

// WithMaxBatch caps the number of queries accepted by /search/batch.
func WithMaxBatch(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxBatch = n
		}
	}
}

// WithTimeouts sets the http.Server read/write timeouts and the graceful
// shutdown deadline used by Run. Zero values keep the defaults.
func WithTimeouts(read, write, shutdown time.Duration) Option {
	return func(s *Server) {
		if read > 0 {
			s.readTimeout = read
		}
		if write > 0 {
			s.writeTimeout = write
		}
		if shutdown > 0 {
			s.shutdownTimeout = shutdown
		}
	}
}

// New creates a Server for engine.
func New(engine Engine, opts ...Option) (*Server, error) {
	if engine == nil {
		return nil, ErrEngineRequired
	}
	s := &Server{
		engine:          engine,
		maxBatch:        DefaultMaxBatch,
		readTimeout:     30 * time.Second,
		writeTimeout:    60 * time.Second,
		shutdownTimeout: 15 * time.Second,
		logger:          slog.Default().With("component", "server"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Handler returns the routed handler wrapped in the metrics middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /search", s.handleSearch)
	mux.HandleFunc("POST /search/batch", s.handleBatch)
	mux.HandleFunc("POST /reload", s.handleReload)
	mux.HandleFunc("GET /stats", s.handleStats)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	if s.gatherer != nil {
		mux.Handle("GET /metrics", metrics.Handler(s.gatherer))
	}

	var chain http.Handler = mux
	chain = instrument(s.metrics)(chain)
	return chain
}

// Run listens on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  s.readTimeout,
		WriteTimeout: s.writeTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.logger.Info("server stopped")
	return nil
}
