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
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/poiesic/factsearch/core"
	"github.com/poiesic/factsearch/search"
)

type searchRequest struct {
	Query     string   `json:"query"`
	TopK      *int     `json:"top_k,omitempty"`
	Threshold *float64 `json:"threshold,omitempty"`
}

type batchRequest struct {
	Queries   []string `json:"queries"`
	TopK      *int     `json:"top_k,omitempty"`
	Threshold *float64 `json:"threshold,omitempty"`
}

type searchResponse struct {
	Results []core.SearchResult `json:"results"`
}

type batchResponse struct {
	Results [][]core.SearchResult `json:"results"`
}

type statsResponse struct {
	Ready         bool      `json:"ready"`
	Entries       int       `json:"entries"`
	Vectors       int       `json:"vectors"`
	Rows          int       `json:"rows"`
	Dimensions    int       `json:"dimensions"`
	Vocabulary    int       `json:"vocabulary"`
	AverageLength float64   `json:"average_length"`
	Fingerprint   string    `json:"fingerprint,omitempty"`
	LoadedAt      time.Time `json:"loaded_at,omitzero"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func queryOptions(topK *int, threshold *float64) []search.QueryOption {
	var opts []search.QueryOption
	if topK != nil {
		opts = append(opts, search.WithTopK(*topK))
	}
	if threshold != nil {
		opts = append(opts, search.WithThreshold(*threshold))
	}
	return opts
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	results, err := s.engine.Search(r.Context(), req.Query, queryOptions(req.TopK, req.Threshold)...)
	if err != nil {
		s.writeSearchError(w, err, "query", req.Query)
		return
	}
	if results == nil {
		results = []core.SearchResult{}
	}
	s.writeJSON(w, http.StatusOK, searchResponse{Results: results})
}

func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.Queries) > s.maxBatch {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("at most %d queries per batch", s.maxBatch))
		return
	}

	results, err := s.engine.BatchSearch(r.Context(), req.Queries, queryOptions(req.TopK, req.Threshold)...)
	if err != nil {
		s.writeSearchError(w, err, "queries", len(req.Queries))
		return
	}
	for i := range results {
		if results[i] == nil {
			results[i] = []core.SearchResult{}
		}
	}
	if results == nil {
		results = [][]core.SearchResult{}
	}
	s.writeJSON(w, http.StatusOK, batchResponse{Results: results})
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Load(r.Context()); err != nil {
		s.logger.Error("reload failed", "err", err)
		s.writeError(w, http.StatusInternalServerError, "reload failed: "+err.Error())
		return
	}
	s.handleStats(w, r)
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	st := s.engine.Stats()
	resp := statsResponse{
		Ready:         st.Ready,
		Entries:       st.Entries,
		Vectors:       st.Vectors,
		Rows:          st.Rows,
		Dimensions:    st.Dimensions,
		Vocabulary:    st.Vocabulary,
		AverageLength: st.AverageLength,
		LoadedAt:      st.LoadedAt,
	}
	if st.Ready {
		resp.Fingerprint = strconv.FormatUint(uint64(st.Fingerprint), 16)
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	if !s.engine.Ready() {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeSearchError maps engine errors onto HTTP statuses.
func (s *Server) writeSearchError(w http.ResponseWriter, err error, attrs ...any) {
	switch {
	case errors.Is(err, search.ErrNotReady):
		s.writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, search.ErrInvalidTopK), errors.Is(err, search.ErrInvalidThreshold):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		s.writeError(w, http.StatusGatewayTimeout, err.Error())
	default:
		s.logger.Error("search failed", append(attrs, "err", err)...)
		s.writeError(w, http.StatusInternalServerError, "search failed")
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	if dec.More() {
		return errors.New("invalid request body: trailing data")
	}
	return nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("failed to write response", "err", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, errorResponse{Error: message})
}
