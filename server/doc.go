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

// Package server exposes a Searcher over HTTP.
//
// Routes:
//
//	POST /search        {query, top_k?, threshold?} -> {results}
//	POST /search/batch  {queries, top_k?, threshold?} -> {results}
//	POST /reload        reloads the corpus and vector index
//	GET  /stats         snapshot statistics
//	GET  /healthz       200 once a snapshot is loaded, 503 before
//	GET  /metrics       Prometheus scrape endpoint
//
// A query that finds nothing returns an empty results list with status 200.
// A searcher that has not been loaded answers 503.
package server
